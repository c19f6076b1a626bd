// Package resilience guards outbound calls to the OCR and inference services with a circuit breaker.
// Calls are never retried; a tripped breaker fails fast until the open timeout elapses.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned without calling the wrapped function while the breaker is open
var ErrCircuitOpen = errors.New("circuit breaker open")

// Config holds breaker thresholds
type Config struct {
	Name             string
	MinRequests      uint32
	FailureRatio     float64
	OpenTimeout      time.Duration
	HalfOpenMaxCalls uint32
	// Interval clears closed-state counts periodically; zero keeps them until the state changes
	Interval time.Duration
}

// DefaultConfig returns thresholds suited to slow, expensive upstream calls
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MinRequests:      5,
		FailureRatio:     0.6,
		OpenTimeout:      30 * time.Second,
		HalfOpenMaxCalls: 1,
		Interval:         time.Minute,
	}
}

func (c Config) normalize() Config {
	if c.Name == "" {
		c.Name = "unknown"
	}
	if c.MinRequests == 0 {
		c.MinRequests = 1
	}
	if c.FailureRatio <= 0 || c.FailureRatio > 1 {
		c.FailureRatio = 1
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 30 * time.Second
	}
	if c.HalfOpenMaxCalls == 0 {
		c.HalfOpenMaxCalls = 1
	}
	return c
}

// FailureFilter reports whether err should count against the breaker.
// Errors caused by the content of a request (not the health of the upstream) should return false.
type FailureFilter func(err error) bool

// Breaker wraps a single gobreaker circuit
type Breaker struct {
	cb *gobreaker.CircuitBreaker[struct{}]
}

// NewBreaker creates a breaker. A nil filter counts every error as a failure.
func NewBreaker(cfg Config, logger *zap.Logger, filter FailureFilter) *Breaker {
	cfg = cfg.normalize()
	if logger == nil {
		logger = zap.NewNop()
	}
	if filter == nil {
		filter = func(error) bool { return true }
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenMaxCalls,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !filter(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &Breaker{cb: gobreaker.NewCircuitBreaker[struct{}](settings)}
}

// Do runs fn once through the breaker
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return fmt.Errorf("resilience: operation callback is nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	if IsOpen(err) {
		return fmt.Errorf("%s: %w", b.cb.Name(), ErrCircuitOpen)
	}
	return err
}

// State returns the current breaker state name
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// IsOpen reports whether err came from an open or saturated half-open breaker
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) ||
		errors.Is(err, gobreaker.ErrTooManyRequests) ||
		errors.Is(err, ErrCircuitOpen)
}
