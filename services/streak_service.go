package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sahilchouksey/syllabus-sync/model"
)

// MaxStreakDays bounds the backward walk
const MaxStreakDays = 365

// StreakResult is the outcome of a streak computation
type StreakResult struct {
	Streak int
	// LastStreakDate is the most recent qualifying day, nil when the streak is 0
	LastStreakDate *time.Time
}

// ComputeStreak counts consecutive qualifying days ending at asOf. Only assignments count.
// A day qualifies when a task was completed on it, or when no task was due by its start and still
// open at its end. The walk stops at the first non-qualifying day or after MaxStreakDays.
// No assignments means a streak of 0.
func ComputeStreak(tasks []model.Task, asOf time.Time) StreakResult {
	assignments := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Type == model.TaskTypeAssignment {
			assignments = append(assignments, t)
		}
	}
	if len(assignments) == 0 {
		return StreakResult{}
	}

	day := startOfDay(asOf)

	var result StreakResult
	for i := 0; i < MaxStreakDays; i++ {
		if !dayQualifies(assignments, day) {
			break
		}
		result.Streak++
		if result.LastStreakDate == nil {
			d := day
			result.LastStreakDate = &d
		}
		day = day.AddDate(0, 0, -1)
	}
	return result
}

// ResolveBestStreak returns the best streak to persist. Best only rises, except that the
// best=365/current=0 state left by an earlier unbounded calculation is reset to 0.
func ResolveBestStreak(storedBest, current int) int {
	if storedBest == MaxStreakDays && current == 0 {
		storedBest = 0
	}
	if current > storedBest {
		return current
	}
	return storedBest
}

func dayQualifies(tasks []model.Task, day time.Time) bool {
	next := day.AddDate(0, 0, 1)

	for _, t := range tasks {
		if t.CompletedAt != nil && !t.CompletedAt.Before(day) && t.CompletedAt.Before(next) {
			return true
		}
	}

	for _, t := range tasks {
		if t.DueDate.After(day) {
			continue
		}
		if !completedBy(t, next) {
			return false
		}
	}
	return true
}

func completedBy(t model.Task, cutoff time.Time) bool {
	if !t.IsCompleted() {
		return false
	}
	// a completed task without a timestamp counts as done all along
	return t.CompletedAt == nil || t.CompletedAt.Before(cutoff)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StreakTaskSource loads the tasks a streak is computed from
type StreakTaskSource interface {
	ListByUser(ctx context.Context, userID uint) ([]model.Task, error)
}

// StreakStore persists per-user streak state. Find returns nil, nil when nothing is stored.
type StreakStore interface {
	Find(ctx context.Context, userID uint) (*model.UserStreak, error)
	Save(ctx context.Context, streak *model.UserStreak) error
}

// StreakStats is returned to clients
type StreakStats struct {
	Streak         int        `json:"streak"`
	BestStreak     int        `json:"bestStreak"`
	LastStreakDate *time.Time `json:"lastStreakDate,omitempty"`
}

// StreakService computes and persists streaks
type StreakService struct {
	tasks  StreakTaskSource
	store  StreakStore
	logger *zap.Logger
}

func NewStreakService(tasks StreakTaskSource, store StreakStore, logger *zap.Logger) *StreakService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreakService{tasks: tasks, store: store, logger: logger}
}

// GetStreak recomputes the user's streak as of now and persists the result
func (s *StreakService) GetStreak(ctx context.Context, userID uint, now time.Time) (StreakStats, error) {
	tasks, err := s.tasks.ListByUser(ctx, userID)
	if err != nil {
		return StreakStats{}, fmt.Errorf("failed to load tasks: %w", err)
	}
	current := ComputeStreak(tasks, now)

	stored, err := s.store.Find(ctx, userID)
	if err != nil {
		return StreakStats{}, fmt.Errorf("failed to load streak: %w", err)
	}
	if stored == nil {
		stored = &model.UserStreak{UserID: userID}
	}

	best := ResolveBestStreak(stored.BestStreak, current.Streak)
	if best < stored.BestStreak {
		s.logger.Info("reset corrupted best streak",
			zap.Uint("user_id", userID),
			zap.Int("stored_best", stored.BestStreak),
		)
	}

	stored.CurrentStreak = current.Streak
	stored.BestStreak = best
	if current.LastStreakDate != nil {
		stored.LastStreakDate = current.LastStreakDate
	}
	if err := s.store.Save(ctx, stored); err != nil {
		return StreakStats{}, fmt.Errorf("failed to save streak: %w", err)
	}

	return StreakStats{
		Streak:         current.Streak,
		BestStreak:     best,
		LastStreakDate: current.LastStreakDate,
	}, nil
}
