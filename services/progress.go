package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sahilchouksey/syllabus-sync/model"
)

// Phase is a step of the syllabus processing state machine
type Phase string

const (
	PhaseReceived           Phase = "received"
	PhaseOCRRunning         Phase = "ocr-running"
	PhaseOCRDone            Phase = "ocr-done"
	PhaseStructuringRunning Phase = "structuring-running"
	PhaseStructuringDone    Phase = "structuring-done"
	PhaseValidating         Phase = "validating"
	PhaseSucceeded          Phase = "succeeded"
	PhaseFailed             Phase = "failed"
)

var phaseRank = map[Phase]int{
	PhaseReceived:           0,
	PhaseOCRRunning:         1,
	PhaseOCRDone:            2,
	PhaseStructuringRunning: 3,
	PhaseStructuringDone:    4,
	PhaseValidating:         5,
	PhaseSucceeded:          6,
	PhaseFailed:             6,
}

// progressSteps lists the phases the client sees as numbered progress events
var progressSteps = map[Phase]struct {
	step    int
	message string
}{
	PhaseOCRRunning:         {1, "Extracting text from document..."},
	PhaseStructuringRunning: {2, "Analyzing syllabus structure..."},
	PhaseValidating:         {3, "Validating extracted events..."},
}

// IsTerminal reports whether no phase can follow p
func (p Phase) IsTerminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed
}

// ErrPhaseOrder is returned when a transition would move the stream backward or past its end
var ErrPhaseOrder = errors.New("invalid phase transition")

// PipelineEventType is the "type" discriminator of a stream event
type PipelineEventType string

const (
	EventProgress PipelineEventType = "progress"
	EventResult   PipelineEventType = "result"
	EventError    PipelineEventType = "error"
)

// EventErrorBody is the body of a terminal error event
type EventErrorBody struct {
	Message string `json:"message"`
}

// PipelineEvent is one message of the processing stream
type PipelineEvent struct {
	Type    PipelineEventType         `json:"type"`
	Step    int                       `json:"step,omitempty"`
	Phase   Phase                     `json:"phase,omitempty"`
	Message string                    `json:"message,omitempty"`
	Payload *model.SyllabusExtraction `json:"payload,omitempty"`
	Error   *EventErrorBody           `json:"error,omitempty"`
}

// IsTerminal reports whether e ends the stream
func (e PipelineEvent) IsTerminal() bool {
	return e.Type == EventResult || e.Type == EventError
}

// EmitFunc delivers one event to the client. A returned error detaches the sink.
type EmitFunc func(PipelineEvent) error

// ProgressStream enforces forward-only phase order and exactly one terminal event.
// Emit failures stop delivery but never stop the pipeline.
type ProgressStream struct {
	mu       sync.Mutex
	emit     EmitFunc
	phase    Phase
	history  []Phase
	detached bool
	started  time.Time
	entered  time.Time
	logger   *zap.Logger
	observe  func(phase Phase, elapsed time.Duration)
}

// NewProgressStream starts a stream in PhaseReceived. A nil emit discards events.
func NewProgressStream(emit EmitFunc, logger *zap.Logger) *ProgressStream {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := time.Now()
	return &ProgressStream{
		emit:    emit,
		phase:   PhaseReceived,
		history: []Phase{PhaseReceived},
		started: now,
		entered: now,
		logger:  logger,
	}
}

// OnPhaseComplete registers a hook called with the time spent in each phase as it is left
func (s *ProgressStream) OnPhaseComplete(fn func(phase Phase, elapsed time.Duration)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observe = fn
}

// Advance moves to next. Skipping phases is allowed; moving backward or out of a terminal phase is not.
func (s *ProgressStream) Advance(next Phase) error {
	if next.IsTerminal() {
		return fmt.Errorf("%w: use Succeed or Fail to reach %s", ErrPhaseOrder, next)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.transition(next); err != nil {
		return err
	}
	if step, ok := progressSteps[next]; ok {
		s.deliver(PipelineEvent{Type: EventProgress, Step: step.step, Phase: next, Message: step.message})
	}
	return nil
}

// Succeed emits the result event and closes the stream
func (s *ProgressStream) Succeed(result *model.SyllabusExtraction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.transition(PhaseSucceeded); err != nil {
		return err
	}
	s.deliver(PipelineEvent{Type: EventResult, Payload: result})
	return nil
}

// Fail emits the error event with a user-facing message and closes the stream
func (s *ProgressStream) Fail(message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.transition(PhaseFailed); err != nil {
		return err
	}
	s.deliver(PipelineEvent{Type: EventError, Error: &EventErrorBody{Message: message}})
	return nil
}

// Phase returns the current phase
func (s *ProgressStream) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// History returns every phase entered, in order
func (s *ProgressStream) History() []Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Phase(nil), s.history...)
}

// Detached reports whether the client sink failed
func (s *ProgressStream) Detached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detached
}

// Elapsed returns the time since the stream started
func (s *ProgressStream) Elapsed() time.Duration {
	return time.Since(s.started)
}

func (s *ProgressStream) transition(next Phase) error {
	if s.phase.IsTerminal() {
		return fmt.Errorf("%w: stream already %s", ErrPhaseOrder, s.phase)
	}
	if phaseRank[next] <= phaseRank[s.phase] {
		return fmt.Errorf("%w: %s -> %s", ErrPhaseOrder, s.phase, next)
	}

	now := time.Now()
	if s.observe != nil {
		s.observe(s.phase, now.Sub(s.entered))
	}
	s.logger.Debug("pipeline phase", zap.String("from", string(s.phase)), zap.String("phase", string(next)))

	s.phase = next
	s.entered = now
	s.history = append(s.history, next)
	return nil
}

func (s *ProgressStream) deliver(event PipelineEvent) {
	if s.emit == nil || s.detached {
		return
	}
	if err := s.emit(event); err != nil {
		s.detached = true
		s.logger.Info("client stream detached, continuing without delivery",
			zap.String("phase", string(s.phase)),
			zap.Error(err),
		)
	}
}
