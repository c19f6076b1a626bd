package services

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahilchouksey/syllabus-sync/model"
)

type eventRecorder struct {
	events []PipelineEvent
	failAt int // 1-based call number that fails; 0 never fails
	calls  int
}

func (r *eventRecorder) emit(e PipelineEvent) error {
	r.calls++
	if r.failAt > 0 && r.calls >= r.failAt {
		return errors.New("broken pipe")
	}
	r.events = append(r.events, e)
	return nil
}

func TestProgressStream_FullRun(t *testing.T) {
	rec := &eventRecorder{}
	s := NewProgressStream(rec.emit, nil)

	for _, p := range []Phase{PhaseOCRRunning, PhaseOCRDone, PhaseStructuringRunning, PhaseStructuringDone, PhaseValidating} {
		require.NoError(t, s.Advance(p))
	}
	require.NoError(t, s.Succeed(&model.SyllabusExtraction{Success: true}))

	require.Len(t, rec.events, 4)
	for i, e := range rec.events[:3] {
		assert.Equal(t, EventProgress, e.Type)
		assert.Equal(t, i+1, e.Step)
		assert.NotEmpty(t, e.Message)
	}
	assert.Equal(t, PhaseOCRRunning, rec.events[0].Phase)
	assert.Equal(t, PhaseValidating, rec.events[2].Phase)
	assert.Equal(t, EventResult, rec.events[3].Type)
	assert.True(t, rec.events[3].IsTerminal())
	assert.Equal(t, PhaseSucceeded, s.Phase())
	assert.Len(t, s.History(), 7)
}

func TestProgressStream_ForwardOnly(t *testing.T) {
	s := NewProgressStream(nil, nil)

	require.NoError(t, s.Advance(PhaseStructuringRunning))
	assert.ErrorIs(t, s.Advance(PhaseOCRRunning), ErrPhaseOrder)
	assert.ErrorIs(t, s.Advance(PhaseStructuringRunning), ErrPhaseOrder)
	assert.ErrorIs(t, s.Advance(PhaseSucceeded), ErrPhaseOrder)

	// skipping ahead is allowed, as a cache hit does
	require.NoError(t, s.Advance(PhaseValidating))
}

func TestProgressStream_SingleTerminal(t *testing.T) {
	rec := &eventRecorder{}
	s := NewProgressStream(rec.emit, nil)

	require.NoError(t, s.Advance(PhaseOCRRunning))
	require.NoError(t, s.Fail("We couldn't read any text from this document."))

	assert.ErrorIs(t, s.Succeed(&model.SyllabusExtraction{}), ErrPhaseOrder)
	assert.ErrorIs(t, s.Fail("again"), ErrPhaseOrder)
	assert.ErrorIs(t, s.Advance(PhaseValidating), ErrPhaseOrder)

	require.Len(t, rec.events, 2)
	last := rec.events[1]
	assert.Equal(t, EventError, last.Type)
	require.NotNil(t, last.Error)
	assert.Equal(t, "We couldn't read any text from this document.", last.Error.Message)
}

func TestPipelineEvent_ErrorWireShape(t *testing.T) {
	rec := &eventRecorder{}
	s := NewProgressStream(rec.emit, nil)
	require.NoError(t, s.Fail("OCR service unavailable"))

	require.Len(t, rec.events, 1)
	raw, err := json.Marshal(rec.events[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","error":{"message":"OCR service unavailable"}}`, string(raw))
}

func TestProgressStream_DetachesOnEmitError(t *testing.T) {
	rec := &eventRecorder{failAt: 2}
	s := NewProgressStream(rec.emit, nil)

	require.NoError(t, s.Advance(PhaseOCRRunning))
	require.NoError(t, s.Advance(PhaseStructuringRunning))
	require.NoError(t, s.Advance(PhaseValidating))
	require.NoError(t, s.Succeed(&model.SyllabusExtraction{Success: true}))

	assert.True(t, s.Detached())
	assert.Equal(t, 2, rec.calls, "no delivery is attempted after the sink fails")
	assert.Len(t, rec.events, 1)
	assert.Equal(t, PhaseSucceeded, s.Phase())
}

func TestProgressStream_PhaseHook(t *testing.T) {
	s := NewProgressStream(nil, nil)
	var left []Phase
	s.OnPhaseComplete(func(p Phase, elapsed time.Duration) {
		assert.GreaterOrEqual(t, elapsed, time.Duration(0))
		left = append(left, p)
	})

	require.NoError(t, s.Advance(PhaseOCRRunning))
	require.NoError(t, s.Fail("boom"))
	assert.Equal(t, []Phase{PhaseReceived, PhaseOCRRunning}, left)
}
