package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahilchouksey/syllabus-sync/model"
	"github.com/sahilchouksey/syllabus-sync/services/digitalocean"
	"github.com/sahilchouksey/syllabus-sync/utils/llmjson"
	"github.com/sahilchouksey/syllabus-sync/utils/metrics"
)

type fakeRecognizer struct {
	text  string
	err   error
	calls int
}

func (f *fakeRecognizer) ExtractText(ctx context.Context, fileBytes []byte, fileName string) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeStructurer struct {
	reply    string
	err      error
	calls    int
	lastUser string
	lastSys  string
}

func (f *fakeStructurer) Structure(ctx context.Context, userText, systemPrompt string) (string, error) {
	f.calls++
	f.lastUser, f.lastSys = userText, systemPrompt
	return f.reply, f.err
}

var pipelineClock = func() time.Time { return time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC) }

func newTestPipeline(ocr TextRecognizer, llm Structurer, opts ...PipelineOption) *SyllabusPipeline {
	opts = append([]PipelineOption{WithClock(pipelineClock)}, opts...)
	return NewSyllabusPipeline(ocr, llm, opts...)
}

func TestProcessDocument_HomeworkScenario(t *testing.T) {
	ocr := &fakeRecognizer{text: "Homework 1 due Oct 12 at 5pm"}
	llm := &fakeStructurer{reply: "```json\n" + `{"success":true,"data":{"courseName":"CS 101","events":[
		{"type":"assignment","title":"Homework 1","dueDate":"2025-10-12T17:00:00","description":"Submit via LMS"}]}}` + "\n```"}
	rec := &eventRecorder{}

	result, err := newTestPipeline(ocr, llm, WithPipelineMetrics(metrics.NewPipelineMetrics())).
		ProcessDocument(context.Background(), []byte("%PDF-hw"), "syllabus.pdf", rec.emit)
	require.NoError(t, err)
	require.NotNil(t, result)

	require.Len(t, rec.events, 4)
	for i := 0; i < 3; i++ {
		assert.Equal(t, EventProgress, rec.events[i].Type)
		assert.Equal(t, i+1, rec.events[i].Step)
	}
	terminal := rec.events[3]
	assert.Equal(t, EventResult, terminal.Type)
	require.NotNil(t, terminal.Payload)
	assert.True(t, terminal.Payload.Success)

	events := terminal.Payload.Data.Events
	require.Len(t, events, 1)
	assert.Equal(t, model.EventTypeAssignment, events[0].Type)
	assert.True(t, strings.HasSuffix(events[0].DueDate, "17:00:00.000Z"), events[0].DueDate)

	assert.Equal(t, SyllabusExtractionPrompt, llm.lastSys)
	assert.Contains(t, llm.lastUser, "Homework 1 due Oct 12 at 5pm")
	assert.Contains(t, llm.lastUser, "2025-09-01")
}

func TestProcessDocument_CacheHitSkipsUpstream(t *testing.T) {
	ocr := &fakeRecognizer{text: "Quiz 1 due 2025-10-01"}
	llm := &fakeStructurer{reply: `{"success":true,"data":{"events":[{"type":"assignment","title":"Quiz 1","dueDate":"2025-10-01"}]}}`}
	cache := NewMemoryResultCache(time.Hour)
	p := newTestPipeline(ocr, llm, WithResultCache(cache))

	_, err := p.ProcessDocument(context.Background(), []byte("same"), "a.png", nil)
	require.NoError(t, err)

	rec := &eventRecorder{}
	result, err := p.ProcessDocument(context.Background(), []byte("same"), "b.png", rec.emit)
	require.NoError(t, err)
	assert.Equal(t, 1, ocr.calls)
	assert.Equal(t, 1, llm.calls)
	require.Len(t, result.Data.Events, 1)
	assert.Equal(t, "2025-10-01T23:59:00.000Z", result.Data.Events[0].DueDate)

	require.Len(t, rec.events, 2)
	assert.Equal(t, PhaseValidating, rec.events[0].Phase)
	assert.Equal(t, EventResult, rec.events[1].Type)
}

func TestProcessDocument_Failures(t *testing.T) {
	tests := []struct {
		name      string
		ocr       *fakeRecognizer
		llm       *fakeStructurer
		wantPhase Phase
		wantKind  ErrorKind
		wantErr   error
		progress  int
	}{
		{
			name:      "no text",
			ocr:       &fakeRecognizer{err: ErrNoTextExtracted},
			llm:       &fakeStructurer{},
			wantPhase: PhaseOCRRunning,
			wantKind:  ErrorKindContent,
			wantErr:   ErrNoTextExtracted,
			progress:  1,
		},
		{
			name:      "structuring timeout",
			ocr:       &fakeRecognizer{text: "text"},
			llm:       &fakeStructurer{err: digitalocean.ErrStructuringTimeout},
			wantPhase: PhaseStructuringRunning,
			wantKind:  ErrorKindTransport,
			wantErr:   digitalocean.ErrStructuringTimeout,
			progress:  2,
		},
		{
			name:      "unparsable reply",
			ocr:       &fakeRecognizer{text: "text"},
			llm:       &fakeStructurer{reply: "Sorry, I cannot help with that."},
			wantPhase: PhaseValidating,
			wantKind:  ErrorKindContent,
			wantErr:   llmjson.ErrUnparsable,
			progress:  3,
		},
		{
			name:      "schema violation",
			ocr:       &fakeRecognizer{text: "text"},
			llm:       &fakeStructurer{reply: `{"success":true,"data":{"courseName":"X"}}`},
			wantPhase: PhaseValidating,
			wantKind:  ErrorKindContent,
			wantErr:   ErrSchemaViolation,
			progress:  3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &eventRecorder{}
			result, err := newTestPipeline(tt.ocr, tt.llm).
				ProcessDocument(context.Background(), []byte(tt.name), "doc.pdf", rec.emit)
			require.Error(t, err)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, tt.wantErr)

			var perr *PipelineError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.wantPhase, perr.Phase)
			assert.Equal(t, tt.wantKind, perr.Kind)

			require.Len(t, rec.events, tt.progress+1)
			last := rec.events[len(rec.events)-1]
			assert.Equal(t, EventError, last.Type)
			require.NotNil(t, last.Error)
			assert.Equal(t, UserMessage(tt.wantErr), last.Error.Message)
		})
	}
}

func TestProcessDocument_FailureIsNotCached(t *testing.T) {
	ocr := &fakeRecognizer{err: ErrOCRService}
	llm := &fakeStructurer{}
	cache := NewMemoryResultCache(time.Hour)
	p := newTestPipeline(ocr, llm, WithResultCache(cache))

	_, err := p.ProcessDocument(context.Background(), []byte("x"), "x.jpg", nil)
	require.Error(t, err)
	assert.Equal(t, 0, cache.Len())
	assert.Equal(t, 0, llm.calls)
}

func TestProcessDocument_DetachedClientStillCompletes(t *testing.T) {
	ocr := &fakeRecognizer{text: "text"}
	llm := &fakeStructurer{reply: `{"success":true,"data":{"events":[]}}`}
	rec := &eventRecorder{failAt: 1}

	result, err := newTestPipeline(ocr, llm).ProcessDocument(context.Background(), []byte("d"), "d.pdf", rec.emit)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Empty(t, result.Data.Events)
	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, 1, llm.calls)
}
