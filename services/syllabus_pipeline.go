package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sahilchouksey/syllabus-sync/model"
	"github.com/sahilchouksey/syllabus-sync/services/digitalocean"
	"github.com/sahilchouksey/syllabus-sync/utils/llmjson"
	"github.com/sahilchouksey/syllabus-sync/utils/metrics"
)

// TextRecognizer is the OCR side of the pipeline
type TextRecognizer interface {
	ExtractText(ctx context.Context, fileBytes []byte, fileName string) (string, error)
}

// Structurer is the LLM side of the pipeline
type Structurer interface {
	Structure(ctx context.Context, userText, systemPrompt string) (string, error)
}

// PipelineError records the phase a run failed in
type PipelineError struct {
	Phase Phase
	Kind  ErrorKind
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// SyllabusPipeline runs OCR, structuring, sanitizing and normalization for one document,
// narrating progress through a ProgressStream.
type SyllabusPipeline struct {
	ocr        TextRecognizer
	llm        Structurer
	normalizer *SyllabusNormalizer
	cache      ResultCache
	metrics    *metrics.PipelineMetrics
	logger     *zap.Logger
	now        func() time.Time
}

// PipelineOption configures a SyllabusPipeline
type PipelineOption func(*SyllabusPipeline)

// WithResultCache replaces the default in-memory cache
func WithResultCache(c ResultCache) PipelineOption {
	return func(p *SyllabusPipeline) {
		p.cache = c
	}
}

func WithPipelineMetrics(m *metrics.PipelineMetrics) PipelineOption {
	return func(p *SyllabusPipeline) {
		p.metrics = m
	}
}

func WithPipelineLogger(l *zap.Logger) PipelineOption {
	return func(p *SyllabusPipeline) {
		p.logger = l
	}
}

// WithClock sets the reference time source used to resolve partial dates
func WithClock(now func() time.Time) PipelineOption {
	return func(p *SyllabusPipeline) {
		p.now = now
	}
}

// NewSyllabusPipeline creates a pipeline with an in-memory result cache unless one is given
func NewSyllabusPipeline(ocr TextRecognizer, llm Structurer, opts ...PipelineOption) *SyllabusPipeline {
	p := &SyllabusPipeline{
		ocr:    ocr,
		llm:    llm,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.cache == nil {
		p.cache = NewMemoryResultCache(DefaultResultCacheTTL)
	}
	if p.normalizer == nil {
		p.normalizer = NewSyllabusNormalizer(p.logger)
		p.normalizer.now = p.now
	}
	return p
}

// ProcessDocument runs the pipeline. emit receives three progress events and then exactly one
// terminal event; a failing emit stops delivery without stopping the run. The returned error is
// a *PipelineError.
func (p *SyllabusPipeline) ProcessDocument(ctx context.Context, fileBytes []byte, fileName string, emit EmitFunc) (*model.SyllabusExtraction, error) {
	hash := ContentHash(fileBytes)
	log := p.logger.With(zap.String("file_name", fileName), zap.String("content_hash", hash[:12]))

	stream := NewProgressStream(emit, log)
	stream.OnPhaseComplete(func(phase Phase, elapsed time.Duration) {
		p.metrics.ObservePhase(string(phase), elapsed)
	})

	advance := func(next Phase) {
		if err := stream.Advance(next); err != nil {
			log.Error("pipeline phase order violated", zap.Error(err))
		}
	}

	if cached, ok := p.cache.Get(ctx, hash); ok {
		p.metrics.RecordCacheLookup(true)
		log.Info("result cache hit, skipping OCR and structuring")
		advance(PhaseValidating)
		return p.succeed(stream, log, cached)
	}
	p.metrics.RecordCacheLookup(false)

	advance(PhaseOCRRunning)
	text, err := p.ocr.ExtractText(ctx, fileBytes, fileName)
	if err != nil {
		return nil, p.fail(stream, log, PhaseOCRRunning, err)
	}
	advance(PhaseOCRDone)
	log.Debug("OCR finished", zap.Int("text_length", len(text)))

	advance(PhaseStructuringRunning)
	raw, err := p.llm.Structure(ctx, BuildSyllabusUserPrompt(text, p.now()), SyllabusExtractionPrompt)
	if err != nil {
		return nil, p.fail(stream, log, PhaseStructuringRunning, err)
	}
	advance(PhaseStructuringDone)

	advance(PhaseValidating)
	parsed, err := llmjson.SanitizeAndParse(raw)
	if err != nil {
		return nil, p.fail(stream, log, PhaseValidating, err)
	}
	if parsed.Repaired {
		log.Info("model response needed JSON repair")
	}

	data, report, err := p.normalizer.Normalize(parsed.Object)
	if err != nil {
		return nil, p.fail(stream, log, PhaseValidating, fmt.Errorf("%w (raw: %s)", err, parsed.JSON))
	}
	p.metrics.RecordDroppedEvents(report.Dropped)

	p.cache.Set(ctx, hash, data)
	return p.succeed(stream, log, data)
}

func (p *SyllabusPipeline) succeed(stream *ProgressStream, log *zap.Logger, data *model.NormalizedSyllabusData) (*model.SyllabusExtraction, error) {
	result := &model.SyllabusExtraction{Success: true, Data: *data}
	if err := stream.Succeed(result); err != nil {
		log.Error("failed to close progress stream", zap.Error(err))
	}
	p.metrics.RecordOutcome(true, "")
	log.Info("syllabus processed",
		zap.Int("events", len(data.Events)),
		zap.Duration("elapsed", stream.Elapsed()),
		zap.Bool("client_detached", stream.Detached()),
	)
	return result, nil
}

func (p *SyllabusPipeline) fail(stream *ProgressStream, log *zap.Logger, phase Phase, err error) error {
	kind := ClassifyPipelineError(err)
	fields := []zap.Field{
		zap.String("phase", string(phase)),
		zap.String("error_kind", string(kind)),
		zap.Error(err),
	}

	var apiErr *digitalocean.APIError
	var ocrErr *OCRStatusError
	var parseErr *llmjson.UnparsableError
	switch {
	case errors.As(err, &apiErr):
		fields = append(fields, zap.Int("status_code", apiErr.StatusCode), zap.String("body", apiErr.Body))
	case errors.As(err, &ocrErr):
		fields = append(fields, zap.Int("status_code", ocrErr.StatusCode), zap.String("body", ocrErr.Body))
	case errors.As(err, &parseErr):
		fields = append(fields, zap.String("raw_response", parseErr.Raw))
	}
	log.Warn("syllabus pipeline failed", fields...)

	if ferr := stream.Fail(UserMessage(err)); ferr != nil {
		log.Error("failed to close progress stream", zap.Error(ferr))
	}
	p.metrics.RecordOutcome(false, string(kind))
	return &PipelineError{Phase: phase, Kind: kind, Err: err}
}
