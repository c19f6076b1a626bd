package services

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sahilchouksey/syllabus-sync/model"
	"github.com/sahilchouksey/syllabus-sync/utils/llmjson"
	"github.com/sahilchouksey/syllabus-sync/utils/metrics"
)

const classificationTimeout = 20 * time.Second

// IntentService routes chat messages to QUERY, CREATE_ASSIGNMENT or DELETE_ASSIGNMENT
type IntentService struct {
	llm     Structurer
	metrics *metrics.PipelineMetrics
	logger  *zap.Logger
}

// NewIntentService creates an IntentService; metrics may be nil
func NewIntentService(llm Structurer, logger *zap.Logger, m *metrics.PipelineMetrics) *IntentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntentService{llm: llm, metrics: m, logger: logger}
}

// DetectIntent classifies message. It never fails: any upstream error, unparsable reply, unknown
// intent or mutation without a title yields model.DefaultIntentResult().
func (s *IntentService) DetectIntent(ctx context.Context, message string) model.IntentResult {
	message = strings.TrimSpace(message)
	if message == "" {
		return s.fallback("empty message", "")
	}

	ctx, cancel := context.WithTimeout(ctx, classificationTimeout)
	defer cancel()

	raw, err := s.llm.Structure(ctx, message, IntentClassificationPrompt)
	if err != nil {
		s.logger.Warn("intent classification call failed", zap.Error(err))
		return s.fallback("classifier error", "")
	}

	parsed, err := llmjson.SanitizeAndParse(raw)
	if err != nil {
		return s.fallback("unparsable classifier reply", raw)
	}

	label, _ := parsed.Object["intent"].(string)
	intent, ok := model.ParseIntent(label)
	if !ok {
		return s.fallback("unknown intent "+label, raw)
	}

	result := model.IntentResult{Intent: intent}
	if intent.IsMutation() {
		params, _ := parsed.Object["params"].(map[string]any)
		result.Params = model.IntentParams{
			Title:      slotValue(params, "title"),
			CourseName: optionalSlot(params, "courseName"),
			DueDate:    optionalSlot(params, "dueDate"),
		}
		if result.Params.Title == "" {
			return s.fallback("mutation without title", raw)
		}
	}

	s.metrics.RecordIntent(string(result.Intent), false)
	return result
}

func (s *IntentService) fallback(reason, raw string) model.IntentResult {
	s.logger.Info("intent fell back to default",
		zap.String("reason", reason),
		zap.String("raw_response", raw),
	)
	result := model.DefaultIntentResult()
	s.metrics.RecordIntent(string(result.Intent), true)
	return result
}

func slotValue(params map[string]any, key string) string {
	v, _ := params[key].(string)
	v = strings.Join(strings.Fields(v), " ")
	switch strings.ToLower(v) {
	case "null", "none", "n/a":
		return ""
	}
	return v
}

func optionalSlot(params map[string]any, key string) *string {
	v := slotValue(params, key)
	if v == "" {
		return nil
	}
	return &v
}
