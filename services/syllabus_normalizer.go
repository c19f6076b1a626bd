package services

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	anydate "github.com/araddon/dateparse"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/sahilchouksey/syllabus-sync/model"
	"github.com/sahilchouksey/syllabus-sync/utils/validation"
)

// ErrSchemaViolation means the parsed object does not have the syllabus extraction shape
var ErrSchemaViolation = errors.New("extraction does not match the syllabus schema")

const (
	// MaxDescriptionLength is measured in runes
	MaxDescriptionLength = 300

	// DueDateLayout is ISO-8601 UTC with milliseconds
	DueDateLayout  = "2006-01-02T15:04:05.000Z"
	dateOnlyLayout = "2006-01-02"
)

var (
	markdownLink = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	uiNoise      = regexp.MustCompile(`(?i)\b(click here|view details|submit assignment|download (?:pdf|file|here|attachment)|opens in a new window|view rubric|read more)\b`)
	examWords    = regexp.MustCompile(`(?i)\b(exams?|midterms?|finals?|tests?)\b`)
)

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// NormalizeReport describes what the normalizer did with the events it received
type NormalizeReport struct {
	Received int
	Kept     int
	Dropped  int
	// Reasons is keyed by event index
	Reasons map[int]string
}

// SyllabusNormalizer validates a parsed extraction object and coerces it into NormalizedSyllabusData
type SyllabusNormalizer struct {
	validator *validation.Validator
	logger    *zap.Logger
	now       func() time.Time
}

// NewSyllabusNormalizer creates a normalizer
func NewSyllabusNormalizer(logger *zap.Logger) *SyllabusNormalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyllabusNormalizer{
		validator: validation.NewValidator(),
		logger:    logger,
		now:       time.Now,
	}
}

var defaultNormalizer = NewSyllabusNormalizer(nil)

// NormalizeSyllabus normalizes obj with a default normalizer
func NormalizeSyllabus(obj map[string]any) (*model.NormalizedSyllabusData, error) {
	data, _, err := defaultNormalizer.Normalize(obj)
	return data, err
}

// Normalize requires data and data.events; individual events without a usable title or due date
// are dropped and reported rather than failing the whole extraction.
func (n *SyllabusNormalizer) Normalize(obj map[string]any) (*model.NormalizedSyllabusData, NormalizeReport, error) {
	report := NormalizeReport{Reasons: map[int]string{}}

	if success, ok := obj["success"].(bool); ok && !success {
		return nil, report, fmt.Errorf("%w: model reported success=false", ErrSchemaViolation)
	}

	data, ok := obj["data"].(map[string]any)
	if !ok {
		return nil, report, fmt.Errorf("%w: data must be an object", ErrSchemaViolation)
	}
	rawEvents, ok := data["events"].([]any)
	if !ok {
		return nil, report, fmt.Errorf("%w: data.events must be an array", ErrSchemaViolation)
	}

	out := &model.NormalizedSyllabusData{
		CourseName: model.CourseNameUnknown,
		Events:     make([]model.SyllabusEvent, 0, len(rawEvents)),
	}
	if name := stringField(data, "courseName"); name != "" {
		out.CourseName = name
	}
	if instructor := stringField(data, "instructor"); instructor != "" {
		out.Instructor = &instructor
	}
	out.StartDate = n.calendarDate(stringField(data, "startDate"))
	out.EndDate = n.calendarDate(stringField(data, "endDate"))

	report.Received = len(rawEvents)
	for i, raw := range rawEvents {
		event, reason := n.normalizeEvent(raw)
		if reason == "" {
			if err := n.validator.ValidateStruct(event); err != nil {
				reason = fmt.Sprintf("invalid event: %v", err)
			}
		}
		if reason != "" {
			report.Dropped++
			report.Reasons[i] = reason
			continue
		}
		out.Events = append(out.Events, event)
	}
	report.Kept = len(out.Events)

	if report.Dropped > 0 {
		n.logger.Info("dropped unusable syllabus events",
			zap.Int("received", report.Received),
			zap.Int("dropped", report.Dropped),
			zap.Any("reasons", report.Reasons),
		)
	}

	return out, report, nil
}

func (n *SyllabusNormalizer) normalizeEvent(raw any) (model.SyllabusEvent, string) {
	fields, ok := raw.(map[string]any)
	if !ok {
		return model.SyllabusEvent{}, "event is not an object"
	}

	title := strings.Join(strings.Fields(stringField(fields, "title")), " ")
	if title == "" {
		return model.SyllabusEvent{}, "missing title"
	}

	eventType := CoerceEventType(stringField(fields, "type"))

	due, ok := n.DueDate(stringField(fields, "dueDate"), eventType)
	if !ok {
		return model.SyllabusEvent{}, "missing or unparseable dueDate"
	}

	return model.SyllabusEvent{
		Type:        eventType,
		Title:       title,
		DueDate:     due,
		Description: CleanDescription(stringField(fields, "description")),
	}, ""
}

// CoerceEventType maps free-form type labels onto assignment or exam
func CoerceEventType(label string) model.EventType {
	if examWords.MatchString(label) {
		return model.EventTypeExam
	}
	return model.EventTypeAssignment
}

// DueDate parses s and formats it as ISO-8601 UTC. Date-only values get the default time for the
// event type: 23:59 for assignments, 09:00 for exams.
func (n *SyllabusNormalizer) DueDate(s string, eventType model.EventType) (string, bool) {
	t, hasTime, ok := n.parseDate(s)
	if !ok {
		return "", false
	}
	if !hasTime {
		hour, minute := 23, 59
		if eventType == model.EventTypeExam {
			hour, minute = 9, 0
		}
		t = time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, time.UTC)
	}
	return t.UTC().Format(DueDateLayout), true
}

func (n *SyllabusNormalizer) calendarDate(s string) *string {
	t, _, ok := n.parseDate(s)
	if !ok {
		return nil
	}
	d := t.Format(dateOnlyLayout)
	return &d
}

// parseDate reads ISO forms first and falls back to a generic parser. Values without an offset
// are taken as UTC.
func (n *SyllabusNormalizer) parseDate(s string) (time.Time, bool, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, false
	}
	if t, err := time.Parse(dateOnlyLayout, s); err == nil {
		return t, false, true
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true, true
		}
	}

	t, err := anydate.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, false, false
	}
	if t.Year() < 1000 {
		t = time.Date(n.now().Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
	}
	hasTime := t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0
	return t, hasTime, true
}

// CleanDescription strips HTML and markdown links, removes UI boilerplate phrases, collapses
// whitespace and caps the result at MaxDescriptionLength runes.
func CleanDescription(s string) string {
	if strings.ContainsAny(s, "<&") {
		s = stripHTML(s)
	}
	s = markdownLink.ReplaceAllString(s, "$1")
	s = uiNoise.ReplaceAllString(s, " ")
	s = strings.Join(strings.Fields(s), " ")
	s = strings.Trim(s, " -|:")

	if utf8.RuneCountInString(s) > MaxDescriptionLength {
		runes := []rune(s)
		s = strings.TrimSpace(string(runes[:MaxDescriptionLength-3])) + "..."
	}
	return s
}

func stripHTML(s string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style":
				skip++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style":
				if skip > 0 {
					skip--
				}
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		}
	}
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return fmt.Sprintf("%v", v)
	}
	return ""
}
