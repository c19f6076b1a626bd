package services

import (
	"context"
	"errors"

	"github.com/sahilchouksey/syllabus-sync/services/digitalocean"
	"github.com/sahilchouksey/syllabus-sync/utils/llmjson"
	"github.com/sahilchouksey/syllabus-sync/utils/resilience"
)

// ErrorKind separates upstream failures from unusable upstream output
type ErrorKind string

const (
	// ErrorKindTransport covers unreachable services, timeouts and non-2xx replies
	ErrorKindTransport ErrorKind = "transport"
	// ErrorKindContent means the upstream call succeeded but its output was unusable
	ErrorKindContent   ErrorKind = "content"
	ErrorKindInternal  ErrorKind = "internal"
)

// ClassifyPipelineError maps a pipeline failure onto its kind
func ClassifyPipelineError(err error) ErrorKind {
	var apiErr *digitalocean.APIError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoTextExtracted),
		errors.Is(err, llmjson.ErrUnparsable),
		errors.Is(err, ErrSchemaViolation):
		return ErrorKindContent
	case errors.Is(err, ErrOCRService),
		errors.Is(err, digitalocean.ErrStructuringTimeout),
		errors.As(err, &apiErr),
		resilience.IsOpen(err),
		errors.Is(err, context.DeadlineExceeded):
		return ErrorKindTransport
	}
	return ErrorKindInternal
}

// UserMessage is the text shown to the client for a pipeline failure. It never includes
// upstream bodies or internal error text.
func UserMessage(err error) string {
	var apiErr *digitalocean.APIError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoTextExtracted):
		return "We couldn't read any text from this document. Try a clearer scan or a text-based PDF."
	case errors.Is(err, llmjson.ErrUnparsable):
		return "We couldn't understand the extracted syllabus. Please try uploading again."
	case errors.Is(err, ErrSchemaViolation):
		return "The extracted syllabus was incomplete. Please try uploading again."
	case resilience.IsOpen(err):
		return "Syllabus processing is temporarily unavailable. Please try again in a minute."
	case errors.Is(err, digitalocean.ErrStructuringTimeout), errors.Is(err, context.DeadlineExceeded):
		return "Processing took too long. Please try again."
	case errors.Is(err, ErrOCRService):
		return "The text recognition service is unavailable. Please try again later."
	case errors.As(err, &apiErr):
		if apiErr.StatusCode == 429 {
			return "Too many requests right now. Please wait a moment and try again."
		}
		return "The syllabus analysis service is unavailable. Please try again later."
	}
	return "Something went wrong while processing your syllabus."
}
