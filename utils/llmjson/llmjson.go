// Package llmjson turns chat-completion output into JSON objects.
//
// Model output is parsed in two attempts: a strict parse of the outermost {...} span, then a
// single retry after Repair has fixed the malformations models reliably produce. Repair is
// deliberately narrow (see Repair) so genuine structural damage still surfaces as an error.
package llmjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrNoJSONObject is returned when the response contains no {...} span at all
	ErrNoJSONObject = errors.New("no JSON object found in response")

	// ErrUnparsable matches every UnparsableError through errors.Is
	ErrUnparsable = errors.New("unparsable model response")
)

// UnparsableError carries the raw model text so failures can be logged and debugged
type UnparsableError struct {
	Raw       string
	StrictErr error
	RepairErr error
}

func (e *UnparsableError) Error() string {
	if e.RepairErr == nil {
		return fmt.Sprintf("%s: %v", ErrUnparsable, e.StrictErr)
	}
	return fmt.Sprintf("%s: strict parse: %v; after repair: %v", ErrUnparsable, e.StrictErr, e.RepairErr)
}

func (e *UnparsableError) Unwrap() []error {
	errs := []error{ErrUnparsable}
	if e.StrictErr != nil {
		errs = append(errs, e.StrictErr)
	}
	return errs
}

// Result is a successfully parsed object
type Result struct {
	Object map[string]any
	// JSON is the exact text that parsed, after repair when Repaired is set
	JSON     string
	Repaired bool
}

var fenceMarker = regexp.MustCompile("```[A-Za-z0-9_-]*")

// TrimFences removes a leading ```json / ``` marker and a trailing ``` marker
func TrimFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		// drop the language tag on the opening fence
		if idx := strings.IndexAny(s, "\r\n"); idx != -1 && !strings.ContainsAny(s[:idx], "{[\"") {
			s = s[idx:]
		} else {
			s = strings.TrimPrefix(s, "json")
			s = strings.TrimPrefix(s, "JSON")
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// StripFences removes every code-fence marker, wherever it appears
func StripFences(s string) string {
	return strings.TrimSpace(fenceMarker.ReplaceAllString(s, ""))
}

// SanitizeAndParse extracts the outermost JSON object from raw model output.
// It fails with *UnparsableError, which always carries raw.
func SanitizeAndParse(raw string) (Result, error) {
	cleaned := StripFences(raw)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end == -1 || end < start {
		return Result{}, &UnparsableError{Raw: raw, StrictErr: ErrNoJSONObject}
	}
	span := cleaned[start : end+1]

	var obj map[string]any
	strictErr := json.Unmarshal([]byte(span), &obj)
	if strictErr == nil {
		return Result{Object: obj, JSON: span}, nil
	}

	repaired := Repair(span)
	obj = nil
	if err := json.Unmarshal([]byte(repaired), &obj); err != nil {
		return Result{}, &UnparsableError{Raw: raw, StrictErr: strictErr, RepairErr: err}
	}
	return Result{Object: obj, JSON: repaired, Repaired: true}, nil
}

// Unmarshal runs SanitizeAndParse and decodes the parsed object into v.
// The boolean reports whether the repair pass was needed.
func Unmarshal(raw string, v any) (bool, error) {
	res, err := SanitizeAndParse(raw)
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(res.JSON), v); err != nil {
		return res.Repaired, &UnparsableError{Raw: raw, StrictErr: err}
	}
	return res.Repaired, nil
}
