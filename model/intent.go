package model

import "strings"

// Intent is the action a chat message asks for
type Intent string

const (
	IntentQuery            Intent = "QUERY"
	IntentCreateAssignment Intent = "CREATE_ASSIGNMENT"
	IntentDeleteAssignment Intent = "DELETE_ASSIGNMENT"
)

// DefaultIntent is what any unknown or malformed classification collapses to.
// Mutations require a positive, well-formed classification; everything else is treated as a query.
const DefaultIntent = IntentQuery

// ParseIntent maps a classifier label onto a known Intent.
// The second return value is false when the label is not a member and DefaultIntent was substituted.
func ParseIntent(label string) (Intent, bool) {
	switch Intent(strings.ToUpper(strings.TrimSpace(label))) {
	case IntentQuery:
		return IntentQuery, true
	case IntentCreateAssignment:
		return IntentCreateAssignment, true
	case IntentDeleteAssignment:
		return IntentDeleteAssignment, true
	}
	return DefaultIntent, false
}

// IsMutation reports whether acting on the intent changes stored data
func (i Intent) IsMutation() bool {
	return i == IntentCreateAssignment || i == IntentDeleteAssignment
}

// IntentParams are the slots extracted alongside the intent
type IntentParams struct {
	Title      string  `json:"title,omitempty"`
	CourseName *string `json:"courseName,omitempty"`
	DueDate    *string `json:"dueDate,omitempty"`
}

// IntentResult is the Intent Router's output
type IntentResult struct {
	Intent Intent       `json:"intent"`
	Params IntentParams `json:"params"`
}

// DefaultIntentResult is the fail-safe classification: a query with no slots
func DefaultIntentResult() IntentResult {
	return IntentResult{Intent: DefaultIntent, Params: IntentParams{}}
}
