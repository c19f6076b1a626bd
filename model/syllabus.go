package model

// EventType is the kind of obligation extracted from a syllabus
type EventType string

const (
	EventTypeAssignment EventType = "assignment"
	EventTypeExam       EventType = "exam"
)

// CourseNameUnknown is used when the model did not report a course name
const CourseNameUnknown = "N/A"

// SyllabusEvent is one extracted assignment or exam.
// DueDate is always an ISO-8601 UTC date-time with millisecond precision.
type SyllabusEvent struct {
	Type        EventType `json:"type" validate:"required,oneof=assignment exam"`
	Title       string    `json:"title" validate:"required"`
	DueDate     string    `json:"dueDate" validate:"required"`
	Description string    `json:"description" validate:"max=300"`
}

// NormalizedSyllabusData is the pipeline's output contract.
// Events is never nil once normalized so it always encodes as a JSON array.
type NormalizedSyllabusData struct {
	CourseName string          `json:"courseName"`
	Instructor *string         `json:"instructor"`
	StartDate  *string         `json:"startDate"`
	EndDate    *string         `json:"endDate"`
	Events     []SyllabusEvent `json:"events"`
}

// SyllabusExtraction is the wire envelope downstream CRUD consumes
type SyllabusExtraction struct {
	Success bool                   `json:"success"`
	Data    NormalizedSyllabusData `json:"data"`
}

// TaskType maps the event type onto the task it becomes when imported
func (t EventType) TaskType() TaskType {
	if t == EventTypeExam {
		return TaskTypeExam
	}
	return TaskTypeAssignment
}
