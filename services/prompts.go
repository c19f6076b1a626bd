package services

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sahilchouksey/syllabus-sync/model"
)

// SyllabusExtractionPrompt instructs the model to return the syllabus extraction envelope
const SyllabusExtractionPrompt = `You are an expert at extracting deadlines from academic syllabi and course outlines.

Read the syllabus text and return ONE JSON object with exactly this shape:
{
  "success": true,
  "data": {
    "courseName": string,
    "instructor": string or null,
    "startDate": "YYYY-MM-DD" or null,
    "endDate": "YYYY-MM-DD" or null,
    "events": [
      { "type": "assignment" or "exam", "title": string, "dueDate": "YYYY-MM-DDTHH:MM:SS" or "YYYY-MM-DD", "description": string }
    ]
  }
}

Important guidelines:
- Include every graded deliverable: homework, projects, essays, labs, quizzes are "assignment"; midterms, finals and tests are "exam"
- Use the reference date given to resolve dates without a year
- Include a time in dueDate only when the syllabus states one (e.g. "5pm" becomes 17:00:00)
- Keep descriptions short and plain text, with no links or navigation text
- If the text contains no deadlines, return an empty events array
- Use null for unknown instructor, startDate and endDate
- Respond with the JSON object only, without markdown or commentary`

// IntentClassificationPrompt instructs the model to classify a chat message
const IntentClassificationPrompt = `You classify messages sent to a student's assignment tracker.

Return ONE JSON object: {"intent": INTENT, "params": {"title": string, "courseName": string or null, "dueDate": string or null}}

INTENT is exactly one of:
- "QUERY": a question about existing assignments, exams or schedule, or anything else
- "CREATE_ASSIGNMENT": the user wants to add a new assignment
- "DELETE_ASSIGNMENT": the user wants to remove an existing assignment

Slot rules:
- title: the assignment name without filler words such as "the", "my", "assignment" or "add"
- courseName: the text following "to", "for" or "in" that names a course, or the word right before "assignment" when it names a course; otherwise null
- dueDate: the date phrase exactly as the user wrote it (e.g. "tomorrow", "next Friday", "24 Nov"); otherwise null
- For QUERY return "params": {}

Respond with the JSON object only, without markdown or commentary.`

// maxStructuringInput bounds the OCR text sent to the model
const maxStructuringInput = 48000

// BuildSyllabusUserPrompt wraps OCR text with the reference date used to resolve partial dates
func BuildSyllabusUserPrompt(text string, ref time.Time) string {
	return fmt.Sprintf("Reference date: %s\n\nSyllabus text:\n%s", ref.Format("2006-01-02"), truncateBytes(text, maxStructuringInput))
}

// truncateBytes cuts s to at most limit bytes without splitting a rune
func truncateBytes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// ChatAnswerPrompt instructs the model to answer schedule questions from the listed tasks only
const ChatAnswerPrompt = `You are a concise study assistant. Answer the student's question using only the tasks listed in the message.
If the list does not contain the answer, say so. Mention due dates in a readable form such as "Fri, Oct 24". Reply in plain text without markdown tables.`

// maxChatTasks bounds how many upcoming tasks are listed for a QUERY answer
const maxChatTasks = 50

// BuildChatUserPrompt lists tasks ahead of the student's question
func BuildChatUserPrompt(question string, tasks []model.Task, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Today is %s.\n\nTasks:\n", now.Format("Monday, 2006-01-02"))
	if len(tasks) == 0 {
		b.WriteString("(none)\n")
	}
	for _, t := range tasks {
		course := ""
		if t.Course != nil {
			course = " (" + t.Course.Name + ")"
		}
		status := string(t.Status)
		if t.Type == model.TaskTypeExam {
			status = "scheduled"
		}
		fmt.Fprintf(&b, "- [%s] %s%s due %s, %s\n", t.Type, t.Title, course, t.DueDate.UTC().Format("2006-01-02 15:04 UTC"), status)
	}
	fmt.Fprintf(&b, "\nQuestion: %s", question)
	return b.String()
}
