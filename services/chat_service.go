package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sahilchouksey/syllabus-sync/model"
	"github.com/sahilchouksey/syllabus-sync/utils/dateparse"
)

const chatAnswerTimeout = 30 * time.Second

// ChatReply is the assistant's answer to one message
type ChatReply struct {
	Intent             model.Intent `json:"intent"`
	Reply              string       `json:"reply"`
	Task               *model.Task  `json:"task,omitempty"`
	NeedsClarification bool         `json:"needsClarification,omitempty"`
}

// ChatService answers chat messages by routing them through the intent classifier
type ChatService struct {
	intents *IntentService
	llm     Structurer
	tasks   *TaskService
	logger  *zap.Logger
	now     func() time.Time
}

func NewChatService(intents *IntentService, llm Structurer, tasks *TaskService, logger *zap.Logger) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{
		intents: intents,
		llm:     llm,
		tasks:   tasks,
		logger:  logger,
		now:     time.Now,
	}
}

// Handle classifies message and acts on it for userID
func (s *ChatService) Handle(ctx context.Context, userID uint, message string) (*ChatReply, error) {
	intent := s.intents.DetectIntent(ctx, message)
	log := s.logger.With(zap.Uint("user_id", userID), zap.String("intent", string(intent.Intent)))

	switch intent.Intent {
	case model.IntentCreateAssignment:
		return s.create(ctx, userID, intent.Params, log)
	case model.IntentDeleteAssignment:
		return s.delete(ctx, userID, intent.Params, log)
	}
	return s.answer(ctx, userID, message, log)
}

func (s *ChatService) answer(ctx context.Context, userID uint, question string, log *zap.Logger) (*ChatReply, error) {
	upcoming, err := s.tasks.Upcoming(ctx, userID, maxChatTasks)
	if err != nil {
		return nil, err
	}

	reply := &ChatReply{Intent: model.IntentQuery}
	ctx, cancel := context.WithTimeout(ctx, chatAnswerTimeout)
	defer cancel()

	text, err := s.llm.Structure(ctx, BuildChatUserPrompt(question, upcoming, s.now()), ChatAnswerPrompt)
	if err != nil || strings.TrimSpace(text) == "" {
		log.Warn("chat answer unavailable, replying with a summary", zap.Error(err))
		reply.Reply = summarizeUpcoming(upcoming)
		return reply, nil
	}
	reply.Reply = strings.TrimSpace(text)
	return reply, nil
}

func (s *ChatService) create(ctx context.Context, userID uint, params model.IntentParams, log *zap.Logger) (*ChatReply, error) {
	reply := &ChatReply{Intent: model.IntentCreateAssignment}

	if params.DueDate == nil {
		reply.NeedsClarification = true
		reply.Reply = fmt.Sprintf("When is %q due?", params.Title)
		return reply, nil
	}
	due, ok := dateparse.Parse(*params.DueDate, s.now())
	if !ok {
		reply.NeedsClarification = true
		reply.Reply = fmt.Sprintf("I couldn't understand the date %q. Could you give it like \"next Friday\" or \"24 Nov\"?", *params.DueDate)
		return reply, nil
	}

	req := CreateTaskRequest{
		Type:    model.TaskTypeAssignment,
		Title:   params.Title,
		DueDate: due,
	}
	if params.CourseName != nil {
		req.CourseName = *params.CourseName
	}
	task, err := s.tasks.Create(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	log.Info("assignment created from chat", zap.Uint("task_id", task.ID))
	reply.Task = task
	reply.Reply = fmt.Sprintf("Added %q, due %s.", task.Title, task.DueDate.Format("Mon, Jan 2"))
	return reply, nil
}

func (s *ChatService) delete(ctx context.Context, userID uint, params model.IntentParams, log *zap.Logger) (*ChatReply, error) {
	reply := &ChatReply{Intent: model.IntentDeleteAssignment}

	tasks, err := s.tasks.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	target := BestTaskMatch(tasks, params.Title, params.CourseName)
	if target == nil {
		reply.Reply = fmt.Sprintf("I couldn't find an assignment matching %q.", params.Title)
		return reply, nil
	}

	if err := s.tasks.Delete(ctx, userID, target.ID); err != nil {
		return nil, err
	}
	log.Info("assignment deleted from chat", zap.Uint("task_id", target.ID))
	reply.Task = target
	reply.Reply = fmt.Sprintf("Deleted %q.", target.Title)
	return reply, nil
}

// BestTaskMatch picks the assignment whose title best matches title, preferring tasks of the named
// course. It returns nil when no title shares a word with title.
func BestTaskMatch(tasks []model.Task, title string, courseName *string) *model.Task {
	want := titleWords(title)
	if len(want) == 0 {
		return nil
	}
	needle := strings.ToLower(strings.TrimSpace(title))

	var best *model.Task
	bestScore := 0.0
	for i := range tasks {
		t := &tasks[i]
		if t.Type != model.TaskTypeAssignment {
			continue
		}
		score := overlap(want, titleWords(t.Title))
		if score == 0 {
			continue
		}
		if strings.Contains(strings.ToLower(t.Title), needle) {
			score += 1
		}
		if courseName != nil && t.Course != nil && strings.EqualFold(t.Course.Name, strings.TrimSpace(*courseName)) {
			score += 0.5
		}
		// ties go to the task due soonest, which is the one the user most likely means
		if score > bestScore || (score == bestScore && best != nil && t.DueDate.Before(best.DueDate)) {
			best, bestScore = t, score
		}
	}
	return best
}

func titleWords(s string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		words[w] = struct{}{}
	}
	return words
}

// overlap is the Jaccard similarity of two word sets
func overlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for w := range a {
		if _, ok := b[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(a)+len(b)-shared)
}

func summarizeUpcoming(tasks []model.Task) string {
	if len(tasks) == 0 {
		return "You have nothing coming up."
	}
	next := tasks[0]
	return fmt.Sprintf("You have %d upcoming item(s). Next: %q due %s.",
		len(tasks), next.Title, next.DueDate.UTC().Format("Mon, Jan 2 15:04 UTC"))
}

