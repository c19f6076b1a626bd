package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sahilchouksey/syllabus-sync/model"
	"github.com/sahilchouksey/syllabus-sync/utils/validation"
)

var (
	// ErrExamNotTrackable is returned when completing an exam; only assignments track status
	ErrExamNotTrackable = errors.New("exams do not track completion")
	// ErrInvalidDueDate is returned when a due date cannot be read
	ErrInvalidDueDate = errors.New("due date is not a valid date")
)

// TaskStore is the persistence TaskService needs
type TaskStore interface {
	Create(ctx context.Context, task *model.Task) error
	ListByUser(ctx context.Context, userID uint) ([]model.Task, error)
	ListUpcoming(ctx context.Context, userID uint, from time.Time, limit int) ([]model.Task, error)
	FindForUser(ctx context.Context, id, userID uint) (*model.Task, error)
	Complete(ctx context.Context, id, userID uint, at time.Time) error
	Delete(ctx context.Context, id, userID uint) error
	ImportCourse(ctx context.Context, course *model.Course, tasks []model.Task) error
	FindCourseByName(ctx context.Context, userID uint, name string) (*model.Course, error)
}

// CreateTaskRequest is the body of a manual task creation
type CreateTaskRequest struct {
	Type        model.TaskType `json:"type" validate:"omitempty,oneof=assignment exam"`
	Title       string         `json:"title" validate:"required,max=200"`
	Description string         `json:"description" validate:"max=300"`
	DueDate     string         `json:"dueDate" validate:"required"`
	CourseName  string         `json:"courseName" validate:"max=200"`
}

// TaskStats summarizes a user's tasks together with the completion streak
type TaskStats struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	Pending    int `json:"pending"`
	Overdue    int `json:"overdue"`
	Exams      int `json:"exams"`
	Streak     int `json:"streak"`
	BestStreak int `json:"bestStreak"`
}

// TaskService manages assignments and exams
type TaskService struct {
	tasks      TaskStore
	documents  *DocumentService
	streaks    *StreakService
	validator  *validation.Validator
	normalizer *SyllabusNormalizer
	logger     *zap.Logger
	now        func() time.Time
}

func NewTaskService(tasks TaskStore, documents *DocumentService, streaks *StreakService, logger *zap.Logger) *TaskService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskService{
		tasks:      tasks,
		documents:  documents,
		streaks:    streaks,
		validator:  validation.NewValidator(),
		normalizer: NewSyllabusNormalizer(logger),
		logger:     logger,
		now:        time.Now,
	}
}

func (s *TaskService) List(ctx context.Context, userID uint) ([]model.Task, error) {
	return s.tasks.ListByUser(ctx, userID)
}

// Upcoming lists tasks due from now on
func (s *TaskService) Upcoming(ctx context.Context, userID uint, limit int) ([]model.Task, error) {
	return s.tasks.ListUpcoming(ctx, userID, startOfDay(s.now()), limit)
}

// Create validates req and stores a new task. Date-only due dates get 23:59 for assignments
// and 09:00 for exams. A course name attaches the user's course of that name when one exists.
func (s *TaskService) Create(ctx context.Context, userID uint, req CreateTaskRequest) (*model.Task, error) {
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}
	if req.Type == "" {
		req.Type = model.TaskTypeAssignment
	}

	eventType := model.EventTypeAssignment
	if req.Type == model.TaskTypeExam {
		eventType = model.EventTypeExam
	}
	formatted, ok := s.normalizer.DueDate(req.DueDate, eventType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDueDate, req.DueDate)
	}
	due, err := time.Parse(DueDateLayout, formatted)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDueDate, req.DueDate)
	}

	task := &model.Task{
		UserID:      userID,
		Type:        req.Type,
		Title:       strings.TrimSpace(req.Title),
		Description: CleanDescription(req.Description),
		DueDate:     due,
		Status:      model.TaskStatusPending,
	}
	if name := strings.TrimSpace(req.CourseName); name != "" {
		course, err := s.tasks.FindCourseByName(ctx, userID, name)
		if err == nil {
			task.CourseID = &course.ID
		} else {
			s.logger.Debug("no course matched task", zap.String("course_name", name), zap.Error(err))
		}
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// Complete marks an assignment done now
func (s *TaskService) Complete(ctx context.Context, userID, id uint) (*model.Task, error) {
	task, err := s.tasks.FindForUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if task.Type == model.TaskTypeExam {
		return nil, ErrExamNotTrackable
	}
	if task.IsCompleted() {
		return task, nil
	}

	at := s.now().UTC()
	if err := s.tasks.Complete(ctx, id, userID, at); err != nil {
		return nil, err
	}
	task.Status = model.TaskStatusCompleted
	task.CompletedAt = &at
	return task, nil
}

func (s *TaskService) Delete(ctx context.Context, userID, id uint) error {
	return s.tasks.Delete(ctx, id, userID)
}

// Stats counts the user's tasks and refreshes the streak
func (s *TaskService) Stats(ctx context.Context, userID uint) (TaskStats, error) {
	tasks, err := s.tasks.ListByUser(ctx, userID)
	if err != nil {
		return TaskStats{}, err
	}

	now := s.now()
	var stats TaskStats
	for _, t := range tasks {
		stats.Total++
		switch {
		case t.Type == model.TaskTypeExam:
			stats.Exams++
		case t.IsCompleted():
			stats.Completed++
		default:
			stats.Pending++
			if t.DueDate.Before(now) {
				stats.Overdue++
			}
		}
	}

	streak, err := s.streaks.GetStreak(ctx, userID, now)
	if err != nil {
		return TaskStats{}, err
	}
	stats.Streak = streak.Streak
	stats.BestStreak = streak.BestStreak
	return stats, nil
}

// ImportResult is what importing a processed syllabus created
type ImportResult struct {
	Course *model.Course `json:"course"`
	Tasks  []model.Task  `json:"tasks"`
}

// ImportSyllabus turns a completed document's extraction into a course with one task per event
func (s *TaskService) ImportSyllabus(ctx context.Context, userID uint, documentID string) (*ImportResult, error) {
	doc, extraction, err := s.documents.Extraction(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}
	data := extraction.Data

	course := &model.Course{
		UserID:     userID,
		Name:       data.CourseName,
		Instructor: data.Instructor,
		StartDate:  parseCalendarDate(data.StartDate),
		EndDate:    parseCalendarDate(data.EndDate),
		DocumentID: &doc.ID,
	}
	if course.Name == "" {
		course.Name = model.CourseNameUnknown
	}

	tasks := make([]model.Task, 0, len(data.Events))
	for _, ev := range data.Events {
		due, err := time.Parse(DueDateLayout, ev.DueDate)
		if err != nil {
			s.logger.Warn("skipping event with unreadable due date",
				zap.String("document_id", doc.ID),
				zap.String("due_date", ev.DueDate),
			)
			continue
		}
		tasks = append(tasks, model.Task{
			UserID:      userID,
			Type:        ev.Type.TaskType(),
			Title:       ev.Title,
			Description: ev.Description,
			DueDate:     due,
			Status:      model.TaskStatusPending,
		})
	}

	if err := s.tasks.ImportCourse(ctx, course, tasks); err != nil {
		return nil, err
	}
	s.logger.Info("syllabus imported",
		zap.String("document_id", doc.ID),
		zap.Uint("course_id", course.ID),
		zap.Int("tasks", len(tasks)),
	)
	return &ImportResult{Course: course, Tasks: tasks}, nil
}

func parseCalendarDate(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, err := time.Parse(dateOnlyLayout, *s)
	if err != nil {
		return nil
	}
	return &t
}
