package task

import (
	"context"
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sahilchouksey/syllabus-sync/database"
	"github.com/sahilchouksey/syllabus-sync/model"
	"github.com/sahilchouksey/syllabus-sync/services"
	"github.com/sahilchouksey/syllabus-sync/utils/middleware"
	"github.com/sahilchouksey/syllabus-sync/utils/response"
	"github.com/sahilchouksey/syllabus-sync/utils/validation"
)

const defaultUpcomingLimit = 20

// Tasks is the task workflow the handler drives
type Tasks interface {
	List(ctx context.Context, userID uint) ([]model.Task, error)
	Upcoming(ctx context.Context, userID uint, limit int) ([]model.Task, error)
	Create(ctx context.Context, userID uint, req services.CreateTaskRequest) (*model.Task, error)
	Complete(ctx context.Context, userID, id uint) (*model.Task, error)
	Delete(ctx context.Context, userID, id uint) error
	Stats(ctx context.Context, userID uint) (services.TaskStats, error)
}

// TaskHandler handles assignment and exam requests
type TaskHandler struct {
	tasks  Tasks
	logger *zap.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(tasks Tasks, logger *zap.Logger) *TaskHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskHandler{tasks: tasks, logger: logger}
}

// List handles GET /api/v1/tasks. ?upcoming=true limits the list to tasks due from today.
func (h *TaskHandler) List(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	var (
		tasks []model.Task
		err   error
	)
	if c.QueryBool("upcoming") {
		tasks, err = h.tasks.Upcoming(c.UserContext(), userID, c.QueryInt("limit", defaultUpcomingLimit))
	} else {
		tasks, err = h.tasks.List(c.UserContext(), userID)
	}
	if err != nil {
		h.logger.Error("failed to list tasks", zap.Uint("user_id", userID), zap.Error(err))
		return response.InternalServerError(c, "Failed to fetch tasks")
	}
	return response.Success(c, tasks)
}

// Create handles POST /api/v1/tasks
func (h *TaskHandler) Create(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	var req services.CreateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	created, err := h.tasks.Create(c.UserContext(), userID, req)
	if err != nil {
		var validationErrs validator.ValidationErrors
		switch {
		case errors.As(err, &validationErrs):
			return response.ValidationError(c, validation.FormatValidationErrors(err))
		case errors.Is(err, services.ErrInvalidDueDate):
			return response.ValidationError(c, map[string]string{"dueDate": "dueDate is not a valid date"})
		}
		h.logger.Error("failed to create task", zap.Uint("user_id", userID), zap.Error(err))
		return response.InternalServerError(c, "Failed to create task")
	}
	return response.Created(c, created)
}

// Complete handles PATCH /api/v1/tasks/:id/complete
func (h *TaskHandler) Complete(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}
	id, err := taskID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid task ID")
	}

	completed, err := h.tasks.Complete(c.UserContext(), userID, id)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			return response.NotFound(c, "Task not found")
		case errors.Is(err, services.ErrExamNotTrackable):
			return response.BadRequest(c, "Exams cannot be marked complete")
		}
		h.logger.Error("failed to complete task", zap.Uint("task_id", id), zap.Error(err))
		return response.InternalServerError(c, "Failed to complete task")
	}
	return response.Success(c, completed)
}

// Delete handles DELETE /api/v1/tasks/:id
func (h *TaskHandler) Delete(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}
	id, err := taskID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid task ID")
	}

	if err := h.tasks.Delete(c.UserContext(), userID, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return response.NotFound(c, "Task not found")
		}
		h.logger.Error("failed to delete task", zap.Uint("task_id", id), zap.Error(err))
		return response.InternalServerError(c, "Failed to delete task")
	}
	return response.NoContent(c)
}

// Stats handles GET /api/v1/tasks/stats
func (h *TaskHandler) Stats(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	stats, err := h.tasks.Stats(c.UserContext(), userID)
	if err != nil {
		h.logger.Error("failed to compute stats", zap.Uint("user_id", userID), zap.Error(err))
		return response.InternalServerError(c, "Failed to compute stats")
	}
	return response.Success(c, stats)
}

func taskID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, errors.New("invalid task id")
	}
	return uint(id), nil
}
