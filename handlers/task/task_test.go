package task

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahilchouksey/syllabus-sync/database"
	"github.com/sahilchouksey/syllabus-sync/model"
	"github.com/sahilchouksey/syllabus-sync/services"
	"github.com/sahilchouksey/syllabus-sync/utils/validation"
)

type fakeTasks struct {
	tasks         []model.Task
	upcomingLimit int
	created       []services.CreateTaskRequest
	completeErr   error
	deleteErr     error
}

func (f *fakeTasks) List(ctx context.Context, userID uint) ([]model.Task, error) {
	return f.tasks, nil
}

func (f *fakeTasks) Upcoming(ctx context.Context, userID uint, limit int) ([]model.Task, error) {
	f.upcomingLimit = limit
	return f.tasks[:1], nil
}

func (f *fakeTasks) Create(ctx context.Context, userID uint, req services.CreateTaskRequest) (*model.Task, error) {
	if err := validation.NewValidator().ValidateStruct(req); err != nil {
		return nil, err
	}
	if req.DueDate == "someday" {
		return nil, services.ErrInvalidDueDate
	}
	f.created = append(f.created, req)
	return &model.Task{ID: 10, UserID: userID, Title: req.Title}, nil
}

func (f *fakeTasks) Complete(ctx context.Context, userID, id uint) (*model.Task, error) {
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	return &model.Task{ID: id, Status: model.TaskStatusCompleted}, nil
}

func (f *fakeTasks) Delete(ctx context.Context, userID, id uint) error {
	return f.deleteErr
}

func (f *fakeTasks) Stats(ctx context.Context, userID uint) (services.TaskStats, error) {
	return services.TaskStats{Total: 2, Pending: 1, Completed: 1, Streak: 3, BestStreak: 4}, nil
}

func newTaskApp(tasks *fakeTasks) *fiber.App {
	h := NewTaskHandler(tasks, nil)
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(1))
		return c.Next()
	})
	app.Get("/tasks", h.List)
	app.Get("/tasks/stats", h.Stats)
	app.Post("/tasks", h.Create)
	app.Patch("/tasks/:id/complete", h.Complete)
	app.Delete("/tasks/:id", h.Delete)
	return app
}

func decode(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if resp.StatusCode == fiber.StatusNoContent {
		return resp.StatusCode, nil
	}
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestList(t *testing.T) {
	tasks := &fakeTasks{tasks: []model.Task{
		{ID: 1, Title: "Homework 1", DueDate: time.Date(2025, 10, 12, 23, 59, 0, 0, time.UTC)},
		{ID: 2, Title: "Midterm", Type: model.TaskTypeExam},
	}}
	app := newTaskApp(tasks)

	status, body := decode(t, app, "GET", "/tasks", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["data"], 2)

	status, body = decode(t, app, "GET", "/tasks?upcoming=true&limit=5", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["data"], 1)
	assert.Equal(t, 5, tasks.upcomingLimit)
}

func TestCreate(t *testing.T) {
	tasks := &fakeTasks{}
	app := newTaskApp(tasks)

	status, _ := decode(t, app, "POST", "/tasks", `{"title":"Lab report","dueDate":"2025-11-03"}`)
	assert.Equal(t, fiber.StatusCreated, status)
	require.Len(t, tasks.created, 1)
	assert.Equal(t, "Lab report", tasks.created[0].Title)

	status, body := decode(t, app, "POST", "/tasks", `{"dueDate":"2025-11-03"}`)
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	fields := body["error"].(map[string]interface{})["fields"].(map[string]interface{})
	assert.Contains(t, fields, "title")

	status, _ = decode(t, app, "POST", "/tasks", `{"title":"Essay","dueDate":"someday"}`)
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)

	status, _ = decode(t, app, "POST", "/tasks", `{not json`)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestComplete(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		err    error
		status int
	}{
		{"ok", "/tasks/4/complete", nil, fiber.StatusOK},
		{"bad id", "/tasks/abc/complete", nil, fiber.StatusBadRequest},
		{"missing", "/tasks/4/complete", database.ErrNotFound, fiber.StatusNotFound},
		{"exam", "/tasks/4/complete", services.ErrExamNotTrackable, fiber.StatusBadRequest},
		{"db down", "/tasks/4/complete", errors.New("db down"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := decode(t, newTaskApp(&fakeTasks{completeErr: tt.err}), "PATCH", tt.path, "")
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestDelete(t *testing.T) {
	status, _ := decode(t, newTaskApp(&fakeTasks{}), "DELETE", "/tasks/3", "")
	assert.Equal(t, fiber.StatusNoContent, status)

	status, _ = decode(t, newTaskApp(&fakeTasks{deleteErr: database.ErrNotFound}), "DELETE", "/tasks/3", "")
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestStats(t *testing.T) {
	status, body := decode(t, newTaskApp(&fakeTasks{}), "GET", "/tasks/stats", "")
	assert.Equal(t, fiber.StatusOK, status)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(3), data["streak"])
	assert.Equal(t, float64(4), data["bestStreak"])
}
