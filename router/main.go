package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/sahilchouksey/syllabus-sync/database"
	"github.com/sahilchouksey/syllabus-sync/handlers"
	chat_handlers "github.com/sahilchouksey/syllabus-sync/handlers/chat"
	syllabus_handlers "github.com/sahilchouksey/syllabus-sync/handlers/syllabus"
	task_handlers "github.com/sahilchouksey/syllabus-sync/handlers/task"
	"github.com/sahilchouksey/syllabus-sync/utils/metrics"
	"github.com/sahilchouksey/syllabus-sync/utils/middleware"
)

// Routes holds everything the route table is built from
type Routes struct {
	Store          database.Storage
	Auth           *middleware.AuthMiddleware
	Syllabus       *syllabus_handlers.SyllabusHandler
	Tasks          *task_handlers.TaskHandler
	Chat           *chat_handlers.ChatHandler
	Metrics        *metrics.PipelineMetrics
	AllowedOrigins []string
}

func SetupRoutes(app *fiber.App, r Routes) {
	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    r.AllowedOrigins,
		RateLimitRequests: 100,
		RateLimitWindow:   1 * time.Minute,
	})

	// Public
	app.Get("/health", handlers.HandleCheckHealth)
	if r.Store != nil {
		app.Get("/health/ready", handlers.HandleReadiness(r.Store))
	}
	if r.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(r.Metrics.Handler()))
	}

	api := app.Group("/api/v1", r.Auth.Required())

	// Syllabus upload and processing
	syllabus := api.Group("/syllabus")
	syllabus.Post("/upload", r.Syllabus.Upload)
	syllabus.Get("/:id", r.Syllabus.Get)
	syllabus.Get("/:id/process", r.Syllabus.Process) // SSE
	syllabus.Post("/:id/import", r.Syllabus.Import)

	// Assignments and exams
	tasks := api.Group("/tasks")
	tasks.Get("/", r.Tasks.List)
	tasks.Get("/stats", r.Tasks.Stats)
	tasks.Post("/", r.Tasks.Create)
	tasks.Patch("/:id/complete", r.Tasks.Complete)
	tasks.Delete("/:id", r.Tasks.Delete)

	api.Post("/chat", r.Chat.SendMessage)
}
