package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sahilchouksey/syllabus-sync/database"
	"github.com/sahilchouksey/syllabus-sync/utils/response"
)

// HandleCheckHealth reports liveness. The database is only pinged on /health/ready.
func HandleCheckHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// HandleReadiness returns a handler that fails while the database is unreachable
func HandleReadiness(store database.Storage) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := store.HealthCheck(); err != nil {
			return response.ServiceUnavailable(c, "Database unavailable")
		}
		return c.JSON(fiber.Map{"status": "ready"})
	}
}
