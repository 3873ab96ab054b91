package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sahilchouksey/face-gallery-api/database"
	"github.com/sahilchouksey/face-gallery-api/services/vision"
)

// HandleCheckHealth reports liveness of the API, the database and the
// embedding encoder.
func HandleCheckHealth(c *fiber.Ctx, store *database.GORMStore, encoder *vision.EncoderClient) error {
	status := fiber.Map{"status": "ok", "database": "ok", "encoder": "ok"}
	code := fiber.StatusOK

	if err := store.HealthCheck(); err != nil {
		status["status"] = "degraded"
		status["database"] = err.Error()
		code = fiber.StatusServiceUnavailable
	}

	if encoder != nil {
		if err := encoder.HealthCheck(c.Context()); err != nil {
			status["status"] = "degraded"
			status["encoder"] = err.Error()
			code = fiber.StatusServiceUnavailable
		}
	}

	return c.Status(code).JSON(status)
}
