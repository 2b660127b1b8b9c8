package handlers

import (
	"github.com/fathima-sithara/media-service/internal/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

// RegisterSystemRoutes mounts the unauthenticated banner, health and
// metrics endpoints.
func RegisterSystemRoutes(app *fiber.App, name, version string) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": name, "version": version})
	})
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/api/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy", "service": name, "version": version})
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
}
