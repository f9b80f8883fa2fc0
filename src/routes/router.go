package routes

import (
	"Backend-Volunteer-Hours/src/controllers"
	"Backend-Volunteer-Hours/src/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
)

func InitRoutes(app *fiber.App, hours *controllers.HourRecordController, limiter *middleware.OperatorLimiter) {
	hourRoutes(app, hours, limiter)

	app.Get("/swagger/*", swagger.HandlerDefault)

	// health check
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("API is running...")
	})
}
