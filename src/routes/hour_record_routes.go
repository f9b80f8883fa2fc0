package routes

import (
	"Backend-Volunteer-Hours/src/controllers"
	"Backend-Volunteer-Hours/src/middleware"

	"github.com/gofiber/fiber/v2"
)

// hourRoutes mounts the volunteer hour endpoints under /app/hour.
func hourRoutes(router fiber.Router, h *controllers.HourRecordController, limiter *middleware.OperatorLimiter) {
	hour := router.Group("/app/hour")
	hour.Use(middleware.AuthJWT, middleware.RateLimit(limiter))

	hour.Post("/signRecord", h.SignRecord)
	hour.Get("/lastRecordList", h.LastRecordList)
	hour.Get("/recordList", h.RecordList)
}
