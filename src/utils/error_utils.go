// error_utils.go
package utils

import (
	"Backend-Volunteer-Hours/src/apperror"
	"Backend-Volunteer-Hours/src/models"

	"github.com/gofiber/fiber/v2"
)

func HandleError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(models.ErrorResponse{
		Status:  status,
		Message: message,
	})
}

func StatusForKind(kind apperror.Kind) int {
	switch kind {
	case apperror.KindParameter, apperror.KindTimeValidation:
		return fiber.StatusBadRequest
	case apperror.KindNotCheckedIn:
		return fiber.StatusNotFound
	case apperror.KindOverlap, apperror.KindAlreadyCheckedOut:
		return fiber.StatusConflict
	case apperror.KindDataIntegrity:
		return fiber.StatusUnprocessableEntity
	case apperror.KindTransientNetwork:
		return fiber.StatusServiceUnavailable
	case apperror.KindRemoteRejection:
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}
