package middleware

import (
	"strings"

	"Backend-Volunteer-Hours/src/utils"

	"github.com/gofiber/fiber/v2"
)

func AuthJWT(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		return utils.HandleError(c, fiber.StatusUnauthorized, "Missing or invalid Authorization header")
	}

	tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
	claims, err := utils.ParseJWT(tokenStr)
	if err != nil {
		return utils.HandleError(c, fiber.StatusUnauthorized, "Invalid or expired token: "+err.Error())
	}

	c.Locals("userId", claims.UserID)
	c.Locals("legalName", claims.LegalName)
	c.Locals("role", claims.Role)

	return c.Next()
}
