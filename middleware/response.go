package middleware

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"lms/domain"
)

func JsonResponse(c *fiber.Ctx, statusCode int, status bool, message string, data interface{}) error {
	return c.Status(statusCode).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"data":    data,
	})
}

func ValidationErrorResponse(c *fiber.Ctx, errors map[string]string) error {
	return JsonResponse(c, fiber.StatusUnprocessableEntity, false, "Validation failed!", errors)
}

// DomainErrorResponse translates a typed domain error to its HTTP status.
// This is the only place service errors become HTTP responses.
func DomainErrorResponse(c *fiber.Ctx, err error) error {
	if domain.CodeOf(err) == domain.CodeInternal {
		log.Printf("[HTTP] %s %s failed: %v", c.Method(), c.Path(), err)
	}
	return JsonResponse(c, domain.HTTPStatus(err), false, domain.Message(err), nil)
}
