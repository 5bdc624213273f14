package paymentValidator

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"lms/middleware"
	"lms/validators/request"
)

// PaymentID validates the :id path parameter.
func PaymentID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		idStr := strings.TrimSpace(c.Params("id"))
		if idStr == "" {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Payment ID is required!", nil)
		}
		id, err := strconv.Atoi(idStr)
		if err != nil || id <= 0 {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid Payment ID!", nil)
		}
		c.Locals("paymentID", uint(id))
		return c.Next()
	}
}

type PurchaseRequest struct {
	CourseID        uint   `json:"courseId" validate:"required"`
	PaymentMethodID string `json:"paymentMethodId" validate:"required"`
}

func Purchase() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(PurchaseRequest)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}
		if errs := request.Validate(reqData); errs != nil {
			return middleware.ValidationErrorResponse(c, errs)
		}
		c.Locals("validatedPurchase", reqData)
		return c.Next()
	}
}

type RefundRequest struct {
	Amount *float64 `json:"amount" validate:"omitempty,gt=0"`
	Reason string   `json:"reason" validate:"required,max=500"`
}

func Refund() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(RefundRequest)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}
		if errs := request.Validate(reqData); errs != nil {
			return middleware.ValidationErrorResponse(c, errs)
		}
		c.Locals("validatedRefund", reqData)
		return c.Next()
	}
}
