package paymentController

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"lms/database"
	"lms/middleware"
	"lms/models"
	"lms/services/payment"
	paymentValidator "lms/validators/payment"
)

var Payments *payment.Service

func Init(svc *payment.Service) {
	Payments = svc
}

func currentUser(c *fiber.Ctx) (*models.User, error) {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return nil, middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	var user models.User
	if err := database.Database.Db.Where("id = ? AND is_deleted = ?", userID, false).First(&user).Error; err != nil {
		return nil, middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "User not found!", nil)
	}
	return &user, nil
}

func CreatePaymentIntent(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	reqData := c.Locals("validatedPurchase").(*paymentValidator.PurchaseRequest)

	result, err := Payments.Purchase(user.ID, reqData.CourseID, reqData.PaymentMethodID)
	if err != nil {
		return middleware.DomainErrorResponse(c, err)
	}

	message := "Payment processed successfully!"
	if result.Free {
		message = "Enrolled in free course successfully!"
	} else if result.GatewayStatus == payment.GatewayStatusPending {
		message = "Payment is pending confirmation!"
	} else if result.GatewayStatus == payment.GatewayStatusFailed {
		message = "Payment failed!"
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, message, result)
}

func ConfirmPayment(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	gatewayTxID := strings.TrimSpace(c.Params("gatewayTxId"))
	if gatewayTxID == "" {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Transaction ID is required!", nil)
	}

	pay, gatewayStatus, err := Payments.Confirm(gatewayTxID, user.ID)
	if err != nil {
		return middleware.DomainErrorResponse(c, err)
	}

	response := fiber.Map{
		"payment":       pay,
		"gatewayStatus": gatewayStatus,
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Payment status fetched successfully!", response)
}

func RefundPayment(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	paymentID := c.Locals("paymentID").(uint)
	reqData := c.Locals("validatedRefund").(*paymentValidator.RefundRequest)

	pay, err := Payments.Refund(paymentID, user, reqData.Amount, reqData.Reason)
	if err != nil {
		return middleware.DomainErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Payment refunded successfully!", pay)
}

func GetPayments(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	status := c.Query("status")
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 10)

	payments, total, err := Payments.ListForUser(user.ID, status, page, limit)
	if err != nil {
		return middleware.DomainErrorResponse(c, err)
	}

	response := fiber.Map{
		"payments": payments,
		"pagination": fiber.Map{
			"total": total,
			"page":  page,
			"limit": limit,
		},
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Payments fetched successfully!", response)
}

func GetPayment(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	paymentID := c.Locals("paymentID").(uint)

	pay, err := Payments.Get(paymentID, user)
	if err != nil {
		return middleware.DomainErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Payment fetched successfully!", pay)
}

func GetCoursePayments(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	courseID := c.Locals("courseID").(uint)

	summary, err := Payments.CoursePayments(courseID, user)
	if err != nil {
		return middleware.DomainErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Course payments fetched successfully!", summary)
}
