package paymentRoutes

import (
	"github.com/gofiber/fiber/v2"

	controllers "lms/controllers/payment"
	"lms/middleware"
	"lms/models"
	paymentValidators "lms/validators/payment"
	studentValidators "lms/validators/student"
)

// SetupPaymentRoutes sets up purchase and refund routes.
func SetupPaymentRoutes(app *fiber.App) {
	paymentGroup := app.Group("/payments", middleware.JWTMiddleware)

	paymentGroup.Post("/create-intent", paymentValidators.Purchase(), controllers.CreatePaymentIntent)
	paymentGroup.Post("/confirm/:gatewayTxId", controllers.ConfirmPayment)
	paymentGroup.Post("/refund/:id", middleware.RequireRoles(models.RoleAdmin), paymentValidators.PaymentID(), paymentValidators.Refund(), controllers.RefundPayment)

	paymentGroup.Get("/", controllers.GetPayments)
	paymentGroup.Get("/course/:courseId", middleware.RequireRoles(models.RoleInstructor, models.RoleAdmin), studentValidators.CourseID(), controllers.GetCoursePayments)
	paymentGroup.Get("/:id", paymentValidators.PaymentID(), controllers.GetPayment)
}
