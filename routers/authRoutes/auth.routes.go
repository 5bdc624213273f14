package authRoutes

import (
	"github.com/gofiber/fiber/v2"

	controllers "lms/controllers/auth"
	validators "lms/validators/auth"
)

// SetupAuthRoutes sets up registration and login routes.
func SetupAuthRoutes(app *fiber.App) {
	authGroup := app.Group("/auth")

	authGroup.Post("/register", validators.Register(), controllers.Register)
	authGroup.Post("/login", validators.Login(), controllers.Login)
}
