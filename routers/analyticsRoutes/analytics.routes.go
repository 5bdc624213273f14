package analyticsRoutes

import (
	"github.com/gofiber/fiber/v2"

	controllers "lms/controllers/analytics"
	"lms/middleware"
	"lms/models"
	courseValidators "lms/validators/course"
)

// SetupAnalyticsRoutes sets up reporting routes for staff users.
func SetupAnalyticsRoutes(app *fiber.App) {
	analyticsGroup := app.Group("/analytics", middleware.JWTMiddleware, middleware.RequireRoles(models.RoleInstructor, models.RoleAdmin))

	analyticsGroup.Get("/dashboard", controllers.GetDashboard)
	analyticsGroup.Get("/course/:id", courseValidators.CourseID(), controllers.GetCourseAnalytics)
	analyticsGroup.Get("/platform", middleware.RequireRoles(models.RoleAdmin), controllers.GetPlatformAnalytics)
}
