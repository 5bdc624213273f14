package courseRoutes

import (
	"github.com/gofiber/fiber/v2"

	controllers "lms/controllers/course"
	"lms/middleware"
	"lms/models"
	validators "lms/validators/course"
)

// SetupCourseRoutes sets up catalog routes.
func SetupCourseRoutes(app *fiber.App) {
	courseGroup := app.Group("/courses")

	// Public catalog browsing
	courseGroup.Get("/", validators.CourseList(), controllers.GetAllCourses)
	courseGroup.Get("/categories/list", controllers.GetCategories)

	// Instructor and admin course management
	courseGroup.Post("/", middleware.JWTMiddleware, middleware.RequireRoles(models.RoleInstructor, models.RoleAdmin), validators.CreateCourse(), controllers.CreateCourse)
	courseGroup.Put("/:id", middleware.JWTMiddleware, middleware.RequireRoles(models.RoleInstructor, models.RoleAdmin), validators.CourseID(), validators.UpdateCourse(), controllers.UpdateCourse)
	courseGroup.Delete("/:id", middleware.JWTMiddleware, middleware.RequireRoles(models.RoleInstructor, models.RoleAdmin), validators.CourseID(), controllers.ArchiveCourse)

	// Course details and instructor listing; public, but a token widens the
	// view to the caller's own drafts
	courseGroup.Get("/instructor/:id", middleware.OptionalJWT, validators.CourseID(), controllers.GetInstructorCourses)
	courseGroup.Get("/:id", middleware.OptionalJWT, validators.CourseID(), controllers.GetCourseDetails)
}
