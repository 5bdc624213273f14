package studentRoutes

import (
	"github.com/gofiber/fiber/v2"

	controllers "lms/controllers/student"
	"lms/middleware"
	"lms/models"
	validators "lms/validators/student"
)

// SetupStudentRoutes sets up enrollment and progress routes.
func SetupStudentRoutes(app *fiber.App) {
	studentGroup := app.Group("/students", middleware.JWTMiddleware)

	studentGroup.Post("/enroll", validators.Enroll(), controllers.EnrollInCourse)
	studentGroup.Get("/courses", controllers.GetMyCourses)

	studentGroup.Put("/progress/:enrollmentId", validators.EnrollmentID(), validators.UpdateProgress(), controllers.UpdateProgress)
	studentGroup.Put("/complete/:enrollmentId", validators.EnrollmentID(), controllers.CompleteCourse)
	studentGroup.Post("/review/:enrollmentId", validators.EnrollmentID(), validators.AddReview(), controllers.AddReview)
	studentGroup.Put("/drop/:enrollmentId", validators.EnrollmentID(), controllers.DropCourse)

	// Instructor and admin view of course enrollments
	studentGroup.Get("/course/:courseId", middleware.RequireRoles(models.RoleInstructor, models.RoleAdmin), validators.CourseID(), controllers.GetCourseRoster)
}
