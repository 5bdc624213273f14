package studentController

import (
	"github.com/gofiber/fiber/v2"

	"lms/database"
	"lms/middleware"
	"lms/models"
	"lms/services/enrollment"
	studentValidator "lms/validators/student"
)

var Enrollments *enrollment.Service

func Init(svc *enrollment.Service) {
	Enrollments = svc
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

func EnrollInCourse(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	reqData := c.Locals("validatedEnroll").(*studentValidator.EnrollRequest)

	enr, err := Enrollments.Enroll(user.ID, reqData.CourseID)
	if err != nil {
		return middleware.DomainErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Enrolled in course successfully!", enr)
}

func GetMyCourses(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	status := c.Query("status")
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 10)

	enrollments, total, err := Enrollments.ListForStudent(user.ID, status, page, limit)
	if err != nil {
		return middleware.DomainErrorResponse(c, err)
	}

	response := fiber.Map{
		"enrollments": enrollments,
		"pagination": fiber.Map{
			"total": total,
			"page":  page,
			"limit": limit,
		},
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Enrollments fetched successfully!", response)
}

func UpdateProgress(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	enrollmentID := c.Locals("enrollmentID").(uint)
	reqData := c.Locals("validatedProgress").(*studentValidator.ProgressRequest)

	enr, err := Enrollments.UpdateProgress(enrollmentID, user.ID, *reqData.Progress, reqData.CompletedLectures)
	if err != nil {
		return middleware.DomainErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Progress updated successfully!", enr)
}

func CompleteCourse(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	enrollmentID := c.Locals("enrollmentID").(uint)

	enr, err := Enrollments.MarkCompleted(enrollmentID, user.ID)
	if err != nil {
		return middleware.DomainErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Course marked as completed!", enr)
}

func AddReview(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	enrollmentID := c.Locals("enrollmentID").(uint)
	reqData := c.Locals("validatedReview").(*studentValidator.ReviewRequest)

	enr, err := Enrollments.AddReview(enrollmentID, user.ID, reqData.Rating, reqData.Review)
	if err != nil {
		return middleware.DomainErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Review added successfully!", enr)
}

func DropCourse(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	enrollmentID := c.Locals("enrollmentID").(uint)

	enr, err := Enrollments.Drop(enrollmentID, user.ID)
	if err != nil {
		return middleware.DomainErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Course dropped successfully!", enr)
}

func GetCourseRoster(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	courseID := c.Locals("courseID").(uint)

	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)

	roster, total, err := Enrollments.CourseRoster(courseID, user, page, limit)
	if err != nil {
		return middleware.DomainErrorResponse(c, err)
	}

	response := fiber.Map{
		"enrollments": roster,
		"pagination": fiber.Map{
			"total": total,
			"page":  page,
			"limit": limit,
		},
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Course roster fetched successfully!", response)
}
