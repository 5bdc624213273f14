package courseController

import (
	"github.com/gofiber/fiber/v2"

	"lms/database"
	"lms/middleware"
	"lms/models"
	"lms/services/catalog"
)

var Catalog *catalog.Service

func Init(svc *catalog.Service) {
	Catalog = svc
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

// optionalUser resolves the acting user when a token was supplied; anonymous
// requests get a nil actor, which the catalog treats as the public view.
func optionalUser(c *fiber.Ctx) *models.User {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return nil
	}

	var user models.User
	if err := database.Database.Db.Where("id = ? AND is_deleted = ?", userID, false).First(&user).Error; err != nil {
		return nil
	}
	return &user
}

func GetAllCourses(c *fiber.Ctx) error {
	filter := c.Locals("validatedList").(*catalog.ListFilter)

	courses, total, err := Catalog.ListCourses(*filter)
	if err != nil {
		return middleware.DomainErrorResponse(c, err)
	}

	response := fiber.Map{
		"courses": courses,
		"pagination": fiber.Map{
			"total": total,
			"page":  filter.Page,
			"limit": filter.Limit,
		},
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Courses fetched successfully!", response)
}

func GetCourseDetails(c *fiber.Ctx) error {
	user := optionalUser(c)
	courseID := c.Locals("courseID").(uint)

	course, err := Catalog.GetCourse(courseID, user)
	if err != nil {
		return middleware.DomainErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Course fetched successfully!", course)
}

func CreateCourse(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	input := c.Locals("validatedCourse").(*catalog.CreateCourseInput)

	course, err := Catalog.CreateCourse(user.ID, *input)
	if err != nil {
		return middleware.DomainErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Course created successfully!", course)
}

func UpdateCourse(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	courseID := c.Locals("courseID").(uint)
	input := c.Locals("validatedCourseUpdate").(*catalog.UpdateCourseInput)

	course, err := Catalog.UpdateCourse(courseID, user, *input)
	if err != nil {
		return middleware.DomainErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Course updated successfully!", course)
}

func ArchiveCourse(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	courseID := c.Locals("courseID").(uint)

	if err := Catalog.ArchiveCourse(courseID, user); err != nil {
		return middleware.DomainErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Course archived successfully!", nil)
}

func GetCategories(c *fiber.Ctx) error {
	categories, err := Catalog.Categories()
	if err != nil {
		return middleware.DomainErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Categories fetched successfully!", categories)
}

func GetInstructorCourses(c *fiber.Ctx) error {
	user := optionalUser(c)
	instructorID := c.Locals("courseID").(uint) // reuses the :id param validator

	courses, err := Catalog.InstructorCourses(instructorID, user)
	if err != nil {
		return middleware.DomainErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Instructor courses fetched successfully!", courses)
}
