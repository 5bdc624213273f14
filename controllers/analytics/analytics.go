package analyticsController

import (
	"github.com/gofiber/fiber/v2"

	"lms/database"
	"lms/middleware"
	"lms/models"
	"lms/services/analytics"
)

var Analytics *analytics.Service

func Init(svc *analytics.Service) {
	Analytics = svc
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

func GetDashboard(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	dashboard, err := Analytics.GetDashboard(user)
	if err != nil {
		return middleware.DomainErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Dashboard fetched successfully!", dashboard)
}

func GetCourseAnalytics(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	courseID := c.Locals("courseID").(uint)

	report, err := Analytics.GetCourseAnalytics(courseID, user)
	if err != nil {
		return middleware.DomainErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Course analytics fetched successfully!", report)
}

func GetPlatformAnalytics(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	report, err := Analytics.GetPlatformAnalytics(user)
	if err != nil {
		return middleware.DomainErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Platform analytics fetched successfully!", report)
}
