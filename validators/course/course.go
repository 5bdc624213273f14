package courseValidator

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"lms/middleware"
	"lms/services/catalog"
	"lms/validators/request"
)

// CourseID validates the :id path parameter and stashes it as an int.
func CourseID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		idStr := strings.TrimSpace(c.Params("id"))
		if idStr == "" {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Course ID is required!", nil)
		}
		id, err := strconv.Atoi(idStr)
		if err != nil || id <= 0 {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid Course ID!", nil)
		}
		c.Locals("courseID", uint(id))
		return c.Next()
	}
}

type createCourseBody struct {
	Title              string   `json:"title" validate:"required,min=3,max=200"`
	Description        string   `json:"description" validate:"required"`
	ShortDescription   string   `json:"short_description" validate:"max=300"`
	Category           string   `json:"category" validate:"required"`
	Subcategory        string   `json:"subcategory"`
	Level              string   `json:"level" validate:"omitempty,oneof=BEGINNER INTERMEDIATE ADVANCED"`
	Language           string   `json:"language"`
	Price              float64  `json:"price" validate:"gte=0"`
	Currency           string   `json:"currency" validate:"omitempty,len=3"`
	ThumbnailURL       string   `json:"thumbnail_url"`
	TrailerURL         string   `json:"trailer_url"`
	IsFree             bool     `json:"is_free"`
	TotalDuration      int      `json:"total_duration" validate:"gte=0"`
	TotalLectures      int      `json:"total_lectures" validate:"gte=0"`
	Tags               []string `json:"tags"`
	LearningObjectives []string `json:"learning_objectives"`
}

func CreateCourse() fiber.Handler {
	return func(c *fiber.Ctx) error {
		body := new(createCourseBody)
		if err := c.BodyParser(body); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}
		if errs := request.Validate(body); errs != nil {
			return middleware.ValidationErrorResponse(c, errs)
		}
		c.Locals("validatedCourse", &catalog.CreateCourseInput{
			Title:              body.Title,
			Description:        body.Description,
			ShortDescription:   body.ShortDescription,
			Category:           body.Category,
			Subcategory:        body.Subcategory,
			Level:              body.Level,
			Language:           body.Language,
			Price:              body.Price,
			Currency:           body.Currency,
			ThumbnailURL:       body.ThumbnailURL,
			TrailerURL:         body.TrailerURL,
			IsFree:             body.IsFree,
			TotalDuration:      body.TotalDuration,
			TotalLectures:      body.TotalLectures,
			Tags:               body.Tags,
			LearningObjectives: body.LearningObjectives,
		})
		return c.Next()
	}
}

func UpdateCourse() fiber.Handler {
	return func(c *fiber.Ctx) error {
		body := new(catalog.UpdateCourseInput)
		if err := c.BodyParser(body); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}
		c.Locals("validatedCourseUpdate", body)
		return c.Next()
	}
}

// CourseList validates the listing query parameters into a catalog filter.
func CourseList() fiber.Handler {
	return func(c *fiber.Ctx) error {
		filter := catalog.ListFilter{
			Category: c.Query("category"),
			Level:    c.Query("level"),
			Search:   c.Query("search"),
			Sort:     c.Query("sort"),
			Order:    c.Query("order"),
			Page:     c.QueryInt("page", 1),
			Limit:    c.QueryInt("limit", 12),
		}

		errors := make(map[string]string)
		if filter.Page < 1 {
			errors["page"] = "Page must be greater than 0!"
		}
		if filter.Limit < 1 || filter.Limit > 100 {
			errors["limit"] = "Limit must be between 1 and 100!"
		}

		if v := c.Query("price_min"); v != "" {
			min, err := strconv.ParseFloat(v, 64)
			if err != nil || min < 0 {
				errors["price_min"] = "price_min must be a positive number!"
			} else {
				filter.PriceMin = &min
			}
		}
		if v := c.Query("price_max"); v != "" {
			max, err := strconv.ParseFloat(v, 64)
			if err != nil || max < 0 {
				errors["price_max"] = "price_max must be a positive number!"
			} else {
				filter.PriceMax = &max
			}
		}
		if v := c.Query("instructor"); v != "" {
			id, err := strconv.Atoi(v)
			if err != nil || id <= 0 {
				errors["instructor"] = "Invalid instructor ID!"
			} else {
				filter.InstructorID = uint(id)
			}
		}

		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedList", &filter)
		return c.Next()
	}
}
