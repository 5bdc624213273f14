package catalog

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"lms/domain"
	"lms/events"
	"lms/models"
	"lms/utils"
)

// Service owns Course records and their derived aggregates. Other components
// read and mutate courses only through this contract.
type Service struct {
	db         *gorm.DB
	dispatcher *events.Dispatcher
}

func New(db *gorm.DB, dispatcher *events.Dispatcher) *Service {
	return &Service{db: db, dispatcher: dispatcher}
}

// RegisterHandlers wires the aggregate side effects of enrollment events:
// the incremental counter fast path for enroll/drop/refund, and the full
// recompute for reviews (average rating is not delta-combinable across
// edits).
func (s *Service) RegisterHandlers(d *events.Dispatcher) {
	d.On(events.EnrollmentCreated, func(e events.Event) error {
		courseID, err := eventCourseID(e)
		if err != nil {
			return err
		}
		return s.AddStudents(courseID, 1)
	})
	d.On(events.EnrollmentDropped, func(e events.Event) error {
		courseID, err := eventCourseID(e)
		if err != nil {
			return err
		}
		return s.AddStudents(courseID, -1)
	})
	d.On(events.EnrollmentRefunded, func(e events.Event) error {
		courseID, err := eventCourseID(e)
		if err != nil {
			return err
		}
		return s.AddStudents(courseID, -1)
	})
	d.On(events.EnrollmentReviewed, func(e events.Event) error {
		courseID, err := eventCourseID(e)
		if err != nil {
			return err
		}
		return s.RecomputeAggregates(courseID)
	})
}

// eventCourseID extracts the course behind an enrollment event. A missing or
// mistyped payload is an error so the dispatcher logs it instead of the
// handler quietly updating nothing.
func eventCourseID(e events.Event) (uint, error) {
	v, ok := e.Payload["courseId"].(uint)
	if !ok {
		return 0, fmt.Errorf("event %s (aggregate %s/%d) carries no courseId", e.Type, e.AggregateType, e.AggregateID)
	}
	return v, nil
}

// CreateCourseInput carries the draft fields for a new course.
type CreateCourseInput struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	ShortDescription   string   `json:"short_description"`
	Category           string   `json:"category"`
	Subcategory        string   `json:"subcategory"`
	Level              string   `json:"level"`
	Language           string   `json:"language"`
	Price              float64  `json:"price"`
	Currency           string   `json:"currency"`
	ThumbnailURL       string   `json:"thumbnail_url"`
	TrailerURL         string   `json:"trailer_url"`
	IsFree             bool     `json:"is_free"`
	TotalDuration      int      `json:"total_duration"`
	TotalLectures      int      `json:"total_lectures"`
	Tags               []string `json:"tags"`
	LearningObjectives []string `json:"learning_objectives"`
}

var validLevels = map[string]bool{
	models.CourseLevelBeginner:     true,
	models.CourseLevelIntermediate: true,
	models.CourseLevelAdvanced:     true,
}

// CreateCourse creates a course in DRAFT status owned by the instructor.
func (s *Service) CreateCourse(instructorID uint, in CreateCourseInput) (*models.Course, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, domain.Validation("Title is required!")
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, domain.Validation("Description is required!")
	}
	if strings.TrimSpace(in.Category) == "" {
		return nil, domain.Validation("Category is required!")
	}
	if in.Price < 0 {
		return nil, domain.Validation("Price must not be negative!")
	}
	if in.Level != "" && !validLevels[in.Level] {
		return nil, domain.Validation("Invalid course level!")
	}

	course := models.Course{
		Title:            strings.TrimSpace(in.Title),
		Slug:             s.uniqueSlug(in.Title),
		Description:      in.Description,
		ShortDescription: in.ShortDescription,
		InstructorID:     instructorID,
		Category:         in.Category,
		Subcategory:      in.Subcategory,
		Level:            in.Level,
		Language:         in.Language,
		Price:            in.Price,
		Currency:         in.Currency,
		ThumbnailURL:     in.ThumbnailURL,
		TrailerURL:       in.TrailerURL,
		Status:           models.CourseStatusDraft,
		IsFree:           in.IsFree || in.Price == 0,
		TotalDuration:    in.TotalDuration,
		TotalLectures:    in.TotalLectures,
	}
	if course.Level == "" {
		course.Level = models.CourseLevelBeginner
	}
	if course.Language == "" {
		course.Language = "English"
	}
	if course.Currency == "" {
		course.Currency = "USD"
	}
	if in.Tags != nil {
		course.Tags, _ = json.Marshal(in.Tags)
	}
	if in.LearningObjectives != nil {
		course.LearningObjectives, _ = json.Marshal(in.LearningObjectives)
	}

	if err := s.db.Create(&course).Error; err != nil {
		return nil, domain.Internal(err)
	}
	return &course, nil
}

// uniqueSlug derives the slug from the title, suffixing a short random token
// on collision. The slug is stable once set.
func (s *Service) uniqueSlug(title string) string {
	slug := utils.Slugify(title)
	var count int64
	s.db.Model(&models.Course{}).Where("slug = ?", slug).Count(&count)
	if count > 0 {
		slug = slug + "-" + uuid.NewString()[:8]
	}
	return slug
}

// UpdateCourseInput carries partial course updates; nil fields are left
// untouched.
type UpdateCourseInput struct {
	Title              *string  `json:"title"`
	Description        *string  `json:"description"`
	ShortDescription   *string  `json:"short_description"`
	Category           *string  `json:"category"`
	Subcategory        *string  `json:"subcategory"`
	Level              *string  `json:"level"`
	Language           *string  `json:"language"`
	Price              *float64 `json:"price"`
	Currency           *string  `json:"currency"`
	ThumbnailURL       *string  `json:"thumbnail_url"`
	TrailerURL         *string  `json:"trailer_url"`
	IsFree             *bool    `json:"is_free"`
	IsFeatured         *bool    `json:"is_featured"`
	TotalDuration      *int     `json:"total_duration"`
	TotalLectures      *int     `json:"total_lectures"`
	Tags               []string `json:"tags"`
	LearningObjectives []string `json:"learning_objectives"`
	Status             *string  `json:"status"`
}

var validStatuses = map[string]bool{
	models.CourseStatusDraft:     true,
	models.CourseStatusPublished: true,
	models.CourseStatusArchived:  true,
}

// UpdateCourse applies owner/admin updates. Publishing sets PublishedAt
// exactly once and emits a course.published event; re-publishing is a no-op
// on the timestamp.
func (s *Service) UpdateCourse(courseID uint, actor *models.User, in UpdateCourseInput) (*models.Course, error) {
	course, err := s.load(courseID)
	if err != nil {
		return nil, err
	}
	if course.InstructorID != actor.ID && actor.Role != models.RoleAdmin {
		return nil, domain.Authorization("Not authorized to update this course!")
	}

	if in.Title != nil && strings.TrimSpace(*in.Title) != "" {
		course.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		course.Description = *in.Description
	}
	if in.ShortDescription != nil {
		course.ShortDescription = *in.ShortDescription
	}
	if in.Category != nil && *in.Category != "" {
		course.Category = *in.Category
	}
	if in.Subcategory != nil {
		course.Subcategory = *in.Subcategory
	}
	if in.Level != nil {
		if !validLevels[*in.Level] {
			return nil, domain.Validation("Invalid course level!")
		}
		course.Level = *in.Level
	}
	if in.Language != nil && *in.Language != "" {
		course.Language = *in.Language
	}
	if in.Price != nil {
		if *in.Price < 0 {
			return nil, domain.Validation("Price must not be negative!")
		}
		course.Price = *in.Price
	}
	if in.Currency != nil && *in.Currency != "" {
		course.Currency = *in.Currency
	}
	if in.ThumbnailURL != nil {
		course.ThumbnailURL = *in.ThumbnailURL
	}
	if in.TrailerURL != nil {
		course.TrailerURL = *in.TrailerURL
	}
	if in.IsFree != nil {
		course.IsFree = *in.IsFree
	}
	if in.IsFeatured != nil {
		course.IsFeatured = *in.IsFeatured
	}
	if in.TotalDuration != nil {
		course.TotalDuration = *in.TotalDuration
	}
	if in.TotalLectures != nil {
		course.TotalLectures = *in.TotalLectures
	}
	if in.Tags != nil {
		course.Tags, _ = json.Marshal(in.Tags)
	}
	if in.LearningObjectives != nil {
		course.LearningObjectives, _ = json.Marshal(in.LearningObjectives)
	}

	var published bool
	if in.Status != nil && *in.Status != course.Status {
		if !validStatuses[*in.Status] {
			return nil, domain.Validation("Invalid course status!")
		}
		course.Status = *in.Status
		if *in.Status == models.CourseStatusPublished {
			published = true
			if course.PublishedAt == nil {
				now := time.Now()
				course.PublishedAt = &now
			}
		}
	}

	if err := s.db.Save(course).Error; err != nil {
		return nil, domain.Internal(err)
	}

	if published {
		s.dispatcher.Dispatch(events.New(events.CoursePublished, events.AggregateCourse, course.ID).
			With("courseId", course.ID).
			With("instructorId", course.InstructorID).
			With("title", course.Title))
	}
	return course, nil
}

// ArchiveCourse soft-deletes a course and cascades the soft delete to its
// enrollments. Courses are never hard-deleted so payment and enrollment
// history survives.
func (s *Service) ArchiveCourse(courseID uint, actor *models.User) error {
	course, err := s.load(courseID)
	if err != nil {
		return err
	}
	if course.InstructorID != actor.ID && actor.Role != models.RoleAdmin {
		return domain.Authorization("Not authorized to delete this course!")
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Course{}).Where("id = ?", courseID).
			Updates(map[string]interface{}{"is_deleted": true, "status": models.CourseStatusArchived}).Error; err != nil {
			return domain.Internal(err)
		}
		if err := tx.Model(&models.Enrollment{}).Where("course_id = ?", courseID).
			Update("is_deleted", true).Error; err != nil {
			return domain.Internal(err)
		}
		return nil
	})
}

// GetCourse returns a course; unpublished courses are visible only to their
// owner or an admin (reported as not found otherwise, matching the public
// surface).
func (s *Service) GetCourse(courseID uint, actor *models.User) (*models.Course, error) {
	course, err := s.load(courseID)
	if err != nil {
		return nil, err
	}
	if course.Status != models.CourseStatusPublished {
		if actor == nil || (course.InstructorID != actor.ID && actor.Role != models.RoleAdmin) {
			return nil, domain.NotFound("Course not found!")
		}
	}
	return course, nil
}

func (s *Service) load(courseID uint) (*models.Course, error) {
	var course models.Course
	err := s.db.Where("id = ? AND is_deleted = false", courseID).First(&course).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.NotFound("Course not found!")
		}
		return nil, domain.Internal(err)
	}
	return &course, nil
}

// ListFilter narrows and orders the public course listing.
type ListFilter struct {
	Category     string
	Level        string
	PriceMin     *float64
	PriceMax     *float64
	Search       string
	InstructorID uint
	Sort         string // title, price, rating, students, created_at
	Order        string // asc, desc
	Page         int
	Limit        int
}

var sortColumns = map[string]string{
	"title":      "title",
	"price":      "price",
	"rating":     "average_rating",
	"students":   "total_students",
	"created_at": "created_at",
}

// ListCourses returns published courses matching the filter plus the total
// match count for pagination.
func (s *Service) ListCourses(f ListFilter) ([]models.Course, int64, error) {
	query := s.db.Model(&models.Course{}).
		Where("is_deleted = false AND status = ?", models.CourseStatusPublished)

	if f.Category != "" {
		query = query.Where("category = ?", f.Category)
	}
	if f.Level != "" {
		query = query.Where("level = ?", f.Level)
	}
	if f.PriceMin != nil {
		query = query.Where("price >= ?", *f.PriceMin)
	}
	if f.PriceMax != nil {
		query = query.Where("price <= ?", *f.PriceMax)
	}
	if f.InstructorID != 0 {
		query = query.Where("instructor_id = ?", f.InstructorID)
	}
	if f.Search != "" {
		pattern := "%" + strings.ToLower(f.Search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, domain.Internal(err)
	}

	column, ok := sortColumns[f.Sort]
	if !ok {
		column = "created_at"
	}
	direction := "desc"
	if strings.EqualFold(f.Order, "asc") {
		direction = "asc"
	}

	page, limit := f.Page, f.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 12
	}

	var courses []models.Course
	err := query.Order(column + " " + direction).
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&courses).Error
	if err != nil {
		return nil, 0, domain.Internal(err)
	}
	return courses, total, nil
}

// InstructorCourses lists an instructor's courses; drafts are included only
// for the instructor themselves or an admin.
func (s *Service) InstructorCourses(instructorID uint, actor *models.User) ([]models.Course, error) {
	query := s.db.Where("instructor_id = ? AND is_deleted = false", instructorID)
	if actor == nil || (actor.ID != instructorID && actor.Role != models.RoleAdmin) {
		query = query.Where("status = ?", models.CourseStatusPublished)
	}

	var courses []models.Course
	if err := query.Order("created_at desc").Find(&courses).Error; err != nil {
		return nil, domain.Internal(err)
	}
	return courses, nil
}

// CategoryCount is one row of the category rollup.
type CategoryCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// Categories returns published-course counts per category.
func (s *Service) Categories() ([]CategoryCount, error) {
	var rows []CategoryCount
	err := s.db.Model(&models.Course{}).
		Select("category as name, COUNT(*) as count").
		Where("is_deleted = false AND status = ?", models.CourseStatusPublished).
		Group("category").
		Order("count desc").
		Scan(&rows).Error
	if err != nil {
		return nil, domain.Internal(err)
	}
	return rows, nil
}

// AddStudents adjusts the cached student counter by delta using a single
// atomic UPDATE. The counter is floored at zero; concurrent enrollments
// therefore never interleave a stale read-modify-write.
func (s *Service) AddStudents(courseID uint, delta int) error {
	return s.db.Model(&models.Course{}).Where("id = ?", courseID).
		UpdateColumn("total_students", gorm.Expr(
			"CASE WHEN total_students + ? < 0 THEN 0 ELSE total_students + ? END", delta, delta,
		)).Error
}

// RecomputeAggregates recalculates a course's derived fields from enrollment
// rows. It is idempotent and is the authoritative recovery path when the
// incremental counters drift.
func (s *Service) RecomputeAggregates(courseID uint) error {
	var totalStudents int64
	err := s.db.Model(&models.Enrollment{}).
		Where("course_id = ? AND is_deleted = false AND status IN ?",
			courseID, []string{models.EnrollmentStatusEnrolled, models.EnrollmentStatusCompleted}).
		Count(&totalStudents).Error
	if err != nil {
		return domain.Internal(err)
	}

	var agg struct {
		Reviews int64
		Avg     float64
	}
	err = s.db.Model(&models.Enrollment{}).
		Select("COUNT(rating) as reviews, COALESCE(AVG(rating), 0) as avg").
		Where("course_id = ? AND is_deleted = false AND rating IS NOT NULL", courseID).
		Scan(&agg).Error
	if err != nil {
		return domain.Internal(err)
	}

	return s.db.Model(&models.Course{}).Where("id = ?", courseID).
		Updates(map[string]interface{}{
			"total_students": totalStudents,
			"average_rating": math.Round(agg.Avg*100) / 100,
			"total_reviews":  agg.Reviews,
		}).Error
}

// RecomputeAll sweeps every live course through RecomputeAggregates; used by
// the reconciliation scheduler to correct drift.
func (s *Service) RecomputeAll() error {
	var ids []uint
	if err := s.db.Model(&models.Course{}).Where("is_deleted = false").Pluck("id", &ids).Error; err != nil {
		return domain.Internal(err)
	}
	for _, id := range ids {
		if err := s.RecomputeAggregates(id); err != nil {
			return err
		}
	}
	return nil
}
