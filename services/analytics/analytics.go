package analytics

import (
	"sort"
	"time"

	"gorm.io/gorm"

	"lms/domain"
	"lms/models"
)

// Service produces read-only rollups over courses, enrollments and payments.
// It never mutates any of them.
type Service struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Service {
	return &Service{db: db}
}

// CourseStat is the per-course slice of the dashboard.
type CourseStat struct {
	ID            uint    `json:"id"`
	Title         string  `json:"title"`
	TotalStudents int     `json:"total_students"`
	AverageRating float64 `json:"average_rating"`
	TotalReviews  int     `json:"total_reviews"`
	Price         float64 `json:"price"`
	Status        string  `json:"status"`
}

// TrendBucket is one month of an enrollment or revenue trend.
type TrendBucket struct {
	Month string  `json:"month"` // YYYY-MM
	Count int64   `json:"count"`
	Value float64 `json:"value,omitempty"`
}

// Dashboard summarizes an instructor's (or, for admins, the whole
// platform's) courses, enrollments and revenue.
type Dashboard struct {
	TotalCourses      int              `json:"total_courses"`
	PublishedCourses  int              `json:"published_courses"`
	TotalStudents     int              `json:"total_students"`
	TotalRevenue      float64          `json:"total_revenue"`
	NetRevenue        float64          `json:"net_revenue"`
	TransactionCount  int64            `json:"transaction_count"`
	Enrollments       map[string]int64 `json:"enrollments"`
	RecentEnrollments int64            `json:"recent_enrollments"` // last 30 days
	TopCourses        []CourseStat     `json:"top_courses"`
}

// GetDashboard builds the dashboard for an instructor or admin actor.
func (s *Service) GetDashboard(actor *models.User) (*Dashboard, error) {
	if !actor.IsStaff() {
		return nil, domain.Authorization("Not authorized to view analytics!")
	}

	courseQuery := s.db.Model(&models.Course{}).Where("is_deleted = false")
	if actor.Role != models.RoleAdmin {
		courseQuery = courseQuery.Where("instructor_id = ?", actor.ID)
	}

	var courses []CourseStat
	if err := courseQuery.
		Select("id, title, total_students, average_rating, total_reviews, price, status").
		Scan(&courses).Error; err != nil {
		return nil, domain.Internal(err)
	}

	dash := &Dashboard{Enrollments: map[string]int64{}}
	dash.TotalCourses = len(courses)
	for _, c := range courses {
		if c.Status == models.CourseStatusPublished {
			dash.PublishedCourses++
		}
		dash.TotalStudents += c.TotalStudents
	}

	courseIDs := make([]uint, 0, len(courses))
	for _, c := range courses {
		courseIDs = append(courseIDs, c.ID)
	}
	if len(courseIDs) > 0 {
		type statusCount struct {
			Status string
			Count  int64
		}
		var byStatus []statusCount
		err := s.db.Model(&models.Enrollment{}).
			Select("status, COUNT(*) as count").
			Where("course_id IN ? AND is_deleted = false", courseIDs).
			Group("status").
			Scan(&byStatus).Error
		if err != nil {
			return nil, domain.Internal(err)
		}
		for _, row := range byStatus {
			dash.Enrollments[row.Status] = row.Count
		}

		var rev struct {
			Revenue float64
			Fees    float64
			Count   int64
		}
		err = s.db.Model(&models.Payment{}).
			Select("COALESCE(SUM(amount), 0) as revenue, COALESCE(SUM(fees), 0) as fees, COUNT(*) as count").
			Where("course_id IN ? AND status = ?", courseIDs, models.PaymentStatusCompleted).
			Scan(&rev).Error
		if err != nil {
			return nil, domain.Internal(err)
		}
		dash.TotalRevenue = rev.Revenue
		dash.NetRevenue = rev.Revenue - rev.Fees
		dash.TransactionCount = rev.Count

		thirtyDaysAgo := time.Now().AddDate(0, 0, -30)
		err = s.db.Model(&models.Enrollment{}).
			Where("course_id IN ? AND is_deleted = false AND created_at >= ?", courseIDs, thirtyDaysAgo).
			Count(&dash.RecentEnrollments).Error
		if err != nil {
			return nil, domain.Internal(err)
		}
	}

	published := make([]CourseStat, 0, len(courses))
	for _, c := range courses {
		if c.Status == models.CourseStatusPublished {
			published = append(published, c)
		}
	}
	sort.Slice(published, func(i, j int) bool {
		return published[i].TotalStudents > published[j].TotalStudents
	})
	if len(published) > 5 {
		published = published[:5]
	}
	dash.TopCourses = published

	return dash, nil
}

// CourseAnalytics is the per-course metrics view for its instructor.
type CourseAnalytics struct {
	CourseID         uint             `json:"course_id"`
	Title            string           `json:"title"`
	TotalStudents    int              `json:"total_students"`
	AverageRating    float64          `json:"average_rating"`
	TotalReviews     int              `json:"total_reviews"`
	CompletionRate   float64          `json:"completion_rate"` // percent
	StatusBreakdown  map[string]int64 `json:"status_breakdown"`
	TotalRevenue     float64          `json:"total_revenue"`
	TotalFees        float64          `json:"total_fees"`
	TransactionCount int64            `json:"transaction_count"`
	EnrollmentTrend  []TrendBucket    `json:"enrollment_trend"` // last 12 months
}

// GetCourseAnalytics builds course metrics for its owner or an admin.
func (s *Service) GetCourseAnalytics(courseID uint, actor *models.User) (*CourseAnalytics, error) {
	var course models.Course
	err := s.db.Where("id = ? AND is_deleted = false", courseID).First(&course).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.NotFound("Course not found!")
		}
		return nil, domain.Internal(err)
	}
	if course.InstructorID != actor.ID && actor.Role != models.RoleAdmin {
		return nil, domain.Authorization("Not authorized to view analytics for this course!")
	}

	out := &CourseAnalytics{
		CourseID:        course.ID,
		Title:           course.Title,
		TotalStudents:   course.TotalStudents,
		AverageRating:   course.AverageRating,
		TotalReviews:    course.TotalReviews,
		StatusBreakdown: map[string]int64{},
	}

	type statusCount struct {
		Status string
		Count  int64
	}
	var byStatus []statusCount
	err = s.db.Model(&models.Enrollment{}).
		Select("status, COUNT(*) as count").
		Where("course_id = ? AND is_deleted = false", courseID).
		Group("status").
		Scan(&byStatus).Error
	if err != nil {
		return nil, domain.Internal(err)
	}
	var totalEnrollments, completed int64
	for _, row := range byStatus {
		out.StatusBreakdown[row.Status] = row.Count
		totalEnrollments += row.Count
		if row.Status == models.EnrollmentStatusCompleted {
			completed = row.Count
		}
	}
	if totalEnrollments > 0 {
		out.CompletionRate = float64(completed) / float64(totalEnrollments) * 100
	}

	var rev struct {
		Revenue float64
		Fees    float64
		Count   int64
	}
	err = s.db.Model(&models.Payment{}).
		Select("COALESCE(SUM(amount), 0) as revenue, COALESCE(SUM(fees), 0) as fees, COUNT(*) as count").
		Where("course_id = ? AND status = ?", courseID, models.PaymentStatusCompleted).
		Scan(&rev).Error
	if err != nil {
		return nil, domain.Internal(err)
	}
	out.TotalRevenue = rev.Revenue
	out.TotalFees = rev.Fees
	out.TransactionCount = rev.Count

	trend, err := s.enrollmentTrend(courseID)
	if err != nil {
		return nil, err
	}
	out.EnrollmentTrend = trend

	return out, nil
}

// enrollmentTrend counts enrollments per month for the last 12 months. The
// bucketing is done in Go so it stays portable across dialects.
func (s *Service) enrollmentTrend(courseID uint) ([]TrendBucket, error) {
	buckets := make([]TrendBucket, 0, 12)
	now := time.Now()
	for i := 11; i >= 0; i-- {
		ref := now.AddDate(0, -i, 0)
		start := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location())
		end := start.AddDate(0, 1, 0)

		var count int64
		err := s.db.Model(&models.Enrollment{}).
			Where("course_id = ? AND is_deleted = false AND created_at >= ? AND created_at < ?",
				courseID, start, end).
			Count(&count).Error
		if err != nil {
			return nil, domain.Internal(err)
		}
		buckets = append(buckets, TrendBucket{Month: start.Format("2006-01"), Count: count})
	}
	return buckets, nil
}

// PlatformAnalytics is the admin-only whole-platform view.
type PlatformAnalytics struct {
	TotalUsers       int64         `json:"total_users"`
	TotalCourses     int64         `json:"total_courses"`
	TotalEnrollments int64         `json:"total_enrollments"`
	TotalRevenue     float64       `json:"total_revenue"`
	NetRevenue       float64       `json:"net_revenue"`
	RevenueTrend     []TrendBucket `json:"revenue_trend"` // last 12 months
	TopCourses       []CourseStat  `json:"top_courses"`
}

// GetPlatformAnalytics builds platform totals for an admin.
func (s *Service) GetPlatformAnalytics(actor *models.User) (*PlatformAnalytics, error) {
	if actor.Role != models.RoleAdmin {
		return nil, domain.Authorization("Not authorized to view platform analytics!")
	}

	out := &PlatformAnalytics{}
	if err := s.db.Model(&models.User{}).Where("is_deleted = false").Count(&out.TotalUsers).Error; err != nil {
		return nil, domain.Internal(err)
	}
	if err := s.db.Model(&models.Course{}).
		Where("is_deleted = false AND status = ?", models.CourseStatusPublished).
		Count(&out.TotalCourses).Error; err != nil {
		return nil, domain.Internal(err)
	}
	if err := s.db.Model(&models.Enrollment{}).Where("is_deleted = false").
		Count(&out.TotalEnrollments).Error; err != nil {
		return nil, domain.Internal(err)
	}

	var rev struct {
		Revenue float64
		Fees    float64
	}
	err := s.db.Model(&models.Payment{}).
		Select("COALESCE(SUM(amount), 0) as revenue, COALESCE(SUM(fees), 0) as fees").
		Where("status = ?", models.PaymentStatusCompleted).
		Scan(&rev).Error
	if err != nil {
		return nil, domain.Internal(err)
	}
	out.TotalRevenue = rev.Revenue
	out.NetRevenue = rev.Revenue - rev.Fees

	now := time.Now()
	for i := 11; i >= 0; i-- {
		ref := now.AddDate(0, -i, 0)
		start := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location())
		end := start.AddDate(0, 1, 0)

		var monthRevenue float64
		err := s.db.Model(&models.Payment{}).
			Select("COALESCE(SUM(amount), 0)").
			Where("status = ? AND created_at >= ? AND created_at < ?",
				models.PaymentStatusCompleted, start, end).
			Scan(&monthRevenue).Error
		if err != nil {
			return nil, domain.Internal(err)
		}
		out.RevenueTrend = append(out.RevenueTrend,
			TrendBucket{Month: start.Format("2006-01"), Value: monthRevenue})
	}

	var top []CourseStat
	err = s.db.Model(&models.Course{}).
		Select("id, title, total_students, average_rating, total_reviews, price, status").
		Where("is_deleted = false AND status = ?", models.CourseStatusPublished).
		Order("total_students desc").
		Limit(10).
		Scan(&top).Error
	if err != nil {
		return nil, domain.Internal(err)
	}
	out.TopCourses = top

	return out, nil
}
