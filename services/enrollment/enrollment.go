package enrollment

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"lms/domain"
	"lms/events"
	"lms/models"
)

// Service drives the enrollment state machine:
// enrolled -> completed -> (reviewed), enrolled -> dropped,
// enrolled|completed -> refunded (via the payment ledger).
type Service struct {
	db         *gorm.DB
	dispatcher *events.Dispatcher
}

func New(db *gorm.DB, dispatcher *events.Dispatcher) *Service {
	return &Service{db: db, dispatcher: dispatcher}
}

// isDuplicate detects a unique-constraint violation across the supported
// dialects. The (student_id, course_id) index is the real duplicate guard;
// the pre-check in Enroll only produces a friendlier error first.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

// Enroll creates an enrollment for a published course. Duplicate enrollments
// fail with a conflict, including under concurrent invocation: two racing
// calls both pass the pre-check, but only one create survives the unique
// index, so the student counter moves by exactly one.
func (s *Service) Enroll(studentID, courseID uint) (*models.Enrollment, error) {
	var course models.Course
	err := s.db.Where("id = ? AND is_deleted = false AND status = ?",
		courseID, models.CourseStatusPublished).First(&course).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.NotFound("Course not found!")
		}
		return nil, domain.Internal(err)
	}

	var existing models.Enrollment
	if err := s.db.Where("student_id = ? AND course_id = ?", studentID, courseID).
		First(&existing).Error; err == nil {
		return nil, domain.Conflict("Already enrolled in this course!")
	}

	e := models.Enrollment{
		StudentID:     studentID,
		CourseID:      courseID,
		Status:        models.EnrollmentStatusEnrolled,
		Progress:      0,
		TotalLectures: course.TotalLectures,
	}
	if err := s.db.Create(&e).Error; err != nil {
		if isDuplicate(err) {
			return nil, domain.Conflict("Already enrolled in this course!")
		}
		return nil, domain.Internal(err)
	}

	s.dispatcher.Dispatch(events.New(events.EnrollmentCreated, events.AggregateEnrollment, e.ID).
		With("courseId", courseID).
		With("studentId", studentID))
	return &e, nil
}

// UpdateProgress clamps the new progress into [0,100] and records the access
// time. Reaching 100 while enrolled transitions to completed exactly once;
// re-reaching 100 does not re-fire the completion side effects.
func (s *Service) UpdateProgress(enrollmentID, actorID uint, progress float64, completedLectures *int) (*models.Enrollment, error) {
	e, err := s.loadOwned(enrollmentID, actorID)
	if err != nil {
		return nil, err
	}

	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	if completedLectures != nil {
		if *completedLectures < 0 {
			return nil, domain.Validation("Completed lectures must not be negative!")
		}
		if e.TotalLectures > 0 && *completedLectures > e.TotalLectures {
			return nil, domain.Validation("Completed lectures exceed total lectures!")
		}
		e.CompletedLectures = *completedLectures
	}

	now := time.Now()
	e.Progress = progress
	e.LastAccessedAt = &now

	if progress >= 100 && e.Status == models.EnrollmentStatusEnrolled {
		return s.complete(e)
	}

	if err := s.db.Save(e).Error; err != nil {
		return nil, domain.Internal(err)
	}
	return e, nil
}

// MarkCompleted is the explicit completion path, independent of progress.
func (s *Service) MarkCompleted(enrollmentID, actorID uint) (*models.Enrollment, error) {
	e, err := s.loadOwned(enrollmentID, actorID)
	if err != nil {
		return nil, err
	}
	switch e.Status {
	case models.EnrollmentStatusCompleted:
		return nil, domain.Conflict("Course already completed!")
	case models.EnrollmentStatusDropped, models.EnrollmentStatusRefunded:
		return nil, domain.Precondition("Only active enrollments can be completed!")
	}
	e.Progress = 100
	return s.complete(e)
}

// complete performs the single enrolled->completed transition and emits the
// completion event.
func (s *Service) complete(e *models.Enrollment) (*models.Enrollment, error) {
	now := time.Now()
	e.Status = models.EnrollmentStatusCompleted
	e.CompletedAt = &now
	if err := s.db.Save(e).Error; err != nil {
		return nil, domain.Internal(err)
	}
	s.dispatcher.Dispatch(events.New(events.EnrollmentCompleted, events.AggregateEnrollment, e.ID).
		With("courseId", e.CourseID).
		With("studentId", e.StudentID))
	return e, nil
}

// AddReview records a rating and optional review text on a completed
// enrollment and triggers the full aggregate recompute for the course.
func (s *Service) AddReview(enrollmentID, actorID uint, rating int, review string) (*models.Enrollment, error) {
	if rating < 1 || rating > 5 {
		return nil, domain.Validation("Rating must be between 1 and 5!")
	}
	e, err := s.loadOwned(enrollmentID, actorID)
	if err != nil {
		return nil, err
	}
	if e.Status != models.EnrollmentStatusCompleted {
		return nil, domain.Precondition("Can only review completed courses!")
	}

	now := time.Now()
	e.Rating = &rating
	e.Review = review
	e.ReviewedAt = &now
	if err := s.db.Save(e).Error; err != nil {
		return nil, domain.Internal(err)
	}

	s.dispatcher.Dispatch(events.New(events.EnrollmentReviewed, events.AggregateEnrollment, e.ID).
		With("courseId", e.CourseID).
		With("studentId", e.StudentID).
		With("rating", rating))
	return e, nil
}

// Drop transitions an enrolled student out of the course and releases their
// seat in the student counter.
func (s *Service) Drop(enrollmentID, actorID uint) (*models.Enrollment, error) {
	e, err := s.loadOwned(enrollmentID, actorID)
	if err != nil {
		return nil, err
	}
	if e.Status != models.EnrollmentStatusEnrolled {
		return nil, domain.Precondition("Only active enrollments can be dropped!")
	}

	e.Status = models.EnrollmentStatusDropped
	if err := s.db.Save(e).Error; err != nil {
		return nil, domain.Internal(err)
	}
	s.dispatcher.Dispatch(events.New(events.EnrollmentDropped, events.AggregateEnrollment, e.ID).
		With("courseId", e.CourseID).
		With("studentId", e.StudentID))
	return e, nil
}

// MarkRefunded revokes course access after a payment refund. Called by the
// payment ledger only; tolerant of a missing enrollment since payments and
// enrollments are only loosely coupled.
func (s *Service) MarkRefunded(studentID, courseID uint) error {
	var e models.Enrollment
	err := s.db.Where("student_id = ? AND course_id = ? AND is_deleted = false", studentID, courseID).
		First(&e).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return domain.Internal(err)
	}
	if !e.Active() {
		return nil
	}

	e.Status = models.EnrollmentStatusRefunded
	if err := s.db.Save(&e).Error; err != nil {
		return domain.Internal(err)
	}
	s.dispatcher.Dispatch(events.New(events.EnrollmentRefunded, events.AggregateEnrollment, e.ID).
		With("courseId", e.CourseID).
		With("studentId", e.StudentID))
	return nil
}

// Get returns an enrollment visible to its student or staff.
func (s *Service) Get(enrollmentID uint, actor *models.User) (*models.Enrollment, error) {
	e, err := s.load(enrollmentID)
	if err != nil {
		return nil, err
	}
	if e.StudentID != actor.ID && !actor.IsStaff() {
		return nil, domain.Authorization("Not authorized to view this enrollment!")
	}
	return e, nil
}

// ListForStudent returns a student's enrollments, optionally filtered by
// status, newest first.
func (s *Service) ListForStudent(studentID uint, status string, page, limit int) ([]models.Enrollment, int64, error) {
	query := s.db.Model(&models.Enrollment{}).
		Where("student_id = ? AND is_deleted = false", studentID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, domain.Internal(err)
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 12
	}

	var enrollments []models.Enrollment
	err := query.Order("created_at desc").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&enrollments).Error
	if err != nil {
		return nil, 0, domain.Internal(err)
	}
	return enrollments, total, nil
}

// CourseRoster lists a course's enrollments for its instructor or an admin.
func (s *Service) CourseRoster(courseID uint, actor *models.User, page, limit int) ([]models.Enrollment, int64, error) {
	var course models.Course
	err := s.db.Where("id = ? AND is_deleted = false", courseID).First(&course).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, 0, domain.NotFound("Course not found!")
		}
		return nil, 0, domain.Internal(err)
	}
	if course.InstructorID != actor.ID && actor.Role != models.RoleAdmin {
		return nil, 0, domain.Authorization("Not authorized to view enrollments for this course!")
	}

	query := s.db.Model(&models.Enrollment{}).Where("course_id = ? AND is_deleted = false", courseID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, domain.Internal(err)
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	var enrollments []models.Enrollment
	err = query.Order("created_at desc").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&enrollments).Error
	if err != nil {
		return nil, 0, domain.Internal(err)
	}
	return enrollments, total, nil
}

func (s *Service) load(enrollmentID uint) (*models.Enrollment, error) {
	var e models.Enrollment
	err := s.db.Where("id = ? AND is_deleted = false", enrollmentID).First(&e).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.NotFound("Enrollment not found!")
		}
		return nil, domain.Internal(err)
	}
	return &e, nil
}

func (s *Service) loadOwned(enrollmentID, actorID uint) (*models.Enrollment, error) {
	e, err := s.load(enrollmentID)
	if err != nil {
		return nil, err
	}
	if e.StudentID != actorID {
		return nil, domain.Authorization("Not authorized to update this enrollment!")
	}
	return e, nil
}
