package enrollment

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lms/domain"
	"lms/events"
	"lms/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Course{}, &models.Enrollment{}, &models.Payment{}, &models.OutboxEvent{},
	))
	return db
}

func newService(t *testing.T) (*Service, *events.Dispatcher, *gorm.DB) {
	db := newTestDB(t)
	d := events.NewDispatcher(db)
	return New(db, d), d, db
}

func seedCourse(t *testing.T, db *gorm.DB, status string, lectures int) *models.Course {
	t.Helper()
	course := models.Course{
		Title:         "Test Course",
		Slug:          fmt.Sprintf("%s-course", t.Name()),
		InstructorID:  99,
		Category:      "Testing",
		Status:        status,
		TotalLectures: lectures,
	}
	require.NoError(t, db.Create(&course).Error)
	return &course
}

func TestEnrollRequiresPublishedCourse(t *testing.T) {
	svc, _, db := newService(t)
	course := seedCourse(t, db, models.CourseStatusDraft, 10)

	_, err := svc.Enroll(1, course.ID)
	assert.True(t, domain.Is(err, domain.CodeNotFound))
}

func TestEnrollCreatesEnrollment(t *testing.T) {
	svc, _, db := newService(t)
	course := seedCourse(t, db, models.CourseStatusPublished, 10)

	e, err := svc.Enroll(1, course.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusEnrolled, e.Status)
	assert.Equal(t, 10, e.TotalLectures)
	assert.Zero(t, e.Progress)
}

func TestEnrollDuplicateConflicts(t *testing.T) {
	svc, _, db := newService(t)
	course := seedCourse(t, db, models.CourseStatusPublished, 10)

	_, err := svc.Enroll(1, course.ID)
	require.NoError(t, err)
	_, err = svc.Enroll(1, course.ID)
	assert.True(t, domain.Is(err, domain.CodeConflict))

	var count int64
	require.NoError(t, db.Model(&models.Enrollment{}).
		Where("student_id = ? AND course_id = ?", 1, course.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestUniqueIndexRejectsDuplicateRow(t *testing.T) {
	svc, _, db := newService(t)
	course := seedCourse(t, db, models.CourseStatusPublished, 10)

	_, err := svc.Enroll(1, course.ID)
	require.NoError(t, err)

	// Bypass the service pre-check entirely: the composite index itself must
	// reject the row, and the driver error must map to a conflict.
	dup := models.Enrollment{StudentID: 1, CourseID: course.ID, Status: models.EnrollmentStatusEnrolled}
	err = db.Create(&dup).Error
	require.Error(t, err)
	assert.True(t, isDuplicate(err))

	var count int64
	require.NoError(t, db.Model(&models.Enrollment{}).
		Where("student_id = ? AND course_id = ?", 1, course.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestEnrollConcurrentDuplicate(t *testing.T) {
	// A file-backed database so two writers genuinely contend.
	dsn := filepath.Join(t.TempDir(), "enroll.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Course{}, &models.Enrollment{}, &models.OutboxEvent{}))

	svc := New(db, events.NewDispatcher(db))
	course := seedCourse(t, db, models.CourseStatusPublished, 10)

	start := make(chan struct{})
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			<-start
			_, err := svc.Enroll(1, course.ID)
			results <- err
		}()
	}
	close(start)

	var successes, conflicts int
	for i := 0; i < 2; i++ {
		switch err := <-results; {
		case err == nil:
			successes++
		case domain.Is(err, domain.CodeConflict):
			conflicts++
		default:
			t.Fatalf("unexpected enroll error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, conflicts)

	var count int64
	require.NoError(t, db.Model(&models.Enrollment{}).
		Where("student_id = ? AND course_id = ?", 1, course.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestIsDuplicate(t *testing.T) {
	assert.True(t, isDuplicate(gorm.ErrDuplicatedKey))
	assert.True(t, isDuplicate(errors.New("UNIQUE constraint failed: enrollments.student_id, enrollments.course_id")))
	assert.True(t, isDuplicate(errors.New(`duplicate key value violates unique constraint "idx_enrollments_student_course"`)))
	assert.False(t, isDuplicate(errors.New("connection refused")))
}

func TestUpdateProgressClamps(t *testing.T) {
	svc, _, db := newService(t)
	course := seedCourse(t, db, models.CourseStatusPublished, 10)
	e, err := svc.Enroll(1, course.ID)
	require.NoError(t, err)

	e, err = svc.UpdateProgress(e.ID, 1, -20, nil)
	require.NoError(t, err)
	assert.Zero(t, e.Progress)
	assert.NotNil(t, e.LastAccessedAt)

	e, err = svc.UpdateProgress(e.ID, 1, 55.5, nil)
	require.NoError(t, err)
	assert.Equal(t, 55.5, e.Progress)
	assert.Equal(t, models.EnrollmentStatusEnrolled, e.Status)
}

func TestUpdateProgressValidatesLectures(t *testing.T) {
	svc, _, db := newService(t)
	course := seedCourse(t, db, models.CourseStatusPublished, 10)
	e, err := svc.Enroll(1, course.ID)
	require.NoError(t, err)

	bad := 11
	_, err = svc.UpdateProgress(e.ID, 1, 50, &bad)
	assert.True(t, domain.Is(err, domain.CodeValidation))

	negative := -1
	_, err = svc.UpdateProgress(e.ID, 1, 50, &negative)
	assert.True(t, domain.Is(err, domain.CodeValidation))

	ok := 5
	e, err = svc.UpdateProgress(e.ID, 1, 50, &ok)
	require.NoError(t, err)
	assert.Equal(t, 5, e.CompletedLectures)
}

func TestProgressCompletionFiresOnce(t *testing.T) {
	svc, d, db := newService(t)
	course := seedCourse(t, db, models.CourseStatusPublished, 10)

	completions := 0
	d.On(events.EnrollmentCompleted, func(e events.Event) error {
		completions++
		return nil
	})

	e, err := svc.Enroll(1, course.ID)
	require.NoError(t, err)

	e, err = svc.UpdateProgress(e.ID, 1, 150, nil)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusCompleted, e.Status)
	assert.Equal(t, float64(100), e.Progress)
	require.NotNil(t, e.CompletedAt)
	firstCompleted := *e.CompletedAt

	// Reporting 100 again must not re-fire the completion.
	e, err = svc.UpdateProgress(e.ID, 1, 100, nil)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusCompleted, e.Status)
	assert.True(t, e.CompletedAt.Equal(firstCompleted))
	assert.Equal(t, 1, completions)
}

func TestMarkCompleted(t *testing.T) {
	svc, _, db := newService(t)
	course := seedCourse(t, db, models.CourseStatusPublished, 10)

	e, err := svc.Enroll(1, course.ID)
	require.NoError(t, err)

	e, err = svc.MarkCompleted(e.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusCompleted, e.Status)
	assert.Equal(t, float64(100), e.Progress)

	_, err = svc.MarkCompleted(e.ID, 1)
	assert.True(t, domain.Is(err, domain.CodeConflict))
}

func TestMarkCompletedRejectsInactive(t *testing.T) {
	svc, _, db := newService(t)
	course := seedCourse(t, db, models.CourseStatusPublished, 10)

	e, err := svc.Enroll(1, course.ID)
	require.NoError(t, err)
	_, err = svc.Drop(e.ID, 1)
	require.NoError(t, err)

	_, err = svc.MarkCompleted(e.ID, 1)
	assert.True(t, domain.Is(err, domain.CodePrecondition))
}

func TestAddReview(t *testing.T) {
	svc, _, db := newService(t)
	course := seedCourse(t, db, models.CourseStatusPublished, 10)

	e, err := svc.Enroll(1, course.ID)
	require.NoError(t, err)

	_, err = svc.AddReview(e.ID, 1, 0, "")
	assert.True(t, domain.Is(err, domain.CodeValidation))
	_, err = svc.AddReview(e.ID, 1, 6, "")
	assert.True(t, domain.Is(err, domain.CodeValidation))

	// Reviews require a completed enrollment.
	_, err = svc.AddReview(e.ID, 1, 5, "great")
	assert.True(t, domain.Is(err, domain.CodePrecondition))

	_, err = svc.MarkCompleted(e.ID, 1)
	require.NoError(t, err)

	e, err = svc.AddReview(e.ID, 1, 5, "great")
	require.NoError(t, err)
	require.NotNil(t, e.Rating)
	assert.Equal(t, 5, *e.Rating)
	assert.Equal(t, "great", e.Review)
	assert.NotNil(t, e.ReviewedAt)
}

func TestDropOnlyActiveEnrollments(t *testing.T) {
	svc, _, db := newService(t)
	course := seedCourse(t, db, models.CourseStatusPublished, 10)

	e, err := svc.Enroll(1, course.ID)
	require.NoError(t, err)
	_, err = svc.MarkCompleted(e.ID, 1)
	require.NoError(t, err)

	_, err = svc.Drop(e.ID, 1)
	assert.True(t, domain.Is(err, domain.CodePrecondition))
}

func TestMarkRefunded(t *testing.T) {
	svc, _, db := newService(t)
	course := seedCourse(t, db, models.CourseStatusPublished, 10)

	// No enrollment at all is fine.
	require.NoError(t, svc.MarkRefunded(7, course.ID))

	e, err := svc.Enroll(1, course.ID)
	require.NoError(t, err)
	require.NoError(t, svc.MarkRefunded(1, course.ID))

	var got models.Enrollment
	require.NoError(t, db.First(&got, e.ID).Error)
	assert.Equal(t, models.EnrollmentStatusRefunded, got.Status)

	// Refunding an already-refunded enrollment is a no-op.
	require.NoError(t, svc.MarkRefunded(1, course.ID))
}

func TestOwnershipChecks(t *testing.T) {
	svc, _, db := newService(t)
	course := seedCourse(t, db, models.CourseStatusPublished, 10)

	e, err := svc.Enroll(1, course.ID)
	require.NoError(t, err)

	_, err = svc.UpdateProgress(e.ID, 2, 50, nil)
	assert.True(t, domain.Is(err, domain.CodeAuthorization))
	_, err = svc.MarkCompleted(e.ID, 2)
	assert.True(t, domain.Is(err, domain.CodeAuthorization))
	_, err = svc.Drop(e.ID, 2)
	assert.True(t, domain.Is(err, domain.CodeAuthorization))
}

func TestListForStudent(t *testing.T) {
	svc, _, db := newService(t)

	for i := 0; i < 3; i++ {
		course := models.Course{
			Title: fmt.Sprintf("Course %d", i), Slug: fmt.Sprintf("course-%d", i),
			InstructorID: 99, Category: "c", Status: models.CourseStatusPublished,
		}
		require.NoError(t, db.Create(&course).Error)
		_, err := svc.Enroll(1, course.ID)
		require.NoError(t, err)
	}

	all, total, err := svc.ListForStudent(1, "", 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, all, 3)

	completedOnly, total, err := svc.ListForStudent(1, models.EnrollmentStatusCompleted, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)
	assert.Empty(t, completedOnly)
}

func TestCourseRosterAuthorization(t *testing.T) {
	svc, _, db := newService(t)
	course := seedCourse(t, db, models.CourseStatusPublished, 10)

	_, err := svc.Enroll(1, course.ID)
	require.NoError(t, err)

	owner := models.User{Name: "Owner", Email: "owner@example.com", Role: models.RoleInstructor}
	owner.ID = 99
	stranger := models.User{Name: "Stranger", Email: "stranger@example.com", Role: models.RoleInstructor}
	stranger.ID = 100

	roster, total, err := svc.CourseRoster(course.ID, &owner, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, roster, 1)

	_, _, err = svc.CourseRoster(course.ID, &stranger, 1, 10)
	assert.True(t, domain.Is(err, domain.CodeAuthorization))
}
