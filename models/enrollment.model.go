package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	EnrollmentStatusEnrolled  = "ENROLLED"
	EnrollmentStatusCompleted = "COMPLETED"
	EnrollmentStatusDropped   = "DROPPED"
	EnrollmentStatusRefunded  = "REFUNDED"
)

// Enrollment tracks a student's relationship to a course. The composite
// unique index on (student_id, course_id) is the real duplicate-enrollment
// guard; application-level pre-checks only give a friendlier error.
type Enrollment struct {
	gorm.Model
	StudentID         uint       `json:"student_id" gorm:"uniqueIndex:idx_enrollments_student_course;not null"`
	CourseID          uint       `json:"course_id" gorm:"uniqueIndex:idx_enrollments_student_course;index;not null"`
	Status            string     `json:"status" gorm:"default:'ENROLLED';index"`
	Progress          float64    `json:"progress" gorm:"default:0"` // percentage 0-100
	CompletedLectures int        `json:"completed_lectures" gorm:"default:0"`
	TotalLectures     int        `json:"total_lectures" gorm:"default:0"`
	LastAccessedAt    *time.Time `json:"last_accessed_at"`
	CompletedAt       *time.Time `json:"completed_at"`

	Rating     *int       `json:"rating"` // 1-5, set only after completion
	Review     string     `json:"review" gorm:"type:text"`
	ReviewedAt *time.Time `json:"reviewed_at"`

	IsDeleted bool `json:"-" gorm:"default:false"`
}

// Active reports whether the enrollment still counts toward the course's
// student total.
func (e *Enrollment) Active() bool {
	return e.Status == EnrollmentStatusEnrolled || e.Status == EnrollmentStatusCompleted
}
