package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	CourseStatusDraft     = "DRAFT"
	CourseStatusPublished = "PUBLISHED"
	CourseStatusArchived  = "ARCHIVED"
)

const (
	CourseLevelBeginner     = "BEGINNER"
	CourseLevelIntermediate = "INTERMEDIATE"
	CourseLevelAdvanced     = "ADVANCED"
)

// Course is owned by its instructor. TotalStudents, AverageRating and
// TotalReviews are incrementally maintained caches of facts derivable from
// Enrollment rows; the catalog recompute is the source of truth.
type Course struct {
	gorm.Model
	Title            string  `json:"title" gorm:"not null"`
	Slug             string  `json:"slug" gorm:"uniqueIndex;not null"`
	Description      string  `json:"description" gorm:"type:text;not null"`
	ShortDescription string  `json:"short_description" gorm:"size:300"`
	InstructorID     uint    `json:"instructor_id" gorm:"index;not null"`
	Category         string  `json:"category" gorm:"index;not null"`
	Subcategory      string  `json:"subcategory"`
	Level            string  `json:"level" gorm:"default:'BEGINNER'"`
	Language         string  `json:"language" gorm:"default:'English'"`
	Price            float64 `json:"price" gorm:"default:0"`
	Currency         string  `json:"currency" gorm:"size:3;default:'USD'"`
	ThumbnailURL     string  `json:"thumbnail_url"` // opaque object-storage URL
	TrailerURL       string  `json:"trailer_url"`
	Status           string  `json:"status" gorm:"default:'DRAFT';index"`
	IsFree           bool    `json:"is_free" gorm:"default:false"`
	IsFeatured       bool    `json:"is_featured" gorm:"default:false"`
	TotalDuration    int     `json:"total_duration" gorm:"default:0"` // minutes
	TotalLectures    int     `json:"total_lectures" gorm:"default:0"`

	TotalStudents int     `json:"total_students" gorm:"default:0"`
	AverageRating float64 `json:"average_rating" gorm:"default:0"`
	TotalReviews  int     `json:"total_reviews" gorm:"default:0"`

	Tags               datatypes.JSON `json:"tags"`
	LearningObjectives datatypes.JSON `json:"learning_objectives"`

	PublishedAt *time.Time `json:"published_at"`
	IsDeleted   bool       `json:"-" gorm:"default:false"`
}

// Purchasable reports whether the course requires a payment.
func (c *Course) Purchasable() bool {
	return !c.IsFree && c.Price > 0
}
