package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleStudent    = "STUDENT"
	RoleInstructor = "INSTRUCTOR"
	RoleAdmin      = "ADMIN"
)

type User struct {
	gorm.Model
	Name      string `json:"name" gorm:"default:''"`
	Email     string `json:"email" gorm:"uniqueIndex;not null"`
	Password  string `json:"-" gorm:"not null"`
	Role      string `json:"role" gorm:"default:'STUDENT'"` // STUDENT, INSTRUCTOR, ADMIN
	Bio       string `json:"bio" gorm:"type:text;default:''"`
	Avatar    string `json:"avatar" gorm:"default:''"`
	LastLogin *time.Time `json:"last_login"`
	IsDeleted bool   `json:"-" gorm:"default:false"`
}

// IsStaff reports whether the role may manage courses.
func (u *User) IsStaff() bool {
	return u.Role == RoleInstructor || u.Role == RoleAdmin
}
