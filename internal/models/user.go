package models

import "time"

// Roles recognised by the API.
const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

// User represents an account that can log in: a student or an administrator.
// Students carry a StudentCode and a Class; administrators leave both empty.
type User struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	FullName       string    `gorm:"size:100;not null" json:"full_name"`
	Email          string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	StudentCode    *string   `gorm:"size:20;uniqueIndex" json:"student_code,omitempty"`
	Class          string    `gorm:"size:50" json:"class,omitempty"`
	Role           string    `gorm:"size:20;not null;default:student" json:"role"`
	TrainingPoints int       `gorm:"not null;default:0" json:"training_points"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Wallet *Wallet `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// IsStudent reports whether the user holds the student role.
func (u User) IsStudent() bool {
	return u.Role == RoleStudent
}
