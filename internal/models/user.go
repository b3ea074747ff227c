package models

import "time"

const (
	RoleAdmin = "Admin"
	RoleStaff = "Staff"
)

// User is a staff account that can sign in to the back office.
type User struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	Username           string    `gorm:"not null;uniqueIndex" json:"username"`
	Email              string    `gorm:"not null;uniqueIndex" json:"email"`
	PasswordHash       string    `gorm:"not null" json:"-"`
	Role               string    `gorm:"default:'Admin'" json:"role"`
	SecurityQuestion   *string   `json:"security_question,omitempty"`
	SecurityAnswerHash *string   `json:"-"`
	CreatedAt          time.Time `json:"created_at"`
}
