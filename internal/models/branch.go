package models

import "time"

type Branch struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Name           string    `gorm:"not null;uniqueIndex" json:"name"`
	Location       string    `json:"location"`
	RequiredGuards int       `gorm:"default:1" json:"required_guards"`
	CreatedAt      time.Time `json:"created_at"`
}
