package models

import "time"

// AuditLog is one append-only record of an administrative action.
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    *uint     `gorm:"index" json:"user_id"`
	Action    string    `json:"action"`
	Details   string    `gorm:"type:text" json:"details"`
	IPAddress string    `gorm:"column:ip_address" json:"ip_address"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`
}
