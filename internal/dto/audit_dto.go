package dto

import "time"

type AuditLogRow struct {
	ID            uint      `json:"id"`
	Action        string    `json:"action"`
	Details       string    `json:"details"`
	IPAddress     string    `gorm:"column:ip_address" json:"ip_address"`
	Timestamp     time.Time `json:"timestamp"`
	AdminUsername *string   `json:"admin_username"`
}

type AuditLogListResponse struct {
	Logs       []AuditLogRow `json:"logs"`
	Pagination Pagination    `json:"pagination"`
}
