package models

import "time"

const (
	DeploymentStatusActive = "Active"
	DeploymentStatusEnded  = "Ended"
)

func IsDeploymentStatus(s string) bool {
	return s == DeploymentStatusActive || s == DeploymentStatusEnded
}

// Deployment assigns one applicant to one branch. Deleting either side
// while a deployment references it fails at the store level.
type Deployment struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ApplicantID  uint      `gorm:"not null;index" json:"applicant_id"`
	BranchID     uint      `gorm:"not null;index" json:"branch_id"`
	DateDeployed time.Time `json:"date_deployed"`
	Status       string    `gorm:"default:'Active'" json:"status"`
	Applicant    Applicant `gorm:"foreignKey:ApplicantID" json:"-"`
	Branch       Branch    `gorm:"foreignKey:BranchID" json:"-"`
}
