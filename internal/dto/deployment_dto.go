package dto

import "time"

type DeployRequest struct {
	ApplicantID uint `json:"applicant_id"`
	BranchID    uint `json:"branch_id"`
}

type DeploymentStatusRequest struct {
	Status string `json:"status"`
}

// DeploymentRow is one deployment joined with its guard and branch names.
type DeploymentRow struct {
	ID           uint      `json:"id"`
	ApplicantID  uint      `json:"applicant_id"`
	BranchID     uint      `json:"branch_id"`
	Status       string    `json:"status"`
	DateDeployed time.Time `json:"date_deployed"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	BranchName   string    `json:"branch_name"`
}

type DeploymentStats struct {
	TotalDeployments int64 `json:"total_deployments"`
	TotalActive      int64 `json:"total_active"`
	ThisMonth        int64 `json:"this_month"`
}

type DeploymentListResponse struct {
	Deployments []DeploymentRow `json:"deployments"`
	Pagination  Pagination      `json:"pagination"`
	Stats       DeploymentStats `json:"stats"`
}
