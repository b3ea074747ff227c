package dto

import "github.com/alohasecurity/aloha-backend/internal/models"

// ApplyRequest holds the text fields of the multipart application form.
// YearsExperience stays a string until validated.
type ApplyRequest struct {
	FirstName        string
	LastName         string
	Email            string
	ContactNum       string
	Birthdate        string
	Gender           string
	Address          string
	PositionApplied  string
	YearsExperience  string
	PreviousEmployer string
}

type ApplyResponse struct {
	Message     string `json:"message"`
	ApplicantID int64  `json:"applicant_id"`
}

type ApplicantListQuery struct {
	PageQuery
	Status string
}

type ApplicantStats struct {
	Total     int64 `json:"total"`
	Male      int64 `json:"male"`
	Female    int64 `json:"female"`
	ThisMonth int64 `json:"this_month"`
}

type ApplicantListResponse struct {
	Applicants []models.Applicant `json:"applicants"`
	Pagination Pagination         `json:"pagination"`
	Stats      ApplicantStats     `json:"stats"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type DashboardCounts struct {
	Total             int64 `json:"total"`
	Pending           int64 `json:"pending"`
	ActiveDeployments int64 `json:"active_deployments"`
}

type MonthCount struct {
	Month string `json:"month"`
	Count int64  `json:"count"`
}

type DashboardStats struct {
	Counts DashboardCounts    `json:"counts"`
	Chart  []MonthCount       `json:"chart"`
	Recent []models.Applicant `json:"recent"`
}
