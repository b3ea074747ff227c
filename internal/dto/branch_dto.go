package dto

import "github.com/alohasecurity/aloha-backend/internal/models"

type BranchRequest struct {
	Name           string `json:"name"`
	Location       string `json:"location"`
	RequiredGuards int    `json:"required_guards"`
}

type BranchStats struct {
	TotalBranches  int64 `json:"total_branches"`
	TotalLocations int64 `json:"total_locations"`
}

type BranchListResponse struct {
	Branches   []models.Branch `json:"branches"`
	Pagination Pagination      `json:"pagination"`
	Stats      BranchStats     `json:"stats"`
}
