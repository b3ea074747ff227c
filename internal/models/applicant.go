package models

import "time"

const (
	ApplicantStatusPending      = "Pending"
	ApplicantStatusForInterview = "For Interview"
	ApplicantStatusRejected     = "Rejected"
	ApplicantStatusHired        = "Hired"
)

// ApplicantStatuses lists every status an applicant may be moved to.
var ApplicantStatuses = []string{
	ApplicantStatusPending,
	ApplicantStatusForInterview,
	ApplicantStatusRejected,
	ApplicantStatusHired,
}

func IsApplicantStatus(s string) bool {
	for _, v := range ApplicantStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Applicant is a guard job application. ResumePath and IDImagePath are
// URL paths under /uploads.
type Applicant struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	FirstName        string    `gorm:"not null" json:"first_name"`
	LastName         string    `gorm:"not null" json:"last_name"`
	Email            string    `gorm:"not null;index" json:"email"`
	ContactNum       string    `gorm:"not null" json:"contact_num"`
	Birthdate        string    `gorm:"not null" json:"birthdate"`
	Gender           string    `json:"gender"`
	Address          string    `json:"address"`
	PositionApplied  string    `json:"position_applied"`
	YearsExperience  int       `json:"years_experience"`
	PreviousEmployer string    `json:"previous_employer"`
	Status           string    `gorm:"default:'Pending';index:idx_applicants_status_created" json:"status"`
	ResumePath       string    `json:"resume_path"`
	IDImagePath      string    `gorm:"column:id_image_path" json:"id_image_path"`
	IPAddress        string    `gorm:"column:ip_address;index" json:"ip_address"`
	CreatedAt        time.Time `gorm:"index:idx_applicants_status_created" json:"created_at"`
}
