package services

import (
	"context"
	"fmt"
	"time"

	"github.com/alohasecurity/aloha-backend/internal/apperr"
	"github.com/alohasecurity/aloha-backend/internal/audit"
	"github.com/alohasecurity/aloha-backend/internal/database"
	"github.com/alohasecurity/aloha-backend/internal/dto"
	"github.com/alohasecurity/aloha-backend/internal/models"
)

var (
	errAlreadyDeployed      = apperr.Conflict("Guard is already deployed.")
	errDeploymentNotFound   = apperr.NotFound("Deployment not found.")
	errApplicantNotFound    = apperr.NotFound("Applicant not found.")
	errDeploymentStatusEnum = apperr.Validation("Status must be Active or Ended.")
)

type DeploymentService struct {
	store *database.Store
	audit *audit.Recorder
	now   func() time.Time
}

func NewDeploymentService(store *database.Store, recorder *audit.Recorder) *DeploymentService {
	return &DeploymentService{
		store: store,
		audit: recorder,
		now:   func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	}
}

// Deploy assigns an applicant to a branch and marks the applicant Hired.
// An applicant holds at most one Active deployment at a time.
func (s *DeploymentService) Deploy(ctx context.Context, actor audit.Actor, req *dto.DeployRequest) (int64, error) {
	if req.ApplicantID == 0 || req.BranchID == 0 {
		return 0, apperr.Validation("Applicant and Branch are required.")
	}

	var applicant struct {
		FirstName string
		LastName  string
	}
	found, err := s.store.FetchOne(ctx, &applicant,
		"SELECT first_name, last_name FROM applicants WHERE id = ?", req.ApplicantID)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, errApplicantNotFound
	}

	var branch string
	found, err = s.store.FetchOne(ctx, &branch, "SELECT name FROM branches WHERE id = ?", req.BranchID)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, errBranchNotFound
	}

	var id int64
	err = s.store.Tx(ctx, func(q database.Querier) error {
		if err := ensureNoActive(ctx, q, req.ApplicantID, 0); err != nil {
			return err
		}
		res, err := q.Execute(ctx,
			"INSERT INTO deployments (applicant_id, branch_id, date_deployed, status) VALUES (?, ?, ?, ?)",
			req.ApplicantID, req.BranchID, s.now(), models.DeploymentStatusActive)
		if err != nil {
			return err
		}
		id = res.LastInsertID
		_, err = q.Execute(ctx, "UPDATE applicants SET status = ? WHERE id = ?",
			models.ApplicantStatusHired, req.ApplicantID)
		return err
	})
	if database.IsUnique(err) {
		return 0, errAlreadyDeployed
	}
	if database.IsForeignKey(err) {
		// lost a race with a delete
		return 0, errApplicantNotFound
	}
	if err != nil {
		return 0, err
	}

	s.audit.Record(ctx, actor, audit.ActionDeploymentCreate,
		fmt.Sprintf("%s deployed %s %s to branch %q.", actorLabel(actor), applicant.FirstName, applicant.LastName, branch))
	return id, nil
}

func (s *DeploymentService) List(ctx context.Context, q dto.PageQuery) (*dto.DeploymentListResponse, error) {
	q.Normalize(10)
	like := q.Like()

	order := "DESC"
	if q.Sort == "asc" {
		order = "ASC"
	}

	const from = `
		FROM deployments d
		JOIN applicants a ON d.applicant_id = a.id
		JOIN branches b ON d.branch_id = b.id
		WHERE (a.first_name LIKE ? OR a.last_name LIKE ? OR b.name LIKE ?)`

	resp := &dto.DeploymentListResponse{Deployments: []dto.DeploymentRow{}}
	if err := s.store.FetchMany(ctx, &resp.Deployments,
		`SELECT d.id, d.applicant_id, d.branch_id, d.status, d.date_deployed,
		        a.first_name, a.last_name, b.name AS branch_name`+from+
			" ORDER BY d.date_deployed "+order+", d.id "+order+" LIMIT ? OFFSET ?",
		like, like, like, q.Limit, q.Offset()); err != nil {
		return nil, err
	}

	var filtered int64
	if _, err := s.store.FetchOne(ctx, &filtered, "SELECT COUNT(*)"+from, like, like, like); err != nil {
		return nil, err
	}
	resp.Pagination = dto.NewPagination(q.Page, q.Limit, filtered)

	if _, err := s.store.FetchOne(ctx, &resp.Stats,
		`SELECT COUNT(*) AS total_deployments,
		        COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS total_active,
		        COALESCE(SUM(CASE WHEN strftime('%Y-%m', date_deployed) = ? THEN 1 ELSE 0 END), 0) AS this_month
		 FROM deployments`, models.DeploymentStatusActive, s.now().Format("2006-01")); err != nil {
		return nil, err
	}
	return resp, nil
}

// UpdateStatus changes a deployment's status. Ending a deployment returns
// the guard to the Hired pool.
func (s *DeploymentService) UpdateStatus(ctx context.Context, actor audit.Actor, id uint, status string) (string, error) {
	if !models.IsDeploymentStatus(status) {
		return "", errDeploymentStatusEnum
	}

	var dep struct {
		ApplicantID uint
		FirstName   string
		LastName    string
	}
	found, err := s.store.FetchOne(ctx, &dep,
		`SELECT d.applicant_id, a.first_name, a.last_name
		 FROM deployments d JOIN applicants a ON d.applicant_id = a.id WHERE d.id = ?`, id)
	if err != nil {
		return "", err
	}
	if !found {
		return "", errDeploymentNotFound
	}

	if status == models.DeploymentStatusEnded {
		err = s.store.Tx(ctx, func(q database.Querier) error {
			if _, err := q.Execute(ctx, "UPDATE deployments SET status = ? WHERE id = ?", status, id); err != nil {
				return err
			}
			_, err := q.Execute(ctx, "UPDATE applicants SET status = ? WHERE id = ?",
				models.ApplicantStatusHired, dep.ApplicantID)
			return err
		})
		if err != nil {
			return "", err
		}
		s.audit.Record(ctx, actor, audit.ActionDeploymentEnd,
			fmt.Sprintf("%s ended the deployment for %s %s.", actorLabel(actor), dep.FirstName, dep.LastName))
		return "Duty ended. Guard has been returned to the Hired pool.", nil
	}

	err = s.store.Tx(ctx, func(q database.Querier) error {
		if err := ensureNoActive(ctx, q, dep.ApplicantID, id); err != nil {
			return err
		}
		_, err := q.Execute(ctx, "UPDATE deployments SET status = ? WHERE id = ?", status, id)
		return err
	})
	if database.IsUnique(err) {
		return "", errAlreadyDeployed
	}
	if err != nil {
		return "", err
	}
	s.audit.Record(ctx, actor, audit.ActionDeploymentUpdate,
		fmt.Sprintf("%s set deployment #%d for %s %s to %s.", actorLabel(actor), id, dep.FirstName, dep.LastName, status))
	return "Deployment status updated successfully.", nil
}

// ensureNoActive fails with errAlreadyDeployed when the applicant holds an
// Active deployment other than except. The partial unique index enforces
// the same rule, but a restored store may lack it.
func ensureNoActive(ctx context.Context, q database.Querier, applicantID, except uint) error {
	var active int64
	if _, err := q.FetchOne(ctx, &active,
		"SELECT COUNT(*) FROM deployments WHERE applicant_id = ? AND status = ? AND id <> ?",
		applicantID, models.DeploymentStatusActive, except); err != nil {
		return err
	}
	if active > 0 {
		return errAlreadyDeployed
	}
	return nil
}

func (s *DeploymentService) Delete(ctx context.Context, actor audit.Actor, id uint) error {
	res, err := s.store.Execute(ctx, "DELETE FROM deployments WHERE id = ?", id)
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return errDeploymentNotFound
	}
	s.audit.Record(ctx, actor, audit.ActionDeploymentDelete,
		fmt.Sprintf("%s deleted deployment record #%d.", actorLabel(actor), id))
	return nil
}
