package services

import (
	"context"
	"fmt"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"github.com/alohasecurity/aloha-backend/internal/apperr"
	"github.com/alohasecurity/aloha-backend/internal/audit"
	"github.com/alohasecurity/aloha-backend/internal/database"
	"github.com/alohasecurity/aloha-backend/internal/dto"
	"github.com/alohasecurity/aloha-backend/internal/logging"
	"github.com/alohasecurity/aloha-backend/internal/models"
	"github.com/alohasecurity/aloha-backend/internal/storage"
)

const birthdateLayout = "2006-01-02"

var errDuplicateApplicant = apperr.Conflict("An application with this name and birthdate already exists.")

type ApplicantConfig struct {
	MinAge   int
	Throttle time.Duration
}

type ApplicantService struct {
	store  *database.Store
	assets *storage.AssetStore
	audit  *audit.Recorder
	cfg    ApplicantConfig
	now    func() time.Time
}

func NewApplicantService(store *database.Store, assets *storage.AssetStore, recorder *audit.Recorder, cfg ApplicantConfig) *ApplicantService {
	return &ApplicantService{
		store:  store,
		assets: assets,
		audit:  recorder,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	}
}

// AgeOn returns the calendar age in whole years on the given day.
func AgeOn(birth, on time.Time) int {
	age := on.Year() - birth.Year()
	if on.Month() < birth.Month() || (on.Month() == birth.Month() && on.Day() < birth.Day()) {
		age--
	}
	return age
}

func (s *ApplicantService) validate(req *dto.ApplyRequest) (int, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.TrimSpace(req.Email)
	req.ContactNum = strings.TrimSpace(req.ContactNum)
	req.Birthdate = strings.TrimSpace(req.Birthdate)

	if req.FirstName == "" || req.LastName == "" || req.Email == "" || req.ContactNum == "" || req.Birthdate == "" {
		return 0, apperr.Validation("First name, last name, email, contact number and birthdate are required.")
	}

	years := 0
	if v := strings.TrimSpace(req.YearsExperience); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, apperr.Validation("Years of experience must be a whole number.")
		}
		years = n
	}

	birth, err := time.Parse(birthdateLayout, req.Birthdate)
	if err != nil {
		return 0, apperr.Validation("Birthdate must be in YYYY-MM-DD format.")
	}
	if AgeOn(birth, s.now()) < s.cfg.MinAge {
		return 0, apperr.Validationf("You must be at least %d years old to apply.", s.cfg.MinAge)
	}
	return years, nil
}

// Apply stores a new application with its resume and ID image. Any file
// saved for an application that is then rejected is removed again.
func (s *ApplicantService) Apply(ctx context.Context, req *dto.ApplyRequest, resume, idImage *multipart.FileHeader, ip string) (id int64, err error) {
	if resume == nil || idImage == nil {
		return 0, apperr.Validation("Resume and ID Image are required.")
	}

	years, err := s.validate(req)
	if err != nil {
		return 0, err
	}

	var saved []string
	defer func() {
		if err == nil {
			return
		}
		for _, p := range saved {
			logging.BestEffort(ctx, "remove_rejected_upload", s.assets.Remove(p), "path", p)
		}
	}()

	resumePath, err := s.assets.Save(resume, "resume")
	if err != nil {
		return 0, err
	}
	saved = append(saved, resumePath)

	idImagePath, err := s.assets.Save(idImage, "id_image")
	if err != nil {
		return 0, err
	}
	saved = append(saved, idImagePath)

	now := s.now()
	var recent int64
	if _, err = s.store.FetchOne(ctx, &recent,
		"SELECT COUNT(*) FROM applicants WHERE (email = ? OR ip_address = ?) AND created_at > ?",
		req.Email, ip, now.Add(-s.cfg.Throttle)); err != nil {
		return 0, err
	}
	if recent > 0 {
		return 0, apperr.Throttled("System limit reached: You (or this device) have already applied in the last 24 hours.")
	}

	err = s.store.Tx(ctx, func(q database.Querier) error {
		// the unique index may be missing on a restored store
		var existing int64
		if _, err := q.FetchOne(ctx, &existing,
			"SELECT COUNT(*) FROM applicants WHERE first_name = ? AND last_name = ? AND birthdate = ?",
			req.FirstName, req.LastName, req.Birthdate); err != nil {
			return err
		}
		if existing > 0 {
			return errDuplicateApplicant
		}
		res, err := q.Execute(ctx,
			`INSERT INTO applicants (
				first_name, last_name, email, contact_num, birthdate, gender, address,
				position_applied, years_experience, previous_employer, status,
				resume_path, id_image_path, ip_address, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			req.FirstName, req.LastName, req.Email, req.ContactNum, req.Birthdate,
			strings.TrimSpace(req.Gender), strings.TrimSpace(req.Address), strings.TrimSpace(req.PositionApplied),
			years, strings.TrimSpace(req.PreviousEmployer), models.ApplicantStatusPending,
			resumePath, idImagePath, ip, now)
		if err != nil {
			return err
		}
		id = res.LastInsertID
		return nil
	})
	if database.IsUnique(err) {
		err = errDuplicateApplicant
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Status looks an application up by id, or by email when id is empty.
func (s *ApplicantService) Status(ctx context.Context, id, email string) (*models.Applicant, error) {
	id = strings.TrimSpace(id)
	email = strings.TrimSpace(email)

	var a models.Applicant
	var found bool
	var err error
	switch {
	case id != "":
		n, perr := strconv.ParseUint(id, 10, 64)
		if perr != nil {
			return nil, apperr.Validation("Application ID must be a number.")
		}
		found, err = s.store.FetchOne(ctx, &a, "SELECT * FROM applicants WHERE id = ?", n)
	case email != "":
		found, err = s.store.FetchOne(ctx, &a,
			"SELECT * FROM applicants WHERE email = ? ORDER BY created_at DESC LIMIT 1", email)
	default:
		return nil, apperr.Validation("Please provide an Application ID or Email to check status.")
	}
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperr.NotFound("Application not found.")
	}
	return &a, nil
}

func (s *ApplicantService) List(ctx context.Context, q dto.ApplicantListQuery) (*dto.ApplicantListResponse, error) {
	q.Normalize(10)

	var where []string
	var args []any
	if q.Search != "" {
		where = append(where, "(first_name LIKE ? OR last_name LIKE ? OR email LIKE ? OR position_applied LIKE ?)")
		like := q.Like()
		args = append(args, like, like, like, like)
	}
	if q.Status != "" {
		where = append(where, "status = ?")
		args = append(args, q.Status)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	order := " ORDER BY created_at DESC, id DESC"
	switch q.Sort {
	case "asc":
		order = " ORDER BY created_at ASC, id ASC"
	case "alpha":
		order = " ORDER BY last_name ASC, first_name ASC"
	}

	resp := &dto.ApplicantListResponse{Applicants: []models.Applicant{}}
	pageArgs := append(append([]any{}, args...), q.Limit, q.Offset())
	if err := s.store.FetchMany(ctx, &resp.Applicants,
		"SELECT * FROM applicants"+clause+order+" LIMIT ? OFFSET ?", pageArgs...); err != nil {
		return nil, err
	}

	var filtered int64
	if _, err := s.store.FetchOne(ctx, &filtered, "SELECT COUNT(*) FROM applicants"+clause, args...); err != nil {
		return nil, err
	}
	resp.Pagination = dto.NewPagination(q.Page, q.Limit, filtered)

	// Overall figures; not narrowed by the search.
	if _, err := s.store.FetchOne(ctx, &resp.Stats,
		`SELECT COUNT(*) AS total,
		        COALESCE(SUM(CASE WHEN gender = 'Male' THEN 1 ELSE 0 END), 0) AS male,
		        COALESCE(SUM(CASE WHEN gender = 'Female' THEN 1 ELSE 0 END), 0) AS female,
		        COALESCE(SUM(CASE WHEN strftime('%Y-%m', created_at) = ? THEN 1 ELSE 0 END), 0) AS this_month
		 FROM applicants`, s.now().Format("2006-01")); err != nil {
		return nil, err
	}
	return resp, nil
}

type applicantName struct {
	FirstName   string
	LastName    string
	ResumePath  string
	IDImagePath string `gorm:"column:id_image_path"`
}

func (s *ApplicantService) lookup(ctx context.Context, id uint) (*applicantName, error) {
	var a applicantName
	found, err := s.store.FetchOne(ctx, &a,
		"SELECT first_name, last_name, resume_path, id_image_path FROM applicants WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperr.NotFound("Applicant not found.")
	}
	return &a, nil
}

func (s *ApplicantService) UpdateStatus(ctx context.Context, actor audit.Actor, id uint, status string) error {
	if !models.IsApplicantStatus(status) {
		return apperr.Validationf("Status must be one of: %s.", strings.Join(models.ApplicantStatuses, ", "))
	}
	a, err := s.lookup(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.store.Execute(ctx, "UPDATE applicants SET status = ? WHERE id = ?", status, id); err != nil {
		return err
	}

	s.audit.Record(ctx, actor, audit.ActionStatusUpdate,
		fmt.Sprintf("%s changed status of %s %s (Applicant ID: %d) to %q.", actorLabel(actor), a.FirstName, a.LastName, id, status))
	return nil
}

// Delete removes an applicant. Without force, an applicant referenced by
// any deployment is a conflict; with force, those deployments go first in
// the same transaction. Uploads are removed once the row is gone.
func (s *ApplicantService) Delete(ctx context.Context, actor audit.Actor, id uint, force bool) error {
	a, err := s.lookup(ctx, id)
	if err != nil {
		return err
	}

	var cascaded int64
	if force {
		err = s.store.Tx(ctx, func(q database.Querier) error {
			res, err := q.Execute(ctx, "DELETE FROM deployments WHERE applicant_id = ?", id)
			if err != nil {
				return err
			}
			cascaded = res.RowsAffected
			_, err = q.Execute(ctx, "DELETE FROM applicants WHERE id = ?", id)
			return err
		})
	} else {
		_, err = s.store.Execute(ctx, "DELETE FROM applicants WHERE id = ?", id)
	}
	if database.IsForeignKey(err) {
		return apperr.Conflict(fmt.Sprintf("Cannot delete %s: Has deployment records. Use 'Delete with Deployment' option.", a.FirstName))
	}
	if err != nil {
		return err
	}

	for _, p := range []string{a.ResumePath, a.IDImagePath} {
		logging.BestEffort(ctx, "remove_applicant_upload", s.assets.Remove(p), "applicant_id", id, "path", p)
	}

	if force {
		s.audit.Record(ctx, actor, audit.ActionForceDeleteDep,
			fmt.Sprintf("Cascaded delete of %d deployments for applicant ID %d", cascaded, id))
		s.audit.Record(ctx, actor, audit.ActionDelete,
			fmt.Sprintf("Force deleted applicant and records: %s %s", a.FirstName, a.LastName))
	} else {
		s.audit.Record(ctx, actor, audit.ActionDelete,
			fmt.Sprintf("Deleted applicant: %s %s", a.FirstName, a.LastName))
	}
	return nil
}

// DashboardStats returns the headline counts, a six-month intake chart
// and the five newest applicants.
func (s *ApplicantService) DashboardStats(ctx context.Context) (*dto.DashboardStats, error) {
	stats := &dto.DashboardStats{Chart: []dto.MonthCount{}, Recent: []models.Applicant{}}

	if _, err := s.store.FetchOne(ctx, &stats.Counts,
		`SELECT (SELECT COUNT(*) FROM applicants) AS total,
		        (SELECT COUNT(*) FROM applicants WHERE status = ?) AS pending,
		        (SELECT COUNT(*) FROM deployments WHERE status = ?) AS active_deployments`,
		models.ApplicantStatusPending, models.DeploymentStatusActive); err != nil {
		return nil, err
	}

	if err := s.store.FetchMany(ctx, &stats.Chart,
		`SELECT strftime('%Y-%m', created_at) AS month, COUNT(*) AS count
		 FROM applicants WHERE created_at >= ?
		 GROUP BY month ORDER BY month ASC`, s.now().AddDate(0, -6, 0)); err != nil {
		return nil, err
	}

	if err := s.store.FetchMany(ctx, &stats.Recent,
		"SELECT * FROM applicants ORDER BY created_at DESC, id DESC LIMIT 5"); err != nil {
		return nil, err
	}
	return stats, nil
}

func actorLabel(actor audit.Actor) string {
	if actor.UserID == nil {
		return "System"
	}
	return fmt.Sprintf("Admin User ID #%d", *actor.UserID)
}
