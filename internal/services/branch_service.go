package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alohasecurity/aloha-backend/internal/apperr"
	"github.com/alohasecurity/aloha-backend/internal/audit"
	"github.com/alohasecurity/aloha-backend/internal/database"
	"github.com/alohasecurity/aloha-backend/internal/dto"
	"github.com/alohasecurity/aloha-backend/internal/models"
)

var errBranchNotFound = apperr.NotFound("Branch not found.")

type BranchService struct {
	store *database.Store
	audit *audit.Recorder
}

func NewBranchService(store *database.Store, recorder *audit.Recorder) *BranchService {
	return &BranchService{store: store, audit: recorder}
}

func normalizeBranch(req *dto.BranchRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	req.Location = strings.TrimSpace(req.Location)
	if req.Name == "" || req.Location == "" {
		return apperr.Validation("Name and Location are required.")
	}
	if req.RequiredGuards < 0 {
		return apperr.Validation("Required guards cannot be negative.")
	}
	if req.RequiredGuards == 0 {
		req.RequiredGuards = 1
	}
	return nil
}

func (s *BranchService) Create(ctx context.Context, actor audit.Actor, req *dto.BranchRequest) (int64, error) {
	if err := normalizeBranch(req); err != nil {
		return 0, err
	}

	res, err := s.store.Execute(ctx,
		"INSERT INTO branches (name, location, required_guards, created_at) VALUES (?, ?, ?, ?)",
		req.Name, req.Location, req.RequiredGuards, time.Now().UTC().Truncate(time.Second))
	if database.IsUnique(err) {
		return 0, apperr.Conflict(fmt.Sprintf("A branch named %q already exists.", req.Name))
	}
	if err != nil {
		return 0, err
	}

	s.audit.Record(ctx, actor, audit.ActionBranchCreate,
		fmt.Sprintf("%s created a new branch: %q (ID: %d).", actorLabel(actor), req.Name, res.LastInsertID))
	return res.LastInsertID, nil
}

func (s *BranchService) List(ctx context.Context, q dto.PageQuery) (*dto.BranchListResponse, error) {
	q.Normalize(10)
	like := q.Like()

	order := "DESC"
	if q.Sort == "asc" {
		order = "ASC"
	}

	resp := &dto.BranchListResponse{Branches: []models.Branch{}}
	if err := s.store.FetchMany(ctx, &resp.Branches,
		"SELECT * FROM branches WHERE name LIKE ? OR location LIKE ? ORDER BY created_at "+order+", id "+order+" LIMIT ? OFFSET ?",
		like, like, q.Limit, q.Offset()); err != nil {
		return nil, err
	}

	var filtered int64
	if _, err := s.store.FetchOne(ctx, &filtered,
		"SELECT COUNT(*) FROM branches WHERE name LIKE ? OR location LIKE ?", like, like); err != nil {
		return nil, err
	}
	resp.Pagination = dto.NewPagination(q.Page, q.Limit, filtered)

	if _, err := s.store.FetchOne(ctx, &resp.Stats,
		"SELECT COUNT(*) AS total_branches, COUNT(DISTINCT location) AS total_locations FROM branches"); err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *BranchService) Update(ctx context.Context, actor audit.Actor, id uint, req *dto.BranchRequest) error {
	if err := normalizeBranch(req); err != nil {
		return err
	}

	res, err := s.store.Execute(ctx,
		"UPDATE branches SET name = ?, location = ?, required_guards = ? WHERE id = ?",
		req.Name, req.Location, req.RequiredGuards, id)
	if database.IsUnique(err) {
		return apperr.Conflict(fmt.Sprintf("A branch named %q already exists.", req.Name))
	}
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return errBranchNotFound
	}

	s.audit.Record(ctx, actor, audit.ActionBranchUpdate,
		fmt.Sprintf("%s updated branch ID #%d to Name: %q.", actorLabel(actor), id, req.Name))
	return nil
}

// Delete removes a branch. Without force, a branch any deployment points
// at is a conflict; with force, those deployments are deleted first in
// the same transaction.
func (s *BranchService) Delete(ctx context.Context, actor audit.Actor, id uint, force bool) error {
	var name string
	found, err := s.store.FetchOne(ctx, &name, "SELECT name FROM branches WHERE id = ?", id)
	if err != nil {
		return err
	}
	if !found {
		return errBranchNotFound
	}

	var cascaded int64
	if force {
		err = s.store.Tx(ctx, func(q database.Querier) error {
			res, err := q.Execute(ctx, "DELETE FROM deployments WHERE branch_id = ?", id)
			if err != nil {
				return err
			}
			cascaded = res.RowsAffected
			_, err = q.Execute(ctx, "DELETE FROM branches WHERE id = ?", id)
			return err
		})
	} else {
		_, err = s.store.Execute(ctx, "DELETE FROM branches WHERE id = ?", id)
	}
	if database.IsForeignKey(err) {
		return apperr.Conflict(fmt.Sprintf("Cannot delete branch %q. Guards are currently deployed here.", name))
	}
	if err != nil {
		return err
	}

	if force {
		s.audit.Record(ctx, actor, audit.ActionForceDeleteBranchDep,
			fmt.Sprintf("Cascaded delete of %d deployments for branch ID %d", cascaded, id))
	}
	s.audit.Record(ctx, actor, audit.ActionBranchDelete,
		fmt.Sprintf("%s deleted branch: %q (ID: %d).", actorLabel(actor), name, id))
	return nil
}
