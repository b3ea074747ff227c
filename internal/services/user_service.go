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
	"golang.org/x/crypto/bcrypt"
)

var errUserTaken = apperr.Conflict("Username or Email already exists.")

type UserService struct {
	store *database.Store
	audit *audit.Recorder
}

func NewUserService(store *database.Store, recorder *audit.Recorder) *UserService {
	return &UserService{store: store, audit: recorder}
}

func (s *UserService) List(ctx context.Context) ([]dto.UserRow, error) {
	users := []dto.UserRow{}
	err := s.store.FetchMany(ctx, &users,
		"SELECT id, username, email, role, created_at FROM users ORDER BY created_at DESC, id DESC")
	return users, err
}

func validRole(role string) bool {
	return role == models.RoleAdmin || role == models.RoleStaff
}

func (s *UserService) Create(ctx context.Context, actor audit.Actor, req *dto.CreateUserRequest) (int64, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)
	if username == "" || email == "" || req.Password == "" {
		return 0, apperr.Validation("Missing required fields.")
	}
	if len(req.Password) < minPasswordLen {
		return 0, apperr.Validationf("Password must be at least %d characters.", minPasswordLen)
	}
	role := req.Role
	if role == "" {
		role = models.RoleAdmin
	}
	if !validRole(role) {
		return 0, apperr.Validationf("Invalid role %q.", req.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("failed to hash password: %w", err)
	}

	var question, answerHash *string
	if req.SecurityAnswer != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(database.NormalizeAnswer(req.SecurityAnswer)), bcrypt.DefaultCost)
		if err != nil {
			return 0, fmt.Errorf("failed to hash answer: %w", err)
		}
		a := string(h)
		answerHash = &a
	}
	if req.SecurityQuestion != "" {
		q := req.SecurityQuestion
		question = &q
	}

	res, err := s.store.Execute(ctx,
		`INSERT INTO users (username, email, password_hash, role, security_question, security_answer_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		username, email, string(hash), role, question, answerHash, time.Now().UTC().Truncate(time.Second))
	if database.IsUnique(err) {
		return 0, errUserTaken
	}
	if err != nil {
		return 0, err
	}

	s.audit.Record(ctx, actor, audit.ActionUserCreate, fmt.Sprintf("Created user: %s (%s)", username, email))
	return res.LastInsertID, nil
}

func (s *UserService) Update(ctx context.Context, actor audit.Actor, id uint, req *dto.UpdateUserRequest) error {
	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)
	if username == "" || email == "" {
		return apperr.Validation("Username and email are required.")
	}
	if req.Role == "" {
		req.Role = models.RoleAdmin
	}
	if !validRole(req.Role) {
		return apperr.Validationf("Invalid role %q.", req.Role)
	}

	var res database.ExecResult
	var err error
	if strings.TrimSpace(req.Password) != "" {
		if len(req.Password) < minPasswordLen {
			return apperr.Validationf("Password must be at least %d characters.", minPasswordLen)
		}
		hash, herr := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if herr != nil {
			return fmt.Errorf("failed to hash password: %w", herr)
		}
		res, err = s.store.Execute(ctx,
			"UPDATE users SET username = ?, email = ?, role = ?, password_hash = ? WHERE id = ?",
			username, email, req.Role, string(hash), id)
	} else {
		res, err = s.store.Execute(ctx,
			"UPDATE users SET username = ?, email = ?, role = ? WHERE id = ?",
			username, email, req.Role, id)
	}
	if database.IsUnique(err) {
		return errUserTaken
	}
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}

	s.audit.Record(ctx, actor, audit.ActionUserUpdate, fmt.Sprintf("Updated user details for ID: %d", id))
	return nil
}

// Delete removes a user. Callers may not delete their own account.
func (s *UserService) Delete(ctx context.Context, actor audit.Actor, id uint) error {
	if actor.UserID != nil && *actor.UserID == id {
		return apperr.Forbidden("You cannot delete your own account.")
	}

	var username string
	found, err := s.store.FetchOne(ctx, &username, "SELECT username FROM users WHERE id = ?", id)
	if err != nil {
		return err
	}
	if !found {
		return ErrUserNotFound
	}

	if _, err := s.store.Execute(ctx, "DELETE FROM users WHERE id = ?", id); err != nil {
		return err
	}
	s.audit.Record(ctx, actor, audit.ActionUserDelete, "Deleted user: "+username)
	return nil
}
