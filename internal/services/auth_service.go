package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alohasecurity/aloha-backend/internal/apperr"
	"github.com/alohasecurity/aloha-backend/internal/audit"
	"github.com/alohasecurity/aloha-backend/internal/config"
	"github.com/alohasecurity/aloha-backend/internal/database"
	"github.com/alohasecurity/aloha-backend/internal/dto"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 8

var (
	ErrInvalidCredentials = apperr.Auth("Invalid credentials.")
	ErrWrongAnswer        = apperr.Auth("Incorrect security answer.")
	ErrWrongPassword      = apperr.Auth("Current password incorrect.")
	ErrUserNotFound       = apperr.NotFound("User not found.")
)

type AuthService struct {
	store *database.Store
	cfg   *config.Config
	audit *audit.Recorder
}

func NewAuthService(store *database.Store, cfg *config.Config, recorder *audit.Recorder) *AuthService {
	return &AuthService{store: store, cfg: cfg, audit: recorder}
}

type credentialRow struct {
	ID                 uint
	Username           string
	Role               string
	PasswordHash       string
	SecurityQuestion   *string
	SecurityAnswerHash *string
}

func (s *AuthService) findByEmail(ctx context.Context, email string) (*credentialRow, error) {
	var row credentialRow
	found, err := s.store.FetchOne(ctx, &row,
		`SELECT id, username, role, password_hash, security_question, security_answer_hash
		 FROM users WHERE email = ?`, strings.TrimSpace(email))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &row, nil
}

func (s *AuthService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	if req.Email == "" || req.Password == "" {
		return nil, apperr.Validation("Email and password are required.")
	}

	user, err := s.findByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	session := dto.SessionUser{ID: user.ID, Username: user.Username, Role: user.Role}
	token, err := s.GenerateToken(session)
	if err != nil {
		return nil, err
	}
	return &dto.LoginResponse{Token: token, User: session}, nil
}

// GenerateToken signs an access token carrying the session identity.
func (s *AuthService) GenerateToken(user dto.SessionUser) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"id":       user.ID,
		"username": user.Username,
		"role":     user.Role,
		"iat":      now.Unix(),
		"exp":      now.Add(s.cfg.JWTExpiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// SecurityQuestion is the first step of a password reset.
func (s *AuthService) SecurityQuestion(ctx context.Context, email string) (string, error) {
	if strings.TrimSpace(email) == "" {
		return "", apperr.Validation("Email is required.")
	}
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", apperr.NotFound("Email not found.")
	}
	if user.SecurityQuestion == nil || *user.SecurityQuestion == "" {
		return "", apperr.Validation("No security question set for this account.")
	}
	return *user.SecurityQuestion, nil
}

// ResetPassword verifies the security answer and replaces the password.
func (s *AuthService) ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest, ip string) error {
	if req.Email == "" || req.Answer == "" {
		return apperr.Validation("Email and answer are required.")
	}
	if len(req.NewPassword) < minPasswordLen {
		return apperr.Validationf("New password must be at least %d characters.", minPasswordLen)
	}

	user, err := s.findByEmail(ctx, req.Email)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.SecurityAnswerHash == nil {
		return apperr.Validation("No security question set for this account.")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.SecurityAnswerHash), []byte(database.NormalizeAnswer(req.Answer))); err != nil {
		return ErrWrongAnswer
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if _, err := s.store.Execute(ctx, "UPDATE users SET password_hash = ? WHERE id = ?", string(hash), user.ID); err != nil {
		return err
	}

	s.audit.Record(ctx, audit.UserActor(user.ID, ip), audit.ActionPassReset,
		"Password reset via security question for "+strings.TrimSpace(req.Email))
	return nil
}

// UpdateProfile changes the caller's own password and/or security question.
func (s *AuthService) UpdateProfile(ctx context.Context, actor audit.Actor, req *dto.UpdateProfileRequest) error {
	if actor.UserID == nil {
		return apperr.Auth("Unauthorized")
	}
	userID := *actor.UserID

	if req.CurrentPassword == "" {
		return apperr.Validation("Current password is required.")
	}
	if req.NewPassword != "" && len(req.NewPassword) < minPasswordLen {
		return apperr.Validationf("New password must be at least %d characters.", minPasswordLen)
	}
	if (req.NewQuestion == "") != (req.NewAnswer == "") {
		return apperr.Validation("Security question and answer must be set together.")
	}

	var current string
	found, err := s.store.FetchOne(ctx, &current, "SELECT password_hash FROM users WHERE id = ?", userID)
	if err != nil {
		return err
	}
	if !found {
		return ErrUserNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(current), []byte(req.CurrentPassword)); err != nil {
		return ErrWrongPassword
	}

	var changes []string
	if req.NewPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		if _, err := s.store.Execute(ctx, "UPDATE users SET password_hash = ? WHERE id = ?", string(hash), userID); err != nil {
			return err
		}
		changes = append(changes, "password")
	}
	if req.NewQuestion != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(database.NormalizeAnswer(req.NewAnswer)), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash answer: %w", err)
		}
		if _, err := s.store.Execute(ctx,
			"UPDATE users SET security_question = ?, security_answer_hash = ? WHERE id = ?",
			req.NewQuestion, string(hash), userID); err != nil {
			return err
		}
		changes = append(changes, "security question")
	}
	if len(changes) == 0 {
		return apperr.Validation("Nothing to update.")
	}

	s.audit.Record(ctx, actor, audit.ActionProfileUpdate,
		fmt.Sprintf("User ID %d updated their %s.", userID, strings.Join(changes, " and ")))
	return nil
}
