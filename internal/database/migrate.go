package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alohasecurity/aloha-backend/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// storeIndexes back the one-applicant-per-identity and
// one-active-deployment-per-applicant rules.
var storeIndexes = []struct {
	name string
	ddl  string
}{
	{
		name: "idx_applicants_identity",
		ddl:  "CREATE UNIQUE INDEX IF NOT EXISTS idx_applicants_identity ON applicants(first_name, last_name, birthdate)",
	},
	{
		name: "idx_deployments_one_active",
		ddl:  "CREATE UNIQUE INDEX IF NOT EXISTS idx_deployments_one_active ON deployments(applicant_id) WHERE status = 'Active'",
	},
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Branch{},
		&models.Applicant{},
		&models.Deployment{},
		&models.AuditLog{},
		&models.SystemLog{},
	); err != nil {
		return err
	}

	for _, idx := range storeIndexes {
		// A restored store may already hold rows that break the index.
		// Keep serving; applicant and deployment writes repeat both checks
		// inside their transactions.
		if err := db.Exec(idx.ddl).Error; err != nil {
			slog.Warn("could not create index", "index", idx.name, "error", err)
		}
	}
	return nil
}

// AdminSeed describes the account created when the users table is empty
// of that username.
type AdminSeed struct {
	Username         string
	Email            string
	Password         string
	SecurityQuestion string
	SecurityAnswer   string
}

// SeedAdmin creates the default admin account if no user with that
// username or email exists yet.
func SeedAdmin(ctx context.Context, q Querier, seed AdminSeed) error {
	var count int64
	if _, err := q.FetchOne(ctx, &count,
		"SELECT COUNT(*) FROM users WHERE username = ? OR email = ?", seed.Username, seed.Email); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	pw, err := bcrypt.GenerateFromPassword([]byte(seed.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash seed password: %w", err)
	}
	answer, err := bcrypt.GenerateFromPassword([]byte(NormalizeAnswer(seed.SecurityAnswer)), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash seed answer: %w", err)
	}

	_, err = q.Execute(ctx,
		`INSERT INTO users (username, email, password_hash, role, security_question, security_answer_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		seed.Username, seed.Email, string(pw), models.RoleAdmin, seed.SecurityQuestion, string(answer),
		time.Now().UTC().Truncate(time.Second))
	if err != nil {
		return err
	}
	slog.Info("seeded admin account", "username", seed.Username)
	return nil
}

// NormalizeAnswer is applied to security answers before hashing and
// before comparison.
func NormalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
