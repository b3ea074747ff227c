package services

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alohasecurity/aloha-backend/internal/audit"
	"github.com/alohasecurity/aloha-backend/internal/config"
	"github.com/alohasecurity/aloha-backend/internal/database"
	"github.com/alohasecurity/aloha-backend/internal/dto"
	"github.com/alohasecurity/aloha-backend/internal/storage"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

type env struct {
	store       *database.Store
	uploads     string
	cfg         *config.Config
	auth        *AuthService
	users       *UserService
	applicants  *ApplicantService
	branches    *BranchService
	deployments *DeploymentService
	auditLogs   *AuditService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	root := t.TempDir()
	store, err := database.Open(filepath.Join(root, "aloha.db"), database.Migrate)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{
		JWTSecret:       "test-secret",
		JWTExpiry:       8 * time.Hour,
		ApplyThrottle:   24 * time.Hour,
		MinApplicantAge: 21,
	}
	uploads := filepath.Join(root, "uploads")
	recorder := audit.NewRecorder(store)
	assets := storage.NewAssetStore(uploads, 1<<20)

	applicants := NewApplicantService(store, assets, recorder, ApplicantConfig{
		MinAge:   cfg.MinApplicantAge,
		Throttle: cfg.ApplyThrottle,
	})
	applicants.now = func() time.Time { return testNow }
	deployments := NewDeploymentService(store, recorder)
	deployments.now = func() time.Time { return testNow }

	return &env{
		store:       store,
		uploads:     uploads,
		cfg:         cfg,
		auth:        NewAuthService(store, cfg, recorder),
		users:       NewUserService(store, recorder),
		applicants:  applicants,
		branches:    NewBranchService(store, recorder),
		deployments: deployments,
		auditLogs:   NewAuditService(store),
	}
}

func upload(t *testing.T, field, name, contentType string) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+name+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte("file body"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })
	return form.File[field][0]
}

func applyReq(first, last, email, birthdate string) *dto.ApplyRequest {
	return &dto.ApplyRequest{
		FirstName:       first,
		LastName:        last,
		Email:           email,
		ContactNum:      "808-555-0100",
		Birthdate:       birthdate,
		Gender:          "Male",
		PositionApplied: "Security Guard",
		YearsExperience: "3",
	}
}

func (e *env) apply(t *testing.T, req *dto.ApplyRequest, ip string) (int64, error) {
	t.Helper()
	return e.applicants.Apply(context.Background(), req,
		upload(t, "resume", "cv.pdf", "application/pdf"),
		upload(t, "id_image", "id.png", "image/png"), ip)
}

func (e *env) mustApply(t *testing.T, first, last, email, ip string) uint {
	t.Helper()
	id, err := e.apply(t, applyReq(first, last, email, "1990-05-01"), ip)
	require.NoError(t, err)
	return uint(id)
}

func (e *env) mustBranch(t *testing.T, name string) uint {
	t.Helper()
	id, err := e.branches.Create(context.Background(), admin, &dto.BranchRequest{Name: name, Location: "Oahu"})
	require.NoError(t, err)
	return uint(id)
}

func (e *env) uploadCount(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(e.uploads)
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	return len(entries)
}

func (e *env) auditActions(t *testing.T) []string {
	t.Helper()
	var actions []string
	require.NoError(t, e.store.FetchMany(context.Background(), &actions, "SELECT action FROM audit_logs ORDER BY id"))
	return actions
}

var admin = audit.UserActor(1, "127.0.0.1")
