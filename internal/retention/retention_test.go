package retention

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alohasecurity/aloha-backend/internal/database"
	"github.com/alohasecurity/aloha-backend/internal/models"
	"github.com/alohasecurity/aloha-backend/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store   *database.Store
	uploads string
	sweeper *Sweeper
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	store, err := database.Open(filepath.Join(root, "aloha.db"), database.Migrate)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	uploads := filepath.Join(root, "uploads")
	require.NoError(t, os.MkdirAll(uploads, 0o755))

	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	sw := NewSweeper(store, storage.NewAssetStore(uploads, 0), Config{
		Window:       72 * time.Hour,
		Interval:     time.Hour,
		LogRetention: 30 * 24 * time.Hour,
	})
	sw.now = func() time.Time { return now }
	return &fixture{store: store, uploads: uploads, sweeper: sw, now: now}
}

func (f *fixture) addApplicant(t *testing.T, first, status string, age time.Duration, withFiles bool) int64 {
	t.Helper()
	var resume, idImage string
	if withFiles {
		resume = "/uploads/resume-" + first + ".pdf"
		idImage = "/uploads/id_image-" + first + ".png"
		for _, p := range []string{resume, idImage} {
			require.NoError(t, os.WriteFile(filepath.Join(f.uploads, filepath.Base(p)), []byte("x"), 0o644))
		}
	}
	res, err := f.store.Execute(context.Background(),
		`INSERT INTO applicants (first_name, last_name, email, contact_num, birthdate, status, resume_path, id_image_path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		first, "Kealoha", first+"@example.com", "808", "1990-01-01", status, resume, idImage, f.now.Add(-age))
	require.NoError(t, err)
	return res.LastInsertID
}

func (f *fixture) remaining(t *testing.T) []string {
	t.Helper()
	var names []string
	require.NoError(t, f.store.FetchMany(context.Background(), &names, "SELECT first_name FROM applicants ORDER BY first_name"))
	return names
}

func TestRunOnceDeletesOnlyStaleRejected(t *testing.T) {
	f := newFixture(t)
	f.addApplicant(t, "old", models.ApplicantStatusRejected, 73*time.Hour, true)
	f.addApplicant(t, "fresh", models.ApplicantStatusRejected, time.Hour, true)
	f.addApplicant(t, "pending", models.ApplicantStatusPending, 100*time.Hour, false)

	rep := f.sweeper.RunOnce(context.Background())

	assert.Equal(t, 1, rep.Deleted)
	assert.Zero(t, rep.Failed)
	assert.Equal(t, []string{"fresh", "pending"}, f.remaining(t))
	assert.NoFileExists(t, filepath.Join(f.uploads, "resume-old.pdf"))
	assert.NoFileExists(t, filepath.Join(f.uploads, "id_image-old.png"))
	assert.FileExists(t, filepath.Join(f.uploads, "resume-fresh.pdf"))
}

func TestRunOnceToleratesMissingFiles(t *testing.T) {
	f := newFixture(t)
	id := f.addApplicant(t, "gone", models.ApplicantStatusRejected, 80*time.Hour, false)
	_, err := f.store.Execute(context.Background(),
		"UPDATE applicants SET resume_path = ?, id_image_path = ? WHERE id = ?",
		"/uploads/resume-missing.pdf", "/uploads/id_image-missing.png", id)
	require.NoError(t, err)

	rep := f.sweeper.RunOnce(context.Background())

	assert.Equal(t, 1, rep.Deleted)
	assert.Empty(t, f.remaining(t))
}

func TestRunOnceContinuesPastFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	blocked := f.addApplicant(t, "deployed", models.ApplicantStatusRejected, 80*time.Hour, false)
	f.addApplicant(t, "loose", models.ApplicantStatusRejected, 80*time.Hour, false)

	branch, err := f.store.Execute(ctx,
		"INSERT INTO branches (name, location, required_guards, created_at) VALUES (?, ?, ?, ?)",
		"Hilo", "Big Island", 1, f.now)
	require.NoError(t, err)
	_, err = f.store.Execute(ctx,
		"INSERT INTO deployments (applicant_id, branch_id, date_deployed, status) VALUES (?, ?, ?, ?)",
		blocked, branch.LastInsertID, f.now, models.DeploymentStatusEnded)
	require.NoError(t, err)

	rep := f.sweeper.RunOnce(ctx)

	assert.Equal(t, 1, rep.Deleted)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, []string{"deployed"}, f.remaining(t))
}

func TestRunOncePrunesOldSystemLogs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	insert := "INSERT INTO system_logs (id, timestamp, level, message, created_at) VALUES (?, ?, ?, ?, ?)"
	_, err := f.store.Execute(ctx, insert, "a", f.now.AddDate(0, 0, -31), "ERROR", "old", f.now)
	require.NoError(t, err)
	_, err = f.store.Execute(ctx, insert, "b", f.now.AddDate(0, 0, -1), "ERROR", "recent", f.now)
	require.NoError(t, err)

	rep := f.sweeper.RunOnce(ctx)

	assert.Equal(t, int64(1), rep.LogsPruned)
}

func TestStartAndStop(t *testing.T) {
	f := newFixture(t)
	f.addApplicant(t, "old", models.ApplicantStatusRejected, 100*time.Hour, false)

	f.sweeper.Start(context.Background())
	require.Eventually(t, func() bool { return len(f.remaining(t)) == 0 }, 2*time.Second, 10*time.Millisecond)
	f.sweeper.Stop()
	f.sweeper.Stop()
}
