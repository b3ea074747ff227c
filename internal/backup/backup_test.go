package backup

import (
	"bytes"
	"context"
	"hash/crc32"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alohasecurity/aloha-backend/internal/apperr"
	"github.com/alohasecurity/aloha-backend/internal/audit"
	"github.com/alohasecurity/aloha-backend/internal/database"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store   *database.Store
	uploads string
	mgr     *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	store, err := database.Open(filepath.Join(root, StoreMember), database.Migrate)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	uploads := filepath.Join(root, "uploads")
	return &fixture{
		store:   store,
		uploads: uploads,
		mgr:     NewManager(store, uploads, audit.NewRecorder(store), 64<<20),
	}
}

func (f *fixture) addBranch(t *testing.T, name string) {
	t.Helper()
	_, err := f.store.Execute(context.Background(),
		"INSERT INTO branches (name, location, required_guards, created_at) VALUES (?, ?, ?, ?)",
		name, "Oahu", 1, time.Now().UTC())
	require.NoError(t, err)
}

func (f *fixture) branches(t *testing.T) []string {
	t.Helper()
	var names []string
	require.NoError(t, f.store.FetchMany(context.Background(), &names, "SELECT name FROM branches ORDER BY name"))
	return names
}

func (f *fixture) writeAsset(t *testing.T, name, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(f.uploads, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.uploads, name), []byte(body), 0o644))
}

func (f *fixture) auditActions(t *testing.T) []string {
	t.Helper()
	var actions []string
	require.NoError(t, f.store.FetchMany(context.Background(), &actions, "SELECT action FROM audit_logs ORDER BY id"))
	return actions
}

type member struct {
	name string
	body []byte
}

func buildZip(t *testing.T, members ...member) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, m := range members {
		w, err := zw.Create(m.name)
		require.NoError(t, err)
		_, err = w.Write(m.body)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func (f *fixture) restore(t *testing.T, name string, archive []byte) (RestoreResult, error) {
	t.Helper()
	return f.mgr.Restore(context.Background(), name, bytes.NewReader(archive), int64(len(archive)), audit.Actor{IP: "127.0.0.1"})
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addBranch(t, "Ala Moana")
	f.writeAsset(t, "resume-1.pdf", "original resume")

	var archive bytes.Buffer
	require.NoError(t, f.mgr.Backup(ctx, &archive, audit.UserActor(1, "127.0.0.1")))

	zr, err := zip.NewReader(bytes.NewReader(archive.Bytes()), int64(archive.Len()))
	require.NoError(t, err)
	var names []string
	for _, zf := range zr.File {
		names = append(names, zf.Name)
	}
	assert.Equal(t, []string{StoreMember, "uploads/resume-1.pdf"}, names)

	// diverge after the backup
	f.addBranch(t, "Kapolei")
	f.writeAsset(t, "resume-1.pdf", "tampered")
	f.writeAsset(t, "resume-2.pdf", "new upload")

	res, err := f.restore(t, "aloha_backup.ZIP", archive.Bytes())
	require.NoError(t, err)
	assert.True(t, res.DatabaseRestored)
	assert.Equal(t, 1, res.AssetsRestored)
	assert.Zero(t, res.Skipped)

	assert.Equal(t, database.Connected, f.store.State())
	assert.Equal(t, []string{"Ala Moana"}, f.branches(t))
	data, err := os.ReadFile(filepath.Join(f.uploads, "resume-1.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "original resume", string(data))

	// the backup audit entry was written after the snapshot
	assert.Equal(t, []string{audit.ActionSystemRestore}, f.auditActions(t))
}

func TestBackupWithoutUploadsDir(t *testing.T) {
	f := newFixture(t)

	var archive bytes.Buffer
	require.NoError(t, f.mgr.Backup(context.Background(), &archive, audit.Actor{}))

	zr, err := zip.NewReader(bytes.NewReader(archive.Bytes()), int64(archive.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, StoreMember, zr.File[0].Name)
	assert.Contains(t, f.auditActions(t), audit.ActionSystemBackup)
}

func TestRestoreAssetsOnly(t *testing.T) {
	f := newFixture(t)
	f.addBranch(t, "Hilo")

	archive := buildZip(t,
		member{"uploads/id_image-9.png", []byte("png bytes")},
		member{"uploads/", nil},
	)
	res, err := f.restore(t, "assets.zip", archive)
	require.NoError(t, err)
	assert.False(t, res.DatabaseRestored)
	assert.Equal(t, 1, res.AssetsRestored)

	assert.Equal(t, []string{"Hilo"}, f.branches(t))
	assert.FileExists(t, filepath.Join(f.uploads, "id_image-9.png"))
}

func TestRestoreNothingRecognized(t *testing.T) {
	f := newFixture(t)
	f.addBranch(t, "Kona")

	archive := buildZip(t, member{"notes/readme.txt", []byte("hello")})
	_, err := f.restore(t, "backup.zip", archive)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	assert.Equal(t, database.Connected, f.store.State())
	assert.Equal(t, []string{"Kona"}, f.branches(t))
	assert.Empty(t, f.auditActions(t))
}

func TestRestoreRejectsWrongExtension(t *testing.T) {
	f := newFixture(t)
	archive := buildZip(t, member{StoreMember, []byte("x")})

	_, err := f.restore(t, "backup.tar", archive)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestRestoreRejectsNonArchive(t *testing.T) {
	f := newFixture(t)

	_, err := f.restore(t, "backup.zip", []byte("definitely not a zip"))
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, database.Connected, f.store.State())
}

func TestRestoreSkipsCorruptMember(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	good, err := zw.Create("uploads/good.pdf")
	require.NoError(t, err)
	_, err = good.Write([]byte("fine"))
	require.NoError(t, err)

	body := []byte("corrupted body")
	raw, err := zw.CreateRaw(&zip.FileHeader{
		Name:               "uploads/bad.pdf",
		Method:             zip.Store,
		CRC32:              crc32.ChecksumIEEE(body) + 1,
		CompressedSize64:   uint64(len(body)),
		UncompressedSize64: uint64(len(body)),
	})
	require.NoError(t, err)
	_, err = raw.Write(body)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	res, err := f.restore(t, "backup.zip", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 1, res.AssetsRestored)
	assert.Equal(t, 1, res.Skipped)
	assert.FileExists(t, filepath.Join(f.uploads, "good.pdf"))
	assert.NoFileExists(t, filepath.Join(f.uploads, "bad.pdf"))

	entries, err := os.ReadDir(f.uploads)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestRestoreSkipsUnrecognizedMembers(t *testing.T) {
	f := newFixture(t)

	archive := buildZip(t,
		member{"notes.txt", []byte("ignored")},
		member{"uploads/ok.png", []byte("ok")},
	)
	res, err := f.restore(t, "backup.zip", archive)
	require.NoError(t, err)
	assert.Equal(t, 1, res.AssetsRestored)
	assert.Equal(t, 1, res.Skipped)
	assert.NoFileExists(t, filepath.Join(f.uploads, "notes.txt"))
}

func TestRestoreOnlyCorruptMembersFails(t *testing.T) {
	f := newFixture(t)
	f.addBranch(t, "Lihue")

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	body := []byte("garbage")
	raw, err := zw.CreateRaw(&zip.FileHeader{
		Name:               StoreMember,
		Method:             zip.Store,
		CRC32:              crc32.ChecksumIEEE(body) ^ 0xffff,
		CompressedSize64:   uint64(len(body)),
		UncompressedSize64: uint64(len(body)),
	})
	require.NoError(t, err)
	_, err = raw.Write(body)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = f.restore(t, "backup.zip", buf.Bytes())
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	// the old store is untouched and reconnected
	assert.Equal(t, database.Connected, f.store.State())
	assert.Equal(t, []string{"Lihue"}, f.branches(t))
}

func TestRestoreSkipsUnopenableStoreMember(t *testing.T) {
	f := newFixture(t)
	f.addBranch(t, "Waimea")

	archive := buildZip(t,
		member{StoreMember, []byte("this is plain text and not a database file")},
		member{"uploads/ok.pdf", []byte("pdf")},
	)
	res, err := f.restore(t, "backup.zip", archive)
	require.NoError(t, err)
	assert.False(t, res.DatabaseRestored)
	assert.Equal(t, 1, res.AssetsRestored)
	assert.Equal(t, 1, res.Skipped)

	assert.Equal(t, database.Connected, f.store.State())
	assert.Equal(t, []string{"Waimea"}, f.branches(t))
	assert.FileExists(t, filepath.Join(f.uploads, "ok.pdf"))

	entries, err := os.ReadDir(filepath.Dir(f.store.Path()))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".restore-")
	}
}

func TestRestoreOnlyUnopenableStoreMemberFails(t *testing.T) {
	f := newFixture(t)
	f.addBranch(t, "Hanalei")

	archive := buildZip(t, member{StoreMember, bytes.Repeat([]byte("not sqlite "), 64)})
	_, err := f.restore(t, "backup.zip", archive)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	assert.Equal(t, database.Connected, f.store.State())
	assert.Equal(t, []string{"Hanalei"}, f.branches(t))
	assert.Empty(t, f.auditActions(t))
}

func TestRestoreRejectsOversizedContent(t *testing.T) {
	f := newFixture(t)
	f.addBranch(t, "Kapaa")
	mgr := NewManager(f.store, f.uploads, audit.NewRecorder(f.store), 64)

	archive := buildZip(t,
		member{"uploads/a.pdf", bytes.Repeat([]byte{'a'}, 40)},
		member{"uploads/b.pdf", bytes.Repeat([]byte{'b'}, 40)},
	)
	_, err := mgr.Restore(context.Background(), "backup.zip", bytes.NewReader(archive), int64(len(archive)), audit.Actor{IP: "127.0.0.1"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	assert.NoFileExists(t, filepath.Join(f.uploads, "a.pdf"))
	assert.NoFileExists(t, filepath.Join(f.uploads, "b.pdf"))
	assert.Equal(t, []string{"Kapaa"}, f.branches(t))
	assert.Empty(t, f.auditActions(t))
}
