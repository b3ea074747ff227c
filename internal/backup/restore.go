package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alohasecurity/aloha-backend/internal/apperr"
	"github.com/alohasecurity/aloha-backend/internal/audit"
	"github.com/alohasecurity/aloha-backend/internal/logging"
	"github.com/alohasecurity/aloha-backend/internal/metrics"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
)

// RestoreResult summarizes what a restore applied.
type RestoreResult struct {
	DatabaseRestored bool `json:"database_restored"`
	AssetsRestored   int  `json:"assets_restored"`
	Skipped          int  `json:"skipped"`
}

type restorePlan struct {
	store   *zip.File
	assets  []assetMember
	skipped int
	// bytes is the declared uncompressed size of every planned member.
	bytes uint64
}

type assetMember struct {
	file *zip.File
	rel  string
}

// journalSuffixes are the sidecar files SQLite may leave next to the store.
var journalSuffixes = []string{"-journal", "-wal", "-shm"}

// Restore replaces the store file and uploaded assets with the contents
// of the archive in src. The archive is checked before the store is
// touched; once the store is released it is always reconnected.
func (m *Manager) Restore(ctx context.Context, filename string, src io.ReaderAt, size int64, actor audit.Actor) (RestoreResult, error) {
	var res RestoreResult

	if !strings.EqualFold(filepath.Ext(filename), ".zip") {
		metrics.RestoresTotal.WithLabelValues("rejected").Inc()
		return res, apperr.Validation("Invalid file type. Please upload a .zip file.")
	}

	zr, err := zip.NewReader(src, size)
	if err != nil {
		metrics.RestoresTotal.WithLabelValues("rejected").Inc()
		return res, &apperr.Error{Kind: apperr.KindValidation, Message: "Invalid backup archive", Err: err}
	}

	plan := planRestore(zr)
	if plan.store == nil && len(plan.assets) == 0 {
		metrics.RestoresTotal.WithLabelValues("rejected").Inc()
		return res, apperr.Validation("no recognized backup content")
	}
	if m.extractLimit > 0 && plan.bytes > uint64(m.extractLimit) {
		metrics.RestoresTotal.WithLabelValues("rejected").Inc()
		return res, apperr.Validationf("Backup content expands to %d bytes, over the %d byte limit.", plan.bytes, m.extractLimit)
	}
	res.Skipped = plan.skipped

	err = m.store.Swap(func(path string) error {
		if plan.store != nil {
			// a store member that cannot be opened never replaces the live file
			if err := extract(plan.store, path, m.store.VerifyFile); err != nil {
				slog.ErrorContext(ctx, "restore: store member skipped", "member", plan.store.Name, "error", err)
				res.Skipped++
			} else {
				res.DatabaseRestored = true
				removeJournals(ctx, path)
			}
		}

		for _, a := range plan.assets {
			target := filepath.Join(m.uploadsDir, filepath.FromSlash(a.rel))
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				slog.ErrorContext(ctx, "restore: asset skipped", "member", a.file.Name, "error", err)
				res.Skipped++
				continue
			}
			if err := extract(a.file, target, nil); err != nil {
				slog.ErrorContext(ctx, "restore: asset skipped", "member", a.file.Name, "error", err)
				res.Skipped++
				continue
			}
			res.AssetsRestored++
		}
		return nil
	})
	if err != nil {
		metrics.RestoresTotal.WithLabelValues("failed").Inc()
		return res, err
	}

	if !res.DatabaseRestored && res.AssetsRestored == 0 {
		metrics.RestoresTotal.WithLabelValues("rejected").Inc()
		return res, apperr.Validation("no backup member could be restored")
	}

	metrics.RestoresTotal.WithLabelValues("ok").Inc()
	m.audit.Record(ctx, actor, audit.ActionSystemRestore,
		fmt.Sprintf("System restored from %s (database: %t, assets: %d, skipped: %d)",
			filepath.Base(filename), res.DatabaseRestored, res.AssetsRestored, res.Skipped))
	return res, nil
}

func planRestore(zr *zip.Reader) restorePlan {
	var plan restorePlan
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		switch {
		case isStoreMember(f.Name):
			if plan.store == nil && f.UncompressedSize64 > 0 {
				plan.store = f
				plan.bytes += f.UncompressedSize64
			} else {
				plan.skipped++
			}
		case strings.HasPrefix(f.Name, AssetPrefix):
			rel := strings.TrimPrefix(f.Name, AssetPrefix)
			if rel == "" || !filepath.IsLocal(filepath.FromSlash(rel)) {
				slog.Warn("restore: unsafe asset path skipped", "member", f.Name)
				plan.skipped++
				continue
			}
			plan.assets = append(plan.assets, assetMember{file: f, rel: rel})
			plan.bytes += f.UncompressedSize64
		default:
			plan.skipped++
		}
	}
	return plan
}

// extract writes f next to target and renames it into place, so a
// failed member never leaves a half-written target behind. When check is
// set it must accept the written temp file before the rename.
func extract(f *zip.File, target string, check func(path string) error) (err error) {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	tmp := fmt.Sprintf("%s.restore-%s", target, uuid.NewString())
	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return apperr.FileSystem("failed to create restore file", err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()

	if _, err = io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	if err = out.Close(); err != nil {
		return err
	}
	if check != nil {
		if err = check(tmp); err != nil {
			removeJournals(context.Background(), tmp)
			return err
		}
	}
	if err = os.Rename(tmp, target); err != nil {
		return apperr.FileSystem("failed to replace file", err)
	}
	return nil
}

func removeJournals(ctx context.Context, storePath string) {
	for _, suffix := range journalSuffixes {
		err := os.Remove(storePath + suffix)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		logging.BestEffort(ctx, "remove_stale_journal", err, "path", storePath+suffix)
	}
}
