// Package backup produces and applies full-system zip archives: the store
// file plus every uploaded asset.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alohasecurity/aloha-backend/internal/audit"
	"github.com/alohasecurity/aloha-backend/internal/database"
	"github.com/alohasecurity/aloha-backend/internal/metrics"
	"github.com/klauspost/compress/zip"
)

// StoreMember is the archive name of the store file. It is fixed so that
// archives stay restorable across releases.
const StoreMember = "aloha_database.db"

// AssetPrefix is the archive directory holding uploaded assets.
const AssetPrefix = "uploads/"

type Manager struct {
	store      *database.Store
	uploadsDir string
	audit      *audit.Recorder
	// extractLimit caps the total uncompressed size a restore may write.
	// Zero means no limit.
	extractLimit int64
}

func NewManager(store *database.Store, uploadsDir string, recorder *audit.Recorder, extractLimit int64) *Manager {
	return &Manager{store: store, uploadsDir: uploadsDir, audit: recorder, extractLimit: extractLimit}
}

// Snapshot is a consistent copy of the store file taken before streaming.
type Snapshot struct {
	path string
}

// Close removes the snapshot's temp file.
func (s *Snapshot) Close() error {
	if s == nil || s.path == "" {
		return nil
	}
	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Snapshot copies the store file while all store access is paused. A
// store file that does not exist yet yields an empty snapshot.
func (m *Manager) Snapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}
	err := m.store.Exclusive(func(path string) error {
		src, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		defer src.Close()

		tmp, err := os.CreateTemp("", "aloha-snapshot-*.db")
		if err != nil {
			return err
		}
		snap.path = tmp.Name()
		if _, err := io.Copy(tmp, src); err != nil {
			tmp.Close()
			return err
		}
		return tmp.Close()
	})
	if err != nil {
		snap.Close()
		metrics.BackupsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("failed to snapshot store: %w", err)
	}
	slog.DebugContext(ctx, "store snapshot taken", "path", snap.path)
	return snap, nil
}

// Stream writes the archive for snap to w and records the backup.
func (m *Manager) Stream(ctx context.Context, snap *Snapshot, w io.Writer, actor audit.Actor) error {
	zw := zip.NewWriter(w)

	if snap != nil && snap.path != "" {
		if err := addFile(zw, StoreMember, snap.path); err != nil {
			metrics.BackupsTotal.WithLabelValues("failed").Inc()
			return fmt.Errorf("failed to archive store: %w", err)
		}
	}

	assets := 0
	err := filepath.WalkDir(m.uploadsDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == m.uploadsDir && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipDir
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(m.uploadsDir, p)
		if err != nil {
			return err
		}
		assets++
		return addFile(zw, AssetPrefix+filepath.ToSlash(rel), p)
	})
	if err != nil {
		metrics.BackupsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to archive uploads: %w", err)
	}

	if err := zw.Close(); err != nil {
		metrics.BackupsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to finish archive: %w", err)
	}

	metrics.BackupsTotal.WithLabelValues("ok").Inc()
	m.audit.Record(ctx, actor, audit.ActionSystemBackup,
		fmt.Sprintf("System backup downloaded (%d assets)", assets))
	return nil
}

// Backup snapshots the store and streams the archive to w.
func (m *Manager) Backup(ctx context.Context, w io.Writer, actor audit.Actor) error {
	snap, err := m.Snapshot(ctx)
	if err != nil {
		return err
	}
	defer snap.Close()
	return m.Stream(ctx, snap, w, actor)
}

func addFile(zw *zip.Writer, name, src string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	dst, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, f)
	return err
}

// isStoreMember matches the store file by suffix, outside the asset tree.
func isStoreMember(name string) bool {
	return !strings.HasPrefix(name, AssetPrefix) && strings.HasSuffix(name, StoreMember)
}
