// Package retention purges rejected applicants and old system logs on a timer.
package retention

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alohasecurity/aloha-backend/internal/database"
	"github.com/alohasecurity/aloha-backend/internal/logging"
	"github.com/alohasecurity/aloha-backend/internal/metrics"
	"github.com/alohasecurity/aloha-backend/internal/models"
	"github.com/alohasecurity/aloha-backend/internal/storage"
)

type Config struct {
	Window       time.Duration
	Interval     time.Duration
	LogRetention time.Duration
}

// Report is the outcome of one sweep.
type Report struct {
	Deleted    int
	Failed     int
	LogsPruned int64
}

type Sweeper struct {
	store  *database.Store
	assets *storage.AssetStore
	cfg    Config
	now    func() time.Time

	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

func NewSweeper(store *database.Store, assets *storage.AssetStore, cfg Config) *Sweeper {
	return &Sweeper{
		store:  store,
		assets: assets,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
		done:   make(chan struct{}),
	}
}

// Start sweeps once right away and then every interval until Stop is
// called or ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.RunOnce(ctx)

		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.RunOnce(ctx)
			case <-ctx.Done():
				return
			case <-s.done:
				return
			}
		}
	}()
}

func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
	s.wg.Wait()
}

type candidate struct {
	ID          uint
	ResumePath  string
	IDImagePath string `gorm:"column:id_image_path"`
}

// RunOnce deletes every rejected applicant older than the retention
// window along with its uploads. One failing applicant does not stop the
// rest of the batch.
func (s *Sweeper) RunOnce(ctx context.Context) Report {
	var rep Report
	now := s.now().Truncate(time.Second)
	cutoff := now.Add(-s.cfg.Window)

	var stale []candidate
	err := s.store.FetchMany(ctx, &stale,
		"SELECT id, resume_path, id_image_path FROM applicants WHERE status = ? AND created_at < ?",
		models.ApplicantStatusRejected, cutoff)
	if err != nil {
		slog.ErrorContext(ctx, "retention: could not list rejected applicants", "error", err)
		return rep
	}

	for _, c := range stale {
		for _, p := range []string{c.ResumePath, c.IDImagePath} {
			logging.BestEffort(ctx, "retention_remove_upload", s.assets.Remove(p), "applicant_id", c.ID, "path", p)
		}
		if _, err := s.store.Execute(ctx, "DELETE FROM applicants WHERE id = ?", c.ID); err != nil {
			rep.Failed++
			slog.ErrorContext(ctx, "retention: applicant not deleted", "applicant_id", c.ID, "error", err)
			continue
		}
		rep.Deleted++
	}

	if s.cfg.LogRetention > 0 {
		res, err := s.store.Execute(ctx, "DELETE FROM system_logs WHERE timestamp < ?", now.Add(-s.cfg.LogRetention))
		if err != nil {
			slog.ErrorContext(ctx, "retention: log cleanup failed", "error", err)
		} else {
			rep.LogsPruned = res.RowsAffected
		}
	}

	metrics.RetentionRunsTotal.Inc()
	metrics.RetentionApplicantsDeleted.Add(float64(rep.Deleted))
	if rep.Deleted > 0 || rep.Failed > 0 || rep.LogsPruned > 0 {
		slog.InfoContext(ctx, "retention sweep completed",
			"deleted", rep.Deleted, "failed", rep.Failed, "logs_pruned", rep.LogsPruned)
	}
	return rep
}
