package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/alohasecurity/aloha-backend/internal/database"
	"github.com/alohasecurity/aloha-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const storeBatchSize = 50

// StoreHandler is an slog.Handler that batches ERROR+ logs into the
// system_logs table.
type StoreHandler struct {
	store  *database.Store
	attrs  []slog.Attr
	shared *storeBuffer
}

type storeBuffer struct {
	mu       sync.Mutex
	buffer   []models.SystemLog
	ticker   *time.Ticker
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewStoreHandler(store *database.Store, interval time.Duration) *StoreHandler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	h := &StoreHandler{
		store: store,
		shared: &storeBuffer{
			buffer: make([]models.SystemLog, 0, storeBatchSize),
			ticker: time.NewTicker(interval),
			done:   make(chan struct{}),
		},
	}
	h.shared.wg.Add(1)
	go h.flushLoop()
	return h
}

func (h *StoreHandler) flushLoop() {
	defer h.shared.wg.Done()
	for {
		select {
		case <-h.shared.ticker.C:
			h.flush()
		case <-h.shared.done:
			h.flush()
			return
		}
	}
}

func (h *StoreHandler) flush() {
	b := h.shared
	b.mu.Lock()
	if len(b.buffer) == 0 {
		b.mu.Unlock()
		return
	}
	batch := b.buffer
	b.buffer = make([]models.SystemLog, 0, storeBatchSize)
	b.mu.Unlock()

	err := h.store.Do(context.Background(), func(db *gorm.DB) error {
		return db.CreateInBatches(batch, storeBatchSize).Error
	})
	if err != nil {
		// Warn stays below this handler's level, so it cannot feed back.
		slog.Warn("failed to flush system logs", "error", err, "count", len(batch))
	}
}

// Stop flushes what is buffered and ends the flush loop.
func (h *StoreHandler) Stop() {
	h.shared.stopOnce.Do(func() {
		h.shared.ticker.Stop()
		close(h.shared.done)
	})
	h.shared.wg.Wait()
}

// Enabled only handles ERROR and above.
func (h *StoreHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelError
}

func (h *StoreHandler) Handle(_ context.Context, record slog.Record) error {
	// entries are buffered past this call; request-scoped strings such as
	// fiber header values must be cloned
	entry := models.SystemLog{
		ID:        uuid.NewString(),
		Timestamp: record.Time.UTC(),
		Level:     record.Level.String(),
		Message:   strings.Clone(record.Message),
	}

	extra := make(map[string]any)
	apply := func(a slog.Attr) bool {
		switch a.Key {
		case "request_id":
			entry.RequestID = strings.Clone(a.Value.String())
		case "user_id":
			s := strings.Clone(a.Value.String())
			entry.UserID = &s
		case "action", "op":
			entry.Action = strings.Clone(a.Value.String())
		case "error":
			entry.Error = strings.Clone(a.Value.String())
		case "latency_ms":
			switch v := a.Value.Any().(type) {
			case float64:
				entry.LatencyMs = int(math.Round(v))
			case int64:
				entry.LatencyMs = int(v)
			}
		default:
			extra[a.Key] = a.Value.Any()
		}
		return true
	}
	for _, a := range h.attrs {
		apply(a)
	}
	record.Attrs(apply)

	if len(extra) > 0 {
		if b, err := json.Marshal(extra); err == nil {
			entry.Extra = datatypes.JSON(b)
		}
	}

	b := h.shared
	b.mu.Lock()
	b.buffer = append(b.buffer, entry)
	needFlush := len(b.buffer) >= storeBatchSize
	b.mu.Unlock()

	if needFlush {
		go h.flush()
	}
	return nil
}

func (h *StoreHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &StoreHandler{store: h.store, attrs: merged, shared: h.shared}
}

func (h *StoreHandler) WithGroup(string) slog.Handler {
	return h
}
