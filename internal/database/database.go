package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// State is the lifecycle state of the store handle.
type State int

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// MigrateFunc brings a freshly opened handle up to the current schema.
// It runs on every connect, including the reconnect after a restore.
type MigrateFunc func(db *gorm.DB) error

// ErrDisconnected is returned by store operations while no handle is open.
var ErrDisconnected = errors.New("store is disconnected")

// Store owns the single handle to the embedded database file. Every query
// holds the read lock; Swap and Exclusive hold the write lock, so nothing
// reads or writes the file while it is being copied or replaced.
type Store struct {
	path    string
	migrate MigrateFunc

	mu    sync.RWMutex
	db    *gorm.DB
	state State
}

// Open connects to the database file at path and runs migrate against it.
func Open(path string, migrate MigrateFunc) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	s := &Store{path: path, migrate: migrate}
	if err := s.connectLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func dsn(path string) string {
	return "file:" + path + "?_foreign_keys=on&_busy_timeout=5000"
}

func (s *Store) connectLocked() error {
	db, err := gorm.Open(sqlite.Open(dsn(s.path)), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	if s.migrate != nil {
		if err := s.migrate(db); err != nil {
			sqlDB.Close()
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	s.db = db
	s.state = Connected
	slog.Info("database connected", "path", s.path)
	return nil
}

func (s *Store) disconnectLocked() error {
	if s.state == Disconnected {
		return nil
	}
	sqlDB, err := s.db.DB()
	s.db = nil
	s.state = Disconnected
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		return err
	}
	slog.Info("database connection closed", "path", s.path)
	return nil
}

// Close releases the handle. The store stays disconnected afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnectLocked()
}

// Do runs fn with the live handle under the read lock.
func (s *Store) Do(ctx context.Context, fn func(db *gorm.DB) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != Connected {
		return &StorageError{Op: "do", Class: ClassIO, Err: ErrDisconnected}
	}
	return fn(s.db.WithContext(ctx))
}

// Exclusive runs fn while every other store user is paused. The handle
// stays open, so fn must only read the file.
func (s *Store) Exclusive(fn func(path string) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.path)
}

// Swap closes the handle, lets fn replace the file at path, then reconnects
// and re-runs migrations. The reconnect happens even when fn fails or
// panics, so the store is never left without a handle it could open.
func (s *Store) Swap(fn func(path string) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cerr := s.disconnectLocked(); cerr != nil {
		// The handle may still hold the file; do not touch it.
		if rerr := s.connectLocked(); rerr != nil {
			return errors.Join(cerr, rerr)
		}
		return fmt.Errorf("failed to release store: %w", cerr)
	}

	defer func() {
		if rerr := s.connectLocked(); rerr != nil {
			slog.Error("store reconnect failed", "path", s.path, "error", rerr)
			err = errors.Join(err, &StorageError{Op: "reconnect", Class: ClassIO, Err: rerr})
		}
	}()

	return fn(s.path)
}

// VerifyFile opens the file at path on a private handle, runs an integrity
// check and the store's migrations against it, then closes it. It never
// touches the live handle, so it is safe to call from inside Swap.
func (s *Store) VerifyFile(path string) error {
	db, err := gorm.Open(sqlite.Open(dsn(path)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return &StorageError{Op: "verify", Class: ClassIO, Err: err}
	}
	sqlDB, err := db.DB()
	if err != nil {
		return &StorageError{Op: "verify", Class: ClassIO, Err: err}
	}
	defer sqlDB.Close()

	var result string
	if err := db.Raw("PRAGMA quick_check").Scan(&result).Error; err != nil {
		return wrap("verify", err)
	}
	if result != "ok" {
		return &StorageError{Op: "verify", Class: ClassIO, Err: fmt.Errorf("integrity check failed: %s", result)}
	}
	if s.migrate != nil {
		if err := s.migrate(db); err != nil {
			return wrap("verify", fmt.Errorf("migration failed: %w", err))
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Do(ctx, func(db *gorm.DB) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})
}
