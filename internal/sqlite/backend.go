// Package sqlite implements the durable global-state store on SQLite.
// SQLite is the query engine; state.jsonl in the data directory is the
// source of truth, loaded on Attach and rewritten atomically on Update.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/cosmosx/pkg/types"
)

const (
	dbFileName    = "state.db"
	jsonlFileName = "state.jsonl"
)

// Backend implements types.StateStore.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	logger   *zap.SugaredLogger
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend(logger *zap.SugaredLogger) *Backend {
	return &Backend{logger: logger}
}

// Attach creates DataDir if needed, rebuilds the SQLite database from
// state.jsonl, and marks the backend attached.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}

	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}

	// The database is a cache of the JSONL file; start fresh every time.
	dbPath := filepath.Join(dataDir, dbFileName)
	_ = os.Remove(dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return err
	}

	for _, ddl := range schemaDDL {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return fmt.Errorf("create schema: %w", err)
		}
	}

	jsonlPath := filepath.Join(dataDir, jsonlFileName)
	if err := initJSONL(jsonlPath); err != nil {
		db.Close()
		return err
	}
	if err := loadStateJSONL(db, jsonlPath); err != nil {
		db.Close()
		return fmt.Errorf("load JSONL: %w", err)
	}

	b.db = db
	b.config = config
	b.config.DataDir = dataDir
	b.attached = true

	b.logger.Debugw("state store attached", "data_dir", dataDir)
	return nil
}

// Detach closes the SQLite connection. Idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}
	b.attached = false
	return nil
}

// Get returns the value stored under key.
func (b *Backend) Get(key string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return "", false, types.ErrStoreDetached
	}

	var value string
	err := b.db.QueryRow(selectValue, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

// Update upserts value under key and rewrites state.jsonl.
func (b *Backend) Update(key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrStoreDetached
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := b.db.Exec(upsertValue, key, value, now); err != nil {
		return fmt.Errorf("update %q: %w", key, err)
	}
	if err := b.persistLocked(); err != nil {
		return fmt.Errorf("persist %q: %w", key, err)
	}
	return nil
}

// persistLocked writes every row to state.jsonl.
// The caller must hold b.mu write lock.
func (b *Backend) persistLocked() error {
	rows, err := b.db.Query(selectAll)
	if err != nil {
		return err
	}
	defer rows.Close()

	var records []stateRecord
	for rows.Next() {
		var rec stateRecord
		if err := rows.Scan(&rec.Key, &rec.Value, &rec.UpdatedAt); err != nil {
			return err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return persistStateJSONL(filepath.Join(b.config.DataDir, jsonlFileName), records)
}
