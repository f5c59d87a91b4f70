package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"searcharr/internal/picker"
	logx "searcharr/pkg/logx"
)

// Config configures state persistence.
//
// Driver values:
//   - "file" (default): atomic JSON state file
//   - "sqlite": SQLite database file (optional build tag)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the persistence API used by the scheduling loop.
//
// Load never fails hard: an absent, corrupt, or foreign-format source yields
// an empty state (with a logged warning) so a bad file can't stop the
// scheduler. Save errors are returned for the caller to log; in-memory state
// keeps serving either way.
type Store interface {
	Load(ctx context.Context) (*picker.State, error)
	Save(ctx context.Context, st *picker.State) error
	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown state driver: " + driver)
	}
}
