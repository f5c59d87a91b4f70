//go:build sqlite
// +build sqlite

package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"searcharr/internal/picker"
	logx "searcharr/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Load(ctx context.Context) (*picker.State, error) {
	st := picker.NewState()

	rows, err := s.db.QueryContext(ctx, `SELECT bucket, item_id, last_at FROM cooldowns`)
	if err != nil {
		s.log.Warn("failed to read cooldowns; starting fresh", logx.Err(err))
		return picker.NewState(), nil
	}
	for rows.Next() {
		var bucket string
		var id, ts int64
		if err := rows.Scan(&bucket, &id, &ts); err != nil {
			continue
		}
		m, ok := st.Cooldowns[bucket]
		if !ok {
			m = map[string]int64{}
			st.Cooldowns[bucket] = m
		}
		m[strconv.FormatInt(id, 10)] = ts
	}
	if err := rows.Err(); err != nil {
		s.log.Warn("cooldown scan interrupted", logx.Err(err))
	}
	_ = rows.Close()

	rows, err = s.db.QueryContext(ctx, `SELECT bucket, bag, seen FROM cycles`)
	if err != nil {
		s.log.Warn("failed to read cycles; starting fresh", logx.Err(err))
		return st, nil
	}
	defer rows.Close()
	for rows.Next() {
		var bucket, bagJSON, seenJSON string
		if err := rows.Scan(&bucket, &bagJSON, &seenJSON); err != nil {
			continue
		}
		cs := &picker.CycleState{}
		if err := json.Unmarshal([]byte(bagJSON), &cs.Bag); err != nil {
			s.log.Warn("dropping malformed bag", logx.String("bucket", bucket), logx.Err(err))
			continue
		}
		if err := json.Unmarshal([]byte(seenJSON), &cs.Seen); err != nil {
			s.log.Warn("dropping malformed seen list", logx.String("bucket", bucket), logx.Err(err))
			continue
		}
		st.Shuffle[bucket] = cs
	}
	return st, rows.Err()
}

func (s *sqliteStore) Save(ctx context.Context, st *picker.State) error {
	if st == nil {
		st = picker.NewState()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cooldowns`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cycles`); err != nil {
		return err
	}

	for bucket, m := range st.Cooldowns {
		for key, ts := range m {
			id, err := strconv.ParseInt(key, 10, 64)
			if err != nil {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO cooldowns(bucket, item_id, last_at) VALUES(?,?,?)`,
				bucket, id, ts,
			); err != nil {
				return err
			}
		}
	}
	for bucket, cs := range st.Shuffle {
		if cs == nil {
			continue
		}
		bag, err := json.Marshal(cs.Bag)
		if err != nil {
			return err
		}
		seen, err := json.Marshal(cs.Seen)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cycles(bucket, bag, seen) VALUES(?,?,?)`,
			bucket, string(bag), string(seen),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}
