package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"searcharr/internal/picker"
	logx "searcharr/pkg/logx"
)

// fileStore keeps the picker state in a single JSON document.
//
// Writes go to <path>.tmp first and are renamed into place, so a crash
// mid-write (or a concurrent reader) never observes a truncated file.
type fileStore struct {
	log  logx.Logger
	path string

	mu sync.Mutex
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("state.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &fileStore{log: log, path: path}, nil
}

func (s *fileStore) Load(ctx context.Context) (*picker.State, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return picker.NewState(), nil
		}
		s.log.Warn("failed to read state; starting fresh", logx.String("path", s.path), logx.Err(err))
		return picker.NewState(), nil
	}
	st, err := picker.DecodeState(b)
	if err != nil {
		s.log.Warn("failed to parse state; starting fresh", logx.String("path", s.path), logx.Err(err))
		return picker.NewState(), nil
	}
	return st, nil
}

func (s *fileStore) Save(ctx context.Context, st *picker.State) error {
	_ = ctx
	b, err := picker.EncodeState(st)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *fileStore) Close() error { return nil }
