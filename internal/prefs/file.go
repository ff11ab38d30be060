package prefs

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
)

// FileStore keeps preferences in a TOML file, one table per scope. Writes are
// batched: a change schedules a flush after the delay, and Flush forces it.
type FileStore struct {
	path   string
	delay  time.Duration
	logger *zap.Logger

	mu    sync.Mutex
	data  map[string]map[string]string
	dirty bool
	timer *time.Timer
}

// OpenFile loads path if it exists. A missing file starts empty.
func OpenFile(path string, delay time.Duration, logger *zap.Logger) (*FileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}

	s := &FileStore{
		path:   path,
		delay:  delay,
		logger: logger,
		data:   make(map[string]map[string]string),
	}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read preferences: %w", err)
	}

	if err := toml.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("parse preferences %s: %w", path, err)
	}
	return s, nil
}

func (s *FileStore) Get(scope, key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[scope][key]
	return v, ok
}

func (s *FileStore) Set(scope, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.data[scope][key]; ok && cur == value {
		return nil
	}
	if err := setIn(s.data, scope, key, value); err != nil {
		return err
	}
	s.markDirtyLocked()
	return nil
}

func (s *FileStore) Delete(scope, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[scope][key]; !ok {
		return nil
	}
	deleteIn(s.data, scope, key)
	s.markDirtyLocked()
	return nil
}

func (s *FileStore) Keys(scope string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.data[scope]))
}

func (s *FileStore) markDirtyLocked() {
	s.dirty = true
	if s.timer != nil {
		return
	}
	s.timer = time.AfterFunc(s.delay, func() {
		if err := s.Flush(); err != nil {
			s.logger.Warn("failed to save preferences", zap.String("path", s.path), zap.Error(err))
		}
	})
}

// Flush writes pending changes. The file is replaced atomically.
func (s *FileStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if !s.dirty {
		return nil
	}

	out, err := toml.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create preferences dir: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".prefs-*.toml")
	if err != nil {
		return fmt.Errorf("create preferences temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		return fmt.Errorf("write preferences: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace preferences: %w", err)
	}

	s.dirty = false
	s.logger.Debug("preferences saved", zap.String("path", s.path), zap.Int("scopes", len(s.data)))
	return nil
}
