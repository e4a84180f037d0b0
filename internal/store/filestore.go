package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// fileStateName and fileHistoryName are the document files inside the store
// directory.
const (
	fileStateName   = "state.json"
	fileHistoryName = "history.json"
)

// FileOption configures a [FileStore].
type FileOption func(*FileStore)

// WithStateTTL overrides the snapshot expiry. Default: 7 days.
func WithStateTTL(ttl time.Duration) FileOption {
	return func(s *FileStore) { s.ttl = ttl }
}

// WithHistoryLimit overrides the history cap. Default: 100.
func WithHistoryLimit(n int) FileOption {
	return func(s *FileStore) { s.limit = n }
}

// withClock injects a clock for tests.
func withClock(now func() time.Time) FileOption {
	return func(s *FileStore) { s.now = now }
}

// FileStore persists state and history as JSON documents in a directory.
// Writes go through a temp file and rename so a crash mid-write never
// corrupts the previous document. Safe for concurrent use within one
// process; it does not coordinate across processes.
type FileStore struct {
	mu    sync.Mutex
	dir   string
	ttl   time.Duration
	limit int
	now   func() time.Time
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates the directory if needed and returns a store rooted
// in it.
func NewFileStore(dir string, opts ...FileOption) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create dir %s: %w", dir, err)
	}
	s := &FileStore{
		dir:   dir,
		ttl:   DefaultStateTTL,
		limit: DefaultHistoryLimit,
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// SaveState writes the snapshot, stamping SavedAt.
func (s *FileStore) SaveState(_ context.Context, state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state.SavedAt = s.now()
	return s.writeJSON(fileStateName, state)
}

// LoadState returns the saved snapshot, or (nil, nil) when none exists or
// the saved one is expired or unusable. Unusable snapshots are deleted.
func (s *FileStore) LoadState(_ context.Context) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var state State
	ok, err := s.readJSON(fileStateName, &state)
	if err != nil || !ok {
		return nil, err
	}
	if !stateUsable(&state, s.now(), s.ttl) {
		if err := s.remove(fileStateName); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return &state, nil
}

// ClearState deletes the snapshot. Clearing an absent snapshot is not an
// error.
func (s *FileStore) ClearState(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(fileStateName)
}

func (s *FileStore) SaveHistory(_ context.Context, rec *HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []*HistoryRecord
	if _, err := s.readJSON(fileHistoryName, &records); err != nil {
		return err
	}
	records = upsertHistory(filterUsable(records), rec, s.limit)
	return s.writeJSON(fileHistoryName, records)
}

func (s *FileStore) LoadHistory(_ context.Context) ([]*HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []*HistoryRecord
	if _, err := s.readJSON(fileHistoryName, &records); err != nil {
		return nil, err
	}
	usable := filterUsable(records)
	if len(usable) != len(records) {
		// Rewrite so damaged records are pruned once, not re-filtered on
		// every load. Best effort, same as the rest of the store.
		if err := s.writeJSON(fileHistoryName, usable); err != nil {
			slog.Warn("pruning history records failed", "error", err)
		}
	}
	return usable, nil
}

func filterUsable(records []*HistoryRecord) []*HistoryRecord {
	out := records[:0]
	for _, r := range records {
		if recordUsable(r) {
			out = append(out, r)
		}
	}
	return out
}

// readJSON reads name into v. It reports ok=false without error when the
// file does not exist or holds unparseable JSON; a corrupt document is the
// same as no document and is purged on sight.
func (s *FileStore) readJSON(name string, v any) (bool, error) {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			slog.Warn("purging corrupt document failed", "file", name, "error", rmErr)
		}
		return false, nil
	}
	return true, nil
}

func (s *FileStore) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal %s: %w", name, err)
	}
	path := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("store: write %s: %w", name, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("store: write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store: write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store: write %s: %w", name, err)
	}
	return nil
}

func (s *FileStore) remove(name string) error {
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("store: remove %s: %w", name, err)
	}
	return nil
}
