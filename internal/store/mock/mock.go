// Package mock provides an in-memory [store.Store] for tests.
package mock

import (
	"context"
	"sync"

	"github.com/verbalis/verbalis/internal/store"
)

// Store is an in-memory test double. The zero value is ready to use. Error
// fields, when set, are returned by the corresponding method.
type Store struct {
	mu      sync.Mutex
	state   *store.State
	history []*store.HistoryRecord

	SaveStateErr   error
	LoadStateErr   error
	SaveHistoryErr error

	SaveStateCalls   int
	ClearStateCalls  int
	SaveHistoryCalls int
}

var _ store.Store = (*Store)(nil)

func (s *Store) SaveState(_ context.Context, state *store.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SaveStateCalls++
	if s.SaveStateErr != nil {
		return s.SaveStateErr
	}
	cp := *state
	s.state = &cp
	return nil
}

func (s *Store) LoadState(_ context.Context) (*store.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LoadStateErr != nil {
		return nil, s.LoadStateErr
	}
	return s.state, nil
}

func (s *Store) ClearState(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ClearStateCalls++
	s.state = nil
	return nil
}

func (s *Store) SaveHistory(_ context.Context, rec *store.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SaveHistoryCalls++
	if s.SaveHistoryErr != nil {
		return s.SaveHistoryErr
	}
	kept := s.history[:0]
	for _, r := range s.history {
		if r.Plan.ID != rec.Plan.ID {
			kept = append(kept, r)
		}
	}
	s.history = append([]*store.HistoryRecord{rec}, kept...)
	return nil
}

func (s *Store) LoadHistory(_ context.Context) ([]*store.HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*store.HistoryRecord, len(s.history))
	copy(out, s.history)
	return out, nil
}

// State returns the currently saved snapshot, or nil.
func (s *Store) State() *store.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// History returns the saved records, most recent first.
func (s *Store) History() []*store.HistoryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*store.HistoryRecord, len(s.history))
	copy(out, s.history)
	return out
}
