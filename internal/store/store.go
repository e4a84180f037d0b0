// Package store persists session state and lesson history.
//
// Two backends are provided: a JSON file store for single-user desktop use
// and a PostgreSQL store for shared deployments. Both enforce the same
// retention rules: saved state expires after a TTL, and history is a
// deduplicated most-recent-first list with a hard cap.
package store

import (
	"context"
	"time"

	"github.com/verbalis/verbalis/internal/lesson"
)

// DefaultStateTTL is how long interrupted-session state stays resumable.
const DefaultStateTTL = 7 * 24 * time.Hour

// DefaultHistoryLimit caps the number of retained history records.
const DefaultHistoryLimit = 100

// Screen identifies which top-level view the session was on when saved, so a
// resumed session can land back where the learner left off.
type Screen string

const (
	ScreenLanding Screen = "landing"
	ScreenLesson  Screen = "lesson"
)

// IsValid reports whether s is a known screen.
func (s Screen) IsValid() bool {
	return s == ScreenLanding || s == ScreenLesson
}

// State is a point-in-time snapshot of an in-progress session.
type State struct {
	Plan          *lesson.Plan `json:"plan"`
	TurnIndex     int          `json:"turn_index"`
	SentenceIndex int          `json:"sentence_index"`
	Screen        Screen       `json:"screen"`
	SavedAt       time.Time    `json:"saved_at"`
}

// HistoryRecord is one completed (or archived) lesson.
type HistoryRecord struct {
	Plan        *lesson.Plan `json:"plan"`
	CompletedAt time.Time    `json:"completed_at"`
}

// Store persists session snapshots and lesson history.
//
// LoadState returns (nil, nil) when no usable snapshot exists, including
// when a snapshot was present but expired or structurally invalid; such
// snapshots are purged as a side effect.
type Store interface {
	SaveState(ctx context.Context, state *State) error
	LoadState(ctx context.Context) (*State, error)
	ClearState(ctx context.Context) error

	// SaveHistory upserts rec: an existing record for the same plan ID is
	// replaced and moved to the front, then the list is trimmed to the
	// store's limit.
	SaveHistory(ctx context.Context, rec *HistoryRecord) error

	// LoadHistory returns records most recent first. Malformed entries
	// are dropped, not surfaced as errors.
	LoadHistory(ctx context.Context) ([]*HistoryRecord, error)
}

// stateUsable reports whether a loaded snapshot should be offered for
// resume. Both backends apply the same rule.
func stateUsable(s *State, now time.Time, ttl time.Duration) bool {
	if s == nil || s.Plan == nil || len(s.Plan.Dialogue) == 0 {
		return false
	}
	if !s.Screen.IsValid() {
		return false
	}
	if s.TurnIndex < 0 || s.SentenceIndex < 0 {
		return false
	}
	return now.Sub(s.SavedAt) <= ttl
}

// recordUsable reports whether a loaded history record is structurally
// sound enough to return. Review and quiz both need the dialogue, the
// language, and the topic, so a record missing any of them is dropped.
func recordUsable(r *HistoryRecord) bool {
	return r != nil && r.Plan != nil &&
		r.Plan.ID != "" &&
		len(r.Plan.Dialogue) > 0 &&
		r.Plan.Language != "" &&
		r.Plan.Topic != ""
}

// upsertHistory inserts rec at the front of records, removing any existing
// record with the same plan ID, and trims to limit.
func upsertHistory(records []*HistoryRecord, rec *HistoryRecord, limit int) []*HistoryRecord {
	out := make([]*HistoryRecord, 0, len(records)+1)
	out = append(out, rec)
	for _, r := range records {
		if r.Plan != nil && rec.Plan != nil && r.Plan.ID == rec.Plan.ID {
			continue
		}
		out = append(out, r)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
