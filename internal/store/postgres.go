package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the session tables. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS session_state (
    owner      TEXT PRIMARY KEY,
    state      JSONB NOT NULL,
    saved_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS lesson_history (
    owner        TEXT NOT NULL,
    plan_id      TEXT NOT NULL,
    record       JSONB NOT NULL,
    completed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (owner, plan_id)
);
CREATE INDEX IF NOT EXISTS idx_lesson_history_owner_completed
    ON lesson_history(owner, completed_at DESC);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PgOption configures a [PostgresStore].
type PgOption func(*PostgresStore)

// WithOwner namespaces rows for one learner. Default: "default".
func WithOwner(owner string) PgOption {
	return func(s *PostgresStore) { s.owner = owner }
}

// WithPgStateTTL overrides the snapshot expiry. Default: 7 days.
func WithPgStateTTL(ttl time.Duration) PgOption {
	return func(s *PostgresStore) { s.ttl = ttl }
}

// WithPgHistoryLimit overrides the history cap. Default: 100.
func WithPgHistoryLimit(n int) PgOption {
	return func(s *PostgresStore) { s.limit = n }
}

// PostgresStore is a [Store] backed by PostgreSQL. Snapshots and history
// records are stored as JSONB documents keyed by owner.
type PostgresStore struct {
	db    DB
	owner string
	ttl   time.Duration
	limit int
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store over the given connection or pool. The
// caller is responsible for calling [PostgresStore.Migrate] before issuing
// queries.
func NewPostgresStore(db DB, opts ...PgOption) *PostgresStore {
	s := &PostgresStore{
		db:    db,
		owner: "default",
		ttl:   DefaultStateTTL,
		limit: DefaultHistoryLimit,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Migrate executes the [Schema] DDL against the database.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveState(ctx context.Context, state *State) error {
	state.SavedAt = time.Now()
	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("store: marshal state: %w", err)
	}
	const query = `
		INSERT INTO session_state (owner, state, saved_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner) DO UPDATE SET
			state = EXCLUDED.state,
			saved_at = EXCLUDED.saved_at`
	if _, err := s.db.Exec(ctx, query, s.owner, doc, state.SavedAt); err != nil {
		return fmt.Errorf("store: save state: %w", err)
	}
	return nil
}

func (s *PostgresStore) LoadState(ctx context.Context) (*State, error) {
	const query = `SELECT state FROM session_state WHERE owner = $1`
	var doc []byte
	err := s.db.QueryRow(ctx, query, s.owner).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load state: %w", err)
	}

	var state State
	if err := json.Unmarshal(doc, &state); err != nil {
		// Corrupt row, same treatment as an expired one.
		return nil, s.ClearState(ctx)
	}
	if !stateUsable(&state, time.Now(), s.ttl) {
		return nil, s.ClearState(ctx)
	}
	return &state, nil
}

func (s *PostgresStore) ClearState(ctx context.Context) error {
	const query = `DELETE FROM session_state WHERE owner = $1`
	if _, err := s.db.Exec(ctx, query, s.owner); err != nil {
		return fmt.Errorf("store: clear state: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveHistory(ctx context.Context, rec *HistoryRecord) error {
	if !recordUsable(rec) {
		return fmt.Errorf("store: history record missing plan")
	}
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: marshal history record: %w", err)
	}
	const upsert = `
		INSERT INTO lesson_history (owner, plan_id, record, completed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner, plan_id) DO UPDATE SET
			record = EXCLUDED.record,
			completed_at = EXCLUDED.completed_at`
	if _, err := s.db.Exec(ctx, upsert, s.owner, rec.Plan.ID, doc, rec.CompletedAt); err != nil {
		return fmt.Errorf("store: save history: %w", err)
	}

	// Trim beyond the cap, oldest first.
	const trim = `
		DELETE FROM lesson_history
		WHERE owner = $1 AND plan_id NOT IN (
			SELECT plan_id FROM lesson_history
			WHERE owner = $1
			ORDER BY completed_at DESC
			LIMIT $2
		)`
	if _, err := s.db.Exec(ctx, trim, s.owner, s.limit); err != nil {
		return fmt.Errorf("store: trim history: %w", err)
	}
	return nil
}

func (s *PostgresStore) LoadHistory(ctx context.Context) ([]*HistoryRecord, error) {
	const query = `
		SELECT record FROM lesson_history
		WHERE owner = $1
		ORDER BY completed_at DESC`
	rows, err := s.db.Query(ctx, query, s.owner)
	if err != nil {
		return nil, fmt.Errorf("store: load history: %w", err)
	}
	defer rows.Close()

	var records []*HistoryRecord
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("store: load history scan: %w", err)
		}
		var rec HistoryRecord
		if err := json.Unmarshal(doc, &rec); err != nil {
			continue
		}
		if recordUsable(&rec) {
			records = append(records, &rec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: load history: %w", err)
	}
	return records, nil
}
