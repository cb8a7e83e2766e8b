package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dominhhai/mws-sdk/domain/throttle"
	"github.com/dominhhai/mws-sdk/ports"
)

// ThrottleStore implements ports.ThrottleStore using SQLite, so processes
// sharing the database file share quotas.
type ThrottleStore struct {
	db *DB
}

// NewThrottleStore creates a new SQLite quota store.
func NewThrottleStore(db *DB) *ThrottleStore {
	return &ThrottleStore{db: db}
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getState(ctx context.Context, q querier, key string) (throttle.State, error) {
	var used int
	var marked int64
	err := q.QueryRowContext(ctx, `
		SELECT used, marked
		FROM throttle_state
		WHERE key = ?
	`, key).Scan(&used, &marked)
	if errors.Is(err, sql.ErrNoRows) {
		return throttle.State{}, nil
	}
	if err != nil {
		return throttle.State{}, fmt.Errorf("get quota %s: %w", key, err)
	}

	s := throttle.State{Used: used}
	if marked != 0 {
		s.Marked = time.Unix(0, marked).UTC()
	}
	return s, nil
}

// Get retrieves the quota state of key.
func (s *ThrottleStore) Get(ctx context.Context, key string) (throttle.State, error) {
	return getState(ctx, s.db, key)
}

// Update applies fn to the state of key inside one transaction.
func (s *ThrottleStore) Update(ctx context.Context, key string, fn func(throttle.State) throttle.State) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	state, err := getState(ctx, tx, key)
	if err != nil {
		return err
	}
	next := fn(state)

	var marked int64
	if !next.Marked.IsZero() {
		marked = next.Marked.UTC().UnixNano()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO throttle_state (key, used, marked)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			used = excluded.used,
			marked = excluded.marked
	`, key, next.Used, marked)
	if err != nil {
		return fmt.Errorf("set quota %s: %w", key, err)
	}
	return tx.Commit()
}

// Cleanup removes state last touched before cutoff.
func (s *ThrottleStore) Cleanup(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM throttle_state WHERE marked < ?`, cutoff.UTC().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("cleanup quotas: %w", err)
	}
	return result.RowsAffected()
}

// Ensure interface compliance.
var _ ports.ThrottleStore = (*ThrottleStore)(nil)
