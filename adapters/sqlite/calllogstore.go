package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dominhhai/mws-sdk/domain/calllog"
	"github.com/dominhhai/mws-sdk/ports"
)

// CallLogStore implements ports.CallLogStore using SQLite.
type CallLogStore struct {
	db *DB
}

// NewCallLogStore creates a new SQLite call log store.
func NewCallLogStore(db *DB) *CallLogStore {
	return &CallLogStore{db: db}
}

const callLogColumns = `id, action, path, version, upload, status_code, outcome, error_code,
	attempts, duration_ms, request_bytes, response_bytes, timestamp`

// Record stores an entry.
func (s *CallLogStore) Record(ctx context.Context, e calllog.Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO call_log (`+callLogColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID, e.Action, e.Path, e.Version, e.Upload, e.StatusCode, string(e.Outcome), e.ErrorCode,
		e.Attempts, e.DurationMs, e.RequestBytes, e.ResponseBytes, e.Timestamp.UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("record call %s: %w", e.ID, err)
	}
	return nil
}

// List returns the most recent entries, newest first. A non-positive limit
// returns everything.
func (s *CallLogStore) List(ctx context.Context, limit int) ([]calllog.Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+callLogColumns+`
		FROM call_log
		ORDER BY timestamp DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Since returns every entry at or after t, oldest first.
func (s *CallLogStore) Since(ctx context.Context, t time.Time) ([]calllog.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+callLogColumns+`
		FROM call_log
		WHERE timestamp >= ?
		ORDER BY timestamp ASC, rowid ASC
	`, t.UTC().UnixNano())
	if err != nil {
		return nil, fmt.Errorf("list calls since %s: %w", t.Format(time.RFC3339), err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]calllog.Entry, error) {
	var entries []calllog.Entry
	for rows.Next() {
		var (
			e       calllog.Entry
			outcome string
			ts      int64
		)
		err := rows.Scan(
			&e.ID, &e.Action, &e.Path, &e.Version, &e.Upload, &e.StatusCode, &outcome, &e.ErrorCode,
			&e.Attempts, &e.DurationMs, &e.RequestBytes, &e.ResponseBytes, &ts,
		)
		if err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		e.Outcome = calllog.Outcome(outcome)
		e.Timestamp = time.Unix(0, ts).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Ensure interface compliance.
var _ ports.CallLogStore = (*CallLogStore)(nil)
