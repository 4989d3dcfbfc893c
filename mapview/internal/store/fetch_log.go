package store

import (
	"context"
	"fmt"
	"time"
)

// InsertFetchLog records a poll cycle. Empty ID and zero FetchedAt are
// filled in.
func (s *Store) InsertFetchLog(ctx context.Context, e *FetchLogEntry) error {
	if e.ID == "" {
		e.ID = NewID()
	}
	if e.FetchedAt == 0 {
		e.FetchedAt = s.nowMs()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO fetch_log (id, outcome, fingerprint, row_count, error_message, duration_ms, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Outcome, e.Fingerprint, e.RowCount, e.ErrorMessage, e.DurationMs, e.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("insert fetch log: %w", err)
	}
	return nil
}

// FetchHistory returns poll cycles, newest first.
func (s *Store) FetchHistory(ctx context.Context, limit int) ([]*FetchLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, outcome, fingerprint, row_count, error_message, duration_ms, fetched_at
		FROM fetch_log ORDER BY fetched_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*FetchLogEntry
	for rows.Next() {
		var e FetchLogEntry
		if err := rows.Scan(&e.ID, &e.Outcome, &e.Fingerprint, &e.RowCount,
			&e.ErrorMessage, &e.DurationMs, &e.FetchedAt); err != nil {
			return nil, fmt.Errorf("scan fetch log: %w", err)
		}
		result = append(result, &e)
	}
	return result, rows.Err()
}

// Prune deletes fetch log rows older than retention and returns how many
// were removed.
func (s *Store) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.now().Add(-retention).UnixMilli()
	res, err := s.DB.ExecContext(ctx, `DELETE FROM fetch_log WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune fetch log: %w", err)
	}
	return res.RowsAffected()
}
