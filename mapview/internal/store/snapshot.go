package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hazyhaar/plotmap/mapview/internal/plot"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("store: not found")

// RecordSnapshot stores an applied row set under its fingerprint. Seeing the
// same fingerprint again bumps its apply count.
func (s *Store) RecordSnapshot(ctx context.Context, fingerprint string, plots []plot.Plot) error {
	data, err := json.Marshal(plots)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	now := s.nowMs()
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO snapshots (fingerprint, row_count, rows_json, first_seen_at, last_applied_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			last_applied_at = excluded.last_applied_at,
			apply_count = apply_count + 1`,
		fingerprint, len(plots), string(data), now, now,
	)
	if err != nil {
		return fmt.Errorf("record snapshot: %w", err)
	}
	return nil
}

// GetSnapshot returns the snapshot and its decoded rows.
func (s *Store) GetSnapshot(ctx context.Context, fingerprint string) (*Snapshot, []plot.Plot, error) {
	var snap Snapshot
	err := s.DB.QueryRowContext(ctx,
		`SELECT fingerprint, row_count, rows_json, first_seen_at, last_applied_at, apply_count
		FROM snapshots WHERE fingerprint = ?`, fingerprint).
		Scan(&snap.Fingerprint, &snap.RowCount, &snap.RowsJSON, &snap.FirstSeenAt, &snap.LastAppliedAt, &snap.ApplyCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get snapshot: %w", err)
	}
	var plots []plot.Plot
	if err := json.Unmarshal([]byte(snap.RowsJSON), &plots); err != nil {
		return nil, nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, plots, nil
}

// ListSnapshots returns snapshots without their rows, most recently
// applied first.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]*Snapshot, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT fingerprint, row_count, first_seen_at, last_applied_at, apply_count
		FROM snapshots ORDER BY last_applied_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Snapshot
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.Fingerprint, &snap.RowCount, &snap.FirstSeenAt, &snap.LastAppliedAt, &snap.ApplyCount); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		result = append(result, &snap)
	}
	return result, rows.Err()
}
