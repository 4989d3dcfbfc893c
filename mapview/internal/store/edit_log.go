package store

import (
	"context"
	"fmt"
)

// InsertEdit records a committed local edit.
func (s *Store) InsertEdit(ctx context.Context, e *EditEntry) error {
	if e.ID == "" {
		e.ID = NewID()
	}
	if e.CommittedAt == 0 {
		e.CommittedAt = s.nowMs()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO edit_log (id, plot_id, plot_name, svg_code, committed_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.PlotID, e.PlotName, e.SVGCode, e.CommittedAt,
	)
	if err != nil {
		return fmt.Errorf("insert edit: %w", err)
	}
	return nil
}

// EditHistory returns edits, newest first. An empty plotID lists all plots.
func (s *Store) EditHistory(ctx context.Context, plotID string, limit int) ([]*EditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, plot_id, plot_name, svg_code, committed_at FROM edit_log
		WHERE ? = '' OR plot_id = ?
		ORDER BY committed_at DESC, id DESC LIMIT ?`, plotID, plotID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*EditEntry
	for rows.Next() {
		var e EditEntry
		if err := rows.Scan(&e.ID, &e.PlotID, &e.PlotName, &e.SVGCode, &e.CommittedAt); err != nil {
			return nil, fmt.Errorf("scan edit: %w", err)
		}
		result = append(result, &e)
	}
	return result, rows.Err()
}
