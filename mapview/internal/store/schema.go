package store

import "database/sql"

// Schema holds fetch history, applied snapshots and local edits.
const Schema = `
-- One row per completed poll cycle
CREATE TABLE IF NOT EXISTS fetch_log (
    id              TEXT PRIMARY KEY,
    outcome         TEXT NOT NULL,
    fingerprint     TEXT NOT NULL DEFAULT '',
    row_count       INTEGER NOT NULL DEFAULT 0,
    error_message   TEXT NOT NULL DEFAULT '',
    duration_ms     INTEGER NOT NULL DEFAULT 0,
    fetched_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fetch_log_time ON fetch_log(fetched_at DESC);

-- Distinct row sets that were applied to the map
CREATE TABLE IF NOT EXISTS snapshots (
    fingerprint     TEXT PRIMARY KEY,
    row_count       INTEGER NOT NULL,
    rows_json       TEXT NOT NULL,
    first_seen_at   INTEGER NOT NULL,
    last_applied_at INTEGER NOT NULL,
    apply_count     INTEGER NOT NULL DEFAULT 1
);

-- Local edits (never pushed to the source)
CREATE TABLE IF NOT EXISTS edit_log (
    id              TEXT PRIMARY KEY,
    plot_id         TEXT NOT NULL,
    plot_name       TEXT NOT NULL DEFAULT '',
    svg_code        TEXT NOT NULL,
    committed_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_edit_log_plot ON edit_log(plot_id, committed_at DESC);
`

// ApplySchema creates all tables. Idempotent.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
