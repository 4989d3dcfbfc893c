package store

// FetchLogEntry is one poll cycle.
type FetchLogEntry struct {
	ID           string `json:"id"`
	Outcome      string `json:"outcome"`
	Fingerprint  string `json:"fingerprint,omitempty"`
	RowCount     int    `json:"row_count"`
	ErrorMessage string `json:"error_message,omitempty"`
	DurationMs   int64  `json:"duration_ms"`
	FetchedAt    int64  `json:"fetched_at"`
}

// Snapshot is an applied row set.
type Snapshot struct {
	Fingerprint   string `json:"fingerprint"`
	RowCount      int    `json:"row_count"`
	RowsJSON      string `json:"rows_json,omitempty"`
	FirstSeenAt   int64  `json:"first_seen_at"`
	LastAppliedAt int64  `json:"last_applied_at"`
	ApplyCount    int    `json:"apply_count"`
}

// EditEntry is one committed local edit.
type EditEntry struct {
	ID          string `json:"id"`
	PlotID      string `json:"plot_id"`
	PlotName    string `json:"plot_name"`
	SVGCode     string `json:"svg_code"`
	CommittedAt int64  `json:"committed_at"`
}
