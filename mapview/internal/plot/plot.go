// Package plot defines the row model shared by every stage of the map
// pipeline: one land plot with its id, display name and SVG fragment.
package plot

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// Plot is one source row. Order in a slice is the source row order.
type Plot struct {
	ID       string `json:"plot_id"`
	Name     string `json:"plot_name"`
	Fragment string `json:"svg_code"`
}

// Fingerprint returns the SHA-256 hex digest of the canonical JSON encoding
// of plots. It is order-sensitive: the same rows in another order produce a
// different fingerprint. A nil and an empty slice fingerprint identically.
func Fingerprint(plots []Plot) string {
	if plots == nil {
		plots = []Plot{}
	}
	data, err := json.Marshal(plots)
	if err != nil {
		// Plot holds only strings; Marshal cannot fail.
		panic(fmt.Sprintf("plot: marshal: %v", err))
	}
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h)
}

// Dedupe keeps the first row for each id and drops the rest, preserving
// order. Rows with an empty id are dropped too. It returns the ids that were
// dropped as duplicates.
func Dedupe(plots []Plot) (kept []Plot, dropped []string) {
	seen := make(map[string]bool, len(plots))
	kept = make([]Plot, 0, len(plots))
	for _, p := range plots {
		if p.ID == "" {
			continue
		}
		if seen[p.ID] {
			dropped = append(dropped, p.ID)
			continue
		}
		seen[p.ID] = true
		kept = append(kept, p)
	}
	return kept, dropped
}

// Index returns the position of id in plots, or -1.
func Index(plots []Plot, id string) int {
	for i, p := range plots {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a copy of plots that shares no backing array with the input.
func Clone(plots []Plot) []Plot {
	if plots == nil {
		return nil
	}
	out := make([]Plot, len(plots))
	copy(out, plots)
	return out
}

// Placeholder returns a small built-in dataset shown when the source has
// never produced usable rows.
func Placeholder() []Plot {
	return []Plot{
		{ID: "A1", Name: "Lô A1", Fragment: `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 496.34 94.98"><defs><style>.cls-A1{fill:#8fbc8f;}</style></defs><rect class="cls-A1" x="0" y="0" width="94.98" height="94.98"/></svg>`},
		{ID: "A2", Name: "Lô A2", Fragment: `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 496.34 94.98"><defs><style>.cls-A2{fill:#f4a460;}</style></defs><rect class="cls-A2" x="100" y="0" width="94.98" height="94.98"/></svg>`},
		{ID: "A3", Name: "Lô A3", Fragment: `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 496.34 94.98"><defs><style>.cls-A3{fill:#87ceeb;}</style></defs><rect class="cls-A3" x="200" y="0" width="94.98" height="94.98"/></svg>`},
	}
}
