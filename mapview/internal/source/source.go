// Package source fetches plot rows from a remote sheet endpoint or a local
// file and normalises them to []plot.Plot.
package source

import (
	"context"
	"errors"

	"github.com/hazyhaar/plotmap/mapview/internal/plot"
)

var (
	// ErrTransport covers network failures and non-success HTTP status.
	ErrTransport = errors.New("source: transport failure")
	// ErrMalformed is returned for empty or undecodable payloads.
	ErrMalformed = errors.New("source: malformed payload")
	// ErrNotModified is returned when the server answers 304.
	ErrNotModified = errors.New("source: not modified")
)

// Source produces the current row set.
type Source interface {
	Fetch(ctx context.Context) ([]plot.Plot, error)
}

// Func adapts a function to Source.
type Func func(ctx context.Context) ([]plot.Plot, error)

// Fetch calls f.
func (f Func) Fetch(ctx context.Context) ([]plot.Plot, error) { return f(ctx) }

// Committer is implemented by sources that keep conditional-request state
// (an ETag) between fetches. After a successful Fetch the caller calls
// Commit once the rows are applied or known to match, or Rollback when it
// drops them, so a later 304 never hides rows that were not applied.
type Committer interface {
	Commit()
	Rollback()
}
