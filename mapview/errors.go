package mapview

import (
	"errors"

	"github.com/hazyhaar/plotmap/mapview/internal/source"
	"github.com/hazyhaar/plotmap/mapview/internal/state"
	"github.com/hazyhaar/plotmap/mapview/internal/store"
)

// ErrInvalidConfig is returned by Config.Validate and New.
var ErrInvalidConfig = errors.New("mapview: invalid config")

// ErrHistoryDisabled is returned by history queries when no store is configured.
var ErrHistoryDisabled = errors.New("mapview: history disabled")

// ErrSnapshotNotFound is returned by Snapshot for an unknown fingerprint.
var ErrSnapshotNotFound = store.ErrNotFound

// Errors surfaced from the state and source layers.
var (
	ErrInvalidEdit = state.ErrInvalidEdit
	ErrUnknownPlot = state.ErrUnknownPlot
	ErrNoDraft     = state.ErrNoDraft
	ErrTransport   = source.ErrTransport
	ErrMalformed   = source.ErrMalformed
)
