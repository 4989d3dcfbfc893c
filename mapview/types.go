// Package mapview serves an interactive land-plot map built from rows of
// SVG fragments fetched from a sheet endpoint.
//
// A Service polls the source on a fixed interval, re-renders only when the
// rows change, and keeps zoom, scroll, selection and an in-memory edit
// draft consistent across refreshes. Edits stay local.
package mapview

import (
	"github.com/hazyhaar/plotmap/mapview/internal/plot"
	"github.com/hazyhaar/plotmap/mapview/internal/poll"
	"github.com/hazyhaar/plotmap/mapview/internal/scene"
	"github.com/hazyhaar/plotmap/mapview/internal/source"
	"github.com/hazyhaar/plotmap/mapview/internal/state"
	"github.com/hazyhaar/plotmap/mapview/internal/store"
)

// Re-exported types for the public API.
type (
	Plot            = plot.Plot
	Scene           = scene.Scene
	Shape           = scene.Shape
	Entry           = scene.Entry
	View            = state.View
	EntryView       = state.EntryView
	Point           = state.Point
	WheelEvent      = state.WheelEvent
	Draft           = state.Draft
	ValidationError = state.ValidationError
	Outcome         = poll.Outcome
	PollStats       = poll.Stats
	Ticker          = poll.Ticker
	Source          = source.Source
	SourceFunc      = source.Func
	HTTPConfig      = source.HTTPConfig
	FetchLogEntry   = store.FetchLogEntry
	Snapshot        = store.Snapshot
	EditEntry       = store.EditEntry
)

// Poll outcomes.
const (
	OutcomeSkipped   = poll.OutcomeSkipped
	OutcomeUnchanged = poll.OutcomeUnchanged
	OutcomeChanged   = poll.OutcomeChanged
	OutcomeFailed    = poll.OutcomeFailed
	OutcomeDiscarded = poll.OutcomeDiscarded
)

// Zoom bounds.
const (
	MinZoom     = state.MinZoom
	MaxZoom     = state.MaxZoom
	ZoomStep    = state.ZoomStep
	DefaultZoom = state.DefaultZoom
)

// NoDataMessage is shown when there are no plots.
const NoDataMessage = scene.NoDataMessage
