// Package state owns the interactive map state: the working plot set, the
// composed scene, zoom, scroll, selection and the open edit draft.
//
// Every mutation goes through one mutex, so the HTTP handlers, the poll
// loop and terminal input see a single consistent owner.
package state

import (
	"log/slog"
	"math"
	"sync"

	"github.com/hazyhaar/plotmap/mapview/internal/plot"
	"github.com/hazyhaar/plotmap/mapview/internal/scene"
)

// Controller is safe for concurrent use.
type Controller struct {
	mu       sync.Mutex
	plots    []plot.Plot
	scene    scene.Scene
	zoom     float64
	scroll   Point
	selected string
	focusSeq uint64
	revision uint64
	renders  uint64
	editMode bool
	draft    *Draft

	onRender func(View)
	logger   *slog.Logger
}

// Point is a scroll offset or cursor position in scaled pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option { return func(c *Controller) { c.logger = l } }

// WithOnRender registers a hook called after every re-render, outside the
// lock, with the new view.
func WithOnRender(fn func(View)) Option { return func(c *Controller) { c.onRender = fn } }

// New creates a Controller with an empty working set at zoom 1.
func New(opts ...Option) *Controller {
	c := &Controller{zoom: DefaultZoom, scene: scene.Compose(nil)}
	for _, o := range opts {
		o(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Apply replaces the working set wholesale and re-renders. Zoom and scroll
// are kept; the selection is kept only if the plot still exists. An open
// draft for a removed plot is discarded.
func (c *Controller) Apply(plots []plot.Plot) {
	c.mu.Lock()
	c.plots = plot.Clone(plots)
	if c.selected != "" && plot.Index(c.plots, c.selected) < 0 {
		c.logger.Debug("state: selection cleared, plot removed", "plot_id", c.selected)
		c.selected = ""
	}
	if c.draft != nil && plot.Index(c.plots, c.draft.ID) < 0 {
		c.logger.Info("state: edit draft discarded, plot removed", "plot_id", c.draft.ID)
		c.draft = nil
	}
	v := c.renderLocked()
	c.mu.Unlock()
	c.notify(v)
}

// Plots returns a copy of the working set.
func (c *Controller) Plots() []plot.Plot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return plot.Clone(c.plots)
}

// Renders returns how many times the scene was re-rendered.
func (c *Controller) Renders() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renders
}

// renderLocked recomposes the scene. c.mu must be held.
func (c *Controller) renderLocked() View {
	c.scene = scene.Compose(c.plots)
	c.revision++
	c.renders++
	if len(c.scene.Degraded) > 0 {
		c.logger.Warn("state: fragments fell back to defaults", "plot_ids", c.scene.Degraded)
	}
	return c.viewLocked()
}

// touchLocked bumps the revision for overlay-only changes (zoom, selection)
// that do not recompose the scene.
func (c *Controller) touchLocked() View {
	c.revision++
	return c.viewLocked()
}

func (c *Controller) notify(v View) {
	if c.onRender != nil {
		c.onRender(v)
	}
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
