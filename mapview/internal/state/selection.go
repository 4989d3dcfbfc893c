package state

import (
	"github.com/hazyhaar/plotmap/mapview/internal/plot"
	"github.com/hazyhaar/plotmap/mapview/internal/scene"
)

// Select marks id as the selected plot and requests the map be scrolled
// into view. Unknown ids are ignored and return false.
func (c *Controller) Select(id string) bool {
	c.mu.Lock()
	if plot.Index(c.plots, id) < 0 {
		c.mu.Unlock()
		c.logger.Debug("state: select ignored, unknown plot", "plot_id", id)
		return false
	}
	c.selected = id
	c.focusSeq++
	v := c.touchLocked()
	c.mu.Unlock()
	c.notify(v)
	return true
}

// ClearSelection drops the current selection.
func (c *Controller) ClearSelection() {
	c.mu.Lock()
	if c.selected == "" {
		c.mu.Unlock()
		return
	}
	c.selected = ""
	v := c.touchLocked()
	c.mu.Unlock()
	c.notify(v)
}

// Selected returns the selected id, or "".
func (c *Controller) Selected() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// SetEditMode switches what Activate does.
func (c *Controller) SetEditMode(on bool) {
	c.mu.Lock()
	if c.editMode == on {
		c.mu.Unlock()
		return
	}
	c.editMode = on
	v := c.touchLocked()
	c.mu.Unlock()
	c.notify(v)
}

// Activate handles a click on a plot shape or entry: in edit mode it opens
// a draft, otherwise it selects. It reports whether the id was known.
func (c *Controller) Activate(id string) bool {
	c.mu.Lock()
	edit := c.editMode
	c.mu.Unlock()
	if edit {
		_, ok := c.BeginEdit(id)
		return ok
	}
	return c.Select(id)
}

// ActivateAt activates the topmost plot under a viewport point, accounting
// for scroll and zoom.
func (c *Controller) ActivateAt(x, y float64) (string, bool) {
	c.mu.Lock()
	cx := (c.scroll.X + x) / c.zoom
	cy := (c.scroll.Y + y) / c.zoom
	id, ok := scene.HitTest(c.scene, cx, cy)
	c.mu.Unlock()
	if !ok {
		return "", false
	}
	return id, c.Activate(id)
}
