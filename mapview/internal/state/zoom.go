package state

import "math"

const (
	MinZoom     = 0.5
	MaxZoom     = 3.0
	ZoomStep    = 0.2
	DefaultZoom = 1.0
)

// ClampZoom bounds f to [MinZoom, MaxZoom] and rounds away float drift
// from repeated steps.
func ClampZoom(f float64) float64 {
	f = math.Min(math.Max(f, MinZoom), MaxZoom)
	return math.Round(f*1e6) / 1e6
}

// WheelEvent is one wheel notch over the map. Cursor is relative to the
// map viewport's top-left corner.
type WheelEvent struct {
	DeltaY  float64 `json:"delta_y"`
	CursorX float64 `json:"cursor_x"`
	CursorY float64 `json:"cursor_y"`
}

// SetZoom sets the factor, clamped. NaN is ignored. Returns the new factor.
func (c *Controller) SetZoom(f float64) float64 {
	if math.IsNaN(f) {
		return c.Zoom()
	}
	return c.setZoom(ClampZoom(f))
}

// ZoomIn steps up by ZoomStep; no-op at MaxZoom.
func (c *Controller) ZoomIn() float64 {
	return c.step(ZoomStep)
}

// ZoomOut steps down by ZoomStep; no-op at MinZoom.
func (c *Controller) ZoomOut() float64 {
	return c.step(-ZoomStep)
}

// ResetZoom returns to DefaultZoom.
func (c *Controller) ResetZoom() float64 {
	return c.setZoom(DefaultZoom)
}

// Zoom returns the current factor.
func (c *Controller) Zoom() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.zoom
}

func (c *Controller) step(d float64) float64 {
	return c.updateZoom(func(cur float64) float64 { return ClampZoom(cur + d) })
}

func (c *Controller) setZoom(f float64) float64 {
	return c.updateZoom(func(float64) float64 { return f })
}

func (c *Controller) updateZoom(next func(cur float64) float64) float64 {
	c.mu.Lock()
	f := next(c.zoom)
	if f == c.zoom {
		c.mu.Unlock()
		return f
	}
	c.zoom = f
	v := c.touchLocked()
	c.mu.Unlock()
	c.notify(v)
	return f
}

// Wheel zooms one step toward the cursor. Negative DeltaY zooms in. When
// the factor changes, the scroll offset is adjusted so the content point
// under the cursor stays under it. At a bound nothing changes.
func (c *Controller) Wheel(e WheelEvent) View {
	c.mu.Lock()
	if !finite(e.DeltaY) || !finite(e.CursorX) || !finite(e.CursorY) {
		v := c.viewLocked()
		c.mu.Unlock()
		return v
	}
	old := c.zoom
	next := old
	if e.DeltaY < 0 {
		next = ClampZoom(old + ZoomStep)
	} else {
		next = ClampZoom(old - ZoomStep)
	}
	if next == old {
		v := c.viewLocked()
		c.mu.Unlock()
		return v
	}
	ratio := next / old
	c.zoom = next
	c.scroll = Point{
		X: math.Max(0, (c.scroll.X+e.CursorX)*ratio-e.CursorX),
		Y: math.Max(0, (c.scroll.Y+e.CursorY)*ratio-e.CursorY),
	}
	v := c.touchLocked()
	c.mu.Unlock()
	c.notify(v)
	return v
}

// SetScroll records the viewport scroll offset reported by a renderer.
// Negative and non-finite values are clamped to 0.
func (c *Controller) SetScroll(x, y float64) Point {
	c.mu.Lock()
	p := Point{X: nonNegative(x), Y: nonNegative(y)}
	if p == c.scroll {
		c.mu.Unlock()
		return p
	}
	c.scroll = p
	v := c.touchLocked()
	c.mu.Unlock()
	c.notify(v)
	return p
}

func nonNegative(f float64) float64 {
	if !finite(f) || f < 0 {
		return 0
	}
	return f
}
