package state

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hazyhaar/plotmap/mapview/internal/fragment"
	"github.com/hazyhaar/plotmap/mapview/internal/plot"
)

var (
	// ErrInvalidEdit is wrapped by every *ValidationError.
	ErrInvalidEdit = errors.New("state: invalid edit")
	// ErrUnknownPlot is returned when the edited plot is not in the working set.
	ErrUnknownPlot = errors.New("state: unknown plot")
	// ErrNoDraft is returned when committing without a matching open draft.
	ErrNoDraft = errors.New("state: no edit in progress")
)

// ValidationError names the draft field that blocked a commit.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("state: invalid edit: %s %q %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidEdit }

// Draft holds the edit form fields as entered. Geometry stays textual until
// commit so invalid input can be shown back unchanged.
type Draft struct {
	ID     string `json:"plot_id"`
	Name   string `json:"plot_name"`
	Color  string `json:"color"`
	X      string `json:"x"`
	Y      string `json:"y"`
	Width  string `json:"width"`
	Height string `json:"height"`
	// Fragment is the plot's current SVG code, for display only.
	Fragment string `json:"svg_code,omitempty"`
}

// Rect validates the draft and converts it to a fragment.Rect.
func (d Draft) Rect() (fragment.Rect, error) {
	r := fragment.Rect{ID: d.ID}
	fields := []struct {
		name string
		val  string
		dst  *float64
		size bool
	}{
		{"x", d.X, &r.X, false},
		{"y", d.Y, &r.Y, false},
		{"width", d.Width, &r.Width, true},
		{"height", d.Height, &r.Height, true},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f.val), 64)
		if err != nil || !finite(v) {
			return r, &ValidationError{Field: f.name, Value: f.val, Reason: "is not a finite number"}
		}
		if f.size && v < 0 {
			return r, &ValidationError{Field: f.name, Value: f.val, Reason: "must not be negative"}
		}
		*f.dst = v
	}
	if !fragment.InRange(r.X, r.Y, r.Width, r.Height) {
		field, val := "width", d.Width
		if !fragment.InRange(0, r.Y, 0, r.Height) {
			field, val = "height", d.Height
		}
		return r, &ValidationError{Field: field, Value: val, Reason: fmt.Sprintf("puts an edge beyond ±%g", fragment.MaxExtent)}
	}

	r.Fill = strings.TrimSpace(d.Color)
	if r.Fill == "" {
		r.Fill = fragment.DefaultFill
	}
	if !fragment.ValidColor(r.Fill) {
		return r, &ValidationError{Field: "color", Value: d.Color, Reason: "is not a colour"}
	}
	return r, nil
}

// BeginEdit opens a draft for id, prefilled from the plot's parsed
// fragment. Unknown ids return false and change nothing.
func (c *Controller) BeginEdit(id string) (Draft, bool) {
	c.mu.Lock()
	i := plot.Index(c.plots, id)
	if i < 0 {
		c.mu.Unlock()
		return Draft{}, false
	}
	p := c.plots[i]
	parsed := fragment.Parse(p.Fragment)
	d := Draft{
		ID:       p.ID,
		Name:     p.Name,
		Color:    parsed.FillColor,
		X:        fragment.FormatNumber(parsed.X),
		Y:        fragment.FormatNumber(parsed.Y),
		Width:    fragment.FormatNumber(parsed.Width),
		Height:   fragment.FormatNumber(parsed.Height),
		Fragment: p.Fragment,
	}
	c.draft = &d
	v := c.touchLocked()
	c.mu.Unlock()
	c.notify(v)
	return d, true
}

// Draft returns the open draft, if any.
func (c *Controller) Draft() (Draft, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draft == nil {
		return Draft{}, false
	}
	return *c.draft, true
}

// CommitEdit validates d, regenerates the plot's fragment and replaces the
// plot in place. On a validation error the draft stays open with the
// submitted values and nothing else changes. On success the edited plot
// is selected and the draft closed.
func (c *Controller) CommitEdit(d Draft) (plot.Plot, error) {
	c.mu.Lock()
	if c.draft == nil || c.draft.ID != d.ID {
		c.mu.Unlock()
		return plot.Plot{}, ErrNoDraft
	}
	d.Fragment = c.draft.Fragment
	rect, err := d.Rect()
	if err != nil {
		c.draft = &d
		c.mu.Unlock()
		return plot.Plot{}, err
	}
	i := plot.Index(c.plots, d.ID)
	if i < 0 {
		c.draft = nil
		c.mu.Unlock()
		return plot.Plot{}, fmt.Errorf("%w: %s", ErrUnknownPlot, d.ID)
	}

	edited := plot.Plot{ID: d.ID, Name: d.Name, Fragment: fragment.Render(rect)}
	c.plots[i] = edited
	c.draft = nil
	c.selected = d.ID
	c.focusSeq++
	v := c.renderLocked()
	c.mu.Unlock()

	c.logger.Info("state: plot edited", "plot_id", d.ID)
	c.notify(v)
	return edited, nil
}

// CancelEdit discards the open draft without touching the working set.
func (c *Controller) CancelEdit() {
	c.mu.Lock()
	if c.draft == nil {
		c.mu.Unlock()
		return
	}
	c.draft = nil
	v := c.touchLocked()
	c.mu.Unlock()
	c.notify(v)
}
