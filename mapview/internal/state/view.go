package state

import (
	"math"

	"github.com/hazyhaar/plotmap/mapview/internal/scene"
)

// EntryView is a navigation entry with its active flag.
type EntryView struct {
	scene.Entry
	Active bool `json:"active"`
}

// View is an immutable snapshot for renderers.
type View struct {
	Scene       scene.Scene `json:"scene"`
	Entries     []EntryView `json:"entries"`
	SelectedID  string      `json:"selected_id,omitempty"`
	Zoom        float64     `json:"zoom"`
	ZoomPercent int         `json:"zoom_percent"`
	Scroll      Point       `json:"scroll"`
	// FocusSeq increments on every successful selection; renderers scroll
	// the map region into view when it changes.
	FocusSeq uint64 `json:"focus_seq"`
	Revision uint64 `json:"revision"`
	RowCount int    `json:"row_count"`
	EditMode bool   `json:"edit_mode"`
	Editing  string `json:"editing,omitempty"`
}

// Overlay returns the interaction state to draw over the scene.
func (v View) Overlay() scene.Overlay {
	return scene.Overlay{SelectedID: v.SelectedID, Zoom: v.Zoom}
}

// View returns the current snapshot.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Controller) viewLocked() View {
	v := View{
		Scene:       c.scene,
		SelectedID:  c.selected,
		Zoom:        c.zoom,
		ZoomPercent: int(math.Round(c.zoom * 100)),
		Scroll:      c.scroll,
		FocusSeq:    c.focusSeq,
		Revision:    c.revision,
		RowCount:    len(c.plots),
		EditMode:    c.editMode,
	}
	if c.draft != nil {
		v.Editing = c.draft.ID
	}
	v.Entries = make([]EntryView, len(c.scene.Entries))
	for i, e := range c.scene.Entries {
		v.Entries[i] = EntryView{Entry: e, Active: e.ID == c.selected}
	}
	return v
}
