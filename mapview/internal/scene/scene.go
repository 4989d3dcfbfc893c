// Package scene composes parsed plot fragments into one bounded map scene
// and the ordered entry list used for navigation.
package scene

import (
	"github.com/hazyhaar/plotmap/mapview/internal/fragment"
	"github.com/hazyhaar/plotmap/mapview/internal/plot"
)

// Padding is added past the furthest right and bottom edges.
const Padding = 50.0

// Viewport is the scene extent in content units.
type Viewport struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Shape is one drawable rectangle. Order in Scene.Shapes is draw order.
type Shape struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	W    float64 `json:"w"`
	H    float64 `json:"h"`
	Fill string  `json:"fill"`
}

// Contains reports whether the content-space point lies inside s.
func (s Shape) Contains(x, y float64) bool {
	return x >= s.X && x <= s.X+s.W && y >= s.Y && y <= s.Y+s.H
}

// Entry is a navigation item for one plot.
type Entry struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ColorHint string `json:"color_hint"`
}

// Scene is the composed map. An empty input composes to Empty=true with no
// viewport; renderers show an explicit no-data state for it.
type Scene struct {
	Empty    bool     `json:"empty"`
	Viewport Viewport `json:"viewport"`
	Shapes   []Shape  `json:"shapes"`
	Entries  []Entry  `json:"entries"`
	// Degraded lists plots whose fragment could not be parsed and were
	// drawn with default geometry.
	Degraded []string `json:"degraded,omitempty"`
}

// Compose is pure: equal inputs yield deeply equal scenes.
func Compose(plots []plot.Plot) Scene {
	if len(plots) == 0 {
		return Scene{Empty: true}
	}
	s := Scene{
		Shapes:  make([]Shape, 0, len(plots)),
		Entries: make([]Entry, 0, len(plots)),
	}
	var maxX, maxY float64
	for _, p := range plots {
		parsed, err := fragment.ParseStrict(p.Fragment)
		if err != nil {
			parsed = fragment.Default()
			s.Degraded = append(s.Degraded, p.ID)
		}
		s.Shapes = append(s.Shapes, Shape{
			ID:   p.ID,
			Name: p.Name,
			X:    parsed.X,
			Y:    parsed.Y,
			W:    parsed.Width,
			H:    parsed.Height,
			Fill: parsed.FillColor,
		})
		s.Entries = append(s.Entries, Entry{ID: p.ID, Name: p.Name, ColorHint: parsed.FillColor})
		maxX = max(maxX, parsed.Right())
		maxY = max(maxY, parsed.Bottom())
	}
	s.Viewport = Viewport{W: maxX + Padding, H: maxY + Padding}
	return s
}

// HitTest returns the topmost shape containing the content-space point.
func HitTest(s Scene, x, y float64) (string, bool) {
	for i := len(s.Shapes) - 1; i >= 0; i-- {
		if s.Shapes[i].Contains(x, y) {
			return s.Shapes[i].ID, true
		}
	}
	return "", false
}
