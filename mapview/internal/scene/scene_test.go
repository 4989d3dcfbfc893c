package scene

import (
	"bytes"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/hazyhaar/plotmap/mapview/internal/plot"
)

func rectPlot(id, name, attrs string) plot.Plot {
	return plot.Plot{ID: id, Name: name, Fragment: `<svg><rect ` + attrs + `/></svg>`}
}

func TestCompose_Empty(t *testing.T) {
	// WHAT: No plots compose to the empty sentinel.
	// WHY: A zero-size viewport must never reach a renderer.
	s := Compose(nil)
	if !s.Empty {
		t.Fatal("expected Empty sentinel")
	}
	if s.Viewport != (Viewport{}) || len(s.Shapes) != 0 {
		t.Errorf("empty scene carries data: %+v", s)
	}
}

func TestCompose_SingleRect(t *testing.T) {
	// WHAT: One 10x10 red rect at the origin gives a 60x60 viewport.
	// WHY: Viewport is the furthest edge plus padding on each axis.
	s := Compose([]plot.Plot{rectPlot("1", "A", `x="0" y="0" width="10" height="10" fill="#ff0000"`)})
	want := Shape{ID: "1", Name: "A", X: 0, Y: 0, W: 10, H: 10, Fill: "#ff0000"}
	if len(s.Shapes) != 1 || s.Shapes[0] != want {
		t.Fatalf("shapes: got %+v, want [%+v]", s.Shapes, want)
	}
	if s.Viewport != (Viewport{W: 60, H: 60}) {
		t.Errorf("viewport: got %+v, want {60 60}", s.Viewport)
	}
	if len(s.Entries) != 1 || s.Entries[0].ColorHint != "#ff0000" {
		t.Errorf("entries: got %+v", s.Entries)
	}
}

func TestCompose_ViewportBoundsAllShapes(t *testing.T) {
	// WHAT: Every shape fits inside the viewport minus padding.
	// WHY: Shapes beyond the viewport would be clipped off the map.
	s := Compose([]plot.Plot{
		rectPlot("1", "a", `x="100" y="5" width="20" height="10"`),
		rectPlot("2", "b", `x="3" y="200" width="4" height="30"`),
		rectPlot("3", "c", `x="-5" y="-5" width="1" height="1"`),
	})
	for _, sh := range s.Shapes {
		if sh.X+sh.W > s.Viewport.W-Padding || sh.Y+sh.H > s.Viewport.H-Padding {
			t.Errorf("shape %s exceeds viewport %+v", sh.ID, s.Viewport)
		}
	}
	if s.Viewport.W != 170 || s.Viewport.H != 280 {
		t.Errorf("viewport: got %+v, want {170 280}", s.Viewport)
	}
}

func TestCompose_OrderAndDegraded(t *testing.T) {
	// WHAT: Output order follows input order; broken fragments degrade to defaults.
	// WHY: Row order is draw order, and one bad row must not blank the map.
	s := Compose([]plot.Plot{
		rectPlot("b", "B", `x="1"`),
		{ID: "a", Name: "A", Fragment: "<circle/>"},
	})
	if s.Shapes[0].ID != "b" || s.Shapes[1].ID != "a" {
		t.Errorf("order: got %s,%s", s.Shapes[0].ID, s.Shapes[1].ID)
	}
	if !reflect.DeepEqual(s.Degraded, []string{"a"}) {
		t.Errorf("degraded: got %v, want [a]", s.Degraded)
	}
	if s.Shapes[1].W != 94.98 {
		t.Errorf("degraded width: got %v", s.Shapes[1].W)
	}
}

func TestCompose_OverflowingEdgeDegrades(t *testing.T) {
	// WHAT: A remote rect whose x+width overflows is drawn with defaults and marked degraded.
	// WHY: One oversized row must not turn the viewport infinite.
	s := Compose([]plot.Plot{
		rectPlot("ok", "OK", `x="0" y="0" width="10" height="10"`),
		rectPlot("huge", "Huge", `x="1e308" y="0" width="1e308" height="10"`),
	})
	if !reflect.DeepEqual(s.Degraded, []string{"huge"}) {
		t.Errorf("degraded: got %v, want [huge]", s.Degraded)
	}
	if math.IsInf(s.Viewport.W, 0) || math.IsInf(s.Viewport.H, 0) {
		t.Fatalf("viewport not finite: %+v", s.Viewport)
	}
	if s.Shapes[1].X != 0 || s.Shapes[1].W != 94.98 {
		t.Errorf("degraded shape: got %+v", s.Shapes[1])
	}
	var buf bytes.Buffer
	if err := WriteSVG(&buf, s, Overlay{Zoom: 3}); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "Inf") {
		t.Errorf("svg carries Inf: %s", buf.String())
	}
}

func TestCompose_Idempotent(t *testing.T) {
	// WHAT: Composing the same rows twice gives deeply equal scenes.
	// WHY: Re-render without data change must be invisible.
	in := []plot.Plot{rectPlot("1", "a", `x="1" y="2" width="3" height="4" fill="red"`)}
	if !reflect.DeepEqual(Compose(in), Compose(in)) {
		t.Fatal("compose is not deterministic")
	}
}

func TestHitTest_Topmost(t *testing.T) {
	// WHAT: Overlapping shapes resolve to the last drawn.
	// WHY: The topmost shape is what the user clicked.
	s := Compose([]plot.Plot{
		rectPlot("under", "", `x="0" y="0" width="10" height="10"`),
		rectPlot("over", "", `x="5" y="5" width="10" height="10"`),
	})
	if id, ok := HitTest(s, 6, 6); !ok || id != "over" {
		t.Errorf("hit (6,6): got %q %v, want over", id, ok)
	}
	if id, ok := HitTest(s, 1, 1); !ok || id != "under" {
		t.Errorf("hit (1,1): got %q %v, want under", id, ok)
	}
	if _, ok := HitTest(s, 100, 100); ok {
		t.Error("hit outside all shapes")
	}
}

func TestWriteSVG_HighlightAndZoom(t *testing.T) {
	// WHAT: The selected shape is highlighted and zoom scales the content group.
	// WHY: Selection and zoom survive every re-render through the overlay.
	s := Compose([]plot.Plot{
		rectPlot("1", "one", `width="10" height="10"`),
		rectPlot("2", "two", `x="20" width="10" height="10"`),
	})
	var buf bytes.Buffer
	if err := WriteSVG(&buf, s, Overlay{SelectedID: "2", Zoom: 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `transform="scale(2)"`) {
		t.Error("missing scale transform")
	}
	if strings.Count(out, "plot-highlight") != 1 {
		t.Errorf("highlight count: got %d, want 1", strings.Count(out, "plot-highlight"))
	}
	if !strings.Contains(out, `id="2" x="20"`) {
		t.Error("missing shape 2")
	}
	if !strings.Contains(out, `viewBox="0 0 160 120"`) {
		t.Errorf("viewBox not scaled: %s", out)
	}
}

func TestWriteSVG_SanitisesNames(t *testing.T) {
	// WHAT: Markup in plot names is stripped and quotes escaped.
	// WHY: Names come from a remote sheet and land inside attributes.
	s := Compose([]plot.Plot{rectPlot(`x"y`, `<b>Lot</b> "A"`, `width="1" height="1"`)})
	var buf bytes.Buffer
	if err := WriteSVG(&buf, s, Overlay{Zoom: 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "<b>") || strings.Contains(out, `"A"`) {
		t.Errorf("unsanitised name in output: %s", out)
	}
	if strings.Contains(out, `id="x"y"`) {
		t.Error("unescaped id")
	}
}

func TestWriteSVG_Empty(t *testing.T) {
	// WHAT: The empty scene renders the no-data message.
	// WHY: Users must see an explicit state rather than a blank map.
	var buf bytes.Buffer
	if err := WriteSVG(&buf, Compose(nil), Overlay{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(buf.String(), NoDataMessage) {
		t.Errorf("missing no-data message: %s", buf.String())
	}
}
