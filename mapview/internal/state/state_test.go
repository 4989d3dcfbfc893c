package state

import (
	"encoding/json"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/hazyhaar/plotmap/mapview/internal/fragment"
	"github.com/hazyhaar/plotmap/mapview/internal/plot"
)

func twoPlots() []plot.Plot {
	return []plot.Plot{
		{ID: "1", Name: "One", Fragment: `<svg><rect x="0" y="0" width="10" height="10" fill="#ff0000"/></svg>`},
		{ID: "2", Name: "Two", Fragment: `<svg><rect x="20" y="0" width="10" height="10" fill="blue"/></svg>`},
	}
}

func TestZoom_Clamp(t *testing.T) {
	// WHAT: SetZoom keeps the factor within bounds for extreme inputs.
	// WHY: Out-of-range factors make the map unusable.
	c := New()
	cases := []struct {
		in, want float64
	}{
		{100, MaxZoom},
		{-5, MinZoom},
		{0, MinZoom},
		{math.Inf(1), MaxZoom},
		{math.Inf(-1), MinZoom},
		{1.7, 1.7},
	}
	for _, tc := range cases {
		if got := c.SetZoom(tc.in); got != tc.want {
			t.Errorf("SetZoom(%v): got %v, want %v", tc.in, got, tc.want)
		}
	}
	c.SetZoom(2)
	if got := c.SetZoom(math.NaN()); got != 2 {
		t.Errorf("SetZoom(NaN): got %v, want 2 (unchanged)", got)
	}
}

func TestZoom_StepsAndReset(t *testing.T) {
	// WHAT: Steps move by 0.2, stop at the bounds, reset returns to 1.
	// WHY: Buttons must never push the factor out of range.
	c := New()
	if got := c.ZoomIn(); got != 1.2 {
		t.Errorf("ZoomIn: got %v, want 1.2", got)
	}
	for range 20 {
		c.ZoomIn()
	}
	if c.Zoom() != MaxZoom {
		t.Errorf("after many ZoomIn: got %v", c.Zoom())
	}
	for range 20 {
		c.ZoomOut()
	}
	if c.Zoom() != MinZoom {
		t.Errorf("after many ZoomOut: got %v", c.Zoom())
	}
	if c.ResetZoom() != DefaultZoom {
		t.Errorf("reset: got %v", c.Zoom())
	}
	if v := c.View(); v.ZoomPercent != 100 {
		t.Errorf("percent: got %d", v.ZoomPercent)
	}
}

func TestWheel_KeepsCursorAnchor(t *testing.T) {
	// WHAT: Wheel zoom keeps the content point under the cursor fixed.
	// WHY: Zooming toward the pointer is the expected map behaviour.
	c := New()
	c.SetScroll(100, 40)
	e := WheelEvent{DeltaY: -1, CursorX: 50, CursorY: 30}

	before := Point{X: (100 + 50) / 1.0, Y: (40 + 30) / 1.0}
	v := c.Wheel(e)
	if v.Zoom != 1.2 {
		t.Fatalf("zoom: got %v, want 1.2", v.Zoom)
	}
	after := Point{X: (v.Scroll.X + e.CursorX) / v.Zoom, Y: (v.Scroll.Y + e.CursorY) / v.Zoom}
	if math.Abs(after.X-before.X) > 1e-9 || math.Abs(after.Y-before.Y) > 1e-9 {
		t.Errorf("anchor moved: before %+v after %+v", before, after)
	}
}

func TestWheel_NoOpAtBound(t *testing.T) {
	// WHAT: Wheel at the max bound changes neither zoom nor scroll.
	// WHY: Scroll must only be adjusted when the factor actually changed.
	c := New()
	c.SetZoom(MaxZoom)
	c.SetScroll(10, 10)
	rev := c.View().Revision
	v := c.Wheel(WheelEvent{DeltaY: -3, CursorX: 5, CursorY: 5})
	if v.Zoom != MaxZoom || v.Scroll != (Point{10, 10}) {
		t.Errorf("view changed at bound: %+v", v)
	}
	if v.Revision != rev {
		t.Error("revision bumped on no-op")
	}
}

func TestZoom_SurvivesReconcile(t *testing.T) {
	// WHAT: Applying new data keeps the zoom factor.
	// WHY: Background refresh must not reset the user's view.
	c := New()
	c.SetZoom(2.4)
	c.Apply(twoPlots())
	if c.Zoom() != 2.4 {
		t.Errorf("zoom: got %v, want 2.4", c.Zoom())
	}
}

func TestSelect_UnknownIsNoOp(t *testing.T) {
	// WHAT: Selecting an id not in the working set changes nothing.
	// WHY: Selection must always refer to an existing plot.
	c := New()
	c.Apply(twoPlots())
	c.Select("1")
	before := c.View()
	if c.Select("nope") {
		t.Fatal("select of unknown id reported success")
	}
	after := c.View()
	if after.SelectedID != "1" || after.Revision != before.Revision {
		t.Errorf("state changed: before %+v after %+v", before, after)
	}
}

func TestSelect_IdempotentAndActive(t *testing.T) {
	// WHAT: Selecting twice yields the same selection; exactly one entry is active.
	// WHY: Highlight and active entry must stay in sync.
	c := New()
	c.Apply(twoPlots())
	c.Select("2")
	c.Select("2")
	v := c.View()
	active := 0
	for _, e := range v.Entries {
		if e.Active {
			active++
			if e.ID != "2" {
				t.Errorf("wrong active entry %s", e.ID)
			}
		}
	}
	if active != 1 || v.SelectedID != "2" {
		t.Errorf("active=%d selected=%q", active, v.SelectedID)
	}
	if v.FocusSeq != 2 {
		t.Errorf("focus seq: got %d, want 2", v.FocusSeq)
	}
}

func TestReconcile_ClearsRemovedSelection(t *testing.T) {
	// WHAT: Selection is cleared when its plot disappears, kept otherwise.
	// WHY: A dangling selection would highlight nothing.
	c := New()
	c.Apply(twoPlots())
	c.Select("2")
	c.Apply(twoPlots()[:1])
	if c.Selected() != "" {
		t.Errorf("selection: got %q, want empty", c.Selected())
	}

	c.Apply(twoPlots())
	c.Select("1")
	c.Apply(twoPlots())
	if c.Selected() != "1" {
		t.Errorf("selection: got %q, want 1", c.Selected())
	}
}

func TestApply_RenderHookAndCount(t *testing.T) {
	// WHAT: Every apply recomposes once and fires the render hook.
	// WHY: Renderers subscribe to the hook to redraw.
	var hooks atomic.Int32
	c := New(WithOnRender(func(View) { hooks.Add(1) }))
	c.Apply(twoPlots())
	if c.Renders() != 1 || hooks.Load() != 1 {
		t.Errorf("renders=%d hooks=%d", c.Renders(), hooks.Load())
	}
	if v := c.View(); v.RowCount != 2 || v.Scene.Viewport.W != 80 {
		t.Errorf("view: rows=%d viewport=%+v", v.RowCount, v.Scene.Viewport)
	}
}

func TestEdit_CommitRegeneratesFragment(t *testing.T) {
	// WHAT: A valid commit replaces the plot in place and selects it.
	// WHY: Local edits go through the same render path as fetched data.
	c := New()
	c.Apply(twoPlots())
	d, ok := c.BeginEdit("1")
	if !ok {
		t.Fatal("BeginEdit failed")
	}
	if d.Color != "#ff0000" || d.Width != "10" {
		t.Errorf("draft prefill: %+v", d)
	}
	d.Name = "Renamed"
	d.X = "5"
	d.Color = "#00ff00"
	edited, err := c.CommitEdit(d)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	plots := c.Plots()
	if plots[0].ID != "1" || plots[0].Name != "Renamed" || plots[0] != edited {
		t.Errorf("plot 0: %+v", plots[0])
	}
	p := fragment.Parse(plots[0].Fragment)
	if p.X != 5 || p.FillColor != "#00ff00" {
		t.Errorf("regenerated fragment: %+v", p)
	}
	v := c.View()
	if v.SelectedID != "1" || v.Editing != "" {
		t.Errorf("after commit: selected=%q editing=%q", v.SelectedID, v.Editing)
	}
}

func TestEdit_RejectsNonNumeric(t *testing.T) {
	// WHAT: x="abc" blocks the commit; the draft stays open and nothing mutates.
	// WHY: NaN geometry must never reach the scene.
	c := New()
	c.Apply(twoPlots())
	before := c.Plots()
	d, _ := c.BeginEdit("1")
	d.X = "abc"
	_, err := c.CommitEdit(d)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "x" {
		t.Fatalf("err: got %v, want ValidationError on x", err)
	}
	if !errors.Is(err, ErrInvalidEdit) {
		t.Error("error does not wrap ErrInvalidEdit")
	}
	if c.Plots()[0] != before[0] {
		t.Error("plot mutated on invalid commit")
	}
	open, ok := c.Draft()
	if !ok || open.X != "abc" {
		t.Errorf("draft not kept open with submitted values: %+v", open)
	}
	for _, sh := range c.View().Scene.Shapes {
		if math.IsNaN(sh.X) || math.IsNaN(sh.W) {
			t.Fatal("NaN in scene")
		}
	}
}

func TestEdit_RejectsBadColorAndNegativeSize(t *testing.T) {
	// WHAT: Injected colours and negative sizes are rejected.
	// WHY: The colour lands inside a style rule.
	c := New()
	c.Apply(twoPlots())
	d, _ := c.BeginEdit("2")
	d.Color = "red;}</style><script>"
	if _, err := c.CommitEdit(d); !errors.Is(err, ErrInvalidEdit) {
		t.Errorf("bad colour: got %v", err)
	}
	d.Color = "red"
	d.Height = "-1"
	if _, err := c.CommitEdit(d); !errors.Is(err, ErrInvalidEdit) {
		t.Errorf("negative height: got %v", err)
	}
}

func TestEdit_RejectsEdgeOverflow(t *testing.T) {
	// WHAT: Finite x and width whose sum overflows block the commit.
	// WHY: The viewport is built from x+width and must stay finite and encodable.
	c := New()
	c.Apply(twoPlots())
	d, _ := c.BeginEdit("1")
	d.X, d.Width = "1e308", "1e308"
	_, err := c.CommitEdit(d)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "width" {
		t.Fatalf("err: got %v, want ValidationError on width", err)
	}
	d.X, d.Width = "0", "10"
	d.Y, d.Height = "1e308", "1e308"
	if _, err := c.CommitEdit(d); !errors.As(err, &ve) || ve.Field != "height" {
		t.Fatalf("err: got %v, want ValidationError on height", err)
	}
	vp := c.View().Scene.Viewport
	if math.IsInf(vp.W, 0) || math.IsInf(vp.H, 0) {
		t.Errorf("viewport not finite: %+v", vp)
	}
	if _, err := json.Marshal(c.View()); err != nil {
		t.Errorf("view not encodable: %v", err)
	}
}

func TestEdit_CancelAndUnknown(t *testing.T) {
	// WHAT: Cancel discards the draft; unknown ids cannot be edited.
	// WHY: Abandoned edits leave the working set untouched.
	c := New()
	c.Apply(twoPlots())
	if _, ok := c.BeginEdit("zzz"); ok {
		t.Error("BeginEdit on unknown id succeeded")
	}
	d, _ := c.BeginEdit("1")
	renders := c.Renders()
	c.CancelEdit()
	if _, ok := c.Draft(); ok {
		t.Error("draft still open after cancel")
	}
	if c.Renders() != renders {
		t.Error("cancel re-rendered the scene")
	}
	if _, err := c.CommitEdit(d); !errors.Is(err, ErrNoDraft) {
		t.Errorf("commit after cancel: got %v, want ErrNoDraft", err)
	}
}

func TestEdit_DraftDroppedWhenPlotRemoved(t *testing.T) {
	// WHAT: A reconcile that removes the edited plot closes the draft.
	// WHY: Committing to a vanished plot would resurrect it.
	c := New()
	c.Apply(twoPlots())
	c.BeginEdit("2")
	c.Apply(twoPlots()[:1])
	if _, ok := c.Draft(); ok {
		t.Error("draft survived removal of its plot")
	}
}

func TestActivate_EditMode(t *testing.T) {
	// WHAT: In edit mode activation opens a draft; otherwise it selects.
	// WHY: The same click means different things in the two modes.
	c := New()
	c.Apply(twoPlots())
	c.Activate("1")
	if c.Selected() != "1" {
		t.Errorf("selected: got %q", c.Selected())
	}
	c.SetEditMode(true)
	c.Activate("2")
	if d, ok := c.Draft(); !ok || d.ID != "2" {
		t.Errorf("draft: %+v %v", d, ok)
	}
}

func TestActivateAt_HitTestsWithZoomAndScroll(t *testing.T) {
	// WHAT: Viewport coordinates map through scroll and zoom to a plot.
	// WHY: Clicks arrive in screen space.
	c := New()
	c.Apply(twoPlots())
	c.SetZoom(2)
	c.SetScroll(30, 0)
	// Content x = (30+20)/2 = 25, inside plot 2 (x 20..30).
	id, ok := c.ActivateAt(20, 4)
	if !ok || id != "2" {
		t.Errorf("got %q %v, want 2", id, ok)
	}
	if _, ok := c.ActivateAt(500, 500); ok {
		t.Error("hit outside all plots")
	}
}

func TestView_NoDataState(t *testing.T) {
	// WHAT: A fresh controller exposes the empty scene.
	// WHY: Renderers show "no data" rather than a zero-size map.
	v := New().View()
	if !v.Scene.Empty || v.RowCount != 0 {
		t.Errorf("view: %+v", v)
	}
	if o := v.Overlay(); o.Zoom != DefaultZoom || o.SelectedID != "" {
		t.Errorf("overlay: %+v", o)
	}
}
