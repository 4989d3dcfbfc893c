package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hazyhaar/plotmap/mapview"
)

const (
	legendWidth = 30
	panStep     = 4 // cells per arrow press
)

var (
	accentFg  = lipgloss.Color("#7C3AED")
	dimFg     = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#6B7280"}
	borderCol = lipgloss.Color("#243141")

	titleStyle  = lipgloss.NewStyle().Foreground(accentFg).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(dimFg)
	activeStyle = lipgloss.NewStyle().Reverse(true).Bold(true)
	legendStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(borderCol).Padding(0, 1)
	editStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Bold(true)
)

type updateMsg struct{}

type refreshMsg struct{ outcome mapview.Outcome }

// Model renders a mapview.Service as coloured terminal cells. One column
// covers pxPerCol screen pixels; rows cover twice that.
type Model struct {
	svc  *mapview.Service
	ctx  context.Context
	help help.Model

	width  int
	height int

	lastFocus uint64
	status    string
	form      *editForm
}

func NewModel(ctx context.Context, svc *mapview.Service) Model {
	return Model{
		svc:    svc,
		ctx:    ctx,
		help:   help.New(),
		status: "loading",
	}
}

func waitForUpdate(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return updateMsg{}
	}
}

func (m Model) refresh() tea.Cmd {
	return func() tea.Msg {
		return refreshMsg{outcome: m.svc.Refresh(m.ctx)}
	}
}

func (m Model) Init() tea.Cmd {
	return waitForUpdate(m.svc.Updates())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case updateMsg:
		if _, open := m.svc.CurrentDraft(); !open {
			m.form = nil
		}
		m.followFocus()
		return m, waitForUpdate(m.svc.Updates())

	case refreshMsg:
		m.status = "refresh: " + msg.outcome.String()

	case tea.KeyMsg:
		if m.form != nil {
			return m.handleFormKey(msg)
		}
		return m.handleKey(msg)

	case tea.MouseMsg:
		m.handleMouse(msg)
		m.syncForm()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	v := m.svc.View()
	ppc, ppr := m.cellPixels(v)
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.ZoomIn):
		m.svc.ZoomIn()
	case key.Matches(msg, keys.ZoomOut):
		m.svc.ZoomOut()
	case key.Matches(msg, keys.Reset):
		m.svc.ResetZoom()
	case key.Matches(msg, keys.Up):
		m.svc.SetScroll(v.Scroll.X, v.Scroll.Y-panStep*ppr)
	case key.Matches(msg, keys.Down):
		m.svc.SetScroll(v.Scroll.X, v.Scroll.Y+panStep*ppr)
	case key.Matches(msg, keys.Left):
		m.svc.SetScroll(v.Scroll.X-panStep*ppc, v.Scroll.Y)
	case key.Matches(msg, keys.Right):
		m.svc.SetScroll(v.Scroll.X+panStep*ppc, v.Scroll.Y)
	case key.Matches(msg, keys.Next):
		m.cycle(v, 1)
	case key.Matches(msg, keys.Prev):
		m.cycle(v, -1)
	case key.Matches(msg, keys.Activate):
		if v.SelectedID != "" {
			m.svc.Activate(v.SelectedID)
			m.syncForm()
		}
	case key.Matches(msg, keys.Edit):
		m.svc.SetEditMode(!v.EditMode)
		if v.EditMode {
			m.status = "view mode"
		} else {
			m.status = "edit mode"
		}
	case key.Matches(msg, keys.Cancel):
		m.svc.CancelEdit()
	case key.Matches(msg, keys.Refresh):
		m.status = "refreshing"
		return m, m.refresh()
	case key.Matches(msg, keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	m.followFocus()
	return m, nil
}

// handleFormKey routes keys to the open edit form. Letters are text here,
// so only ctrl+c quits.
func (m Model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit
	case key.Matches(msg, keys.Cancel):
		m.svc.CancelEdit()
		m.form = nil
		m.status = "edit cancelled"
	case key.Matches(msg, keys.Activate):
		p, err := m.svc.CommitEdit(m.ctx, m.form.draft())
		if err != nil {
			if _, open := m.svc.CurrentDraft(); !open {
				m.form = nil
				m.status = err.Error()
				return m, nil
			}
			return m, m.form.fail(err)
		}
		m.form = nil
		m.status = "saved " + p.ID
	default:
		return m, m.form.update(msg)
	}
	return m, nil
}

// syncForm opens the editor when activation left a draft open.
func (m *Model) syncForm() {
	if m.form != nil {
		return
	}
	if d, ok := m.svc.CurrentDraft(); ok {
		m.form = newEditForm(d)
	}
}

func (m *Model) handleMouse(msg tea.MouseMsg) {
	mw, mh := m.mapSize()
	cx, cy := msg.X, msg.Y-1 // header row
	if cx < 0 || cx >= mw || cy < 0 || cy >= mh {
		return
	}
	v := m.svc.View()
	ppc, ppr := m.cellPixels(v)
	sx, sy := (float64(cx)+0.5)*ppc, (float64(cy)+0.5)*ppr

	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		m.svc.Wheel(mapview.WheelEvent{DeltaY: -1, CursorX: sx, CursorY: sy})
	case msg.Button == tea.MouseButtonWheelDown:
		m.svc.Wheel(mapview.WheelEvent{DeltaY: 1, CursorX: sx, CursorY: sy})
	case msg.Button == tea.MouseButtonLeft && msg.Action == tea.MouseActionPress:
		if id, ok := m.svc.ActivateAt(sx, sy); ok {
			m.status = "selected " + id
		}
	}
}

// cycle moves the selection through the legend order.
func (m *Model) cycle(v mapview.View, dir int) {
	n := len(v.Entries)
	if n == 0 {
		return
	}
	i := -1
	for j, e := range v.Entries {
		if e.Active {
			i = j
			break
		}
	}
	switch {
	case i < 0 && dir > 0:
		i = 0
	case i < 0:
		i = n - 1
	default:
		i = (i + dir + n) % n
	}
	m.svc.Select(v.Entries[i].ID)
}

// followFocus scrolls the selected plot into view once per focus request.
func (m *Model) followFocus() {
	v := m.svc.View()
	if v.FocusSeq == m.lastFocus {
		return
	}
	m.lastFocus = v.FocusSeq
	if v.SelectedID == "" || m.width == 0 {
		return
	}
	var sel *mapview.Shape
	for i := range v.Scene.Shapes {
		if v.Scene.Shapes[i].ID == v.SelectedID {
			sel = &v.Scene.Shapes[i]
			break
		}
	}
	if sel == nil {
		return
	}
	ppc, ppr := m.cellPixels(v)
	mw, mh := m.mapSize()
	viewW, viewH := float64(mw)*ppc, float64(mh)*ppr
	left, top := sel.X*v.Zoom, sel.Y*v.Zoom
	right, bottom := (sel.X+sel.W)*v.Zoom, (sel.Y+sel.H)*v.Zoom

	x, y := v.Scroll.X, v.Scroll.Y
	if left < x || right > x+viewW {
		x = left - (viewW-(right-left))/2
	}
	if top < y || bottom > y+viewH {
		y = top - (viewH-(bottom-top))/2
	}
	m.svc.SetScroll(x, y)
}

func (m Model) mapSize() (int, int) {
	w := max(10, m.width-legendWidth-1)
	h := max(4, m.height-3)
	return w, h
}

// cellPixels fits the scene width to the map area at 100% zoom.
func (m Model) cellPixels(v mapview.View) (float64, float64) {
	mw, _ := m.mapSize()
	ppc := 1.0
	if !v.Scene.Empty && v.Scene.Viewport.W > 0 {
		ppc = v.Scene.Viewport.W / float64(mw)
	}
	return ppc, 2 * ppc
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	v := m.svc.View()
	mw, mh := m.mapSize()

	header := titleStyle.Render(" plotmap ")
	if v.EditMode {
		header += " " + editStyle.Render("[EDIT]")
	}

	var canvas string
	if v.Scene.Empty {
		canvas = lipgloss.Place(mw, mh, lipgloss.Center, lipgloss.Center, dimStyle.Render(mapview.NoDataMessage))
	} else {
		canvas = m.renderMap(v, mw, mh)
	}
	mapView := lipgloss.NewStyle().Width(mw).Height(mh).Render(canvas)
	legend := legendStyle.Width(legendWidth - 2).Height(mh - 2).Render(m.renderLegend(v))
	body := lipgloss.JoinHorizontal(lipgloss.Top, mapView, " ", legend)

	status := fmt.Sprintf(" Số lô: %d │ Tỷ lệ: %d%% │ %s ", v.RowCount, v.ZoomPercent, m.status)
	footer := lipgloss.JoinVertical(lipgloss.Left, dimStyle.Render(status), m.help.View(keys))

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

// renderMap samples the scene at each cell centre. Runs of equal cells
// share one styled segment.
func (m Model) renderMap(v mapview.View, w, h int) string {
	ppc, ppr := m.cellPixels(v)
	lines := make([]string, h)
	for cy := 0; cy < h; cy++ {
		var b strings.Builder
		runStart, runShape := 0, -1
		flush := func(end int) {
			if end <= runStart {
				return
			}
			b.WriteString(m.cellStyle(v, runShape).Render(strings.Repeat(m.cellGlyph(v, runShape), end-runStart)))
		}
		for cx := 0; cx < w; cx++ {
			x := (v.Scroll.X + (float64(cx)+0.5)*ppc) / v.Zoom
			y := (v.Scroll.Y + (float64(cy)+0.5)*ppr) / v.Zoom
			idx := topmost(v.Scene.Shapes, x, y)
			if cx == 0 {
				runShape = idx
				continue
			}
			if idx != runShape {
				flush(cx)
				runStart, runShape = cx, idx
			}
		}
		flush(w)
		lines[cy] = b.String()
	}
	return strings.Join(lines, "\n")
}

func topmost(shapes []mapview.Shape, x, y float64) int {
	for i := len(shapes) - 1; i >= 0; i-- {
		if shapes[i].Contains(x, y) {
			return i
		}
	}
	return -1
}

func (m Model) cellStyle(v mapview.View, idx int) lipgloss.Style {
	if idx < 0 {
		return lipgloss.NewStyle()
	}
	s := v.Scene.Shapes[idx]
	st := lipgloss.NewStyle().Background(termColor(s.Fill))
	if s.ID == v.SelectedID {
		st = st.Foreground(lipgloss.Color("#000000")).Bold(true)
	}
	return st
}

func (m Model) cellGlyph(v mapview.View, idx int) string {
	if idx >= 0 && v.Scene.Shapes[idx].ID == v.SelectedID {
		return "▒"
	}
	return " "
}

func (m Model) renderLegend(v mapview.View) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Plots"))
	b.WriteString("\n")
	for _, e := range v.Entries {
		swatch := lipgloss.NewStyle().Foreground(termColor(e.ColorHint)).Render("■")
		name := e.Name
		if name == "" {
			name = e.ID
		}
		if r := []rune(name); len(r) > legendWidth-8 {
			name = string(r[:legendWidth-9]) + "…"
		}
		if e.Active {
			name = activeStyle.Render(name)
		}
		b.WriteString(swatch + " " + name + "\n")
	}
	if m.form != nil {
		b.WriteString("\n" + m.form.view() + "\n")
	}
	return b.String()
}
