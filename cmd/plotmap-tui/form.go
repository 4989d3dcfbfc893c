package main

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hazyhaar/plotmap/mapview"
)

var formLabels = []string{"name", "color", "x", "y", "width", "height"}

var errStyle = editStyle.Foreground(lipgloss.Color("#EF4444"))

// editForm is the legend-side editor for an open draft. Field order
// matches formLabels; names match ValidationError.Field.
type editForm struct {
	id     string
	inputs []textinput.Model
	focus  int
	err    string
}

func newEditForm(d mapview.Draft) *editForm {
	values := []string{d.Name, d.Color, d.X, d.Y, d.Width, d.Height}
	f := &editForm{id: d.ID, inputs: make([]textinput.Model, len(values))}
	for i, v := range values {
		in := textinput.New()
		in.Prompt = ""
		in.CharLimit = 120
		in.Width = legendWidth - 12
		in.SetValue(v)
		f.inputs[i] = in
	}
	f.inputs[0].Focus()
	return f
}

func (f *editForm) draft() mapview.Draft {
	v := func(i int) string { return f.inputs[i].Value() }
	return mapview.Draft{ID: f.id, Name: v(0), Color: v(1), X: v(2), Y: v(3), Width: v(4), Height: v(5)}
}

func (f *editForm) setFocus(i int) tea.Cmd {
	n := len(f.inputs)
	f.focus = (i + n) % n
	for j := range f.inputs {
		f.inputs[j].Blur()
	}
	return f.inputs[f.focus].Focus()
}

// fail shows err under the form and moves to the offending field.
func (f *editForm) fail(err error) tea.Cmd {
	f.err = err.Error()
	var ve *mapview.ValidationError
	if !errors.As(err, &ve) {
		return nil
	}
	f.err = ve.Field + " " + ve.Reason
	for i, l := range formLabels {
		if l == ve.Field {
			return f.setFocus(i)
		}
	}
	return nil
}

func (f *editForm) update(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, keys.Next), msg.Type == tea.KeyDown:
		return f.setFocus(f.focus + 1)
	case key.Matches(msg, keys.Prev), msg.Type == tea.KeyUp:
		return f.setFocus(f.focus - 1)
	}
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

func (f *editForm) view() string {
	var b strings.Builder
	b.WriteString(editStyle.Render("Editing "+f.id) + "\n")
	for i, in := range f.inputs {
		label := formLabels[i]
		if i == f.focus {
			label = activeStyle.Render(label)
		}
		b.WriteString(label + strings.Repeat(" ", 7-len(formLabels[i])) + in.View() + "\n")
	}
	if f.err != "" {
		b.WriteString(errStyle.Render(f.err) + "\n")
	}
	b.WriteString(dimStyle.Render("enter save · esc cancel"))
	return b.String()
}
