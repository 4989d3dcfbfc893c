package fragment

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Rect is the editable description of a plot shape.
type Rect struct {
	ID     string
	Fill   string
	X      float64
	Y      float64
	Width  float64
	Height float64
}

const template = `<svg xmlns="http://www.w3.org/2000/svg" id="Layer_1" data-name="Layer 1" viewBox="%s"><defs><style>.%s{fill:%s;}</style></defs><rect class="%s" x="%s" y="%s" width="%s" height="%s"/></svg>`

// Render produces the fixed single-rect fragment for r. The caller must
// have validated r.Fill with ValidColor; an empty fill renders DefaultFill.
func Render(r Rect) string {
	class := ClassName(r.ID)
	fill := r.Fill
	if fill == "" {
		fill = DefaultFill
	}
	return fmt.Sprintf(template, DefaultViewBox, class, fill, class,
		FormatNumber(r.X), FormatNumber(r.Y), FormatNumber(r.Width), FormatNumber(r.Height))
}

// ClassName returns the CSS class used for a plot id. Characters outside
// [A-Za-z0-9_-] become underscores.
func ClassName(id string) string {
	var b strings.Builder
	b.WriteString("cls-")
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// FormatNumber prints f in the shortest form that round-trips.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

var validColor = regexp.MustCompile(`^(?:#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})|rgb\(\s*\d{1,3}%?\s*,\s*\d{1,3}%?\s*,\s*\d{1,3}%?\s*\)|[a-zA-Z]+)$`)

// ValidColor reports whether s is a hex, rgb() or keyword colour.
func ValidColor(s string) bool {
	return validColor.MatchString(s)
}
