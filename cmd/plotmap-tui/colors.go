package main

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var rgbFunc = regexp.MustCompile(`^rgb\(\s*(\d{1,3})(%?)\s*,\s*(\d{1,3})(%?)\s*,\s*(\d{1,3})(%?)\s*\)$`)

var namedColors = map[string]string{
	"black": "#000000", "white": "#ffffff", "gray": "#808080", "grey": "#808080",
	"silver": "#c0c0c0", "red": "#ff0000", "maroon": "#800000", "orange": "#ffa500",
	"yellow": "#ffff00", "olive": "#808000", "lime": "#00ff00", "green": "#008000",
	"teal": "#008080", "aqua": "#00ffff", "cyan": "#00ffff", "blue": "#0000ff",
	"navy": "#000080", "purple": "#800080", "fuchsia": "#ff00ff", "magenta": "#ff00ff",
	"pink": "#ffc0cb", "brown": "#a52a2a", "gold": "#ffd700", "beige": "#f5f5dc",
	"lightgray": "#d3d3d3", "lightgreen": "#90ee90", "lightblue": "#add8e6",
	"darkgreen": "#006400", "darkred": "#8b0000", "khaki": "#f0e68c", "tan": "#d2b48c",
}

// termColor maps a CSS fill to a lipgloss colour. Unknown forms fall back
// to the default plot grey.
func termColor(fill string) lipgloss.Color {
	f := strings.ToLower(strings.TrimSpace(fill))
	switch {
	case strings.HasPrefix(f, "#") && len(f) == 7:
		return lipgloss.Color(f)
	case strings.HasPrefix(f, "#") && len(f) == 4:
		return lipgloss.Color("#" + strings.Repeat(f[1:2], 2) + strings.Repeat(f[2:3], 2) + strings.Repeat(f[3:4], 2))
	}
	if hex, ok := namedColors[f]; ok {
		return lipgloss.Color(hex)
	}
	if m := rgbFunc.FindStringSubmatch(f); m != nil {
		var c [3]int
		for i := range c {
			n, _ := strconv.Atoi(m[1+2*i])
			if m[2+2*i] == "%" {
				n = n * 255 / 100
			}
			c[i] = min(n, 255)
		}
		return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
	}
	return lipgloss.Color("#cccccc")
}
