// Package fragment extracts rectangle geometry and fill colour from one
// plot's SVG snippet, and regenerates snippets from edited geometry.
//
// Parsing is headless: the markup is tokenised with golang.org/x/net/html,
// no DOM is built. The first <rect> is the plot shape; an enclosing <svg>
// is optional and only contributes its viewBox.
package fragment

import (
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

const (
	// DefaultViewBox is used when the fragment has no svg viewBox.
	DefaultViewBox = "0 0 496.34 94.98"
	// DefaultSize is the width and height used when absent or unparsable.
	DefaultSize = 94.98
	// DefaultFill is the colour used when no fill can be resolved.
	DefaultFill = "#cccccc"
	// MaxExtent bounds every edge coordinate. Scaled and padded values
	// derived from it stay finite at any zoom.
	MaxExtent = 1e9
)

var (
	// ErrNoShape is returned by ParseStrict when the fragment has no <rect>.
	ErrNoShape = errors.New("fragment: no rect element")
	// ErrOutOfRange is returned by ParseStrict when an edge lies beyond MaxExtent.
	ErrOutOfRange = errors.New("fragment: geometry out of range")
)

// Parsed is the geometry and colour of one fragment.
type Parsed struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	FillColor string  `json:"fill_color"`
	ViewBox   string  `json:"view_box"`
}

// Default returns the value substituted for an unusable fragment.
func Default() Parsed {
	return Parsed{
		Width:     DefaultSize,
		Height:    DefaultSize,
		FillColor: DefaultFill,
		ViewBox:   DefaultViewBox,
	}
}

// Right is the x coordinate of the right edge.
func (p Parsed) Right() float64 { return p.X + p.Width }

// Bottom is the y coordinate of the bottom edge.
func (p Parsed) Bottom() float64 { return p.Y + p.Height }

// InRange reports whether every edge of the rectangle at (x, y) with the
// given size is finite and within MaxExtent.
func InRange(x, y, width, height float64) bool {
	for _, v := range [...]float64{x, y, x + width, y + height} {
		if math.IsNaN(v) || math.Abs(v) > MaxExtent {
			return false
		}
	}
	return true
}

// Parse never fails: any structural problem yields Default().
func Parse(src string) Parsed {
	p, err := ParseStrict(src)
	if err != nil {
		return Default()
	}
	return p
}

// ParseStrict extracts the same values as Parse but reports structural
// failures. Per-attribute problems (missing or non-numeric geometry) are
// not failures; they fall back to the per-field defaults.
func ParseStrict(src string) (Parsed, error) {
	p := Default()
	var (
		rect    map[string]string
		seenSVG bool
		inStyle bool
		styles  []string
	)

	z := html.NewTokenizer(strings.NewReader(strings.TrimSpace(src)))
loop:
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return Default(), fmt.Errorf("fragment: tokenize: %w", err)
			}
			break loop
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch string(name) {
			case "svg":
				attrs := readAttrs(z, hasAttr)
				if !seenSVG {
					seenSVG = true
					if vb := strings.TrimSpace(attrs["viewbox"]); vb != "" {
						p.ViewBox = vb
					}
				}
			case "rect":
				attrs := readAttrs(z, hasAttr)
				if rect == nil {
					rect = attrs
				}
			case "style":
				inStyle = tt == html.StartTagToken
			}
		case html.TextToken:
			if inStyle {
				styles = append(styles, string(z.Text()))
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == "style" {
				inStyle = false
			}
		}
	}

	if rect == nil {
		return Default(), ErrNoShape
	}

	p.X = numberOr(rect["x"], 0)
	p.Y = numberOr(rect["y"], 0)
	p.Width = numberOr(rect["width"], DefaultSize)
	p.Height = numberOr(rect["height"], DefaultSize)
	if !InRange(p.X, p.Y, p.Width, p.Height) {
		return Default(), fmt.Errorf("%w: x=%g y=%g width=%g height=%g", ErrOutOfRange, p.X, p.Y, p.Width, p.Height)
	}
	p.FillColor = resolveFill(rect, styles)
	return p, nil
}

func readAttrs(z *html.Tokenizer, more bool) map[string]string {
	attrs := make(map[string]string)
	for more {
		var k, v []byte
		k, v, more = z.TagAttr()
		key := string(k)
		if _, dup := attrs[key]; !dup {
			attrs[key] = string(v)
		}
	}
	return attrs
}

// colorPattern matches the colour forms accepted from style rules.
const colorPattern = `(#[0-9a-fA-F]{3,6}|rgb\([^)]+\)|[a-zA-Z]+)`

var genericRule = regexp.MustCompile(`\.[\w-]+\s*\{[^}]*?fill\s*:\s*` + colorPattern)

// resolveFill applies the cascade: fill attribute, class rule, first
// generic class rule with a fill, DefaultFill.
func resolveFill(rect map[string]string, styles []string) string {
	if f := rect["fill"]; strings.TrimSpace(f) != "" {
		return f
	}
	css := strings.Join(styles, "\n")
	if css == "" {
		return DefaultFill
	}
	for _, class := range strings.Fields(rect["class"]) {
		re, err := classRule(class)
		if err != nil {
			continue
		}
		if m := re.FindStringSubmatch(css); m != nil {
			return m[1]
		}
	}
	if m := genericRule.FindStringSubmatch(css); m != nil {
		return m[1]
	}
	return DefaultFill
}

// classRule matches ".<class> {... fill: <color>". The class may be
// followed by whitespace or a comma (selector lists) but not by more name
// characters, so ".cls-1" does not match ".cls-10".
func classRule(class string) (*regexp.Regexp, error) {
	return regexp.Compile(`\.` + regexp.QuoteMeta(class) + `(?:[\s,][^{}]*)?\{[^}]*?fill\s*:\s*` + colorPattern)
}

var numberPrefix = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`)

// numberOr parses the leading numeric prefix of s ("10px" is 10) and
// returns def when there is none or the value is not finite.
func numberOr(s string, def float64) float64 {
	m := numberPrefix.FindString(strings.TrimSpace(s))
	if m == "" {
		return def
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}
