package scene

import (
	"bufio"
	"fmt"
	"html"
	"io"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/plotmap/mapview/internal/fragment"
)

// NoDataMessage is shown in place of an empty scene.
const NoDataMessage = "No plot data available"

// Overlay carries the interaction state drawn on top of a scene.
type Overlay struct {
	SelectedID string
	Zoom       float64
}

var namePolicy = bluemonday.StrictPolicy()

// WriteSVG writes the composed map. Zoom scales the content group from the
// top-left corner; the selected shape carries the plot-highlight class.
func WriteSVG(w io.Writer, s Scene, o Overlay) error {
	bw := bufio.NewWriter(w)
	if s.Empty {
		fmt.Fprintf(bw, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 400 60"><text class="error-message" x="10" y="35">%s</text></svg>`, NoDataMessage)
		return bw.Flush()
	}
	z := o.Zoom
	if z <= 0 {
		z = 1
	}
	vw := fragment.FormatNumber(s.Viewport.W * z)
	vh := fragment.FormatNumber(s.Viewport.H * z)
	fmt.Fprintf(bw, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %s %s" width="%s" height="%s" preserveAspectRatio="xMidYMid meet">`, vw, vh, vw, vh)
	fmt.Fprintf(bw, "\n"+`<g id="mapContent" transform="scale(%s)">`, fragment.FormatNumber(z))
	for _, sh := range s.Shapes {
		class := "plot-rect"
		if sh.ID == o.SelectedID {
			class += " plot-highlight"
		}
		id := html.EscapeString(sh.ID)
		fmt.Fprintf(bw, "\n"+`<rect id="%s" x="%s" y="%s" width="%s" height="%s" fill="%s" stroke="#000" stroke-width="1" class="%s" data-plot-id="%s" data-plot-name="%s"></rect>`,
			id,
			fragment.FormatNumber(sh.X), fragment.FormatNumber(sh.Y),
			fragment.FormatNumber(sh.W), fragment.FormatNumber(sh.H),
			html.EscapeString(sh.Fill), class, id, namePolicy.Sanitize(sh.Name))
	}
	bw.WriteString("\n</g>\n</svg>\n")
	return bw.Flush()
}
