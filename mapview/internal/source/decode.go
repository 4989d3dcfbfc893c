package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/hazyhaar/plotmap/mapview/internal/plot"
)

// Column names recognised in the header row of a values payload.
const (
	ColID       = "plot_id"
	ColName     = "plot_name"
	ColFragment = "svg_code"
)

// Decode accepts either a JSON array of {plot_id, plot_name, svg_code}
// objects or a sheet export {"values": [[header...], [row...], ...]}.
// Numeric ids are stringified. An empty row set is malformed.
func Decode(body []byte) ([]plot.Plot, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformed)
	}
	var (
		plots []plot.Plot
		err   error
	)
	switch body[0] {
	case '[':
		plots, err = decodeRows(body)
	case '{':
		plots, err = decodeValues(body)
	default:
		err = fmt.Errorf("%w: unexpected leading %q", ErrMalformed, body[0])
	}
	if err != nil {
		return nil, err
	}
	if len(plots) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrMalformed)
	}
	return plots, nil
}

type rawRow struct {
	ID       any `json:"plot_id"`
	Name     any `json:"plot_name"`
	Fragment any `json:"svg_code"`
}

func decodeRows(body []byte) ([]plot.Plot, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var rows []rawRow
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	out := make([]plot.Plot, 0, len(rows))
	for _, r := range rows {
		out = append(out, plot.Plot{ID: cell(r.ID), Name: cell(r.Name), Fragment: cell(r.Fragment)})
	}
	return out, nil
}

func decodeValues(body []byte) ([]plot.Plot, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload struct {
		Values [][]any `json:"values"`
	}
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(payload.Values) == 0 {
		return nil, fmt.Errorf("%w: no values", ErrMalformed)
	}

	idCol, nameCol, fragCol := 0, 1, 2
	rows := payload.Values
	header := rows[0]
	if hasHeader(header) {
		for i, h := range header {
			switch strings.ToLower(strings.TrimSpace(cell(h))) {
			case ColID:
				idCol = i
			case ColName:
				nameCol = i
			case ColFragment:
				fragCol = i
			}
		}
		rows = rows[1:]
	}

	out := make([]plot.Plot, 0, len(rows))
	for _, r := range rows {
		out = append(out, plot.Plot{ID: at(r, idCol), Name: at(r, nameCol), Fragment: at(r, fragCol)})
	}
	return out, nil
}

func hasHeader(row []any) bool {
	for _, c := range row {
		switch strings.ToLower(strings.TrimSpace(cell(c))) {
		case ColID, ColName, ColFragment:
			return true
		}
	}
	return false
}

func at(row []any, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return cell(row[i])
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
