package thumbs

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/plotview/plotview/core"
)

// Series is one x/y trace extracted from a chart specification. The preview
// renderer only needs the numeric shape of the data, not the full grammar of
// either charting library.
type Series struct {
	Name string
	X    []float64
	Y    []float64
}

// ExtractSeries pulls plottable traces out of a chart spec. Supported inputs
// are Plotly figures (data[].x / data[].y) and Vega or Vega-Lite specs
// (data.values rows, fields chosen from the encoding block when present).
func ExtractSeries(content core.PlotContent) ([]Series, error) {
	switch content.Type {
	case core.KindPlotly:
		return plotlySeries(content.Data)
	case core.KindVega:
		return vegaSeries(content.Data)
	default:
		return nil, fmt.Errorf("no chart spec in %s content", content.Type)
	}
}

type plotlyFigure struct {
	Data []struct {
		Name string `json:"name"`
		X    []any  `json:"x"`
		Y    []any  `json:"y"`
	} `json:"data"`
}

func plotlySeries(spec string) ([]Series, error) {
	var fig plotlyFigure
	if err := json.Unmarshal([]byte(spec), &fig); err != nil {
		return nil, fmt.Errorf("malformed plotly spec: %w", err)
	}

	var out []Series
	for i, trace := range fig.Data {
		ys := floats(trace.Y)
		if len(ys) < 2 {
			continue
		}
		xs := floats(trace.X)
		if len(xs) != len(ys) {
			// Categorical or absent x axis: fall back to point index.
			xs = indexRange(len(ys))
		}
		name := trace.Name
		if name == "" {
			name = fmt.Sprintf("trace %d", i)
		}
		out = append(out, Series{Name: name, X: xs, Y: ys})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("plotly spec has no numeric traces")
	}
	return out, nil
}

type vegaLiteSpec struct {
	Data     json.RawMessage `json:"data"`
	Encoding struct {
		X struct {
			Field string `json:"field"`
		} `json:"x"`
		Y struct {
			Field string `json:"field"`
		} `json:"y"`
	} `json:"encoding"`
}

func vegaSeries(spec string) ([]Series, error) {
	var vl vegaLiteSpec
	if err := json.Unmarshal([]byte(spec), &vl); err != nil {
		return nil, fmt.Errorf("malformed vega spec: %w", err)
	}

	rows, err := vegaRows(vl.Data)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("vega spec has too few data rows")
	}

	xField, yField := vl.Encoding.X.Field, vl.Encoding.Y.Field
	if yField == "" {
		xField, yField = guessFields(rows[0])
	}
	if yField == "" {
		return nil, fmt.Errorf("vega spec has no numeric field to plot")
	}

	var xs, ys []float64
	for i, row := range rows {
		y, ok := asFloat(row[yField])
		if !ok {
			continue
		}
		x, ok := asFloat(row[xField])
		if !ok {
			x = float64(i)
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}
	if len(ys) < 2 {
		return nil, fmt.Errorf("vega spec has no numeric field to plot")
	}
	return []Series{{Name: yField, X: xs, Y: ys}}, nil
}

// vegaRows handles both shapes the data block takes: Vega-Lite's inline
// object ({"values": [...]}) and full Vega's array of named datasets.
func vegaRows(data json.RawMessage) ([]map[string]any, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("vega spec has no data block")
	}

	var inline struct {
		Values []map[string]any `json:"values"`
	}
	if err := json.Unmarshal(data, &inline); err == nil && len(inline.Values) > 0 {
		return inline.Values, nil
	}

	var sets []struct {
		Values []map[string]any `json:"values"`
	}
	if err := json.Unmarshal(data, &sets); err == nil {
		for _, set := range sets {
			if len(set.Values) > 0 {
				return set.Values, nil
			}
		}
	}
	return nil, fmt.Errorf("vega spec has no inline data values")
}

// guessFields picks x/y fields from a sample row when the spec carries no
// encoding block: the first two numeric fields in name order.
func guessFields(row map[string]any) (x, y string) {
	var numeric []string
	for k, v := range row {
		if _, ok := asFloat(v); ok {
			numeric = append(numeric, k)
		}
	}
	sort.Strings(numeric)
	switch len(numeric) {
	case 0:
		return "", ""
	case 1:
		return "", numeric[0]
	default:
		return numeric[0], numeric[1]
	}
}

func floats(vals []any) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		f, ok := asFloat(v)
		if !ok {
			return nil
		}
		out = append(out, f)
	}
	return out
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func indexRange(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}
