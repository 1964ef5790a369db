package thumbs

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/plotview/plotview/core"
)

// Preview palette, one color per series, cycled.
var seriesColors = []drawing.Color{
	{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
	{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
	{R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
	{R: 0x94, G: 0x67, B: 0xbd, A: 0xff},
}

// RenderChart renders a chart record offscreen at full resolution in a
// non-interactive mode: the spec's traces are extracted and drawn as plain
// line series. The result approximates what the engine would draw in the
// viewport, which is all a strip-sized preview needs.
func RenderChart(msg *core.PlotMessage) (image.Image, error) {
	series, err := ExtractSeries(msg.Content)
	if err != nil {
		return nil, err
	}

	ch := chart.Chart{
		Width:  RenderWidth,
		Height: RenderHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 20, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{Style: chart.Hidden()},
		YAxis: chart.YAxis{Style: chart.Hidden()},
	}
	for i, s := range series {
		color := seriesColors[i%len(seriesColors)]
		ch.Series = append(ch.Series, chart.ContinuousSeries{
			Name:    s.Name,
			XValues: s.X,
			YValues: s.Y,
			Style: chart.Style{
				StrokeColor: color,
				StrokeWidth: 2.5,
			},
		})
	}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render: %w", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("decoding rendered chart: %w", err)
	}
	return img, nil
}
