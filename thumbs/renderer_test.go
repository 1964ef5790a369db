package thumbs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plotview/plotview/core"
)

func TestRenderChartPlotly(t *testing.T) {
	msg := chartRecord("r1")

	img, err := RenderChart(msg)
	require.NoError(t, err)
	bounds := img.Bounds()
	assert.Equal(t, RenderWidth, bounds.Dx())
	assert.Equal(t, RenderHeight, bounds.Dy())
}

func TestRenderChartVega(t *testing.T) {
	msg := &core.PlotMessage{
		ID:        "v1",
		Timestamp: 1,
		Content: core.VegaJSON(`{
			"data": {"values": [{"t": 0, "v": 1.5}, {"t": 1, "v": 2.5}, {"t": 2, "v": 2.0}]},
			"encoding": {"x": {"field": "t"}, "y": {"field": "v"}}
		}`),
	}

	img, err := RenderChart(msg)
	require.NoError(t, err)
	assert.Equal(t, RenderWidth, img.Bounds().Dx())
}

func TestRenderChartRejectsUnusableSpec(t *testing.T) {
	msg := &core.PlotMessage{
		ID:        "bad",
		Timestamp: 1,
		Content:   core.PlotlyJSON(`{"data": []}`),
	}

	_, err := RenderChart(msg)
	assert.Error(t, err)
}

func TestRenderThroughPipelineEndToEnd(t *testing.T) {
	p := NewPipeline()
	defer p.Close()

	p.Enqueue(chartRecord("e2e"))

	assert.Eventually(t, func() bool { return p.Has("e2e") }, 10*time.Second, 20*time.Millisecond)

	thumb, ok := p.Thumbnail("e2e")
	require.True(t, ok)
	cfg, err := pngConfig(thumb)
	require.NoError(t, err)
	assert.Equal(t, ThumbWidth, cfg.Width)
	assert.Equal(t, ThumbHeight, cfg.Height)
}
