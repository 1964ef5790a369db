// Package core defines the wire model shared by the session server, the
// viewer client and the producer API: plot messages, their payload kinds and
// the JSON codec for the push protocol.
package core

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PlotKind identifies the encoding of a plot payload. The set is closed:
// every consumer switches exhaustively over it.
type PlotKind string

const (
	KindPNG    PlotKind = "Png"    // base64-encoded PNG bytes
	KindSVG    PlotKind = "Svg"    // raw SVG markup (may contain non-ASCII text)
	KindPlotly PlotKind = "Plotly" // Plotly figure JSON (traces + layout)
	KindVega   PlotKind = "Vega"   // Vega / Vega-Lite spec JSON
	KindHTML   PlotKind = "Html"   // trusted HTML fragment
)

// Valid reports whether k is one of the five supported payload kinds.
func (k PlotKind) Valid() bool {
	switch k {
	case KindPNG, KindSVG, KindPlotly, KindVega, KindHTML:
		return true
	}
	return false
}

// Expensive reports whether rendering k requires a chart engine. Expensive
// kinds get background-generated thumbnails instead of being drawn inline in
// the history strip.
func (k PlotKind) Expensive() bool {
	return k == KindPlotly || k == KindVega
}

// PlotContent is the tagged payload union. All variants carry a single string
// whose interpretation depends on Type, so the union collapses to a kind tag
// plus data. On the wire it is adjacently tagged: {"type": "...", "data": "..."}.
type PlotContent struct {
	Type PlotKind `json:"type"`
	Data string   `json:"data"`
}

// PNG wraps raw PNG bytes as plot content, base64-encoding them for the wire.
func PNG(data []byte) PlotContent {
	return PlotContent{Type: KindPNG, Data: base64.StdEncoding.EncodeToString(data)}
}

// SVG wraps SVG markup as plot content.
func SVG(markup string) PlotContent {
	return PlotContent{Type: KindSVG, Data: markup}
}

// PlotlyJSON wraps a Plotly figure spec as plot content.
func PlotlyJSON(spec string) PlotContent {
	return PlotContent{Type: KindPlotly, Data: spec}
}

// VegaJSON wraps a Vega or Vega-Lite spec as plot content.
func VegaJSON(spec string) PlotContent {
	return PlotContent{Type: KindVega, Data: spec}
}

// HTML wraps a trusted HTML fragment as plot content.
func HTML(fragment string) PlotContent {
	return PlotContent{Type: KindHTML, Data: fragment}
}

// PlotMessage is one immutable unit of pushed visualization content. Records
// are created once (by the producer or the publish endpoint) and never mutated
// afterwards; ids are globally unique within a session.
//
// Timestamp is milliseconds since the Unix epoch. Arrival order, not timestamp
// order, determines history order; the timestamp is informational only.
type PlotMessage struct {
	ID        string      `json:"id"`
	Timestamp int64       `json:"timestamp"`
	Content   PlotContent `json:"content"`
}

// NewPlotMessage stamps content with a fresh id and the current time.
func NewPlotMessage(content PlotContent) *PlotMessage {
	return &PlotMessage{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UnixMilli(),
		Content:   content,
	}
}

// CapturedAt converts the wire timestamp back into a time.Time.
func (m *PlotMessage) CapturedAt() time.Time {
	return time.UnixMilli(m.Timestamp)
}

// ParseMessage decodes a single wire message. It rejects messages with a
// missing id or an unrecognized payload kind so that the stream loop can drop
// them without ever admitting a half-formed record.
func ParseMessage(raw []byte) (*PlotMessage, error) {
	var msg PlotMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("malformed plot message: %w", err)
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("plot message missing id")
	}
	if !msg.Content.Type.Valid() {
		return nil, fmt.Errorf("unknown plot content type %q", msg.Content.Type)
	}
	return &msg, nil
}

// Encode renders the message in wire form.
func (m *PlotMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}
