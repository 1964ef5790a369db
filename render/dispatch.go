// Package render maps a plot record's payload kind to a display-ready
// artifact for the presentation shell. It never mutates records and holds no
// state of its own.
package render

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"

	"github.com/plotview/plotview/core"
)

// Engine names the charting library a display mounts in the viewport. At most
// one engine instance occupies the viewport at any time; the page purges the
// previous instance before mounting the next.
const (
	EnginePlotly = "plotly"
	EngineVega   = "vega"
)

// Display is everything the shell needs to show one record. Exactly one of
// ImageSrc, Spec, HTML or Fallback is populated, depending on the payload.
type Display struct {
	Kind     core.PlotKind `json:"kind"`
	ImageSrc string        `json:"imageSrc,omitempty"` // data URI for image payloads
	Engine   string        `json:"engine,omitempty"`   // charting engine to mount
	Spec     string        `json:"spec,omitempty"`     // compacted spec JSON for the engine
	HTML     template.HTML `json:"html,omitempty"`     // trusted markup passthrough
	Fallback string        `json:"fallback,omitempty"` // pretty-printed raw payload
}

// Dispatch selects the rendering strategy for a record. Malformed payloads
// degrade to a pretty-printed fallback; they never fail the view.
func Dispatch(msg *core.PlotMessage) Display {
	content := msg.Content
	switch content.Type {
	case core.KindPNG:
		return Display{Kind: content.Type, ImageSrc: RasterDataURI(content.Data)}
	case core.KindSVG:
		return Display{Kind: content.Type, ImageSrc: VectorDataURI(content.Data)}
	case core.KindPlotly:
		return chartDisplay(content.Type, EnginePlotly, content.Data)
	case core.KindVega:
		return chartDisplay(content.Type, EngineVega, content.Data)
	case core.KindHTML:
		// Trusted by contract: single producer on localhost, no sanitization.
		return Display{Kind: content.Type, HTML: template.HTML(content.Data)}
	default:
		return Display{Kind: content.Type, Fallback: Pretty(content.Data)}
	}
}

// RasterDataURI builds an image source from already-base64 PNG payload bytes.
func RasterDataURI(b64 string) string {
	return "data:image/png;base64," + b64
}

// VectorDataURI builds an image source from SVG markup. The markup is encoded
// through its UTF-8 byte representation, not its characters, so non-ASCII
// text in labels survives the transform intact.
func VectorDataURI(markup string) string {
	return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(markup))
}

// DecodeVectorDataURI is the inverse of VectorDataURI.
func DecodeVectorDataURI(uri string) (string, error) {
	const prefix = "data:image/svg+xml;base64,"
	if !strings.HasPrefix(uri, prefix) {
		return "", fmt.Errorf("not an svg data uri")
	}
	raw, err := base64.StdEncoding.DecodeString(uri[len(prefix):])
	if err != nil {
		return "", fmt.Errorf("decoding svg data uri: %w", err)
	}
	return string(raw), nil
}

// chartDisplay validates and compacts a chart spec for the engine. A spec
// that is not valid JSON falls back to the raw structured display.
func chartDisplay(kind core.PlotKind, engine, spec string) Display {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(spec)); err != nil {
		core.Warn("malformed %s spec, showing raw fallback: %v", engine, err)
		return Display{Kind: kind, Fallback: Pretty(spec)}
	}
	return Display{Kind: kind, Engine: engine, Spec: buf.String()}
}

// Pretty returns raw pretty-printed as indented JSON when possible, otherwise
// unchanged.
func Pretty(raw string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(raw), "", "  "); err != nil {
		return raw
	}
	return buf.String()
}
