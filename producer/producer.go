// Package producer is the push API analysis code uses to send plots to a
// running session server. It speaks the publish endpoint over HTTP; the
// server assigns ids and timestamps and fans records out to viewers.
package producer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/plotview/plotview/config"
	"github.com/plotview/plotview/core"
)

// Producer publishes plot content to one session server.
type Producer struct {
	BaseURL string // e.g. "http://127.0.0.1:7878"
	Token   string
	Client  *http.Client
}

// New creates a producer for an explicitly addressed server.
func New(baseURL, token string) *Producer {
	return &Producer{
		BaseURL: baseURL,
		Token:   token,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Connect resolves a running server through the state file written by
// `plotview serve` and verifies it is healthy.
func Connect() (*Producer, error) {
	state, err := config.ReadState()
	if err != nil {
		return nil, fmt.Errorf("no running server found: %w", err)
	}
	p := New("http://"+state.Addr, state.Token)
	if err := p.Ping(); err != nil {
		return nil, fmt.Errorf("server at %s not responding: %w", state.Addr, err)
	}
	return p, nil
}

// Ping checks the server's health endpoint.
func (p *Producer) Ping() error {
	resp, err := p.Client.Get(p.BaseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %s", resp.Status)
	}
	return nil
}

// SendPNG publishes raw PNG bytes. Returns the id the server assigned.
func (p *Producer) SendPNG(data []byte) (string, error) {
	return p.Show(core.PNG(data))
}

// SendSVG publishes SVG markup.
func (p *Producer) SendSVG(markup string) (string, error) {
	return p.Show(core.SVG(markup))
}

// SendPlotlyJSON publishes a Plotly figure spec.
func (p *Producer) SendPlotlyJSON(spec string) (string, error) {
	return p.Show(core.PlotlyJSON(spec))
}

// SendVegaJSON publishes a Vega or Vega-Lite spec.
func (p *Producer) SendVegaJSON(spec string) (string, error) {
	return p.Show(core.VegaJSON(spec))
}

// SendHTML publishes a trusted HTML fragment.
func (p *Producer) SendHTML(fragment string) (string, error) {
	return p.Show(core.HTML(fragment))
}

// Show publishes one piece of encoded plot content and returns its id.
func (p *Producer) Show(content core.PlotContent) (string, error) {
	body, err := json.Marshal(struct {
		Token   string           `json:"token,omitempty"`
		Content core.PlotContent `json:"content"`
	}{Token: p.Token, Content: content})
	if err != nil {
		return "", err
	}

	resp, err := p.Client.Post(p.BaseURL+"/api/publish", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("publish failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("publish rejected: %s", resp.Status)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("malformed publish response: %w", err)
	}
	return out.ID, nil
}

// Capture runs fn with a scoped capture handle. The handle is closed on every
// exit path, normal return, error or panic, so no producer-side plotting
// state outlives the scope.
func (p *Producer) Capture(fn func(*Capture) error) error {
	c := &Capture{producer: p}
	defer c.close()
	return fn(c)
}

// Capture is the scoped handle passed to Producer.Capture. Pushes through a
// closed capture fail rather than leaking past the scope.
type Capture struct {
	producer *Producer
	ids      []string
	closed   bool
}

// Push publishes content within the capture scope and records its id.
func (c *Capture) Push(content core.PlotContent) (string, error) {
	if c.closed {
		return "", fmt.Errorf("capture scope already closed")
	}
	id, err := c.producer.Show(content)
	if err != nil {
		return "", err
	}
	c.ids = append(c.ids, id)
	return id, nil
}

// IDs returns the ids of everything pushed within the scope, in push order.
func (c *Capture) IDs() []string {
	out := make([]string, len(c.ids))
	copy(out, c.ids)
	return out
}

func (c *Capture) close() {
	c.closed = true
}
