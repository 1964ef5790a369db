package client

import (
	"github.com/plotview/plotview/core"
	"github.com/plotview/plotview/thumbs"
)

// Viewer wires the connection manager, history store and thumbnail pipeline
// into one session. Inbound records flow: transport -> parse -> Admit; a
// non-duplicate admission of an expensive kind also queues a thumbnail job.
type Viewer struct {
	Conn    *ConnManager
	History *HistoryStore
	Thumbs  *thumbs.Pipeline
}

// NewViewer creates a viewer session against the given server origin.
func NewViewer(origin, token string) *Viewer {
	v := &Viewer{
		Conn:    NewConnManager(origin, token),
		History: NewHistoryStore(),
		Thumbs:  thumbs.NewPipeline(),
	}
	v.History.OnAppend(func(msg *core.PlotMessage) {
		if msg.Content.Type.Expensive() {
			v.Thumbs.Enqueue(msg)
		}
	})
	v.Conn.OnRecord(func(msg *core.PlotMessage) {
		v.History.Admit(msg)
	})
	return v
}

// Start opens the transport.
func (v *Viewer) Start() {
	v.Conn.Connect()
}

// Close tears the session down: the transport is closed and pending thumbnail
// jobs are abandoned. History and cache contents are simply dropped with the
// process; nothing persists beyond the session.
func (v *Viewer) Close() {
	v.Conn.Close()
	v.Thumbs.Close()
}
