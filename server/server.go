// Package server implements the plot session server: it accepts published
// plots over HTTP, keeps a bounded in-memory history, and fans records out to
// every connected viewer over websockets. A fresh connection always receives
// the full history first (replay), which is what makes viewer-side admission
// idempotent by id.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/plotview/plotview/core"
)

// DefaultHistoryLimit bounds the in-memory history; the oldest records are
// dropped past it.
const DefaultHistoryLimit = 200

// Options configures a Server.
type Options struct {
	// Token, when non-empty, must accompany every websocket connect and
	// publish call as a query parameter / body field.
	Token string
	// HistoryLimit caps retained records; 0 means DefaultHistoryLimit.
	HistoryLimit int
}

// Server owns the plot history and the set of connected viewers.
type Server struct {
	token string
	limit int

	mu      sync.RWMutex
	history []*core.PlotMessage
	clients map[*viewerConn]struct{}
	closed  bool

	upgrader websocket.Upgrader
}

// viewerConn is one connected viewer. Writes go through a buffered channel so
// a single writer goroutine owns the connection, as gorilla requires.
type viewerConn struct {
	conn *websocket.Conn
	send chan *core.PlotMessage
	id   string
}

// New creates a server with the given options.
func New(opts Options) *Server {
	limit := opts.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Server{
		token:   opts.Token,
		limit:   limit,
		clients: make(map[*viewerConn]struct{}),
		upgrader: websocket.Upgrader{
			// Viewers may be served from a different local port than the
			// session server; same trust model as the token check.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the server's HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("POST /api/publish", s.handlePublish)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, "ok")
}

// tokenValid implements the credential check: no configured token admits
// everything; a configured token requires an exact match.
func (s *Server) tokenValid(provided string) bool {
	return s.token == "" || s.token == provided
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.tokenValid(r.URL.Query().Get("token")) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		core.Warn("websocket upgrade failed: %v", err)
		return
	}

	c := &viewerConn{
		conn: conn,
		send: make(chan *core.PlotMessage, 64),
		id:   fmt.Sprintf("conn_%s", conn.RemoteAddr().String()),
	}

	// Snapshot history and register atomically so a record published while
	// we replay is either in the snapshot or in the channel, never lost.
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	replay := make([]*core.PlotMessage, len(s.history))
	copy(replay, s.history)
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	core.Info("viewer connected: %s (replaying %d records)", c.id, len(replay))

	go c.writeLoop(replay)
	c.readLoop(s)
}

// writeLoop replays history, then streams live records until the send channel
// closes.
func (c *viewerConn) writeLoop(replay []*core.PlotMessage) {
	for _, msg := range replay {
		if !c.write(msg) {
			return
		}
	}
	for msg := range c.send {
		if !c.write(msg) {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (c *viewerConn) write(msg *core.PlotMessage) bool {
	raw, err := msg.Encode()
	if err != nil {
		core.Warn("cannot serialize record %s: %v", msg.ID, err)
		return true
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		core.Debug("viewer %s write failed: %v", c.id, err)
		return false
	}
	return true
}

// readLoop consumes (and discards) inbound frames purely to detect the close.
func (c *viewerConn) readLoop(s *Server) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
	s.drop(c)
	core.Info("viewer disconnected: %s", c.id)
}

func (s *Server) drop(c *viewerConn) {
	s.mu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
	s.mu.Unlock()
	c.conn.Close()
}

// publishRequest is the body of POST /api/publish.
type publishRequest struct {
	Token   string           `json:"token"`
	Content core.PlotContent `json:"content"`
}

type publishResponse struct {
	ID string `json:"id"`
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed publish request", http.StatusBadRequest)
		return
	}
	if !s.tokenValid(req.Token) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	if !req.Content.Type.Valid() {
		http.Error(w, fmt.Sprintf("unknown content type %q", req.Content.Type), http.StatusBadRequest)
		return
	}

	msg := core.NewPlotMessage(req.Content)
	s.Publish(msg)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(publishResponse{ID: msg.ID})
}

// Publish appends a record to history and broadcasts it to every connected
// viewer. Slow viewers with a full send buffer miss the live update; they
// will recover it via replay on their next reconnect.
func (s *Server) Publish(msg *core.PlotMessage) {
	s.mu.Lock()
	s.history = append(s.history, msg)
	if overflow := len(s.history) - s.limit; overflow > 0 {
		s.history = s.history[overflow:]
	}
	for c := range s.clients {
		select {
		case c.send <- msg:
		default:
			core.Debug("viewer %s lagging, dropping live update %s", c.id, msg.ID)
		}
	}
	s.mu.Unlock()
}

// History returns the retained records in publish order.
func (s *Server) History() []*core.PlotMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*core.PlotMessage, len(s.history))
	copy(out, s.history)
	return out
}

// Close disconnects all viewers and rejects future ones.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	conns := make([]*viewerConn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
		close(c.send)
	}
	s.clients = make(map[*viewerConn]struct{})
	s.mu.Unlock()

	for _, c := range conns {
		c.conn.Close()
	}
}
