package client

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/plotview/plotview/core"
)

// ConnState is the lifecycle state of the viewer's transport.
type ConnState int

const (
	StateIdle ConnState = iota
	StateConnecting
	StateOpen
	StateClosed
	StateError
)

// String returns the string representation of a connection state
func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// ConnDiagnostic is the single user-facing message for transport failures.
// The manager deliberately does not distinguish causes beyond "connection
// failed, possibly bad credential".
const ConnDiagnostic = "connection failed: server may be down or the token may be invalid"

// WSEndpoint derives the websocket address from the session server's origin:
// the scheme upgrades to the websocket variant matching the origin's own
// (http to ws, https to wss), the path is the fixed /ws, and the token rides
// as a query parameter when present.
func WSEndpoint(origin, token string) (string, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("invalid origin %q: %w", origin, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid origin scheme %q", u.Scheme)
	}
	u.Path = "/ws"
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// ConnManager owns the transport lifecycle. Transitions:
//
//	Connect        -> Connecting (any prior transport closed first)
//	dial ok        -> Open
//	dial failed    -> Error (fixed diagnostic)
//	read error     -> Closed
//	Close          -> Closed (teardown, releases the connection)
//
// Reconnection is manual only: Reconnect re-invokes Connect. There is no
// automatic retry, matching the interactive dev-tool contract.
type ConnManager struct {
	origin string
	token  string
	dialer *websocket.Dialer

	mu     sync.Mutex
	state  ConnState
	errMsg string
	conn   *websocket.Conn
	gen    int // bumped on every Connect/Close; stale goroutines see it and exit

	onRecord func(*core.PlotMessage)
	onState  func(ConnState, string)
}

// NewConnManager creates a manager for the given server origin
// (e.g. "http://127.0.0.1:7878"). The token may be empty.
func NewConnManager(origin, token string) *ConnManager {
	return &ConnManager{
		origin: origin,
		token:  token,
		state:  StateIdle,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// OnRecord registers the callback invoked for every successfully parsed
// inbound record. Malformed messages are logged and skipped; they never reach
// the callback and never affect connection state.
func (c *ConnManager) OnRecord(fn func(*core.PlotMessage)) {
	c.mu.Lock()
	c.onRecord = fn
	c.mu.Unlock()
}

// OnStateChange registers the callback invoked after every state transition.
func (c *ConnManager) OnStateChange(fn func(ConnState, string)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

// State returns the current connection state and diagnostic message, which is
// empty unless the state is StateError.
func (c *ConnManager) State() (ConnState, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.errMsg
}

func (c *ConnManager) setState(gen int, state ConnState, errMsg string) {
	c.mu.Lock()
	if gen >= 0 && gen != c.gen {
		// A newer Connect/Close superseded the goroutine reporting this.
		c.mu.Unlock()
		return
	}
	c.state = state
	c.errMsg = errMsg
	fn := c.onState
	c.mu.Unlock()
	if fn != nil {
		fn(state, errMsg)
	}
}

// Connect closes any existing transport and dials a fresh one. It returns as
// soon as the state is Connecting; the dial and the read loop run in the
// background and report through OnStateChange.
func (c *ConnManager) Connect() {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	c.setState(gen, StateConnecting, "")

	endpoint, err := WSEndpoint(c.origin, c.token)
	if err != nil {
		core.Error("cannot derive websocket endpoint: %v", err)
		c.setState(gen, StateError, ConnDiagnostic)
		return
	}

	go c.dialAndRead(gen, endpoint)
}

// Reconnect re-invokes Connect. Exposed separately so the presentation layer
// and its keyboard shortcut have an explicitly named action to bind.
func (c *ConnManager) Reconnect() {
	c.Connect()
}

func (c *ConnManager) dialAndRead(gen int, endpoint string) {
	conn, _, err := c.dialer.Dial(endpoint, nil)
	if err != nil {
		core.Warn("websocket dial failed: %v", err)
		c.setState(gen, StateError, ConnDiagnostic)
		return
	}

	c.mu.Lock()
	if gen != c.gen {
		// Superseded while dialing; release the unwanted transport.
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.mu.Unlock()

	c.setState(gen, StateOpen, "")
	core.Info("connected to %s", c.origin)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			stale := gen != c.gen
			if !stale {
				c.conn = nil
			}
			c.mu.Unlock()
			if !stale {
				core.Info("connection closed: %v", err)
				c.setState(gen, StateClosed, "")
			}
			return
		}

		msg, err := core.ParseMessage(raw)
		if err != nil {
			// Non-fatal: drop the message, keep the stream alive.
			core.Warn("dropping inbound message: %v", err)
			continue
		}

		c.mu.Lock()
		fn := c.onRecord
		c.mu.Unlock()
		if fn != nil {
			fn(msg)
		}
	}
}

// Close tears down the transport. Called on session teardown so a live
// connection is never leaked.
func (c *ConnManager) Close() {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	c.setState(gen, StateClosed, "")
}
