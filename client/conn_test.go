package client

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plotview/plotview/core"
)

func TestWSEndpoint(t *testing.T) {
	tests := []struct {
		name   string
		origin string
		token  string
		want   string
		fails  bool
	}{
		{"http upgrades to ws", "http://127.0.0.1:7878", "", "ws://127.0.0.1:7878/ws", false},
		{"https upgrades to wss", "https://example.com", "", "wss://example.com/ws", false},
		{"token rides as query param", "http://127.0.0.1:7878", "s3cret", "ws://127.0.0.1:7878/ws?token=s3cret", false},
		{"ws passes through", "ws://127.0.0.1:7878", "", "ws://127.0.0.1:7878/ws", false},
		{"bad scheme rejected", "ftp://nope", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := WSEndpoint(tt.origin, tt.token)
			if tt.fails {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// fakeServer is a minimal websocket endpoint for driving the manager through
// its transitions.
type fakeServer struct {
	*httptest.Server
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns []*websocket.Conn
	queue []*core.PlotMessage // sent to each connection right after upgrade
	token string
}

func newFakeServer(t *testing.T) *fakeServer {
	fs := &fakeServer{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fs.token != "" && r.URL.Query().Get("token") != fs.token {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		conn, err := fs.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		fs.mu.Lock()
		fs.conns = append(fs.conns, conn)
		replay := fs.queue
		fs.mu.Unlock()
		for _, msg := range replay {
			raw, _ := msg.Encode()
			conn.WriteMessage(websocket.TextMessage, raw)
		}
	}))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fakeServer) push(msgs ...*core.PlotMessage) {
	fs.mu.Lock()
	fs.queue = append(fs.queue, msgs...)
	fs.mu.Unlock()
}

func (fs *fakeServer) closeConns() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, c := range fs.conns {
		c.Close()
	}
	fs.conns = nil
}

func TestConnectReceivesRecords(t *testing.T) {
	fs := newFakeServer(t)
	fs.push(record("r1", 1), record("r2", 2))

	var mu sync.Mutex
	var got []string
	c := NewConnManager(fs.URL, "")
	c.OnRecord(func(msg *core.PlotMessage) {
		mu.Lock()
		got = append(got, msg.ID)
		mu.Unlock()
	})
	defer c.Close()

	c.Connect()

	require.Eventually(t, func() bool {
		st, _ := c.State()
		return st == StateOpen
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"r1", "r2"}, got)
	mu.Unlock()
}

func TestDialFailureUsesFixedDiagnostic(t *testing.T) {
	// Nothing listens here.
	c := NewConnManager("http://127.0.0.1:1", "")
	defer c.Close()

	c.Connect()

	require.Eventually(t, func() bool {
		st, _ := c.State()
		return st == StateError
	}, 2*time.Second, 10*time.Millisecond)

	_, diag := c.State()
	assert.Equal(t, ConnDiagnostic, diag)
}

func TestRejectedTokenUsesFixedDiagnostic(t *testing.T) {
	fs := newFakeServer(t)
	fs.token = "right"

	c := NewConnManager(fs.URL, "wrong")
	defer c.Close()
	c.Connect()

	// A refused handshake is indistinguishable from a dead server on purpose.
	require.Eventually(t, func() bool {
		st, diag := c.State()
		return st == StateError && diag == ConnDiagnostic
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServerDropMovesToClosed(t *testing.T) {
	fs := newFakeServer(t)

	c := NewConnManager(fs.URL, "")
	defer c.Close()
	c.Connect()

	require.Eventually(t, func() bool {
		st, _ := c.State()
		return st == StateOpen
	}, 2*time.Second, 10*time.Millisecond)

	fs.closeConns()

	require.Eventually(t, func() bool {
		st, _ := c.State()
		return st == StateClosed
	}, 2*time.Second, 10*time.Millisecond)

	// No automatic retry: the state stays Closed.
	time.Sleep(50 * time.Millisecond)
	st, _ := c.State()
	assert.Equal(t, StateClosed, st)
}

func TestReconnectAfterDrop(t *testing.T) {
	fs := newFakeServer(t)

	c := NewConnManager(fs.URL, "")
	defer c.Close()
	c.Connect()

	require.Eventually(t, func() bool {
		st, _ := c.State()
		return st == StateOpen
	}, 2*time.Second, 10*time.Millisecond)

	fs.closeConns()
	require.Eventually(t, func() bool {
		st, _ := c.State()
		return st == StateClosed
	}, 2*time.Second, 10*time.Millisecond)

	c.Reconnect()
	require.Eventually(t, func() bool {
		st, _ := c.State()
		return st == StateOpen
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMalformedMessagesSkipped(t *testing.T) {
	var upgrader websocket.Upgrader
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"timestamp":1,"content":{"type":"Png","data":""}}`)) // no id
		raw, _ := record("good", 1).Encode()
		conn.WriteMessage(websocket.TextMessage, raw)
	}))
	defer ts.Close()

	var mu sync.Mutex
	var got []string
	c := NewConnManager(ts.URL, "")
	c.OnRecord(func(msg *core.PlotMessage) {
		mu.Lock()
		got = append(got, msg.ID)
		mu.Unlock()
	})
	defer c.Close()
	c.Connect()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// The stream survived the garbage.
	st, _ := c.State()
	assert.Equal(t, StateOpen, st)
	mu.Lock()
	assert.Equal(t, []string{"good"}, got)
	mu.Unlock()
}

func TestStateChangeCallback(t *testing.T) {
	fs := newFakeServer(t)

	var mu sync.Mutex
	var states []ConnState
	c := NewConnManager(fs.URL, "")
	c.OnStateChange(func(st ConnState, _ string) {
		mu.Lock()
		states = append(states, st)
		mu.Unlock()
	})
	c.Connect()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) >= 2
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, StateConnecting, states[0])
	assert.Equal(t, StateOpen, states[1])
	mu.Unlock()

	c.Close()
	require.Eventually(t, func() bool {
		st, _ := c.State()
		return st == StateClosed
	}, 2*time.Second, 10*time.Millisecond)
}
