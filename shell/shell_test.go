package shell

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plotview/plotview/client"
	"github.com/plotview/plotview/core"
)

func newTestShell(t *testing.T) (*client.Viewer, *httptest.Server) {
	// Nothing listens on port 1, so connection attempts fail immediately.
	viewer := client.NewViewer("http://127.0.0.1:1", "")
	t.Cleanup(viewer.Close)

	sh, err := New(viewer, "templates")
	require.NoError(t, err)
	ts := httptest.NewServer(sh.Handler())
	t.Cleanup(ts.Close)
	return viewer, ts
}

func getState(t *testing.T, ts *httptest.Server) stateResponse {
	resp, err := http.Get(ts.URL + "/api/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var state stateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	return state
}

func TestStateEmptySession(t *testing.T) {
	_, ts := newTestShell(t)

	state := getState(t, ts)
	assert.Equal(t, "idle", state.ConnState)
	assert.Empty(t, state.ActiveID)
	assert.NotNil(t, state.Records)
	assert.Empty(t, state.Records)
	assert.Nil(t, state.Active)
}

func TestStateReflectsHistory(t *testing.T) {
	viewer, ts := newTestShell(t)

	viewer.History.Admit(&core.PlotMessage{ID: "a", Timestamp: 1, Content: core.SVG("<svg/>")})
	viewer.History.Admit(&core.PlotMessage{ID: "b", Timestamp: 2, Content: core.HTML("<b/>")})

	state := getState(t, ts)
	require.Len(t, state.Records, 2)
	assert.Equal(t, "a", state.Records[0].ID)
	assert.Equal(t, "Svg", state.Records[0].Kind)
	assert.True(t, strings.HasPrefix(state.Records[0].ImageSrc, "data:image/svg+xml;base64,"))
	assert.Empty(t, state.Records[1].ImageSrc, "html records have no strip image")

	// Without a pin the newest record is active.
	assert.Equal(t, "b", state.ActiveID)
	require.NotNil(t, state.Active)
	assert.Equal(t, core.KindHTML, state.Active.Kind)
}

func TestSelectPinsViewport(t *testing.T) {
	viewer, ts := newTestShell(t)
	viewer.History.Admit(&core.PlotMessage{ID: "a", Timestamp: 1, Content: core.SVG("<svg/>")})
	viewer.History.Admit(&core.PlotMessage{ID: "b", Timestamp: 2, Content: core.SVG("<svg/>")})

	resp, err := http.Post(ts.URL+"/api/select/a", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	assert.Equal(t, "a", getState(t, ts).ActiveID)

	// The pin holds as new records arrive.
	viewer.History.Admit(&core.PlotMessage{ID: "c", Timestamp: 3, Content: core.SVG("<svg/>")})
	assert.Equal(t, "a", getState(t, ts).ActiveID)

	resp, err = http.Post(ts.URL+"/api/select/nope", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestThumbnailEndpoint(t *testing.T) {
	viewer, ts := newTestShell(t)

	resp, err := http.Get(ts.URL + "/thumbnails/missing.png")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	viewer.History.Admit(&core.PlotMessage{ID: "p1", Timestamp: 1,
		Content: core.PlotlyJSON(`{"data":[{"y":[1,2,3]}]}`)})

	require.Eventually(t, func() bool {
		return viewer.Thumbs.Has("p1")
	}, 10*time.Second, 20*time.Millisecond)

	resp, err = http.Get(ts.URL + "/thumbnails/p1.png")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	state := getState(t, ts)
	require.Len(t, state.Records, 1)
	assert.True(t, state.Records[0].HasThumb)
}

func TestReconnectEndpoint(t *testing.T) {
	_, ts := newTestShell(t)

	resp, err := http.Post(ts.URL+"/api/reconnect", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Nothing listens on the session port, so the attempt lands in the error
	// state with the fixed diagnostic.
	require.Eventually(t, func() bool {
		return getState(t, ts).ConnState == "error"
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, client.ConnDiagnostic, getState(t, ts).ConnError)
}

func TestArtifactEndpoint(t *testing.T) {
	viewer, ts := newTestShell(t)
	viewer.History.Admit(&core.PlotMessage{ID: "a", Timestamp: 1,
		Content: core.VegaJSON(`{"mark":"line"}`)})

	resp, err := http.Get(ts.URL + "/artifact/a")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var d struct {
		Engine string `json:"engine"`
		Spec   string `json:"spec"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&d))
	assert.Equal(t, "vega", d.Engine)
	assert.Equal(t, `{"mark":"line"}`, d.Spec)

	resp, err = http.Get(ts.URL + "/artifact/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPageRenders(t *testing.T) {
	_, ts := newTestShell(t)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	buf := make([]byte, 4096)
	n, _ := resp.Body.Read(buf)
	assert.Contains(t, string(buf[:n]), "plotview")
}

// TestPageRendersFromAnyWorkingDirectory covers the embedded-template
// fallback: the page must render even when the process runs somewhere with no
// templates directory in sight.
func TestPageRendersFromAnyWorkingDirectory(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	viewer := client.NewViewer("http://127.0.0.1:1", "")
	t.Cleanup(viewer.Close)

	sh, err := New(viewer, "")
	require.NoError(t, err)
	ts := httptest.NewServer(sh.Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	buf := make([]byte, 4096)
	n, _ := resp.Body.Read(buf)
	assert.Contains(t, string(buf[:n]), "plotview")
}
