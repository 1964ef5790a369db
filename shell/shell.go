// Package shell is the presentation layer of the viewer: a small local web
// app showing connection status, the main viewport, and the history strip.
// It holds no state machine of its own; every response is a pure function of
// the connection state, the history store and the thumbnail cache.
package shell

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/felixge/httpsnoop"
	gfn "github.com/panyam/goutils/fn"
	"github.com/panyam/templar"

	"github.com/plotview/plotview/client"
	"github.com/plotview/plotview/core"
	"github.com/plotview/plotview/render"
)

const TEMPLATES_FOLDER = "shell/templates"

// The templates also ship inside the binary, so an installed plotview works
// from any working directory.
//
//go:embed templates
var builtinTemplates embed.FS

// Shell serves the viewer UI for one session.
type Shell struct {
	viewer    *client.Viewer
	templates *templar.TemplateGroup
}

// New creates a shell over a viewer session. When templatesDir is empty the
// source-tree TEMPLATES_FOLDER is used if present, otherwise the embedded
// templates.
func New(viewer *client.Viewer, templatesDir string) (*Shell, error) {
	if templatesDir == "" {
		dir, err := defaultTemplatesDir()
		if err != nil {
			return nil, fmt.Errorf("resolving templates: %w", err)
		}
		templatesDir = dir
	}
	group, err := setupTemplates(templatesDir)
	if err != nil {
		return nil, err
	}
	return &Shell{viewer: viewer, templates: group}, nil
}

// setupTemplates initializes the Templar template group
func setupTemplates(templatesDir string) (*templar.TemplateGroup, error) {
	group := templar.NewTemplateGroup()
	group.Loader = templar.NewFileSystemLoader(templatesDir)
	return group, nil
}

// defaultTemplatesDir prefers the source-tree templates (live editing during
// development), falling back to a copy of the embedded ones materialized under
// the user cache dir for the file-system loader.
func defaultTemplatesDir() (string, error) {
	if info, err := os.Stat(TEMPLATES_FOLDER); err == nil && info.IsDir() {
		return TEMPLATES_FOLDER, nil
	}

	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	dir := filepath.Join(base, "plotview", "templates")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	entries, err := fs.ReadDir(builtinTemplates, "templates")
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		raw, err := builtinTemplates.ReadFile(path.Join("templates", entry.Name()))
		if err != nil {
			return "", err
		}
		if err := os.WriteFile(filepath.Join(dir, entry.Name()), raw, 0o644); err != nil {
			return "", err
		}
	}
	return dir, nil
}

// Handler returns the shell's HTTP routes wrapped in request logging.
func (s *Shell) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handlePage)
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("POST /api/select/{id}", s.handleSelect)
	mux.HandleFunc("POST /api/reconnect", s.handleReconnect)
	mux.HandleFunc("GET /thumbnails/{file}", s.handleThumbnail)
	mux.HandleFunc("GET /artifact/{id}", s.handleArtifact)

	return withLogging(mux)
}

// withLogging logs every request with its status and duration.
func withLogging(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(h, w, r)
		core.Debug("%s %s -> %d (%v)", r.Method, r.URL.Path, m.Code, m.Duration)
	})
}

func (s *Shell) handlePage(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"Title": "plotview",
	}
	templates := s.templates.MustLoad("viewer.html", "")
	if err := s.templates.RenderHtmlTemplate(w, templates[0], "", data, nil); err != nil {
		http.Error(w, fmt.Sprintf("Failed to render page: %v", err), http.StatusInternalServerError)
	}
}

// recordSummary is one history-strip entry in the state snapshot.
type recordSummary struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	CapturedAt string `json:"capturedAt"`
	HasThumb   bool   `json:"hasThumb"`
	// ImageSrc carries the native image for cheap kinds, so the strip can
	// show it directly without a generated thumbnail.
	ImageSrc string `json:"imageSrc,omitempty"`
}

// stateResponse is the full UI state: the page is a pure function of it.
type stateResponse struct {
	ConnState string          `json:"connState"`
	ConnError string          `json:"connError,omitempty"`
	ActiveID  string          `json:"activeId,omitempty"`
	Records   []recordSummary `json:"records"`
	Active    *render.Display `json:"active,omitempty"`
}

func (s *Shell) handleState(w http.ResponseWriter, r *http.Request) {
	state, errMsg := s.viewer.Conn.State()

	resp := stateResponse{
		ConnState: state.String(),
		ConnError: errMsg,
		Records: gfn.Map(s.viewer.History.Records(), func(msg *core.PlotMessage) recordSummary {
			return s.summarize(msg)
		}),
	}
	if resp.Records == nil {
		resp.Records = []recordSummary{}
	}

	if active := s.viewer.History.ActiveRecord(); active != nil {
		resp.ActiveID = active.ID
		display := render.Dispatch(active)
		resp.Active = &display
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Shell) summarize(msg *core.PlotMessage) recordSummary {
	out := recordSummary{
		ID:         msg.ID,
		Kind:       string(msg.Content.Type),
		CapturedAt: msg.CapturedAt().Local().Format("15:04:05"),
		HasThumb:   s.viewer.Thumbs.Has(msg.ID),
	}
	switch msg.Content.Type {
	case core.KindPNG:
		out.ImageSrc = render.RasterDataURI(msg.Content.Data)
	case core.KindSVG:
		out.ImageSrc = render.VectorDataURI(msg.Content.Data)
	}
	return out
}

func (s *Shell) handleSelect(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.viewer.History.Select(id) {
		http.Error(w, "unknown record id", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Shell) handleReconnect(w http.ResponseWriter, r *http.Request) {
	s.viewer.Conn.Reconnect()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Shell) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	id, isPNG := strings.CutSuffix(r.PathValue("file"), ".png")
	if !isPNG {
		http.NotFound(w, r)
		return
	}
	thumb, ok := s.viewer.Thumbs.Thumbnail(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(thumb)
}

// handleArtifact returns the display-ready artifact for any record, not just
// the active one, so the page can prefetch while browsing history.
func (s *Shell) handleArtifact(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	msg, ok := s.viewer.History.Get(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(render.Dispatch(msg))
}
