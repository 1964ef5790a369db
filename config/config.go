// Package config holds defaults, environment-driven configuration, and the
// on-disk state file that lets CLI commands and producers discover a running
// session server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Defaults for the session server.
const (
	DefaultHost         = "127.0.0.1"
	DefaultPort         = 7878
	DefaultHistoryLimit = 200
)

// Config carries the resolved server settings. Precedence is CLI flag over
// environment variable over default; flags are applied by the command layer
// on top of FromEnv.
type Config struct {
	Host         string
	Port         int
	Token        string
	HistoryLimit int
	OpenBrowser  bool
}

// FromEnv builds a config from defaults overlaid with PLOTVIEW_* environment
// variables. An .env file, if any, is loaded by the CLI entrypoint before
// this runs.
func FromEnv() Config {
	cfg := Config{
		Host:         DefaultHost,
		Port:         DefaultPort,
		HistoryLimit: DefaultHistoryLimit,
		OpenBrowser:  true,
	}
	if v := os.Getenv("PLOTVIEW_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("PLOTVIEW_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.Port = port
		}
	}
	if v := os.Getenv("PLOTVIEW_TOKEN"); v != "" {
		cfg.Token = v
	}
	if v := os.Getenv("PLOTVIEW_HISTORY_LIMIT"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil && limit > 0 {
			cfg.HistoryLimit = limit
		}
	}
	if v := os.Getenv("PLOTVIEW_OPEN_BROWSER"); v != "" {
		cfg.OpenBrowser = v != "0" && !strings.EqualFold(v, "false")
	}
	return cfg
}

// Addr returns the host:port bind address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BaseURL returns the http origin for the configured address.
func (c Config) BaseURL() string {
	return "http://" + c.Addr()
}

// GenerateToken creates a fresh session token (a dashless uuid, easy to paste
// into a URL).
func GenerateToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ServerState is the discovery file `plotview serve` writes before listening.
// By the time the health endpoint answers, clients can rely on it existing.
type ServerState struct {
	PID   int    `json:"pid"`
	Addr  string `json:"addr"`
	Token string `json:"token,omitempty"`
	// UIAddr is registered by `plotview view` once its shell is listening, so
	// `plotview open` can re-open a browser on the running viewer.
	UIAddr string `json:"uiAddr,omitempty"`
}

// stateDir resolves the directory holding the state file. PLOTVIEW_STATE_DIR
// overrides the per-user default, mainly for tests.
func stateDir() string {
	if dir := os.Getenv("PLOTVIEW_STATE_DIR"); dir != "" {
		return dir
	}
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, "plotview")
}

// StateFile returns the path of the server discovery file.
func StateFile() string {
	return filepath.Join(stateDir(), "server.json")
}

// WriteState persists the discovery file, creating its directory if needed.
func WriteState(state ServerState) error {
	if err := os.MkdirAll(stateDir(), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(StateFile(), raw, 0o644)
}

// ReadState loads the discovery file.
func ReadState() (*ServerState, error) {
	raw, err := os.ReadFile(StateFile())
	if err != nil {
		return nil, err
	}
	var state ServerState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("malformed state file: %w", err)
	}
	return &state, nil
}

// RemoveState deletes the discovery file; missing is fine.
func RemoveState() {
	_ = os.Remove(StateFile())
}

// RegisterUIAddr records a running viewer's UI address in the state file. A
// no-op when no server is registered.
func RegisterUIAddr(addr string) {
	if state, err := ReadState(); err == nil {
		state.UIAddr = addr
		_ = WriteState(*state)
	}
}

// DeregisterUIAddr clears the UI address on viewer shutdown, but only when it
// still belongs to this viewer; a newer viewer's registration is left alone.
func DeregisterUIAddr(addr string) {
	if state, err := ReadState(); err == nil && state.UIAddr == addr {
		state.UIAddr = ""
		_ = WriteState(*state)
	}
}
