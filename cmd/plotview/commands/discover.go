package commands

import (
	"fmt"

	"github.com/plotview/plotview/config"
)

// discoverServer resolves the session server address and token, preferring the
// --server/--token flags and falling back to the state file written by
// `plotview serve`.
func discoverServer() (baseURL, token string, err error) {
	baseURL, token = serverURL, authToken
	if baseURL != "" {
		return baseURL, token, nil
	}
	state, err := config.ReadState()
	if err != nil {
		return "", "", fmt.Errorf("no running server found (is `plotview serve` running?): %w", err)
	}
	if token == "" {
		token = state.Token
	}
	return "http://" + state.Addr, token, nil
}
