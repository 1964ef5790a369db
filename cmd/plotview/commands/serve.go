package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/plotview/plotview/config"
	"github.com/plotview/plotview/server"
)

var (
	serveHost    string
	servePort    int
	historyLimit int
	noToken      bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the plot session server",
	Long: `Start the session server that analysis code publishes plots to.

The server keeps a bounded in-memory plot history and streams it to every
connected viewer over a websocket, replaying the full history to each new
connection. Its address and token are written to a state file so that
'plotview view', 'plotview publish' and producer libraries can discover it
without any flags.

Example:

  plotview serve
  plotview serve --port 9090 --history-limit 500 --no-token`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.FromEnv()
		if serveHost != "" {
			cfg.Host = serveHost
		}
		if servePort > 0 {
			cfg.Port = servePort
		}
		if historyLimit > 0 {
			cfg.HistoryLimit = historyLimit
		}
		if authToken != "" {
			cfg.Token = authToken
		}
		if cfg.Token == "" && !noToken {
			cfg.Token = config.GenerateToken()
		}
		if noToken {
			cfg.Token = ""
		}

		srv := server.New(server.Options{Token: cfg.Token, HistoryLimit: cfg.HistoryLimit})
		httpServer := &http.Server{Addr: cfg.Addr(), Handler: srv.Handler()}

		// The state file must exist before the first request can succeed, so
		// write it before listening.
		state := config.ServerState{PID: os.Getpid(), Addr: cfg.Addr(), Token: cfg.Token}
		if err := config.WriteState(state); err != nil {
			fmt.Fprintf(os.Stderr, "cannot write state file: %v\n", err)
			os.Exit(1)
		}

		bold := color.New(color.Bold).SprintFunc()
		fmt.Printf("%s session server\n", bold("plotview"))
		fmt.Printf("  address:  %s\n", cfg.BaseURL())
		if cfg.Token != "" {
			fmt.Printf("  token:    %s\n", cfg.Token)
		} else {
			fmt.Printf("  token:    %s\n", color.YellowString("(none, accepting all clients)"))
		}
		fmt.Printf("  history:  %d records\n", cfg.HistoryLimit)
		fmt.Printf("  state:    %s\n", config.StateFile())

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		go func() {
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				fmt.Fprintf(os.Stderr, "server failed: %v\n", err)
				config.RemoveState()
				os.Exit(1)
			}
		}()

		<-sigChan
		fmt.Println("\nshutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Close()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
		}
		config.RemoveState()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Bind host (default 127.0.0.1)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Bind port (default 7878)")
	serveCmd.Flags().IntVar(&historyLimit, "history-limit", 0, "Max retained records (default 200)")
	serveCmd.Flags().BoolVar(&noToken, "no-token", false, "Disable token authentication")
	rootCmd.AddCommand(serveCmd)
}
