package commands

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/plotview/plotview/client"
	"github.com/plotview/plotview/config"
	"github.com/plotview/plotview/shell"
)

var (
	viewPort     int
	noBrowser    bool
	templatesDir string
)

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Open the viewer UI for a running session server",
	Long: `Connect to a session server and serve the viewer UI locally.

The viewer receives plots over a websocket, keeps a deduplicated history for
the session, and renders each plot by kind: images directly, Plotly and Vega
specs through their charting engines, HTML as-is. The server replays its full
history on connect, so a viewer started late still sees everything.

The connection never retries on its own; press 'r' in the viewer (or POST
/api/reconnect) to reconnect after a drop.`,
	Run: func(cmd *cobra.Command, args []string) {
		baseURL, token, err := discoverServer()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		viewer := client.NewViewer(baseURL, token)
		sh, err := shell.New(viewer, templatesDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot set up viewer shell: %v\n", err)
			os.Exit(1)
		}

		addr := fmt.Sprintf("127.0.0.1:%d", viewPort)
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot listen on %s: %v\n", addr, err)
			os.Exit(1)
		}

		uiURL := fmt.Sprintf("http://%s/", listener.Addr())
		fmt.Printf("viewer at %s (session server %s)\n", uiURL, baseURL)

		// Register the UI address so `plotview open` can find this viewer.
		uiAddr := listener.Addr().String()
		config.RegisterUIAddr(uiAddr)
		defer config.DeregisterUIAddr(uiAddr)

		viewer.Start()
		defer viewer.Close()

		httpServer := &http.Server{Handler: sh.Handler()}
		go func() {
			if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
				fmt.Fprintf(os.Stderr, "viewer shell failed: %v\n", err)
				os.Exit(1)
			}
		}()

		if !noBrowser {
			go func() {
				time.Sleep(300 * time.Millisecond)
				_ = browser.OpenURL(uiURL)
			}()
		}

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		fmt.Println("\nclosing viewer...")
		httpServer.Close()
	},
}

func init() {
	viewCmd.Flags().IntVar(&viewPort, "ui-port", 0, "Port for the viewer UI (default: any free port)")
	viewCmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Do not open a browser")
	viewCmd.Flags().StringVar(&templatesDir, "templates", "", "Override the UI templates directory")
	rootCmd.AddCommand(viewCmd)
}
