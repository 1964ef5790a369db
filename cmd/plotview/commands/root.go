package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Global flags shared by commands that talk to a running server.
var (
	serverURL string
	authToken string
)

var rootCmd = &cobra.Command{
	Use:   "plotview",
	Short: "plotview streams plots from analysis code to a live viewer",
	Long: `plotview runs a local plot session server that analysis code pushes
plots to, and a viewer UI that renders them as they arrive.

Typical session:

  # Terminal 1: start the session server (prints its address and token)
  plotview serve

  # Terminal 2: open the viewer UI
  plotview view

  # Anywhere: publish a plot file
  plotview publish --kind Png chart.png`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Session server URL (default: discovered from the state file)")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", "", "Session token (default: discovered from the state file)")
}
