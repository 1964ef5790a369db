package commands

import (
	"fmt"
	"os"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/plotview/plotview/config"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running session server",
	Long: `Signal the registered session server to shut down.

The server's pid comes from the state file written by 'plotview serve'. The
signal triggers the same graceful shutdown as Ctrl-C in the serve terminal.`,
	Run: func(cmd *cobra.Command, args []string) {
		state, err := config.ReadState()
		if err != nil {
			color.Yellow("no session server registered, nothing to stop")
			return
		}

		proc, err := os.FindProcess(state.PID)
		if err == nil {
			err = proc.Signal(syscall.SIGTERM)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot signal pid %d: %v\n", state.PID, err)
			// The process is gone; drop the stale registration.
			config.RemoveState()
			os.Exit(1)
		}
		color.Green("sent shutdown signal to pid %d (%s)", state.PID, state.Addr)
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)
}
