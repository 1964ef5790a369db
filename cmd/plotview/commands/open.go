package commands

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/plotview/plotview/config"
)

var openCmd = &cobra.Command{
	Use:   "open",
	Short: "Open a browser on the running viewer UI",
	Long: `Open a browser tab pointing at the viewer UI registered in the state
file. Requires a 'plotview view' session to be running.`,
	Run: func(cmd *cobra.Command, args []string) {
		state, err := config.ReadState()
		if err != nil {
			color.Yellow("no session registered (is `plotview serve` running?)")
			os.Exit(1)
		}
		if state.UIAddr == "" {
			color.Yellow("no viewer UI registered; start one with `plotview view`")
			os.Exit(1)
		}
		url := "http://" + state.UIAddr + "/"
		if err := browser.OpenURL(url); err != nil {
			fmt.Fprintf(os.Stderr, "cannot open browser: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("opened %s\n", url)
	},
}

func init() {
	rootCmd.AddCommand(openCmd)
}
