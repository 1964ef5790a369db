package commands

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/plotview/plotview/config"
	"github.com/plotview/plotview/producer"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a session server is running",
	Run: func(cmd *cobra.Command, args []string) {
		state, err := config.ReadState()
		if err != nil {
			color.Yellow("no session server registered (state file missing)")
			return
		}

		fmt.Printf("registered server: %s (pid %d)\n", state.Addr, state.PID)
		p := producer.New("http://"+state.Addr, state.Token)
		if err := p.Ping(); err != nil {
			color.Red("not responding: %v", err)
			fmt.Println("the state file may be stale; `plotview serve` will overwrite it")
			os.Exit(1)
		}
		color.Green("healthy")
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
