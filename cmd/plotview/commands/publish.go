package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/plotview/plotview/core"
	"github.com/plotview/plotview/producer"
)

var publishKind string

var publishCmd = &cobra.Command{
	Use:   "publish FILE",
	Short: "Publish a plot file to the running session server",
	Long: `Publish the contents of FILE as a plot.

The payload kind is taken from --kind, or guessed from the file extension:
.png, .svg, .html are direct; .json defaults to Plotly. Kinds: Png, Svg,
Plotly, Vega, Html.

Example:

  plotview publish chart.png
  plotview publish --kind Vega spec.json`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := args[0]
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot read %s: %v\n", path, err)
			os.Exit(1)
		}

		kind := core.PlotKind(publishKind)
		if publishKind == "" {
			kind = guessKind(path)
		}
		if !kind.Valid() {
			fmt.Fprintf(os.Stderr, "unknown kind %q (want Png, Svg, Plotly, Vega or Html)\n", publishKind)
			os.Exit(1)
		}

		baseURL, token, err := discoverServer()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		p := producer.New(baseURL, token)

		var content core.PlotContent
		if kind == core.KindPNG {
			content = core.PNG(data)
		} else {
			content = core.PlotContent{Type: kind, Data: string(data)}
		}

		id, err := p.Show(content)
		if err != nil {
			fmt.Fprintf(os.Stderr, "publish failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("published %s as %s\n", path, id)
	},
}

func guessKind(path string) core.PlotKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return core.KindPNG
	case ".svg":
		return core.KindSVG
	case ".html", ".htm":
		return core.KindHTML
	case ".json":
		return core.KindPlotly
	default:
		return core.PlotKind("")
	}
}

func init() {
	publishCmd.Flags().StringVar(&publishKind, "kind", "", "Payload kind: Png, Svg, Plotly, Vega or Html")
	rootCmd.AddCommand(publishCmd)
}
