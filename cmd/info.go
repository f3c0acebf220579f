package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wegman-software/jgd-go/internal/grid"
	"github.com/wegman-software/jgd-go/internal/gridfile"
)

var infoCmd = &cobra.Command{
	Use:   "info GRIDFILE",
	Short: "Show grid name, node count and coverage",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var opts []grid.Option
		if cfg.StrictGrid {
			opts = append(opts, grid.WithStrict())
		}
		g, err := gridfile.Load(cmd.Context(), args[0], opts...)
		if err != nil {
			exitWithError("failed to load grid", err)
		}

		b := g.Bounds()
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "name:        %s\n", g.Name())
		fmt.Fprintf(w, "nodes:       %d\n", g.Len())
		fmt.Fprintf(w, "south-west:  %s (mesh %s)\n", b.SouthWest(), b.Min)
		fmt.Fprintf(w, "north-east:  %s (mesh %s)\n", b.NorthEast(), b.Max)
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
