package cmd

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wegman-software/jgd-go/internal/grid"
	"github.com/wegman-software/jgd-go/internal/gridfile"
	"github.com/wegman-software/jgd-go/internal/logger"
	"github.com/wegman-software/jgd-go/internal/par"
)

var (
	compileOutput string
	compileName   string
)

var compileCmd = &cobra.Command{
	Use:   "compile INPUT.par",
	Short: "Build a compiled grid file from a GSI parameter file",
	Long: `Parse a GSI .par parameter file and write a compact binary grid that
loads by memory-mapping instead of text parsing.

The grid name defaults to the input file name without extension
(TKY2JGD, touhokutaiheiyouoki2011).`,
	Args: cobra.ExactArgs(1),
	Run:  runCompile,
}

func init() {
	rootCmd.AddCommand(compileCmd)

	compileCmd.Flags().StringVarP(&compileOutput, "output", "o", "", "Output file (default INPUT with .grid extension)")
	compileCmd.Flags().StringVar(&compileName, "name", "", "Grid name stored in the file")
}

func runCompile(cmd *cobra.Command, args []string) {
	log := logger.Get()
	input := args[0]
	start := time.Now()

	name := compileName
	if name == "" {
		name = gridfile.NameFromPath(input)
	}
	output := compileOutput
	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + ".grid"
	}

	records, err := par.ReadFile(cmd.Context(), input)
	if err != nil {
		exitWithError("failed to read parameter file", err)
	}

	var opts []grid.Option
	if cfg.StrictGrid {
		opts = append(opts, grid.WithStrict())
	}
	g, err := grid.New(name, records, opts...)
	if err != nil {
		exitWithError("invalid parameter file", err)
	}

	if err := gridfile.WriteFile(output, g); err != nil {
		exitWithError("failed to write grid file", err)
	}

	log.Info("Grid compiled",
		zap.String("input", input),
		zap.String("output", output),
		zap.String("name", g.Name()),
		zap.Int("records", len(records)),
		zap.Int("nodes", g.Len()),
		zap.Duration("duration", time.Since(start).Round(time.Millisecond)),
	)
}
