package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wegman-software/jgd-go/internal/loader"
	"github.com/wegman-software/jgd-go/internal/logger"
	"github.com/wegman-software/jgd-go/internal/parquet"
	"github.com/wegman-software/jgd-go/internal/pipeline"
	"github.com/wegman-software/jgd-go/internal/proj"
)

var (
	batchFrom     = proj.Tokyo
	batchTo       = proj.JGD2011
	batchOutput   string
	batchFormat   string
	dropExisting  bool
	createIndexes bool
)

var batchCmd = &cobra.Command{
	Use:   "batch INPUT.csv",
	Short: "Convert a CSV file of coordinates",
	Long: `Convert every row of a CSV file with an id,lat,lon header.
Use "-" to read from stdin.

Rows are converted concurrently in chunks of --batch-size and written in
input order. Output formats:
  csv      id, lat, lon, src_lat, src_lon, datum, status, error (default)
  geojson  FeatureCollection of points
  parquet  zstd Parquet with an EWKB geom_wkb column (requires -o)
  postgis  COPY into <db-schema>.<db-table> as geometry(Point, EPSG)

--on-error decides what happens to rows that fail to convert:
  fail  stop at the first failing row (default)
  skip  drop the row
  keep  write the row with its status`,
	Args: cobra.ExactArgs(1),
	Run:  runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().Var(&batchFrom, "from", "Source datum")
	batchCmd.Flags().Var(&batchTo, "to", "Target datum")
	batchCmd.Flags().StringVarP(&batchOutput, "output", "o", "", "Output file (default stdout)")
	batchCmd.Flags().StringVarP(&batchFormat, "format", "f", "csv", "Output format: csv, geojson, parquet, postgis")
	batchCmd.Flags().IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Rows per conversion chunk")
	batchCmd.Flags().Var(&cfg.OnError, "on-error", "Failed row policy: fail, skip, keep")
	batchCmd.Flags().BoolVar(&dropExisting, "drop-existing", false, "Drop the PostGIS table before loading")
	batchCmd.Flags().BoolVar(&createIndexes, "create-indexes", true, "Create spatial indexes after loading")
}

func runBatch(cmd *cobra.Command, args []string) {
	log := logger.Get()
	ctx := cmd.Context()

	if err := cfg.Validate(); err != nil {
		exitWithError("invalid configuration", err)
	}

	in, err := openInput(args[0])
	if err != nil {
		exitWithError("failed to open input", err)
	}
	defer in.Close()

	chain, err := loadChain(ctx, batchFrom, batchTo)
	if err != nil {
		exitWithError("failed to load grids", err)
	}

	sink, err := openSink(cmd, batchFormat, batchOutput)
	if err != nil {
		exitWithError("failed to open output", err)
	}

	start := time.Now()
	coordinator := pipeline.NewCoordinator(cfg, chain, batchFrom, batchTo)
	stats, err := coordinator.Run(ctx, in, sink)
	if err != nil {
		sink.Close()
		exitWithError("batch failed", err)
	}
	if err := sink.Close(); err != nil {
		exitWithError("failed to finish output", err)
	}

	elapsed := time.Since(start)
	log.Info("Batch complete",
		zap.String("input", args[0]),
		zap.String("format", batchFormat),
		zap.Int64("rows", stats.Rows),
		zap.Int64("converted", stats.Converted),
		zap.Int64("failed", stats.Failed),
		zap.Int64("skipped", stats.Skipped),
		zap.Duration("duration", elapsed.Round(time.Millisecond)),
		zap.String("throughput", pipeline.FormatThroughput(float64(stats.Rows)/elapsed.Seconds())),
	)
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

func openSink(cmd *cobra.Command, format, output string) (pipeline.Sink, error) {
	switch format {
	case "csv", "geojson":
		var w io.Writer = nopCloser{cmd.OutOrStdout()}
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return nil, err
			}
			w = f
		}
		if format == "csv" {
			return pipeline.NewCSVSink(w), nil
		}
		return pipeline.NewGeoJSONSink(w, output == ""), nil
	case "parquet":
		if output == "" {
			return nil, fmt.Errorf("parquet output requires --output")
		}
		return parquet.NewPointWriter(output, cfg.BatchSize)
	case "postgis":
		return loader.NewLoader(cmd.Context(), cfg, batchTo.EPSG(), dropExisting, createIndexes)
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: csv, geojson, parquet, postgis)", format)
	}
}

// nopCloser keeps sinks from closing stdout
type nopCloser struct{ io.Writer }
