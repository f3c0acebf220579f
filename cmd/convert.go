package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wegman-software/jgd-go/internal/coord"
	"github.com/wegman-software/jgd-go/internal/logger"
	"github.com/wegman-software/jgd-go/internal/pipeline"
	"github.com/wegman-software/jgd-go/internal/proj"
	"github.com/wegman-software/jgd-go/internal/wkb"
)

var (
	convertFrom   = proj.Tokyo
	convertTo     = proj.JGD2011
	convertFormat string
)

var convertCmd = &cobra.Command{
	Use:   "convert LAT LON",
	Short: "Convert a single coordinate",
	Long: `Convert one latitude/longitude between datums.

Angles are decimal degrees (35.6581) or D:M:S (35:39:29.16).
Use "--" before negative values.

Output formats:
  text     degrees and DMS (default)
  json     {"lat":..,"lon":..,"datum":..,"epsg":..}
  geojson  a Point feature
  ewkb     hex EWKB with the target EPSG code as SRID`,
	Args: cobra.ExactArgs(2),
	Run:  runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().Var(&convertFrom, "from", "Source datum (tokyo, jgd2000, jgd2011 or EPSG code)")
	convertCmd.Flags().Var(&convertTo, "to", "Target datum (tokyo, jgd2000, jgd2011 or EPSG code)")
	convertCmd.Flags().StringVarP(&convertFormat, "format", "f", "text", "Output format: text, json, geojson, ewkb")
}

func runConvert(cmd *cobra.Command, args []string) {
	log := logger.Get()

	p, err := parseLatLon(args[0], args[1])
	if err != nil {
		exitWithError("invalid coordinate", err)
	}

	chain, err := loadChain(cmd.Context(), convertFrom, convertTo)
	if err != nil {
		exitWithError("failed to load grids", err)
	}

	out, err := chain.Transform(proj.Coordinate{LatLon: p, Datum: convertFrom}, convertTo)
	if err != nil {
		exitWithError("conversion failed", err)
	}
	log.Debug("Converted",
		zap.Stringer("from", convertFrom),
		zap.Stringer("to", convertTo),
		zap.Stringer("input", p),
		zap.Stringer("output", out.LatLon))

	if err := printCoordinate(cmd.OutOrStdout(), convertFormat, p, convertFrom, out); err != nil {
		exitWithError("failed to write output", err)
	}
}

func parseLatLon(latArg, lonArg string) (coord.LatLon, error) {
	lat, err := coord.ParseAngle(latArg)
	if err != nil {
		return coord.LatLon{}, fmt.Errorf("latitude: %w", err)
	}
	lon, err := coord.ParseAngle(lonArg)
	if err != nil {
		return coord.LatLon{}, fmt.Errorf("longitude: %w", err)
	}
	p := coord.New(lat, lon)
	return p, p.Validate()
}

func printCoordinate(w io.Writer, format string, src coord.LatLon, from proj.Datum, out proj.Coordinate) error {
	switch format {
	case "text":
		lat, lon := out.ToDms()
		_, err := fmt.Fprintf(w, "%s (%s, EPSG:%d)\n%s %s\n", out.LatLon, out.Datum, out.Datum.EPSG(), lat, lon)
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"lat":   out.Lat,
			"lon":   out.Lon,
			"datum": out.Datum.String(),
			"epsg":  out.Datum.EPSG(),
		})
	case "geojson":
		f := pipeline.Feature(pipeline.Result{
			Source: src, Point: out.LatLon, From: from, To: out.Datum, Status: pipeline.StatusOK,
		})
		data, err := f.MarshalJSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	case "ewkb":
		_, err := fmt.Fprintln(w, wkb.Hex(wkb.NewEncoder(out.Datum.EPSG()).EncodePoint(out.LatLon)))
		return err
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json, geojson, ewkb)", format)
	}
}
