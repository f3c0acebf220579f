package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wegman-software/jgd-go/internal/mesh"
	"github.com/wegman-software/jgd-go/internal/wkb"
)

var (
	meshFormat string
	meshSRID   int
)

var meshCmd = &cobra.Command{
	Use:   "mesh LAT LON",
	Short: "Show the third-order mesh cell containing a coordinate",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		p, err := parseLatLon(args[0], args[1])
		if err != nil {
			exitWithError("invalid coordinate", err)
		}

		c := mesh.Of(p)
		fx, fy := c.Fraction(p)
		std, stdErr := c.Standard()
		w := cmd.OutOrStdout()

		switch meshFormat {
		case "text":
			if stdErr == nil {
				fmt.Fprintf(w, "code:      %08d\n", std)
			}
			fmt.Fprintf(w, "serial:    lat=%d lon=%d\n", c.Lat, c.Lon)
			fmt.Fprintf(w, "origin:    %s\n", c.Origin())
			fmt.Fprintf(w, "fraction:  x=%.6f y=%.6f\n", fx, fy)
		case "json":
			doc := map[string]any{
				"lat_serial": c.Lat,
				"lon_serial": c.Lon,
				"origin":     []float64{c.Origin().Lat, c.Origin().Lon},
				"fraction":   []float64{fx, fy},
			}
			if stdErr == nil {
				doc["code"] = fmt.Sprintf("%08d", std)
			}
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			if err := enc.Encode(doc); err != nil {
				exitWithError("failed to write output", err)
			}
		case "ewkb":
			fmt.Fprintln(w, wkb.Hex(wkb.NewEncoder(meshSRID).EncodeCell(c)))
		default:
			exitWithError(fmt.Sprintf("unsupported format: %s (supported: text, json, ewkb)", meshFormat), nil)
		}
	},
}

func init() {
	rootCmd.AddCommand(meshCmd)

	meshCmd.Flags().StringVarP(&meshFormat, "format", "f", "text", "Output format: text, json, ewkb (cell polygon)")
	meshCmd.Flags().IntVar(&meshSRID, "srid", 6668, "SRID for ewkb output")
}
