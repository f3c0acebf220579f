package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// GeoJSONSink collects results into a FeatureCollection written on Close.
// Failed rows kept by the error policy are placed at their source
// position with the error in the properties. Rows whose input did not
// parse get a null geometry.
type GeoJSONSink struct {
	w      io.Writer
	fc     *geojson.FeatureCollection
	indent bool
}

// NewGeoJSONSink creates a GeoJSON sink. If w is an io.Closer it is
// closed by Close.
func NewGeoJSONSink(w io.Writer, indent bool) *GeoJSONSink {
	return &GeoJSONSink{
		w:      w,
		fc:     geojson.NewFeatureCollection(),
		indent: indent,
	}
}

// Write adds one feature per result
func (s *GeoJSONSink) Write(_ context.Context, results []Result) error {
	for _, r := range results {
		s.fc.Append(Feature(r))
	}
	return nil
}

// Feature converts a result to a GeoJSON point feature
func Feature(r Result) *geojson.Feature {
	var geom orb.Geometry
	switch {
	case r.OK():
		geom = r.Point.Point()
	case r.HasSource():
		geom = r.Source.Point()
	}

	f := geojson.NewFeature(geom)
	f.ID = r.ID
	f.Properties["id"] = r.ID
	f.Properties["datum"] = r.To.String()
	f.Properties["epsg"] = r.To.EPSG()
	f.Properties["source_datum"] = r.From.String()
	if r.HasSource() {
		f.Properties["source"] = []float64{r.Source.Lon, r.Source.Lat}
	}
	f.Properties["status"] = string(r.Status)
	if r.Err != nil {
		f.Properties["error"] = r.Err.Error()
	}
	return f
}

// Close encodes the collection
func (s *GeoJSONSink) Close() error {
	var (
		data []byte
		err  error
	)
	if s.indent {
		data, err = json.MarshalIndent(s.fc, "", "  ")
	} else {
		data, err = s.fc.MarshalJSON()
	}
	if err != nil {
		return fmt.Errorf("failed to encode geojson: %w", err)
	}
	if _, err := s.w.Write(append(data, '\n')); err != nil {
		return err
	}
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
