// Package coord holds the latitude/longitude value types shared by the
// mesh, grid and datum packages.
package coord

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Angle units expressed in degrees
const (
	Degree    = 1.0
	Minute    = Degree / 60
	Second    = Minute / 60
	MicroSec  = Second / 1e6
	SecsInDeg = 3600.0
)

// LatLon is a geodetic coordinate in decimal degrees
type LatLon struct {
	Lat float64
	Lon float64
}

// New returns a LatLon from decimal degrees
func New(lat, lon float64) LatLon {
	return LatLon{Lat: lat, Lon: lon}
}

// FromSecs converts arc-seconds to degrees
func FromSecs(lat, lon float64) LatLon {
	return LatLon{Lat: lat / SecsInDeg, Lon: lon / SecsInDeg}
}

// Add returns p + q
func (p LatLon) Add(q LatLon) LatLon {
	return LatLon{Lat: p.Lat + q.Lat, Lon: p.Lon + q.Lon}
}

// Sub returns p - q
func (p LatLon) Sub(q LatLon) LatLon {
	return LatLon{Lat: p.Lat - q.Lat, Lon: p.Lon - q.Lon}
}

// Scale multiplies both axes by k
func (p LatLon) Scale(k float64) LatLon {
	return LatLon{Lat: p.Lat * k, Lon: p.Lon * k}
}

// Secs returns the coordinate in arc-seconds
func (p LatLon) Secs() LatLon {
	return p.Scale(SecsInDeg)
}

// Point returns the coordinate as an orb.Point (X=lon, Y=lat)
func (p LatLon) Point() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// FromPoint converts an orb.Point (X=lon, Y=lat)
func FromPoint(pt orb.Point) LatLon {
	return LatLon{Lat: pt.Lat(), Lon: pt.Lon()}
}

// MaxAbsDiff returns the larger of the per-axis absolute differences
func (p LatLon) MaxAbsDiff(q LatLon) float64 {
	return math.Max(math.Abs(p.Lat-q.Lat), math.Abs(p.Lon-q.Lon))
}

// String formats the coordinate as "lat, lon" with 9 decimals (~0.1mm)
func (p LatLon) String() string {
	return fmt.Sprintf("%.9f, %.9f", p.Lat, p.Lon)
}

// ToDms converts both axes to degrees, minutes, seconds
func (p LatLon) ToDms() (lat, lon Dms) {
	return DmsFromDegrees(p.Lat), DmsFromDegrees(p.Lon)
}

// Validate checks that the coordinate is within degree range.
// The returned error notes when lat and lon look swapped.
func (p LatLon) Validate() error {
	if inRange(p.Lat, p.Lon) {
		return nil
	}
	return &DegreesError{Value: p, PossiblyReversed: inRange(p.Lon, p.Lat)}
}

func inRange(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return math.Abs(lat) <= 90 && math.Abs(lon) <= 180
}

// DegreesError reports an input coordinate out of degree range
type DegreesError struct {
	Value            LatLon
	PossiblyReversed bool
}

func (e *DegreesError) Error() string {
	if e.PossiblyReversed {
		return "degrees out of range; may be lat and lon reversed?"
	}
	return "degrees out of range"
}
