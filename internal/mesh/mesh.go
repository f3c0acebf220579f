// Package mesh maps coordinates to the third-order regional mesh
// (JIS X 0410) cells that index the GSI correction grids.
//
// A cell is 30" of latitude by 45" of longitude. Cells are numbered by
// serial counts from 0° latitude and 0° longitude; the same cells can be
// expressed as the published 8-digit mesh codes for the area east of 100°E.
package mesh

import (
	"fmt"
	"math"

	"github.com/wegman-software/jgd-go/internal/coord"
)

// Cell size
const (
	LatSecs = 30
	LonSecs = 45

	microPerSec = 1_000_000
	latStep     = LatSecs * microPerSec // micro arc-seconds
	lonStep     = LonSecs * microPerSec

	// cells per degree
	latPerDeg = 3600 / LatSecs // 120
	lonPerDeg = 3600 / LonSecs // 80

	// origin of the standard code longitude count (100°E)
	standardLonOrigin = 100 * lonPerDeg
)

// Code identifies one third-order mesh cell by its serial numbers
// counted from 0° latitude and 0° longitude.
type Code struct {
	Lat int32
	Lon int32
}

// Of returns the cell containing p. Coordinates are rounded to the
// nearest micro arc-second before the floor so that points on a cell
// edge fall in the cell to their north-east.
func Of(p coord.LatLon) Code {
	return Code{
		Lat: int32(floorDiv(toMicroSecs(p.Lat), latStep)),
		Lon: int32(floorDiv(toMicroSecs(p.Lon), lonStep)),
	}
}

// East returns the adjacent cell to the east
func (c Code) East() Code {
	return Code{Lat: c.Lat, Lon: c.Lon + 1}
}

// North returns the adjacent cell to the north
func (c Code) North() Code {
	return Code{Lat: c.Lat + 1, Lon: c.Lon}
}

// Neighbors returns the three cells whose south-west corners complete
// the interpolation cell of c.
func (c Code) Neighbors() (east, north, northEast Code) {
	return c.East(), c.North(), c.North().East()
}

// Origin returns the south-west corner of the cell in degrees
func (c Code) Origin() coord.LatLon {
	return coord.LatLon{
		Lat: float64(int64(c.Lat)*latStep) / (3600 * microPerSec),
		Lon: float64(int64(c.Lon)*lonStep) / (3600 * microPerSec),
	}
}

// Fraction returns the position of p within the cell, fx along
// longitude and fy along latitude. Both are in [0, 1) when Of(p) == c.
func (c Code) Fraction(p coord.LatLon) (fx, fy float64) {
	dLat := toMicroSecs(p.Lat) - int64(c.Lat)*latStep
	dLon := toMicroSecs(p.Lon) - int64(c.Lon)*lonStep
	return float64(dLon) / lonStep, float64(dLat) / latStep
}

// Less orders codes south to north, then west to east
func (c Code) Less(o Code) bool {
	if c.Lat != o.Lat {
		return c.Lat < o.Lat
	}
	return c.Lon < o.Lon
}

// Standard returns the 8-digit mesh code of c.
// Cells south of 0° or outside 100°E-180°E have no standard code.
func (c Code) Standard() (int64, error) {
	lon := int64(c.Lon) - standardLonOrigin
	lat := int64(c.Lat)
	if lat < 0 || lat >= 100*80 || lon < 0 || lon >= 100*80 {
		return 0, fmt.Errorf("mesh (lat=%d, lon=%d) has no standard code", c.Lat, c.Lon)
	}

	lat1, lat2, lat3 := lat/80, lat%80/10, lat%10
	lon1, lon2, lon3 := lon/80, lon%80/10, lon%10
	return lat1*1_000_000 + lon1*10_000 + lat2*1_000 + lon2*100 + lat3*10 + lon3, nil
}

// String returns the standard code, or the serial numbers when the
// cell has no standard code.
func (c Code) String() string {
	if n, err := c.Standard(); err == nil {
		return fmt.Sprintf("%08d", n)
	}
	return fmt.Sprintf("mesh(lat=%d, lon=%d)", c.Lat, c.Lon)
}

// Parse decodes an 8-digit mesh code
// Format: ppqqrstu
//
//	pp: 1st mesh latitude (lat * 1.5)
//	qq: 1st mesh longitude (lon - 100)
//	r, s: 2nd mesh latitude, longitude (0-7)
//	t, u: 3rd mesh latitude, longitude (0-9)
func Parse(n int64) (Code, error) {
	if n < 0 || n > 99_999_999 {
		return Code{}, &ParseError{Value: n, Reason: "must have at most 8 digits"}
	}

	lat1, lon1 := n/1_000_000, n/10_000%100
	lat2, lon2 := n/1_000%10, n/100%10
	lat3, lon3 := n/10%10, n%10
	if lat2 > 7 || lon2 > 7 {
		return Code{}, &ParseError{Value: n, Reason: "2nd mesh digits must be 0-7"}
	}

	return Code{
		Lat: int32(lat1*80 + lat2*10 + lat3),
		Lon: int32(standardLonOrigin + lon1*80 + lon2*10 + lon3),
	}, nil
}

// ParseError reports a malformed standard mesh code
type ParseError struct {
	Value  int64
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid mesh code %d: %s", e.Value, e.Reason)
}

func toMicroSecs(deg float64) int64 {
	return int64(math.Round(deg * 3600 * microPerSec))
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
