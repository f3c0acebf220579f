package proj

import (
	"fmt"
	"strings"
)

// Datum is one of the supported Japanese geodetic datums
type Datum int

const (
	Tokyo   Datum = iota // Tokyo Datum, Bessel ellipsoid
	JGD2000              // Japanese Geodetic Datum 2000
	JGD2011              // Japanese Geodetic Datum 2011
)

// EPSG codes of the geographic 2D CRS for each datum
const (
	EPSG4301 = 4301 // Tokyo
	EPSG4612 = 4612 // JGD2000
	EPSG6668 = 6668 // JGD2011
)

// Datums lists all datums in chain order
var Datums = []Datum{Tokyo, JGD2000, JGD2011}

// String returns the conventional name of the datum
func (d Datum) String() string {
	switch d {
	case Tokyo:
		return "Tokyo"
	case JGD2000:
		return "JGD2000"
	case JGD2011:
		return "JGD2011"
	default:
		return fmt.Sprintf("Datum(%d)", int(d))
	}
}

// EPSG returns the EPSG code of the datum's geographic CRS
func (d Datum) EPSG() int {
	switch d {
	case Tokyo:
		return EPSG4301
	case JGD2000:
		return EPSG4612
	case JGD2011:
		return EPSG6668
	default:
		return 0
	}
}

// Valid reports whether d is one of the known datums
func (d Datum) Valid() bool {
	return d >= Tokyo && d <= JGD2011
}

// ParseDatum parses a datum name or EPSG code
// Accepts: "tokyo", "jgd2000", "jgd2011", "4301", "EPSG:4612", ...
func ParseDatum(s string) (Datum, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tokyo", "tky", "4301", "epsg:4301":
		return Tokyo, nil
	case "jgd2000", "4612", "epsg:4612":
		return JGD2000, nil
	case "jgd2011", "6668", "epsg:6668":
		return JGD2011, nil
	default:
		return 0, fmt.Errorf("unsupported datum: %s (supported: tokyo, jgd2000, jgd2011)", s)
	}
}

// Set implements pflag.Value so datums can be bound to flags
func (d *Datum) Set(s string) error {
	v, err := ParseDatum(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Type implements pflag.Value
func (d *Datum) Type() string {
	return "datum"
}
