package grid

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wegman-software/jgd-go/internal/mesh"
)

// Record is one tokenized line of a parameter file:
// mesh code, latitude shift and longitude shift in arc-seconds.
type Record struct {
	Line     int
	MeshCode string
	DLat     string
	DLon     string
}

// ShiftDecimals is the precision of published shifts
const ShiftDecimals = 5

// node converts a record. Errors are reported without the grid name.
func (r Record) node() (Node, *MalformedGridError) {
	n, err := strconv.ParseInt(strings.TrimSpace(r.MeshCode), 10, 64)
	if err != nil {
		return Node{}, r.fieldError("MeshCode", r.MeshCode, "not an integer", err)
	}
	code, err := mesh.Parse(n)
	if err != nil {
		return Node{}, r.fieldError("MeshCode", r.MeshCode, "out of range", err)
	}

	lat, err := ParseSeconds(r.DLat)
	if err != nil {
		return Node{}, r.fieldError("dB", r.DLat, "invalid shift", err)
	}
	lon, err := ParseSeconds(r.DLon)
	if err != nil {
		return Node{}, r.fieldError("dL", r.DLon, "invalid shift", err)
	}

	return Node{Code: code, Shift: Shift{Lat: lat, Lon: lon}}, nil
}

func (r Record) fieldError(field, value, reason string, err error) *MalformedGridError {
	return &MalformedGridError{Line: r.Line, Field: field, Value: value, Reason: reason, Err: err}
}

// ParseSeconds parses a decimal arc-second value with at most five
// decimals into 1e-5 arc-second units without going through float64.
func ParseSeconds(s string) (int32, error) {
	s = strings.TrimSpace(s)
	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg, s = true, s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}

	intPart, frac, _ := strings.Cut(s, ".")
	if intPart == "" && frac == "" {
		return 0, fmt.Errorf("empty number")
	}
	if len(frac) > ShiftDecimals {
		return 0, fmt.Errorf("more than %d decimals", ShiftDecimals)
	}
	if !isDigits(intPart) || !isDigits(frac) {
		return 0, fmt.Errorf("not a decimal number")
	}

	frac += strings.Repeat("0", ShiftDecimals-len(frac))
	var v int64
	for _, ch := range intPart + frac {
		v = v*10 + int64(ch-'0')
		if v > math.MaxInt32 {
			return 0, fmt.Errorf("overflows fixed-point range")
		}
	}
	if neg {
		v = -v
	}
	return int32(v), nil
}

func isDigits(s string) bool {
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}
