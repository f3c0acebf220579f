package grid

import (
	"fmt"

	"github.com/wegman-software/jgd-go/internal/coord"
	"github.com/wegman-software/jgd-go/internal/mesh"
)

// MalformedGridError is returned when grid input cannot be loaded.
// No grid is produced when it occurs.
type MalformedGridError struct {
	Grid   string
	Line   int    // 1-based source line, 0 when unknown
	Field  string // offending field name, empty for whole-record problems
	Value  string
	Reason string
	Err    error
}

func (e *MalformedGridError) Error() string {
	msg := "malformed grid"
	if e.Grid != "" {
		msg += " " + e.Grid
	}
	if e.Line > 0 {
		msg += fmt.Sprintf(": line %d", e.Line)
	}
	if e.Field != "" {
		msg += fmt.Sprintf(": %s %q", e.Field, e.Value)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedGridError) Unwrap() error {
	return e.Err
}

// Corner names one of the four nodes of an interpolation cell
type Corner int

const (
	SouthWest Corner = iota
	SouthEast
	NorthWest
	NorthEast
)

func (c Corner) String() string {
	switch c {
	case SouthWest:
		return "sw"
	case SouthEast:
		return "se"
	case NorthWest:
		return "nw"
	case NorthEast:
		return "ne"
	default:
		return fmt.Sprintf("corner(%d)", int(c))
	}
}

// OutOfGridError is returned by CorrectionAt when the cell enclosing the
// query point lacks a corner node.
type OutOfGridError struct {
	Grid    string
	Point   coord.LatLon
	Cell    mesh.Code // cell containing Point
	Corner  Corner    // first missing corner
	Missing mesh.Code // mesh code of the missing corner node
}

func (e *OutOfGridError) Error() string {
	return fmt.Sprintf("point (%s) is outside grid %s: %s corner %s missing",
		e.Point, e.Grid, e.Corner, e.Missing)
}
