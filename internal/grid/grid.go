// Package grid holds a GSI correction parameter grid and interpolates
// coordinate shifts from it.
//
// Each node is the measured shift at the south-west corner of one
// third-order mesh cell. A grid is immutable once built and can be
// shared by any number of goroutines.
package grid

import (
	"slices"

	"github.com/wegman-software/jgd-go/internal/coord"
	"github.com/wegman-software/jgd-go/internal/mesh"
)

// Well-known grid names
const (
	TKY2JGD  = "TKY2JGD"
	PatchJGD = "touhokutaiheiyouoki2011"
)

// ShiftUnit is the fixed-point unit of Shift in arc-seconds
const ShiftUnit = 1e-5

// Shift is a correction in ShiftUnit steps
type Shift struct {
	Lat int32
	Lon int32
}

// Degrees converts the shift to degrees
func (s Shift) Degrees() coord.LatLon {
	return coord.FromSecs(float64(s.Lat)*ShiftUnit, float64(s.Lon)*ShiftUnit)
}

// Node is the shift measured at one mesh code
type Node struct {
	Code  mesh.Code
	Shift Shift
}

// Bounds is the range of mesh codes present in a grid
type Bounds struct {
	Min mesh.Code
	Max mesh.Code
}

// SouthWest returns the south-west most node position in degrees
func (b Bounds) SouthWest() coord.LatLon { return b.Min.Origin() }

// NorthEast returns the north-east most node position in degrees
func (b Bounds) NorthEast() coord.LatLon { return b.Max.Origin() }

// Grid is a read-only table of nodes keyed by mesh code
type Grid struct {
	name   string
	nodes  map[mesh.Code]Shift
	bounds Bounds
}

type options struct {
	strict bool
}

// Option configures grid construction
type Option func(*options)

// WithStrict rejects duplicate mesh codes instead of keeping the last one
func WithStrict() Option {
	return func(o *options) { o.strict = true }
}

// New builds a grid from tokenized parameter records.
// Later records replace earlier ones with the same mesh code unless
// WithStrict is given.
func New(name string, records []Record, opts ...Option) (*Grid, error) {
	if len(records) == 0 {
		return nil, &MalformedGridError{Grid: name, Reason: "no records"}
	}

	nodes := make([]Node, 0, len(records))
	lines := make([]int, 0, len(records))
	for _, r := range records {
		n, merr := r.node()
		if merr != nil {
			merr.Grid = name
			return nil, merr
		}
		nodes = append(nodes, n)
		lines = append(lines, r.Line)
	}
	return build(name, nodes, lines, opts)
}

// FromNodes builds a grid from decoded nodes, with the same duplicate
// policy as New.
func FromNodes(name string, nodes []Node, opts ...Option) (*Grid, error) {
	if len(nodes) == 0 {
		return nil, &MalformedGridError{Grid: name, Reason: "no records"}
	}
	return build(name, nodes, nil, opts)
}

func build(name string, nodes []Node, lines []int, opts []Option) (*Grid, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	g := &Grid{
		name:   name,
		nodes:  make(map[mesh.Code]Shift, len(nodes)),
		bounds: Bounds{Min: nodes[0].Code, Max: nodes[0].Code},
	}
	for i, n := range nodes {
		if _, dup := g.nodes[n.Code]; dup && o.strict {
			merr := &MalformedGridError{Grid: name, Field: "MeshCode", Value: n.Code.String(), Reason: "duplicate mesh code"}
			if lines != nil {
				merr.Line = lines[i]
			}
			return nil, merr
		}
		g.nodes[n.Code] = n.Shift
		g.bounds.Min.Lat = min(g.bounds.Min.Lat, n.Code.Lat)
		g.bounds.Min.Lon = min(g.bounds.Min.Lon, n.Code.Lon)
		g.bounds.Max.Lat = max(g.bounds.Max.Lat, n.Code.Lat)
		g.bounds.Max.Lon = max(g.bounds.Max.Lon, n.Code.Lon)
	}
	return g, nil
}

// Name returns the grid name
func (g *Grid) Name() string { return g.name }

// Len returns the number of nodes
func (g *Grid) Len() int { return len(g.nodes) }

// Bounds returns the extent of node mesh codes
func (g *Grid) Bounds() Bounds { return g.bounds }

// Lookup returns the node shift at code
func (g *Grid) Lookup(code mesh.Code) (Shift, bool) {
	s, ok := g.nodes[code]
	return s, ok
}

// Nodes returns all nodes ordered south to north, west to east
func (g *Grid) Nodes() []Node {
	out := make([]Node, 0, len(g.nodes))
	for code, shift := range g.nodes {
		out = append(out, Node{Code: code, Shift: shift})
	}
	slices.SortFunc(out, func(a, b Node) int {
		switch {
		case a.Code.Less(b.Code):
			return -1
		case b.Code.Less(a.Code):
			return 1
		}
		return 0
	})
	return out
}

// CorrectionAt interpolates the shift at p in degrees.
// All four nodes of the cell containing p must be present; otherwise an
// *OutOfGridError names the first missing corner.
func (g *Grid) CorrectionAt(p coord.LatLon) (coord.LatLon, error) {
	sw := mesh.Of(p)
	se, nw, ne := sw.Neighbors()

	var shifts [4]Shift
	for corner, code := range [4]mesh.Code{sw, se, nw, ne} {
		s, ok := g.nodes[code]
		if !ok {
			return coord.LatLon{}, &OutOfGridError{
				Grid:    g.name,
				Point:   p,
				Cell:    sw,
				Corner:  Corner(corner),
				Missing: code,
			}
		}
		shifts[corner] = s
	}

	fx, fy := sw.Fraction(p)
	lat := Bilinear(
		float64(shifts[SouthWest].Lat), float64(shifts[SouthEast].Lat),
		float64(shifts[NorthWest].Lat), float64(shifts[NorthEast].Lat),
		fx, fy)
	lon := Bilinear(
		float64(shifts[SouthWest].Lon), float64(shifts[SouthEast].Lon),
		float64(shifts[NorthWest].Lon), float64(shifts[NorthEast].Lon),
		fx, fy)

	return coord.FromSecs(lat*ShiftUnit, lon*ShiftUnit), nil
}
