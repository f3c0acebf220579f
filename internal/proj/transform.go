// Package proj converts coordinates between the Tokyo Datum, JGD2000
// and JGD2011 by chaining GSI correction grids.
//
// Grids are only published for adjacent datum pairs, so Tokyo <-> JGD2011
// always passes through JGD2000:
//
//	Tokyo --TKY2JGD--> JGD2000 --PatchJGD--> JGD2011
//
// Forward steps add the interpolated shift. Inverse steps solve
// q + shift(q) = p by fixed-point iteration on the forward grid, since
// no inverse grids are published.
package proj

import (
	"errors"
	"fmt"

	"github.com/wegman-software/jgd-go/internal/coord"
	"github.com/wegman-software/jgd-go/internal/grid"
)

// Inverse iteration defaults
const (
	DefaultTolerance     = 1e-5 // arc-seconds
	DefaultMaxIterations = 10
)

// Coordinate is a position tagged with its datum
type Coordinate struct {
	coord.LatLon
	Datum Datum
}

// TokyoCoord returns p tagged as Tokyo Datum
func TokyoCoord(p coord.LatLon) Coordinate { return Coordinate{LatLon: p, Datum: Tokyo} }

// JGD2000Coord returns p tagged as JGD2000
func JGD2000Coord(p coord.LatLon) Coordinate { return Coordinate{LatLon: p, Datum: JGD2000} }

// JGD2011Coord returns p tagged as JGD2011
func JGD2011Coord(p coord.LatLon) Coordinate { return Coordinate{LatLon: p, Datum: JGD2011} }

// Step is one grid application between adjacent datums.
// Forward applies From -> To; Inverse applies To -> From.
type Step struct {
	From Datum
	To   Datum
	Grid *grid.Grid
}

// Chain converts between datums. It is immutable and safe for
// concurrent use.
type Chain struct {
	steps         [2]Step // Tokyo->JGD2000, JGD2000->JGD2011
	tolerance     float64 // degrees
	maxIterations int
}

// ChainOption configures a Chain
type ChainOption func(*Chain)

// WithTolerance sets the inverse convergence threshold in arc-seconds
func WithTolerance(secs float64) ChainOption {
	return func(c *Chain) {
		if secs > 0 {
			c.tolerance = secs / coord.SecsInDeg
		}
	}
}

// WithMaxIterations bounds the inverse iteration count
func WithMaxIterations(n int) ChainOption {
	return func(c *Chain) {
		if n > 0 {
			c.maxIterations = n
		}
	}
}

// NewChain creates a chain from the TKY2JGD and PatchJGD grids.
// Either may be nil; steps that need a missing grid fail with
// GridNotLoaded.
func NewChain(tky2jgd, patchjgd *grid.Grid, opts ...ChainOption) *Chain {
	c := &Chain{
		steps: [2]Step{
			{From: Tokyo, To: JGD2000, Grid: tky2jgd},
			{From: JGD2000, To: JGD2011, Grid: patchjgd},
		},
		tolerance:     DefaultTolerance / coord.SecsInDeg,
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Path returns the steps applied between from and to, in application
// order. Steps with From > To in the result are applied inversely.
func (c *Chain) Path(from, to Datum) []Step {
	var path []Step
	if from < to {
		for i := from; i < to; i++ {
			path = append(path, c.steps[i])
		}
	} else {
		for i := from; i > to; i-- {
			s := c.steps[i-1]
			path = append(path, Step{From: s.To, To: s.From, Grid: s.Grid})
		}
	}
	return path
}

// Transform converts c to the target datum
func (c *Chain) Transform(in Coordinate, to Datum) (Coordinate, error) {
	out, err := c.TransformLatLon(in.LatLon, in.Datum, to)
	if err != nil {
		return Coordinate{}, err
	}
	return Coordinate{LatLon: out, Datum: to}, nil
}

// TransformLatLon converts p from one datum to another. The first failing
// step stops the conversion.
func (c *Chain) TransformLatLon(p coord.LatLon, from, to Datum) (coord.LatLon, error) {
	if !from.Valid() || !to.Valid() {
		return coord.LatLon{}, errors.New("unknown datum")
	}
	if err := p.Validate(); err != nil {
		return coord.LatLon{}, err
	}

	for _, step := range c.Path(from, to) {
		var err error
		if step.From < step.To {
			p, err = c.forward(step, p)
		} else {
			p, err = c.inverse(step, p)
		}
		if err != nil {
			return coord.LatLon{}, err
		}
	}
	return p, nil
}

func (c *Chain) forward(step Step, p coord.LatLon) (coord.LatLon, error) {
	if step.Grid == nil {
		return coord.LatLon{}, &TransformError{Kind: GridNotLoaded, From: step.From, To: step.To}
	}
	shift, err := step.Grid.CorrectionAt(p)
	if err != nil {
		return coord.LatLon{}, &TransformError{Kind: OutOfCoverage, From: step.From, To: step.To, Err: err}
	}
	return p.Add(shift), nil
}

// inverse finds q with q + shift(q) = p
func (c *Chain) inverse(step Step, p coord.LatLon) (coord.LatLon, error) {
	if step.Grid == nil {
		return coord.LatLon{}, &TransformError{Kind: GridNotLoaded, From: step.From, To: step.To}
	}

	q := p
	for i := 0; i < c.maxIterations; i++ {
		shift, err := step.Grid.CorrectionAt(q)
		if err != nil {
			return coord.LatLon{}, &TransformError{Kind: OutOfCoverage, From: step.From, To: step.To, Err: err}
		}
		next := p.Sub(shift)
		if next.MaxAbsDiff(q) < c.tolerance {
			return next, nil
		}
		q = next
	}

	return coord.LatLon{}, &TransformError{
		Kind: NoIterativeConvergence,
		From: step.From,
		To:   step.To,
		Err:  &convergenceError{iterations: c.maxIterations, tolerance: c.tolerance * coord.SecsInDeg},
	}
}

type convergenceError struct {
	iterations int
	tolerance  float64
}

func (e *convergenceError) Error() string {
	return fmt.Sprintf("no convergence within %d iterations at %g arc-second tolerance", e.iterations, e.tolerance)
}
