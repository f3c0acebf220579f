package proj

import (
	"errors"
	"fmt"
)

// ErrorKind classifies transform failures
type ErrorKind int

const (
	// OutOfCoverage means a step's grid has no cell around the point
	OutOfCoverage ErrorKind = iota + 1
	// NoIterativeConvergence means an inverse step did not converge
	NoIterativeConvergence
	// GridNotLoaded means the chain was built without the step's grid
	GridNotLoaded
)

func (k ErrorKind) String() string {
	switch k {
	case OutOfCoverage:
		return "out_of_coverage"
	case NoIterativeConvergence:
		return "no_convergence"
	case GridNotLoaded:
		return "grid_not_loaded"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Sentinels matched by TransformError.Is
var (
	ErrOutOfCoverage = errors.New("outside correction grid coverage")
	ErrNoConvergence = errors.New("inverse transform did not converge")
	ErrGridNotLoaded = errors.New("correction grid not loaded")
)

// TransformError reports which step of a chain failed.
// For OutOfCoverage, Err is the underlying *grid.OutOfGridError.
type TransformError struct {
	Kind ErrorKind
	From Datum // step source
	To   Datum // step target
	Err  error
}

func (e *TransformError) Error() string {
	msg := fmt.Sprintf("%s -> %s: %s", e.From, e.To, e.sentinel())
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransformError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error kind
func (e *TransformError) Is(target error) bool {
	return target == e.sentinel()
}

func (e *TransformError) sentinel() error {
	switch e.Kind {
	case OutOfCoverage:
		return ErrOutOfCoverage
	case NoIterativeConvergence:
		return ErrNoConvergence
	case GridNotLoaded:
		return ErrGridNotLoaded
	}
	return nil
}
