package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wegman-software/jgd-go/internal/coord"
	"github.com/wegman-software/jgd-go/internal/proj"
)

// InputRow is one CSV input record. Angles are decimal degrees or D:M:S.
type InputRow struct {
	ID  string `csv:"id"`
	Lat string `csv:"lat"`
	Lon string `csv:"lon"`
}

// Status of a converted row
type Status string

const (
	StatusOK      Status = "ok"
	StatusInvalid Status = "invalid_input"
)

// StatusOf maps a conversion error to a row status
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	var terr *proj.TransformError
	if errors.As(err, &terr) {
		return Status(terr.Kind.String())
	}
	return StatusInvalid
}

// Result is one row after conversion. Point is only meaningful when
// Status is StatusOK, Source only when HasSource is true.
type Result struct {
	ID     string
	Source coord.LatLon
	Point  coord.LatLon
	From   proj.Datum
	To     proj.Datum
	Status Status
	Err    error
}

// OK reports whether the row converted
func (r Result) OK() bool {
	return r.Status == StatusOK
}

// HasSource reports whether the input row parsed to a usable coordinate
func (r Result) HasSource() bool {
	return r.Status != StatusInvalid
}

// Sink receives converted rows in input order
type Sink interface {
	Write(ctx context.Context, results []Result) error
	Close() error
}

// RowError identifies the input row that stopped a batch
type RowError struct {
	Line int // 1-based CSV line, header is line 1
	ID   string
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d (id %q): %v", e.Line, e.ID, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// Stats holds batch statistics
type Stats struct {
	Rows      int64
	Converted int64
	Failed    int64 // written with an error status
	Skipped   int64
	Duration  time.Duration
}
