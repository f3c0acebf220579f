package pipeline

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"

	"github.com/gocarina/gocsv"
)

type csvRecord struct {
	ID     string `csv:"id"`
	Lat    string `csv:"lat"`
	Lon    string `csv:"lon"`
	SrcLat string `csv:"src_lat"`
	SrcLon string `csv:"src_lon"`
	Datum  string `csv:"datum"`
	Status string `csv:"status"`
	Error  string `csv:"error"`
}

// CSVSink writes results as CSV with a header row
type CSVSink struct {
	w           io.Writer
	out         *gocsv.SafeCSVWriter
	wroteHeader bool
}

// NewCSVSink creates a CSV sink. If w is an io.Closer it is closed by Close.
func NewCSVSink(w io.Writer) *CSVSink {
	return &CSVSink{
		w:   w,
		out: gocsv.NewSafeCSVWriter(csv.NewWriter(w)),
	}
}

// Write appends results
func (s *CSVSink) Write(_ context.Context, results []Result) error {
	records := make([]*csvRecord, len(results))
	for i, r := range results {
		records[i] = toCSVRecord(r)
	}
	return s.marshal(records)
}

func (s *CSVSink) marshal(records []*csvRecord) error {
	if s.wroteHeader {
		return gocsv.MarshalCSVWithoutHeaders(records, s.out)
	}
	s.wroteHeader = true
	return gocsv.MarshalCSV(records, s.out)
}

// Close writes the header if nothing was written, then flushes
func (s *CSVSink) Close() error {
	if !s.wroteHeader {
		if err := s.marshal([]*csvRecord{}); err != nil {
			return err
		}
	}
	s.out.Flush()
	if err := s.out.Error(); err != nil {
		return err
	}
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func toCSVRecord(r Result) *csvRecord {
	rec := &csvRecord{
		ID:     r.ID,
		Datum:  r.To.String(),
		Status: string(r.Status),
	}
	if r.HasSource() {
		rec.SrcLat = formatDegrees(r.Source.Lat)
		rec.SrcLon = formatDegrees(r.Source.Lon)
	}
	if r.OK() {
		rec.Lat = formatDegrees(r.Point.Lat)
		rec.Lon = formatDegrees(r.Point.Lon)
	} else if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	return rec
}

// formatDegrees uses nine decimals, well below GSI grid accuracy
func formatDegrees(v float64) string {
	return strconv.FormatFloat(v, 'f', 9, 64)
}
