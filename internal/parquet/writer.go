package parquet

import (
	"context"
	"os"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"

	"github.com/wegman-software/jgd-go/internal/pipeline"
	"github.com/wegman-software/jgd-go/internal/wkb"
)

// PointSchema is the column layout of converted point files.
// Converted coordinates and geometry are null for failed rows.
var PointSchema = arrow.NewSchema([]arrow.Field{
	{Name: "id", Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: "lat", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "lon", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "src_lat", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "src_lon", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "datum", Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: "status", Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: "geom_wkb", Type: arrow.BinaryTypes.Binary, Nullable: true},
}, nil)

// PointWriter writes converted points to Parquet with EWKB geometry.
// It implements pipeline.Sink.
type PointWriter struct {
	writer    *pqarrow.FileWriter
	builder   *array.RecordBuilder
	encoders  map[int]*wkb.Encoder // by SRID
	batchSize int
	count     int
}

// NewPointWriter creates a new point Parquet writer
func NewPointWriter(path string, batchSize int) (*PointWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Zstd),
		parquet.WithDictionaryDefault(false),
	)

	writer, err := pqarrow.NewFileWriter(PointSchema, f, writerProps, pqarrow.DefaultWriterProps())
	if err != nil {
		f.Close()
		return nil, err
	}

	if batchSize < 1 {
		batchSize = 10000
	}

	return &PointWriter{
		writer:    writer,
		builder:   array.NewRecordBuilder(memory.DefaultAllocator, PointSchema),
		encoders:  make(map[int]*wkb.Encoder),
		batchSize: batchSize,
	}, nil
}

// Write appends results, flushing a row group every batchSize rows
func (w *PointWriter) Write(_ context.Context, results []pipeline.Result) error {
	for _, r := range results {
		w.builder.Field(0).(*array.StringBuilder).Append(r.ID)
		if r.OK() {
			w.builder.Field(1).(*array.Float64Builder).Append(r.Point.Lat)
			w.builder.Field(2).(*array.Float64Builder).Append(r.Point.Lon)
		} else {
			w.builder.Field(1).(*array.Float64Builder).AppendNull()
			w.builder.Field(2).(*array.Float64Builder).AppendNull()
		}
		if r.HasSource() {
			w.builder.Field(3).(*array.Float64Builder).Append(r.Source.Lat)
			w.builder.Field(4).(*array.Float64Builder).Append(r.Source.Lon)
		} else {
			w.builder.Field(3).(*array.Float64Builder).AppendNull()
			w.builder.Field(4).(*array.Float64Builder).AppendNull()
		}
		w.builder.Field(5).(*array.StringBuilder).Append(r.To.String())
		w.builder.Field(6).(*array.StringBuilder).Append(string(r.Status))
		if r.OK() {
			w.builder.Field(7).(*array.BinaryBuilder).Append(w.encoder(r.To.EPSG()).EncodePoint(r.Point))
		} else {
			w.builder.Field(7).(*array.BinaryBuilder).AppendNull()
		}

		w.count++
		if w.count >= w.batchSize {
			if err := w.flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *PointWriter) encoder(srid int) *wkb.Encoder {
	e, ok := w.encoders[srid]
	if !ok {
		e = wkb.NewEncoder(srid)
		w.encoders[srid] = e
	}
	return e
}

func (w *PointWriter) flush() error {
	if w.count == 0 {
		return nil
	}
	rec := w.builder.NewRecord()
	defer rec.Release()
	err := w.writer.Write(rec)
	w.count = 0
	return err
}

// Close flushes pending rows and closes the file
func (w *PointWriter) Close() error {
	defer w.builder.Release()
	if err := w.flush(); err != nil {
		w.writer.Close()
		return err
	}
	// FileWriter.Close closes the underlying file as well
	return w.writer.Close()
}
