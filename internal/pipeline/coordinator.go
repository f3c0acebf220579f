package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/gocarina/gocsv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wegman-software/jgd-go/internal/config"
	"github.com/wegman-software/jgd-go/internal/coord"
	"github.com/wegman-software/jgd-go/internal/logger"
	"github.com/wegman-software/jgd-go/internal/metrics"
	"github.com/wegman-software/jgd-go/internal/proj"
)

// Coordinator converts CSV batches concurrently and writes the results
// to a sink in input order
type Coordinator struct {
	cfg   *config.Config
	chain *proj.Chain
	from  proj.Datum
	to    proj.Datum

	converted atomic.Int64
	failed    atomic.Int64
	skipped   atomic.Int64
}

// NewCoordinator creates a new batch coordinator
func NewCoordinator(cfg *config.Config, chain *proj.Chain, from, to proj.Datum) *Coordinator {
	return &Coordinator{
		cfg:   cfg,
		chain: chain,
		from:  from,
		to:    to,
	}
}

// StreamRows decodes CSV input with an id,lat,lon header in the
// background. The row channel is closed at end of input or on the first
// decode error, after which the error channel yields exactly one value.
// Callers that stop early must keep draining rows.
func StreamRows(r io.Reader) (<-chan *InputRow, <-chan error) {
	rows := make(chan *InputRow, 1024)
	errc := make(chan error, 1)
	go func() {
		err := gocsv.UnmarshalToChan(r, rows)
		if errors.Is(err, io.EOF) {
			err = nil // empty input
		}
		if err != nil {
			err = fmt.Errorf("failed to parse csv input: %w", err)
		}
		errc <- err
	}()
	return rows, errc
}

// Run streams rows from in, converts them and writes the results to
// sink. The sink is not closed.
func (c *Coordinator) Run(ctx context.Context, in io.Reader, sink Sink) (*Stats, error) {
	log := logger.Named("batch")
	start := time.Now()

	counter := &countingReader{r: in}
	rows, readErr := StreamRows(counter)
	defer func() {
		go func() {
			for range rows {
			}
		}()
	}()

	if c.cfg.MetricsInterval > 0 {
		metricsCtx, cancelMetrics := context.WithCancel(ctx)
		defer cancelMetrics()

		collector := metrics.NewCollector(c.cfg.MetricsInterval, log)
		collector.Track("converted", &c.converted)
		collector.Track("failed", &c.failed)
		collector.Track("skipped", &c.skipped)
		go collector.Start(metricsCtx)
	}

	log.Info("Starting batch conversion",
		zap.Stringer("from", c.from),
		zap.Stringer("to", c.to),
		zap.Int("workers", c.cfg.Workers),
		zap.Int("batch_size", c.cfg.BatchSize),
		zap.String("on_error", string(c.cfg.OnError)))

	batchSize := max(c.cfg.BatchSize, 1)
	workers := max(c.cfg.Workers, 1)
	// the row total is unknown while streaming, so completion is
	// estimated from bytes read when the input size is known
	rowProgress := NewProgressTracker(0, "rows")
	byteProgress := NewProgressTracker(inputSize(in), "bytes")

	// A window holds one chunk per worker. Chunks convert concurrently and
	// are written in order once the whole window is done.
	window := make([]*InputRow, 0, batchSize*workers)
	var offset int
	flush := func() error {
		if len(window) == 0 {
			return nil
		}
		chunks, err := c.convertWindow(ctx, window, offset, batchSize)
		if err != nil {
			return err
		}
		for _, chunk := range chunks {
			if len(chunk) == 0 {
				continue
			}
			if err := sink.Write(ctx, chunk); err != nil {
				return fmt.Errorf("failed to write results: %w", err)
			}
		}
		offset += len(window)
		window = window[:0]

		p := rowProgress.Calculate(int64(offset))
		fields := []zap.Field{
			zap.Int64("rows", p.Current),
			zap.String("rate", FormatThroughput(p.Throughput)),
		}
		if b := byteProgress.Calculate(counter.n.Load()); b.Total > 0 {
			fields = append(fields,
				zap.String("percent", fmt.Sprintf("%.1f%%", b.Percentage)),
				zap.String("eta", FormatETA(b.ETA)))
		}
		log.Info("Conversion progress", fields...)
		return nil
	}

	for row := range rows {
		window = append(window, row)
		if len(window) == cap(window) {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := <-readErr; err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}

	stats := &Stats{
		Rows:      int64(offset),
		Converted: c.converted.Load(),
		Failed:    c.failed.Load(),
		Skipped:   c.skipped.Load(),
		Duration:  time.Since(start),
	}
	log.Info("Batch conversion complete",
		zap.Int64("rows", stats.Rows),
		zap.Int64("converted", stats.Converted),
		zap.Int64("failed", stats.Failed),
		zap.Int64("skipped", stats.Skipped),
		zap.Duration("duration", stats.Duration))
	return stats, nil
}

// convertWindow splits rows into batchSize chunks converted in parallel.
// offset is the index of rows[0] in the whole input.
func (c *Coordinator) convertWindow(ctx context.Context, rows []*InputRow, offset, batchSize int) ([][]Result, error) {
	chunks := make([][]Result, (len(rows)+batchSize-1)/batchSize)

	g, gctx := errgroup.WithContext(ctx)
	for i := range chunks {
		i := i
		lo := i * batchSize
		hi := min(lo+batchSize, len(rows))
		g.Go(func() error {
			results, err := c.convertChunk(gctx, rows[lo:hi], offset+lo)
			chunks[i] = results
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return chunks, nil
}

// convertChunk converts rows applying the error policy. first is the
// index of rows[0] in the whole input.
func (c *Coordinator) convertChunk(ctx context.Context, rows []*InputRow, first int) ([]Result, error) {
	results := make([]Result, 0, len(rows))
	for i, row := range rows {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		res := c.Convert(row)
		if res.OK() {
			c.converted.Add(1)
			results = append(results, res)
			continue
		}

		switch c.cfg.OnError {
		case config.OnErrorSkip:
			c.skipped.Add(1)
		case config.OnErrorKeep:
			c.failed.Add(1)
			results = append(results, res)
		default:
			return nil, &RowError{Line: first + i + 2, ID: row.ID, Err: res.Err}
		}
	}
	return results, nil
}

// Convert converts a single input row
func (c *Coordinator) Convert(row *InputRow) Result {
	res := Result{ID: row.ID, From: c.from, To: c.to}

	lat, err := coord.ParseAngle(row.Lat)
	if err != nil {
		res.Status, res.Err = StatusInvalid, fmt.Errorf("lat: %w", err)
		return res
	}
	lon, err := coord.ParseAngle(row.Lon)
	if err != nil {
		res.Status, res.Err = StatusInvalid, fmt.Errorf("lon: %w", err)
		return res
	}
	res.Source = coord.New(lat, lon)

	res.Point, res.Err = c.chain.TransformLatLon(res.Source, c.from, c.to)
	res.Status = StatusOf(res.Err)
	return res
}
