package pipeline

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"
)

// ProgressTracker tracks progress for long-running operations
type ProgressTracker struct {
	total       int64
	startTime   time.Time
	description string
}

// NewProgressTracker creates a new progress tracker for total items
func NewProgressTracker(total int64, description string) *ProgressTracker {
	return &ProgressTracker{
		total:       total,
		startTime:   time.Now(),
		description: description,
	}
}

// Progress holds current progress information
type Progress struct {
	Current     int64
	Total       int64
	Percentage  float64
	Elapsed     time.Duration
	ETA         time.Duration
	Throughput  float64 // units per second
	Description string
}

// Calculate returns current progress metrics given the items processed
func (p *ProgressTracker) Calculate(current int64) Progress {
	return p.calculateAt(current, time.Since(p.startTime))
}

func (p *ProgressTracker) calculateAt(current int64, elapsed time.Duration) Progress {
	var percentage, throughput float64
	var eta time.Duration

	if elapsed.Seconds() > 0 {
		throughput = float64(current) / elapsed.Seconds()
	}
	if p.total > 0 && current > 0 {
		percentage = float64(current) / float64(p.total) * 100
		if percentage < 100 && throughput > 0 {
			eta = time.Duration(float64(p.total-current) / throughput * float64(time.Second))
		}
	}

	return Progress{
		Current:     current,
		Total:       p.total,
		Percentage:  percentage,
		Elapsed:     elapsed.Round(time.Second),
		ETA:         eta.Round(time.Second),
		Throughput:  throughput,
		Description: p.description,
	}
}

// countingReader counts bytes consumed so streamed input can report
// progress against its size
type countingReader struct {
	r io.Reader
	n atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}

// inputSize returns the size of r when it is a regular file, else 0
func inputSize(r io.Reader) int64 {
	f, ok := r.(interface{ Stat() (os.FileInfo, error) })
	if !ok {
		return 0
	}
	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		return 0
	}
	return info.Size()
}

// FormatETA formats the ETA duration in a human-readable format
func FormatETA(d time.Duration) string {
	if d <= 0 {
		return "calculating..."
	}

	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// FormatThroughput formats throughput as human-readable items per second
func FormatThroughput(itemsPerSec float64) string {
	if itemsPerSec >= 1_000_000 {
		return fmt.Sprintf("%.1fM/s", itemsPerSec/1_000_000)
	}
	if itemsPerSec >= 1_000 {
		return fmt.Sprintf("%.1fK/s", itemsPerSec/1_000)
	}
	return fmt.Sprintf("%.0f/s", itemsPerSec)
}
