package metrics

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// SystemMetrics holds one metrics snapshot
type SystemMetrics struct {
	CPUPercent        float64 // System-wide CPU usage (0-100%)
	ProcessCPUPercent float64 // Can exceed 100% on multi-core
	ProcessRSSMB      float64
	MemoryPercent     float64
	Counters          map[string]int64
	Timestamp         time.Time
}

// Collector periodically samples process and system usage and logs it
// together with registered counters
type Collector struct {
	interval time.Duration
	logger   *zap.Logger
	proc     *process.Process

	counterNames []string
	counters     []*atomic.Int64

	mu          sync.RWMutex
	lastMetrics *SystemMetrics
}

// NewCollector creates a new metrics collector
func NewCollector(interval time.Duration, logger *zap.Logger) *Collector {
	if interval < time.Second {
		interval = 30 * time.Second
	}

	proc, _ := process.NewProcess(int32(os.Getpid()))

	return &Collector{
		interval: interval,
		logger:   logger,
		proc:     proc,
	}
}

// Track adds a counter to every sample. Call before Start.
func (c *Collector) Track(name string, v *atomic.Int64) {
	c.counterNames = append(c.counterNames, name)
	c.counters = append(c.counters, v)
}

// Start begins periodic metrics collection. Returns when context is cancelled.
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// first sample initialises the CPU baselines
	c.collect()

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("Metrics collection stopped")
			return
		case <-ticker.C:
			c.log(c.collect())
		}
	}
}

// GetMetrics returns the last collected metrics
func (c *Collector) GetMetrics() *SystemMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastMetrics
}

func (c *Collector) collect() *SystemMetrics {
	m := &SystemMetrics{
		Counters:  make(map[string]int64, len(c.counters)),
		Timestamp: time.Now(),
	}

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		m.CPUPercent = pct[0]
	}
	if c.proc != nil {
		if pct, err := c.proc.Percent(0); err == nil {
			m.ProcessCPUPercent = pct
		}
		if info, err := c.proc.MemoryInfo(); err == nil {
			m.ProcessRSSMB = float64(info.RSS) / (1024 * 1024)
		}
	}
	if vmem, err := mem.VirtualMemory(); err == nil {
		m.MemoryPercent = vmem.UsedPercent
	}
	for i, name := range c.counterNames {
		m.Counters[name] = c.counters[i].Load()
	}

	c.mu.Lock()
	c.lastMetrics = m
	c.mu.Unlock()
	return m
}

func (c *Collector) log(m *SystemMetrics) {
	fields := []zap.Field{
		zap.Float64("sys_cpu", m.CPUPercent),
		zap.Float64("proc_cpu", m.ProcessCPUPercent),
		zap.String("rss", fmt.Sprintf("%.1f MB", m.ProcessRSSMB)),
		zap.Float64("mem_pct", m.MemoryPercent),
	}
	for _, name := range c.counterNames {
		fields = append(fields, zap.Int64(name, m.Counters[name]))
	}
	c.logger.Info("System metrics", fields...)
}
