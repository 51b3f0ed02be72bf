// Package metrics samples host and process resource usage while a build runs
// and logs it next to the build's own progress counters.
package metrics

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// SystemMetrics holds current system metrics snapshot
type SystemMetrics struct {
	CPUPercent        float64 // System-wide CPU usage (0-100%)
	ProcessCPUPercent float64 // Can exceed 100% on multi-core
	ProcessRSSMB      float64
	MemoryUsedGB      float64
	MemoryTotalGB     float64
	MemoryPercent     float64
	Counters          map[string]int64
	Timestamp         time.Time
}

// CounterFunc reports build progress counters to include in each sample.
type CounterFunc func() map[string]int64

// Collector periodically collects and logs system metrics
type Collector struct {
	interval    time.Duration
	logger      *zap.Logger
	proc        *process.Process
	counters    CounterFunc
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

// WithCounters attaches a progress source sampled alongside the system metrics.
func (c *Collector) WithCounters(fn CounterFunc) *Collector {
	c.counters = fn
	return c
}

// Start begins periodic metrics collection. Returns when context is cancelled.
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Collect()

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("Metrics collection stopped")
			return
		case <-ticker.C:
			c.Collect()
		}
	}
}

// GetMetrics returns the last collected metrics
func (c *Collector) GetMetrics() *SystemMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastMetrics
}

// Collect takes one sample, stores it and logs it.
func (c *Collector) Collect() *SystemMetrics {
	m := &SystemMetrics{Timestamp: time.Now()}

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		m.CPUPercent = pct[0]
	}

	if c.proc != nil {
		if pct, err := c.proc.Percent(0); err == nil {
			m.ProcessCPUPercent = pct
		}
		if info, err := c.proc.MemoryInfo(); err == nil && info != nil {
			m.ProcessRSSMB = float64(info.RSS) / (1024 * 1024)
		}
	}

	if vmem, err := mem.VirtualMemory(); err == nil {
		m.MemoryPercent = vmem.UsedPercent
		m.MemoryUsedGB = float64(vmem.Used) / (1024 * 1024 * 1024)
		m.MemoryTotalGB = float64(vmem.Total) / (1024 * 1024 * 1024)
	}

	if c.counters != nil {
		m.Counters = c.counters()
	}

	c.mu.Lock()
	c.lastMetrics = m
	c.mu.Unlock()

	fields := []zap.Field{
		zap.Float64("sys_cpu", m.CPUPercent),
		zap.Float64("proc_cpu", m.ProcessCPUPercent),
		zap.String("proc_rss", fmt.Sprintf("%.1f MB", m.ProcessRSSMB)),
		zap.Float64("mem_pct", m.MemoryPercent),
		zap.String("mem_used", fmt.Sprintf("%.1f GB", m.MemoryUsedGB)),
	}
	for name, v := range m.Counters {
		fields = append(fields, zap.Int64(name, v))
	}
	c.logger.Info("System metrics", fields...)
	return m
}
