package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ProgressTracker estimates completion of a pass over an input file from
// the bytes consumed so far.
type ProgressTracker struct {
	totalBytes  int64
	startTime   time.Time
	description string
}

// NewProgressTracker creates a new progress tracker
func NewProgressTracker(totalBytes int64, description string) *ProgressTracker {
	return &ProgressTracker{
		totalBytes:  totalBytes,
		startTime:   time.Now(),
		description: description,
	}
}

// Progress is one progress sample.
type Progress struct {
	Records    int64
	Bytes      int64
	Total      int64
	Percentage float64
	Elapsed    time.Duration
	ETA        time.Duration
	Throughput float64 // records per second
}

// Calculate returns a sample for the given record count and byte offset.
func (p *ProgressTracker) Calculate(records, bytes int64) Progress {
	elapsed := time.Since(p.startTime)
	out := Progress{
		Records: records,
		Bytes:   bytes,
		Total:   p.totalBytes,
		Elapsed: elapsed.Round(time.Second),
	}

	if secs := elapsed.Seconds(); secs > 0 {
		out.Throughput = float64(records) / secs
		if p.totalBytes > 0 && bytes > 0 {
			out.Percentage = min(float64(bytes)/float64(p.totalBytes)*100, 100)
			if bytes < p.totalBytes {
				remaining := float64(p.totalBytes-bytes) / (float64(bytes) / secs)
				out.ETA = (time.Duration(remaining) * time.Second).Round(time.Second)
			}
		}
	}
	return out
}

// Log writes the sample at debug level.
func (p *ProgressTracker) Log(log *zap.Logger, records, bytes int64) {
	s := p.Calculate(records, bytes)
	log.Debug(p.description+" progress",
		zap.Int64("records", s.Records),
		zap.String("processed", FormatBytes(s.Bytes)),
		zap.String("total", FormatBytes(s.Total)),
		zap.String("percent", fmt.Sprintf("%.1f%%", s.Percentage)),
		zap.String("throughput", FormatThroughput(s.Throughput)),
		zap.String("eta", FormatETA(s.ETA)))
}

// Run logs a sample every interval until ctx is done.
func (p *ProgressTracker) Run(ctx context.Context, log *zap.Logger, interval time.Duration, records, bytes func() int64) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Log(log, records(), bytes())
		}
	}
}

// FormatETA formats the ETA duration in a human-readable format
func FormatETA(d time.Duration) string {
	if d <= 0 {
		return "calculating..."
	}
	d = d.Round(time.Second)
	h, m, s := int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// FormatThroughput formats throughput as human-readable items per second
func FormatThroughput(perSec float64) string {
	switch {
	case perSec >= 1e6:
		return fmt.Sprintf("%.1fM/s", perSec/1e6)
	case perSec >= 1e3:
		return fmt.Sprintf("%.1fK/s", perSec/1e3)
	}
	return fmt.Sprintf("%.0f/s", perSec)
}

// FormatBytes formats bytes in a human-readable format
func FormatBytes(bytes int64) string {
	units := []string{"B", "KB", "MB", "GB", "TB"}
	v := float64(bytes)
	i := 0
	for v >= 1024 && i < len(units)-1 {
		v /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d B", bytes)
	}
	return fmt.Sprintf("%.1f %s", v, units[i])
}
