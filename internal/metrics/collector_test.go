package metrics

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewCollectorInterval(t *testing.T) {
	c := NewCollector(10*time.Millisecond, zap.NewNop())
	if c.interval != 30*time.Second {
		t.Errorf("interval = %v, want 30s for sub-second input", c.interval)
	}
	c = NewCollector(5*time.Second, zap.NewNop())
	if c.interval != 5*time.Second {
		t.Errorf("interval = %v, want 5s", c.interval)
	}
}

func TestCollectLogsCounters(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	c := NewCollector(time.Second, zap.New(core)).WithCounters(func() map[string]int64 {
		return map[string]int64{"ways": 42}
	})

	m := c.Collect()
	if m.Counters["ways"] != 42 {
		t.Errorf("Counters[ways] = %d, want 42", m.Counters["ways"])
	}
	if c.GetMetrics() != m {
		t.Errorf("GetMetrics did not return the last sample")
	}
	if logs.Len() != 1 {
		t.Fatalf("logged %d entries, want 1", logs.Len())
	}
	if got := logs.All()[0].ContextMap()["ways"]; got != int64(42) {
		t.Errorf("ways field = %v, want 42", got)
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	c := NewCollector(time.Hour, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Start(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	if c.GetMetrics() == nil {
		t.Errorf("no sample taken on start")
	}
}
