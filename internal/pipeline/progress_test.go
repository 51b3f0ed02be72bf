package pipeline

import (
	"testing"
	"time"
)

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{
		0:          "0 B",
		512:        "512 B",
		2048:       "2.0 KB",
		5 << 20:    "5.0 MB",
		3 << 30:    "3.0 GB",
		1536 << 30: "1.5 TB",
	}
	for in, want := range tests {
		if got := FormatBytes(in); got != want {
			t.Errorf("FormatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatThroughput(t *testing.T) {
	tests := map[float64]string{
		12:        "12/s",
		2500:      "2.5K/s",
		3_200_000: "3.2M/s",
	}
	for in, want := range tests {
		if got := FormatThroughput(in); got != want {
			t.Errorf("FormatThroughput(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatETA(t *testing.T) {
	tests := map[time.Duration]string{
		0:                                         "calculating...",
		42 * time.Second:                          "42s",
		3*time.Minute + 5*time.Second:             "3m 5s",
		2*time.Hour + 7*time.Minute + time.Second: "2h 7m 1s",
	}
	for in, want := range tests {
		if got := FormatETA(in); got != want {
			t.Errorf("FormatETA(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestProgressCalculate(t *testing.T) {
	p := NewProgressTracker(1000, "Ingest")
	p.startTime = time.Now().Add(-10 * time.Second)

	s := p.Calculate(500, 250)
	if s.Percentage != 25 {
		t.Errorf("Percentage = %v, want 25", s.Percentage)
	}
	if s.ETA < 29*time.Second || s.ETA > 31*time.Second {
		t.Errorf("ETA = %v, want about 30s", s.ETA)
	}
	if s.Throughput < 49 || s.Throughput > 51 {
		t.Errorf("Throughput = %v, want about 50", s.Throughput)
	}

	done := p.Calculate(500, 1000)
	if done.Percentage != 100 || done.ETA != 0 {
		t.Errorf("complete sample = %+v, want 100%% and no ETA", done)
	}
}
