package nodeindex

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/wegman-software/osm2tiles-go/internal/proj"
)

func testIndex(t *testing.T, idx Index, maxID int64) {
	t.Helper()

	points := map[int64]proj.MeterPoint{
		1:         proj.GeoToMeter(7.4246, 43.7384),
		2:         proj.GeoToMeter(-0.1278, 51.5074),
		maxID - 1: proj.GeoToMeter(0, 0),
		// x == 0 at the antimeridian
		42: proj.GeoToMeter(-180, 10),
	}

	for id, p := range points {
		if err := idx.Put(id, p); err != nil {
			t.Fatalf("Put(%d): %v", id, err)
		}
	}

	for id, want := range points {
		got, ok := idx.Get(id)
		if !ok {
			t.Errorf("Get(%d) not found", id)
			continue
		}
		if got != want {
			t.Errorf("Get(%d) = %+v, want %+v", id, got, want)
		}
	}

	if _, ok := idx.Get(3); ok {
		t.Errorf("Get(3) found a node that was never written")
	}
	if idx.Len() != int64(len(points)) {
		t.Errorf("Len() = %d, want %d", idx.Len(), len(points))
	}

	// Overwriting does not change the count.
	if err := idx.Put(1, proj.MeterPoint{X: 5, Y: 6}); err != nil {
		t.Fatal(err)
	}
	if got, _ := idx.Get(1); got != (proj.MeterPoint{X: 5, Y: 6}) {
		t.Errorf("Get(1) after overwrite = %+v", got)
	}
	if idx.Len() != int64(len(points)) {
		t.Errorf("Len() after overwrite = %d, want %d", idx.Len(), len(points))
	}
}

func TestMemoryIndex(t *testing.T) {
	idx := NewMemoryIndex()
	defer idx.Close()

	testIndex(t, idx, 1<<40)

	if err := idx.Put(-7, proj.MeterPoint{X: 1, Y: 2}); err != nil {
		t.Errorf("Put(-7): %v", err)
	}
	if _, ok := idx.Get(-7); !ok {
		t.Errorf("negative id not stored")
	}
}

func TestFlatIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodes.bin")
	const capacity = 4096

	idx, err := NewFlatIndex(path, capacity)
	if err != nil {
		t.Fatalf("NewFlatIndex: %v", err)
	}

	testIndex(t, idx, capacity)

	if err := idx.Sync(); err != nil {
		t.Errorf("Sync: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != capacity*entrySize {
		t.Errorf("file size = %d, want %d", info.Size(), capacity*entrySize)
	}
}

func TestFlatIndexOutOfRange(t *testing.T) {
	idx, err := NewFlatIndex(filepath.Join(t.TempDir(), "nodes.bin"), 16)
	if err != nil {
		t.Fatalf("NewFlatIndex: %v", err)
	}
	defer idx.Close()

	for _, id := range []int64{-1, 16, 1 << 40} {
		if err := idx.Put(id, proj.MeterPoint{X: 1, Y: 1}); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("Put(%d) error = %v, want ErrOutOfRange", id, err)
		}
		if _, ok := idx.Get(id); ok {
			t.Errorf("Get(%d) found a node", id)
		}
	}
}
