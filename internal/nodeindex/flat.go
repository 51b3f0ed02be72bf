package nodeindex

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/wegman-software/osm2tiles-go/internal/proj"
)

const (
	// Each node entry: x (float64) + y (float64) = 16 bytes
	entrySize = 16

	// DefaultFlatCapacity covers every node id currently issued by openstreetmap.org.
	DefaultFlatCapacity = 13_000_000_000

	signBit = 1 << 63
)

// FlatIndex is a memory-mapped node coordinate file.
// Node coordinates are stored at offset = nodeID * 16, giving O(1) lookup.
// The file is sparse, so disk usage grows only with the pages written.
type FlatIndex struct {
	file     *os.File
	data     mmap.MMap
	capacity int64
	count    int64
}

// NewFlatIndex creates (or truncates) path and maps room for ids in
// [0, capacity). A capacity <= 0 selects DefaultFlatCapacity.
func NewFlatIndex(path string, capacity int64) (*FlatIndex, error) {
	if capacity <= 0 {
		capacity = DefaultFlatCapacity
	}
	size := capacity * entrySize

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create flat nodes file: %w", err)
	}

	// Truncate to full size (creates sparse file on Linux)
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to truncate flat nodes file: %w", err)
	}

	data, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to mmap flat nodes file: %w", err)
	}

	return &FlatIndex{
		file:     f,
		data:     data,
		capacity: capacity,
	}, nil
}

// Put stores a node's coordinates.
// The x sign bit is flipped on write so an untouched (zero) entry never
// decodes as a stored coordinate; projected x is never -0.
func (f *FlatIndex) Put(id int64, p proj.MeterPoint) error {
	if id < 0 || id >= f.capacity {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfRange, id, f.capacity)
	}

	offset := id * entrySize
	if binary.LittleEndian.Uint64(f.data[offset:]) == 0 {
		f.count++
	}
	binary.LittleEndian.PutUint64(f.data[offset:], math.Float64bits(p.X)^signBit)
	binary.LittleEndian.PutUint64(f.data[offset+8:], math.Float64bits(p.Y))
	return nil
}

// Get retrieves a node's coordinates
func (f *FlatIndex) Get(id int64) (proj.MeterPoint, bool) {
	if id < 0 || id >= f.capacity {
		return proj.MeterPoint{}, false
	}

	offset := id * entrySize
	xbits := binary.LittleEndian.Uint64(f.data[offset:])
	if xbits == 0 {
		return proj.MeterPoint{}, false
	}

	return proj.MeterPoint{
		X: math.Float64frombits(xbits ^ signBit),
		Y: math.Float64frombits(binary.LittleEndian.Uint64(f.data[offset+8:])),
	}, true
}

// Len returns the number of distinct nodes written.
func (f *FlatIndex) Len() int64 {
	return f.count
}

// Sync flushes changes to disk
func (f *FlatIndex) Sync() error {
	return f.data.Flush()
}

// Close unmaps and closes the file. The file itself is left in place.
func (f *FlatIndex) Close() error {
	if err := f.data.Unmap(); err != nil {
		f.file.Close()
		return fmt.Errorf("failed to unmap flat nodes file: %w", err)
	}
	return f.file.Close()
}
