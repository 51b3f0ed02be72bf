// Package nodeindex stores projected node coordinates by node id while ways
// are resolved.
package nodeindex

import (
	"errors"

	"github.com/wegman-software/osm2tiles-go/internal/proj"
)

// ErrOutOfRange is returned when a node id cannot be addressed by the index.
var ErrOutOfRange = errors.New("node id out of index range")

// Index maps node ids to projected coordinates.
type Index interface {
	Put(id int64, p proj.MeterPoint) error
	Get(id int64) (proj.MeterPoint, bool)
	Len() int64
	Close() error
}

// MemoryIndex keeps nodes in a Go map. It accepts any id, including the
// negative ids used by editors for unsaved objects.
type MemoryIndex struct {
	nodes map[int64]proj.MeterPoint
}

// NewMemoryIndex creates an empty in-memory index
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{nodes: make(map[int64]proj.MeterPoint)}
}

// Put stores a node's coordinates, replacing earlier ones.
func (m *MemoryIndex) Put(id int64, p proj.MeterPoint) error {
	m.nodes[id] = p
	return nil
}

// Get retrieves a node's coordinates
func (m *MemoryIndex) Get(id int64) (proj.MeterPoint, bool) {
	p, ok := m.nodes[id]
	return p, ok
}

// Len returns the number of stored nodes.
func (m *MemoryIndex) Len() int64 {
	return int64(len(m.nodes))
}

// Close releases the map.
func (m *MemoryIndex) Close() error {
	m.nodes = nil
	return nil
}
