// Package tiles addresses slippy-map tiles in the projected meter space.
package tiles

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/wegman-software/osm2tiles-go/internal/proj"
	"github.com/wegman-software/osm2tiles-go/internal/spatial"
)

// Key identifies a map tile at a specific zoom level
type Key struct {
	Z int // Zoom level
	X int // X coordinate (column)
	Y int // Y coordinate (row)
}

// String returns the tile in z/x/y format
func (k Key) String() string {
	return fmt.Sprintf("%d/%d/%d", k.Z, k.X, k.Y)
}

// MarshalText lets a Key serve as a JSON object key.
func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses the z/x/y form.
func (k *Key) UnmarshalText(text []byte) error {
	parsed, err := ParseKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKey parses a tile key in z/x/y format
func ParseKey(s string) (Key, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return Key{}, fmt.Errorf("tile key must be z/x/y, got %q", s)
	}

	var vals [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return Key{}, fmt.Errorf("invalid tile key %q: %w", s, err)
		}
		if v < 0 {
			return Key{}, fmt.Errorf("invalid tile key %q: negative component", s)
		}
		vals[i] = v
	}

	k := Key{Z: vals[0], X: vals[1], Y: vals[2]}
	if n := 1 << k.Z; k.X >= n || k.Y >= n {
		return Key{}, fmt.Errorf("invalid tile key %q: outside zoom %d", s, k.Z)
	}
	return k, nil
}

// Parent returns the tile one zoom level up that contains k.
// The second result is false at zoom 0.
func (k Key) Parent() (Key, bool) {
	if k.Z == 0 {
		return k, false
	}
	return Key{Z: k.Z - 1, X: k.X / 2, Y: k.Y / 2}, true
}

// Box returns the tile extent in projected meters.
func (k Key) Box() spatial.BoundingBox {
	return spatial.TileBox(k.X, k.Y, k.Z)
}

// Range represents a range of tiles at a specific zoom level
type Range struct {
	Z          int
	MinX, MaxX int
	MinY, MaxY int
}

// RangeFor returns the tiles at zoom covering a projected bounding box.
// Indices are clamped to the world so a box ending exactly on the world edge
// does not produce tiles past it.
func RangeFor(box spatial.BoundingBox, zoom int) Range {
	minX, minY := proj.MeterToTile(box.MinX, box.MinY, zoom)
	maxX, maxY := proj.MeterToTile(box.MaxX, box.MaxY, zoom)

	last := 1<<zoom - 1
	return Range{
		Z:    zoom,
		MinX: clamp(minX, 0, last),
		MaxX: clamp(maxX, 0, last),
		MinY: clamp(minY, 0, last),
		MaxY: clamp(maxY, 0, last),
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Count returns the number of tiles in the range
func (r Range) Count() int {
	if r.MaxX < r.MinX || r.MaxY < r.MinY {
		return 0
	}
	return (r.MaxX - r.MinX + 1) * (r.MaxY - r.MinY + 1)
}

// Keys returns all tiles in the range, column by column.
func (r Range) Keys() []Key {
	keys := make([]Key, 0, r.Count())
	for x := r.MinX; x <= r.MaxX; x++ {
		for y := r.MinY; y <= r.MaxY; y++ {
			keys = append(keys, Key{Z: r.Z, X: x, Y: y})
		}
	}
	return keys
}

// KeysFor returns every tile covering box across zoom levels
func KeysFor(box spatial.BoundingBox, minZoom, maxZoom int) []Key {
	var keys []Key
	for z := minZoom; z <= maxZoom; z++ {
		keys = append(keys, RangeFor(box, z).Keys()...)
	}
	return keys
}

// Sort orders keys by zoom, then x, then y.
func Sort(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Z != keys[j].Z {
			return keys[i].Z < keys[j].Z
		}
		if keys[i].X != keys[j].X {
			return keys[i].X < keys[j].X
		}
		return keys[i].Y < keys[j].Y
	})
}

// CountByZoom returns the count of keys at each zoom level
func CountByZoom(keys []Key) map[int]int {
	counts := make(map[int]int)
	for _, k := range keys {
		counts[k.Z]++
	}
	return counts
}
