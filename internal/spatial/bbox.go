// Package spatial computes bounding boxes of projected polylines and tests
// them against tile extents.
package spatial

import "github.com/wegman-software/osm2tiles-go/internal/proj"

// BoundingBox is an axis-aligned rectangle in projected meters.
type BoundingBox struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// Compute returns the bounding box of interleaved x,y coordinates.
// Coordinates are expected inside [0, proj.WorldSize]; an empty input
// yields an inverted box that intersects nothing.
func Compute(points []float64) BoundingBox {
	b := BoundingBox{
		MinX: proj.WorldSize,
		MinY: proj.WorldSize,
	}

	for i := 0; i+1 < len(points); i += 2 {
		x, y := points[i], points[i+1]
		if x < b.MinX {
			b.MinX = x
		}
		if x > b.MaxX {
			b.MaxX = x
		}
		if y < b.MinY {
			b.MinY = y
		}
		if y > b.MaxY {
			b.MaxY = y
		}
	}

	return b
}

// Intersects reports whether two boxes overlap. Edges are closed, so boxes
// that only touch along a side or at a corner intersect.
func Intersects(a, b BoundingBox) bool {
	return a.MinX <= b.MaxX && b.MinX <= a.MaxX &&
		a.MinY <= b.MaxY && b.MinY <= a.MaxY
}

// IsValid checks that the minimum corner does not exceed the maximum corner.
func (b BoundingBox) IsValid() bool {
	return b.MinX <= b.MaxX && b.MinY <= b.MaxY
}

// Contains reports whether (x, y) lies inside the box, edges included.
func (b BoundingBox) Contains(x, y float64) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}

// TileBox returns the extent of tile (tileX, tileY) at zoom.
func TileBox(tileX, tileY, zoom int) BoundingBox {
	min, max := proj.TileBounds(tileX, tileY, zoom)
	return BoundingBox{MinX: min.X, MinY: min.Y, MaxX: max.X, MaxY: max.Y}
}
