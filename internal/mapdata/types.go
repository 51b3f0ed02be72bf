// Package mapdata holds the tile dataset produced by a build and its JSON
// artifact format.
package mapdata

import (
	"github.com/wegman-software/osm2tiles-go/internal/feature"
	"github.com/wegman-software/osm2tiles-go/internal/proj"
	"github.com/wegman-software/osm2tiles-go/internal/spatial"
	"github.com/wegman-software/osm2tiles-go/internal/tiles"
)

// Polyline is a flat projected coordinate list: x0, y0, x1, y1, ...
type Polyline []float64

// Len returns the number of points.
func (p Polyline) Len() int {
	return len(p) / 2
}

// Way is an included, simplified way ready for packaging.
// Ways are read-only once packaging starts.
type Way struct {
	ID         int64
	Tags       map[string]string
	Nodes      Polyline
	Box        spatial.BoundingBox
	Categories feature.Set
	// Rank is the road-class draw rank, lower first.
	Rank int
}

// TileRecord maps a category to its polylines in draw order.
type TileRecord map[feature.Category][]Polyline

// TileDataset maps tiles to their records.
type TileDataset map[tiles.Key]TileRecord

// Bounds is the dataset extent in degrees and in projected meters.
// The projected corners are the north-west (min) and south-east (max)
// corners, so MinY belongs to MaxLat.
type Bounds struct {
	MinLat float64 `json:"minlat"`
	MinLon float64 `json:"minlon"`
	MaxLat float64 `json:"maxlat"`
	MaxLon float64 `json:"maxlon"`
	MinX   float64 `json:"minX"`
	MinY   float64 `json:"minY"`
	MaxX   float64 `json:"maxX"`
	MaxY   float64 `json:"maxY"`
}

// NewBounds derives the projected corners from a geographic extent.
func NewBounds(minLat, minLon, maxLat, maxLon float64) Bounds {
	min := proj.GeoToMeter(minLon, maxLat)
	max := proj.GeoToMeter(maxLon, minLat)
	return Bounds{
		MinLat: minLat,
		MinLon: minLon,
		MaxLat: maxLat,
		MaxLon: maxLon,
		MinX:   min.X,
		MinY:   min.Y,
		MaxX:   max.X,
		MaxY:   max.Y,
	}
}

// Box returns the projected extent.
func (b Bounds) Box() spatial.BoundingBox {
	return spatial.BoundingBox{MinX: b.MinX, MinY: b.MinY, MaxX: b.MaxX, MaxY: b.MaxY}
}

// MapDataset is the complete build output.
type MapDataset struct {
	Bounds Bounds      `json:"bounds"`
	Tiles  TileDataset `json:"tiles"`
}

// Keys returns the dataset's tile keys sorted by zoom, x, y.
func (d *MapDataset) Keys() []tiles.Key {
	keys := make([]tiles.Key, 0, len(d.Tiles))
	for k := range d.Tiles {
		keys = append(keys, k)
	}
	tiles.Sort(keys)
	return keys
}

// Layer is one level of a tile pyramid walk.
type Layer struct {
	Key    tiles.Key
	Record TileRecord
}

// Collect walks from key towards zoom 0 and returns every record found,
// coarsest first. The walk stops at the first missing tile. This is how a
// renderer assembles everything drawn in a tile, since each category is
// only stored at the zoom where it switches on.
func (d *MapDataset) Collect(key tiles.Key) []Layer {
	var layers []Layer
	for {
		rec, ok := d.Tiles[key]
		if !ok {
			break
		}
		layers = append(layers, Layer{Key: key, Record: rec})

		parent, ok := key.Parent()
		if !ok {
			break
		}
		key = parent
	}

	for i, j := 0, len(layers)-1; i < j; i, j = i+1, j-1 {
		layers[i], layers[j] = layers[j], layers[i]
	}
	return layers
}

// Stats summarizes a dataset.
type Stats struct {
	Tiles       int
	TilesByZoom map[int]int
	Polylines   map[feature.Category]int
	Points      int64
	EmptyTiles  int
}

// Stats counts tiles, polylines and points.
func (d *MapDataset) Stats() Stats {
	s := Stats{
		Tiles:       len(d.Tiles),
		TilesByZoom: make(map[int]int),
		Polylines:   make(map[feature.Category]int),
	}
	for k, rec := range d.Tiles {
		s.TilesByZoom[k.Z]++
		if len(rec) == 0 {
			s.EmptyTiles++
		}
		for c, lines := range rec {
			s.Polylines[c] += len(lines)
			for _, l := range lines {
				s.Points += int64(l.Len())
			}
		}
	}
	return s
}
