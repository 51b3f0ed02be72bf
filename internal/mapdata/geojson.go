package mapdata

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/wegman-software/osm2tiles-go/internal/feature"
	"github.com/wegman-software/osm2tiles-go/internal/proj"
	"github.com/wegman-software/osm2tiles-go/internal/tiles"
)

// LineString converts a projected polyline back to lon/lat.
func (p Polyline) LineString() orb.LineString {
	ls := make(orb.LineString, 0, p.Len())
	for i := 0; i+1 < len(p); i += 2 {
		lon, lat := proj.MeterToGeo(p[i], p[i+1])
		ls = append(ls, orb.Point{lon, lat})
	}
	return ls
}

// GeoJSON returns everything a renderer draws in key, collected up the
// pyramid, as lon/lat features. Each feature records its category, the
// tile it is stored in and its position in draw order.
func (d *MapDataset) GeoJSON(key tiles.Key) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, layer := range d.Collect(key) {
		for _, c := range feature.All() {
			for seq, line := range layer.Record[c] {
				f := geojson.NewFeature(line.LineString())
				f.Properties["category"] = c.String()
				f.Properties["tile"] = layer.Key.String()
				f.Properties["seq"] = seq
				fc.Append(f)
			}
		}
	}
	return fc
}
