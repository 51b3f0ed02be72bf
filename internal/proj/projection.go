package proj

import "math"

// Spherical Web Mercator constants
const (
	// EquatorExtend is half the circumference of the projection sphere in meters.
	// Forward and inverse projection share it so bounds can be re-derived
	// bit for bit by every consumer of the dataset.
	EquatorExtend = 20037508.342789244

	// WorldSize is the edge length of the projected world square in meters.
	WorldSize = 2 * EquatorExtend

	// MaxLatitude is the latitude at which the projected world square ends.
	MaxLatitude = 85.0511287798
)

// MeterPoint is a planar coordinate in meters.
// The origin is the north-west corner of the world; x grows east and y grows south,
// so both axes span [0, WorldSize].
type MeterPoint struct {
	X float64
	Y float64
}

// GeoToMeter projects WGS84 (lon, lat) to meters.
// Latitudes outside ±MaxLatitude are not clamped; callers must not pass them.
func GeoToMeter(lon, lat float64) MeterPoint {
	x := lon * EquatorExtend / 180.0

	// y = R * ln(tan(π/4 + φ/2)) with R = EquatorExtend / π
	latRad := lat * math.Pi / 180.0
	y := math.Log(math.Tan(math.Pi/4.0+latRad/2.0)) * EquatorExtend / math.Pi

	return MeterPoint{X: x + EquatorExtend, Y: EquatorExtend - y}
}

// MeterToGeo is the inverse of GeoToMeter.
func MeterToGeo(x, y float64) (lon, lat float64) {
	lon = (x - EquatorExtend) * 180.0 / EquatorExtend

	my := (EquatorExtend - y) * math.Pi / EquatorExtend
	lat = (2*math.Atan(math.Exp(my)) - math.Pi/2.0) * 180.0 / math.Pi

	return lon, lat
}

// TileSize returns the edge length of a tile in meters at the given zoom.
// Each zoom level halves it; math.Ldexp keeps the result exact.
func TileSize(zoom int) float64 {
	return math.Ldexp(WorldSize, -zoom)
}

// MeterToTile returns the index of the tile containing (x, y) at zoom.
func MeterToTile(x, y float64, zoom int) (tileX, tileY int) {
	size := TileSize(zoom)
	return int(math.Floor(x / size)), int(math.Floor(y / size))
}

// TileBounds returns the north-west (min) and south-east (max) corners of a tile.
// Every point strictly inside them maps back to (tileX, tileY) via MeterToTile.
func TileBounds(tileX, tileY, zoom int) (min, max MeterPoint) {
	size := TileSize(zoom)
	min = MeterPoint{X: float64(tileX) * size, Y: float64(tileY) * size}
	max = MeterPoint{X: float64(tileX+1) * size, Y: float64(tileY+1) * size}
	return min, max
}

// PixelsPerMeter returns the scale a renderer needs to draw a tile of
// tileSizePx pixels at zoom.
func PixelsPerMeter(zoom int, tileSizePx float64) float64 {
	return tileSizePx / TileSize(zoom)
}
