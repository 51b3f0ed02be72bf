package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/wegman-software/osm2tiles-go/internal/proj"
)

// BBox represents a geographic bounding box
type BBox struct {
	MinLon, MinLat, MaxLon, MaxLat float64
}

// ParseBBox parses a bbox string in format "minlon,minlat,maxlon,maxlat".
// An empty string yields a nil box.
func ParseBBox(s string) (*BBox, error) {
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox must have 4 values: minlon,minlat,maxlon,maxlat")
	}

	var coords [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid bbox coordinate %q: %w", p, err)
		}
		coords[i] = v
	}

	bbox := &BBox{
		MinLon: coords[0],
		MinLat: coords[1],
		MaxLon: coords[2],
		MaxLat: coords[3],
	}

	// Validate
	if bbox.MinLon > bbox.MaxLon {
		return nil, fmt.Errorf("minlon (%f) must be <= maxlon (%f)", bbox.MinLon, bbox.MaxLon)
	}
	if bbox.MinLat > bbox.MaxLat {
		return nil, fmt.Errorf("minlat (%f) must be <= maxlat (%f)", bbox.MinLat, bbox.MaxLat)
	}
	if bbox.MinLon < -180 || bbox.MaxLon > 180 {
		return nil, fmt.Errorf("longitudes must be within [-180, 180]")
	}
	if bbox.MinLat < -proj.MaxLatitude || bbox.MaxLat > proj.MaxLatitude {
		return nil, fmt.Errorf("latitudes must be within ±%.4f", proj.MaxLatitude)
	}

	return bbox, nil
}

// String formats the box the way ParseBBox reads it.
func (b *BBox) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
}

// Zoom defaults of the tile pyramid the renderer expects.
const (
	DefaultMinZoom   = 13
	DefaultMaxZoom   = 18
	DefaultTolerance = 5.0
)

// Config holds the settings of one build
type Config struct {
	// Input settings
	InputFile     string
	Bounds        *BBox  // Overrides the bounds record of the input
	StyleFile     string // YAML policy or Lua script (by extension)
	FlatNodesFile string // Memory-mapped node index instead of the in-memory map
	SkipDangling  bool   // Skip ways referencing missing nodes instead of failing

	// Output settings
	OutputFile   string // JSON artifact; defaults to <input>.json
	ScriptFile   string // Optional "var MAP_DATA = ..." wrapper
	ParquetFile  string // Optional per-polyline Parquet export
	TileListFile string // Optional z/x/y list of emitted tiles
	Pretty       bool   // Indent JSON output

	// Tiling settings
	MinZoom        int
	MaxZoom        int
	Tolerance      float64 // Simplification tolerance in meters
	HighestQuality bool    // Skip the radial pre-filter

	// Processing settings
	Workers  int
	Progress bool

	// Logging and metrics
	Verbose         bool
	LogFile         string        // Path to log file (empty = no file logging)
	MetricsInterval time.Duration // Interval for system metrics logging
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		MinZoom:         DefaultMinZoom,
		MaxZoom:         DefaultMaxZoom,
		Tolerance:       DefaultTolerance,
		Workers:         runtime.NumCPU(),
		MetricsInterval: 30 * time.Second,
	}
}

// ResolveOutputs fills in output paths derived from the input file.
func (c *Config) ResolveOutputs() {
	if c.OutputFile == "" && c.InputFile != "" {
		c.OutputFile = c.InputFile + ".json"
	}
}

// StyleIsLua reports whether the style file is a Lua script.
func (c *Config) StyleIsLua() bool {
	return strings.EqualFold(filepath.Ext(c.StyleFile), ".lua")
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.InputFile == "" {
		return fmt.Errorf("input file is required")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file is required")
	}
	if c.MinZoom < 0 {
		return fmt.Errorf("min zoom must be >= 0, got %d", c.MinZoom)
	}
	if c.MaxZoom > 30 {
		return fmt.Errorf("max zoom must be <= 30, got %d", c.MaxZoom)
	}
	if c.MinZoom > c.MaxZoom {
		return fmt.Errorf("min zoom (%d) must be <= max zoom (%d)", c.MinZoom, c.MaxZoom)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}

	seen := []struct{ name, path string }{{"input", c.InputFile}}
	for _, out := range []struct{ name, path string }{
		{"output", c.OutputFile},
		{"script", c.ScriptFile},
		{"parquet", c.ParquetFile},
		{"tile list", c.TileListFile},
	} {
		if out.path == "" {
			continue
		}
		for _, prev := range seen {
			if filepath.Clean(out.path) == filepath.Clean(prev.path) {
				return fmt.Errorf("%s file %s is also the %s file", out.name, out.path, prev.name)
			}
		}
		seen = append(seen, out)
	}
	return nil
}
