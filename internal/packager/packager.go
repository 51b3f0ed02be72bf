// Package packager cuts the way list into per-tile records for every zoom
// level of the dataset.
//
// Each category is stored at a single zoom: the dataset's first zoom for
// categories that switch on at or before it, otherwise the category's own
// switch-on zoom. Tiles at finer zooms do not repeat it. A renderer must
// walk up the tile pyramid (see mapdata.MapDataset.Collect) to find
// everything drawn in a tile.
//
// Geometry is never clipped: a way is stored whole in every tile its
// bounding box intersects.
package packager

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wegman-software/osm2tiles-go/internal/feature"
	"github.com/wegman-software/osm2tiles-go/internal/logger"
	"github.com/wegman-software/osm2tiles-go/internal/mapdata"
	"github.com/wegman-software/osm2tiles-go/internal/spatial"
	"github.com/wegman-software/osm2tiles-go/internal/tiles"
)

// Progress receives packaging progress. Increment is called from worker
// goroutines and must be safe for concurrent use.
type Progress interface {
	Start(total int)
	Increment()
	Finish()
}

// Options configures a Packager
type Options struct {
	MinZoom int
	MaxZoom int
	// Workers bounds the number of tiles packaged concurrently.
	// Zero means runtime.NumCPU().
	Workers int
	// Policy supplies per-category switch-on zooms. Nil uses the default policy.
	Policy   *feature.Policy
	Progress Progress
	// Logger receives the packaging summary. Nil uses the global logger.
	Logger *zap.Logger
}

// Stats describes one packaging run
type Stats struct {
	TilesScanned int           // tiles in the bounds range
	TilesEmitted int           // tiles intersecting at least one way
	EmptyRecords int           // emitted tiles whose record holds no polyline
	Memberships  int64         // way/tile intersections
	Polylines    int64         // polylines stored across all tiles
	Duration     time.Duration // wall time of Package
}

// Packager builds the tile dataset from a finished way list
type Packager struct {
	opts Options
	log  *zap.Logger
}

// New validates opts and creates a Packager.
func New(opts Options) (*Packager, error) {
	if opts.MinZoom < 0 {
		return nil, fmt.Errorf("min zoom must be >= 0, got %d", opts.MinZoom)
	}
	if opts.MaxZoom < opts.MinZoom {
		return nil, fmt.Errorf("max zoom %d is below min zoom %d", opts.MaxZoom, opts.MinZoom)
	}
	if opts.MaxZoom > 30 {
		return nil, fmt.Errorf("max zoom must be <= 30, got %d", opts.MaxZoom)
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Policy == nil {
		opts.Policy = feature.DefaultPolicy()
	}

	if opts.Logger == nil {
		opts.Logger = logger.Get()
	}

	return &Packager{
		opts: opts,
		log:  opts.Logger,
	}, nil
}

// tileResult is written by exactly one worker.
type tileResult struct {
	record    mapdata.TileRecord
	hits      int
	polylines int
}

// Package assigns ways to every tile of the bounds between MinZoom and
// MaxZoom. The ways slice must not be modified until Package returns.
func (p *Packager) Package(ctx context.Context, ways []*mapdata.Way, bounds mapdata.Bounds) (mapdata.TileDataset, Stats, error) {
	start := time.Now()
	box := bounds.Box()

	var keys []tiles.Key
	for z := p.opts.MinZoom; z <= p.opts.MaxZoom; z++ {
		r := tiles.RangeFor(box, z)
		p.log.Debug("Tile range",
			zap.Int("zoom", z),
			zap.Int("min_x", r.MinX), zap.Int("max_x", r.MaxX),
			zap.Int("min_y", r.MinY), zap.Int("max_y", r.MaxY),
			zap.Int("tiles", r.Count()))
		keys = append(keys, r.Keys()...)
	}

	// Stable rank order of all ways, shared read-only by the workers.
	ranked := make([]int, len(ways))
	for i := range ranked {
		ranked[i] = i
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ways[ranked[a]].Rank < ways[ranked[b]].Rank
	})
	rankPos := make([]int, len(ways))
	for pos, i := range ranked {
		rankPos[i] = pos
	}

	if p.opts.Progress != nil {
		p.opts.Progress.Start(len(keys))
		defer p.opts.Progress.Finish()
	}

	results := make([]tileResult, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)

	for i, key := range keys {
		if gctx.Err() != nil {
			break
		}
		i, key := i, key
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = p.packageTile(key, ways, rankPos)
			if p.opts.Progress != nil {
				p.opts.Progress.Increment()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, Stats{}, fmt.Errorf("packaging aborted: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, Stats{}, fmt.Errorf("packaging aborted: %w", err)
	}

	dataset := make(mapdata.TileDataset)
	stats := Stats{TilesScanned: len(keys)}
	for i, res := range results {
		if res.record == nil {
			continue
		}
		dataset[keys[i]] = res.record
		stats.TilesEmitted++
		stats.Memberships += int64(res.hits)
		stats.Polylines += int64(res.polylines)
		if res.polylines == 0 {
			stats.EmptyRecords++
		}
	}
	stats.Duration = time.Since(start)

	p.log.Info("Packaged tiles",
		zap.Int("scanned", stats.TilesScanned),
		zap.Int("emitted", stats.TilesEmitted),
		zap.Int("empty_records", stats.EmptyRecords),
		zap.Int64("memberships", stats.Memberships),
		zap.Int64("polylines", stats.Polylines),
		zap.Int("workers", p.opts.Workers),
		zap.Duration("duration", stats.Duration))

	return dataset, stats, nil
}

// packageTile builds the record of one tile. A tile no way intersects
// yields a nil record.
func (p *Packager) packageTile(key tiles.Key, ways []*mapdata.Way, rankPos []int) tileResult {
	tileBox := key.Box()

	var hits []int
	for i, w := range ways {
		if w.Nodes.Len() < 2 {
			continue
		}
		if spatial.Intersects(w.Box, tileBox) {
			hits = append(hits, i)
		}
	}
	if len(hits) == 0 {
		return tileResult{}
	}

	var byRank []int
	record := make(mapdata.TileRecord)
	polylines := 0

	for _, c := range feature.All() {
		if !p.opts.Policy.ZoomIncludes(c, key.Z, p.opts.MinZoom) {
			continue
		}

		order := hits
		if c.IsHighway() {
			if byRank == nil {
				byRank = append([]int(nil), hits...)
				sort.Slice(byRank, func(a, b int) bool {
					return rankPos[byRank[a]] < rankPos[byRank[b]]
				})
			}
			order = byRank
		}

		lines := []mapdata.Polyline{}
		for _, i := range order {
			if ways[i].Categories.Has(c) {
				lines = append(lines, ways[i].Nodes)
			}
		}
		record[c] = lines
		polylines += len(lines)
	}

	return tileResult{record: record, hits: len(hits), polylines: polylines}
}
