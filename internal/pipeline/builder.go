// Package pipeline drives a build: it reads OSM records, turns included
// ways into simplified projected polylines, packages them into tiles and
// writes the artifacts.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/paulmach/osm"
	"go.uber.org/zap"

	"github.com/wegman-software/osm2tiles-go/internal/config"
	"github.com/wegman-software/osm2tiles-go/internal/feature"
	"github.com/wegman-software/osm2tiles-go/internal/mapdata"
	"github.com/wegman-software/osm2tiles-go/internal/nodeindex"
	"github.com/wegman-software/osm2tiles-go/internal/proj"
	"github.com/wegman-software/osm2tiles-go/internal/simplify"
	"github.com/wegman-software/osm2tiles-go/internal/spatial"
)

var (
	// ErrMissingBounds is returned when neither the input nor the
	// configuration supplies a bounds record.
	ErrMissingBounds = errors.New("input has no bounds record")

	// ErrDuplicateBounds is returned for a second bounds record.
	ErrDuplicateBounds = errors.New("input has more than one bounds record")
)

// DanglingNodeError reports an included way that references a node the
// input never defined.
type DanglingNodeError struct {
	WayID  int64
	NodeID int64
}

func (e *DanglingNodeError) Error() string {
	return fmt.Sprintf("way %d references missing node %d", e.WayID, e.NodeID)
}

// IngestStats counts what happened to the input records.
type IngestStats struct {
	Nodes          int64
	Ways           int64 // way records read
	WaysKept       int64
	WaysExcluded   int64 // rejected by the classifier
	WaysDangling   int64 // skipped for missing nodes
	WaysDegenerate int64 // fewer than 2 distinct points after simplification
	PointsIn       int64
	PointsOut      int64
}

// Builder accumulates the state of one build. It is not safe for
// concurrent use.
type Builder struct {
	cfg        *config.Config
	policy     *feature.Policy
	classifier feature.WayClassifier
	nodes      nodeindex.Index
	log        *zap.Logger

	ways        []*mapdata.Way
	bounds      *mapdata.Bounds
	fixedBounds bool
	seenBounds  bool

	stats   IngestStats
	records atomic.Int64
	kept    atomic.Int64
}

// NewBuilder creates a Builder. A nil classifier uses policy directly.
// Bounds configured in cfg take precedence over the input's bounds record.
func NewBuilder(cfg *config.Config, policy *feature.Policy, classifier feature.WayClassifier, nodes nodeindex.Index, log *zap.Logger) *Builder {
	if policy == nil {
		policy = feature.DefaultPolicy()
	}
	if classifier == nil {
		classifier = policy
	}
	if nodes == nil {
		nodes = nodeindex.NewMemoryIndex()
	}
	if log == nil {
		log = zap.NewNop()
	}

	b := &Builder{
		cfg:        cfg,
		policy:     policy,
		classifier: classifier,
		nodes:      nodes,
		log:        log,
	}
	if bb := cfg.Bounds; bb != nil {
		bounds := mapdata.NewBounds(bb.MinLat, bb.MinLon, bb.MaxLat, bb.MaxLon)
		b.bounds = &bounds
		b.fixedBounds = true
	}
	return b
}

// Ingest consumes every record of s. Nodes must precede the ways that
// reference them, as in any sorted OSM file.
func (b *Builder) Ingest(ctx context.Context, s Scanner) error {
	for s.Scan() {
		if n := b.records.Add(1); n&0xffff == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		var err error
		switch o := s.Object().(type) {
		case *osm.Node:
			err = b.AddNode(o)
		case *osm.Way:
			err = b.AddWay(o)
		case *osm.Bounds:
			err = b.AddBounds(o)
		}
		if err != nil {
			return err
		}
	}
	if err := s.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.bounds == nil {
		return ErrMissingBounds
	}
	return nil
}

// AddBounds records the dataset extent.
func (b *Builder) AddBounds(bounds *osm.Bounds) error {
	if b.seenBounds {
		return ErrDuplicateBounds
	}
	b.seenBounds = true

	if b.fixedBounds {
		b.log.Debug("Ignoring input bounds, configured bounds take precedence")
		return nil
	}
	v := mapdata.NewBounds(bounds.MinLat, bounds.MinLon, bounds.MaxLat, bounds.MaxLon)
	b.bounds = &v
	return nil
}

// AddNode projects a node and stores it in the node index.
func (b *Builder) AddNode(n *osm.Node) error {
	if err := b.nodes.Put(int64(n.ID), proj.GeoToMeter(n.Lon, n.Lat)); err != nil {
		return fmt.Errorf("failed to index node %d: %w", n.ID, err)
	}
	b.stats.Nodes++
	return nil
}

// AddWay classifies a way and, if it is included, resolves, simplifies and
// keeps it. Excluded ways are dropped before their nodes are looked up.
func (b *Builder) AddWay(w *osm.Way) error {
	b.stats.Ways++
	tags := w.Tags.Map()

	categories, include, err := b.classifier.ClassifyWay(tags)
	if err != nil {
		return fmt.Errorf("failed to classify way %d: %w", w.ID, err)
	}
	if !include {
		b.stats.WaysExcluded++
		return nil
	}

	points := make([]float64, 0, 2*len(w.Nodes))
	for _, wn := range w.Nodes {
		p, ok := b.nodes.Get(int64(wn.ID))
		if !ok {
			derr := &DanglingNodeError{WayID: int64(w.ID), NodeID: int64(wn.ID)}
			if !b.cfg.SkipDangling {
				return derr
			}
			b.stats.WaysDangling++
			b.log.Debug("Skipping way", zap.Error(derr))
			return nil
		}
		points = append(points, p.X, p.Y)
	}

	simplified := simplify.Simplify(points, b.cfg.Tolerance, b.cfg.HighestQuality)
	b.stats.PointsIn += int64(len(w.Nodes))
	if collapsed(simplified) {
		b.stats.WaysDegenerate++
		return nil
	}
	b.stats.PointsOut += int64(len(simplified) / 2)

	b.ways = append(b.ways, &mapdata.Way{
		ID:         int64(w.ID),
		Tags:       tags,
		Nodes:      simplified,
		Box:        spatial.Compute(simplified),
		Categories: categories,
		Rank:       b.policy.HighwayRank(tags),
	})
	b.stats.WaysKept++
	b.kept.Add(1)
	return nil
}

// Ways returns the kept ways in input order.
func (b *Builder) Ways() []*mapdata.Way {
	return b.ways
}

// Bounds returns the dataset extent, or false before bounds are known.
func (b *Builder) Bounds() (mapdata.Bounds, bool) {
	if b.bounds == nil {
		return mapdata.Bounds{}, false
	}
	return *b.bounds, true
}

// collapsed reports whether points hold fewer than 2 distinct positions.
func collapsed(points []float64) bool {
	for i := 2; i+1 < len(points); i += 2 {
		if points[i] != points[0] || points[i+1] != points[1] {
			return false
		}
	}
	return true
}

// Stats returns the ingest counters.
func (b *Builder) Stats() IngestStats {
	return b.stats
}

// Records returns how many records have been read. Safe to call from any
// goroutine.
func (b *Builder) Records() int64 {
	return b.records.Load()
}

// Counters reports live progress for the metrics collector.
func (b *Builder) Counters() map[string]int64 {
	return map[string]int64{
		"records":   b.records.Load(),
		"ways_kept": b.kept.Load(),
	}
}
