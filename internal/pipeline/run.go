package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wegman-software/osm2tiles-go/internal/atomicfile"
	"github.com/wegman-software/osm2tiles-go/internal/config"
	"github.com/wegman-software/osm2tiles-go/internal/feature"
	"github.com/wegman-software/osm2tiles-go/internal/flex"
	"github.com/wegman-software/osm2tiles-go/internal/logger"
	"github.com/wegman-software/osm2tiles-go/internal/mapdata"
	"github.com/wegman-software/osm2tiles-go/internal/metrics"
	"github.com/wegman-software/osm2tiles-go/internal/nodeindex"
	"github.com/wegman-software/osm2tiles-go/internal/packager"
	"github.com/wegman-software/osm2tiles-go/internal/parquet"
	"github.com/wegman-software/osm2tiles-go/internal/tiles"
)

// progressInterval is how often ingestion progress is logged.
const progressInterval = 2 * time.Second

// Report summarizes a finished build.
type Report struct {
	RunID       string
	Ingest      IngestStats
	Package     packager.Stats
	Dataset     mapdata.Stats
	ParquetRows int64
	Outputs     []string
	Duration    time.Duration
}

// Options holds the hooks of a build that are not configuration.
type Options struct {
	// Progress receives per-tile packaging progress. May be nil.
	Progress packager.Progress
}

// Run executes a complete build described by cfg.
func Run(ctx context.Context, cfg *config.Config, opts Options) (*Report, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := logger.Get().With(zap.String("run_id", runID))

	cfg.ResolveOutputs()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Info("Starting build",
		zap.String("input", cfg.InputFile),
		zap.String("output", cfg.OutputFile),
		zap.Int("min_zoom", cfg.MinZoom),
		zap.Int("max_zoom", cfg.MaxZoom),
		zap.Float64("tolerance", cfg.Tolerance),
		zap.Bool("highest_quality", cfg.HighestQuality),
		zap.Int("workers", cfg.Workers))

	policy, classifier, closeClassifier, err := loadStyle(cfg)
	if err != nil {
		return nil, err
	}
	defer closeClassifier()

	nodes, closeNodes, err := openNodeIndex(cfg, log)
	if err != nil {
		return nil, err
	}
	defer closeNodes()

	in, err := OpenInput(ctx, cfg.InputFile)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	builder := NewBuilder(cfg, policy, classifier, nodes, log)

	metricsCtx, stopMetrics := context.WithCancel(ctx)
	defer stopMetrics()
	collector := metrics.NewCollector(cfg.MetricsInterval, log).WithCounters(builder.Counters)
	go collector.Start(metricsCtx)

	dataset, report, err := build(ctx, cfg, builder, in, policy, opts, log)
	if err != nil {
		return nil, err
	}
	report.RunID = runID

	if report.Outputs, report.ParquetRows, err = writeOutputs(cfg, dataset, runID, log); err != nil {
		return nil, err
	}

	report.Duration = time.Since(start)
	log.Info("Build complete",
		zap.Int("tiles", report.Dataset.Tiles),
		zap.Int64("polylines", report.Package.Polylines),
		zap.Int64("points", report.Dataset.Points),
		zap.Strings("outputs", report.Outputs),
		zap.Duration("duration", report.Duration))
	return report, nil
}

// build ingests the input and packages the tiles.
func build(ctx context.Context, cfg *config.Config, builder *Builder, in *Input, policy *feature.Policy, opts Options, log *zap.Logger) (*mapdata.MapDataset, *Report, error) {
	ingestStart := time.Now()
	tracker := NewProgressTracker(in.Size, "Ingest")
	progressCtx, stopProgress := context.WithCancel(ctx)
	go tracker.Run(progressCtx, log, progressInterval, builder.Records, in.BytesRead)

	err := builder.Ingest(ctx, in)
	stopProgress()
	if err != nil {
		return nil, nil, err
	}

	st := builder.Stats()
	log.Info("Ingested input",
		zap.String("format", in.Format.String()),
		zap.Int64("nodes", st.Nodes),
		zap.Int64("ways", st.Ways),
		zap.Int64("kept", st.WaysKept),
		zap.Int64("excluded", st.WaysExcluded),
		zap.Int64("dangling", st.WaysDangling),
		zap.Int64("degenerate", st.WaysDegenerate),
		zap.Int64("points_in", st.PointsIn),
		zap.Int64("points_out", st.PointsOut),
		zap.Duration("duration", time.Since(ingestStart)))

	p, err := packager.New(packager.Options{
		MinZoom:  cfg.MinZoom,
		MaxZoom:  cfg.MaxZoom,
		Workers:  cfg.Workers,
		Policy:   policy,
		Progress: opts.Progress,
		Logger:   log,
	})
	if err != nil {
		return nil, nil, err
	}

	bounds, _ := builder.Bounds()
	tileData, pstats, err := p.Package(ctx, builder.Ways(), bounds)
	if err != nil {
		return nil, nil, err
	}

	dataset := &mapdata.MapDataset{Bounds: bounds, Tiles: tileData}
	return dataset, &Report{
		Ingest:  st,
		Package: pstats,
		Dataset: dataset.Stats(),
	}, nil
}

// writeOutputs writes every configured artifact next to its target and
// moves them into place only after all of them were written. A failure
// leaves none of them behind.
func writeOutputs(cfg *config.Config, d *mapdata.MapDataset, runID string, log *zap.Logger) (_ []string, _ int64, err error) {
	batch := atomicfile.NewBatch(runID)
	defer func() {
		if err != nil {
			batch.Abort()
		}
	}()

	outputs := []string{cfg.OutputFile}
	if err := mapdata.WriteJSON(batch.Stage(cfg.OutputFile), d, cfg.Pretty); err != nil {
		return nil, 0, fmt.Errorf("failed to write %s: %w", cfg.OutputFile, err)
	}

	if cfg.ScriptFile != "" {
		if err := mapdata.WriteScript(batch.Stage(cfg.ScriptFile), d, cfg.Pretty); err != nil {
			return nil, 0, fmt.Errorf("failed to write %s: %w", cfg.ScriptFile, err)
		}
		outputs = append(outputs, cfg.ScriptFile)
	}

	var rows int64
	if cfg.ParquetFile != "" {
		if rows, err = parquet.WriteDataset(batch.Stage(cfg.ParquetFile), d, parquet.DefaultBatchSize); err != nil {
			return nil, 0, fmt.Errorf("failed to write %s: %w", cfg.ParquetFile, err)
		}
		log.Debug("Wrote parquet export", zap.String("path", cfg.ParquetFile), zap.Int64("rows", rows))
		outputs = append(outputs, cfg.ParquetFile)
	}

	if cfg.TileListFile != "" {
		if err := tiles.WriteList(batch.Stage(cfg.TileListFile), d.Keys()); err != nil {
			return nil, 0, fmt.Errorf("failed to write %s: %w", cfg.TileListFile, err)
		}
		outputs = append(outputs, cfg.TileListFile)
	}

	if err := batch.Commit(); err != nil {
		return nil, 0, err
	}
	return outputs, rows, nil
}

// loadStyle builds the classification policy and, for Lua styles, the
// scripted classifier. The returned func releases the Lua state.
func loadStyle(cfg *config.Config) (*feature.Policy, feature.WayClassifier, func(), error) {
	noop := func() {}

	if cfg.StyleFile == "" {
		policy := feature.DefaultPolicy()
		return policy, policy, noop, nil
	}

	if cfg.StyleIsLua() {
		policy := feature.DefaultPolicy()
		c := flex.NewClassifier(policy)
		if err := c.LoadFile(cfg.StyleFile); err != nil {
			c.Close()
			return nil, nil, nil, fmt.Errorf("failed to load Lua style: %w", err)
		}
		return policy, c, c.Close, nil
	}

	policy, err := feature.LoadPolicy(cfg.StyleFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load style: %w", err)
	}
	return policy, policy, noop, nil
}

// openNodeIndex returns the configured node store. A flat-nodes file only
// lives for the duration of the build.
func openNodeIndex(cfg *config.Config, log *zap.Logger) (nodeindex.Index, func(), error) {
	if cfg.FlatNodesFile == "" {
		idx := nodeindex.NewMemoryIndex()
		return idx, func() { idx.Close() }, nil
	}

	idx, err := nodeindex.NewFlatIndex(cfg.FlatNodesFile, nodeindex.DefaultFlatCapacity)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create flat node index: %w", err)
	}
	log.Debug("Using flat node index", zap.String("path", cfg.FlatNodesFile))
	return idx, func() {
		if err := idx.Close(); err != nil {
			log.Warn("Failed to close flat node index", zap.Error(err))
		}
		os.Remove(cfg.FlatNodesFile)
	}, nil
}
