package cmd

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/cheggaaa/pb/v3"
	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/osm2tiles-go/internal/config"
	"github.com/wegman-software/osm2tiles-go/internal/logger"
	"github.com/wegman-software/osm2tiles-go/internal/packager"
	"github.com/wegman-software/osm2tiles-go/internal/pipeline"
)

var boundsStr string

var buildCmd = &cobra.Command{
	Use:   "build <input.osm|input.osm.gz|input.osm.pbf>",
	Short: "Build a tile dataset from an OSM file",
	Long: `Build a zoom-partitioned tile dataset:

  1. Read nodes, project them to Web Mercator meters and index them
  2. Classify and simplify every included way
  3. Assign ways to the tiles of every zoom between --min-zoom and --max-zoom
  4. Write the dataset as JSON, plus optional JS, Parquet and tile list files

A category is stored only at the zoom where it switches on; the renderer
inherits it at finer zooms by walking up the tile pyramid.`,
	Args: cobra.ExactArgs(1),
	Run:  runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringVarP(&cfg.OutputFile, "output", "o", "", "Output JSON file (default <input>.json)")
	buildCmd.Flags().StringVar(&cfg.ScriptFile, "script", "", "Also write a JavaScript file assigning the dataset to MAP_DATA")
	buildCmd.Flags().StringVar(&cfg.ParquetFile, "parquet", "", "Also write one Parquet row per tile polyline")
	buildCmd.Flags().StringVar(&cfg.TileListFile, "tile-list", "", "Also write the emitted tiles as z/x/y lines")
	buildCmd.Flags().BoolVar(&cfg.Pretty, "pretty", false, "Indent JSON output")

	buildCmd.Flags().IntVar(&cfg.MinZoom, "min-zoom", cfg.MinZoom, "Coarsest zoom level to build")
	buildCmd.Flags().IntVar(&cfg.MaxZoom, "max-zoom", cfg.MaxZoom, "Finest zoom level to build")
	buildCmd.Flags().Float64Var(&cfg.Tolerance, "tolerance", cfg.Tolerance, "Simplification tolerance in meters")
	buildCmd.Flags().BoolVar(&cfg.HighestQuality, "highest-quality", false, "Skip the radial distance pre-filter")

	buildCmd.Flags().StringVarP(&cfg.StyleFile, "style", "S", "", "Style file: YAML policy or Lua script")
	buildCmd.Flags().StringVarP(&boundsStr, "bounds", "b", "", "Dataset bounds: minlon,minlat,maxlon,maxlat (overrides the input)")
	buildCmd.Flags().StringVar(&cfg.FlatNodesFile, "flat-nodes", "", "Path to flat nodes file (for planet-sized inputs)")
	buildCmd.Flags().BoolVar(&cfg.SkipDangling, "skip-dangling", false, "Skip ways referencing missing nodes instead of failing")
	buildCmd.Flags().BoolVar(&cfg.Progress, "progress", false, "Show a progress bar while packaging tiles")
}

func runBuild(cmd *cobra.Command, args []string) {
	cfg.InputFile = args[0]
	log := logger.Get()

	bounds, err := config.ParseBBox(boundsStr)
	if err != nil {
		exitWithError("invalid bounds", err)
	}
	cfg.Bounds = bounds

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var progress packager.Progress
	if cfg.Progress {
		progress = &barProgress{}
	}

	report, err := pipeline.Run(ctx, cfg, pipeline.Options{Progress: progress})
	if err != nil {
		exitWithError("build failed", err)
	}

	zooms := make([]int, 0, len(report.Dataset.TilesByZoom))
	for z := range report.Dataset.TilesByZoom {
		zooms = append(zooms, z)
	}
	sort.Ints(zooms)
	for _, z := range zooms {
		log.Info("Tiles", zap.Int("zoom", z), zap.Int("count", report.Dataset.TilesByZoom[z]))
	}

	log.Info("Done",
		zap.String("run_id", report.RunID),
		zap.String("output", cfg.OutputFile),
		zap.Int("tiles", report.Dataset.Tiles),
		zap.Int("empty_tiles", report.Dataset.EmptyTiles),
		zap.Duration("total", report.Duration))
}

// barProgress shows packaging progress on the terminal.
type barProgress struct {
	bar *pb.ProgressBar
}

func (p *barProgress) Start(total int) {
	p.bar = pb.Full.Start(total)
}

func (p *barProgress) Increment() {
	p.bar.Increment()
}

func (p *barProgress) Finish() {
	p.bar.Finish()
}
