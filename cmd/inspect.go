package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/wegman-software/osm2tiles-go/internal/feature"
	"github.com/wegman-software/osm2tiles-go/internal/mapdata"
	"github.com/wegman-software/osm2tiles-go/internal/tiles"
)

var (
	inspectTile    string
	inspectGeoJSON string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <map.json|map.js>",
	Short: "Summarize a built tile dataset",
	Long: `Print per-zoom tile counts and per-category polyline counts of a dataset.

With --tile, print the pyramid chain a renderer collects for that tile.
With --geojson, also export the collected polylines as lon/lat GeoJSON.`,
	Args: cobra.ExactArgs(1),
	Run:  runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringVarP(&inspectTile, "tile", "t", "", "Tile to inspect as z/x/y")
	inspectCmd.Flags().StringVar(&inspectGeoJSON, "geojson", "", "Write the tile's collected polylines to this GeoJSON file (requires --tile)")
}

func runInspect(cmd *cobra.Command, args []string) {
	d, err := mapdata.ReadFile(args[0])
	if err != nil {
		exitWithError("failed to read dataset", err)
	}

	out := cmd.OutOrStdout()

	if inspectTile == "" {
		if inspectGeoJSON != "" {
			exitWithError("--geojson requires --tile", nil)
		}
		printSummary(out, d)
		return
	}

	key, err := tiles.ParseKey(inspectTile)
	if err != nil {
		exitWithError("invalid tile", err)
	}

	layers := d.Collect(key)
	if len(layers) == 0 {
		exitWithError(fmt.Sprintf("tile %s is not in the dataset", key), nil)
	}
	for _, l := range layers {
		fmt.Fprintf(out, "%s\n", l.Key)
		for _, c := range feature.All() {
			if lines, ok := l.Record[c]; ok {
				fmt.Fprintf(out, "  %-9s %d\n", c, len(lines))
			}
		}
	}

	if inspectGeoJSON != "" {
		data, err := json.Marshal(d.GeoJSON(key))
		if err != nil {
			exitWithError("failed to encode GeoJSON", err)
		}
		if err := os.WriteFile(inspectGeoJSON, data, 0644); err != nil {
			exitWithError("failed to write GeoJSON", err)
		}
	}
}

func printSummary(out io.Writer, d *mapdata.MapDataset) {
	s := d.Stats()
	b := d.Bounds

	fmt.Fprintf(out, "bounds   %.6f,%.6f,%.6f,%.6f\n", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
	fmt.Fprintf(out, "tiles    %d (%d empty)\n", s.Tiles, s.EmptyTiles)
	fmt.Fprintf(out, "points   %d\n", s.Points)

	zooms := make([]int, 0, len(s.TilesByZoom))
	for z := range s.TilesByZoom {
		zooms = append(zooms, z)
	}
	sort.Ints(zooms)
	for _, z := range zooms {
		fmt.Fprintf(out, "zoom %-3d %d tiles\n", z, s.TilesByZoom[z])
	}
	for _, c := range feature.All() {
		if n, ok := s.Polylines[c]; ok {
			fmt.Fprintf(out, "%-9s %d polylines\n", c, n)
		}
	}
}
