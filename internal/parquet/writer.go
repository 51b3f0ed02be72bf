// Package parquet exports a tile dataset as a columnar table, one row per
// polyline, for analysis tools that read GeoParquet-style WKB columns.
package parquet

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/wegman-software/osm2tiles-go/internal/feature"
	"github.com/wegman-software/osm2tiles-go/internal/mapdata"
	"github.com/wegman-software/osm2tiles-go/internal/proj"
	"github.com/wegman-software/osm2tiles-go/internal/tiles"
)

// DefaultBatchSize is the number of rows buffered per record batch.
const DefaultBatchSize = 10000

// Schema is the tile table layout. geom_wkb holds the polyline as a WKB
// LineString in WGS84 lon/lat.
var Schema = arrow.NewSchema([]arrow.Field{
	{Name: "zoom", Type: arrow.PrimitiveTypes.Int32, Nullable: false},
	{Name: "tile_x", Type: arrow.PrimitiveTypes.Int32, Nullable: false},
	{Name: "tile_y", Type: arrow.PrimitiveTypes.Int32, Nullable: false},
	{Name: "category", Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: "seq", Type: arrow.PrimitiveTypes.Int32, Nullable: false},
	{Name: "geom_wkb", Type: arrow.BinaryTypes.Binary, Nullable: false},
}, nil)

// TileWriter writes polyline rows to a Parquet file.
// Rows go to a temp file that Close renames into place.
type TileWriter struct {
	path      string
	file      *os.File
	writer    *pqarrow.FileWriter
	builder   *array.RecordBuilder
	batchSize int
	count     int
	rows      int64
}

// NewTileWriter creates a new tile Parquet writer
func NewTileWriter(path string, batchSize int) (*TileWriter, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet file: %w", err)
	}

	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Zstd),
		parquet.WithDictionaryDefault(false),
	)

	writer, err := pqarrow.NewFileWriter(Schema, f, writerProps, pqarrow.DefaultWriterProps())
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}

	return &TileWriter{
		path:      path,
		file:      f,
		writer:    writer,
		builder:   array.NewRecordBuilder(memory.DefaultAllocator, Schema),
		batchSize: batchSize,
	}, nil
}

// Write appends one polyline of a tile
func (w *TileWriter) Write(key tiles.Key, cat feature.Category, seq int, line mapdata.Polyline) error {
	ls := make(orb.LineString, 0, line.Len())
	for i := 0; i+1 < len(line); i += 2 {
		lon, lat := proj.MeterToGeo(line[i], line[i+1])
		ls = append(ls, orb.Point{lon, lat})
	}
	geom, err := wkb.Marshal(ls)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s[%d]: %w", key, cat, seq, err)
	}

	w.builder.Field(0).(*array.Int32Builder).Append(int32(key.Z))
	w.builder.Field(1).(*array.Int32Builder).Append(int32(key.X))
	w.builder.Field(2).(*array.Int32Builder).Append(int32(key.Y))
	w.builder.Field(3).(*array.StringBuilder).Append(cat.String())
	w.builder.Field(4).(*array.Int32Builder).Append(int32(seq))
	w.builder.Field(5).(*array.BinaryBuilder).Append(geom)

	w.count++
	w.rows++
	if w.count >= w.batchSize {
		return w.flush()
	}
	return nil
}

// Rows returns the number of rows written so far.
func (w *TileWriter) Rows() int64 {
	return w.rows
}

func (w *TileWriter) flush() error {
	if w.count == 0 {
		return nil
	}
	rec := w.builder.NewRecord()
	defer rec.Release()
	err := w.writer.Write(rec)
	w.count = 0
	return err
}

// Close flushes remaining rows and moves the file into place.
func (w *TileWriter) Close() error {
	defer w.builder.Release()

	if err := w.flush(); err != nil {
		w.discard()
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := w.writer.Close(); err != nil {
		w.discard()
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	// The parquet writer may already have closed the file.
	if err := w.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		os.Remove(w.file.Name())
		return fmt.Errorf("failed to close parquet file: %w", err)
	}
	if err := os.Rename(w.file.Name(), w.path); err != nil {
		os.Remove(w.file.Name())
		return fmt.Errorf("failed to move parquet file into place: %w", err)
	}
	return nil
}

// Abort drops everything written and removes the temp file.
func (w *TileWriter) Abort() {
	w.builder.Release()
	w.discard()
}

func (w *TileWriter) discard() {
	w.file.Close()
	os.Remove(w.file.Name())
}

// WriteDataset writes every polyline of d, tiles in z/x/y order and
// categories in wire order.
func WriteDataset(path string, d *mapdata.MapDataset, batchSize int) (int64, error) {
	w, err := NewTileWriter(path, batchSize)
	if err != nil {
		return 0, err
	}

	for _, key := range d.Keys() {
		rec := d.Tiles[key]
		for _, cat := range feature.All() {
			for seq, line := range rec[cat] {
				if err := w.Write(key, cat, seq, line); err != nil {
					w.Abort()
					return 0, err
				}
			}
		}
	}

	if err := w.Close(); err != nil {
		return 0, err
	}
	return w.Rows(), nil
}
