package tiles

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"

	"go.uber.org/zap"

	"github.com/wegman-software/osm2tiles-go/internal/atomicfile"
	"github.com/wegman-software/osm2tiles-go/internal/logger"
)

// WriteList writes keys to filename in z/x/y format, one per line, sorted.
// The file appears only once it is completely written.
// The caller's slice is not reordered.
func WriteList(filename string, keys []Key) error {
	log := logger.Get()

	sorted := append([]Key(nil), keys...)
	Sort(sorted)

	err := atomicfile.Write(filename, func(w io.Writer) error {
		for _, k := range sorted {
			if _, err := fmt.Fprintln(w, k.String()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write tile list: %w", err)
	}

	// Log summary by zoom level
	counts := CountByZoom(sorted)
	fields := make([]zap.Field, 0, len(counts)+2)
	fields = append(fields, zap.String("file", filename))

	zooms := make([]int, 0, len(counts))
	for z := range counts {
		zooms = append(zooms, z)
	}
	sort.Ints(zooms)

	for _, z := range zooms {
		fields = append(fields, zap.Int(fmt.Sprintf("z%d", z), counts[z]))
	}
	fields = append(fields, zap.Int("total", len(sorted)))

	log.Info("Wrote tile list", fields...)

	return nil
}

// ReadList reads a tile list written by WriteList.
func ReadList(filename string) ([]Key, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open tile list: %w", err)
	}
	defer f.Close()

	var keys []Key
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if text == "" {
			continue
		}
		k, err := ParseKey(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		keys = append(keys, k)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tile list: %w", err)
	}
	return keys, nil
}
