package mapdata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/wegman-software/osm2tiles-go/internal/atomicfile"
)

// ScriptVariable is the global the JS artifact assigns the dataset to.
const ScriptVariable = "MAP_DATA"

// WriteJSON writes the dataset to path as JSON.
// The file appears only once it is completely written.
func WriteJSON(path string, d *MapDataset, pretty bool) error {
	return atomicfile.Write(path, func(w io.Writer) error {
		return encode(w, d, pretty)
	})
}

// WriteScript writes the dataset as a script assigning it to ScriptVariable,
// for pages that load the map with a plain script tag.
func WriteScript(path string, d *MapDataset, pretty bool) error {
	return atomicfile.Write(path, func(w io.Writer) error {
		if _, err := fmt.Fprintf(w, "var %s = ", ScriptVariable); err != nil {
			return err
		}
		if err := encode(w, d, pretty); err != nil {
			return err
		}
		_, err := io.WriteString(w, ";\n")
		return err
	})
}

func encode(w io.Writer, d *MapDataset, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("failed to encode map data: %w", err)
	}
	return nil
}

// ReadFile loads a dataset written by WriteJSON or WriteScript.
func ReadFile(path string) (*MapDataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read map data: %w", err)
	}

	data = bytes.TrimSpace(data)
	prefix := []byte("var " + ScriptVariable + " = ")
	if bytes.HasPrefix(data, prefix) {
		data = bytes.TrimSuffix(bytes.TrimPrefix(data, prefix), []byte(";"))
	}

	var d MapDataset
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse map data %s: %w", path, err)
	}
	if d.Tiles == nil {
		d.Tiles = make(TileDataset)
	}
	return &d, nil
}
