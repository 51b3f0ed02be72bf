package pipeline

import (
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/osm"
)

const monacoXML = `<?xml version="1.0" encoding="UTF-8"?>
<osm version="0.6" generator="test">
 <bounds minlat="43.72" minlon="7.40" maxlat="43.75" maxlon="7.44"/>
 <node id="1" lat="43.73" lon="7.41"/>
 <node id="2" lat="43.731" lon="7.42"/>
 <node id="3" lat="43.74" lon="7.43"/>
 <way id="10">
  <nd ref="1"/>
  <nd ref="2"/>
  <nd ref="3"/>
  <tag k="highway" v="motorway"/>
 </way>
</osm>
`

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path        string
		format      Format
		compression Compression
	}{
		{"monaco.osm", FormatXML, CompressionNone},
		{"data/monaco.xml", FormatXML, CompressionNone},
		{"monaco.osm.gz", FormatXML, CompressionGzip},
		{"monaco.osm.bz2", FormatXML, CompressionBzip2},
		{"monaco-latest.osm.pbf", FormatPBF, CompressionNone},
		{"MONACO.OSM.PBF", FormatPBF, CompressionNone},
	}
	for _, tt := range tests {
		format, compression := DetectFormat(tt.path)
		if format != tt.format || compression != tt.compression {
			t.Errorf("DetectFormat(%q) = %v, %v, want %v, %v", tt.path, format, compression, tt.format, tt.compression)
		}
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeGzip(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := gzip.NewWriter(f)
	if _, err := zw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

// countRecords reads every record and counts them by kind.
func countRecords(t *testing.T, path string) map[string]int {
	t.Helper()
	in, err := OpenInput(context.Background(), path)
	if err != nil {
		t.Fatalf("OpenInput(%s): %v", path, err)
	}
	defer in.Close()

	counts := make(map[string]int)
	for in.Scan() {
		switch in.Object().(type) {
		case *osm.Bounds:
			counts["bounds"]++
		case *osm.Node:
			counts["node"]++
		case *osm.Way:
			counts["way"]++
		}
	}
	if err := in.Err(); err != nil {
		t.Fatalf("scan %s: %v", path, err)
	}
	if in.BytesRead() == 0 {
		t.Errorf("BytesRead = 0 after reading %s", path)
	}
	return counts
}

func TestOpenInputXML(t *testing.T) {
	for _, path := range []string{
		writeFile(t, "monaco.osm", monacoXML),
		writeGzip(t, "monaco.osm.gz", monacoXML),
	} {
		counts := countRecords(t, path)
		if counts["bounds"] != 1 || counts["node"] != 3 || counts["way"] != 1 {
			t.Errorf("%s: counts = %v, want 1 bounds, 3 nodes, 1 way", filepath.Base(path), counts)
		}
	}
}

func TestOpenInputErrors(t *testing.T) {
	if _, err := OpenInput(context.Background(), filepath.Join(t.TempDir(), "missing.osm")); err == nil {
		t.Error("OpenInput accepted a missing file")
	}
	if _, err := OpenInput(context.Background(), writeFile(t, "broken.osm.gz", "not gzip")); err == nil {
		t.Error("OpenInput accepted a corrupt gzip file")
	}
}
