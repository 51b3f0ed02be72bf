package tiles

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wegman-software/osm2tiles-go/internal/proj"
	"github.com/wegman-software/osm2tiles-go/internal/spatial"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		in      string
		want    Key
		wantErr bool
	}{
		{in: "13/100/200", want: Key{Z: 13, X: 100, Y: 200}},
		{in: "0/0/0", want: Key{}},
		{in: "1/1/1", want: Key{Z: 1, X: 1, Y: 1}},
		{in: "1/2/0", wantErr: true},
		{in: "13/100", wantErr: true},
		{in: "13/100/200/1", wantErr: true},
		{in: "a/b/c", wantErr: true},
		{in: "13/-1/200", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKey(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKey(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseKey(%q) = %v, want %v", tt.in, got, tt.want)
			}
			if !tt.wantErr && got.String() != tt.in {
				t.Errorf("String() = %q, want %q", got.String(), tt.in)
			}
		})
	}
}

func TestKeyAsJSONMapKey(t *testing.T) {
	in := map[Key]int{{Z: 13, X: 100, Y: 200}: 1, {Z: 14, X: 201, Y: 400}: 2}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"13/100/200":1`) {
		t.Errorf("Marshal = %s, want a \"13/100/200\" key", data)
	}

	var out map[Key]int
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out[Key{Z: 14, X: 201, Y: 400}] != 2 {
		t.Errorf("Unmarshal lost key 14/201/400: %v", out)
	}
}

func TestParent(t *testing.T) {
	k := Key{Z: 14, X: 201, Y: 401}

	want := []Key{
		{Z: 13, X: 100, Y: 200},
		{Z: 12, X: 50, Y: 100},
		{Z: 11, X: 25, Y: 50},
	}
	for _, w := range want {
		p, ok := k.Parent()
		if !ok {
			t.Fatalf("%v has no parent", k)
		}
		if p != w {
			t.Errorf("%v.Parent() = %v, want %v", k, p, w)
		}
		k = p
	}

	if _, ok := (Key{}).Parent(); ok {
		t.Errorf("zoom 0 tile reported a parent")
	}
}

func TestRangeForPoint(t *testing.T) {
	// London at zoom 10 is tile 511/340.
	p := proj.GeoToMeter(-0.1278, 51.5074)
	box := spatial.BoundingBox{MinX: p.X, MinY: p.Y, MaxX: p.X, MaxY: p.Y}

	r := RangeFor(box, 10)
	want := Range{Z: 10, MinX: 511, MaxX: 511, MinY: 340, MaxY: 340}
	if r != want {
		t.Errorf("RangeFor = %+v, want %+v", r, want)
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
}

func TestRangeForBounds(t *testing.T) {
	// Monaco: north-west corner is min, south-east corner is max.
	min := proj.GeoToMeter(7.409, 43.752)
	max := proj.GeoToMeter(7.440, 43.724)
	box := spatial.BoundingBox{MinX: min.X, MinY: min.Y, MaxX: max.X, MaxY: max.Y}

	prev := 0
	for z := 13; z <= 18; z++ {
		r := RangeFor(box, z)
		if r.MinX > r.MaxX || r.MinY > r.MaxY {
			t.Fatalf("zoom %d: inverted range %+v", z, r)
		}
		if r.Count() < prev {
			t.Errorf("zoom %d: %d tiles, fewer than %d at the previous zoom", z, r.Count(), prev)
		}
		prev = r.Count()

		for _, k := range r.Keys() {
			if !spatial.Intersects(k.Box(), box) {
				t.Errorf("tile %v does not intersect the bounds", k)
			}
		}
	}
}

func TestRangeForWorldIsClamped(t *testing.T) {
	world := spatial.BoundingBox{MaxX: proj.WorldSize, MaxY: proj.WorldSize}
	r := RangeFor(world, 2)

	want := Range{Z: 2, MinX: 0, MaxX: 3, MinY: 0, MaxY: 3}
	if r != want {
		t.Errorf("RangeFor(world, 2) = %+v, want %+v", r, want)
	}
	if got := len(r.Keys()); got != 16 {
		t.Errorf("len(Keys()) = %d, want 16", got)
	}
}

func TestKeysFor(t *testing.T) {
	p := proj.GeoToMeter(0.0001, -0.0001)
	box := spatial.BoundingBox{MinX: p.X, MinY: p.Y, MaxX: p.X, MaxY: p.Y}

	keys := KeysFor(box, 0, 3)
	if len(keys) != 4 {
		t.Fatalf("KeysFor returned %d keys, want 4", len(keys))
	}
	counts := CountByZoom(keys)
	for z := 0; z <= 3; z++ {
		if counts[z] != 1 {
			t.Errorf("zoom %d: %d keys, want 1", z, counts[z])
		}
	}
}

func TestWriteAndReadList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiles.txt")
	keys := []Key{
		{Z: 14, X: 3, Y: 1},
		{Z: 13, X: 2, Y: 9},
		{Z: 13, X: 1, Y: 5},
		{Z: 13, X: 1, Y: 4},
	}

	if err := WriteList(path, keys); err != nil {
		t.Fatalf("WriteList: %v", err)
	}
	if keys[0] != (Key{Z: 14, X: 3, Y: 1}) {
		t.Errorf("WriteList reordered the input slice")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "13/1/4\n13/1/5\n13/2/9\n14/3/1\n"
	if string(data) != want {
		t.Errorf("file content = %q, want %q", data, want)
	}

	got, err := ReadList(path)
	if err != nil {
		t.Fatalf("ReadList: %v", err)
	}
	if len(got) != len(keys) || got[0] != (Key{Z: 13, X: 1, Y: 4}) {
		t.Errorf("ReadList = %v", got)
	}
}

func TestWriteListLeavesNoPartialFile(t *testing.T) {
	dir := t.TempDir()
	if err := WriteList(filepath.Join(dir, "missing", "tiles.txt"), []Key{{Z: 13, X: 1, Y: 4}}); err == nil {
		t.Fatal("WriteList succeeded into a missing directory")
	}

	path := filepath.Join(dir, "tiles.txt")
	if err := WriteList(path, []Key{{Z: 13, X: 1, Y: 4}}); err != nil {
		t.Fatalf("WriteList: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "tiles.txt" {
		t.Errorf("directory holds %v, want only tiles.txt", entries)
	}
}

func TestReadListRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiles.txt")
	if err := os.WriteFile(path, []byte("13/1/4\nnot-a-tile\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadList(path); err == nil {
		t.Errorf("ReadList accepted a malformed line")
	}
}
