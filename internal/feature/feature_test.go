package feature

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCategoryNames(t *testing.T) {
	want := []string{"waterA", "waterB", "highwayA", "highwayB", "highwayC", "highwayD", "landuse", "natural", "building"}
	all := All()
	if len(all) != len(want) {
		t.Fatalf("All() has %d categories, want %d", len(all), len(want))
	}
	for i, c := range all {
		if c.String() != want[i] {
			t.Errorf("category %d = %q, want %q", i, c.String(), want[i])
		}
	}
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    Category
		wantErr bool
	}{
		{in: "waterA", want: WaterArea},
		{in: "highwayD", want: HighwayMinor},
		{in: "water-line", want: WaterLine},
		{in: "Highway-Major", want: HighwayMajor},
		{in: "building", want: Building},
		{in: "HIGHWAYA", wantErr: true},
		{in: "roads", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseCategory(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCategory(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseCategory(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCategoryJSONKey(t *testing.T) {
	in := map[Category]int{HighwayMajor: 2, Building: 1}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `{"building":1,"highwayA":2}` {
		t.Errorf("Marshal = %s", data)
	}

	var out map[Category]int
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out[HighwayMajor] != 2 || out[Building] != 1 {
		t.Errorf("Unmarshal = %v", out)
	}
}

func TestSet(t *testing.T) {
	var s Set
	if !s.Empty() {
		t.Errorf("zero Set is not empty")
	}
	s = s.Add(Building).Add(WaterArea).Add(Building)

	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
	if !s.Has(Building) || !s.Has(WaterArea) || s.Has(Natural) {
		t.Errorf("Has reports wrong membership for %v", s)
	}
	got := s.Categories()
	if len(got) != 2 || got[0] != WaterArea || got[1] != Building {
		t.Errorf("Categories() = %v, want [waterA building]", got)
	}
	if s.String() != "[waterA,building]" {
		t.Errorf("String() = %q", s.String())
	}
}

func TestIsHighway(t *testing.T) {
	for _, c := range All() {
		want := c == HighwayMajor || c == HighwaySecondary || c == HighwayResidential || c == HighwayMinor
		if c.IsHighway() != want {
			t.Errorf("%v.IsHighway() = %v, want %v", c, c.IsHighway(), want)
		}
	}
}

func TestIncludeWay(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name string
		tags map[string]string
		want bool
	}{
		{"motorway", map[string]string{"highway": "motorway"}, true},
		{"unclassified road", map[string]string{"highway": "unclassified"}, false},
		{"cycleway", map[string]string{"highway": "cycleway"}, false},
		{"rejected highway with landuse", map[string]string{"highway": "crossing", "landuse": "grass"}, false},
		{"unknown highway value", map[string]string{"highway": "bus_stop"}, true},
		{"building", map[string]string{"building": "yes"}, true},
		{"amenity only", map[string]string{"amenity": "parking"}, true},
		{"riverbank", map[string]string{"waterway": "riverbank"}, true},
		{"untagged", map[string]string{}, false},
		{"name only", map[string]string{"name": "Main Street"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.IncludeWay(tt.tags); got != tt.want {
				t.Errorf("IncludeWay(%v) = %v, want %v", tt.tags, got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name string
		tags map[string]string
		want []Category
	}{
		{"motorway", map[string]string{"highway": "motorway"}, []Category{HighwayMajor}},
		{"trunk link", map[string]string{"highway": "trunk_link"}, []Category{HighwayMajor}},
		{"primary", map[string]string{"highway": "primary"}, []Category{HighwaySecondary}},
		{"tertiary", map[string]string{"highway": "tertiary"}, []Category{HighwaySecondary}},
		{"residential", map[string]string{"highway": "residential"}, []Category{HighwayResidential}},
		{"footway", map[string]string{"highway": "footway"}, []Category{HighwayMinor}},
		{"unknown highway", map[string]string{"highway": "bus_stop"}, nil},
		{"riverbank", map[string]string{"waterway": "riverbank"}, []Category{WaterArea}},
		{"river", map[string]string{"waterway": "river"}, []Category{WaterLine}},
		{"landuse", map[string]string{"landuse": "forest"}, []Category{Landuse}},
		{"leisure", map[string]string{"leisure": "park"}, []Category{Natural}},
		{"natural", map[string]string{"natural": "wood"}, []Category{Natural}},
		{"building", map[string]string{"building": "yes"}, []Category{Building}},
		{"place", map[string]string{"place": "square"}, []Category{Building}},
		{"barrier", map[string]string{"barrier": "fence"}, []Category{Building}},
		{"amenity only", map[string]string{"amenity": "parking"}, nil},
		{
			"multiple keys",
			map[string]string{"highway": "pedestrian", "area": "yes", "landuse": "retail", "building": "yes"},
			[]Category{HighwayMinor, Landuse, Building},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Classify(tt.tags).Categories()
			if len(got) != len(tt.want) {
				t.Fatalf("Classify(%v) = %v, want %v", tt.tags, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Classify(%v) = %v, want %v", tt.tags, got, tt.want)
				}
			}
		})
	}
}

func TestClassifyWay(t *testing.T) {
	p := DefaultPolicy()

	set, ok, err := p.ClassifyWay(map[string]string{"highway": "motorway"})
	if err != nil || !ok {
		t.Fatalf("ClassifyWay(motorway) = %v, %v, %v", set, ok, err)
	}
	if set.Len() != 1 || !set.Has(HighwayMajor) {
		t.Errorf("motorway classified as %v, want only highwayA", set)
	}

	if _, ok, _ := p.ClassifyWay(map[string]string{"highway": "unclassified"}); ok {
		t.Errorf("highway=unclassified was included")
	}

	set, ok, _ = p.ClassifyWay(map[string]string{"building": "yes"})
	if !ok || !set.Has(Building) {
		t.Errorf("building=yes classified as %v (included %v), want building", set, ok)
	}
}

func TestHighwayRank(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		value string
		want  int
	}{
		{"motorway", 0},
		{"trunk", 2},
		{"primary", 4},
		{"residential", 12},
		{"construction", 25},
		{"bus_stop", UnknownRank},
		{"", UnknownRank},
	}

	for _, tt := range tests {
		if got := p.HighwayRank(map[string]string{"highway": tt.value}); got != tt.want {
			t.Errorf("HighwayRank(%q) = %d, want %d", tt.value, got, tt.want)
		}
	}
	if got := p.HighwayRank(map[string]string{"building": "yes"}); got != UnknownRank {
		t.Errorf("HighwayRank(no highway) = %d, want %d", got, UnknownRank)
	}
}

func TestZoomIncludes(t *testing.T) {
	p := DefaultPolicy()
	const minZoom = 13

	tests := []struct {
		cat  Category
		zoom int
		want bool
	}{
		// Always-on categories appear at the dataset's first zoom only.
		{WaterArea, 13, true},
		{WaterArea, 14, false},
		{HighwayMajor, 13, true},
		{HighwayMajor, 18, false},
		// highwayB switches on at 13, which is also the first zoom.
		{HighwaySecondary, 13, true},
		{HighwaySecondary, 14, false},
		{HighwayResidential, 13, false},
		{HighwayResidential, 14, true},
		{HighwayMinor, 14, true},
		{HighwayMinor, 15, false},
		{Building, 14, false},
		{Building, 15, true},
		{Building, 16, false},
	}

	for _, tt := range tests {
		if got := p.ZoomIncludes(tt.cat, tt.zoom, minZoom); got != tt.want {
			t.Errorf("ZoomIncludes(%v, %d, %d) = %v, want %v", tt.cat, tt.zoom, minZoom, got, tt.want)
		}
	}
}

func TestZoomIncludesLateStart(t *testing.T) {
	p := DefaultPolicy()

	// With the dataset starting at 15 a category switching on at 14 never appears.
	if p.ZoomIncludes(HighwayResidential, 15, 15) {
		t.Errorf("highwayC included at 15 although it switches on at 14")
	}
	if !p.ZoomIncludes(Building, 15, 15) {
		t.Errorf("building not included at 15")
	}
}

func TestLoadPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "style.yaml")
	style := `
highway_reject: [unclassified, cycleway, elevator, crossing, service]
highways:
  highway-major: [motorway, trunk]
  highwayB: [primary, secondary]
  highwayD: [service, track]
min_zoom:
  building: 16
`
	if err := os.WriteFile(path, []byte(style), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy: %v", err)
	}

	if p.IncludeWay(map[string]string{"highway": "service"}) {
		t.Errorf("highway=service included after being rejected")
	}
	if got := p.Classify(map[string]string{"highway": "motorway_link"}); !got.Empty() {
		t.Errorf("motorway_link classified as %v after the table was replaced", got)
	}
	if got := p.Classify(map[string]string{"highway": "trunk"}); !got.Has(HighwayMajor) {
		t.Errorf("trunk classified as %v, want highwayA", got)
	}
	if p.MinZoom(Building) != 16 {
		t.Errorf("MinZoom(building) = %d, want 16", p.MinZoom(Building))
	}
	if p.MinZoom(HighwayResidential) != 14 {
		t.Errorf("MinZoom(highwayC) = %d, want default 14", p.MinZoom(HighwayResidential))
	}
	// Sections not in the file keep their defaults.
	if !p.Classify(map[string]string{"leisure": "park"}).Has(Natural) {
		t.Errorf("leisure no longer maps to natural")
	}
}

func TestLoadPolicyErrors(t *testing.T) {
	tests := []struct {
		name  string
		style string
		want  string
	}{
		{"unknown category", "min_zoom:\n  roads: 3\n", "unknown feature category"},
		{"non highway bucket", "highways:\n  landuse: [motorway]\n", "not a highway category"},
		{"value in two buckets", "highways:\n  highwayA: [motorway]\n  highwayB: [motorway]\n", "listed under both"},
		{"negative zoom", "min_zoom:\n  waterA: -1\n", "negative zoom"},
		{"bad yaml", "highways: [", "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "style.yaml")
			if err := os.WriteFile(path, []byte(tt.style), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := LoadPolicy(path)
			if err == nil {
				t.Fatalf("LoadPolicy accepted %q", tt.style)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to mention %q", err, tt.want)
			}
		})
	}

	if _, err := LoadPolicy(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("LoadPolicy accepted a missing file")
	}
}
