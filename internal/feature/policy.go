package feature

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// UnknownRank is the draw rank of highway values missing from the road order.
const UnknownRank = 999

// WayClassifier decides whether a way is kept and which categories it feeds.
// A way that is kept may still have an empty category set.
type WayClassifier interface {
	ClassifyWay(tags map[string]string) (Set, bool, error)
}

// Rules is the YAML style file format.
// Omitted sections keep their defaults. A section that is present replaces
// the default section wholesale, except min_zoom which is merged per category.
type Rules struct {
	// IncludeKeys keeps a way without a highway tag when any of these keys is present
	IncludeKeys []string `yaml:"include_keys,omitempty"`
	// HighwayReject drops highway ways with one of these values
	HighwayReject []string `yaml:"highway_reject,omitempty"`
	// Highways maps a category name to the highway values drawn in it
	Highways map[string][]string `yaml:"highways,omitempty"`
	// HighwayOrder lists highway values from most to least important
	HighwayOrder []string `yaml:"highway_order,omitempty"`
	// WaterAreas lists waterway values drawn as water areas; other waterways are lines
	WaterAreas []string `yaml:"water_areas,omitempty"`
	// KeyCategories maps a tag key to the category of ways carrying it
	KeyCategories map[string]string `yaml:"key_categories,omitempty"`
	// MinZoom is the zoom at which a category switches on
	MinZoom map[string]int `yaml:"min_zoom,omitempty"`
}

// DefaultRules returns the built-in policy.
func DefaultRules() *Rules {
	return &Rules{
		IncludeKeys: []string{
			"highway", "landuse", "natural", "leisure", "waterway",
			"amenity", "place", "barrier", "surface", "building",
		},
		HighwayReject: []string{"unclassified", "cycleway", "elevator", "crossing"},
		Highways: map[string][]string{
			"highwayA": {"motorway", "motorway_link", "trunk", "trunk_link"},
			"highwayB": {
				"primary", "primary_link", "secondary", "secondary_link",
				"tertiary", "tertiary_link",
			},
			"highwayC": {"living_street", "residential"},
			"highwayD": {"construction", "steps", "footway", "pedestrian", "path", "service", "track"},
		},
		HighwayOrder: []string{
			"motorway", "motorway_link", "trunk", "trunk_link",
			"primary", "primary_link", "secondary", "secondary_link",
			"tertiary", "tertiary_link", "living_street", "pedestrian",
			"residential", "unclassified", "service", "track",
			"bus_guideway", "raceway", "road", "path",
			"footway", "cycleway", "bridleway", "steps",
			"proposed", "construction",
		},
		WaterAreas: []string{"riverbank"},
		KeyCategories: map[string]string{
			"landuse":  "landuse",
			"leisure":  "natural",
			"natural":  "natural",
			"building": "building",
			"place":    "building",
			"barrier":  "building",
		},
		MinZoom: map[string]int{
			"waterA":   0,
			"waterB":   0,
			"highwayA": 0,
			"highwayB": 13,
			"highwayC": 14,
			"highwayD": 14,
			"landuse":  0,
			"natural":  0,
			"building": 15,
		},
	}
}

// LoadRules reads a YAML style file on top of DefaultRules.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read style file: %w", err)
	}

	var file Rules
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse style YAML: %w", err)
	}

	rules := DefaultRules()
	if file.IncludeKeys != nil {
		rules.IncludeKeys = file.IncludeKeys
	}
	if file.HighwayReject != nil {
		rules.HighwayReject = file.HighwayReject
	}
	if file.Highways != nil {
		rules.Highways = file.Highways
	}
	if file.HighwayOrder != nil {
		rules.HighwayOrder = file.HighwayOrder
	}
	if file.WaterAreas != nil {
		rules.WaterAreas = file.WaterAreas
	}
	if file.KeyCategories != nil {
		rules.KeyCategories = file.KeyCategories
	}
	for name, z := range file.MinZoom {
		rules.MinZoom[name] = z
	}

	return rules, nil
}

// Policy is a compiled set of Rules. It is read-only and safe for
// concurrent use.
type Policy struct {
	includeKeys   []string
	reject        map[string]struct{}
	highways      map[string]Category
	rank          map[string]int
	waterAreas    map[string]struct{}
	keyCategories map[string]Category
	minZoom       [numCategories]int
}

// NewPolicy compiles rules, rejecting unknown category names.
func NewPolicy(r *Rules) (*Policy, error) {
	p := &Policy{
		includeKeys:   append([]string(nil), r.IncludeKeys...),
		reject:        toSet(r.HighwayReject),
		highways:      make(map[string]Category),
		rank:          make(map[string]int, len(r.HighwayOrder)),
		waterAreas:    toSet(r.WaterAreas),
		keyCategories: make(map[string]Category, len(r.KeyCategories)),
	}

	for name, values := range r.Highways {
		c, err := ParseCategory(name)
		if err != nil {
			return nil, fmt.Errorf("highways: %w", err)
		}
		if !c.IsHighway() {
			return nil, fmt.Errorf("highways: %s is not a highway category", c)
		}
		for _, v := range values {
			if prev, ok := p.highways[v]; ok && prev != c {
				return nil, fmt.Errorf("highways: value %q listed under both %s and %s", v, prev, c)
			}
			p.highways[v] = c
		}
	}

	// First occurrence wins, so a value listed twice keeps its better rank.
	for i, v := range r.HighwayOrder {
		if _, ok := p.rank[v]; !ok {
			p.rank[v] = i
		}
	}

	for key, name := range r.KeyCategories {
		c, err := ParseCategory(name)
		if err != nil {
			return nil, fmt.Errorf("key_categories[%s]: %w", key, err)
		}
		p.keyCategories[key] = c
	}

	for name, z := range r.MinZoom {
		c, err := ParseCategory(name)
		if err != nil {
			return nil, fmt.Errorf("min_zoom: %w", err)
		}
		if z < 0 {
			return nil, fmt.Errorf("min_zoom[%s]: negative zoom %d", name, z)
		}
		p.minZoom[c] = z
	}

	return p, nil
}

// DefaultPolicy compiles DefaultRules.
func DefaultPolicy() *Policy {
	p, err := NewPolicy(DefaultRules())
	if err != nil {
		panic(fmt.Sprintf("default feature rules are invalid: %v", err))
	}
	return p
}

// LoadPolicy reads and compiles a YAML style file.
func LoadPolicy(path string) (*Policy, error) {
	rules, err := LoadRules(path)
	if err != nil {
		return nil, err
	}
	p, err := NewPolicy(rules)
	if err != nil {
		return nil, fmt.Errorf("invalid style %s: %w", path, err)
	}
	return p, nil
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// IncludeWay reports whether a way enters the dataset at all.
// A highway tag decides on its own: the way is kept unless its value is
// rejected. Without one, any include key keeps the way.
func (p *Policy) IncludeWay(tags map[string]string) bool {
	if v, ok := tags["highway"]; ok {
		_, rejected := p.reject[v]
		return !rejected
	}

	for _, key := range p.includeKeys {
		if _, ok := tags[key]; ok {
			return true
		}
	}
	return false
}

// Classify returns every category the tags feed. Highway values without a
// bucket add nothing.
func (p *Policy) Classify(tags map[string]string) Set {
	var s Set

	if v, ok := tags["highway"]; ok {
		if c, ok := p.highways[v]; ok {
			s = s.Add(c)
		}
	}

	if v, ok := tags["waterway"]; ok {
		if _, area := p.waterAreas[v]; area {
			s = s.Add(WaterArea)
		} else {
			s = s.Add(WaterLine)
		}
	}

	for key, c := range p.keyCategories {
		if _, ok := tags[key]; ok {
			s = s.Add(c)
		}
	}

	return s
}

// ClassifyWay implements WayClassifier.
func (p *Policy) ClassifyWay(tags map[string]string) (Set, bool, error) {
	if !p.IncludeWay(tags) {
		return 0, false, nil
	}
	return p.Classify(tags), true, nil
}

// HighwayRank returns the draw rank of the way's highway value; lower is
// drawn first. Ways without a ranked highway value get UnknownRank.
func (p *Policy) HighwayRank(tags map[string]string) int {
	if r, ok := p.rank[tags["highway"]]; ok {
		return r
	}
	return UnknownRank
}

// MinZoom returns the zoom at which c switches on.
func (p *Policy) MinZoom(c Category) int {
	return p.minZoom[c]
}

// ZoomIncludes reports whether tiles at zoom carry category c in a dataset
// that starts at minZoom.
//
// A category is emitted at exactly one zoom: at minZoom when it switches on
// at or before it, otherwise at its own switch-on zoom. Consumers are
// expected to inherit it at finer zooms by walking up the tile pyramid.
func (p *Policy) ZoomIncludes(c Category, zoom, minZoom int) bool {
	start := p.minZoom[c]
	return (zoom == minZoom && start <= minZoom) || start == zoom
}
