// Package feature decides which ways enter the tile dataset and which
// renderer categories they are drawn in.
package feature

import (
	"fmt"
	"strings"
)

// Category is a renderer feature bucket.
type Category uint8

const (
	WaterArea Category = iota
	WaterLine
	HighwayMajor
	HighwaySecondary
	HighwayResidential
	HighwayMinor
	Landuse
	Natural
	Building

	numCategories
)

// wireNames are the keys the renderer looks up in every tile record.
// They must not change.
var wireNames = [numCategories]string{
	WaterArea:          "waterA",
	WaterLine:          "waterB",
	HighwayMajor:       "highwayA",
	HighwaySecondary:   "highwayB",
	HighwayResidential: "highwayC",
	HighwayMinor:       "highwayD",
	Landuse:            "landuse",
	Natural:            "natural",
	Building:           "building",
}

var descriptiveNames = [numCategories]string{
	WaterArea:          "water-area",
	WaterLine:          "water-line",
	HighwayMajor:       "highway-major",
	HighwaySecondary:   "highway-secondary",
	HighwayResidential: "highway-residential",
	HighwayMinor:       "highway-minor",
	Landuse:            "landuse",
	Natural:            "natural",
	Building:           "building",
}

// All returns every category in wire order.
func All() []Category {
	all := make([]Category, numCategories)
	for i := range all {
		all[i] = Category(i)
	}
	return all
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c < numCategories
}

// String returns the wire name.
func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Category(%d)", uint8(c))
	}
	return wireNames[c]
}

// Description returns the human readable name, e.g. "water-area".
func (c Category) Description() string {
	if !c.Valid() {
		return c.String()
	}
	return descriptiveNames[c]
}

// IsHighway reports whether c is one of the road-class buckets.
func (c Category) IsHighway() bool {
	return c >= HighwayMajor && c <= HighwayMinor
}

// MarshalText encodes the wire name, so categories can key JSON objects.
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("unknown category %d", uint8(c))
	}
	return []byte(wireNames[c]), nil
}

// UnmarshalText accepts a wire or descriptive name.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCategory resolves a wire name ("highwayA") or a descriptive name
// ("highway-major"). Descriptive names are matched case-insensitively.
func ParseCategory(name string) (Category, error) {
	for i, n := range wireNames {
		if n == name {
			return Category(i), nil
		}
	}
	for i, n := range descriptiveNames {
		if strings.EqualFold(n, name) {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("unknown feature category %q", name)
}

// Set is a set of categories.
type Set uint16

// Add returns s with c added.
func (s Set) Add(c Category) Set {
	return s | 1<<c
}

// Has reports whether c is in s.
func (s Set) Has(c Category) bool {
	return s&(1<<c) != 0
}

// Empty reports whether s has no categories.
func (s Set) Empty() bool {
	return s == 0
}

// Len returns the number of categories in s.
func (s Set) Len() int {
	n := 0
	for c := Category(0); c < numCategories; c++ {
		if s.Has(c) {
			n++
		}
	}
	return n
}

// Categories lists the members of s in wire order.
func (s Set) Categories() []Category {
	var out []Category
	for c := Category(0); c < numCategories; c++ {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// String formats the set as a comma separated list of wire names.
func (s Set) String() string {
	cats := s.Categories()
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = c.String()
	}
	return "[" + strings.Join(names, ",") + "]"
}
