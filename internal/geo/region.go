package geo

import (
	"sort"

	"github.com/twpayne/go-geom"
)

// Region is one map feature.
type Region struct {
	Name     string    `json:"name"`      // name in the geometry source
	DataName string    `json:"data_name"` // name in the dataset after translation
	Matched  bool      `json:"matched"`   // DataName has rows in the dataset
	Bounds   []float64 `json:"bounds,omitempty"`
	Geometry geom.T    `json:"-"`
}

// Layer is the set of regions drawn on the map.
type Layer struct {
	Regions   []Region
	byName    map[string]int
	byData    map[string]int
	unmatched []string
}

// RegionIndex reports whether the dataset knows a region name.
type RegionIndex interface {
	HasRegion(name string) bool
}

// Join translates every feature name through aliases and marks whether the
// result exists in idx. Unmatched regions stay in the layer and render as
// no data.
func Join(regions []Region, aliases Aliases, idx RegionIndex) *Layer {
	l := &Layer{
		Regions: make([]Region, len(regions)),
		byName:  make(map[string]int, len(regions)),
		byData:  make(map[string]int, len(regions)),
	}
	for i, r := range regions {
		r.DataName = aliases.Translate(r.Name)
		r.Matched = idx != nil && idx.HasRegion(r.DataName)
		if !r.Matched {
			l.unmatched = append(l.unmatched, r.Name)
		}
		l.Regions[i] = r
		l.byName[r.Name] = i
		if _, dup := l.byData[r.DataName]; !dup {
			l.byData[r.DataName] = i
		}
	}
	sort.Strings(l.unmatched)
	return l
}

// Len returns the number of regions.
func (l *Layer) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Regions)
}

// Lookup finds a region by geometry name or by dataset name.
func (l *Layer) Lookup(name string) (Region, bool) {
	if l == nil {
		return Region{}, false
	}
	if i, ok := l.byName[name]; ok {
		return l.Regions[i], true
	}
	if i, ok := l.byData[name]; ok {
		return l.Regions[i], true
	}
	return Region{}, false
}

// Unmatched returns geometry names with no dataset counterpart, sorted.
func (l *Layer) Unmatched() []string {
	if l == nil {
		return nil
	}
	return append([]string(nil), l.unmatched...)
}

func boundsOf(g geom.T) []float64 {
	if g == nil {
		return nil
	}
	b := g.Bounds()
	if b == nil || b.IsEmpty() {
		return nil
	}
	return []float64{b.Min(0), b.Min(1), b.Max(0), b.Max(1)}
}
