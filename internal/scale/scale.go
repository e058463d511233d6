// Package scale maps metric values to map colors and Top-N regions to
// categorical series colors.
package scale

import (
	"time"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/sells-group/epidash/internal/model"
	"github.com/sells-group/epidash/internal/records"
)

// NoDataHex is the fill for regions with no row on the current date.
const NoDataHex = "#444444"

// Color is a rendered fill. NoData marks a lookup miss, not a zero value.
type Color struct {
	Hex    string `json:"hex"`
	NoData bool   `json:"no_data,omitempty"`
}

// NoData is the sentinel color for missing observations.
var NoData = Color{Hex: NoDataHex, NoData: true}

// Domain is the sequential color domain. Min is always 0.
type Domain struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

// ColorDomain scans the active range (the full date set when active is
// empty) and returns [0, max]. When no positive value exists the domain is
// [0, 1].
func ColorDomain(st *records.Store, metric model.Metric, active []time.Time) Domain {
	dates := active
	if len(dates) == 0 {
		dates = st.Dates()
	}
	var max int64
	for _, d := range dates {
		for _, o := range st.DayOf(d) {
			if v := o.Value(metric); v > max {
				max = v
			}
		}
	}
	if max <= 0 {
		max = 1
	}
	return Domain{Min: 0, Max: max}
}

// TrendDomain returns the trend chart's y domain, [0, largest weekly
// bucket]. An all-zero rollup gets [0, 1].
func TrendDomain(r model.Rollup) Domain {
	max := r.Max()
	if max <= 0 {
		max = 1
	}
	return Domain{Min: 0, Max: max}
}

// Normalize returns value's position in d, clamped to [0, 1].
func (d Domain) Normalize(value int64) float64 {
	span := d.Max - d.Min
	if span <= 0 {
		return 0
	}
	t := float64(value-d.Min) / float64(span)
	switch {
	case t < 0:
		return 0
	case t > 1:
		return 1
	}
	return t
}

// rdYlGn is the diverging red-yellow-green scheme, red first.
var rdYlGn = []string{
	"#a50026", "#d73027", "#f46d43", "#fdae61", "#fee08b", "#ffffbf",
	"#d9ef8b", "#a6d96a", "#66bd63", "#1a9850", "#006837",
}

// gradient runs green to red so that larger values read as worse.
var gradient = mustParse(reversed(rdYlGn))

// Interpolate samples the reversed RdYlGn gradient at t in [0, 1],
// blending neighbouring stops in Lab space.
func Interpolate(t float64) Color {
	if t <= 0 {
		return Color{Hex: gradient[0].Hex()}
	}
	if t >= 1 {
		return Color{Hex: gradient[len(gradient)-1].Hex()}
	}
	pos := t * float64(len(gradient)-1)
	i := int(pos)
	frac := pos - float64(i)
	if frac == 0 {
		return Color{Hex: gradient[i].Hex()}
	}
	c := gradient[i].BlendLab(gradient[i+1], frac).Clamped()
	return Color{Hex: c.Hex()}
}

func mustParse(hexes []string) []colorful.Color {
	out := make([]colorful.Color, len(hexes))
	for i, h := range hexes {
		c, err := colorful.Hex(h)
		if err != nil {
			panic(err)
		}
		out[i] = c
	}
	return out
}

func reversed(s []string) []string {
	out := make([]string, len(s))
	for i, v := range s {
		out[len(s)-1-i] = v
	}
	return out
}
