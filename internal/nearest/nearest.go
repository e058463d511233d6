// Package nearest resolves a hovered instant to the closest weekly sample.
package nearest

import (
	"sort"
	"time"

	"github.com/sells-group/epidash/internal/model"
)

// Sample is one region's nearest point to a hovered instant.
type Sample struct {
	Region    string    `json:"region"`
	WeekStart time.Time `json:"week_start"`
	Value     int64     `json:"value"`
}

// Nearest returns the point in series closest to t. series must be sorted
// ascending by WeekStart. Equidistant neighbours resolve to the earlier
// point, and instants outside the series clamp to its ends. The bool is
// false only for an empty series.
func Nearest(series []model.WeekPoint, t time.Time) (model.WeekPoint, bool) {
	if len(series) == 0 {
		return model.WeekPoint{}, false
	}
	i := sort.Search(len(series), func(i int) bool {
		return !series[i].WeekStart.Before(t)
	})
	switch {
	case i == 0:
		return series[0], true
	case i == len(series):
		return series[len(series)-1], true
	}
	prev, next := series[i-1], series[i]
	if t.Sub(prev.WeekStart) > next.WeekStart.Sub(t) {
		return next, true
	}
	return prev, true
}

// All returns the nearest sample of every non-empty series in r, sorted by
// value descending. Equal values keep rollup order.
func All(r model.Rollup, t time.Time) []Sample {
	out := make([]Sample, 0, len(r.Series))
	for _, s := range r.Series {
		p, ok := Nearest(s.Points, t)
		if !ok {
			continue
		}
		out = append(out, Sample{Region: s.Region, WeekStart: p.WeekStart, Value: p.Value})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	return out
}
