package model

import "time"

// WeekPoint is one bucket of a weekly rollup.
type WeekPoint struct {
	WeekStart time.Time `json:"week_start"`
	Value     int64     `json:"value"`
}

// Series is a single region's weekly rollup, ascending by WeekStart.
type Series struct {
	Region string      `json:"region"`
	Points []WeekPoint `json:"points"`
}

// Rollup is the per-region weekly series for one metric. Series keeps
// the order of the requested region set.
type Rollup struct {
	Metric Metric   `json:"metric"`
	Series []Series `json:"series"`
}

// Lookup returns the series for region.
func (r Rollup) Lookup(region string) ([]WeekPoint, bool) {
	for _, s := range r.Series {
		if s.Region == region {
			return s.Points, true
		}
	}
	return nil, false
}

// Regions returns the region names in rollup order.
func (r Rollup) Regions() []string {
	out := make([]string, len(r.Series))
	for i, s := range r.Series {
		out[i] = s.Region
	}
	return out
}

// Max returns the largest bucket value across all series.
func (r Rollup) Max() int64 {
	var max int64
	for _, s := range r.Series {
		for _, p := range s.Points {
			if p.Value > max {
				max = p.Value
			}
		}
	}
	return max
}
