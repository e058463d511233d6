// Package aggregate derives rankings and weekly rollups from a records.Store.
// Results are pure functions of their inputs and are memoized.
package aggregate

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/epidash/internal/model"
	"github.com/sells-group/epidash/internal/records"
)

// DefaultCacheEntries is used when Options.CacheEntries is zero.
const DefaultCacheEntries = 64

// Options configures an Aggregator.
type Options struct {
	WeekStart    time.Weekday
	CacheEntries int
}

// Aggregator computes Top-N rankings and weekly rollups over the full
// dataset. The active range filter never participates.
type Aggregator struct {
	store     *records.Store
	weekStart time.Weekday
	cache     *Cache
}

// New creates an Aggregator over st.
func New(st *records.Store, opts Options) *Aggregator {
	n := opts.CacheEntries
	if n <= 0 {
		n = DefaultCacheEntries
	}
	return &Aggregator{
		store:     st,
		weekStart: opts.WeekStart,
		cache:     NewCache(n, 0),
	}
}

// ParseWeekStart maps "sunday" or "monday" to a weekday.
func ParseWeekStart(s string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sunday", "sun":
		return time.Sunday, nil
	case "monday", "mon":
		return time.Monday, nil
	default:
		return time.Sunday, eris.Errorf("aggregate: unsupported week start %q", s)
	}
}

// WeekStart returns the start of the week containing t.
func (a *Aggregator) WeekStart(t time.Time) time.Time {
	return weekStart(t, a.weekStart)
}

func weekStart(t time.Time, origin time.Weekday) time.Time {
	d := model.Day(t)
	back := (int(d.Weekday()) - int(origin) + 7) % 7
	return d.AddDate(0, 0, -back)
}

// TopNRegions returns the n regions with the largest full-dataset sum of
// metric. Ties keep first-seen order.
func (a *Aggregator) TopNRegions(metric model.Metric, n int) []string {
	key := fmt.Sprintf("topn/%s/%d", metric, n)
	if v, ok := a.cache.Get(key); ok {
		return append([]string(nil), v.([]string)...)
	}

	regions := a.store.Regions()
	sums := make(map[string]int64, len(regions))
	for _, o := range a.store.All() {
		sums[o.Region] += o.Value(metric)
	}
	sort.SliceStable(regions, func(i, j int) bool {
		return sums[regions[i]] > sums[regions[j]]
	})
	if n < 0 {
		n = 0
	}
	if n < len(regions) {
		regions = regions[:n]
	}

	a.cache.Put(key, regions)
	return append([]string(nil), regions...)
}

// WeeklyRollup sums metric per (region, week) for the requested regions.
// Every requested region gets a series, empty when it has no rows.
func (a *Aggregator) WeeklyRollup(regions []string, metric model.Metric) model.Rollup {
	key := "rollup/" + string(metric) + "/" + strings.Join(regions, "\x1f")
	if v, ok := a.cache.Get(key); ok {
		return cloneRollup(v.(model.Rollup))
	}

	wanted := make(map[string]map[time.Time]int64, len(regions))
	for _, r := range regions {
		wanted[r] = make(map[time.Time]int64)
	}
	for _, o := range a.store.All() {
		buckets, ok := wanted[o.Region]
		if !ok {
			continue
		}
		buckets[weekStart(o.Date, a.weekStart)] += o.Value(metric)
	}

	out := model.Rollup{Metric: metric, Series: make([]model.Series, 0, len(regions))}
	seen := make(map[string]bool, len(regions))
	for _, r := range regions {
		if seen[r] {
			continue
		}
		seen[r] = true
		points := make([]model.WeekPoint, 0, len(wanted[r]))
		for wk, v := range wanted[r] {
			points = append(points, model.WeekPoint{WeekStart: wk, Value: v})
		}
		sort.Slice(points, func(i, j int) bool { return points[i].WeekStart.Before(points[j].WeekStart) })
		out.Series = append(out.Series, model.Series{Region: r, Points: points})
	}

	a.cache.Put(key, out)
	return cloneRollup(out)
}

// Stats returns the memo cache statistics.
func (a *Aggregator) Stats() CacheStats {
	return a.cache.Stats()
}

func cloneRollup(r model.Rollup) model.Rollup {
	out := model.Rollup{Metric: r.Metric, Series: make([]model.Series, len(r.Series))}
	for i, s := range r.Series {
		out.Series[i] = model.Series{Region: s.Region, Points: append(make([]model.WeekPoint, 0, len(s.Points)), s.Points...)}
	}
	return out
}
