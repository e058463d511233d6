// Package records holds the immutable, indexed set of raw observations.
package records

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/epidash/internal/fetcher"
	"github.com/sells-group/epidash/internal/model"
)

// Store indexes observations by date and by (date, region). It is built
// once and never mutated.
type Store struct {
	all     []model.Observation
	dates   []time.Time
	byDate  map[time.Time]map[string]model.Observation
	totals  map[time.Time]model.Totals
	regions []string
	known   map[string]bool
}

// New builds a Store from decoded observations. Duplicate (date, region)
// pairs keep the first occurrence and are reported as rejected.
func New(obs []model.Observation) (*Store, *LoadReport) {
	b := newBuilder()
	report := &LoadReport{}
	for i, o := range obs {
		o.Region = NormalizeRegion(o.Region)
		o.Date = model.Day(o.Date)
		if o.Region == "" {
			report.add(&DataFormatError{Line: i + 1, Column: ColProvince, Reason: "missing region name", Rejected: true})
			continue
		}
		if err := b.add(o, i+1); err != nil {
			report.add(err)
			continue
		}
		report.Accepted++
	}
	return b.build(), report
}

// Load drains a row stream into a Store. Malformed rows are dropped and
// collected in the report; loading never stops on a single bad row. A read
// error from the source, or zero accepted rows, fails the load.
func Load(ctx context.Context, rowCh <-chan fetcher.Row, errCh <-chan error) (*Store, *LoadReport, error) {
	log := zap.L().With(zap.String("component", "records.load"))

	b := newBuilder()
	report := &LoadReport{}
	for row := range rowCh {
		obs, coerced, rejected := Parse(row)
		if rejected != nil {
			report.add(rejected)
			continue
		}
		for _, c := range coerced {
			report.add(c)
		}
		if dup := b.add(obs, row.Line); dup != nil {
			report.add(dup)
			continue
		}
		report.Accepted++
	}

	for err := range errCh {
		if err != nil {
			return nil, report, eris.Wrap(err, "records: read source")
		}
	}
	if ctx.Err() != nil {
		return nil, report, eris.Wrap(ctx.Err(), "records: load cancelled")
	}
	if report.Accepted == 0 {
		return nil, report, ErrEmptyDataset
	}

	st := b.build()
	log.Info("dataset loaded",
		zap.Int("accepted", report.Accepted),
		zap.Int("rejected", report.Rejected),
		zap.Int("coerced", report.Coerced),
		zap.Int("dates", len(st.dates)),
		zap.Int("regions", len(st.regions)),
	)
	if err := report.Err(); err != nil {
		log.Warn("dataset has malformed rows", zap.Error(err))
	}
	return st, report, nil
}

// Dates returns the distinct dates in ascending order.
func (s *Store) Dates() []time.Time {
	out := make([]time.Time, len(s.dates))
	copy(out, s.dates)
	return out
}

// ObservationAt returns the row for (date, region). The bool is false on a
// lookup miss, which is not the same as a row of zeros.
func (s *Store) ObservationAt(date time.Time, region string) (model.Observation, bool) {
	day, ok := s.byDate[model.Day(date)]
	if !ok {
		return model.Observation{}, false
	}
	o, ok := day[region]
	return o, ok
}

// NationalTotalsAt returns the per-field sums across all regions for date.
func (s *Store) NationalTotalsAt(date time.Time) (model.Totals, bool) {
	t, ok := s.totals[model.Day(date)]
	return t, ok
}

// DayOf returns region -> observation for date. The map must not be modified.
func (s *Store) DayOf(date time.Time) map[string]model.Observation {
	return s.byDate[model.Day(date)]
}

// All returns every accepted observation in load order. The slice must not be modified.
func (s *Store) All() []model.Observation {
	return s.all
}

// Regions returns region names in first-seen order.
func (s *Store) Regions() []string {
	out := make([]string, len(s.regions))
	copy(out, s.regions)
	return out
}

// HasRegion reports whether any row names region.
func (s *Store) HasRegion(region string) bool {
	return s.known[region]
}

// Len returns the number of observations.
func (s *Store) Len() int {
	return len(s.all)
}

type builder struct {
	st *Store
}

func newBuilder() *builder {
	return &builder{st: &Store{
		byDate: make(map[time.Time]map[string]model.Observation),
		totals: make(map[time.Time]model.Totals),
		known:  make(map[string]bool),
	}}
}

func (b *builder) add(o model.Observation, line int) *DataFormatError {
	st := b.st
	day, ok := st.byDate[o.Date]
	if !ok {
		day = make(map[string]model.Observation)
		st.byDate[o.Date] = day
		st.dates = append(st.dates, o.Date)
	}
	if _, dup := day[o.Region]; dup {
		return &DataFormatError{
			Line:     line,
			Column:   ColProvince,
			Value:    o.Region,
			Reason:   "duplicate region for " + o.Date.Format(model.DateLayout),
			Rejected: true,
		}
	}
	day[o.Region] = o

	t := st.totals[o.Date]
	t.Add(o)
	st.totals[o.Date] = t

	if !st.known[o.Region] {
		st.known[o.Region] = true
		st.regions = append(st.regions, o.Region)
	}
	st.all = append(st.all, o)
	return nil
}

func (b *builder) build() *Store {
	sort.Slice(b.st.dates, func(i, j int) bool { return b.st.dates[i].Before(b.st.dates[j]) })
	return b.st
}
