package dashboard

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/epidash/internal/model"
	"github.com/sells-group/epidash/internal/nearest"
	"github.com/sells-group/epidash/internal/playback"
	"github.com/sells-group/epidash/internal/scale"
)

// Event is a user or timer input applied by the Coordinator.
type Event interface {
	apply(c *Coordinator) (Result, error)
}

// SelectMetric switches the displayed metric.
type SelectMetric struct {
	Metric model.Metric
}

// FilterRange restricts the active range to dates in [From, To).
type FilterRange struct {
	From time.Time
	To   time.Time
}

// ClearRange restores the full date range.
type ClearRange struct{}

// Scrub moves the slider to Index within the active range.
type Scrub struct {
	Index int
}

// Tick advances playback. Ticks from an older generation are ignored.
type Tick struct {
	Gen uint64
}

// TogglePlay starts or stops playback.
type TogglePlay struct{}

// SelectRegion opens the detail view for a region by geometry or dataset name.
type SelectRegion struct {
	Name string
}

// CloseDetail closes the detail view.
type CloseDetail struct{}

// Hover returns the nearest weekly sample of every Top-N series to At.
type Hover struct {
	At time.Time
}

// GetSnapshot returns the current snapshot without changing anything.
type GetSnapshot struct{}

func (e SelectMetric) apply(c *Coordinator) (Result, error) {
	if !e.Metric.Selectable() {
		return c.unchanged(), eris.Wrapf(model.ErrUnknownMetric, "dashboard: select metric %q", e.Metric)
	}
	c.stopPlayback()
	c.state.Detail = nil

	c.state.Metric = e.Metric
	c.rank(e.Metric)
	c.rescale()
	return c.changed(), nil
}

func (e FilterRange) apply(c *Coordinator) (Result, error) {
	c.stopPlayback()
	c.state.Detail = nil

	lo, hi := c.window(e.From, e.To)
	if lo >= hi {
		c.state.Range = c.dates
		c.state.Filtered = false
	} else {
		c.state.Range = c.dates[lo:hi]
		c.state.Filtered = true
	}
	c.state.Index = 0
	c.rescale()
	return c.changed(), nil
}

func (ClearRange) apply(c *Coordinator) (Result, error) {
	c.stopPlayback()
	c.state.Detail = nil

	c.state.Range = c.dates
	c.state.Filtered = false
	c.state.Index = 0
	c.rescale()
	return c.changed(), nil
}

func (e Scrub) apply(c *Coordinator) (Result, error) {
	if e.Index < 0 || e.Index >= len(c.state.Range) {
		return c.unchanged(), eris.Wrapf(ErrIndexOutOfRange, "dashboard: scrub to %d of %d", e.Index, len(c.state.Range))
	}
	c.state.Index = e.Index
	return c.changed(), nil
}

func (e Tick) apply(c *Coordinator) (Result, error) {
	if !c.state.Playing || !c.playback.Current(e.Gen) {
		return c.unchanged(), nil
	}
	next, keep := playback.Advance(c.state.Index, len(c.state.Range))
	if !keep {
		c.stopPlayback()
		return c.changed(), nil
	}
	c.state.Index = next
	c.state.Detail = nil
	return c.changed(), nil
}

func (TogglePlay) apply(c *Coordinator) (Result, error) {
	if c.state.Playing {
		c.stopPlayback()
		return c.changed(), nil
	}
	c.state.Detail = nil
	c.playback.Start(c.runCtx, c.emitTick)
	c.state.Playing = true
	return c.changed(), nil
}

func (e SelectRegion) apply(c *Coordinator) (Result, error) {
	display, dataName, bounds, ok := c.resolveRegion(e.Name)
	if !ok {
		return c.unchanged(), eris.Wrapf(ErrUnknownRegion, "dashboard: select region %q", e.Name)
	}
	c.stopPlayback()
	c.state.Detail = buildDetail(c.store, display, dataName, c.state.CurrentDate(), bounds)
	return c.changed(), nil
}

func (CloseDetail) apply(c *Coordinator) (Result, error) {
	if c.state.Detail == nil {
		return c.unchanged(), nil
	}
	c.state.Detail = nil
	return c.changed(), nil
}

func (e Hover) apply(c *Coordinator) (Result, error) {
	res := c.unchanged()
	res.Samples = nearest.All(c.state.Rollup, e.At)
	return res, nil
}

func (GetSnapshot) apply(c *Coordinator) (Result, error) {
	return c.unchanged(), nil
}

// rank recomputes Top-N, the weekly rollup, its y domain, and category
// colors for metric.
func (c *Coordinator) rank(metric model.Metric) {
	c.state.TopN = c.agg.TopNRegions(metric, c.topN)
	c.state.Rollup = c.agg.WeeklyRollup(c.state.TopN, c.state.Metric)
	c.state.Trend = scale.TrendDomain(c.state.Rollup)
	c.scales.SetCategories(c.state.TopN)
}

// rescale recomputes the color domain over the active range.
func (c *Coordinator) rescale() {
	c.state.Domain = scale.ColorDomain(c.store, c.state.Metric, c.state.Range)
	c.scales.SetDomain(c.state.Domain)
}
