// Package dashboard owns the view state and keeps every view consistent.
// All mutations go through a single Coordinator goroutine.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/epidash/internal/aggregate"
	"github.com/sells-group/epidash/internal/geo"
	"github.com/sells-group/epidash/internal/model"
	"github.com/sells-group/epidash/internal/playback"
	"github.com/sells-group/epidash/internal/records"
	"github.com/sells-group/epidash/internal/scale"
)

// Sentinel errors.
var (
	ErrIndexOutOfRange = eris.New("dashboard: index out of range")
	ErrUnknownRegion   = eris.New("dashboard: unknown region")
	ErrStopped         = eris.New("dashboard: coordinator stopped")
	ErrNoDates         = eris.New("dashboard: dataset has no dates")
)

// DefaultTopN is the number of ranked regions when Options.TopN is zero.
const DefaultTopN = 5

// Options configures a Coordinator.
type Options struct {
	TopN                 int
	InitialMetric        model.Metric
	InitialRankingMetric model.Metric
	Layer                *geo.Layer
	Aliases              geo.Aliases
	Playback             *playback.Controller
	Renderers            []Renderer
	Annotations          []model.Annotation
	QueueSize            int
}

// Coordinator applies events one at a time and notifies renderers after
// every state change.
type Coordinator struct {
	store    *records.Store
	agg      *aggregate.Aggregator
	scales   *scale.Manager
	layer    *geo.Layer
	aliases  geo.Aliases
	playback *playback.Controller
	topN     int
	notes    []model.Annotation

	renderers []Renderer
	dates     []time.Time
	state     ViewState

	events chan envelope
	done   chan struct{}
	runCtx context.Context
	log    *zap.Logger
}

type envelope struct {
	ev    Event
	reply chan reply
}

type reply struct {
	res Result
	err error
}

// New builds a Coordinator with the initial ranking, rollup, and color
// domain already computed.
func New(st *records.Store, agg *aggregate.Aggregator, opts Options) (*Coordinator, error) {
	if st == nil || st.Len() == 0 {
		return nil, ErrNoDates
	}
	if opts.InitialMetric == "" {
		opts.InitialMetric = model.MetricNewCases
	}
	if opts.InitialRankingMetric == "" {
		opts.InitialRankingMetric = model.MetricTotalCases
	}
	if !opts.InitialMetric.Selectable() {
		return nil, eris.Wrapf(model.ErrUnknownMetric, "dashboard: initial metric %q", opts.InitialMetric)
	}
	if _, err := model.ParseMetric(string(opts.InitialRankingMetric)); err != nil {
		return nil, eris.Wrap(err, "dashboard: initial ranking metric")
	}
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	if opts.Aliases == nil {
		opts.Aliases = geo.DefaultAliases()
	}
	if opts.Playback == nil {
		opts.Playback = playback.New(playback.DefaultInterval)
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 16
	}

	notes := make([]model.Annotation, len(opts.Annotations))
	copy(notes, opts.Annotations)
	sort.SliceStable(notes, func(i, j int) bool { return notes[i].Date.Before(notes[j].Date) })

	dates := st.Dates()
	c := &Coordinator{
		store:     st,
		agg:       agg,
		scales:    scale.NewManager(),
		layer:     opts.Layer,
		aliases:   opts.Aliases,
		playback:  opts.Playback,
		topN:      opts.TopN,
		notes:     notes,
		renderers: opts.Renderers,
		dates:     dates,
		events:    make(chan envelope, opts.QueueSize),
		done:      make(chan struct{}),
		runCtx:    context.Background(),
		log:       zap.L().With(zap.String("component", "dashboard")),
	}
	c.state = ViewState{
		Metric: opts.InitialMetric,
		Range:  dates,
	}
	c.rank(opts.InitialRankingMetric)
	c.rescale()
	return c, nil
}

// Run processes events until ctx is cancelled. It renders the initial
// frame first and stops playback on exit.
func (c *Coordinator) Run(ctx context.Context) error {
	c.runCtx = ctx
	defer close(c.done)
	defer c.stopPlayback()

	c.log.Info("coordinator started",
		zap.Int("dates", len(c.dates)),
		zap.Strings("top_n", c.state.TopN),
		zap.String("metric", string(c.state.Metric)),
	)
	c.notify()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("coordinator stopped")
			return nil
		case env := <-c.events:
			res, err := c.Apply(env.ev)
			if err != nil {
				c.log.Debug("event rejected", zap.String("event", eventName(env.ev)), zap.Error(err))
			}
			if env.reply != nil {
				env.reply <- reply{res: res, err: err}
			}
		}
	}
}

// Dispatch submits ev to the Run loop and waits for its result.
func (c *Coordinator) Dispatch(ctx context.Context, ev Event) (Result, error) {
	rc := make(chan reply, 1)
	select {
	case c.events <- envelope{ev: ev, reply: rc}:
	case <-c.done:
		return Result{}, ErrStopped
	case <-ctx.Done():
		return Result{}, eris.Wrap(ctx.Err(), "dashboard: dispatch")
	}

	select {
	case r := <-rc:
		return r.res, r.err
	case <-c.done:
		select {
		case r := <-rc:
			return r.res, r.err
		default:
			return Result{}, ErrStopped
		}
	case <-ctx.Done():
		return Result{}, eris.Wrap(ctx.Err(), "dashboard: dispatch")
	}
}

// Apply applies ev synchronously. It must only be called from the Run
// goroutine, or when Run is not running.
func (c *Coordinator) Apply(ev Event) (Result, error) {
	res, err := ev.apply(c)
	if err == nil && res.Changed {
		c.notify()
	}
	return res, err
}

// State returns a copy of the view state. The same goroutine rule as Apply applies.
func (c *Coordinator) State() ViewState {
	s := c.state
	s.TopN = append([]string(nil), c.state.TopN...)
	return s
}

func (c *Coordinator) emitTick(ctx context.Context, gen uint64) error {
	select {
	case c.events <- envelope{ev: Tick{Gen: gen}}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrStopped
	}
}

func (c *Coordinator) stopPlayback() {
	if c.playback.Playing() {
		c.playback.Stop()
	}
	c.state.Playing = false
}

// window returns the half-open index span of dates within [from, to).
func (c *Coordinator) window(from, to time.Time) (int, int) {
	from, to = model.Day(from), model.Day(to)
	lo := sort.Search(len(c.dates), func(i int) bool { return !c.dates[i].Before(from) })
	hi := sort.Search(len(c.dates), func(i int) bool { return !c.dates[i].Before(to) })
	return lo, hi
}

func (c *Coordinator) resolveRegion(name string) (display, dataName string, bounds []float64, ok bool) {
	if r, found := c.layer.Lookup(name); found {
		return r.Name, r.DataName, r.Bounds, true
	}
	dataName = c.aliases.Translate(name)
	if c.store.HasRegion(dataName) {
		return name, dataName, nil, true
	}
	return "", "", nil, false
}

func (c *Coordinator) changed() Result {
	return Result{Snapshot: c.snapshot(), Changed: true}
}

func (c *Coordinator) unchanged() Result {
	return Result{Snapshot: c.snapshot()}
}

func (c *Coordinator) snapshot() Snapshot {
	s := c.state
	date := s.CurrentDate()
	totals, hasTotals := c.store.NationalTotalsAt(date)

	return Snapshot{
		Date:        date,
		Index:       s.Index,
		RangeLen:    len(s.Range),
		RangeStart:  s.Range[0],
		RangeEnd:    s.Range[len(s.Range)-1],
		Filtered:    s.Filtered,
		Metric:      s.Metric,
		Playing:     s.Playing,
		Totals:      totals,
		HasTotals:   hasTotals,
		MapColors:   c.mapColors(date),
		Series:      s.Rollup.Series,
		Categories:  c.scales.Categories(),
		Domain:      s.Domain,
		TrendDomain: s.Trend,
		Annotations: c.notes,
		Detail:      s.Detail,
	}
}

// mapColors fills every geometry region, or every dataset region when no
// geometry is loaded. Regions without a row on date get the no-data color.
func (c *Coordinator) mapColors(date time.Time) map[string]scale.Color {
	day := c.store.DayOf(date)
	fill := func(dataName string) scale.Color {
		o, ok := day[dataName]
		if !ok {
			return scale.NoData
		}
		return c.scales.ColorFor(o.Value(c.state.Metric))
	}

	if c.layer.Len() > 0 {
		out := make(map[string]scale.Color, c.layer.Len())
		for _, r := range c.layer.Regions {
			out[r.Name] = fill(r.DataName)
		}
		return out
	}

	regions := c.store.Regions()
	out := make(map[string]scale.Color, len(regions))
	for _, r := range regions {
		out[r] = fill(r)
	}
	return out
}

func (c *Coordinator) notify() {
	if len(c.renderers) == 0 {
		return
	}
	snap := c.snapshot()
	for _, r := range c.renderers {
		if err := r.Render(c.runCtx, snap); err != nil {
			c.log.Warn("render failed", zap.Error(err))
		}
	}
}

func eventName(ev Event) string {
	return fmt.Sprintf("%T", ev)
}
