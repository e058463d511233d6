// Package playback drives timed index advancement for the dashboard.
package playback

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultInterval is the time between playback frames.
const DefaultInterval = 150 * time.Millisecond

// State is the controller's run state.
type State int

const (
	Stopped State = iota
	Playing
)

func (s State) String() string {
	if s == Playing {
		return "playing"
	}
	return "stopped"
}

// Ticker is the subset of time.Ticker the controller needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// NewRealTicker wraps time.NewTicker.
func NewRealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

// EmitFunc delivers a tick for generation gen. It must return promptly once
// ctx is cancelled.
type EmitFunc func(ctx context.Context, gen uint64) error

// Controller owns at most one ticker goroutine at a time.
type Controller struct {
	interval  time.Duration
	newTicker TickerFunc
	log       *zap.Logger

	mu     sync.Mutex
	state  State
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Controller.
type Option func(*Controller)

// WithTicker replaces the ticker factory.
func WithTicker(f TickerFunc) Option {
	return func(c *Controller) { c.newTicker = f }
}

// New creates a stopped Controller. A non-positive interval uses DefaultInterval.
func New(interval time.Duration, opts ...Option) *Controller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	c := &Controller{
		interval:  interval,
		newTicker: NewRealTicker,
		log:       zap.L().With(zap.String("component", "playback")),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Interval returns the tick period.
func (c *Controller) Interval() time.Duration {
	return c.interval
}

// State returns the current run state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Playing reports whether a ticker is active.
func (c *Controller) Playing() bool {
	return c.State() == Playing
}

// Generation returns the most recently started generation.
func (c *Controller) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Current reports whether gen belongs to the active ticker.
func (c *Controller) Current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == Playing && c.gen == gen
}

// Start begins emitting ticks and returns the new generation. Start on a
// running controller is a no-op that returns the active generation.
func (c *Controller) Start(ctx context.Context, emit EmitFunc) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Playing {
		return c.gen
	}

	c.gen++
	gen := c.gen
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.state = Playing
	c.cancel = cancel
	c.done = done

	ticker := c.newTicker(c.interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C():
				if err := emit(runCtx, gen); err != nil {
					if runCtx.Err() == nil {
						c.log.Debug("tick not delivered", zap.Uint64("gen", gen), zap.Error(err))
					}
					return
				}
			}
		}
	}()

	c.log.Debug("playback started", zap.Uint64("gen", gen), zap.Duration("interval", c.interval))
	return gen
}

// Stop cancels the active ticker and waits for its goroutine to exit.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state == Stopped {
		c.mu.Unlock()
		return
	}
	cancel, done, gen := c.cancel, c.done, c.gen
	c.state = Stopped
	c.cancel = nil
	c.done = nil
	c.mu.Unlock()

	cancel()
	<-done
	c.log.Debug("playback stopped", zap.Uint64("gen", gen))
}

// Advance returns the index after one tick. At the last index it returns
// the index unchanged and false, which ends playback.
func Advance(index, length int) (int, bool) {
	if index < length-1 {
		return index + 1, true
	}
	return index, false
}
