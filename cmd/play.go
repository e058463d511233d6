package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/epidash/internal/config"
	"github.com/sells-group/epidash/internal/dashboard"
	"github.com/sells-group/epidash/internal/model"
	"github.com/sells-group/epidash/internal/records"
)

var (
	playMetric   string
	playFrom     string
	playTo       string
	playInterval time.Duration
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play the timeline headlessly, logging one line per frame",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if playInterval > 0 {
			cfg.Dashboard.PlaybackIntervalMS = int(playInterval / time.Millisecond)
		}
		if err := cfg.Validate("play"); err != nil {
			return err
		}

		events, err := playEvents(playMetric, playFrom, playTo)
		if err != nil {
			return err
		}
		frames, err := runPlayback(ctx, cfg, events)
		if err != nil {
			return err
		}
		zap.L().Info("playback finished", zap.Int("frames", frames))
		return nil
	},
}

func init() {
	playCmd.Flags().StringVar(&playMetric, "metric", "", "metric to display (default from config)")
	playCmd.Flags().StringVar(&playFrom, "from", "", "first date to play (YYYY-MM-DD)")
	playCmd.Flags().StringVar(&playTo, "to", "", "date to stop before (YYYY-MM-DD, exclusive)")
	playCmd.Flags().DurationVar(&playInterval, "interval", 0, "time between frames (default from config)")
	rootCmd.AddCommand(playCmd)
}

// playEvents builds the events applied before playback starts.
func playEvents(metric, from, to string) ([]dashboard.Event, error) {
	var events []dashboard.Event
	if metric != "" {
		m, err := model.ParseMetric(metric)
		if err != nil {
			return nil, err
		}
		events = append(events, dashboard.SelectMetric{Metric: m})
	}
	if from != "" || to != "" {
		var rng dashboard.FilterRange
		var err error
		if from != "" {
			if rng.From, err = records.ParseDate(from); err != nil {
				return nil, eris.Wrapf(err, "parse --from %q", from)
			}
		}
		if to != "" {
			if rng.To, err = records.ParseDate(to); err != nil {
				return nil, eris.Wrapf(err, "parse --to %q", to)
			}
		} else {
			rng.To = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
		}
		events = append(events, rng)
	}
	return append(events, dashboard.TogglePlay{}), nil
}

// runPlayback applies events, which must end by starting playback, and
// blocks until playback stops on its own or ctx is cancelled. It returns the
// number of frames rendered.
func runPlayback(ctx context.Context, c *config.Config, events []dashboard.Event) (int, error) {
	var (
		once     sync.Once
		mu       sync.Mutex
		frames   int
		started  bool
		finished = make(chan struct{})
	)
	watch := dashboard.RendererFunc(func(_ context.Context, s dashboard.Snapshot) error {
		mu.Lock()
		defer mu.Unlock()
		frames++
		if s.Playing {
			started = true
		} else if started {
			once.Do(func() { close(finished) })
		}
		return nil
	})

	env, err := initDashboard(ctx, c, dashboard.NewLogRenderer(true), watch)
	if err != nil {
		return 0, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- env.Coordinator.Run(runCtx) }()

	for _, ev := range events {
		if _, err := env.Coordinator.Dispatch(runCtx, ev); err != nil {
			cancel()
			<-done
			return 0, err
		}
	}

	select {
	case <-finished:
	case <-ctx.Done():
	}
	cancel()
	if err := <-done; err != nil {
		return 0, err
	}

	mu.Lock()
	defer mu.Unlock()
	return frames, nil
}
