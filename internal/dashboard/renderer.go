package dashboard

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/epidash/internal/model"
)

// Renderer receives a snapshot after every state change. Render is called
// on the coordinator goroutine and must not call back into the coordinator.
type Renderer interface {
	Render(ctx context.Context, s Snapshot) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, s Snapshot) error

// Render calls f.
func (f RendererFunc) Render(ctx context.Context, s Snapshot) error {
	return f(ctx, s)
}

// LogRenderer writes one log line per frame.
type LogRenderer struct {
	log   *zap.Logger
	level zapcore.Level
}

// NewLogRenderer logs frames at debug level, or info when verbose is set.
func NewLogRenderer(verbose bool) *LogRenderer {
	lvl := zapcore.DebugLevel
	if verbose {
		lvl = zapcore.InfoLevel
	}
	return &LogRenderer{
		log:   zap.L().With(zap.String("component", "dashboard.render")),
		level: lvl,
	}
}

// Render implements Renderer.
func (r *LogRenderer) Render(_ context.Context, s Snapshot) error {
	fields := []zap.Field{
		zap.String("date", s.Date.Format(model.DateLayout)),
		zap.Int("index", s.Index),
		zap.Int("range_len", s.RangeLen),
		zap.String("metric", string(s.Metric)),
		zap.Bool("playing", s.Playing),
		zap.Bool("has_totals", s.HasTotals),
		zap.Int64("new_cases", s.Totals.NewCases),
		zap.Int64("new_deaths", s.Totals.NewDeaths),
		zap.Int64("total_cases", s.Totals.TotalCases),
		zap.Int64("total_deaths", s.Totals.TotalDeaths),
		zap.Int64("domain_max", s.Domain.Max),
		zap.Int64("trend_max", s.TrendDomain.Max),
	}
	if s.Detail != nil {
		fields = append(fields, zap.String("detail", s.Detail.Region), zap.Bool("detail_has_data", s.Detail.HasData))
	}
	if ce := r.log.Check(r.level, "frame"); ce != nil {
		ce.Write(fields...)
	}
	return nil
}
