package main

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/epidash/internal/aggregate"
	"github.com/sells-group/epidash/internal/config"
	"github.com/sells-group/epidash/internal/dashboard"
	"github.com/sells-group/epidash/internal/fetcher"
	"github.com/sells-group/epidash/internal/geo"
	"github.com/sells-group/epidash/internal/model"
	"github.com/sells-group/epidash/internal/monitoring"
	"github.com/sells-group/epidash/internal/playback"
	"github.com/sells-group/epidash/internal/records"
	"github.com/sells-group/epidash/internal/store"
)

// dashboardEnv holds the loaded dataset, the joined map layer and the
// coordinator needed by the serve/play/status commands.
type dashboardEnv struct {
	Records     *records.Store
	Report      *records.LoadReport
	Layer       *geo.Layer
	Aggregator  *aggregate.Aggregator
	Coordinator *dashboard.Coordinator
	Playback    *playback.Controller
	Quality     *monitoring.DatasetSnapshot
}

// initDashboard loads the dataset and the geometry concurrently, joins them
// and builds the coordinator. Both loads must succeed.
func initDashboard(ctx context.Context, c *config.Config, renderers ...dashboard.Renderer) (*dashboardEnv, error) {
	var (
		st      *records.Store
		report  *records.LoadReport
		regions []geo.Region
		aliases geo.Aliases
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		st, report, err = loadRecords(gctx, c)
		return err
	})
	g.Go(func() error {
		var err error
		regions, aliases, err = loadGeometry(gctx, c.Data)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	env := &dashboardEnv{Records: st, Report: report}
	if regions != nil {
		env.Layer = geo.Join(regions, aliases, st)
	}
	env.Quality = monitoring.Collect(st, report, env.Layer)

	weekStart, err := aggregate.ParseWeekStart(c.Dashboard.WeekStart)
	if err != nil {
		return nil, err
	}
	env.Aggregator = aggregate.New(st, aggregate.Options{
		WeekStart:    weekStart,
		CacheEntries: c.Dashboard.CacheEntries,
	})

	metric, err := model.ParseMetric(c.Dashboard.InitialMetric)
	if err != nil {
		return nil, eris.Wrap(err, "dashboard.initial_metric")
	}
	ranking, err := model.ParseMetric(c.Dashboard.InitialRankingMetric)
	if err != nil {
		return nil, eris.Wrap(err, "dashboard.initial_ranking_metric")
	}

	notes, err := annotations(c.Dashboard.Annotations)
	if err != nil {
		return nil, err
	}

	env.Playback = playback.New(c.Dashboard.PlaybackInterval())
	env.Coordinator, err = dashboard.New(st, env.Aggregator, dashboard.Options{
		TopN:                 c.Dashboard.TopN,
		InitialMetric:        metric,
		InitialRankingMetric: ranking,
		Layer:                env.Layer,
		Aliases:              aliases,
		Playback:             env.Playback,
		Renderers:            renderers,
		Annotations:          notes,
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("dashboard ready",
		zap.Int("dates", env.Quality.Dates),
		zap.Int("regions", env.Quality.Regions),
		zap.Int("map_regions", env.Layer.Len()),
		zap.Int("rejected", env.Quality.Rejected),
	)
	return env, nil
}

// annotations converts the configured trend chart markers.
func annotations(acs []config.AnnotationConfig) ([]model.Annotation, error) {
	out := make([]model.Annotation, 0, len(acs))
	for _, a := range acs {
		d, err := records.ParseDate(a.Date)
		if err != nil {
			return nil, eris.Wrapf(err, "dashboard.annotations %q", a.Date)
		}
		out = append(out, model.Annotation{Date: d, Label: a.Label})
	}
	return out, nil
}

// loadRecords reads the observation table from the configured source.
func loadRecords(ctx context.Context, c *config.Config) (*records.Store, *records.LoadReport, error) {
	if c.Data.Source == "store" {
		return loadFromStore(ctx, c)
	}

	p := c.Data.Path
	if c.Data.URL != "" {
		dir, err := os.MkdirTemp("", "epidash-*")
		if err != nil {
			return nil, nil, eris.Wrap(err, "create download dir")
		}
		defer os.RemoveAll(dir) //nolint:errcheck

		p, err = download(ctx, c.Fetch, c.Data.URL, dir)
		if err != nil {
			return nil, nil, err
		}
	}

	rowCh, errCh := fetcher.StreamFile(ctx, p, c.Data.Sheet)
	st, report, err := records.Load(ctx, rowCh, errCh)
	if err != nil {
		return nil, report, eris.Wrapf(err, "load %s", p)
	}
	return st, report, nil
}

// download fetches an HTTP(S) or FTP URL into dir, keeping an .xlsx
// extension when the URL has one.
func download(ctx context.Context, fc config.FetchConfig, rawURL, dir string) (string, error) {
	name := "data.csv"
	if u, err := url.Parse(rawURL); err == nil && strings.EqualFold(path.Ext(u.Path), ".xlsx") {
		name = "data.xlsx"
	}
	dst := filepath.Join(dir, name)

	f, err := fetcher.NewDownloader(rawURL, fetcher.HTTPOptions{
		UserAgent:  fc.UserAgent,
		Timeout:    fc.Timeout(),
		MaxRetries: fc.MaxRetries,
		RatePerSec: fc.RatePerSec,
	})
	if err != nil {
		return "", err
	}
	n, err := f.DownloadToFile(ctx, rawURL, dst)
	if err != nil {
		return "", eris.Wrapf(err, "download %s", rawURL)
	}
	zap.L().Info("downloaded dataset", zap.String("url", rawURL), zap.Int64("bytes", n))
	return dst, nil
}

// loadFromStore reads the configured dataset, or the latest one, back from the store.
func loadFromStore(ctx context.Context, c *config.Config) (*records.Store, *records.LoadReport, error) {
	ds, err := openStore(ctx, c.Store)
	if err != nil {
		return nil, nil, err
	}
	defer ds.Close() //nolint:errcheck

	id := c.Store.DatasetID
	if id == "" {
		latest, err := ds.LatestDataset(ctx)
		if err != nil {
			return nil, nil, err
		}
		id = latest.ID
	}

	meta, obs, err := ds.LoadDataset(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	st, report := records.New(obs)
	if st.Len() == 0 {
		return nil, report, records.ErrEmptyDataset
	}
	// Carry the import-time outcome so quality checks see the original source.
	report.Rejected += meta.Rejected
	report.Coerced += meta.Coerced

	zap.L().Info("loaded dataset from store",
		zap.String("dataset_id", meta.ID),
		zap.String("name", meta.Name),
		zap.Int("rows", meta.Rows),
	)
	return st, report, nil
}

// loadGeometry reads the region geometry and the alias table. An empty
// geometry path yields no layer.
func loadGeometry(ctx context.Context, dc config.DataConfig) ([]geo.Region, geo.Aliases, error) {
	aliases := geo.DefaultAliases()
	if dc.AliasesPath != "" {
		var err error
		if aliases, err = geo.LoadAliases(dc.AliasesPath); err != nil {
			return nil, nil, err
		}
	}
	if dc.GeometryPath == "" {
		return nil, aliases, nil
	}
	regions, err := geo.LoadFile(ctx, dc.GeometryPath, dc.GeometryNameField)
	if err != nil {
		return nil, nil, err
	}
	return regions, aliases, nil
}

// openStore opens and migrates the dataset store.
func openStore(ctx context.Context, sc config.StoreConfig) (store.DatasetStore, error) {
	ds, err := store.Open(ctx, sc.Driver, sc.DatabaseURL, &store.PoolConfig{
		MaxConns: sc.MaxConns,
		MinConns: sc.MinConns,
	})
	if err != nil {
		return nil, err
	}
	if err := ds.Migrate(ctx); err != nil {
		_ = ds.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return ds, nil
}
