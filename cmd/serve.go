package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/epidash/internal/dashboard"
	"github.com/sells-group/epidash/internal/monitoring"
	"github.com/sells-group/epidash/internal/server"
)

var (
	servePort   int
	serveSource string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Load the dataset and serve the dashboard API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if serveSource != "" {
			cfg.Data.Source = serveSource
		}
		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		env, err := initDashboard(ctx, cfg, dashboard.NewLogRenderer(false))
		if err != nil {
			return err
		}

		alerter := monitoring.NewAlerter(cfg.Monitoring)
		if alerts := alerter.Evaluate(env.Quality); len(alerts) > 0 {
			alerter.Log(alerts)
			alerter.SendAlerts(ctx, alerts)
		}

		srv := server.New(env.Coordinator, server.Options{
			Port:        cfg.Server.Port,
			CORSOrigins: cfg.Server.CORSOrigins,
			Layer:       env.Layer,
			Quality:     env.Quality,
			CacheStats:  env.Aggregator.Stats,
		})

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return env.Coordinator.Run(gctx)
		})
		g.Go(func() error {
			return srv.ListenAndServe(gctx)
		})
		if err := g.Wait(); err != nil {
			return err
		}

		zap.L().Info("server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveSource, "source", "", "data source: csv, xlsx or store (default from config)")
	rootCmd.AddCommand(serveCmd)
}
