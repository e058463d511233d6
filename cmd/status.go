package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/epidash/internal/aggregate"
	"github.com/sells-group/epidash/internal/model"
	"github.com/sells-group/epidash/internal/monitoring"
	"github.com/sells-group/epidash/internal/store"
)

var statusDatasets bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show dataset quality, alerts and Top-N regions",
	Long:  "Loads the configured dataset and geometry, prints the quality snapshot and any alerts, then the Top-N regions for every metric. With --datasets, lists the datasets in the store instead.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if statusDatasets {
			ds, err := openStore(ctx, cfg.Store)
			if err != nil {
				return err
			}
			defer ds.Close() //nolint:errcheck

			list, err := ds.ListDatasets(ctx, 0)
			if err != nil {
				return eris.Wrap(err, "status")
			}
			if len(list) == 0 {
				zap.L().Info("no datasets found, run 'import' to add one")
				return nil
			}
			formatDatasets(os.Stdout, list)
			return nil
		}

		if err := cfg.Validate("status"); err != nil {
			return err
		}
		env, err := initDashboard(ctx, cfg)
		if err != nil {
			return err
		}

		alerter := monitoring.NewAlerter(cfg.Monitoring)
		alerts := alerter.Evaluate(env.Quality)

		formatQuality(os.Stdout, env.Quality, alerts)
		formatTopN(os.Stdout, env.Aggregator, cfg.Dashboard.TopN)

		if len(alerts) > 0 {
			alerter.SendAlerts(ctx, alerts)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusDatasets, "datasets", false, "list stored datasets")
	rootCmd.AddCommand(statusCmd)
}

// formatQuality writes the quality snapshot and alerts to out.
func formatQuality(out io.Writer, snap *monitoring.DatasetSnapshot, alerts []monitoring.Alert) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Dates\t%d\t%s .. %s\n", snap.Dates, snap.FirstDate.Format(model.DateLayout), snap.LastDate.Format(model.DateLayout))
	_, _ = fmt.Fprintf(w, "Regions\t%d\n", snap.Regions)
	_, _ = fmt.Fprintf(w, "Observations\t%d\t%d missing\n", snap.Observations, snap.MissingCells)
	_, _ = fmt.Fprintf(w, "Rows\t%d accepted\t%d rejected\t%d coerced\n", snap.Accepted, snap.Rejected, snap.Coerced)
	if len(snap.UnmatchedRegions) > 0 {
		_, _ = fmt.Fprintf(w, "Unmatched\t%s\n", strings.Join(snap.UnmatchedRegions, ", "))
	}
	_ = w.Flush()

	for _, a := range alerts {
		_, _ = fmt.Fprintf(out, "ALERT [%s] %s\n", a.Severity, a.Message)
	}
	_, _ = fmt.Fprintln(out)
}

// formatTopN writes the Top-N regions for every metric to out.
func formatTopN(out io.Writer, agg *aggregate.Aggregator, n int) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "METRIC\tTOP REGIONS")
	_, _ = fmt.Fprintln(w, "------\t-----------")
	for _, m := range model.AllMetrics {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", m, strings.Join(agg.TopNRegions(m, n), ", "))
	}
	_ = w.Flush()
}

// formatDatasets writes a tabular listing of stored datasets to out.
func formatDatasets(out io.Writer, list []store.Dataset) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tIMPORTED\tROWS\tREJECTED\tRANGE\tSOURCE")
	_, _ = fmt.Fprintln(w, "--\t----\t--------\t----\t--------\t-----\t------")
	for _, d := range list {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s..%s\t%s\n",
			d.ID,
			d.Name,
			d.ImportedAt.Format("2006-01-02 15:04"),
			d.Rows,
			d.Rejected,
			d.FirstDate.Format(model.DateLayout),
			d.LastDate.Format(model.DateLayout),
			d.Source,
		)
	}
	_ = w.Flush()
}
