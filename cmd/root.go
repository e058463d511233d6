package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/epidash/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "epidash",
	Short: "Interactive epidemiological dashboard for regional case data",
	Long:  "Loads a daily per-region case table and a region geometry file, then serves a coordinated map, trend chart and slider over HTTP or plays the timeline headlessly.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
