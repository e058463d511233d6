package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/epidash/internal/config"
	"github.com/sells-group/epidash/internal/store"
)

var (
	importPath  string
	importURL   string
	importSheet string
	importName  string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a CSV or XLSX dataset into the store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		c := *cfg
		c.Data.Source = "csv"
		if importPath != "" || importURL != "" {
			c.Data.Path, c.Data.URL = importPath, importURL
		}
		if importSheet != "" {
			c.Data.Sheet = importSheet
		}
		if err := c.Validate("import"); err != nil {
			return err
		}

		ds, err := runImport(ctx, &c, importName)
		if err != nil {
			return err
		}

		zap.L().Info("import complete",
			zap.String("dataset_id", ds.ID),
			zap.String("name", ds.Name),
			zap.Int("rows", ds.Rows),
			zap.Int("rejected", ds.Rejected),
			zap.Int("coerced", ds.Coerced),
		)
		return nil
	},
}

// runImport loads the configured source and saves it as a new dataset.
func runImport(ctx context.Context, c *config.Config, name string) (*store.Dataset, error) {
	st, report, err := loadRecords(ctx, c)
	if err != nil {
		return nil, eris.Wrap(err, "import")
	}

	ds, err := openStore(ctx, c.Store)
	if err != nil {
		return nil, err
	}
	defer ds.Close() //nolint:errcheck

	source := c.Data.Path
	if c.Data.URL != "" {
		source = c.Data.URL
	}
	saved, err := ds.SaveDataset(ctx, store.Dataset{
		Name:     name,
		Source:   source,
		Rejected: report.Rejected,
		Coerced:  report.Coerced,
	}, st.All())
	if err != nil {
		return nil, eris.Wrap(err, "import: save dataset")
	}
	return saved, nil
}

func init() {
	importCmd.Flags().StringVar(&importPath, "path", "", "path to a CSV or XLSX file (default from config)")
	importCmd.Flags().StringVar(&importURL, "url", "", "URL to download the dataset from")
	importCmd.Flags().StringVar(&importSheet, "sheet", "", "XLSX sheet name")
	importCmd.Flags().StringVar(&importName, "name", "", "dataset name (default: import timestamp)")
	rootCmd.AddCommand(importCmd)
}
