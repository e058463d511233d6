package records

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/epidash/internal/fetcher"
)

const header = "Date,Province,New Cases,New Deaths,Total Cases,Total Deaths,Total Recovered\n"

func loadCSV(t *testing.T, body string) (*Store, *LoadReport, error) {
	t.Helper()
	rowCh, errCh := fetcher.StreamCSV(context.Background(), strings.NewReader(header+body), fetcher.CSVOptions{})
	return Load(context.Background(), rowCh, errCh)
}

func mustLoadCSV(t *testing.T, body string) (*Store, *LoadReport) {
	t.Helper()
	st, report, err := loadCSV(t, body)
	require.NoError(t, err)
	return st, report
}
