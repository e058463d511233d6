package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/epidash/internal/config"
)

const testCSV = `Date,Province,New Cases,New Deaths,Total Cases,Total Deaths,Total Recovered
3/1/2021,Aceh,10,0,10,0,1
3/1/2021,DKI Jakarta,2,0,2,0,0
3/2/2021,Aceh,5,1,15,1,2
3/2/2021,DKI Jakarta,20,0,22,0,0
3/3/2021,Aceh,1,0,16,1,3
3/3/2021,,7,0,7,0,0
`

const testGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"name": "Aceh"},
     "geometry": {"type": "Polygon", "coordinates": [[[95.0,2.0],[98.0,2.0],[98.0,6.0],[95.0,6.0],[95.0,2.0]]]}},
    {"type": "Feature", "properties": {"name": "Jakarta Raya"},
     "geometry": {"type": "Polygon", "coordinates": [[[106.7,-6.4],[107.0,-6.4],[107.0,-6.1],[106.7,-6.1],[106.7,-6.4]]]}},
    {"type": "Feature", "properties": {"name": "Atlantis"},
     "geometry": {"type": "Point", "coordinates": [0, 0]}}
  ]
}`

// testConfig writes the fixtures to a temp dir and returns a config that
// points at them, with defaults matching config.Load.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "covid.csv")
	geoPath := filepath.Join(dir, "provinces.json")
	require.NoError(t, os.WriteFile(csvPath, []byte(testCSV), 0o644))
	require.NoError(t, os.WriteFile(geoPath, []byte(testGeoJSON), 0o644))

	c := &config.Config{}
	c.Data.Source = "csv"
	c.Data.Path = csvPath
	c.Data.GeometryPath = geoPath
	c.Data.GeometryNameField = "name"
	c.Dashboard.TopN = 5
	c.Dashboard.PlaybackIntervalMS = 1
	c.Dashboard.InitialMetric = "New Cases"
	c.Dashboard.InitialRankingMetric = "Total Cases"
	c.Dashboard.WeekStart = "sunday"
	c.Dashboard.CacheEntries = 64
	c.Dashboard.Annotations = []config.AnnotationConfig{{Date: "2021-07-15", Label: "Puncak Delta"}}
	c.Store.Driver = "sqlite"
	c.Store.DatabaseURL = filepath.Join(dir, "epidash.db")
	c.Server.Port = 8080
	c.Fetch.TimeoutSecs = 5
	c.Fetch.MaxRetries = 1
	c.Monitoring.MaxRejectRatio = 0.05
	return c
}
