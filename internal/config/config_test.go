package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "csv", cfg.Data.Source)
	assert.Equal(t, "covid_indonesia_province_cleaned.csv", cfg.Data.Path)
	assert.Equal(t, "indonesia-provinces.json", cfg.Data.GeometryPath)
	assert.Equal(t, "name", cfg.Data.GeometryNameField)
	assert.Equal(t, 5, cfg.Dashboard.TopN)
	assert.Equal(t, 150, cfg.Dashboard.PlaybackIntervalMS)
	assert.Equal(t, 150*time.Millisecond, cfg.Dashboard.PlaybackInterval())
	assert.Equal(t, "New Cases", cfg.Dashboard.InitialMetric)
	assert.Equal(t, "Total Cases", cfg.Dashboard.InitialRankingMetric)
	assert.Equal(t, "sunday", cfg.Dashboard.WeekStart)
	assert.Equal(t, 64, cfg.Dashboard.CacheEntries)
	assert.Equal(t, []AnnotationConfig{
		{Date: "2021-07-15", Label: "Puncak Delta"},
		{Date: "2022-02-15", Label: "Puncak Omicron"},
	}, cfg.Dashboard.Annotations)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "epidash.db", cfg.Store.DatabaseURL)
	assert.Equal(t, int32(4), cfg.Store.MaxConns)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 60*time.Second, cfg.Fetch.Timeout())
	assert.Equal(t, 3, cfg.Fetch.MaxRetries)
	assert.InDelta(t, 5.0, cfg.Fetch.RatePerSec, 0.001)
	assert.InDelta(t, 0.05, cfg.Monitoring.MaxRejectRatio, 0.001)
	assert.Equal(t, 0, cfg.Monitoring.MaxUnmatchedRegions)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
data:
  source: xlsx
  path: covid.xlsx
  sheet: Sheet1
dashboard:
  top_n: 8
  week_start: monday
  annotations:
    - date: "2021-01-13"
      label: Vaccination start
store:
  driver: postgres
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "xlsx", cfg.Data.Source)
	assert.Equal(t, "covid.xlsx", cfg.Data.Path)
	assert.Equal(t, "Sheet1", cfg.Data.Sheet)
	assert.Equal(t, 8, cfg.Dashboard.TopN)
	assert.Equal(t, "monday", cfg.Dashboard.WeekStart)
	assert.Equal(t, []AnnotationConfig{{Date: "2021-01-13", Label: "Vaccination start"}}, cfg.Dashboard.Annotations)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, 150, cfg.Dashboard.PlaybackIntervalMS)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("EPIDASH_STORE_DRIVER", "postgres")
	t.Setenv("EPIDASH_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("EPIDASH_SERVER_PORT", "3000")
	t.Setenv("EPIDASH_DASHBOARD_PLAYBACK_INTERVAL_MS", "40")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 40*time.Millisecond, cfg.Dashboard.PlaybackInterval())
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("data: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Data.Source = "csv"
	cfg.Data.Path = "covid.csv"
	cfg.Dashboard.TopN = 5
	cfg.Dashboard.PlaybackIntervalMS = 150
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "epidash.db"
	cfg.Server.Port = 8080
	cfg.Monitoring.MaxRejectRatio = 0.05
	return cfg
}

func TestValidateServe_Valid(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")

	// play does not bind a port
	assert.NoError(t, cfg.Validate("play"))
}

func TestValidate_DataSource(t *testing.T) {
	cfg := validDefaults()
	cfg.Data.Path = ""

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "data.path or data.url is required")

	cfg.Data.URL = "https://example.com/covid.csv"
	assert.NoError(t, cfg.Validate("serve"))

	cfg.Data.Source = "parquet"
	err = cfg.Validate("status")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "must be csv, xlsx or store")
}

func TestValidate_StoreSource(t *testing.T) {
	cfg := validDefaults()
	cfg.Data.Source = "store"
	cfg.Store.Driver = "mysql"
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "must be sqlite or postgres")
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidate_DashboardBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Dashboard.TopN = 0
	cfg.Dashboard.PlaybackIntervalMS = 0

	err := cfg.Validate("play")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "dashboard.top_n must be >= 1")
	assert.Contains(t, err.Error(), "dashboard.playback_interval_ms must be >= 1")
}

func TestValidate_Annotations(t *testing.T) {
	cfg := validDefaults()
	cfg.Dashboard.Annotations = []AnnotationConfig{
		{Date: "2021-07-15", Label: "Puncak Delta"},
		{Date: "7/15/2021", Label: ""},
	}

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), `dashboard.annotations[1].date "7/15/2021" must be YYYY-MM-DD`)
	assert.Contains(t, err.Error(), "dashboard.annotations[1].label is required")
	assert.NotContains(t, err.Error(), "annotations[0]")
}

func TestValidateImport(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("import"))

	cfg.Data.Path = ""
	err := cfg.Validate("import")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "data.path or data.url is required")
}

func TestValidate_RejectRatio(t *testing.T) {
	cfg := validDefaults()
	cfg.Monitoring.MaxRejectRatio = 1.5

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "max_reject_ratio")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
