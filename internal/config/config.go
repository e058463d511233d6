package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Data       DataConfig       `yaml:"data" mapstructure:"data"`
	Dashboard  DashboardConfig  `yaml:"dashboard" mapstructure:"dashboard"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the observation table and the region geometry.
type DataConfig struct {
	Source            string `yaml:"source" mapstructure:"source"`
	Path              string `yaml:"path" mapstructure:"path"`
	URL               string `yaml:"url" mapstructure:"url"`
	Sheet             string `yaml:"sheet" mapstructure:"sheet"`
	GeometryPath      string `yaml:"geometry_path" mapstructure:"geometry_path"`
	GeometryNameField string `yaml:"geometry_name_field" mapstructure:"geometry_name_field"`
	AliasesPath       string `yaml:"aliases_path" mapstructure:"aliases_path"`
}

// DashboardConfig configures the view coordinator.
type DashboardConfig struct {
	TopN                 int                `yaml:"top_n" mapstructure:"top_n"`
	PlaybackIntervalMS   int                `yaml:"playback_interval_ms" mapstructure:"playback_interval_ms"`
	InitialMetric        string             `yaml:"initial_metric" mapstructure:"initial_metric"`
	InitialRankingMetric string             `yaml:"initial_ranking_metric" mapstructure:"initial_ranking_metric"`
	WeekStart            string             `yaml:"week_start" mapstructure:"week_start"`
	CacheEntries         int                `yaml:"cache_entries" mapstructure:"cache_entries"`
	Annotations          []AnnotationConfig `yaml:"annotations" mapstructure:"annotations"`
}

// AnnotationConfig is a dated trend chart marker. Date is YYYY-MM-DD.
type AnnotationConfig struct {
	Date  string `yaml:"date" mapstructure:"date"`
	Label string `yaml:"label" mapstructure:"label"`
}

// PlaybackInterval returns the tick period as a duration.
func (d DashboardConfig) PlaybackInterval() time.Duration {
	return time.Duration(d.PlaybackIntervalMS) * time.Millisecond
}

// StoreConfig configures the dataset store.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	DatasetID   string `yaml:"dataset_id" mapstructure:"dataset_id"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// FetchConfig configures remote dataset downloads.
type FetchConfig struct {
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// Timeout returns the per-request timeout.
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSecs) * time.Second
}

// MonitoringConfig configures data quality alerting.
type MonitoringConfig struct {
	MaxRejectRatio      float64 `yaml:"max_reject_ratio" mapstructure:"max_reject_ratio"`
	MaxUnmatchedRegions int     `yaml:"max_unmatched_regions" mapstructure:"max_unmatched_regions"`
	WebhookURL          string  `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("EPIDASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.source", "csv")
	v.SetDefault("data.path", "covid_indonesia_province_cleaned.csv")
	v.SetDefault("data.url", "")
	v.SetDefault("data.sheet", "")
	v.SetDefault("data.geometry_path", "indonesia-provinces.json")
	v.SetDefault("data.geometry_name_field", "name")
	v.SetDefault("data.aliases_path", "")
	v.SetDefault("dashboard.top_n", 5)
	v.SetDefault("dashboard.playback_interval_ms", 150)
	v.SetDefault("dashboard.initial_metric", "New Cases")
	v.SetDefault("dashboard.initial_ranking_metric", "Total Cases")
	v.SetDefault("dashboard.week_start", "sunday")
	v.SetDefault("dashboard.cache_entries", 64)
	v.SetDefault("dashboard.annotations", []map[string]any{
		{"date": "2021-07-15", "label": "Puncak Delta"},
		{"date": "2022-02-15", "label": "Puncak Omicron"},
	})
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "epidash.db")
	v.SetDefault("store.dataset_id", "")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.rate_per_sec", 5.0)
	v.SetDefault("fetch.user_agent", "epidash/1.0")
	v.SetDefault("monitoring.max_reject_ratio", 0.05)
	v.SetDefault("monitoring.max_unmatched_regions", 0)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Every problem
// found is reported in a single error.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve", "play", "status":
		errs = append(errs, c.validateData()...)
		errs = append(errs, c.validateDashboard()...)
		if mode == "serve" && c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "import":
		if c.Data.Path == "" && c.Data.URL == "" {
			errs = append(errs, "data.path or data.url is required")
		}
		errs = append(errs, c.validateStore()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Monitoring.MaxRejectRatio < 0 || c.Monitoring.MaxRejectRatio > 1 {
		errs = append(errs, "monitoring.max_reject_ratio must be between 0 and 1")
	}

	if len(errs) > 0 {
		return eris.New(fmt.Sprintf("config: %s", strings.Join(errs, "; ")))
	}
	return nil
}

func (c *Config) validateData() []string {
	var errs []string
	switch c.Data.Source {
	case "csv", "xlsx":
		if c.Data.Path == "" && c.Data.URL == "" {
			errs = append(errs, "data.path or data.url is required")
		}
	case "store":
		errs = append(errs, c.validateStore()...)
	default:
		errs = append(errs, fmt.Sprintf("data.source %q must be csv, xlsx or store", c.Data.Source))
	}
	return errs
}

func (c *Config) validateDashboard() []string {
	var errs []string
	if c.Dashboard.TopN < 1 {
		errs = append(errs, "dashboard.top_n must be >= 1")
	}
	if c.Dashboard.PlaybackIntervalMS < 1 {
		errs = append(errs, "dashboard.playback_interval_ms must be >= 1")
	}
	for i, a := range c.Dashboard.Annotations {
		if _, err := time.Parse(time.DateOnly, a.Date); err != nil {
			errs = append(errs, fmt.Sprintf("dashboard.annotations[%d].date %q must be YYYY-MM-DD", i, a.Date))
		}
		if strings.TrimSpace(a.Label) == "" {
			errs = append(errs, fmt.Sprintf("dashboard.annotations[%d].label is required", i))
		}
	}
	return errs
}

func (c *Config) validateStore() []string {
	var errs []string
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be sqlite or postgres", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
