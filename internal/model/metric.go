package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Metric names one numeric field of an Observation.
type Metric string

const (
	MetricNewCases       Metric = "New Cases"
	MetricNewDeaths      Metric = "New Deaths"
	MetricTotalCases     Metric = "Total Cases"
	MetricTotalDeaths    Metric = "Total Deaths"
	MetricTotalRecovered Metric = "Total Recovered"
)

// ErrUnknownMetric is returned when a metric name does not match any field.
var ErrUnknownMetric = eris.New("model: unknown metric")

// AllMetrics lists every numeric field in source column order.
var AllMetrics = []Metric{
	MetricNewCases,
	MetricNewDeaths,
	MetricTotalCases,
	MetricTotalDeaths,
	MetricTotalRecovered,
}

// SelectableMetrics lists the metrics a user may display on the map and trend chart.
var SelectableMetrics = []Metric{
	MetricNewCases,
	MetricNewDeaths,
	MetricTotalCases,
	MetricTotalDeaths,
}

// ParseMetric resolves a metric by display name, case-insensitively.
// Snake-case aliases such as "new_cases" are accepted as well.
func ParseMetric(s string) (Metric, error) {
	norm := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, "_", " ")))
	for _, m := range AllMetrics {
		if strings.ToLower(string(m)) == norm {
			return m, nil
		}
	}
	return "", eris.Wrapf(ErrUnknownMetric, "%q", s)
}

// Selectable reports whether m may be chosen as the displayed metric.
func (m Metric) Selectable() bool {
	for _, s := range SelectableMetrics {
		if s == m {
			return true
		}
	}
	return false
}

// Cumulative reports whether the metric is a running total.
func (m Metric) Cumulative() bool {
	return m == MetricTotalCases || m == MetricTotalDeaths || m == MetricTotalRecovered
}
