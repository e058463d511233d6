package model

import "time"

// Observation is one (region, date) row of the dataset.
type Observation struct {
	Region         string    `json:"region"`
	Date           time.Time `json:"date"`
	NewCases       int64     `json:"new_cases"`
	NewDeaths      int64     `json:"new_deaths"`
	TotalCases     int64     `json:"total_cases"`
	TotalDeaths    int64     `json:"total_deaths"`
	TotalRecovered int64     `json:"total_recovered"`
}

// Value returns the field selected by m. Unknown metrics yield zero.
func (o Observation) Value(m Metric) int64 {
	switch m {
	case MetricNewCases:
		return o.NewCases
	case MetricNewDeaths:
		return o.NewDeaths
	case MetricTotalCases:
		return o.TotalCases
	case MetricTotalDeaths:
		return o.TotalDeaths
	case MetricTotalRecovered:
		return o.TotalRecovered
	default:
		return 0
	}
}

// Totals holds per-field sums across regions for a single date.
type Totals struct {
	NewCases       int64 `json:"new_cases"`
	NewDeaths      int64 `json:"new_deaths"`
	TotalCases     int64 `json:"total_cases"`
	TotalDeaths    int64 `json:"total_deaths"`
	TotalRecovered int64 `json:"total_recovered"`
}

// Add accumulates every numeric field of o into t.
func (t *Totals) Add(o Observation) {
	t.NewCases += o.NewCases
	t.NewDeaths += o.NewDeaths
	t.TotalCases += o.TotalCases
	t.TotalDeaths += o.TotalDeaths
	t.TotalRecovered += o.TotalRecovered
}

// Value returns the total for m.
func (t Totals) Value(m Metric) int64 {
	return Observation{
		NewCases:       t.NewCases,
		NewDeaths:      t.NewDeaths,
		TotalCases:     t.TotalCases,
		TotalDeaths:    t.TotalDeaths,
		TotalRecovered: t.TotalRecovered,
	}.Value(m)
}

// Day truncates t to a UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateLayout is the canonical ISO rendering of a calendar day.
const DateLayout = "2006-01-02"
