package model

import "time"

// Detail is the single-region payload shown when a region is selected.
// HasData is false when the region has no row for Date. Observation is
// nil in that case, which is distinct from a row of zeros.
type Detail struct {
	Region      string       `json:"region"`
	DataName    string       `json:"data_name"`
	Date        time.Time    `json:"date"`
	HasData     bool         `json:"has_data"`
	Observation *Observation `json:"observation,omitempty"`
	Summary     string       `json:"summary"`
	Bounds      []float64    `json:"bounds,omitempty"`
}

// Annotation marks a dated event on the trend chart.
type Annotation struct {
	Date  time.Time `json:"date"`
	Label string    `json:"label"`
}
