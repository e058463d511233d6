package monitoring

import (
	"time"

	"github.com/sells-group/epidash/internal/geo"
	"github.com/sells-group/epidash/internal/records"
)

// DatasetSnapshot holds a point-in-time view of dataset quality.
type DatasetSnapshot struct {
	Dates        int       `json:"dates"`
	Regions      int       `json:"regions"`
	Observations int       `json:"observations"`
	FirstDate    time.Time `json:"first_date"`
	LastDate     time.Time `json:"last_date"`

	// Load outcome.
	Accepted    int     `json:"accepted"`
	Rejected    int     `json:"rejected"`
	Coerced     int     `json:"coerced"`
	RejectRatio float64 `json:"reject_ratio"`

	// Number of (date, region) pairs with no observation.
	MissingCells int `json:"missing_cells"`

	// Geometry feature names with no matching data region.
	UnmatchedRegions []string `json:"unmatched_regions,omitempty"`

	CollectedAt time.Time `json:"collected_at"`
}

// Collect gathers a snapshot from a loaded store, its load report and the
// joined region layer. The report and layer may be nil.
func Collect(st *records.Store, report *records.LoadReport, layer *geo.Layer) *DatasetSnapshot {
	snap := &DatasetSnapshot{CollectedAt: time.Now().UTC()}

	if st != nil {
		dates := st.Dates()
		snap.Dates = len(dates)
		snap.Regions = len(st.Regions())
		snap.Observations = st.Len()
		if len(dates) > 0 {
			snap.FirstDate = dates[0]
			snap.LastDate = dates[len(dates)-1]
		}
		snap.MissingCells = snap.Dates*snap.Regions - snap.Observations
	}

	if report != nil {
		snap.Accepted = report.Accepted
		snap.Rejected = report.Rejected
		snap.Coerced = report.Coerced
		if total := report.Accepted + report.Rejected; total > 0 {
			snap.RejectRatio = float64(report.Rejected) / float64(total)
		}
	}

	snap.UnmatchedRegions = layer.Unmatched()
	return snap
}
