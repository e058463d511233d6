package dashboard

import (
	"time"

	"github.com/sells-group/epidash/internal/model"
	"github.com/sells-group/epidash/internal/nearest"
	"github.com/sells-group/epidash/internal/scale"
)

// ViewState is the interactive state owned by the Coordinator.
// Index is always a valid position in Range.
type ViewState struct {
	Metric   model.Metric
	Index    int
	Range    []time.Time
	Filtered bool
	Playing  bool
	TopN     []string
	Rollup   model.Rollup
	Domain   scale.Domain
	Trend    scale.Domain
	Detail   *model.Detail
}

// CurrentDate returns the date under the slider.
func (s ViewState) CurrentDate() time.Time {
	return s.Range[s.Index]
}

// Snapshot is everything a renderer needs to draw one frame.
type Snapshot struct {
	Date        time.Time              `json:"date"`
	Index       int                    `json:"index"`
	RangeLen    int                    `json:"range_len"`
	RangeStart  time.Time              `json:"range_start"`
	RangeEnd    time.Time              `json:"range_end"`
	Filtered    bool                   `json:"filtered"`
	Metric      model.Metric           `json:"metric"`
	Playing     bool                   `json:"playing"`
	Totals      model.Totals           `json:"totals"`
	HasTotals   bool                   `json:"has_totals"`
	MapColors   map[string]scale.Color `json:"map_colors"`
	Series      []model.Series         `json:"series"`
	Categories  map[string]string      `json:"categories"`
	Domain      scale.Domain           `json:"domain"`
	TrendDomain scale.Domain           `json:"trend_domain"`
	Annotations []model.Annotation     `json:"annotations"`
	Detail      *model.Detail          `json:"detail,omitempty"`
}

// Result is returned for every applied event.
type Result struct {
	Snapshot Snapshot         `json:"snapshot"`
	Samples  []nearest.Sample `json:"samples,omitempty"`
	Changed  bool             `json:"changed"`
}
