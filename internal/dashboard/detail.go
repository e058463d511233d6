package dashboard

import (
	"fmt"
	"time"

	"github.com/sells-group/epidash/internal/model"
	"github.com/sells-group/epidash/internal/records"
)

const detailDateLayout = "January 2, 2006"

func buildDetail(st *records.Store, display, dataName string, date time.Time, bounds []float64) *model.Detail {
	d := &model.Detail{
		Region:   display,
		DataName: dataName,
		Date:     date,
		Bounds:   bounds,
	}
	o, ok := st.ObservationAt(date, dataName)
	if !ok {
		d.Summary = fmt.Sprintf("No data was reported for %s on %s.", display, date.Format(detailDateLayout))
		return d
	}
	d.HasData = true
	d.Observation = &o
	d.Summary = fmt.Sprintf(
		"On %s, %s recorded %d new cases and %d new deaths, bringing the cumulative total to %d cases. Of those, %d have recovered.",
		date.Format(detailDateLayout), display, o.NewCases, o.NewDeaths, o.TotalCases, o.TotalRecovered,
	)
	return d
}
