package records

import (
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/epidash/internal/fetcher"
	"github.com/sells-group/epidash/internal/model"
)

// Source column names.
const (
	ColDate           = "Date"
	ColProvince       = "Province"
	ColNewCases       = "New Cases"
	ColNewDeaths      = "New Deaths"
	ColTotalCases     = "Total Cases"
	ColTotalDeaths    = "Total Deaths"
	ColTotalRecovered = "Total Recovered"
)

// dateLayouts are tried in order. The first is the source's month/day/year.
var dateLayouts = []string{"1/2/2006", model.DateLayout}

// NormalizeRegion trims and NFC-normalizes a region name.
func NormalizeRegion(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// ParseDate parses a calendar day in any accepted layout.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var firstErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return model.Day(t), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// Parse converts one source row into an Observation. A non-nil *DataFormatError
// with Rejected set means the row must be dropped. Coercions are returned in
// the slice and do not invalidate the observation.
func Parse(row fetcher.Row) (model.Observation, []*DataFormatError, *DataFormatError) {
	var obs model.Observation

	region, _ := row.Get(ColProvince)
	obs.Region = NormalizeRegion(region)
	if obs.Region == "" {
		return obs, nil, &DataFormatError{Line: row.Line, Column: ColProvince, Reason: "missing region name", Rejected: true}
	}

	rawDate, _ := row.Get(ColDate)
	date, err := ParseDate(rawDate)
	if err != nil {
		return obs, nil, &DataFormatError{Line: row.Line, Column: ColDate, Value: rawDate, Reason: "unparseable date", Rejected: true}
	}
	obs.Date = date

	var coerced []*DataFormatError
	field := func(col string, dst *int64) {
		raw, _ := row.Get(col)
		n, reason := parseCount(raw)
		if reason != "" {
			coerced = append(coerced, &DataFormatError{Line: row.Line, Column: col, Value: raw, Reason: reason})
		}
		*dst = n
	}
	field(ColNewCases, &obs.NewCases)
	field(ColNewDeaths, &obs.NewDeaths)
	field(ColTotalCases, &obs.TotalCases)
	field(ColTotalDeaths, &obs.TotalDeaths)
	field(ColTotalRecovered, &obs.TotalRecovered)

	return obs, coerced, nil
}

// parseCount reads a non-negative count. Blank means zero without complaint;
// anything else unusable yields zero and a reason.
func parseCount(raw string) (int64, string) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if s == "" {
		return 0, ""
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return 0, "negative count"
		}
		return n, ""
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, "not a number"
	}
	if f < 0 {
		return 0, "negative count"
	}
	if f+0.5 >= 1<<63 {
		return 0, "count out of range"
	}
	return int64(f + 0.5), ""
}
