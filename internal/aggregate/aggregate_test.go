package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/epidash/internal/model"
	"github.com/sells-group/epidash/internal/records"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// 2021-01-03 is a Sunday.
func fixture(t *testing.T) *records.Store {
	t.Helper()
	obs := []model.Observation{
		{Region: "Aceh", Date: day(2021, 1, 3), NewCases: 5, TotalCases: 5},
		{Region: "Bali", Date: day(2021, 1, 3), NewCases: 5, TotalCases: 5},
		{Region: "Papua", Date: day(2021, 1, 3), NewCases: 1, TotalCases: 1},
		{Region: "Aceh", Date: day(2021, 1, 9), NewCases: 2, TotalCases: 7},
		{Region: "Bali", Date: day(2021, 1, 10), NewCases: 9, TotalCases: 14},
		{Region: "Papua", Date: day(2021, 1, 10), NewCases: 0, TotalCases: 1, NewDeaths: 4},
		{Region: "Aceh", Date: day(2021, 1, 11), NewCases: 3, TotalCases: 10},
	}
	st, report := records.New(obs)
	require.Zero(t, report.Rejected)
	return st
}

func TestParseWeekStart(t *testing.T) {
	for in, want := range map[string]time.Weekday{"": time.Sunday, "Sunday": time.Sunday, "mon": time.Monday, " MONDAY ": time.Monday} {
		got, err := ParseWeekStart(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseWeekStart("friday")
	assert.Error(t, err)
}

func TestWeekStart(t *testing.T) {
	sun := New(fixture(t), Options{WeekStart: time.Sunday})
	mon := New(fixture(t), Options{WeekStart: time.Monday})

	assert.Equal(t, day(2021, 1, 3), sun.WeekStart(day(2021, 1, 3)))
	assert.Equal(t, day(2021, 1, 3), sun.WeekStart(day(2021, 1, 9)))
	assert.Equal(t, day(2021, 1, 10), sun.WeekStart(day(2021, 1, 11)))

	assert.Equal(t, day(2020, 12, 28), mon.WeekStart(day(2021, 1, 3)))
	assert.Equal(t, day(2021, 1, 4), mon.WeekStart(day(2021, 1, 9)))
	assert.Equal(t, day(2021, 1, 11), mon.WeekStart(day(2021, 1, 11)))
}

func TestTopNRegions(t *testing.T) {
	agg := New(fixture(t), Options{})

	assert.Equal(t, []string{"Bali", "Aceh"}, agg.TopNRegions(model.MetricNewCases, 2))
	assert.Equal(t, []string{"Papua"}, agg.TopNRegions(model.MetricNewDeaths, 1))
	assert.Equal(t, []string{"Bali", "Aceh", "Papua"}, agg.TopNRegions(model.MetricNewCases, 10))
	assert.Empty(t, agg.TopNRegions(model.MetricNewCases, 0))
}

func TestTopNRegions_TiesKeepFirstSeenOrder(t *testing.T) {
	agg := New(fixture(t), Options{})

	// Only Papua has deaths; Aceh and Bali tie at zero.
	assert.Equal(t, []string{"Papua", "Aceh", "Bali"}, agg.TopNRegions(model.MetricNewDeaths, 3))
	// Nobody has recoveries: pure first-seen order.
	assert.Equal(t, []string{"Aceh", "Bali", "Papua"}, agg.TopNRegions(model.MetricTotalRecovered, 3))
}

func TestTopNRegions_ResultIsNotShared(t *testing.T) {
	agg := New(fixture(t), Options{})

	first := agg.TopNRegions(model.MetricNewCases, 2)
	first[0] = "mutated"
	assert.Equal(t, []string{"Bali", "Aceh"}, agg.TopNRegions(model.MetricNewCases, 2))
}

func TestWeeklyRollup(t *testing.T) {
	agg := New(fixture(t), Options{WeekStart: time.Sunday})

	r := agg.WeeklyRollup([]string{"Aceh", "Bali"}, model.MetricNewCases)
	assert.Equal(t, model.MetricNewCases, r.Metric)
	assert.Equal(t, []string{"Aceh", "Bali"}, r.Regions())

	aceh, ok := r.Lookup("Aceh")
	require.True(t, ok)
	assert.Equal(t, []model.WeekPoint{
		{WeekStart: day(2021, 1, 3), Value: 7},
		{WeekStart: day(2021, 1, 10), Value: 3},
	}, aceh)

	bali, _ := r.Lookup("Bali")
	assert.Equal(t, []model.WeekPoint{
		{WeekStart: day(2021, 1, 3), Value: 5},
		{WeekStart: day(2021, 1, 10), Value: 9},
	}, bali)

	_, ok = r.Lookup("Papua")
	assert.False(t, ok, "regions outside the requested set are dropped")
}

func TestWeeklyRollup_MondayWeeks(t *testing.T) {
	agg := New(fixture(t), Options{WeekStart: time.Monday})

	r := agg.WeeklyRollup([]string{"Aceh"}, model.MetricNewCases)
	aceh, _ := r.Lookup("Aceh")
	assert.Equal(t, []model.WeekPoint{
		{WeekStart: day(2020, 12, 28), Value: 5},
		{WeekStart: day(2021, 1, 4), Value: 2},
		{WeekStart: day(2021, 1, 11), Value: 3},
	}, aceh)
}

func TestWeeklyRollup_MissingRegionGetsEmptySeries(t *testing.T) {
	agg := New(fixture(t), Options{})

	r := agg.WeeklyRollup([]string{"Aceh", "Atlantis"}, model.MetricNewCases)
	require.Len(t, r.Series, 2)

	pts, ok := r.Lookup("Atlantis")
	require.True(t, ok)
	assert.NotNil(t, pts)
	assert.Empty(t, pts)
}

func TestWeeklyRollup_SortedUniqueWeeks(t *testing.T) {
	agg := New(fixture(t), Options{})

	r := agg.WeeklyRollup(agg.TopNRegions(model.MetricTotalCases, 5), model.MetricTotalCases)
	for _, s := range r.Series {
		for i := 1; i < len(s.Points); i++ {
			assert.True(t, s.Points[i-1].WeekStart.Before(s.Points[i].WeekStart), s.Region)
		}
	}
}

func TestWeeklyRollup_Memoized(t *testing.T) {
	agg := New(fixture(t), Options{})

	first := agg.WeeklyRollup([]string{"Aceh"}, model.MetricNewCases)
	first.Series[0].Points[0].Value = -1

	second := agg.WeeklyRollup([]string{"Aceh"}, model.MetricNewCases)
	assert.Equal(t, int64(7), second.Series[0].Points[0].Value)

	stats := agg.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
}
