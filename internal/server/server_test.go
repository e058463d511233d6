package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/epidash/internal/aggregate"
	"github.com/sells-group/epidash/internal/dashboard"
	"github.com/sells-group/epidash/internal/geo"
	"github.com/sells-group/epidash/internal/model"
	"github.com/sells-group/epidash/internal/monitoring"
	"github.com/sells-group/epidash/internal/playback"
	"github.com/sells-group/epidash/internal/records"
)

func day(d int) time.Time {
	return time.Date(2021, 3, d, 0, 0, 0, 0, time.UTC)
}

func newTestServer(t *testing.T) (*httptest.Server, *aggregate.Aggregator) {
	t.Helper()
	st, _ := records.New([]model.Observation{
		{Region: "Aceh", Date: day(1), NewCases: 10, TotalCases: 10},
		{Region: "Bali", Date: day(1), NewCases: 2, TotalCases: 2},
		{Region: "Aceh", Date: day(2), NewCases: 5, TotalCases: 15},
		{Region: "Bali", Date: day(2), NewCases: 20, TotalCases: 22},
		{Region: "Aceh", Date: day(3), NewCases: 1, TotalCases: 16},
	})
	agg := aggregate.New(st, aggregate.Options{})
	layer := geo.Join([]geo.Region{{Name: "Aceh"}, {Name: "Bali"}, {Name: "Atlantis"}}, nil, st)
	c, err := dashboard.New(st, agg, dashboard.Options{
		Layer:    layer,
		Playback: playback.New(time.Hour),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx) //nolint:errcheck
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	srv := New(c, Options{
		Layer:      layer,
		Quality:    monitoring.Collect(st, nil, layer),
		CacheStats: agg.Stats,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, agg
}

func do(t *testing.T, ts *httptest.Server, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func decodeResult(t *testing.T, b []byte) dashboard.Result {
	t.Helper()
	var res dashboard.Result
	require.NoError(t, json.Unmarshal(b, &res))
	return res
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, body := do(t, ts, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestState(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, body := do(t, ts, http.MethodGet, "/api/state", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var snap dashboard.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, day(1), snap.Date)
	assert.Equal(t, 3, snap.RangeLen)
	assert.Equal(t, model.MetricNewCases, snap.Metric)
	assert.Equal(t, int64(12), snap.Totals.NewCases)
	assert.True(t, snap.MapColors["Atlantis"].NoData)
}

func TestSelectMetric(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, body := do(t, ts, http.MethodPost, "/api/metric", map[string]string{"metric": "total_deaths"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decodeResult(t, body)
	assert.True(t, res.Changed)
	assert.Equal(t, model.MetricTotalDeaths, res.Snapshot.Metric)
}

func TestSelectMetric_Rejected(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, _ := do(t, ts, http.MethodPost, "/api/metric", map[string]string{"metric": "Total Recovered"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, ts, http.MethodPost, "/api/metric", map[string]string{"metric": "vaccinations"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRangeAndScrub(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, body := do(t, ts, http.MethodPost, "/api/range", map[string]string{"from": "2021-03-02", "to": "2021-03-04"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decodeResult(t, body)
	assert.True(t, res.Snapshot.Filtered)
	assert.Equal(t, 2, res.Snapshot.RangeLen)
	assert.Equal(t, day(2), res.Snapshot.Date)

	resp, body = do(t, ts, http.MethodPost, "/api/index", map[string]int{"index": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, day(3), decodeResult(t, body).Snapshot.Date)

	resp, _ = do(t, ts, http.MethodPost, "/api/index", map[string]int{"index": 2})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = do(t, ts, http.MethodDelete, "/api/range", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res = decodeResult(t, body)
	assert.False(t, res.Snapshot.Filtered)
	assert.Equal(t, 3, res.Snapshot.RangeLen)
}

func TestBadRequests(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, _ := do(t, ts, http.MethodPost, "/api/range", map[string]string{"from": "yesterday", "to": "2021-03-04"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := do(t, ts, http.MethodPost, "/api/index", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "index is required")

	resp, _ = do(t, ts, http.MethodGet, "/api/nearest", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, ts, http.MethodGet, "/api/legend?n=1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTogglePlay(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, body := do(t, ts, http.MethodPost, "/api/playback/toggle", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decodeResult(t, body).Snapshot.Playing)

	_, body = do(t, ts, http.MethodPost, "/api/playback/toggle", nil)
	assert.False(t, decodeResult(t, body).Snapshot.Playing)
}

func TestSelectRegionAndCloseDetail(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, body := do(t, ts, http.MethodPost, "/api/regions/Bali/select", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decodeResult(t, body)
	require.NotNil(t, res.Snapshot.Detail)
	assert.Equal(t, "Bali", res.Snapshot.Detail.Region)

	resp, _ = do(t, ts, http.MethodPost, "/api/regions/Lemuria/select", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = do(t, ts, http.MethodDelete, "/api/detail", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, decodeResult(t, body).Snapshot.Detail)
}

func TestNearest(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, body := do(t, ts, http.MethodGet, "/api/nearest?t=2021-03-02", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Samples []struct {
			Region string `json:"region"`
			Value  int64  `json:"value"`
		} `json:"samples"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out.Samples, 2)
	// Both regions fall into the week of Sunday 2021-02-28.
	assert.Equal(t, "Bali", out.Samples[0].Region)
	assert.Equal(t, int64(22), out.Samples[0].Value)
	assert.Equal(t, "Aceh", out.Samples[1].Region)
	assert.Equal(t, int64(16), out.Samples[1].Value)
}

func TestRegionsLegendCacheQuality(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, body := do(t, ts, http.MethodGet, "/api/regions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"unmatched":["Atlantis"]`)

	resp, body = do(t, ts, http.MethodGet, "/api/legend?n=3", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var legend struct {
		Stops []struct {
			Value int64  `json:"value"`
			Hex   string `json:"hex"`
		} `json:"stops"`
	}
	require.NoError(t, json.Unmarshal(body, &legend))
	require.Len(t, legend.Stops, 3)
	assert.Equal(t, "#006837", legend.Stops[0].Hex)
	assert.Equal(t, "#a50026", legend.Stops[2].Hex)

	resp, body = do(t, ts, http.MethodGet, "/api/cache", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"max_entries":64`)

	resp, body = do(t, ts, http.MethodGet, "/api/quality", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"missing_cells":1`)
}

func TestMetrics(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, body := do(t, ts, http.MethodGet, "/api/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Selectable []string `json:"selectable"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Len(t, out.Selectable, 4)
	assert.NotContains(t, out.Selectable, "Total Recovered")
}

type stoppedDispatcher struct{}

func (stoppedDispatcher) Dispatch(context.Context, dashboard.Event) (dashboard.Result, error) {
	return dashboard.Result{}, dashboard.ErrStopped
}

func TestDispatchStopped(t *testing.T) {
	ts := httptest.NewServer(New(stoppedDispatcher{}, Options{}).Handler())
	defer ts.Close()

	resp, body := do(t, ts, http.MethodGet, "/api/state", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, string(body), "coordinator stopped")

	resp, _ = do(t, ts, http.MethodGet, "/api/quality", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	ts := httptest.NewServer(New(stoppedDispatcher{}, Options{CORSOrigins: []string{"https://dash.example.com"}}).Handler())
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://dash.example.com")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, "https://dash.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
}
