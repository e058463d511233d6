package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/epidash/internal/config"
)

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		MaxRejectRatio:      0.05,
		MaxUnmatchedRegions: 1,
	})

	snap := &DatasetSnapshot{
		Accepted:         99,
		Rejected:         1,
		RejectRatio:      0.01,
		UnmatchedRegions: []string{"Atlantis"},
	}

	alerts := a.Evaluate(snap)
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_RejectRatio(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{MaxRejectRatio: 0.05})

	snap := &DatasetSnapshot{
		Accepted:    80,
		Rejected:    20,
		RejectRatio: 0.2,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertRejectRatio, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "20.0%")
	assert.Contains(t, alerts[0].Message, "20 rejected / 100 read")
}

func TestAlerter_Evaluate_UnmatchedRegions(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{MaxRejectRatio: 1})

	snap := &DatasetSnapshot{
		UnmatchedRegions: []string{"Atlantis", "Lemuria"},
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertUnmatchedRegions, alerts[0].Type)
	assert.Equal(t, "medium", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "2 map region(s)")
	assert.Equal(t, []string{"Atlantis", "Lemuria"}, alerts[0].Details["regions"])
}

func TestAlerter_Evaluate_MultipleAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{MaxRejectRatio: 0.05})

	snap := &DatasetSnapshot{
		Accepted:         5,
		Rejected:         5,
		RejectRatio:      0.5,
		UnmatchedRegions: []string{"Atlantis"},
	}

	alerts := a.Evaluate(snap)
	assert.Len(t, alerts, 2)

	types := make(map[AlertType]bool)
	for _, a := range alerts {
		types[a.Type] = true
	}
	assert.True(t, types[AlertRejectRatio])
	assert.True(t, types[AlertUnmatchedRegions])
}

func TestAlerter_Evaluate_RatioAtThreshold(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{MaxRejectRatio: 0.25})

	alerts := a.Evaluate(&DatasetSnapshot{Accepted: 3, Rejected: 1, RejectRatio: 0.25})
	assert.Empty(t, alerts)
}

func TestAlerter_SendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		err := json.NewDecoder(r.Body).Decode(&alert)
		require.NoError(t, err)
		assert.NotEmpty(t, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: ts.URL,
	})

	alerts := []Alert{
		{Type: AlertRejectRatio, Severity: "high", Message: "test alert 1"},
		{Type: AlertUnmatchedRegions, Severity: "medium", Message: "test alert 2"},
	}

	sent := a.SendAlerts(context.Background(), alerts)
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_EmptyURL(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: "",
	})

	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertRejectRatio, Message: "test"},
	})
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_EmptyAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: "http://example.com",
	})

	sent := a.SendAlerts(context.Background(), nil)
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: ts.URL,
	})

	alerts := []Alert{
		{Type: AlertRejectRatio, Message: "test"},
	}

	sent := a.SendAlerts(context.Background(), alerts)
	assert.Equal(t, 0, sent)
}

func TestAlerter_Log(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})
	assert.NotPanics(t, func() {
		a.Log([]Alert{{Type: AlertRejectRatio, Severity: "high", Message: "rows rejected"}})
	})
}
