package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/epidash/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertRejectRatio      AlertType = "reject_ratio"
	AlertUnmatchedRegions AlertType = "unmatched_regions"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a DatasetSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *DatasetSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if snap.RejectRatio > a.cfg.MaxRejectRatio {
		alerts = append(alerts, Alert{
			Type:     AlertRejectRatio,
			Severity: "high",
			Message: fmt.Sprintf(
				"Rejected %.1f%% of rows, above threshold %.1f%% (%d rejected / %d read)",
				snap.RejectRatio*100, a.cfg.MaxRejectRatio*100,
				snap.Rejected, snap.Accepted+snap.Rejected,
			),
			Details: map[string]any{
				"reject_ratio": snap.RejectRatio,
				"threshold":    a.cfg.MaxRejectRatio,
				"rejected":     snap.Rejected,
				"accepted":     snap.Accepted,
			},
			Timestamp: now,
		})
	}

	if n := len(snap.UnmatchedRegions); n > a.cfg.MaxUnmatchedRegions {
		alerts = append(alerts, Alert{
			Type:     AlertUnmatchedRegions,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%d map region(s) have no data (threshold %d)",
				n, a.cfg.MaxUnmatchedRegions,
			),
			Details: map[string]any{
				"regions":   snap.UnmatchedRegions,
				"threshold": a.cfg.MaxUnmatchedRegions,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// Log writes every alert to the global logger.
func (a *Alerter) Log(alerts []Alert) {
	log := zap.L().With(zap.String("component", "monitoring"))
	for _, alert := range alerts {
		log.Warn(alert.Message,
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
	}
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
