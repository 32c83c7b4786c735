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

	"github.com/sells-group/ir-radar/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertDLQDepth      AlertType = "dlq_depth"
	AlertClassifyDrift AlertType = "classification_degraded"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds and
// sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates an Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// minNeutralSample is the smallest signal window worth judging; below it a
// run of all-neutral classifications is just small-sample noise.
const minNeutralSample = 10

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if a.cfg.DLQDepthThreshold > 0 && snap.DLQDepth >= a.cfg.DLQDepthThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertDLQDepth,
			Severity: "high",
			Message: fmt.Sprintf("dead letter queue depth %d (threshold %d)",
				snap.DLQDepth, a.cfg.DLQDepthThreshold),
			Details: map[string]any{
				"dlq_depth":     snap.DLQDepth,
				"dlq_exhausted": snap.DLQExhausted,
			},
			Timestamp: now,
		})
	}

	if snap.SignalsTotal >= minNeutralSample && snap.NeutralShare > a.cfg.NeutralShareThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertClassifyDrift,
			Severity: "medium",
			Message: fmt.Sprintf("%.1f%% of %d signals in the last %dh are neutral; classification may be falling back",
				snap.NeutralShare*100, snap.SignalsTotal, snap.LookbackHours),
			Details: map[string]any{
				"signals_total":   snap.SignalsTotal,
				"signals_neutral": snap.SignalsNeutral,
				"neutral_share":   snap.NeutralShare,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts posts each alert to the configured webhook and returns how many
// were delivered. Without a webhook URL alerts are only logged.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	sent := 0
	for _, alert := range alerts {
		if a.cfg.WebhookURL == "" {
			zap.L().Warn("monitoring: alert (no webhook configured)",
				zap.String("type", string(alert.Type)),
				zap.String("severity", alert.Severity),
				zap.String("message", alert.Message),
			)
			continue
		}
		if err := a.send(ctx, alert); err != nil {
			zap.L().Error("monitoring: alert delivery failed",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		sent++
	}
	return sent
}

func (a *Alerter) send(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "monitoring: build alert request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: post alert")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return eris.Errorf("monitoring: webhook returned %d", resp.StatusCode)
	}
	return nil
}
