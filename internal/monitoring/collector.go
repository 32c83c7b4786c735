// Package monitoring gathers system health metrics from the store and
// raises webhook alerts when they breach configured thresholds.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/ir-radar/internal/model"
	"github.com/sells-group/ir-radar/internal/resilience"
	"github.com/sells-group/ir-radar/internal/store"
)

// MetricsSnapshot holds a point-in-time view of system health.
type MetricsSnapshot struct {
	// Watchlist size.
	ActiveCompanies int `json:"active_companies"`

	// Signal metrics within the lookback window. A neutral share near 1.0
	// across a meaningful sample usually means classification is failing
	// and every article is degrading to the neutral fallback.
	SignalsTotal   int     `json:"signals_total"`
	SignalsNeutral int     `json:"signals_neutral"`
	NeutralShare   float64 `json:"neutral_share"`
	MaxPainScore   float64 `json:"max_pain_score"`

	// Dead letter queue.
	DLQDepth     int `json:"dlq_depth"`
	DLQExhausted int `json:"dlq_exhausted"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the store.
type Collector struct {
	store store.Store
}

// NewCollector creates a metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot of system metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	companies, err := c.store.ListCompanies(ctx, true)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list companies")
	}
	snap.ActiveCompanies = len(companies)

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)
	signals, err := c.store.ListSignals(ctx, store.SignalFilter{Since: cutoff})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list signals")
	}

	snap.SignalsTotal = len(signals)
	for _, sig := range signals {
		if sig.SignalType == model.SignalNeutral {
			snap.SignalsNeutral++
		}
		if sig.PainScore > snap.MaxPainScore {
			snap.MaxPainScore = sig.PainScore
		}
	}
	if snap.SignalsTotal > 0 {
		snap.NeutralShare = float64(snap.SignalsNeutral) / float64(snap.SignalsTotal)
	}

	entries, err := c.store.ListDLQ(ctx, resilience.DLQFilter{})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list dead letters")
	}
	snap.DLQDepth = len(entries)
	for _, e := range entries {
		if !e.CanRetry() {
			snap.DLQExhausted++
		}
	}

	return snap, nil
}
