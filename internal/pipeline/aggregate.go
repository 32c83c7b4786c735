package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/ir-radar/internal/model"
	"github.com/sells-group/ir-radar/internal/store"
)

// Aggregator is the read side: it reduces all in-window signals per company
// into one ranked pain summary. Stateless; recomputed on every call.
type Aggregator struct {
	store store.Store
	now   func() time.Time
}

// NewAggregator creates an Aggregator.
func NewAggregator(st store.Store) *Aggregator {
	return &Aggregator{store: st, now: time.Now}
}

// SummaryFilter scopes a pain summary read.
type SummaryFilter struct {
	Days       int      // lookback window, required
	CompanyIDs []string // optional company scope
	// Hide companies acted on recently: contacted within HideContactedDays
	// or snoozed within HideSnoozedDays. Zero disables either window.
	HideContactedDays int
	HideSnoozedDays   int
}

// GetPainSummary groups in-window signals per company into ranked summary
// rows, sorted by max pain score descending with ties broken by smaller
// newest-signal age.
func (a *Aggregator) GetPainSummary(ctx context.Context, filter SummaryFilter) ([]model.CompanyPainSummary, error) {
	now := a.now().UTC()
	since := now.AddDate(0, 0, -filter.Days)

	signals, err := a.store.ListSignals(ctx, store.SignalFilter{
		CompanyIDs: filter.CompanyIDs,
		Since:      since,
	})
	if err != nil {
		return nil, eris.Wrap(err, "aggregate: list signals")
	}
	if len(signals) == 0 {
		return nil, nil
	}

	hidden, err := a.hiddenCompanies(ctx, now, filter)
	if err != nil {
		return nil, err
	}

	byCompany := make(map[string][]model.Signal)
	for _, sig := range signals {
		if _, hide := hidden[sig.CompanyID]; hide {
			continue
		}
		byCompany[sig.CompanyID] = append(byCompany[sig.CompanyID], sig)
	}

	summaries := make([]model.CompanyPainSummary, 0, len(byCompany))
	for companyID, sigs := range byCompany {
		summary := reduceCompany(companyID, sigs, now)

		company, err := a.store.GetCompany(ctx, companyID)
		if err == nil {
			summary.Name = company.Name
			summary.Ticker = company.Ticker
		}
		summaries = append(summaries, summary)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].MaxPainScore != summaries[j].MaxPainScore {
			return summaries[i].MaxPainScore > summaries[j].MaxPainScore
		}
		return summaries[i].NewestSignalAgeHours < summaries[j].NewestSignalAgeHours
	})
	return summaries, nil
}

func (a *Aggregator) hiddenCompanies(ctx context.Context, now time.Time, filter SummaryFilter) (map[string]struct{}, error) {
	if filter.HideContactedDays <= 0 && filter.HideSnoozedDays <= 0 {
		return nil, nil
	}
	var contactedSince, snoozedSince time.Time
	if filter.HideContactedDays > 0 {
		contactedSince = now.AddDate(0, 0, -filter.HideContactedDays)
	}
	if filter.HideSnoozedDays > 0 {
		snoozedSince = now.AddDate(0, 0, -filter.HideSnoozedDays)
	}
	hidden, err := a.store.HiddenCompanyIDs(ctx, contactedSince, snoozedSince)
	if err != nil {
		return nil, eris.Wrap(err, "aggregate: hidden companies")
	}
	return hidden, nil
}

// reduceCompany folds one company's signals into a summary row. The max
// pain signal's summary wins; among equal-pain signals the most recent one
// is chosen.
func reduceCompany(companyID string, sigs []model.Signal, now time.Time) model.CompanyPainSummary {
	summary := model.CompanyPainSummary{
		CompanyID:   companyID,
		SignalCount: len(sigs),
		Signals:     sigs,
	}

	var maxSig model.Signal
	var newest time.Time
	for i, sig := range sigs {
		if i == 0 || sig.PainScore > maxSig.PainScore ||
			(sig.PainScore == maxSig.PainScore && sig.CreatedAt.After(maxSig.CreatedAt)) {
			maxSig = sig
		}
		if sig.CreatedAt.After(newest) {
			newest = sig.CreatedAt
		}
	}

	summary.MaxPainScore = maxSig.PainScore
	summary.MaxPainSummary = maxSig.Summary
	summary.NewestSignalAgeHours = now.Sub(newest).Hours()
	return summary
}
