package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ir-radar/internal/model"
	"github.com/sells-group/ir-radar/internal/store"
	"github.com/sells-group/ir-radar/pkg/quote"
)

// FinancialsRefresher updates stale financial snapshots from market data.
// Market cap and earnings dates are operator-maintained and preserved
// across refreshes; only price changes and the derived cap tier move.
type FinancialsRefresher struct {
	store      store.Store
	quotes     quote.Client
	scorer     *Scorer
	staleAfter time.Duration
}

// NewFinancialsRefresher creates a FinancialsRefresher.
func NewFinancialsRefresher(st store.Store, quotes quote.Client, scorer *Scorer, staleAfter time.Duration) *FinancialsRefresher {
	if staleAfter <= 0 {
		staleAfter = 24 * time.Hour
	}
	return &FinancialsRefresher{store: st, quotes: quotes, scorer: scorer, staleAfter: staleAfter}
}

// Refresh updates every active tickered company whose snapshot is missing
// or older than the staleness window. Per-company quote failures are
// logged and skipped; the rest of the batch proceeds.
func (f *FinancialsRefresher) Refresh(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-f.staleAfter)
	companies, err := f.store.StaleFinancialCompanies(ctx, cutoff)
	if err != nil {
		return 0, eris.Wrap(err, "financials: stale companies")
	}

	refreshed := 0
	for _, company := range companies {
		if err := f.refreshOne(ctx, company); err != nil {
			zap.L().Warn("financials: refresh failed",
				zap.String("company", company.DisplayName()),
				zap.Error(err),
			)
			continue
		}
		refreshed++
	}
	return refreshed, nil
}

func (f *FinancialsRefresher) refreshOne(ctx context.Context, company model.Company) error {
	snap, err := f.quotes.Snapshot(ctx, company.Ticker)
	if err != nil {
		return eris.Wrap(err, "financials: quote snapshot")
	}

	record := model.FinancialSnapshot{CompanyID: company.ID}
	if existing, err := f.store.GetFinancials(ctx, company.ID); err == nil && existing != nil {
		record = *existing
	}

	record.PriceChange7D = snap.PriceChange7D
	record.PriceChange30D = snap.PriceChange30D
	record.MarketCapTier = f.scorer.MarketCapTier(record.MarketCap)
	record.UpdatedAt = time.Now().UTC()

	return f.store.UpsertFinancials(ctx, record)
}
