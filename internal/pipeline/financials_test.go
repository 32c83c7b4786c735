package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ir-radar/internal/model"
	"github.com/sells-group/ir-radar/pkg/quote"
)

func floatPtr(v float64) *float64 { return &v }

func TestRefresh_UpdatesPriceChangesPreservesOperatorFields(t *testing.T) {
	st := newPipelineStore(t)
	company := addPipelineCompany(t, st, "Acme Corp", "ACME")

	lastEarnings := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	require.NoError(t, st.UpsertFinancials(context.Background(), model.FinancialSnapshot{
		CompanyID:     company.ID,
		MarketCap:     5e9,
		MarketCapTier: model.CapTierMid,
		LastEarnings:  &lastEarnings,
		UpdatedAt:     time.Now().UTC().Add(-48 * time.Hour),
	}))

	quotes := new(mockQuotes)
	quotes.On("Snapshot", mock.Anything, "ACME").Return(&quote.Snapshot{
		Symbol:         "acme.us",
		LastClose:      96,
		PriceChange7D:  floatPtr(-0.05),
		PriceChange30D: floatPtr(-0.04),
		AsOf:           time.Now().UTC(),
	}, nil)

	ref := NewFinancialsRefresher(st, quotes, testScorer(), 24*time.Hour)
	refreshed, err := ref.Refresh(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, refreshed)

	snap, err := st.GetFinancials(context.Background(), company.ID)
	require.NoError(t, err)
	require.NotNil(t, snap)
	require.NotNil(t, snap.PriceChange7D)
	assert.InDelta(t, -0.05, *snap.PriceChange7D, 1e-9)
	require.NotNil(t, snap.PriceChange30D)
	assert.InDelta(t, -0.04, *snap.PriceChange30D, 1e-9)

	// operator-maintained fields survive the refresh
	assert.Equal(t, 5e9, snap.MarketCap)
	assert.Equal(t, model.CapTierMid, snap.MarketCapTier)
	require.NotNil(t, snap.LastEarnings)
	assert.True(t, lastEarnings.Equal(*snap.LastEarnings))
	quotes.AssertExpectations(t)
}

func TestRefresh_CreatesSnapshotForNewCompany(t *testing.T) {
	st := newPipelineStore(t)
	company := addPipelineCompany(t, st, "Acme Corp", "ACME")

	quotes := new(mockQuotes)
	quotes.On("Snapshot", mock.Anything, "ACME").Return(&quote.Snapshot{
		Symbol:        "acme.us",
		LastClose:     50,
		PriceChange7D: floatPtr(0.02),
		AsOf:          time.Now().UTC(),
	}, nil)

	ref := NewFinancialsRefresher(st, quotes, testScorer(), 24*time.Hour)
	refreshed, err := ref.Refresh(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, refreshed)

	snap, err := st.GetFinancials(context.Background(), company.ID)
	require.NoError(t, err)
	require.NotNil(t, snap)
	// no operator-set market cap yet, so the tier is unknown
	assert.Equal(t, model.CapTierUnknown, snap.MarketCapTier)
}

func TestRefresh_SkipsFreshSnapshots(t *testing.T) {
	st := newPipelineStore(t)
	company := addPipelineCompany(t, st, "Acme Corp", "ACME")

	require.NoError(t, st.UpsertFinancials(context.Background(), model.FinancialSnapshot{
		CompanyID: company.ID,
		UpdatedAt: time.Now().UTC(),
	}))

	quotes := new(mockQuotes)
	ref := NewFinancialsRefresher(st, quotes, testScorer(), 24*time.Hour)
	refreshed, err := ref.Refresh(context.Background())

	require.NoError(t, err)
	assert.Zero(t, refreshed)
	quotes.AssertNotCalled(t, "Snapshot", mock.Anything, mock.Anything)
}

func TestRefresh_QuoteFailureSkipsCompany(t *testing.T) {
	st := newPipelineStore(t)
	addPipelineCompany(t, st, "Broken Corp", "BRKN")
	good := addPipelineCompany(t, st, "Good Corp", "GOOD")

	quotes := new(mockQuotes)
	quotes.On("Snapshot", mock.Anything, "BRKN").Return(nil, assert.AnError)
	quotes.On("Snapshot", mock.Anything, "GOOD").Return(&quote.Snapshot{
		Symbol:    "good.us",
		LastClose: 10,
		AsOf:      time.Now().UTC(),
	}, nil)

	ref := NewFinancialsRefresher(st, quotes, testScorer(), 24*time.Hour)
	refreshed, err := ref.Refresh(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, refreshed)

	snap, err := st.GetFinancials(context.Background(), good.ID)
	require.NoError(t, err)
	assert.NotNil(t, snap)
}

func TestRefresh_IgnoresUntickeredCompanies(t *testing.T) {
	st := newPipelineStore(t)
	addPipelineCompany(t, st, "Private Holdings", "")

	quotes := new(mockQuotes)
	ref := NewFinancialsRefresher(st, quotes, testScorer(), 24*time.Hour)
	refreshed, err := ref.Refresh(context.Background())

	require.NoError(t, err)
	assert.Zero(t, refreshed)
	quotes.AssertNotCalled(t, "Snapshot", mock.Anything, mock.Anything)
}
