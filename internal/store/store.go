// Package store persists companies, articles, signals, and the supporting
// bookkeeping tables behind a single interface with Postgres and SQLite
// implementations.
package store

import (
	"context"
	"time"

	"github.com/sells-group/ir-radar/internal/model"
	"github.com/sells-group/ir-radar/internal/resilience"
)

// SignalFilter narrows signal listings. Zero values mean "no constraint".
type SignalFilter struct {
	CompanyIDs   []string         `json:"company_ids,omitempty"`
	SignalType   model.SignalType `json:"signal_type,omitempty"`
	MinRelevance float64          `json:"min_relevance,omitempty"`
	Since        time.Time        `json:"since,omitempty"`
	Limit        int              `json:"limit,omitempty"`
}

// Store defines the persistence interface for the signal pipeline.
// The store is the only shared state between company workers; it enforces
// article URL uniqueness, which is what makes concurrent dedup safe.
type Store interface {
	// Watchlist
	AddCompany(ctx context.Context, c model.Company) (*model.Company, error)
	GetCompany(ctx context.Context, id string) (*model.Company, error)
	GetCompanyByTicker(ctx context.Context, ticker string) (*model.Company, error)
	ListCompanies(ctx context.Context, activeOnly bool) ([]model.Company, error)
	SetCompanyActive(ctx context.Context, id string, active bool) error
	DeleteCompany(ctx context.Context, id string) error

	// Articles. InsertArticle returns false (and no error) when the URL is
	// already known; the unique constraint is authoritative over dedup.
	ExistingURLs(ctx context.Context, companyID string) (map[string]struct{}, error)
	InsertArticle(ctx context.Context, a *model.Article) (bool, error)

	// Signals
	PersistSignalsBatch(ctx context.Context, signals []model.Signal) error
	PersistSignal(ctx context.Context, sig model.Signal) error
	AttachTalkingPoint(ctx context.Context, signalID, text string) error
	ListSignals(ctx context.Context, filter SignalFilter) ([]model.Signal, error)
	HotSignals(ctx context.Context, limit int) ([]model.Signal, error)
	ClearSignalsAndArticles(ctx context.Context) (signals, articles int64, err error)

	// Financials
	GetFinancials(ctx context.Context, companyID string) (*model.FinancialSnapshot, error)
	UpsertFinancials(ctx context.Context, snap model.FinancialSnapshot) error
	StaleFinancialCompanies(ctx context.Context, cutoff time.Time) ([]model.Company, error)

	// Outreach
	AddOutreach(ctx context.Context, action model.OutreachAction) (*model.OutreachAction, error)
	ListOutreach(ctx context.Context, companyID string, limit int) ([]model.OutreachAction, error)
	LastContact(ctx context.Context, companyID string) (*model.OutreachAction, error)
	HiddenCompanyIDs(ctx context.Context, contactedSince, snoozedSince time.Time) (map[string]struct{}, error)

	// Dead letter queue for failed company runs
	EnqueueDLQ(ctx context.Context, entry *resilience.DLQEntry) error
	ListDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error)
	DueDLQ(ctx context.Context, now time.Time, limit int) ([]resilience.DLQEntry, error)
	DeleteDLQ(ctx context.Context, id string) error
	BumpDLQRetry(ctx context.Context, id string, nextRetryAt time.Time) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
