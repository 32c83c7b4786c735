package model

import "time"

// MarketCapTier buckets companies by market capitalization.
type MarketCapTier string

const (
	CapTierSmall   MarketCapTier = "small"
	CapTierMid     MarketCapTier = "mid"
	CapTierLarge   MarketCapTier = "large"
	CapTierUnknown MarketCapTier = "unknown"
)

// FinancialSnapshot is read-only market context for a company, refreshed by
// the quote collaborator on its own schedule. Absence is valid: the scorer
// degrades to unknown tiers/stages without it.
type FinancialSnapshot struct {
	CompanyID      string        `json:"company_id"`
	PriceChange7D  *float64      `json:"price_change_7d,omitempty"`
	PriceChange30D *float64      `json:"price_change_30d,omitempty"`
	MarketCap      float64       `json:"market_cap,omitempty"`
	MarketCapTier  MarketCapTier `json:"market_cap_tier"`
	LastEarnings   *time.Time    `json:"last_earnings,omitempty"`
	NextEarnings   *time.Time    `json:"next_earnings,omitempty"`
	UpdatedAt      time.Time     `json:"updated_at"`
}
