package model

import "time"

// Company is a watchlist entry. The pipeline treats it as read-only input;
// watchlist mutations happen only through explicit CLI/API operations.
type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Ticker    string    `json:"ticker,omitempty"`
	Aliases   []string  `json:"aliases,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// DisplayName returns "Name (TICKER)" when a ticker is set.
func (c Company) DisplayName() string {
	if c.Ticker == "" {
		return c.Name
	}
	return c.Name + " (" + c.Ticker + ")"
}

// CompanyError records an unrecovered failure for a single company during a
// pipeline run. One company's failure never aborts siblings; the coordinator
// collects these into PipelineStats.
type CompanyError struct {
	CompanyID string `json:"company_id"`
	Name      string `json:"name"`
	Err       string `json:"error"`
}
