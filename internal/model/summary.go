package model

import "time"

// UrgencyTier combines pain score and signal recency into an outreach
// priority bucket.
type UrgencyTier string

const (
	UrgencyHot     UrgencyTier = "hot"
	UrgencyWarm    UrgencyTier = "warm"
	UrgencyMonitor UrgencyTier = "monitor"
)

// IRCycleStage places a company in its earnings-communication cycle, a proxy
// for how receptive the IR team is to outreach.
type IRCycleStage string

const (
	StageQuietPeriod  IRCycleStage = "quiet_period"
	StageEarningsWeek IRCycleStage = "earnings_week"
	StageOpenWindow   IRCycleStage = "open_window"
	StageMidQuarter   IRCycleStage = "mid_quarter"
	StageUnknown      IRCycleStage = "unknown"
)

// Opportunity maps a cycle stage to the outreach opportunity it represents.
func (s IRCycleStage) Opportunity() string {
	switch s {
	case StageOpenWindow:
		return "high"
	case StageMidQuarter:
		return "medium"
	case StageQuietPeriod, StageEarningsWeek:
		return "low"
	default:
		return "unknown"
	}
}

// CompanyPainSummary is the derived read-side record for one company:
// recomputed on every read, never persisted.
type CompanyPainSummary struct {
	CompanyID            string   `json:"company_id"`
	Name                 string   `json:"name"`
	Ticker               string   `json:"ticker,omitempty"`
	MaxPainScore         float64  `json:"max_pain_score"`
	MaxPainSummary       string   `json:"max_pain_summary"`
	SignalCount          int      `json:"signal_count"`
	NewestSignalAgeHours float64  `json:"newest_signal_age_hours"`
	Signals              []Signal `json:"signals"`
}

// PipelineStats is the aggregate outcome of one pipeline run. The caller
// always receives one, reflecting partial success; a run is never
// all-or-nothing.
type PipelineStats struct {
	Companies       int            `json:"companies"`
	ArticlesFetched int            `json:"articles_fetched"`
	ArticlesNew     int            `json:"articles_new"`
	SignalsCreated  int            `json:"signals_created"`
	Errors          []CompanyError `json:"errors,omitempty"`
	StartedAt       time.Time      `json:"started_at"`
	FinishedAt      time.Time      `json:"finished_at"`
}
