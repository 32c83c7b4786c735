package pipeline

import (
	"time"

	"github.com/sells-group/ir-radar/internal/config"
	"github.com/sells-group/ir-radar/internal/model"
)

// Scorer derives urgency tier, market-cap tier, and IR-cycle stage from
// classification output and market data using fixed thresholds injected at
// construction.
type Scorer struct {
	cfg config.ScoringConfig
}

// NewScorer creates a Scorer.
func NewScorer(cfg config.ScoringConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// UrgencyTier computes the base tier from a company's maximum pain score
// and the age of its newest signal in hours: hot needs high pain AND a
// fresh signal, warm needs either moderate pain OR recency, everything
// else is monitor.
func (s *Scorer) UrgencyTier(painScore, ageHours float64) model.UrgencyTier {
	if painScore >= s.cfg.HotMinPain && ageHours <= s.cfg.HotMaxAgeHours {
		return model.UrgencyHot
	}
	if painScore >= s.cfg.WarmMinPain || ageHours <= s.cfg.WarmMaxAgeHours {
		return model.UrgencyWarm
	}
	return model.UrgencyMonitor
}

// EnhancedUrgency applies the earnings proximity boost on top of the base
// tier: warm becomes hot when the next earnings date falls within the
// configured window. Other tiers pass through unchanged.
func (s *Scorer) EnhancedUrgency(painScore, ageHours float64, nextEarnings *time.Time, now time.Time) model.UrgencyTier {
	tier := s.UrgencyTier(painScore, ageHours)
	if tier != model.UrgencyWarm || nextEarnings == nil {
		return tier
	}
	days := int(nextEarnings.Sub(now).Hours() / 24)
	if days >= 0 && days <= s.cfg.EarningsBoostDays {
		return model.UrgencyHot
	}
	return tier
}

// MarketCapTier buckets a market cap in USD. Zero or negative means the
// cap is unknown.
func (s *Scorer) MarketCapTier(capUSD float64) model.MarketCapTier {
	switch {
	case capUSD <= 0:
		return model.CapTierUnknown
	case capUSD < s.cfg.SmallCapMaxUSD:
		return model.CapTierSmall
	case capUSD < s.cfg.MidCapMaxUSD:
		return model.CapTierMid
	default:
		return model.CapTierLarge
	}
}

// IRCycleStage places a company in its earnings-communication cycle.
// Precedence order matters: an imminent earnings date always means quiet
// period, no matter how long ago the last report was.
func (s *Scorer) IRCycleStage(lastEarnings, nextEarnings *time.Time, now time.Time) model.IRCycleStage {
	if nextEarnings != nil {
		daysToNext := int(nextEarnings.Sub(now).Hours() / 24)
		if daysToNext >= 0 && daysToNext <= s.cfg.QuietPeriodDays {
			return model.StageQuietPeriod
		}
	}
	if lastEarnings != nil {
		daysSinceLast := int(now.Sub(*lastEarnings).Hours() / 24)
		switch {
		case daysSinceLast >= 0 && daysSinceLast <= s.cfg.EarningsWeekDays:
			return model.StageEarningsWeek
		case daysSinceLast > s.cfg.EarningsWeekDays && daysSinceLast <= s.cfg.OpenWindowMaxDays:
			return model.StageOpenWindow
		case daysSinceLast > s.cfg.OpenWindowMaxDays:
			return model.StageMidQuarter
		}
	}
	return model.StageUnknown
}
