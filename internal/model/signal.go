package model

import "time"

// SignalType categorizes the kind of IR pain an article represents.
type SignalType string

const (
	SignalActivistRisk     SignalType = "activist_risk"
	SignalAnalystNegative  SignalType = "analyst_negative"
	SignalEarningsMiss     SignalType = "earnings_miss"
	SignalLeadershipChange SignalType = "leadership_change"
	SignalGovernanceIssue  SignalType = "governance_issue"
	SignalESGNegative      SignalType = "esg_negative"
	SignalStockPressure    SignalType = "stock_pressure"
	SignalCapitalStress    SignalType = "capital_stress"
	SignalPeerPressure     SignalType = "peer_pressure"
	SignalNeutral          SignalType = "neutral"
)

// AllSignalTypes returns the closed set of valid signal types.
func AllSignalTypes() []SignalType {
	return []SignalType{
		SignalActivistRisk,
		SignalAnalystNegative,
		SignalEarningsMiss,
		SignalLeadershipChange,
		SignalGovernanceIssue,
		SignalESGNegative,
		SignalStockPressure,
		SignalCapitalStress,
		SignalPeerPressure,
		SignalNeutral,
	}
}

// IsValid reports whether t is a member of the closed enum.
func (t SignalType) IsValid() bool {
	for _, v := range AllSignalTypes() {
		if v == t {
			return true
		}
	}
	return false
}

// Classification is the model's verdict for one article.
// Invariant: SignalType == neutral if and only if PainScore == 0.0;
// Normalize enforces it in both directions.
type Classification struct {
	Summary        string     `json:"summary"`
	SignalType     SignalType `json:"signal_type"`
	RelevanceScore float64    `json:"relevance_score"`
	PainScore      float64    `json:"pain_score"`
}

// NeutralClassification is the degraded result used when classification
// fails for an article. No article is ever dropped.
func NeutralClassification(summary string) Classification {
	return Classification{
		Summary:        summary,
		SignalType:     SignalNeutral,
		RelevanceScore: 0.0,
		PainScore:      0.0,
	}
}

// Normalize clamps scores into [0,1], rejects unknown signal types, and
// restores the neutral ⟺ pain==0 invariant.
func (c Classification) Normalize() Classification {
	c.RelevanceScore = clamp01(c.RelevanceScore)
	c.PainScore = clamp01(c.PainScore)
	if !c.SignalType.IsValid() {
		c.SignalType = SignalNeutral
	}
	if c.SignalType == SignalNeutral {
		c.PainScore = 0.0
	} else if c.PainScore == 0.0 {
		c.SignalType = SignalNeutral
	}
	return c
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Signal is the pipeline's primary output: one classified article for one
// company. Created once per surviving (article, company) pair; the keyword
// override may rewrite SignalType/PainScore exactly once before persistence,
// and a talking point may be attached afterward. Nothing else mutates it.
type Signal struct {
	ID             string     `json:"id"`
	ArticleID      string     `json:"article_id"`
	CompanyID      string     `json:"company_id"`
	Summary        string     `json:"summary"`
	SignalType     SignalType `json:"signal_type"`
	RelevanceScore float64    `json:"relevance_score"`
	PainScore      float64    `json:"pain_score"`
	TalkingPoint   *string    `json:"talking_point,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// SignalContext is the talking-point synthesis input for one signal.
type SignalContext struct {
	Summary    string     `json:"summary"`
	SignalType SignalType `json:"signal_type"`
	PainScore  float64    `json:"pain_score"`
}
