package pipeline

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/ir-radar/internal/model"
)

// Override is the deterministic relevance override: titles matching a
// configured keyword are forced to neutral regardless of the model's
// verdict. It corrects topics the model systematically over-classifies as
// IR-relevant, such as employment-law matters. Applied exactly once, after
// classification and before persistence, on both the batch and fallback
// paths. Idempotent.
type Override struct {
	keywords []string
}

// NewOverride creates an Override from the configured keyword list.
// Keywords match case-insensitively as substrings of the title.
func NewOverride(keywords []string) *Override {
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			lowered = append(lowered, k)
		}
	}
	return &Override{keywords: lowered}
}

// Matches reports whether the title hits any configured keyword.
func (o *Override) Matches(title string) bool {
	titleLower := strings.ToLower(title)
	for _, k := range o.keywords {
		if strings.Contains(titleLower, k) {
			return true
		}
	}
	return false
}

// Apply forces the classification to neutral with zero pain when the title
// matches a keyword. The relevance score is left untouched: the article may
// well be about the company, it just is not IR pain.
func (o *Override) Apply(title string, c model.Classification) model.Classification {
	if !o.Matches(title) {
		return c
	}
	if c.SignalType != model.SignalNeutral || c.PainScore != 0.0 {
		zap.L().Debug("override: forcing neutral",
			zap.String("title", title),
			zap.String("model_signal_type", string(c.SignalType)),
			zap.Float64("model_pain_score", c.PainScore),
		)
	}
	c.SignalType = model.SignalNeutral
	c.PainScore = 0.0
	return c
}
