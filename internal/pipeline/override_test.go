package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/ir-radar/internal/model"
)

func defaultOverride() *Override {
	return NewOverride([]string{
		"eeoc",
		"discrimination",
		"harassment",
		"wrongful termination",
		"class action employment",
		"labor dispute",
		"osha",
	})
}

func TestOverride_Matches(t *testing.T) {
	o := defaultOverride()

	assert.True(t, o.Matches("Acme Corp faces EEOC discrimination lawsuit"))
	assert.True(t, o.Matches("OSHA fines Acme after plant inspection"))
	assert.False(t, o.Matches("Acme Corp beats Q3 estimates"))
	assert.False(t, o.Matches("Activist investor takes stake in Acme"))
}

func TestOverride_ForcesNeutralKeepsRelevance(t *testing.T) {
	o := defaultOverride()

	in := model.Classification{
		Summary:        "EEOC complaint against Acme",
		SignalType:     model.SignalGovernanceIssue,
		RelevanceScore: 0.9,
		PainScore:      0.8,
	}
	out := o.Apply("Acme Corp faces EEOC discrimination lawsuit", in)

	assert.Equal(t, model.SignalNeutral, out.SignalType)
	assert.Equal(t, 0.0, out.PainScore)
	// the article is still about the company
	assert.Equal(t, 0.9, out.RelevanceScore)
	assert.Equal(t, in.Summary, out.Summary)
}

func TestOverride_Idempotent(t *testing.T) {
	o := defaultOverride()
	title := "Acme settles harassment claims"

	in := model.Classification{
		SignalType:     model.SignalESGNegative,
		RelevanceScore: 0.7,
		PainScore:      0.6,
	}
	once := o.Apply(title, in)
	twice := o.Apply(title, once)

	assert.Equal(t, once, twice)
}

func TestOverride_NonMatchingTitleUntouched(t *testing.T) {
	o := defaultOverride()

	in := model.Classification{
		SignalType:     model.SignalActivistRisk,
		RelevanceScore: 0.95,
		PainScore:      0.9,
	}
	out := o.Apply("Activist fund discloses 8% Acme stake", in)

	assert.Equal(t, in, out)
}

func TestOverride_CaseInsensitive(t *testing.T) {
	o := NewOverride([]string{"Labor Dispute"})

	assert.True(t, o.Matches("acme LABOR DISPUTE escalates"))
}

func TestOverride_EmptyKeywordsNeverMatch(t *testing.T) {
	o := NewOverride([]string{"", "  "})

	assert.False(t, o.Matches("anything at all"))
}
