package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/ir-radar/internal/config"
	"github.com/sells-group/ir-radar/internal/model"
	"github.com/sells-group/ir-radar/internal/resilience"
	"github.com/sells-group/ir-radar/pkg/anthropic"
)

const talkingSystemPrompt = `You write one-line conversation openers for vendor outreach to a public company's investor-relations team. Given recent pain signals for the company, produce a single, specific, professional opener the salesperson can lead with. Reference the most acute signal. No pleasantries, no placeholders, under 40 words. Respond with the opener text only.`

// Synthesizer produces one outreach talking point per company from its top
// qualifying signals. Exactly one model call per company per run; on
// failure the talking point simply stays unset, never retried within the
// run.
type Synthesizer struct {
	client  anthropic.Client
	ai      config.AnthropicConfig
	timeout time.Duration
	breaker *resilience.CircuitBreaker
}

// NewSynthesizer creates a Synthesizer. Talking points are optional
// polish, so a circuit breaker sheds the calls entirely when the model
// keeps timing out rather than slowing every company down.
func NewSynthesizer(client anthropic.Client, ai config.AnthropicConfig, breaker resilience.CircuitBreakerConfig) *Synthesizer {
	timeout := time.Duration(ai.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Synthesizer{
		client:  client,
		ai:      ai,
		timeout: timeout,
		breaker: resilience.NewCircuitBreaker(breaker),
	}
}

// SynthesizeTalkingPoint generates one opener from the given signal
// contexts, ranked most painful first by the caller.
func (s *Synthesizer) SynthesizeTalkingPoint(ctx context.Context, companyName string, signals []model.SignalContext) (string, error) {
	if len(signals) == 0 {
		return "", eris.New("talking: no qualifying signals")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Company: %s\n\nRecent pain signals, most acute first:\n", companyName)
	for i, sig := range signals {
		fmt.Fprintf(&b, "%d. [%s, pain %.2f] %s\n", i+1, sig.SignalType, sig.PainScore, sig.Summary)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	temp := 0.7
	resp, err := resilience.ExecuteVal(ctx, s.breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return s.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:       s.ai.SonnetModel,
			MaxTokens:   s.ai.MaxTokens,
			System:      []anthropic.SystemBlock{{Text: talkingSystemPrompt}},
			Temperature: &temp,
			Messages: []anthropic.Message{
				{Role: "user", Content: b.String()},
			},
		})
	})
	if err != nil {
		return "", eris.Wrap(err, "talking: create message")
	}
	resp.Usage.LogCost(s.ai.SonnetModel, "talking_point")

	text := strings.TrimSpace(extractText(resp))
	if text == "" {
		return "", eris.New("talking: empty response")
	}
	return text, nil
}

// QualifyingSignals selects up to limit signals with pain at or above
// minPain, ranked by pain score descending. Ties prefer the more recent
// signal so the opener leads with the freshest evidence; a remaining tie
// keeps input order. The first returned signal is the attachment target
// for the talking point.
func QualifyingSignals(signals []model.Signal, minPain float64, limit int) []model.Signal {
	var qualifying []model.Signal
	for _, sig := range signals {
		if sig.PainScore >= minPain {
			qualifying = append(qualifying, sig)
		}
	}

	sort.SliceStable(qualifying, func(i, j int) bool {
		if qualifying[i].PainScore != qualifying[j].PainScore {
			return qualifying[i].PainScore > qualifying[j].PainScore
		}
		return qualifying[i].CreatedAt.After(qualifying[j].CreatedAt)
	})

	if limit > 0 && len(qualifying) > limit {
		qualifying = qualifying[:limit]
	}
	return qualifying
}
