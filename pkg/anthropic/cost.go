package anthropic

import "go.uber.org/zap"

// TokenUsage tracks token consumption for a response.
type TokenUsage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

// modelPricing maps a model ID to {input, output} USD per million tokens.
// Cache writes bill at 1.25x input, cache reads at 0.1x.
var modelPricing = map[string][2]float64{
	"claude-haiku-4-5-20251001":  {0.80, 4.00},
	"claude-sonnet-4-5-20250929": {3.00, 15.00},
}

// EstimateCost returns the estimated USD cost of this usage on the given
// model, or 0 when the model is not in the pricing table.
func (u TokenUsage) EstimateCost(model string) float64 {
	pricing, ok := modelPricing[model]
	if !ok {
		return 0
	}
	in := (float64(u.InputTokens) / 1e6) * pricing[0]
	out := (float64(u.OutputTokens) / 1e6) * pricing[1]
	cacheWrite := (float64(u.CacheCreationInputTokens) / 1e6) * pricing[0] * 1.25
	cacheRead := (float64(u.CacheReadInputTokens) / 1e6) * pricing[0] * 0.1
	return in + out + cacheWrite + cacheRead
}

// LogCost emits a structured cost-attribution line for a pipeline stage.
func (u TokenUsage) LogCost(model, stage string) {
	zap.L().Info("cost attribution",
		zap.String("model", model),
		zap.String("stage", stage),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
		zap.Int64("cache_write_tokens", u.CacheCreationInputTokens),
		zap.Int64("cache_read_tokens", u.CacheReadInputTokens),
		zap.Float64("estimated_cost_usd", u.EstimateCost(model)),
	)
}
