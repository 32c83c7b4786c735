package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ir-radar/internal/config"
	"github.com/sells-group/ir-radar/internal/model"
	"github.com/sells-group/ir-radar/pkg/anthropic"
)

const classifySystemPrompt = `You score news headlines for "IR pain": how likely a public company's investor-relations team is under pressure that makes them receptive to vendor outreach.

For each numbered article you receive, produce one JSON entry with:
- "index": the article's number, echoed back exactly
- "summary": 1-2 sentence summary of the news event
- "signal_type": exactly one of activist_risk, analyst_negative, earnings_miss, leadership_change, governance_issue, esg_negative, stock_pressure, capital_stress, peer_pressure, neutral
- "relevance_score": 0.0-1.0, how confident the article is actually about the named company and not a different company or topic (independent of pain)
- "pain_score": 0.0-1.0 per this rubric:
  0.8-1.0 acute distress: activist filing, major downgrade, forced executive departure
  0.5-0.7 moderate pressure: earnings miss, analyst concern
  0.2-0.4 minor negative
  0.0-0.2 routine or positive news; use signal_type "neutral" with pain_score 0.0 when there is no IR pain

Respond with ONLY a JSON array containing exactly one entry per input article, in input order. No prose, no markdown fences.`

const classifyBatchItemPrompt = `Article %d
Company: %s
Title: %s
Source: %s`

// Classifier scores articles for IR pain using the model, batching up to
// batchSize articles per call with per-article fallback. Configuration is
// injected once at construction and never mutated.
type Classifier struct {
	client    anthropic.Client
	ai        config.AnthropicConfig
	batchSize int
	timeout   time.Duration
}

// NewClassifier creates a Classifier.
func NewClassifier(client anthropic.Client, ai config.AnthropicConfig, batchSize int) *Classifier {
	if batchSize <= 0 {
		batchSize = 8
	}
	timeout := time.Duration(ai.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Classifier{client: client, ai: ai, batchSize: batchSize, timeout: timeout}
}

// buildChunkPrompt renders one user message covering a chunk of articles.
func buildChunkPrompt(articles []model.ArticleContext) string {
	var b strings.Builder
	for i, a := range articles {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, classifyBatchItemPrompt, i, a.CompanyName, a.Title, a.Source)
	}
	return b.String()
}

func (c *Classifier) chunkRequest(articles []model.ArticleContext) anthropic.MessageRequest {
	temp := 0.1
	return anthropic.MessageRequest{
		Model:       c.ai.HaikuModel,
		MaxTokens:   c.ai.MaxTokens,
		System:      anthropic.BuildCachedSystemBlocks(classifySystemPrompt),
		Temperature: &temp,
		Messages: []anthropic.Message{
			{Role: "user", Content: buildChunkPrompt(articles)},
		},
	}
}

// ClassifyBatch classifies up to batchSize articles in one model call and
// returns exactly one classification per input, in input order. Errors on
// transport failure or a malformed/mismatched response; the caller falls
// back per article.
func (c *Classifier) ClassifyBatch(ctx context.Context, articles []model.ArticleContext) ([]model.Classification, error) {
	if len(articles) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateMessage(ctx, c.chunkRequest(articles))
	if err != nil {
		return nil, eris.Wrap(err, "classify: batch message")
	}
	resp.Usage.LogCost(c.ai.HaikuModel, "classify")

	return parseClassifications(extractText(resp), len(articles))
}

// ClassifyOne classifies a single article. Used on the fallback path when
// a batch response could not be used.
func (c *Classifier) ClassifyOne(ctx context.Context, article model.ArticleContext) (model.Classification, error) {
	results, err := c.ClassifyBatch(ctx, []model.ArticleContext{article})
	if err != nil {
		return model.Classification{}, err
	}
	return results[0], nil
}

// neutralFor is the terminal degradation for an article whose batch and
// individual classifications both failed.
func neutralFor(article model.ArticleContext) model.Classification {
	return model.NeutralClassification("Could not classify: " + article.Title)
}

// classifyChunk resolves one chunk with the batch-then-fallback contract:
// one result per article, degraded articles neutral, never an error.
func (c *Classifier) classifyChunk(ctx context.Context, chunk []model.ArticleContext) []model.Classification {
	return TryBatchThenFallback(ctx, chunk, c.ClassifyBatch, c.ClassifyOne, neutralFor)
}

// ClassifyAll classifies any number of articles, chunking into batchSize
// groups. Small runs issue direct messages per chunk; large runs submit all
// chunks through the Message Batches API in one round trip, with any failed
// chunk retried on the direct path. Always returns exactly one
// classification per article.
func (c *Classifier) ClassifyAll(ctx context.Context, articles []model.ArticleContext) []model.Classification {
	if len(articles) == 0 {
		return nil
	}

	var chunks [][]model.ArticleContext
	for start := 0; start < len(articles); start += c.batchSize {
		end := min(start+c.batchSize, len(articles))
		chunks = append(chunks, articles[start:end])
	}

	threshold := c.ai.SmallBatchThreshold
	if threshold <= 0 {
		threshold = 3
	}

	if c.ai.NoBatch || len(chunks) <= threshold {
		out := make([]model.Classification, 0, len(articles))
		for _, chunk := range chunks {
			out = append(out, c.classifyChunk(ctx, chunk)...)
		}
		return out
	}
	return c.classifyViaBatchAPI(ctx, chunks)
}

// classifyViaBatchAPI submits one Message Batches request item per chunk and
// polls for completion. Chunks whose batch item failed, or whose response
// did not parse, are re-resolved on the direct path so no article is lost.
func (c *Classifier) classifyViaBatchAPI(ctx context.Context, chunks [][]model.ArticleContext) []model.Classification {
	items := make([]anthropic.BatchRequestItem, len(chunks))
	for i, chunk := range chunks {
		items[i] = anthropic.BatchRequestItem{
			CustomID: fmt.Sprintf("chunk-%d", i),
			Params:   c.chunkRequest(chunk),
		}
	}

	results := c.submitAndCollect(ctx, items)

	var out []model.Classification
	for i, chunk := range chunks {
		resp, ok := results[fmt.Sprintf("chunk-%d", i)]
		if ok && resp != nil {
			if parsed, err := parseClassifications(extractText(resp), len(chunk)); err == nil {
				out = append(out, parsed...)
				continue
			}
			zap.L().Warn("classify: batch chunk response unparseable, retrying direct",
				zap.Int("chunk", i),
			)
		}
		out = append(out, c.classifyChunk(ctx, chunk)...)
	}
	return out
}

// submitAndCollect runs one full batch lifecycle and returns the succeeded
// responses keyed by custom ID. Any failure returns an empty map; callers
// treat missing IDs as chunks to retry directly.
func (c *Classifier) submitAndCollect(ctx context.Context, items []anthropic.BatchRequestItem) map[string]*anthropic.MessageResponse {
	batch, err := c.client.CreateBatch(ctx, anthropic.BatchRequest{Requests: items})
	if err != nil {
		zap.L().Warn("classify: create batch failed, falling back to direct", zap.Error(err))
		return nil
	}

	batch, err = anthropic.PollBatch(ctx, c.client, batch.ID)
	if err != nil {
		zap.L().Warn("classify: poll batch failed, falling back to direct",
			zap.String("batch_id", batch.ID),
			zap.Error(err),
		)
		return nil
	}

	iter, err := c.client.GetBatchResults(ctx, batch.ID)
	if err != nil {
		zap.L().Warn("classify: get batch results failed, falling back to direct",
			zap.String("batch_id", batch.ID),
			zap.Error(err),
		)
		return nil
	}

	results, err := anthropic.CollectBatchResults(iter)
	if err != nil {
		zap.L().Warn("classify: collect batch results failed, falling back to direct",
			zap.String("batch_id", batch.ID),
			zap.Error(err),
		)
		return nil
	}
	return results
}

// classificationEntry is the loosely-typed wire shape of one model output
// entry. It is validated and normalized before use, never trusted by shape.
type classificationEntry struct {
	Index          int     `json:"index"`
	Summary        string  `json:"summary"`
	SignalType     string  `json:"signal_type"`
	RelevanceScore float64 `json:"relevance_score"`
	PainScore      float64 `json:"pain_score"`
}

// parseClassifications parses an index-tagged JSON array of exactly want
// entries. Any shape problem (not an array, wrong count, out-of-range or
// duplicate index) is an error; the caller falls back per article.
func parseClassifications(text string, want int) ([]model.Classification, error) {
	text = cleanJSONArray(text)

	var entries []classificationEntry
	if err := json.Unmarshal([]byte(text), &entries); err != nil {
		return nil, eris.Wrap(err, "classify: unmarshal response")
	}
	if len(entries) != want {
		return nil, eris.Errorf("classify: got %d entries, want %d", len(entries), want)
	}

	out := make([]model.Classification, want)
	seen := make(map[int]bool, want)
	for _, e := range entries {
		if e.Index < 0 || e.Index >= want {
			return nil, eris.Errorf("classify: entry index %d out of range", e.Index)
		}
		if seen[e.Index] {
			return nil, eris.Errorf("classify: duplicate entry index %d", e.Index)
		}
		seen[e.Index] = true

		c := model.Classification{
			Summary:        e.Summary,
			SignalType:     model.SignalType(strings.ToLower(strings.TrimSpace(e.SignalType))),
			RelevanceScore: e.RelevanceScore,
			PainScore:      e.PainScore,
		}
		out[e.Index] = c.Normalize()
	}
	return out, nil
}

// extractText concatenates all text content blocks from a message response.
func extractText(resp *anthropic.MessageResponse) string {
	if resp == nil {
		return ""
	}
	var parts []string
	for _, block := range resp.Content {
		if block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// cleanJSONArray attempts to extract a JSON array from text that may contain
// markdown code fences or other wrapping.
func cleanJSONArray(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
