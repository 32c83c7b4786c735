package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ir-radar/internal/config"
	"github.com/sells-group/ir-radar/internal/model"
	"github.com/sells-group/ir-radar/internal/resilience"
	"github.com/sells-group/ir-radar/pkg/anthropic"
	"github.com/sells-group/ir-radar/pkg/gnews"
	"github.com/sells-group/ir-radar/pkg/quote"
)

// --- Anthropic mock ---

type mockModelClient struct {
	mock.Mock
}

func (m *mockModelClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func (m *mockModelClient) CreateBatch(ctx context.Context, req anthropic.BatchRequest) (*anthropic.BatchResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.BatchResponse), args.Error(1)
}

func (m *mockModelClient) GetBatch(ctx context.Context, batchID string) (*anthropic.BatchResponse, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.BatchResponse), args.Error(1)
}

func (m *mockModelClient) GetBatchResults(ctx context.Context, batchID string) (anthropic.BatchResultIterator, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(anthropic.BatchResultIterator), args.Error(1)
}

// mockBatchIterator replays a fixed list of batch result items.
type mockBatchIterator struct {
	items []anthropic.BatchResultItem
	pos   int
	err   error
}

func (it *mockBatchIterator) Next() bool {
	if it.pos >= len(it.items) {
		return false
	}
	it.pos++
	return true
}

func (it *mockBatchIterator) Item() anthropic.BatchResultItem { return it.items[it.pos-1] }
func (it *mockBatchIterator) Err() error                      { return it.err }
func (it *mockBatchIterator) Close() error                    { return nil }

// textResponse wraps text in a MessageResponse the way the API returns it.
func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		ID:         "msg-test",
		Content:    []anthropic.ContentBlock{{Type: "text", Text: text}},
		StopReason: "end_turn",
	}
}

// classificationJSON renders a valid index-tagged response for n articles,
// with overrides applied by index.
func classificationJSON(t *testing.T, n int, overrides map[int]classificationEntry) string {
	t.Helper()
	entries := make([]classificationEntry, n)
	for i := range entries {
		entries[i] = classificationEntry{
			Index:          i,
			Summary:        fmt.Sprintf("routine coverage %d", i),
			SignalType:     "neutral",
			RelevanceScore: 0.6,
			PainScore:      0.0,
		}
		if o, ok := overrides[i]; ok {
			o.Index = i
			entries[i] = o
		}
	}
	data, err := json.Marshal(entries)
	require.NoError(t, err)
	return string(data)
}

// --- News source mock ---

type mockSource struct {
	mock.Mock
}

func (m *mockSource) FetchArticles(ctx context.Context, company model.Company) ([]model.Article, error) {
	args := m.Called(ctx, company)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Article), args.Error(1)
}

// --- gnews mock ---

type mockGNews struct {
	mock.Mock
}

func (m *mockGNews) Search(ctx context.Context, query string) ([]gnews.Article, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]gnews.Article), args.Error(1)
}

// --- quote mock ---

type mockQuotes struct {
	mock.Mock
}

func (m *mockQuotes) History(ctx context.Context, symbol string, from, to time.Time) ([]quote.Bar, error) {
	args := m.Called(ctx, symbol, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]quote.Bar), args.Error(1)
}

func (m *mockQuotes) Snapshot(ctx context.Context, symbol string) (*quote.Snapshot, error) {
	args := m.Called(ctx, symbol)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*quote.Snapshot), args.Error(1)
}

// --- shared config helpers ---

func testAIConfig() config.AnthropicConfig {
	return config.AnthropicConfig{
		HaikuModel:          "claude-haiku-4-5-20251001",
		SonnetModel:         "claude-sonnet-4-5-20250929",
		MaxTokens:           1024,
		SmallBatchThreshold: 3,
		TimeoutSecs:         5,
	}
}

// testRetryConfig keeps retry backoff at a millisecond so tests that
// exercise the retry path do not sleep.
func testRetryConfig() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		JitterFraction: 0,
	}
}

func testScoringConfig() config.ScoringConfig {
	return config.ScoringConfig{
		HotMinPain:        0.7,
		HotMaxAgeHours:    48,
		WarmMinPain:       0.5,
		WarmMaxAgeHours:   168,
		SmallCapMaxUSD:    2e9,
		MidCapMaxUSD:      10e9,
		QuietPeriodDays:   14,
		EarningsWeekDays:  7,
		OpenWindowMaxDays: 45,
		EarningsBoostDays: 14,
		MinTalkingPain:    0.5,
	}
}
