package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ir-radar/internal/config"
	"github.com/sells-group/ir-radar/internal/model"
	"github.com/sells-group/ir-radar/internal/pipeline"
	"github.com/sells-group/ir-radar/internal/resilience"
	"github.com/sells-group/ir-radar/internal/store"
	"github.com/sells-group/ir-radar/pkg/anthropic"
	"github.com/sells-group/ir-radar/pkg/quote"
)

// stubSource serves canned articles per company ID.
type stubSource struct {
	articles map[string][]model.Article
}

func (s *stubSource) FetchArticles(_ context.Context, company model.Company) ([]model.Article, error) {
	return s.articles[company.ID], nil
}

// stubModelClient refuses every call, driving classification down the
// deterministic neutral fallback path.
type stubModelClient struct{}

func (stubModelClient) CreateMessage(context.Context, anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	return nil, eris.New("model offline")
}

func (stubModelClient) CreateBatch(context.Context, anthropic.BatchRequest) (*anthropic.BatchResponse, error) {
	return nil, eris.New("model offline")
}

func (stubModelClient) GetBatch(context.Context, string) (*anthropic.BatchResponse, error) {
	return nil, eris.New("model offline")
}

func (stubModelClient) GetBatchResults(context.Context, string) (anthropic.BatchResultIterator, error) {
	return nil, eris.New("model offline")
}

type stubQuoteClient struct{}

func (stubQuoteClient) History(context.Context, string, time.Time, time.Time) ([]quote.Bar, error) {
	return nil, nil
}

func (stubQuoteClient) Snapshot(_ context.Context, symbol string) (*quote.Snapshot, error) {
	week, month := -0.02, 0.01
	return &quote.Snapshot{Symbol: symbol, PriceChange7D: &week, PriceChange30D: &month}, nil
}

func newTestEnv(t *testing.T, source pipeline.Source) *appEnv {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	cfg = &config.Config{
		Anthropic: config.AnthropicConfig{
			HaikuModel:          "claude-haiku-4-5-20251001",
			SonnetModel:         "claude-sonnet-4-5-20250929",
			MaxTokens:           1024,
			SmallBatchThreshold: 3,
			TimeoutSecs:         5,
		},
		Pipeline:   config.PipelineConfig{MaxConcurrentCompanies: 2, BatchSize: 8, TalkingPointSignals: 3},
		Monitoring: config.MonitoringConfig{LookbackWindowHours: 24},
		Scoring:    config.ScoringConfig{HotMinPain: 0.7, HotMaxAgeHours: 48, WarmMinPain: 0.5, WarmMaxAgeHours: 168, SmallCapMaxUSD: 2e9, MidCapMaxUSD: 10e9, QuietPeriodDays: 14, EarningsWeekDays: 7, OpenWindowMaxDays: 45, EarningsBoostDays: 14, MinTalkingPain: 0.5},
	}

	if source == nil {
		source = &stubSource{}
	}
	client := stubModelClient{}
	scorer := pipeline.NewScorer(cfg.Scoring)
	processor := pipeline.NewProcessor(
		st,
		source,
		pipeline.NewClassifier(client, cfg.Anthropic, cfg.Pipeline.BatchSize),
		pipeline.NewOverride(nil),
		pipeline.NewSynthesizer(client, cfg.Anthropic, resilience.DefaultCircuitBreakerConfig()),
		cfg.Pipeline,
		cfg.Scoring.MinTalkingPain,
		resilience.RetryConfig{MaxAttempts: 1},
	)

	return &appEnv{
		Store:       st,
		Coordinator: pipeline.NewCoordinator(st, processor, cfg.Pipeline),
		Aggregator:  pipeline.NewAggregator(st),
		Refresher:   pipeline.NewFinancialsRefresher(st, stubQuoteClient{}, scorer, 24*time.Hour),
		Scorer:      scorer,
	}
}

func addAPICompany(t *testing.T, st store.Store, name, ticker string) *model.Company {
	t.Helper()
	company, err := st.AddCompany(context.Background(), model.Company{Name: name, Ticker: ticker, Active: true})
	require.NoError(t, err)
	return company
}

func addAPISignal(t *testing.T, st store.Store, companyID string, pain float64, summary string) {
	t.Helper()
	ctx := context.Background()

	article := model.Article{
		CompanyID: companyID,
		Title:     summary,
		URL:       fmt.Sprintf("https://example.com/%s/%d", companyID, time.Now().UnixNano()),
		FetchedAt: time.Now().UTC(),
	}
	created, err := st.InsertArticle(ctx, &article)
	require.NoError(t, err)
	require.True(t, created)

	sigType := model.SignalEarningsMiss
	if pain == 0 {
		sigType = model.SignalNeutral
	}
	err = st.PersistSignal(ctx, model.Signal{
		ArticleID:      article.ID,
		CompanyID:      companyID,
		Summary:        summary,
		SignalType:     sigType,
		RelevanceScore: 0.8,
		PainScore:      pain,
		CreatedAt:      time.Now().UTC(),
	})
	require.NoError(t, err)
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAPI_Health(t *testing.T) {
	router := newRouter(newTestEnv(t, nil))

	rec := doJSON(t, router, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestAPI_RunPipelineDegradesToNeutral(t *testing.T) {
	source := &stubSource{articles: map[string][]model.Article{}}
	env := newTestEnv(t, source)
	company := addAPICompany(t, env.Store, "Acme Corp", "ACME")
	source.articles[company.ID] = []model.Article{{
		CompanyID: company.ID,
		Title:     "Acme Corp misses earnings",
		URL:       "https://example.com/acme/miss",
		FetchedAt: time.Now().UTC(),
	}}
	router := newRouter(env)

	rec := doJSON(t, router, http.MethodPost, "/api/pipeline/run", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var stats model.PipelineStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Companies)
	assert.Equal(t, 1, stats.ArticlesNew)
	assert.Equal(t, 1, stats.SignalsCreated)
	assert.Empty(t, stats.Errors)

	rec = doJSON(t, router, http.MethodGet, "/api/signals", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var signals []model.Signal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &signals))
	require.Len(t, signals, 1)
	assert.Equal(t, model.SignalNeutral, signals[0].SignalType)
	assert.Zero(t, signals[0].PainScore)
}

func TestAPI_RunPipelineScoped(t *testing.T) {
	env := newTestEnv(t, &stubSource{})
	company := addAPICompany(t, env.Store, "Acme Corp", "ACME")
	addAPICompany(t, env.Store, "Beta Inc", "BETA")
	router := newRouter(env)

	rec := doJSON(t, router, http.MethodPost, "/api/pipeline/run",
		map[string][]string{"company_ids": {company.ID}})

	require.Equal(t, http.StatusOK, rec.Code)
	var stats model.PipelineStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Companies)
}

func TestAPI_SummaryRanksByPain(t *testing.T) {
	env := newTestEnv(t, nil)
	calm := addAPICompany(t, env.Store, "Calm Co", "CALM")
	hurting := addAPICompany(t, env.Store, "Hurting Inc", "HURT")
	addAPISignal(t, env.Store, calm.ID, 0.3, "minor analyst note")
	addAPISignal(t, env.Store, hurting.ID, 0.9, "guidance withdrawn")
	router := newRouter(env)

	rec := doJSON(t, router, http.MethodGet, "/api/summary?days=7", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var rows []summaryRow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "Hurting Inc", rows[0].Name)
	assert.InDelta(t, 0.9, rows[0].MaxPainScore, 1e-9)
	assert.Equal(t, model.UrgencyHot, rows[0].Urgency)
	assert.Equal(t, model.CapTierUnknown, rows[0].CapTier)
}

func TestAPI_SummaryEmptyIsArray(t *testing.T) {
	router := newRouter(newTestEnv(t, nil))

	rec := doJSON(t, router, http.MethodGet, "/api/summary", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", string(bytes.TrimSpace(rec.Body.Bytes())))
}

func TestAPI_HotSignals(t *testing.T) {
	env := newTestEnv(t, nil)
	company := addAPICompany(t, env.Store, "Acme Corp", "ACME")
	addAPISignal(t, env.Store, company.ID, 0.4, "mild")
	addAPISignal(t, env.Store, company.ID, 0.9, "severe")
	router := newRouter(env)

	rec := doJSON(t, router, http.MethodGet, "/api/hot?limit=1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var signals []model.Signal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &signals))
	require.Len(t, signals, 1)
	assert.Equal(t, "severe", signals[0].Summary)
}

func TestAPI_SignalsRejectsUnknownType(t *testing.T) {
	router := newRouter(newTestEnv(t, nil))

	rec := doJSON(t, router, http.MethodGet, "/api/signals?type=nonsense", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_CompanyLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	router := newRouter(env)

	rec := doJSON(t, router, http.MethodPost, "/api/companies",
		map[string]any{"name": "Acme Corp", "ticker": "ACME", "aliases": []string{"Acme"}})
	require.Equal(t, http.StatusCreated, rec.Code)
	var company model.Company
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &company))
	assert.NotEmpty(t, company.ID)
	assert.True(t, company.Active)

	rec = doJSON(t, router, http.MethodGet, "/api/companies", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var companies []model.Company
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &companies))
	assert.Len(t, companies, 1)

	rec = doJSON(t, router, http.MethodPost, "/api/companies/"+company.ID+"/active",
		map[string]bool{"active": false})
	require.Equal(t, http.StatusOK, rec.Code)

	// Active-only listing no longer shows it.
	rec = doJSON(t, router, http.MethodGet, "/api/companies", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &companies))
	assert.Empty(t, companies)
	rec = doJSON(t, router, http.MethodGet, "/api/companies?all=1", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &companies))
	assert.Len(t, companies, 1)

	rec = doJSON(t, router, http.MethodDelete, "/api/companies/"+company.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, router, http.MethodDelete, "/api/companies/"+company.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_AddCompanyRequiresName(t *testing.T) {
	router := newRouter(newTestEnv(t, nil))

	rec := doJSON(t, router, http.MethodPost, "/api/companies", map[string]string{"ticker": "ACME"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_OutreachFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	company := addAPICompany(t, env.Store, "Acme Corp", "ACME")
	router := newRouter(env)

	rec := doJSON(t, router, http.MethodPost, "/api/outreach",
		map[string]string{"company_id": company.ID, "action_type": "contacted"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var action model.OutreachAction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &action))
	assert.Equal(t, model.OutreachContacted, action.ActionType)

	rec = doJSON(t, router, http.MethodGet, "/api/outreach/"+company.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var actions []model.OutreachAction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &actions))
	assert.Len(t, actions, 1)

	rec = doJSON(t, router, http.MethodGet, "/api/outreach/hidden", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var hidden map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hidden))
	assert.Equal(t, []string{company.ID}, hidden["hidden"])
}

func TestAPI_OutreachValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	company := addAPICompany(t, env.Store, "Acme Corp", "ACME")
	router := newRouter(env)

	rec := doJSON(t, router, http.MethodPost, "/api/outreach",
		map[string]string{"company_id": company.ID, "action_type": "shouted"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/outreach",
		map[string]string{"company_id": company.ID, "action_type": "note"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/outreach",
		map[string]string{"company_id": "no-such-id", "action_type": "contacted"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_RefreshFinancials(t *testing.T) {
	env := newTestEnv(t, nil)
	addAPICompany(t, env.Store, "Acme Corp", "ACME")
	router := newRouter(env)

	rec := doJSON(t, router, http.MethodPost, "/api/pipeline/financials", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body["refreshed"])
}

func TestAPI_ClearSignals(t *testing.T) {
	env := newTestEnv(t, nil)
	company := addAPICompany(t, env.Store, "Acme Corp", "ACME")
	addAPISignal(t, env.Store, company.ID, 0.6, "bad quarter")
	router := newRouter(env)

	rec := doJSON(t, router, http.MethodDelete, "/api/pipeline/signals", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(1), body["signals_deleted"])
	assert.Equal(t, int64(1), body["articles_deleted"])

	signals, err := env.Store.ListSignals(context.Background(), store.SignalFilter{})
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestAPI_Status(t *testing.T) {
	env := newTestEnv(t, nil)
	company := addAPICompany(t, env.Store, "Acme Corp", "ACME")
	addAPISignal(t, env.Store, company.ID, 0, "nothing happened")
	router := newRouter(env)

	rec := doJSON(t, router, http.MethodGet, "/api/status", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var snap map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.EqualValues(t, 1, snap["active_companies"])
	assert.EqualValues(t, 1, snap["signals_total"])
}

func TestAPI_RetryDeadLettersEmpty(t *testing.T) {
	router := newRouter(newTestEnv(t, nil))

	rec := doJSON(t, router, http.MethodPost, "/api/pipeline/retry", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Zero(t, body["retried"])
}
