package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/ir-radar/internal/pipeline"
	"github.com/sells-group/ir-radar/internal/resilience"
	"github.com/sells-group/ir-radar/internal/store"
	anthropicpkg "github.com/sells-group/ir-radar/pkg/anthropic"
	"github.com/sells-group/ir-radar/pkg/gnews"
	"github.com/sells-group/ir-radar/pkg/quote"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "ir-radar.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// appEnv bundles the wired pipeline for commands that run it.
type appEnv struct {
	Store       store.Store
	Coordinator *pipeline.Coordinator
	Aggregator  *pipeline.Aggregator
	Refresher   *pipeline.FinancialsRefresher
	Scorer      *pipeline.Scorer
}

func (e *appEnv) Close() {
	_ = e.Store.Close()
}

// initApp builds the store and the full pipeline wiring.
func initApp(ctx context.Context) (*appEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	newsClient := gnews.NewClient(
		gnews.WithBaseURL(cfg.News.BaseURL),
		gnews.WithUserAgent(cfg.News.UserAgent),
		gnews.WithRateLimit(cfg.News.RequestsPerSecond),
		gnews.WithMaxArticles(cfg.News.MaxArticlesPerCompany),
		gnews.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.News.TimeoutSecs) * time.Second}),
	)
	quoteClient := quote.NewClient(
		quote.WithBaseURL(cfg.Quote.BaseURL),
		quote.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Quote.TimeoutSecs) * time.Second}),
	)
	aiClient := anthropicpkg.NewClient(cfg.Anthropic.Key)

	retryCfg := resilience.FromRetryConfig(
		cfg.Resilience.RetryMaxAttempts,
		cfg.Resilience.RetryInitialBackoffMs,
		cfg.Resilience.RetryMaxBackoffMs,
		cfg.Resilience.RetryMultiplier,
		cfg.Resilience.RetryJitterFraction,
	)
	breakerCfg := resilience.FromCircuitConfig(
		cfg.Resilience.BreakerFailureThreshold,
		cfg.Resilience.BreakerResetTimeoutSecs,
	)

	scorer := pipeline.NewScorer(cfg.Scoring)
	processor := pipeline.NewProcessor(
		st,
		pipeline.NewNewsSource(newsClient),
		pipeline.NewClassifier(aiClient, cfg.Anthropic, cfg.Pipeline.BatchSize),
		pipeline.NewOverride(cfg.Override.NeutralKeywords),
		pipeline.NewSynthesizer(aiClient, cfg.Anthropic, breakerCfg),
		cfg.Pipeline,
		cfg.Scoring.MinTalkingPain,
		retryCfg,
	)

	return &appEnv{
		Store:       st,
		Coordinator: pipeline.NewCoordinator(st, processor, cfg.Pipeline),
		Aggregator:  pipeline.NewAggregator(st),
		Refresher:   pipeline.NewFinancialsRefresher(st, quoteClient, scorer, time.Duration(cfg.Quote.StaleAfterHrs)*time.Hour),
		Scorer:      scorer,
	}, nil
}
