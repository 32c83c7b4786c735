package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/ir-radar/internal/config"
	"github.com/sells-group/ir-radar/internal/model"
	"github.com/sells-group/ir-radar/internal/resilience"
	"github.com/sells-group/ir-radar/internal/store"
)

// Coordinator fans the per-company Processor out across a bounded worker
// pool. Each company is processed at most once per run and one company's
// failure never cancels another's.
type Coordinator struct {
	store     store.Store
	processor *Processor
	cfg       config.PipelineConfig
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(st store.Store, processor *Processor, cfg config.PipelineConfig) *Coordinator {
	return &Coordinator{store: st, processor: processor, cfg: cfg}
}

// Run executes the pipeline over the active watchlist, or over the given
// company IDs when scope is non-empty. The returned stats always reflect
// partial success; Run itself errors only when the watchlist cannot be
// loaded at all.
func (c *Coordinator) Run(ctx context.Context, scope []string) (*model.PipelineStats, error) {
	companies, err := c.resolveScope(ctx, scope)
	if err != nil {
		return nil, err
	}

	stats := &model.PipelineStats{
		Companies: len(companies),
		StartedAt: time.Now().UTC(),
	}
	if len(companies) == 0 {
		stats.FinishedAt = time.Now().UTC()
		return stats, nil
	}

	concurrency := c.cfg.MaxConcurrentCompanies
	if concurrency <= 0 {
		concurrency = 5
	}
	zap.L().Info("pipeline: run starting",
		zap.Int("companies", len(companies)),
		zap.Int("concurrency", concurrency),
	)

	var fetched, created, newArticles atomic.Int64
	var mu sync.Mutex
	var companyErrs []model.CompanyError

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, company := range companies {
		g.Go(func() error {
			res, err := c.processor.Process(gctx, company)
			fetched.Add(int64(res.articlesFetched))
			newArticles.Add(int64(res.articlesNew))
			created.Add(int64(res.signalsCreated))

			if err != nil {
				zap.L().Error("pipeline: company failed",
					zap.String("company", company.DisplayName()),
					zap.Error(err),
				)
				mu.Lock()
				companyErrs = append(companyErrs, model.CompanyError{
					CompanyID: company.ID,
					Name:      company.Name,
					Err:       err.Error(),
				})
				mu.Unlock()
				c.deadLetter(gctx, company, err)
			}
			return nil // a company failure never aborts siblings
		})
	}
	_ = g.Wait()

	stats.ArticlesFetched = int(fetched.Load())
	stats.ArticlesNew = int(newArticles.Load())
	stats.SignalsCreated = int(created.Load())
	stats.Errors = companyErrs
	stats.FinishedAt = time.Now().UTC()

	zap.L().Info("pipeline: run complete",
		zap.Int("companies", stats.Companies),
		zap.Int("articles_fetched", stats.ArticlesFetched),
		zap.Int("articles_new", stats.ArticlesNew),
		zap.Int("signals_created", stats.SignalsCreated),
		zap.Int("errors", len(stats.Errors)),
		zap.Duration("elapsed", stats.FinishedAt.Sub(stats.StartedAt)),
	)
	return stats, nil
}

// resolveScope loads the active watchlist, or the specific companies named
// by scope. Scoped IDs that do not resolve are skipped with a warning so a
// stale territory list cannot fail the whole run.
func (c *Coordinator) resolveScope(ctx context.Context, scope []string) ([]model.Company, error) {
	if len(scope) == 0 {
		companies, err := c.store.ListCompanies(ctx, true)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: list companies")
		}
		return companies, nil
	}

	seen := make(map[string]struct{}, len(scope))
	var companies []model.Company
	for _, id := range scope {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		company, err := c.store.GetCompany(ctx, id)
		if err != nil {
			zap.L().Warn("pipeline: scoped company not found, skipping",
				zap.String("company_id", id),
				zap.Error(err),
			)
			continue
		}
		companies = append(companies, *company)
	}
	return companies, nil
}

// deadLetter queues a failed company for later retry. Dead-lettering is
// best effort; a failure here only logs.
func (c *Coordinator) deadLetter(ctx context.Context, company model.Company, procErr error) {
	stage := ""
	var fs *failedStage
	if errors.As(procErr, &fs) {
		stage = fs.stage
	}

	entry := &resilience.DLQEntry{
		CompanyID:   company.ID,
		CompanyName: company.Name,
		Error:       procErr.Error(),
		ErrorType:   resilience.ClassifyError(procErr),
		FailedStage: stage,
		MaxRetries:  3,
		NextRetryAt: time.Now().UTC().Add(15 * time.Minute),
	}
	if err := c.store.EnqueueDLQ(ctx, entry); err != nil {
		zap.L().Warn("pipeline: dead letter enqueue failed",
			zap.String("company", company.DisplayName()),
			zap.Error(err),
		)
	}
}

// RetryDeadLetters re-runs companies whose previous run failed and whose
// retry window has opened. Successful retries are removed from the queue;
// failures get their retry count bumped with a doubled delay.
func (c *Coordinator) RetryDeadLetters(ctx context.Context, limit int) (int, error) {
	entries, err := c.store.DueDLQ(ctx, time.Now().UTC(), limit)
	if err != nil {
		return 0, eris.Wrap(err, "pipeline: list due dead letters")
	}

	retried := 0
	for _, entry := range entries {
		company, err := c.store.GetCompany(ctx, entry.CompanyID)
		if err != nil {
			// Company was deleted after the failure; drop the entry.
			if delErr := c.store.DeleteDLQ(ctx, entry.ID); delErr != nil {
				zap.L().Warn("pipeline: drop stale dead letter failed", zap.Error(delErr))
			}
			continue
		}

		if _, err := c.processor.Process(ctx, *company); err != nil {
			backoff := time.Duration(1<<uint(entry.RetryCount+1)) * 15 * time.Minute
			if bumpErr := c.store.BumpDLQRetry(ctx, entry.ID, time.Now().UTC().Add(backoff)); bumpErr != nil {
				zap.L().Warn("pipeline: bump dead letter retry failed", zap.Error(bumpErr))
			}
			continue
		}

		if err := c.store.DeleteDLQ(ctx, entry.ID); err != nil {
			zap.L().Warn("pipeline: delete dead letter failed", zap.Error(err))
		}
		retried++
	}
	return retried, nil
}
