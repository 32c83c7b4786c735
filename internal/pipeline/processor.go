package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ir-radar/internal/config"
	"github.com/sells-group/ir-radar/internal/model"
	"github.com/sells-group/ir-radar/internal/resilience"
	"github.com/sells-group/ir-radar/internal/store"
)

// companyResult tallies one company's contribution to the run stats.
type companyResult struct {
	articlesFetched int
	articlesNew     int
	signalsCreated  int
}

// failedStage tags an error with the pipeline stage it came from, so a
// dead-letter entry records where the company run died.
type failedStage struct {
	stage string
	err   error
}

func (f *failedStage) Error() string { return f.err.Error() }
func (f *failedStage) Unwrap() error { return f.err }

func stageErr(stage string, err error) error {
	return &failedStage{stage: stage, err: err}
}

// Processor runs the sequential per-company pipeline: fetch, dedup,
// classify in chunks, override, persist, synthesize talking point. Any
// unrecovered failure is returned to the coordinator and recorded against
// this company only.
type Processor struct {
	store      store.Store
	source     Source
	classifier *Classifier
	override   *Override
	synth      *Synthesizer
	cfg        config.PipelineConfig
	minPain    float64
	retry      resilience.RetryConfig
}

// NewProcessor creates a Processor. The retry policy is applied to the
// article fetch only; classification failures degrade instead of retrying.
func NewProcessor(
	st store.Store,
	source Source,
	classifier *Classifier,
	override *Override,
	synth *Synthesizer,
	cfg config.PipelineConfig,
	minTalkingPain float64,
	retry resilience.RetryConfig,
) *Processor {
	return &Processor{
		store:      st,
		source:     source,
		classifier: classifier,
		override:   override,
		synth:      synth,
		cfg:        cfg,
		minPain:    minTalkingPain,
		retry:      retry,
	}
}

// Process handles one company end to end.
func (p *Processor) Process(ctx context.Context, company model.Company) (companyResult, error) {
	var res companyResult
	log := zap.L().With(zap.String("company", company.DisplayName()))

	// Fetch. Transient feed errors are retried before giving up on the
	// company for this run.
	fetched, err := resilience.DoVal(ctx, p.retry, func(ctx context.Context) ([]model.Article, error) {
		return p.source.FetchArticles(ctx, company)
	})
	if err != nil {
		return res, stageErr("fetch", eris.Wrap(err, "process: fetch articles"))
	}
	res.articlesFetched = len(fetched)
	if len(fetched) == 0 {
		log.Info("process: no articles fetched")
		return res, nil
	}

	// Dedup against stored URLs.
	known, err := p.store.ExistingURLs(ctx, company.ID)
	if err != nil {
		return res, stageErr("dedup", eris.Wrap(err, "process: existing urls"))
	}
	fresh := Dedup(fetched, known)
	if len(fresh) == 0 {
		log.Info("process: all articles already known", zap.Int("fetched", len(fetched)))
		return res, nil
	}

	// Persist articles. A URL conflict means another run got there first;
	// the store's constraint is authoritative and the article is skipped
	// without being re-classified.
	var inserted []model.Article
	for i := range fresh {
		ok, err := p.store.InsertArticle(ctx, &fresh[i])
		if err != nil {
			return res, stageErr("persist_articles", eris.Wrap(err, "process: insert article"))
		}
		if ok {
			inserted = append(inserted, fresh[i])
		}
	}
	res.articlesNew = len(inserted)
	if len(inserted) == 0 {
		return res, nil
	}

	// Classify in chunks, then apply the keyword override to both the
	// batch and fallback outputs before anything is persisted.
	contexts := make([]model.ArticleContext, len(inserted))
	for i, a := range inserted {
		contexts[i] = model.ArticleContext{
			Title:       a.Title,
			Source:      a.Source,
			CompanyName: company.Name,
		}
	}
	classifications := p.classifier.ClassifyAll(ctx, contexts)

	now := time.Now().UTC()
	signals := make([]model.Signal, len(inserted))
	for i, a := range inserted {
		c := p.override.Apply(a.Title, classifications[i])
		signals[i] = model.Signal{
			ID:             uuid.New().String(),
			ArticleID:      a.ID,
			CompanyID:      company.ID,
			Summary:        c.Summary,
			SignalType:     c.SignalType,
			RelevanceScore: c.RelevanceScore,
			PainScore:      c.PainScore,
			CreatedAt:      now,
		}
	}

	// Persist signals: batch first, individual fallback, and a signal
	// whose individual insert also fails is lost for this run only.
	persisted := p.persistSignals(ctx, signals)
	res.signalsCreated = len(persisted)
	if len(persisted) < len(signals) {
		log.Warn("process: some signals failed to persist",
			zap.Int("persisted", len(persisted)),
			zap.Int("total", len(signals)),
		)
	}

	p.attachTalkingPoint(ctx, log, company, persisted)

	log.Info("process: company complete",
		zap.Int("fetched", res.articlesFetched),
		zap.Int("new", res.articlesNew),
		zap.Int("signals", res.signalsCreated),
	)
	return res, nil
}

// persistSignals writes the batch with individual fallback and returns the
// signals that actually made it to the store.
func (p *Processor) persistSignals(ctx context.Context, signals []model.Signal) []model.Signal {
	outcomes := TryBatchThenFallback(ctx, signals,
		func(ctx context.Context, batch []model.Signal) ([]bool, error) {
			if err := p.store.PersistSignalsBatch(ctx, batch); err != nil {
				return nil, err
			}
			oks := make([]bool, len(batch))
			for i := range oks {
				oks[i] = true
			}
			return oks, nil
		},
		func(ctx context.Context, sig model.Signal) (bool, error) {
			if err := p.store.PersistSignal(ctx, sig); err != nil {
				return false, err
			}
			return true, nil
		},
		func(model.Signal) bool { return false },
	)

	var persisted []model.Signal
	for i, ok := range outcomes {
		if ok {
			persisted = append(persisted, signals[i])
		}
	}
	return persisted
}

// attachTalkingPoint makes the run's single synthesis call and attaches the
// opener to the company's highest-pain signal. Failure leaves the talking
// point unset; it is not retried within the run.
func (p *Processor) attachTalkingPoint(ctx context.Context, log *zap.Logger, company model.Company, persisted []model.Signal) {
	qualifying := QualifyingSignals(persisted, p.minPain, p.cfg.TalkingPointSignals)
	if len(qualifying) == 0 {
		return
	}

	contexts := make([]model.SignalContext, len(qualifying))
	for i, sig := range qualifying {
		contexts[i] = model.SignalContext{
			Summary:    sig.Summary,
			SignalType: sig.SignalType,
			PainScore:  sig.PainScore,
		}
	}

	point, err := p.synth.SynthesizeTalkingPoint(ctx, company.Name, contexts)
	if err != nil {
		log.Warn("process: talking point synthesis failed", zap.Error(err))
		return
	}
	if err := p.store.AttachTalkingPoint(ctx, qualifying[0].ID, point); err != nil {
		log.Warn("process: attach talking point failed", zap.Error(err))
	}
}
