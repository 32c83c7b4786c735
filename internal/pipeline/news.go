package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ir-radar/internal/model"
	"github.com/sells-group/ir-radar/pkg/gnews"
)

// Source fetches candidate articles for a company. An empty result is
// valid, not an error.
type Source interface {
	FetchArticles(ctx context.Context, company model.Company) ([]model.Article, error)
}

// NewsSource adapts the Google News RSS client to the pipeline's Source
// interface, pre-filtering hits whose headline never mentions the company.
type NewsSource struct {
	client gnews.Client
}

// NewNewsSource creates a NewsSource.
func NewNewsSource(client gnews.Client) *NewsSource {
	return &NewsSource{client: client}
}

func (s *NewsSource) FetchArticles(ctx context.Context, company model.Company) ([]model.Article, error) {
	query := gnews.BuildQuery(company.Name, company.Ticker)
	hits, err := s.client.Search(ctx, query)
	if err != nil {
		return nil, eris.Wrapf(err, "news: search %s", company.DisplayName())
	}

	now := time.Now().UTC()
	var articles []model.Article
	for _, hit := range hits {
		if hit.URL == "" || hit.Title == "" {
			continue
		}
		if !mentionsCompany(hit.Title, company) {
			zap.L().Debug("news: headline does not mention company, skipping",
				zap.String("company", company.Name),
				zap.String("title", hit.Title),
			)
			continue
		}
		articles = append(articles, model.Article{
			CompanyID:   company.ID,
			Title:       hit.Title,
			URL:         hit.URL,
			Source:      hit.Source,
			PublishedAt: hit.PublishedAt,
			FetchedAt:   now,
		})
	}
	return articles, nil
}

// mentionsCompany checks the headline against every alias plus the ticker.
func mentionsCompany(title string, company model.Company) bool {
	names := company.Aliases
	if len(names) == 0 {
		names = []string{company.Name}
	}
	for _, name := range names {
		if gnews.TitleMentions(title, name, company.Ticker) {
			return true
		}
	}
	return false
}
