package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ir-radar/internal/model"
	"github.com/sells-group/ir-radar/pkg/gnews"
)

func TestNewsSource_FetchArticles(t *testing.T) {
	client := new(mockGNews)
	src := NewNewsSource(client)

	company := model.Company{
		ID:     "co-1",
		Name:   "Acme Corporation",
		Ticker: "ACME",
	}

	published := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	client.On("Search", mock.Anything, `"Acme Corporation" OR "ACME"`).Return([]gnews.Article{
		{Title: "Acme misses Q2 earnings", URL: "https://example.com/1", Source: "Wire", PublishedAt: &published},
		{Title: "ACME stock slides on downgrade", URL: "https://example.com/2", Source: "Wire"},
		{Title: "Unrelated market roundup", URL: "https://example.com/3", Source: "Wire"},
		{Title: "", URL: "https://example.com/4"},
		{Title: "Acme CFO departs", URL: ""},
	}, nil)

	articles, err := src.FetchArticles(context.Background(), company)

	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, "co-1", articles[0].CompanyID)
	assert.Equal(t, "https://example.com/1", articles[0].URL)
	assert.Equal(t, &published, articles[0].PublishedAt)
	assert.False(t, articles[0].FetchedAt.IsZero())
	assert.Equal(t, "ACME stock slides on downgrade", articles[1].Title)
	client.AssertExpectations(t)
}

func TestNewsSource_ChecksAllAliases(t *testing.T) {
	client := new(mockGNews)
	src := NewNewsSource(client)

	company := model.Company{
		ID:      "co-2",
		Name:    "Consolidated Widget Holdings",
		Aliases: []string{"Consolidated Widget Holdings", "ConWidget"},
	}

	client.On("Search", mock.Anything, mock.Anything).Return([]gnews.Article{
		{Title: "ConWidget announces layoffs", URL: "https://example.com/a"},
		{Title: "Widget prices fall industry-wide", URL: "https://example.com/b"},
	}, nil)

	articles, err := src.FetchArticles(context.Background(), company)

	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "ConWidget announces layoffs", articles[0].Title)
}

func TestNewsSource_SearchError(t *testing.T) {
	client := new(mockGNews)
	client.On("Search", mock.Anything, mock.Anything).Return(nil, assert.AnError)
	src := NewNewsSource(client)

	_, err := src.FetchArticles(context.Background(), model.Company{Name: "Acme"})
	require.Error(t, err)
}

func TestNewsSource_EmptyFeedIsNotAnError(t *testing.T) {
	client := new(mockGNews)
	client.On("Search", mock.Anything, mock.Anything).Return([]gnews.Article{}, nil)
	src := NewNewsSource(client)

	articles, err := src.FetchArticles(context.Background(), model.Company{Name: "Acme"})

	require.NoError(t, err)
	assert.Empty(t, articles)
}
