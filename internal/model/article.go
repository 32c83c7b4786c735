package model

import "time"

// Article is a single fetched news item. URLs are unique system-wide: an
// article is classified at most once and never re-classified, so dedup is by
// URL, not content.
type Article struct {
	ID          string     `json:"id"`
	CompanyID   string     `json:"company_id"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Source      string     `json:"source,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	FetchedAt   time.Time  `json:"fetched_at"`
}

// ArticleContext is the classification input for one article: just enough
// context for the model to judge relevance and IR pain.
type ArticleContext struct {
	Title       string `json:"title"`
	Source      string `json:"source"`
	CompanyName string `json:"company_name"`
}
