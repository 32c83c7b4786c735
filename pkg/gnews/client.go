// Package gnews fetches company news from the Google News RSS search feed.
package gnews

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/time/rate"

	"github.com/sells-group/ir-radar/internal/resilience"
)

const (
	defaultBaseURL     = "https://news.google.com"
	defaultUserAgent   = "ir-radar/1.0"
	defaultMaxArticles = 10
)

// Article is a single RSS item from a news search.
type Article struct {
	Title       string
	URL         string
	Source      string
	PublishedAt *time.Time
}

// Client performs news searches against the Google News RSS feed.
type Client interface {
	Search(ctx context.Context, query string) ([]Article, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default feed base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithUserAgent overrides the default User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		c.userAgent = ua
	}
}

// WithRateLimit sets requests-per-second across all searches.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithMaxArticles caps the number of items returned per search.
func WithMaxArticles(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.maxArticles = n
		}
	}
}

type httpClient struct {
	baseURL     string
	userAgent   string
	maxArticles int
	limiter     *rate.Limiter
	http        *http.Client
}

// NewClient creates a Google News RSS client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:     defaultBaseURL,
		userAgent:   defaultUserAgent,
		maxArticles: defaultMaxArticles,
		limiter:     rate.NewLimiter(1, 1),
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// rss mirrors the subset of the RSS 2.0 schema the feed returns.
type rss struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	Source  string `xml:"source"`
	PubDate string `xml:"pubDate"`
}

func (c *httpClient) Search(ctx context.Context, query string) ([]Article, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "gnews: rate limit wait")
	}

	u := fmt.Sprintf("%s/rss/search?q=%s&hl=en-US&gl=US&ceid=US:en", c.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrap(err, "gnews: create request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "gnews: fetch feed")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("gnews: unexpected status %d", resp.StatusCode)
		// Rate limits and server-side hiccups are retryable upstream.
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	feed, err := decodeFeed(resp.Body)
	if err != nil {
		return nil, err
	}

	items := feed.Channel.Items
	if len(items) > c.maxArticles {
		items = items[:c.maxArticles]
	}

	articles := make([]Article, 0, len(items))
	for _, item := range items {
		articles = append(articles, Article{
			Title:       strings.TrimSpace(item.Title),
			URL:         strings.TrimSpace(item.Link),
			Source:      strings.TrimSpace(item.Source),
			PublishedAt: parsePubDate(item.PubDate),
		})
	}
	return articles, nil
}

func decodeFeed(r io.Reader) (*rss, error) {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "gnews: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}

	var feed rss
	if err := decoder.Decode(&feed); err != nil {
		return nil, eris.Wrap(err, "gnews: decode feed")
	}
	return &feed, nil
}

// pubDateFormats covers the date layouts seen in the wild on RSS feeds.
var pubDateFormats = []string{
	time.RFC1123,  // "Mon, 02 Jan 2006 15:04:05 MST"
	time.RFC1123Z, // "Mon, 02 Jan 2006 15:04:05 -0700"
	time.RFC822,
	time.RFC822Z,
}

func parsePubDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range pubDateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// BuildQuery constructs a quoted search query from a company name and
// optional ticker. The ticker narrows results when present.
func BuildQuery(name, ticker string) string {
	if ticker != "" {
		return fmt.Sprintf("%q OR %q", name, ticker)
	}
	return fmt.Sprintf("%q", name)
}

// TitleMentions reports whether a headline plausibly refers to the company.
// Cheap pre-filter to skip obviously unrelated search hits before they reach
// classification.
func TitleMentions(title, companyName, ticker string) bool {
	titleLower := strings.ToLower(title)
	nameParts := strings.Fields(strings.ToLower(companyName))
	if len(nameParts) > 0 && strings.Contains(titleLower, nameParts[0]) {
		return true
	}
	if ticker != "" && strings.Contains(strings.ToUpper(title), strings.ToUpper(ticker)) {
		return true
	}
	return false
}
