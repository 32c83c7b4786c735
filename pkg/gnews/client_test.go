package gnews

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ir-radar/internal/resilience"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>"Acme Corp" OR "ACME" - Google News</title>
<item>
<title>Acme Corp faces activist pressure from Starboard</title>
<link>https://example.com/acme-activist</link>
<source url="https://example.com">Example Wire</source>
<pubDate>Mon, 24 Aug 2026 12:30:00 GMT</pubDate>
</item>
<item>
<title>ACME shares slide after downgrade</title>
<link>https://example.com/acme-downgrade</link>
<source url="https://news.example.com">News Example</source>
<pubDate>Sun, 23 Aug 2026 09:00:00 GMT</pubDate>
</item>
<item>
<title>Markets mixed at open</title>
<link>https://example.com/markets</link>
<source url="https://example.com">Example Wire</source>
<pubDate>not a date</pubDate>
</item>
</channel>
</rss>`

func newTestServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/rss/search", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("q"))
		assert.Equal(t, "ir-radar/1.0", r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/rss+xml")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSearch(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, sampleFeed)
	client := NewClient(WithBaseURL(srv.URL))

	articles, err := client.Search(context.Background(), BuildQuery("Acme Corp", "ACME"))
	require.NoError(t, err)
	require.Len(t, articles, 3)

	assert.Equal(t, "Acme Corp faces activist pressure from Starboard", articles[0].Title)
	assert.Equal(t, "https://example.com/acme-activist", articles[0].URL)
	assert.Equal(t, "Example Wire", articles[0].Source)
	require.NotNil(t, articles[0].PublishedAt)
	assert.Equal(t, time.Date(2026, 8, 24, 12, 30, 0, 0, time.UTC), articles[0].PublishedAt.UTC())

	// Unparseable dates come back nil rather than failing the fetch.
	assert.Nil(t, articles[2].PublishedAt)
}

func TestSearch_MaxArticlesCap(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, sampleFeed)
	client := NewClient(WithBaseURL(srv.URL), WithMaxArticles(2))

	articles, err := client.Search(context.Background(), "acme")
	require.NoError(t, err)
	assert.Len(t, articles, 2)
}

func TestSearch_HTTPError(t *testing.T) {
	srv := newTestServer(t, http.StatusServiceUnavailable, "upstream down")
	client := NewClient(WithBaseURL(srv.URL))

	_, err := client.Search(context.Background(), "acme")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 503")
}

func TestSearch_ServerErrorIsRetryable(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusBadGateway} {
		srv := newTestServer(t, status, "upstream down")
		client := NewClient(WithBaseURL(srv.URL))

		_, err := client.Search(context.Background(), "acme")
		require.Error(t, err)
		assert.True(t, resilience.IsTransient(err), "status %d should be retryable", status)
	}
}

func TestSearch_ClientErrorIsPermanent(t *testing.T) {
	srv := newTestServer(t, http.StatusNotFound, "gone")
	client := NewClient(WithBaseURL(srv.URL))

	_, err := client.Search(context.Background(), "acme")
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}

func TestSearch_MalformedFeed(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, "<rss><channel><item></rss>")
	client := NewClient(WithBaseURL(srv.URL))

	_, err := client.Search(context.Background(), "acme")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode feed")
}

func TestSearch_NonUTF8Charset(t *testing.T) {
	// \xe9 is "é" in Latin-1 and invalid UTF-8 on its own.
	feed := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>" +
		"<rss version=\"2.0\"><channel>" +
		"<item><title>Acme caf\xe9 deal</title><link>https://example.com/1</link></item>" +
		"</channel></rss>"
	srv := newTestServer(t, http.StatusOK, feed)
	client := NewClient(WithBaseURL(srv.URL))

	articles, err := client.Search(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "Acme café deal", articles[0].Title)
}

func TestBuildQuery(t *testing.T) {
	assert.Equal(t, `"Acme Corp" OR "ACME"`, BuildQuery("Acme Corp", "ACME"))
	assert.Equal(t, `"Acme Corp"`, BuildQuery("Acme Corp", ""))
}

func TestTitleMentions(t *testing.T) {
	tests := []struct {
		name   string
		title  string
		co     string
		ticker string
		want   bool
	}{
		{"first word of name", "Apple unveils new chip", "Apple Inc", "AAPL", true},
		{"ticker uppercase", "AAPL hits record high", "Apple Inc", "AAPL", true},
		{"ticker case-insensitive", "aapl drifts lower", "Apple Inc", "AAPL", true},
		{"no mention", "Markets mixed at open", "Apple Inc", "AAPL", false},
		{"no ticker provided", "Apple event next week", "Apple Inc", "", true},
		{"name case-insensitive", "APPLE supplier warns", "Apple Inc", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TitleMentions(tt.title, tt.co, tt.ticker))
		})
	}
}
