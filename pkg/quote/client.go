// Package quote fetches daily price history from the Stooq CSV endpoint.
package quote

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/ir-radar/internal/resilience"
)

const defaultBaseURL = "https://stooq.com"

// Bar is a single daily OHLC record.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Snapshot summarizes recent price action for a symbol.
type Snapshot struct {
	Symbol         string
	LastClose      float64
	PriceChange7D  *float64 // fractional, e.g. -0.12 for -12%
	PriceChange30D *float64
	AsOf           time.Time
}

// Client fetches market data.
type Client interface {
	History(ctx context.Context, symbol string, from, to time.Time) ([]Bar, error)
	Snapshot(ctx context.Context, symbol string) (*Snapshot, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default endpoint base URL.
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

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Stooq market data client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
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

// normalizeSymbol lowercases a ticker and appends the .us suffix Stooq
// expects for US listings when no market suffix is present.
func normalizeSymbol(symbol string) string {
	s := strings.ToLower(strings.TrimSpace(symbol))
	if !strings.Contains(s, ".") {
		s += ".us"
	}
	return s
}

func (c *httpClient) History(ctx context.Context, symbol string, from, to time.Time) ([]Bar, error) {
	u := fmt.Sprintf("%s/q/d/l/?s=%s&d1=%s&d2=%s&i=d",
		c.baseURL, normalizeSymbol(symbol), from.Format("20060102"), to.Format("20060102"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrap(err, "quote: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "quote: fetch history %s", symbol)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("quote: unexpected status %d for %s", resp.StatusCode, symbol)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	bars, err := parseHistoryCSV(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "quote: parse history %s", symbol)
	}
	return bars, nil
}

// parseHistoryCSV reads the Stooq daily CSV format:
// Date,Open,High,Low,Close,Volume with ISO dates, oldest row first.
func parseHistoryCSV(r io.Reader) ([]Bar, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var bars []Bar
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "read csv")
		}
		if first {
			first = false
			if len(record) > 0 && strings.EqualFold(record[0], "Date") {
				continue
			}
		}
		if len(record) < 5 {
			continue
		}

		date, err := time.Parse("2006-01-02", record[0])
		if err != nil {
			continue
		}
		bar := Bar{Date: date}
		if bar.Open, err = strconv.ParseFloat(record[1], 64); err != nil {
			continue
		}
		if bar.High, err = strconv.ParseFloat(record[2], 64); err != nil {
			continue
		}
		if bar.Low, err = strconv.ParseFloat(record[3], 64); err != nil {
			continue
		}
		if bar.Close, err = strconv.ParseFloat(record[4], 64); err != nil {
			continue
		}
		if len(record) > 5 {
			bar.Volume, _ = strconv.ParseFloat(record[5], 64)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// Snapshot fetches ~45 days of history and derives fractional 7-day and
// 30-day price changes against the most recent close. A change is nil when
// the history does not reach back far enough.
func (c *httpClient) Snapshot(ctx context.Context, symbol string) (*Snapshot, error) {
	now := time.Now().UTC()
	bars, err := c.History(ctx, symbol, now.AddDate(0, 0, -45), now)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, eris.Errorf("quote: no history for %s", symbol)
	}

	latest := bars[len(bars)-1]
	snap := &Snapshot{
		Symbol:    symbol,
		LastClose: latest.Close,
		AsOf:      latest.Date,
	}
	snap.PriceChange7D = changeSince(bars, latest, 7)
	snap.PriceChange30D = changeSince(bars, latest, 30)
	return snap, nil
}

// changeSince returns the fractional change from the newest bar at or before
// the lookback cutoff to the latest close.
func changeSince(bars []Bar, latest Bar, days int) *float64 {
	cutoff := latest.Date.AddDate(0, 0, -days)
	for i := len(bars) - 1; i >= 0; i-- {
		if bars[i].Date.After(cutoff) {
			continue
		}
		if bars[i].Close == 0 {
			return nil
		}
		change := (latest.Close - bars[i].Close) / bars[i].Close
		return &change
	}
	return nil
}
