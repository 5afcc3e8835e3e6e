// Package enrich fetches finance-profile and news data for scan results so
// they can be scored against the momentum filter and stamped with a
// catalyst headline.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/kyp0717/momentum-scanner/internal/domain"
)

const (
	yahooQuoteSummaryURL = "https://query1.finance.yahoo.com/v10/finance/quoteSummary/%s?modules=summaryProfile,defaultKeyStatistics,financialData,price"
	yahooSearchURL       = "https://query1.finance.yahoo.com/v8/finance/search?q=%s&newsCount=5&quotesCount=0"
	userAgent            = "Mozilla/5.0"
)

// Client fetches enrichment data from Yahoo Finance's public endpoints,
// rate-limited to one request category per second to stay polite to an
// unauthenticated API.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *slog.Logger
}

// NewClient builds an enrichment client. The rate limiter allows one
// request per second with a burst of 2, enough for the info+news pair
// fetched per symbol without tripping Yahoo's anonymous throttling.
func NewClient(log *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(1), 2),
		log:        log,
	}
}

// FetchEnrichment fetches the finance profile and recent news for symbol
// concurrently, classifying the news for a catalyst headline. Errors from either fetch
// are logged and leave the corresponding fields unset rather than failing
// the whole call, since enrichment is best-effort.
func (c *Client) FetchEnrichment(ctx context.Context, symbol string) domain.EnrichmentData {
	var data domain.EnrichmentData

	type newsResult struct {
		items []NewsItem
		err   error
	}
	newsCh := make(chan newsResult, 1)
	go func() {
		items, err := c.fetchYahooNews(ctx, symbol)
		newsCh <- newsResult{items: items, err: err}
	}()

	info, err := c.fetchYahooInfo(ctx, symbol)
	if err != nil {
		c.log.Warn("yahoo finance info fetch failed", slog.String("symbol", symbol), slog.Any("err", err))
	} else {
		data.Name = extractStr(info, "price", "shortName")
		data.Sector = extractStr(info, "summaryProfile", "sector")
		data.Industry = extractStr(info, "summaryProfile", "industry")
		data.FloatShares = extractRawInt(info, "defaultKeyStatistics", "floatShares")
		data.ShortPct = extractRawDecimal(info, "defaultKeyStatistics", "shortPercentOfFloat")
		data.AvgVolume = extractRawInt(info, "price", "averageDailyVolume3Month")
	}

	nr := <-newsCh
	news, err := nr.items, nr.err
	if err != nil {
		c.log.Debug("yahoo finance news fetch failed", slog.String("symbol", symbol), slog.Any("err", err))
	} else {
		if title, _, ok := ClassifyCatalyst(news); ok {
			data.Catalyst = &title
		}
		for _, n := range news {
			data.NewsHeadlines = append(data.NewsHeadlines, n.Title)
		}
	}

	return data
}

// EnrichResults enriches every symbol in results concurrently, filling in
// name/sector/industry/float/catalyst and recomputing relative volume from
// the freshly fetched average volume.
func EnrichResults(ctx context.Context, client *Client, results []domain.ScanResult) {
	type outcome struct {
		idx  int
		data domain.EnrichmentData
	}
	out := make(chan outcome, len(results))
	for i, r := range results {
		go func(i int, symbol string) {
			out <- outcome{idx: i, data: client.FetchEnrichment(ctx, symbol)}
		}(i, r.Symbol)
	}
	for range results {
		o := <-out
		r := &results[o.idx]
		r.Name = o.data.Name
		r.Sector = o.data.Sector
		r.Industry = o.data.Industry
		r.FloatShares = o.data.FloatShares
		r.ShortPct = o.data.ShortPct
		r.AvgVolume = o.data.AvgVolume
		r.Catalyst = o.data.Catalyst
		if r.Volume != nil && r.AvgVolume != nil && *r.AvgVolume > 0 {
			rvol := float64(*r.Volume) / float64(*r.AvgVolume)
			d := decimalFromFloat(rvol)
			r.Rvol = &d
		}
	}
}

func (c *Client) fetchYahooInfo(ctx context.Context, symbol string) (map[string]any, error) {
	return c.fetchJSON(ctx, fmt.Sprintf(yahooQuoteSummaryURL, symbol))
}

func (c *Client) fetchYahooNews(ctx context.Context, symbol string) ([]NewsItem, error) {
	body, err := c.fetchJSON(ctx, fmt.Sprintf(yahooSearchURL, symbol))
	if err != nil {
		return nil, err
	}
	rawNews, _ := body["news"].([]any)
	items := make([]NewsItem, 0, len(rawNews))
	for _, rn := range rawNews {
		m, ok := rn.(map[string]any)
		if !ok {
			continue
		}
		item := NewsItem{}
		if title, ok := m["title"].(string); ok {
			item.Title = title
		}
		if t, ok := m["providerPublishTime"].(float64); ok {
			ts := int64(t)
			item.ProviderPublishTime = &ts
		}
		items = append(items, item)
	}
	return items, nil
}

func (c *Client) fetchJSON(ctx context.Context, url string) (map[string]any, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return out, nil
}
