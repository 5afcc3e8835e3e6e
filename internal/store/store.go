// Package store implements domain.SightingsStore against a PostgREST-style
// REST endpoint exposing a single "sightings" table.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kyp0717/momentum-scanner/internal/domain"
)

const sightingsTable = "sightings"

// Client is a REST client for the sightings table, reconnecting its
// underlying http.Client on transient network errors.
type Client struct {
	baseURL string
	anonKey string

	mu         sync.Mutex
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient builds a store client against baseURL (e.g.
// "https://xyz.supabase.co") authenticated with anonKey.
func NewClient(baseURL, anonKey string, log *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

// reconnect discards the current HTTP client, matching the upstream
// client's response to a dropped connection: a fresh transport rather
// than fiddling with connection pooling internals.
func (c *Client) reconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log.Info("reconnecting to sightings store")
	c.httpClient = &http.Client{Timeout: 10 * time.Second}
}

func (c *Client) client() *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.httpClient
}

func (c *Client) tableURL() string {
	return fmt.Sprintf("%s/rest/v1/%s", c.baseURL, sightingsTable)
}

func (c *Client) setAuthHeaders(req *http.Request) {
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+c.anonKey)
}

// Select runs a SELECT via query string against the sightings table.
func (c *Client) Select(ctx context.Context, query string) ([]map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.tableURL()+"?"+query, nil)
	if err != nil {
		return nil, fmt.Errorf("build select request: %w", err)
	}
	c.setAuthHeaders(req)

	resp, err := c.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("sightings select: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read select response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("sightings select status %d: %s", resp.StatusCode, body)
	}

	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode select response: %w", err)
	}
	return rows, nil
}

// Insert bulk-inserts rows.
func (c *Client) Insert(ctx context.Context, rows []map[string]any) error {
	return c.write(ctx, http.MethodPost, c.tableURL(), rows)
}

// Update applies data to every row matching filter (a raw PostgREST filter
// query string, e.g. "symbol=eq.AAPL").
func (c *Client) Update(ctx context.Context, filter string, data map[string]any) error {
	return c.write(ctx, http.MethodPatch, c.tableURL()+"?"+filter, data)
}

// Delete removes every row matching filter.
func (c *Client) Delete(ctx context.Context, filter string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.tableURL()+"?"+filter, nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	c.setAuthHeaders(req)

	resp, err := c.client().Do(req)
	if err != nil {
		return fmt.Errorf("sightings delete: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sightings delete status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) write(ctx context.Context, method, fullURL string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	c.setAuthHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")

	resp, err := c.client().Do(req)
	if err != nil {
		return fmt.Errorf("sightings %s: %w", method, err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sightings %s status %d: %s", method, resp.StatusCode, respBody)
	}
	return nil
}

// isTransient reports whether err looks like a dropped connection worth
// retrying after a fresh client, rather than a real data error.
func isTransient(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "connection") || strings.Contains(msg, "Connection") || strings.Contains(msg, "reset")
}

// RecordStocksBatch merges stocks into the sightings table: symbols already
// present get a PATCH merging non-nil fields and an incremented hit count,
// new symbols get bulk-inserted. Up to 3 attempts are made, reconnecting
// the HTTP client between attempts on a transient network error; any other
// failure is logged and swallowed so the engine never crashes on a bad
// store write.
func (c *Client) RecordStocksBatch(ctx context.Context, stocks map[string]domain.StockUpdate) error {
	if len(stocks) == 0 {
		return nil
	}

	now := time.Now().Format(time.RFC3339)

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		err := c.tryRecordBatch(ctx, stocks, now)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < 2 && isTransient(err) {
			c.log.Warn("sightings store connection dropped, reconnecting", slog.Int("attempt", attempt+1))
			c.reconnect()
			time.Sleep(500 * time.Millisecond)
			continue
		}
		c.log.Warn("sightings store write failed", slog.Any("err", err))
		return nil
	}
	c.log.Warn("sightings store write failed after retries", slog.Any("err", lastErr))
	return nil
}

func (c *Client) tryRecordBatch(ctx context.Context, stocks map[string]domain.StockUpdate, now string) error {
	symbols := make([]string, 0, len(stocks))
	for sym := range stocks {
		symbols = append(symbols, sym)
	}

	query := fmt.Sprintf("select=id,symbol,scanners,hit_count&symbol=in.(%s)", inList(symbols))
	existingRows, err := c.Select(ctx, query)
	if err != nil {
		return err
	}

	existing := make(map[string]map[string]any, len(existingRows))
	for _, row := range existingRows {
		if sym, ok := row["symbol"].(string); ok {
			existing[sym] = row
		}
	}

	var inserts []map[string]any
	for sym, update := range stocks {
		scanners := mergeScanners(update.Scanners, existing[sym])

		if row, ok := existing[sym]; ok {
			oldHits := int64(0)
			if h, ok := row["hit_count"].(float64); ok {
				oldHits = int64(h)
			}
			patch := map[string]any{
				"last_seen": now,
				"scanners":  scanners,
				"hit_count": oldHits + int64(len(update.Scanners)),
			}
			addIfSet(patch, "last_price", update.Last)
			addIfSet(patch, "change_pct", update.ChangePct)
			addIfSet(patch, "rvol", update.Rvol)
			addIfSet(patch, "float_shares", update.FloatShares)
			addIfSet(patch, "catalyst", update.Catalyst)
			addIfSet(patch, "name", update.Name)
			addIfSet(patch, "sector", update.Sector)
			addIfSet(patch, "industry", update.Industry)
			addIfSet(patch, "short_pct", update.ShortPct)
			addIfSet(patch, "avg_volume", update.AvgVolume)
			if update.NewsHeadlines != nil {
				headlines, _ := json.Marshal(update.NewsHeadlines)
				patch["news_headlines"] = string(headlines)
			}
			if update.EnrichedAt != nil {
				patch["enriched_at"] = update.EnrichedAt.Format(time.RFC3339)
			}

			filter := "symbol=eq." + url.QueryEscape(sym)
			if err := c.Update(ctx, filter, patch); err != nil {
				return err
			}
			continue
		}

		row := map[string]any{
			"symbol":     sym,
			"first_seen": now,
			"last_seen":  now,
			"scanners":   scanners,
			"hit_count":  len(update.Scanners),
		}
		addIfSet(row, "last_price", update.Last)
		addIfSet(row, "change_pct", update.ChangePct)
		addIfSet(row, "rvol", update.Rvol)
		addIfSet(row, "float_shares", update.FloatShares)
		addIfSet(row, "catalyst", update.Catalyst)
		addIfSet(row, "name", update.Name)
		addIfSet(row, "sector", update.Sector)
		addIfSet(row, "industry", update.Industry)
		addIfSet(row, "short_pct", update.ShortPct)
		addIfSet(row, "avg_volume", update.AvgVolume)
		if update.NewsHeadlines != nil {
			headlines, _ := json.Marshal(update.NewsHeadlines)
			row["news_headlines"] = string(headlines)
		}
		if update.EnrichedAt != nil {
			row["enriched_at"] = update.EnrichedAt.Format(time.RFC3339)
		}
		inserts = append(inserts, row)
	}

	if len(inserts) > 0 {
		if err := c.Insert(ctx, inserts); err != nil {
			return err
		}
	}
	return nil
}

func mergeScanners(scanners []string, existingRow map[string]any) string {
	set := make(map[string]struct{})
	for _, s := range scanners {
		set[s] = struct{}{}
	}
	if existingRow != nil {
		if s, ok := existingRow["scanners"].(string); ok && s != "" {
			for _, part := range strings.Split(s, ",") {
				set[part] = struct{}{}
			}
		}
	}
	merged := make([]string, 0, len(set))
	for s := range set {
		merged = append(merged, s)
	}
	sort.Strings(merged)
	return strings.Join(merged, ",")
}

func addIfSet[T any](m map[string]any, key string, v *T) {
	if v != nil {
		m[key] = *v
	}
}

func inList(symbols []string) string {
	quoted := make([]string, len(symbols))
	for i, s := range symbols {
		quoted[i] = `"` + s + `"`
	}
	return strings.Join(quoted, ",")
}

// GetEnrichmentCache returns cached enrichment data for symbol if it was
// enriched within maxAge, or nil if absent/stale.
func (c *Client) GetEnrichmentCache(ctx context.Context, symbol string, maxAge time.Duration) (*domain.EnrichmentData, error) {
	query := fmt.Sprintf(
		"select=name,sector,industry,float_shares,short_pct,avg_volume,catalyst,news_headlines,enriched_at&symbol=eq.%s&limit=1",
		url.QueryEscape(symbol))
	rows, err := c.Select(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	row := rows[0]

	enrichedAtStr, _ := row["enriched_at"].(string)
	if enrichedAtStr == "" {
		return nil, nil
	}
	enrichedAt, err := time.Parse(time.RFC3339, enrichedAtStr)
	if err != nil {
		return nil, nil
	}
	if time.Since(enrichedAt) > maxAge {
		return nil, nil
	}

	data := &domain.EnrichmentData{
		Name:     strField(row, "name"),
		Sector:   strField(row, "sector"),
		Industry: strField(row, "industry"),
		Catalyst: strField(row, "catalyst"),
	}
	if f, ok := row["float_shares"].(float64); ok {
		n := int64(f)
		data.FloatShares = &n
	}
	if f, ok := row["avg_volume"].(float64); ok {
		n := int64(f)
		data.AvgVolume = &n
	}
	if f, ok := row["short_pct"].(float64); ok {
		data.ShortPct = decimalPtr(&f)
	}
	if headlinesStr, ok := row["news_headlines"].(string); ok {
		var headlines []string
		if json.Unmarshal([]byte(headlinesStr), &headlines) == nil {
			data.NewsHeadlines = headlines
		}
	}
	return data, nil
}

func strField(row map[string]any, key string) *string {
	if s, ok := row[key].(string); ok {
		return &s
	}
	return nil
}

// GetHistory returns up to limit sightings ordered by first_seen DESC.
func (c *Client) GetHistory(ctx context.Context, limit uint32) ([]domain.Sighting, error) {
	query := "select=*&order=first_seen.desc&limit=" + strconv.FormatUint(uint64(limit), 10)
	rows, err := c.Select(ctx, query)
	if err != nil {
		return nil, err
	}
	return decodeSightings(rows), nil
}

// GetToday returns sightings first seen since local midnight.
func (c *Client) GetToday(ctx context.Context) ([]domain.Sighting, error) {
	now := time.Now().Local()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
	midnight := startOfDay.Format(time.RFC3339)
	query := "select=*&first_seen=gte." + url.QueryEscape(midnight) + "&order=first_seen.desc"
	rows, err := c.Select(ctx, query)
	if err != nil {
		return nil, err
	}
	return decodeSightings(rows), nil
}

// ClearHistory deletes every sighting and returns how many rows were
// removed.
func (c *Client) ClearHistory(ctx context.Context) (uint32, error) {
	rows, err := c.Select(ctx, "select=id&limit=10000")
	if err != nil {
		return 0, err
	}
	count := uint32(len(rows))
	if err := c.Delete(ctx, "symbol=neq."); err != nil {
		return 0, err
	}
	return count, nil
}

// GetNewSymbols returns which of symbols are NOT already present in the
// store.
func (c *Client) GetNewSymbols(ctx context.Context, symbols []string) (map[string]bool, error) {
	out := make(map[string]bool, len(symbols))
	if len(symbols) == 0 {
		return out, nil
	}
	query := "select=symbol&symbol=in.(" + inList(symbols) + ")"
	rows, err := c.Select(ctx, query)
	if err != nil {
		return nil, err
	}
	existing := make(map[string]bool, len(rows))
	for _, row := range rows {
		if sym, ok := row["symbol"].(string); ok {
			existing[sym] = true
		}
	}
	for _, sym := range symbols {
		out[sym] = !existing[sym]
	}
	return out, nil
}

func decodeSightings(rows []map[string]any) []domain.Sighting {
	sightings := make([]domain.Sighting, 0, len(rows))
	for _, row := range rows {
		raw, err := json.Marshal(row)
		if err != nil {
			continue
		}
		var s sightingRow
		if err := json.Unmarshal(raw, &s); err != nil {
			continue
		}
		sightings = append(sightings, s.toDomain())
	}
	return sightings
}

// sightingRow mirrors the sightings table's JSON shape for decoding a
// PostgREST row directly into typed fields.
type sightingRow struct {
	ID            *int64   `json:"id"`
	Symbol        string   `json:"symbol"`
	FirstSeen     string   `json:"first_seen"`
	LastSeen      string   `json:"last_seen"`
	Scanners      string   `json:"scanners"`
	HitCount      *int32   `json:"hit_count"`
	LastPrice     *float64 `json:"last_price"`
	ChangePct     *float64 `json:"change_pct"`
	Rvol          *float64 `json:"rvol"`
	FloatShares   *int64   `json:"float_shares"`
	Catalyst      *string  `json:"catalyst"`
	Name          *string  `json:"name"`
	Sector        *string  `json:"sector"`
	Industry      *string  `json:"industry"`
	ShortPct      *float64 `json:"short_pct"`
	AvgVolume     *int64   `json:"avg_volume"`
	NewsHeadlines *string  `json:"news_headlines"`
	EnrichedAt    *string  `json:"enriched_at"`
}

func (s sightingRow) toDomain() domain.Sighting {
	return domain.Sighting{
		ID:            s.ID,
		Symbol:        s.Symbol,
		FirstSeen:     s.FirstSeen,
		LastSeen:      s.LastSeen,
		Scanners:      s.Scanners,
		HitCount:      s.HitCount,
		LastPrice:     decimalPtr(s.LastPrice),
		ChangePct:     decimalPtr(s.ChangePct),
		Rvol:          decimalPtr(s.Rvol),
		FloatShares:   s.FloatShares,
		Catalyst:      s.Catalyst,
		Name:          s.Name,
		Sector:        s.Sector,
		Industry:      s.Industry,
		ShortPct:      decimalPtr(s.ShortPct),
		AvgVolume:     s.AvgVolume,
		NewsHeadlines: s.NewsHeadlines,
		EnrichedAt:    s.EnrichedAt,
	}
}
