package store

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kyp0717/momentum-scanner/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecordStocksBatchInsertsNewSymbol(t *testing.T) {
	var gotInsert []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte("[]"))
		case http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			json.Unmarshal(body, &gotInsert)
			w.WriteHeader(http.StatusCreated)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "anon-key", testLogger())
	last := mustDecimal("5.00")
	err := c.RecordStocksBatch(context.Background(), map[string]domain.StockUpdate{
		"AAPL": {Last: &last, Scanners: []string{"HOT_BY_VOLUME"}},
	})
	if err != nil {
		t.Fatalf("RecordStocksBatch: %v", err)
	}
	if len(gotInsert) != 1 || gotInsert[0]["symbol"] != "AAPL" {
		t.Fatalf("unexpected insert payload: %+v", gotInsert)
	}
}

func TestRecordStocksBatchUpdatesExisting(t *testing.T) {
	var patched bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[{"id":1,"symbol":"AAPL","scanners":"TOP_PERC_GAIN","hit_count":2}]`))
		case http.MethodPatch:
			patched = true
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "anon-key", testLogger())
	last := mustDecimal("6.00")
	err := c.RecordStocksBatch(context.Background(), map[string]domain.StockUpdate{
		"AAPL": {Last: &last, Scanners: []string{"HOT_BY_VOLUME"}},
	})
	if err != nil {
		t.Fatalf("RecordStocksBatch: %v", err)
	}
	if !patched {
		t.Fatal("expected an UPDATE request for existing symbol")
	}
}

func TestGetEnrichmentCacheFreshHit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		row := map[string]any{
			"name":           "Apple Inc.",
			"enriched_at":    time.Now().Format(time.RFC3339),
			"news_headlines": `["FDA approval"]`,
		}
		json.NewEncoder(w).Encode([]map[string]any{row})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "anon-key", testLogger())
	data, err := c.GetEnrichmentCache(context.Background(), "AAPL", 15*time.Minute)
	if err != nil {
		t.Fatalf("GetEnrichmentCache: %v", err)
	}
	if data == nil || data.Name == nil || *data.Name != "Apple Inc." {
		t.Fatalf("expected cache hit, got %+v", data)
	}
}

func TestGetEnrichmentCacheStaleMiss(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		row := map[string]any{
			"name":        "Apple Inc.",
			"enriched_at": time.Now().Add(-time.Hour).Format(time.RFC3339),
		}
		json.NewEncoder(w).Encode([]map[string]any{row})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "anon-key", testLogger())
	data, err := c.GetEnrichmentCache(context.Background(), "AAPL", 15*time.Minute)
	if err != nil {
		t.Fatalf("GetEnrichmentCache: %v", err)
	}
	if data != nil {
		t.Fatalf("expected stale cache miss, got %+v", data)
	}
}

func TestClearHistoryReturnsCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[{"id":1},{"id":2},{"id":3}]`))
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "anon-key", testLogger())
	count, err := c.ClearHistory(context.Background())
	if err != nil {
		t.Fatalf("ClearHistory: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected count 3, got %d", count)
	}
}

func TestGetNewSymbols(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"symbol":"AAPL"}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "anon-key", testLogger())
	result, err := c.GetNewSymbols(context.Background(), []string{"AAPL", "TSLA"})
	if err != nil {
		t.Fatalf("GetNewSymbols: %v", err)
	}
	if result["AAPL"] || !result["TSLA"] {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestRecordStocksBatchRetriesOnConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close() // closed listener: any dial now fails with a connection error

	c := NewClient(addr, "anon-key", testLogger())
	originalClient := c.httpClient

	err := c.RecordStocksBatch(context.Background(), map[string]domain.StockUpdate{
		"AAPL": {Scanners: []string{"HOT_BY_VOLUME"}},
	})
	if err != nil {
		t.Fatalf("expected swallowed error, got %v", err)
	}
	if c.httpClient == originalClient {
		t.Fatal("expected httpClient to be replaced by a reconnect attempt")
	}
}

func TestRecordStocksBatchNonConnectionErrorDoesNotRetry(t *testing.T) {
	var getCount int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			atomic.AddInt32(&getCount, 1)
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "anon-key", testLogger())
	err := c.RecordStocksBatch(context.Background(), map[string]domain.StockUpdate{
		"AAPL": {Scanners: []string{"HOT_BY_VOLUME"}},
	})
	if err != nil {
		t.Fatalf("expected swallowed error, got %v", err)
	}
	if got := atomic.LoadInt32(&getCount); got != 1 {
		t.Fatalf("expected exactly 1 GET attempt (no retry on non-connection error), got %d", got)
	}
}

func mustDecimal(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}
