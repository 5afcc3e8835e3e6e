package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// SightingsStore persists scan/enrichment results to the external row store
// and answers history/cache queries. The engine depends on this interface,
// not on the concrete REST client, so it can be faked in tests.
type SightingsStore interface {
	RecordStocksBatch(ctx context.Context, stocks map[string]StockUpdate) error
	GetEnrichmentCache(ctx context.Context, symbol string, maxAge time.Duration) (*EnrichmentData, error)
	GetHistory(ctx context.Context, limit uint32) ([]Sighting, error)
	GetToday(ctx context.Context) ([]Sighting, error)
	ClearHistory(ctx context.Context) (uint32, error)
	GetNewSymbols(ctx context.Context, symbols []string) (map[string]bool, error)
}

// StockUpdate is the payload RecordStocksBatch merges into one row, paired
// with the list of scanner codes that produced this sighting.
type StockUpdate struct {
	Last          *decimal.Decimal
	ChangePct     *decimal.Decimal
	Rvol          *decimal.Decimal
	FloatShares   *int64
	Catalyst      *string
	Name          *string
	Sector        *string
	Industry      *string
	ShortPct      *decimal.Decimal
	AvgVolume     *int64
	NewsHeadlines []string
	EnrichedAt    *time.Time
	Scanners      []string
}

// Enricher fetches finance profile and news data for a single symbol.
type Enricher interface {
	FetchEnrichment(ctx context.Context, symbol string) EnrichmentData
}

// BrokerPort is a subset of broker.Client operations (port lookup and
// disconnect) that a fake can implement without opening a real TCP
// connection. The engine and the front-ends call the broker package
// directly and do not use this interface.
type BrokerPort interface {
	ConnectedPort() uint16
	Disconnect()
}
