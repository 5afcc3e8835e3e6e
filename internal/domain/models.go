package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ScanResult is a single row returned by a TWS scanner subscription, later
// enriched with market data ticks and, for momentum candidates, finance
// profile/news data.
type ScanResult struct {
	Rank        uint32
	Symbol      string
	ConID       int64
	Exchange    string
	Currency    string
	Last        *decimal.Decimal
	Change      *decimal.Decimal
	ChangePct   *decimal.Decimal
	Bid         *decimal.Decimal
	Ask         *decimal.Decimal
	Volume      *int64
	Close       *decimal.Decimal
	Name        *string
	Sector      *string
	Industry    *string
	FloatShares *int64
	ShortPct    *decimal.Decimal
	AvgVolume   *int64
	Catalyst    *string
	Rvol        *decimal.Decimal
}

// AlertRow is a row in the accumulated alert table built up across poll
// cycles, one per symbol first observed today.
type AlertRow struct {
	Symbol        string
	AlertTime     string
	Last          *decimal.Decimal
	ChangePct     *decimal.Decimal
	Volume        *int64
	Rvol          *decimal.Decimal
	FloatShares   *int64
	ShortPct      *decimal.Decimal
	Name          *string
	Sector        *string
	Industry      *string
	Catalyst      *string
	ScannerHits   uint32
	NewsHeadlines []string
	Enriched      bool
	AvgVolume     *int64
}

// Sighting is a persisted row from the sightings store.
type Sighting struct {
	ID            *int64
	Symbol        string
	FirstSeen     string
	LastSeen      string
	Scanners      string
	HitCount      *int32
	LastPrice     *decimal.Decimal
	ChangePct     *decimal.Decimal
	Rvol          *decimal.Decimal
	FloatShares   *int64
	Catalyst      *string
	Name          *string
	Sector        *string
	Industry      *string
	ShortPct      *decimal.Decimal
	AvgVolume     *int64
	NewsHeadlines *string
	EnrichedAt    *string
}

// Settings holds the one-shot scan/list parameters a consumer can override
// per-command (host, port, row count, price band).
type Settings struct {
	Port     *uint16
	Host     string
	Rows     uint32
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
}

// DefaultSettings mirrors the scanner's out-of-the-box defaults.
func DefaultSettings() Settings {
	one := decimal.NewFromInt(1)
	return Settings{
		Port:     nil,
		Host:     "127.0.0.1",
		Rows:     25,
		MinPrice: &one,
		MaxPrice: nil,
	}
}

// ScannerAlias maps a short alias to its IB scan code.
type ScannerAlias struct {
	Alias string
	Code  string
}

// Aliases is the full set of human-friendly scanner aliases.
var Aliases = []ScannerAlias{
	{"gain", "TOP_PERC_GAIN"},
	{"hot", "HOT_BY_VOLUME"},
	{"active", "MOST_ACTIVE"},
	{"lose", "TOP_PERC_LOSE"},
	{"gap", "HIGH_OPEN_GAP"},
	{"gapdown", "LOW_OPEN_GAP"},
}

// ResolveScanner expands an alias (case-insensitive) to its scan code, or
// upper-cases an already-literal code.
func ResolveScanner(name string) string {
	lower := strings.ToLower(name)
	for _, a := range Aliases {
		if a.Alias == lower {
			return a.Code
		}
	}
	return strings.ToUpper(name)
}

// AlertScanner pairs a fixed scan code with the client id used to request it.
type AlertScanner struct {
	Code     string
	ClientID int32
}

// AlertScanners is the fixed set of eight scanners the poll cycle runs every
// interval, in the order they are queried.
var AlertScanners = []AlertScanner{
	{"HOT_BY_VOLUME", 10},
	{"TOP_PERC_GAIN", 11},
	{"MOST_ACTIVE", 12},
	{"HIGH_OPEN_GAP", 13},
	{"TOP_TRADE_COUNT", 14},
	{"HOT_BY_PRICE", 15},
	{"TOP_VOLUME_RATE", 16},
	{"HIGH_VS_52W_HL", 17},
}

// DefaultPorts are the TWS/IB Gateway ports probed in order when none is
// pinned in Settings.
var DefaultPorts = []uint16{7500, 7497}

// EnrichmentData is the result of one finance-profile + news fetch for a
// symbol, whether it came from the live HTTP endpoints or the sightings
// store's enrichment cache.
type EnrichmentData struct {
	Name          *string
	Sector        *string
	Industry      *string
	FloatShares   *int64
	ShortPct      *decimal.Decimal
	AvgVolume     *int64
	Catalyst      *string
	NewsHeadlines []string
}

