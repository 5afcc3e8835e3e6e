// Package engine implements the alert engine's core business logic shared
// by the headless streaming consumer and the interactive TUI: running
// scans, driving the fixed eight-scanner poll cycle, and folding
// background results into the accumulated alert table.
package engine

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kyp0717/momentum-scanner/internal/broker"
	"github.com/kyp0717/momentum-scanner/internal/domain"
)

// enrichCacheTTL is how long a store's cached enrichment counts as fresh
// before a symbol is re-fetched from Yahoo Finance.
const enrichCacheTTL = 15 * time.Minute

// AlertEngine holds the business state shared by every consumer: the
// accumulated alert table, poll/scan state, and the channels connecting to
// the background goroutines that talk to TWS and the enrichment worker.
type AlertEngine struct {
	Settings      domain.Settings
	AlertRows     []domain.AlertRow
	AlertSeen     map[string]bool
	Polling       bool
	ConnectedPort *uint16

	store domain.SightingsStore
	log   *slog.Logger

	bgCh      chan domain.BgEvent
	bgBusy    bool
	enrichCh  chan enrichRequest
	clientSeq int32
}

// NewAlertEngine builds an engine around the given settings and sightings
// store (nil disables persistence). enrichCh is shared with the
// enrichment worker spawned alongside it.
func NewAlertEngine(settings domain.Settings, store domain.SightingsStore, enrichCh chan enrichRequest, log *slog.Logger) *AlertEngine {
	return &AlertEngine{
		Settings:  settings,
		AlertSeen: make(map[string]bool),
		store:     store,
		log:       log,
		bgCh:      make(chan domain.BgEvent, 64),
		enrichCh:  enrichCh,
		clientSeq: 100,
	}
}

func (e *AlertEngine) ports() []uint16 {
	if e.Settings.Port != nil {
		return []uint16{*e.Settings.Port}
	}
	return domain.DefaultPorts
}

func (e *AlertEngine) nextClientID() int32 {
	e.clientSeq++
	return e.clientSeq
}

// QueueEnrich asks the enrichment worker to fetch data for symbol,
// prioritized by scannerHits. Non-blocking: if the worker is behind, the
// request waits in its channel buffer; if that buffer is full, the request
// is dropped.
func (e *AlertEngine) QueueEnrich(symbol string, scannerHits uint32) {
	select {
	case e.enrichCh <- enrichRequest{symbol: symbol, scannerHits: scannerHits}:
	default:
	}
}

// StartScan kicks off a one-shot scanner subscription in the background.
// No-op if a background operation is already in flight.
func (e *AlertEngine) StartScan(ctx context.Context, code string, rows uint32, minPrice, maxPrice *decimal.Decimal) {
	if e.bgBusy {
		return
	}
	e.bgBusy = true

	ports := e.ports()
	host := e.Settings.Host
	clientID := e.nextClientID()

	go func() {
		results, port := broker.RunScan(ctx, e.log, code, host, ports, clientID, rows, minPrice, maxPrice)
		e.bgCh <- domain.ScanComplete{ScannerCode: code, Results: results, Port: port}
	}()
}

// StartList kicks off a scanner-parameters fetch in the background.
func (e *AlertEngine) StartList(ctx context.Context, group *string) {
	if e.bgBusy {
		return
	}
	e.bgBusy = true

	ports := e.ports()
	host := e.Settings.Host
	clientID := e.nextClientID()

	go func() {
		xml := broker.FetchScannerParams(ctx, e.log, host, ports, clientID)
		e.bgCh <- domain.ListComplete{XML: xml, Group: group}
	}()
}

// PollOn starts polling. Returns true if this call turned polling on (false
// if already polling); the first poll cycle starts only when no other
// background operation is in flight.
func (e *AlertEngine) PollOn(ctx context.Context) bool {
	if e.Polling {
		return false
	}
	e.Polling = true
	e.RunPollScanners(ctx)
	return true
}

// PollOff stops polling (the in-flight cycle, if any, still completes).
func (e *AlertEngine) PollOff() {
	e.Polling = false
}

// PollClear resets the seen-set and alert table and signals the
// enrichment worker to forget what it has already enriched. Returns how
// many symbols had been seen.
func (e *AlertEngine) PollClear() int {
	count := len(e.AlertSeen)
	e.AlertSeen = make(map[string]bool)
	e.AlertRows = nil
	e.QueueEnrich("", 0)
	return count
}

// RunPollScanners spawns one background pass over every AlertScanner. A
// no-op if a background operation is already running.
func (e *AlertEngine) RunPollScanners(ctx context.Context) {
	if e.bgBusy {
		return
	}
	e.bgBusy = true

	ports := e.ports()
	host := e.Settings.Host

	go func() {
		start := time.Now()
		symbolData := make(map[string]domain.ScanResult)
		symbolScanners := make(map[string][]string)
		var connectedPort *uint16
		scannersRun := 0

		one := decimalOne()
		twenty := decimalTwenty()

		for i, sc := range domain.AlertScanners {
			results, port := broker.RunScan(ctx, e.log, sc.Code, host, ports, sc.ClientID, 50, &one, &twenty)
			if connectedPort == nil {
				connectedPort = port
			}
			scannersRun++

			for _, r := range results {
				symbolScanners[r.Symbol] = append(symbolScanners[r.Symbol], sc.Code)
				if _, exists := symbolData[r.Symbol]; !exists {
					symbolData[r.Symbol] = r
				}
			}
			e.log.Info("scanner results",
				slog.Int("scanner", i+1), slog.Int("total", len(domain.AlertScanners)),
				slog.String("code", sc.Code), slog.Int("count", len(results)))
		}

		elapsed := time.Since(start).Seconds()
		e.log.Info("poll scan complete", slog.Int("unique_stocks", len(symbolData)), slog.Int("scanners_run", scannersRun), slog.Float64("elapsed_secs", elapsed))

		e.bgCh <- domain.PollComplete{
			SymbolData:     symbolData,
			SymbolScanners: symbolScanners,
			Port:           connectedPort,
			ScannersRun:    scannersRun,
			ElapsedSecs:    elapsed,
		}
	}()
}

// Tick drains every pending background event and folds it into engine
// state, returning the consumer-facing events produced along the way.
func (e *AlertEngine) Tick(ctx context.Context) []domain.EngineEvent {
	var events []domain.EngineEvent

	for {
		select {
		case msg := <-e.bgCh:
			events = append(events, e.handleBgEvent(ctx, msg)...)
		default:
			return events
		}
	}
}

func (e *AlertEngine) handleBgEvent(ctx context.Context, msg domain.BgEvent) []domain.EngineEvent {
	var events []domain.EngineEvent

	switch m := msg.(type) {
	case domain.ScanComplete:
		if m.Port != nil {
			e.ConnectedPort = m.Port
			events = append(events, domain.EvPortDiscovered{Port: *m.Port})
		}
		e.bgBusy = false
		for _, r := range m.Results {
			e.QueueEnrich(r.Symbol, 1)
		}
		events = append(events, domain.EvScanComplete{ScannerCode: m.ScannerCode, Results: m.Results})

	case domain.ListComplete:
		e.bgBusy = false
		events = append(events, domain.EvListComplete{XML: m.XML, Group: m.Group})

	case domain.PollComplete:
		if m.Port != nil {
			e.ConnectedPort = m.Port
			events = append(events, domain.EvPortDiscovered{Port: *m.Port})
		}

		if e.store != nil {
			batch := make(map[string]domain.StockUpdate, len(m.SymbolData))
			for sym, r := range m.SymbolData {
				batch[sym] = domain.StockUpdate{
					Last:        r.Last,
					ChangePct:   r.ChangePct,
					Rvol:        r.Rvol,
					FloatShares: r.FloatShares,
					Catalyst:    r.Catalyst,
					Name:        r.Name,
					Sector:      r.Sector,
					Scanners:    m.SymbolScanners[sym],
				}
			}
			if err := e.store.RecordStocksBatch(ctx, batch); err != nil {
				e.log.Warn("sightings store write error", slog.Any("err", err))
			}
		}

		now := time.Now().Format("15:04:05")
		var newSyms []string
		for sym := range m.SymbolData {
			if !e.AlertSeen[sym] {
				newSyms = append(newSyms, sym)
			}
		}

		for _, sym := range newSyms {
			e.AlertSeen[sym] = true
			r := m.SymbolData[sym]
			hits := uint32(len(m.SymbolScanners[sym]))
			e.log.Info("new alert", slog.String("symbol", sym), slog.Any("hits", hits), slog.Any("change", r.ChangePct))
			e.AlertRows = append(e.AlertRows, domain.AlertRow{
				Symbol:      sym,
				AlertTime:   now,
				Last:        r.Last,
				ChangePct:   r.ChangePct,
				Volume:      r.Volume,
				ScannerHits: hits,
			})
			e.QueueEnrich(sym, hits)
		}

		sort.SliceStable(e.AlertRows, func(i, j int) bool {
			a, b := e.AlertRows[i], e.AlertRows[j]
			if a.ScannerHits != b.ScannerHits {
				return a.ScannerHits > b.ScannerHits
			}
			return changePctOrZero(a.ChangePct) > changePctOrZero(b.ChangePct)
		})

		e.bgBusy = false
		events = append(events, domain.EvPollCycleComplete{
			TotalStocks: len(m.SymbolData),
			NewSymbols:  newSyms,
			ScannersRun: m.ScannersRun,
			ElapsedSecs: m.ElapsedSecs,
		})

	case domain.EnrichComplete:
		if e.store != nil {
			enrichedAt := time.Now()
			update := domain.StockUpdate{
				Name:          m.Data.Name,
				Sector:        m.Data.Sector,
				Industry:      m.Data.Industry,
				FloatShares:   m.Data.FloatShares,
				ShortPct:      m.Data.ShortPct,
				AvgVolume:     m.Data.AvgVolume,
				Catalyst:      m.Data.Catalyst,
				NewsHeadlines: m.Data.NewsHeadlines,
				EnrichedAt:    &enrichedAt,
			}
			if err := e.store.RecordStocksBatch(ctx, map[string]domain.StockUpdate{m.Symbol: update}); err != nil {
				e.log.Warn("sightings store enrich write error", slog.Any("err", err))
			}
		}

		e.log.Info("enriched", slog.String("symbol", m.Symbol), slog.Any("catalyst", m.Data.Catalyst))

		for i := range e.AlertRows {
			row := &e.AlertRows[i]
			if row.Symbol != m.Symbol {
				continue
			}
			row.Name = m.Data.Name
			row.Sector = m.Data.Sector
			row.Industry = m.Data.Industry
			row.FloatShares = m.Data.FloatShares
			row.ShortPct = m.Data.ShortPct
			row.Catalyst = m.Data.Catalyst
			row.NewsHeadlines = m.Data.NewsHeadlines
			row.AvgVolume = m.Data.AvgVolume
			if row.Volume != nil && m.Data.AvgVolume != nil && *m.Data.AvgVolume > 0 {
				rvol := recomputeRvol(*row.Volume, *m.Data.AvgVolume)
				row.Rvol = &rvol
			}
			row.Enriched = true
			break
		}

		events = append(events, domain.EvEnrichComplete{Symbol: m.Symbol})
	}

	return events
}

// ProbePort connects just long enough to discover which configured port
// TWS is listening on.
func (e *AlertEngine) ProbePort(ctx context.Context) {
	client, err := broker.Connect(ctx, e.log, e.Settings.Host, e.ports(), 0)
	if err != nil {
		return
	}
	port := client.ConnectedPort()
	e.ConnectedPort = &port
	client.Disconnect()
}

// InitFromSightings loads today's sightings from the store into the alert
// table, queuing enrichment for anything whose cached data has expired.
// Returns (loaded, needsEnrich).
func (e *AlertEngine) InitFromSightings(ctx context.Context) (int, int) {
	if e.store == nil {
		return 0, 0
	}
	today, err := e.store.GetToday(ctx)
	if err != nil {
		e.log.Warn("load sightings failed", slog.Any("err", err))
		return 0, 0
	}

	needsEnrich := 0
	for _, s := range today {
		e.AlertSeen[s.Symbol] = true
		hits := uint32(countScanners(s.Scanners))

		fresh := isEnrichmentFresh(s.EnrichedAt)
		var headlines []string
		if s.NewsHeadlines != nil {
			headlines = parseHeadlines(*s.NewsHeadlines)
		}

		e.AlertRows = append(e.AlertRows, domain.AlertRow{
			Symbol:        s.Symbol,
			AlertTime:     localTimeStr(s.FirstSeen),
			Last:          s.LastPrice,
			ChangePct:     s.ChangePct,
			Rvol:          s.Rvol,
			FloatShares:   s.FloatShares,
			ShortPct:      s.ShortPct,
			Name:          s.Name,
			Sector:        s.Sector,
			Industry:      s.Industry,
			Catalyst:      s.Catalyst,
			ScannerHits:   hits,
			NewsHeadlines: headlines,
			Enriched:      fresh,
			AvgVolume:     s.AvgVolume,
		})

		if !fresh {
			needsEnrich++
			e.QueueEnrich(s.Symbol, hits)
		}
	}

	e.log.Info("sightings loaded", slog.Int("loaded", len(today)), slog.Int("needs_enrich", needsEnrich))
	return len(today), needsEnrich
}

func isEnrichmentFresh(enrichedAt *string) bool {
	if enrichedAt == nil {
		return false
	}
	t, err := time.Parse(time.RFC3339, *enrichedAt)
	if err != nil {
		return false
	}
	return time.Since(t) < enrichCacheTTL
}
