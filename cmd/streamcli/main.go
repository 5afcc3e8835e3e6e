// Command streamcli is the headless front-end to the alert engine: it
// drives the poll loop and prints each event either as one JSON line (the
// default, for piping into another process) or as formatted text (-text).
// It never touches internal/broker or internal/store directly -- every
// operation goes through engine.AlertEngine.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kyp0717/momentum-scanner/internal/config"
	"github.com/kyp0717/momentum-scanner/internal/domain"
	"github.com/kyp0717/momentum-scanner/internal/engine"
	"github.com/kyp0717/momentum-scanner/internal/enrich"
	"github.com/kyp0717/momentum-scanner/internal/scannerparams"
	"github.com/kyp0717/momentum-scanner/internal/store"
)

func main() {
	scanCode := flag.String("scan", "", "run a one-shot scanner subscription and print the results")
	listGroup := flag.String("list", "", "fetch the scanner-parameters catalog; pass a category substring to expand it")
	doList := flag.Bool("list-all", false, "fetch and print the scanner-parameters summary table")
	historyLimit := flag.Uint("history", 0, "print up to N sightings from history, newest first")
	clearHistory := flag.Bool("clear-history", false, "delete every persisted sighting and exit")
	textOutput := flag.Bool("text", false, "print formatted text instead of JSON lines")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}
	log.Info("starting streamcli", slog.String("env", cfg.Env))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	var sightingsStore domain.SightingsStore
	if cfg.StoreEnabled() {
		sightingsStore = store.NewClient(cfg.Store.URL, cfg.Store.AnonKey, log)
		log.Info("sightings store enabled", slog.String("url", cfg.Store.URL))
	} else {
		log.Warn("sightings store disabled: SUPABASE_URL/SUPABASE_ANON_KEY not set")
	}

	switch {
	case *clearHistory:
		runClearHistory(ctx, sightingsStore, log)
	case *historyLimit > 0:
		runHistory(ctx, sightingsStore, *historyLimit, *textOutput)
	default:
		settings := buildSettings(cfg)
		enricher := enrich.NewClient(log)
		eng := engine.NewEngine(ctx, settings, sightingsStore, enricher, log)

		switch {
		case *doList || *listGroup != "":
			var group *string
			if *listGroup != "" {
				group = listGroup
			}
			eng.StartList(ctx, group)
			drainUntil(ctx, eng, *textOutput, isListComplete)
		case *scanCode != "":
			eng.StartScan(ctx, domain.ResolveScanner(*scanCode), settings.Rows, settings.MinPrice, settings.MaxPrice)
			drainScan(ctx, eng, enricher, *textOutput)
		default:
			runPoll(ctx, eng, *textOutput, log)
		}
	}
}

func buildSettings(cfg *config.Config) domain.Settings {
	settings := domain.DefaultSettings()
	settings.Host = cfg.TWS.Host
	if len(cfg.TWS.Ports) == 1 {
		p := cfg.TWS.Ports[0]
		settings.Port = &p
	}
	return settings
}

// runPoll starts continuous polling, running a new poll cycle every 60s,
// and drains events at the consumer cadence spec.md requires (<=100ms)
// until the process is interrupted.
func runPoll(ctx context.Context, eng *engine.AlertEngine, textOutput bool, log *slog.Logger) {
	if loaded, needsEnrich := eng.InitFromSightings(ctx); loaded > 0 {
		log.Info("loaded today's sightings", slog.Int("loaded", loaded), slog.Int("needs_enrich", needsEnrich))
	}
	eng.PollOn(ctx)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	pollTicker := time.NewTicker(60 * time.Second)
	defer pollTicker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			if eng.Polling {
				eng.RunPollScanners(ctx)
			}
		case <-ticker.C:
			for _, ev := range eng.Tick(ctx) {
				emit(ev, textOutput)
			}
		}
	}
}

// drainUntil ticks the engine until stop reports true on some event, or
// ctx expires, or a minute passes -- the bound on a one-shot command that
// would otherwise hang against a dead terminal.
func drainUntil(ctx context.Context, eng *engine.AlertEngine, textOutput bool, stop func(domain.EngineEvent) bool) {
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		for _, ev := range eng.Tick(ctx) {
			emit(ev, textOutput)
			if stop(ev) {
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// drainScan waits for the one-shot scan's results, enriching them (profile,
// sector, catalyst) before printing -- the scan path is otherwise the only
// place in the engine that shows a result to a human without going through
// the enrichment queue first.
func drainScan(ctx context.Context, eng *engine.AlertEngine, enricher *enrich.Client, textOutput bool) {
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		for _, ev := range eng.Tick(ctx) {
			if sc, ok := ev.(domain.EvScanComplete); ok {
				enrich.EnrichResults(ctx, enricher, sc.Results)
			}
			emit(ev, textOutput)
			if _, ok := ev.(domain.EvScanComplete); ok {
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func isListComplete(ev domain.EngineEvent) bool {
	_, ok := ev.(domain.EvListComplete)
	return ok
}

func runHistory(ctx context.Context, sightingsStore domain.SightingsStore, limit uint, textOutput bool) {
	if sightingsStore == nil {
		fmt.Println("sightings store is disabled")
		return
	}
	rows, err := sightingsStore.GetHistory(ctx, uint32(limit))
	if err != nil {
		fmt.Printf("error fetching history: %v\n", err)
		return
	}
	for _, row := range rows {
		if textOutput {
			fmt.Printf("%-8s  first=%s  last=%s  hits=%d  scanners=%s\n", row.Symbol, row.FirstSeen, row.LastSeen, derefInt32(row.HitCount), row.Scanners)
			continue
		}
		b, _ := json.Marshal(row)
		fmt.Println(string(b))
	}
}

func runClearHistory(ctx context.Context, sightingsStore domain.SightingsStore, log *slog.Logger) {
	if sightingsStore == nil {
		fmt.Println("sightings store is disabled")
		return
	}
	count, err := sightingsStore.ClearHistory(ctx)
	if err != nil {
		log.Error("clear history failed", slog.Any("err", err))
		os.Exit(1)
	}
	fmt.Printf("cleared %d sightings\n", count)
}

func emit(ev domain.EngineEvent, textOutput bool) {
	if !textOutput {
		b, err := json.Marshal(eventEnvelope(ev))
		if err == nil {
			fmt.Println(string(b))
		}
		return
	}

	switch e := ev.(type) {
	case domain.EvPortDiscovered:
		fmt.Printf("[port] connected on %d\n", e.Port)
	case domain.EvPollCycleComplete:
		fmt.Printf("[poll] %d stocks, %d new, %d scanners, %.1fs\n", e.TotalStocks, len(e.NewSymbols), e.ScannersRun, e.ElapsedSecs)
	case domain.EvEnrichComplete:
		fmt.Printf("[enrich] %s\n", e.Symbol)
	case domain.EvScanComplete:
		fmt.Print(engine.PrintResults(e.Results))
	case domain.EvListComplete:
		if e.XML == nil {
			fmt.Println("no scanner-parameters XML received")
			return
		}
		tree := scannerparams.GroupScans(*e.XML)
		if e.Group != nil && *e.Group != "" {
			fmt.Print(scannerparams.FormatGroup(tree, *e.Group))
		} else {
			fmt.Print(scannerparams.FormatSummary(tree))
		}
	}
}

func eventEnvelope(ev domain.EngineEvent) map[string]any {
	switch e := ev.(type) {
	case domain.EvPortDiscovered:
		return map[string]any{"type": "port_discovered", "port": e.Port}
	case domain.EvPollCycleComplete:
		return map[string]any{
			"type":         "poll_cycle_complete",
			"total_stocks": e.TotalStocks,
			"new_symbols":  e.NewSymbols,
			"scanners_run": e.ScannersRun,
			"elapsed_secs": e.ElapsedSecs,
		}
	case domain.EvEnrichComplete:
		return map[string]any{"type": "enrich_complete", "symbol": e.Symbol}
	case domain.EvScanComplete:
		return map[string]any{"type": "scan_complete", "scanner_code": e.ScannerCode, "results": e.Results}
	case domain.EvListComplete:
		group := ""
		if e.Group != nil {
			group = *e.Group
		}
		return map[string]any{"type": "list_complete", "group": group}
	}
	return map[string]any{"type": "unknown"}
}

func derefInt32(v *int32) int32 {
	if v == nil {
		return 0
	}
	return *v
}
