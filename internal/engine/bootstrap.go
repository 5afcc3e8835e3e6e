package engine

import (
	"context"
	"log/slog"

	"github.com/kyp0717/momentum-scanner/internal/domain"
)

// NewEngine builds an AlertEngine and spawns its enrichment worker together,
// since the two share a channel type that is package-private by design: a
// consumer (cmd/streamcli, cmd/tui) only ever sees the engine's operation
// methods and event stream, never the worker's queue.
func NewEngine(ctx context.Context, settings domain.Settings, store domain.SightingsStore, enricher domain.Enricher, log *slog.Logger) *AlertEngine {
	enrichCh := make(chan enrichRequest, 256)
	e := NewAlertEngine(settings, store, enrichCh, log)
	go RunEnrichmentWorker(ctx, enrichCh, e.bgCh, store, enricher, log)
	return e
}
