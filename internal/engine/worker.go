package engine

import (
	"container/heap"
	"context"
	"log/slog"
	"time"

	"github.com/kyp0717/momentum-scanner/internal/domain"
)

// RunEnrichmentWorker drains reqCh into a priority queue ordered by
// scanner-hit count and enriches the highest-priority symbol first,
// checking the sightings store's cache before falling back to a live
// fetch. A request for the empty symbol is a sentinel that clears both
// the queue and the already-enriched set (sent by AlertEngine.PollClear).
// Runs until ctx is cancelled.
func RunEnrichmentWorker(ctx context.Context, reqCh chan enrichRequest, bgCh chan domain.BgEvent, store domain.SightingsStore, enricher domain.Enricher, log *slog.Logger) {
	q := &enrichQueue{}
	heap.Init(q)
	enriched := make(map[string]bool)

	for {
		drainPending(reqCh, q, enriched)

		if q.Len() > 0 {
			req := heap.Pop(q).(enrichRequest)
			if enriched[req.symbol] {
				continue
			}
			enriched[req.symbol] = true

			data := fetchOrCached(ctx, store, enricher, req, log)

			select {
			case bgCh <- domain.EnrichComplete{Symbol: req.symbol, Data: data}:
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case req, ok := <-reqCh:
			if !ok {
				return
			}
			if req.symbol == "" {
				enriched = make(map[string]bool)
				continue
			}
			if !enriched[req.symbol] {
				heap.Push(q, req)
			}
		case <-time.After(time.Second):
		}
	}
}

func drainPending(reqCh chan enrichRequest, q *enrichQueue, enriched map[string]bool) {
	for {
		select {
		case req, ok := <-reqCh:
			if !ok {
				return
			}
			if req.symbol == "" {
				for k := range enriched {
					delete(enriched, k)
				}
				*q = (*q)[:0]
				continue
			}
			if !enriched[req.symbol] {
				heap.Push(q, req)
			}
		default:
			return
		}
	}
}

func fetchOrCached(ctx context.Context, store domain.SightingsStore, enricher domain.Enricher, req enrichRequest, log *slog.Logger) domain.EnrichmentData {
	if store != nil {
		if cached, err := store.GetEnrichmentCache(ctx, req.symbol, enrichCacheTTL); err == nil && cached != nil {
			log.Info("enrichment cache hit", slog.String("symbol", req.symbol))
			return *cached
		}
	}
	log.Info("enriching via yahoo", slog.String("symbol", req.symbol), slog.Any("priority", req.scannerHits))
	return enricher.FetchEnrichment(ctx, req.symbol)
}
