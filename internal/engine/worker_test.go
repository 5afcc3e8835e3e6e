package engine

import (
	"container/heap"
	"testing"
)

func TestEnrichQueuePriorityOrdering(t *testing.T) {
	q := &enrichQueue{}
	heap.Init(q)
	heap.Push(q, enrichRequest{symbol: "LOW", scannerHits: 1})
	heap.Push(q, enrichRequest{symbol: "HIGH", scannerHits: 8})
	heap.Push(q, enrichRequest{symbol: "MID", scannerHits: 4})

	first := heap.Pop(q).(enrichRequest)
	second := heap.Pop(q).(enrichRequest)
	third := heap.Pop(q).(enrichRequest)

	if first.symbol != "HIGH" || second.symbol != "MID" || third.symbol != "LOW" {
		t.Fatalf("unexpected pop order: %s, %s, %s", first.symbol, second.symbol, third.symbol)
	}
}

func TestDrainPendingSentinelClears(t *testing.T) {
	reqCh := make(chan enrichRequest, 4)
	reqCh <- enrichRequest{symbol: "AAPL", scannerHits: 3}
	reqCh <- enrichRequest{symbol: "", scannerHits: 0}

	q := &enrichQueue{}
	heap.Init(q)
	enriched := map[string]bool{"TSLA": true}

	drainPending(reqCh, q, enriched)

	if q.Len() != 0 {
		t.Fatalf("expected queue cleared by sentinel, got len=%d", q.Len())
	}
	if len(enriched) != 0 {
		t.Fatalf("expected enriched set cleared, got %v", enriched)
	}
}

func TestDrainPendingSkipsAlreadyEnriched(t *testing.T) {
	reqCh := make(chan enrichRequest, 4)
	reqCh <- enrichRequest{symbol: "AAPL", scannerHits: 3}
	close(reqCh)

	q := &enrichQueue{}
	heap.Init(q)
	enriched := map[string]bool{"AAPL": true}

	drainPending(reqCh, q, enriched)

	if q.Len() != 0 {
		t.Fatalf("expected already-enriched symbol skipped, got len=%d", q.Len())
	}
}
