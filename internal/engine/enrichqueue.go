package engine

import "container/heap"

// enrichRequest asks the enrichment worker to fetch finance data for a
// symbol, ordered by scanner hit count so momentum stocks seen by more
// scanners get enriched first.
type enrichRequest struct {
	symbol      string
	scannerHits uint32
}

// enrichQueue is a max-heap of enrichRequest ordered by scannerHits,
// implementing container/heap.Interface.
type enrichQueue []enrichRequest

func (q enrichQueue) Len() int            { return len(q) }
func (q enrichQueue) Less(i, j int) bool  { return q[i].scannerHits > q[j].scannerHits }
func (q enrichQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *enrichQueue) Push(x any)         { *q = append(*q, x.(enrichRequest)) }
func (q *enrichQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

var _ heap.Interface = (*enrichQueue)(nil)
