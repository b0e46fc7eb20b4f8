// Package topk keeps the k best (document, score) pairs of an unordered
// stream using a bounded min-heap. Ties on score are broken by ascending
// document id, so output order is fully deterministic.
package topk

import "container/heap"

type Result struct {
	DocID uint64  `json:"doc_id"`
	Score float64 `json:"score"`
}

// Accumulator retains at most k results. Pushed document ids are assumed
// to be distinct. The zero value retains nothing.
type Accumulator struct {
	k int
	h resultHeap
}

func New(k int) *Accumulator {
	if k < 0 {
		k = 0
	}
	capacity := k
	if capacity > 1024 {
		capacity = 1024
	}
	return &Accumulator{
		k: k,
		h: make(resultHeap, 0, capacity),
	}
}

// Push offers a candidate. Once k results are held, the candidate replaces
// the current worst only if it ranks strictly ahead of it.
func (a *Accumulator) Push(docID uint64, score float64) {
	if a.k == 0 {
		return
	}
	r := Result{DocID: docID, Score: score}
	if a.h.Len() < a.k {
		heap.Push(&a.h, r)
		return
	}
	if ranksBefore(r, a.h[0]) {
		a.h[0] = r
		heap.Fix(&a.h, 0)
	}
}

func (a *Accumulator) Len() int { return a.h.Len() }

// Results drains the accumulator and returns the retained results in
// ranked order. The accumulator is empty afterwards.
func (a *Accumulator) Results() []Result {
	result := make([]Result, a.h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(&a.h).(Result)
	}
	return result
}

// Select is a convenience for ranking a fully materialised score map.
func Select(scores map[uint64]float64, k int) []Result {
	acc := New(k)
	for docID, score := range scores {
		acc.Push(docID, score)
	}
	return acc.Results()
}

// ranksBefore reports whether a belongs ahead of b in the output.
func ranksBefore(a, b Result) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.DocID < b.DocID
}

// resultHeap keeps the worst retained result at the root.
type resultHeap []Result

func (h resultHeap) Len() int { return len(h) }

func (h resultHeap) Less(i, j int) bool { return ranksBefore(h[j], h[i]) }

func (h resultHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *resultHeap) Push(x any) {
	*h = append(*h, x.(Result))
}

func (h *resultHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
