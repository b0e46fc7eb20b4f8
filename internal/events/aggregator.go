package events

import (
	"cmp"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/logger"
)

// latencyWindow is how many recent latencies feed the percentiles.
const latencyWindow = 10000

const topQueries = 10

type Stats struct {
	TotalQueries      int64            `json:"total_queries"`
	ByStatus          map[Status]int64 `json:"by_status"`
	ByRanker          map[string]int64 `json:"by_ranker"`
	CacheHits         int64            `json:"cache_hits"`
	CacheMisses       int64            `json:"cache_misses"`
	ZeroResultCount   int64            `json:"zero_result_count"`
	AvgLatencyMs      float64          `json:"avg_latency_ms"`
	P50LatencyMs      float64          `json:"p50_latency_ms"`
	P95LatencyMs      float64          `json:"p95_latency_ms"`
	P99LatencyMs      float64          `json:"p99_latency_ms"`
	TopQueries        []QueryCount     `json:"top_queries"`
	ZeroResultQueries []QueryCount     `json:"zero_result_queries"`
	QueriesPerMinute  float64          `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator keeps running totals over query events. It can be fed
// directly as a tracker or from the query-events topic.
type Aggregator struct {
	now    func() time.Time
	start  time.Time
	logger *slog.Logger

	mu          sync.Mutex
	total       int64
	byStatus    map[Status]int64
	byRanker    map[string]int64
	cacheHits   int64
	cacheMisses int64
	zeroResults int64
	latencies   []float64
	next        int
	queries     map[string]int64
	zeroQueries map[string]int64
}

func NewAggregator() *Aggregator {
	return newAggregator(time.Now)
}

func newAggregator(now func() time.Time) *Aggregator {
	return &Aggregator{
		now:         now,
		start:       now(),
		logger:      logger.WithComponent("query-event-aggregator"),
		byStatus:    make(map[Status]int64),
		byRanker:    make(map[string]int64),
		latencies:   make([]float64, 0, 1024),
		queries:     make(map[string]int64),
		zeroQueries: make(map[string]int64),
	}
}

// Track records one event.
func (a *Aggregator) Track(ev QueryEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	a.byStatus[ev.Status]++
	if ev.Ranker != "" {
		a.byRanker[ev.Ranker]++
	}
	if ev.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}

	if len(a.latencies) < latencyWindow {
		a.latencies = append(a.latencies, ev.LatencyMs)
	} else {
		a.latencies[a.next] = ev.LatencyMs
		a.next = (a.next + 1) % latencyWindow
	}

	if ev.Status != StatusOK {
		return
	}
	a.queries[ev.Query]++
	if ev.Returned == 0 {
		a.zeroResults++
		a.zeroQueries[ev.Query]++
	}
}

// HandleMessage decodes a QueryEvent from a Kafka message. Undecodable
// messages are logged and skipped so they do not block the partition.
func (a *Aggregator) HandleMessage(_ context.Context, _, value []byte) error {
	ev, err := kafka.DecodeJSON[QueryEvent](value)
	if err != nil {
		a.logger.Error("failed to decode query event", "error", err)
		return nil
	}
	a.Track(ev)
	return nil
}

func (a *Aggregator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := Stats{
		TotalQueries:      a.total,
		ByStatus:          make(map[Status]int64, len(a.byStatus)),
		ByRanker:          make(map[string]int64, len(a.byRanker)),
		CacheHits:         a.cacheHits,
		CacheMisses:       a.cacheMisses,
		ZeroResultCount:   a.zeroResults,
		TopQueries:        topN(a.queries, topQueries),
		ZeroResultQueries: topN(a.zeroQueries, topQueries),
	}
	for k, v := range a.byStatus {
		stats.ByStatus[k] = v
	}
	for k, v := range a.byRanker {
		stats.ByRanker[k] = v
	}

	if len(a.latencies) > 0 {
		sorted := slices.Clone(a.latencies)
		slices.Sort(sorted)
		var sum float64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = sum / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}

	if elapsed := a.now().Sub(a.start).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(a.total) / elapsed
	}
	return stats
}

// StatsHandler serves the current Stats as JSON.
func (a *Aggregator) StatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(a.Stats()); err != nil {
			a.logger.Error("failed to write analytics response", "error", err)
		}
	}
}

func percentile(sorted []float64, pct int) float64 {
	idx := pct * len(sorted) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count, then query text so equal counts are stable.
func topN(counts map[string]int64, n int) []QueryCount {
	out := make([]QueryCount, 0, len(counts))
	for q, c := range counts {
		out = append(out, QueryCount{Query: q, Count: c})
	}
	slices.SortFunc(out, func(a, b QueryCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Query, b.Query)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
