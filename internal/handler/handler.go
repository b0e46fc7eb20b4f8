// Package handler exposes ranked search over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/internal/events"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/internal/executor"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/internal/index"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/internal/query"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/internal/topk"
	apperrors "github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/metrics"
)

// Searcher is satisfied by *executor.Executor. Fingerprint scopes cached
// results to the searcher's ranker configuration.
type Searcher interface {
	Execute(ctx context.Context, q query.Query, k int) ([]topk.Result, error)
	Fingerprint() string
}

// Cache is the result cache plus its admin operations.
type Cache interface {
	executor.ResultCache
	Stats() (hits, misses int64)
	Invalidate(ctx context.Context) error
}

type Config struct {
	DefaultRanker string
	DefaultK      int
	MaxK          int
}

type Handler struct {
	builder *query.Builder
	index   index.Reader
	rankers map[string]Searcher
	cfg     Config
	cache   Cache
	tracker executor.Tracker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Handler)

func WithCache(c Cache) Option { return func(h *Handler) { h.cache = c } }

func WithTracker(t executor.Tracker) Option { return func(h *Handler) { h.tracker = t } }

func WithMetrics(m *metrics.Metrics) Option { return func(h *Handler) { h.metrics = m } }

// New serves the searchers in rankers, keyed by ranker name. cfg.DefaultRanker
// must be one of them.
func New(builder *query.Builder, idx index.Reader, rankers map[string]Searcher, cfg Config, opts ...Option) *Handler {
	if cfg.DefaultK <= 0 {
		cfg.DefaultK = 10
	}
	if cfg.MaxK <= 0 {
		cfg.MaxK = cfg.DefaultK
	}
	cfg.DefaultK = min(cfg.DefaultK, cfg.MaxK)
	h := &Handler{
		builder: builder,
		index:   idx,
		rankers: rankers,
		cfg:     cfg,
		logger:  slog.Default().With("component", "search-handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes registers the API on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/rankers", h.Rankers)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.Document)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

type scoredDoc struct {
	Rank  int     `json:"rank"`
	DocID uint64  `json:"doc_id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

type searchResponse struct {
	Query     string             `json:"query"`
	Terms     []query.TermWeight `json:"terms"`
	Ranker    string             `json:"ranker"`
	K         int                `json:"k"`
	Results   []scoredDoc        `json:"results"`
	CacheHit  bool               `json:"cache_hit"`
	LatencyMs float64            `json:"latency_ms"`
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)
	params := r.URL.Query()

	if !params.Has("q") {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	raw := params.Get("q")

	k := h.cfg.DefaultK
	if kStr := params.Get("k"); kStr != "" {
		parsed, err := strconv.Atoi(kStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "k must be a positive integer")
			return
		}
		k = min(parsed, h.cfg.MaxK)
	}

	rankerName := strings.ToLower(params.Get("ranker"))
	if rankerName == "" {
		rankerName = h.cfg.DefaultRanker
	}
	searcher, ok := h.rankers[rankerName]
	if !ok {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown ranker %q", rankerName))
		return
	}

	resp := searchResponse{Query: raw, Ranker: rankerName, K: k, Results: []scoredDoc{}}
	q, err := h.builder.Build(raw)
	resp.Terms = q.Terms()

	var results []topk.Result
	if err == nil {
		if h.cache != nil {
			results, resp.CacheHit, err = h.cache.GetOrCompute(ctx, searcher.Fingerprint(), q, k, func() ([]topk.Result, error) {
				return searcher.Execute(ctx, q, k)
			})
		} else {
			results, err = searcher.Execute(ctx, q, k)
		}
	}
	elapsed := time.Since(start)
	resp.LatencyMs = float64(elapsed.Microseconds()) / 1000
	h.record(ctx, rankerName, k, q, results, resp.CacheHit, elapsed, err)

	switch {
	case errors.Is(err, apperrors.ErrEmptyQuery):
		h.writeJSON(w, http.StatusOK, resp)
		return
	case err != nil:
		log.Error("search failed", "query", raw, "ranker", rankerName, "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "search failed: "+err.Error())
		return
	}

	for i, res := range results {
		resp.Results = append(resp.Results, scoredDoc{
			Rank:  i + 1,
			DocID: res.DocID,
			Name:  index.DocName(h.index, res.DocID),
			Score: res.Score,
		})
	}
	log.Info("search completed",
		"query", raw,
		"ranker", rankerName,
		"returned", len(resp.Results),
		"cache_hit", resp.CacheHit,
		"latency_ms", resp.LatencyMs,
	)
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) record(
	ctx context.Context,
	rankerName string,
	k int,
	q query.Query,
	results []topk.Result,
	cacheHit bool,
	elapsed time.Duration,
	err error,
) {
	status := events.StatusOf(err)
	if h.metrics != nil {
		h.metrics.QueriesTotal.WithLabelValues(string(status)).Inc()
		h.metrics.QueryLatency.WithLabelValues(rankerName).Observe(elapsed.Seconds())
		h.metrics.ResultsCount.Observe(float64(len(results)))
	}
	if h.tracker == nil {
		return
	}
	ids := make([]uint64, len(results))
	for i, res := range results {
		ids[i] = res.DocID
	}
	terms := make([]string, 0, q.Len())
	for _, tw := range q.Terms() {
		terms = append(terms, tw.Term)
	}
	ev := events.QueryEvent{
		RunID:     logger.RequestID(ctx),
		Query:     q.Raw,
		Terms:     terms,
		Ranker:    rankerName,
		K:         k,
		Returned:  len(results),
		TopDocs:   events.TopDocIDs(ids),
		LatencyMs: float64(elapsed.Microseconds()) / 1000,
		CacheHit:  cacheHit,
		Status:    status,
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	h.tracker.Track(ev)
}

func (h *Handler) Rankers(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.rankers))
	for name := range h.rankers {
		names = append(names, name)
	}
	sort.Strings(names)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"default": h.cfg.DefaultRanker,
		"rankers": names,
	})
}

func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "document id must be a non-negative integer")
		return
	}
	length, err := h.index.DocLength(id)
	if err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}
	unique, err := h.index.UniqueTerms(id)
	if err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"doc_id":       id,
		"name":         index.DocName(h.index, id),
		"length":       length,
		"unique_terms": unique,
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
