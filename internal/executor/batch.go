package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/internal/events"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/internal/query"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/internal/topk"
	apperrors "github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/resilience"
)

// ResultCache memoises ranked results for a (scope, query, k) triple. The
// scope is an executor fingerprint.
type ResultCache interface {
	GetOrCompute(
		ctx context.Context,
		scope string,
		q query.Query,
		k int,
		compute func() ([]topk.Result, error),
	) ([]topk.Result, bool, error)
}

// Tracker receives one event per finished query.
type Tracker interface {
	Track(event events.QueryEvent)
}

type BatchConfig struct {
	RankerName   string
	K            int
	Workers      int
	QueryTimeout time.Duration
	// StartNumber is the number given to the first query line.
	StartNumber int
}

// QueryResult is the outcome of one query line. Err is set when the query
// failed; Results is then empty.
type QueryResult struct {
	Number   int
	Query    query.Query
	Results  []topk.Result
	Err      error
	CacheHit bool
	Elapsed  time.Duration
}

type Runner struct {
	builder *query.Builder
	exec    *Executor
	cfg     BatchConfig
	cache   ResultCache
	tracker Tracker
	metrics *metrics.Metrics
	runID   string
	logger  *slog.Logger
}

type RunnerOption func(*Runner)

func WithResultCache(c ResultCache) RunnerOption {
	return func(r *Runner) { r.cache = c }
}

func WithTracker(t Tracker) RunnerOption {
	return func(r *Runner) { r.tracker = t }
}

func WithRunMetrics(m *metrics.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

func NewRunner(builder *query.Builder, exec *Executor, cfg BatchConfig, opts ...RunnerOption) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	r := &Runner{
		builder: builder,
		exec:    exec,
		cfg:     cfg,
		runID:   uuid.NewString(),
	}
	r.logger = slog.Default().With("component", "batch-runner", "run_id", r.runID)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) RunID() string { return r.runID }

// Run executes one query per line and calls emit with the results in line
// order, whether or not queries run in parallel. A failed query is logged
// and emitted with empty results; only cancellation of ctx or an emit
// error stops the batch.
func (r *Runner) Run(ctx context.Context, lines []string, emit func(QueryResult) error) error {
	r.logger.Info("batch started",
		"queries", len(lines),
		"workers", r.cfg.Workers,
		"ranker", r.cfg.RankerName,
		"k", r.cfg.K,
	)
	var err error
	if r.cfg.Workers == 1 {
		err = r.runSequential(ctx, lines, emit)
	} else {
		err = r.runParallel(ctx, lines, emit)
	}
	if err != nil {
		return err
	}
	r.logger.Info("batch finished", "queries", len(lines))
	return nil
}

func (r *Runner) runSequential(ctx context.Context, lines []string, emit func(QueryResult) error) error {
	for i, line := range lines {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(r.RunOne(ctx, r.cfg.StartNumber+i, line)); err != nil {
			return err
		}
	}
	return nil
}

// runParallel tags every query with its slot so the emitter can restore
// input order while workers finish out of order.
func (r *Runner) runParallel(ctx context.Context, lines []string, emit func(QueryResult) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	slots := make([]chan QueryResult, len(lines))
	for i := range slots {
		slots[i] = make(chan QueryResult, 1)
	}

	var g errgroup.Group
	g.SetLimit(r.cfg.Workers)
	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		for i, line := range lines {
			if ctx.Err() != nil {
				return
			}
			g.Go(func() error {
				slots[i] <- r.RunOne(ctx, r.cfg.StartNumber+i, line)
				return nil
			})
		}
	}()

	var emitErr error
emitLoop:
	for i := range slots {
		select {
		case res := <-slots[i]:
			if err := emit(res); err != nil {
				emitErr = err
				break emitLoop
			}
		case <-ctx.Done():
			emitErr = ctx.Err()
			break emitLoop
		}
	}
	cancel()
	<-dispatched
	_ = g.Wait()
	return emitErr
}

// RunOne builds and executes a single query line.
func (r *Runner) RunOne(ctx context.Context, num int, raw string) QueryResult {
	start := time.Now()
	res := QueryResult{Number: num, Results: []topk.Result{}}

	q, err := r.builder.Build(raw)
	res.Query = q
	if err == nil {
		var (
			results  []topk.Result
			cacheHit bool
		)
		err = resilience.WithTimeout(ctx, r.cfg.QueryTimeout, fmt.Sprintf("query %d", num), func(ctx context.Context) error {
			var execErr error
			results, cacheHit, execErr = r.execute(ctx, q)
			return execErr
		})
		if err == nil {
			res.Results = results
			res.CacheHit = cacheHit
		}
	}
	res.Err = err
	res.Elapsed = time.Since(start)
	r.record(res)
	return res
}

func (r *Runner) execute(ctx context.Context, q query.Query) ([]topk.Result, bool, error) {
	if r.cache == nil {
		results, err := r.exec.Execute(ctx, q, r.cfg.K)
		return results, false, err
	}
	return r.cache.GetOrCompute(ctx, r.exec.Fingerprint(), q, r.cfg.K, func() ([]topk.Result, error) {
		return r.exec.Execute(ctx, q, r.cfg.K)
	})
}

func (r *Runner) record(res QueryResult) {
	status := events.StatusOf(res.Err)
	switch {
	case res.Err == nil:
	case apperrors.Recoverable(res.Err) || errors.Is(res.Err, context.Canceled):
		r.logger.Warn("query skipped", "query_num", res.Number, "error", res.Err)
	default:
		r.logger.Error("query failed", "query_num", res.Number, "error", res.Err)
	}

	if r.metrics != nil {
		r.metrics.QueriesTotal.WithLabelValues(string(status)).Inc()
		r.metrics.QueryLatency.WithLabelValues(r.cfg.RankerName).Observe(res.Elapsed.Seconds())
		r.metrics.ResultsCount.Observe(float64(len(res.Results)))
	}

	if r.tracker != nil {
		ids := make([]uint64, len(res.Results))
		for i, sr := range res.Results {
			ids[i] = sr.DocID
		}
		terms := make([]string, 0, res.Query.Len())
		for _, tw := range res.Query.Terms() {
			terms = append(terms, tw.Term)
		}
		ev := events.QueryEvent{
			RunID:     r.runID,
			QueryNum:  res.Number,
			Query:     res.Query.Raw,
			Terms:     terms,
			Ranker:    r.cfg.RankerName,
			K:         r.cfg.K,
			Returned:  len(res.Results),
			TopDocs:   events.TopDocIDs(ids),
			LatencyMs: float64(res.Elapsed.Microseconds()) / 1000,
			CacheHit:  res.CacheHit,
			Status:    status,
			Timestamp: time.Now().UTC(),
		}
		if res.Err != nil {
			ev.Error = res.Err.Error()
		}
		r.tracker.Track(ev)
	}
}
