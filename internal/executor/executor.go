// Package executor scores a query against a read-only index with a
// pluggable ranking function and returns the k best documents.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/internal/filter"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/internal/index"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/internal/query"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/internal/ranking"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/internal/topk"
	apperrors "github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/metrics"
)

// cancellation is polled once per this many postings
const checkEvery = 1024

// Executor is safe for concurrent use as long as the index is.
type Executor struct {
	index       index.Reader
	ranker      ranking.RankingFunction
	filter      filter.Func
	metrics     *metrics.Metrics
	logger      *slog.Logger
	scope       string
	fingerprint string
}

type Option func(*Executor)

// WithFilter restricts scoring to documents admitted by f.
func WithFilter(f filter.Func) Option {
	return func(e *Executor) { e.filter = f }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithCacheScope adds scope to the executor's fingerprint. Use it for
// anything that changes scores but is invisible to the executor itself,
// such as the corpus identity or the document filter.
func WithCacheScope(scope string) Option {
	return func(e *Executor) { e.scope = scope }
}

func New(idx index.Reader, ranker ranking.RankingFunction, opts ...Option) *Executor {
	e := &Executor{
		index:  idx,
		ranker: ranker,
		logger: slog.Default().With("component", "query-executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.fingerprint = fmt.Sprintf("%s|%T%+v|docs=%d|terms=%d",
		e.scope, ranker, ranker, idx.NumDocs(), idx.TotalCorpusTerms())
	return e
}

// Fingerprint identifies what this executor's scores depend on: the ranker
// type and its parameters, the index size and the cache scope. Results
// cached under one fingerprint are valid for every executor with the same
// fingerprint.
func (e *Executor) Fingerprint() string {
	return e.fingerprint
}

// Index returns the index the executor reads from.
func (e *Executor) Index() index.Reader {
	return e.index
}

// Execute scores every posting of every known query term, sums scores per
// document and returns the k best in ranked order. Terms that never occur
// in the corpus are skipped and never reach the ranking function. An empty
// query yields an empty list. A document of zero length, or a corpus with a
// non-positive average length, aborts the query with
// ErrMalformedStatistics.
func (e *Executor) Execute(ctx context.Context, q query.Query, k int) ([]topk.Result, error) {
	if k < 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "k must be >= 0, got %d", k)
	}
	if q.Empty() || k == 0 {
		return []topk.Result{}, nil
	}

	numDocs := e.index.NumDocs()
	if numDocs == 0 {
		return []topk.Result{}, nil
	}
	avgDL := e.index.AvgDocLength()
	if !(avgDL > 0) || math.IsInf(avgDL, 0) {
		return nil, apperrors.Newf(apperrors.ErrMalformedStatistics, http.StatusServiceUnavailable,
			"average document length is %v", avgDL)
	}

	initial, hasInitial := e.ranker.(ranking.InitialScorer)
	scores := make(map[uint64]float64)
	queryLength := q.Length()
	var scored, skipped int

	for _, tw := range q.Terms() {
		if err := ctx.Err(); err != nil {
			return nil, contextError(err)
		}
		corpusCount := e.index.CorpusTermCount(tw.Term)
		if corpusCount == 0 {
			skipped++
			e.logger.Debug("skipping term absent from corpus", "term", tw.Term)
			continue
		}
		postings, err := e.index.Postings(tw.Term)
		if err != nil {
			return nil, fmt.Errorf("fetching postings for %q: %w", tw.Term, err)
		}

		for i, p := range postings {
			if i%checkEvery == checkEvery-1 {
				if err := ctx.Err(); err != nil {
					return nil, contextError(err)
				}
			}
			if !e.filter.Admit(p.DocID) {
				continue
			}
			docSize, err := e.index.DocLength(p.DocID)
			if err != nil {
				return nil, fmt.Errorf("looking up length of document %d: %w", p.DocID, err)
			}
			if docSize == 0 {
				return nil, apperrors.Newf(apperrors.ErrMalformedStatistics, http.StatusServiceUnavailable,
					"document %d has zero length", p.DocID)
			}
			unique, err := e.index.UniqueTerms(p.DocID)
			if err != nil {
				return nil, fmt.Errorf("looking up unique terms of document %d: %w", p.DocID, err)
			}

			sd := ranking.DocumentStatistics{
				NumDocs:         numDocs,
				TotalTerms:      e.index.TotalCorpusTerms(),
				AvgDocLength:    avgDL,
				CorpusTermCount: corpusCount,
				DocCount:        uint64(len(postings)),
				DocID:           p.DocID,
				DocTermCount:    p.Frequency,
				DocSize:         docSize,
				DocUniqueTerms:  unique,
				QueryTermWeight: tw.Weight,
				QueryLength:     queryLength,
			}
			if hasInitial {
				if _, seen := scores[p.DocID]; !seen {
					scores[p.DocID] = initial.InitialScore(sd)
				}
			}
			scores[p.DocID] += e.ranker.ScoreOne(sd)
			scored++
		}
	}

	if e.metrics != nil {
		e.metrics.PostingsScored.Add(float64(scored))
		e.metrics.TermsSkipped.Add(float64(skipped))
	}

	results := topk.Select(scores, k)
	e.logger.Debug("query executed",
		"query", q.String(),
		"postings_scored", scored,
		"terms_skipped", skipped,
		"candidates", len(scores),
		"results", len(results),
	)
	return results, nil
}

func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", apperrors.ErrTimeout, err)
	}
	return err
}
