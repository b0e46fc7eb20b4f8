// Package engine assembles the analyzer, corpus source and in-memory index
// described by a Config, and hands out executors over the result.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/internal/analyzer"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/internal/executor"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/internal/filter"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/internal/index"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/internal/query"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/internal/ranking"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/postgres"
)

type Engine struct {
	Analyzer *analyzer.Analyzer
	Builder  *query.Builder
	Index    *index.MemoryIndex
	Filter   filter.Func

	scope   string
	metrics *metrics.Metrics
}

// Open builds the index for cfg. Every failure wraps
// apperrors.ErrConfiguration. m may be nil.
func Open(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*Engine, error) {
	start := time.Now()
	an, err := NewAnalyzer(cfg.Corpus)
	if err != nil {
		return nil, err
	}

	src, closeSource, err := openSource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer closeSource()

	idx, err := index.Build(ctx, src, an)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.IndexDocuments.Set(float64(idx.NumDocs()))
	}
	slog.Info("engine ready",
		"corpus", cfg.Corpus.Type,
		"docs", idx.NumDocs(),
		"excluded", len(cfg.Search.ExcludeDocIDs),
		"build_time", time.Since(start).String(),
	)

	e := &Engine{
		Analyzer: an,
		Builder:  query.NewBuilder(an),
		Index:    idx,
		scope:    corpusScope(cfg),
		metrics:  m,
	}
	if len(cfg.Search.ExcludeDocIDs) > 0 {
		e.Filter = filter.DenyIDs(cfg.Search.ExcludeDocIDs)
	}
	return e, nil
}

// NewAnalyzer configures stop words and stemming from the corpus section.
func NewAnalyzer(cfg config.CorpusConfig) (*analyzer.Analyzer, error) {
	var opts []analyzer.Option
	if cfg.StopWords != "" {
		list, err := analyzer.LoadStopWords(cfg.StopWords)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", apperrors.ErrConfiguration, err)
		}
		opts = append(opts, analyzer.WithStopWords(list))
	}
	if !cfg.Stemming() {
		opts = append(opts, analyzer.WithoutStemming())
	}
	return analyzer.New(opts...), nil
}

// Executor returns an executor for the named ranker with the engine's
// document filter and metrics applied.
func (e *Engine) Executor(method string, params ranking.Params) (*executor.Executor, error) {
	ranker, err := ranking.New(method, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrConfiguration, err)
	}
	opts := []executor.Option{
		executor.WithLogger(slog.Default().With("component", "executor", "ranker", strings.ToLower(method))),
		executor.WithCacheScope(e.scope + "|" + rankerScope(method, params)),
	}
	if e.Filter != nil {
		opts = append(opts, executor.WithFilter(e.Filter))
	}
	if e.metrics != nil {
		opts = append(opts, executor.WithMetrics(e.metrics))
	}
	return executor.New(e.Index, ranker, opts...), nil
}

// corpusScope names the corpus, the analysis applied to it and the
// excluded documents, everything besides the ranker that changes scores.
func corpusScope(cfg *config.Config) string {
	c := cfg.Corpus
	var b strings.Builder
	fmt.Fprintf(&b, "corpus=%s", c.Type)
	switch c.Type {
	case config.CorpusPostgres:
		fmt.Fprintf(&b, ":%s:%d/%s", cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.Database)
	default:
		fmt.Fprintf(&b, ":%s", c.Path)
	}
	if c.Type != config.CorpusLine {
		fmt.Fprintf(&b, ":%s(%s,%s)", c.Table, c.NameColumn, c.ContentColumn)
	}
	fmt.Fprintf(&b, "|stop=%s|stem=%t", c.StopWords, c.Stemming())

	if len(cfg.Search.ExcludeDocIDs) > 0 {
		ids := slices.Clone(cfg.Search.ExcludeDocIDs)
		slices.Sort(ids)
		ids = slices.Compact(ids)
		h := sha256.New()
		for _, id := range ids {
			_ = binary.Write(h, binary.BigEndian, id)
		}
		fmt.Fprintf(&b, "|exclude=%x", h.Sum(nil)[:8])
	}
	return b.String()
}

// rankerScope is the lowercased method with its parameters in name order.
func rankerScope(method string, params ranking.Params) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(method))
	for _, name := range slices.Sorted(maps.Keys(params)) {
		fmt.Fprintf(&b, ",%s=%s", name, strconv.FormatFloat(params[name], 'g', -1, 64))
	}
	return b.String()
}

func openSource(ctx context.Context, cfg *config.Config) (corpus.Source, func(), error) {
	noop := func() {}
	switch cfg.Corpus.Type {
	case config.CorpusLine:
		return corpus.NewLineSource(cfg.Corpus.Path), noop, nil
	case config.CorpusSQLite:
		db, err := corpus.OpenSQLite(cfg.Corpus.Path)
		if err != nil {
			return nil, noop, fmt.Errorf("%w: %w", apperrors.ErrConfiguration, err)
		}
		src, err := corpus.NewSQLSource(db, cfg.Corpus.Table, cfg.Corpus.NameColumn, cfg.Corpus.ContentColumn)
		if err != nil {
			db.Close()
			return nil, noop, fmt.Errorf("%w: %w", apperrors.ErrConfiguration, err)
		}
		return src, func() { db.Close() }, nil
	case config.CorpusPostgres:
		client, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, noop, fmt.Errorf("%w: %w", apperrors.ErrConfiguration, err)
		}
		src, err := corpus.NewSQLSource(client.DB, cfg.Corpus.Table, cfg.Corpus.NameColumn, cfg.Corpus.ContentColumn)
		if err != nil {
			client.Close()
			return nil, noop, fmt.Errorf("%w: %w", apperrors.ErrConfiguration, err)
		}
		return src, func() { client.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("%w: unknown corpus type %q", apperrors.ErrConfiguration, cfg.Corpus.Type)
	}
}
