// Package ranking defines the scoring contract shared by every retrieval
// formula and the built-in formulas themselves. A RankingFunction turns the
// statistics of one (query term, document) pair into a partial score; the
// executor sums partial scores per document.
package ranking

import (
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/errors"
)

// DocumentStatistics bundles the corpus-level and document-level counters
// for a single (query term, posting) pair.
type DocumentStatistics struct {
	// Corpus level.
	NumDocs      uint64
	TotalTerms   uint64
	AvgDocLength float64

	// Term level. CorpusTermCount is the total number of occurrences of the
	// term across the corpus; DocCount is the number of documents that
	// contain it.
	CorpusTermCount uint64
	DocCount        uint64

	// Document level.
	DocID          uint64
	DocTermCount   uint64
	DocSize        uint64
	DocUniqueTerms uint64

	// Query level.
	QueryTermWeight float64
	QueryLength     float64
}

// RankingFunction scores one posting. Implementations must be deterministic,
// free of side effects and safe for concurrent use.
type RankingFunction interface {
	ScoreOne(sd DocumentStatistics) float64
}

// InitialScorer is implemented by formulas that contribute a per-document
// constant once, the first time a document is scored for a query.
type InitialScorer interface {
	InitialScore(sd DocumentStatistics) float64
}

// Func adapts an ordinary function to the RankingFunction interface.
type Func func(sd DocumentStatistics) float64

func (f Func) ScoreOne(sd DocumentStatistics) float64 {
	return f(sd)
}

// Params holds tunable constants keyed by their conventional names
// ("c", "k1", "b", "k3", "s", "mu", "lambda", "delta").
type Params map[string]float64

func (p Params) get(name string, def float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

type constructor func(p Params) (RankingFunction, error)

var builtins = map[string]constructor{
	"pl2": func(p Params) (RankingFunction, error) {
		return NewPL2(p.get("c", DefaultPL2C))
	},
	"bm25": func(p Params) (RankingFunction, error) {
		return NewOkapiBM25(p.get("k1", DefaultBM25K1), p.get("b", DefaultBM25B), p.get("k3", DefaultBM25K3))
	},
	"pivoted-length": func(p Params) (RankingFunction, error) {
		return NewPivotedLength(p.get("s", DefaultPivotedS))
	},
	"dirichlet-prior": func(p Params) (RankingFunction, error) {
		return NewDirichletPrior(p.get("mu", DefaultDirichletMu))
	},
	"jelinek-mercer": func(p Params) (RankingFunction, error) {
		return NewJelinekMercer(p.get("lambda", DefaultJelinekMercerLambda))
	},
	"absolute-discount": func(p Params) (RankingFunction, error) {
		return NewAbsoluteDiscount(p.get("delta", DefaultAbsoluteDiscountDelta))
	},
}

// New constructs the built-in ranking function registered under method.
// Missing params fall back to each formula's default.
func New(method string, params Params) (RankingFunction, error) {
	ctor, ok := builtins[strings.ToLower(strings.TrimSpace(method))]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", apperrors.ErrUnknownRanker, method, strings.Join(Names(), ", "))
	}
	return ctor(params)
}

// Names lists the registered built-in methods in sorted order.
func Names() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func invalidParam(name string, value float64, constraint string) error {
	return fmt.Errorf("%w: ranking parameter %s=%v must be %s", apperrors.ErrInvalidInput, name, value, constraint)
}
