// Package query converts raw query text, or caller-supplied weighted terms,
// into the term-weight representation consumed by the executor.
package query

import (
	"fmt"
	"math"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/errors"
)

type TermWeight struct {
	Term   string  `json:"term"`
	Weight float64 `json:"weight"`
}

// Query is an ordered list of distinct terms. Order follows first
// occurrence in the input and only affects traversal, not scores.
type Query struct {
	Raw   string
	terms []TermWeight
}

// Terms returns a copy of the weighted terms.
func (q Query) Terms() []TermWeight {
	out := make([]TermWeight, len(q.terms))
	copy(out, q.terms)
	return out
}

func (q Query) Len() int { return len(q.terms) }

func (q Query) Empty() bool { return len(q.terms) == 0 }

// Length is the sum of term weights, i.e. the number of kept tokens for a
// query built from text.
func (q Query) Length() float64 {
	var total float64
	for _, tw := range q.terms {
		total += tw.Weight
	}
	return total
}

// String renders the query canonically, used for logs and cache keys.
func (q Query) String() string {
	parts := make([]string, len(q.terms))
	for i, tw := range q.terms {
		parts[i] = fmt.Sprintf("%s^%g", tw.Term, tw.Weight)
	}
	return strings.Join(parts, " ")
}

// Tokenizer is the text-analysis collaborator. It must preserve order and
// keep duplicates.
type Tokenizer interface {
	Tokenize(text string) []string
}

type Builder struct {
	tokenizer Tokenizer
}

func NewBuilder(tokenizer Tokenizer) *Builder {
	return &Builder{tokenizer: tokenizer}
}

// Build tokenizes raw and weights each distinct term by its occurrence
// count. When no terms survive it returns the empty query together with
// ErrEmptyQuery; executing that query yields no results.
func (b *Builder) Build(raw string) (Query, error) {
	q := Query{Raw: raw}
	positions := make(map[string]int)
	for _, term := range b.tokenizer.Tokenize(raw) {
		if idx, seen := positions[term]; seen {
			q.terms[idx].Weight++
			continue
		}
		positions[term] = len(q.terms)
		q.terms = append(q.terms, TermWeight{Term: term, Weight: 1})
	}
	if q.Empty() {
		return q, apperrors.ErrEmptyQuery
	}
	return q, nil
}

// FromWeights builds a query from pre-weighted terms. Repeated terms have
// their weights summed.
func FromWeights(raw string, pairs []TermWeight) (Query, error) {
	q := Query{Raw: raw}
	positions := make(map[string]int)
	for _, tw := range pairs {
		if tw.Term == "" {
			continue
		}
		if tw.Weight < 0 || math.IsNaN(tw.Weight) || math.IsInf(tw.Weight, 0) {
			return Query{}, fmt.Errorf("%w: weight %v for term %q", apperrors.ErrInvalidInput, tw.Weight, tw.Term)
		}
		if idx, seen := positions[tw.Term]; seen {
			q.terms[idx].Weight += tw.Weight
			continue
		}
		positions[tw.Term] = len(q.terms)
		q.terms = append(q.terms, tw)
	}
	if q.Empty() {
		return q, apperrors.ErrEmptyQuery
	}
	return q, nil
}
