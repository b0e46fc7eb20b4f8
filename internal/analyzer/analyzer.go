// Package analyzer turns raw text into index terms. Text is NFKC
// normalised and lower-cased, split on UAX #29 word boundaries, filtered
// against a stop-word list, and stemmed with the Snowball English stemmer.
package analyzer

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/clipperhouse/uax29/v2/words"
	"github.com/kljensen/snowball/english"
	"golang.org/x/text/unicode/norm"
)

var defaultStopWords = []string{
	"a", "an", "and", "are", "as", "at",
	"be", "by", "for", "from", "has", "he",
	"in", "is", "it", "its", "of", "on",
	"or", "that", "the", "to", "was", "were",
	"will", "with", "this", "but", "they",
	"have", "had", "what", "when", "where",
	"who", "which", "their", "if", "each",
	"do", "not", "no", "so", "can",
}

// Token is a normalised term and its ordinal among the kept terms.
type Token struct {
	Term     string
	Position int
}

type Analyzer struct {
	stopWords map[string]struct{}
	stem      bool
	minLen    int
}

type Option func(*Analyzer)

// WithStopWords replaces the default stop-word list. An empty list keeps
// every word.
func WithStopWords(list []string) Option {
	return func(a *Analyzer) {
		a.stopWords = toSet(list)
	}
}

func WithoutStemming() Option {
	return func(a *Analyzer) { a.stem = false }
}

// WithMinLength drops words shorter than n runes.
func WithMinLength(n int) Option {
	return func(a *Analyzer) { a.minLen = n }
}

func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		stopWords: toSet(defaultStopWords),
		stem:      true,
		minLen:    2,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze returns the kept tokens in text order. Duplicates are retained.
func (a *Analyzer) Analyze(text string) []Token {
	text = strings.ToLower(norm.NFKC.String(text))
	segments := words.FromString(text)
	tokens := make([]Token, 0, 16)
	pos := 0
	for segments.Next() {
		word := segments.Value()
		if !isWord(word) {
			continue
		}
		if len([]rune(word)) < a.minLen {
			continue
		}
		if _, isStop := a.stopWords[word]; isStop {
			continue
		}
		if a.stem {
			word = english.Stem(word, false)
		}
		if word == "" {
			continue
		}
		tokens = append(tokens, Token{Term: word, Position: pos})
		pos++
	}
	return tokens
}

// Tokenize is Analyze without positions.
func (a *Analyzer) Tokenize(text string) []string {
	tokens := a.Analyze(text)
	terms := make([]string, len(tokens))
	for i, tok := range tokens {
		terms[i] = tok.Term
	}
	return terms
}

// isWord reports whether a segment carries at least one letter or digit;
// UAX #29 also yields whitespace and punctuation segments.
func isWord(segment string) bool {
	for _, r := range segment {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// LoadStopWords reads one stop word per line. Blank lines and lines
// starting with '#' are ignored.
func LoadStopWords(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening stop-word list: %w", err)
	}
	defer f.Close()

	var list []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		w := strings.TrimSpace(scanner.Text())
		if w == "" || strings.HasPrefix(w, "#") {
			continue
		}
		list = append(list, w)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading stop-word list %s: %w", path, err)
	}
	return list, nil
}

func toSet(list []string) map[string]struct{} {
	set := make(map[string]struct{}, len(list))
	for _, w := range list {
		set[strings.ToLower(w)] = struct{}{}
	}
	return set
}
