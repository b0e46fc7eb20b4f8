package index

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/internal/corpus"
	apperrors "github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/errors"
)

// Tokenizer matches query.Tokenizer so one analyzer serves both sides.
type Tokenizer interface {
	Tokenize(text string) []string
}

type termEntry struct {
	postings    PostingList
	corpusCount uint64
}

type docEntry struct {
	length   uint64
	unique   uint64
	metadata map[string]string
}

// MemoryIndex is immutable once built and needs no locking for reads.
type MemoryIndex struct {
	terms      map[string]*termEntry
	docs       []docEntry
	totalTerms uint64
}

var _ Reader = (*MemoryIndex)(nil)

// Builder accumulates documents and assigns ids 0, 1, 2, ... in insertion
// order. It is not safe for concurrent use.
type Builder struct {
	tokenizer Tokenizer
	idx       *MemoryIndex
}

func NewBuilder(tokenizer Tokenizer) *Builder {
	return &Builder{
		tokenizer: tokenizer,
		idx:       &MemoryIndex{terms: make(map[string]*termEntry)},
	}
}

// AddDocument tokenizes content and returns the new document's id.
func (b *Builder) AddDocument(content string, metadata map[string]string) uint64 {
	docID := uint64(len(b.idx.docs))
	tokens := b.tokenizer.Tokenize(content)

	termFreqs := make(map[string]uint64)
	for _, term := range tokens {
		termFreqs[term]++
	}
	for term, freq := range termFreqs {
		entry, exists := b.idx.terms[term]
		if !exists {
			entry = &termEntry{}
			b.idx.terms[term] = entry
		}
		// ids grow monotonically so appending keeps postings sorted
		entry.postings = append(entry.postings, Posting{DocID: docID, Frequency: freq})
		entry.corpusCount += freq
	}

	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	b.idx.docs = append(b.idx.docs, docEntry{
		length:   uint64(len(tokens)),
		unique:   uint64(len(termFreqs)),
		metadata: meta,
	})
	b.idx.totalTerms += uint64(len(tokens))
	return docID
}

// Build returns the finished index. The builder must not be used after.
func (b *Builder) Build() *MemoryIndex {
	idx := b.idx
	b.idx = nil
	return idx
}

// Build reads every document from src into a new MemoryIndex.
func Build(ctx context.Context, src corpus.Source, tokenizer Tokenizer) (*MemoryIndex, error) {
	logger := slog.Default().With("component", "index-builder")
	b := NewBuilder(tokenizer)
	err := src.Each(ctx, func(doc corpus.Document) error {
		meta := make(map[string]string, len(doc.Metadata)+1)
		for k, v := range doc.Metadata {
			meta[k] = v
		}
		meta[MetaName] = doc.Name
		docID := b.AddDocument(doc.Content, meta)
		if (docID+1)%10000 == 0 {
			logger.Debug("indexing progress", "docs", docID+1)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: building index: %w", apperrors.ErrConfiguration, err)
	}
	idx := b.Build()
	logger.Info("index built",
		"docs", idx.NumDocs(),
		"terms", idx.NumTerms(),
		"total_tokens", idx.TotalCorpusTerms(),
		"avg_doc_length", idx.AvgDocLength(),
	)
	return idx, nil
}

func (m *MemoryIndex) NumDocs() uint64 { return uint64(len(m.docs)) }

func (m *MemoryIndex) NumTerms() int { return len(m.terms) }

func (m *MemoryIndex) TotalCorpusTerms() uint64 { return m.totalTerms }

func (m *MemoryIndex) AvgDocLength() float64 {
	if len(m.docs) == 0 {
		return 0
	}
	return float64(m.totalTerms) / float64(len(m.docs))
}

// Postings returns the shared, sorted posting list for term. Callers must
// not modify it.
func (m *MemoryIndex) Postings(term string) (PostingList, error) {
	entry, exists := m.terms[term]
	if !exists {
		return nil, nil
	}
	return entry.postings, nil
}

func (m *MemoryIndex) CorpusTermCount(term string) uint64 {
	if entry, exists := m.terms[term]; exists {
		return entry.corpusCount
	}
	return 0
}

// DocFreq is the number of documents containing term.
func (m *MemoryIndex) DocFreq(term string) uint64 {
	if entry, exists := m.terms[term]; exists {
		return uint64(len(entry.postings))
	}
	return 0
}

// TermInfo reports the corpus statistics of term, or ErrUnknownTerm.
func (m *MemoryIndex) TermInfo(term string) (corpusCount, docFreq uint64, err error) {
	entry, exists := m.terms[term]
	if !exists {
		return 0, 0, fmt.Errorf("%w: %q", apperrors.ErrUnknownTerm, term)
	}
	return entry.corpusCount, uint64(len(entry.postings)), nil
}

func (m *MemoryIndex) DocLength(docID uint64) (uint64, error) {
	doc, err := m.doc(docID)
	if err != nil {
		return 0, err
	}
	return doc.length, nil
}

func (m *MemoryIndex) UniqueTerms(docID uint64) (uint64, error) {
	doc, err := m.doc(docID)
	if err != nil {
		return 0, err
	}
	return doc.unique, nil
}

func (m *MemoryIndex) Metadata(docID uint64, key string) (string, bool) {
	doc, err := m.doc(docID)
	if err != nil {
		return "", false
	}
	v, ok := doc.metadata[key]
	return v, ok
}

// Terms lists the vocabulary in sorted order.
func (m *MemoryIndex) Terms() []string {
	terms := make([]string, 0, len(m.terms))
	for term := range m.terms {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

func (m *MemoryIndex) doc(docID uint64) (*docEntry, error) {
	if docID >= uint64(len(m.docs)) {
		return nil, fmt.Errorf("%w: id %d", apperrors.ErrDocumentNotFound, docID)
	}
	return &m.docs[docID], nil
}
