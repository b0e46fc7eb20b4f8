// Package index defines the read-only inverted-index contract consumed by
// the query executor, and an in-memory implementation built from a corpus.
package index

// MetaName is the metadata key holding a document's external name.
const MetaName = "name"

type Posting struct {
	DocID     uint64 `json:"doc_id"`
	Frequency uint64 `json:"tf"`
}

// PostingList is ordered by ascending DocID.
type PostingList []Posting

// Reader is the read-only view of an inverted index. Implementations must
// be safe for concurrent use.
type Reader interface {
	NumDocs() uint64
	AvgDocLength() float64
	TotalCorpusTerms() uint64
	Postings(term string) (PostingList, error)
	// CorpusTermCount is the total number of occurrences of term in the
	// corpus; zero means the term is unknown.
	CorpusTermCount(term string) uint64
	DocLength(docID uint64) (uint64, error)
	UniqueTerms(docID uint64) (uint64, error)
	Metadata(docID uint64, key string) (string, bool)
}

// DocName returns the name metadata of docID, falling back to "" when the
// document has none.
func DocName(r Reader, docID uint64) string {
	name, _ := r.Metadata(docID, MetaName)
	return name
}
