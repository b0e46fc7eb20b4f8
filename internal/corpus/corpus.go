// Package corpus provides the document sources an index is built from:
// a line-oriented text file, or a table in PostgreSQL or SQLite.
package corpus

import "context"

// Document is one unit of retrieval. Name is the external identifier
// printed in result lists.
type Document struct {
	Name     string
	Content  string
	Metadata map[string]string
}

// Source streams documents in a stable order; the index assigns document
// ids in that order.
type Source interface {
	Each(ctx context.Context, fn func(Document) error) error
}

// Slice is an in-memory Source.
type Slice []Document

func (s Slice) Each(ctx context.Context, fn func(Document) error) error {
	for _, doc := range s {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return nil
}
