// Package events records one event per executed query, streams events to
// Kafka and aggregates them into serving statistics.
package events

import (
	"errors"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/errors"
)

type Status string

const (
	StatusOK      Status = "ok"
	StatusEmpty   Status = "empty_query"
	StatusTimeout Status = "timeout"
	StatusError   Status = "error"
)

// maxTopDocs bounds TopDocs on published events.
const maxTopDocs = 10

type QueryEvent struct {
	RunID     string    `json:"run_id"`
	QueryNum  int       `json:"query_num"`
	Query     string    `json:"query"`
	Terms     []string  `json:"terms"`
	Ranker    string    `json:"ranker"`
	K         int       `json:"k"`
	Returned  int       `json:"returned"`
	TopDocs   []uint64  `json:"top_docs,omitempty"`
	LatencyMs float64   `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TopDocIDs keeps at most the first ten ids.
func TopDocIDs(ids []uint64) []uint64 {
	if len(ids) > maxTopDocs {
		ids = ids[:maxTopDocs]
	}
	out := make([]uint64, len(ids))
	copy(out, ids)
	return out
}

// StatusOf classifies the error a query finished with.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, apperrors.ErrEmptyQuery):
		return StatusEmpty
	case errors.Is(err, apperrors.ErrTimeout):
		return StatusTimeout
	default:
		return StatusError
	}
}
