package eval

import (
	"fmt"
	"io"
	"math"
	"sync"
)

// DefaultDepth is the rank cutoff used for P@n in reports.
const DefaultDepth = 10

type QueryScores struct {
	QueryNum     int     `json:"query_num"`
	Precision    float64 `json:"precision"`
	Recall       float64 `json:"recall"`
	F1           float64 `json:"f1"`
	AvgPrecision float64 `json:"avg_precision"`
	NDCG         float64 `json:"ndcg"`
}

type Summary struct {
	Queries       int     `json:"queries"`
	MAP           float64 `json:"map"`
	GMAP          float64 `json:"gmap"`
	MeanPrecision float64 `json:"mean_precision"`
	MeanRecall    float64 `json:"mean_recall"`
	MeanNDCG      float64 `json:"mean_ndcg"`
}

// Report accumulates per-query scores for a run. Only queries that have
// judgments are counted. Safe for concurrent use.
type Report struct {
	qrels Qrels
	depth int

	mu     sync.Mutex
	scores []QueryScores
}

// NewReport measures precision and recall at depth (<= 0 for the full
// ranked list). AP and NDCG always use the full list.
func NewReport(qrels Qrels, depth int) *Report {
	return &Report{qrels: qrels, depth: depth}
}

// Add scores one ranked list of document names. It reports false when the
// query has no judgments.
func (r *Report) Add(queryNum int, ranked []string) (QueryScores, bool) {
	if _, judged := r.qrels[queryNum]; !judged {
		return QueryScores{}, false
	}
	s := QueryScores{
		QueryNum:     queryNum,
		Precision:    r.qrels.Precision(queryNum, ranked, r.depth),
		Recall:       r.qrels.Recall(queryNum, ranked, r.depth),
		F1:           r.qrels.F1(queryNum, ranked, r.depth, 1),
		AvgPrecision: r.qrels.AvgPrecision(queryNum, ranked, 0),
		NDCG:         r.qrels.NDCG(queryNum, ranked, 0),
	}
	r.mu.Lock()
	r.scores = append(r.scores, s)
	r.mu.Unlock()
	return s, true
}

func (r *Report) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum := Summary{Queries: len(r.scores)}
	if sum.Queries == 0 {
		return sum
	}
	var logSum float64
	for _, s := range r.scores {
		sum.MAP += s.AvgPrecision
		sum.MeanPrecision += s.Precision
		sum.MeanRecall += s.Recall
		sum.MeanNDCG += s.NDCG
		logSum += math.Log(math.Max(s.AvgPrecision, gmapFloor))
	}
	n := float64(sum.Queries)
	sum.MAP /= n
	sum.MeanPrecision /= n
	sum.MeanRecall /= n
	sum.MeanNDCG /= n
	sum.GMAP = math.Exp(logSum / n)
	return sum
}

// Write prints the summary as aligned name/value lines.
func (s Summary) Write(w io.Writer, depth int) error {
	_, err := fmt.Fprintf(w,
		"queries\t%d\nMAP\t%.4f\nGMAP\t%.4f\nP@%d\t%.4f\nR@%d\t%.4f\nNDCG\t%.4f\n",
		s.Queries, s.MAP, s.GMAP, depth, s.MeanPrecision, depth, s.MeanRecall, s.MeanNDCG,
	)
	return err
}
