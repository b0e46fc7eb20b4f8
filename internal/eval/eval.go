// Package eval scores ranked runs against relevance judgments (qrels).
package eval

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/errors"
)

// gmapFloor replaces zero average precision when taking logs for GMAP.
const gmapFloor = 1e-6

// Qrels maps query number to judged document names and their graded
// relevance. Grades <= 0 are non-relevant.
type Qrels map[int]map[string]int

// LoadQrels reads a qrels file from path.
func LoadQrels(path string) (Qrels, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening qrels: %w", apperrors.ErrConfiguration, err)
	}
	defer f.Close()
	return ParseQrels(f)
}

// ParseQrels accepts TREC lines `<qid> <iter> <docno> <rel>` as well as
// three-column `<qid> <docno> <rel>` lines. Blank lines are ignored.
func ParseQrels(r io.Reader) (Qrels, error) {
	qrels := make(Qrels)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		var qidField, docField, relField string
		switch len(fields) {
		case 3:
			qidField, docField, relField = fields[0], fields[1], fields[2]
		case 4:
			qidField, docField, relField = fields[0], fields[2], fields[3]
		default:
			return nil, fmt.Errorf("%w: qrels line %d: expected 3 or 4 fields, got %d",
				apperrors.ErrConfiguration, lineNo, len(fields))
		}
		qid, err := strconv.Atoi(qidField)
		if err != nil {
			return nil, fmt.Errorf("%w: qrels line %d: bad query id %q", apperrors.ErrConfiguration, lineNo, qidField)
		}
		rel, err := strconv.Atoi(relField)
		if err != nil {
			return nil, fmt.Errorf("%w: qrels line %d: bad relevance %q", apperrors.ErrConfiguration, lineNo, relField)
		}
		judged, ok := qrels[qid]
		if !ok {
			judged = make(map[string]int)
			qrels[qid] = judged
		}
		judged[docField] = rel
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading qrels: %w", apperrors.ErrConfiguration, err)
	}
	return qrels, nil
}

// Relevant counts the documents judged relevant for qid.
func (q Qrels) Relevant(qid int) int {
	n := 0
	for _, rel := range q[qid] {
		if rel > 0 {
			n++
		}
	}
	return n
}

func (q Qrels) grade(qid int, doc string) int {
	return q[qid][doc]
}

// cutoff truncates ranked to the first n entries; n <= 0 keeps all.
func cutoff(ranked []string, n int) []string {
	if n > 0 && n < len(ranked) {
		return ranked[:n]
	}
	return ranked
}

func (q Qrels) relevantRetrieved(qid int, ranked []string) int {
	n := 0
	for _, doc := range ranked {
		if q.grade(qid, doc) > 0 {
			n++
		}
	}
	return n
}

// Precision is relevant-retrieved over retrieved within the first n.
func (q Qrels) Precision(qid int, ranked []string, n int) float64 {
	ranked = cutoff(ranked, n)
	if len(ranked) == 0 {
		return 0
	}
	return float64(q.relevantRetrieved(qid, ranked)) / float64(len(ranked))
}

// Recall is relevant-retrieved within the first n over the number of
// relevant documents reachable at that depth.
func (q Qrels) Recall(qid int, ranked []string, n int) float64 {
	denom := q.Relevant(qid)
	if n > 0 && n < denom {
		denom = n
	}
	if denom == 0 {
		return 0
	}
	return float64(q.relevantRetrieved(qid, cutoff(ranked, n))) / float64(denom)
}

// F1 is the F-beta measure of Precision and Recall; beta 1 weights them
// equally.
func (q Qrels) F1(qid int, ranked []string, n int, beta float64) float64 {
	p := q.Precision(qid, ranked, n)
	r := q.Recall(qid, ranked, n)
	b2 := beta * beta
	if p+r == 0 {
		return 0
	}
	return (1 + b2) * p * r / (b2*p + r)
}

// AvgPrecision averages the precision at each relevant hit within the
// first n, over the relevant documents reachable at that depth.
func (q Qrels) AvgPrecision(qid int, ranked []string, n int) float64 {
	denom := q.Relevant(qid)
	if n > 0 && n < denom {
		denom = n
	}
	if denom == 0 {
		return 0
	}
	var sum float64
	hits := 0
	for i, doc := range cutoff(ranked, n) {
		if q.grade(qid, doc) > 0 {
			hits++
			sum += float64(hits) / float64(i+1)
		}
	}
	return sum / float64(denom)
}

// NDCG uses gain 2^rel - 1 discounted by log2(rank + 1).
func (q Qrels) NDCG(qid int, ranked []string, n int) float64 {
	var dcg float64
	for i, doc := range cutoff(ranked, n) {
		if rel := q.grade(qid, doc); rel > 0 {
			dcg += (math.Pow(2, float64(rel)) - 1) / math.Log2(float64(i+2))
		}
	}

	grades := make([]int, 0, len(q[qid]))
	for _, rel := range q[qid] {
		if rel > 0 {
			grades = append(grades, rel)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(grades)))
	var idcg float64
	for i, rel := range grades {
		if n > 0 && i >= n {
			break
		}
		idcg += (math.Pow(2, float64(rel)) - 1) / math.Log2(float64(i+2))
	}
	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}
