package eval

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/errors"
)

const sampleQrels = `
1 0 d1 1
1 0 d3 2
1 0 d4 0
1 0 d7 1
2 d2 1
`

func parse(t *testing.T) Qrels {
	t.Helper()
	q, err := ParseQrels(strings.NewReader(sampleQrels))
	require.NoError(t, err)
	return q
}

func TestParseQrels(t *testing.T) {
	q := parse(t)
	assert.Len(t, q, 2)
	assert.Equal(t, 3, q.Relevant(1))
	assert.Equal(t, 1, q.Relevant(2))
	assert.Equal(t, 0, q.Relevant(99))
	assert.Equal(t, 2, q[1]["d3"])
}

func TestParseQrelsErrors(t *testing.T) {
	for name, input := range map[string]string{
		"field count": "1 d1\n",
		"query id":    "x 0 d1 1\n",
		"relevance":   "1 0 d1 yes\n",
	} {
		_, err := ParseQrels(strings.NewReader(input))
		assert.ErrorIs(t, err, apperrors.ErrConfiguration, name)
	}
}

func TestLoadQrels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qrels.txt")
	require.NoError(t, os.WriteFile(path, []byte(sampleQrels), 0o644))
	q, err := LoadQrels(path)
	require.NoError(t, err)
	assert.Equal(t, 3, q.Relevant(1))

	_, err = LoadQrels(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
}

func TestPrecisionRecallF1(t *testing.T) {
	q := parse(t)
	ranked := []string{"d1", "d2", "d3", "d4"}

	assert.InDelta(t, 0.5, q.Precision(1, ranked, 0), 1e-12)
	assert.InDelta(t, 0.5, q.Precision(1, ranked, 2), 1e-12)
	assert.InDelta(t, 2.0/3.0, q.Recall(1, ranked, 0), 1e-12)
	// at depth 2 only two relevant documents are reachable
	assert.InDelta(t, 0.5, q.Recall(1, ranked, 2), 1e-12)

	p, r := 0.5, 2.0/3.0
	assert.InDelta(t, 2*p*r/(p+r), q.F1(1, ranked, 0, 1), 1e-12)

	assert.Zero(t, q.Precision(1, nil, 0))
	assert.Zero(t, q.Recall(99, ranked, 0))
	assert.Zero(t, q.F1(1, []string{"d9"}, 0, 1))
}

func TestAvgPrecision(t *testing.T) {
	q := parse(t)
	// hits at ranks 1 and 3 out of 3 relevant
	ranked := []string{"d1", "d2", "d3", "d4"}
	assert.InDelta(t, (1.0+2.0/3.0)/3.0, q.AvgPrecision(1, ranked, 0), 1e-12)

	perfect := []string{"d1", "d3", "d7"}
	assert.InDelta(t, 1.0, q.AvgPrecision(1, perfect, 0), 1e-12)
	assert.Zero(t, q.AvgPrecision(99, perfect, 0))
}

func TestNDCG(t *testing.T) {
	q := parse(t)

	ideal := []string{"d3", "d1", "d7"}
	assert.InDelta(t, 1.0, q.NDCG(1, ideal, 0), 1e-12)

	ranked := []string{"d1", "d3"}
	dcg := 1.0/math.Log2(2) + 3.0/math.Log2(3)
	idcg := 3.0/math.Log2(2) + 1.0/math.Log2(3) + 1.0/math.Log2(4)
	assert.InDelta(t, dcg/idcg, q.NDCG(1, ranked, 0), 1e-12)

	assert.Zero(t, q.NDCG(99, ranked, 0))
}

func TestReportSummary(t *testing.T) {
	r := NewReport(parse(t), 2)

	_, ok := r.Add(5, []string{"d1"})
	assert.False(t, ok, "unjudged queries are ignored")

	s1, ok := r.Add(1, []string{"d1", "d3", "d7"})
	require.True(t, ok)
	assert.InDelta(t, 1.0, s1.AvgPrecision, 1e-12)
	assert.InDelta(t, 1.0, s1.Precision, 1e-12)

	s2, ok := r.Add(2, []string{"d9"})
	require.True(t, ok)
	assert.Zero(t, s2.AvgPrecision)

	sum := r.Summary()
	assert.Equal(t, 2, sum.Queries)
	assert.InDelta(t, 0.5, sum.MAP, 1e-12)
	assert.InDelta(t, math.Sqrt(gmapFloor), sum.GMAP, 1e-12)

	var buf bytes.Buffer
	require.NoError(t, sum.Write(&buf, 2))
	assert.Contains(t, buf.String(), "MAP\t0.5000\n")
	assert.Contains(t, buf.String(), "P@2\t0.5000\n")
}

func TestEmptyReport(t *testing.T) {
	assert.Equal(t, Summary{}, NewReport(Qrels{}, 10).Summary())
}
