package output

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/internal/topk"
	apperrors "github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/errors"
)

type nameMap map[uint64]string

func (m nameMap) Metadata(docID uint64, key string) (string, bool) {
	if key != "name" {
		return "", false
	}
	name, ok := m[docID]
	return name, ok
}

var results = []topk.Result{
	{DocID: 4, Score: 2.394808321},
	{DocID: 9, Score: 1.5},
	{DocID: 11, Score: 0},
}

func TestTRECFormat(t *testing.T) {
	f, err := New("trec", nameMap{4: "FT911-3", 9: "LA0101-77"}, "")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.Format(&buf, 301, results))
	assert.Equal(t,
		"301\t_\tFT911-3\t1\t2.394808321\tMeTA\n"+
			"301\t_\tLA0101-77\t2\t1.5\tMeTA\n"+
			"301\t_\t11\t3\t0\tMeTA\n",
		buf.String())
}

func TestTRECCustomTag(t *testing.T) {
	f, err := New("TREC", nil, "pl2-run")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.Format(&buf, 7, results[:1]))
	assert.Equal(t, "7\t_\t4\t1\t2.394808321\tpl2-run\n", buf.String())
}

func TestHumanFormat(t *testing.T) {
	f, err := New("human", nameMap{4: "intro.txt", 9: "notes.txt", 11: "empty.txt"}, "")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.Format(&buf, 1, results))
	assert.Equal(t,
		"1. intro.txt (id=4, score=2.3948)\n"+
			"2. notes.txt (id=9, score=1.5000)\n"+
			"3. empty.txt (id=11, score=0.0000)\n",
		buf.String())
}

func TestEmptyResultsWriteNothing(t *testing.T) {
	for _, format := range []string{"trec", "human"} {
		f, err := New(format, nil, "")
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, f.Format(&buf, 1, nil))
		assert.Empty(t, buf.String(), format)
	}
}

func TestUnknownFormat(t *testing.T) {
	_, err := New("xml", nil, "")
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
}

func TestElapsed(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Elapsed(&buf, 1234567*time.Microsecond))
	assert.Equal(t, "Elapsed: 1.2346 seconds\n", buf.String())

	buf.Reset()
	require.NoError(t, Elapsed(&buf, 2*time.Second))
	assert.Equal(t, "Elapsed: 2.0 seconds\n", buf.String())

	buf.Reset()
	require.NoError(t, Elapsed(&buf, 40*time.Microsecond))
	assert.Equal(t, "Elapsed: 0.0 seconds\n", buf.String())
}
