package topk

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTieBreakByAscendingDocID(t *testing.T) {
	const (
		docA = 1
		docB = 2
		docC = 3
	)
	acc := New(2)
	acc.Push(docC, 1.0)
	acc.Push(docB, 5.0)
	acc.Push(docA, 5.0)

	assert.Equal(t, []Result{
		{DocID: docA, Score: 5.0},
		{DocID: docB, Score: 5.0},
	}, acc.Results())
}

func TestFewerThanK(t *testing.T) {
	acc := New(10)
	acc.Push(4, 0.5)
	acc.Push(9, 2.5)
	acc.Push(1, -1)

	got := acc.Results()
	require.Len(t, got, 3)
	assert.Equal(t, uint64(9), got[0].DocID)
	assert.Equal(t, uint64(4), got[1].DocID)
	assert.Equal(t, uint64(1), got[2].DocID)
	assert.Zero(t, acc.Len())
}

func TestZeroK(t *testing.T) {
	acc := New(0)
	acc.Push(1, 10)
	assert.Empty(t, acc.Results())

	var zero Accumulator
	zero.Push(1, 10)
	assert.Empty(t, zero.Results())
}

func TestRandomStreamsAgainstFullSort(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 200; trial++ {
		n := rng.Intn(60)
		k := rng.Intn(15)
		t.Run(fmt.Sprintf("n=%d/k=%d/%d", n, k, trial), func(t *testing.T) {
			scores := make(map[uint64]float64, n)
			for i := 0; i < n; i++ {
				// few distinct values so ties are common
				scores[uint64(rng.Intn(1000))] = float64(rng.Intn(8)) / 2
			}
			got := Select(scores, k)

			all := make([]Result, 0, len(scores))
			for id, s := range scores {
				all = append(all, Result{DocID: id, Score: s})
			}
			sort.Slice(all, func(i, j int) bool { return ranksBefore(all[i], all[j]) })

			want := min(k, len(scores))
			require.Len(t, got, want)
			assert.Equal(t, all[:want], got)
			for i := 1; i < len(got); i++ {
				assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
			}
			if want > 0 {
				for _, r := range all[want:] {
					assert.GreaterOrEqual(t, got[want-1].Score, r.Score)
				}
			}
		})
	}
}

func BenchmarkAccumulatorPush(b *testing.B) {
	for _, k := range []int{10, 100, 1000} {
		b.Run(fmt.Sprintf("k_%d", k), func(b *testing.B) {
			rng := rand.New(rand.NewSource(1))
			scores := make([]float64, 100000)
			for i := range scores {
				scores[i] = rng.Float64()
			}
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				acc := New(k)
				for id, s := range scores {
					acc.Push(uint64(id), s)
				}
				_ = acc.Results()
			}
		})
	}
}
