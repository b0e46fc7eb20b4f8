package ranking

import "math"

const (
	DefaultBM25K1 = 1.2
	DefaultBM25B  = 0.75
	DefaultBM25K3 = 500.0

	DefaultPivotedS = 0.2
)

// OkapiBM25 saturates document term frequency with k1, normalises by
// document length with b, and saturates query term weight with k3.
type OkapiBM25 struct {
	k1, b, k3 float64
}

func NewOkapiBM25(k1, b, k3 float64) (OkapiBM25, error) {
	switch {
	case k1 < 0:
		return OkapiBM25{}, invalidParam("k1", k1, ">= 0")
	case b < 0 || b > 1:
		return OkapiBM25{}, invalidParam("b", b, "in [0, 1]")
	case k3 < 0:
		return OkapiBM25{}, invalidParam("k3", k3, ">= 0")
	}
	return OkapiBM25{k1: k1, b: b, k3: k3}, nil
}

func (r OkapiBM25) ScoreOne(sd DocumentStatistics) float64 {
	docCount := float64(sd.DocCount)
	idf := math.Log(1 + (float64(sd.NumDocs)-docCount+0.5)/(docCount+0.5))

	tf := float64(sd.DocTermCount)
	lengthRatio := float64(sd.DocSize) / sd.AvgDocLength
	tfNorm := (r.k1 + 1) * tf / (r.k1*((1-r.b)+r.b*lengthRatio) + tf)

	qtf := (r.k3 + 1) * sd.QueryTermWeight / (r.k3 + sd.QueryTermWeight)
	return tfNorm * idf * qtf
}

// PivotedLength is the pivoted document length normalisation formula with
// a doubly logarithmic term frequency.
type PivotedLength struct {
	s float64
}

func NewPivotedLength(s float64) (PivotedLength, error) {
	if s < 0 || s > 1 {
		return PivotedLength{}, invalidParam("s", s, "in [0, 1]")
	}
	return PivotedLength{s: s}, nil
}

func (r PivotedLength) ScoreOne(sd DocumentStatistics) float64 {
	if sd.DocTermCount == 0 {
		return 0
	}
	tf := 1 + math.Log(1+math.Log(float64(sd.DocTermCount)))
	norm := (1 - r.s) + r.s*float64(sd.DocSize)/sd.AvgDocLength
	idf := math.Log((float64(sd.NumDocs) + 1) / (float64(sd.DocCount) + 0.5))
	return sd.QueryTermWeight * tf / norm * idf
}
