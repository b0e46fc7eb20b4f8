package ranking

import "math"

const DefaultPL2C = 0.5

// PL2 is the Poisson model with Laplace after-effect and the second
// term-frequency normalisation from the divergence-from-randomness family.
type PL2 struct {
	c float64
}

func NewPL2(c float64) (PL2, error) {
	if c <= 0 {
		return PL2{}, invalidParam("c", c, "> 0")
	}
	return PL2{c: c}, nil
}

// ScoreOne expects CorpusTermCount > 0; the executor never scores terms
// that are absent from the corpus.
func (r PL2) ScoreOne(sd DocumentStatistics) float64 {
	lda := float64(sd.NumDocs) / float64(sd.CorpusTermCount)
	tfn := float64(sd.DocTermCount) * math.Log2(1+r.c*sd.AvgDocLength/float64(sd.DocSize))
	if lda < 1 || tfn <= 0 {
		return 0
	}
	numerator := tfn*math.Log2(tfn*lda) +
		math.Log2E*(1/lda-tfn) +
		0.5*math.Log2(2*math.Pi*tfn)
	return sd.QueryTermWeight * numerator / (tfn + 1)
}
