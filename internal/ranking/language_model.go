package ranking

import "math"

const (
	DefaultDirichletMu           = 2000.0
	DefaultJelinekMercerLambda   = 0.7
	DefaultAbsoluteDiscountDelta = 0.7
)

// smoother supplies the two quantities that distinguish query-likelihood
// models: the smoothed probability of the term in the document and the
// document-dependent weight given to the collection model.
type smoother interface {
	smoothedProb(sd DocumentStatistics) float64
	docConstant(sd DocumentStatistics) float64
}

func languageModelScore(m smoother, sd DocumentStatistics) float64 {
	pc := float64(sd.CorpusTermCount) / float64(sd.TotalTerms)
	return sd.QueryTermWeight * math.Log(m.smoothedProb(sd)/(m.docConstant(sd)*pc))
}

func languageModelInitial(m smoother, sd DocumentStatistics) float64 {
	return sd.QueryLength * math.Log(m.docConstant(sd))
}

// DirichletPrior smooths with a Dirichlet prior of strength mu.
type DirichletPrior struct {
	mu float64
}

func NewDirichletPrior(mu float64) (DirichletPrior, error) {
	if mu <= 0 {
		return DirichletPrior{}, invalidParam("mu", mu, "> 0")
	}
	return DirichletPrior{mu: mu}, nil
}

func (r DirichletPrior) smoothedProb(sd DocumentStatistics) float64 {
	pc := float64(sd.CorpusTermCount) / float64(sd.TotalTerms)
	return (float64(sd.DocTermCount) + r.mu*pc) / (float64(sd.DocSize) + r.mu)
}

func (r DirichletPrior) docConstant(sd DocumentStatistics) float64 {
	return r.mu / (float64(sd.DocSize) + r.mu)
}

func (r DirichletPrior) ScoreOne(sd DocumentStatistics) float64 {
	return languageModelScore(r, sd)
}

func (r DirichletPrior) InitialScore(sd DocumentStatistics) float64 {
	return languageModelInitial(r, sd)
}

// JelinekMercer interpolates linearly between document and collection
// models with weight lambda on the collection.
type JelinekMercer struct {
	lambda float64
}

func NewJelinekMercer(lambda float64) (JelinekMercer, error) {
	if lambda <= 0 || lambda >= 1 {
		return JelinekMercer{}, invalidParam("lambda", lambda, "in (0, 1)")
	}
	return JelinekMercer{lambda: lambda}, nil
}

func (r JelinekMercer) smoothedProb(sd DocumentStatistics) float64 {
	pc := float64(sd.CorpusTermCount) / float64(sd.TotalTerms)
	return (1-r.lambda)*float64(sd.DocTermCount)/float64(sd.DocSize) + r.lambda*pc
}

func (r JelinekMercer) docConstant(DocumentStatistics) float64 {
	return r.lambda
}

func (r JelinekMercer) ScoreOne(sd DocumentStatistics) float64 {
	return languageModelScore(r, sd)
}

func (r JelinekMercer) InitialScore(sd DocumentStatistics) float64 {
	return languageModelInitial(r, sd)
}

// AbsoluteDiscount subtracts delta from every seen term count and
// redistributes the mass over the collection model.
type AbsoluteDiscount struct {
	delta float64
}

func NewAbsoluteDiscount(delta float64) (AbsoluteDiscount, error) {
	if delta <= 0 || delta >= 1 {
		return AbsoluteDiscount{}, invalidParam("delta", delta, "in (0, 1)")
	}
	return AbsoluteDiscount{delta: delta}, nil
}

func (r AbsoluteDiscount) smoothedProb(sd DocumentStatistics) float64 {
	pc := float64(sd.CorpusTermCount) / float64(sd.TotalTerms)
	discounted := math.Max(float64(sd.DocTermCount)-r.delta, 0) / float64(sd.DocSize)
	return discounted + r.docConstant(sd)*pc
}

func (r AbsoluteDiscount) docConstant(sd DocumentStatistics) float64 {
	return r.delta * float64(sd.DocUniqueTerms) / float64(sd.DocSize)
}

func (r AbsoluteDiscount) ScoreOne(sd DocumentStatistics) float64 {
	return languageModelScore(r, sd)
}

func (r AbsoluteDiscount) InitialScore(sd DocumentStatistics) float64 {
	return languageModelInitial(r, sd)
}
