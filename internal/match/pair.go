// Package match aligns the sections of two document versions.
package match

import (
	"context"

	"github.com/ppiankov/regdiff/internal/model"
	"github.com/ppiankov/regdiff/internal/similarity"
)

// Pair score weights
const (
	headingWeight = 0.25
	meaningWeight = 0.65
	bodyWeight    = 0.10
)

// PairScorer scores how likely an old and a new section are the same section
type PairScorer struct {
	scorer *similarity.Scorer
}

// NewPairScorer creates a pair scorer backed by scorer
func NewPairScorer(scorer *similarity.Scorer) *PairScorer {
	return &PairScorer{scorer: scorer}
}

// Score returns 0.25*heading + 0.65*semantic(comparison text) + 0.10*body
func (p *PairScorer) Score(ctx context.Context, oldSec, newSec model.Section) float64 {
	heading := p.scorer.Lexical(oldSec.Heading, newSec.Heading)
	meaning := p.scorer.Semantic(ctx, oldSec.ComparisonText(), newSec.ComparisonText())
	body := p.scorer.Lexical(oldSec.Body, newSec.Body)

	return headingWeight*heading + meaningWeight*meaning + bodyWeight*body
}
