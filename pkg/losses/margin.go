package losses

import (
	"fmt"
	"math"
)

// MarginRanking is max(0, margin - pos + neg) per pair. Higher scores mean
// more plausible triples.
type MarginRanking struct {
	Margin    float64
	Reduction Reduction
}

func (*MarginRanking) Name() string       { return "marginranking" }
func (*MarginRanking) Category() Category { return CategoryMargin }

func (l *MarginRanking) Pairwise(pos, neg []float64) (float64, []float64, []float64, error) {
	if len(pos) != len(neg) {
		return 0, nil, nil, fmt.Errorf("%w: %d positive vs %d negative scores", ErrLengthMismatch, len(pos), len(neg))
	}

	scale := l.Reduction.scale(len(pos))
	dPos := make([]float64, len(pos))
	dNeg := make([]float64, len(neg))
	total := 0.0
	for i := range pos {
		v := l.Margin - pos[i] + neg[i]
		if v <= 0 {
			continue
		}
		total += v
		dPos[i] = -scale
		dNeg[i] = scale
	}
	return math.Max(0, total*scale), dPos, dNeg, nil
}
