package sampling

import (
	"fmt"
	"math/rand"

	"github.com/cnclabs/kge/pkg/knowledge"
)

// Bernoulli corrupts the head of a triple with relation r with probability
// tph_r / (tph_r + hpt_r), which lowers the false-negative rate for
// one-to-many and many-to-one relations (Wang et al., 2014).
type Bernoulli struct {
	numEntities int64
	headProb    []float64
	rng         *rand.Rand
}

// NewBernoulli derives the per-relation head-corruption probabilities from
// the factory's stored triples.
func NewBernoulli(tf *knowledge.TriplesFactory, rng *rand.Rand) (*Bernoulli, error) {
	if tf.NumEntities() < 2 {
		return nil, ErrTooFewEntities
	}
	if rng == nil {
		return nil, ErrNilRand
	}

	tph, hpt := tf.RelationStats()
	probs := make([]float64, len(tph))
	for r := range probs {
		if tph[r]+hpt[r] == 0 {
			probs[r] = 0.5
			continue
		}
		probs[r] = tph[r] / (tph[r] + hpt[r])
	}
	return &Bernoulli{numEntities: int64(tf.NumEntities()), headProb: probs, rng: rng}, nil
}

// HeadProbability returns the head-corruption probability of relation r.
func (b *Bernoulli) HeadProbability(r int64) float64 { return b.headProb[r] }

func (b *Bernoulli) Sample(positive knowledge.MappedTriples) (knowledge.MappedTriples, error) {
	neg := positive.Clone()
	for i := range neg {
		r := neg[i][1]
		if r < 0 || r >= int64(len(b.headProb)) {
			return nil, fmt.Errorf("sampling: relation %d out of range [0, %d)", r, len(b.headProb))
		}
		if b.rng.Float64() < b.headProb[r] {
			neg[i][0] = replaceEntity(neg[i][0], b.numEntities, b.rng)
		} else {
			neg[i][2] = replaceEntity(neg[i][2], b.numEntities, b.rng)
		}
	}
	return neg, nil
}
