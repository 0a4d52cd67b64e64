package sampling

import (
	"math/rand"

	"github.com/cnclabs/kge/pkg/knowledge"
)

// DefaultPower flattens the degree distribution of Unigram.
const DefaultPower = 0.75

// maxUnigramDraws bounds the redraws when the weighted draw keeps returning
// the entity being replaced.
const maxUnigramDraws = 32

// Unigram picks the corrupted side uniformly like Basic, but draws the
// replacement with probability proportional to degree^power, where degree
// counts the entity's occurrences in the training triples. Frequent entities
// make harder negatives.
type Unigram struct {
	table       aliasTable
	numEntities int64
	rng         *rand.Rand
}

// NewUnigram builds the degree distribution from the factory's stored
// triples. A power of zero gives uniform replacement over entities that
// occur at least once.
func NewUnigram(tf *knowledge.TriplesFactory, power float64, rng *rand.Rand) (*Unigram, error) {
	if tf.NumEntities() < 2 {
		return nil, ErrTooFewEntities
	}
	if rng == nil {
		return nil, ErrNilRand
	}

	degree := make([]float64, tf.NumEntities())
	for _, row := range tf.MappedTriples() {
		degree[row[0]]++
		degree[row[2]]++
	}
	return &Unigram{
		table:       newAliasTable(degree, power),
		numEntities: int64(tf.NumEntities()),
		rng:         rng,
	}, nil
}

func (u *Unigram) Sample(positive knowledge.MappedTriples) (knowledge.MappedTriples, error) {
	neg := positive.Clone()
	for i := range neg {
		col := 2
		if u.rng.Float64() < 0.5 {
			col = 0
		}
		neg[i][col] = u.replace(neg[i][col])
	}
	return neg, nil
}

func (u *Unigram) replace(current int64) int64 {
	for d := 0; d < maxUnigramDraws; d++ {
		if e := u.table.draw(u.rng); e != current {
			return e
		}
	}
	// the distribution is concentrated on current
	return replaceEntity(current, u.numEntities, u.rng)
}
