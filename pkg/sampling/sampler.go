// Package sampling produces negative triples for open-world training by
// corrupting the head or the tail of positive triples.
package sampling

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/cnclabs/kge/pkg/knowledge"
)

var (
	// ErrTooFewEntities is returned when there is no alternative entity to
	// corrupt with.
	ErrTooFewEntities = errors.New("sampling: at least two entities are required")

	// ErrNilRand is returned when a sampler is built without a random source.
	ErrNilRand = errors.New("sampling: random source is nil")
)

// NegativeSampler corrupts a batch of positives. The result has the same
// length, and row i differs from positive row i in exactly one of the head
// and tail positions.
type NegativeSampler interface {
	Sample(positive knowledge.MappedTriples) (knowledge.MappedTriples, error)
}

// SampleK draws k independent negative batches and concatenates them, so the
// result has k*len(positive) rows ordered draw by draw.
func SampleK(s NegativeSampler, positive knowledge.MappedTriples, k int) (knowledge.MappedTriples, error) {
	out := make(knowledge.MappedTriples, 0, k*len(positive))
	for i := 0; i < k; i++ {
		neg, err := s.Sample(positive)
		if err != nil {
			return nil, fmt.Errorf("draw %d: %w", i, err)
		}
		out = append(out, neg...)
	}
	return out, nil
}

// Basic picks the corrupted side uniformly per triple and replaces it with an
// entity drawn uniformly from all other entities. Negatives are not checked
// against known positives; false negatives are accepted as sampling noise.
type Basic struct {
	numEntities int64
	rng         *rand.Rand
}

// NewBasic creates a uniform sampler over numEntities entities.
func NewBasic(numEntities int, rng *rand.Rand) (*Basic, error) {
	if numEntities < 2 {
		return nil, ErrTooFewEntities
	}
	if rng == nil {
		return nil, ErrNilRand
	}
	return &Basic{numEntities: int64(numEntities), rng: rng}, nil
}

func (b *Basic) Sample(positive knowledge.MappedTriples) (knowledge.MappedTriples, error) {
	neg := positive.Clone()
	for i := range neg {
		if b.rng.Float64() < 0.5 {
			neg[i][0] = replaceEntity(neg[i][0], b.numEntities, b.rng)
		} else {
			neg[i][2] = replaceEntity(neg[i][2], b.numEntities, b.rng)
		}
	}
	return neg, nil
}

// replaceEntity draws uniformly from [0, n) \ {current}.
func replaceEntity(current, n int64, rng *rand.Rand) int64 {
	e := rng.Int63n(n - 1)
	if e >= current {
		e++
	}
	return e
}
