package sampling

import (
	"github.com/cnclabs/kge/pkg/knowledge"
)

// DefaultMaxRetries bounds how often a single negative is redrawn.
const DefaultMaxRetries = 10

// Filtered wraps a sampler and redraws negatives that are known positives.
// A row that is still a known positive after MaxRetries draws is kept.
type Filtered struct {
	Base       NegativeSampler
	MaxRetries int

	known map[[3]int64]struct{}
}

// NewFiltered builds the known-positive set from triples.
func NewFiltered(base NegativeSampler, triples knowledge.MappedTriples) *Filtered {
	known := make(map[[3]int64]struct{}, len(triples))
	for _, row := range triples {
		known[row] = struct{}{}
	}
	return &Filtered{Base: base, MaxRetries: DefaultMaxRetries, known: known}
}

// IsKnown reports whether a triple is in the positive set.
func (f *Filtered) IsKnown(row [3]int64) bool {
	_, ok := f.known[row]
	return ok
}

func (f *Filtered) Sample(positive knowledge.MappedTriples) (knowledge.MappedTriples, error) {
	neg, err := f.Base.Sample(positive)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < f.MaxRetries; attempt++ {
		var redo []int
		for i, row := range neg {
			if f.IsKnown(row) {
				redo = append(redo, i)
			}
		}
		if len(redo) == 0 {
			break
		}

		batch := make(knowledge.MappedTriples, len(redo))
		for j, i := range redo {
			batch[j] = positive[i]
		}
		fresh, err := f.Base.Sample(batch)
		if err != nil {
			return nil, err
		}
		for j, i := range redo {
			neg[i] = fresh[j]
		}
	}
	return neg, nil
}
