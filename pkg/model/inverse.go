package model

import (
	"gonum.org/v1/gonum/mat"

	"github.com/cnclabs/kge/pkg/knowledge"
)

// ScoreHRTInverse scores (h, r, t) as the inverse triple (t, inverse(r), h).
// Relation IDs are internal.
func ScoreHRTInverse(m Model, hrt knowledge.MappedTriples, opts ...ScoreOption) (*mat.Dense, error) {
	if !m.UsesInverseTriples() {
		return nil, ErrInverseTriplesDisabled
	}
	return m.ScoreHRT(knowledge.DefaultInverter.InvertTriples(hrt), opts...)
}

// ScoreTInverse scores tails of (h, r) as heads of (inverse(r), h).
func ScoreTInverse(m Model, hr knowledge.Pairs, opts ...ScoreOption) (*mat.Dense, error) {
	if !m.UsesInverseTriples() {
		return nil, ErrInverseTriplesDisabled
	}
	return m.ScoreH(knowledge.DefaultInverter.InvertPairs(hr, 1), opts...)
}

// ScoreHInverse scores heads of (r, t) as tails of (t, inverse(r)).
func ScoreHInverse(m Model, rt knowledge.Pairs, opts ...ScoreOption) (*mat.Dense, error) {
	if !m.UsesInverseTriples() {
		return nil, ErrInverseTriplesDisabled
	}
	return m.ScoreT(knowledge.DefaultInverter.InvertPairs(rt, 0), opts...)
}
