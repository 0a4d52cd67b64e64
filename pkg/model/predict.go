package model

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/cnclabs/kge/pkg/knowledge"
)

// Target is the position a prediction ranks candidates for.
type Target string

const (
	TargetHead     Target = "head"
	TargetRelation Target = "relation"
	TargetTail     Target = "tail"
)

// ParseTarget accepts head, relation and tail, and their first letters.
func ParseTarget(s string) (Target, error) {
	switch s {
	case "head", "h":
		return TargetHead, nil
	case "relation", "r":
		return TargetRelation, nil
	case "tail", "t":
		return TargetTail, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTarget, s)
}

// The predict functions take external relation IDs in [0, NumRealRelations),
// switch the model to evaluation mode and apply a sigmoid when the model
// predicts with one.

// PredictHRT scores full triples.
func PredictHRT(m Model, hrt knowledge.MappedTriples, opts ...ScoreOption) (*mat.Dense, error) {
	m.EvalMode()
	if m.UsesInverseTriples() {
		hrt = knowledge.DefaultInverter.MapTriples(hrt, false)
	}
	scores, err := m.ScoreHRT(hrt, opts...)
	return finish(m, scores, err)
}

// PredictH scores every entity as head of (r, t). With inverse triples it
// scores tails of (t, inverse(r)) instead.
func PredictH(m Model, rt knowledge.Pairs, opts ...ScoreOption) (*mat.Dense, error) {
	m.EvalMode()
	if m.UsesInverseTriples() {
		scores, err := ScoreHInverse(m, knowledge.DefaultInverter.MapPairs(rt, 0, false), opts...)
		return finish(m, scores, err)
	}
	scores, err := m.ScoreH(rt, opts...)
	return finish(m, scores, err)
}

// PredictT scores every entity as tail of (h, r). It never takes the
// inverse path, whatever the inverse triple setting.
func PredictT(m Model, hr knowledge.Pairs, opts ...ScoreOption) (*mat.Dense, error) {
	m.EvalMode()
	if m.UsesInverseTriples() {
		hr = knowledge.DefaultInverter.MapPairs(hr, 1, false)
	}
	scores, err := m.ScoreT(hr, opts...)
	return finish(m, scores, err)
}

// PredictR scores every real relation between (h, t).
func PredictR(m Model, ht knowledge.Pairs, opts ...ScoreOption) (*mat.Dense, error) {
	m.EvalMode()
	scores, err := m.ScoreR(ht, opts...)
	return finish(m, scores, err)
}

// Predict ranks the target position of each triple in batch; the other two
// columns form the query.
func Predict(m Model, batch knowledge.MappedTriples, target Target, opts ...ScoreOption) (*mat.Dense, error) {
	switch target {
	case TargetHead:
		return PredictH(m, batch.Columns(1, 2), opts...)
	case TargetRelation:
		return PredictR(m, batch.Columns(0, 2), opts...)
	case TargetTail:
		return PredictT(m, batch.Columns(0, 1), opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTarget, target)
	}
}

func finish(m Model, scores *mat.Dense, err error) (*mat.Dense, error) {
	if err != nil {
		return nil, err
	}
	if m.PredictWithSigmoid() {
		scores.Apply(func(_, _ int, v float64) float64 { return sigmoid(v) }, scores)
	}
	return scores, nil
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// Candidate is a ranked prediction.
type Candidate struct {
	ID    int64
	Score float64
}

// TopK returns the k highest scoring candidates of one score row, best first.
func TopK(scores mat.Matrix, row, k int) []Candidate {
	_, n := scores.Dims()
	out := make([]Candidate, n)
	for c := 0; c < n; c++ {
		out[c] = Candidate{ID: int64(c), Score: scores.At(row, c)}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if k > 0 && k < n {
		out = out[:k]
	}
	return out
}
