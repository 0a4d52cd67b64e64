package rotate

import (
	"math"
	"math/cmplx"

	"github.com/cnclabs/kge/pkg/knowledge"
	"github.com/cnclabs/kge/pkg/losses"
	"github.com/cnclabs/kge/pkg/model"
)

// Interaction is the RotatE scoring function.
// RotatE models relations as rotations in complex space: h ∘ r ≈ t
// where ∘ denotes element-wise complex multiplication (Hadamard product).
// Rows store complex numbers as interleaved (re, im) pairs.
type Interaction struct{}

var Citation = model.Citation{
	Author: "Sun",
	Year:   2019,
	Title:  "RotatE: Knowledge Graph Embedding by Relational Rotation in Complex Space",
	Link:   "https://arxiv.org/abs/1902.10197",
}

// Score is the negative distance -||h ∘ r - t||.
func (Interaction) Score(h, r, t []float64) float64 {
	distance := 0.0
	for k := 0; k < len(h)/2; k++ {
		diff := model.ComplexAt(h, k)*model.ComplexAt(r, k) - model.ComplexAt(t, k)
		distance += real(diff)*real(diff) + imag(diff)*imag(diff)
	}
	return -math.Sqrt(distance)
}

func (Interaction) Gradient(h, r, t []float64, g float64, dh, dr, dt []float64) {
	n := len(h) / 2
	diff := make([]complex128, n)
	distance := 0.0
	for k := range diff {
		diff[k] = model.ComplexAt(h, k)*model.ComplexAt(r, k) - model.ComplexAt(t, k)
		distance += real(diff[k])*real(diff[k]) + imag(diff[k])*imag(diff[k])
	}
	distance = math.Sqrt(distance)
	if distance < 1e-12 {
		return
	}

	for k, x := range diff {
		// gradient of the score w.r.t. (re, im) of the difference
		u := x * complex(-g/distance, 0)
		model.AddComplex(dh, k, u*cmplx.Conj(model.ComplexAt(r, k)))
		model.AddComplex(dr, k, u*cmplx.Conj(model.ComplexAt(h, k)))
		model.AddComplex(dt, k, -u)
	}
}

// Spec returns the model spec for dim complex dimensions. Relations are
// unit complex numbers (rotations).
func Spec(dim int) model.ERSpec {
	return model.ERSpec{
		Name:                "RotatE",
		EntityDim:           2 * dim,
		RelationDim:         2 * dim,
		Interaction:         Interaction{},
		EntityInit:          model.RandomPhase,
		RelationInit:        model.UnitPhase,
		RelationConstrainer: model.NormalizeComplex,
		DefaultLoss:         losses.Spec{Name: "marginranking", Margin: losses.Margin(6.0)},
	}
}

// New creates a new RotatE model. The embedding dimension counts real
// values and is rounded up to an even number.
func New(info knowledge.KGInfo, hp model.Hyperparameters, opts ...model.Option) (model.Model, error) {
	dim := hp.EmbeddingDim
	if dim <= 0 {
		dim = 50
	}
	if dim%2 != 0 {
		dim++ // Ensure even dimension for complex embeddings
	}
	return model.NewERModel(info, Spec(dim/2), opts...)
}
