package complex

import (
	"math/cmplx"

	"github.com/cnclabs/kge/pkg/knowledge"
	"github.com/cnclabs/kge/pkg/losses"
	"github.com/cnclabs/kge/pkg/model"
)

// Interaction is the ComplEx scoring function.
// ComplEx uses complex-valued embeddings for entities and relations.
// Score = Re(<h, r, conj(t)>) = Re(Σ h_i * r_i * conj(t_i))
type Interaction struct{}

var Citation = model.Citation{
	Author: "Trouillon",
	Year:   2016,
	Title:  "Complex Embeddings for Simple Link Prediction",
	Link:   "https://arxiv.org/abs/1606.06357",
}

func (Interaction) Score(h, r, t []float64) float64 {
	var sum complex128
	for k := 0; k < len(h)/2; k++ {
		// Trilinear product: h * r * conj(t)
		sum += model.ComplexAt(h, k) * model.ComplexAt(r, k) * cmplx.Conj(model.ComplexAt(t, k))
	}
	return real(sum)
}

// Gradient uses ∂Re(h·z)/∂(re, im) = conj(z):
//
//	dh = conj(r * conj(t))
//	dr = conj(h * conj(t))
//	dt = h * r
func (Interaction) Gradient(h, r, t []float64, g float64, dh, dr, dt []float64) {
	scale := complex(g, 0)
	for k := 0; k < len(h)/2; k++ {
		hk, rk, tk := model.ComplexAt(h, k), model.ComplexAt(r, k), model.ComplexAt(t, k)
		model.AddComplex(dh, k, scale*cmplx.Conj(rk*cmplx.Conj(tk)))
		model.AddComplex(dr, k, scale*cmplx.Conj(hk*cmplx.Conj(tk)))
		model.AddComplex(dt, k, scale*hk*rk)
	}
}

// Spec returns the model spec for dim complex dimensions.
func Spec(dim int, regularization float64) model.ERSpec {
	return model.ERSpec{
		Name:              "ComplEx",
		EntityDim:         2 * dim,
		RelationDim:       2 * dim,
		Interaction:       Interaction{},
		EntityInit:        model.CenteredUniform,
		RelationInit:      model.CenteredUniform,
		EntityConstrainer: model.NormalizeRows,
		Regularizer:       model.LpRegularizer{Weight: regularization, P: 2},
		DefaultLoss:       losses.Spec{Name: "softplus"},
	}
}

// New creates a new ComplEx model with EmbeddingDim complex dimensions.
func New(info knowledge.KGInfo, hp model.Hyperparameters, opts ...model.Option) (model.Model, error) {
	dim := hp.EmbeddingDim
	if dim <= 0 {
		dim = 50
	}
	weight := hp.RegularizationWeight
	if weight <= 0 {
		weight = 0.01
	}
	return model.NewERModel(info, Spec(dim, weight), opts...)
}
