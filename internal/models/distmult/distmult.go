package distmult

import (
	"github.com/cnclabs/kge/pkg/knowledge"
	"github.com/cnclabs/kge/pkg/losses"
	"github.com/cnclabs/kge/pkg/model"
)

var Citation = model.Citation{
	Author: "Yang",
	Year:   2014,
	Title:  "Embedding Entities and Relations for Learning and Inference in Knowledge Bases",
	Link:   "https://arxiv.org/abs/1412.6575",
}

// Interaction is the bilinear diagonal score Σ h_i * r_i * t_i.
type Interaction struct{}

func (Interaction) Score(h, r, t []float64) float64 {
	score := 0.0
	for i := range h {
		score += h[i] * r[i] * t[i]
	}
	return score
}

func (Interaction) Gradient(h, r, t []float64, g float64, dh, dr, dt []float64) {
	for i := range h {
		dh[i] += g * r[i] * t[i]
		dr[i] += g * h[i] * t[i]
		dt[i] += g * h[i] * r[i]
	}
}

func Spec(dim int, weight float64) model.ERSpec {
	return model.ERSpec{
		Name:              "DistMult",
		EntityDim:         dim,
		RelationDim:       dim,
		Interaction:       Interaction{},
		EntityInit:        model.XavierUniform,
		RelationInit:      model.XavierNormal,
		EntityConstrainer: model.NormalizeRows,
		Regularizer:       model.LpRegularizer{Weight: weight, P: 2},
		DefaultLoss:       losses.Spec{Name: "marginranking", Margin: losses.Margin(1.0)},
	}
}

func New(info knowledge.KGInfo, hp model.Hyperparameters, opts ...model.Option) (model.Model, error) {
	dim := hp.EmbeddingDim
	if dim <= 0 {
		dim = 50
	}
	weight := hp.RegularizationWeight
	if weight <= 0 {
		weight = 0.1
	}
	return model.NewERModel(info, Spec(dim, weight), opts...)
}
