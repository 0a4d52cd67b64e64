package transe

import (
	"gonum.org/v1/gonum/floats"

	"github.com/cnclabs/kge/pkg/knowledge"
	"github.com/cnclabs/kge/pkg/losses"
	"github.com/cnclabs/kge/pkg/model"
)

// Interaction is the TransE scoring function.
// TransE models relations as translations in the embedding space: h + r ≈ t
// where h is head entity, r is relation, t is tail entity
type Interaction struct {
	Norm int // L1 or L2 norm (1 or 2, default: 2)
}

var Citation = model.Citation{
	Author: "Bordes",
	Year:   2013,
	Title:  "Translating Embeddings for Modeling Multi-relational Data",
	Link:   "http://papers.nips.cc/paper/5071-translating-embeddings-for-modeling-multi-relational-data.pdf",
}

// residual returns h + r - t.
func residual(h, r, t []float64) []float64 {
	v := make([]float64, len(h))
	floats.AddTo(v, h, r)
	floats.Sub(v, t)
	return v
}

func (in Interaction) p() float64 {
	if in.Norm == 1 {
		return 1
	}
	return 2
}

// Score is the negative distance -||h + r - t||.
func (in Interaction) Score(h, r, t []float64) float64 {
	return -floats.Norm(residual(h, r, t), in.p())
}

func (in Interaction) Gradient(h, r, t []float64, g float64, dh, dr, dt []float64) {
	diff := residual(h, r, t)

	if in.Norm == 1 {
		// L1: sign of gradient
		for d := range diff {
			switch {
			case diff[d] > 0:
				diff[d] = 1
			case diff[d] < 0:
				diff[d] = -1
			}
		}
	} else {
		norm := floats.Norm(diff, 2)
		if norm < 1e-12 {
			return
		}
		floats.Scale(1/norm, diff)
	}

	// d(-dist)/dh = d(-dist)/dr = -diff, d(-dist)/dt = +diff
	floats.AddScaled(dh, -g, diff)
	floats.AddScaled(dr, -g, diff)
	floats.AddScaled(dt, g, diff)
}

// Spec returns the model spec. Entities are kept at unit length, relations
// are not normalized.
func Spec(dim, norm int) model.ERSpec {
	if norm != 1 {
		norm = 2
	}
	return model.ERSpec{
		Name:              "TransE",
		EntityDim:         dim,
		RelationDim:       dim,
		Interaction:       Interaction{Norm: norm},
		EntityInit:        model.CenteredUniform,
		RelationInit:      model.CenteredUniform,
		EntityConstrainer: model.NormalizeRows,
		DefaultLoss:       losses.Spec{Name: "marginranking", Margin: losses.Margin(1.0)},
	}
}

// New creates a new TransE model.
func New(info knowledge.KGInfo, hp model.Hyperparameters, opts ...model.Option) (model.Model, error) {
	dim := hp.EmbeddingDim
	if dim <= 0 {
		dim = 50
	}
	return model.NewERModel(info, Spec(dim, hp.ScoringNorm), opts...)
}
