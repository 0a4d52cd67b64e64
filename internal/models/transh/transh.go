// Package transh implements TransH, which translates entities projected onto a
// relation-specific hyperplane.
package transh

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/cnclabs/kge/pkg/knowledge"
	"github.com/cnclabs/kge/pkg/losses"
	"github.com/cnclabs/kge/pkg/model"
)

var Citation = model.Citation{
	Author: "Wang",
	Year:   2014,
	Title:  "Knowledge Graph Embedding by Translating on Hyperplanes",
	Link:   "https://www.aaai.org/ocs/index.php/AAAI/AAAI14/paper/viewFile/8531/8546",
}

// Interaction scores -||h⊥ + d - t⊥||₂ with x⊥ = x - (w·x)w. A relation row
// holds the normal vector w followed by the translation d.
type Interaction struct{}

func split(r []float64) (w, d []float64) {
	half := len(r) / 2
	return r[:half], r[half:]
}

// residual returns a = h - t, s = w·a and v = a - s*w + d.
func residual(h, r, t []float64) (a, v []float64, s float64) {
	w, d := split(r)
	a = make([]float64, len(h))
	floats.SubTo(a, h, t)
	s = floats.Dot(w, a)
	v = make([]float64, len(h))
	for i := range v {
		v[i] = a[i] - s*w[i] + d[i]
	}
	return a, v, s
}

func (Interaction) Score(h, r, t []float64) float64 {
	_, v, _ := residual(h, r, t)
	return -floats.Norm(v, 2)
}

func (Interaction) Gradient(h, r, t []float64, g float64, dh, dr, dt []float64) {
	a, v, s := residual(h, r, t)
	n := floats.Norm(v, 2)
	if n < 1e-12 {
		return
	}
	w, _ := split(r)
	dw, dd := split(dr)

	// u = g * dScore/dv
	u := make([]float64, len(v))
	floats.ScaleTo(u, -g/n, v)
	wu := floats.Dot(w, u)

	for i := range u {
		proj := u[i] - wu*w[i]
		dh[i] += proj
		dt[i] -= proj
		dd[i] += u[i]
		dw[i] += -wu*a[i] - s*u[i]
	}
}

// normalizeNormals keeps every hyperplane normal at unit length.
func normalizeNormals(m *mat.Dense) {
	rows, _ := m.Dims()
	for i := 0; i < rows; i++ {
		w, _ := split(m.RawRowView(i))
		if n := floats.Norm(w, 2); n > 1e-10 {
			floats.Scale(1/n, w)
		}
	}
}

// Regularizer is the soft constraint of the TransH paper, taken over every
// entity and relation row:
//
//	Weight * ( Σ_e relu(||e||² - 1) + Σ_r relu((w·d)² / ||d||² - Epsilon²) )
type Regularizer struct {
	Weight  float64
	Epsilon float64
}

func (reg Regularizer) PenaltyTables(entity, relation, dEntity, dRelation *mat.Dense) float64 {
	total := 0.0
	rows, _ := entity.Dims()
	for i := 0; i < rows; i++ {
		total += reg.entity(entity.RawRowView(i), dEntity.RawRowView(i))
	}
	rows, _ = relation.Dims()
	for i := 0; i < rows; i++ {
		total += reg.orthogonal(relation.RawRowView(i), dRelation.RawRowView(i))
	}
	return reg.Weight * total
}

func (reg Regularizer) entity(e, de []float64) float64 {
	excess := floats.Dot(e, e) - 1
	if excess <= 0 {
		return 0
	}
	floats.AddScaled(de, reg.Weight*2, e)
	return excess
}

// orthogonal keeps the translation d close to the hyperplane with normal w.
func (reg Regularizer) orthogonal(r, dr []float64) float64 {
	w, d := split(r)
	dw, dd := split(dr)
	wd := floats.Dot(w, d)
	d2 := floats.Dot(d, d)
	if d2 < 1e-12 {
		return 0
	}
	excess := wd*wd/d2 - reg.Epsilon*reg.Epsilon
	if excess <= 0 {
		return 0
	}
	for i := range w {
		dw[i] += reg.Weight * 2 * wd * d[i] / d2
		dd[i] += reg.Weight * (2*wd*w[i]/d2 - 2*wd*wd*d[i]/(d2*d2))
	}
	return excess
}

// Spec returns the model spec. Relation rows have 2*dim columns.
func Spec(dim int, weight float64) model.ERSpec {
	return model.ERSpec{
		Name:                "TransH",
		EntityDim:           dim,
		RelationDim:         2 * dim,
		Interaction:         Interaction{},
		EntityInit:          model.XavierUniform,
		RelationInit:        model.XavierUniform,
		RelationConstrainer: normalizeNormals,
		TableRegularizer:    Regularizer{Weight: weight, Epsilon: 1e-5},
		DefaultLoss:         losses.Spec{Name: "marginranking", Margin: losses.Margin(1.0)},
	}
}

func New(info knowledge.KGInfo, hp model.Hyperparameters, opts ...model.Option) (model.Model, error) {
	dim := hp.EmbeddingDim
	if dim <= 0 {
		dim = 50
	}
	weight := hp.RegularizationWeight
	if weight <= 0 {
		weight = 0.05
	}
	return model.NewERModel(info, Spec(dim, weight), opts...)
}
