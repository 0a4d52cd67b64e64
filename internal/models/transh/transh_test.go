package transh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestScoreProjectsOnHyperplane(t *testing.T) {
	// w = e1, d = e2: the first coordinate is projected away
	r := []float64{1, 0, 0, 1}
	h, tail := []float64{5, 2}, []float64{7, 1}
	assert.InDelta(t, -2.0, Interaction{}.Score(h, r, tail), 1e-12)
}

func TestNormalizeNormals(t *testing.T) {
	m := mat.NewDense(1, 4, []float64{3, 4, 9, 9})
	normalizeNormals(m)
	assert.InDeltaSlice(t, []float64{0.6, 0.8, 9, 9}, m.RawRowView(0), 1e-12)
}

func TestRegularizerInactiveInsideConstraints(t *testing.T) {
	reg := Regularizer{Weight: 1, Epsilon: 1e-5}
	entity := mat.NewDense(2, 2, []float64{0.5, 0, 0, 0.5})
	relation := mat.NewDense(1, 4, []float64{1, 0, 0, 1}) // w orthogonal to d
	dEntity, dRelation := mat.NewDense(2, 2, nil), mat.NewDense(1, 4, nil)

	assert.Zero(t, reg.PenaltyTables(entity, relation, dEntity, dRelation))
	assert.Equal(t, []float64{0, 0, 0, 0}, dRelation.RawRowView(0))

	entity.Set(0, 0, 2)
	assert.InDelta(t, 3.0, reg.PenaltyTables(entity, relation, dEntity, dRelation), 1e-12)
	assert.Equal(t, []float64{4, 0}, dEntity.RawRowView(0))
}

func TestRegularizerCoversEveryRow(t *testing.T) {
	reg := Regularizer{Weight: 0.5, Epsilon: 0}
	// both entities outside the unit ball, d parallel to w in the second row
	entity := mat.NewDense(2, 2, []float64{2, 0, 0, 3})
	relation := mat.NewDense(2, 4, []float64{1, 0, 0, 1, 1, 0, 2, 0})
	dEntity, dRelation := mat.NewDense(2, 2, nil), mat.NewDense(2, 4, nil)

	// (4-1) + (9-1) + 0 + (2*2)/4
	assert.InDelta(t, 0.5*(3+8+1), reg.PenaltyTables(entity, relation, dEntity, dRelation), 1e-12)
	assert.Equal(t, []float64{0, 3}, dEntity.RawRowView(1))
	assert.InDeltaSlice(t, []float64{1, 0, 0, 0}, dRelation.RawRowView(1), 1e-12)
}
