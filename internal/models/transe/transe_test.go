package transe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	l2 := Interaction{Norm: 2}
	assert.Equal(t, 0.0, l2.Score([]float64{1, 0}, []float64{0, 1}, []float64{1, 1}))
	assert.Equal(t, -5.0, l2.Score([]float64{0, 0}, []float64{0, 0}, []float64{3, 4}))

	l1 := Interaction{Norm: 1}
	assert.Equal(t, -7.0, l1.Score([]float64{0, 0}, []float64{0, 0}, []float64{3, 4}))
}

func TestL1Gradient(t *testing.T) {
	dh, dr, dt := make([]float64, 2), make([]float64, 2), make([]float64, 2)
	Interaction{Norm: 1}.Gradient([]float64{0, 0}, []float64{0, 0}, []float64{3, -4}, 2, dh, dr, dt)
	assert.Equal(t, []float64{2, -2}, dh)
	assert.Equal(t, []float64{2, -2}, dr)
	assert.Equal(t, []float64{-2, 2}, dt)
}

func TestSpecDefaults(t *testing.T) {
	spec := Spec(8, 0)
	assert.Equal(t, Interaction{Norm: 2}, spec.Interaction)
	assert.Equal(t, 8, spec.EntityDim)
	assert.NotNil(t, spec.EntityConstrainer)
	assert.Nil(t, spec.RelationConstrainer)
}
