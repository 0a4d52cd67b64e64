package rotate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreIsRotation(t *testing.T) {
	// rotating 1 by 90 degrees gives i
	h, r := []float64{1, 0}, []float64{0, 1}
	assert.InDelta(t, 0.0, Interaction{}.Score(h, r, []float64{0, 1}), 1e-12)
	assert.InDelta(t, -2.0, Interaction{}.Score(h, r, []float64{0, -1}), 1e-12)
}

func TestSpecDimensions(t *testing.T) {
	spec := Spec(3)
	assert.Equal(t, 6, spec.EntityDim)
	assert.Equal(t, 6, spec.RelationDim)
	require.NotNil(t, spec.DefaultLoss.Margin)
	assert.Equal(t, 6.0, *spec.DefaultLoss.Margin)
}
