package optim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quadratic minimizes sum((x - 3)^2) and returns the final value.
func quadratic(t *testing.T, spec Spec, steps int) []float64 {
	t.Helper()
	p := NewParameter("x", 2, 2)
	opt, err := New(spec, []*Parameter{p})
	require.NoError(t, err)

	for i := 0; i < steps; i++ {
		opt.ZeroGrad()
		for j, x := range p.Value.RawMatrix().Data {
			p.Grad.RawMatrix().Data[j] = 2 * (x - 3)
		}
		opt.Step()
	}
	return p.Value.RawMatrix().Data
}

func TestOptimizersConverge(t *testing.T) {
	tests := []struct {
		spec  Spec
		steps int
	}{
		{Spec{Name: "sgd", LearningRate: 0.1}, 200},
		{Spec{Name: "adagrad", LearningRate: 1.0}, 500},
		{Spec{Name: "Adam", LearningRate: 0.1}, 1000},
	}
	for _, tt := range tests {
		for _, x := range quadratic(t, tt.spec, tt.steps) {
			assert.InDelta(t, 3.0, x, 1e-2, tt.spec.Name)
		}
	}
}

func TestSGDStep(t *testing.T) {
	p := NewParameter("w", 1, 3)
	copy(p.Value.RawMatrix().Data, []float64{1, 2, 3})
	copy(p.Grad.RawMatrix().Data, []float64{1, -1, 0})

	opt := NewSGD([]*Parameter{p}, 0.5, 0)
	opt.Step()
	assert.Equal(t, []float64{0.5, 2.5, 3}, p.Value.RawRowView(0))

	opt.ZeroGrad()
	assert.Equal(t, []float64{0, 0, 0}, p.Grad.RawRowView(0))
	assert.Equal(t, 0.5, opt.LearningRate())
}

func TestNewValidation(t *testing.T) {
	_, err := New(Spec{Name: "sgd"}, nil)
	assert.ErrorIs(t, err, ErrInvalidLearningRate)

	_, err = New(Spec{Name: "lbfgs", LearningRate: 0.1}, nil)
	assert.ErrorIs(t, err, ErrUnknownOptimizer)
}
