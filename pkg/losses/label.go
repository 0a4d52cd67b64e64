package losses

import (
	"fmt"
)

func checkLabels(predictions, labels []float64) error {
	if len(predictions) != len(labels) {
		return fmt.Errorf("%w: %d predictions vs %d labels", ErrLengthMismatch, len(predictions), len(labels))
	}
	return nil
}

// BCEWithLogits is binary cross entropy on sigmoid(prediction):
// softplus(x) - y*x per element.
type BCEWithLogits struct {
	Reduction Reduction
}

func (*BCEWithLogits) Name() string       { return "bcewithlogits" }
func (*BCEWithLogits) Category() Category { return CategoryLabel }

func (l *BCEWithLogits) Pointwise(predictions, labels []float64) (float64, []float64, error) {
	if err := checkLabels(predictions, labels); err != nil {
		return 0, nil, err
	}
	scale := l.Reduction.scale(len(predictions))
	grad := make([]float64, len(predictions))
	total := 0.0
	for i, x := range predictions {
		y := labels[i]
		total += softplus(x) - y*x
		grad[i] = (sigmoid(x) - y) * scale
	}
	return total * scale, grad, nil
}

// Softplus maps labels to y' = 2y-1 in [-1, 1] and computes softplus(-y'*x).
type Softplus struct {
	Reduction Reduction
}

func (*Softplus) Name() string       { return "softplus" }
func (*Softplus) Category() Category { return CategoryLabel }

func (l *Softplus) Pointwise(predictions, labels []float64) (float64, []float64, error) {
	if err := checkLabels(predictions, labels); err != nil {
		return 0, nil, err
	}
	scale := l.Reduction.scale(len(predictions))
	grad := make([]float64, len(predictions))
	total := 0.0
	for i, x := range predictions {
		y := 2*labels[i] - 1
		total += softplus(-y * x)
		grad[i] = -y * sigmoid(-y*x) * scale
	}
	return total * scale, grad, nil
}

// MSE is the squared error between predictions and labels.
type MSE struct {
	Reduction Reduction
}

func (*MSE) Name() string       { return "mse" }
func (*MSE) Category() Category { return CategoryLabel }

func (l *MSE) Pointwise(predictions, labels []float64) (float64, []float64, error) {
	if err := checkLabels(predictions, labels); err != nil {
		return 0, nil, err
	}
	scale := l.Reduction.scale(len(predictions))
	grad := make([]float64, len(predictions))
	total := 0.0
	for i, x := range predictions {
		d := x - labels[i]
		total += d * d
		grad[i] = 2 * d * scale
	}
	return total * scale, grad, nil
}
