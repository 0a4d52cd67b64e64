// Package losses implements the training losses of the embedding models.
//
// A loss belongs to one of two categories. Margin losses compare aligned
// (positive, negative) score pairs; label losses compare a prediction vector
// with 0/1 (optionally smoothed) labels. The training loop resolves the
// category once and never mixes the two paths.
//
// Every loss returns its value together with the gradient with respect to
// the scores it was given.
package losses

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrUnknownLoss is returned by Resolve for unregistered names.
	ErrUnknownLoss = errors.New("losses: unknown loss")

	// ErrUnknownReduction is returned for reductions other than mean and sum.
	ErrUnknownReduction = errors.New("losses: unknown reduction")

	ErrInvalidMargin = errors.New("losses: negative margin")

	// ErrLengthMismatch is returned when paired inputs differ in length.
	ErrLengthMismatch = errors.New("losses: input lengths differ")
)

// Category distinguishes margin-ranking style losses from label-based ones.
type Category int

const (
	CategoryMargin Category = iota
	CategoryLabel
)

func (c Category) String() string {
	if c == CategoryMargin {
		return "margin"
	}
	return "label"
}

// Reduction folds per-element losses into a scalar.
type Reduction string

const (
	ReductionMean Reduction = "mean"
	ReductionSum  Reduction = "sum"
)

func (r Reduction) validate() error {
	switch r {
	case ReductionMean, ReductionSum:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownReduction, string(r))
	}
}

// scale is the factor applied to every element's loss and gradient.
func (r Reduction) scale(n int) float64 {
	if r == ReductionMean && n > 0 {
		return 1 / float64(n)
	}
	return 1
}

// Loss is implemented by every loss.
type Loss interface {
	Name() string
	Category() Category
}

// MarginLoss scores aligned positive/negative pairs.
type MarginLoss interface {
	Loss
	// Pairwise returns the loss and its gradients w.r.t. pos and neg.
	Pairwise(pos, neg []float64) (value float64, dPos, dNeg []float64, err error)
}

// LabelLoss scores predictions against labels in [0, 1].
type LabelLoss interface {
	Loss
	// Pointwise returns the loss and its gradient w.r.t. predictions.
	Pointwise(predictions, labels []float64) (value float64, dPred []float64, err error)
}

// Spec names a loss and its hyperparameters.
type Spec struct {
	Name string `koanf:"name"`
	// Margin of the ranking loss. Nil selects 1.
	Margin    *float64  `koanf:"margin"`
	Reduction Reduction `koanf:"reduction"`
}

// Margin returns a pointer to m for use in a Spec.
func Margin(m float64) *float64 { return &m }

// Resolve builds the loss named by spec. A nil margin falls back to 1 and an
// empty reduction to mean.
func Resolve(spec Spec) (Loss, error) {
	reduction := spec.Reduction
	if reduction == "" {
		reduction = ReductionMean
	}
	if err := reduction.validate(); err != nil {
		return nil, err
	}

	switch normalizeName(spec.Name) {
	case "marginranking", "mr":
		margin := 1.0
		if spec.Margin != nil {
			margin = *spec.Margin
		}
		if margin < 0 {
			return nil, fmt.Errorf("%w: %g", ErrInvalidMargin, margin)
		}
		return &MarginRanking{Margin: margin, Reduction: reduction}, nil
	case "bcewithlogits", "bce":
		return &BCEWithLogits{Reduction: reduction}, nil
	case "softplus":
		return &Softplus{Reduction: reduction}, nil
	case "mse":
		return &MSE{Reduction: reduction}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownLoss, spec.Name)
	}
}

// Names lists the names Resolve accepts.
func Names() []string {
	return []string{"marginranking", "bcewithlogits", "softplus", "mse"}
}

var nameSeparators = strings.NewReplacer("_", "", "-", "", " ", "")

// normalizeName maps "MarginRankingLoss", "margin_ranking" and
// "margin-ranking" to "marginranking".
func normalizeName(name string) string {
	s := nameSeparators.Replace(strings.ToLower(name))
	return strings.TrimSuffix(s, "loss")
}

// sigmoid is numerically stable for large |x|.
func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// softplus computes log(1 + exp(x)) without overflow.
func softplus(x float64) float64 {
	if x > 30 {
		return x
	}
	if x < -30 {
		return math.Exp(x)
	}
	return math.Log1p(math.Exp(x))
}
