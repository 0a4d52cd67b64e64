package training

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/cnclabs/kge/pkg/knowledge"
	"github.com/cnclabs/kge/pkg/losses"
	"github.com/cnclabs/kge/pkg/model"
	"github.com/cnclabs/kge/pkg/optim"
)

// CWA trains under the closed-world assumption: each (head, relation) pair
// is scored against every entity and compared with its label row.
type CWA struct {
	loop
	loss losses.LabelLoss
}

// NewCWA fails with ErrMarginLossUnsupported unless the model uses a
// label-based loss.
func NewCWA(m model.Model, opt optim.Optimizer, opts ...Option) (*CWA, error) {
	var c config
	for _, o := range opts {
		o(&c)
	}
	l, err := newLoop(m, opt, c)
	if err != nil {
		return nil, err
	}
	ll, ok := m.Loss().(losses.LabelLoss)
	if !ok || m.Loss().Category() != losses.CategoryLabel {
		return nil, fmt.Errorf("%w: %s", ErrMarginLossUnsupported, m.Loss().Name())
	}
	return &CWA{loop: l, loss: ll}, nil
}

// Train fits the model on the label matrix of instances. NumNegsPerPos is
// not used.
func (c *CWA) Train(instances *knowledge.CWAInstances, opts Options) (model.Model, []float64, error) {
	if err := opts.validate(false); err != nil {
		return c.model, nil, err
	}
	if instances == nil || instances.NumPairs() == 0 {
		return c.model, nil, ErrNoTriples
	}
	rows, cols := instances.Labels.Dims()
	if rows != instances.NumPairs() || cols != c.model.NumEntities() {
		return c.model, nil, fmt.Errorf("%w: label matrix is %dx%d for %d pairs and %d entities",
			ErrShapeMismatch, rows, cols, instances.NumPairs(), c.model.NumEntities())
	}

	c.log.Info().
		Str("loss", c.loss.Name()).
		Int("pairs", instances.NumPairs()).
		Int("epochs", opts.NumEpochs).
		Int("batch_size", opts.BatchSize).
		Msg("start training (cwa)")

	trace, err := c.run(instances.NumPairs(), 1, opts, func(indices []int) (float64, error) {
		return c.step(instances, indices, opts)
	})
	return c.model, trace, err
}

func (c *CWA) step(instances *knowledge.CWAInstances, indices []int, opts Options) (float64, error) {
	c.opt.ZeroGrad()

	n := c.model.NumEntities()
	hr := make(knowledge.Pairs, len(indices))
	labels := make([]float64, 0, len(indices)*n)
	for i, idx := range indices {
		hr[i] = instances.Pairs[idx]
		labels = append(labels, instances.Labels.RawRowView(idx)...)
	}
	if opts.LabelSmoothing {
		labels = SmoothLabels(labels, opts.LabelSmoothingEpsilon, n)
	}

	scores, err := c.model.ScoreT(hr)
	if err != nil {
		return 0, err
	}
	value, grad, err := c.loss.Pointwise(scores.RawMatrix().Data, labels)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrShapeMismatch, err)
	}
	if err := c.model.BackwardT(hr, mat.NewDense(len(hr), n, grad)); err != nil {
		return 0, err
	}
	value += c.model.CollectRegularizationTerm()
	c.finishStep()
	return value, nil
}
