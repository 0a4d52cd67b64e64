package training

import (
	"fmt"

	"github.com/cnclabs/kge/pkg/knowledge"
	"github.com/cnclabs/kge/pkg/losses"
	"github.com/cnclabs/kge/pkg/model"
	"github.com/cnclabs/kge/pkg/optim"
	"github.com/cnclabs/kge/pkg/sampling"
)

// OWA trains under the open-world assumption: every positive triple is
// contrasted against NumNegsPerPos sampled negatives.
type OWA struct {
	loop
	sampler sampling.NegativeSampler
}

// NewOWA validates the collaborators. Without WithNegativeSampler the loop
// corrupts heads and tails uniformly.
func NewOWA(m model.Model, opt optim.Optimizer, opts ...Option) (*OWA, error) {
	var c config
	for _, o := range opts {
		o(&c)
	}
	l, err := newLoop(m, opt, c)
	if err != nil {
		return nil, err
	}

	sampler := c.sampler
	if sampler == nil {
		sampler, err = sampling.NewBasic(m.NumEntities(), l.rng)
		if err != nil {
			return nil, err
		}
	}
	return &OWA{loop: l, sampler: sampler}, nil
}

// Train fits the model and returns it together with the per-epoch loss
// trace. On error the trace holds the completed epochs.
func (o *OWA) Train(instances *knowledge.OWAInstances, opts Options) (model.Model, []float64, error) {
	if err := opts.validate(true); err != nil {
		return o.model, nil, err
	}
	if instances == nil || instances.NumInstances() == 0 {
		return o.model, nil, ErrNoTriples
	}

	var do func(knowledge.MappedTriples) (float64, error)
	switch loss := o.model.Loss(); loss.Category() {
	case losses.CategoryMargin:
		if opts.LabelSmoothing {
			return o.model, nil, ErrIncompatibleLabelSmoothing
		}
		ml, ok := loss.(losses.MarginLoss)
		if !ok {
			return o.model, nil, fmt.Errorf("%w: %s is not a margin loss", ErrUnsupportedLoss, loss.Name())
		}
		do = func(pos knowledge.MappedTriples) (float64, error) {
			return o.marginStep(ml, pos, opts.NumNegsPerPos)
		}
	default:
		ll, ok := loss.(losses.LabelLoss)
		if !ok {
			return o.model, nil, fmt.Errorf("%w: %s is not a label loss", ErrUnsupportedLoss, loss.Name())
		}
		do = func(pos knowledge.MappedTriples) (float64, error) {
			return o.labelStep(ll, pos, opts)
		}
	}

	positives := instances.MappedTriples
	o.log.Info().
		Str("loss", o.model.Loss().Name()).
		Int("triples", len(positives)).
		Int("epochs", opts.NumEpochs).
		Int("batch_size", opts.BatchSize).
		Int("num_negs_per_pos", opts.NumNegsPerPos).
		Msg("start training (owa)")

	trace, err := o.run(len(positives), opts.NumNegsPerPos, opts, func(indices []int) (float64, error) {
		batch := make(knowledge.MappedTriples, len(indices))
		for i, idx := range indices {
			batch[i] = positives[idx]
		}
		return do(batch)
	})
	return o.model, trace, err
}

// forward scores the positives and K negative batches. Positive scores are
// tiled K times so element i of both slices forms a pair.
func (o *OWA) forward(pos knowledge.MappedTriples, k int) (neg knowledge.MappedTriples, posScores, negScores []float64, err error) {
	o.opt.ZeroGrad()

	neg, err = sampling.SampleK(o.sampler, pos, k)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(neg) != k*len(pos) {
		return nil, nil, nil, fmt.Errorf("%w: %d negatives for %d positives x %d", ErrShapeMismatch, len(neg), len(pos), k)
	}

	p, err := o.model.ScoreHRT(pos)
	if err != nil {
		return nil, nil, nil, err
	}
	n, err := o.model.ScoreHRT(neg)
	if err != nil {
		return nil, nil, nil, err
	}

	single := p.RawMatrix().Data
	posScores = make([]float64, 0, k*len(single))
	for j := 0; j < k; j++ {
		posScores = append(posScores, single...)
	}
	return neg, posScores, n.RawMatrix().Data, nil
}

// backward folds the tiled positive gradient back onto the batch and
// propagates both halves into the parameters.
func (o *OWA) backward(pos, neg knowledge.MappedTriples, dPos, dNeg []float64) error {
	folded := make([]float64, len(pos))
	for j, g := range dPos {
		folded[j%len(pos)] += g
	}
	if err := o.model.BackwardHRT(pos, folded); err != nil {
		return err
	}
	return o.model.BackwardHRT(neg, dNeg)
}

func (o *OWA) marginStep(loss losses.MarginLoss, pos knowledge.MappedTriples, k int) (float64, error) {
	neg, posScores, negScores, err := o.forward(pos, k)
	if err != nil {
		return 0, err
	}
	value, dPos, dNeg, err := loss.Pairwise(posScores, negScores)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrShapeMismatch, err)
	}
	if err := o.backward(pos, neg, dPos, dNeg); err != nil {
		return 0, err
	}
	value += o.model.CollectRegularizationTerm()
	o.finishStep()
	return value, nil
}

func (o *OWA) labelStep(loss losses.LabelLoss, pos knowledge.MappedTriples, opts Options) (float64, error) {
	neg, posScores, negScores, err := o.forward(pos, opts.NumNegsPerPos)
	if err != nil {
		return 0, err
	}

	predictions := append(append([]float64(nil), posScores...), negScores...)
	labels := make([]float64, len(predictions))
	for i := range posScores {
		labels[i] = 1
	}
	if opts.LabelSmoothing {
		labels = SmoothLabels(labels, opts.LabelSmoothingEpsilon, o.model.NumEntities())
	}

	value, grad, err := loss.Pointwise(predictions, labels)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrShapeMismatch, err)
	}
	if err := o.backward(pos, neg, grad[:len(posScores)], grad[len(posScores):]); err != nil {
		return 0, err
	}
	value += o.model.CollectRegularizationTerm()
	o.finishStep()
	return value, nil
}
