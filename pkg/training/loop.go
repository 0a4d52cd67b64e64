// Package training runs the optimization loops that fit a model to a triple
// set: the open-world loop contrasts positives against sampled negatives, the
// closed-world loop scores every entity against dense labels.
package training

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/cnclabs/kge/internal/logging"
	"github.com/cnclabs/kge/pkg/model"
	"github.com/cnclabs/kge/pkg/optim"
	"github.com/cnclabs/kge/pkg/sampling"
)

var (
	ErrMissingModel               = errors.New("training: no model given")
	ErrMissingOptimizer           = errors.New("training: no optimizer given")
	ErrMissingDevice              = errors.New("training: model has no device")
	ErrIncompatibleLabelSmoothing = errors.New("training: label smoothing cannot be used with a margin ranking loss")
	ErrMarginLossUnsupported      = errors.New("training: closed-world training needs a label-based loss")
	ErrUnsupportedLoss            = errors.New("training: loss does not implement its category")
	ErrShapeMismatch              = errors.New("training: positive and negative batches do not line up")
	ErrInvalidOptions             = errors.New("training: invalid options")
	ErrNoTriples                  = errors.New("training: no training instances")
)

// Options are the per-run training settings.
type Options struct {
	NumEpochs             int     `koanf:"num_epochs"`
	BatchSize             int     `koanf:"batch_size"`
	NumNegsPerPos         int     `koanf:"num_negs_per_pos"`
	LabelSmoothing        bool    `koanf:"label_smoothing"`
	LabelSmoothingEpsilon float64 `koanf:"label_smoothing_epsilon"`
	Progress              Progress
}

func (o Options) validate(negatives bool) error {
	switch {
	case o.NumEpochs <= 0:
		return fmt.Errorf("%w: num_epochs must be positive, got %d", ErrInvalidOptions, o.NumEpochs)
	case o.BatchSize <= 0:
		return fmt.Errorf("%w: batch_size must be positive, got %d", ErrInvalidOptions, o.BatchSize)
	case negatives && o.NumNegsPerPos <= 0:
		return fmt.Errorf("%w: num_negs_per_pos must be positive, got %d", ErrInvalidOptions, o.NumNegsPerPos)
	case o.LabelSmoothing && (o.LabelSmoothingEpsilon < 0 || o.LabelSmoothingEpsilon >= 1):
		return fmt.Errorf("%w: label_smoothing_epsilon must be in [0, 1), got %v", ErrInvalidOptions, o.LabelSmoothingEpsilon)
	}
	return nil
}

// Progress reports training progress. Hooks run synchronously on the
// training goroutine.
type Progress struct {
	// Disable silences the per-epoch log lines and the hooks.
	Disable     bool
	Description string
	OnEpoch     func(EpochEvent)
	OnBatch     func(BatchEvent)
}

type EpochEvent struct {
	Epoch     int // 1-based
	NumEpochs int
	Loss      float64
	Losses    []float64
}

type BatchEvent struct {
	Epoch int
	Batch int
	Size  int
	Loss  float64
}

// Option configures a training loop.
type Option func(*config)

type config struct {
	sampler sampling.NegativeSampler
	rng     *rand.Rand
	seed    *int64
	logger  *zerolog.Logger
}

// WithNegativeSampler replaces the default uniform sampler.
func WithNegativeSampler(s sampling.NegativeSampler) Option {
	return func(c *config) { c.sampler = s }
}

// WithSeed seeds the loop's random source.
func WithSeed(seed int64) Option {
	return func(c *config) { c.seed = &seed }
}

// WithRand injects the random source used for shuffling and sampling.
func WithRand(rng *rand.Rand) Option {
	return func(c *config) { c.rng = rng }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *config) { c.logger = &l }
}

// loop holds what both training loops share.
type loop struct {
	model model.Model
	opt   optim.Optimizer
	rng   *rand.Rand
	log   zerolog.Logger
}

func newLoop(m model.Model, opt optim.Optimizer, c config) (loop, error) {
	if m == nil {
		return loop{}, ErrMissingModel
	}
	if opt == nil {
		return loop{}, ErrMissingOptimizer
	}
	if m.Device() == "" {
		return loop{}, ErrMissingDevice
	}

	log := logging.With("training")
	if c.logger != nil {
		log = *c.logger
	}

	rng := c.rng
	if rng == nil {
		var seed int64
		if c.seed != nil {
			seed = *c.seed
		} else {
			seed = time.Now().UnixNano()
			log.Warn().Int64("seed", seed).Msg("no random seed is specified; results will not be reproducible")
		}
		rng = rand.New(rand.NewSource(seed))
	}
	return loop{model: m, opt: opt, rng: rng, log: log}, nil
}

// step trains on the instances at indices and returns the batch loss.
type step func(indices []int) (float64, error)

// run drives the epochs. Every instance stands for weight loss terms, so the
// epoch loss is the mean over n*weight terms.
func (l *loop) run(n, weight int, opts Options, do step) ([]float64, error) {
	trace := make([]float64, 0, opts.NumEpochs)
	desc := opts.Progress.Description
	if desc == "" {
		desc = "training"
	}

	l.model.TrainMode()
	for epoch := 1; epoch <= opts.NumEpochs; epoch++ {
		// fresh permutation every epoch
		indices := l.rng.Perm(n)
		total := 0.0
		batch := 0

		for start := 0; start < n; start += opts.BatchSize {
			end := min(start+opts.BatchSize, n)
			loss, err := do(indices[start:end])
			if err != nil {
				l.log.Error().Err(err).Int("epoch", epoch).Int("batch", batch).Msg("training aborted")
				return trace, err
			}
			size := end - start
			total += loss * float64(size*weight)
			batch++

			if !opts.Progress.Disable && opts.Progress.OnBatch != nil {
				opts.Progress.OnBatch(BatchEvent{Epoch: epoch, Batch: batch, Size: size, Loss: loss})
			}
		}

		epochLoss := total / float64(n*weight)
		trace = append(trace, epochLoss)

		if opts.Progress.Disable {
			continue
		}
		l.log.Info().
			Str("desc", desc).
			Int("epoch", epoch).
			Int("epochs", opts.NumEpochs).
			Float64("loss", epochLoss).
			Floats64("losses", trace).
			Msg("epoch complete")
		if opts.Progress.OnEpoch != nil {
			opts.Progress.OnEpoch(EpochEvent{
				Epoch:     epoch,
				NumEpochs: opts.NumEpochs,
				Loss:      epochLoss,
				Losses:    append([]float64(nil), trace...),
			})
		}
	}
	return trace, nil
}

// finishStep applies the optimizer update and leaves the model dirty.
func (l *loop) finishStep() {
	l.opt.Step()
	l.model.MarkDirty()
}

// SmoothLabels maps each label y to y*(1-epsilon) + epsilon/(numClasses-1).
func SmoothLabels(labels []float64, epsilon float64, numClasses int) []float64 {
	out := make([]float64, len(labels))
	for i, y := range labels {
		out[i] = y*(1-epsilon) + epsilon/float64(numClasses-1)
	}
	return out
}
