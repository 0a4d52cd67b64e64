package training

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cnclabs/kge/internal/models/distmult"
	"github.com/cnclabs/kge/internal/models/transe"
	"github.com/cnclabs/kge/internal/models/transh"
	"github.com/cnclabs/kge/pkg/knowledge"
	"github.com/cnclabs/kge/pkg/losses"
	"github.com/cnclabs/kge/pkg/model"
	"github.com/cnclabs/kge/pkg/optim"
)

// tenTriples holds 10 triples over 3 entities.
func tenTriples(t *testing.T) *knowledge.TriplesFactory {
	t.Helper()
	var triples []knowledge.Triple
	for _, rel := range []string{"r1", "r2"} {
		for _, h := range []string{"a", "b", "c"} {
			for _, tail := range []string{"a", "b", "c"} {
				if h == tail || len(triples) == 10 {
					continue
				}
				triples = append(triples, knowledge.Triple{Head: h, Relation: rel, Tail: tail})
			}
		}
	}
	tf, err := knowledge.FromLabeledTriples(triples, false)
	require.NoError(t, err)
	require.Equal(t, 10, tf.NumTriples())
	require.Equal(t, 3, tf.NumEntities())
	return tf
}

func newModel(t *testing.T, tf *knowledge.TriplesFactory, opts ...model.Option) model.Model {
	t.Helper()
	opts = append([]model.Option{model.WithSeed(1), model.WithLogger(zerolog.Nop())}, opts...)
	m, err := transe.New(tf, model.Hyperparameters{EmbeddingDim: 8}, opts...)
	require.NoError(t, err)
	return m
}

func newOWA(t *testing.T, m model.Model, opts ...Option) *OWA {
	t.Helper()
	opts = append([]Option{WithSeed(2), WithLogger(zerolog.Nop())}, opts...)
	loop, err := NewOWA(m, optim.NewSGD(m.Parameters(), 0.01, 0), opts...)
	require.NoError(t, err)
	return loop
}

func TestOWAScenario(t *testing.T) {
	tf := tenTriples(t)
	m := newModel(t, tf)
	loop := newOWA(t, m)

	var batches []BatchEvent
	var epochs []EpochEvent
	trained, trace, err := loop.Train(tf.CreateOWAInstances(), Options{
		NumEpochs:     2,
		BatchSize:     4,
		NumNegsPerPos: 1,
		Progress: Progress{
			OnBatch: func(e BatchEvent) { batches = append(batches, e) },
			OnEpoch: func(e EpochEvent) { epochs = append(epochs, e) },
		},
	})
	require.NoError(t, err)
	assert.Same(t, m, trained)

	require.Len(t, trace, 2)
	for _, l := range trace {
		assert.GreaterOrEqual(t, l, 0.0)
	}

	require.Len(t, batches, 6)
	last := batches[len(batches)-1]
	assert.Equal(t, 2, last.Epoch)
	assert.Equal(t, 2, last.Size)
	assert.Equal(t, []int{4, 4, 2}, []int{batches[3].Size, batches[4].Size, batches[5].Size})

	require.Len(t, epochs, 2)
	assert.Equal(t, trace, epochs[1].Losses)
	assert.Equal(t, trace[:1], epochs[0].Losses, "trace is append-only")

	// epoch loss is the mean over positive/negative pairs
	total := 0.0
	for _, b := range batches[:3] {
		total += b.Loss * float64(b.Size)
	}
	assert.InDelta(t, total/10, trace[0], 1e-12)

	assert.Equal(t, model.StateDirty, m.State())
	assert.True(t, m.IsTraining())
}

func TestOWATraceLengthMatchesEpochs(t *testing.T) {
	tf := tenTriples(t)
	for _, epochs := range []int{1, 3} {
		for _, bs := range []int{1, 3, 100} {
			m := newModel(t, tf)
			_, trace, err := newOWA(t, m).Train(tf.CreateOWAInstances(), Options{
				NumEpochs:     epochs,
				BatchSize:     bs,
				NumNegsPerPos: 2,
			})
			require.NoError(t, err)
			assert.Len(t, trace, epochs)
		}
	}
}

func TestOWAReproducibleWithSeed(t *testing.T) {
	tf := tenTriples(t)
	opts := Options{NumEpochs: 3, BatchSize: 4, NumNegsPerPos: 2}

	_, first, err := newOWA(t, newModel(t, tf)).Train(tf.CreateOWAInstances(), opts)
	require.NoError(t, err)
	_, second, err := newOWA(t, newModel(t, tf)).Train(tf.CreateOWAInstances(), opts)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMarginLossRejectsLabelSmoothing(t *testing.T) {
	tf := tenTriples(t)
	m := newModel(t, tf)
	before := append([]float64(nil), m.Parameters()[0].Value.RawMatrix().Data...)

	calls := 0
	_, trace, err := newOWA(t, m).Train(tf.CreateOWAInstances(), Options{
		NumEpochs:             2,
		BatchSize:             4,
		NumNegsPerPos:         1,
		LabelSmoothing:        true,
		LabelSmoothingEpsilon: 0.1,
		Progress:              Progress{OnBatch: func(BatchEvent) { calls++ }},
	})
	assert.ErrorIs(t, err, ErrIncompatibleLabelSmoothing)
	assert.Empty(t, trace)
	assert.Zero(t, calls)
	assert.Equal(t, before, m.Parameters()[0].Value.RawMatrix().Data)
	assert.Equal(t, model.StateInitialized, m.State())
}

func TestOWALabelLossWithSmoothing(t *testing.T) {
	tf := tenTriples(t)
	m := newModel(t, tf, model.WithLoss(losses.Spec{Name: "bcewithlogits"}))

	_, trace, err := newOWA(t, m).Train(tf.CreateOWAInstances(), Options{
		NumEpochs:             2,
		BatchSize:             3,
		NumNegsPerPos:         3,
		LabelSmoothing:        true,
		LabelSmoothingEpsilon: 0.1,
	})
	require.NoError(t, err)
	require.Len(t, trace, 2)
	for _, l := range trace {
		assert.False(t, math.IsNaN(l))
		assert.Greater(t, l, 0.0)
	}
}

func TestNewOWAConfigurationErrors(t *testing.T) {
	tf := tenTriples(t)
	m := newModel(t, tf)
	opt := optim.NewSGD(m.Parameters(), 0.1, 0)

	_, err := NewOWA(nil, opt)
	assert.ErrorIs(t, err, ErrMissingModel)

	_, err = NewOWA(m, nil)
	assert.ErrorIs(t, err, ErrMissingOptimizer)

	noDevice := newModel(t, tf, model.WithDevice(""))
	_, err = NewOWA(noDevice, opt)
	assert.ErrorIs(t, err, ErrMissingDevice)
}

// categoryOnly claims a category without implementing its interface.
type categoryOnly struct{ category losses.Category }

func (c categoryOnly) Name() string              { return "categoryonly" }
func (c categoryOnly) Category() losses.Category { return c.category }

type lossOverride struct {
	model.Model
	loss losses.Loss
}

func (o lossOverride) Loss() losses.Loss { return o.loss }

func TestOWARejectsLossOutsideItsCategory(t *testing.T) {
	tf := tenTriples(t)
	for _, category := range []losses.Category{losses.CategoryMargin, losses.CategoryLabel} {
		m := lossOverride{Model: newModel(t, tf), loss: categoryOnly{category: category}}
		loop := newOWA(t, m)

		_, trace, err := loop.Train(tf.CreateOWAInstances(), Options{NumEpochs: 1, BatchSize: 4, NumNegsPerPos: 1})
		assert.ErrorIs(t, err, ErrUnsupportedLoss)
		assert.Empty(t, trace)
	}
}

func TestOWAOptionValidation(t *testing.T) {
	tf := tenTriples(t)
	loop := newOWA(t, newModel(t, tf))

	for _, opts := range []Options{
		{NumEpochs: 0, BatchSize: 4, NumNegsPerPos: 1},
		{NumEpochs: 1, BatchSize: 0, NumNegsPerPos: 1},
		{NumEpochs: 1, BatchSize: 4, NumNegsPerPos: 0},
		{NumEpochs: 1, BatchSize: 4, NumNegsPerPos: 1, LabelSmoothing: true, LabelSmoothingEpsilon: 1},
	} {
		_, _, err := loop.Train(tf.CreateOWAInstances(), opts)
		assert.ErrorIs(t, err, ErrInvalidOptions)
	}

	_, _, err := loop.Train(&knowledge.OWAInstances{}, Options{NumEpochs: 1, BatchSize: 1, NumNegsPerPos: 1})
	assert.ErrorIs(t, err, ErrNoTriples)
}

// shortSampler drops a row after a number of good calls.
type shortSampler struct {
	good  int
	calls int
}

func (s *shortSampler) Sample(positive knowledge.MappedTriples) (knowledge.MappedTriples, error) {
	s.calls++
	out := positive.Clone()
	for i := range out {
		out[i][2] = (out[i][2] + 1) % 3
	}
	if s.calls > s.good {
		return out[1:], nil
	}
	return out, nil
}

func TestShapeMismatchAbortsRun(t *testing.T) {
	tf := tenTriples(t)
	m := newModel(t, tf)
	loop := newOWA(t, m, WithNegativeSampler(&shortSampler{good: 3}))

	_, trace, err := loop.Train(tf.CreateOWAInstances(), Options{NumEpochs: 3, BatchSize: 4, NumNegsPerPos: 1})
	assert.ErrorIs(t, err, ErrShapeMismatch)
	assert.Len(t, trace, 1, "only the completed epoch is recorded")
	assert.Equal(t, model.StateDirty, m.State())
}

func TestSmoothLabels(t *testing.T) {
	const eps = 0.1
	got := SmoothLabels([]float64{1, 0}, eps, 3)
	assert.InDelta(t, 1-eps+eps/2, got[0], 1e-15)
	assert.InDelta(t, eps/2, got[1], 1e-15)
}

func TestCWA(t *testing.T) {
	tf := tenTriples(t)

	margin := newModel(t, tf)
	_, err := NewCWA(margin, optim.NewSGD(margin.Parameters(), 0.1, 0))
	assert.ErrorIs(t, err, ErrMarginLossUnsupported)

	m, err := distmult.New(tf, model.Hyperparameters{EmbeddingDim: 8},
		model.WithSeed(3), model.WithLogger(zerolog.Nop()), model.WithLoss(losses.Spec{Name: "bcewithlogits"}))
	require.NoError(t, err)
	opt, err := optim.New(optim.Spec{Name: "adam", LearningRate: 0.05}, m.Parameters())
	require.NoError(t, err)
	loop, err := NewCWA(m, opt, WithSeed(4), WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	instances := tf.CreateCWAInstances()
	var sizes []int
	_, trace, err := loop.Train(instances, Options{
		NumEpochs:             30,
		BatchSize:             4,
		LabelSmoothing:        true,
		LabelSmoothingEpsilon: 0.05,
		Progress:              Progress{OnBatch: func(e BatchEvent) { sizes = append(sizes, e.Size) }},
	})
	require.NoError(t, err)
	require.Len(t, trace, 30)
	assert.Less(t, trace[29], trace[0])

	perEpoch := (instances.NumPairs() + 3) / 4
	assert.Len(t, sizes, 30*perEpoch)
}

// termRecorder keeps every regularization term the loop collects.
type termRecorder struct {
	model.Model
	terms []float64
}

func (r *termRecorder) CollectRegularizationTerm() float64 {
	v := r.Model.CollectRegularizationTerm()
	r.terms = append(r.terms, v)
	return v
}

func TestCWARegularizesTransH(t *testing.T) {
	tf := tenTriples(t)
	m, err := transh.New(tf, model.Hyperparameters{EmbeddingDim: 8, RegularizationWeight: 1},
		model.WithSeed(5), model.WithLogger(zerolog.Nop()), model.WithLoss(losses.Spec{Name: "bcewithlogits"}))
	require.NoError(t, err)

	// push every entity outside the unit ball
	entities := m.Parameters()[0].Value
	entities.Scale(10, entities)
	m.MarkDirty()

	rec := &termRecorder{Model: m}
	loop, err := NewCWA(rec, optim.NewSGD(m.Parameters(), 0.01, 0), WithSeed(6), WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	_, _, err = loop.Train(tf.CreateCWAInstances(), Options{NumEpochs: 1, BatchSize: 2})
	require.NoError(t, err)
	require.NotEmpty(t, rec.terms)
	for _, term := range rec.terms {
		assert.Positive(t, term)
	}
}
