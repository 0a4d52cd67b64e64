// Package model defines the scoring contract every embedding model satisfies,
// the generic entity/relation model built on pluggable interactions, and the
// prediction layer on top of it.
package model

import (
	"errors"

	"gonum.org/v1/gonum/mat"

	"github.com/cnclabs/kge/pkg/knowledge"
	"github.com/cnclabs/kge/pkg/losses"
	"github.com/cnclabs/kge/pkg/optim"
)

var (
	ErrUninitialized            = errors.New("model: parameters are not initialized")
	ErrInvalidBatch             = errors.New("model: invalid batch")
	ErrInductiveModeUnsupported = errors.New("model: inductive mode is not supported by this model")
	ErrInverseTriplesDisabled   = errors.New("model: model was not trained with inverse triples")
	ErrUnknownTarget            = errors.New("model: unknown prediction target")
	ErrInvalidSliceSize         = errors.New("model: slice size must be positive")
	ErrShapeMismatch            = errors.New("model: parameter shape mismatch")
)

// Device names where the parameters live. Only the CPU exists.
type Device string

const CPU Device = "cpu"

// InductiveMode selects the entity universe for inductive models. The zero
// value is the transductive setting.
type InductiveMode string

const (
	Transductive InductiveMode = ""
	Training     InductiveMode = "training"
	Validation   InductiveMode = "validation"
	Testing      InductiveMode = "testing"
)

// ScoreOption tunes a single scoring call.
type ScoreOption func(*scoreConfig)

type scoreConfig struct {
	sliceSize int
	mode      InductiveMode
}

// WithSliceSize computes candidate scores in chunks of n columns. The result
// is identical to an unsliced call.
func WithSliceSize(n int) ScoreOption {
	return func(c *scoreConfig) { c.sliceSize = n }
}

// WithMode scores in the given inductive mode.
func WithMode(mode InductiveMode) ScoreOption {
	return func(c *scoreConfig) { c.mode = mode }
}

func newScoreConfig(opts []ScoreOption) (scoreConfig, error) {
	var c scoreConfig
	for _, opt := range opts {
		opt(&c)
	}
	if c.sliceSize < 0 {
		return c, ErrInvalidSliceSize
	}
	return c, nil
}

// Model is the contract shared by all embedding models.
//
// Relation IDs seen by the scoring methods are internal IDs: with inverse
// triples enabled the forward relation r is 2r and its inverse 2r+1 (see
// knowledge.RelationInverter). The prediction layer accepts external IDs.
type Model interface {
	// ScoreHRT scores full triples (B x 3) and returns B x 1 scores.
	ScoreHRT(hrt knowledge.MappedTriples, opts ...ScoreOption) (*mat.Dense, error)
	// ScoreT scores (head, relation) pairs against every entity as tail.
	ScoreT(hr knowledge.Pairs, opts ...ScoreOption) (*mat.Dense, error)
	// ScoreH scores (relation, tail) pairs against every entity as head.
	ScoreH(rt knowledge.Pairs, opts ...ScoreOption) (*mat.Dense, error)
	// ScoreR scores (head, tail) pairs against every real relation.
	ScoreR(ht knowledge.Pairs, opts ...ScoreOption) (*mat.Dense, error)

	// CollectRegularizationTerm returns the penalty accumulated since the
	// last call and adds its gradient to the parameter gradients.
	CollectRegularizationTerm() float64
	ResetParameters()
	Device() Device

	NumEntities() int
	NumRelations() int
	NumRealRelations() int
	UsesInverseTriples() bool
	PredictWithSigmoid() bool
	Loss() losses.Loss

	TrainMode()
	EvalMode()
	IsTraining() bool

	State() State
	MarkDirty()
	PostParameterUpdate()

	// BackwardHRT accumulates grad[i] * dScore/dParams for every triple.
	BackwardHRT(hrt knowledge.MappedTriples, grad []float64) error
	// BackwardT is the gradient counterpart of ScoreT.
	BackwardT(hr knowledge.Pairs, grad *mat.Dense) error
	Parameters() []*optim.Parameter

	MarshalBinary() ([]byte, error)
	UnmarshalBinary(data []byte) error
}
