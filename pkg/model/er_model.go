package model

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/cnclabs/kge/internal/logging"
	"github.com/cnclabs/kge/pkg/knowledge"
	"github.com/cnclabs/kge/pkg/losses"
	"github.com/cnclabs/kge/pkg/optim"
)

// ErrInvalidSpec is returned by NewERModel for incomplete model specs.
var ErrInvalidSpec = errors.New("model: invalid model spec")

// ERSpec describes a model with one representation row per entity and one
// per relation, scored by an Interaction.
type ERSpec struct {
	Name        string
	EntityDim   int
	RelationDim int
	Interaction Interaction

	EntityInit          Initializer
	RelationInit        Initializer
	EntityConstrainer   Constrainer
	RelationConstrainer Constrainer
	Regularizer         Regularizer
	TableRegularizer    TableRegularizer

	DefaultLoss losses.Spec
}

// Option configures an ERModel.
type Option func(*options)

type options struct {
	loss               *losses.Spec
	predictWithSigmoid bool
	seed               *int64
	device             Device
	logger             *zerolog.Logger
}

// WithLoss overrides the model's default loss.
func WithLoss(spec losses.Spec) Option {
	return func(o *options) { o.loss = &spec }
}

// WithPredictWithSigmoid applies a sigmoid to the outputs of the predict
// functions.
func WithPredictWithSigmoid(enabled bool) Option {
	return func(o *options) { o.predictWithSigmoid = enabled }
}

// WithSeed seeds the random source used for parameter initialization.
func WithSeed(seed int64) Option {
	return func(o *options) { o.seed = &seed }
}

func WithDevice(d Device) Option {
	return func(o *options) { o.device = d }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = &l }
}

// ERModel is the generic entity/relation model. Concrete models only
// provide an ERSpec.
type ERModel struct {
	spec ERSpec
	loss losses.Loss
	log  zerolog.Logger
	rng  *rand.Rand

	numEntities      int
	numRelations     int
	numRealRelations int
	inverse          bool

	predictWithSigmoid bool
	device             Device
	training           bool
	state              State

	entity   *optim.Parameter
	relation *optim.Parameter

	// scoring done in training mode since the last regularization collect
	forwarded   bool
	scored      knowledge.MappedTriples
	scoredTails knowledge.Pairs // (h, r) rows scored against every entity
	scoredHeads knowledge.Pairs // (r, t) rows scored against every entity
}

var _ Model = (*ERModel)(nil)

// NewERModel builds the model for the graph described by info and
// initializes its parameters.
func NewERModel(info knowledge.KGInfo, spec ERSpec, opts ...Option) (*ERModel, error) {
	if spec.Interaction == nil {
		return nil, fmt.Errorf("%w: %s has no interaction", ErrInvalidSpec, spec.Name)
	}
	if spec.EntityDim <= 0 || spec.RelationDim <= 0 {
		return nil, fmt.Errorf("%w: %s dimensions %d/%d", ErrInvalidSpec, spec.Name, spec.EntityDim, spec.RelationDim)
	}
	if info.NumEntities() == 0 || info.NumRelations() == 0 {
		return nil, fmt.Errorf("%w: empty graph", ErrInvalidSpec)
	}
	if spec.EntityInit == nil {
		spec.EntityInit = XavierUniform
	}
	if spec.RelationInit == nil {
		spec.RelationInit = XavierUniform
	}

	o := options{device: CPU}
	for _, opt := range opts {
		opt(&o)
	}

	log := logging.With("model")
	if o.logger != nil {
		log = *o.logger
	}

	lossSpec := spec.DefaultLoss
	if o.loss != nil {
		lossSpec = *o.loss
	}
	if lossSpec.Name == "" {
		lossSpec.Name = "marginranking"
	}
	loss, err := losses.Resolve(lossSpec)
	if err != nil {
		return nil, err
	}

	var seed int64
	if o.seed != nil {
		seed = *o.seed
	} else {
		seed = time.Now().UnixNano()
		log.Warn().Str("model", spec.Name).Int64("seed", seed).Msg("no random seed is specified; results will not be reproducible")
	}

	m := &ERModel{
		spec:               spec,
		loss:               loss,
		log:                log,
		rng:                rand.New(rand.NewSource(seed)),
		numEntities:        info.NumEntities(),
		numRelations:       info.NumRelations(),
		numRealRelations:   info.NumRealRelations(),
		inverse:            info.CreateInverseTriples(),
		predictWithSigmoid: o.predictWithSigmoid,
		device:             o.device,
		training:           true,
		entity:             optim.NewParameter("entity", info.NumEntities(), spec.EntityDim),
		relation:           optim.NewParameter("relation", info.NumRelations(), spec.RelationDim),
	}
	m.ResetParameters()

	m.log.Debug().
		Str("model", spec.Name).
		Int("entities", m.numEntities).
		Int("relations", m.numRelations).
		Bool("inverse_triples", m.inverse).
		Str("loss", loss.Name()).
		Msg("model created")
	return m, nil
}

func (m *ERModel) Name() string { return m.spec.Name }

func (m *ERModel) NumEntities() int         { return m.numEntities }
func (m *ERModel) NumRelations() int        { return m.numRelations }
func (m *ERModel) NumRealRelations() int    { return m.numRealRelations }
func (m *ERModel) UsesInverseTriples() bool { return m.inverse }
func (m *ERModel) PredictWithSigmoid() bool { return m.predictWithSigmoid }
func (m *ERModel) Loss() losses.Loss        { return m.loss }
func (m *ERModel) Device() Device           { return m.device }

func (m *ERModel) TrainMode()       { m.training = true }
func (m *ERModel) EvalMode()        { m.training = false }
func (m *ERModel) IsTraining() bool { return m.training }

func (m *ERModel) State() State { return m.state }

func (m *ERModel) Parameters() []*optim.Parameter {
	return []*optim.Parameter{m.entity, m.relation}
}

// Embeddings returns the entity and relation representation matrices. They
// are the live parameters and must not be modified.
func (m *ERModel) Embeddings() (entities, relations mat.Matrix) {
	return m.entity.Value, m.relation.Value
}

// ResetParameters draws fresh representations, enforces the constraints and
// clears all gradients.
func (m *ERModel) ResetParameters() {
	m.spec.EntityInit(m.entity.Value, m.rng)
	m.spec.RelationInit(m.relation.Value, m.rng)
	m.constrain()
	m.entity.Grad.Zero()
	m.relation.Grad.Zero()
	m.resetScored()
	m.state = StateInitialized
}

// MarkDirty records that the parameters changed outside the model.
func (m *ERModel) MarkDirty() {
	if m.state != StateUninitialized {
		m.state = StateDirty
	}
}

// PostParameterUpdate enforces the model constraints.
func (m *ERModel) PostParameterUpdate() {
	if m.state == StateUninitialized {
		return
	}
	m.constrain()
	m.state = StateConstrained
}

func (m *ERModel) constrain() {
	if m.spec.EntityConstrainer != nil {
		m.spec.EntityConstrainer(m.entity.Value)
	}
	if m.spec.RelationConstrainer != nil {
		m.spec.RelationConstrainer(m.relation.Value)
	}
}

// forward runs the checks shared by all scoring calls and moves a dirty
// model to the constrained state.
func (m *ERModel) forward(opts []ScoreOption) (scoreConfig, error) {
	if m.state == StateUninitialized {
		return scoreConfig{}, ErrUninitialized
	}
	cfg, err := newScoreConfig(opts)
	if err != nil {
		return cfg, err
	}
	if _, err := m.entityLen(cfg.mode); err != nil {
		return cfg, err
	}
	if m.state == StateDirty {
		m.PostParameterUpdate()
	}
	return cfg, nil
}

// entityLen is the size of the entity universe in the given mode. The
// model is transductive, so only that mode exists.
func (m *ERModel) entityLen(mode InductiveMode) (int, error) {
	if mode != Transductive {
		return 0, fmt.Errorf("%w: %q", ErrInductiveModeUnsupported, mode)
	}
	return m.numEntities, nil
}

func (m *ERModel) checkEntity(id int64) error {
	if id < 0 || id >= int64(m.numEntities) {
		return fmt.Errorf("%w: entity %d out of range [0, %d)", ErrInvalidBatch, id, m.numEntities)
	}
	return nil
}

func (m *ERModel) checkRelation(id int64) error {
	if id < 0 || id >= int64(m.numRelations) {
		return fmt.Errorf("%w: relation %d out of range [0, %d)", ErrInvalidBatch, id, m.numRelations)
	}
	return nil
}

func (m *ERModel) checkTriples(batch knowledge.MappedTriples) error {
	if len(batch) == 0 {
		return fmt.Errorf("%w: empty batch", ErrInvalidBatch)
	}
	for _, row := range batch {
		if err := m.checkEntity(row[0]); err != nil {
			return err
		}
		if err := m.checkRelation(row[1]); err != nil {
			return err
		}
		if err := m.checkEntity(row[2]); err != nil {
			return err
		}
	}
	return nil
}

// checkPairs validates a pair batch; kinds names the ID type of each column.
func (m *ERModel) checkPairs(batch knowledge.Pairs, kinds [2]byte) error {
	if len(batch) == 0 {
		return fmt.Errorf("%w: empty batch", ErrInvalidBatch)
	}
	for _, row := range batch {
		for i, kind := range kinds {
			check := m.checkEntity
			if kind == 'r' {
				check = m.checkRelation
			}
			if err := check(row[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *ERModel) entityRow(id int64) []float64   { return m.entity.Value.RawRowView(int(id)) }
func (m *ERModel) relationRow(id int64) []float64 { return m.relation.Value.RawRowView(int(id)) }

func (m *ERModel) ScoreHRT(hrt knowledge.MappedTriples, opts ...ScoreOption) (*mat.Dense, error) {
	if _, err := m.forward(opts); err != nil {
		return nil, err
	}
	if err := m.checkTriples(hrt); err != nil {
		return nil, err
	}

	scores := mat.NewDense(len(hrt), 1, nil)
	for i, row := range hrt {
		scores.Set(i, 0, m.spec.Interaction.Score(m.entityRow(row[0]), m.relationRow(row[1]), m.entityRow(row[2])))
	}
	if m.training {
		m.forwarded = true
		if m.spec.Regularizer != nil {
			m.scored = append(m.scored, hrt...)
		}
	}
	return scores, nil
}

func (m *ERModel) ScoreT(hr knowledge.Pairs, opts ...ScoreOption) (*mat.Dense, error) {
	cfg, err := m.forward(opts)
	if err != nil {
		return nil, err
	}
	if err := m.checkPairs(hr, [2]byte{'e', 'r'}); err != nil {
		return nil, err
	}
	scores := m.scoreCandidates(len(hr), m.numEntities, cfg.sliceSize, func(i, c int) float64 {
		return m.spec.Interaction.Score(m.entityRow(hr[i][0]), m.relationRow(hr[i][1]), m.entityRow(int64(c)))
	})
	if m.training {
		m.forwarded = true
		if m.spec.Regularizer != nil {
			m.scoredTails = append(m.scoredTails, hr...)
		}
	}
	return scores, nil
}

func (m *ERModel) ScoreH(rt knowledge.Pairs, opts ...ScoreOption) (*mat.Dense, error) {
	cfg, err := m.forward(opts)
	if err != nil {
		return nil, err
	}
	if err := m.checkPairs(rt, [2]byte{'r', 'e'}); err != nil {
		return nil, err
	}
	scores := m.scoreCandidates(len(rt), m.numEntities, cfg.sliceSize, func(i, c int) float64 {
		return m.spec.Interaction.Score(m.entityRow(int64(c)), m.relationRow(rt[i][0]), m.entityRow(rt[i][1]))
	})
	if m.training {
		m.forwarded = true
		if m.spec.Regularizer != nil {
			m.scoredHeads = append(m.scoredHeads, rt...)
		}
	}
	return scores, nil
}

// ScoreR scores every real relation. With inverse triples, column j holds
// the forward relation with internal ID 2j.
func (m *ERModel) ScoreR(ht knowledge.Pairs, opts ...ScoreOption) (*mat.Dense, error) {
	cfg, err := m.forward(opts)
	if err != nil {
		return nil, err
	}
	if err := m.checkPairs(ht, [2]byte{'e', 'e'}); err != nil {
		return nil, err
	}
	return m.scoreCandidates(len(ht), m.numRealRelations, cfg.sliceSize, func(i, c int) float64 {
		r := int64(c)
		if m.inverse {
			r = knowledge.DefaultInverter.Forward(r)
		}
		return m.spec.Interaction.Score(m.entityRow(ht[i][0]), m.relationRow(r), m.entityRow(ht[i][1]))
	}), nil
}

// scoreCandidates fills a rows x n score matrix, sliceSize candidate columns
// at a time when sliceSize > 0.
func (m *ERModel) scoreCandidates(rows, n, sliceSize int, score func(i, c int) float64) *mat.Dense {
	if sliceSize <= 0 || sliceSize > n {
		sliceSize = n
	}
	out := mat.NewDense(rows, n, nil)
	for start := 0; start < n; start += sliceSize {
		end := min(start+sliceSize, n)
		block := out.Slice(0, rows, start, end).(*mat.Dense)
		for i := 0; i < rows; i++ {
			dst := block.RawRowView(i)
			for c := start; c < end; c++ {
				dst[c-start] = score(i, c)
			}
		}
	}
	return out
}

func (m *ERModel) BackwardHRT(hrt knowledge.MappedTriples, grad []float64) error {
	if m.state == StateUninitialized {
		return ErrUninitialized
	}
	if len(grad) != len(hrt) {
		return fmt.Errorf("%w: %d gradients for %d triples", ErrInvalidBatch, len(grad), len(hrt))
	}
	if err := m.checkTriples(hrt); err != nil {
		return err
	}
	for i, row := range hrt {
		if grad[i] == 0 {
			continue
		}
		m.spec.Interaction.Gradient(
			m.entityRow(row[0]), m.relationRow(row[1]), m.entityRow(row[2]), grad[i],
			m.entity.Grad.RawRowView(int(row[0])),
			m.relation.Grad.RawRowView(int(row[1])),
			m.entity.Grad.RawRowView(int(row[2])),
		)
	}
	return nil
}

func (m *ERModel) BackwardT(hr knowledge.Pairs, grad *mat.Dense) error {
	if m.state == StateUninitialized {
		return ErrUninitialized
	}
	if err := m.checkPairs(hr, [2]byte{'e', 'r'}); err != nil {
		return err
	}
	if r, c := grad.Dims(); r != len(hr) || c != m.numEntities {
		return fmt.Errorf("%w: gradient is %dx%d, want %dx%d", ErrInvalidBatch, r, c, len(hr), m.numEntities)
	}
	for i, row := range hr {
		h, r := m.entityRow(row[0]), m.relationRow(row[1])
		dh := m.entity.Grad.RawRowView(int(row[0]))
		dr := m.relation.Grad.RawRowView(int(row[1]))
		for c, g := range grad.RawRowView(i) {
			if g == 0 {
				continue
			}
			m.spec.Interaction.Gradient(h, r, m.entityRow(int64(c)), g, dh, dr, m.entity.Grad.RawRowView(c))
		}
	}
	return nil
}

// CollectRegularizationTerm returns the regularization term of the scoring
// done in training mode since the last call, accumulates its gradient and
// resets the record. Triple penalties are averaged over every scored triple,
// the candidates of ScoreT and ScoreH included. The table penalty is added
// once.
func (m *ERModel) CollectRegularizationTerm() float64 {
	defer m.resetScored()
	if !m.forwarded {
		return 0
	}
	total := 0.0
	if reg := m.spec.Regularizer; reg != nil {
		total += m.triplePenalty(reg)
	}
	if reg := m.spec.TableRegularizer; reg != nil {
		total += reg.PenaltyTables(m.entity.Value, m.relation.Value, m.entity.Grad, m.relation.Grad)
	}
	return total
}

func (m *ERModel) triplePenalty(reg Regularizer) float64 {
	n := len(m.scored) + (len(m.scoredTails)+len(m.scoredHeads))*m.numEntities
	if n == 0 {
		return 0
	}
	scale := 1 / float64(n)
	total := 0.0
	add := func(h, r, t int64) {
		total += reg.Penalty(
			m.entityRow(h), m.relationRow(r), m.entityRow(t), scale,
			m.entity.Grad.RawRowView(int(h)),
			m.relation.Grad.RawRowView(int(r)),
			m.entity.Grad.RawRowView(int(t)),
		)
	}
	for _, row := range m.scored {
		add(row[0], row[1], row[2])
	}
	for _, row := range m.scoredTails {
		for c := 0; c < m.numEntities; c++ {
			add(row[0], row[1], int64(c))
		}
	}
	for _, row := range m.scoredHeads {
		for c := 0; c < m.numEntities; c++ {
			add(int64(c), row[0], row[1])
		}
	}
	return total * scale
}

func (m *ERModel) resetScored() {
	m.forwarded = false
	m.scored = nil
	m.scoredTails = nil
	m.scoredHeads = nil
}
