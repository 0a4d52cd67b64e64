package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/cnclabs/kge/internal/config"
	"github.com/cnclabs/kge/internal/logging"
	"github.com/cnclabs/kge/internal/models"
	"github.com/cnclabs/kge/pkg/knowledge"
	"github.com/cnclabs/kge/pkg/model"
	"github.com/cnclabs/kge/pkg/optim"
	"github.com/cnclabs/kge/pkg/sampling"
	"github.com/cnclabs/kge/pkg/store"
	"github.com/cnclabs/kge/pkg/training"
)

type trainFlags struct {
	train        string
	saveEntity   string
	saveRelation string
	noStore      bool

	model      string
	dimensions int
	loss       string
	margin     float64
	inverse    bool
	assumption string
	epochs     int
	batchSize  int
	negatives  int
	alpha      float64
	optimizer  string
	sampler    string
	filtered   bool
	seed       int64
}

func newTrainCmd(g *globalFlags) *cobra.Command {
	f := &trainFlags{}
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model on a triples file",
		Long: `Train a model on a triples file and store the run.

Input format (triples):
	head relation tail [weight]
	Example: Barack_Obama born_in Hawaii 1.0

Flags take precedence over KGE_* environment variables and the config file.`,
		Example: `  kge train --train kg.txt --model TransE --dimensions 50 --epochs 100
  kge train --train kg.txt --model ComplEx --loss softplus --inverse --seed 7 \
      --save-entity ent.txt --save-relation rel.txt`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTrain(cmd, g, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.train, "train", "", "Triples file to train on")
	fl.StringVar(&f.saveEntity, "save-entity", "", "Write entity embeddings to this file")
	fl.StringVar(&f.saveRelation, "save-relation", "", "Write relation embeddings to this file")
	fl.BoolVar(&f.noStore, "no-store", false, "Do not save the run to the store")

	fl.StringVar(&f.model, "model", "", "Model name")
	fl.IntVar(&f.dimensions, "dimensions", 0, "Embedding dimension")
	fl.StringVar(&f.loss, "loss", "", "Loss: marginranking, softplus, bcewithlogits, mse")
	fl.Float64Var(&f.margin, "margin", 0, "Margin of the ranking loss")
	fl.BoolVar(&f.inverse, "inverse", false, "Train on inverse triples as well")
	fl.StringVar(&f.assumption, "assumption", "", "Training assumption: owa or cwa")
	fl.IntVar(&f.epochs, "epochs", 0, "Number of training epochs")
	fl.IntVar(&f.batchSize, "batch-size", 0, "Batch size")
	fl.IntVar(&f.negatives, "negatives", 0, "Negatives per positive triple")
	fl.Float64Var(&f.alpha, "alpha", 0, "Learning rate")
	fl.StringVar(&f.optimizer, "optimizer", "", "Optimizer: sgd, adagrad, adam")
	fl.StringVar(&f.sampler, "sampler", "", "Negative sampler: basic, bernoulli, unigram")
	fl.BoolVar(&f.filtered, "filtered", false, "Redraw negatives that are known positives")
	fl.Int64Var(&f.seed, "seed", 0, "Random seed for initialization, shuffling and sampling")
	_ = cmd.MarkFlagRequired("train")
	return cmd
}

// apply copies the flags the user set onto cfg.
func (f *trainFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	set := cmd.Flags().Changed
	if set("model") {
		cfg.Model.Name = f.model
	}
	if set("dimensions") {
		cfg.Model.EmbeddingDim = f.dimensions
	}
	if set("loss") {
		cfg.Loss.Name = f.loss
	}
	if set("margin") {
		cfg.Loss.Margin = &f.margin
	}
	if set("inverse") {
		cfg.Model.InverseTriples = f.inverse
	}
	if set("assumption") {
		cfg.Training.Assumption = f.assumption
	}
	if set("epochs") {
		cfg.Training.NumEpochs = f.epochs
	}
	if set("batch-size") {
		cfg.Training.BatchSize = f.batchSize
	}
	if set("negatives") {
		cfg.Training.NumNegsPerPos = f.negatives
	}
	if set("alpha") {
		cfg.Optimizer.LearningRate = f.alpha
	}
	if set("optimizer") {
		cfg.Optimizer.Name = f.optimizer
	}
	if set("sampler") {
		cfg.Training.Sampler = f.sampler
	}
	if set("filtered") {
		cfg.Training.Filtered = f.filtered
	}
	if set("seed") {
		cfg.Model.Seed = f.seed
		cfg.Training.Seed = f.seed
	}
}

func runTrain(cmd *cobra.Command, g *globalFlags, f *trainFlags) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	f.apply(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "═══════════════════════════════════════════════════════")
	fmt.Fprintf(out, "  %s - Knowledge Graph Embedding\n", cfg.Model.Name)
	fmt.Fprintln(out, "═══════════════════════════════════════════════════════")
	fmt.Fprintln(out)

	startTime := time.Now()
	fmt.Fprintln(out, "Loading knowledge graph...")
	tf, err := knowledge.LoadTriples(f.train, cfg.Model.InverseTriples)
	if err != nil {
		return err
	}
	loadTime := time.Since(startTime)
	fmt.Fprintf(out, "Knowledge graph loaded in %.2f seconds\n", loadTime.Seconds())
	fmt.Fprintf(out, "\t#entities: %d  #relations: %d  #triples: %d\n", tf.NumEntities(), tf.NumRealRelations(), tf.NumTriples())
	fmt.Fprintln(out)

	m, err := buildModel(cfg, tf)
	if err != nil {
		return err
	}
	opt, err := optim.New(cfg.OptimizerSpec(), m.Parameters())
	if err != nil {
		return err
	}

	trainStartTime := time.Now()
	trace, err := fit(cfg, tf, m, opt)
	if err != nil {
		return err
	}
	trainTime := time.Since(trainStartTime)
	// the last optimizer step leaves the parameters unconstrained
	m.PostParameterUpdate()

	if f.saveEntity != "" || f.saveRelation != "" {
		fmt.Fprintln(out)
		if err := saveEmbeddings(out, m, tf, f.saveEntity, f.saveRelation); err != nil {
			return err
		}
	}

	if !f.noStore {
		id, err := saveRun(cmd, cfg, tf, m, trace)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\tRun saved as <%s>\n", id)
	}

	totalTime := time.Since(startTime)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "═══════════════════════════════════════════════════════")
	fmt.Fprintln(out, "  Timing Summary")
	fmt.Fprintln(out, "═══════════════════════════════════════════════════════")
	fmt.Fprintf(out, "Loading time:     %.2f seconds\n", loadTime.Seconds())
	fmt.Fprintf(out, "Training time:    %.2f seconds\n", trainTime.Seconds())
	fmt.Fprintf(out, "Total time:       %.2f seconds\n", totalTime.Seconds())
	if len(trace) > 0 {
		fmt.Fprintf(out, "Final loss:       %.6f\n", trace[len(trace)-1])
	}
	return nil
}

func buildModel(cfg *config.Config, tf *knowledge.TriplesFactory) (model.Model, error) {
	opts := []model.Option{model.WithPredictWithSigmoid(cfg.Model.PredictWithSigmoid)}
	if cfg.Model.Seed >= 0 {
		opts = append(opts, model.WithSeed(cfg.Model.Seed))
	}
	if cfg.Loss.Name != "" {
		opts = append(opts, model.WithLoss(cfg.LossSpec()))
	}
	return models.Registry().New(cfg.Model.Name, tf, cfg.Hyperparameters(), opts...)
}

// fit runs the loop selected by the training assumption and returns the
// epoch loss trace.
func fit(cfg *config.Config, tf *knowledge.TriplesFactory, m model.Model, opt optim.Optimizer) ([]float64, error) {
	rng := newRand(cfg.Training.Seed)
	opts := cfg.TrainingOptions()
	opts.Progress.Description = cfg.Model.Name

	if cfg.Training.Assumption == knowledge.ClosedWorld.String() {
		loop, err := training.NewCWA(m, opt, training.WithRand(rng))
		if err != nil {
			return nil, err
		}
		_, trace, err := loop.Train(tf.CreateCWAInstances(), opts)
		return trace, err
	}

	sampler, err := newSampler(cfg, tf, rng)
	if err != nil {
		return nil, err
	}
	loop, err := training.NewOWA(m, opt, training.WithRand(rng), training.WithNegativeSampler(sampler))
	if err != nil {
		return nil, err
	}
	_, trace, err := loop.Train(tf.CreateOWAInstances(), opts)
	return trace, err
}

func newRand(seed int64) *rand.Rand {
	if seed < 0 {
		seed = time.Now().UnixNano()
		logging.Warn().Int64("seed", seed).Msg("no random seed is specified; results will not be reproducible")
	}
	return rand.New(rand.NewSource(seed))
}

func newSampler(cfg *config.Config, tf *knowledge.TriplesFactory, rng *rand.Rand) (sampling.NegativeSampler, error) {
	var (
		s   sampling.NegativeSampler
		err error
	)
	switch cfg.Training.Sampler {
	case "bernoulli":
		s, err = sampling.NewBernoulli(tf, rng)
	case "unigram":
		s, err = sampling.NewUnigram(tf, sampling.DefaultPower, rng)
	default:
		s, err = sampling.NewBasic(tf.NumEntities(), rng)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Training.Filtered {
		s = sampling.NewFiltered(s, tf.MappedTriples())
	}
	return s, nil
}

func saveRun(cmd *cobra.Command, cfg *config.Config, tf *knowledge.TriplesFactory, m model.Model, trace []float64) (string, error) {
	state, err := m.MarshalBinary()
	if err != nil {
		return "", err
	}
	s, err := store.Open(cfg.Store.Path)
	if err != nil {
		return "", err
	}
	defer s.Close()

	return s.Save(cmd.Context(), &store.Run{
		Model: cfg.Model.Name,
		Config: store.RunConfig{
			Hyperparameters:    cfg.Hyperparameters(),
			Loss:               cfg.LossSpec(),
			InverseTriples:     cfg.Model.InverseTriples,
			PredictWithSigmoid: cfg.Model.PredictWithSigmoid,
			Assumption:         cfg.Training.Assumption,
		},
		Losses:    trace,
		Entities:  tf.EntityLabels(),
		Relations: tf.RelationLabels(),
		State:     state,
	})
}
