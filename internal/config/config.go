// Package config loads the kge command configuration with koanf. Sources are
// applied in order: built-in defaults, an optional YAML file, then KGE_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/cnclabs/kge/internal/logging"
	"github.com/cnclabs/kge/pkg/losses"
	"github.com/cnclabs/kge/pkg/model"
	"github.com/cnclabs/kge/pkg/optim"
	"github.com/cnclabs/kge/pkg/store"
	"github.com/cnclabs/kge/pkg/training"
)

// EnvPrefix marks the environment variables read by Load.
const EnvPrefix = "KGE_"

// PathEnvVar overrides the config file path when no path is passed to Load.
const PathEnvVar = "KGE_CONFIG"

// DefaultPaths are searched in order when neither a path nor KGE_CONFIG is set.
var DefaultPaths = []string{"kge.yaml", "kge.yml"}

var ErrInvalid = errors.New("config: invalid configuration")

type Config struct {
	Model     ModelConfig     `koanf:"model"`
	Loss      LossConfig      `koanf:"loss"`
	Optimizer OptimizerConfig `koanf:"optimizer"`
	Training  TrainingConfig  `koanf:"training"`
	Logging   LoggingConfig   `koanf:"logging"`
	Store     StoreConfig     `koanf:"store"`
}

type ModelConfig struct {
	Name                 string  `koanf:"name" validate:"required"`
	EmbeddingDim         int     `koanf:"embedding_dim" validate:"gte=0"`
	ScoringNorm          int     `koanf:"scoring_norm" validate:"oneof=0 1 2"`
	RegularizationWeight float64 `koanf:"regularization_weight" validate:"gte=0"`
	InverseTriples       bool    `koanf:"inverse_triples"`
	PredictWithSigmoid   bool    `koanf:"predict_with_sigmoid"`
	// Seed drives parameter initialization. Negative means unseeded.
	Seed int64 `koanf:"seed"`
}

// LossConfig leaves Name empty to keep the model's default loss.
type LossConfig struct {
	Name string `koanf:"name"`
	// Margin is left nil to keep the default margin of 1.
	Margin    *float64 `koanf:"margin" validate:"omitempty,gte=0"`
	Reduction string   `koanf:"reduction" validate:"omitempty,oneof=mean sum"`
}

type OptimizerConfig struct {
	Name         string  `koanf:"name" validate:"omitempty,oneof=sgd adagrad adam"`
	LearningRate float64 `koanf:"learning_rate" validate:"gt=0"`
	WeightDecay  float64 `koanf:"weight_decay" validate:"gte=0"`
}

type TrainingConfig struct {
	Assumption            string  `koanf:"assumption" validate:"oneof=owa cwa"`
	NumEpochs             int     `koanf:"num_epochs" validate:"gt=0"`
	BatchSize             int     `koanf:"batch_size" validate:"gt=0"`
	NumNegsPerPos         int     `koanf:"num_negs_per_pos" validate:"gt=0"`
	LabelSmoothing        bool    `koanf:"label_smoothing"`
	LabelSmoothingEpsilon float64 `koanf:"label_smoothing_epsilon" validate:"gte=0,lt=1"`
	Sampler               string  `koanf:"sampler" validate:"oneof=basic bernoulli unigram"`
	// Filtered drops sampled negatives that are known positives.
	Filtered bool `koanf:"filtered"`
	// Seed drives shuffling and sampling. Negative means unseeded.
	Seed int64 `koanf:"seed"`
}

type LoggingConfig struct {
	Level     string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format    string `koanf:"format" validate:"oneof=console json"`
	Caller    bool   `koanf:"caller"`
	Timestamp bool   `koanf:"timestamp"`
}

type StoreConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// Default returns the configuration used when no source overrides a value.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Name:         "TransE",
			EmbeddingDim: 50,
			ScoringNorm:  1,
			Seed:         -1,
		},
		Optimizer: OptimizerConfig{
			Name:         "sgd",
			LearningRate: 0.01,
		},
		Training: TrainingConfig{
			Assumption:    "owa",
			NumEpochs:     100,
			BatchSize:     256,
			NumNegsPerPos: 1,
			Sampler:       "basic",
			Seed:          -1,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "console",
			Timestamp: true,
		},
		Store: StoreConfig{
			Path: store.DefaultPath,
		},
	}
}

// Load merges defaults, the YAML file at path (or the first file found by
// findFile when path is empty) and the environment, then validates.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = findFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findFile() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		return p
	}
	for _, p := range DefaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envKey maps KGE_TRAINING_BATCH_SIZE to training.batch_size. Every section
// is flat, so only the first underscore separates section and key.
func envKey(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	if key == "config" {
		return ""
	}
	section, rest, ok := strings.Cut(key, "_")
	if !ok {
		return ""
	}
	return section + "." + rest
}

var validate = validator.New()

// Validate checks field ranges and the rules that span sections.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if c.Loss.Name == "" {
		return nil
	}
	loss, err := losses.Resolve(c.LossSpec())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if loss.Category() != losses.CategoryMargin {
		return nil
	}
	if c.Training.LabelSmoothing {
		return fmt.Errorf("%w: %v", ErrInvalid, training.ErrIncompatibleLabelSmoothing)
	}
	if c.Training.Assumption == "cwa" {
		return fmt.Errorf("%w: %v", ErrInvalid, training.ErrMarginLossUnsupported)
	}
	return nil
}

// Hyperparameters returns the model section as registry hyperparameters.
func (c *Config) Hyperparameters() model.Hyperparameters {
	return model.Hyperparameters{
		EmbeddingDim:         c.Model.EmbeddingDim,
		ScoringNorm:          c.Model.ScoringNorm,
		RegularizationWeight: c.Model.RegularizationWeight,
	}
}

func (c *Config) LossSpec() losses.Spec {
	return losses.Spec{Name: c.Loss.Name, Margin: c.Loss.Margin, Reduction: losses.Reduction(c.Loss.Reduction)}
}

func (c *Config) OptimizerSpec() optim.Spec {
	return optim.Spec{Name: c.Optimizer.Name, LearningRate: c.Optimizer.LearningRate, WeightDecay: c.Optimizer.WeightDecay}
}

// TrainingOptions returns the per-run loop settings. Progress is left to the
// caller.
func (c *Config) TrainingOptions() training.Options {
	return training.Options{
		NumEpochs:             c.Training.NumEpochs,
		BatchSize:             c.Training.BatchSize,
		NumNegsPerPos:         c.Training.NumNegsPerPos,
		LabelSmoothing:        c.Training.LabelSmoothing,
		LabelSmoothingEpsilon: c.Training.LabelSmoothingEpsilon,
	}
}

func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level:     c.Logging.Level,
		Format:    c.Logging.Format,
		Caller:    c.Logging.Caller,
		Timestamp: c.Logging.Timestamp,
	}
}
