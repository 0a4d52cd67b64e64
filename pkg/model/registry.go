package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cnclabs/kge/pkg/knowledge"
)

var (
	ErrUnknownModel    = errors.New("model: unknown model")
	ErrDuplicateModel  = errors.New("model: model already registered")
	ErrMissingCitation = errors.New("model: citation is incomplete")
)

// Citation identifies the publication a model comes from.
type Citation struct {
	Author string
	Year   int
	Title  string
	Link   string
}

func (c Citation) validate() error {
	var missing []string
	if c.Author == "" {
		missing = append(missing, "author")
	}
	if c.Year == 0 {
		missing = append(missing, "year")
	}
	if c.Title == "" {
		missing = append(missing, "title")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrMissingCitation, strings.Join(missing, ", "))
	}
	return nil
}

func (c Citation) String() string {
	return fmt.Sprintf("%s (%d). %s", c.Author, c.Year, c.Title)
}

// Hyperparameters are the settings shared by the registered models.
type Hyperparameters struct {
	EmbeddingDim         int     `koanf:"embedding_dim"`
	ScoringNorm          int     `koanf:"scoring_norm"`
	RegularizationWeight float64 `koanf:"regularization_weight"`
}

// Factory builds a model for the graph described by info.
type Factory func(info knowledge.KGInfo, hp Hyperparameters, opts ...Option) (Model, error)

// Descriptor is a registry entry.
type Descriptor struct {
	Name     string
	Citation Citation
	New      Factory
}

// Registry maps lower-cased model names to their descriptors.
type Registry struct {
	models map[string]Descriptor
}

func NewRegistry() *Registry {
	return &Registry{models: make(map[string]Descriptor)}
}

// Register validates d and adds it to the registry.
func (r *Registry) Register(d Descriptor) error {
	key := strings.ToLower(d.Name)
	if key == "" || d.New == nil {
		return fmt.Errorf("%w: descriptor needs a name and a factory", ErrUnknownModel)
	}
	if err := d.Citation.validate(); err != nil {
		return fmt.Errorf("register %s: %w", d.Name, err)
	}
	if _, ok := r.models[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateModel, d.Name)
	}
	r.models[key] = d
	return nil
}

// MustRegister is Register for static tables; it panics on error.
func (r *Registry) MustRegister(ds ...Descriptor) *Registry {
	for _, d := range ds {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) Lookup(name string) (Descriptor, error) {
	d, ok := r.models[strings.ToLower(name)]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q (available: %s)", ErrUnknownModel, name, strings.Join(r.Names(), ", "))
	}
	return d, nil
}

// New builds the named model.
func (r *Registry) New(name string, info knowledge.KGInfo, hp Hyperparameters, opts ...Option) (Model, error) {
	d, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	return d.New(info, hp, opts...)
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.models))
	for _, d := range r.models {
		names = append(names, d.Name)
	}
	sort.Strings(names)
	return names
}
