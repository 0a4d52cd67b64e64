package model

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cnclabs/kge/pkg/knowledge"
)

func trilinearDescriptor() Descriptor {
	return Descriptor{
		Name: "Trilinear",
		Citation: Citation{
			Author: "Yang",
			Year:   2014,
			Title:  "Embedding Entities and Relations for Learning and Inference in Knowledge Bases",
		},
		New: func(info knowledge.KGInfo, hp Hyperparameters, opts ...Option) (Model, error) {
			spec := testSpec()
			spec.EntityDim, spec.RelationDim = hp.EmbeddingDim, hp.EmbeddingDim
			return NewERModel(info, spec, opts...)
		},
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(trilinearDescriptor()))
	assert.Equal(t, []string{"Trilinear"}, r.Names())

	d, err := r.Lookup("trilinear")
	require.NoError(t, err)
	assert.Equal(t, 2014, d.Citation.Year)
	assert.Contains(t, d.Citation.String(), "Yang (2014)")

	m, err := r.New("TRILINEAR", testFactory(t, false), Hyperparameters{EmbeddingDim: 8}, WithSeed(1), WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	assert.Equal(t, 3, m.NumEntities())

	err = r.Register(trilinearDescriptor())
	assert.ErrorIs(t, err, ErrDuplicateModel)

	_, err = r.Lookup("transx")
	assert.ErrorIs(t, err, ErrUnknownModel)
}

func TestRegistryRequiresCitation(t *testing.T) {
	r := NewRegistry()
	d := trilinearDescriptor()
	d.Citation.Year = 0
	d.Citation.Title = ""

	err := r.Register(d)
	assert.ErrorIs(t, err, ErrMissingCitation)
	assert.Contains(t, err.Error(), "year, title")

	assert.Panics(t, func() { r.MustRegister(d) })
	assert.Empty(t, r.Names())
}
