package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/cnclabs/kge/internal/models"
	"github.com/cnclabs/kge/pkg/knowledge"
	"github.com/cnclabs/kge/pkg/losses"
	"github.com/cnclabs/kge/pkg/model"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveLoad(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	run := &Run{
		Model: "TransE",
		Config: RunConfig{
			Hyperparameters: model.Hyperparameters{EmbeddingDim: 16, ScoringNorm: 1},
			Loss:            losses.Spec{Name: "marginranking", Margin: losses.Margin(2)},
			InverseTriples:  true,
			Assumption:      "owa",
		},
		Losses:    []float64{1.5, 0.75},
		Entities:  []string{"a", "b"},
		Relations: []string{"likes"},
		State:     []byte{1, 2, 3},
	}
	id, err := s.Save(ctx, run)
	require.NoError(t, err)
	assert.Len(t, id, 36)
	assert.Equal(t, id, run.ID)

	got, err := s.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, run.Model, got.Model)
	assert.Equal(t, run.Config, got.Config)
	assert.Equal(t, run.Losses, got.Losses)
	assert.Equal(t, run.Entities, got.Entities)
	assert.Equal(t, run.Relations, got.Relations)
	assert.Equal(t, run.State, got.State)
	assert.WithinDuration(t, run.CreatedAt, got.CreatedAt, time.Millisecond)

	_, err = s.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAndDelete(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	old, err := s.Save(ctx, &Run{Model: "TransE", CreatedAt: base, Losses: []float64{3, 2}})
	require.NoError(t, err)
	recent, err := s.Save(ctx, &Run{Model: "RotatE", CreatedAt: base.Add(time.Hour)})
	require.NoError(t, err)

	runs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, recent, runs[0].ID)
	assert.Equal(t, 0, runs[0].Epochs)
	assert.Equal(t, old, runs[1].ID)
	assert.Equal(t, 2, runs[1].Epochs)
	assert.Equal(t, 2.0, runs[1].FinalLoss)

	require.NoError(t, s.Delete(ctx, old))
	assert.ErrorIs(t, s.Delete(ctx, old), ErrNotFound)

	runs, err = s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestInMemory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	id, err := s.Save(context.Background(), &Run{Model: "DistMult"})
	require.NoError(t, err)
	_, err = s.Load(context.Background(), id)
	require.NoError(t, err)
}

func TestRestore(t *testing.T) {
	tf, err := knowledge.FromLabeledTriples([]knowledge.Triple{
		{Head: "a", Relation: "likes", Tail: "b"},
		{Head: "b", Relation: "likes", Tail: "c"},
	}, true)
	require.NoError(t, err)

	registry := models.Registry()
	hp := model.Hyperparameters{EmbeddingDim: 6}
	m, err := registry.New("ComplEx", tf, hp, model.WithSeed(5), model.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	state, err := m.MarshalBinary()
	require.NoError(t, err)

	s := openTest(t)
	ctx := context.Background()
	id, err := s.Save(ctx, &Run{
		Model:     "ComplEx",
		Config:    RunConfig{Hyperparameters: hp, InverseTriples: true},
		Entities:  tf.EntityLabels(),
		Relations: tf.RelationLabels(),
		State:     state,
	})
	require.NoError(t, err)

	run, err := s.Load(ctx, id)
	require.NoError(t, err)
	restored, rtf, err := Restore(run, registry, model.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	assert.Equal(t, tf.EntityToID(), rtf.EntityToID())
	assert.Equal(t, "softplus", restored.Loss().Name())

	query := knowledge.MappedTriples{{0, 0, 1}}
	want, err := model.Predict(m, query, model.TargetTail)
	require.NoError(t, err)
	got, err := model.Predict(restored, query, model.TargetTail)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, got))

	_, _, err = Restore(&Run{ID: "empty", Model: "ComplEx"}, registry)
	assert.ErrorIs(t, err, ErrNoState)
}
