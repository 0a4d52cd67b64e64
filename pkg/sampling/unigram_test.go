package sampling

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cnclabs/kge/pkg/knowledge"
)

func TestAliasTableFrequencies(t *testing.T) {
	table := newAliasTable([]float64{1, 0, 3, 4}, 1)
	rng := rand.New(rand.NewSource(7))

	counts := make([]int, 4)
	const n = 80000
	for i := 0; i < n; i++ {
		counts[table.draw(rng)]++
	}
	assert.Zero(t, counts[1], "zero weight is never drawn")
	assert.InDelta(t, 1.0/8, float64(counts[0])/n, 0.01)
	assert.InDelta(t, 3.0/8, float64(counts[2])/n, 0.01)
	assert.InDelta(t, 4.0/8, float64(counts[3])/n, 0.01)
}

func TestAliasTableAllZeroIsUniform(t *testing.T) {
	table := newAliasTable([]float64{0, 0}, DefaultPower)
	rng := rand.New(rand.NewSource(1))
	seen := map[int64]bool{}
	for i := 0; i < 100; i++ {
		seen[table.draw(rng)] = true
	}
	assert.Len(t, seen, 2)
}

func TestUnigramPrefersFrequentEntities(t *testing.T) {
	// hub appears in every triple
	var triples []knowledge.Triple
	for _, e := range []string{"a", "b", "c", "d"} {
		triples = append(triples, knowledge.Triple{Head: "hub", Relation: "r", Tail: e})
	}
	tf, err := knowledge.FromLabeledTriples(triples, false)
	require.NoError(t, err)

	s, err := NewUnigram(tf, 1, rand.New(rand.NewSource(3)))
	require.NoError(t, err)

	pos := knowledge.MappedTriples{{1, 0, 2}}
	hub := 0
	const rounds = 4000
	for i := 0; i < rounds; i++ {
		neg, err := s.Sample(pos)
		require.NoError(t, err)
		require.Len(t, neg, 1)
		require.True(t, differsInOneEntity(pos[0], neg[0]), "neg=%v", neg[0])
		if neg[0][0] == 0 || neg[0][2] == 0 {
			hub++
		}
	}
	// hub has half of all occurrences and is never the replaced entity
	assert.Greater(t, float64(hub)/rounds, 0.5)
}

func TestUnigramFallsBackWhenOnlyCurrentIsWeighted(t *testing.T) {
	tf, err := knowledge.NewTriplesFactory(
		knowledge.MappedTriples{{0, 0, 0}},
		map[string]int64{"self": 0, "other": 1},
		map[string]int64{"r": 0},
		false,
	)
	require.NoError(t, err)

	s, err := NewUnigram(tf, DefaultPower, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	neg, err := s.Sample(knowledge.MappedTriples{{0, 0, 0}})
	require.NoError(t, err)
	assert.True(t, differsInOneEntity([3]int64{0, 0, 0}, neg[0]))
}

func TestNewUnigramValidation(t *testing.T) {
	tf, err := knowledge.FromLabeledTriples([]knowledge.Triple{{Head: "a", Relation: "r", Tail: "a"}}, false)
	require.NoError(t, err)
	_, err = NewUnigram(tf, DefaultPower, rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, ErrTooFewEntities)
}
