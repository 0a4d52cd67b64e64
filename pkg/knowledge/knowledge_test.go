package knowledge

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cnclabs/kge/internal/logging"
)

func sampleTriples() []Triple {
	return []Triple{
		{Head: "brazil", Relation: "accusation", Tail: "china", Weight: 1},
		{Head: "brazil", Relation: "accusation", Tail: "uk", Weight: 1},
		{Head: "uk", Relation: "treaties", Tail: "brazil", Weight: 1},
	}
}

func TestFromLabeledTriples(t *testing.T) {
	tf, err := FromLabeledTriples(sampleTriples(), false)
	require.NoError(t, err)

	assert.Equal(t, 3, tf.NumEntities())
	assert.Equal(t, 2, tf.NumRelations())
	assert.Equal(t, 2, tf.NumRealRelations())
	assert.Equal(t, 3, tf.NumTriples())
	assert.Equal(t, MappedTriples{{0, 0, 1}, {0, 0, 2}, {2, 1, 0}}, tf.MappedTriples())
	assert.Equal(t, "uk", tf.EntityName(2))
	assert.Equal(t, "", tf.EntityName(7))
	assert.Equal(t, "treaties", tf.RelationName(1))

	id, err := tf.EntityID("china")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	_, err = tf.RelationID("missing")
	assert.ErrorIs(t, err, ErrUnknownLabel)
}

func TestInverseTriplesDoubleRelations(t *testing.T) {
	tf, err := FromLabeledTriples(sampleTriples(), true)
	require.NoError(t, err)

	assert.Equal(t, 4, tf.NumRelations())
	assert.Equal(t, 2, tf.NumRealRelations())
	assert.Equal(t, 6, tf.NumTriples())

	mapped := tf.MappedTriples()
	assert.Equal(t, [3]int64{0, 0, 1}, mapped[0])
	assert.Equal(t, [3]int64{1, 1, 0}, mapped[1])
	assert.Equal(t, [3]int64{2, 2, 0}, mapped[4])
	assert.Equal(t, [3]int64{0, 3, 2}, mapped[5])
	assert.Equal(t, "treaties_inverse", tf.RelationName(3))
}

func TestMappingsAreImmutable(t *testing.T) {
	tf, err := FromLabeledTriples(sampleTriples(), false)
	require.NoError(t, err)

	m := tf.EntityToID()
	m["brazil"] = 99
	delete(m, "uk")

	id, err := tf.EntityID("brazil")
	require.NoError(t, err)
	assert.Equal(t, int64(0), id)
	assert.Equal(t, 3, tf.NumEntities())
}

func TestNewTriplesFactoryValidation(t *testing.T) {
	entities := map[string]int64{"a": 0, "b": 1}
	relations := map[string]int64{"r": 0}

	_, err := NewTriplesFactory(MappedTriples{{0, 0, 2}}, entities, relations, false)
	assert.ErrorIs(t, err, ErrUnknownID)

	_, err = NewTriplesFactory(MappedTriples{{0, 1, 1}}, entities, relations, false)
	assert.ErrorIs(t, err, ErrUnknownID)

	_, err = NewTriplesFactory(nil, map[string]int64{"a": 0, "b": 0}, relations, false)
	assert.ErrorIs(t, err, ErrInvalidMapping)

	_, err = NewTriplesFactory(nil, map[string]int64{"a": 3}, relations, false)
	assert.ErrorIs(t, err, ErrInvalidMapping)
}

func TestRelationInverter(t *testing.T) {
	inv := DefaultInverter
	for r := int64(0); r < 20; r++ {
		assert.Equal(t, r, inv.Inverse(inv.Inverse(r)))
		assert.NotEqual(t, r, inv.Inverse(r))
	}
	assert.Equal(t, int64(6), inv.Forward(3))
	assert.Equal(t, int64(7), inv.Inverse(inv.Forward(3)))
	assert.True(t, inv.IsInverse(7))
	assert.Equal(t, int64(3), inv.Real(7))

	batch := MappedTriples{{1, 2, 3}}
	assert.Equal(t, MappedTriples{{1, 4, 3}}, inv.MapTriples(batch, false))
	assert.Equal(t, MappedTriples{{1, 5, 3}}, inv.MapTriples(batch, true))
	assert.Equal(t, MappedTriples{{1, 2, 3}}, batch)

	assert.Equal(t, MappedTriples{{3, 5, 1}}, inv.InvertTriples(MappedTriples{{1, 4, 3}}))
	assert.Equal(t, Pairs{{5, 1}}, inv.InvertPairs(Pairs{{1, 4}}, 1))
	assert.Equal(t, Pairs{{3, 5}}, inv.InvertPairs(Pairs{{4, 3}}, 0))
}

func TestCreateCWAInstances(t *testing.T) {
	tf, err := FromLabeledTriples(sampleTriples(), false)
	require.NoError(t, err)

	inst := tf.CreateCWAInstances()
	assert.Equal(t, ClosedWorld, inst.Assumption())
	require.Equal(t, 2, inst.NumPairs())
	assert.Equal(t, Pairs{{0, 0}, {2, 1}}, inst.Pairs)

	rows, cols := inst.Labels.Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 3, cols)
	assert.Equal(t, []float64{0, 1, 1}, inst.Labels.RawRowView(0))
	assert.Equal(t, []float64{1, 0, 0}, inst.Labels.RawRowView(1))

	owa := tf.CreateOWAInstances()
	assert.Equal(t, OpenWorld, owa.Assumption())
	assert.Equal(t, 3, owa.NumInstances())
	assert.Equal(t, 3, owa.NumEntities())
}

func TestMultimodalInstances(t *testing.T) {
	tf, err := FromLabeledTriples(sampleTriples(), false)
	require.NoError(t, err)

	literals := map[string][]float64{
		"population": {210, 1400, 67},
		"area":       {8.5, 9.6, 0.24},
	}
	inst := tf.CreateMultimodalOWAInstances(literals)
	assert.Equal(t, map[string]int{"area": 0, "population": 1}, inst.LiteralsToID)

	m := inst.LiteralMatrix(tf.NumEntities())
	assert.Equal(t, 1400.0, m.At(1, 1))
	assert.Equal(t, 0.24, m.At(2, 0))

	cwa := tf.CreateMultimodalCWAInstances(literals)
	assert.Equal(t, 2, cwa.NumPairs())
	assert.Len(t, cwa.NumericLiterals, 2)
}

func TestLoadTriplesAndLiterals(t *testing.T) {
	dir := t.TempDir()
	kg := filepath.Join(dir, "kg.txt")
	content := "# nations\nbrazil accusation china 1.0\nbrazil accusation\nuk treaties brazil\n"
	require.NoError(t, os.WriteFile(kg, []byte(content), 0o644))

	tf, err := LoadTriples(kg, false)
	require.NoError(t, err)
	assert.Equal(t, 2, tf.NumTriples())
	assert.Equal(t, 3, tf.NumEntities())

	lit := filepath.Join(dir, "literals.txt")
	require.NoError(t, os.WriteFile(lit, []byte("uk population 67\nmars population 0\nchina area x\n"), 0o644))
	literals, err := tf.LoadNumericLiterals(lit)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 67}, literals["population"])
	assert.NotContains(t, literals, "area")

	_, err = LoadTriples(filepath.Join(dir, "missing.txt"), false)
	assert.Error(t, err)
}

func TestLoadLogsSummaries(t *testing.T) {
	var buf bytes.Buffer
	logging.Init(logging.Config{Level: "info", Format: "json", Output: &buf})
	defer logging.Init(logging.DefaultConfig())

	dir := t.TempDir()
	kg := filepath.Join(dir, "kg.txt")
	require.NoError(t, os.WriteFile(kg, []byte("uk treaties brazil\nbrazil accusation china\n"), 0o644))
	tf, err := LoadTriples(kg, true)
	require.NoError(t, err)

	lit := filepath.Join(dir, "literals.txt")
	require.NoError(t, os.WriteFile(lit, []byte("uk population 67\n"), 0o644))
	_, err = tf.LoadNumericLiterals(lit)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"component":"knowledge"`)
	assert.Contains(t, out, `"message":"knowledge graph loaded"`)
	assert.Contains(t, out, `"inverse_triples":true`)
	assert.Contains(t, out, `"message":"numeric literals loaded"`)
	assert.Contains(t, out, `"literals":1`)
}

func TestRelationStats(t *testing.T) {
	tf, err := FromLabeledTriples(sampleTriples(), false)
	require.NoError(t, err)

	tph, hpt := tf.RelationStats()
	assert.Equal(t, []float64{2, 1}, tph)
	assert.Equal(t, []float64{1, 1}, hpt)
}
