package knowledge

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrInvalidMapping is returned when a label->ID mapping is not a
	// bijection onto contiguous IDs.
	ErrInvalidMapping = errors.New("knowledge: invalid label mapping")

	// ErrUnknownID is returned when a triple references an ID missing from
	// the corresponding mapping.
	ErrUnknownID = errors.New("knowledge: triple references unknown id")

	// ErrUnknownLabel is returned when a label lookup fails.
	ErrUnknownLabel = errors.New("knowledge: unknown label")
)

// KGInfo is the triple-set metadata a model is constructed from.
type KGInfo interface {
	NumEntities() int
	// NumRelations is the number of stored relations, twice the number of
	// real relations when inverse triples are enabled.
	NumRelations() int
	NumRealRelations() int
	CreateInverseTriples() bool
}

// TriplesFactory holds ID-mapped triples together with the entity and
// relation mappings they were built from. Mappings never change after
// construction.
type TriplesFactory struct {
	entityToID   map[string]int64
	relationToID map[string]int64
	entityKeys   []string
	relationKeys []string

	// mapped holds internal relation IDs; with inverse triples every
	// original row is followed by its inverse row.
	mapped MappedTriples

	createInverse bool
}

// NewTriplesFactory validates the mappings and the triples against them.
// mapped uses real relation IDs; inverse rows are added when requested.
func NewTriplesFactory(mapped MappedTriples, entityToID, relationToID map[string]int64, createInverseTriples bool) (*TriplesFactory, error) {
	entityKeys, err := invertMapping(entityToID)
	if err != nil {
		return nil, fmt.Errorf("entities: %w", err)
	}
	relationKeys, err := invertMapping(relationToID)
	if err != nil {
		return nil, fmt.Errorf("relations: %w", err)
	}

	numEntities := int64(len(entityKeys))
	numRelations := int64(len(relationKeys))
	for i, row := range mapped {
		if row[0] < 0 || row[0] >= numEntities || row[2] < 0 || row[2] >= numEntities {
			return nil, fmt.Errorf("%w: row %d entity out of range [0, %d)", ErrUnknownID, i, numEntities)
		}
		if row[1] < 0 || row[1] >= numRelations {
			return nil, fmt.Errorf("%w: row %d relation %d out of range [0, %d)", ErrUnknownID, i, row[1], numRelations)
		}
	}

	tf := &TriplesFactory{
		entityToID:    copyMapping(entityToID),
		relationToID:  copyMapping(relationToID),
		entityKeys:    entityKeys,
		relationKeys:  relationKeys,
		createInverse: createInverseTriples,
	}

	if !createInverseTriples {
		tf.mapped = mapped.Clone()
		return tf, nil
	}

	tf.mapped = make(MappedTriples, 0, 2*len(mapped))
	for _, row := range mapped {
		fwd := DefaultInverter.Forward(row[1])
		tf.mapped = append(tf.mapped,
			[3]int64{row[0], fwd, row[2]},
			[3]int64{row[2], DefaultInverter.Inverse(fwd), row[0]},
		)
	}
	return tf, nil
}

// FromLabeledTriples assigns contiguous IDs in first-seen order.
func FromLabeledTriples(triples []Triple, createInverseTriples bool) (*TriplesFactory, error) {
	entityToID := make(map[string]int64)
	relationToID := make(map[string]int64)
	mapped := make(MappedTriples, 0, len(triples))

	for _, t := range triples {
		h := getOrCreate(entityToID, t.Head)
		r := getOrCreate(relationToID, t.Relation)
		tl := getOrCreate(entityToID, t.Tail)
		mapped = append(mapped, [3]int64{h, r, tl})
	}
	return NewTriplesFactory(mapped, entityToID, relationToID, createInverseTriples)
}

// getOrCreate gets or creates an ID
func getOrCreate(m map[string]int64, name string) int64 {
	if id, exists := m[name]; exists {
		return id
	}
	id := int64(len(m))
	m[name] = id
	return id
}

func invertMapping(m map[string]int64) ([]string, error) {
	keys := make([]string, len(m))
	seen := make([]bool, len(m))
	for label, id := range m {
		if id < 0 || id >= int64(len(m)) {
			return nil, fmt.Errorf("%w: id %d for %q is not in [0, %d)", ErrInvalidMapping, id, label, len(m))
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: id %d assigned twice", ErrInvalidMapping, id)
		}
		seen[id] = true
		keys[id] = label
	}
	return keys, nil
}

func copyMapping(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (tf *TriplesFactory) NumEntities() int { return len(tf.entityKeys) }

func (tf *TriplesFactory) NumRealRelations() int { return len(tf.relationKeys) }

func (tf *TriplesFactory) NumRelations() int {
	if tf.createInverse {
		return 2 * len(tf.relationKeys)
	}
	return len(tf.relationKeys)
}

func (tf *TriplesFactory) CreateInverseTriples() bool { return tf.createInverse }

// NumTriples counts stored rows, inverse rows included.
func (tf *TriplesFactory) NumTriples() int { return len(tf.mapped) }

// MappedTriples returns a copy of the stored rows.
func (tf *TriplesFactory) MappedTriples() MappedTriples { return tf.mapped.Clone() }

// EntityToID returns a copy of the entity mapping.
func (tf *TriplesFactory) EntityToID() map[string]int64 { return copyMapping(tf.entityToID) }

// RelationToID returns a copy of the real-relation mapping.
func (tf *TriplesFactory) RelationToID() map[string]int64 { return copyMapping(tf.relationToID) }

// EntityLabels returns entity labels indexed by ID.
func (tf *TriplesFactory) EntityLabels() []string { return append([]string(nil), tf.entityKeys...) }

// RelationLabels returns real relation labels indexed by ID.
func (tf *TriplesFactory) RelationLabels() []string {
	return append([]string(nil), tf.relationKeys...)
}

// EntityID looks up an entity by label.
func (tf *TriplesFactory) EntityID(label string) (int64, error) {
	id, ok := tf.entityToID[label]
	if !ok {
		return 0, fmt.Errorf("%w: entity %q", ErrUnknownLabel, label)
	}
	return id, nil
}

// RelationID looks up a real relation by label.
func (tf *TriplesFactory) RelationID(label string) (int64, error) {
	id, ok := tf.relationToID[label]
	if !ok {
		return 0, fmt.Errorf("%w: relation %q", ErrUnknownLabel, label)
	}
	return id, nil
}

// EntityName returns the name of an entity by ID
func (tf *TriplesFactory) EntityName(id int64) string {
	if id < 0 || id >= int64(len(tf.entityKeys)) {
		return ""
	}
	return tf.entityKeys[id]
}

// RelationName returns the label of an internal relation ID. Inverse
// relations get an "_inverse" suffix.
func (tf *TriplesFactory) RelationName(id int64) string {
	base := id
	if tf.createInverse {
		base = DefaultInverter.Real(id)
	}
	if base < 0 || base >= int64(len(tf.relationKeys)) {
		return ""
	}
	if tf.createInverse && DefaultInverter.IsInverse(id) {
		return tf.relationKeys[base] + "_inverse"
	}
	return tf.relationKeys[base]
}

// RelationStats returns, for every stored relation, the average number of
// tails per head and heads per tail.
func (tf *TriplesFactory) RelationStats() (tph, hpt []float64) {
	n := tf.NumRelations()
	tails := make([]map[int64]int, n)
	heads := make([]map[int64]int, n)
	for r := 0; r < n; r++ {
		tails[r] = make(map[int64]int)
		heads[r] = make(map[int64]int)
	}
	for _, row := range tf.mapped {
		tails[row[1]][row[0]]++
		heads[row[1]][row[2]]++
	}

	tph = make([]float64, n)
	hpt = make([]float64, n)
	for r := 0; r < n; r++ {
		tph[r] = average(tails[r])
		hpt[r] = average(heads[r])
	}
	return tph, hpt
}

func average(counts map[int64]int) float64 {
	if len(counts) == 0 {
		return 0
	}
	total := 0
	for _, c := range counts {
		total += c
	}
	return float64(total) / float64(len(counts))
}

// sortedLiteralNames is shared by the multimodal helpers.
func sortedLiteralNames(m map[string][]float64) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
