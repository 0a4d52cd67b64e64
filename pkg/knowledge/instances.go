package knowledge

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Assumption tags whether unobserved triples are unknown (open world) or
// false (closed world).
type Assumption int

const (
	OpenWorld Assumption = iota
	ClosedWorld
)

func (a Assumption) String() string {
	switch a {
	case OpenWorld:
		return "owa"
	case ClosedWorld:
		return "cwa"
	default:
		return fmt.Sprintf("Assumption(%d)", int(a))
	}
}

// Instances pairs training triples with the mappings they reference.
type Instances struct {
	MappedTriples MappedTriples
	EntityToID    map[string]int64
	RelationToID  map[string]int64
}

// NumInstances returns the number of triples.
func (in *Instances) NumInstances() int { return len(in.MappedTriples) }

// NumEntities returns the size of the entity mapping.
func (in *Instances) NumEntities() int { return len(in.EntityToID) }

// OWAInstances carries the raw triple set for open-world training.
type OWAInstances struct {
	Instances
}

func (*OWAInstances) Assumption() Assumption { return OpenWorld }

// CWAInstances carries one row per unique (head, relation) pair and a dense
// binary label matrix over all entities.
type CWAInstances struct {
	Instances
	Pairs  Pairs
	Labels *mat.Dense
}

func (*CWAInstances) Assumption() Assumption { return ClosedWorld }

// NumPairs returns the number of label rows.
func (in *CWAInstances) NumPairs() int { return len(in.Pairs) }

// MultimodalInstances adds numeric literal features: one array per literal
// name (indexed by entity ID) and the column index of every literal name.
type MultimodalInstances struct {
	NumericLiterals map[string][]float64
	LiteralsToID    map[string]int
}

// LiteralMatrix assembles the literals into an entities x literals matrix.
func (m *MultimodalInstances) LiteralMatrix(numEntities int) *mat.Dense {
	cols := len(m.LiteralsToID)
	if numEntities == 0 || cols == 0 {
		return nil
	}
	out := mat.NewDense(numEntities, cols, nil)
	for name, col := range m.LiteralsToID {
		values := m.NumericLiterals[name]
		for e := 0; e < numEntities && e < len(values); e++ {
			out.Set(e, col, values[e])
		}
	}
	return out
}

type MultimodalOWAInstances struct {
	OWAInstances
	MultimodalInstances
}

type MultimodalCWAInstances struct {
	CWAInstances
	MultimodalInstances
}

func (tf *TriplesFactory) instances() Instances {
	return Instances{
		MappedTriples: tf.MappedTriples(),
		EntityToID:    tf.EntityToID(),
		RelationToID:  tf.RelationToID(),
	}
}

// CreateOWAInstances exposes the stored triples for open-world training.
func (tf *TriplesFactory) CreateOWAInstances() *OWAInstances {
	return &OWAInstances{Instances: tf.instances()}
}

// CreateCWAInstances groups the stored triples by (head, relation) in
// first-seen order and marks every observed tail in the label matrix.
func (tf *TriplesFactory) CreateCWAInstances() *CWAInstances {
	index := make(map[[2]int64]int)
	var pairs Pairs
	for _, row := range tf.mapped {
		key := [2]int64{row[0], row[1]}
		if _, ok := index[key]; !ok {
			index[key] = len(pairs)
			pairs = append(pairs, key)
		}
	}

	inst := &CWAInstances{Instances: tf.instances(), Pairs: pairs}
	if len(pairs) == 0 || tf.NumEntities() == 0 {
		return inst
	}

	inst.Labels = mat.NewDense(len(pairs), tf.NumEntities(), nil)
	for _, row := range tf.mapped {
		inst.Labels.Set(index[[2]int64{row[0], row[1]}], int(row[2]), 1)
	}
	return inst
}

// CreateMultimodalOWAInstances attaches numeric literals to OWA instances.
func (tf *TriplesFactory) CreateMultimodalOWAInstances(literals map[string][]float64) *MultimodalOWAInstances {
	return &MultimodalOWAInstances{
		OWAInstances:        *tf.CreateOWAInstances(),
		MultimodalInstances: newMultimodal(literals),
	}
}

// CreateMultimodalCWAInstances attaches numeric literals to CWA instances.
func (tf *TriplesFactory) CreateMultimodalCWAInstances(literals map[string][]float64) *MultimodalCWAInstances {
	return &MultimodalCWAInstances{
		CWAInstances:        *tf.CreateCWAInstances(),
		MultimodalInstances: newMultimodal(literals),
	}
}

func newMultimodal(literals map[string][]float64) MultimodalInstances {
	mm := MultimodalInstances{
		NumericLiterals: make(map[string][]float64, len(literals)),
		LiteralsToID:    make(map[string]int, len(literals)),
	}
	for i, name := range sortedLiteralNames(literals) {
		mm.NumericLiterals[name] = append([]float64(nil), literals[name]...)
		mm.LiteralsToID[name] = i
	}
	return mm
}
