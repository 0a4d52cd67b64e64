package knowledge

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cnclabs/kge/internal/logging"
)

// Triple represents a labeled knowledge graph triple (head, relation, tail)
type Triple struct {
	Head     string
	Relation string
	Tail     string
	Weight   float64
}

// MappedTriples is a batch of ID-based triples, one (head, relation, tail) row each.
type MappedTriples [][3]int64

// Pairs is a batch of ID pairs: (head, relation), (relation, tail) or (head, tail)
// depending on the scoring direction.
type Pairs [][2]int64

// Len returns the number of rows.
func (m MappedTriples) Len() int { return len(m) }

// Clone returns a deep copy of the batch.
func (m MappedTriples) Clone() MappedTriples {
	out := make(MappedTriples, len(m))
	copy(out, m)
	return out
}

// Columns extracts two columns of every row, e.g. Columns(0, 1) gives (h, r) pairs.
func (m MappedTriples) Columns(a, b int) Pairs {
	out := make(Pairs, len(m))
	for i, row := range m {
		out[i] = [2]int64{row[a], row[b]}
	}
	return out
}

// ReadTriples reads knowledge graph triples from a file
// Format: head relation tail [weight]
// Example: "Barack_Obama born_in Hawaii 1.0"
func ReadTriples(filename string) ([]Triple, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", filename, err)
	}
	defer file.Close()

	log := logging.With("knowledge")
	log.Info().Str("path", filename).Msg("loading knowledge graph")

	var triples []Triple
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	skipped := 0

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 3 {
			skipped++
			continue
		}

		weight := 1.0
		if len(parts) >= 4 {
			if w, err := strconv.ParseFloat(parts[3], 64); err == nil {
				weight = w
			}
		}

		triples = append(triples, Triple{
			Head:     parts[0],
			Relation: parts[1],
			Tail:     parts[2],
			Weight:   weight,
		})

		if len(triples)%100000 == 0 {
			log.Debug().Int("triples", len(triples)).Msg("reading")
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	log.Info().Int("triples", len(triples)).Int("skipped", skipped).Msg("knowledge graph read")
	return triples, nil
}

// LoadTriples reads a triples file and builds a factory from it.
func LoadTriples(filename string, createInverseTriples bool) (*TriplesFactory, error) {
	triples, err := ReadTriples(filename)
	if err != nil {
		return nil, err
	}
	tf, err := FromLabeledTriples(triples, createInverseTriples)
	if err != nil {
		return nil, err
	}

	log := logging.With("knowledge")
	log.Info().
		Int("entities", tf.NumEntities()).
		Int("relations", tf.NumRealRelations()).
		Int("triples", tf.NumTriples()).
		Bool("inverse_triples", createInverseTriples).
		Msg("knowledge graph loaded")
	return tf, nil
}
