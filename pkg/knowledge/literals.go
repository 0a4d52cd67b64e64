package knowledge

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cnclabs/kge/internal/logging"
)

// LoadNumericLiterals reads "entity attribute value" lines into one feature
// array per attribute, indexed by the factory's entity IDs. Lines naming
// unknown entities or carrying unparsable values are skipped.
func (tf *TriplesFactory) LoadNumericLiterals(filename string) (map[string][]float64, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", filename, err)
	}
	defer file.Close()

	literals := make(map[string][]float64)
	skipped := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) < 3 || strings.HasPrefix(parts[0], "#") {
			continue
		}
		id, ok := tf.entityToID[parts[0]]
		if !ok {
			skipped++
			continue
		}
		value, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			skipped++
			continue
		}
		column, ok := literals[parts[1]]
		if !ok {
			column = make([]float64, tf.NumEntities())
			literals[parts[1]] = column
		}
		column[id] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	log := logging.With("knowledge")
	log.Info().
		Int("literals", len(literals)).
		Int("skipped", skipped).
		Msg("numeric literals loaded")
	return literals, nil
}
