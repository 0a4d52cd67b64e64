package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/cnclabs/kge/pkg/knowledge"
	"github.com/cnclabs/kge/pkg/model"
)

type embedder interface {
	Embeddings() (entities, relations mat.Matrix)
}

// saveEmbeddings writes the entity and relation tables of m. An empty path
// skips that table.
func saveEmbeddings(out io.Writer, m model.Model, tf *knowledge.TriplesFactory, entityFile, relationFile string) error {
	e, ok := m.(embedder)
	if !ok {
		return fmt.Errorf("model %T does not expose its embeddings", m)
	}
	entities, relations := e.Embeddings()

	fmt.Fprintln(out, "Save Model:")
	if entityFile != "" {
		if err := writeEmbeddings(entityFile, entities, func(i int) string { return tf.EntityName(int64(i)) }); err != nil {
			return fmt.Errorf("failed to save entities: %w", err)
		}
		fmt.Fprintf(out, "\tEntities saved to <%s>\n", entityFile)
	}
	if relationFile != "" {
		// rows are internal relation IDs, so inverse relations get their own line
		if err := writeEmbeddings(relationFile, relations, func(i int) string { return tf.RelationName(int64(i)) }); err != nil {
			return fmt.Errorf("failed to save relations: %w", err)
		}
		fmt.Fprintf(out, "\tRelations saved to <%s>\n", relationFile)
	}
	return nil
}

// writeEmbeddings writes a "rows dim" header followed by one
// "label v1 v2 ..." line per row.
func writeEmbeddings(path string, table mat.Matrix, label func(int) string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	rows, cols := table.Dims()
	fmt.Fprintf(w, "%d %d\n", rows, cols)
	for i := 0; i < rows; i++ {
		w.WriteString(label(i))
		for j := 0; j < cols; j++ {
			fmt.Fprintf(w, " %.6f", table.At(i, j))
		}
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}
