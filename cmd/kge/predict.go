package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cnclabs/kge/internal/models"
	"github.com/cnclabs/kge/pkg/knowledge"
	"github.com/cnclabs/kge/pkg/model"
	"github.com/cnclabs/kge/pkg/store"
)

type predictFlags struct {
	run      string
	head     string
	relation string
	tail     string
	top      int
}

func newPredictCmd(g *globalFlags) *cobra.Command {
	f := &predictFlags{}
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Rank candidates for the missing part of a triple",
		Long: `Rank every candidate for the one part of a triple that is left out.
Give two of --head, --relation and --tail.`,
		Example: `  kge predict --head Barack_Obama --relation born_in
  kge predict --run 3f1c... --relation born_in --tail Hawaii --top 5`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPredict(cmd, g, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.run, "run", "latest", "Run ID to predict with")
	fl.StringVar(&f.head, "head", "", "Head entity label")
	fl.StringVar(&f.relation, "relation", "", "Relation label")
	fl.StringVar(&f.tail, "tail", "", "Tail entity label")
	fl.IntVar(&f.top, "top", 10, "Number of candidates to print; 0 prints all")
	return cmd
}

// query maps the labels to a single-row batch with the missing column left
// at zero.
func (f *predictFlags) query(tf *knowledge.TriplesFactory) (knowledge.MappedTriples, model.Target, error) {
	var (
		row     [3]int64
		target  model.Target
		missing int
	)
	for i, part := range []struct {
		label  string
		target model.Target
		lookup func(string) (int64, error)
	}{
		{f.head, model.TargetHead, tf.EntityID},
		{f.relation, model.TargetRelation, tf.RelationID},
		{f.tail, model.TargetTail, tf.EntityID},
	} {
		if part.label == "" {
			target = part.target
			missing++
			continue
		}
		id, err := part.lookup(part.label)
		if err != nil {
			return nil, "", err
		}
		row[i] = id
	}
	if missing != 1 {
		return nil, "", fmt.Errorf("exactly one of --head, --relation and --tail must be left out")
	}
	return knowledge.MappedTriples{row}, target, nil
}

func runPredict(cmd *cobra.Command, g *globalFlags, f *predictFlags) error {
	_, s, err := g.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	run, err := loadRun(cmd.Context(), s, f.run)
	if err != nil {
		return err
	}
	m, tf, err := store.Restore(run, models.Registry())
	if err != nil {
		return err
	}

	batch, target, err := f.query(tf)
	if err != nil {
		return err
	}
	scores, err := model.Predict(m, batch, target)
	if err != nil {
		return err
	}

	labels := tf.EntityLabels()
	if target == model.TargetRelation {
		labels = tf.RelationLabels()
	}
	out := cmd.OutOrStdout()
	for i, c := range model.TopK(scores, 0, f.top) {
		fmt.Fprintf(out, "%d\t%s\t%.6f\n", i+1, labels[c.ID], c.Score)
	}
	return nil
}
