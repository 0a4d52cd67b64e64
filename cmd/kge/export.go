package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/cnclabs/kge/internal/models"
	"github.com/cnclabs/kge/pkg/store"
)

func newExportCmd(g *globalFlags) *cobra.Command {
	var run, entityFile, relationFile string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the embeddings of a stored run as text",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if entityFile == "" && relationFile == "" {
				return errors.New("nothing to export: set --save-entity and/or --save-relation")
			}
			_, s, err := g.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			r, err := loadRun(cmd.Context(), s, run)
			if err != nil {
				return err
			}
			m, tf, err := store.Restore(r, models.Registry())
			if err != nil {
				return err
			}
			return saveEmbeddings(cmd.OutOrStdout(), m, tf, entityFile, relationFile)
		},
	}
	cmd.Flags().StringVar(&run, "run", "latest", "Run ID to export")
	cmd.Flags().StringVar(&entityFile, "save-entity", "", "Write entity embeddings to this file")
	cmd.Flags().StringVar(&relationFile, "save-relation", "", "Write relation embeddings to this file")
	return cmd
}
