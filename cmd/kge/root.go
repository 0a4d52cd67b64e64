package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cnclabs/kge/internal/config"
	"github.com/cnclabs/kge/internal/logging"
	"github.com/cnclabs/kge/pkg/store"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	storePath  string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "kge",
		Short: "Knowledge graph embedding trainer",
		Long: `kge trains TransE, TransH, DistMult, ComplEx and RotatE embeddings on
"head relation tail [weight]" triple files, stores every run and predicts
missing heads, relations or tails from a stored run.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "Path to a YAML config file")
	root.PersistentFlags().StringVar(&g.storePath, "store", "", "Path to the run database (default "+store.DefaultPath+")")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error, disabled")

	root.AddCommand(newTrainCmd(g), newPredictCmd(g), newExportCmd(g), newRunsCmd(g))
	return root
}

// load reads the configuration, applies the global flags and sets up logging.
func (g *globalFlags) load() (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.storePath != "" {
		cfg.Store.Path = g.storePath
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	logging.Init(cfg.LoggingConfig())
	return cfg, nil
}

func (g *globalFlags) openStore() (*config.Config, *store.Store, error) {
	cfg, err := g.load()
	if err != nil {
		return nil, nil, err
	}
	s, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, nil, err
	}
	return cfg, s, nil
}

// loadRun resolves "" and "latest" to the newest stored run.
func loadRun(ctx context.Context, s *store.Store, id string) (*store.Run, error) {
	if id == "" || id == "latest" {
		runs, err := s.List(ctx)
		if err != nil {
			return nil, err
		}
		if len(runs) == 0 {
			return nil, fmt.Errorf("%w: the store at %s is empty", store.ErrNotFound, s.Path())
		}
		id = runs[0].ID
	}
	return s.Load(ctx, id)
}
