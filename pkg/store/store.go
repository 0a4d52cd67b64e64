// Package store persists trained models in SQLite. A run keeps the model
// state blob together with everything needed to rebuild the model: its name,
// configuration and the entity and relation labels.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/cnclabs/kge/pkg/knowledge"
	"github.com/cnclabs/kge/pkg/losses"
	"github.com/cnclabs/kge/pkg/model"
)

// DefaultPath is the default database location.
const DefaultPath = ".kge/runs.db"

var (
	ErrNotFound = errors.New("store: run not found")
	ErrNoState  = errors.New("store: run has no model state")
)

// RunConfig is what a model needs besides its state to be rebuilt.
type RunConfig struct {
	Hyperparameters    model.Hyperparameters `json:"hyperparameters"`
	Loss               losses.Spec           `json:"loss"`
	InverseTriples     bool                  `json:"inverse_triples"`
	PredictWithSigmoid bool                  `json:"predict_with_sigmoid"`
	Assumption         string                `json:"assumption"`
}

// Run is a stored training run.
type Run struct {
	ID        string
	Model     string
	CreatedAt time.Time
	Config    RunConfig
	Losses    []float64
	// Entities and Relations list labels by ID; Relations are the real
	// relations only.
	Entities  []string
	Relations []string
	State     []byte
}

// Factory rebuilds the label mappings of the run without its triples.
func (r *Run) Factory() (*knowledge.TriplesFactory, error) {
	return knowledge.NewTriplesFactory(nil, index(r.Entities), index(r.Relations), r.Config.InverseTriples)
}

func index(labels []string) map[string]int64 {
	m := make(map[string]int64, len(labels))
	for i, l := range labels {
		m[l] = int64(i)
	}
	return m
}

// Summary is a run listing entry without the state blob.
type Summary struct {
	ID        string
	Model     string
	CreatedAt time.Time
	Epochs    int
	FinalLoss float64
}

// Store wraps the runs database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory database.
func Open(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection keeps ":memory:" databases alive and serializes writers
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL: %w", err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		model TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		config TEXT NOT NULL,
		losses TEXT NOT NULL,
		entities TEXT NOT NULL,
		relations TEXT NOT NULL,
		state BLOB
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_runs_model ON runs(model);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Close() error { return s.db.Close() }

// Save inserts or replaces run. An empty ID is filled with a new UUID and
// a zero CreatedAt with the current time.
func (s *Store) Save(ctx context.Context, run *Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	cfg, err := json.Marshal(run.Config)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	trace, err := json.Marshal(nonNil(run.Losses))
	if err != nil {
		return "", fmt.Errorf("encode losses: %w", err)
	}
	entities, err := json.Marshal(nonNil(run.Entities))
	if err != nil {
		return "", fmt.Errorf("encode entities: %w", err)
	}
	relations, err := json.Marshal(nonNil(run.Relations))
	if err != nil {
		return "", fmt.Errorf("encode relations: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (id, model, created_at, config, losses, entities, relations, state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Model, run.CreatedAt, string(cfg), string(trace), string(entities), string(relations), run.State,
	)
	if err != nil {
		return "", fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return run.ID, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Load reads a run including its state.
func (s *Store) Load(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, model, created_at, config, losses, entities, relations, state
		FROM runs WHERE id = ?`, id)

	var (
		run                             Run
		cfg, trace, entities, relations string
	)
	err := row.Scan(&run.ID, &run.Model, &run.CreatedAt, &cfg, &trace, &entities, &relations, &run.State)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}

	for _, col := range []struct {
		name string
		raw  string
		dst  any
	}{
		{"config", cfg, &run.Config},
		{"losses", trace, &run.Losses},
		{"entities", entities, &run.Entities},
		{"relations", relations, &run.Relations},
	} {
		if err := json.Unmarshal([]byte(col.raw), col.dst); err != nil {
			return nil, fmt.Errorf("decode %s of run %s: %w", col.name, id, err)
		}
	}
	return &run, nil
}

// List returns all runs, newest first.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, model, created_at, losses FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum   Summary
			trace string
		)
		if err := rows.Scan(&sum.ID, &sum.Model, &sum.CreatedAt, &trace); err != nil {
			return nil, err
		}
		var values []float64
		if err := json.Unmarshal([]byte(trace), &values); err != nil {
			return nil, fmt.Errorf("decode losses of run %s: %w", sum.ID, err)
		}
		sum.Epochs = len(values)
		if len(values) > 0 {
			sum.FinalLoss = values[len(values)-1]
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Delete removes a run.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Restore rebuilds the model of run through the registry and loads its
// state.
func Restore(run *Run, registry *model.Registry, opts ...model.Option) (model.Model, *knowledge.TriplesFactory, error) {
	if len(run.State) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoState, run.ID)
	}
	tf, err := run.Factory()
	if err != nil {
		return nil, nil, err
	}
	// the seed only drives initialization, which the stored state replaces
	base := []model.Option{model.WithSeed(0), model.WithPredictWithSigmoid(run.Config.PredictWithSigmoid)}
	if run.Config.Loss.Name != "" {
		base = append(base, model.WithLoss(run.Config.Loss))
	}
	opts = append(base, opts...)
	m, err := registry.New(run.Model, tf, run.Config.Hyperparameters, opts...)
	if err != nil {
		return nil, nil, err
	}
	if err := m.UnmarshalBinary(run.State); err != nil {
		return nil, nil, fmt.Errorf("restore run %s: %w", run.ID, err)
	}
	return m, tf, nil
}
