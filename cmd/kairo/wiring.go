package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/jimmy24599/kairo-sub000/internal/config"
	"github.com/jimmy24599/kairo-sub000/internal/decompose"
	"github.com/jimmy24599/kairo-sub000/internal/executor"
	"github.com/jimmy24599/kairo-sub000/internal/oracle"
	"github.com/jimmy24599/kairo-sub000/internal/orchestrator"
	"github.com/jimmy24599/kairo-sub000/internal/progress"
	"github.com/jimmy24599/kairo-sub000/internal/project"
	"github.com/jimmy24599/kairo-sub000/internal/protect"
	"github.com/jimmy24599/kairo-sub000/internal/state"
	"github.com/jimmy24599/kairo-sub000/internal/telemetry"
	"github.com/jimmy24599/kairo-sub000/internal/tools"
	"github.com/jimmy24599/kairo-sub000/internal/version"
)

// dataDir is the per-project directory holding the database, run log and
// stop signals.
func dataDir(root string) string {
	return filepath.Join(root, ".kairo")
}

// openStore opens and migrates the configured state database.
func openStore(c *config.Config) (*state.DB, error) {
	var (
		db  *state.DB
		err error
	)
	if c.Store.Path != "" {
		db, err = state.OpenWithDriver(c.Store.Driver, c.Store.Path)
	} else {
		db, err = state.OpenProject(c.Store.Driver, c.Workspace.Root)
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

// session holds everything a run needs, built from the loaded config.
type session struct {
	db     *state.DB
	orch   *orchestrator.Orchestrator
	logger *orchestrator.RunLogger
	tp     *sdktrace.TracerProvider
}

func newSession(ctx context.Context, c *config.Config) (*session, error) {
	level, err := config.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	root := c.Workspace.Root
	logger := orchestrator.NewRunLoggerForRepo(root, level)

	s := &session{logger: logger}
	ok := false
	defer func() {
		if !ok {
			s.Close(context.Background())
		}
	}()

	s.tp, err = telemetry.InitTracing(ctx, telemetry.Config{
		Enabled:        c.Tracing.Enabled,
		Provider:       c.Tracing.Provider,
		Endpoint:       c.Tracing.Endpoint,
		SampleRate:     c.Tracing.SampleRate,
		Insecure:       c.Tracing.Insecure,
		ServiceVersion: version.Get(),
	}, logger.Logger)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	tracer := s.tp.Tracer("kairo")

	s.db, err = openStore(c)
	if err != nil {
		return nil, err
	}

	planner, err := newPlanner(ctx, c)
	if err != nil {
		return nil, err
	}

	registry, catalogue, err := tools.NewBuiltinRegistry(root,
		tools.WithGuard(protect.New(c.Workspace.Protected...)))
	if err != nil {
		return nil, fmt.Errorf("load tools: %w", err)
	}

	dec := decompose.New(planner, s.db, catalogue,
		decompose.WithMaxSubtasks(c.Decompose.MaxSubtasks),
		decompose.WithOracleTimeout(c.Decompose.OracleTimeout),
		decompose.WithFallbackOperation(c.Decompose.FallbackOperation),
		decompose.WithLogger(logger.Logger),
	)
	exec := executor.New(registry,
		executor.WithMaxAttempts(c.Executor.MaxAttempts),
		executor.WithBackoff(c.Executor.InitialBackoff, c.Executor.MaxBackoff),
		executor.WithLogger(logger.Logger),
		executor.WithTracer(tracer),
	)
	hub := progress.NewHub(
		progress.WithBufferSize(c.Progress.BufferSize),
		progress.WithObserverTimeout(c.Progress.ObserverTimeout),
		progress.WithHubLogger(logger.Logger),
	)

	s.orch = orchestrator.New(s.db, dec, exec,
		orchestrator.WithHub(hub),
		orchestrator.WithAnalyzer(project.NewAnalyzer(root)),
		orchestrator.WithSignalDir(dataDir(root)),
		orchestrator.WithLogger(logger.Logger),
		orchestrator.WithTracer(tracer),
	)
	ok = true
	return s, nil
}

func newPlanner(ctx context.Context, c *config.Config) (oracle.Planner, error) {
	oc := oracle.Config{
		Provider:    c.Planner.Provider,
		Model:       c.Planner.Model,
		AWSRegion:   c.Planner.AWSRegion,
		AWSProfile:  c.Planner.AWSProfile,
		GCPProject:  c.Planner.GCPProject,
		GCPLocation: c.Planner.GCPLocation,
		MaxTokens:   c.Planner.MaxTokens,
	}
	if config.NeedsAPIKey(c) {
		key, err := config.GetAPIKey(c)
		if err != nil {
			if errors.Is(err, config.ErrNoAPIKey) {
				return nil, fmt.Errorf("%w: set it in the environment or planner.api_key", err)
			}
			return nil, err
		}
		oc.APIKey = key
	}
	planner, err := oracle.New(ctx, oc)
	if err != nil {
		return nil, fmt.Errorf("create planner: %w", err)
	}
	return planner, nil
}

// Close flushes spans and releases the database and log file.
func (s *session) Close(ctx context.Context) {
	if s.tp != nil {
		_ = telemetry.Shutdown(ctx, s.tp)
	}
	if s.db != nil {
		s.db.Close()
	}
	s.logger.Close()
}
