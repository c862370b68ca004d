package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/jimmy24599/kairo-sub000/internal/executor"
	"github.com/jimmy24599/kairo-sub000/internal/progress"
	"github.com/jimmy24599/kairo-sub000/internal/project"
	"github.com/jimmy24599/kairo-sub000/internal/state"
	"github.com/jimmy24599/kairo-sub000/pkg/models"
)

var (
	// ErrRunInProgress is returned when the chat already has an active run,
	// in this process or another one.
	ErrRunInProgress = state.ErrRunInProgress
	// ErrNoActiveRun is returned by RequestStop when the chat has no run.
	ErrNoActiveRun = errors.New("no active run for this chat")
)

// Store is the persistence the orchestrator needs.
type Store interface {
	state.ChatStore
	state.RunStore
	state.TaskStore
	state.MessageStore
}

// TaskPlanner plans overview tasks and their subtasks.
type TaskPlanner interface {
	PlanOverviewTasks(ctx context.Context, chatID, runID, request string, pctx *project.Context) ([]*models.OverviewTask, error)
	PlanSubtasks(ctx context.Context, request string, task *models.OverviewTask, pctx *project.Context) ([]models.Subtask, error)
}

// SubtaskExecutor runs a single subtask.
type SubtaskExecutor interface {
	Execute(ctx context.Context, st models.Subtask) executor.Result
}

// ContextAnalyzer produces the project context of a run.
type ContextAnalyzer interface {
	Analyze(priorSummary string) *project.Context
}

// Orchestrator runs requests for chats, one run per chat at a time.
type Orchestrator struct {
	store        Store
	planner      TaskPlanner
	executor     SubtaskExecutor
	analyzer     ContextAnalyzer
	hub          *progress.Hub
	broadcaster  *progress.Broadcaster
	dataDir      string
	pollInterval time.Duration
	logger       *slog.Logger
	tracer       trace.Tracer

	mu     sync.Mutex
	active map[string]*activeRun
}

type activeRun struct {
	runID string
	stop  *StopController
}

// New creates an Orchestrator.
func New(store Store, planner TaskPlanner, exec SubtaskExecutor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:        store,
		planner:      planner,
		executor:     exec,
		pollInterval: DefaultSignalPollInterval,
		logger:       NopLogger(),
		tracer:       noop.NewTracerProvider().Tracer("orchestrator"),
		active:       make(map[string]*activeRun),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.hub == nil {
		o.hub = progress.NewHub(progress.WithHubLogger(o.logger))
	}
	if o.analyzer == nil {
		o.analyzer = staticAnalyzer{}
	}
	o.logger = o.logger.With("component", "orchestrator")
	o.broadcaster = progress.NewBroadcaster(store, o.hub, o.logger)
	setPackageLogger(o.logger)
	return o
}

// RequestStop asks the chat's active run to stop at the next task or
// subtask boundary.
func (o *Orchestrator) RequestStop(chatID string) error {
	o.mu.Lock()
	run, ok := o.active[chatID]
	o.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNoActiveRun, chatID)
	}
	if run.stop.Stop() {
		o.logger.Info("stop requested", "chat_id", chatID, "run_id", run.runID)
	}
	return nil
}

// OnProgress subscribes obs to the chat's progress events. The returned
// function removes the subscription.
func (o *Orchestrator) OnProgress(chatID string, obs progress.Observer) func() {
	return o.hub.Subscribe(chatID, obs)
}

// LatestSnapshot returns the chat's most recent persisted snapshot, or nil
// if the chat has none. Observers that connect late use it to catch up.
func (o *Orchestrator) LatestSnapshot(chatID string) (*progress.Snapshot, error) {
	msg, err := o.store.LatestSnapshot(chatID)
	if err != nil {
		return nil, fmt.Errorf("load latest snapshot: %w", err)
	}
	return progress.SnapshotFromMessage(msg)
}

// IsRunning reports whether the chat has an active run in this process.
func (o *Orchestrator) IsRunning(chatID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.active[chatID]
	return ok
}

func (o *Orchestrator) register(chatID, runID string) (*StopController, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.active[chatID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrRunInProgress, chatID)
	}
	stop := NewStopController()
	o.active[chatID] = &activeRun{runID: runID, stop: stop}
	return stop, nil
}

func (o *Orchestrator) unregister(chatID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.active, chatID)
}

// staticAnalyzer is used when no analyzer is configured.
type staticAnalyzer struct{}

func (staticAnalyzer) Analyze(priorSummary string) *project.Context {
	return &project.Context{Language: project.LanguageUnknown, PriorSummary: priorSummary}
}
