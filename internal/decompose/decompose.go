// Package decompose turns user requests into overview tasks and overview
// tasks into executable subtasks, using a planner whose output is treated
// as untrusted text.
package decompose

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jimmy24599/kairo-sub000/internal/oracle"
	"github.com/jimmy24599/kairo-sub000/internal/project"
	"github.com/jimmy24599/kairo-sub000/internal/tools"
	"github.com/jimmy24599/kairo-sub000/pkg/models"
)

const (
	// DefaultMaxSubtasks caps the subtasks planned for one overview task.
	DefaultMaxSubtasks = 3
	// DefaultOracleTimeout bounds a single subtask planning call.
	DefaultOracleTimeout = 60 * time.Second
	// DefaultFallbackOperation is used by synthesized subtasks.
	DefaultFallbackOperation = "read_file"
)

// TaskWriter is the slice of the task store the decomposer writes to.
type TaskWriter interface {
	CreateOverviewTasks(chatID, runID string, descriptions []string) ([]*models.OverviewTask, error)
	ReplaceSubtasks(taskID string, subtasks []models.Subtask) ([]models.Subtask, error)
}

// Decomposer plans work with a Planner and persists the plan.
type Decomposer struct {
	planner       oracle.Planner
	store         TaskWriter
	catalogue     *tools.Catalogue
	maxSubtasks   int
	oracleTimeout time.Duration
	fallbackOp    string
	logger        *slog.Logger
}

// Option configures a Decomposer.
type Option func(*Decomposer)

// WithMaxSubtasks sets the subtask cap. Non-positive values are ignored.
func WithMaxSubtasks(n int) Option {
	return func(d *Decomposer) {
		if n > 0 {
			d.maxSubtasks = n
		}
	}
}

// WithOracleTimeout sets the per-call timeout for subtask planning.
func WithOracleTimeout(timeout time.Duration) Option {
	return func(d *Decomposer) {
		if timeout > 0 {
			d.oracleTimeout = timeout
		}
	}
}

// WithFallbackOperation sets the operation used by synthesized subtasks.
func WithFallbackOperation(op string) Option {
	return func(d *Decomposer) {
		if op != "" {
			d.fallbackOp = op
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Decomposer) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New creates a Decomposer.
func New(planner oracle.Planner, store TaskWriter, catalogue *tools.Catalogue, opts ...Option) *Decomposer {
	d := &Decomposer{
		planner:       planner,
		store:         store,
		catalogue:     catalogue,
		maxSubtasks:   DefaultMaxSubtasks,
		oracleTimeout: DefaultOracleTimeout,
		fallbackOp:    DefaultFallbackOperation,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "decompose")
	return d
}

// PlanOverviewTasks asks the planner for the top-level tasks of request and
// persists them. There is no fallback at this level: a planner failure or
// unusable response is returned as an *OracleError.
func (d *Decomposer) PlanOverviewTasks(ctx context.Context, chatID, runID, request string, pctx *project.Context) ([]*models.OverviewTask, error) {
	raw, err := d.planner.Generate(ctx, buildOverviewPrompt(request, pctx))
	if err != nil {
		return nil, &OracleError{Stage: StageOverview, Err: err}
	}

	var descriptions []string
	switch out := Parse(raw).(type) {
	case Malformed:
		return nil, &OracleError{Stage: StageOverview, Raw: out.Raw, Err: out.Reason}
	case Parsed:
		descriptions, err = validateOverview(out.Items)
		if err != nil {
			return nil, &OracleError{Stage: StageOverview, Raw: raw, Err: err}
		}
	}

	tasks, err := d.store.CreateOverviewTasks(chatID, runID, descriptions)
	if err != nil {
		return nil, fmt.Errorf("persist overview tasks: %w", err)
	}
	d.logger.Info("planned overview tasks", "chat_id", chatID, "run_id", runID, "count", len(tasks))
	return tasks, nil
}

// PlanSubtasks plans and persists the subtasks of task. Planner failures,
// timeouts and unusable responses are absorbed by synthesizing a single
// fallback subtask, so the returned list is never empty. Only persistence
// errors are returned.
func (d *Decomposer) PlanSubtasks(ctx context.Context, request string, task *models.OverviewTask, pctx *project.Context) ([]models.Subtask, error) {
	subtasks, err := d.planSubtasks(ctx, request, task, pctx)
	if err != nil {
		d.logger.Warn("subtask planning failed, using fallback",
			"task_id", task.ID, "ordinal", task.Ordinal, "error", err)
		subtasks = []models.Subtask{fallbackSubtask(d.fallbackOp, task, pctx)}
	}

	persisted, err := d.store.ReplaceSubtasks(task.ID, subtasks)
	if err != nil {
		return nil, fmt.Errorf("persist subtasks for task %s: %w", task.ID, err)
	}
	return persisted, nil
}

func (d *Decomposer) planSubtasks(ctx context.Context, request string, task *models.OverviewTask, pctx *project.Context) ([]models.Subtask, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.oracleTimeout)
	defer cancel()

	prompt := buildSubtaskPrompt(request, task, pctx, d.catalogue, d.maxSubtasks)
	raw, err := d.planner.Generate(callCtx, prompt)
	if err != nil {
		return nil, &OracleError{Stage: StageSubtasks, Err: err}
	}

	switch out := Parse(raw).(type) {
	case Malformed:
		return nil, &OracleError{Stage: StageSubtasks, Raw: out.Raw, Err: out.Reason}
	case Parsed:
		subtasks, rejected, err := validateSubtasks(out.Items, d.maxSubtasks)
		if len(rejected) > 0 {
			d.logger.Debug("rejected planned subtasks", "task_id", task.ID, "rejected", rejected)
		}
		if err != nil {
			return nil, &OracleError{Stage: StageSubtasks, Raw: raw, Err: err}
		}
		return subtasks, nil
	}
	return nil, &OracleError{Stage: StageSubtasks, Raw: raw, Err: ErrMalformedOutput}
}
