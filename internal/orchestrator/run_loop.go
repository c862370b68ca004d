package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jimmy24599/kairo-sub000/internal/progress"
	"github.com/jimmy24599/kairo-sub000/internal/project"
	"github.com/jimmy24599/kairo-sub000/internal/state"
	"github.com/jimmy24599/kairo-sub000/internal/tools"
	"github.com/jimmy24599/kairo-sub000/pkg/models"
)

// maxChatNameLen caps chat names derived from the first request.
const maxChatNameLen = 60

// maxStepOutput caps tool output copied into tool step messages.
const maxStepOutput = 2000

// run is the mutable state of one StartRun call.
type run struct {
	id          string
	chatID      string
	request     string
	pctx        *project.Context
	tasks       []*models.OverviewTask
	stop        *StopController
	stopped     bool
	executedAny bool
}

// StartRun executes userInput for chatID and returns the aggregate result.
// It blocks until the run finishes. An error is returned only when the run
// could not start or no overview tasks could be planned; task and subtask
// failures are reported in the result.
func (o *Orchestrator) StartRun(ctx context.Context, userInput, chatID string) (*models.RunResult, error) {
	if strings.TrimSpace(userInput) == "" {
		return nil, fmt.Errorf("start run: empty request")
	}
	if chatID == "" {
		chatID = uuid.New().String()
	}

	runID := uuid.New().String()
	stop, err := o.register(chatID, runID)
	if err != nil {
		return nil, err
	}
	defer o.unregister(chatID)

	ctx, span := o.tracer.Start(ctx, "orchestrator.Run", trace.WithAttributes(
		attribute.String("kairo.chat.id", chatID),
		attribute.String("kairo.run.id", runID),
	))
	defer span.End()

	r := &run{id: runID, chatID: chatID, request: userInput, stop: stop}
	result, err := o.execute(ctx, r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("kairo.run.state", string(result.State)),
		attribute.Int("kairo.run.total_tasks", result.TotalTasks),
		attribute.Int("kairo.run.failed_tasks", result.FailedTasks),
	)
	span.SetStatus(codes.Ok, "")
	return result, nil
}

func (o *Orchestrator) execute(ctx context.Context, r *run) (*models.RunResult, error) {
	log := o.logger.With("chat_id", r.chatID, "run_id", r.id)

	if _, err := o.store.EnsureChat(r.chatID, chatName(r.request)); err != nil {
		return nil, fmt.Errorf("ensure chat: %w", err)
	}

	prior, err := o.store.LatestAgentMessage(r.chatID)
	if err != nil {
		return nil, fmt.Errorf("load prior summary: %w", err)
	}
	var priorSummary string
	if prior != nil {
		priorSummary = prior.Content
	}

	startedAt := time.Now()
	if err := o.store.BeginRun(&models.Run{
		ID:        r.id,
		ChatID:    r.chatID,
		Request:   r.request,
		PID:       os.Getpid(),
		StartedAt: startedAt,
	}); err != nil {
		return nil, fmt.Errorf("begin run: %w", err)
	}

	if err := o.store.AppendMessage(&models.Message{
		ChatID:  r.chatID,
		Role:    models.RoleUser,
		Variant: models.VariantText,
		Content: r.request,
	}); err != nil {
		o.finishRun(r, models.RunStateCompletedWithErrors, "Run aborted: could not record the request.")
		return nil, fmt.Errorf("append user message: %w", err)
	}

	if err := o.hub.Open(r.chatID); err != nil {
		log.Warn("open progress stream", "error", err)
	} else {
		defer o.hub.Close(r.chatID)
	}

	if o.dataDir != "" {
		if err := ClearStopSignal(o.dataDir, r.chatID); err != nil {
			log.Warn("clear stale stop signal", "error", err)
		}
		watcher, err := WatchStopSignal(o.dataDir, r.chatID, o.pollInterval, func() { r.stop.Stop() })
		if err != nil {
			log.Warn("watch stop signal", "error", err)
		} else {
			defer func() {
				watcher.Close()
				_ = ClearStopSignal(o.dataDir, r.chatID)
			}()
		}
	}

	log.Info("run started")
	o.emit(ctx, r, progress.EventRunStarted, "Planning tasks")

	r.pctx = o.analyzer.Analyze(priorSummary)
	tasks, err := o.planner.PlanOverviewTasks(ctx, r.chatID, r.id, r.request, r.pctx)
	if err != nil {
		msg := fmt.Sprintf("Could not plan tasks for this request: %v", err)
		log.Error("overview planning failed", "error", err)
		o.appendAgentMessage(r, msg)
		o.finishRun(r, models.RunStateCompletedWithErrors, msg)
		o.emit(ctx, r, progress.EventRunCompleted, msg)
		return nil, fmt.Errorf("plan overview tasks: %w", err)
	}
	r.tasks = tasks

	if err := o.store.MarkRunRunning(r.id); err != nil {
		log.Warn("mark run running", "error", err)
	}
	o.emit(ctx, r, progress.EventTasksPlanned, fmt.Sprintf("Planned %d tasks", len(tasks)))

	for i, task := range r.tasks {
		if o.shouldStop(ctx, r) {
			o.stopRemaining(r, i)
			break
		}
		if err := o.runTask(ctx, r, task); err != nil {
			log.Error("task failed", "task_id", task.ID, "ordinal", task.Ordinal, "error", err)
			o.failTask(r, task, err.Error())
			o.emit(ctx, r, progress.EventTaskFinished, fmt.Sprintf("Task %d failed: %v", task.Ordinal, err))
		}
	}
	if r.stopped {
		o.emit(ctx, r, progress.EventRunStopped, "Run stopped")
	}

	result := &models.RunResult{RunID: r.id, ChatID: r.chatID, StartedAt: startedAt}
	result.Tally(r.tasks, r.stopped, r.executedAny)
	result.FinishedAt = time.Now()

	o.appendAgentMessage(r, result.Summary)
	o.finishRun(r, result.State, result.Summary)
	o.emit(ctx, r, progress.EventRunCompleted, result.Summary)

	log.Info("run finished", "state", result.State, "total", result.TotalTasks, "failed", result.FailedTasks)
	return result, nil
}

// runTask plans and executes one overview task. A returned error means the
// task could not be carried through and must be failed by the caller.
func (o *Orchestrator) runTask(ctx context.Context, r *run, task *models.OverviewTask) error {
	ctx, span := o.tracer.Start(ctx, "orchestrator.Task", trace.WithAttributes(
		attribute.String("kairo.task.id", task.ID),
		attribute.Int("kairo.task.ordinal", task.Ordinal),
	))
	defer span.End()

	if err := o.store.UpdateOverviewTaskStatus(task.ID, models.TaskStatusActive, ""); err != nil {
		return fmt.Errorf("activate task: %w", err)
	}
	task.Status = models.TaskStatusActive
	o.emit(ctx, r, progress.EventTaskStarted, fmt.Sprintf("Planning task %d: %s", task.Ordinal, task.Description))

	subtasks, err := o.planner.PlanSubtasks(ctx, r.request, task, r.pctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("plan subtasks: %w", err)
	}
	task.Subtasks = subtasks
	o.emit(ctx, r, progress.EventSubtasksPlanned, fmt.Sprintf("Task %d has %d steps", task.Ordinal, len(subtasks)))

	for j := range task.Subtasks {
		if o.shouldStop(ctx, r) {
			o.stopTask(r, task, j)
			span.SetAttributes(attribute.Bool("kairo.task.stopped", true))
			return nil
		}
		if err := o.runSubtask(ctx, r, &task.Subtasks[j]); err != nil {
			span.RecordError(err)
			return err
		}
	}

	status, reason := models.TaskStatusDone, ""
	if !task.AllSubtasksDone() {
		status, reason = models.TaskStatusFailed, "one or more steps failed"
	}
	if err := o.store.UpdateOverviewTaskStatus(task.ID, status, reason); err != nil {
		return fmt.Errorf("finish task: %w", err)
	}
	task.Status, task.Reason = status, reason
	if status == models.TaskStatusFailed {
		span.SetStatus(codes.Error, reason)
	}
	o.emit(ctx, r, progress.EventTaskFinished, fmt.Sprintf("Task %d %s", task.Ordinal, status))
	return nil
}

func (o *Orchestrator) runSubtask(ctx context.Context, r *run, st *models.Subtask) error {
	if err := o.store.UpdateSubtaskStatus(st.ID, models.SubtaskStatusActive); err != nil {
		return fmt.Errorf("activate subtask: %w", err)
	}
	st.Status = models.SubtaskStatusActive
	action := tools.FormatAction(st.Operation, st.Parameters)
	o.emit(ctx, r, progress.EventSubtaskStarted, action)

	res := o.executor.Execute(ctx, *st)
	r.executedAny = true

	outcome := state.SubtaskOutcome{Attempts: res.Attempts}
	if res.Success {
		outcome.Status = models.SubtaskStatusDone
	} else {
		outcome.Status = models.SubtaskStatusFailed
		outcome.Error = res.Error
		outcome.Reason = string(res.Class)
	}
	if res.Output != "" {
		outcome.Result, _ = json.Marshal(res.Output)
	}
	if err := o.store.CompleteSubtask(st.ID, outcome); err != nil {
		return fmt.Errorf("complete subtask: %w", err)
	}
	st.Status = outcome.Status
	st.Result = outcome.Result
	st.Error = outcome.Error
	st.Reason = outcome.Reason
	st.Attempts = outcome.Attempts

	o.appendToolStep(r, st, action, res.Output)
	o.emit(ctx, r, progress.EventSubtaskFinished, fmt.Sprintf("%s: %s", action, st.Status))
	return nil
}

// shouldStop reports whether the run must stop at this boundary. A
// cancelled context counts as a stop request.
func (o *Orchestrator) shouldStop(ctx context.Context, r *run) bool {
	if ctx.Err() != nil {
		r.stop.Stop()
	}
	return r.stop.IsStopped()
}

// stopTask fails the subtasks of task from index from onwards, and the task
// itself, with the stop reason.
func (o *Orchestrator) stopTask(r *run, task *models.OverviewTask, from int) {
	r.stopped = true
	for j := from; j < len(task.Subtasks); j++ {
		st := &task.Subtasks[j]
		if st.Status.IsTerminal() {
			continue
		}
		if err := o.store.CompleteSubtask(st.ID, state.SubtaskOutcome{
			Status: models.SubtaskStatusFailed,
			Reason: models.StopReason,
		}); err != nil && !errors.Is(err, state.ErrTerminalStatus) {
			o.logger.Warn("stop subtask", "subtask_id", st.ID, "error", err)
		}
		st.Status = models.SubtaskStatusFailed
		st.Reason = models.StopReason
	}
	o.setTaskFailed(task, models.StopReason)
}

// stopRemaining fails the tasks from index from onwards with the stop reason.
func (o *Orchestrator) stopRemaining(r *run, from int) {
	r.stopped = true
	for i := from; i < len(r.tasks); i++ {
		task := r.tasks[i]
		if task.Status.IsTerminal() {
			continue
		}
		o.stopTask(r, task, 0)
	}
}

// failTask marks a task that could not be carried through as failed, along
// with any of its subtasks that never finished.
func (o *Orchestrator) failTask(r *run, task *models.OverviewTask, reason string) {
	for j := range task.Subtasks {
		st := &task.Subtasks[j]
		if st.Status.IsTerminal() {
			continue
		}
		if err := o.store.CompleteSubtask(st.ID, state.SubtaskOutcome{
			Status: models.SubtaskStatusSkipped,
			Reason: "task failed",
		}); err != nil && !errors.Is(err, state.ErrTerminalStatus) {
			o.logger.Warn("skip subtask", "subtask_id", st.ID, "error", err)
		}
		st.Status = models.SubtaskStatusSkipped
		st.Reason = "task failed"
	}
	o.setTaskFailed(task, reason)
}

func (o *Orchestrator) setTaskFailed(task *models.OverviewTask, reason string) {
	if task.Status.IsTerminal() {
		return
	}
	err := o.store.UpdateOverviewTaskStatus(task.ID, models.TaskStatusFailed, reason)
	if err != nil && !errors.Is(err, state.ErrTerminalStatus) {
		o.logger.Warn("fail task", "task_id", task.ID, "error", err)
	}
	task.Status = models.TaskStatusFailed
	task.Reason = reason
}

func (o *Orchestrator) emit(ctx context.Context, r *run, typ progress.EventType, thought string) {
	o.broadcaster.Emit(ctx, progress.Event{
		Type:    typ,
		ChatID:  r.chatID,
		RunID:   r.id,
		Tasks:   progress.CloneTasks(r.tasks),
		Thought: thought,
	})
}

func (o *Orchestrator) appendAgentMessage(r *run, content string) {
	if err := o.store.AppendMessage(&models.Message{
		ChatID:  r.chatID,
		Role:    models.RoleAgent,
		Variant: models.VariantText,
		Content: content,
	}); err != nil {
		o.logger.Warn("append agent message", "chat_id", r.chatID, "error", err)
	}
}

// toolStep is the payload of a tool step message.
type toolStep struct {
	RunID     string `json:"run_id"`
	SubtaskID string `json:"subtask_id"`
	Operation string `json:"operation"`
	Status    string `json:"status"`
	Attempts  int    `json:"attempts"`
	Output    string `json:"output,omitempty"`
	Error     string `json:"error,omitempty"`
	Fallback  bool   `json:"fallback,omitempty"`
}

func (o *Orchestrator) appendToolStep(r *run, st *models.Subtask, action, output string) {
	if len(output) > maxStepOutput {
		output = output[:maxStepOutput] + "\n... (truncated)"
	}
	payload, _ := json.Marshal(toolStep{
		RunID:     r.id,
		SubtaskID: st.ID,
		Operation: st.Operation,
		Status:    string(st.Status),
		Attempts:  st.Attempts,
		Output:    output,
		Error:     st.Error,
		Fallback:  st.Fallback,
	})

	content := fmt.Sprintf("%s (%s)", action, st.Status)
	if st.Error != "" {
		content += ": " + st.Error
	}
	if err := o.store.AppendMessage(&models.Message{
		ChatID:  r.chatID,
		Role:    models.RoleAgent,
		Variant: models.VariantToolStep,
		Content: content,
		Payload: payload,
	}); err != nil {
		o.logger.Warn("append tool step", "chat_id", r.chatID, "error", err)
	}
}

func (o *Orchestrator) finishRun(r *run, s models.RunState, summary string) {
	if err := o.store.FinishRun(r.id, s, summary); err != nil {
		o.logger.Warn("finish run", "run_id", r.id, "error", err)
	}
}

func chatName(request string) string {
	name := strings.Join(strings.Fields(request), " ")
	if len([]rune(name)) > maxChatNameLen {
		name = string([]rune(name)[:maxChatNameLen-3]) + "..."
	}
	return name
}
