package models

import (
	"strings"
	"testing"
)

func TestTaskStatus_Valid(t *testing.T) {
	tests := []struct {
		name   string
		status TaskStatus
		want   bool
	}{
		{"pending is valid", TaskStatusPending, true},
		{"active is valid", TaskStatusActive, true},
		{"done is valid", TaskStatusDone, true},
		{"failed is valid", TaskStatusFailed, true},
		{"empty string is invalid", TaskStatus(""), false},
		{"skipped is not a task status", TaskStatus("skipped"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.want {
				t.Errorf("TaskStatus(%q).Valid() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestSubtaskStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status SubtaskStatus
		want   bool
	}{
		{SubtaskStatusPending, false},
		{SubtaskStatusActive, false},
		{SubtaskStatusDone, true},
		{SubtaskStatusFailed, true},
		{SubtaskStatusSkipped, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.want {
				t.Errorf("SubtaskStatus(%q).IsTerminal() = %v, want %v", tt.status, got, tt.want)
			}
			if !tt.status.Valid() {
				t.Errorf("SubtaskStatus(%q) should be valid", tt.status)
			}
		})
	}
}

func TestOverviewTask_AllSubtasksDone(t *testing.T) {
	tests := []struct {
		name     string
		subtasks []Subtask
		want     bool
	}{
		{"no subtasks", nil, false},
		{"all done", []Subtask{{Status: SubtaskStatusDone}, {Status: SubtaskStatusDone}}, true},
		{"one failed", []Subtask{{Status: SubtaskStatusDone}, {Status: SubtaskStatusFailed}}, false},
		{"one pending", []Subtask{{Status: SubtaskStatusPending}}, false},
		{"skipped is not done", []Subtask{{Status: SubtaskStatusSkipped}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := OverviewTask{Subtasks: tt.subtasks}
			if got := task.AllSubtasksDone(); got != tt.want {
				t.Errorf("AllSubtasksDone() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRunResult_Tally(t *testing.T) {
	done := &OverviewTask{Status: TaskStatusDone}
	failed := &OverviewTask{Status: TaskStatusFailed}
	stopped := &OverviewTask{Status: TaskStatusFailed, Reason: StopReason}

	tests := []struct {
		name        string
		tasks       []*OverviewTask
		stopped     bool
		executedAny bool
		wantState   RunState
		wantSuccess bool
		wantOK      int
		wantFailed  int
	}{
		{"all succeed", []*OverviewTask{done, done}, false, true, RunStateCompleted, true, 2, 0},
		{"partial failure", []*OverviewTask{done, failed}, false, true, RunStateCompletedWithErrors, false, 1, 1},
		{"stopped mid-run", []*OverviewTask{done, stopped}, true, true, RunStateCompletedWithErrors, false, 1, 1},
		{"stopped before start", []*OverviewTask{stopped, stopped}, true, false, RunStateCancelled, false, 0, 2},
		{"no tasks", nil, false, false, RunStateCompleted, false, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r RunResult
			r.Tally(tt.tasks, tt.stopped, tt.executedAny)

			if r.State != tt.wantState {
				t.Errorf("State = %q, want %q", r.State, tt.wantState)
			}
			if r.Success != tt.wantSuccess {
				t.Errorf("Success = %v, want %v", r.Success, tt.wantSuccess)
			}
			if r.SuccessfulTasks != tt.wantOK || r.FailedTasks != tt.wantFailed {
				t.Errorf("counts = %d/%d, want %d/%d", r.SuccessfulTasks, r.FailedTasks, tt.wantOK, tt.wantFailed)
			}
			if r.TotalTasks != len(tt.tasks) {
				t.Errorf("TotalTasks = %d, want %d", r.TotalTasks, len(tt.tasks))
			}
			if r.Summary == "" {
				t.Error("Summary should not be empty")
			}
		})
	}
}

func TestRunResult_SummaryMentionsStop(t *testing.T) {
	var r RunResult
	r.Tally([]*OverviewTask{{Status: TaskStatusDone}, {Status: TaskStatusFailed, Reason: StopReason}}, true, true)
	if !strings.Contains(r.Summary, "stopped") {
		t.Errorf("Summary = %q, should mention the stop", r.Summary)
	}
}

func TestChatStatus_Valid(t *testing.T) {
	for _, s := range []ChatStatus{ChatStatusActive, ChatStatusArchived, ChatStatusDeleted} {
		if !s.Valid() {
			t.Errorf("ChatStatus(%q) should be valid", s)
		}
	}
	if ChatStatus("purged").Valid() {
		t.Error("unknown chat status should be invalid")
	}
}
