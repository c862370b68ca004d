package state

import (
	"errors"
	"os"
	"testing"

	"github.com/jimmy24599/kairo-sub000/pkg/models"
)

func TestBeginRun_RejectsLiveRun(t *testing.T) {
	db := setupChat(t, "chat-1")

	first := &models.Run{ID: "run-1", ChatID: "chat-1", Request: "a", PID: os.Getpid()}
	if err := db.BeginRun(first); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	if first.State != models.RunStatePlanning {
		t.Errorf("State = %q, want planning", first.State)
	}

	err := db.BeginRun(&models.Run{ID: "run-2", ChatID: "chat-1", Request: "b", PID: os.Getpid()})
	if !errors.Is(err, ErrRunInProgress) {
		t.Errorf("error = %v, want ErrRunInProgress", err)
	}

	if err := db.FinishRun("run-1", models.RunStateCompleted, "done"); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}
	if err := db.BeginRun(&models.Run{ID: "run-3", ChatID: "chat-1", Request: "c", PID: os.Getpid()}); err != nil {
		t.Errorf("BeginRun after finish failed: %v", err)
	}
}

func TestBeginRun_RecoversDeadRun(t *testing.T) {
	db := setupChat(t, "chat-1")

	if err := db.BeginRun(&models.Run{ID: "run-1", ChatID: "chat-1", Request: "a", PID: 0}); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	tasks, _ := db.CreateOverviewTasks("chat-1", "run-1", []string{"a"})

	if err := db.BeginRun(&models.Run{ID: "run-2", ChatID: "chat-1", Request: "b", PID: os.Getpid()}); err != nil {
		t.Fatalf("BeginRun over dead run failed: %v", err)
	}

	old, _ := db.GetRun("run-1")
	if old.State != models.RunStateCompletedWithErrors || old.FinishedAt.IsZero() {
		t.Errorf("dead run not closed: %+v", old)
	}
	task, _ := db.GetOverviewTask(tasks[0].ID)
	if task.Status != models.TaskStatusFailed || task.Reason != InterruptedReason {
		t.Errorf("task = %s/%s, want failed/%s", task.Status, task.Reason, InterruptedReason)
	}
}

func TestMarkRunRunning(t *testing.T) {
	db := setupChat(t, "chat-1")
	if err := db.BeginRun(&models.Run{ID: "run-1", ChatID: "chat-1", Request: "a"}); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	if err := db.MarkRunRunning("run-1"); err != nil {
		t.Fatalf("MarkRunRunning failed: %v", err)
	}
	r, _ := db.GetRun("run-1")
	if r.State != models.RunStateRunning {
		t.Errorf("State = %q, want running", r.State)
	}
}

func TestFinishRun_NotFound(t *testing.T) {
	db := setupTestDB(t)

	if err := db.FinishRun("missing", models.RunStateCompleted, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestListRuns(t *testing.T) {
	db := setupChat(t, "chat-1")
	for _, id := range []string{"run-1", "run-2", "run-3"} {
		if err := db.BeginRun(&models.Run{ID: id, ChatID: "chat-1", Request: id}); err != nil {
			t.Fatalf("BeginRun failed: %v", err)
		}
		if err := db.FinishRun(id, models.RunStateCompleted, ""); err != nil {
			t.Fatalf("FinishRun failed: %v", err)
		}
	}

	runs, err := db.ListRuns("chat-1", 2)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-3" {
		t.Errorf("runs = %+v, want newest two", runs)
	}
}

func TestCheckForInterrupted(t *testing.T) {
	db := setupChat(t, "chat-1")
	rm := NewRecoveryManager(db)

	got, err := rm.CheckForInterrupted()
	if err != nil {
		t.Fatalf("CheckForInterrupted failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no interrupted runs, got %+v", got)
	}

	if err := db.BeginRun(&models.Run{ID: "live", ChatID: "chat-1", Request: "a", PID: os.Getpid()}); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	if _, err := db.EnsureChat("chat-2", ""); err != nil {
		t.Fatalf("EnsureChat failed: %v", err)
	}
	if err := db.BeginRun(&models.Run{ID: "dead", ChatID: "chat-2", Request: "b", PID: 0}); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	if _, err := db.CreateOverviewTasks("chat-2", "dead", []string{"x", "y"}); err != nil {
		t.Fatalf("CreateOverviewTasks failed: %v", err)
	}

	got, err = rm.CheckForInterrupted()
	if err != nil {
		t.Fatalf("CheckForInterrupted failed: %v", err)
	}
	if len(got) != 1 || got[0].RunID != "dead" || got[0].OpenTasks != 2 {
		t.Errorf("interrupted = %+v, want the dead run with 2 open tasks", got)
	}

	n, err := rm.CleanAll()
	if err != nil {
		t.Fatalf("CleanAll failed: %v", err)
	}
	if n != 1 {
		t.Errorf("CleanAll closed %d runs, want 1", n)
	}

	live, _ := db.GetRun("live")
	if live.State != models.RunStatePlanning {
		t.Errorf("live run was touched: %+v", live)
	}
}

func TestIsProcessAlive(t *testing.T) {
	if !isProcessAlive(os.Getpid()) {
		t.Error("current process should be alive")
	}
	if isProcessAlive(0) || isProcessAlive(-1) {
		t.Error("non-positive PIDs should not be alive")
	}
}
