package state

import (
	"database/sql"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/jimmy24599/kairo-sub000/pkg/models"
)

// InterruptedReason is recorded on tasks and subtasks left unfinished by a
// process that exited mid-run.
const InterruptedReason = "interrupted"

// InterruptedRun describes an unfinished run whose owning process is gone.
type InterruptedRun struct {
	RunID     string
	ChatID    string
	PID       int
	StartedAt time.Time
	// OpenTasks is the number of tasks still pending or active.
	OpenTasks int
}

// RecoveryManager detects and closes runs interrupted by a crash.
type RecoveryManager struct {
	db *DB
}

// NewRecoveryManager creates a new RecoveryManager with the given database.
func NewRecoveryManager(db *DB) *RecoveryManager {
	return &RecoveryManager{db: db}
}

// CheckForInterrupted lists unfinished runs whose process is no longer alive.
func (rm *RecoveryManager) CheckForInterrupted() ([]InterruptedRun, error) {
	rows, err := rm.db.Query("SELECT "+runColumns+" FROM runs WHERE state IN (?, ?) ORDER BY started_at",
		string(models.RunStatePlanning), string(models.RunStateRunning))
	if err != nil {
		return nil, fmt.Errorf("list unfinished runs: %w", err)
	}

	var candidates []models.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if !isProcessAlive(r.PID) {
			candidates = append(candidates, *r)
		}
	}
	rows.Close()

	var out []InterruptedRun
	for _, r := range candidates {
		var open int
		err := rm.db.QueryRow("SELECT COUNT(*) FROM overview_tasks WHERE run_id = ? AND "+taskNotTerminal, r.ID).Scan(&open)
		if err != nil {
			return nil, fmt.Errorf("count open tasks: %w", err)
		}
		out = append(out, InterruptedRun{
			RunID:     r.ID,
			ChatID:    r.ChatID,
			PID:       r.PID,
			StartedAt: r.StartedAt,
			OpenTasks: open,
		})
	}
	return out, nil
}

// Clean closes an interrupted run: open tasks and subtasks are failed with
// InterruptedReason and the run is marked completed with errors.
func (rm *RecoveryManager) Clean(runID string) error {
	return rm.db.Transaction(func(tx *sql.Tx) error {
		return recoverRun(tx, runID)
	})
}

// CleanAll closes every interrupted run and returns how many were closed.
func (rm *RecoveryManager) CleanAll() (int, error) {
	runs, err := rm.CheckForInterrupted()
	if err != nil {
		return 0, err
	}
	for _, r := range runs {
		if err := rm.Clean(r.RunID); err != nil {
			return 0, fmt.Errorf("clean run %s: %w", r.RunID, err)
		}
	}
	return len(runs), nil
}

func recoverRun(tx *sql.Tx, runID string) error {
	now := formatTime(time.Now())

	_, err := tx.Exec(`
		UPDATE subtasks SET status = ?, reason = ?, updated_at = ?
		WHERE overview_task_id IN (SELECT id FROM overview_tasks WHERE run_id = ?) AND `+subtaskNotTerminal,
		string(models.SubtaskStatusFailed), InterruptedReason, now, runID)
	if err != nil {
		return fmt.Errorf("fail interrupted subtasks: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE overview_tasks SET status = ?, reason = ?, updated_at = ?
		WHERE run_id = ? AND `+taskNotTerminal,
		string(models.TaskStatusFailed), InterruptedReason, now, runID)
	if err != nil {
		return fmt.Errorf("fail interrupted tasks: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE runs SET state = ?, summary = ?, finished_at = ? WHERE id = ?
	`, string(models.RunStateCompletedWithErrors), "Run was interrupted before it finished.", now, runID)
	if err != nil {
		return fmt.Errorf("close interrupted run: %w", err)
	}
	return nil
}

// isProcessAlive checks if a process with the given PID is still running.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Send signal 0 to check if process exists
	err = process.Signal(syscall.Signal(0))
	return err == nil
}
