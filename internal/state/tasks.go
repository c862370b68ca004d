package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jimmy24599/kairo-sub000/pkg/models"
)

const overviewTaskColumns = `id, chat_id, run_id, ordinal, description, status, reason, created_at, updated_at`

const subtaskColumns = `id, overview_task_id, ordinal, position, operation, parameters, explanation,
	status, result, error, reason, attempts, fallback`

// terminal status guard shared by task and subtask updates.
const (
	taskNotTerminal    = `status NOT IN ('done', 'failed')`
	subtaskNotTerminal = `status NOT IN ('done', 'failed', 'skipped')`
)

// SubtaskOutcome carries the fields written when a subtask reaches a
// terminal status.
type SubtaskOutcome struct {
	Status   models.SubtaskStatus
	Result   json.RawMessage
	Error    string
	Reason   string
	Attempts int
}

// CreateOverviewTasks inserts one pending task per description. Ordinals
// continue after the highest ordinal already used in the chat.
func (db *DB) CreateOverviewTasks(chatID, runID string, descriptions []string) ([]*models.OverviewTask, error) {
	now := time.Now()
	var tasks []*models.OverviewTask

	err := db.Transaction(func(tx *sql.Tx) error {
		var maxOrdinal int
		row := tx.QueryRow("SELECT COALESCE(MAX(ordinal), 0) FROM overview_tasks WHERE chat_id = ?", chatID)
		if err := row.Scan(&maxOrdinal); err != nil {
			return err
		}

		for i, desc := range descriptions {
			t := &models.OverviewTask{
				ID:          uuid.New().String(),
				ChatID:      chatID,
				RunID:       runID,
				Ordinal:     maxOrdinal + i + 1,
				Description: desc,
				Status:      models.TaskStatusPending,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			_, err := tx.Exec(`
				INSERT INTO overview_tasks (id, chat_id, run_id, ordinal, description, status, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, t.ID, t.ChatID, t.RunID, t.Ordinal, t.Description, string(t.Status), formatTime(now), formatTime(now))
			if err != nil {
				return err
			}
			tasks = append(tasks, t)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create overview tasks: %w", err)
	}
	return tasks, nil
}

// GetOverviewTask retrieves a task and its subtasks. It returns nil if the
// task does not exist.
func (db *DB) GetOverviewTask(id string) (*models.OverviewTask, error) {
	row := db.QueryRow("SELECT "+overviewTaskColumns+" FROM overview_tasks WHERE id = ?", id)
	t, err := scanOverviewTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get overview task: %w", err)
	}

	subtasks, err := db.querySubtasks("WHERE overview_task_id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("get overview task: %w", err)
	}
	t.Subtasks = subtasks[t.ID]
	return t, nil
}

// ListOverviewTasks lists every task of a chat in ordinal order, with subtasks.
func (db *DB) ListOverviewTasks(chatID string) ([]*models.OverviewTask, error) {
	tasks, err := db.listTasks("chat_id", chatID)
	if err != nil {
		return nil, fmt.Errorf("list overview tasks: %w", err)
	}
	return tasks, nil
}

// ListRunTasks lists the tasks created by one run in ordinal order, with
// subtasks.
func (db *DB) ListRunTasks(runID string) ([]*models.OverviewTask, error) {
	tasks, err := db.listTasks("run_id", runID)
	if err != nil {
		return nil, fmt.Errorf("list run tasks: %w", err)
	}
	return tasks, nil
}

// listTasks loads tasks filtered on column (chat_id or run_id), then their
// subtasks in a second query.
func (db *DB) listTasks(column, value string) ([]*models.OverviewTask, error) {
	rows, err := db.Query("SELECT "+overviewTaskColumns+" FROM overview_tasks WHERE "+column+" = ? ORDER BY ordinal", value)
	if err != nil {
		return nil, err
	}

	var tasks []*models.OverviewTask
	for rows.Next() {
		t, err := scanOverviewTask(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan overview task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(tasks) == 0 {
		return tasks, nil
	}

	subtasks, err := db.querySubtasks(
		"WHERE overview_task_id IN (SELECT id FROM overview_tasks WHERE "+column+" = ?)", value)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		t.Subtasks = subtasks[t.ID]
	}
	return tasks, nil
}

// UpdateOverviewTaskStatus sets a task's status and reason. Terminal tasks are
// never modified: the call fails with ErrTerminalStatus.
func (db *DB) UpdateOverviewTaskStatus(id string, status models.TaskStatus, reason string) error {
	if !status.Valid() {
		return fmt.Errorf("update overview task: invalid status %q", status)
	}
	res, err := db.Exec(`
		UPDATE overview_tasks SET status = ?, reason = ?, updated_at = ?
		WHERE id = ? AND `+taskNotTerminal,
		string(status), nullString(reason), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("update overview task: %w", err)
	}
	return db.guardResult(res, "overview_tasks", id)
}

// ReplaceSubtasks sets the full list of subtasks of a non-terminal task.
// Positions are assigned from slice order; IDs are generated when empty.
func (db *DB) ReplaceSubtasks(taskID string, subtasks []models.Subtask) ([]models.Subtask, error) {
	now := formatTime(time.Now())
	out := make([]models.Subtask, 0, len(subtasks))

	err := db.Transaction(func(tx *sql.Tx) error {
		var ordinal int
		var status string
		err := tx.QueryRow("SELECT ordinal, status FROM overview_tasks WHERE id = ?", taskID).Scan(&ordinal, &status)
		if err == sql.ErrNoRows {
			return fmt.Errorf("overview task %s: %w", taskID, ErrNotFound)
		}
		if err != nil {
			return err
		}
		if models.TaskStatus(status).IsTerminal() {
			return ErrTerminalStatus
		}

		if _, err := tx.Exec("DELETE FROM subtasks WHERE overview_task_id = ?", taskID); err != nil {
			return err
		}

		for i, s := range subtasks {
			if s.ID == "" {
				s.ID = uuid.New().String()
			}
			s.OverviewTaskID = taskID
			s.Ordinal = ordinal
			s.Position = i
			if s.Status == "" {
				s.Status = models.SubtaskStatusPending
			}
			if len(s.Parameters) == 0 {
				s.Parameters = json.RawMessage("{}")
			}

			_, err := tx.Exec(`
				INSERT INTO subtasks (id, overview_task_id, ordinal, position, operation, parameters,
					explanation, status, fallback, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, s.ID, s.OverviewTaskID, s.Ordinal, s.Position, s.Operation, string(s.Parameters),
				s.Explanation, string(s.Status), s.Fallback, now)
			if err != nil {
				return err
			}
			out = append(out, s)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("replace subtasks: %w", err)
	}
	return out, nil
}

// UpdateSubtaskStatus moves a subtask to a non-terminal status, or to a
// terminal one without a result. Terminal subtasks are never modified.
func (db *DB) UpdateSubtaskStatus(id string, status models.SubtaskStatus) error {
	if !status.Valid() {
		return fmt.Errorf("update subtask: invalid status %q", status)
	}
	res, err := db.Exec(`
		UPDATE subtasks SET status = ?, updated_at = ?
		WHERE id = ? AND `+subtaskNotTerminal,
		string(status), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("update subtask: %w", err)
	}
	return db.guardResult(res, "subtasks", id)
}

// CompleteSubtask writes a terminal status together with the result, error,
// reason and attempt count.
func (db *DB) CompleteSubtask(id string, outcome SubtaskOutcome) error {
	if !outcome.Status.IsTerminal() {
		return fmt.Errorf("complete subtask: status %q is not terminal", outcome.Status)
	}
	var result sql.NullString
	if len(outcome.Result) > 0 {
		result = sql.NullString{String: string(outcome.Result), Valid: true}
	}

	res, err := db.Exec(`
		UPDATE subtasks SET status = ?, result = ?, error = ?, reason = ?, attempts = ?, updated_at = ?
		WHERE id = ? AND `+subtaskNotTerminal,
		string(outcome.Status), result, nullString(outcome.Error), nullString(outcome.Reason),
		outcome.Attempts, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("complete subtask: %w", err)
	}
	return db.guardResult(res, "subtasks", id)
}

// guardResult turns a zero-row guarded update into ErrNotFound or
// ErrTerminalStatus.
func (db *DB) guardResult(res sql.Result, table, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", table, err)
	}
	if n > 0 {
		return nil
	}

	var exists int
	err = db.QueryRow("SELECT COUNT(*) FROM "+table+" WHERE id = ?", id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("%s lookup: %w", table, err)
	}
	if exists == 0 {
		return fmt.Errorf("%s %s: %w", strings.TrimSuffix(table, "s"), id, ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", strings.TrimSuffix(table, "s"), id, ErrTerminalStatus)
}

// querySubtasks returns subtasks matching the where clause, grouped by owning
// task and ordered by position.
func (db *DB) querySubtasks(where string, args ...any) (map[string][]models.Subtask, error) {
	rows, err := db.Query("SELECT "+subtaskColumns+" FROM subtasks "+where+" ORDER BY ordinal, position", args...)
	if err != nil {
		return nil, fmt.Errorf("query subtasks: %w", err)
	}
	defer rows.Close()

	byTask := make(map[string][]models.Subtask)
	for rows.Next() {
		var s models.Subtask
		var params string
		var result, errMsg, reason sql.NullString
		if err := rows.Scan(&s.ID, &s.OverviewTaskID, &s.Ordinal, &s.Position, &s.Operation, &params,
			&s.Explanation, &s.Status, &result, &errMsg, &reason, &s.Attempts, &s.Fallback); err != nil {
			return nil, fmt.Errorf("scan subtask: %w", err)
		}
		s.Parameters = json.RawMessage(params)
		if result.Valid {
			s.Result = json.RawMessage(result.String)
		}
		s.Error = errMsg.String
		s.Reason = reason.String
		byTask[s.OverviewTaskID] = append(byTask[s.OverviewTaskID], s)
	}
	return byTask, rows.Err()
}

func scanOverviewTask(row rowScanner) (*models.OverviewTask, error) {
	var t models.OverviewTask
	var reason sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&t.ID, &t.ChatID, &t.RunID, &t.Ordinal, &t.Description, &t.Status, &reason,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}
	t.Reason = reason.String
	t.CreatedAt, _ = parseTime(createdAt)
	t.UpdatedAt, _ = parseTime(updatedAt)
	return &t, nil
}
