package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jimmy24599/kairo-sub000/pkg/models"
)

const runColumns = `id, chat_id, request, pid, state, summary, started_at, finished_at`

// BeginRun records the start of a run. It fails with ErrRunInProgress if
// another live process owns an unfinished run in the same chat. Unfinished
// runs whose process is gone are recovered first.
func (db *DB) BeginRun(r *models.Run) error {
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	if r.State == "" {
		r.State = models.RunStatePlanning
	}

	err := db.Transaction(func(tx *sql.Tx) error {
		stale, err := unfinishedRuns(tx, r.ChatID)
		if err != nil {
			return err
		}
		for _, s := range stale {
			if isProcessAlive(s.PID) {
				return ErrRunInProgress
			}
			if err := recoverRun(tx, s.ID); err != nil {
				return err
			}
		}

		_, err = tx.Exec(`
			INSERT INTO runs (id, chat_id, request, pid, state, started_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, r.ID, r.ChatID, r.Request, r.PID, string(r.State), formatTime(r.StartedAt))
		return err
	})
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// FinishRun records the final state and summary of a run.
func (db *DB) FinishRun(id string, state models.RunState, summary string) error {
	res, err := db.Exec(`
		UPDATE runs SET state = ?, summary = ?, finished_at = ? WHERE id = ?
	`, string(state), summary, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrNotFound)
	}
	return nil
}

// MarkRunRunning moves a run from planning to running.
func (db *DB) MarkRunRunning(id string) error {
	_, err := db.Exec("UPDATE runs SET state = ? WHERE id = ? AND state = ?",
		string(models.RunStateRunning), id, string(models.RunStatePlanning))
	if err != nil {
		return fmt.Errorf("mark run running: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID. It returns nil if the run does not exist.
func (db *DB) GetRun(id string) (*models.Run, error) {
	row := db.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns lists the runs of a chat, newest first. A limit <= 0 returns all.
func (db *DB) ListRuns(chatID string, limit int) ([]models.Run, error) {
	query := "SELECT " + runColumns + " FROM runs WHERE chat_id = ? ORDER BY started_at DESC"
	args := []any{chatID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []models.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

func unfinishedRuns(tx *sql.Tx, chatID string) ([]models.Run, error) {
	rows, err := tx.Query("SELECT "+runColumns+" FROM runs WHERE chat_id = ? AND state IN (?, ?)",
		chatID, string(models.RunStatePlanning), string(models.RunStateRunning))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

func scanRun(row rowScanner) (*models.Run, error) {
	var r models.Run
	var summary, finishedAt sql.NullString
	var startedAt string
	if err := row.Scan(&r.ID, &r.ChatID, &r.Request, &r.PID, &r.State, &summary, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	r.Summary = summary.String
	r.StartedAt, _ = parseTime(startedAt)
	r.FinishedAt = parseNullableTime(finishedAt)
	return &r, nil
}
