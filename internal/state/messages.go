package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jimmy24599/kairo-sub000/pkg/models"
)

const messageColumns = `id, chat_id, role, variant, content, payload, live_key, created_at, updated_at`

// AppendMessage adds a message to a chat's log and bumps the chat's
// message counters. ID and timestamps are filled in when empty.
func (db *DB) AppendMessage(m *models.Message) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Variant == "" {
		m.Variant = models.VariantText
	}
	now := time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = m.CreatedAt

	err := db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO messages (`+messageColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, m.ID, m.ChatID, string(m.Role), string(m.Variant), m.Content, nullPayload(m.Payload),
			nullString(m.LiveKey), formatTime(m.CreatedAt), formatTime(m.UpdatedAt))
		if err != nil {
			return err
		}
		return bumpChat(tx, m.ChatID, m.CreatedAt)
	})
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// UpsertLiveSnapshot creates or updates, in place, the snapshot message
// identified by (chatID, liveKey). Only creation counts toward the chat's
// message total.
func (db *DB) UpsertLiveSnapshot(chatID, liveKey, content string, payload json.RawMessage) (*models.Message, error) {
	if liveKey == "" {
		return nil, fmt.Errorf("upsert live snapshot: empty live key")
	}
	now := time.Now()
	candidate := uuid.New().String()
	var m *models.Message

	err := db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO messages (`+messageColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(chat_id, live_key) DO UPDATE SET
				content = excluded.content,
				payload = excluded.payload,
				updated_at = excluded.updated_at
		`, candidate, chatID, string(models.RoleAgent), string(models.VariantTaskSnapshot), content,
			nullPayload(payload), liveKey, formatTime(now), formatTime(now))
		if err != nil {
			return err
		}

		row := tx.QueryRow("SELECT "+messageColumns+" FROM messages WHERE chat_id = ? AND live_key = ?", chatID, liveKey)
		m, err = scanMessage(row)
		if err != nil {
			return err
		}

		if m.ID == candidate {
			return bumpChat(tx, chatID, now)
		}
		_, err = tx.Exec("UPDATE chats SET last_message_at = ? WHERE id = ?", formatTime(now), chatID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("upsert live snapshot: %w", err)
	}
	return m, nil
}

// ListMessages returns a chat's messages oldest first. A limit > 0 keeps only
// the most recent messages.
func (db *DB) ListMessages(chatID string, limit int) ([]models.Message, error) {
	query := "SELECT " + messageColumns + " FROM messages WHERE chat_id = ? ORDER BY created_at DESC, rowid DESC"
	args := []any{chatID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// LatestSnapshot returns the most recently updated task snapshot message of a
// chat, or nil if there is none.
func (db *DB) LatestSnapshot(chatID string) (*models.Message, error) {
	row := db.QueryRow(`
		SELECT `+messageColumns+` FROM messages
		WHERE chat_id = ? AND variant = ?
		ORDER BY updated_at DESC, rowid DESC LIMIT 1
	`, chatID, string(models.VariantTaskSnapshot))
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	return m, nil
}

// LatestAgentMessage returns the newest plain-text agent message of a chat,
// or nil if there is none.
func (db *DB) LatestAgentMessage(chatID string) (*models.Message, error) {
	row := db.QueryRow(`
		SELECT `+messageColumns+` FROM messages
		WHERE chat_id = ? AND role = ? AND variant = ?
		ORDER BY created_at DESC, rowid DESC LIMIT 1
	`, chatID, string(models.RoleAgent), string(models.VariantText))
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest agent message: %w", err)
	}
	return m, nil
}

func bumpChat(tx *sql.Tx, chatID string, at time.Time) error {
	res, err := tx.Exec(`
		UPDATE chats SET message_count = message_count + 1, last_message_at = ? WHERE id = ?
	`, formatTime(at), chatID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("chat %s: %w", chatID, ErrNotFound)
	}
	return nil
}

func nullPayload(p json.RawMessage) sql.NullString {
	return sql.NullString{String: string(p), Valid: len(p) > 0}
}

func scanMessage(row rowScanner) (*models.Message, error) {
	var m models.Message
	var payload, liveKey sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&m.ID, &m.ChatID, &m.Role, &m.Variant, &m.Content, &payload, &liveKey,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if payload.Valid {
		m.Payload = json.RawMessage(payload.String)
	}
	m.LiveKey = liveKey.String
	m.CreatedAt, _ = parseTime(createdAt)
	m.UpdatedAt, _ = parseTime(updatedAt)
	return &m, nil
}
