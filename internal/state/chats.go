package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jimmy24599/kairo-sub000/pkg/models"
)

const chatColumns = `id, name, status, last_message_at, message_count, created_at`

// EnsureChat returns the chat with the given ID, creating it if needed.
// Archived chats are reactivated. A deleted chat yields ErrChatDeleted.
func (db *DB) EnsureChat(id, name string) (*models.Chat, error) {
	if name == "" {
		name = id
	}
	now := formatTime(time.Now())

	err := db.Transaction(func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRow("SELECT status FROM chats WHERE id = ?", id).Scan(&status)
		switch {
		case err == sql.ErrNoRows:
			_, err = tx.Exec(`
				INSERT INTO chats (id, name, status, message_count, created_at)
				VALUES (?, ?, ?, 0, ?)
			`, id, name, string(models.ChatStatusActive), now)
			return err
		case err != nil:
			return err
		}

		switch models.ChatStatus(status) {
		case models.ChatStatusDeleted:
			return ErrChatDeleted
		case models.ChatStatusArchived:
			_, err = tx.Exec("UPDATE chats SET status = ? WHERE id = ?", string(models.ChatStatusActive), id)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ensure chat: %w", err)
	}

	return db.GetChat(id)
}

// GetChat retrieves a chat by ID. It returns nil if the chat does not exist.
func (db *DB) GetChat(id string) (*models.Chat, error) {
	row := db.QueryRow("SELECT "+chatColumns+" FROM chats WHERE id = ?", id)

	c, err := scanChat(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}
	return c, nil
}

// ListChats lists chats, most recently active first, optionally filtered by
// status.
func (db *DB) ListChats(status *models.ChatStatus) ([]models.Chat, error) {
	var rows *sql.Rows
	var err error

	order := " ORDER BY COALESCE(last_message_at, created_at) DESC"
	if status != nil {
		rows, err = db.Query("SELECT "+chatColumns+" FROM chats WHERE status = ?"+order, string(*status))
	} else {
		rows, err = db.Query("SELECT " + chatColumns + " FROM chats" + order)
	}
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var chats []models.Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, *c)
	}
	return chats, rows.Err()
}

// ArchiveChat marks a chat archived.
func (db *DB) ArchiveChat(id string) error {
	return db.setChatStatus(id, models.ChatStatusArchived)
}

// DeleteChat marks a chat deleted. Rows are kept.
func (db *DB) DeleteChat(id string) error {
	return db.setChatStatus(id, models.ChatStatusDeleted)
}

func (db *DB) setChatStatus(id string, status models.ChatStatus) error {
	res, err := db.Exec("UPDATE chats SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return fmt.Errorf("set chat status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set chat status: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("chat %s: %w", id, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChat(row rowScanner) (*models.Chat, error) {
	var c models.Chat
	var lastMessageAt sql.NullString
	var createdAt string
	if err := row.Scan(&c.ID, &c.Name, &c.Status, &lastMessageAt, &c.MessageCount, &createdAt); err != nil {
		return nil, err
	}
	c.LastMessageAt = parseNullableTime(lastMessageAt)
	c.CreatedAt, _ = parseTime(createdAt)
	return &c, nil
}
