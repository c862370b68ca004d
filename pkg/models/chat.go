package models

import (
	"encoding/json"
	"time"
)

// ChatStatus represents the lifecycle state of a chat.
type ChatStatus string

const (
	// ChatStatusActive is the status of a chat in use.
	ChatStatusActive ChatStatus = "active"
	// ChatStatusArchived hides a chat without removing it.
	ChatStatusArchived ChatStatus = "archived"
	// ChatStatusDeleted marks a chat as deleted. Chats are never hard-deleted.
	ChatStatusDeleted ChatStatus = "deleted"
)

// Valid returns true if the status is a known value.
func (s ChatStatus) Valid() bool {
	switch s {
	case ChatStatusActive, ChatStatusArchived, ChatStatusDeleted:
		return true
	default:
		return false
	}
}

// Chat is a conversation container owning overview tasks and messages.
type Chat struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Status        ChatStatus `json:"status"`
	LastMessageAt time.Time  `json:"last_message_at"`
	MessageCount  int        `json:"message_count"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Role identifies who wrote a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// MessageVariant tags the kind of payload a message carries.
type MessageVariant string

const (
	// VariantText is a plain transcript message.
	VariantText MessageVariant = "text"
	// VariantTaskSnapshot is a rendering of the task list; the live snapshot
	// of a run is updated in place.
	VariantTaskSnapshot MessageVariant = "task_snapshot"
	// VariantToolStep records the outcome of one subtask.
	VariantToolStep MessageVariant = "tool_step"
)

// Message is an entry in a chat's append-only log.
type Message struct {
	ID      string          `json:"id"`
	ChatID  string          `json:"chat_id"`
	Role    Role            `json:"role"`
	Variant MessageVariant  `json:"variant"`
	Content string          `json:"content"`
	Payload json.RawMessage `json:"payload,omitempty"`
	// LiveKey is set only on the live snapshot message of a run.
	LiveKey   string    `json:"live_key,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
