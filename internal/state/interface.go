package state

import (
	"encoding/json"
	"io"

	"github.com/jimmy24599/kairo-sub000/pkg/models"
)

// ChatStore handles chat-related persistence operations.
type ChatStore interface {
	EnsureChat(id, name string) (*models.Chat, error)
	GetChat(id string) (*models.Chat, error)
	ListChats(status *models.ChatStatus) ([]models.Chat, error)
	ArchiveChat(id string) error
	DeleteChat(id string) error
}

// RunStore handles run bookkeeping.
type RunStore interface {
	BeginRun(r *models.Run) error
	MarkRunRunning(id string) error
	FinishRun(id string, state models.RunState, summary string) error
	GetRun(id string) (*models.Run, error)
	ListRuns(chatID string, limit int) ([]models.Run, error)
}

// TaskStore handles the overview task / subtask hierarchy.
type TaskStore interface {
	CreateOverviewTasks(chatID, runID string, descriptions []string) ([]*models.OverviewTask, error)
	GetOverviewTask(id string) (*models.OverviewTask, error)
	ListOverviewTasks(chatID string) ([]*models.OverviewTask, error)
	ListRunTasks(runID string) ([]*models.OverviewTask, error)
	UpdateOverviewTaskStatus(id string, status models.TaskStatus, reason string) error
	ReplaceSubtasks(taskID string, subtasks []models.Subtask) ([]models.Subtask, error)
	UpdateSubtaskStatus(id string, status models.SubtaskStatus) error
	CompleteSubtask(id string, outcome SubtaskOutcome) error
}

// MessageStore handles the chat message log.
type MessageStore interface {
	AppendMessage(m *models.Message) error
	ListMessages(chatID string, limit int) ([]models.Message, error)
	UpsertLiveSnapshot(chatID, liveKey, content string, payload json.RawMessage) (*models.Message, error)
	LatestSnapshot(chatID string) (*models.Message, error)
	LatestAgentMessage(chatID string) (*models.Message, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// Store defines the interface for state persistence.
// The orchestrator depends on this rather than the concrete SQLite
// implementation.
type Store interface {
	io.Closer
	Migrator
	ChatStore
	RunStore
	TaskStore
	MessageStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Store        = (*DB)(nil)
	_ Migrator     = (*DB)(nil)
	_ ChatStore    = (*DB)(nil)
	_ RunStore     = (*DB)(nil)
	_ TaskStore    = (*DB)(nil)
	_ MessageStore = (*DB)(nil)
)
