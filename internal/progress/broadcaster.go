package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jimmy24599/kairo-sub000/pkg/models"
)

// SnapshotStore is where live snapshots are persisted.
type SnapshotStore interface {
	UpsertLiveSnapshot(chatID, liveKey, content string, payload json.RawMessage) (*models.Message, error)
}

// Broadcaster sends each event to both sinks: the persisted live snapshot
// of the run and the hub's live observers.
type Broadcaster struct {
	store  SnapshotStore
	hub    *Hub
	logger *slog.Logger
	now    func() time.Time
}

// NewBroadcaster creates a Broadcaster. hub may be nil to persist only.
func NewBroadcaster(store SnapshotStore, hub *Hub, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Broadcaster{
		store:  store,
		hub:    hub,
		logger: logger.With("component", "progress"),
		now:    time.Now,
	}
}

// Emit fills in the timestamp and percentage, upserts the live snapshot for
// the run and publishes the event. Neither sink's failure is returned: a
// failed upsert is logged, and observers are best effort.
func (b *Broadcaster) Emit(_ context.Context, ev Event) Event {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = b.now()
	}
	ev.Percent = Percent(ev.Tasks)

	if err := b.persist(ev); err != nil {
		b.logger.Error("persist live snapshot",
			"chat_id", ev.ChatID, "run_id", ev.RunID, "type", ev.Type, "error", err)
	}

	// Publishing ignores ctx so the final state of a cancelled run still
	// reaches observers.
	if b.hub != nil {
		b.hub.Publish(ev)
	}
	return ev
}

func (b *Broadcaster) persist(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if _, err := b.store.UpsertLiveSnapshot(ev.ChatID, ev.RunID, Render(ev), payload); err != nil {
		return err
	}
	return nil
}

// Render produces the plain-text form of an event's task list, stored as
// the content of the live snapshot message.
func Render(ev Event) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Progress: %d%%\n", ev.Percent)
	if ev.Thought != "" {
		fmt.Fprintf(&sb, "%s\n", ev.Thought)
	}
	for _, t := range ev.Tasks {
		fmt.Fprintf(&sb, "%s %d. %s", taskMark(t.Status), t.Ordinal, t.Description)
		if t.Reason != "" {
			fmt.Fprintf(&sb, " (%s)", t.Reason)
		}
		sb.WriteByte('\n')
		for _, s := range t.Subtasks {
			fmt.Fprintf(&sb, "    %s %s: %s", subtaskMark(s.Status), s.Operation, s.Explanation)
			if s.Reason != "" {
				fmt.Fprintf(&sb, " (%s)", s.Reason)
			}
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func taskMark(s models.TaskStatus) string {
	switch s {
	case models.TaskStatusDone:
		return "[x]"
	case models.TaskStatusFailed:
		return "[!]"
	case models.TaskStatusActive:
		return "[>]"
	default:
		return "[ ]"
	}
}

func subtaskMark(s models.SubtaskStatus) string {
	switch s {
	case models.SubtaskStatusDone:
		return "[x]"
	case models.SubtaskStatusFailed:
		return "[!]"
	case models.SubtaskStatusSkipped:
		return "[-]"
	case models.SubtaskStatusActive:
		return "[>]"
	default:
		return "[ ]"
	}
}
