package progress

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jimmy24599/kairo-sub000/internal/state"
	"github.com/jimmy24599/kairo-sub000/pkg/models"
)

func setupStore(t *testing.T, chatID string) *state.DB {
	t.Helper()
	db, err := state.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	_, err = db.EnsureChat(chatID, "")
	require.NoError(t, err)
	return db
}

// collector records delivered events.
type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) observe(_ context.Context, ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *collector) types() []EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]EventType, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.Type
	}
	return out
}

func sampleTasks() []*models.OverviewTask {
	return []*models.OverviewTask{
		{ID: "t1", Ordinal: 1, Description: "first", Status: models.TaskStatusDone, Subtasks: []models.Subtask{
			{ID: "s1", Operation: "read_file", Status: models.SubtaskStatusDone},
			{ID: "s2", Operation: "write_file", Status: models.SubtaskStatusFailed},
			{ID: "s3", Operation: "run_command", Status: models.SubtaskStatusPending},
		}},
		{ID: "t2", Ordinal: 2, Description: "second", Status: models.TaskStatusPending},
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		name  string
		tasks []models.OverviewTask
		want  int
	}{
		{"empty", nil, 0},
		{"mixed", CloneTasks(sampleTasks()), 50},
		{"tasks without subtasks", []models.OverviewTask{
			{Status: models.TaskStatusFailed}, {Status: models.TaskStatusActive}, {Status: models.TaskStatusPending},
		}, 33},
		{"all done", []models.OverviewTask{
			{Status: models.TaskStatusDone, Subtasks: []models.Subtask{{Status: models.SubtaskStatusDone}, {Status: models.SubtaskStatusSkipped}}},
		}, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Percent(tt.tasks))
		})
	}
}

func TestCloneTasks_Independent(t *testing.T) {
	tasks := sampleTasks()
	clone := CloneTasks(tasks)

	tasks[0].Subtasks[2].Status = models.SubtaskStatusDone
	tasks[1].Status = models.TaskStatusActive

	assert.Equal(t, models.SubtaskStatusPending, clone[0].Subtasks[2].Status)
	assert.Equal(t, models.TaskStatusPending, clone[1].Status)
}

func TestHub_DeliversWhileOpen(t *testing.T) {
	hub := NewHub()
	c := &collector{}
	unsubscribe := hub.Subscribe("chat-1", c.observe)
	defer unsubscribe()

	assert.False(t, hub.Publish(Event{ChatID: "chat-1", Type: EventRunStarted}), "closed stream drops events")

	require.NoError(t, hub.Open("chat-1"))
	assert.True(t, hub.IsOpen("chat-1"))
	assert.ErrorIs(t, hub.Open("chat-1"), ErrStreamOpen)

	assert.True(t, hub.Publish(Event{ChatID: "chat-1", Type: EventTaskStarted}))
	assert.False(t, hub.Publish(Event{ChatID: "chat-2", Type: EventTaskStarted}))
	assert.True(t, hub.Publish(Event{ChatID: "chat-1", Type: EventRunCompleted}))
	hub.Close("chat-1")

	assert.False(t, hub.IsOpen("chat-1"))
	assert.Equal(t, []EventType{EventTaskStarted, EventRunCompleted}, c.types())

	// Closing twice is harmless.
	hub.Close("chat-1")
}

func TestHub_Unsubscribe(t *testing.T) {
	hub := NewHub()
	c := &collector{}
	unsubscribe := hub.Subscribe("chat-1", c.observe)
	unsubscribe()
	unsubscribe()

	require.NoError(t, hub.Open("chat-1"))
	hub.Publish(Event{ChatID: "chat-1", Type: EventTaskStarted})
	hub.Close("chat-1")

	assert.Empty(t, c.types())
}

func TestHub_ObserverFailuresAreIsolated(t *testing.T) {
	hub := NewHub(WithObserverTimeout(50 * time.Millisecond))
	good := &collector{}

	hub.Subscribe("chat-1", func(context.Context, Event) error { return errors.New("socket closed") })
	hub.Subscribe("chat-1", func(context.Context, Event) error { panic("boom") })
	block := make(chan struct{})
	defer close(block)
	hub.Subscribe("chat-1", func(context.Context, Event) error { <-block; return nil })
	hub.Subscribe("chat-1", good.observe)

	require.NoError(t, hub.Open("chat-1"))
	hub.Publish(Event{ChatID: "chat-1", Type: EventTaskStarted})
	hub.Publish(Event{ChatID: "chat-1", Type: EventTaskFinished})
	hub.Close("chat-1")

	assert.Equal(t, []EventType{EventTaskStarted, EventTaskFinished}, good.types())
	assert.Equal(t, uint64(6), hub.FailedDeliveries())
}

func TestHub_DropsWhenQueueFull(t *testing.T) {
	hub := NewHub(WithBufferSize(1), WithObserverTimeout(time.Second))
	release := make(chan struct{})
	hub.Subscribe("chat-1", func(ctx context.Context, _ Event) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})

	require.NoError(t, hub.Open("chat-1"))
	delivered := 0
	for i := 0; i < 5; i++ {
		if hub.Publish(Event{ChatID: "chat-1", Type: EventSubtaskStarted}) {
			delivered++
		}
	}
	close(release)
	hub.Close("chat-1")

	assert.Less(t, delivered, 5)
	assert.Greater(t, hub.DroppedCount(), uint64(0))
}

func TestHub_SubscribeWhilePublishWaits(t *testing.T) {
	hub := NewHub(WithBufferSize(1), WithObserverTimeout(time.Second))
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	hub.Subscribe("chat-1", func(ctx context.Context, _ Event) error {
		select {
		case started <- struct{}{}:
		default:
		}
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})

	require.NoError(t, hub.Open("chat-1"))
	require.True(t, hub.Publish(Event{ChatID: "chat-1", Type: EventSubtaskStarted}))
	<-started
	require.True(t, hub.Publish(Event{ChatID: "chat-1", Type: EventSubtaskStarted}))

	// The queue is full, so this publish waits out publishTimeout.
	published := make(chan struct{})
	go func() {
		defer close(published)
		hub.Publish(Event{ChatID: "chat-1", Type: EventSubtaskFinished})
	}()
	time.Sleep(publishTimeout / 5)

	subscribed := make(chan struct{})
	go func() {
		defer close(subscribed)
		hub.Subscribe("chat-1", func(context.Context, Event) error { return nil })
	}()
	select {
	case <-subscribed:
	case <-time.After(publishTimeout / 2):
		t.Fatal("Subscribe blocked behind a waiting Publish")
	}

	close(release)
	<-published
	hub.Close("chat-1")
}

func TestBroadcaster_UpsertsSingleLiveSnapshot(t *testing.T) {
	db := setupStore(t, "chat-1")
	hub := NewHub()
	c := &collector{}
	hub.Subscribe("chat-1", c.observe)
	require.NoError(t, hub.Open("chat-1"))

	b := NewBroadcaster(db, hub, nil)
	ev := Event{Type: EventTaskStarted, ChatID: "chat-1", RunID: "run-1", Tasks: CloneTasks(sampleTasks()), Thought: "Working on task 1"}

	first := b.Emit(context.Background(), ev)
	assert.Equal(t, 50, first.Percent)
	assert.False(t, first.Timestamp.IsZero())
	b.Emit(context.Background(), ev)
	b.Emit(context.Background(), Event{Type: EventRunCompleted, ChatID: "chat-1", RunID: "run-1", Tasks: CloneTasks(sampleTasks())})
	hub.Close("chat-1")

	msgs, err := db.ListMessages("chat-1", 0)
	require.NoError(t, err)
	live := 0
	for _, m := range msgs {
		if m.Variant == models.VariantTaskSnapshot && m.LiveKey == "run-1" {
			live++
		}
	}
	assert.Equal(t, 1, live)

	chat, err := db.GetChat("chat-1")
	require.NoError(t, err)
	assert.Equal(t, 1, chat.MessageCount)

	latest, err := db.LatestSnapshot("chat-1")
	require.NoError(t, err)
	snap, err := SnapshotFromMessage(latest)
	require.NoError(t, err)
	assert.Equal(t, EventRunCompleted, snap.Type)
	assert.True(t, snap.Final())
	assert.Len(t, snap.Tasks, 2)
	assert.Contains(t, latest.Content, "Progress: 50%")
	assert.Contains(t, latest.Content, "[x] 1. first")

	assert.Len(t, c.types(), 3)
}

// failingStore always fails to persist.
type failingStore struct{}

func (failingStore) UpsertLiveSnapshot(string, string, string, json.RawMessage) (*models.Message, error) {
	return nil, errors.New("database is locked")
}

func TestBroadcaster_PersistFailureStillPublishes(t *testing.T) {
	hub := NewHub()
	c := &collector{}
	hub.Subscribe("chat-1", c.observe)
	require.NoError(t, hub.Open("chat-1"))

	b := NewBroadcaster(failingStore{}, hub, nil)
	b.Emit(context.Background(), Event{Type: EventTaskStarted, ChatID: "chat-1", RunID: "run-1"})
	hub.Close("chat-1")

	assert.Equal(t, []EventType{EventTaskStarted}, c.types())
}

func TestSnapshotFromMessage(t *testing.T) {
	snap, err := SnapshotFromMessage(nil)
	require.NoError(t, err)
	assert.Nil(t, snap)

	_, err = SnapshotFromMessage(&models.Message{ID: "m1", Variant: models.VariantText})
	assert.Error(t, err)

	_, err = SnapshotFromMessage(&models.Message{ID: "m2", Variant: models.VariantTaskSnapshot, Payload: json.RawMessage(`{`)})
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	tasks := CloneTasks(sampleTasks())
	tasks[1].Status = models.TaskStatusFailed
	tasks[1].Reason = models.StopReason

	out := Render(Event{Tasks: tasks, Percent: 50, Thought: "Stopping"})
	assert.Contains(t, out, "Stopping")
	assert.Contains(t, out, "[!] 2. second (stopped)")
	assert.Contains(t, out, "[x] read_file")
	assert.Contains(t, out, "[ ] run_command")
}
