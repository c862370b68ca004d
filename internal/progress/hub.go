package progress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultBufferSize is the per-chat event queue length.
	DefaultBufferSize = 100
	// DefaultObserverTimeout bounds one delivery to one observer.
	DefaultObserverTimeout = 2 * time.Second
	// publishTimeout is how long Publish waits on a full queue before
	// dropping the event.
	publishTimeout = 100 * time.Millisecond
)

// ErrStreamOpen is returned by Open when the chat already has a stream.
var ErrStreamOpen = errors.New("progress stream already open")

// Observer receives progress events for a chat. It should honour ctx; the
// hub stops waiting for it once the delivery timeout expires.
type Observer func(ctx context.Context, ev Event) error

// Hub is the registry of observer connections. Observers subscribe per chat
// at any time; events flow only while the chat's stream is open, which the
// orchestrator does for the duration of a run.
type Hub struct {
	mu        sync.RWMutex
	streams   map[string]*stream
	observers map[string]map[uint64]Observer
	nextID    uint64

	bufferSize      int
	observerTimeout time.Duration
	logger          *slog.Logger
	dropped         atomic.Uint64
	failed          atomic.Uint64
}

type stream struct {
	events chan Event
	done   chan struct{}
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithBufferSize sets the per-chat queue length.
func WithBufferSize(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.bufferSize = n
		}
	}
}

// WithObserverTimeout sets the per-observer delivery timeout.
func WithObserverTimeout(d time.Duration) HubOption {
	return func(h *Hub) {
		if d > 0 {
			h.observerTimeout = d
		}
	}
}

// WithHubLogger sets the logger.
func WithHubLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHub creates a Hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		streams:         make(map[string]*stream),
		observers:       make(map[string]map[uint64]Observer),
		bufferSize:      DefaultBufferSize,
		observerTimeout: DefaultObserverTimeout,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "progress")
	return h
}

// Subscribe registers obs for chatID and returns a function that removes it.
func (h *Hub) Subscribe(chatID string, obs Observer) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	if h.observers[chatID] == nil {
		h.observers[chatID] = make(map[uint64]Observer)
	}
	h.observers[chatID][id] = obs

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.observers[chatID], id)
			if len(h.observers[chatID]) == 0 {
				delete(h.observers, chatID)
			}
		})
	}
}

// Open starts the event stream for chatID.
func (h *Hub) Open(chatID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.streams[chatID]; ok {
		return fmt.Errorf("%w: %s", ErrStreamOpen, chatID)
	}
	s := &stream{
		events: make(chan Event, h.bufferSize),
		done:   make(chan struct{}),
	}
	h.streams[chatID] = s
	go h.dispatch(chatID, s)
	return nil
}

// Close ends the stream for chatID after queued events are delivered.
// Closing a chat without a stream is a no-op.
func (h *Hub) Close(chatID string) {
	h.mu.Lock()
	s, ok := h.streams[chatID]
	delete(h.streams, chatID)
	h.mu.Unlock()

	if !ok {
		return
	}
	close(s.events)
	<-s.done
}

// IsOpen reports whether chatID has an open stream.
func (h *Hub) IsOpen(chatID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.streams[chatID]
	return ok
}

// Publish queues ev for the observers of its chat without blocking the
// caller for long. It returns false if the event was dropped because the
// stream is closed or its queue stayed full.
//
// The send happens outside the lock so observers can subscribe while a
// publisher waits. Publish must not race Close for the same chat: the
// orchestrator calls both from the run goroutine, and Close is deferred
// past the last Publish.
func (h *Hub) Publish(ev Event) bool {
	h.mu.RLock()
	s, ok := h.streams[ev.ChatID]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	select {
	case s.events <- ev:
		return true
	default:
	}

	select {
	case s.events <- ev:
		return true
	case <-time.After(publishTimeout):
		count := h.dropped.Add(1)
		if count%10 == 1 {
			h.logger.Warn("event queue full, dropped event",
				"chat_id", ev.ChatID, "type", ev.Type, "total_dropped", count)
		}
		return false
	}
}

// DroppedCount returns the number of events dropped on a full queue.
func (h *Hub) DroppedCount() uint64 {
	return h.dropped.Load()
}

// FailedDeliveries returns the number of observer deliveries that failed
// or timed out.
func (h *Hub) FailedDeliveries() uint64 {
	return h.failed.Load()
}

func (h *Hub) dispatch(chatID string, s *stream) {
	defer close(s.done)
	for ev := range s.events {
		h.mu.RLock()
		observers := make([]Observer, 0, len(h.observers[chatID]))
		for _, obs := range h.observers[chatID] {
			observers = append(observers, obs)
		}
		h.mu.RUnlock()

		var g errgroup.Group
		for _, obs := range observers {
			g.Go(func() error {
				if err := h.deliver(obs, ev); err != nil {
					h.failed.Add(1)
					h.logger.Warn("observer delivery failed",
						"chat_id", chatID, "type", ev.Type, "error", err)
				}
				return nil
			})
		}
		_ = g.Wait()
	}
}

func (h *Hub) deliver(obs Observer, ev Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.observerTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("observer panicked: %v", r)
			}
		}()
		done <- obs(ctx, ev)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("observer timed out: %w", ctx.Err())
	}
}
