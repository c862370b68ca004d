package orchestrator

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestStopSignalPath(t *testing.T) {
	tests := []struct {
		name   string
		chatID string
		want   string
	}{
		{"plain", "chat-1", "stop-chat-1"},
		{"path separators", "../../etc/passwd", "stop-______etc_passwd"},
		{"spaces", "my chat", "stop-my_chat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StopSignalPath("/data", tt.chatID)
			want := filepath.Join("/data", "signals", tt.want)
			if got != want {
				t.Errorf("StopSignalPath(%q) = %q, want %q", tt.chatID, got, want)
			}
		})
	}
}

func TestWriteAndClearStopSignal(t *testing.T) {
	dir := t.TempDir()

	if err := ClearStopSignal(dir, "chat-1"); err != nil {
		t.Errorf("clearing a missing signal should succeed: %v", err)
	}
	if err := WriteStopSignal(dir, "chat-1"); err != nil {
		t.Fatalf("WriteStopSignal failed: %v", err)
	}
	if _, err := os.Stat(StopSignalPath(dir, "chat-1")); err != nil {
		t.Errorf("signal file should exist: %v", err)
	}
	if err := ClearStopSignal(dir, "chat-1"); err != nil {
		t.Fatalf("ClearStopSignal failed: %v", err)
	}
	if _, err := os.Stat(StopSignalPath(dir, "chat-1")); !os.IsNotExist(err) {
		t.Errorf("signal file should be removed, stat err = %v", err)
	}
}

func waitForCount(t *testing.T, n *atomic.Int32, want int32) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for n.Load() < want {
		if time.Now().After(deadline) {
			t.Fatalf("onStop called %d times, want %d", n.Load(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSignalWatcher_FiresOnce(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32

	w, err := WatchStopSignal(dir, "chat-1", 10*time.Millisecond, func() { calls.Add(1) })
	if err != nil {
		t.Fatalf("WatchStopSignal failed: %v", err)
	}
	defer w.Close()

	if err := WriteStopSignal(dir, "chat-1"); err != nil {
		t.Fatalf("WriteStopSignal failed: %v", err)
	}
	waitForCount(t, &calls, 1)

	// Rewrites and further polls must not fire again.
	if err := WriteStopSignal(dir, "chat-1"); err != nil {
		t.Fatalf("WriteStopSignal failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("onStop called %d times, want 1", got)
	}
}

func TestSignalWatcher_IgnoresOtherChats(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32

	w, err := WatchStopSignal(dir, "chat-1", 10*time.Millisecond, func() { calls.Add(1) })
	if err != nil {
		t.Fatalf("WatchStopSignal failed: %v", err)
	}
	defer w.Close()

	if err := WriteStopSignal(dir, "chat-2"); err != nil {
		t.Fatalf("WriteStopSignal failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Errorf("onStop called %d times for another chat's signal", got)
	}
}

func TestSignalWatcher_ExistingSignalPicked(t *testing.T) {
	dir := t.TempDir()
	if err := WriteStopSignal(dir, "chat-1"); err != nil {
		t.Fatalf("WriteStopSignal failed: %v", err)
	}

	var calls atomic.Int32
	w, err := WatchStopSignal(dir, "chat-1", 10*time.Millisecond, func() { calls.Add(1) })
	if err != nil {
		t.Fatalf("WatchStopSignal failed: %v", err)
	}
	defer w.Close()

	waitForCount(t, &calls, 1)
}

func TestSignalWatcher_CloseTwice(t *testing.T) {
	w, err := WatchStopSignal(t.TempDir(), "chat-1", 0, nil)
	if err != nil {
		t.Fatalf("WatchStopSignal failed: %v", err)
	}
	w.Close()
	w.Close()
}
