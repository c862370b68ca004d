package orchestrator

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSignalPollInterval is how often the signal file is checked when
// the file watcher misses an event or could not be started.
const DefaultSignalPollInterval = 500 * time.Millisecond

// SignalsDir returns the directory holding stop signal files under dataDir.
func SignalsDir(dataDir string) string {
	return filepath.Join(dataDir, "signals")
}

// StopSignalPath returns the stop signal file of a chat.
func StopSignalPath(dataDir, chatID string) string {
	return filepath.Join(SignalsDir(dataDir), "stop-"+sanitizeChatID(chatID))
}

// WriteStopSignal asks the process running chatID's run to stop. It is
// used from a different process than the one running the chat.
func WriteStopSignal(dataDir, chatID string) error {
	if err := os.MkdirAll(SignalsDir(dataDir), 0755); err != nil {
		return err
	}
	return os.WriteFile(StopSignalPath(dataDir, chatID), []byte(time.Now().Format(time.RFC3339)), 0644)
}

// ClearStopSignal removes a chat's stop signal file, if any.
func ClearStopSignal(dataDir, chatID string) error {
	err := os.Remove(StopSignalPath(dataDir, chatID))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// SignalWatcher calls onStop once when the chat's stop signal file appears.
type SignalWatcher struct {
	path   string
	onStop func()

	watcher *fsnotify.Watcher
	once    sync.Once
	done    chan struct{}
	wg      sync.WaitGroup
}

// WatchStopSignal starts watching for chatID's stop signal under dataDir.
// If fsnotify cannot be used, the watcher relies on polling alone.
func WatchStopSignal(dataDir, chatID string, pollInterval time.Duration, onStop func()) (*SignalWatcher, error) {
	dir := SignalsDir(dataDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	if pollInterval <= 0 {
		pollInterval = DefaultSignalPollInterval
	}

	w := &SignalWatcher{
		path:   StopSignalPath(dataDir, chatID),
		onStop: onStop,
		done:   make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		pkgLog().Debug("fsnotify unavailable, polling for stop signal", "error", err)
	} else if err := watcher.Add(dir); err != nil {
		pkgLog().Debug("cannot watch signals dir, polling for stop signal", "dir", dir, "error", err)
		watcher.Close()
	} else {
		w.watcher = watcher
		w.wg.Add(1)
		go w.watchEvents()
	}

	w.wg.Add(1)
	go w.poll(pollInterval)
	return w, nil
}

func (w *SignalWatcher) watchEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name == w.path && (event.Op&fsnotify.Create != 0 || event.Op&fsnotify.Write != 0) {
				w.fire()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Keep watching; polling covers anything missed.
			pkgLog().Debug("signal watcher error", "error", err)
		}
	}
}

func (w *SignalWatcher) poll(interval time.Duration) {
	defer w.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			if _, err := os.Stat(w.path); err == nil {
				w.fire()
			}
		}
	}
}

func (w *SignalWatcher) fire() {
	w.once.Do(func() {
		pkgLog().Info("stop signal received", "path", w.path)
		if w.onStop != nil {
			w.onStop()
		}
	})
}

// Close stops watching. It is safe to call more than once.
func (w *SignalWatcher) Close() {
	select {
	case <-w.done:
		return
	default:
	}
	close(w.done)
	if w.watcher != nil {
		w.watcher.Close()
	}
	w.wg.Wait()
}

// sanitizeChatID keeps chat IDs from escaping the signals directory.
func sanitizeChatID(chatID string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, chatID)
}
