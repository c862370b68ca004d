package orchestrator

import (
	"sync"
)

// StopController carries the cooperative stop request of one run. The run
// loop checks it only at task and subtask boundaries.
type StopController struct {
	mu      sync.RWMutex
	stopped bool
	done    chan struct{}
}

// NewStopController creates a StopController.
func NewStopController() *StopController {
	return &StopController{done: make(chan struct{})}
}

// Stop requests a stop. It reports whether this call was the first request.
func (s *StopController) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.stopped = true
	close(s.done)
	return true
}

// IsStopped returns whether a stop has been requested.
func (s *StopController) IsStopped() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopped
}

// Done is closed when a stop is requested.
func (s *StopController) Done() <-chan struct{} {
	return s.done
}
