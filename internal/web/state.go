package web

import (
	"sync"
	"time"

	"mbtalerts/internal/reconcile"
)

// State records the outcome of sync passes. It is safe for concurrent use.
type State struct {
	mu   sync.RWMutex
	snap Snapshot
}

// Snapshot is the JSON shape served by /api/status.
type Snapshot struct {
	Runs        int               `json:"runs"`
	Failures    int               `json:"failures"`
	LastRun     time.Time         `json:"last_run,omitzero"`
	LastSuccess time.Time         `json:"last_success,omitzero"`
	DurationMs  int64             `json:"duration_ms"`
	Result      *reconcile.Result `json:"result,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// Record stores the outcome of a pass that started at start.
func (s *State) Record(start time.Time, res reconcile.Result, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap.Runs++
	s.snap.LastRun = start
	s.snap.DurationMs = time.Since(start).Milliseconds()
	s.snap.Result = &res
	if err != nil {
		s.snap.Failures++
		s.snap.Error = err.Error()
		return
	}
	s.snap.Error = ""
	s.snap.LastSuccess = start
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.snap
	if out.Result != nil {
		r := *out.Result
		out.Result = &r
	}
	return out
}
