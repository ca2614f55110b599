// Package lifecycle tracks process state reported by /health.
package lifecycle

import (
	"sync/atomic"
	"time"
)

// State is the process lifecycle: when it started and whether it is draining.
type State struct {
	startedAt    time.Time
	shuttingDown atomic.Bool
}

// New returns a State started at now.
func New(now time.Time) *State {
	return &State{startedAt: now}
}

// SetShuttingDown sets the shutdown flag. Call when SIGTERM/SIGINT is received;
// /health then returns 503 shutting-down so load balancers stop routing trips here.
func (s *State) SetShuttingDown(v bool) {
	s.shuttingDown.Store(v)
}

// IsShuttingDown reports whether the process is draining.
func (s *State) IsShuttingDown() bool {
	return s.shuttingDown.Load()
}

// Uptime returns the time elapsed since start at now.
func (s *State) Uptime(now time.Time) time.Duration {
	return now.Sub(s.startedAt)
}
