package cleaner

import (
	"context"
	"sync"

	"github.com/fenilsonani/macsweep/internal/progress"
)

// SessionState is a snapshot of a Session
type SessionState struct {
	Phase     progress.Phase
	Fraction  float64
	Status    string
	Processed int
	Total     int
	Cancelled bool
}

// Session is the state of the scan or clean run in progress.
// It is written by the coordinator and safe to read from any goroutine.
type Session struct {
	mu        sync.RWMutex
	state     SessionState
	interrupt context.CancelFunc
}

// Snapshot returns the current state
func (s *Session) Snapshot() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Cancelled reports whether Cancel was called during the current run
func (s *Session) Cancelled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Cancelled
}

// Cancel flags the current run as cancelled and interrupts any blocking
// work the run registered. It reports whether a run was active.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	active := s.state.Phase == progress.PhaseScanning || s.state.Phase == progress.PhaseCleaning
	if active {
		s.state.Cancelled = true
	}
	interrupt := s.interrupt
	s.mu.Unlock()

	if active && interrupt != nil {
		interrupt()
	}
	return active
}

// begin resets the session for a new run of total steps
func (s *Session) begin(phase progress.Phase, total int, status string, interrupt context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = SessionState{Phase: phase, Total: total, Status: status}
	s.interrupt = interrupt
}

// advance records one finished step. Fraction never decreases within a run.
func (s *Session) advance(status string) SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Processed++
	s.state.Status = status
	if s.state.Total > 0 {
		f := float64(s.state.Processed) / float64(s.state.Total)
		if f > 1 {
			f = 1
		}
		if f > s.state.Fraction {
			s.state.Fraction = f
		}
	}
	return s.state
}

// setStatus changes the status line without advancing
func (s *Session) setStatus(status string) {
	s.mu.Lock()
	s.state.Status = status
	s.mu.Unlock()
}

// finish ends the run in phase
func (s *Session) finish(phase progress.Phase, status string) SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Phase = phase
	s.state.Status = status
	if phase == progress.PhaseComplete {
		s.state.Fraction = 1
	}
	s.interrupt = nil
	return s.state
}
