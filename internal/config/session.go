package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fenilsonani/macsweep/internal/platform"
	"github.com/fenilsonani/macsweep/internal/scanner"
	"github.com/google/uuid"
)

// ErrNoSessions is returned by GetLatest when nothing has been saved
var ErrNoSessions = errors.New("no sessions found")

// Session is a saved scan inventory with its selection, so a later
// clean can run without rescanning
type Session struct {
	ID        string             `json:"id"`
	Timestamp time.Time          `json:"timestamp"`
	Inventory *scanner.Inventory `json:"inventory"`
	Notes     string             `json:"notes,omitempty"`
}

// TotalSize returns the size of the selected items
func (s *Session) TotalSize() int64 {
	if s.Inventory == nil {
		return 0
	}
	var total int64
	for _, item := range s.Inventory.Selected() {
		total += item.Size
	}
	return total
}

// SessionManager stores sessions as JSON files in one directory
type SessionManager struct {
	sessionsDir string
}

// NewSessionManager uses ~/.config/macsweep/sessions
func NewSessionManager() (*SessionManager, error) {
	configDir, err := platform.GetUserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	return NewSessionManagerAt(filepath.Join(configDir, "sessions"))
}

// NewSessionManagerAt stores sessions in dir
func NewSessionManagerAt(dir string) (*SessionManager, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}
	return &SessionManager{sessionsDir: dir}, nil
}

// Save saves a session to disk
func (sm *SessionManager) Save(session *Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.Timestamp.IsZero() {
		session.Timestamp = time.Now()
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	// Inventories list private file names
	filename := filepath.Join(sm.sessionsDir, session.ID+".json")
	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}

	return nil
}

// Load loads a session from disk by ID
func (sm *SessionManager) Load(id string) (*Session, error) {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return nil, fmt.Errorf("invalid session id %q", id)
	}

	data, err := os.ReadFile(filepath.Join(sm.sessionsDir, id+".json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &session, nil
}

// List returns all saved sessions, newest first
func (sm *SessionManager) List() ([]*Session, error) {
	entries, err := os.ReadDir(sm.sessionsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var sessions []*Session
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		session, err := sm.Load(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			// Skip invalid sessions
			continue
		}
		sessions = append(sessions, session)
	}

	slices.SortFunc(sessions, func(a, b *Session) int {
		return b.Timestamp.Compare(a.Timestamp)
	})

	return sessions, nil
}

// Delete deletes a session by ID
func (sm *SessionManager) Delete(id string) error {
	if err := os.Remove(filepath.Join(sm.sessionsDir, id+".json")); err != nil {
		return fmt.Errorf("failed to delete session file: %w", err)
	}
	return nil
}

// GetLatest returns the most recent session
func (sm *SessionManager) GetLatest() (*Session, error) {
	sessions, err := sm.List()
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, ErrNoSessions
	}
	return sessions[0], nil
}

// CleanOldSessions removes sessions older than specified days
func (sm *SessionManager) CleanOldSessions(days int) (int, error) {
	sessions, err := sm.List()
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	removed := 0
	for _, session := range sessions {
		if session.Timestamp.Before(cutoff) {
			if err := sm.Delete(session.ID); err != nil {
				continue
			}
			removed++
		}
	}

	return removed, nil
}

// Dir returns the sessions directory path
func (sm *SessionManager) Dir() string {
	return sm.sessionsDir
}
