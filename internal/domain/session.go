package domain

import (
	"errors"
	"sync"
	"time"
)

// SessionState is the lifecycle state of one connection.
type SessionState int

const (
	StateConnected SessionState = iota
	StateJoined
	StateDisconnected
)

func (s SessionState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateJoined:
		return "joined"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

var ErrSessionClosed = errors.New("session is disconnected")

// Session tracks the identity and state of a single connection.
// Connected -> Joined -> Disconnected; a rejoin stays in Joined.
type Session struct {
	ID           string
	DisplayName  string
	AuthName     string
	State        SessionState
	CreatedAt    time.Time
	LastActiveAt time.Time
	mu           sync.RWMutex
}

func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		State:        StateConnected,
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// Authenticate records the identity proven at handshake time.
func (s *Session) Authenticate(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AuthName = name
}

// AuthenticatedAs returns the handshake identity, empty if none.
func (s *Session) AuthenticatedAs() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.AuthName
}

func (s *Session) Join(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State == StateDisconnected {
		return ErrSessionClosed
	}
	s.DisplayName = name
	s.State = StateJoined
	s.LastActiveAt = time.Now()
	return nil
}

// Disconnect moves the session to its terminal state and reports the
// name it was joined under, if any.
func (s *Session) Disconnect() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wasJoined := s.State == StateJoined
	s.State = StateDisconnected
	return s.DisplayName, wasJoined
}

func (s *Session) GetDisplayName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.DisplayName
}

func (s *Session) GetState() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.State
}

func (s *Session) IsJoined() bool {
	return s.GetState() == StateJoined
}

func (s *Session) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActiveAt = time.Now()
}
