package domain

import (
	"sync"
	"time"
)

// Session holds per-connection metadata that outlives individual messages.
type Session struct {
	ID           string
	RemoteAddr   string
	CreatedAt    time.Time
	LastActiveAt time.Time
	messages     int64
	mu           sync.RWMutex
}

// NewSession creates a session for a freshly upgraded connection.
func NewSession(id, remoteAddr string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		RemoteAddr:   remoteAddr,
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// UpdateActivity records an inbound message.
func (s *Session) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActiveAt = time.Now()
	s.messages++
}

// Messages returns the number of inbound messages seen.
func (s *Session) Messages() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.messages
}

// Duration returns how long the session has been open.
func (s *Session) Duration() time.Duration {
	return time.Since(s.CreatedAt)
}
