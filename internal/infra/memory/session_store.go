package memory

import (
	"sync"

	"github.com/andyyulianto77/kuis3/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository,
// keyed by page path.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) GetOrCreate(path string, create func() *app.Session) *app.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[path]; ok {
		return session
	}
	session := create()
	s.sessions[path] = session
	return session
}

func (s *SessionStore) Get(path string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[path]
	return session, ok
}

func (s *SessionStore) DeleteIfIdle(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[path]
	if !ok {
		return
	}
	if session.IsIdle() {
		delete(s.sessions, path)
	}
}
