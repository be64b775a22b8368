package redis

import (
	"context"
	"sync"
	"time"

	"github.com/andyyulianto77/kuis3/internal/app"
	"github.com/redis/go-redis/v9"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - It still keeps a local in-memory map of sessions: the state machine
//     itself is in-process, Redis marks session liveness per page path.
//   - Durable state lives in the SnapshotStore; the liveness marker only
//     makes active pages observable across instances.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
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
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(path), "1", s.ttl).Err()
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
		_ = s.client.Del(context.Background(), s.key(path)).Err()
	}
}

func (s *SessionStore) key(path string) string {
	return "kuis:session:" + path
}
