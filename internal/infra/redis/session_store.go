package redis

import (
	"context"
	"sync"
	"time"

	"career-check-service/internal/app"
	"github.com/redis/go-redis/v9"
)

// SessionStore is a Redis-aware implementation of SessionRepository.
// Notes:
//   - Sessions themselves live in a local map; they hold no state worth
//     sharing and are discarded on restart anyway.
//   - Redis holds an expiring liveness marker per session. Every lookup
//     refreshes it; once it expires the local session is dropped, so idle
//     sessions age out on every instance with the same TTL.
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

func (s *SessionStore) GetOrCreate(sessionID string, create func() *app.Session) *app.Session {
	if session, ok := s.Get(sessionID); ok {
		return session
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[sessionID]; ok {
		return session
	}
	session := create()
	s.sessions[sessionID] = session
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(sessionID), session.BankID(), s.ttl).Err()
	return session
}

func (s *SessionStore) Get(sessionID string) (*app.Session, bool) {
	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	alive, err := s.touch(context.Background(), sessionID)
	if err == nil && !alive {
		s.Delete(sessionID)
		return nil, false
	}
	// On Redis errors keep serving the local session rather than kicking the user out.
	return session, true
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	_ = s.client.Del(context.Background(), s.key(sessionID)).Err()
}

// EvictIdle drops local sessions whose marker expired or that have been idle
// for maxIdle, and reports how many were removed.
func (s *SessionStore) EvictIdle(maxIdle time.Duration) int {
	ctx := context.Background()
	cutoff := time.Now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, session := range s.sessions {
		n, err := s.client.Exists(ctx, s.key(id)).Result()
		if (err == nil && n == 0) || session.LastActive().Before(cutoff) {
			delete(s.sessions, id)
			_ = s.client.Del(ctx, s.key(id)).Err()
			evicted++
		}
	}
	return evicted
}

// touch extends the marker TTL and reports whether the marker still existed.
func (s *SessionStore) touch(ctx context.Context, sessionID string) (bool, error) {
	if s.ttl <= 0 {
		n, err := s.client.Exists(ctx, s.key(sessionID)).Result()
		return n > 0, err
	}
	return s.client.Expire(ctx, s.key(sessionID), s.ttl).Result()
}

func (s *SessionStore) key(sessionID string) string {
	return "career:session:" + sessionID
}
