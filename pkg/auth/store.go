package auth

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scitran/nims-gateway/pkg/common"
	"github.com/scitran/nims-gateway/pkg/types"
)

// SessionStore records issued sessions server-side so logout can revoke a
// cookie before its JWT expiry.
type SessionStore interface {
	Save(ctx context.Context, session *types.Session) error
	Get(ctx context.Context, sessionID string) (*types.Session, error)
	Delete(ctx context.Context, sessionID string) error
}

// ----------------------------------------------------------------------------
// Redis-backed store
// ----------------------------------------------------------------------------

// RedisSessionStore implements SessionStore using Redis with per-session TTL
type RedisSessionStore struct {
	rdb *common.RedisClient
}

func NewRedisSessionStore(rdb *common.RedisClient) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb}
}

func (s *RedisSessionStore) Save(ctx context.Context, session *types.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, common.Keys.SessionState(session.ID), data, ttl).Err()
}

func (s *RedisSessionStore) Get(ctx context.Context, sessionID string) (*types.Session, error) {
	data, err := s.rdb.Get(ctx, common.Keys.SessionState(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, &types.ErrSessionNotFound{SessionID: sessionID}
	}
	if err != nil {
		return nil, err
	}

	var session types.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, common.Keys.SessionState(sessionID)).Err()
}

// ----------------------------------------------------------------------------
// In-memory store (local mode)
// ----------------------------------------------------------------------------

// MemorySessionStore implements SessionStore in process memory. Used in local
// mode; revocation does not survive a restart, matching JWT-only semantics.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*types.Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: map[string]*types.Session{}}
}

func (s *MemorySessionStore) Save(_ context.Context, session *types.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, sessionID string) (*types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok || session.Expired(time.Now()) {
		return nil, &types.ErrSessionNotFound{SessionID: sessionID}
	}
	return session, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
