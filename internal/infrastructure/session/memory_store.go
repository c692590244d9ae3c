package session

import (
	"context"
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/manorfm/connectM/internal/domain"
)

// MemoryStore keeps transient auth sessions and flashes in process memory.
// It only works when a single instance serves all requests.
type MemoryStore struct {
	sessions *ttlcache.Cache[string, *domain.TransientAuthSession]
	flashes  *ttlcache.Cache[string, *domain.Flash]
	flashTTL time.Duration
}

// NewMemoryStore creates an in-memory store with automatic cleanup
func NewMemoryStore(flashTTL time.Duration) *MemoryStore {
	sessions := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, *domain.TransientAuthSession](),
	)
	flashes := ttlcache.New(
		ttlcache.WithTTL[string, *domain.Flash](flashTTL),
		ttlcache.WithDisableTouchOnHit[string, *domain.Flash](),
	)

	go sessions.Start()
	go flashes.Start()

	return &MemoryStore{
		sessions: sessions,
		flashes:  flashes,
		flashTTL: flashTTL,
	}
}

// Stop halts the cleanup goroutines
func (s *MemoryStore) Stop() {
	s.sessions.Stop()
	s.flashes.Stop()
}

func (s *MemoryStore) PutAuthSession(_ context.Context, key string, session *domain.TransientAuthSession) error {
	if key == "" {
		return fmt.Errorf("session: missing key")
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session: expires_at must be in the future")
	}

	s.sessions.Set(key, session, ttl)
	return nil
}

func (s *MemoryStore) TakeAuthSession(_ context.Context, key string) (*domain.TransientAuthSession, error) {
	item, ok := s.sessions.GetAndDelete(key)
	if !ok || item.IsExpired() {
		return nil, domain.ErrAuthSessionNotFound
	}
	return item.Value(), nil
}

func (s *MemoryStore) PutFlash(_ context.Context, sessionID string, flash *domain.Flash) error {
	s.flashes.Set(sessionID, flash, s.flashTTL)
	return nil
}

func (s *MemoryStore) TakeFlash(_ context.Context, sessionID string) (*domain.Flash, error) {
	item, ok := s.flashes.GetAndDelete(sessionID)
	if !ok || item.IsExpired() {
		return nil, nil
	}
	return item.Value(), nil
}

// Ping always succeeds
func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}
