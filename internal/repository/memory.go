package repository

import (
	"context"
	"sync"
	"time"

	"pretgo/internal/models"
)

// MemorySessionStore keeps sessions in process. Sessions are lost on restart.
type MemorySessionStore struct {
	mu         sync.Mutex
	sessions   map[string]models.AdminSession
	rateLimits map[string]*rateLimitEntry
	now        func() time.Time
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions:   make(map[string]models.AdminSession),
		rateLimits: make(map[string]*rateLimitEntry),
		now:        time.Now,
	}
}

func (r *MemorySessionStore) GetSession(_ context.Context, token string) (*models.AdminSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[token]
	if !ok {
		return nil, nil
	}
	if s.Expired(r.now()) {
		delete(r.sessions, token)
		return nil, nil
	}
	return &s, nil
}

func (r *MemorySessionStore) SaveSession(_ context.Context, s *models.AdminSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for token, existing := range r.sessions {
		if existing.Expired(now) {
			delete(r.sessions, token)
		}
	}
	r.sessions[s.Token] = *s
	return nil
}

func (r *MemorySessionStore) DeleteSession(_ context.Context, token string) error {
	r.mu.Lock()
	delete(r.sessions, token)
	r.mu.Unlock()
	return nil
}

func (r *MemorySessionStore) CheckRateLimit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	entry, ok := r.rateLimits[key]
	if !ok || !now.Before(entry.expiresAt) {
		entry = &rateLimitEntry{expiresAt: now.Add(window)}
		r.rateLimits[key] = entry
	}
	entry.count++
	return entry.count <= limit, nil
}
