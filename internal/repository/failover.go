package repository

import (
	"context"
	"sync/atomic"
	"time"

	"pretgo/internal/domain"
	"pretgo/internal/models"

	"github.com/rs/zerolog"
)

// recoveryDelay is how long the primary is skipped after a failure.
const recoveryDelay = time.Minute

// FailoverSessionStore uses primary until it fails, then serves from
// fallback and retries primary once recoveryDelay has passed.
type FailoverSessionStore struct {
	primary   domain.SessionStore
	fallback  domain.SessionStore
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
	now       func() time.Time
}

func NewFailoverSessionStore(primary, fallback domain.SessionStore, logger *zerolog.Logger) *FailoverSessionStore {
	return &FailoverSessionStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

// usePrimary reports whether the next call should go to primary.
func (r *FailoverSessionStore) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	return r.now().Sub(time.Unix(0, r.lastCheck.Load())) > recoveryDelay
}

func (r *FailoverSessionStore) observe(err error) {
	if err == nil {
		if r.isDown.CompareAndSwap(true, false) {
			r.logger.Info().Msg("Primary session store recovered")
		}
		return
	}
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("Primary session store failed, falling back to memory")
	}
	r.lastCheck.Store(r.now().UnixNano())
}

func (r *FailoverSessionStore) GetSession(ctx context.Context, token string) (*models.AdminSession, error) {
	if r.usePrimary() {
		s, err := r.primary.GetSession(ctx, token)
		r.observe(err)
		if err == nil {
			return s, nil
		}
	}
	return r.fallback.GetSession(ctx, token)
}

func (r *FailoverSessionStore) SaveSession(ctx context.Context, s *models.AdminSession) error {
	if r.usePrimary() {
		err := r.primary.SaveSession(ctx, s)
		r.observe(err)
		if err == nil {
			return nil
		}
	}
	return r.fallback.SaveSession(ctx, s)
}

func (r *FailoverSessionStore) DeleteSession(ctx context.Context, token string) error {
	// Logout must not leave a copy behind in either store.
	_ = r.fallback.DeleteSession(ctx, token)
	if r.usePrimary() {
		err := r.primary.DeleteSession(ctx, token)
		r.observe(err)
	}
	return nil
}

func (r *FailoverSessionStore) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		r.observe(err)
		if err == nil {
			return allowed, nil
		}
	}
	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
