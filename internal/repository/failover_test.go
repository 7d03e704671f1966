package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"pretgo/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetSession(ctx context.Context, token string) (*models.AdminSession, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AdminSession), args.Error(1)
}

func (m *mockStore) SaveSession(ctx context.Context, s *models.AdminSession) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockStore) DeleteSession(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func (m *mockStore) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestFailoverSessionStore(t *testing.T) {
	primary := new(mockStore)
	fallback := new(mockStore)
	logger := zerolog.New(io.Discard)
	store := NewFailoverSessionStore(primary, fallback, &logger)
	ctx := context.Background()

	markDown := func(ago time.Duration) {
		store.isDown.Store(true)
		store.lastCheck.Store(time.Now().Add(-ago).UnixNano())
	}

	t.Run("PrimarySuccess", func(t *testing.T) {
		session := &models.AdminSession{Token: "a"}
		primary.On("GetSession", ctx, "a").Return(session, nil).Once()

		got, err := store.GetSession(ctx, "a")
		assert.NoError(t, err)
		assert.Equal(t, session, got)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		session := &models.AdminSession{Token: "b"}
		primary.On("GetSession", ctx, "b").Return(nil, errors.New("fail")).Once()
		fallback.On("GetSession", ctx, "b").Return(session, nil).Once()

		got, err := store.GetSession(ctx, "b")
		assert.NoError(t, err)
		assert.Equal(t, session, got)
		assert.True(t, store.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("SkipsPrimaryWhileDown", func(t *testing.T) {
		markDown(time.Second)
		session := &models.AdminSession{Token: "c"}
		fallback.On("SaveSession", ctx, session).Return(nil).Once()
		fallback.On("CheckRateLimit", ctx, "login", 5, time.Minute).Return(true, nil).Once()

		assert.NoError(t, store.SaveSession(ctx, session))
		allowed, err := store.CheckRateLimit(ctx, "login", 5, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		fallback.AssertExpectations(t)
		primary.AssertNotCalled(t, "SaveSession", ctx, session)
	})

	t.Run("Recovery", func(t *testing.T) {
		markDown(2 * time.Minute)
		session := &models.AdminSession{Token: "d"}
		primary.On("GetSession", ctx, "d").Return(session, nil).Once()

		got, err := store.GetSession(ctx, "d")
		assert.NoError(t, err)
		assert.Equal(t, session, got)
		assert.False(t, store.isDown.Load())
	})

	t.Run("RecoveryFails", func(t *testing.T) {
		markDown(2 * time.Minute)
		primary.On("GetSession", ctx, "e").Return(nil, errors.New("still down")).Once()
		fallback.On("GetSession", ctx, "e").Return(nil, nil).Once()

		got, err := store.GetSession(ctx, "e")
		assert.NoError(t, err)
		assert.Nil(t, got)
		assert.True(t, store.isDown.Load())
		assert.False(t, store.usePrimary())
	})

	t.Run("SaveFailover", func(t *testing.T) {
		store.isDown.Store(false)
		session := &models.AdminSession{Token: "f"}
		primary.On("SaveSession", ctx, session).Return(errors.New("fail")).Once()
		fallback.On("SaveSession", ctx, session).Return(nil).Once()

		assert.NoError(t, store.SaveSession(ctx, session))
		assert.True(t, store.isDown.Load())
	})

	t.Run("RateLimitFailover", func(t *testing.T) {
		store.isDown.Store(false)
		primary.On("CheckRateLimit", ctx, "login:x", 10, time.Minute).Return(false, errors.New("fail")).Once()
		fallback.On("CheckRateLimit", ctx, "login:x", 10, time.Minute).Return(true, nil).Once()

		allowed, err := store.CheckRateLimit(ctx, "login:x", 10, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("DeleteClearsBoth", func(t *testing.T) {
		store.isDown.Store(false)
		primary.On("DeleteSession", ctx, "g").Return(nil).Once()
		fallback.On("DeleteSession", ctx, "g").Return(nil).Once()

		assert.NoError(t, store.DeleteSession(ctx, "g"))
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})
}
