package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, date time.Time) ([]string, bool, error) {
	args := m.Called(ctx, date)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]string), args.Bool(1), args.Error(2)
}

func (m *mockCache) Set(ctx context.Context, date time.Time, times []string) error {
	return m.Called(ctx, date, times).Error(0)
}

func (m *mockCache) Invalidate(ctx context.Context, date time.Time) error {
	return m.Called(ctx, date).Error(0)
}

func TestFailoverSlotCache(t *testing.T) {
	primary := new(mockCache)
	fallback := new(mockCache)
	logger := zerolog.New(io.Discard)
	cache := NewFailoverSlotCache(primary, fallback, &logger)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary.On("Get", ctx, day).Return([]string{"10:00"}, true, nil).Once()

		times, found, err := cache.Get(ctx, day)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, []string{"10:00"}, times)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		primary.On("Get", ctx, day).Return(nil, false, errors.New("connection refused")).Once()
		fallback.On("Get", ctx, day).Return([]string{"12:00"}, true, nil).Once()

		times, found, err := cache.Get(ctx, day)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, []string{"12:00"}, times)
		assert.True(t, cache.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("StaysOnFallbackWhileDown", func(t *testing.T) {
		fallback.On("Set", ctx, day, []string{"08:00"}).Return(nil).Once()

		require.NoError(t, cache.Set(ctx, day, []string{"08:00"}))
		primary.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything)
		fallback.AssertExpectations(t)
	})

	t.Run("InvalidateWhileDownIsDeferred", func(t *testing.T) {
		fallback.On("Invalidate", ctx, day).Return(nil).Once()
		primary.On("Invalidate", ctx, day).Return(errors.New("connection refused")).Once()

		require.NoError(t, cache.Invalidate(ctx, day))
		assert.True(t, cache.isDown.Load())
		assert.Contains(t, cache.stale, day)
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("RecoveryClearsDeferredDatesFirst", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		primary.On("Invalidate", ctx, day).Return(nil).Once()
		primary.On("Get", ctx, day).Return([]string{}, false, nil).Once()

		_, found, err := cache.Get(ctx, day)
		require.NoError(t, err)
		assert.False(t, found)
		assert.False(t, cache.isDown.Load())
		assert.Empty(t, cache.stale)
		primary.AssertExpectations(t)
	})

	t.Run("InvalidateBoth", func(t *testing.T) {
		fallback.On("Invalidate", ctx, day).Return(nil).Once()
		primary.On("Invalidate", ctx, day).Return(nil).Once()

		require.NoError(t, cache.Invalidate(ctx, day))
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})
}

func TestFailoverSlotCache_RedisOutage(t *testing.T) {
	s, client := newMiniredis(t)
	memory := NewMemorySlotCache(time.Minute)
	cache := NewFailoverSlotCache(NewRedisSlotCache(client, time.Minute), memory, nil)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, day, []string{"10:00"}))
	assert.True(t, s.Exists("slots:booked:2024-06-10"))

	s.Close()

	require.NoError(t, cache.Set(ctx, day, []string{"14:00"}))
	times, found, err := cache.Get(ctx, day)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"14:00"}, times)
}

func TestFailoverSlotCache_BookingDuringOutage(t *testing.T) {
	s, client := newMiniredis(t)
	cache := NewFailoverSlotCache(NewRedisSlotCache(client, 5*time.Minute), NewMemorySlotCache(time.Minute), nil)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, day, []string{"10:00"}))

	s.Close()
	_, found, err := cache.Get(ctx, day)
	require.NoError(t, err)
	assert.False(t, found)
	assert.True(t, cache.isDown.Load())

	// a booking lands on the date while redis is unreachable
	require.NoError(t, cache.Invalidate(ctx, day))

	require.NoError(t, s.Restart())
	assert.True(t, s.Exists("slots:booked:2024-06-10"), "redis kept the old entry")

	now = now.Add(2 * time.Minute)
	_, found, err = cache.Get(ctx, day)
	require.NoError(t, err)
	assert.False(t, found, "pre-outage entry must not be served")
	assert.False(t, cache.isDown.Load())
	assert.False(t, s.Exists("slots:booked:2024-06-10"))
}
