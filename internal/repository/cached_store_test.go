package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	times []string
	err   error
	calls int
}

func (s *countingStore) BookedTimes(_ context.Context, _ time.Time) ([]string, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return append([]string{}, s.times...), nil
}

func TestCachedBookingStore_ReadThrough(t *testing.T) {
	store := &countingStore{times: []string{"10:00"}}
	cached := NewCachedBookingStore(store, NewMemorySlotCache(time.Minute), nil)
	ctx := context.Background()

	times, err := cached.BookedTimes(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00"}, times)

	times, err = cached.BookedTimes(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00"}, times)
	assert.Equal(t, 1, store.calls, "second read must be served from cache")

	store.times = []string{"10:00", "12:00"}
	cached.Invalidate(ctx, day)

	times, err = cached.BookedTimes(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00", "12:00"}, times)
	assert.Equal(t, 2, store.calls)
}

func TestCachedBookingStore_StoreErrorNotCached(t *testing.T) {
	storeErr := errors.New("disk I/O error")
	store := &countingStore{err: storeErr}
	cached := NewCachedBookingStore(store, NewMemorySlotCache(time.Minute), nil)
	ctx := context.Background()

	_, err := cached.BookedTimes(ctx, day)
	assert.ErrorIs(t, err, storeErr)

	store.err = nil
	store.times = []string{"08:00"}
	times, err := cached.BookedTimes(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, []string{"08:00"}, times)
	assert.Equal(t, 2, store.calls)
}

func TestCachedBookingStore_CacheErrorsBypassed(t *testing.T) {
	store := &countingStore{times: []string{"16:00"}}
	cache := new(mockCache)
	cache.On("Get", mock.Anything, day).Return(nil, false, errors.New("redis down"))
	cache.On("Set", mock.Anything, day, []string{"16:00"}).Return(errors.New("redis down"))
	cache.On("Invalidate", mock.Anything, day).Return(errors.New("redis down"))

	cached := NewCachedBookingStore(store, cache, nil)
	ctx := context.Background()

	times, err := cached.BookedTimes(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, []string{"16:00"}, times)

	assert.NotPanics(t, func() { cached.Invalidate(ctx, day) })
	cache.AssertExpectations(t)
}

type hookStore struct {
	countingStore
	during func()
}

func (s *hookStore) BookedTimes(ctx context.Context, date time.Time) ([]string, error) {
	times, err := s.countingStore.BookedTimes(ctx, date)
	if s.during != nil {
		s.during()
	}
	return times, err
}

func TestCachedBookingStore_InvalidateDuringRead(t *testing.T) {
	memory := NewMemorySlotCache(time.Minute)
	store := &hookStore{countingStore: countingStore{times: []string{"10:00"}}}
	cached := NewCachedBookingStore(store, memory, nil)
	ctx := context.Background()

	// a booking for 12:00 commits after the read but before the write-back
	store.during = func() {
		store.times = []string{"10:00", "12:00"}
		cached.Invalidate(ctx, day)
	}

	times, err := cached.BookedTimes(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00"}, times)

	_, found, err := memory.Get(ctx, day)
	require.NoError(t, err)
	assert.False(t, found, "pre-booking times must not be written back")

	store.during = nil
	times, err = cached.BookedTimes(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00", "12:00"}, times)

	_, found, err = memory.Get(ctx, day)
	require.NoError(t, err)
	assert.True(t, found)
}
