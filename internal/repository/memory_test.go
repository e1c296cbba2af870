package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySlotCache(t *testing.T) {
	cache := NewMemorySlotCache(time.Minute)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	_, found, err := cache.Get(ctx, day)
	require.NoError(t, err)
	assert.False(t, found)

	input := []string{"10:00"}
	require.NoError(t, cache.Set(ctx, day, input))
	input[0] = "mutated"

	times, found, err := cache.Get(ctx, day)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"10:00"}, times)

	now = now.Add(59 * time.Second)
	_, found, _ = cache.Get(ctx, day)
	assert.True(t, found)

	now = now.Add(time.Second)
	_, found, _ = cache.Get(ctx, day)
	assert.False(t, found, "entry must expire after ttl")

	require.NoError(t, cache.Set(ctx, day, nil))
	times, found, _ = cache.Get(ctx, day)
	assert.True(t, found)
	assert.Empty(t, times)

	require.NoError(t, cache.Invalidate(ctx, day))
	_, found, _ = cache.Get(ctx, day)
	assert.False(t, found)
}
