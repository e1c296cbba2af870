package repository

import (
	"context"
	"sync"
	"time"

	"detailing/internal/domain"
	"detailing/internal/metrics"
	"detailing/internal/models"

	"github.com/rs/zerolog"
)

// CachedBookingStore is a read-through cache in front of a booking store.
// Store errors are returned unchanged and never cached.
//
// Each date carries a generation bumped by Invalidate. A read that raced with
// an invalidation does not write its result back. This covers writers in this
// process only; other instances rely on the cache TTL.
type CachedBookingStore struct {
	store  domain.BookingStore
	cache  domain.SlotCache
	logger *zerolog.Logger

	mu  sync.Mutex
	gen map[string]uint64
}

func NewCachedBookingStore(store domain.BookingStore, cache domain.SlotCache, logger *zerolog.Logger) *CachedBookingStore {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &CachedBookingStore{store: store, cache: cache, logger: logger, gen: make(map[string]uint64)}
}

func (c *CachedBookingStore) BookedTimes(ctx context.Context, date time.Time) ([]string, error) {
	dateKey := date.Format(models.DateLayout)

	times, found, err := c.cache.Get(ctx, date)
	switch {
	case err != nil:
		metrics.IncSlotCache("error")
		c.logger.Warn().Err(err).Str("date", dateKey).Msg("Slot cache read failed, querying store")
	case found:
		metrics.IncSlotCache("hit")
		return times, nil
	default:
		metrics.IncSlotCache("miss")
	}

	startGen := c.generation(dateKey)
	times, err = c.store.BookedTimes(ctx, date)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen[dateKey] != startGen {
		c.logger.Debug().Str("date", dateKey).Msg("Slot cache write skipped, date changed during read")
		return times, nil
	}
	if err := c.cache.Set(ctx, date, times); err != nil {
		c.logger.Warn().Err(err).Str("date", dateKey).Msg("Slot cache write failed")
	}
	return times, nil
}

func (c *CachedBookingStore) generation(dateKey string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen[dateKey]
}

// Invalidate drops the cached entry for the date after a booking write.
func (c *CachedBookingStore) Invalidate(ctx context.Context, date time.Time) {
	dateKey := date.Format(models.DateLayout)
	c.mu.Lock()
	c.gen[dateKey]++
	c.mu.Unlock()

	if err := c.cache.Invalidate(ctx, date); err != nil {
		c.logger.Warn().Err(err).Str("date", date.Format(models.DateLayout)).Msg("Slot cache invalidation failed")
	}
}
