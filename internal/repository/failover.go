package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"detailing/internal/domain"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverSlotCache uses the primary cache until it errors, then serves from
// the fallback and retries the primary once per recoveryInterval.
type FailoverSlotCache struct {
	primary   domain.SlotCache
	fallback  domain.SlotCache
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
	now       func() time.Time

	// dates invalidated while the primary could not be reached; cleared there on recovery
	mu    sync.Mutex
	stale map[time.Time]struct{}
}

func NewFailoverSlotCache(primary, fallback domain.SlotCache, logger *zerolog.Logger) *FailoverSlotCache {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FailoverSlotCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
		stale:    make(map[time.Time]struct{}),
	}
}

func (r *FailoverSlotCache) markDown(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("Primary slot cache failed, falling back to memory")
	}
	r.lastCheck.Store(r.now().UnixNano())
}

// usePrimary reports whether the primary should be tried for this call.
func (r *FailoverSlotCache) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	// Try to recover after 1 minute
	return r.now().Sub(time.Unix(0, r.lastCheck.Load())) > recoveryInterval
}

func (r *FailoverSlotCache) recovered() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("Primary slot cache recovered")
	}
}

// primaryReady reports whether this call may use the primary. Dates invalidated
// during an outage are cleared there first, so a stale entry is never served.
func (r *FailoverSlotCache) primaryReady(ctx context.Context) bool {
	if !r.usePrimary() {
		return false
	}
	if err := r.flushStale(ctx); err != nil {
		r.markDown(err)
		return false
	}
	return true
}

func (r *FailoverSlotCache) rememberStale(date time.Time) {
	r.mu.Lock()
	r.stale[dayKey(date)] = struct{}{}
	r.mu.Unlock()
}

func (r *FailoverSlotCache) flushStale(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for date := range r.stale {
		if err := r.primary.Invalidate(ctx, date); err != nil {
			return err
		}
		delete(r.stale, date)
	}
	return nil
}

func dayKey(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, date.Location())
}

func (r *FailoverSlotCache) Get(ctx context.Context, date time.Time) ([]string, bool, error) {
	if r.primaryReady(ctx) {
		times, found, err := r.primary.Get(ctx, date)
		if err == nil {
			r.recovered()
			return times, found, nil
		}
		r.markDown(err)
	}
	return r.fallback.Get(ctx, date)
}

func (r *FailoverSlotCache) Set(ctx context.Context, date time.Time, times []string) error {
	if r.primaryReady(ctx) {
		err := r.primary.Set(ctx, date, times)
		if err == nil {
			r.recovered()
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.Set(ctx, date, times)
}

// Invalidate clears the date in both caches. The primary is always tried, even
// while marked down; a date it misses is remembered and cleared on recovery.
func (r *FailoverSlotCache) Invalidate(ctx context.Context, date time.Time) error {
	fallbackErr := r.fallback.Invalidate(ctx, date)

	err := r.primary.Invalidate(ctx, date)
	switch {
	case err == nil && r.primaryReady(ctx):
		r.recovered()
	case err == nil:
		// reachable again, but the retry window decides when reads switch back
	case r.usePrimary():
		r.rememberStale(date)
		r.markDown(err)
	default:
		r.rememberStale(date)
		r.logger.Debug().Err(err).Msg("Primary slot cache still down, invalidation deferred")
	}
	return fallbackErr
}
