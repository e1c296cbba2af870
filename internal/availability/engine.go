package availability

import (
	"context"
	"time"

	"detailing/internal/domain"
	"detailing/internal/metrics"
	"detailing/internal/models"

	"github.com/rs/zerolog"
)

type Outcome string

const (
	OutcomeClosed   Outcome = "closed"
	OutcomeLive     Outcome = "live"
	OutcomeDegraded Outcome = "degraded"
)

// Result is the availability of one day.
// A degraded result carries every slot as available and the store error in Cause.
type Result struct {
	Date    time.Time
	Outcome Outcome
	Slots   []models.TimeSlot
	Cause   error
}

func (r Result) Degraded() bool {
	return r.Outcome == OutcomeDegraded
}

func (r Result) AvailableCount() int {
	n := 0
	for _, s := range r.Slots {
		if s.IsAvailable {
			n++
		}
	}
	return n
}

// SlotAvailable reports whether hhmm is a free slot in the result.
func (r Result) SlotAvailable(hhmm string) bool {
	for _, s := range r.Slots {
		if s.Time == hhmm {
			return s.IsAvailable
		}
	}
	return false
}

type Engine struct {
	schedule *Schedule
	store    domain.BookingStore
	logger   *zerolog.Logger
}

func NewEngine(schedule *Schedule, store domain.BookingStore, logger *zerolog.Logger) *Engine {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Engine{schedule: schedule, store: store, logger: logger}
}

func (e *Engine) Schedule() *Schedule {
	return e.schedule
}

// GetAvailableSlots never fails: when the store cannot be read the day is
// reported fully available with OutcomeDegraded.
func (e *Engine) GetAvailableSlots(ctx context.Context, date time.Time) Result {
	day := e.schedule.Day(date)
	res := e.slotsFor(ctx, day)
	metrics.IncAvailability(string(res.Outcome))
	return res
}

func (e *Engine) slotsFor(ctx context.Context, day time.Time) Result {
	if !e.schedule.IsWorkingDay(day) {
		return Result{Date: day, Outcome: OutcomeClosed, Slots: []models.TimeSlot{}}
	}

	slots := e.schedule.Slots()

	booked, err := e.store.BookedTimes(ctx, day)
	if err != nil {
		e.logger.Error().
			Err(err).
			Str("date", day.Format(models.DateLayout)).
			Msg("Failed to read bookings, returning all slots as available")
		return Result{Date: day, Outcome: OutcomeDegraded, Slots: slots, Cause: err}
	}

	counts := make(map[string]int, len(booked))
	for _, t := range booked {
		counts[t]++
	}
	for i := range slots {
		if n := counts[slots[i].Time]; n > 0 {
			slots[i].IsAvailable = false
			slots[i].BookingCount = n
		}
	}

	return Result{Date: day, Outcome: OutcomeLive, Slots: slots}
}

// ForPeriod returns one result per day starting at start.
func (e *Engine) ForPeriod(ctx context.Context, start time.Time, days int) []Result {
	if days <= 0 {
		return []Result{}
	}
	day := e.schedule.Day(start)
	out := make([]Result, 0, days)
	for i := 0; i < days; i++ {
		out = append(out, e.GetAvailableSlots(ctx, day.AddDate(0, 0, i)))
	}
	return out
}
