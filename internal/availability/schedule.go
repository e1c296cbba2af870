package availability

import (
	"fmt"
	"time"

	"detailing/internal/config"
	"detailing/internal/models"
)

// Schedule is the working week and the ordered list of daily slots.
type Schedule struct {
	location    *time.Location
	workingDays [7]bool
	slots       []config.SlotConfig
}

func NewSchedule(cfg config.ScheduleConfig) (*Schedule, error) {
	if err := config.ValidateSchedule(cfg); err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load schedule timezone: %w", err)
	}

	s := &Schedule{
		location: loc,
		slots:    append([]config.SlotConfig(nil), cfg.Slots...),
	}
	for _, d := range cfg.WorkingDays {
		s.workingDays[d] = true
	}
	for i := range s.slots {
		if s.slots[i].Label == "" {
			s.slots[i].Label = s.slots[i].Time
		}
	}
	return s, nil
}

func (s *Schedule) Location() *time.Location {
	return s.location
}

// Day keeps the calendar date t carries in its own location and returns
// midnight of that date in the schedule location. It does not convert t.
func (s *Schedule) Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.location)
}

// ParseDate parses YYYY-MM-DD in the schedule location.
func (s *Schedule) ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(models.DateLayout, value, s.location)
}

func (s *Schedule) IsWorkingDay(date time.Time) bool {
	return s.workingDays[s.Day(date).Weekday()]
}

func (s *Schedule) HasSlot(hhmm string) bool {
	for _, slot := range s.slots {
		if slot.Time == hhmm {
			return true
		}
	}
	return false
}

// Slots returns the day template with every slot available.
func (s *Schedule) Slots() []models.TimeSlot {
	out := make([]models.TimeSlot, len(s.slots))
	for i, slot := range s.slots {
		out[i] = models.TimeSlot{Time: slot.Time, Label: slot.Label, IsAvailable: true}
	}
	return out
}

// SlotStart returns the instant a slot begins on the given date.
func (s *Schedule) SlotStart(date time.Time, hhmm string) (time.Time, error) {
	t, err := time.Parse(models.TimeLayout, hhmm)
	if err != nil {
		return time.Time{}, err
	}
	day := s.Day(date)
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, s.location), nil
}
