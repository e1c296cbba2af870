package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"detailing/internal/domain"
	"detailing/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// BookingLister is the read side the agenda needs.
type BookingLister interface {
	ListBookings(ctx context.Context, from, to time.Time) ([]*models.Booking, error)
}

// DailyAgenda sends operators the next day's jobs once a day.
type DailyAgenda struct {
	bot     domain.TelegramSender
	chatIDs []int64
	source  BookingLister
	loc     *time.Location
	hour    int
	minute  int
	now     func() time.Time
	logger  *zerolog.Logger
}

// NewDailyAgenda parses at as HH:MM in loc. An empty at means 18:00.
func NewDailyAgenda(bot domain.TelegramSender, chatIDs []int64, source BookingLister, loc *time.Location, at string, logger *zerolog.Logger) (*DailyAgenda, error) {
	if at == "" {
		at = "18:00"
	}
	parsed, err := time.Parse(models.TimeLayout, at)
	if err != nil {
		return nil, fmt.Errorf("invalid agenda time %q: %w", at, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &DailyAgenda{
		bot:     bot,
		chatIDs: chatIDs,
		source:  source,
		loc:     loc,
		hour:    parsed.Hour(),
		minute:  parsed.Minute(),
		now:     time.Now,
		logger:  logger,
	}, nil
}

// Start waits for the next send time, then repeats every 24 hours until ctx is done.
func (a *DailyAgenda) Start(ctx context.Context) {
	timer := time.NewTimer(a.untilNext())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			tomorrow := a.now().In(a.loc).AddDate(0, 0, 1)
			if err := a.SendFor(ctx, tomorrow); err != nil {
				a.logger.Error().Err(err).Msg("agenda: send failed")
			}
			timer.Reset(a.untilNext())
		}
	}
}

func (a *DailyAgenda) untilNext() time.Duration {
	now := a.now().In(a.loc)
	next := time.Date(now.Year(), now.Month(), now.Day(), a.hour, a.minute, 0, 0, a.loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}

// SendFor posts the agenda of day to every chat. Only the listing error is
// returned; per-chat send failures are logged.
func (a *DailyAgenda) SendFor(ctx context.Context, day time.Time) error {
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, a.loc)
	bookings, err := a.source.ListBookings(ctx, day, day)
	if err != nil {
		return fmt.Errorf("list bookings for %s: %w", day.Format(models.DateLayout), err)
	}

	text := FormatAgenda(day, bookings)
	for _, chatID := range a.chatIDs {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if _, err := a.bot.Send(msg); err != nil {
			a.logger.Error().Err(err).Int64("chat_id", chatID).Msg("agenda: telegram send failed")
		}
	}
	return nil
}

// FormatAgenda lists the blocking bookings of day ordered by slot time.
func FormatAgenda(day time.Time, bookings []*models.Booking) string {
	esc := func(s string) string { return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s) }

	jobs := make([]*models.Booking, 0, len(bookings))
	for _, b := range bookings {
		if models.IsBlockingStatus(b.Status) {
			jobs = append(jobs, b)
		}
	}
	sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].Time < jobs[j].Time })

	var sb strings.Builder
	fmt.Fprintf(&sb, "*📋 Agenda for %s*\n", esc(day.Format("Mon 02 Jan 2006")))
	if len(jobs) == 0 {
		sb.WriteString("No jobs booked.")
		return sb.String()
	}

	var total float64
	for _, b := range jobs {
		total += b.TotalPrice
		fmt.Fprintf(&sb, "\n%s  %s, %s", esc(b.Time), esc(b.CustomerName), esc(b.Postcode))
		fmt.Fprintf(&sb, "\n      %s, %s", esc(string(b.ServiceType)), esc(string(b.VehicleSize)))
		if b.Status == models.StatusPending {
			sb.WriteString(" (unconfirmed)")
		}
	}
	fmt.Fprintf(&sb, "\n\n%d job(s), £%.2f", len(jobs), total)
	return sb.String()
}
