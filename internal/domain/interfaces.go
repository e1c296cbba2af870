package domain

import (
	"context"
	"time"

	"detailing/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BookingStore is the read side the availability engine depends on.
type BookingStore interface {
	// BookedTimes returns HH:MM times of pending, confirmed and in-progress bookings on date.
	BookedTimes(ctx context.Context, date time.Time) ([]string, error)
}

type Repository interface {
	BookingStore
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	CreateBooking(ctx context.Context, booking *models.Booking) error
	UpdateBookingStatusWithVersion(ctx context.Context, id int64, version int64, status string) error
	GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error)
}

type SlotCache interface {
	Get(ctx context.Context, date time.Time) ([]string, bool, error)
	Set(ctx context.Context, date time.Time, times []string) error
	Invalidate(ctx context.Context, date time.Time) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, bookingID int64, booking *models.Booking, status string) error
}
