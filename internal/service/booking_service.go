package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"detailing/internal/availability"
	"detailing/internal/domain"
	"detailing/internal/events"
	"detailing/internal/metrics"
	"detailing/internal/models"
	"detailing/internal/pricing"

	"github.com/rs/zerolog"
)

// BookingRequest is a customer's booking as submitted.
type BookingRequest struct {
	CustomerName string             `json:"customer_name"`
	Email        string             `json:"email"`
	Phone        string             `json:"phone"`
	Postcode     string             `json:"postcode"`
	Address      string             `json:"address"`
	ServiceType  models.ServiceType `json:"service_type"`
	VehicleSize  models.VehicleSize `json:"vehicle_size"`
	AddOns       []string           `json:"add_ons"`
	Date         time.Time          `json:"-"`
	Time         string             `json:"booking_time"`
	Notes        string             `json:"notes"`
}

// SlotInvalidator drops cached availability for a date.
type SlotInvalidator interface {
	Invalidate(ctx context.Context, date time.Time)
}

// transitions lists the statuses reachable from each status.
var transitions = map[string][]string{
	models.StatusPending:    {models.StatusConfirmed, models.StatusCancelled},
	models.StatusConfirmed:  {models.StatusInProgress, models.StatusCancelled},
	models.StatusInProgress: {models.StatusCompleted},
}

func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type BookingService struct {
	repo           domain.Repository
	pricing        *pricing.Engine
	availability   *availability.Engine
	cache          SlotInvalidator
	eventBus       domain.EventPublisher
	sheetsWorker   domain.SyncWorker
	maxBookingDays int
	minNotice      time.Duration
	now            func() time.Time
	logger         *zerolog.Logger
}

func NewBookingService(
	repo domain.Repository,
	pricingEngine *pricing.Engine,
	availabilityEngine *availability.Engine,
	eventBus domain.EventPublisher,
	sheetsWorker domain.SyncWorker,
	maxBookingDays int,
	logger *zerolog.Logger,
) *BookingService {
	if maxBookingDays <= 0 {
		maxBookingDays = models.DefaultMaxAdvanceDays
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &BookingService{
		repo:           repo,
		pricing:        pricingEngine,
		availability:   availabilityEngine,
		eventBus:       eventBus,
		sheetsWorker:   sheetsWorker,
		maxBookingDays: maxBookingDays,
		now:            time.Now,
		logger:         logger,
	}
}

// WithCache sets the cache invalidated after every booking write.
func (s *BookingService) WithCache(cache SlotInvalidator) *BookingService {
	s.cache = cache
	return s
}

// WithMinNotice rejects slots starting sooner than d from now.
func (s *BookingService) WithMinNotice(d time.Duration) *BookingService {
	s.minNotice = d
	return s
}

// ValidateBookingDate checks the day lies between today and the booking horizon.
func (s *BookingService) ValidateBookingDate(date time.Time) error {
	schedule := s.availability.Schedule()
	day := schedule.Day(date)
	today := schedule.Day(s.now().In(schedule.Location()))

	// Проверяем, что дата не в прошлом
	if day.Before(today) {
		return ErrPastDate
	}

	// Проверяем максимальную дату
	if day.After(today.AddDate(0, 0, s.maxBookingDays)) {
		return ErrDateTooFar
	}

	return nil
}

func (s *BookingService) validateRequest(req BookingRequest) error {
	if strings.TrimSpace(req.CustomerName) == "" || strings.TrimSpace(req.Postcode) == "" {
		return ErrMissingCustomer
	}
	if !req.VehicleSize.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownVehicleSize, req.VehicleSize)
	}

	cat := s.pricing.Catalog()
	if _, ok := cat.Service(req.ServiceType); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownService, req.ServiceType)
	}
	for _, id := range req.AddOns {
		if _, ok := cat.AddOn(id); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownAddOn, id)
		}
	}
	return nil
}

func (s *BookingService) validateSlot(ctx context.Context, date time.Time, hhmm string) error {
	schedule := s.availability.Schedule()

	if !schedule.IsWorkingDay(date) {
		return ErrClosedDay
	}
	if !schedule.HasSlot(hhmm) {
		return fmt.Errorf("%w: %s", ErrUnknownSlot, hhmm)
	}

	if s.minNotice > 0 {
		start, err := schedule.SlotStart(date, hhmm)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrUnknownSlot, hhmm)
		}
		if start.Before(s.now().Add(s.minNotice)) {
			return fmt.Errorf("%w: %s starts too soon", ErrSlotUnavailable, hhmm)
		}
	}

	res := s.availability.GetAvailableSlots(ctx, date)
	if res.Degraded() {
		// the unique slot index in the store still rejects a double booking
		s.logger.Warn().Err(res.Cause).Msg("Availability degraded, relying on store constraint")
		return nil
	}
	if !res.SlotAvailable(hhmm) {
		return fmt.Errorf("%w: %s %s", ErrSlotUnavailable, date.Format(models.DateLayout), hhmm)
	}
	return nil
}

// CreateBooking validates, prices and stores a pending booking.
func (s *BookingService) CreateBooking(ctx context.Context, req BookingRequest) (*models.Booking, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	date := s.availability.Schedule().Day(req.Date)
	if err := s.ValidateBookingDate(date); err != nil {
		return nil, err
	}
	if err := s.validateSlot(ctx, date, req.Time); err != nil {
		return nil, err
	}

	quote := s.pricing.Quote(pricing.QuoteRequest{
		ServiceType: req.ServiceType,
		VehicleSize: req.VehicleSize,
		AddOns:      req.AddOns,
		Postcode:    req.Postcode,
	})
	metrics.IncQuote(quote.NeedsReview)

	booking := &models.Booking{
		CustomerName: strings.TrimSpace(req.CustomerName),
		Email:        strings.TrimSpace(req.Email),
		Phone:        strings.TrimSpace(req.Phone),
		Postcode:     strings.ToUpper(strings.TrimSpace(req.Postcode)),
		Address:      strings.TrimSpace(req.Address),
		ServiceType:  req.ServiceType,
		VehicleSize:  req.VehicleSize,
		AddOns:       append([]string{}, req.AddOns...),
		Date:         date,
		Time:         req.Time,
		Status:       models.StatusPending,
		BasePrice:    quote.BasePrice,
		AddOnsPrice:  quote.AddOnsPrice,
		TravelFee:    quote.TravelFee,
		TotalPrice:   quote.Total,
		Notes:        strings.TrimSpace(req.Notes),
	}

	if err := s.repo.CreateBooking(ctx, booking); err != nil {
		return nil, err
	}
	metrics.IncBookingCreated()

	s.invalidate(ctx, booking.Date)

	payload := events.NewBookingPayload(booking, "")
	payload.NeedsReview = quote.NeedsReview
	s.publish(events.EventBookingCreated, payload)
	s.enqueueSync(ctx, booking, models.SyncTaskUpsert)

	s.logger.Info().
		Int64("booking_id", booking.ID).
		Str("date", booking.DateKey()).
		Str("time", booking.Time).
		Float64("total", booking.TotalPrice).
		Bool("needs_review", quote.NeedsReview).
		Msg("Booking created")

	return booking, nil
}

// UpdateStatus moves a booking to status if the transition is allowed and
// the caller's version is current.
func (s *BookingService) UpdateStatus(ctx context.Context, bookingID, version int64, status string) (*models.Booking, error) {
	current, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(current.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
	}

	if err := s.repo.UpdateBookingStatusWithVersion(ctx, bookingID, version, status); err != nil {
		return nil, err
	}

	updated, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, updated.Date)
	if eventType, ok := events.StatusEvent(status); ok {
		s.publish(eventType, events.NewBookingPayload(updated, current.Status))
	}
	s.enqueueSync(ctx, updated, models.SyncTaskUpdateStatus)

	s.logger.Info().
		Int64("booking_id", bookingID).
		Str("from", current.Status).
		Str("to", status).
		Msg("Booking status changed")

	return updated, nil
}

func (s *BookingService) ConfirmBooking(ctx context.Context, bookingID, version int64) (*models.Booking, error) {
	return s.UpdateStatus(ctx, bookingID, version, models.StatusConfirmed)
}

func (s *BookingService) StartBooking(ctx context.Context, bookingID, version int64) (*models.Booking, error) {
	return s.UpdateStatus(ctx, bookingID, version, models.StatusInProgress)
}

func (s *BookingService) CompleteBooking(ctx context.Context, bookingID, version int64) (*models.Booking, error) {
	return s.UpdateStatus(ctx, bookingID, version, models.StatusCompleted)
}

func (s *BookingService) CancelBooking(ctx context.Context, bookingID, version int64) (*models.Booking, error) {
	return s.UpdateStatus(ctx, bookingID, version, models.StatusCancelled)
}

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

func (s *BookingService) ListBookings(ctx context.Context, from, to time.Time) ([]*models.Booking, error) {
	if to.Before(from) {
		from, to = to, from
	}
	return s.repo.GetBookingsByDateRange(ctx, from, to)
}

func (s *BookingService) invalidate(ctx context.Context, date time.Time) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, date)
	}
}

func (s *BookingService) publish(eventType string, payload events.BookingEventPayload) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Msg("Failed to publish event")
	}
}

func (s *BookingService) enqueueSync(ctx context.Context, booking *models.Booking, taskType string) {
	if s.sheetsWorker == nil {
		return
	}
	if err := s.sheetsWorker.EnqueueTask(ctx, taskType, booking.ID, booking, booking.Status); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("Failed to enqueue sheet sync")
	}
}
