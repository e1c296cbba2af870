package events

import (
	"encoding/json"
	"sync"
	"time"

	"detailing/internal/models"

	"github.com/rs/zerolog"
)

const (
	EventBookingCreated   = "booking_created"
	EventBookingConfirmed = "booking_confirmed"
	EventBookingStarted   = "booking_started"
	EventBookingCompleted = "booking_completed"
	EventBookingCancelled = "booking_cancelled"
)

// BookingEventTypes lists every booking lifecycle event.
var BookingEventTypes = []string{
	EventBookingCreated,
	EventBookingConfirmed,
	EventBookingStarted,
	EventBookingCompleted,
	EventBookingCancelled,
}

// StatusEvent maps a booking status to the event published when a booking enters it.
func StatusEvent(status string) (string, bool) {
	switch status {
	case models.StatusPending:
		return EventBookingCreated, true
	case models.StatusConfirmed:
		return EventBookingConfirmed, true
	case models.StatusInProgress:
		return EventBookingStarted, true
	case models.StatusCompleted:
		return EventBookingCompleted, true
	case models.StatusCancelled:
		return EventBookingCancelled, true
	default:
		return "", false
	}
}

// BookingEventPayload is the booking snapshot handed to event consumers.
type BookingEventPayload struct {
	BookingID    int64     `json:"booking_id"`
	CustomerName string    `json:"customer_name"`
	Phone        string    `json:"phone,omitempty"`
	Postcode     string    `json:"postcode"`
	ServiceType  string    `json:"service_type"`
	VehicleSize  string    `json:"vehicle_size"`
	AddOns       []string  `json:"add_ons,omitempty"`
	Date         string    `json:"booking_date"`
	Time         string    `json:"booking_time"`
	Status       string    `json:"status"`
	PrevStatus   string    `json:"prev_status,omitempty"`
	TotalPrice   float64   `json:"total_price"`
	NeedsReview  bool      `json:"needs_review,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// NewBookingPayload snapshots a booking for publishing.
func NewBookingPayload(b *models.Booking, prevStatus string) BookingEventPayload {
	return BookingEventPayload{
		BookingID:    b.ID,
		CustomerName: b.CustomerName,
		Phone:        b.Phone,
		Postcode:     b.Postcode,
		ServiceType:  string(b.ServiceType),
		VehicleSize:  string(b.VehicleSize),
		AddOns:       b.AddOns,
		Date:         b.DateKey(),
		Time:         b.Time,
		Status:       b.Status,
		PrevStatus:   prevStatus,
		TotalPrice:   b.TotalPrice,
		OccurredAt:   time.Now(),
	}
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// DecodeBooking unmarshals a booking payload.
func (e *Event) DecodeBooking() (BookingEventPayload, error) {
	var p BookingEventPayload
	err := json.Unmarshal(e.Payload, &p)
	return p, err
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      *zerolog.Logger
}

// NewEventBus constructs an empty bus. Handler errors are logged to logger when set.
func NewEventBus(logger *zerolog.Logger) *EventBus {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &EventBus{subscribers: make(map[string][]EventHandler), logger: logger}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers one handler for several event types.
func (b *EventBus) SubscribeAll(eventTypes []string, handler EventHandler) {
	for _, t := range eventTypes {
		b.Subscribe(t, handler)
	}
}

// Publish notifies subscribers of the event type synchronously.
// A failing handler does not stop the others.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		if err := handler(event); err != nil {
			b.logger.Warn().Err(err).Str("event", event.Type).Msg("Event handler failed")
		}
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
