package models

import "time"

type Booking struct {
	ID           int64       `json:"id"`
	CustomerName string      `json:"customer_name"`
	Email        string      `json:"email"`
	Phone        string      `json:"phone"`
	Postcode     string      `json:"postcode"`
	Address      string      `json:"address"`
	ServiceType  ServiceType `json:"service_type"`
	VehicleSize  VehicleSize `json:"vehicle_size"`
	AddOns       []string    `json:"add_ons"`
	Date         time.Time   `json:"booking_date"`
	Time         string      `json:"booking_time"`
	Status       string      `json:"status"` // pending, confirmed, in-progress, completed, cancelled
	BasePrice    float64     `json:"base_price"`
	AddOnsPrice  float64     `json:"add_ons_price"`
	TravelFee    float64     `json:"travel_fee"`
	TotalPrice   float64     `json:"total_price"`
	Notes        string      `json:"notes"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	Version      int64       `json:"version"`
}

// DateKey returns the booking date in storage format.
func (b *Booking) DateKey() string {
	return b.Date.Format(DateLayout)
}

// TimeSlot is one bookable window of a day.
type TimeSlot struct {
	Time         string `json:"time"`
	Label        string `json:"label"`
	IsAvailable  bool   `json:"is_available"`
	BookingCount int    `json:"booking_count,omitempty"`
}
