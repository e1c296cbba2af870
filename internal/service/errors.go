package service

import "errors"

var (
	ErrUnknownService     = errors.New("unknown service type")
	ErrUnknownVehicleSize = errors.New("unknown vehicle size")
	ErrUnknownAddOn       = errors.New("unknown add-on")
	ErrMissingCustomer    = errors.New("customer name and postcode are required")
	ErrClosedDay          = errors.New("no bookings on this day")
	ErrUnknownSlot        = errors.New("time is not a bookable slot")
	ErrSlotUnavailable    = errors.New("slot is not available")
	ErrPastDate           = errors.New("booking date is in the past")
	ErrDateTooFar         = errors.New("booking date is too far ahead")
	ErrInvalidTransition  = errors.New("invalid status transition")
)
