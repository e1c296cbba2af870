package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVehicleSize_Valid(t *testing.T) {
	for _, s := range VehicleSizes {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, VehicleSize("").Valid())
	assert.False(t, VehicleSize("extra-large").Valid())
	assert.False(t, VehicleSize("Small").Valid())
}

func TestIsBlockingStatus(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{StatusPending, true},
		{StatusConfirmed, true},
		{StatusInProgress, true},
		{StatusCompleted, false},
		{StatusCancelled, false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBlockingStatus(tt.status))
		})
	}
}

func TestBooking_DateKey(t *testing.T) {
	b := &Booking{Date: time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, "2025-03-07", b.DateKey())
}
