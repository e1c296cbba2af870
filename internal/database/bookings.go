package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"detailing/internal/models"

	"github.com/Masterminds/squirrel"
)

var bookingColumns = []string{
	"id", "customer_name", "email", "phone", "postcode", "address",
	"service_type", "vehicle_size", "add_ons", "booking_date", "booking_time",
	"status", "base_price", "add_ons_price", "travel_fee", "total_price",
	"notes", "created_at", "updated_at", "version",
}

// BookedTimes returns slot times taken by blocking bookings on the date.
func (db *DB) BookedTimes(ctx context.Context, date time.Time) ([]string, error) {
	query, args, err := db.sb.Select("booking_time").
		From("bookings").
		Where(squirrel.Eq{
			"booking_date": date.Format(models.DateLayout),
			"status":       models.BlockingStatuses,
		}).
		OrderBy("booking_time ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: BookedTimes: %v", ErrBuildQuery, err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get booked times: %w", err)
	}
	defer rows.Close()

	times := []string{}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan booked time: %w", err)
		}
		times = append(times, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate booked times: %w", err)
	}
	return times, nil
}

// CreateBooking inserts the booking with version 1.
// Returns ErrSlotTaken when another blocking booking holds the same date and time.
func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	if booking.Status == "" {
		booking.Status = models.StatusPending
	}
	addOns, err := encodeAddOns(booking.AddOns)
	if err != nil {
		return err
	}

	now := time.Now()
	query, args, err := db.sb.Insert("bookings").
		Columns(bookingColumns[1:]...).
		Values(
			booking.CustomerName,
			booking.Email,
			booking.Phone,
			booking.Postcode,
			booking.Address,
			string(booking.ServiceType),
			string(booking.VehicleSize),
			addOns,
			booking.DateKey(),
			booking.Time,
			booking.Status,
			booking.BasePrice,
			booking.AddOnsPrice,
			booking.TravelFee,
			booking.TotalPrice,
			booking.Notes,
			now,
			now,
			1,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: CreateBooking: %v", ErrBuildQuery, err)
	}

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s %s", ErrSlotTaken, booking.DateKey(), booking.Time)
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	booking.ID = id
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1

	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query, args, err := db.sb.Select(bookingColumns...).
		From("bookings").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: GetBooking: %v", ErrBuildQuery, err)
	}

	booking, err := scanBooking(db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id=%d", ErrBookingNotFound, id)
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

// UpdateBookingStatusWithVersion applies the status only if the stored version matches.
func (db *DB) UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status string) error {
	query, args, err := db.sb.Update("bookings").
		Set("status", status).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", time.Now()).
		Where(squirrel.Eq{"id": id, "version": fromVersion}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: UpdateBookingStatusWithVersion: %v", ErrBuildQuery, err)
	}

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: booking %d", ErrSlotTaken, id)
		}
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	return versionApplied(result)
}

// versionApplied maps a versioned update that touched no row to ErrConcurrentModification.
func versionApplied(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("read affected rows: %w", err)
	}
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// GetBookingsByDateRange returns bookings with dates in [start, end], ordered by date and time.
func (db *DB) GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error) {
	query, args, err := db.sb.Select(bookingColumns...).
		From("bookings").
		Where(squirrel.GtOrEq{"booking_date": start.Format(models.DateLayout)}).
		Where(squirrel.LtOrEq{"booking_date": end.Format(models.DateLayout)}).
		OrderBy("booking_date ASC", "booking_time ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: GetBookingsByDateRange: %v", ErrBuildQuery, err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings by date range: %w", err)
	}
	defer rows.Close()

	bookings := []*models.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var (
		b           models.Booking
		serviceType string
		vehicleSize string
		addOns      string
		dateStr     string
	)
	err := row.Scan(
		&b.ID, &b.CustomerName, &b.Email, &b.Phone, &b.Postcode, &b.Address,
		&serviceType, &vehicleSize, &addOns, &dateStr, &b.Time,
		&b.Status, &b.BasePrice, &b.AddOnsPrice, &b.TravelFee, &b.TotalPrice,
		&b.Notes, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}

	b.ServiceType = models.ServiceType(serviceType)
	b.VehicleSize = models.VehicleSize(vehicleSize)
	if err := json.Unmarshal([]byte(addOns), &b.AddOns); err != nil {
		return nil, fmt.Errorf("decode add-ons of booking %d: %w", b.ID, err)
	}
	b.Date, err = time.Parse(models.DateLayout, dateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse booking date %s: %w", dateStr, err)
	}
	return &b, nil
}

func encodeAddOns(addOns []string) (string, error) {
	if addOns == nil {
		addOns = []string{}
	}
	data, err := json.Marshal(addOns)
	if err != nil {
		return "", fmt.Errorf("encode add-ons: %w", err)
	}
	return string(data), nil
}
