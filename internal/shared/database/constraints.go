package database

import (
	"gorm.io/gorm"
)

// MigrateConstraints adds database constraints and indexes the conflict
// checks depend on.
func MigrateConstraints(db *gorm.DB) error {
	// Conflict checks join bookings to courts through booking_courts for
	// one venue and date; this index keeps the FOR UPDATE transaction
	// short.
	err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_booking_courts_court_booking
		ON booking_courts (court_id, booking_id);
	`).Error
	if err != nil {
		return err
	}

	// The sweeper scans by status and hold deadline.
	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_bookings_status_hold_until
		ON bookings (status, hold_until)
		WHERE status IN ('PENDING', 'RESERVED');
	`).Error
	if err != nil {
		return err
	}

	// Blocking-set lookups filter by date and status.
	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_bookings_date_status
		ON bookings (date, status);
	`).Error
	if err != nil {
		return err
	}

	// One court slot can only appear once per booking.
	err = db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS unique_booking_court
		ON booking_courts (booking_id, court_id);
	`).Error
	if err != nil {
		return err
	}

	return nil
}
