package database

import (
	"courtly/internal/bookings"
	"courtly/internal/payments"
	"courtly/internal/users"
	"courtly/internal/venues"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&users.User{},
		&venues.Venue{},
		&venues.Court{},
		&bookings.Booking{},
		&bookings.BookingCourt{},
		&bookings.BookingSlot{},
		&payments.PaymentSession{},
	)
}
