package booking

import (
	"context"
	"time"
)

// Store is everything the booking core needs from persistence.
// Implementations return ErrBookingNotFound / ErrBlockNotFound for missing rows,
// ErrSlotConflict when a second paid booking targets the same slot and
// ErrDuplicateBookingID when the reference is already taken.
type Store interface {
	// Availability
	GetActiveBlockedDate(ctx context.Context, date string) (*BlockedDate, error)
	ListBookedSlotIDs(ctx context.Context, date, sport string) ([]string, error)
	ListBlockedSlotIDs(ctx context.Context, date, sport string) ([]string, error)

	// Bookings
	InsertBooking(ctx context.Context, b Booking) (*Booking, error)
	GetBooking(ctx context.Context, bookingID string) (*Booking, error)
	ListBookings(ctx context.Context, f BookingFilter) ([]Booking, int, error)
	UpdateBooking(ctx context.Context, bookingID string, upd BookingUpdate) (*Booking, error)
	// UpdateBookingStatus only applies when the current status is one of from.
	UpdateBookingStatus(ctx context.Context, bookingID string, from []PaymentStatus, to PaymentStatus) (*Booking, error)

	// Blocks
	InsertBlockedSlot(ctx context.Context, s BlockedSlot) (*BlockedSlot, error)
	InsertBlockedDate(ctx context.Context, d BlockedDate) (*BlockedDate, error)
	ListActiveBlockedSlots(ctx context.Context, date string) ([]BlockedSlot, error)
	SoftDeleteBlockedSlot(ctx context.Context, id int64, at time.Time) (*BlockedSlot, error)
	SoftDeleteBlockedDate(ctx context.Context, date string, at time.Time) (*BlockedDate, error)

	// Reporting
	Stats(ctx context.Context, today string) (Stats, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
