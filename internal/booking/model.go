package booking

import (
	"time"

	"github.com/hackgods/turf-booking/internal/catalog"
)

type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusSuccess   PaymentStatus = "success"
	StatusFailed    PaymentStatus = "failed"
	StatusCancelled PaymentStatus = "cancelled"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusSuccess, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

type SlotState string

const (
	SlotAvailable SlotState = "available"
	SlotBooked    SlotState = "booked"
	SlotBlocked   SlotState = "blocked"
)

type Booking struct {
	ID                int64
	BookingID         string
	FullName          string
	Mobile            string
	Email             *string
	TeamName          *string
	SportType         catalog.Sport
	Date              string
	TimeSlot          string
	Amount            int64
	PaymentStatus     PaymentStatus
	RazorpayOrderID   *string
	RazorpayPaymentID *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// SlotKey identifies the (date, sport, slot) tuple a paid booking occupies.
func (b Booking) SlotKey() string {
	return SlotKey(b.Date, b.SportType, b.TimeSlot)
}

func SlotKey(date string, sport catalog.Sport, slotID string) string {
	return date + ":" + string(sport) + ":" + slotID
}

type BlockedSlot struct {
	ID        int64
	Date      string
	TimeSlot  string
	SportType catalog.Sport
	Reason    *string
	CreatedAt time.Time
	DeletedAt *time.Time
}

type BlockedDate struct {
	ID        int64
	Date      string
	Reason    *string
	CreatedAt time.Time
	DeletedAt *time.Time
}

type EventLog struct {
	ID        int64
	EventType string
	BookingID *string
	Payload   []byte
	CreatedAt time.Time
}

type SlotAvailability struct {
	SlotID string    `json:"slot_id"`
	Label  string    `json:"label"`
	Status SlotState `json:"status"`
}

type Availability struct {
	Date          string             `json:"date"`
	Sport         catalog.Sport      `json:"sport"`
	IsDateBlocked bool               `json:"is_date_blocked"`
	Slots         []SlotAvailability `json:"slots"`
}

// OpenSlot is one entry of the "open today" preview.
type OpenSlot struct {
	SlotID string        `json:"slot_id"`
	Label  string        `json:"label"`
	Sport  catalog.Sport `json:"sport"`
}

// BookingFilter narrows the admin listing. Search matches mobile or booking id substrings.
type BookingFilter struct {
	Date   string
	Search string
	Status PaymentStatus
	Limit  int
	Offset int
}

// BookingUpdate is a partial update; nil fields are left untouched.
type BookingUpdate struct {
	Amount        *int64
	PaymentStatus *PaymentStatus
}

type Stats struct {
	Date              string `json:"date"`
	TodayBookings     int    `json:"today_bookings"`
	TodayRevenue      int64  `json:"today_revenue"`
	ConfirmedBookings int    `json:"confirmed_bookings"`
	TotalBookings     int    `json:"total_bookings"`
	TotalRevenue      int64  `json:"total_revenue"`
}

type Blocks struct {
	Date  string        `json:"date"`
	Day   *BlockedDate  `json:"blocked_date,omitempty"`
	Slots []BlockedSlot `json:"blocked_slots"`
}
