package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/hackgods/turf-booking/internal/booking"
	"github.com/hackgods/turf-booking/internal/catalog"
	"github.com/hackgods/turf-booking/internal/payment"
)

type SportResponse struct {
	ID    catalog.Sport `json:"id"`
	Name  string        `json:"name"`
	Price int64         `json:"price"`
}

type SlotResponse struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type CheckoutResponse struct {
	BookingID string        `json:"booking_id"`
	Amount    int64         `json:"amount"`
	Order     payment.Order `json:"order"`
	ExpiresAt time.Time     `json:"expires_at"`
}

type BookingResponse struct {
	BookingID         string                `json:"booking_id"`
	FullName          string                `json:"full_name"`
	Mobile            string                `json:"mobile"`
	Email             *string               `json:"email,omitempty"`
	TeamName          *string               `json:"team_name,omitempty"`
	SportType         catalog.Sport         `json:"sport_type"`
	Date              string                `json:"date"`
	TimeSlot          string                `json:"time_slot"`
	TimeLabel         string                `json:"time_label"`
	Amount            int64                 `json:"amount"`
	PaymentStatus     booking.PaymentStatus `json:"payment_status"`
	RazorpayOrderID   *string               `json:"razorpay_order_id,omitempty"`
	RazorpayPaymentID *string               `json:"razorpay_payment_id,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
}

func toBookingResponse(b booking.Booking) BookingResponse {
	label, err := catalog.FormatLabel(b.TimeSlot)
	if err != nil {
		label = b.TimeSlot
	}
	return BookingResponse{
		BookingID:         b.BookingID,
		FullName:          b.FullName,
		Mobile:            b.Mobile,
		Email:             b.Email,
		TeamName:          b.TeamName,
		SportType:         b.SportType,
		Date:              b.Date,
		TimeSlot:          b.TimeSlot,
		TimeLabel:         label,
		Amount:            b.Amount,
		PaymentStatus:     b.PaymentStatus,
		RazorpayOrderID:   b.RazorpayOrderID,
		RazorpayPaymentID: b.RazorpayPaymentID,
		CreatedAt:         b.CreatedAt,
	}
}

type ConfirmationResponse struct {
	Booking     BookingResponse `json:"booking"`
	WhatsAppURL string          `json:"whatsapp_url,omitempty"`
	Channels    []string        `json:"channels"`
	Replayed    bool            `json:"replayed,omitempty"`
}

type BookingListResponse struct {
	Bookings []BookingResponse `json:"bookings"`
	Total    int               `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

type AmountRequest struct {
	Amount *int64 `json:"amount"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

type BlockedSlotResponse struct {
	ID        int64         `json:"id"`
	Date      string        `json:"date"`
	SportType catalog.Sport `json:"sport_type"`
	TimeSlot  string        `json:"time_slot"`
	Reason    *string       `json:"reason,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	DeletedAt *time.Time    `json:"deleted_at,omitempty"`
}

func toBlockedSlotResponse(s booking.BlockedSlot) BlockedSlotResponse {
	return BlockedSlotResponse{
		ID:        s.ID,
		Date:      s.Date,
		SportType: s.SportType,
		TimeSlot:  s.TimeSlot,
		Reason:    s.Reason,
		CreatedAt: s.CreatedAt,
		DeletedAt: s.DeletedAt,
	}
}

type BlockedDateResponse struct {
	ID        int64      `json:"id"`
	Date      string     `json:"date"`
	Reason    *string    `json:"reason,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

func toBlockedDateResponse(d booking.BlockedDate) BlockedDateResponse {
	return BlockedDateResponse{
		ID:        d.ID,
		Date:      d.Date,
		Reason:    d.Reason,
		CreatedAt: d.CreatedAt,
		DeletedAt: d.DeletedAt,
	}
}

type BlocksResponse struct {
	Date         string                `json:"date"`
	BlockedDate  *BlockedDateResponse  `json:"blocked_date,omitempty"`
	BlockedSlots []BlockedSlotResponse `json:"blocked_slots"`
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
