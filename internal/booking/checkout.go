package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hackgods/turf-booking/internal/catalog"
	"github.com/hackgods/turf-booking/internal/payment"
	redisclient "github.com/hackgods/turf-booking/internal/redis"
)

// Checkout is a validated, priced booking waiting for its payment callback.
// Nothing is written to the booking store until the payment succeeds.
type Checkout struct {
	BookingID string        `json:"booking_id"`
	Form      BookingForm   `json:"form"`
	Sport     catalog.Sport `json:"sport"`
	Amount    int64         `json:"amount"`
	Order     payment.Order `json:"order"`
	CreatedAt time.Time     `json:"created_at"`
	ExpiresAt time.Time     `json:"expires_at"`
}

func (c Checkout) booking(rcpt payment.Receipt) Booking {
	b := Booking{
		BookingID:     c.BookingID,
		FullName:      c.Form.FullName,
		Mobile:        c.Form.Mobile,
		SportType:     c.Sport,
		Date:          c.Form.Date,
		TimeSlot:      c.Form.TimeSlot,
		Amount:        c.Amount,
		PaymentStatus: StatusSuccess,
	}
	if c.Form.Email != "" {
		email := c.Form.Email
		b.Email = &email
	}
	if c.Form.TeamName != "" {
		team := c.Form.TeamName
		b.TeamName = &team
	}
	if rcpt.PaymentID != "" {
		pid := rcpt.PaymentID
		b.RazorpayPaymentID = &pid
	}
	if rcpt.OrderID != "" {
		oid := rcpt.OrderID
		b.RazorpayOrderID = &oid
	}
	return b
}

// CheckoutStore keeps unpaid drafts. Reserve is set-if-absent so a booking id
// collision is caught before any payment is attempted.
type CheckoutStore interface {
	Reserve(ctx context.Context, c Checkout, ttl time.Duration) (bool, error)
	Save(ctx context.Context, c Checkout, ttl time.Duration) error
	Get(ctx context.Context, bookingID string) (*Checkout, error)
	Delete(ctx context.Context, bookingID string) error
}

type redisCheckoutStore struct {
	cache *redisclient.JSONCache
}

func NewRedisCheckoutStore(cache *redisclient.JSONCache) CheckoutStore {
	return &redisCheckoutStore{cache: cache}
}

func (s *redisCheckoutStore) Reserve(ctx context.Context, c Checkout, ttl time.Duration) (bool, error) {
	return s.cache.SetNX(ctx, c.BookingID, c, ttl)
}

func (s *redisCheckoutStore) Save(ctx context.Context, c Checkout, ttl time.Duration) error {
	return s.cache.Set(ctx, c.BookingID, c, ttl)
}

func (s *redisCheckoutStore) Get(ctx context.Context, bookingID string) (*Checkout, error) {
	var c Checkout
	if err := s.cache.Get(ctx, bookingID, &c); err != nil {
		if errors.Is(err, redisclient.ErrCacheMiss) {
			return nil, ErrCheckoutNotFound
		}
		return nil, fmt.Errorf("load checkout: %w", err)
	}
	return &c, nil
}

func (s *redisCheckoutStore) Delete(ctx context.Context, bookingID string) error {
	return s.cache.Delete(ctx, bookingID)
}
