package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hackgods/turf-booking/internal/catalog"
	"github.com/hackgods/turf-booking/internal/events"
	"github.com/hackgods/turf-booking/internal/payment"
	redisclient "github.com/hackgods/turf-booking/internal/redis"
)

const (
	maxBookingIDAttempts = 3
	lockAttempts         = 3
	lockRetryDelay       = 150 * time.Millisecond
)

// Notifier takes a persisted booking and schedules the confirmation messages.
type Notifier interface {
	Enqueue(ctx context.Context, b Booking) (*NotificationReceipt, error)
}

type NotificationReceipt struct {
	MessageURI string
	Channels   []string
}

// Alerter pages the turf staff about failures a customer cannot fix alone.
type Alerter interface {
	Alert(ctx context.Context, text string) error
}

type Confirmation struct {
	Booking     Booking
	WhatsAppURL string
	Channels    []string
	// Replayed is set when the payment callback arrived again for a booking
	// that was already saved.
	Replayed bool
}

type PipelineDeps struct {
	Store       Store
	Resolver    *Resolver
	Gateway     payment.Gateway
	Checkouts   CheckoutStore
	Locker      redisclient.Locker
	Notifier    Notifier
	Alerter     Alerter
	Publisher   events.Publisher
	CheckoutTTL time.Duration
	Currency    string
}

// Pipeline turns a booking form into a paid, saved and announced booking.
type Pipeline struct {
	store       Store
	resolver    *Resolver
	gateway     payment.Gateway
	checkouts   CheckoutStore
	locker      redisclient.Locker
	notifier    Notifier
	alerter     Alerter
	events      *eventLog
	checkoutTTL time.Duration
	currency    string
	now         func() time.Time
}

func NewPipeline(d PipelineDeps) *Pipeline {
	p := &Pipeline{
		store:       d.Store,
		resolver:    d.Resolver,
		gateway:     d.Gateway,
		checkouts:   d.Checkouts,
		locker:      d.Locker,
		notifier:    d.Notifier,
		alerter:     d.Alerter,
		events:      newEventLog(d.Store, d.Publisher),
		checkoutTTL: d.CheckoutTTL,
		currency:    d.Currency,
		now:         time.Now,
	}
	if p.resolver == nil {
		p.resolver = NewResolver(d.Store, nil)
	}
	if p.locker == nil {
		p.locker = redisclient.NopLocker{}
	}
	if p.checkoutTTL <= 0 {
		p.checkoutTTL = 30 * time.Minute
	}
	if p.currency == "" {
		p.currency = "INR"
	}
	return p
}

// Checkout validates the form, prices it and opens a gateway order.
// No slot is held; the availability check here is advisory.
func (p *Pipeline) Checkout(ctx context.Context, form BookingForm) (*Checkout, error) {
	form = form.normalized()
	if err := form.Validate(); err != nil {
		return nil, err
	}

	sport := catalog.Sport(form.SportType)
	amount, err := catalog.Price(sport)
	if err != nil {
		return nil, fieldError("sport_type", "Unknown sport")
	}

	if err := p.checkSlotOpen(ctx, form.Date, sport, form.TimeSlot); err != nil {
		return nil, err
	}

	now := p.now()
	co := Checkout{
		Form:      form,
		Sport:     sport,
		Amount:    amount,
		CreatedAt: now,
		ExpiresAt: now.Add(p.checkoutTTL),
	}

	reserved := false
	for attempt := 0; attempt < maxBookingIDAttempts && !reserved; attempt++ {
		co.BookingID = NewBookingID(p.now())
		reserved, err = p.checkouts.Reserve(ctx, co, p.checkoutTTL)
		if err != nil {
			return nil, fmt.Errorf("reserve checkout: %w: %w", ErrStoreUnavailable, err)
		}
	}
	if !reserved {
		return nil, fmt.Errorf("generate booking id: %w", ErrDuplicateBookingID)
	}

	order, err := p.gateway.CreateOrder(ctx, payment.OrderRequest{
		Receipt:     co.BookingID,
		AmountMinor: payment.ToMinorUnits(amount),
		Currency:    p.currency,
		Notes: map[string]string{
			"sport":     string(sport),
			"date":      form.Date,
			"time_slot": form.TimeSlot,
			"mobile":    form.Mobile,
		},
	})
	if err != nil {
		p.dropCheckout(ctx, co.BookingID)
		return nil, fmt.Errorf("%w: %w", ErrPaymentFailed, err)
	}
	co.Order = *order

	if err := p.checkouts.Save(ctx, co, p.checkoutTTL); err != nil {
		return nil, fmt.Errorf("save checkout: %w: %w", ErrStoreUnavailable, err)
	}

	return &co, nil
}

func (p *Pipeline) checkSlotOpen(ctx context.Context, date string, sport catalog.Sport, slotID string) error {
	a, err := p.resolver.Resolve(ctx, date, string(sport))
	if err != nil {
		return err
	}
	if a.IsDateBlocked {
		return fmt.Errorf("%w: %s is closed for bookings", ErrSlotUnavailable, date)
	}
	for _, s := range a.Slots {
		if s.SlotID != slotID {
			continue
		}
		switch s.Status {
		case SlotBooked:
			return ErrSlotConflict
		case SlotBlocked:
			return ErrSlotUnavailable
		}
	}
	return nil
}

// Complete applies the payment callback for a checkout. A failed outcome
// drops the draft and saves nothing. A successful one saves the booking and
// hands it to the notifier; notification problems never fail the booking.
func (p *Pipeline) Complete(ctx context.Context, bookingID string, out payment.Outcome) (*Confirmation, error) {
	if bookingID == "" {
		return nil, fieldError("booking_id", "Booking id is required")
	}

	switch out.Status {
	case payment.OutcomeSuccess, payment.OutcomeFailed:
	default:
		return nil, fieldError("status", "Unknown payment status")
	}

	co, err := p.checkouts.Get(ctx, bookingID)
	if err != nil {
		if !errors.Is(err, ErrCheckoutNotFound) {
			err = fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		if out.Status == payment.OutcomeSuccess {
			return p.completeWithoutCheckout(ctx, bookingID, out, err)
		}
		return nil, err
	}

	if out.Status == payment.OutcomeFailed {
		reason := out.Reason
		if reason == "" {
			reason = "payment cancelled by user"
		}
		p.dropCheckout(ctx, bookingID)
		p.events.record(ctx, bookingID, EventBookingPaymentFailed, map[string]any{
			"reason":   reason,
			"order_id": co.Order.ID,
		})
		return nil, fmt.Errorf("%w: %s", ErrPaymentFailed, reason)
	}

	rcpt, err := p.gateway.Verify(ctx, co.Order, out)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPaymentFailed, err)
	}

	b := co.booking(*rcpt)
	created, err := p.persist(ctx, b)
	if err != nil {
		if conf, ok := p.savedByTwin(ctx, b, err); ok {
			p.dropCheckout(ctx, bookingID)
			return conf, nil
		}
		return nil, p.persistFailed(ctx, b, err)
	}

	p.dropCheckout(ctx, bookingID)
	p.resolver.Invalidate(ctx, created.Date)
	p.events.record(ctx, created.BookingID, EventBookingConfirmed, map[string]any{
		"sport":      created.SportType,
		"date":       created.Date,
		"time_slot":  created.TimeSlot,
		"amount":     created.Amount,
		"payment_id": rcpt.PaymentID,
	})

	conf := &Confirmation{Booking: *created}
	receipt, err := p.notifier.Enqueue(ctx, *created)
	if err != nil {
		log.Printf("booking %s confirmed but notifications not scheduled: %v",
			created.BookingID, fmt.Errorf("%w: %w", ErrNotificationFailure, err))
		return conf, nil
	}
	conf.WhatsAppURL = receipt.MessageURI
	conf.Channels = receipt.Channels
	return conf, nil
}

// completeWithoutCheckout handles a success callback whose draft is gone:
// either a repeated callback for a saved booking, or a draft that expired
// while the customer was paying.
func (p *Pipeline) completeWithoutCheckout(ctx context.Context, bookingID string, out payment.Outcome, cause error) (*Confirmation, error) {
	existing, err := p.store.GetBooking(ctx, bookingID)
	if err == nil && paidWith(existing, out.PaymentID) {
		return &Confirmation{Booking: *existing, Replayed: true}, nil
	}

	p.events.record(ctx, bookingID, EventBookingPartialFailed, map[string]any{
		"payment_id": out.PaymentID,
		"order_id":   out.OrderID,
		"error":      cause.Error(),
	})
	p.alert(ctx, fmt.Sprintf("Payment %s received for booking %s but its checkout is gone (%v). Refund or rebook manually.",
		out.PaymentID, bookingID, cause))

	return nil, fmt.Errorf("%w: %w", ErrPartialFailure, cause)
}

// savedByTwin reports whether a conflicting write was a copy of this same
// callback that got there first, in which case the booking already stands.
func (p *Pipeline) savedByTwin(ctx context.Context, b Booking, err error) (*Confirmation, bool) {
	if !errors.Is(err, ErrSlotConflict) && !errors.Is(err, ErrDuplicateBookingID) {
		return nil, false
	}
	if b.RazorpayPaymentID == nil {
		return nil, false
	}
	existing, gerr := p.store.GetBooking(ctx, b.BookingID)
	if gerr != nil || !paidWith(existing, *b.RazorpayPaymentID) {
		return nil, false
	}
	log.Printf("duplicate success callback booking=%s payment=%s", b.BookingID, *b.RazorpayPaymentID)
	return &Confirmation{Booking: *existing, Replayed: true}, true
}

func paidWith(b *Booking, paymentID string) bool {
	return b.RazorpayPaymentID != nil && *b.RazorpayPaymentID == paymentID
}

func (p *Pipeline) persist(ctx context.Context, b Booking) (*Booking, error) {
	var created *Booking

	write := func(lockCtx context.Context) error {
		// re-check inside the critical section
		booked, err := p.store.ListBookedSlotIDs(lockCtx, b.Date, string(b.SportType))
		if err != nil {
			return fmt.Errorf("check booked slots: %w", err)
		}
		for _, id := range booked {
			if id == b.TimeSlot {
				return ErrSlotConflict
			}
		}

		created, err = p.store.InsertBooking(lockCtx, b)
		return err
	}

	var err error
	for attempt := 0; attempt < lockAttempts; attempt++ {
		err = p.locker.WithSlotLock(ctx, b.SlotKey(), write)
		if !errors.Is(err, redisclient.ErrLockNotAcquired) {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (p *Pipeline) persistFailed(ctx context.Context, b Booking, err error) error {
	paymentID := ""
	if b.RazorpayPaymentID != nil {
		paymentID = *b.RazorpayPaymentID
	}

	p.events.record(ctx, b.BookingID, EventBookingPartialFailed, map[string]any{
		"payment_id": paymentID,
		"slot":       b.SlotKey(),
		"error":      err.Error(),
	})

	if errors.Is(err, ErrSlotConflict) {
		p.alert(ctx, fmt.Sprintf("Payment %s for booking %s (%s) hit an already booked slot. Refund needed.",
			paymentID, b.BookingID, b.SlotKey()))
		return err
	}

	// the draft survives, so the same callback can be retried once the lock frees up
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		p.alert(ctx, fmt.Sprintf("Payment %s for booking %s (%s) could not take the slot lock. Waiting for a retry.",
			paymentID, b.BookingID, b.SlotKey()))
		return err
	}

	p.alert(ctx, fmt.Sprintf("Payment %s for booking %s (%s) succeeded but saving failed: %v",
		paymentID, b.BookingID, b.SlotKey(), err))
	return fmt.Errorf("%w: %w", ErrPartialFailure, err)
}

func (p *Pipeline) dropCheckout(ctx context.Context, bookingID string) {
	if err := p.checkouts.Delete(ctx, bookingID); err != nil {
		log.Printf("failed to drop checkout %s: %v", bookingID, err)
	}
}

func (p *Pipeline) alert(ctx context.Context, text string) {
	if p.alerter == nil {
		log.Printf("alert: %s", text)
		return
	}
	if err := p.alerter.Alert(ctx, text); err != nil {
		log.Printf("failed to send alert %q: %v", text, err)
	}
}
