package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/turf-booking/internal/catalog"
	"github.com/hackgods/turf-booking/internal/payment"
	redisclient "github.com/hackgods/turf-booking/internal/redis"
)

func paid(co *Checkout) payment.Outcome {
	return payment.Outcome{Status: payment.OutcomeSuccess, OrderID: co.Order.ID}
}

func TestCheckout_PricesBySport(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	form := validForm()
	co, err := f.pipeline.Checkout(ctx, form)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), co.Amount)
	assert.Equal(t, int64(100000), co.Order.AmountMinor)
	assert.Equal(t, co.BookingID, co.Order.Receipt)

	form.SportType = "badminton"
	co, err = f.pipeline.Checkout(ctx, form)
	require.NoError(t, err)
	assert.Equal(t, int64(600), co.Amount)
}

func TestCheckout_ValidationStopsEarly(t *testing.T) {
	f := newPipelineFixture(t, func(d *PipelineDeps) { d.Gateway = failingGateway{} })

	form := validForm()
	form.FullName = "A"
	form.Mobile = "12345"
	form.Email = "not-an-email"

	_, err := f.pipeline.Checkout(context.Background(), form)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Name must be at least 2 characters", verr.Fields["full_name"])
	assert.Equal(t, "Invalid mobile number", verr.Fields["mobile"])
	assert.Equal(t, "Invalid email", verr.Fields["email"])
	assert.Zero(t, f.checkouts.len())
}

func TestCheckout_RejectsTakenSlots(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	seedBooking(t, f.store, "SPT1", "2025-03-10", catalog.Football, "18:00-19:00", StatusSuccess)
	_, err := f.store.InsertBlockedSlot(ctx, BlockedSlot{Date: "2025-03-10", SportType: catalog.Football, TimeSlot: "19:00-20:00"})
	require.NoError(t, err)
	_, err = f.store.InsertBlockedDate(ctx, BlockedDate{Date: "2025-03-12"})
	require.NoError(t, err)

	form := validForm()
	_, err = f.pipeline.Checkout(ctx, form)
	assert.ErrorIs(t, err, ErrSlotConflict)

	form.TimeSlot = "19:00-20:00"
	_, err = f.pipeline.Checkout(ctx, form)
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	form.Date = "2025-03-12"
	_, err = f.pipeline.Checkout(ctx, form)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestCheckout_GatewayDown(t *testing.T) {
	f := newPipelineFixture(t, func(d *PipelineDeps) { d.Gateway = failingGateway{} })

	_, err := f.pipeline.Checkout(context.Background(), validForm())
	assert.ErrorIs(t, err, ErrPaymentFailed)
	assert.ErrorIs(t, err, payment.ErrGateway)
	assert.Zero(t, f.checkouts.len(), "draft dropped")
}

func TestComplete_Success(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	form := validForm()
	form.Email = "asha@example.com"
	form.TeamName = "Night Owls"

	co, err := f.pipeline.Checkout(ctx, form)
	require.NoError(t, err)

	conf, err := f.pipeline.Complete(ctx, co.BookingID, paid(co))
	require.NoError(t, err)

	assert.Equal(t, co.BookingID, conf.Booking.BookingID)
	assert.Equal(t, StatusSuccess, conf.Booking.PaymentStatus)
	assert.Equal(t, int64(1000), conf.Booking.Amount)
	require.NotNil(t, conf.Booking.RazorpayPaymentID)
	assert.Contains(t, *conf.Booking.RazorpayPaymentID, "pay_test_")
	require.NotNil(t, conf.Booking.TeamName)
	assert.Equal(t, "Night Owls", *conf.Booking.TeamName)
	assert.Equal(t, []string{"email", "whatsapp"}, conf.Channels)
	assert.NotEmpty(t, conf.WhatsAppURL)

	stored, err := f.store.GetBooking(ctx, co.BookingID)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, stored.PaymentStatus)
	assert.Zero(t, f.checkouts.len())
	assert.Contains(t, f.publisher.keys, "booking.confirmed")

	a, err := f.pipeline.resolver.Resolve(ctx, form.Date, form.SportType)
	require.NoError(t, err)
	assert.Equal(t, SlotBooked, statusBySlot(a)[form.TimeSlot])
}

func TestComplete_EmailOnlyWhenGiven(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	co, err := f.pipeline.Checkout(ctx, validForm())
	require.NoError(t, err)

	conf, err := f.pipeline.Complete(ctx, co.BookingID, paid(co))
	require.NoError(t, err)

	assert.Nil(t, conf.Booking.Email)
	assert.Equal(t, []string{"whatsapp"}, conf.Channels)
	require.Len(t, f.notifier.queued, 1)
}

func TestComplete_FailedPaymentPersistsNothing(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	co, err := f.pipeline.Checkout(ctx, validForm())
	require.NoError(t, err)

	_, err = f.pipeline.Complete(ctx, co.BookingID, payment.Outcome{Status: payment.OutcomeFailed, Reason: "card declined"})
	require.ErrorIs(t, err, ErrPaymentFailed)
	assert.Contains(t, err.Error(), "card declined")

	_, err = f.store.GetBooking(ctx, co.BookingID)
	assert.ErrorIs(t, err, ErrBookingNotFound)
	assert.Empty(t, f.notifier.queued)
	assert.Contains(t, f.publisher.keys, "booking.payment_failed")

	// the customer can try again straight away
	again, err := f.pipeline.Checkout(ctx, validForm())
	require.NoError(t, err)
	assert.NotEqual(t, co.BookingID, again.BookingID)

	_, err = f.pipeline.Complete(ctx, again.BookingID, paid(again))
	require.NoError(t, err)
}

func TestComplete_UnknownCheckout(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	_, err := f.pipeline.Complete(ctx, "SPTMISSING", payment.Outcome{Status: payment.OutcomeFailed})
	assert.ErrorIs(t, err, ErrCheckoutNotFound)
	assert.Zero(t, f.alerter.count())

	// money taken for a draft that no longer exists needs a human
	_, err = f.pipeline.Complete(ctx, "SPTMISSING", payment.Outcome{Status: payment.OutcomeSuccess, PaymentID: "pay_1"})
	assert.ErrorIs(t, err, ErrPartialFailure)
	assert.ErrorIs(t, err, ErrCheckoutNotFound)
	assert.Equal(t, 1, f.alerter.count())
}

func TestComplete_RepeatedCallbackIsReplayed(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	co, err := f.pipeline.Checkout(ctx, validForm())
	require.NoError(t, err)

	first, err := f.pipeline.Complete(ctx, co.BookingID, paid(co))
	require.NoError(t, err)

	out := paid(co)
	out.PaymentID = *first.Booking.RazorpayPaymentID
	second, err := f.pipeline.Complete(ctx, co.BookingID, out)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Booking.BookingID, second.Booking.BookingID)
	assert.Len(t, f.notifier.queued, 1)
}

func TestComplete_RejectsUnverifiedPayment(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	co, err := f.pipeline.Checkout(ctx, validForm())
	require.NoError(t, err)

	_, err = f.pipeline.Complete(ctx, co.BookingID, payment.Outcome{Status: payment.OutcomeSuccess, OrderID: "order_other"})
	assert.ErrorIs(t, err, ErrPaymentFailed)
	assert.ErrorIs(t, err, payment.ErrOrderMismatch)

	_, err = f.store.GetBooking(ctx, co.BookingID)
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestComplete_SaveFailureIsPartial(t *testing.T) {
	f := newPipelineFixture(t, withStore(func(s Store) Store {
		return &flakyStore{Store: s, insertErr: errors.New("disk full")}
	}))
	ctx := context.Background()

	co, err := f.pipeline.Checkout(ctx, validForm())
	require.NoError(t, err)

	_, err = f.pipeline.Complete(ctx, co.BookingID, paid(co))
	require.ErrorIs(t, err, ErrPartialFailure)
	assert.NotErrorIs(t, err, ErrSlotConflict)
	assert.Equal(t, 1, f.alerter.count())
	assert.Contains(t, f.publisher.keys, "booking.partial_failure")
	assert.Empty(t, f.notifier.queued)
}

func TestComplete_LockUnavailableAsksForRetry(t *testing.T) {
	f := newPipelineFixture(t, func(d *PipelineDeps) { d.Locker = busyLocker{} })
	ctx := context.Background()

	co, err := f.pipeline.Checkout(ctx, validForm())
	require.NoError(t, err)

	_, err = f.pipeline.Complete(ctx, co.BookingID, paid(co))
	assert.ErrorIs(t, err, redisclient.ErrLockNotAcquired)
	assert.NotErrorIs(t, err, ErrPartialFailure)
	assert.Equal(t, 1, f.alerter.count())

	// the draft is kept for the retry
	_, err = f.checkouts.Get(ctx, co.BookingID)
	assert.NoError(t, err)
}

func TestComplete_DuplicateCallbackRacingTheFirst(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	co, err := f.pipeline.Checkout(ctx, validForm())
	require.NoError(t, err)
	draft, err := f.checkouts.Get(ctx, co.BookingID)
	require.NoError(t, err)

	out := paid(co)
	out.PaymentID = "pay_same"
	first, err := f.pipeline.Complete(ctx, co.BookingID, out)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	// a second copy of the callback that loaded the draft before the first dropped it
	require.NoError(t, f.checkouts.Save(ctx, *draft, time.Minute))

	second, err := f.pipeline.Complete(ctx, co.BookingID, out)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Booking.BookingID, second.Booking.BookingID)
	assert.Zero(t, f.alerter.count(), "no refund for a payment that was booked")
	assert.NotContains(t, f.publisher.keys, "booking.partial_failure")
	assert.Len(t, f.notifier.queued, 1)
	assert.Zero(t, f.checkouts.len())

	// a different payment for the same reference is still a conflict
	require.NoError(t, f.checkouts.Save(ctx, *draft, time.Minute))
	out.PaymentID = "pay_other"
	_, err = f.pipeline.Complete(ctx, co.BookingID, out)
	assert.ErrorIs(t, err, ErrSlotConflict)
	assert.Equal(t, 1, f.alerter.count())
}

func TestComplete_NotificationFailureKeepsBooking(t *testing.T) {
	f := newPipelineFixture(t)
	f.notifier.err = errors.New("queue down")
	ctx := context.Background()

	co, err := f.pipeline.Checkout(ctx, validForm())
	require.NoError(t, err)

	conf, err := f.pipeline.Complete(ctx, co.BookingID, paid(co))
	require.NoError(t, err)
	assert.Empty(t, conf.WhatsAppURL)

	_, err = f.store.GetBooking(ctx, co.BookingID)
	assert.NoError(t, err)
}

func TestComplete_ConcurrentPaymentsForOneSlot(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	const racers = 5
	checkouts := make([]*Checkout, racers)
	for i := range checkouts {
		co, err := f.pipeline.Checkout(ctx, validForm())
		require.NoError(t, err)
		checkouts[i] = co
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for _, co := range checkouts {
		wg.Add(1)
		go func(co *Checkout) {
			defer wg.Done()
			_, err := f.pipeline.Complete(ctx, co.BookingID, paid(co))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrSlotConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(co)
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, racers-1, conflicts)
	assert.Equal(t, racers-1, f.alerter.count(), "each losing payment needs a refund")
}
