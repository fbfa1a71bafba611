package booking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/turf-booking/internal/catalog"
)

func TestGormStore_OnePaidBookingPerSlot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedBooking(t, s, "SPT1", "2025-03-10", catalog.Cricket, "18:00-19:00", StatusSuccess)

	_, err := s.InsertBooking(ctx, Booking{
		BookingID: "SPT2", FullName: "Ravi", Mobile: "9876543211",
		SportType: catalog.Cricket, Date: "2025-03-10", TimeSlot: "18:00-19:00",
		Amount: 800, PaymentStatus: StatusSuccess,
	})
	assert.ErrorIs(t, err, ErrSlotConflict)

	// unpaid rows do not compete for the slot
	seedBooking(t, s, "SPT3", "2025-03-10", catalog.Cricket, "18:00-19:00", StatusFailed)
	seedBooking(t, s, "SPT4", "2025-03-10", catalog.Football, "18:00-19:00", StatusSuccess)
}

func TestGormStore_DuplicateBookingID(t *testing.T) {
	s := newTestStore(t)
	seedBooking(t, s, "SPT1", "2025-03-10", catalog.Cricket, "18:00-19:00", StatusSuccess)

	_, err := s.InsertBooking(context.Background(), Booking{
		BookingID: "SPT1", FullName: "Ravi", Mobile: "9876543211",
		SportType: catalog.Cricket, Date: "2025-03-11", TimeSlot: "18:00-19:00",
		Amount: 800, PaymentStatus: StatusSuccess,
	})
	assert.ErrorIs(t, err, ErrDuplicateBookingID)
}

func TestGormStore_UpdateBookingStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedBooking(t, s, "SPT1", "2025-03-10", catalog.Cricket, "18:00-19:00", StatusPending)

	b, err := s.UpdateBookingStatus(ctx, "SPT1", []PaymentStatus{StatusPending}, StatusSuccess)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, b.PaymentStatus)

	_, err = s.UpdateBookingStatus(ctx, "SPT1", []PaymentStatus{StatusPending}, StatusFailed)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	_, err = s.UpdateBookingStatus(ctx, "SPTX", []PaymentStatus{StatusPending}, StatusFailed)
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestGormStore_SearchEscapesWildcards(t *testing.T) {
	s := newTestStore(t)
	seedBooking(t, s, "SPT1", "2025-03-10", catalog.Cricket, "18:00-19:00", StatusSuccess)

	list, total, err := s.ListBookings(context.Background(), BookingFilter{Search: "%"})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)
}

func TestGormStore_SoftDeletedBlocksStayAudited(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	bs, err := s.InsertBlockedSlot(ctx, BlockedSlot{Date: "2025-03-10", SportType: catalog.Cricket, TimeSlot: "07:00-08:00"})
	require.NoError(t, err)
	_, err = s.SoftDeleteBlockedSlot(ctx, bs.ID, time.Now())
	require.NoError(t, err)

	active, err := s.ListActiveBlockedSlots(ctx, "2025-03-10")
	require.NoError(t, err)
	assert.Empty(t, active)

	var n int64
	require.NoError(t, s.db.Unscoped().Model(&blockedSlotRow{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestGormStore_InsertEvent(t *testing.T) {
	s := newTestStore(t)
	id := "SPT1"
	require.NoError(t, s.InsertEvent(context.Background(), EventLog{
		EventType: EventBookingConfirmed,
		BookingID: &id,
		Payload:   []byte(`{"amount":800}`),
		CreatedAt: time.Now(),
	}))

	var rows []eventLogRow
	require.NoError(t, s.db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.JSONEq(t, `{"amount":800}`, string(rows[0].Payload))
}
