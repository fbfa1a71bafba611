package booking

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/hackgods/turf-booking/internal/auth"
	"github.com/hackgods/turf-booking/internal/catalog"
	"github.com/hackgods/turf-booking/internal/events"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
	exportPageSize  = 500
)

// Admin holds the operations behind the admin dashboard. Every call takes
// the caller's session and refuses anyone who is not an admin.
type Admin struct {
	store    Store
	resolver *Resolver
	events   *eventLog
	loc      *time.Location
	now      func() time.Time
}

func NewAdmin(store Store, resolver *Resolver, publisher events.Publisher, loc *time.Location) *Admin {
	if resolver == nil {
		resolver = NewResolver(store, nil)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Admin{
		store:    store,
		resolver: resolver,
		events:   newEventLog(store, publisher),
		loc:      loc,
		now:      time.Now,
	}
}

func (a *Admin) today() string {
	return a.now().In(a.loc).Format(time.DateOnly)
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func (a *Admin) BlockSlot(ctx context.Context, sess auth.Session, in BlockSlotInput) (*BlockedSlot, error) {
	if err := sess.RequireAdmin(); err != nil {
		return nil, err
	}
	in.Date = strings.TrimSpace(in.Date)
	in.TimeSlot = strings.TrimSpace(in.TimeSlot)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	created, err := a.store.InsertBlockedSlot(ctx, BlockedSlot{
		Date:      in.Date,
		TimeSlot:  in.TimeSlot,
		SportType: catalog.Sport(in.SportType),
		Reason:    optional(in.Reason),
		CreatedAt: a.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("block slot: %w: %w", ErrStoreUnavailable, err)
	}

	a.resolver.Invalidate(ctx, created.Date)
	a.events.record(ctx, "", EventSlotBlocked, map[string]any{
		"id":        created.ID,
		"date":      created.Date,
		"sport":     created.SportType,
		"time_slot": created.TimeSlot,
		"by":        sess.Username,
	})
	return created, nil
}

// UnblockSlot soft-deletes one slot block. The row stays for the audit trail.
func (a *Admin) UnblockSlot(ctx context.Context, sess auth.Session, id int64) (*BlockedSlot, error) {
	if err := sess.RequireAdmin(); err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, fieldError("id", "Invalid block id")
	}

	removed, err := a.store.SoftDeleteBlockedSlot(ctx, id, a.now())
	if err != nil {
		if errors.Is(err, ErrBlockNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("unblock slot: %w: %w", ErrStoreUnavailable, err)
	}

	a.resolver.Invalidate(ctx, removed.Date)
	a.events.record(ctx, "", EventSlotUnblocked, map[string]any{
		"id":        removed.ID,
		"date":      removed.Date,
		"sport":     removed.SportType,
		"time_slot": removed.TimeSlot,
		"by":        sess.Username,
	})
	return removed, nil
}

// BlockDate closes a whole day. Blocking an already blocked day returns the
// existing block.
func (a *Admin) BlockDate(ctx context.Context, sess auth.Session, in BlockDateInput) (*BlockedDate, error) {
	if err := sess.RequireAdmin(); err != nil {
		return nil, err
	}
	in.Date = strings.TrimSpace(in.Date)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	created, err := a.store.InsertBlockedDate(ctx, BlockedDate{
		Date:      in.Date,
		Reason:    optional(in.Reason),
		CreatedAt: a.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("block date: %w: %w", ErrStoreUnavailable, err)
	}

	a.resolver.Invalidate(ctx, created.Date)
	a.events.record(ctx, "", EventDateBlocked, map[string]any{
		"id":   created.ID,
		"date": created.Date,
		"by":   sess.Username,
	})
	return created, nil
}

func (a *Admin) UnblockDate(ctx context.Context, sess auth.Session, date string) (*BlockedDate, error) {
	if err := sess.RequireAdmin(); err != nil {
		return nil, err
	}
	if err := checkDate(date); err != nil {
		return nil, err
	}

	removed, err := a.store.SoftDeleteBlockedDate(ctx, date, a.now())
	if err != nil {
		if errors.Is(err, ErrBlockNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("unblock date: %w: %w", ErrStoreUnavailable, err)
	}

	a.resolver.Invalidate(ctx, date)
	a.events.record(ctx, "", EventDateUnblocked, map[string]any{
		"id":   removed.ID,
		"date": removed.Date,
		"by":   sess.Username,
	})
	return removed, nil
}

// ListBlocks returns the active blocks for one date.
func (a *Admin) ListBlocks(ctx context.Context, sess auth.Session, date string) (*Blocks, error) {
	if err := sess.RequireAdmin(); err != nil {
		return nil, err
	}
	if err := checkDate(date); err != nil {
		return nil, err
	}

	out := &Blocks{Date: date}

	day, err := a.store.GetActiveBlockedDate(ctx, date)
	switch {
	case err == nil:
		out.Day = day
	case !errors.Is(err, ErrBlockNotFound):
		return nil, fmt.Errorf("load blocked date: %w: %w", ErrStoreUnavailable, err)
	}

	slots, err := a.store.ListActiveBlockedSlots(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("load blocked slots: %w: %w", ErrStoreUnavailable, err)
	}
	if slots == nil {
		slots = []BlockedSlot{}
	}
	out.Slots = slots
	return out, nil
}

// EditAmount overrides the recorded price of a booking, e.g. after a discount.
func (a *Admin) EditAmount(ctx context.Context, sess auth.Session, bookingID string, amount int64) (*Booking, error) {
	if err := sess.RequireAdmin(); err != nil {
		return nil, err
	}
	if amount < 0 {
		return nil, fieldError("amount", "Amount cannot be negative")
	}

	before, err := a.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	updated, err := a.store.UpdateBooking(ctx, bookingID, BookingUpdate{Amount: &amount})
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update amount: %w: %w", ErrStoreUnavailable, err)
	}

	a.events.record(ctx, bookingID, EventBookingAmountEdited, map[string]any{
		"from": before.Amount,
		"to":   amount,
		"by":   sess.Username,
	})
	return updated, nil
}

// CancelBooking marks a pending or paid booking cancelled, which frees its
// slot. Refunds happen outside this system.
func (a *Admin) CancelBooking(ctx context.Context, sess auth.Session, bookingID string) (*Booking, error) {
	if err := sess.RequireAdmin(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(bookingID) == "" {
		return nil, fieldError("booking_id", "Booking id is required")
	}

	updated, err := a.store.UpdateBookingStatus(ctx, bookingID,
		[]PaymentStatus{StatusPending, StatusSuccess}, StatusCancelled)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) || errors.Is(err, ErrInvalidStatusTransition) {
			return nil, err
		}
		return nil, fmt.Errorf("cancel booking: %w: %w", ErrStoreUnavailable, err)
	}

	a.resolver.Invalidate(ctx, updated.Date)
	a.events.record(ctx, bookingID, EventBookingCancelled, map[string]any{
		"slot":   updated.SlotKey(),
		"amount": updated.Amount,
		"by":     sess.Username,
	})
	return updated, nil
}

func (a *Admin) GetBooking(ctx context.Context, sess auth.Session, bookingID string) (*Booking, error) {
	if err := sess.RequireAdmin(); err != nil {
		return nil, err
	}
	return a.getBooking(ctx, bookingID)
}

func (a *Admin) getBooking(ctx context.Context, bookingID string) (*Booking, error) {
	if strings.TrimSpace(bookingID) == "" {
		return nil, fieldError("booking_id", "Booking id is required")
	}
	b, err := a.store.GetBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load booking: %w: %w", ErrStoreUnavailable, err)
	}
	return b, nil
}

type BookingPage struct {
	Bookings []Booking
	Total    int
	Limit    int
	Offset   int
}

func (f BookingFilter) check() (BookingFilter, error) {
	f.Date = strings.TrimSpace(f.Date)
	f.Search = strings.TrimSpace(f.Search)
	if f.Date != "" {
		if err := checkDate(f.Date); err != nil {
			return f, err
		}
	}
	if f.Status != "" && !f.Status.Valid() {
		return f, fieldError("status", "Unknown payment status")
	}
	if f.Offset < 0 {
		return f, fieldError("offset", "Offset cannot be negative")
	}
	switch {
	case f.Limit <= 0:
		f.Limit = defaultPageSize
	case f.Limit > maxPageSize:
		f.Limit = maxPageSize
	}
	return f, nil
}

// ListBookings returns bookings newest first, narrowed by the filter.
func (a *Admin) ListBookings(ctx context.Context, sess auth.Session, f BookingFilter) (*BookingPage, error) {
	if err := sess.RequireAdmin(); err != nil {
		return nil, err
	}
	f, err := f.check()
	if err != nil {
		return nil, err
	}

	list, total, err := a.store.ListBookings(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w: %w", ErrStoreUnavailable, err)
	}
	if list == nil {
		list = []Booking{}
	}
	return &BookingPage{Bookings: list, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

// Stats summarises the given day, or today in the turf's timezone when date is empty.
func (a *Admin) Stats(ctx context.Context, sess auth.Session, date string) (*Stats, error) {
	if err := sess.RequireAdmin(); err != nil {
		return nil, err
	}
	if date == "" {
		date = a.today()
	}
	if err := checkDate(date); err != nil {
		return nil, err
	}

	st, err := a.store.Stats(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("load stats: %w: %w", ErrStoreUnavailable, err)
	}
	st.Date = date
	return &st, nil
}

var exportHeader = []string{
	"booking_id", "full_name", "mobile", "email", "team_name", "sport_type",
	"date", "time_slot", "amount", "payment_status", "razorpay_payment_id", "created_at",
}

// ExportBookings writes every booking matching the filter as CSV. Limit and
// Offset on the filter are ignored.
func (a *Admin) ExportBookings(ctx context.Context, sess auth.Session, f BookingFilter, w io.Writer) error {
	if err := sess.RequireAdmin(); err != nil {
		return err
	}
	f.Limit, f.Offset = 0, 0
	f, err := f.check()
	if err != nil {
		return err
	}
	f.Limit = exportPageSize

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for {
		list, total, err := a.store.ListBookings(ctx, f)
		if err != nil {
			return fmt.Errorf("export bookings: %w: %w", ErrStoreUnavailable, err)
		}
		for _, b := range list {
			if err := cw.Write(exportRow(b, a.loc)); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
		}
		f.Offset += len(list)
		if len(list) == 0 || f.Offset >= total {
			break
		}
	}

	cw.Flush()
	return cw.Error()
}

func exportRow(b Booking, loc *time.Location) []string {
	deref := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}
	return []string{
		b.BookingID,
		b.FullName,
		b.Mobile,
		deref(b.Email),
		deref(b.TeamName),
		string(b.SportType),
		b.Date,
		b.TimeSlot,
		strconv.FormatInt(b.Amount, 10),
		string(b.PaymentStatus),
		deref(b.RazorpayPaymentID),
		b.CreatedAt.In(loc).Format(time.RFC3339),
	}
}
