package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const bookingColumns = `id, booking_id, full_name, mobile, email, team_name, sport_type, date, time_slot,
	amount, payment_status, razorpay_order_id, razorpay_payment_id, created_at, updated_at`

// Helpers

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking

	err := row.Scan(
		&b.ID,
		&b.BookingID,
		&b.FullName,
		&b.Mobile,
		&b.Email,
		&b.TeamName,
		&b.SportType,
		&b.Date,
		&b.TimeSlot,
		&b.Amount,
		&b.PaymentStatus,
		&b.RazorpayOrderID,
		&b.RazorpayPaymentID,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	return &b, nil
}

func scanBlockedSlot(row pgx.Row) (*BlockedSlot, error) {
	var s BlockedSlot

	err := row.Scan(&s.ID, &s.Date, &s.TimeSlot, &s.SportType, &s.Reason, &s.CreatedAt, &s.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBlockNotFound
		}
		return nil, err
	}

	return &s, nil
}

func scanBlockedDate(row pgx.Row) (*BlockedDate, error) {
	var d BlockedDate

	err := row.Scan(&d.ID, &d.Date, &d.Reason, &d.CreatedAt, &d.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBlockNotFound
		}
		return nil, err
	}

	return &d, nil
}

func collectStrings(rows pgx.Rows) ([]string, error) {
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Availability

func (s *PgStore) GetActiveBlockedDate(ctx context.Context, date string) (*BlockedDate, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, date, reason, created_at, deleted_at
		FROM blocked_dates
		WHERE date = $1 AND deleted_at IS NULL
	`, date)
	return scanBlockedDate(row)
}

func (s *PgStore) ListBookedSlotIDs(ctx context.Context, date, sport string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT time_slot
		FROM bookings
		WHERE date = $1 AND sport_type = $2 AND payment_status = 'success'
	`, date, sport)
	if err != nil {
		return nil, err
	}
	return collectStrings(rows)
}

func (s *PgStore) ListBlockedSlotIDs(ctx context.Context, date, sport string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT time_slot
		FROM blocked_slots
		WHERE date = $1 AND sport_type = $2 AND deleted_at IS NULL
	`, date, sport)
	if err != nil {
		return nil, err
	}
	return collectStrings(rows)
}

// Bookings

func (s *PgStore) InsertBooking(ctx context.Context, b Booking) (*Booking, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO bookings (booking_id, full_name, mobile, email, team_name, sport_type, date, time_slot,
			amount, payment_status, razorpay_order_id, razorpay_payment_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
		RETURNING `+bookingColumns,
		b.BookingID, b.FullName, b.Mobile, b.Email, b.TeamName, b.SportType, b.Date, b.TimeSlot,
		b.Amount, b.PaymentStatus, b.RazorpayOrderID, b.RazorpayPaymentID)

	created, err := scanBooking(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			switch pgErr.ConstraintName {
			case "bookings_active_slot_key":
				return nil, ErrSlotConflict
			case "bookings_booking_id_key":
				return nil, ErrDuplicateBookingID
			}
		}
		return nil, fmt.Errorf("insert booking: %w", err)
	}
	return created, nil
}

func (s *PgStore) GetBooking(ctx context.Context, bookingID string) (*Booking, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE booking_id = $1`, bookingID)
	return scanBooking(row)
}

func (s *PgStore) ListBookings(ctx context.Context, f BookingFilter) ([]Booking, int, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.Date != "" {
		add("date = $%d", f.Date)
	}
	if f.Status != "" {
		add("payment_status = $%d", f.Status)
	}
	if f.Search != "" {
		args = append(args, "%"+escapeLike(f.Search)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(mobile ILIKE $%d OR booking_id ILIKE $%d)", n, n))
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM bookings`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	pageArgs := append(args, limit, f.Offset)
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM bookings%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		bookingColumns, clause, len(args)+1, len(args)+2,
	), pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var result []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return result, total, nil
}

func (s *PgStore) UpdateBooking(ctx context.Context, bookingID string, upd BookingUpdate) (*Booking, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE bookings
		SET amount = COALESCE($2, amount),
		    payment_status = COALESCE($3, payment_status),
		    updated_at = now()
		WHERE booking_id = $1
		RETURNING `+bookingColumns,
		bookingID, upd.Amount, upd.PaymentStatus)
	return scanBooking(row)
}

func (s *PgStore) UpdateBookingStatus(ctx context.Context, bookingID string, from []PaymentStatus, to PaymentStatus) (*Booking, error) {
	allowed := make([]string, len(from))
	for i, st := range from {
		allowed[i] = string(st)
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE bookings
		SET payment_status = $2,
		    updated_at = now()
		WHERE booking_id = $1
		  AND payment_status = ANY($3)
		RETURNING `+bookingColumns,
		bookingID, to, allowed)

	updated, err := scanBooking(row)
	if errors.Is(err, ErrBookingNotFound) {
		if _, getErr := s.GetBooking(ctx, bookingID); getErr == nil {
			return nil, ErrInvalidStatusTransition
		}
	}
	return updated, err
}

// Blocks

func (s *PgStore) InsertBlockedSlot(ctx context.Context, bs BlockedSlot) (*BlockedSlot, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO blocked_slots (date, time_slot, sport_type, reason, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING id, date, time_slot, sport_type, reason, created_at, deleted_at
	`, bs.Date, bs.TimeSlot, bs.SportType, bs.Reason)
	return scanBlockedSlot(row)
}

func (s *PgStore) InsertBlockedDate(ctx context.Context, d BlockedDate) (*BlockedDate, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO blocked_dates (date, reason, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (date) WHERE deleted_at IS NULL DO NOTHING
		RETURNING id, date, reason, created_at, deleted_at
	`, d.Date, d.Reason)

	created, err := scanBlockedDate(row)
	if errors.Is(err, ErrBlockNotFound) {
		// already blocked
		return s.GetActiveBlockedDate(ctx, d.Date)
	}
	return created, err
}

func (s *PgStore) ListActiveBlockedSlots(ctx context.Context, date string) ([]BlockedSlot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, date, time_slot, sport_type, reason, created_at, deleted_at
		FROM blocked_slots
		WHERE date = $1 AND deleted_at IS NULL
		ORDER BY sport_type, time_slot, id
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []BlockedSlot
	for rows.Next() {
		bs, err := scanBlockedSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *bs)
	}
	return result, rows.Err()
}

func (s *PgStore) SoftDeleteBlockedSlot(ctx context.Context, id int64, at time.Time) (*BlockedSlot, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE blocked_slots
		SET deleted_at = $2
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING id, date, time_slot, sport_type, reason, created_at, deleted_at
	`, id, at)
	return scanBlockedSlot(row)
}

func (s *PgStore) SoftDeleteBlockedDate(ctx context.Context, date string, at time.Time) (*BlockedDate, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE blocked_dates
		SET deleted_at = $2
		WHERE date = $1 AND deleted_at IS NULL
		RETURNING id, date, reason, created_at, deleted_at
	`, date, at)
	return scanBlockedDate(row)
}

// Reporting

func (s *PgStore) Stats(ctx context.Context, today string) (Stats, error) {
	st := Stats{Date: today}
	err := s.pool.QueryRow(ctx, `
		SELECT
			count(*) FILTER (WHERE date = $1),
			COALESCE(sum(amount) FILTER (WHERE date = $1), 0),
			count(*) FILTER (WHERE payment_status = 'success'),
			count(*),
			COALESCE(sum(amount), 0)
		FROM bookings
	`, today).Scan(&st.TodayBookings, &st.TodayRevenue, &st.ConfirmedBookings, &st.TotalBookings, &st.TotalRevenue)
	if err != nil {
		return Stats{}, fmt.Errorf("booking stats: %w", err)
	}
	return st, nil
}

// Event logging

func (s *PgStore) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, booking_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.BookingID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
