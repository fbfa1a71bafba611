package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/hackgods/turf-booking/internal/catalog"
)

// GormStore is the embedded store, backed by SQLite through gorm.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

type bookingRow struct {
	ID                int64  `gorm:"primaryKey"`
	BookingID         string `gorm:"not null;uniqueIndex:bookings_booking_id_key"`
	FullName          string `gorm:"not null"`
	Mobile            string `gorm:"not null"`
	Email             *string
	TeamName          *string
	SportType         string `gorm:"not null"`
	Date              string `gorm:"not null;index:bookings_date_idx"`
	TimeSlot          string `gorm:"not null"`
	Amount            int64  `gorm:"not null"`
	PaymentStatus     string `gorm:"not null;default:pending"`
	RazorpayOrderID   *string
	RazorpayPaymentID *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (bookingRow) TableName() string { return "bookings" }

type blockedSlotRow struct {
	ID        int64  `gorm:"primaryKey"`
	Date      string `gorm:"not null;index:blocked_slots_lookup_idx"`
	TimeSlot  string `gorm:"not null"`
	SportType string `gorm:"not null;index:blocked_slots_lookup_idx"`
	Reason    *string
	CreatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (blockedSlotRow) TableName() string { return "blocked_slots" }

type blockedDateRow struct {
	ID        int64  `gorm:"primaryKey"`
	Date      string `gorm:"not null"`
	Reason    *string
	CreatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (blockedDateRow) TableName() string { return "blocked_dates" }

type eventLogRow struct {
	ID        int64  `gorm:"primaryKey"`
	EventType string `gorm:"not null"`
	BookingID *string
	Payload   datatypes.JSON
	CreatedAt time.Time
}

func (eventLogRow) TableName() string { return "event_logs" }

// AutoMigrate creates the tables plus the partial unique indexes gorm tags cannot express.
func (s *GormStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&bookingRow{}, &blockedSlotRow{}, &blockedDateRow{}, &eventLogRow{}); err != nil {
		return fmt.Errorf("automigrate booking tables: %w", err)
	}

	stmts := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS bookings_active_slot_key
			ON bookings (date, time_slot, sport_type) WHERE payment_status = 'success'`,
		`CREATE UNIQUE INDEX IF NOT EXISTS blocked_dates_active_key
			ON blocked_dates (date) WHERE deleted_at IS NULL`,
	}
	for _, stmt := range stmts {
		if err := s.db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

func (r bookingRow) toModel() Booking {
	return Booking{
		ID:                r.ID,
		BookingID:         r.BookingID,
		FullName:          r.FullName,
		Mobile:            r.Mobile,
		Email:             r.Email,
		TeamName:          r.TeamName,
		SportType:         catalog.Sport(r.SportType),
		Date:              r.Date,
		TimeSlot:          r.TimeSlot,
		Amount:            r.Amount,
		PaymentStatus:     PaymentStatus(r.PaymentStatus),
		RazorpayOrderID:   r.RazorpayOrderID,
		RazorpayPaymentID: r.RazorpayPaymentID,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func (r blockedSlotRow) toModel() BlockedSlot {
	bs := BlockedSlot{
		ID:        r.ID,
		Date:      r.Date,
		TimeSlot:  r.TimeSlot,
		SportType: catalog.Sport(r.SportType),
		Reason:    r.Reason,
		CreatedAt: r.CreatedAt,
	}
	if r.DeletedAt.Valid {
		t := r.DeletedAt.Time
		bs.DeletedAt = &t
	}
	return bs
}

func (r blockedDateRow) toModel() BlockedDate {
	d := BlockedDate{
		ID:        r.ID,
		Date:      r.Date,
		Reason:    r.Reason,
		CreatedAt: r.CreatedAt,
	}
	if r.DeletedAt.Valid {
		t := r.DeletedAt.Time
		d.DeletedAt = &t
	}
	return d
}

// Availability

func (s *GormStore) GetActiveBlockedDate(ctx context.Context, date string) (*BlockedDate, error) {
	var row blockedDateRow
	err := s.db.WithContext(ctx).Where("date = ?", date).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBlockNotFound
		}
		return nil, err
	}
	d := row.toModel()
	return &d, nil
}

func (s *GormStore) ListBookedSlotIDs(ctx context.Context, date, sport string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&bookingRow{}).
		Where("date = ? AND sport_type = ? AND payment_status = ?", date, sport, StatusSuccess).
		Pluck("time_slot", &ids).Error
	return ids, err
}

func (s *GormStore) ListBlockedSlotIDs(ctx context.Context, date, sport string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&blockedSlotRow{}).
		Distinct("time_slot").
		Where("date = ? AND sport_type = ?", date, sport).
		Pluck("time_slot", &ids).Error
	return ids, err
}

// Bookings

func (s *GormStore) InsertBooking(ctx context.Context, b Booking) (*Booking, error) {
	row := bookingRow{
		BookingID:         b.BookingID,
		FullName:          b.FullName,
		Mobile:            b.Mobile,
		Email:             b.Email,
		TeamName:          b.TeamName,
		SportType:         string(b.SportType),
		Date:              b.Date,
		TimeSlot:          b.TimeSlot,
		Amount:            b.Amount,
		PaymentStatus:     string(b.PaymentStatus),
		RazorpayOrderID:   b.RazorpayOrderID,
		RazorpayPaymentID: b.RazorpayPaymentID,
	}

	err := s.db.WithContext(ctx).Create(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, s.classifyDuplicate(ctx, b.BookingID)
		}
		return nil, fmt.Errorf("insert booking: %w", err)
	}

	created := row.toModel()
	return &created, nil
}

// classifyDuplicate tells the two unique indexes on bookings apart; the sqlite
// driver does not report which one fired.
func (s *GormStore) classifyDuplicate(ctx context.Context, bookingID string) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&bookingRow{}).Where("booking_id = ?", bookingID).Count(&n).Error; err != nil {
		return fmt.Errorf("classify duplicate booking: %w", err)
	}
	if n > 0 {
		return ErrDuplicateBookingID
	}
	return ErrSlotConflict
}

func (s *GormStore) GetBooking(ctx context.Context, bookingID string) (*Booking, error) {
	var row bookingRow
	err := s.db.WithContext(ctx).Where("booking_id = ?", bookingID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	b := row.toModel()
	return &b, nil
}

func (s *GormStore) ListBookings(ctx context.Context, f BookingFilter) ([]Booking, int, error) {
	filtered := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&bookingRow{})
		if f.Date != "" {
			q = q.Where("date = ?", f.Date)
		}
		if f.Status != "" {
			q = q.Where("payment_status = ?", f.Status)
		}
		if f.Search != "" {
			like := "%" + escapeLike(f.Search) + "%"
			q = q.Where(`(mobile LIKE ? ESCAPE '\' OR booking_id LIKE ? ESCAPE '\')`, like, like)
		}
		return q
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	var rows []bookingRow
	err := filtered().Order("created_at DESC").Order("id DESC").Limit(limit).Offset(f.Offset).Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}

	out := make([]Booking, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, int(total), nil
}

func (s *GormStore) UpdateBooking(ctx context.Context, bookingID string, upd BookingUpdate) (*Booking, error) {
	changes := map[string]any{"updated_at": time.Now()}
	if upd.Amount != nil {
		changes["amount"] = *upd.Amount
	}
	if upd.PaymentStatus != nil {
		changes["payment_status"] = string(*upd.PaymentStatus)
	}

	res := s.db.WithContext(ctx).Model(&bookingRow{}).Where("booking_id = ?", bookingID).Updates(changes)
	if res.Error != nil {
		return nil, fmt.Errorf("update booking: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrBookingNotFound
	}
	return s.GetBooking(ctx, bookingID)
}

func (s *GormStore) UpdateBookingStatus(ctx context.Context, bookingID string, from []PaymentStatus, to PaymentStatus) (*Booking, error) {
	allowed := make([]string, len(from))
	for i, st := range from {
		allowed[i] = string(st)
	}

	res := s.db.WithContext(ctx).Model(&bookingRow{}).
		Where("booking_id = ? AND payment_status IN ?", bookingID, allowed).
		Updates(map[string]any{"payment_status": string(to), "updated_at": time.Now()})
	if res.Error != nil {
		return nil, fmt.Errorf("update booking status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetBooking(ctx, bookingID); err != nil {
			return nil, err
		}
		return nil, ErrInvalidStatusTransition
	}
	return s.GetBooking(ctx, bookingID)
}

// Blocks

func (s *GormStore) InsertBlockedSlot(ctx context.Context, bs BlockedSlot) (*BlockedSlot, error) {
	row := blockedSlotRow{
		Date:      bs.Date,
		TimeSlot:  bs.TimeSlot,
		SportType: string(bs.SportType),
		Reason:    bs.Reason,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("insert blocked slot: %w", err)
	}
	created := row.toModel()
	return &created, nil
}

func (s *GormStore) InsertBlockedDate(ctx context.Context, d BlockedDate) (*BlockedDate, error) {
	row := blockedDateRow{Date: d.Date, Reason: d.Reason}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return s.GetActiveBlockedDate(ctx, d.Date)
		}
		return nil, fmt.Errorf("insert blocked date: %w", err)
	}
	created := row.toModel()
	return &created, nil
}

func (s *GormStore) ListActiveBlockedSlots(ctx context.Context, date string) ([]BlockedSlot, error) {
	var rows []blockedSlotRow
	err := s.db.WithContext(ctx).Where("date = ?", date).
		Order("sport_type").Order("time_slot").Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]BlockedSlot, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *GormStore) SoftDeleteBlockedSlot(ctx context.Context, id int64, at time.Time) (*BlockedSlot, error) {
	var row blockedSlotRow
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBlockNotFound
		}
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&row).Update("deleted_at", at).Error; err != nil {
		return nil, fmt.Errorf("unblock slot: %w", err)
	}
	row.DeletedAt = gorm.DeletedAt{Time: at, Valid: true}
	deleted := row.toModel()
	return &deleted, nil
}

func (s *GormStore) SoftDeleteBlockedDate(ctx context.Context, date string, at time.Time) (*BlockedDate, error) {
	var row blockedDateRow
	if err := s.db.WithContext(ctx).Where("date = ?", date).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBlockNotFound
		}
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&row).Update("deleted_at", at).Error; err != nil {
		return nil, fmt.Errorf("unblock date: %w", err)
	}
	row.DeletedAt = gorm.DeletedAt{Time: at, Valid: true}
	deleted := row.toModel()
	return &deleted, nil
}

// Reporting

func (s *GormStore) Stats(ctx context.Context, today string) (Stats, error) {
	var agg struct {
		TodayBookings     int
		TodayRevenue      int64
		ConfirmedBookings int
		TotalBookings     int
		TotalRevenue      int64
	}
	err := s.db.WithContext(ctx).Raw(`
		SELECT
			COALESCE(SUM(CASE WHEN date = ? THEN 1 ELSE 0 END), 0) AS today_bookings,
			COALESCE(SUM(CASE WHEN date = ? THEN amount ELSE 0 END), 0) AS today_revenue,
			COALESCE(SUM(CASE WHEN payment_status = 'success' THEN 1 ELSE 0 END), 0) AS confirmed_bookings,
			COUNT(*) AS total_bookings,
			COALESCE(SUM(amount), 0) AS total_revenue
		FROM bookings
	`, today, today).Scan(&agg).Error
	if err != nil {
		return Stats{}, fmt.Errorf("booking stats: %w", err)
	}
	return Stats{
		Date:              today,
		TodayBookings:     agg.TodayBookings,
		TodayRevenue:      agg.TodayRevenue,
		ConfirmedBookings: agg.ConfirmedBookings,
		TotalBookings:     agg.TotalBookings,
		TotalRevenue:      agg.TotalRevenue,
	}, nil
}

// Event logging

func (s *GormStore) InsertEvent(ctx context.Context, ev EventLog) error {
	row := eventLogRow{
		EventType: ev.EventType,
		BookingID: ev.BookingID,
		Payload:   datatypes.JSON(ev.Payload),
		CreatedAt: ev.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}
