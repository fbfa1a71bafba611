package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hackgods/turf-booking/internal/auth"
	"github.com/hackgods/turf-booking/internal/catalog"
	"github.com/hackgods/turf-booking/internal/db"
	"github.com/hackgods/turf-booking/internal/payment"
	redisclient "github.com/hackgods/turf-booking/internal/redis"
)

var adminSession = auth.Session{UserID: 1, Username: "admin", Role: auth.RoleAdmin, TokenID: "t1"}

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	gdb, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)

	s := NewGormStore(gdb)
	require.NoError(t, s.AutoMigrate())
	return s
}

func seedBooking(t *testing.T, s Store, bookingID, date string, sport catalog.Sport, slot string, status PaymentStatus) *Booking {
	t.Helper()
	amount, err := catalog.Price(sport)
	require.NoError(t, err)

	b, err := s.InsertBooking(context.Background(), Booking{
		BookingID:     bookingID,
		FullName:      "Asha Rao",
		Mobile:        "9876543210",
		SportType:     sport,
		Date:          date,
		TimeSlot:      slot,
		Amount:        amount,
		PaymentStatus: status,
	})
	require.NoError(t, err)
	return b
}

func validForm() BookingForm {
	return BookingForm{
		FullName:  "Asha Rao",
		Mobile:    "9876543210",
		SportType: "football",
		Date:      "2025-03-10",
		TimeSlot:  "18:00-19:00",
	}
}

// flakyStore wraps a real store and fails selected calls.
type flakyStore struct {
	Store
	insertErr error
	readErr   error
}

func (s *flakyStore) InsertBooking(ctx context.Context, b Booking) (*Booking, error) {
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	return s.Store.InsertBooking(ctx, b)
}

func (s *flakyStore) GetActiveBlockedDate(ctx context.Context, date string) (*BlockedDate, error) {
	if s.readErr != nil {
		return nil, s.readErr
	}
	return s.Store.GetActiveBlockedDate(ctx, date)
}

type memCheckouts struct {
	mu    sync.Mutex
	items map[string]Checkout
}

func newMemCheckouts() *memCheckouts {
	return &memCheckouts{items: map[string]Checkout{}}
}

func (m *memCheckouts) Reserve(_ context.Context, c Checkout, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[c.BookingID]; ok {
		return false, nil
	}
	m.items[c.BookingID] = c
	return true, nil
}

func (m *memCheckouts) Save(_ context.Context, c Checkout, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[c.BookingID] = c
	return nil
}

func (m *memCheckouts) Get(_ context.Context, bookingID string) (*Checkout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[bookingID]
	if !ok {
		return nil, ErrCheckoutNotFound
	}
	return &c, nil
}

func (m *memCheckouts) Delete(_ context.Context, bookingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, bookingID)
	return nil
}

func (m *memCheckouts) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

type fakeNotifier struct {
	mu     sync.Mutex
	err    error
	queued []Booking
}

func (n *fakeNotifier) Enqueue(_ context.Context, b Booking) (*NotificationReceipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return nil, n.err
	}
	n.queued = append(n.queued, b)
	channels := []string{"whatsapp"}
	if b.Email != nil {
		channels = append([]string{"email"}, channels...)
	}
	return &NotificationReceipt{MessageURI: "whatsapp://send?phone=" + b.Mobile, Channels: channels}, nil
}

type fakeAlerter struct {
	mu   sync.Mutex
	sent []string
}

func (a *fakeAlerter) Alert(_ context.Context, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sent = append(a.sent, text)
	return nil
}

func (a *fakeAlerter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sent)
}

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

// busyLocker never grants the lock.
type busyLocker struct{}

func (busyLocker) WithSlotLock(context.Context, string, func(context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

// failingGateway refuses to open orders.
type failingGateway struct{ payment.Gateway }

func (failingGateway) CreateOrder(context.Context, payment.OrderRequest) (*payment.Order, error) {
	return nil, errors.Join(payment.ErrGateway, errors.New("connection refused"))
}

type pipelineFixture struct {
	store     *GormStore
	checkouts *memCheckouts
	notifier  *fakeNotifier
	alerter   *fakeAlerter
	publisher *recordingPublisher
	pipeline  *Pipeline
}

func newPipelineFixture(t *testing.T, opts ...func(*PipelineDeps)) *pipelineFixture {
	t.Helper()
	f := &pipelineFixture{
		store:     newTestStore(t),
		checkouts: newMemCheckouts(),
		notifier:  &fakeNotifier{},
		alerter:   &fakeAlerter{},
		publisher: &recordingPublisher{},
	}

	deps := PipelineDeps{
		Store:       f.store,
		Gateway:     payment.NewSandbox(),
		Checkouts:   f.checkouts,
		Notifier:    f.notifier,
		Alerter:     f.alerter,
		Publisher:   f.publisher,
		CheckoutTTL: time.Minute,
		Currency:    "INR",
	}
	for _, opt := range opts {
		opt(&deps)
	}
	f.pipeline = NewPipeline(deps)
	return f
}

func withStore(wrap func(Store) Store) func(*PipelineDeps) {
	return func(d *PipelineDeps) { d.Store = wrap(d.Store) }
}
