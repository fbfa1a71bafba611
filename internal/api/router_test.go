package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/turf-booking/internal/auth"
	"github.com/hackgods/turf-booking/internal/booking"
	"github.com/hackgods/turf-booking/internal/db"
	"github.com/hackgods/turf-booking/internal/notify"
	"github.com/hackgods/turf-booking/internal/payment"
	redisclient "github.com/hackgods/turf-booking/internal/redis"
)

type memCheckouts struct {
	mu    sync.Mutex
	items map[string]booking.Checkout
}

func (m *memCheckouts) Reserve(_ context.Context, c booking.Checkout, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[c.BookingID]; ok {
		return false, nil
	}
	m.items[c.BookingID] = c
	return true, nil
}

func (m *memCheckouts) Save(_ context.Context, c booking.Checkout, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[c.BookingID] = c
	return nil
}

func (m *memCheckouts) Get(_ context.Context, bookingID string) (*booking.Checkout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[bookingID]
	if !ok {
		return nil, booking.ErrCheckoutNotFound
	}
	return &c, nil
}

func (m *memCheckouts) Delete(_ context.Context, bookingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, bookingID)
	return nil
}

type memDenylist struct {
	mu      sync.Mutex
	revoked map[string]bool
}

func (d *memDenylist) Revoke(_ context.Context, tokenID string, _ time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.revoked[tokenID] = true
	return nil
}

func (d *memDenylist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.revoked[tokenID], nil
}

type testServer struct {
	srv   *httptest.Server
	store *booking.GormStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gdb, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)

	store := booking.NewGormStore(gdb)
	require.NoError(t, store.AutoMigrate())
	users := auth.NewGormUserStore(gdb)
	require.NoError(t, users.AutoMigrate())
	tasks := notify.NewGormTaskStore(gdb)
	require.NoError(t, tasks.AutoMigrate())

	authSvc := auth.NewService(users, &memDenylist{revoked: map[string]bool{}}, "test-secret", time.Hour)
	_, err = authSvc.CreateAdmin(context.Background(), "admin", "correct-horse")
	require.NoError(t, err)

	dispatcher := notify.NewDispatcher(tasks, nil, nil, nil, notify.Config{})
	resolver := booking.NewResolver(store, nil)
	pipeline := booking.NewPipeline(booking.PipelineDeps{
		Store:     store,
		Resolver:  resolver,
		Gateway:   payment.NewSandbox(),
		Checkouts: &memCheckouts{items: map[string]booking.Checkout{}},
		Notifier:  dispatcher,
	})

	handler := NewRouter(RouterConfig{
		Pipeline:   pipeline,
		Resolver:   resolver,
		Admin:      booking.NewAdmin(store, resolver, nil, time.UTC),
		Auth:       authSvc,
		Dispatcher: dispatcher,
		Checks: []Check{
			{Name: "database", Critical: true, Ping: func(context.Context) error { return nil }},
		},
		Today:   func() string { return "2025-03-10" },
		Env:     "test",
		Version: "dev",
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		srv.Close()
		dispatcher.Wait()
	})
	return &testServer{srv: srv, store: store}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (s *testServer) login(t *testing.T) string {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/admin/login", "", LoginRequest{Username: "admin", Password: "correct-horse"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode[LoginResponse](t, resp).Token
}

var bookingForm = map[string]string{
	"full_name":  "Asha Rao",
	"mobile":     "9876543210",
	"email":      "asha@example.com",
	"sport_type": "football",
	"date":       "2025-03-10",
	"time_slot":  "18:00-19:00",
}

func (s *testServer) book(t *testing.T) ConfirmationResponse {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/bookings/checkout", "", bookingForm)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	co := decode[CheckoutResponse](t, resp)

	resp = s.do(t, http.MethodPost, "/bookings/"+co.BookingID+"/payment", "", payment.Outcome{
		Status:  payment.OutcomeSuccess,
		OrderID: co.Order.ID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode[ConfirmationResponse](t, resp)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ready := decode[ReadinessResponse](t, resp)
	assert.Equal(t, "ok", ready.Status)
	assert.Equal(t, "ok", ready.Dependencies["database"])
}

func TestReadiness_CriticalAndDegraded(t *testing.T) {
	down := func(context.Context) error { return errors.New("connection refused") }
	up := func(context.Context) error { return nil }

	h := NewHealthHandler([]Check{
		{Name: "database", Critical: true, Ping: up},
		{Name: "redis", Ping: down},
	}, "test", "dev")
	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)

	h = NewHealthHandler([]Check{{Name: "database", Critical: true, Ping: down}}, "test", "dev")
	rec = httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCatalogEndpoints(t *testing.T) {
	s := newTestServer(t)

	sports := decode[[]SportResponse](t, s.do(t, http.MethodGet, "/sports", "", nil))
	require.Len(t, sports, 4)

	slots := decode[[]SlotResponse](t, s.do(t, http.MethodGet, "/slots", "", nil))
	require.NotEmpty(t, slots)
	assert.NotEmpty(t, slots[0].Label)
}

func TestBookingFlow(t *testing.T) {
	s := newTestServer(t)

	conf := s.book(t)
	assert.Equal(t, booking.StatusSuccess, conf.Booking.PaymentStatus)
	assert.Equal(t, int64(1000), conf.Booking.Amount)
	assert.ElementsMatch(t, []string{"email", "whatsapp"}, conf.Channels)
	assert.Contains(t, conf.WhatsAppURL, "9876543210")

	resp := s.do(t, http.MethodGet, "/availability?date=2025-03-10&sport=football", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	a := decode[booking.Availability](t, resp)
	for _, slot := range a.Slots {
		if slot.SlotID == "18:00-19:00" {
			assert.Equal(t, booking.SlotBooked, slot.Status)
		}
	}

	resp = s.do(t, http.MethodPost, "/bookings/checkout", "", bookingForm)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "slot_already_booked", decode[ErrorResponse](t, resp).Error)
}

func TestCheckout_ValidationFields(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodPost, "/bookings/checkout", "", map[string]string{
		"full_name":  "A",
		"mobile":     "12",
		"sport_type": "football",
		"date":       "2025-03-10",
		"time_slot":  "18:00-19:00",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[ErrorResponse](t, resp)
	assert.Equal(t, "validation_failed", body.Error)
	assert.Contains(t, body.Fields, "full_name")
	assert.Contains(t, body.Fields, "mobile")
}

func TestPayment_Failed(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodPost, "/bookings/checkout", "", bookingForm)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	co := decode[CheckoutResponse](t, resp)

	resp = s.do(t, http.MethodPost, "/bookings/"+co.BookingID+"/payment", "", payment.Outcome{Status: payment.OutcomeFailed})
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)

	_, err := s.store.GetBooking(context.Background(), co.BookingID)
	assert.ErrorIs(t, err, booking.ErrBookingNotFound)
}

func TestAdmin_RequiresToken(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodGet, "/admin/bookings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/admin/bookings", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/admin/login", "", LoginRequest{Username: "admin", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdmin_Logout(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)

	resp := s.do(t, http.MethodGet, "/admin/stats", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/admin/logout", token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/admin/stats", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdmin_BlockSlot(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)

	resp := s.do(t, http.MethodPost, "/admin/blocked-slots", token, booking.BlockSlotInput{
		Date:      "2025-03-10",
		SportType: "football",
		TimeSlot:  "18:00-19:00",
		Reason:    "maintenance",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	blocked := decode[BlockedSlotResponse](t, resp)

	resp = s.do(t, http.MethodPost, "/bookings/checkout", "", bookingForm)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "slot_unavailable", decode[ErrorResponse](t, resp).Error)

	blocks := decode[BlocksResponse](t, s.do(t, http.MethodGet, "/admin/blocks", token, nil))
	assert.Equal(t, "2025-03-10", blocks.Date)
	require.Len(t, blocks.BlockedSlots, 1)

	resp = s.do(t, http.MethodDelete, "/admin/blocked-slots/"+strconv.FormatInt(blocked.ID, 10), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(t, http.MethodDelete, "/admin/blocked-slots/"+strconv.FormatInt(blocked.ID, 10), token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.do(t, http.MethodDelete, "/admin/blocked-slots/abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdmin_BlockDate(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)

	resp := s.do(t, http.MethodPost, "/admin/blocked-dates", token, booking.BlockDateInput{Date: "2025-03-10", Reason: "tournament"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	a := decode[booking.Availability](t, s.do(t, http.MethodGet, "/availability?date=2025-03-10&sport=cricket", "", nil))
	assert.True(t, a.IsDateBlocked)
	assert.Empty(t, a.Slots)

	resp = s.do(t, http.MethodDelete, "/admin/blocked-dates/2025-03-10", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	a = decode[booking.Availability](t, s.do(t, http.MethodGet, "/availability?date=2025-03-10&sport=cricket", "", nil))
	assert.False(t, a.IsDateBlocked)
	assert.NotEmpty(t, a.Slots)
}

func TestAdmin_BookingManagement(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)
	conf := s.book(t)
	id := conf.Booking.BookingID

	list := decode[BookingListResponse](t, s.do(t, http.MethodGet, "/admin/bookings?search=98765", token, nil))
	require.Equal(t, 1, list.Total)
	assert.Equal(t, id, list.Bookings[0].BookingID)

	resp := s.do(t, http.MethodGet, "/admin/bookings?status=bogus", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodPatch, "/admin/bookings/"+id+"/amount", token, map[string]int64{"amount": 900})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(900), decode[BookingResponse](t, resp).Amount)

	resp = s.do(t, http.MethodPatch, "/admin/bookings/"+id+"/amount", token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/admin/bookings/"+id+"/cancel", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, booking.StatusCancelled, decode[BookingResponse](t, resp).PaymentStatus)

	resp = s.do(t, http.MethodGet, "/admin/bookings/"+id, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cancelled := decode[BookingResponse](t, resp)
	assert.Equal(t, booking.StatusCancelled, cancelled.PaymentStatus)

	// cancelling touches nothing but the status
	assert.Equal(t, id, cancelled.BookingID)
	assert.Equal(t, int64(900), cancelled.Amount)
	assert.Equal(t, conf.Booking.Date, cancelled.Date)
	assert.Equal(t, conf.Booking.TimeSlot, cancelled.TimeSlot)
	assert.Equal(t, conf.Booking.SportType, cancelled.SportType)
	assert.Equal(t, conf.Booking.RazorpayOrderID, cancelled.RazorpayOrderID)
	assert.Equal(t, conf.Booking.RazorpayPaymentID, cancelled.RazorpayPaymentID)

	resp = s.do(t, http.MethodGet, "/admin/bookings/SPTMISSING", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdmin_Export(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)
	conf := s.book(t)

	resp := s.do(t, http.MethodGet, "/admin/bookings/export", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))

	rows, err := csv.NewReader(resp.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "booking_id", rows[0][0])
	assert.Equal(t, conf.Booking.BookingID, rows[1][0])
}

func TestAdmin_Notifications(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)

	resp := s.do(t, http.MethodGet, "/admin/notifications/dead", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]notify.Task](t, resp))

	resp = s.do(t, http.MethodPost, "/admin/notifications/not-a-uuid/retry", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/admin/notifications/2b1f8a52-3f43-4e3f-9a8e-0c1d7b8f6a11/retry", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTodayAvailability_Limit(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		query string
		want  int
	}{
		{"", 6},
		{"?limit=3", 3},
		{"?limit=-1", 6},
		{"?limit=1152921504606846976", 20},
		{"?limit=abc", 6},
	}
	for _, tt := range tests {
		resp := s.do(t, http.MethodGet, "/availability/today"+tt.query, "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, tt.query)
		body := decode[struct {
			Date  string             `json:"date"`
			Slots []booking.OpenSlot `json:"slots"`
		}](t, resp)
		assert.Equal(t, "2025-03-10", body.Date)
		assert.Len(t, body.Slots, tt.want, tt.query)
	}
}

func TestAdmin_StatsRevenue(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)
	conf := s.book(t)

	resp := s.do(t, http.MethodPatch, "/admin/bookings/"+conf.Booking.BookingID+"/amount", token, map[string]int64{"amount": 900})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/admin/stats?date=2025-03-10", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[booking.Stats](t, resp)
	assert.Equal(t, 1, st.TotalBookings)
	assert.Equal(t, int64(900), st.TodayRevenue)
	assert.Equal(t, int64(900), st.TotalRevenue)
}

func TestHandleBookingError_LockBusy(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/bookings/SPT1/payment", nil)

	rec := httptest.NewRecorder()
	handleBookingError(rec, req, fmt.Errorf("slot lock for football:2025-03-10:18:00-19:00: %w", redisclient.ErrLockNotAcquired))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "slot_being_booked")

	rec = httptest.NewRecorder()
	handleBookingError(rec, req, fmt.Errorf("%w: %w", booking.ErrPartialFailure, errors.New("disk full")))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
