package api

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/turf-booking/internal/auth"
	"github.com/hackgods/turf-booking/internal/booking"
	"github.com/hackgods/turf-booking/internal/notify"
)

func loginHandler(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		token, sess, err := svc.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			handleBookingError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, LoginResponse{
			Token:     token,
			Username:  sess.Username,
			ExpiresAt: sess.ExpiresAt,
		})
	}
}

func logoutHandler(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Logout(r.Context(), SessionFrom(r.Context())); err != nil {
			handleBookingError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func bookingFilterFromQuery(r *http.Request) booking.BookingFilter {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	return booking.BookingFilter{
		Date:   q.Get("date"),
		Search: q.Get("search"),
		Status: booking.PaymentStatus(q.Get("status")),
		Limit:  limit,
		Offset: offset,
	}
}

func listBookingsHandler(admin *booking.Admin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := admin.ListBookings(r.Context(), SessionFrom(r.Context()), bookingFilterFromQuery(r))
		if err != nil {
			handleBookingError(w, r, err)
			return
		}

		resp := BookingListResponse{
			Bookings: make([]BookingResponse, 0, len(page.Bookings)),
			Total:    page.Total,
			Limit:    page.Limit,
			Offset:   page.Offset,
		}
		for _, b := range page.Bookings {
			resp.Bookings = append(resp.Bookings, toBookingResponse(b))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func exportBookingsHandler(admin *booking.Admin, today func() string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		if err := admin.ExportBookings(r.Context(), SessionFrom(r.Context()), bookingFilterFromQuery(r), &buf); err != nil {
			handleBookingError(w, r, err)
			return
		}

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="bookings-%s.csv"`, today()))
		w.WriteHeader(http.StatusOK)
		if _, err := buf.WriteTo(w); err != nil {
			log.Printf("failed to write export request_id=%s: %v", GetRequestID(r.Context()), err)
		}
	}
}

func getBookingHandler(admin *booking.Admin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := admin.GetBooking(r.Context(), SessionFrom(r.Context()), chi.URLParam(r, "bookingID"))
		if err != nil {
			handleBookingError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toBookingResponse(*b))
	}
}

func editAmountHandler(admin *booking.Admin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AmountRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Amount == nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:  "validation_failed",
				Fields: map[string]string{"amount": "Amount is required"},
			})
			return
		}

		b, err := admin.EditAmount(r.Context(), SessionFrom(r.Context()), chi.URLParam(r, "bookingID"), *req.Amount)
		if err != nil {
			handleBookingError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toBookingResponse(*b))
	}
}

func cancelBookingHandler(admin *booking.Admin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := admin.CancelBooking(r.Context(), SessionFrom(r.Context()), chi.URLParam(r, "bookingID"))
		if err != nil {
			handleBookingError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toBookingResponse(*b))
	}
}

func listBlocksHandler(admin *booking.Admin, today func() string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if date == "" {
			date = today()
		}

		blocks, err := admin.ListBlocks(r.Context(), SessionFrom(r.Context()), date)
		if err != nil {
			handleBookingError(w, r, err)
			return
		}

		resp := BlocksResponse{
			Date:         blocks.Date,
			BlockedSlots: make([]BlockedSlotResponse, 0, len(blocks.Slots)),
		}
		if blocks.Day != nil {
			d := toBlockedDateResponse(*blocks.Day)
			resp.BlockedDate = &d
		}
		for _, s := range blocks.Slots {
			resp.BlockedSlots = append(resp.BlockedSlots, toBlockedSlotResponse(s))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func blockSlotHandler(admin *booking.Admin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in booking.BlockSlotInput
		if !decodeJSON(w, r, &in) {
			return
		}

		bs, err := admin.BlockSlot(r.Context(), SessionFrom(r.Context()), in)
		if err != nil {
			handleBookingError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toBlockedSlotResponse(*bs))
	}
}

func unblockSlotHandler(admin *booking.Admin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_block_id", "id must be a number")
			return
		}

		bs, err := admin.UnblockSlot(r.Context(), SessionFrom(r.Context()), id)
		if err != nil {
			handleBookingError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toBlockedSlotResponse(*bs))
	}
}

func blockDateHandler(admin *booking.Admin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in booking.BlockDateInput
		if !decodeJSON(w, r, &in) {
			return
		}

		d, err := admin.BlockDate(r.Context(), SessionFrom(r.Context()), in)
		if err != nil {
			handleBookingError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toBlockedDateResponse(*d))
	}
}

func unblockDateHandler(admin *booking.Admin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := admin.UnblockDate(r.Context(), SessionFrom(r.Context()), chi.URLParam(r, "date"))
		if err != nil {
			handleBookingError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toBlockedDateResponse(*d))
	}
}

func statsHandler(admin *booking.Admin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := admin.Stats(r.Context(), SessionFrom(r.Context()), r.URL.Query().Get("date"))
		if err != nil {
			handleBookingError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func deadNotificationsHandler(d *notify.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := SessionFrom(r.Context()).RequireAdmin(); err != nil {
			handleBookingError(w, r, err)
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		tasks, err := d.ListDead(r.Context(), limit)
		if err != nil {
			handleBookingError(w, r, err)
			return
		}
		if tasks == nil {
			tasks = []notify.Task{}
		}
		writeJSON(w, http.StatusOK, tasks)
	}
}

func retryNotificationHandler(d *notify.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := SessionFrom(r.Context()).RequireAdmin(); err != nil {
			handleBookingError(w, r, err)
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_task_id", "id must be a valid UUID")
			return
		}

		t, err := d.Requeue(r.Context(), id)
		if err != nil {
			handleBookingError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, t)
	}
}

func todayIn(loc *time.Location) func() string {
	return func() string {
		return time.Now().In(loc).Format(time.DateOnly)
	}
}
