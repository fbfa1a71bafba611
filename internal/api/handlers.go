package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/turf-booking/internal/auth"
	"github.com/hackgods/turf-booking/internal/booking"
	"github.com/hackgods/turf-booking/internal/catalog"
	"github.com/hackgods/turf-booking/internal/notify"
	"github.com/hackgods/turf-booking/internal/payment"
	redisclient "github.com/hackgods/turf-booking/internal/redis"
)

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

func listSportsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sports := catalog.Sports()
		resp := make([]SportResponse, 0, len(sports))
		for _, s := range sports {
			resp = append(resp, SportResponse{ID: s.ID, Name: s.Name, Price: s.Price})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func listSlotsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slots := catalog.Slots()
		resp := make([]SlotResponse, 0, len(slots))
		for _, s := range slots {
			resp = append(resp, SlotResponse{ID: s.ID, Label: s.Label})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func availabilityHandler(resolver *booking.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		a, err := resolver.Resolve(r.Context(), q.Get("date"), q.Get("sport"))
		if err != nil {
			handleBookingError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

func todayAvailabilityHandler(resolver *booking.Resolver, today func() string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		date := today()

		open, err := resolver.Preview(r.Context(), date, limit)
		if err != nil {
			handleBookingError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"date": date, "slots": open})
	}
}

func checkoutHandler(pipeline *booking.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var form booking.BookingForm
		if !decodeJSON(w, r, &form) {
			return
		}

		co, err := pipeline.Checkout(r.Context(), form)
		if err != nil {
			handleBookingError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, CheckoutResponse{
			BookingID: co.BookingID,
			Amount:    co.Amount,
			Order:     co.Order,
			ExpiresAt: co.ExpiresAt,
		})
	}
}

func paymentHandler(pipeline *booking.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var out payment.Outcome
		if !decodeJSON(w, r, &out) {
			return
		}

		conf, err := pipeline.Complete(r.Context(), chi.URLParam(r, "bookingID"), out)
		if err != nil {
			handleBookingError(w, r, err)
			return
		}

		channels := conf.Channels
		if channels == nil {
			channels = []string{}
		}
		writeJSON(w, http.StatusOK, ConfirmationResponse{
			Booking:     toBookingResponse(conf.Booking),
			WhatsAppURL: conf.WhatsAppURL,
			Channels:    channels,
			Replayed:    conf.Replayed,
		})
	}
}

// handleBookingError maps domain errors to HTTP responses. Unknown errors are
// logged and reported without detail.
func handleBookingError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *booking.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_failed", Fields: verr.Fields})
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, booking.ErrPartialFailure):
		log.Printf("partial failure request_id=%s: %v", GetRequestID(r.Context()), err)
		writeError(w, http.StatusBadGateway, "partial_failure", booking.ErrPartialFailure.Error())
	case errors.Is(err, booking.ErrSlotConflict):
		writeError(w, http.StatusConflict, "slot_already_booked", err.Error())
	case errors.Is(err, booking.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, booking.ErrPaymentFailed):
		writeError(w, http.StatusPaymentRequired, "payment_failed", err.Error())
	case errors.Is(err, booking.ErrCheckoutNotFound):
		writeError(w, http.StatusNotFound, "checkout_not_found", err.Error())
	case errors.Is(err, booking.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, "booking_not_found", err.Error())
	case errors.Is(err, booking.ErrBlockNotFound):
		writeError(w, http.StatusNotFound, "block_not_found", err.Error())
	case errors.Is(err, notify.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, "task_not_found", err.Error())
	case errors.Is(err, booking.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, booking.ErrStoreUnavailable):
		log.Printf("store unavailable request_id=%s: %v", GetRequestID(r.Context()), err)
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "please try again shortly")
	default:
		log.Printf("internal error request_id=%s: %v", GetRequestID(r.Context()), err)
		writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong")
	}
}
