package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/turf-booking/internal/auth"
	"github.com/hackgods/turf-booking/internal/booking"
	"github.com/hackgods/turf-booking/internal/notify"
)

type RouterConfig struct {
	Pipeline   *booking.Pipeline
	Resolver   *booking.Resolver
	Admin      *booking.Admin
	Auth       *auth.Service
	Dispatcher *notify.Dispatcher
	Checks     []Check
	// Today returns the current date at the turf; defaults to local time.
	Today   func() string
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Today == nil {
		cfg.Today = todayIn(time.Local)
	}

	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.Checks, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Catalog and availability
	r.Get("/sports", listSportsHandler())
	r.Get("/slots", listSlotsHandler())
	r.Get("/availability", availabilityHandler(cfg.Resolver))
	r.Get("/availability/today", todayAvailabilityHandler(cfg.Resolver, cfg.Today))

	// Booking endpoints
	r.Post("/bookings/checkout", checkoutHandler(cfg.Pipeline))
	r.Post("/bookings/{bookingID}/payment", paymentHandler(cfg.Pipeline))

	// Admin endpoints
	r.Route("/admin", func(r chi.Router) {
		r.Post("/login", loginHandler(cfg.Auth))

		r.Group(func(r chi.Router) {
			r.Use(SessionMiddleware(cfg.Auth))

			r.Post("/logout", logoutHandler(cfg.Auth))

			r.Get("/bookings", listBookingsHandler(cfg.Admin))
			r.Get("/bookings/export", exportBookingsHandler(cfg.Admin, cfg.Today))
			r.Get("/bookings/{bookingID}", getBookingHandler(cfg.Admin))
			r.Patch("/bookings/{bookingID}/amount", editAmountHandler(cfg.Admin))
			r.Post("/bookings/{bookingID}/cancel", cancelBookingHandler(cfg.Admin))

			r.Get("/blocks", listBlocksHandler(cfg.Admin, cfg.Today))
			r.Post("/blocked-slots", blockSlotHandler(cfg.Admin))
			r.Delete("/blocked-slots/{id}", unblockSlotHandler(cfg.Admin))
			r.Post("/blocked-dates", blockDateHandler(cfg.Admin))
			r.Delete("/blocked-dates/{date}", unblockDateHandler(cfg.Admin))

			r.Get("/stats", statsHandler(cfg.Admin))

			if cfg.Dispatcher != nil {
				r.Get("/notifications/dead", deadNotificationsHandler(cfg.Dispatcher))
				r.Post("/notifications/{id}/retry", retryNotificationHandler(cfg.Dispatcher))
			}
		})
	})

	return r
}
