package app

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/turf-booking/internal/api"
	"github.com/hackgods/turf-booking/internal/auth"
	"github.com/hackgods/turf-booking/internal/booking"
	"github.com/hackgods/turf-booking/internal/config"
	"github.com/hackgods/turf-booking/internal/events"
	"github.com/hackgods/turf-booking/internal/notify"
	redisclient "github.com/hackgods/turf-booking/internal/redis"
)

// App is the fully wired booking system shared by the binaries.
type App struct {
	Config     config.Config
	Stores     *Stores
	Redis      *redis.Client
	Publisher  events.Publisher
	Alerter    booking.Alerter
	Dispatcher *notify.Dispatcher
	Resolver   *booking.Resolver
	Pipeline   *booking.Pipeline
	Admin      *booking.Admin
	Auth       *auth.Service
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	gateway, err := NewGateway(cfg.Env, cfg.Payment)
	if err != nil {
		return nil, err
	}

	stores, err := OpenStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	rdb, err := redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		stores.Close()
		return nil, err
	}
	log.Println("connected to Redis")

	a := &App{
		Config:    cfg,
		Stores:    stores,
		Redis:     rdb,
		Publisher: NewPublisher(cfg),
		Alerter:   NewAlerter(cfg.Notify),
	}

	a.Dispatcher = notify.NewDispatcher(stores.Tasks, NewEmailSender(cfg.Email), NewOpener(cfg.Notify), a.Alerter, notify.Config{
		MaxAttempts:    cfg.Notify.MaxAttempts,
		Backoff:        cfg.Notify.Backoff,
		WhatsAppScheme: cfg.Notify.WhatsAppScheme,
	})

	a.Resolver = booking.NewResolver(stores.Bookings,
		booking.NewRedisAvailabilityCache(redisclient.NewJSONCache(rdb, "availability"), cfg.CacheTTL))

	a.Pipeline = booking.NewPipeline(booking.PipelineDeps{
		Store:       stores.Bookings,
		Resolver:    a.Resolver,
		Gateway:     gateway,
		Checkouts:   booking.NewRedisCheckoutStore(redisclient.NewJSONCache(rdb, "checkout")),
		Locker:      redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL),
		Notifier:    a.Dispatcher,
		Alerter:     a.Alerter,
		Publisher:   a.Publisher,
		CheckoutTTL: cfg.CheckoutTTL,
		Currency:    cfg.Payment.Currency,
	})

	a.Admin = booking.NewAdmin(stores.Bookings, a.Resolver, a.Publisher, cfg.Location())
	a.Auth = auth.NewService(stores.Users, auth.NewRedisDenylist(redisclient.NewJSONCache(rdb, "revoked")),
		cfg.JWTSecret, cfg.SessionTTL)

	return a, nil
}

// Checks lists the readiness probes. Redis holds checkouts and sessions, so
// it is as critical as the database.
func (a *App) Checks() []api.Check {
	return []api.Check{
		{Name: "database", Critical: true, Ping: a.Stores.Ping},
		{Name: "redis", Critical: true, Ping: func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() }},
	}
}

// Digest builds the daily summary job.
func (a *App) Digest() *notify.Digest {
	return notify.NewDigest(a.Stores.Bookings.Stats, a.Stores.Tasks, a.Alerter, a.Config.Today)
}

// Close waits for in-flight notifications, then releases every connection.
func (a *App) Close() {
	a.Dispatcher.Wait()
	if err := a.Publisher.Close(); err != nil {
		log.Printf("error closing publisher: %v", err)
	}
	if err := a.Redis.Close(); err != nil {
		log.Printf("error closing redis: %v", err)
	}
	a.Stores.Close()
}
