package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hackgods/turf-booking/internal/auth"
	"github.com/hackgods/turf-booking/internal/booking"
	"github.com/hackgods/turf-booking/internal/config"
	"github.com/hackgods/turf-booking/internal/db"
	"github.com/hackgods/turf-booking/internal/notify"
)

// Stores groups the persistence backends picked by STORE_DRIVER.
type Stores struct {
	Bookings booking.Store
	Users    auth.UserStore
	Tasks    notify.TaskStore
	Ping     func(ctx context.Context) error
	Close    func()
}

func OpenStores(ctx context.Context, cfg config.Config) (*Stores, error) {
	switch cfg.StoreDriver {
	case config.StoreSQLite:
		return openSQLite(cfg.SQLitePath)
	case config.StorePostgres:
		return openPostgres(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

func openPostgres(ctx context.Context, dsn string) (*Stores, error) {
	pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(pgCtx, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.MigratePostgres(pgCtx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	log.Println("connected to Postgres")

	return &Stores{
		Bookings: booking.NewPgStore(pool),
		Users:    auth.NewPgUserStore(pool),
		Tasks:    notify.NewPgTaskStore(pool),
		Ping:     pool.Ping,
		Close:    pool.Close,
	}, nil
}

func openSQLite(path string) (*Stores, error) {
	gdb, err := db.OpenSQLite(path)
	if err != nil {
		return nil, err
	}

	bookings := booking.NewGormStore(gdb)
	users := auth.NewGormUserStore(gdb)
	tasks := notify.NewGormTaskStore(gdb)
	for _, m := range []interface{ AutoMigrate() error }{bookings, users, tasks} {
		if err := m.AutoMigrate(); err != nil {
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	log.Printf("opened SQLite store path=%s", path)

	return &Stores{
		Bookings: bookings,
		Users:    users,
		Tasks:    tasks,
		Ping:     sqlDB.PingContext,
		Close: func() {
			if err := sqlDB.Close(); err != nil {
				log.Printf("error closing sqlite: %v", err)
			}
		},
	}, nil
}
