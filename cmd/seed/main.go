package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/hackgods/turf-booking/internal/app"
	"github.com/hackgods/turf-booking/internal/booking"
	"github.com/hackgods/turf-booking/internal/catalog"
	"github.com/hackgods/turf-booking/internal/config"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	count := flag.Int("bookings", 300, "bookings to create")
	days := flag.Int("days", 14, "spread bookings this many days either side of today")
	blocks := flag.Int("blocks", 10, "blocked slots to create")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	stores, err := app.OpenStores(ctx, cfg)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer stores.Close()

	gofakeit.Seed(time.Now().UnixNano())

	today := time.Now().In(cfg.Location())
	if err := seedBookings(ctx, stores.Bookings, today, *days, *count); err != nil {
		log.Fatalf("seed bookings: %v", err)
	}
	if err := seedBlocks(ctx, stores.Bookings, today, *days, *blocks); err != nil {
		log.Fatalf("seed blocks: %v", err)
	}

	log.Println("seed complete")
}

func randomDate(today time.Time, days int) string {
	return today.AddDate(0, 0, gofakeit.Number(-days, days)).Format(time.DateOnly)
}

func randomSlot() (catalog.Sport, string) {
	sports := catalog.Sports()
	slots := catalog.Slots()
	return sports[gofakeit.Number(0, len(sports)-1)].ID, slots[gofakeit.Number(0, len(slots)-1)].ID
}

// randomStatus favours paid bookings the way real traffic does.
func randomStatus() booking.PaymentStatus {
	switch n := gofakeit.Number(1, 100); {
	case n <= 80:
		return booking.StatusSuccess
	case n <= 90:
		return booking.StatusCancelled
	case n <= 95:
		return booking.StatusFailed
	default:
		return booking.StatusPending
	}
}

func seedBookings(ctx context.Context, store booking.Store, today time.Time, days, count int) error {
	log.Printf("seeding %d bookings", count)

	created, skipped := 0, 0
	for i := 0; i < count; i++ {
		sport, slot := randomSlot()
		amount, err := catalog.Price(sport)
		if err != nil {
			return err
		}

		b := booking.Booking{
			BookingID:     booking.NewBookingID(time.Now()),
			FullName:      gofakeit.Name(),
			Mobile:        gofakeit.Numerify("9#########"),
			SportType:     sport,
			Date:          randomDate(today, days),
			TimeSlot:      slot,
			Amount:        amount,
			PaymentStatus: randomStatus(),
		}
		if gofakeit.Bool() {
			email := gofakeit.Email()
			b.Email = &email
		}
		if gofakeit.Number(1, 4) == 1 {
			team := gofakeit.Company()
			b.TeamName = &team
		}
		if b.PaymentStatus == booking.StatusSuccess || b.PaymentStatus == booking.StatusCancelled {
			pid := "pay_seed_" + gofakeit.LetterN(14)
			b.RazorpayPaymentID = &pid
		}

		_, err = store.InsertBooking(ctx, b)
		switch {
		case err == nil:
			created++
		case errors.Is(err, booking.ErrSlotConflict), errors.Is(err, booking.ErrDuplicateBookingID):
			skipped++
		default:
			return err
		}

		if (i+1)%100 == 0 {
			log.Printf("bookings seeded: %d/%d", i+1, count)
		}
	}

	log.Printf("bookings seeded created=%d skipped=%d", created, skipped)
	return nil
}

var blockReasons = []string{"maintenance", "private event", "coaching session", "pitch resurfacing", "tournament"}

func seedBlocks(ctx context.Context, store booking.Store, today time.Time, days, count int) error {
	log.Printf("seeding %d blocked slots", count)

	for i := 0; i < count; i++ {
		sport, slot := randomSlot()
		reason := blockReasons[gofakeit.Number(0, len(blockReasons)-1)]

		_, err := store.InsertBlockedSlot(ctx, booking.BlockedSlot{
			Date:      randomDate(today, days),
			SportType: sport,
			TimeSlot:  slot,
			Reason:    &reason,
		})
		if err != nil {
			return err
		}
	}

	log.Println("blocked slots seeded")
	return nil
}
