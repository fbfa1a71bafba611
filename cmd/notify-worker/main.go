package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hackgods/turf-booking/internal/app"
	"github.com/hackgods/turf-booking/internal/config"
	"github.com/hackgods/turf-booking/internal/notify"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("notify-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running notify worker in env=%s interval=%s digest=%q",
		cfg.Env, cfg.WorkerInterval, cfg.DigestSchedule)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(rootCtx, cfg)
	if err != nil {
		log.Fatalf("startup error: %v", err)
	}
	defer a.Close()

	c := cron.New(cron.WithLocation(cfg.Location()), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))

	if _, err := c.AddFunc("@every "+cfg.WorkerInterval.String(), func() { retryOnce(rootCtx, a.Dispatcher) }); err != nil {
		log.Fatalf("schedule retry sweep: %v", err)
	}

	if cfg.DigestSchedule != "" {
		digest := a.Digest()
		if _, err := c.AddFunc(cfg.DigestSchedule, func() { sendDigest(rootCtx, digest) }); err != nil {
			log.Fatalf("schedule digest %q: %v", cfg.DigestSchedule, err)
		}
	}

	// Run once at startup
	retryOnce(rootCtx, a.Dispatcher)

	c.Start()
	<-rootCtx.Done()

	log.Println("shutdown signal received, stopping notify worker")
	<-c.Stop().Done()
}

func retryOnce(ctx context.Context, d *notify.Dispatcher) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := d.RetryDue(runCtx)
	if err != nil {
		log.Printf("retry sweep error: %v", err)
		return
	}
	if n > 0 {
		log.Printf("retry sweep claimed=%d in %s", n, time.Since(start))
	}
}

func sendDigest(ctx context.Context, digest *notify.Digest) {
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := digest.Send(runCtx); err != nil {
		log.Printf("digest error: %v", err)
		return
	}
	log.Println("daily digest sent")
}
