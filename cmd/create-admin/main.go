package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/hackgods/turf-booking/internal/app"
	"github.com/hackgods/turf-booking/internal/auth"
	"github.com/hackgods/turf-booking/internal/config"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	username := flag.String("username", "", "admin username")
	password := flag.String("password", os.Getenv("ADMIN_PASSWORD"), "admin password, defaults to $ADMIN_PASSWORD")
	flag.Parse()

	if *username == "" || *password == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stores, err := app.OpenStores(ctx, cfg)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer stores.Close()

	// sessions are not issued here, so no denylist is needed
	svc := auth.NewService(stores.Users, nil, cfg.JWTSecret, cfg.SessionTTL)
	u, err := svc.CreateAdmin(ctx, *username, *password)
	if err != nil {
		log.Fatalf("create admin: %v", err)
	}

	log.Printf("admin created id=%d username=%s", u.ID, u.Username)
}
