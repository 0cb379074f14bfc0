package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"casaro.io/internal/auth"
	"casaro.io/internal/config"
	"casaro.io/internal/events"
	"casaro.io/internal/httpapi"
	"casaro.io/internal/listings"
	"casaro.io/internal/obs"
)

func main() {
	obs.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	obs.InitBuildInfo(cfg.Version, cfg.Commit)

	// User directory: Postgres when a DSN is configured, otherwise the
	// in-memory store seeded with the demo accounts.
	var (
		db    *sql.DB
		users auth.UserStore
	)
	if cfg.PGDSN != "" {
		db, err = sql.Open("pgx", cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		users = auth.NewPGStore(db)
	} else {
		mem := auth.NewMemoryStore()
		if err := auth.SeedDemoUsers(context.Background(), mem, "demo1234"); err != nil {
			log.Fatalf("seed demo users: %v", err)
		}
		users = mem
		log.Println("no CASARO_PG_DSN set, using in-memory user store with demo accounts")
	}

	issuer, err := auth.NewIssuer(cfg.AuthSecret, cfg.AuthIssuer)
	if err != nil {
		log.Fatalf("issuer: %v", err)
	}

	api, err := httpapi.New(httpapi.Options{
		Issuer:     issuer,
		Users:      users,
		Catalog:    listings.NewInMemory(),
		Bus:        events.NewBus(),
		ReadyProbe: httpapi.ReadyProbe{DB: db},
		Version:    cfg.Version,
		SessionTTL: cfg.SessionTTL,
	})
	if err != nil {
		log.Fatalf("httpapi: %v", err)
	}

	handler := httpapi.RequestID(
		httpapi.LoggingJSON(
			httpapi.SecurityHeaders(
				httpapi.CORS(
					httpapi.MaxBodyBytes(
						httpapi.RateLimit(api.Handler(), cfg.RateLimitBurst, cfg.RateLimitRPS),
						1<<20)))))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting casaro-api %s on %s", cfg.Version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
