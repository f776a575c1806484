// Package main is the entry point for the BookSwap exchange server.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bookswap/backend/internal/api"
	"github.com/bookswap/backend/internal/config"
	"github.com/bookswap/backend/internal/discovery"
	"github.com/bookswap/backend/internal/engine"
	"github.com/bookswap/backend/internal/storage"
	"github.com/bookswap/backend/internal/swap"
	"github.com/bookswap/backend/internal/syncer"
	"github.com/bookswap/backend/internal/websocket"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
// Defaults to "dev" when not provided.
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags override config-file and environment values
	addr := flag.String("addr", cfg.Addr, "HTTP server address")
	dataDir := flag.String("data", cfg.DataDir, "Data directory for SQLite database")
	staticDir := flag.String("static", cfg.StaticDir, "Directory for static frontend files")
	healthCheck := flag.Bool("health-check", false, "Run health check and exit")
	flag.Parse()

	// Health check mode for Docker HEALTHCHECK
	if *healthCheck {
		if err := runHealthCheck(*addr); err != nil {
			log.Fatalf("Health check failed: %v", err)
		}
		os.Exit(0)
	}

	if envVer := os.Getenv("VERSION"); envVer != "" {
		version = envVer
	}

	log.Printf("Starting BookSwap exchange server (version: %s)...", version)

	// Initialize database
	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		log.Fatalf("Failed to create data directory %q: %v", *dataDir, err)
	}
	dbPath := *dataDir + "/bookswap.db"
	db, err := storage.NewDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := storage.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations complete")

	// Initialize WebSocket hub
	hub := websocket.NewHub()
	go hub.Run()

	// Initialize repositories
	bookingRepo := storage.NewBookingRepository(db)
	swapRepo := storage.NewSwapRepository(db)
	targetRepo := storage.NewTargetRepository(db)
	proposalRepo := storage.NewProposalRepository(db)

	// Initialize engine services
	targeting := engine.NewTargetingService(db, swapRepo, targetRepo, proposalRepo, bookingRepo, hub)
	proposals := engine.NewProposalService(db, swapRepo, bookingRepo, proposalRepo, targeting, hub)
	swaps := engine.NewSwapService(db, swapRepo, bookingRepo)
	browse := discovery.NewBrowseService(swapRepo, bookingRepo, targetRepo, proposalRepo)

	// Expiry scheduler: pending swaps past expiry transition to expired
	expiryScheduler := swap.NewExpiryScheduler(swapRepo, targeting)
	expiryScheduler.Start()
	expiryScheduler.Sweep(context.Background())

	// Server-side consistency synchronizer over the authoritative store
	sync := syncer.New(syncer.NewStoreFetcher(swapRepo, targetRepo))
	syncCtx, stopSync := context.WithCancel(context.Background())
	go sync.Run(syncCtx, time.Duration(cfg.SyncIntervalMin)*time.Minute)

	// Initialize HTTP router with services
	router := api.NewRouter(db, hub, *staticDir, api.Services{
		Swaps:           swaps,
		Targeting:       targeting,
		Proposals:       proposals,
		Browse:          browse,
		DefaultPageSize: cfg.DefaultPageSize,
		MaxPageSize:     cfg.MaxPageSize,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         *addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		log.Printf("Server listening on %s", *addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Stop background work
	expiryScheduler.Stop()
	stopSync()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

// runHealthCheck performs a health check against the running server.
func runHealthCheck(addr string) error {
	url := "http://localhost" + addr + "/api/health"
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return http.ErrAbortHandler
	}
	return nil
}
