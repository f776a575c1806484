// Package swap provides lifecycle maintenance for swap listings.
package swap

import (
	"context"
	"log"

	"github.com/robfig/cron/v3"

	"github.com/bookswap/backend/internal/engine"
	"github.com/bookswap/backend/internal/storage"
)

// ExpiryScheduler sweeps pending swaps past their expiry into the expired
// status, resolving their targets through the targeting engine so the
// fan-out rules stay in one place.
type ExpiryScheduler struct {
	cron      *cron.Cron
	swapRepo  *storage.SwapRepository
	targeting *engine.TargetingService
}

// NewExpiryScheduler creates a new expiry scheduler.
func NewExpiryScheduler(swapRepo *storage.SwapRepository, targeting *engine.TargetingService) *ExpiryScheduler {
	return &ExpiryScheduler{
		cron:      cron.New(cron.WithSeconds()),
		swapRepo:  swapRepo,
		targeting: targeting,
	}
}

// Start begins the expiry scheduler.
func (s *ExpiryScheduler) Start() {
	log.Println("Starting swap expiry scheduler...")

	s.cron.AddFunc("@every 1m", func() {
		s.expireOverdueSwaps()
	})

	s.cron.Start()
	log.Println("Swap expiry scheduler started")
}

// Stop gracefully shuts down the scheduler.
func (s *ExpiryScheduler) Stop() {
	log.Println("Stopping swap expiry scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Swap expiry scheduler stopped")
}

// Sweep runs one expiry pass immediately. Exposed for startup and tests.
func (s *ExpiryScheduler) Sweep(ctx context.Context) {
	now := s.swapRepo.Now()

	overdue, err := s.swapRepo.ListPendingExpired(ctx, now)
	if err != nil {
		log.Printf("Failed to list overdue swaps: %v", err)
		return
	}

	for _, swap := range overdue {
		if err := s.targeting.ExpireSwap(ctx, swap.ID); err != nil {
			log.Printf("Failed to expire swap %s: %v", swap.ID, err)
			continue
		}
		log.Printf("Swap %s expired", swap.ID)
	}
}

func (s *ExpiryScheduler) expireOverdueSwaps() {
	s.Sweep(context.Background())
}
