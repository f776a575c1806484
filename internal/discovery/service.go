package discovery

import (
	"context"
	"fmt"

	"github.com/bookswap/backend/internal/storage"
	"github.com/bookswap/backend/internal/storage/models"
)

// BrowseService loads the browsable inventory from the store and runs the
// pure pipeline over it, so handlers never re-implement the core filters.
type BrowseService struct {
	swapRepo     *storage.SwapRepository
	bookingRepo  *storage.BookingRepository
	targetRepo   *storage.TargetRepository
	proposalRepo *storage.ProposalRepository
}

// NewBrowseService creates a new browse service.
func NewBrowseService(
	swapRepo *storage.SwapRepository,
	bookingRepo *storage.BookingRepository,
	targetRepo *storage.TargetRepository,
	proposalRepo *storage.ProposalRepository,
) *BrowseService {
	return &BrowseService{
		swapRepo:     swapRepo,
		bookingRepo:  bookingRepo,
		targetRepo:   targetRepo,
		proposalRepo: proposalRepo,
	}
}

// Browse assembles the pending-swap inventory and filters it for the viewer.
func (s *BrowseService) Browse(ctx context.Context, viewerID string, p Params) ([]Listing, error) {
	inventory, err := s.LoadInventory(ctx)
	if err != nil {
		return nil, err
	}
	return Browse(inventory, viewerID, p), nil
}

// LoadInventory joins pending swaps to their booking snapshots and incoming
// activity counts.
func (s *BrowseService) LoadInventory(ctx context.Context) ([]Listing, error) {
	swaps, err := s.swapRepo.List(ctx, models.SwapStatusPending, "")
	if err != nil {
		return nil, fmt.Errorf("loading swap inventory: %w", err)
	}

	listings := make([]Listing, 0, len(swaps))
	for _, swap := range swaps {
		booking, err := s.bookingRepo.GetByID(ctx, swap.BookingID)
		if err != nil {
			return nil, err
		}
		if booking == nil {
			// Swap referencing a vanished booking is excluded, not fatal.
			continue
		}

		targets, err := s.targetRepo.CountActiveByTargetSwap(ctx, swap.ID)
		if err != nil {
			return nil, err
		}
		proposals, err := s.proposalRepo.CountPendingByTargetSwap(ctx, swap.ID)
		if err != nil {
			return nil, err
		}

		listings = append(listings, Listing{
			Swap:                 swap,
			Booking:              *booking,
			IncomingTargetCount:  targets,
			PendingProposalCount: proposals,
		})
	}

	return listings, nil
}
