package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bookswap/backend/internal/storage"
	"github.com/bookswap/backend/internal/storage/models"
)

// SwapService handles swap listing creation. Lifecycle transitions out of
// pending belong to the TargetingService, which owns the fan-out rules.
type SwapService struct {
	db          *storage.DB
	swapRepo    *storage.SwapRepository
	bookingRepo *storage.BookingRepository
}

// NewSwapService creates a new swap service.
func NewSwapService(db *storage.DB, swapRepo *storage.SwapRepository, bookingRepo *storage.BookingRepository) *SwapService {
	return &SwapService{
		db:          db,
		swapRepo:    swapRepo,
		bookingRepo: bookingRepo,
	}
}

// ListSwapParams are the caller-supplied parameters for a new listing.
type ListSwapParams struct {
	BookingID          string              `json:"booking_id"`
	ExpiresAt          time.Time           `json:"expires_at"`
	AcceptanceStrategy string              `json:"acceptance_strategy,omitempty"`
	Cash               *models.CashDetails `json:"cash_details,omitempty"`
}

// CreateSwap lists a booking for exchange. The booking must exist, be owned
// by the actor, and be available and not verification-rejected. Listing
// locks the booking; a later cancellation releases it.
func (s *SwapService) CreateSwap(ctx context.Context, actorID string, params ListSwapParams) (*models.Swap, error) {
	now := time.Now().UTC()

	if !params.ExpiresAt.After(now) {
		return nil, fmt.Errorf("expiry must be in the future: %w", ErrInvalidState)
	}
	if params.Cash != nil {
		c := params.Cash
		if c.MinAmount < 0 || c.MaxAmount < c.MinAmount {
			return nil, fmt.Errorf("cash range [%.2f, %.2f] is invalid: %w", c.MinAmount, c.MaxAmount, ErrOutOfRange)
		}
		if c.PreferredAmount != 0 && (c.PreferredAmount < c.MinAmount || c.PreferredAmount > c.MaxAmount) {
			return nil, fmt.Errorf("preferred amount %.2f outside cash range: %w", c.PreferredAmount, ErrOutOfRange)
		}
	}

	strategy := params.AcceptanceStrategy
	if strategy == "" {
		strategy = models.StrategyOneForOne
	}
	switch strategy {
	case models.StrategyOneForOne, models.StrategyFirstMatch, models.StrategyFirstComeFirstServed:
	default:
		return nil, fmt.Errorf("unknown acceptance strategy %q: %w", strategy, ErrInvalidState)
	}

	var swap *models.Swap

	err := s.db.Transaction(func(tx *sql.Tx) error {
		booking, err := s.bookingRepo.GetByIDIn(ctx, tx, params.BookingID)
		if err != nil {
			return err
		}
		if booking == nil {
			return fmt.Errorf("booking %s: %w", params.BookingID, ErrNotFound)
		}
		if booking.OwnerID != actorID {
			return fmt.Errorf("only the booking owner may list it: %w", ErrNotEligible)
		}
		if !booking.IsListable() {
			return fmt.Errorf("booking %s is %s: %w", booking.ID, booking.Availability, ErrInvalidState)
		}

		swap = &models.Swap{
			OwnerID:            actorID,
			BookingID:          booking.ID,
			AcceptanceStrategy: strategy,
			Cash:               params.Cash,
			ExpiresAt:          params.ExpiresAt.UTC(),
		}
		if err := s.swapRepo.Create(ctx, tx, swap); err != nil {
			return err
		}

		return s.bookingRepo.SetAvailability(ctx, tx, booking.ID, models.AvailabilityLocked)
	})
	if err != nil {
		return nil, err
	}

	return swap, nil
}
