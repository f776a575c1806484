package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bookswap/backend/internal/storage"
	"github.com/bookswap/backend/internal/storage/models"
	"github.com/bookswap/backend/internal/websocket"
)

// TargetingService enforces the relationship rules between swaps: at most
// one active outgoing target per swap, terminal-once target transitions, and
// the fan-out rejection of competing incoming targets on acceptance.
type TargetingService struct {
	db           *storage.DB
	swapRepo     *storage.SwapRepository
	targetRepo   *storage.TargetRepository
	proposalRepo *storage.ProposalRepository
	bookingRepo  *storage.BookingRepository
	broadcaster  *websocket.EventBroadcaster

	// Accept/reject/cancel against the same target swap must serialize so
	// that concurrent accepts cannot both succeed.
	resolveMu    sync.Mutex
	resolveLocks map[string]*sync.Mutex
}

// NewTargetingService creates a new targeting service. The hub may be nil,
// in which case no events are broadcast.
func NewTargetingService(
	db *storage.DB,
	swapRepo *storage.SwapRepository,
	targetRepo *storage.TargetRepository,
	proposalRepo *storage.ProposalRepository,
	bookingRepo *storage.BookingRepository,
	hub *websocket.Hub,
) *TargetingService {
	var broadcaster *websocket.EventBroadcaster
	if hub != nil {
		broadcaster = websocket.NewEventBroadcaster(hub)
	}

	return &TargetingService{
		db:           db,
		swapRepo:     swapRepo,
		targetRepo:   targetRepo,
		proposalRepo: proposalRepo,
		bookingRepo:  bookingRepo,
		broadcaster:  broadcaster,
		resolveLocks: make(map[string]*sync.Mutex),
	}
}

// Resolution describes the outcome of an accept: the accepted target and
// the competing targets that were rejected with it.
type Resolution struct {
	Target          *models.Target `json:"target"`
	RejectedTargets []string       `json:"rejected_targets"`
}

// lockTargetSwap acquires the per-target-swap resolution lock and returns
// its release function. Locks are never evicted; the map is bounded by the
// number of swaps that ever received a resolution attempt.
func (s *TargetingService) lockTargetSwap(targetSwapID string) func() {
	s.resolveMu.Lock()
	mu, ok := s.resolveLocks[targetSwapID]
	if !ok {
		mu = &sync.Mutex{}
		s.resolveLocks[targetSwapID] = mu
	}
	s.resolveMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// event defers a broadcast until after the enclosing transaction commits,
// so abandoned operations never announce state that was rolled back.
type event func(b *websocket.EventBroadcaster)

func (s *TargetingService) emit(events []event) {
	if s.broadcaster == nil {
		return
	}
	for _, e := range events {
		e(s.broadcaster)
	}
}

// CreateTarget points the source swap at the target swap. Both swaps must
// be pending and unexpired, the source must have no active outgoing target,
// and a swap cannot target itself or a sibling listing of the same owner.
func (s *TargetingService) CreateTarget(ctx context.Context, sourceSwapID, targetSwapID, actorID string) (*models.Target, error) {
	if sourceSwapID == targetSwapID {
		return nil, fmt.Errorf("swap cannot target itself: %w", ErrNotEligible)
	}

	var (
		created *models.Target
		events  []event
	)

	err := s.db.Transaction(func(tx *sql.Tx) error {
		target, err := s.createTargetTx(ctx, tx, sourceSwapID, targetSwapID, actorID, nil)
		if err != nil {
			return err
		}
		created = target
		events = append(events, func(b *websocket.EventBroadcaster) {
			b.BroadcastTargetCreated(target.ID, target.SourceSwapID, target.TargetSwapID)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(events)
	return created, nil
}

// createTargetTx runs the createTarget preconditions and insert inside an
// existing transaction. Shared by CreateTarget, Retarget, and the proposal
// service.
func (s *TargetingService) createTargetTx(ctx context.Context, tx *sql.Tx, sourceSwapID, targetSwapID, actorID string, proposalID *string) (*models.Target, error) {
	now := time.Now().UTC()

	source, err := s.swapRepo.GetByIDIn(ctx, tx, sourceSwapID)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, fmt.Errorf("source swap %s: %w", sourceSwapID, ErrNotFound)
	}

	targetSwap, err := s.swapRepo.GetByIDIn(ctx, tx, targetSwapID)
	if err != nil {
		return nil, err
	}
	if targetSwap == nil {
		return nil, fmt.Errorf("target swap %s: %w", targetSwapID, ErrNotFound)
	}

	if actorID != "" && source.OwnerID != actorID {
		return nil, fmt.Errorf("only the source swap owner may target: %w", ErrNotEligible)
	}
	if source.OwnerID == targetSwap.OwnerID {
		return nil, fmt.Errorf("cannot target own swap: %w", ErrNotEligible)
	}
	if !source.IsOpen(now) || !targetSwap.IsOpen(now) {
		return nil, fmt.Errorf("both swaps must be pending and unexpired: %w", ErrInvalidState)
	}

	existing, err := s.targetRepo.GetActiveBySource(ctx, tx, sourceSwapID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("swap %s already targets %s: %w", sourceSwapID, existing.TargetSwapID, ErrDuplicateTarget)
	}

	target := &models.Target{
		SourceSwapID:       sourceSwapID,
		TargetSwapID:       targetSwapID,
		ProposalID:         proposalID,
		AcceptanceStrategy: targetSwap.AcceptanceStrategy,
	}

	if err := s.targetRepo.Create(ctx, tx, target); err != nil {
		if storage.IsUniqueViolation(err) {
			return nil, fmt.Errorf("swap %s: %w", sourceSwapID, ErrDuplicateTarget)
		}
		return nil, err
	}

	return target, nil
}

// AcceptTarget accepts an incoming target on behalf of the targeted swap's
// owner. The accepted target, the fan-out rejection of every competing
// incoming target, and both swap status transitions commit atomically. The
// first committed accept wins; later attempts fail with ErrAlreadyResolved.
func (s *TargetingService) AcceptTarget(ctx context.Context, targetID, actorID string) (*Resolution, error) {
	target, err := s.targetRepo.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, fmt.Errorf("target %s: %w", targetID, ErrNotFound)
	}

	unlock := s.lockTargetSwap(target.TargetSwapID)
	defer unlock()

	var (
		res    Resolution
		events []event
	)

	err = s.db.Transaction(func(tx *sql.Tx) error {
		now := time.Now().UTC()

		fresh, err := s.targetRepo.GetByIDIn(ctx, tx, targetID)
		if err != nil {
			return err
		}
		if fresh.IsTerminal() {
			return fmt.Errorf("target %s: %w", targetID, ErrAlreadyResolved)
		}

		targetSwap, err := s.swapRepo.GetByIDIn(ctx, tx, fresh.TargetSwapID)
		if err != nil {
			return err
		}
		if targetSwap.OwnerID != actorID {
			return fmt.Errorf("only the targeted swap owner may accept: %w", ErrNotEligible)
		}

		source, err := s.swapRepo.GetByIDIn(ctx, tx, fresh.SourceSwapID)
		if err != nil {
			return err
		}
		if !targetSwap.IsOpen(now) || !source.IsOpen(now) {
			return fmt.Errorf("swap pair is no longer pending: %w", ErrInvalidState)
		}

		if err := s.targetRepo.Resolve(ctx, tx, fresh.ID, models.TargetStatusAccepted, nil); err != nil {
			return err
		}
		if err := s.proposalRepo.ResolveByTarget(ctx, tx, fresh.ID, models.ProposalStatusAccepted, nil); err != nil {
			return err
		}
		events = append(events, func(b *websocket.EventBroadcaster) {
			b.BroadcastTargetStatusChanged(fresh.ID, fresh.SourceSwapID, fresh.TargetSwapID, models.TargetStatusAccepted, "")
		})

		rejected, rejectEvents, err := s.rejectCompetitorsTx(ctx, tx, fresh.TargetSwapID, fresh.ID, "targeted swap was accepted elsewhere")
		if err != nil {
			return err
		}
		events = append(events, rejectEvents...)

		sourceVersion, err := s.swapRepo.UpdateStatus(ctx, tx, source.ID, models.SwapStatusAccepted)
		if err != nil {
			return err
		}
		targetVersion, err := s.swapRepo.UpdateStatus(ctx, tx, targetSwap.ID, models.SwapStatusAccepted)
		if err != nil {
			return err
		}
		events = append(events, func(b *websocket.EventBroadcaster) {
			b.BroadcastSwapStatusChanged(source.ID, models.SwapStatusPending, models.SwapStatusAccepted, sourceVersion)
			b.BroadcastSwapStatusChanged(targetSwap.ID, models.SwapStatusPending, models.SwapStatusAccepted, targetVersion)
		})

		accepted := *fresh
		accepted.Status = models.TargetStatusAccepted
		res = Resolution{Target: &accepted, RejectedTargets: rejected}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(events)
	log.Printf("Target %s accepted; %d competing targets rejected", targetID, len(res.RejectedTargets))
	return &res, nil
}

// rejectCompetitorsTx rejects every active target incoming to the swap
// except the winner, and every pending proposal not linked to the winner.
// Runs inside the acceptance transaction so the fan-out is atomic with it.
func (s *TargetingService) rejectCompetitorsTx(ctx context.Context, tx *sql.Tx, targetSwapID, winnerTargetID, reason string) ([]string, []event, error) {
	var (
		rejected []string
		events   []event
	)

	siblings, err := s.targetRepo.ListActiveByTargetSwap(ctx, tx, targetSwapID)
	if err != nil {
		return nil, nil, err
	}

	for _, sib := range siblings {
		if sib.ID == winnerTargetID {
			continue
		}
		sib := sib
		if err := s.targetRepo.Resolve(ctx, tx, sib.ID, models.TargetStatusRejected, &reason); err != nil {
			return nil, nil, err
		}
		if err := s.proposalRepo.ResolveByTarget(ctx, tx, sib.ID, models.ProposalStatusRejected, &reason); err != nil {
			return nil, nil, err
		}
		rejected = append(rejected, sib.ID)
		events = append(events, func(b *websocket.EventBroadcaster) {
			b.BroadcastTargetStatusChanged(sib.ID, sib.SourceSwapID, sib.TargetSwapID, models.TargetStatusRejected, reason)
		})
	}

	// Cash proposals carry no target edge; reject them directly.
	pending, err := s.proposalRepo.ListPendingByTargetSwap(ctx, tx, targetSwapID)
	if err != nil {
		return nil, nil, err
	}
	for _, p := range pending {
		if p.TargetID != nil {
			continue
		}
		p := p
		r := reason
		if err := s.proposalRepo.Resolve(ctx, tx, p.ID, models.ProposalStatusRejected, &r); err != nil {
			return nil, nil, err
		}
		events = append(events, func(b *websocket.EventBroadcaster) {
			b.BroadcastProposalStatusChanged(p.ID, p.TargetSwapID, models.ProposalStatusRejected, r)
		})
	}

	return rejected, events, nil
}

// RejectTarget rejects an incoming target. Both swaps stay pending and
// remain eligible for further targeting.
func (s *TargetingService) RejectTarget(ctx context.Context, targetID, actorID, reason string) error {
	target, err := s.targetRepo.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if target == nil {
		return fmt.Errorf("target %s: %w", targetID, ErrNotFound)
	}

	unlock := s.lockTargetSwap(target.TargetSwapID)
	defer unlock()

	var events []event

	err = s.db.Transaction(func(tx *sql.Tx) error {
		fresh, err := s.targetRepo.GetByIDIn(ctx, tx, targetID)
		if err != nil {
			return err
		}
		if fresh.IsTerminal() {
			return fmt.Errorf("target %s: %w", targetID, ErrAlreadyResolved)
		}

		targetSwap, err := s.swapRepo.GetByIDIn(ctx, tx, fresh.TargetSwapID)
		if err != nil {
			return err
		}
		if targetSwap.OwnerID != actorID {
			return fmt.Errorf("only the targeted swap owner may reject: %w", ErrNotEligible)
		}

		var reasonPtr *string
		if reason != "" {
			reasonPtr = &reason
		}
		if err := s.targetRepo.Resolve(ctx, tx, fresh.ID, models.TargetStatusRejected, reasonPtr); err != nil {
			return err
		}
		if err := s.proposalRepo.ResolveByTarget(ctx, tx, fresh.ID, models.ProposalStatusRejected, reasonPtr); err != nil {
			return err
		}

		events = append(events, func(b *websocket.EventBroadcaster) {
			b.BroadcastTargetStatusChanged(fresh.ID, fresh.SourceSwapID, fresh.TargetSwapID, models.TargetStatusRejected, reason)
		})
		return nil
	})
	if err != nil {
		return err
	}

	s.emit(events)
	return nil
}

// CancelTargeting cancels the source swap's active outgoing target, freeing
// it to target elsewhere.
func (s *TargetingService) CancelTargeting(ctx context.Context, swapID, targetID, actorID string) error {
	target, err := s.targetRepo.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if target == nil {
		return fmt.Errorf("target %s: %w", targetID, ErrNotFound)
	}

	unlock := s.lockTargetSwap(target.TargetSwapID)
	defer unlock()

	var events []event

	err = s.db.Transaction(func(tx *sql.Tx) error {
		cancelEvents, err := s.cancelTargetingTx(ctx, tx, swapID, targetID, actorID)
		if err != nil {
			return err
		}
		events = cancelEvents
		return nil
	})
	if err != nil {
		return err
	}

	s.emit(events)
	return nil
}

func (s *TargetingService) cancelTargetingTx(ctx context.Context, tx *sql.Tx, swapID, targetID, actorID string) ([]event, error) {
	fresh, err := s.targetRepo.GetByIDIn(ctx, tx, targetID)
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		return nil, fmt.Errorf("target %s: %w", targetID, ErrNotFound)
	}
	if fresh.SourceSwapID != swapID {
		return nil, fmt.Errorf("target %s does not originate from swap %s: %w", targetID, swapID, ErrInvalidState)
	}
	if fresh.IsTerminal() {
		return nil, fmt.Errorf("target %s: %w", targetID, ErrAlreadyResolved)
	}

	source, err := s.swapRepo.GetByIDIn(ctx, tx, swapID)
	if err != nil {
		return nil, err
	}
	if source.OwnerID != actorID {
		return nil, fmt.Errorf("only the source swap owner may cancel targeting: %w", ErrNotEligible)
	}

	reason := "targeting cancelled by source swap owner"
	if err := s.targetRepo.Resolve(ctx, tx, fresh.ID, models.TargetStatusCancelled, &reason); err != nil {
		return nil, err
	}
	if err := s.proposalRepo.ResolveByTarget(ctx, tx, fresh.ID, models.ProposalStatusRejected, &reason); err != nil {
		return nil, err
	}

	return []event{func(b *websocket.EventBroadcaster) {
		b.BroadcastTargetStatusChanged(fresh.ID, fresh.SourceSwapID, fresh.TargetSwapID, models.TargetStatusCancelled, reason)
	}}, nil
}

// Retarget cancels the swap's current outgoing target and points it at a
// new target swap in a single transaction. If the new target cannot be
// created the cancellation rolls back, so the swap is never left
// target-less by a failed retarget.
func (s *TargetingService) Retarget(ctx context.Context, swapID, currentTargetID, newTargetSwapID, actorID string) (*models.Target, error) {
	if swapID == newTargetSwapID {
		return nil, fmt.Errorf("swap cannot target itself: %w", ErrNotEligible)
	}

	current, err := s.targetRepo.GetByID(ctx, currentTargetID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("target %s: %w", currentTargetID, ErrNotFound)
	}

	unlock := s.lockTargetSwap(current.TargetSwapID)
	defer unlock()

	var (
		created *models.Target
		events  []event
	)

	err = s.db.Transaction(func(tx *sql.Tx) error {
		cancelEvents, err := s.cancelTargetingTx(ctx, tx, swapID, currentTargetID, actorID)
		if err != nil {
			return err
		}

		target, err := s.createTargetTx(ctx, tx, swapID, newTargetSwapID, actorID, nil)
		if err != nil {
			return err
		}

		created = target
		events = append(cancelEvents, func(b *websocket.EventBroadcaster) {
			b.BroadcastTargetCreated(target.ID, target.SourceSwapID, target.TargetSwapID)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(events)
	return created, nil
}

// ExpireSwap transitions a pending swap past its expiry to expired,
// cancelling its outgoing target and rejecting its incoming ones. Called by
// the expiry scheduler.
func (s *TargetingService) ExpireSwap(ctx context.Context, swapID string) error {
	return s.closeSwap(ctx, swapID, models.SwapStatusExpired, "swap expired")
}

// CancelSwap withdraws a pending swap listing on behalf of its owner.
func (s *TargetingService) CancelSwap(ctx context.Context, swapID, actorID string) error {
	swap, err := s.swapRepo.GetByID(ctx, swapID)
	if err != nil {
		return err
	}
	if swap == nil {
		return fmt.Errorf("swap %s: %w", swapID, ErrNotFound)
	}
	if swap.OwnerID != actorID {
		return fmt.Errorf("only the swap owner may cancel: %w", ErrNotEligible)
	}

	return s.closeSwap(ctx, swapID, models.SwapStatusCancelled, "swap cancelled by owner")
}

// closeSwap moves a pending swap to a terminal status and resolves every
// active target touching it, atomically.
func (s *TargetingService) closeSwap(ctx context.Context, swapID, status, reason string) error {
	unlock := s.lockTargetSwap(swapID)
	defer unlock()

	var events []event

	err := s.db.Transaction(func(tx *sql.Tx) error {
		swap, err := s.swapRepo.GetByIDIn(ctx, tx, swapID)
		if err != nil {
			return err
		}
		if swap == nil {
			return fmt.Errorf("swap %s: %w", swapID, ErrNotFound)
		}
		if swap.Status != models.SwapStatusPending {
			return fmt.Errorf("swap %s is %s: %w", swapID, swap.Status, ErrInvalidState)
		}

		// Outgoing target, if any, is cancelled.
		outgoing, err := s.targetRepo.GetActiveBySource(ctx, tx, swapID)
		if err != nil {
			return err
		}
		if outgoing != nil {
			r := reason
			if err := s.targetRepo.Resolve(ctx, tx, outgoing.ID, models.TargetStatusCancelled, &r); err != nil {
				return err
			}
			if err := s.proposalRepo.ResolveByTarget(ctx, tx, outgoing.ID, models.ProposalStatusRejected, &r); err != nil {
				return err
			}
			o := *outgoing
			events = append(events, func(b *websocket.EventBroadcaster) {
				b.BroadcastTargetStatusChanged(o.ID, o.SourceSwapID, o.TargetSwapID, models.TargetStatusCancelled, reason)
			})
		}

		// Incoming targets and target-less proposals are rejected.
		_, rejectEvents, err := s.rejectCompetitorsTx(ctx, tx, swapID, "", reason)
		if err != nil {
			return err
		}
		events = append(events, rejectEvents...)

		version, err := s.swapRepo.UpdateStatus(ctx, tx, swapID, status)
		if err != nil {
			return err
		}
		events = append(events, func(b *websocket.EventBroadcaster) {
			b.BroadcastSwapStatusChanged(swapID, models.SwapStatusPending, status, version)
		})

		// The listing no longer holds the booking; release it.
		return s.bookingRepo.SetAvailability(ctx, tx, swap.BookingID, models.AvailabilityAvailable)
	})
	if err != nil {
		return err
	}

	s.emit(events)
	return nil
}

// CompleteSwap marks an accepted swap as completed after settlement.
func (s *TargetingService) CompleteSwap(ctx context.Context, swapID, actorID string) error {
	var events []event

	err := s.db.Transaction(func(tx *sql.Tx) error {
		swap, err := s.swapRepo.GetByIDIn(ctx, tx, swapID)
		if err != nil {
			return err
		}
		if swap == nil {
			return fmt.Errorf("swap %s: %w", swapID, ErrNotFound)
		}
		if swap.OwnerID != actorID {
			return fmt.Errorf("only the swap owner may complete: %w", ErrNotEligible)
		}
		if swap.Status != models.SwapStatusAccepted {
			return fmt.Errorf("swap %s is %s, not accepted: %w", swapID, swap.Status, ErrInvalidState)
		}

		version, err := s.swapRepo.UpdateStatus(ctx, tx, swapID, models.SwapStatusCompleted)
		if err != nil {
			return err
		}
		events = append(events, func(b *websocket.EventBroadcaster) {
			b.BroadcastSwapStatusChanged(swapID, models.SwapStatusAccepted, models.SwapStatusCompleted, version)
		})
		return nil
	})
	if err != nil {
		return err
	}

	s.emit(events)
	return nil
}
