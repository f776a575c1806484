package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/bookswap/backend/internal/storage"
	"github.com/bookswap/backend/internal/storage/models"
	"github.com/bookswap/backend/internal/websocket"
)

// ProposalService handles the substantive offers accompanying targets:
// booking counter-offers and cash offers against cash swaps.
type ProposalService struct {
	db           *storage.DB
	swapRepo     *storage.SwapRepository
	bookingRepo  *storage.BookingRepository
	proposalRepo *storage.ProposalRepository
	targeting    *TargetingService
	broadcaster  *websocket.EventBroadcaster
}

// NewProposalService creates a new proposal service.
func NewProposalService(
	db *storage.DB,
	swapRepo *storage.SwapRepository,
	bookingRepo *storage.BookingRepository,
	proposalRepo *storage.ProposalRepository,
	targeting *TargetingService,
	hub *websocket.Hub,
) *ProposalService {
	var broadcaster *websocket.EventBroadcaster
	if hub != nil {
		broadcaster = websocket.NewEventBroadcaster(hub)
	}

	return &ProposalService{
		db:           db,
		swapRepo:     swapRepo,
		bookingRepo:  bookingRepo,
		proposalRepo: proposalRepo,
		targeting:    targeting,
		broadcaster:  broadcaster,
	}
}

// Offer is the substance of a proposal. Exactly one of SourceBookingID
// (booking swaps) or CashAmount (cash swaps) must be set.
type Offer struct {
	SourceBookingID   string   `json:"source_booking_id,omitempty"`
	AdditionalPayment *float64 `json:"additional_payment,omitempty"`
	CashAmount        *float64 `json:"cash_amount,omitempty"`
	CashCurrency      string   `json:"cash_currency,omitempty"`
	PaymentMethodID   string   `json:"payment_method_id,omitempty"`
	Conditions        []string `json:"conditions,omitempty"`
	Message           string   `json:"message,omitempty"`
}

// SubmitProposal creates a proposal against a target swap. Booking offers
// also create the target edge from the proposer's swap listing the offered
// booking, so the proposal is never an orphan. Cash offers have no source
// swap and therefore no target edge.
func (s *ProposalService) SubmitProposal(ctx context.Context, targetSwapID, proposerID string, offer Offer) (*models.Proposal, error) {
	targetSwap, err := s.swapRepo.GetByID(ctx, targetSwapID)
	if err != nil {
		return nil, err
	}
	if targetSwap == nil {
		return nil, fmt.Errorf("swap %s: %w", targetSwapID, ErrNotFound)
	}
	if targetSwap.OwnerID == proposerID {
		return nil, fmt.Errorf("cannot propose against own swap: %w", ErrNotEligible)
	}
	if !targetSwap.IsOpen(time.Now().UTC()) {
		return nil, fmt.Errorf("swap %s is not open for proposals: %w", targetSwapID, ErrNotEligible)
	}

	switch {
	case offer.CashAmount != nil:
		return s.submitCashProposal(ctx, targetSwap, proposerID, offer)
	case offer.SourceBookingID != "":
		return s.submitBookingProposal(ctx, targetSwap, proposerID, offer)
	default:
		return nil, fmt.Errorf("offer must carry a booking or a cash amount: %w", ErrNotEligible)
	}
}

func (s *ProposalService) submitCashProposal(ctx context.Context, targetSwap *models.Swap, proposerID string, offer Offer) (*models.Proposal, error) {
	if !targetSwap.IsCashSwap() {
		return nil, fmt.Errorf("swap %s does not accept cash offers: %w", targetSwap.ID, ErrNotEligible)
	}

	amount := *offer.CashAmount
	if amount < targetSwap.Cash.MinAmount || amount > targetSwap.Cash.MaxAmount {
		return nil, fmt.Errorf("amount %.2f outside [%.2f, %.2f]: %w",
			amount, targetSwap.Cash.MinAmount, targetSwap.Cash.MaxAmount, ErrOutOfRange)
	}
	if offer.PaymentMethodID == "" {
		return nil, fmt.Errorf("cash offer requires a payment method: %w", ErrNotEligible)
	}

	proposal := &models.Proposal{
		TargetSwapID:    targetSwap.ID,
		ProposerID:      proposerID,
		CashAmount:      offer.CashAmount,
		CashCurrency:    strPtrOrNil(offer.CashCurrency),
		PaymentMethodID: strPtrOrNil(offer.PaymentMethodID),
		Conditions:      offer.Conditions,
		Message:         strPtrOrNil(offer.Message),
	}

	err := s.db.Transaction(func(tx *sql.Tx) error {
		return s.proposalRepo.Create(ctx, tx, proposal)
	})
	if err != nil {
		return nil, err
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastProposalStatusChanged(proposal.ID, proposal.TargetSwapID, models.ProposalStatusPending, "")
	}
	return proposal, nil
}

func (s *ProposalService) submitBookingProposal(ctx context.Context, targetSwap *models.Swap, proposerID string, offer Offer) (*models.Proposal, error) {
	booking, err := s.bookingRepo.GetByID(ctx, offer.SourceBookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, fmt.Errorf("booking %s: %w", offer.SourceBookingID, ErrNotFound)
	}
	if booking.OwnerID != proposerID {
		return nil, fmt.Errorf("proposer does not own the offered booking: %w", ErrNotEligible)
	}

	// The target edge needs a source swap: the proposer's pending listing
	// for the offered booking.
	sourceSwap, err := s.findSwapForBooking(ctx, proposerID, booking.ID)
	if err != nil {
		return nil, err
	}
	if sourceSwap == nil {
		return nil, fmt.Errorf("offered booking %s is not listed for exchange: %w", booking.ID, ErrNotEligible)
	}

	proposal := &models.Proposal{
		TargetSwapID:      targetSwap.ID,
		ProposerID:        proposerID,
		OfferedBookingID:  &booking.ID,
		AdditionalPayment: offer.AdditionalPayment,
		Conditions:        offer.Conditions,
		Message:           strPtrOrNil(offer.Message),
	}

	var target *models.Target

	err = s.db.Transaction(func(tx *sql.Tx) error {
		if err := s.proposalRepo.Create(ctx, tx, proposal); err != nil {
			return err
		}

		t, err := s.targeting.createTargetTx(ctx, tx, sourceSwap.ID, targetSwap.ID, proposerID, &proposal.ID)
		if err != nil {
			return err
		}
		target = t

		proposal.TargetID = &t.ID
		_, err = tx.ExecContext(ctx, `UPDATE proposals SET target_id = ? WHERE id = ?`, t.ID, proposal.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastTargetCreated(target.ID, target.SourceSwapID, target.TargetSwapID)
		s.broadcaster.BroadcastProposalStatusChanged(proposal.ID, proposal.TargetSwapID, models.ProposalStatusPending, "")
	}

	log.Printf("Proposal %s submitted against swap %s (target %s)", proposal.ID, targetSwap.ID, target.ID)
	return proposal, nil
}

func (s *ProposalService) findSwapForBooking(ctx context.Context, ownerID, bookingID string) (*models.Swap, error) {
	swaps, err := s.swapRepo.List(ctx, models.SwapStatusPending, ownerID)
	if err != nil {
		return nil, err
	}
	for i := range swaps {
		if swaps[i].BookingID == bookingID {
			return &swaps[i], nil
		}
	}
	return nil, nil
}

// AcceptProposal accepts a proposal on behalf of the target swap's owner.
// Proposals linked to a target delegate to AcceptTarget, which mirrors the
// proposal status. Target-less proposals (cash offers) resolve the swap
// directly through the same fan-out path.
func (s *ProposalService) AcceptProposal(ctx context.Context, proposalID, actorID string) error {
	proposal, err := s.proposalRepo.GetByID(ctx, proposalID)
	if err != nil {
		return err
	}
	if proposal == nil {
		return fmt.Errorf("proposal %s: %w", proposalID, ErrNotFound)
	}

	if proposal.TargetID != nil {
		_, err := s.targeting.AcceptTarget(ctx, *proposal.TargetID, actorID)
		return err
	}

	if !proposal.IsCashOffer() {
		// A booking proposal with no target edge is legacy orphan data;
		// accepting it would bypass every targeting precondition.
		return fmt.Errorf("proposal %s has no linked target: %w", proposalID, ErrNotEligible)
	}

	return s.acceptCashProposal(ctx, proposal, actorID)
}

func (s *ProposalService) acceptCashProposal(ctx context.Context, proposal *models.Proposal, actorID string) error {
	unlock := s.targeting.lockTargetSwap(proposal.TargetSwapID)
	defer unlock()

	var events []event

	err := s.db.Transaction(func(tx *sql.Tx) error {
		now := time.Now().UTC()

		fresh, err := s.proposalRepo.GetByIDIn(ctx, tx, proposal.ID)
		if err != nil {
			return err
		}
		if fresh.Status != models.ProposalStatusPending {
			return fmt.Errorf("proposal %s: %w", proposal.ID, ErrAlreadyResolved)
		}

		targetSwap, err := s.swapRepo.GetByIDIn(ctx, tx, fresh.TargetSwapID)
		if err != nil {
			return err
		}
		if targetSwap.OwnerID != actorID {
			return fmt.Errorf("only the swap owner may accept proposals: %w", ErrNotEligible)
		}
		if !targetSwap.IsOpen(now) {
			return fmt.Errorf("swap %s is no longer pending: %w", targetSwap.ID, ErrInvalidState)
		}

		if err := s.proposalRepo.Resolve(ctx, tx, fresh.ID, models.ProposalStatusAccepted, nil); err != nil {
			return err
		}
		events = append(events, func(b *websocket.EventBroadcaster) {
			b.BroadcastProposalStatusChanged(fresh.ID, fresh.TargetSwapID, models.ProposalStatusAccepted, "")
		})

		_, rejectEvents, err := s.targeting.rejectCompetitorsTx(ctx, tx, fresh.TargetSwapID, "", "cash offer was accepted")
		if err != nil {
			return err
		}
		events = append(events, rejectEvents...)

		version, err := s.swapRepo.UpdateStatus(ctx, tx, targetSwap.ID, models.SwapStatusAccepted)
		if err != nil {
			return err
		}
		events = append(events, func(b *websocket.EventBroadcaster) {
			b.BroadcastSwapStatusChanged(targetSwap.ID, models.SwapStatusPending, models.SwapStatusAccepted, version)
		})
		return nil
	})
	if err != nil {
		return err
	}

	s.targeting.emit(events)
	return nil
}

// RejectProposal rejects a proposal, delegating to RejectTarget when a
// target edge is linked so the two stay mirrored.
func (s *ProposalService) RejectProposal(ctx context.Context, proposalID, actorID, reason string) error {
	proposal, err := s.proposalRepo.GetByID(ctx, proposalID)
	if err != nil {
		return err
	}
	if proposal == nil {
		return fmt.Errorf("proposal %s: %w", proposalID, ErrNotFound)
	}

	if proposal.TargetID != nil {
		return s.targeting.RejectTarget(ctx, *proposal.TargetID, actorID, reason)
	}

	targetSwap, err := s.swapRepo.GetByID(ctx, proposal.TargetSwapID)
	if err != nil {
		return err
	}
	if targetSwap == nil || targetSwap.OwnerID != actorID {
		return fmt.Errorf("only the swap owner may reject proposals: %w", ErrNotEligible)
	}

	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}

	err = s.db.Transaction(func(tx *sql.Tx) error {
		fresh, err := s.proposalRepo.GetByIDIn(ctx, tx, proposalID)
		if err != nil {
			return err
		}
		if fresh.Status != models.ProposalStatusPending {
			return fmt.Errorf("proposal %s: %w", proposalID, ErrAlreadyResolved)
		}
		return s.proposalRepo.Resolve(ctx, tx, proposalID, models.ProposalStatusRejected, reasonPtr)
	})
	if err != nil {
		return err
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastProposalStatusChanged(proposalID, proposal.TargetSwapID, models.ProposalStatusRejected, reason)
	}
	return nil
}

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
