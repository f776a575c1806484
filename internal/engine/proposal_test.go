package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bookswap/backend/internal/storage/models"
)

func cashRange(min, max float64) *models.CashDetails {
	return &models.CashDetails{
		MinAmount:      min,
		MaxAmount:      max,
		Currency:       "EUR",
		PaymentMethods: []string{"card", "bank_transfer"},
	}
}

func floatPtr(v float64) *float64 { return &v }

func TestSubmitProposal_Preconditions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	swap := env.seedSwap(t, "u1", nil)

	_, err := env.proposals.SubmitProposal(ctx, "missing", "u2", Offer{SourceBookingID: "b"})
	require.ErrorIs(t, err, ErrNotFound)

	// Cannot propose against your own swap.
	_, err = env.proposals.SubmitProposal(ctx, swap.ID, "u1", Offer{SourceBookingID: "b"})
	require.ErrorIs(t, err, ErrNotEligible)

	// Empty offer carries nothing to evaluate.
	_, err = env.proposals.SubmitProposal(ctx, swap.ID, "u2", Offer{})
	require.ErrorIs(t, err, ErrNotEligible)
}

func TestSubmitBookingProposal_CreatesTargetEdge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	target := env.seedSwap(t, "u1", nil)
	source := env.seedSwap(t, "u2", nil)

	proposal, err := env.proposals.SubmitProposal(ctx, target.ID, "u2", Offer{
		SourceBookingID:   source.BookingID,
		AdditionalPayment: floatPtr(50),
		Message:           "happy to top up",
	})
	require.NoError(t, err)
	require.NotNil(t, proposal.TargetID)
	require.Equal(t, models.ProposalStatusPending, proposal.Status)

	edge, err := env.targetRepo.GetByID(ctx, *proposal.TargetID)
	require.NoError(t, err)
	require.Equal(t, source.ID, edge.SourceSwapID)
	require.Equal(t, target.ID, edge.TargetSwapID)
	require.NotNil(t, edge.ProposalID)
	require.Equal(t, proposal.ID, *edge.ProposalID)
}

func TestSubmitBookingProposal_UnlistedBooking(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	target := env.seedSwap(t, "u1", nil)
	booking := env.seedBooking(t, "u2", "Lyon")

	// A booking with no pending swap listing it cannot back a proposal.
	_, err := env.proposals.SubmitProposal(ctx, target.ID, "u2", Offer{
		SourceBookingID: booking.ID,
	})
	require.ErrorIs(t, err, ErrNotEligible)

	// Nor can someone else's booking.
	other := env.seedSwap(t, "u3", nil)
	_, err = env.proposals.SubmitProposal(ctx, target.ID, "u2", Offer{
		SourceBookingID: other.BookingID,
	})
	require.ErrorIs(t, err, ErrNotEligible)
}

func TestSubmitCashProposal_RangeEnforced(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	swap := env.seedSwap(t, "u1", cashRange(300, 500))

	// Below the advertised range
	_, err := env.proposals.SubmitProposal(ctx, swap.ID, "u2", Offer{
		CashAmount:      floatPtr(250),
		CashCurrency:    "EUR",
		PaymentMethodID: "pm-1",
	})
	require.ErrorIs(t, err, ErrOutOfRange)

	// Within range succeeds and carries no target edge
	proposal, err := env.proposals.SubmitProposal(ctx, swap.ID, "u2", Offer{
		CashAmount:      floatPtr(400),
		CashCurrency:    "EUR",
		PaymentMethodID: "pm-1",
	})
	require.NoError(t, err)
	require.Nil(t, proposal.TargetID)
	require.True(t, proposal.IsCashOffer())

	// Missing payment method
	_, err = env.proposals.SubmitProposal(ctx, swap.ID, "u3", Offer{
		CashAmount:   floatPtr(400),
		CashCurrency: "EUR",
	})
	require.ErrorIs(t, err, ErrNotEligible)

	// Cash offers against a booking-only swap are refused
	plain := env.seedSwap(t, "u4", nil)
	_, err = env.proposals.SubmitProposal(ctx, plain.ID, "u2", Offer{
		CashAmount:      floatPtr(400),
		PaymentMethodID: "pm-1",
	})
	require.ErrorIs(t, err, ErrNotEligible)
}

func TestAcceptProposal_BookingDelegatesToTarget(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	target := env.seedSwap(t, "u1", nil)
	source := env.seedSwap(t, "u2", nil)

	proposal, err := env.proposals.SubmitProposal(ctx, target.ID, "u2", Offer{
		SourceBookingID: source.BookingID,
	})
	require.NoError(t, err)

	require.NoError(t, env.proposals.AcceptProposal(ctx, proposal.ID, "u1"))

	got, err := env.proposalRepo.GetByID(ctx, proposal.ID)
	require.NoError(t, err)
	require.Equal(t, models.ProposalStatusAccepted, got.Status)

	for _, id := range []string{target.ID, source.ID} {
		swap, err := env.swapRepo.GetByID(ctx, id)
		require.NoError(t, err)
		require.Equal(t, models.SwapStatusAccepted, swap.Status)
	}
}

func TestAcceptCashProposal_RejectsCompetitors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	swap := env.seedSwap(t, "u1", cashRange(300, 500))
	rival := env.seedSwap(t, "u3", nil)

	cash, err := env.proposals.SubmitProposal(ctx, swap.ID, "u2", Offer{
		CashAmount:      floatPtr(350),
		CashCurrency:    "EUR",
		PaymentMethodID: "pm-1",
	})
	require.NoError(t, err)

	booking, err := env.proposals.SubmitProposal(ctx, swap.ID, "u3", Offer{
		SourceBookingID: rival.BookingID,
	})
	require.NoError(t, err)

	// Only the swap owner may accept.
	err = env.proposals.AcceptProposal(ctx, cash.ID, "u2")
	require.ErrorIs(t, err, ErrNotEligible)

	require.NoError(t, env.proposals.AcceptProposal(ctx, cash.ID, "u1"))

	gotCash, err := env.proposalRepo.GetByID(ctx, cash.ID)
	require.NoError(t, err)
	require.Equal(t, models.ProposalStatusAccepted, gotCash.Status)

	// The competing booking proposal and its target edge lost the race.
	gotBooking, err := env.proposalRepo.GetByID(ctx, booking.ID)
	require.NoError(t, err)
	require.Equal(t, models.ProposalStatusRejected, gotBooking.Status)

	edge, err := env.targetRepo.GetByID(ctx, *booking.TargetID)
	require.NoError(t, err)
	require.Equal(t, models.TargetStatusRejected, edge.Status)

	gotSwap, err := env.swapRepo.GetByID(ctx, swap.ID)
	require.NoError(t, err)
	require.Equal(t, models.SwapStatusAccepted, gotSwap.Status)

	// The rival's own listing is untouched.
	gotRival, err := env.swapRepo.GetByID(ctx, rival.ID)
	require.NoError(t, err)
	require.Equal(t, models.SwapStatusPending, gotRival.Status)

	// Accepting again reports the earlier resolution.
	err = env.proposals.AcceptProposal(ctx, cash.ID, "u1")
	require.ErrorIs(t, err, ErrAlreadyResolved)
}

func TestRejectProposal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	swap := env.seedSwap(t, "u1", cashRange(100, 200))

	cash, err := env.proposals.SubmitProposal(ctx, swap.ID, "u2", Offer{
		CashAmount:      floatPtr(150),
		PaymentMethodID: "pm-1",
	})
	require.NoError(t, err)

	err = env.proposals.RejectProposal(ctx, cash.ID, "u2", "")
	require.ErrorIs(t, err, ErrNotEligible)

	require.NoError(t, env.proposals.RejectProposal(ctx, cash.ID, "u1", "too low"))

	got, err := env.proposalRepo.GetByID(ctx, cash.ID)
	require.NoError(t, err)
	require.Equal(t, models.ProposalStatusRejected, got.Status)

	// The swap remains open for further proposals.
	gotSwap, err := env.swapRepo.GetByID(ctx, swap.ID)
	require.NoError(t, err)
	require.Equal(t, models.SwapStatusPending, gotSwap.Status)

	err = env.proposals.RejectProposal(ctx, cash.ID, "u1", "")
	require.ErrorIs(t, err, ErrAlreadyResolved)
}
