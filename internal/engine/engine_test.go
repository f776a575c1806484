package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bookswap/backend/internal/storage"
	"github.com/bookswap/backend/internal/storage/models"
)

// testEnv wires the engine services over an in-memory database.
type testEnv struct {
	db           *storage.DB
	bookingRepo  *storage.BookingRepository
	swapRepo     *storage.SwapRepository
	targetRepo   *storage.TargetRepository
	proposalRepo *storage.ProposalRepository

	swaps     *SwapService
	targeting *TargetingService
	proposals *ProposalService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := storage.NewMemoryDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		db:           db,
		bookingRepo:  storage.NewBookingRepository(db),
		swapRepo:     storage.NewSwapRepository(db),
		targetRepo:   storage.NewTargetRepository(db),
		proposalRepo: storage.NewProposalRepository(db),
	}
	env.targeting = NewTargetingService(db, env.swapRepo, env.targetRepo, env.proposalRepo, env.bookingRepo, nil)
	env.proposals = NewProposalService(db, env.swapRepo, env.bookingRepo, env.proposalRepo, env.targeting, nil)
	env.swaps = NewSwapService(db, env.swapRepo, env.bookingRepo)

	return env
}

func (e *testEnv) seedBooking(t *testing.T, owner, city string) *models.Booking {
	t.Helper()

	booking := &models.Booking{
		OwnerID:       owner,
		Type:          models.BookingTypeHotel,
		Title:         "Stay in " + city,
		Description:   "Two nights, city centre",
		City:          city,
		Country:       "France",
		CheckIn:       time.Now().UTC().Add(30 * 24 * time.Hour),
		CheckOut:      time.Now().UTC().Add(32 * 24 * time.Hour),
		OriginalPrice: 400,
		SwapValue:     350,
		Verification:  models.VerificationVerified,
		Availability:  models.AvailabilityAvailable,
	}
	require.NoError(t, e.bookingRepo.Create(context.Background(), booking))
	return booking
}

func (e *testEnv) seedSwap(t *testing.T, owner string, cash *models.CashDetails) *models.Swap {
	t.Helper()

	booking := e.seedBooking(t, owner, "Paris")
	swap, err := e.swaps.CreateSwap(context.Background(), owner, ListSwapParams{
		BookingID: booking.ID,
		ExpiresAt: time.Now().UTC().Add(7 * 24 * time.Hour),
		Cash:      cash,
	})
	require.NoError(t, err)
	return swap
}

func TestCreateTarget_SingleOutgoingInvariant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	s1 := env.seedSwap(t, "u1", nil)
	s2 := env.seedSwap(t, "u2", nil)
	s3 := env.seedSwap(t, "u3", nil)

	target, err := env.targeting.CreateTarget(ctx, s1.ID, s2.ID, "u1")
	require.NoError(t, err)
	require.Equal(t, models.TargetStatusActive, target.Status)
	require.Equal(t, s2.AcceptanceStrategy, target.AcceptanceStrategy)

	// Second outgoing target without cancelling the first
	_, err = env.targeting.CreateTarget(ctx, s1.ID, s3.ID, "u1")
	require.ErrorIs(t, err, ErrDuplicateTarget)
}

func TestCreateTarget_Preconditions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	s1 := env.seedSwap(t, "u1", nil)
	s2 := env.seedSwap(t, "u2", nil)

	_, err := env.targeting.CreateTarget(ctx, s1.ID, s1.ID, "u1")
	require.ErrorIs(t, err, ErrNotEligible)

	_, err = env.targeting.CreateTarget(ctx, s1.ID, "nope", "u1")
	require.ErrorIs(t, err, ErrNotFound)

	// Only the source owner may target
	_, err = env.targeting.CreateTarget(ctx, s1.ID, s2.ID, "u2")
	require.ErrorIs(t, err, ErrNotEligible)

	// Cancelled swaps are not targetable
	require.NoError(t, env.targeting.CancelSwap(ctx, s2.ID, "u2"))
	_, err = env.targeting.CreateTarget(ctx, s1.ID, s2.ID, "u1")
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestAcceptTarget_FanOutRejection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	s2 := env.seedSwap(t, "u2", nil)
	s3 := env.seedSwap(t, "u3", nil)
	s4 := env.seedSwap(t, "u4", nil)

	t3, err := env.targeting.CreateTarget(ctx, s3.ID, s2.ID, "u3")
	require.NoError(t, err)
	t4, err := env.targeting.CreateTarget(ctx, s4.ID, s2.ID, "u4")
	require.NoError(t, err)

	res, err := env.targeting.AcceptTarget(ctx, t3.ID, "u2")
	require.NoError(t, err)
	require.Equal(t, models.TargetStatusAccepted, res.Target.Status)
	require.Equal(t, []string{t4.ID}, res.RejectedTargets)

	// Competing target was rejected atomically
	got4, err := env.targetRepo.GetByID(ctx, t4.ID)
	require.NoError(t, err)
	require.Equal(t, models.TargetStatusRejected, got4.Status)

	// Both swaps of the winning pair are accepted
	gotS2, err := env.swapRepo.GetByID(ctx, s2.ID)
	require.NoError(t, err)
	require.Equal(t, models.SwapStatusAccepted, gotS2.Status)
	gotS3, err := env.swapRepo.GetByID(ctx, s3.ID)
	require.NoError(t, err)
	require.Equal(t, models.SwapStatusAccepted, gotS3.Status)

	// The loser stays pending and free to target elsewhere
	gotS4, err := env.swapRepo.GetByID(ctx, s4.ID)
	require.NoError(t, err)
	require.Equal(t, models.SwapStatusPending, gotS4.Status)
}

func TestAcceptTarget_OnlyTargetOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	s1 := env.seedSwap(t, "u1", nil)
	s2 := env.seedSwap(t, "u2", nil)

	target, err := env.targeting.CreateTarget(ctx, s1.ID, s2.ID, "u1")
	require.NoError(t, err)

	_, err = env.targeting.AcceptTarget(ctx, target.ID, "u1")
	require.ErrorIs(t, err, ErrNotEligible)
}

func TestAcceptTarget_ConcurrentRace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	s2 := env.seedSwap(t, "u2", nil)
	s3 := env.seedSwap(t, "u3", nil)
	s4 := env.seedSwap(t, "u4", nil)

	t3, err := env.targeting.CreateTarget(ctx, s3.ID, s2.ID, "u3")
	require.NoError(t, err)
	t4, err := env.targeting.CreateTarget(ctx, s4.ID, s2.ID, "u4")
	require.NoError(t, err)

	results := make(chan error, 2)
	for _, id := range []string{t3.ID, t4.ID} {
		id := id
		go func() {
			_, err := env.targeting.AcceptTarget(ctx, id, "u2")
			results <- err
		}()
	}

	var failures []error
	for i := 0; i < 2; i++ {
		if err := <-results; err != nil {
			failures = append(failures, err)
		}
	}

	// Exactly one accept wins; the loser reports the lost race.
	require.Len(t, failures, 1)
	require.ErrorIs(t, failures[0], ErrAlreadyResolved)
}

func TestRejectTarget_SwapsStayPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	s1 := env.seedSwap(t, "u1", nil)
	s2 := env.seedSwap(t, "u2", nil)

	target, err := env.targeting.CreateTarget(ctx, s1.ID, s2.ID, "u1")
	require.NoError(t, err)

	require.NoError(t, env.targeting.RejectTarget(ctx, target.ID, "u2", "not interested"))

	got, err := env.targetRepo.GetByID(ctx, target.ID)
	require.NoError(t, err)
	require.Equal(t, models.TargetStatusRejected, got.Status)
	require.NotNil(t, got.Reason)

	for _, id := range []string{s1.ID, s2.ID} {
		swap, err := env.swapRepo.GetByID(ctx, id)
		require.NoError(t, err)
		require.Equal(t, models.SwapStatusPending, swap.Status)
	}

	// Terminal targets are immutable history.
	err = env.targeting.RejectTarget(ctx, target.ID, "u2", "")
	require.ErrorIs(t, err, ErrAlreadyResolved)

	// The source swap is free to target again.
	_, err = env.targeting.CreateTarget(ctx, s1.ID, s2.ID, "u1")
	require.NoError(t, err)
}

func TestCancelTargeting(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	s1 := env.seedSwap(t, "u1", nil)
	s2 := env.seedSwap(t, "u2", nil)

	target, err := env.targeting.CreateTarget(ctx, s1.ID, s2.ID, "u1")
	require.NoError(t, err)

	// Only the source owner may cancel.
	err = env.targeting.CancelTargeting(ctx, s1.ID, target.ID, "u2")
	require.ErrorIs(t, err, ErrNotEligible)

	require.NoError(t, env.targeting.CancelTargeting(ctx, s1.ID, target.ID, "u1"))

	got, err := env.targetRepo.GetByID(ctx, target.ID)
	require.NoError(t, err)
	require.Equal(t, models.TargetStatusCancelled, got.Status)

	_, err = env.targeting.CreateTarget(ctx, s1.ID, s2.ID, "u1")
	require.NoError(t, err)
}

func TestRetarget_AtomicSwitch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	s1 := env.seedSwap(t, "u1", nil)
	s2 := env.seedSwap(t, "u2", nil)
	s3 := env.seedSwap(t, "u3", nil)

	current, err := env.targeting.CreateTarget(ctx, s1.ID, s2.ID, "u1")
	require.NoError(t, err)

	next, err := env.targeting.Retarget(ctx, s1.ID, current.ID, s3.ID, "u1")
	require.NoError(t, err)
	require.Equal(t, s3.ID, next.TargetSwapID)

	old, err := env.targetRepo.GetByID(ctx, current.ID)
	require.NoError(t, err)
	require.Equal(t, models.TargetStatusCancelled, old.Status)
}

func TestRetarget_RollbackOnFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	s1 := env.seedSwap(t, "u1", nil)
	s2 := env.seedSwap(t, "u2", nil)

	current, err := env.targeting.CreateTarget(ctx, s1.ID, s2.ID, "u1")
	require.NoError(t, err)

	// Retargeting toward a missing swap fails and rolls the cancel back.
	_, err = env.targeting.Retarget(ctx, s1.ID, current.ID, "missing", "u1")
	require.ErrorIs(t, err, ErrNotFound)

	got, err := env.targetRepo.GetByID(ctx, current.ID)
	require.NoError(t, err)
	require.Equal(t, models.TargetStatusActive, got.Status)
}

func TestExpireSwap_ResolvesAllEdges(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	s1 := env.seedSwap(t, "u1", nil)
	s2 := env.seedSwap(t, "u2", nil)
	s3 := env.seedSwap(t, "u3", nil)

	outgoing, err := env.targeting.CreateTarget(ctx, s2.ID, s3.ID, "u2")
	require.NoError(t, err)
	incoming, err := env.targeting.CreateTarget(ctx, s1.ID, s2.ID, "u1")
	require.NoError(t, err)

	require.NoError(t, env.targeting.ExpireSwap(ctx, s2.ID))

	swap, err := env.swapRepo.GetByID(ctx, s2.ID)
	require.NoError(t, err)
	require.Equal(t, models.SwapStatusExpired, swap.Status)

	// The listing's booking is released back to the catalog.
	booking, err := env.bookingRepo.GetByID(ctx, swap.BookingID)
	require.NoError(t, err)
	require.Equal(t, models.AvailabilityAvailable, booking.Availability)

	gotOut, err := env.targetRepo.GetByID(ctx, outgoing.ID)
	require.NoError(t, err)
	require.Equal(t, models.TargetStatusCancelled, gotOut.Status)

	gotIn, err := env.targetRepo.GetByID(ctx, incoming.ID)
	require.NoError(t, err)
	require.Equal(t, models.TargetStatusRejected, gotIn.Status)
}

func TestCompleteSwap(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	s1 := env.seedSwap(t, "u1", nil)
	s2 := env.seedSwap(t, "u2", nil)

	// Completion requires an accepted swap.
	err := env.targeting.CompleteSwap(ctx, s2.ID, "u2")
	require.ErrorIs(t, err, ErrInvalidState)

	target, err := env.targeting.CreateTarget(ctx, s1.ID, s2.ID, "u1")
	require.NoError(t, err)
	_, err = env.targeting.AcceptTarget(ctx, target.ID, "u2")
	require.NoError(t, err)

	require.NoError(t, env.targeting.CompleteSwap(ctx, s2.ID, "u2"))

	swap, err := env.swapRepo.GetByID(ctx, s2.ID)
	require.NoError(t, err)
	require.Equal(t, models.SwapStatusCompleted, swap.Status)
}
