package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookswap/backend/internal/engine"
	"github.com/bookswap/backend/internal/storage"
	"github.com/bookswap/backend/internal/storage/models"
)

func TestStoreFetcher(t *testing.T) {
	db, err := storage.NewMemoryDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	bookings := storage.NewBookingRepository(db)
	swaps := storage.NewSwapRepository(db)
	targets := storage.NewTargetRepository(db)
	proposals := storage.NewProposalRepository(db)
	targeting := engine.NewTargetingService(db, swaps, targets, proposals, bookings, nil)
	swapSvc := engine.NewSwapService(db, swaps, bookings)

	list := func(owner string) *models.Swap {
		b := &models.Booking{
			OwnerID:      owner,
			Type:         models.BookingTypeRental,
			Title:        "Cottage",
			City:         "Galway",
			Country:      "Ireland",
			CheckIn:      time.Now().UTC().Add(15 * 24 * time.Hour),
			CheckOut:     time.Now().UTC().Add(17 * 24 * time.Hour),
			Verification: models.VerificationVerified,
			Availability: models.AvailabilityAvailable,
		}
		require.NoError(t, bookings.Create(ctx, b))
		s, err := swapSvc.CreateSwap(ctx, owner, engine.ListSwapParams{
			BookingID: b.ID,
			ExpiresAt: time.Now().UTC().Add(7 * 24 * time.Hour),
		})
		require.NoError(t, err)
		return s
	}

	s1 := list("u1")
	s2 := list("u2")
	edge, err := targeting.CreateTarget(ctx, s1.ID, s2.ID, "u1")
	require.NoError(t, err)

	sync := New(NewStoreFetcher(swaps, targets))
	require.NoError(t, sync.Synchronize(ctx))

	p := sync.Projection()
	require.Contains(t, p.Swaps, s1.ID)
	require.Contains(t, p.Swaps, s2.ID)

	// The edge shows outgoing on the source and incoming on the target.
	require.NotNil(t, p.Swaps[s1.ID].OutgoingTarget)
	assert.Equal(t, edge.ID, p.Swaps[s1.ID].OutgoingTarget.ID)
	require.Len(t, p.Swaps[s2.ID].IncomingTargets, 1)
	assert.Equal(t, 1, p.Swaps[s2.ID].IncomingTargetCount)

	report := sync.Validate()
	assert.True(t, report.IsValid)

	// Accept, then confirm a push event matching the store keeps the cached
	// projection consistent without a refetch.
	res, err := targeting.AcceptTarget(ctx, edge.ID, "u2")
	require.NoError(t, err)
	require.Equal(t, models.TargetStatusAccepted, res.Target.Status)

	fresh, err := swaps.GetByID(ctx, s2.ID)
	require.NoError(t, err)
	applied := sync.ApplyEvent(StatusEvent{
		SwapID:    s2.ID,
		NewStatus: fresh.Status,
		Version:   fresh.Version,
		Timestamp: fresh.UpdatedAt,
	})
	assert.True(t, applied)
	assert.Equal(t, models.SwapStatusAccepted, sync.Projection().Swaps[s2.ID].Status)

	// A full resync converges to the same state.
	require.NoError(t, sync.Synchronize(ctx))
	p = sync.Projection()
	assert.Equal(t, models.SwapStatusAccepted, p.Swaps[s2.ID].Status)
	assert.Empty(t, p.Swaps[s2.ID].IncomingTargets)
}
