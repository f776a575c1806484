package syncer

import (
	"context"

	"github.com/bookswap/backend/internal/storage"
	"github.com/bookswap/backend/internal/storage/models"
)

// StoreFetcher builds a projection straight from the authoritative store.
// Server-side consumers (and tests) use it; remote clients substitute a
// Fetcher backed by the HTTP API.
type StoreFetcher struct {
	swapRepo   *storage.SwapRepository
	targetRepo *storage.TargetRepository
}

// NewStoreFetcher creates a store-backed projection fetcher.
func NewStoreFetcher(swapRepo *storage.SwapRepository, targetRepo *storage.TargetRepository) *StoreFetcher {
	return &StoreFetcher{swapRepo: swapRepo, targetRepo: targetRepo}
}

// FetchProjection implements Fetcher.
func (f *StoreFetcher) FetchProjection(ctx context.Context) (*Projection, error) {
	swaps, err := f.swapRepo.List(ctx, "", "")
	if err != nil {
		return nil, err
	}

	p := NewProjection()
	for _, s := range swaps {
		p.Swaps[s.ID] = &ProjectedSwap{
			ID:        s.ID,
			Status:    s.Status,
			Version:   s.Version,
			UpdatedAt: s.UpdatedAt,
		}
	}

	for _, s := range swaps {
		targets, err := f.targetRepo.ListBySwap(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		swap := p.Swaps[s.ID]
		for _, t := range targets {
			pt := ProjectedTarget{
				ID:           t.ID,
				SourceSwapID: t.SourceSwapID,
				TargetSwapID: t.TargetSwapID,
				Status:       t.Status,
			}
			if t.SourceSwapID == s.ID && t.Status == models.TargetStatusActive {
				swap.OutgoingTarget = &pt
			}
			if t.TargetSwapID == s.ID && t.Status == models.TargetStatusActive {
				swap.IncomingTargets = append(swap.IncomingTargets, pt)
			}
		}
		swap.IncomingTargetCount = len(swap.IncomingTargets)
	}

	return p, nil
}
