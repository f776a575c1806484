package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// ErrSyncDivergence means the validator found structural inconsistency in a
// freshly fetched projection, even after the automatic retry.
var ErrSyncDivergence = errors.New("projection diverged from authoritative state")

// Fetcher supplies a full authoritative projection snapshot.
type Fetcher interface {
	FetchProjection(ctx context.Context) (*Projection, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context) (*Projection, error)

// FetchProjection implements Fetcher.
func (f FetcherFunc) FetchProjection(ctx context.Context) (*Projection, error) {
	return f(ctx)
}

// Synchronizer keeps a cached projection aligned with authoritative state.
// Push events update it incrementally; Synchronize replaces it wholesale.
// Overlapping Synchronize calls coalesce onto one in-flight fetch.
type Synchronizer struct {
	fetcher Fetcher

	mu         sync.Mutex
	projection *Projection
	inflight   *syncCall
}

type syncCall struct {
	done chan struct{}
	err  error
}

// New creates a synchronizer with an empty projection.
func New(fetcher Fetcher) *Synchronizer {
	return &Synchronizer{
		fetcher:    fetcher,
		projection: NewProjection(),
	}
}

// Projection returns a deep copy of the current projection.
func (s *Synchronizer) Projection() *Projection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projection.Clone()
}

// ApplyEvent applies a push event to the cached projection.
func (s *Synchronizer) ApplyEvent(ev StatusEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projection.Apply(ev)
}

// Validate runs the structural validator over the current projection.
func (s *Synchronizer) Validate() Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Validate(s.projection)
}

// Synchronize forces a full refetch-and-reconcile cycle. It is idempotent,
// and a call arriving while another is in flight awaits that call's result
// instead of issuing a duplicate fetch. The new projection is swapped in
// atomically after it validates, so an abandoned caller never observes a
// partial commit. A validation failure triggers exactly one automatic
// retry before surfacing ErrSyncDivergence.
func (s *Synchronizer) Synchronize(ctx context.Context) error {
	s.mu.Lock()
	if call := s.inflight; call != nil {
		s.mu.Unlock()
		select {
		case <-call.done:
			return call.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	call := &syncCall{done: make(chan struct{})}
	s.inflight = call
	s.mu.Unlock()

	// The fetch runs detached from the caller's context so that coalesced
	// waiters still get a result when the initiating caller goes away.
	go func() {
		call.err = s.refetch(context.Background())

		s.mu.Lock()
		s.inflight = nil
		s.mu.Unlock()
		close(call.done)
	}()

	select {
	case <-call.done:
		return call.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Synchronizer) refetch(ctx context.Context) error {
	for attempt := 0; attempt < 2; attempt++ {
		fresh, err := s.fetcher.FetchProjection(ctx)
		if err != nil {
			return fmt.Errorf("fetching projection: %w", err)
		}

		report := Validate(fresh)
		if report.IsValid {
			s.mu.Lock()
			s.projection = fresh
			s.mu.Unlock()
			return nil
		}

		log.Printf("Projection validation failed (score %d, %d errors), attempt %d", report.Score, len(report.Errors), attempt+1)
	}

	return ErrSyncDivergence
}

// Run refetches on a fixed interval until the context is cancelled. Errors
// are logged; the loop keeps going.
func (s *Synchronizer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Synchronize(ctx); err != nil && ctx.Err() == nil {
				log.Printf("Periodic synchronize failed: %v", err)
			}
		}
	}
}
