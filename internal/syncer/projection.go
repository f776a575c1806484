// Package syncer reconciles a client-held projection of swap, target, and
// proposal state against authoritative updates delivered as discrete
// status-change events, and detects divergence between the two.
package syncer

import (
	"log"
	"time"
)

// ProjectedTarget is the projection's view of a target edge.
type ProjectedTarget struct {
	ID           string `json:"id"`
	SourceSwapID string `json:"source_swap_id"`
	TargetSwapID string `json:"target_swap_id"`
	Status       string `json:"status"`
}

// ProjectedSwap is the projection's view of a swap and its relationships.
type ProjectedSwap struct {
	ID                  string            `json:"id"`
	Status              string            `json:"status"`
	Version             int64             `json:"version"`
	UpdatedAt           time.Time         `json:"updated_at"`
	OutgoingTarget      *ProjectedTarget  `json:"outgoing_target,omitempty"`
	IncomingTargets     []ProjectedTarget `json:"incoming_targets"`
	IncomingTargetCount int               `json:"incoming_target_count"`
}

// Projection is a cached view of the swap graph, keyed by swap id.
type Projection struct {
	Swaps map[string]*ProjectedSwap `json:"swaps"`
}

// NewProjection creates an empty projection.
func NewProjection() *Projection {
	return &Projection{Swaps: make(map[string]*ProjectedSwap)}
}

// Clone returns a deep copy of the projection.
func (p *Projection) Clone() *Projection {
	out := NewProjection()
	for id, s := range p.Swaps {
		copied := *s
		if s.OutgoingTarget != nil {
			t := *s.OutgoingTarget
			copied.OutgoingTarget = &t
		}
		copied.IncomingTargets = append([]ProjectedTarget(nil), s.IncomingTargets...)
		out.Swaps[id] = &copied
	}
	return out
}

// StatusEvent is an authoritative status-change notification for a swap.
// Version is the swap's post-transition version; events without one fall
// back to timestamp comparison for staleness.
type StatusEvent struct {
	SwapID    string    `json:"swap_id"`
	NewStatus string    `json:"new_status"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// Apply updates the projection from an event. Unknown swap ids are logged
// as anomalies and ignored. Stale or out-of-order events are discarded
// rather than regressing state. Returns true when the event was applied.
func (p *Projection) Apply(ev StatusEvent) bool {
	swap, ok := p.Swaps[ev.SwapID]
	if !ok {
		log.Printf("Ignoring event for unknown swap %s", ev.SwapID)
		return false
	}

	if ev.Version > 0 {
		if ev.Version <= swap.Version {
			return false
		}
		swap.Version = ev.Version
	} else if !ev.Timestamp.After(swap.UpdatedAt) {
		return false
	}

	swap.Status = ev.NewStatus
	if ev.Timestamp.After(swap.UpdatedAt) {
		swap.UpdatedAt = ev.Timestamp
	}
	return true
}
