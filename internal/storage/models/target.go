package models

import (
	"time"
)

// Target is a directed edge from one swap toward another, expressing
// "I want this". A swap has at most one active outgoing target but may
// receive any number of active incoming targets.
type Target struct {
	ID                 string    `json:"id"`
	SourceSwapID       string    `json:"source_swap_id"`
	TargetSwapID       string    `json:"target_swap_id"`
	ProposalID         *string   `json:"proposal_id,omitempty"`
	Status             string    `json:"status"`
	AcceptanceStrategy string    `json:"acceptance_strategy"`
	Reason             *string   `json:"reason,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Target status constants. The three terminal statuses are mutually
// exclusive; a terminal target is immutable history.
const (
	TargetStatusActive    = "active"
	TargetStatusAccepted  = "accepted"
	TargetStatusRejected  = "rejected"
	TargetStatusCancelled = "cancelled"
)

// IsTerminal returns true once the target has been resolved.
func (t *Target) IsTerminal() bool {
	return t.Status != TargetStatusActive
}
