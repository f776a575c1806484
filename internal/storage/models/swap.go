package models

import (
	"time"
)

// Swap represents a booking listed for exchange.
type Swap struct {
	ID                 string       `json:"id"`
	OwnerID            string       `json:"owner_id"`
	BookingID          string       `json:"booking_id"`
	Status             string       `json:"status"`
	AcceptanceStrategy string       `json:"acceptance_strategy"`
	Cash               *CashDetails `json:"cash_details,omitempty"`
	Version            int64        `json:"version"`
	CreatedAt          time.Time    `json:"created_at"`
	ExpiresAt          time.Time    `json:"expires_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// CashDetails holds the parameters of a swap that accepts monetary offers.
// A swap with cash details is a cash swap; otherwise it is a booking swap.
type CashDetails struct {
	MinAmount       float64  `json:"min_amount"`
	MaxAmount       float64  `json:"max_amount"`
	PreferredAmount float64  `json:"preferred_amount"`
	Currency        string   `json:"currency"`
	PaymentMethods  []string `json:"payment_methods"`
	EscrowRequired  bool     `json:"escrow_required"`
}

// Swap lifecycle status constants
const (
	SwapStatusPending   = "pending"
	SwapStatusAccepted  = "accepted"
	SwapStatusRejected  = "rejected"
	SwapStatusCancelled = "cancelled"
	SwapStatusCompleted = "completed"
	SwapStatusExpired   = "expired"
)

// Acceptance strategy constants - policy on a target swap governing how
// competing incoming targets are resolved.
const (
	StrategyOneForOne            = "one_for_one"
	StrategyFirstMatch           = "first_match"
	StrategyFirstComeFirstServed = "first_come_first_served"
)

// IsCashSwap returns true if the swap accepts cash offers.
func (s *Swap) IsCashSwap() bool {
	return s.Cash != nil
}

// IsOpen returns true if the swap is pending and not past its expiry,
// i.e. eligible to create or receive targets.
func (s *Swap) IsOpen(now time.Time) bool {
	return s.Status == SwapStatusPending && now.Before(s.ExpiresAt)
}

// IsTerminal returns true once the swap has left the pending state.
func (s *Swap) IsTerminal() bool {
	return s.Status != SwapStatusPending
}

// EffectiveValue returns the price used for range filtering: the preferred
// cash amount for cash swaps, the booking swap value otherwise.
func (s *Swap) EffectiveValue(booking *Booking) float64 {
	if s.Cash != nil && s.Cash.PreferredAmount > 0 {
		return s.Cash.PreferredAmount
	}
	return booking.SwapValue
}
