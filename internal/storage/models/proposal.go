package models

import (
	"time"
)

// Proposal is the concrete offer accompanying a target: either a counter
// booking (booking swaps) or a cash amount (cash swaps). Cash proposals
// carry no target edge because the proposer has no source swap.
type Proposal struct {
	ID                string    `json:"id"`
	TargetSwapID      string    `json:"target_swap_id"`
	ProposerID        string    `json:"proposer_id"`
	TargetID          *string   `json:"target_id,omitempty"`
	OfferedBookingID  *string   `json:"offered_booking_id,omitempty"`
	CashAmount        *float64  `json:"cash_amount,omitempty"`
	CashCurrency      *string   `json:"cash_currency,omitempty"`
	PaymentMethodID   *string   `json:"payment_method_id,omitempty"`
	AdditionalPayment *float64  `json:"additional_payment,omitempty"`
	Conditions        []string  `json:"conditions,omitempty"`
	Message           *string   `json:"message,omitempty"`
	Status            string    `json:"status"`
	Reason            *string   `json:"reason,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Proposal status constants
const (
	ProposalStatusPending  = "pending"
	ProposalStatusAccepted = "accepted"
	ProposalStatusRejected = "rejected"
)

// IsCashOffer returns true if the proposal offers cash instead of a booking.
func (p *Proposal) IsCashOffer() bool {
	return p.CashAmount != nil
}
