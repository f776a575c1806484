package models

import (
	"time"
)

// Booking is an immutable snapshot of a catalog booking. The catalog owns
// these records; the swap engine only reads them.
type Booking struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	Type          string    `json:"type"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	City          string    `json:"city"`
	Country       string    `json:"country"`
	CheckIn       time.Time `json:"check_in"`
	CheckOut      time.Time `json:"check_out"`
	OriginalPrice float64   `json:"original_price"`
	SwapValue     float64   `json:"swap_value"`
	Verification  string    `json:"verification"`
	Availability  string    `json:"availability"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Booking type constants
const (
	BookingTypeHotel  = "hotel"
	BookingTypeEvent  = "event"
	BookingTypeFlight = "flight"
	BookingTypeRental = "rental"
)

// Verification status constants
const (
	VerificationPending  = "pending"
	VerificationVerified = "verified"
	VerificationRejected = "rejected"
)

// Availability status constants
const (
	AvailabilityAvailable = "available"
	AvailabilityLocked    = "locked"
	AvailabilityCancelled = "cancelled"
)

// Location returns the "city, country" display string used for
// location sorting and filtering.
func (b *Booking) Location() string {
	return b.City + ", " + b.Country
}

// IsListable returns true if the booking can back a new swap listing.
func (b *Booking) IsListable() bool {
	return b.Availability == AvailabilityAvailable && b.Verification != VerificationRejected
}
