package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/bookswap/backend/internal/api/middleware"
	"github.com/bookswap/backend/internal/storage"
	"github.com/bookswap/backend/internal/storage/models"
)

// ImportBooking registers a catalog booking snapshot. The catalog is the
// source of truth; this endpoint mirrors its records into the store.
func ImportBooking(bookingRepo *storage.BookingRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := requireActor(w, r)
		if actor == "" {
			return
		}

		var booking models.Booking
		if err := json.NewDecoder(r.Body).Decode(&booking); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		if booking.Title == "" || booking.City == "" || booking.Country == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "title, city, and country are required")
			return
		}
		if !booking.CheckOut.After(booking.CheckIn) {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "check_out must be after check_in")
			return
		}

		booking.OwnerID = actor
		if booking.Verification == "" {
			booking.Verification = models.VerificationPending
		}
		if booking.Availability == "" {
			booking.Availability = models.AvailabilityAvailable
		}
		booking.CheckIn = booking.CheckIn.UTC()
		booking.CheckOut = booking.CheckOut.UTC()

		if err := bookingRepo.Create(r.Context(), &booking); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to store booking")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(booking)
	}
}

// GetBooking returns a booking snapshot.
func GetBooking(bookingRepo *storage.BookingRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		booking, err := bookingRepo.GetByID(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query booking")
			return
		}
		if booking == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Booking not found")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(booking)
	}
}

// ListMyBookings returns the caller's bookings.
func ListMyBookings(bookingRepo *storage.BookingRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := requireActor(w, r)
		if actor == "" {
			return
		}

		bookings, err := bookingRepo.ListByOwner(r.Context(), actor)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query bookings")
			return
		}
		if bookings == nil {
			bookings = []models.Booking{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(bookings)
	}
}
