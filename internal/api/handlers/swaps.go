package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/bookswap/backend/internal/api/middleware"
	"github.com/bookswap/backend/internal/engine"
	"github.com/bookswap/backend/internal/storage"
	"github.com/bookswap/backend/internal/storage/models"
)

// ListSwaps returns swaps with optional status/owner filtering.
func ListSwaps(swapRepo *storage.SwapRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		status := r.URL.Query().Get("status")
		owner := r.URL.Query().Get("owner")

		swaps, err := swapRepo.List(ctx, status, owner)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query swaps")
			return
		}

		if swaps == nil {
			swaps = []models.Swap{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(swaps)
	}
}

// GetSwap returns a single swap with its targets and proposals.
func GetSwap(swapRepo *storage.SwapRepository, targetRepo *storage.TargetRepository, proposalRepo *storage.ProposalRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := mux.Vars(r)["id"]

		swap, err := swapRepo.GetByID(ctx, id)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query swap")
			return
		}
		if swap == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Swap not found")
			return
		}

		targets, err := targetRepo.ListBySwap(ctx, id)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query targets")
			return
		}
		proposals, err := proposalRepo.ListByTargetSwap(ctx, id)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query proposals")
			return
		}

		response := map[string]any{
			"swap":      swap,
			"targets":   targets,
			"proposals": proposals,
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}
}

// CreateSwap lists a booking for exchange.
func CreateSwap(swapService *engine.SwapService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := requireActor(w, r)
		if actor == "" {
			return
		}

		var params engine.ListSwapParams
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		swap, err := swapService.CreateSwap(r.Context(), actor, params)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(swap)
	}
}

// CancelSwap withdraws a pending swap listing.
func CancelSwap(targeting *engine.TargetingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := requireActor(w, r)
		if actor == "" {
			return
		}

		if err := targeting.CancelSwap(r.Context(), mux.Vars(r)["id"], actor); err != nil {
			writeDomainError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// CompleteSwap marks an accepted swap as settled.
func CompleteSwap(targeting *engine.TargetingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := requireActor(w, r)
		if actor == "" {
			return
		}

		if err := targeting.CompleteSwap(r.Context(), mux.Vars(r)["id"], actor); err != nil {
			writeDomainError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
