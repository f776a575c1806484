package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/bookswap/backend/internal/api/middleware"
	"github.com/bookswap/backend/internal/engine"
)

// CreateTarget points a swap at another swap.
func CreateTarget(targeting *engine.TargetingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := requireActor(w, r)
		if actor == "" {
			return
		}

		var req struct {
			TargetSwapID string `json:"target_swap_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TargetSwapID == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "target_swap_id is required")
			return
		}

		target, err := targeting.CreateTarget(r.Context(), mux.Vars(r)["id"], req.TargetSwapID, actor)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(target)
	}
}

// AcceptTarget accepts an incoming target, rejecting every competitor.
func AcceptTarget(targeting *engine.TargetingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := requireActor(w, r)
		if actor == "" {
			return
		}

		res, err := targeting.AcceptTarget(r.Context(), mux.Vars(r)["id"], actor)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(res)
	}
}

// RejectTarget rejects an incoming target; both swaps stay pending.
func RejectTarget(targeting *engine.TargetingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := requireActor(w, r)
		if actor == "" {
			return
		}

		var req struct {
			Reason string `json:"reason"`
		}
		// Body is optional for rejects.
		json.NewDecoder(r.Body).Decode(&req)

		if err := targeting.RejectTarget(r.Context(), mux.Vars(r)["id"], actor, req.Reason); err != nil {
			writeDomainError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// CancelTargeting cancels the swap's active outgoing target.
func CancelTargeting(targeting *engine.TargetingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := requireActor(w, r)
		if actor == "" {
			return
		}

		vars := mux.Vars(r)
		if err := targeting.CancelTargeting(r.Context(), vars["id"], vars["targetId"], actor); err != nil {
			writeDomainError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// Retarget atomically swaps the current outgoing target for a new one.
func Retarget(targeting *engine.TargetingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := requireActor(w, r)
		if actor == "" {
			return
		}

		var req struct {
			CurrentTargetID string `json:"current_target_id"`
			NewTargetSwapID string `json:"new_target_swap_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CurrentTargetID == "" || req.NewTargetSwapID == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "current_target_id and new_target_swap_id are required")
			return
		}

		target, err := targeting.Retarget(r.Context(), mux.Vars(r)["id"], req.CurrentTargetID, req.NewTargetSwapID, actor)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(target)
	}
}
