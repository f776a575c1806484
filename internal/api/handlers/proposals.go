package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/bookswap/backend/internal/api/middleware"
	"github.com/bookswap/backend/internal/engine"
)

// SubmitProposal attaches a booking or cash offer to a swap.
func SubmitProposal(proposals *engine.ProposalService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := requireActor(w, r)
		if actor == "" {
			return
		}

		var offer engine.Offer
		if err := json.NewDecoder(r.Body).Decode(&offer); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		proposal, err := proposals.SubmitProposal(r.Context(), mux.Vars(r)["id"], actor, offer)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(proposal)
	}
}

// AcceptProposal accepts a proposal, resolving the linked target when one
// exists.
func AcceptProposal(proposals *engine.ProposalService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := requireActor(w, r)
		if actor == "" {
			return
		}

		if err := proposals.AcceptProposal(r.Context(), mux.Vars(r)["id"], actor); err != nil {
			writeDomainError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// RejectProposal rejects a proposal.
func RejectProposal(proposals *engine.ProposalService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := requireActor(w, r)
		if actor == "" {
			return
		}

		var req struct {
			Reason string `json:"reason"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		if err := proposals.RejectProposal(r.Context(), mux.Vars(r)["id"], actor, req.Reason); err != nil {
			writeDomainError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
