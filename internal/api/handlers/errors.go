package handlers

import (
	"errors"
	"net/http"

	"github.com/bookswap/backend/internal/api/middleware"
	"github.com/bookswap/backend/internal/engine"
	"github.com/bookswap/backend/internal/syncer"
)

// writeDomainError maps engine and syncer errors onto HTTP responses. The
// caller-retryable kinds (AlreadyResolved, SyncDivergence) get 409/502 so
// clients can distinguish them from user-surfaceable validation failures.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, err.Error())
	case errors.Is(err, engine.ErrDuplicateTarget):
		middleware.WriteError(w, http.StatusConflict, middleware.ErrDuplicateTarget, err.Error())
	case errors.Is(err, engine.ErrAlreadyResolved):
		middleware.WriteError(w, http.StatusConflict, middleware.ErrAlreadyResolved, err.Error())
	case errors.Is(err, engine.ErrInvalidState):
		middleware.WriteError(w, http.StatusConflict, middleware.ErrInvalidState, err.Error())
	case errors.Is(err, engine.ErrNotEligible):
		middleware.WriteError(w, http.StatusUnprocessableEntity, middleware.ErrNotEligible, err.Error())
	case errors.Is(err, engine.ErrOutOfRange):
		middleware.WriteError(w, http.StatusUnprocessableEntity, middleware.ErrOutOfRange, err.Error())
	case errors.Is(err, syncer.ErrSyncDivergence):
		middleware.WriteError(w, http.StatusBadGateway, middleware.ErrSyncDivergence, err.Error())
	default:
		middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "An unexpected error occurred")
	}
}

// actorID extracts the caller identity. Authentication is handled upstream;
// the handlers only need an identity to enforce owner-only rules.
func actorID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

// requireActor writes an error and returns "" when no identity is present.
func requireActor(w http.ResponseWriter, r *http.Request) string {
	id := actorID(r)
	if id == "" {
		middleware.WriteError(w, http.StatusUnauthorized, middleware.ErrUnauthorized, "X-User-ID header is required")
	}
	return id
}
