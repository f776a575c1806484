// Package api provides HTTP routing and handlers for the REST API.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/bookswap/backend/internal/api/handlers"
	"github.com/bookswap/backend/internal/api/middleware"
	"github.com/bookswap/backend/internal/discovery"
	"github.com/bookswap/backend/internal/engine"
	"github.com/bookswap/backend/internal/storage"
	"github.com/bookswap/backend/internal/websocket"
)

// Services bundles the engine services the router depends on.
type Services struct {
	Swaps     *engine.SwapService
	Targeting *engine.TargetingService
	Proposals *engine.ProposalService
	Browse    *discovery.BrowseService

	DefaultPageSize int
	MaxPageSize     int
}

// NewRouter creates and configures the HTTP router with all API routes.
func NewRouter(db *storage.DB, hub *websocket.Hub, staticDir string, svc Services) *mux.Router {
	r := mux.NewRouter()

	// Apply global middleware
	r.Use(middleware.Logging)
	r.Use(middleware.ErrorRecovery)

	// API subrouter
	api := r.PathPrefix("/api").Subrouter()

	swapRepo := storage.NewSwapRepository(db)
	targetRepo := storage.NewTargetRepository(db)
	proposalRepo := storage.NewProposalRepository(db)
	bookingRepo := storage.NewBookingRepository(db)

	// Health and status endpoints
	api.HandleFunc("/health", handlers.HealthCheck(db)).Methods("GET")
	api.HandleFunc("/status", handlers.Status(db, hub)).Methods("GET")

	// WebSocket endpoint
	api.HandleFunc("/ws", handlers.WebSocketUpgrade(hub)).Methods("GET")

	// Booking catalog endpoints
	api.HandleFunc("/bookings", handlers.ImportBooking(bookingRepo)).Methods("POST")
	api.HandleFunc("/bookings", handlers.ListMyBookings(bookingRepo)).Methods("GET")
	api.HandleFunc("/bookings/{id}", handlers.GetBooking(bookingRepo)).Methods("GET")

	// Swap endpoints
	api.HandleFunc("/swaps", handlers.ListSwaps(swapRepo)).Methods("GET")
	api.HandleFunc("/swaps", handlers.CreateSwap(svc.Swaps)).Methods("POST")
	api.HandleFunc("/swaps/{id}", handlers.GetSwap(swapRepo, targetRepo, proposalRepo)).Methods("GET")
	api.HandleFunc("/swaps/{id}", handlers.CancelSwap(svc.Targeting)).Methods("DELETE")
	api.HandleFunc("/swaps/{id}/complete", handlers.CompleteSwap(svc.Targeting)).Methods("POST")

	// Targeting endpoints
	api.HandleFunc("/swaps/{id}/target", handlers.CreateTarget(svc.Targeting)).Methods("POST")
	api.HandleFunc("/swaps/{id}/target/{targetId}", handlers.CancelTargeting(svc.Targeting)).Methods("DELETE")
	api.HandleFunc("/swaps/{id}/retarget", handlers.Retarget(svc.Targeting)).Methods("POST")
	api.HandleFunc("/targets/{id}/accept", handlers.AcceptTarget(svc.Targeting)).Methods("POST")
	api.HandleFunc("/targets/{id}/reject", handlers.RejectTarget(svc.Targeting)).Methods("POST")

	// Proposal endpoints
	api.HandleFunc("/swaps/{id}/proposals", handlers.SubmitProposal(svc.Proposals)).Methods("POST")
	api.HandleFunc("/proposals/{id}/accept", handlers.AcceptProposal(svc.Proposals)).Methods("POST")
	api.HandleFunc("/proposals/{id}/reject", handlers.RejectProposal(svc.Proposals)).Methods("POST")

	// Discovery endpoint
	api.HandleFunc("/browse", handlers.Browse(svc.Browse, svc.DefaultPageSize, svc.MaxPageSize)).Methods("GET")

	// Serve static frontend files
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(staticDir)))

	return r
}
