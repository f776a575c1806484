// Package handlers provides HTTP request handlers for the API endpoints.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/bookswap/backend/internal/storage"
	"github.com/bookswap/backend/internal/websocket"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string `json:"status"`
	DBConnected bool   `json:"db_connected"`
}

// HealthCheck returns a handler that performs a health check.
func HealthCheck(db *storage.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbConnected := db.Ping() == nil

		status := "healthy"
		if !dbConnected {
			status = "degraded"
		}

		response := HealthResponse{
			Status:      status,
			DBConnected: dbConnected,
		}

		w.Header().Set("Content-Type", "application/json")
		if status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(response)
	}
}

// StatusResponse represents the system status response.
type StatusResponse struct {
	BookingsCount    int `json:"bookings_count"`
	PendingSwaps     int `json:"pending_swaps"`
	ActiveTargets    int `json:"active_targets"`
	PendingProposals int `json:"pending_proposals"`
	ConnectedClients int `json:"connected_clients"`
}

// Status returns a handler that provides system status information.
func Status(db *storage.DB, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var response StatusResponse
		db.QueryRowContext(ctx, "SELECT COUNT(*) FROM bookings").Scan(&response.BookingsCount)
		db.QueryRowContext(ctx, "SELECT COUNT(*) FROM swaps WHERE status = 'pending'").Scan(&response.PendingSwaps)
		db.QueryRowContext(ctx, "SELECT COUNT(*) FROM targets WHERE status = 'active'").Scan(&response.ActiveTargets)
		db.QueryRowContext(ctx, "SELECT COUNT(*) FROM proposals WHERE status = 'pending'").Scan(&response.PendingProposals)
		response.ConnectedClients = hub.ClientCount()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}
}
