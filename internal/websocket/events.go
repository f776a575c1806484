package websocket

import (
	"log"
	"time"
)

// EventBroadcaster handles broadcasting WebSocket events.
type EventBroadcaster struct {
	hub *Hub
}

// NewEventBroadcaster creates a new event broadcaster.
func NewEventBroadcaster(hub *Hub) *EventBroadcaster {
	return &EventBroadcaster{hub: hub}
}

// BroadcastSwapStatusChanged sends a swap.status_changed event.
func (b *EventBroadcaster) BroadcastSwapStatusChanged(swapID, previousStatus, newStatus string, version int64) {
	payload := SwapStatusPayload{
		SwapID:         swapID,
		PreviousStatus: previousStatus,
		NewStatus:      newStatus,
		Version:        version,
		Timestamp:      time.Now().UTC(),
	}

	msg := NewMessage(TypeSwapStatusChanged, payload)
	b.broadcast(msg)
}

// BroadcastTargetCreated sends a target.created event.
func (b *EventBroadcaster) BroadcastTargetCreated(targetID, sourceSwapID, targetSwapID string) {
	payload := TargetCreatedPayload{
		TargetID:     targetID,
		SourceSwapID: sourceSwapID,
		TargetSwapID: targetSwapID,
	}

	msg := NewMessage(TypeTargetCreated, payload)
	b.broadcast(msg)
}

// BroadcastTargetStatusChanged sends a target.status_changed event.
func (b *EventBroadcaster) BroadcastTargetStatusChanged(targetID, sourceSwapID, targetSwapID, newStatus, reason string) {
	payload := TargetStatusPayload{
		TargetID:     targetID,
		SourceSwapID: sourceSwapID,
		TargetSwapID: targetSwapID,
		NewStatus:    newStatus,
		Reason:       reason,
	}

	msg := NewMessage(TypeTargetStatusChanged, payload)
	b.broadcast(msg)
}

// BroadcastProposalStatusChanged sends a proposal.status_changed event.
func (b *EventBroadcaster) BroadcastProposalStatusChanged(proposalID, targetSwapID, newStatus, reason string) {
	payload := ProposalStatusPayload{
		ProposalID:   proposalID,
		TargetSwapID: targetSwapID,
		NewStatus:    newStatus,
		Reason:       reason,
	}

	msg := NewMessage(TypeProposalStatusChanged, payload)
	b.broadcast(msg)
}

// BroadcastNotification sends a notification to all connected clients.
func (b *EventBroadcaster) BroadcastNotification(level, title, message string) {
	payload := NotificationPayload{
		Level:       level,
		Title:       title,
		Message:     message,
		Dismissible: true,
	}

	msg := NewMessage(TypeNotification, payload)
	b.broadcast(msg)
}

// broadcast sends a message to all connected clients.
func (b *EventBroadcaster) broadcast(msg Message) {
	data, err := msg.JSON()
	if err != nil {
		log.Printf("Error encoding WebSocket message: %v", err)
		return
	}

	b.hub.Broadcast(data)
}
