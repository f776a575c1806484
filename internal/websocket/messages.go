package websocket

import (
	"encoding/json"
	"time"
)

// MessageType identifies the type of WebSocket message.
type MessageType string

const (
	// Server -> Client event types
	TypeSwapStatusChanged     MessageType = "swap.status_changed"
	TypeTargetCreated         MessageType = "target.created"
	TypeTargetStatusChanged   MessageType = "target.status_changed"
	TypeProposalStatusChanged MessageType = "proposal.status_changed"
	TypeNotification          MessageType = "notification"

	// Client -> Server command types
	TypeSubscribe   MessageType = "subscribe"
	TypeUnsubscribe MessageType = "unsubscribe"
	TypePing        MessageType = "ping"

	// Server -> Client response types
	TypeSubscribeAck MessageType = "subscribe.ack"
	TypePong         MessageType = "pong"
	TypeError        MessageType = "error"
)

// Message represents a WebSocket message envelope.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload"`
}

// NewMessage creates a new message with the current timestamp.
func NewMessage(msgType MessageType, payload any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// JSON serializes the message to JSON bytes.
func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// SwapStatusPayload is the payload for swap.status_changed events. Version
// is the swap's post-transition version; consumers use it to discard stale
// or out-of-order events.
type SwapStatusPayload struct {
	SwapID         string    `json:"swap_id"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	Version        int64     `json:"version"`
	Timestamp      time.Time `json:"timestamp"`
}

// TargetCreatedPayload is the payload for target.created events.
type TargetCreatedPayload struct {
	TargetID     string `json:"target_id"`
	SourceSwapID string `json:"source_swap_id"`
	TargetSwapID string `json:"target_swap_id"`
}

// TargetStatusPayload is the payload for target.status_changed events.
type TargetStatusPayload struct {
	TargetID     string `json:"target_id"`
	SourceSwapID string `json:"source_swap_id"`
	TargetSwapID string `json:"target_swap_id"`
	NewStatus    string `json:"new_status"`
	Reason       string `json:"reason,omitempty"`
}

// ProposalStatusPayload is the payload for proposal.status_changed events.
type ProposalStatusPayload struct {
	ProposalID   string `json:"proposal_id"`
	TargetSwapID string `json:"target_swap_id"`
	NewStatus    string `json:"new_status"`
	Reason       string `json:"reason,omitempty"`
}

// NotificationPayload is the payload for notification events.
type NotificationPayload struct {
	Level       string `json:"level"` // info, warning, error, success
	Title       string `json:"title"`
	Message     string `json:"message"`
	Dismissible bool   `json:"dismissible"`
}

// ErrorPayload is the payload for error messages.
type ErrorPayload struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	OriginalType string `json:"original_type,omitempty"`
}
