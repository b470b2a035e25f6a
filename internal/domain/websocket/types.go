// internal/domain/websocket/types.go
package websocket

import "time"

// EventType represents different real-time event types
type EventType string

const (
	// Connection events
	EventTypePing      EventType = "ping"
	EventTypePong      EventType = "pong"
	EventTypeConnected EventType = "connected"
	EventTypeError     EventType = "error"

	// Payment events (server -> client)
	EventTypePaymentRedirect EventType = "payment:redirect"
	EventTypePaymentConfirm  EventType = "payment:require_authentication"
)

// WSMessage is the universal message format
type WSMessage struct {
	Type      EventType              `json:"type"`
	Data      interface{}            `json:"data,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewMessage builds a timestamped message.
func NewMessage(eventType EventType, data interface{}) *WSMessage {
	return &WSMessage{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// PaymentRedirectData points the client at the receipt page for a settled
// transaction, keyed by the user-facing transaction reference.
type PaymentRedirectData struct {
	TransactionID string `json:"transaction_id"`
	Reference     string `json:"reference"`
	Status        string `json:"status"`
	RedirectURL   string `json:"redirect_url"`
}

// PaymentConfirmData prompts the client to complete card authentication.
type PaymentConfirmData struct {
	TransactionID string `json:"transaction_id"`
	ClientSecret  string `json:"client_secret"`
}
