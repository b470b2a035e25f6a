// internal/gateway/ccbill/webhook.go
package ccbill

import (
	"net/url"
	"strconv"
)

// Webhook event types this system reacts to. Everything else is answered
// with a benign no-op so the gateway does not retry.
const (
	EventNewSaleSuccess   = "NewSaleSuccess"
	EventRenewalSuccess   = "RenewalSuccess"
	EventUserReactivation = "UserReactivation"
)

// WebhookEvent is a normalized inbound gateway callback. The payload arrives
// as form/query parameters, not JSON.
type WebhookEvent struct {
	Type           string
	TransactionID  string // passthrough field set at redirect time
	SubscriptionID string // gateway-side recurring plan id
	BilledAmount   float64
	RenewalDate    string
	Raw            map[string]interface{}
}

// ParseWebhook normalizes the gateway's form/query payload.
func ParseWebhook(values url.Values) *WebhookEvent {
	raw := make(map[string]interface{}, len(values))
	for key := range values {
		raw[key] = values.Get(key)
	}

	amount, _ := strconv.ParseFloat(values.Get("billedCurrencyAmount"), 64)
	if amount == 0 {
		amount, _ = strconv.ParseFloat(values.Get("accountingAmount"), 64)
	}

	return &WebhookEvent{
		Type:           values.Get("eventType"),
		TransactionID:  values.Get("X-transactionId"),
		SubscriptionID: values.Get("subscriptionId"),
		BilledAmount:   amount,
		RenewalDate:    values.Get("renewalDate"),
		Raw:            raw,
	}
}

// Recognized reports whether this event type drives any state transition.
func (e *WebhookEvent) Recognized() bool {
	switch e.Type {
	case EventNewSaleSuccess, EventRenewalSuccess, EventUserReactivation:
		return true
	}
	return false
}
