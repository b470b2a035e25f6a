// internal/gateway/stripe/webhook.go
package stripe

import (
	"encoding/json"
	"fmt"

	stripeapi "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

// Event type prefixes for the two webhook streams.
const (
	EventPaymentIntentCreated        = "payment_intent.created"
	EventPaymentIntentProcessing     = "payment_intent.processing"
	EventPaymentIntentCanceled       = "payment_intent.canceled"
	EventPaymentIntentFailed         = "payment_intent.payment_failed"
	EventPaymentIntentRequiresAction = "payment_intent.requires_action"
	EventPaymentIntentSucceeded      = "payment_intent.succeeded"

	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// ConstructEvent verifies and decodes an inbound event envelope. When no
// webhook secret is configured (development), the signature check is skipped
// and the payload is decoded directly.
func ConstructEvent(payload []byte, sigHeader, secret string) (stripeapi.Event, error) {
	if secret != "" {
		return webhook.ConstructEvent(payload, sigHeader, secret)
	}

	var event stripeapi.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return stripeapi.Event{}, fmt.Errorf("failed to decode webhook event: %w", err)
	}
	return event, nil
}

// UnmarshalPaymentIntent decodes the event object of a payment_intent.* event.
func UnmarshalPaymentIntent(event stripeapi.Event) (*stripeapi.PaymentIntent, error) {
	var intent stripeapi.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, fmt.Errorf("failed to decode payment intent: %w", err)
	}
	return &intent, nil
}

// UnmarshalSubscription decodes the event object of a customer.subscription.* event.
func UnmarshalSubscription(event stripeapi.Event) (*stripeapi.Subscription, error) {
	var sub stripeapi.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return nil, fmt.Errorf("failed to decode subscription: %w", err)
	}
	return &sub, nil
}

// RawPayload re-decodes the event object for audit storage.
func RawPayload(event stripeapi.Event) map[string]interface{} {
	raw := map[string]interface{}{"event_id": event.ID, "event_type": string(event.Type)}
	var object map[string]interface{}
	if err := json.Unmarshal(event.Data.Raw, &object); err == nil {
		raw["object"] = object
	}
	return raw
}
