// internal/service/webhook/stripe_service_test.go
package webhook

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"fanpay-service/internal/domain/subscription"
	"fanpay-service/internal/domain/transaction"
	wstypes "fanpay-service/internal/domain/websocket"
	xerrors "fanpay-service/internal/pkg/errors"

	stripeapi "github.com/stripe/stripe-go/v79"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeNotifier struct {
	confirms  []*wstypes.PaymentConfirmData
	redirects []*wstypes.PaymentRedirectData
}

func (f *fakeNotifier) EmitPaymentConfirm(userID string, data *wstypes.PaymentConfirmData) {
	f.confirms = append(f.confirms, data)
}

func (f *fakeNotifier) EmitPaymentRedirect(userID string, data *wstypes.PaymentRedirectData) {
	f.redirects = append(f.redirects, data)
}

func newStripeFixture() (*StripeService, *fakeOrchestrator, *fakeTxnFinder, *fakeSubFinder, *fakeNotifier) {
	orch := &fakeOrchestrator{}
	txns := newFakeTxnFinder()
	subs := &fakeSubFinder{byGateway: map[string]*subscription.Subscription{}}
	notifier := &fakeNotifier{}
	svc := NewStripeService(orch, txns, subs, notifier, &fakeDeduper{}, "https://fanpay.test", zap.NewNop())
	return svc, orch, txns, subs, notifier
}

func paymentIntentEvent(t *testing.T, eventID, eventType string, intent map[string]interface{}) stripeapi.Event {
	t.Helper()
	raw, err := json.Marshal(intent)
	require.NoError(t, err)
	return stripeapi.Event{
		ID:   eventID,
		Type: stripeapi.EventType(eventType),
		Data: &stripeapi.EventData{Raw: raw},
	}
}

func subscriptionEvent(t *testing.T, eventID, eventType string, sub map[string]interface{}) stripeapi.Event {
	t.Helper()
	raw, err := json.Marshal(sub)
	require.NoError(t, err)
	return stripeapi.Event{
		ID:   eventID,
		Type: stripeapi.EventType(eventType),
		Data: &stripeapi.EventData{Raw: raw},
	}
}

// ---------- payment intent stream ----------

func TestStripeSucceededSettlesTransaction(t *testing.T) {
	svc, orch, txns, _, _ := newStripeFixture()
	txns.byID["txn-1"] = &transaction.Transaction{
		ID: "txn-1", SourceID: "user-1",
		Type: transaction.TypeTokenPackage, Status: transaction.StatusCreated,
	}

	event := paymentIntentEvent(t, "evt_1", "payment_intent.succeeded", map[string]interface{}{
		"id":       "pi_1",
		"amount":   5000,
		"metadata": map[string]string{"transaction_id": "txn-1"},
	})

	result, err := svc.HandlePaymentIntentEvent(context.Background(), event)
	require.NoError(t, err)

	assert.True(t, result.Handled)
	require.Len(t, orch.committed, 1)
	assert.Equal(t, "txn-1", orch.committed[0].ID)
}

func TestStripeDuplicateEventSkipped(t *testing.T) {
	svc, orch, txns, _, _ := newStripeFixture()
	txns.byID["txn-1"] = &transaction.Transaction{
		ID: "txn-1", SourceID: "user-1", Status: transaction.StatusCreated,
	}

	event := paymentIntentEvent(t, "evt_1", "payment_intent.succeeded", map[string]interface{}{
		"id":       "pi_1",
		"metadata": map[string]string{"transaction_id": "txn-1"},
	})

	_, err := svc.HandlePaymentIntentEvent(context.Background(), event)
	require.NoError(t, err)

	result, err := svc.HandlePaymentIntentEvent(context.Background(), event)
	require.NoError(t, err)

	assert.False(t, result.Handled)
	assert.Len(t, orch.committed, 1)
}

func TestStripeRedeliveryAfterTransientFailureSettles(t *testing.T) {
	svc, orch, txns, _, _ := newStripeFixture()
	orch.commitFailures = 1
	txns.byID["txn-1"] = &transaction.Transaction{
		ID: "txn-1", SourceID: "user-1",
		Type: transaction.TypeTokenPackage, Status: transaction.StatusCreated,
	}

	event := paymentIntentEvent(t, "evt_1", "payment_intent.succeeded", map[string]interface{}{
		"id":       "pi_1",
		"metadata": map[string]string{"transaction_id": "txn-1"},
	})

	_, err := svc.HandlePaymentIntentEvent(context.Background(), event)
	require.Error(t, err)
	assert.Empty(t, orch.committed)

	// The gateway redelivers on a non-2xx response; the retry must not be
	// treated as a duplicate.
	result, err := svc.HandlePaymentIntentEvent(context.Background(), event)
	require.NoError(t, err)

	assert.True(t, result.Handled)
	require.Len(t, orch.committed, 1)
	assert.Equal(t, "txn-1", orch.committed[0].ID)
}

func TestStripeReplayedSuccessOnSettledOneOffIsNoOp(t *testing.T) {
	svc, orch, txns, _, _ := newStripeFixture()
	txns.byID["txn-1"] = &transaction.Transaction{
		ID: "txn-1", SourceID: "user-1",
		Type: transaction.TypeTokenPackage, Status: transaction.StatusSuccess,
	}

	event := paymentIntentEvent(t, "evt_2", "payment_intent.succeeded", map[string]interface{}{
		"id":       "pi_1",
		"metadata": map[string]string{"transaction_id": "txn-1"},
	})

	result, err := svc.HandlePaymentIntentEvent(context.Background(), event)
	require.NoError(t, err)

	assert.False(t, result.Handled)
	assert.Empty(t, orch.committed)
	assert.Empty(t, orch.renewals)
}

func TestStripeSucceededOnSettledSubscriptionBooksRenewal(t *testing.T) {
	svc, orch, txns, subs, _ := newStripeFixture()
	txns.byID["txn-1"] = &transaction.Transaction{
		ID: "txn-1", SourceID: "user-1",
		Type:           transaction.TypeMonthlySubscription,
		Status:         transaction.StatusSuccess,
		TotalPrice:     9.99,
		SubscriptionID: sql.NullString{String: "gw-sub-1", Valid: true},
	}
	subs.byGateway["gw-sub-1"] = &subscription.Subscription{
		ID: "sub-1", UserID: "user-1", PerformerID: "perf-1",
		SubscriptionType: subscription.TypeMonthly,
		Status:           subscription.StatusActive,
	}

	event := paymentIntentEvent(t, "evt_3", "payment_intent.succeeded", map[string]interface{}{
		"id":       "pi_2",
		"amount":   999,
		"metadata": map[string]string{"transaction_id": "txn-1"},
	})

	result, err := svc.HandlePaymentIntentEvent(context.Background(), event)
	require.NoError(t, err)

	assert.True(t, result.Handled)
	assert.Equal(t, []float64{9.99}, orch.renewals)
	assert.Empty(t, orch.committed)
}

func TestStripeRequiresActionPromptsConfirmation(t *testing.T) {
	svc, _, txns, _, notifier := newStripeFixture()
	txns.byID["txn-1"] = &transaction.Transaction{
		ID: "txn-1", SourceID: "user-1", Status: transaction.StatusCreated,
	}

	event := paymentIntentEvent(t, "evt_4", "payment_intent.requires_action", map[string]interface{}{
		"id":            "pi_1",
		"client_secret": "cs_123",
		"metadata":      map[string]string{"transaction_id": "txn-1"},
	})

	result, err := svc.HandlePaymentIntentEvent(context.Background(), event)
	require.NoError(t, err)

	assert.True(t, result.Handled)
	assert.Equal(t, transaction.StatusRequireAuthentication, txns.byID["txn-1"].Status)
	assert.Equal(t, "cs_123", txns.byID["txn-1"].StripeClientSecret.String)
	require.Len(t, notifier.confirms, 1)
	assert.Equal(t, "cs_123", notifier.confirms[0].ClientSecret)
}

func TestStripeIllegalTransitionKeepsStatus(t *testing.T) {
	svc, _, txns, _, _ := newStripeFixture()
	txns.byID["txn-1"] = &transaction.Transaction{
		ID: "txn-1", SourceID: "user-1", Status: transaction.StatusFail,
	}

	event := paymentIntentEvent(t, "evt_5", "payment_intent.processing", map[string]interface{}{
		"id":       "pi_1",
		"metadata": map[string]string{"transaction_id": "txn-1"},
	})

	result, err := svc.HandlePaymentIntentEvent(context.Background(), event)
	require.NoError(t, err)

	assert.False(t, result.Handled)
	assert.Equal(t, transaction.StatusFail, txns.byID["txn-1"].Status)
	// The payload is still recorded for audit.
	assert.NotNil(t, txns.byID["txn-1"].PaymentResponseInfo)
}

func TestStripeFailedMarksTransactionAndRedirects(t *testing.T) {
	svc, _, txns, _, notifier := newStripeFixture()
	txns.byID["txn-1"] = &transaction.Transaction{
		ID: "txn-1", SourceID: "user-1", Status: transaction.StatusProcessing,
	}

	event := paymentIntentEvent(t, "evt_6", "payment_intent.payment_failed", map[string]interface{}{
		"id":       "pi_1",
		"metadata": map[string]string{"transaction_id": "txn-1"},
	})

	result, err := svc.HandlePaymentIntentEvent(context.Background(), event)
	require.NoError(t, err)

	assert.True(t, result.Handled)
	assert.Equal(t, transaction.StatusFail, txns.byID["txn-1"].Status)

	// The payer's open checkout session is sent to the outcome page.
	require.Len(t, notifier.redirects, 1)
	assert.Equal(t, string(transaction.StatusFail), notifier.redirects[0].Status)
	assert.Contains(t, notifier.redirects[0].RedirectURL, "/payment/receipt/")
}

func TestStripeCanceledRedirectsPayer(t *testing.T) {
	svc, _, txns, _, notifier := newStripeFixture()
	txns.byID["txn-1"] = &transaction.Transaction{
		ID: "txn-1", SourceID: "user-1", Status: transaction.StatusCreated,
	}

	event := paymentIntentEvent(t, "evt_13", "payment_intent.canceled", map[string]interface{}{
		"id":       "pi_1",
		"metadata": map[string]string{"transaction_id": "txn-1"},
	})

	result, err := svc.HandlePaymentIntentEvent(context.Background(), event)
	require.NoError(t, err)

	assert.True(t, result.Handled)
	assert.Equal(t, transaction.StatusCanceled, txns.byID["txn-1"].Status)
	require.Len(t, notifier.redirects, 1)
	assert.Equal(t, "txn-1", notifier.redirects[0].TransactionID)
}

func TestStripeIntentCreatedIgnored(t *testing.T) {
	svc, _, txns, _, _ := newStripeFixture()
	txns.byID["txn-1"] = &transaction.Transaction{
		ID: "txn-1", SourceID: "user-1", Status: transaction.StatusCreated,
	}

	event := paymentIntentEvent(t, "evt_14", "payment_intent.created", map[string]interface{}{
		"id":       "pi_1",
		"metadata": map[string]string{"transaction_id": "txn-1"},
	})

	result, err := svc.HandlePaymentIntentEvent(context.Background(), event)
	require.NoError(t, err)

	assert.False(t, result.Handled)
	assert.Zero(t, txns.updates)
	assert.Nil(t, txns.byID["txn-1"].PaymentResponseInfo)
}

func TestStripeUnattributableIntentErrors(t *testing.T) {
	svc, _, _, _, _ := newStripeFixture()

	event := paymentIntentEvent(t, "evt_7", "payment_intent.succeeded", map[string]interface{}{
		"id": "pi_orphan",
	})

	_, err := svc.HandlePaymentIntentEvent(context.Background(), event)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestStripeIntentFallsBackToInvoiceCorrelation(t *testing.T) {
	svc, orch, txns, _, _ := newStripeFixture()
	txn := &transaction.Transaction{
		ID: "txn-1", SourceID: "user-1",
		Status:    transaction.StatusCreated,
		InvoiceID: sql.NullString{String: "in_1", Valid: true},
	}
	txns.byID["txn-1"] = txn
	txns.byInvoice["in_1"] = txn

	event := paymentIntentEvent(t, "evt_8", "payment_intent.succeeded", map[string]interface{}{
		"id":      "pi_9",
		"invoice": "in_1",
	})

	result, err := svc.HandlePaymentIntentEvent(context.Background(), event)
	require.NoError(t, err)

	assert.True(t, result.Handled)
	require.Len(t, orch.committed, 1)
	assert.Equal(t, "txn-1", orch.committed[0].ID)
}

// ---------- subscription stream ----------

func TestStripeSubscriptionCreatedIgnored(t *testing.T) {
	svc, orch, _, _, _ := newStripeFixture()

	event := subscriptionEvent(t, "evt_9", "customer.subscription.created", map[string]interface{}{
		"id": "gw-sub-1",
	})

	result, err := svc.HandleSubscriptionEvent(context.Background(), event)
	require.NoError(t, err)

	assert.False(t, result.Handled)
	assert.Empty(t, orch.reactivated)
	assert.Empty(t, orch.deactivated)
}

func TestStripeSubscriptionUpdatedMapsStatus(t *testing.T) {
	svc, orch, _, subs, _ := newStripeFixture()
	subs.byGateway["gw-sub-1"] = &subscription.Subscription{
		ID: "sub-1", UserID: "user-1", PerformerID: "perf-1",
		Status: subscription.StatusDeactivated,
	}

	event := subscriptionEvent(t, "evt_10", "customer.subscription.updated", map[string]interface{}{
		"id":     "gw-sub-1",
		"status": "active",
	})

	result, err := svc.HandleSubscriptionEvent(context.Background(), event)
	require.NoError(t, err)

	assert.True(t, result.Handled)
	require.Len(t, orch.reactivated, 1)
}

func TestStripeSubscriptionDeletedDeactivates(t *testing.T) {
	svc, orch, _, subs, _ := newStripeFixture()
	subs.byGateway["gw-sub-1"] = &subscription.Subscription{
		ID: "sub-1", UserID: "user-1", PerformerID: "perf-1",
		Status: subscription.StatusActive,
	}

	event := subscriptionEvent(t, "evt_11", "customer.subscription.deleted", map[string]interface{}{
		"id":     "gw-sub-1",
		"status": "canceled",
	})

	result, err := svc.HandleSubscriptionEvent(context.Background(), event)
	require.NoError(t, err)

	assert.True(t, result.Handled)
	require.Len(t, orch.deactivated, 1)
}

func TestStripeSubscriptionForUnknownRowErrors(t *testing.T) {
	svc, _, _, _, _ := newStripeFixture()

	event := subscriptionEvent(t, "evt_12", "customer.subscription.updated", map[string]interface{}{
		"id": "unknown",
	})

	_, err := svc.HandleSubscriptionEvent(context.Background(), event)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}
