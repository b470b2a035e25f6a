// internal/service/webhook/ccbill_service.go
package webhook

import (
	"context"
	"database/sql"
	"fmt"

	"fanpay-service/internal/domain/subscription"
	"fanpay-service/internal/domain/transaction"
	"fanpay-service/internal/gateway/ccbill"
	xerrors "fanpay-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// Orchestrator is the slice of the payment service the reconciler drives.
// Webhooks report what already happened at the gateway; the orchestrator
// owns how that lands in local state.
type Orchestrator interface {
	CommitSuccess(ctx context.Context, txn *transaction.Transaction, raw map[string]interface{}, notify bool) error
	CreateRenewalTransaction(ctx context.Context, original *transaction.Transaction, sub *subscription.Subscription, amount float64, raw map[string]interface{}) (*transaction.Transaction, error)
	ReactivateSubscription(ctx context.Context, sub *subscription.Subscription) error
	DeactivateSubscription(ctx context.Context, sub *subscription.Subscription) error
}

// TransactionFinder is the read/update slice of the transaction store the
// reconciler needs to correlate gateway callbacks.
type TransactionFinder interface {
	FindByID(ctx context.Context, id string) (*transaction.Transaction, error)
	FindByInvoiceID(ctx context.Context, invoiceID string) (*transaction.Transaction, error)
	FindByQuery(ctx context.Context, q *transaction.Query) ([]*transaction.Transaction, error)
	Update(ctx context.Context, txn *transaction.Transaction) error
}

// SubscriptionFinder correlates gateway-side recurring plan ids to local rows.
type SubscriptionFinder interface {
	FindByGatewaySubscriptionID(ctx context.Context, gatewaySubID string) (*subscription.Subscription, error)
}

// Result reports what a webhook delivery did. Unhandled deliveries are not
// errors: the gateway must not retry events we deliberately ignore.
type Result struct {
	Handled bool
	Reason  string
}

// CCBillService reconciles recurring-billing gateway callbacks.
type CCBillService struct {
	orchestrator Orchestrator
	txns         TransactionFinder
	subs         SubscriptionFinder
	dedup        Deduper
	logger       *zap.Logger
}

func NewCCBillService(orchestrator Orchestrator, txns TransactionFinder, subs SubscriptionFinder, dedup Deduper, logger *zap.Logger) *CCBillService {
	return &CCBillService{
		orchestrator: orchestrator,
		txns:         txns,
		subs:         subs,
		dedup:        dedup,
		logger:       logger,
	}
}

// Handle dispatches one normalized callback. Unknown event types and
// unmatched correlation ids resolve as benign no-ops.
func (s *CCBillService) Handle(ctx context.Context, event *ccbill.WebhookEvent) (*Result, error) {
	if !event.Recognized() {
		s.logger.Info("ignoring unrecognized ccbill event", zap.String("event_type", event.Type))
		return &Result{Handled: false, Reason: fmt.Sprintf("event type %q not handled", event.Type)}, nil
	}

	switch event.Type {
	case ccbill.EventNewSaleSuccess:
		return s.handleNewSale(ctx, event)
	case ccbill.EventRenewalSuccess:
		return s.handleRenewal(ctx, event)
	case ccbill.EventUserReactivation:
		return s.handleReactivation(ctx, event)
	}
	return &Result{Handled: false, Reason: "event type not handled"}, nil
}

// handleNewSale settles the originating transaction. The transaction id
// arrives through the passthrough parameter set at redirect time; a missing
// transaction is tolerated because the form can be reached out of band.
func (s *CCBillService) handleNewSale(ctx context.Context, event *ccbill.WebhookEvent) (*Result, error) {
	if event.TransactionID == "" {
		return &Result{Handled: false, Reason: "no transaction id in payload"}, nil
	}

	txn, err := s.txns.FindByID(ctx, event.TransactionID)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			s.logger.Warn("ccbill new sale for unknown transaction",
				zap.String("transaction_id", event.TransactionID))
			return &Result{Handled: false, Reason: "transaction not found"}, nil
		}
		return nil, err
	}

	if event.SubscriptionID != "" {
		txn.SubscriptionID = sql.NullString{String: event.SubscriptionID, Valid: true}
	}

	if err := s.orchestrator.CommitSuccess(ctx, txn, event.Raw, true); err != nil {
		return nil, err
	}
	return &Result{Handled: true}, nil
}

// handleRenewal books a recurring cycle as a fresh transaction. A renewal
// for a subscription this system never recorded is a no-op, never a write.
func (s *CCBillService) handleRenewal(ctx context.Context, event *ccbill.WebhookEvent) (*Result, error) {
	if event.SubscriptionID == "" {
		return &Result{Handled: false, Reason: "no subscription id in payload"}, nil
	}

	deliveryID := event.SubscriptionID + ":" + event.RenewalDate
	if !s.dedup.FirstDelivery(ctx, "ccbill", deliveryID) {
		return &Result{Handled: false, Reason: "duplicate delivery"}, nil
	}

	result, err := s.reconcileRenewal(ctx, event)
	if err != nil {
		// Redelivery must be able to retry a failed attempt.
		s.dedup.Forget(ctx, "ccbill", deliveryID)
		return nil, err
	}
	return result, nil
}

func (s *CCBillService) reconcileRenewal(ctx context.Context, event *ccbill.WebhookEvent) (*Result, error) {
	sub, err := s.subs.FindByGatewaySubscriptionID(ctx, event.SubscriptionID)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			s.logger.Warn("ccbill renewal for unknown subscription",
				zap.String("subscription_id", event.SubscriptionID))
			return &Result{Handled: false, Reason: "subscription not found"}, nil
		}
		return nil, err
	}

	original := s.latestTransactionFor(ctx, sub)
	if _, err := s.orchestrator.CreateRenewalTransaction(ctx, original, sub, event.BilledAmount, event.Raw); err != nil {
		return nil, err
	}
	return &Result{Handled: true}, nil
}

// handleReactivation restores a previously deactivated subscription. Unlike
// renewals, a missing row here is an error: the gateway claims a standing
// relationship we have no record of.
func (s *CCBillService) handleReactivation(ctx context.Context, event *ccbill.WebhookEvent) (*Result, error) {
	if event.SubscriptionID == "" {
		return nil, fmt.Errorf("reactivation without subscription id: %w", xerrors.ErrBadRequest)
	}

	sub, err := s.subs.FindByGatewaySubscriptionID(ctx, event.SubscriptionID)
	if err != nil {
		return nil, err
	}

	if err := s.orchestrator.ReactivateSubscription(ctx, sub); err != nil {
		return nil, err
	}
	return &Result{Handled: true}, nil
}

// latestTransactionFor finds the newest settled transaction for the pair,
// used as the price fallback when the callback omits the billed amount.
func (s *CCBillService) latestTransactionFor(ctx context.Context, sub *subscription.Subscription) *transaction.Transaction {
	rows, err := s.txns.FindByQuery(ctx, &transaction.Query{
		SourceID: sub.UserID,
		TargetID: sub.PerformerID,
		Status:   transaction.StatusSuccess,
		Limit:    1,
	})
	if err != nil || len(rows) == 0 {
		return nil
	}
	return rows[0]
}
