// internal/service/webhook/stripe_service.go
package webhook

import (
	"context"
	"database/sql"
	"fmt"

	"fanpay-service/internal/domain/transaction"
	wstypes "fanpay-service/internal/domain/websocket"
	stripegw "fanpay-service/internal/gateway/stripe"
	xerrors "fanpay-service/internal/pkg/errors"

	stripeapi "github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"
)

// Notifier pushes realtime payment outcomes to the payer's open sessions:
// card authentication prompts and terminal-state redirects.
type Notifier interface {
	EmitPaymentConfirm(userID string, data *wstypes.PaymentConfirmData)
	EmitPaymentRedirect(userID string, data *wstypes.PaymentRedirectData)
}

// StripeService reconciles the card processor's two webhook streams:
// subscription lifecycle and payment intents.
type StripeService struct {
	orchestrator Orchestrator
	txns         TransactionFinder
	subs         SubscriptionFinder
	notifier     Notifier
	dedup        Deduper
	baseURL      string
	logger       *zap.Logger
}

func NewStripeService(orchestrator Orchestrator, txns TransactionFinder, subs SubscriptionFinder, notifier Notifier, dedup Deduper, baseURL string, logger *zap.Logger) *StripeService {
	return &StripeService{
		orchestrator: orchestrator,
		txns:         txns,
		subs:         subs,
		notifier:     notifier,
		dedup:        dedup,
		baseURL:      baseURL,
		logger:       logger,
	}
}

// HandleSubscriptionEvent processes customer.subscription.* deliveries.
// Creation events are ignored: the row already exists from plan creation.
func (s *StripeService) HandleSubscriptionEvent(ctx context.Context, event stripeapi.Event) (*Result, error) {
	if !s.dedup.FirstDelivery(ctx, "stripe", event.ID) {
		return &Result{Handled: false, Reason: "duplicate delivery"}, nil
	}

	result, err := s.reconcileSubscription(ctx, event)
	if err != nil {
		// Redelivery must be able to retry a failed attempt.
		s.dedup.Forget(ctx, "stripe", event.ID)
		return nil, err
	}
	return result, nil
}

func (s *StripeService) reconcileSubscription(ctx context.Context, event stripeapi.Event) (*Result, error) {
	switch string(event.Type) {
	case stripegw.EventSubscriptionCreated:
		return &Result{Handled: false, Reason: "subscription creation tracked at plan time"}, nil
	case stripegw.EventSubscriptionUpdated, stripegw.EventSubscriptionDeleted:
	default:
		s.logger.Info("ignoring stripe subscription event", zap.String("event_type", string(event.Type)))
		return &Result{Handled: false, Reason: fmt.Sprintf("event type %q not handled", event.Type)}, nil
	}

	gwSub, err := stripegw.UnmarshalSubscription(event)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, xerrors.ErrBadRequest)
	}

	sub, err := s.subs.FindByGatewaySubscriptionID(ctx, gwSub.ID)
	if err != nil {
		return nil, err
	}

	s.attachInvoiceID(ctx, gwSub)

	active := gwSub.Status == stripeapi.SubscriptionStatusActive ||
		gwSub.Status == stripeapi.SubscriptionStatusTrialing
	if string(event.Type) == stripegw.EventSubscriptionDeleted {
		active = false
	}

	if active {
		err = s.orchestrator.ReactivateSubscription(ctx, sub)
	} else {
		err = s.orchestrator.DeactivateSubscription(ctx, sub)
	}
	if err != nil {
		return nil, err
	}
	return &Result{Handled: true}, nil
}

// attachInvoiceID backfills the originating transaction's invoice id so the
// payment-intent stream can correlate when metadata is stripped. Best effort.
func (s *StripeService) attachInvoiceID(ctx context.Context, gwSub *stripeapi.Subscription) {
	txnID := gwSub.Metadata[stripegw.MetadataTransactionID]
	if txnID == "" || gwSub.LatestInvoice == nil {
		return
	}
	txn, err := s.txns.FindByID(ctx, txnID)
	if err != nil {
		return
	}
	if txn.InvoiceID.Valid && txn.InvoiceID.String != "" {
		return
	}
	txn.InvoiceID = sql.NullString{String: gwSub.LatestInvoice.ID, Valid: true}
	if err := s.txns.Update(ctx, txn); err != nil {
		s.logger.Warn("failed to backfill invoice id",
			zap.String("transaction_id", txn.ID), zap.Error(err))
	}
}

// HandlePaymentIntentEvent processes payment_intent.* deliveries, mapping
// intent lifecycle onto the transaction state machine.
func (s *StripeService) HandlePaymentIntentEvent(ctx context.Context, event stripeapi.Event) (*Result, error) {
	if !s.dedup.FirstDelivery(ctx, "stripe", event.ID) {
		return &Result{Handled: false, Reason: "duplicate delivery"}, nil
	}

	result, err := s.reconcilePaymentIntent(ctx, event)
	if err != nil {
		// Redelivery must be able to retry a failed attempt.
		s.dedup.Forget(ctx, "stripe", event.ID)
		return nil, err
	}
	return result, nil
}

func (s *StripeService) reconcilePaymentIntent(ctx context.Context, event stripeapi.Event) (*Result, error) {
	// The intent is created in response to our own charge call; the local
	// row already reflects it.
	if string(event.Type) == stripegw.EventPaymentIntentCreated {
		return &Result{Handled: false, Reason: "intent creation tracked locally"}, nil
	}

	intent, err := stripegw.UnmarshalPaymentIntent(event)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, xerrors.ErrBadRequest)
	}

	txn, err := s.locateTransaction(ctx, intent)
	if err != nil {
		return nil, err
	}

	raw := stripegw.RawPayload(event)

	switch string(event.Type) {
	case stripegw.EventPaymentIntentSucceeded:
		return s.handleSucceeded(ctx, txn, intent, raw)

	case stripegw.EventPaymentIntentRequiresAction:
		return s.handleRequiresAction(ctx, txn, intent, raw)

	case stripegw.EventPaymentIntentProcessing:
		return s.applyStatus(ctx, txn, transaction.StatusProcessing, raw)
	case stripegw.EventPaymentIntentCanceled:
		return s.handleTerminalFailure(ctx, txn, transaction.StatusCanceled, raw)
	case stripegw.EventPaymentIntentFailed:
		return s.handleTerminalFailure(ctx, txn, transaction.StatusFail, raw)

	default:
		s.logger.Info("ignoring stripe payment event", zap.String("event_type", string(event.Type)))
		return &Result{Handled: false, Reason: fmt.Sprintf("event type %q not handled", event.Type)}, nil
	}
}

// locateTransaction correlates an intent back to our record: metadata first,
// then the invoice id, then the intent id itself (one-off charges store it
// as the invoice reference). An intent we cannot attribute is an error.
func (s *StripeService) locateTransaction(ctx context.Context, intent *stripeapi.PaymentIntent) (*transaction.Transaction, error) {
	if txnID := intent.Metadata[stripegw.MetadataTransactionID]; txnID != "" {
		txn, err := s.txns.FindByID(ctx, txnID)
		if err == nil {
			return txn, nil
		}
		if !xerrors.Is(err, xerrors.ErrNotFound) {
			return nil, err
		}
	}

	if intent.Invoice != nil {
		txn, err := s.txns.FindByInvoiceID(ctx, intent.Invoice.ID)
		if err == nil {
			return txn, nil
		}
		if !xerrors.Is(err, xerrors.ErrNotFound) {
			return nil, err
		}
	}

	txn, err := s.txns.FindByInvoiceID(ctx, intent.ID)
	if err == nil {
		return txn, nil
	}
	if !xerrors.Is(err, xerrors.ErrNotFound) {
		return nil, err
	}

	return nil, fmt.Errorf("payment intent %s cannot be attributed to a transaction: %w",
		intent.ID, xerrors.ErrNotFound)
}

// handleSucceeded settles a first charge, or books a renewal when the
// correlated transaction is already settled.
func (s *StripeService) handleSucceeded(ctx context.Context, txn *transaction.Transaction, intent *stripeapi.PaymentIntent, raw map[string]interface{}) (*Result, error) {
	if txn.Status == transaction.StatusSuccess {
		if !txn.SubscriptionID.Valid || txn.SubscriptionID.String == "" {
			// Replayed success on a one-off charge; nothing to book.
			return &Result{Handled: false, Reason: "transaction already settled"}, nil
		}

		sub, err := s.subs.FindByGatewaySubscriptionID(ctx, txn.SubscriptionID.String)
		if err != nil {
			if xerrors.Is(err, xerrors.ErrNotFound) {
				return &Result{Handled: false, Reason: "subscription not found for renewal"}, nil
			}
			return nil, err
		}

		amount := float64(intent.Amount) / 100
		if _, err := s.orchestrator.CreateRenewalTransaction(ctx, txn, sub, amount, raw); err != nil {
			return nil, err
		}
		return &Result{Handled: true}, nil
	}

	if err := s.orchestrator.CommitSuccess(ctx, txn, raw, true); err != nil {
		return nil, err
	}
	return &Result{Handled: true}, nil
}

// handleRequiresAction parks the transaction and prompts the payer to
// complete 3DS with the intent's client secret.
func (s *StripeService) handleRequiresAction(ctx context.Context, txn *transaction.Transaction, intent *stripeapi.PaymentIntent, raw map[string]interface{}) (*Result, error) {
	if intent.ClientSecret != "" {
		txn.StripeClientSecret = sql.NullString{String: intent.ClientSecret, Valid: true}
	}

	result, err := s.applyStatus(ctx, txn, transaction.StatusRequireAuthentication, raw)
	if err != nil {
		return nil, err
	}

	if result.Handled && s.notifier != nil {
		s.notifier.EmitPaymentConfirm(txn.SourceID, &wstypes.PaymentConfirmData{
			TransactionID: txn.ID,
			ClientSecret:  intent.ClientSecret,
		})
	}
	return result, nil
}

// handleTerminalFailure records a failed or abandoned charge and redirects
// the payer's open checkout session to the receipt page for the outcome.
func (s *StripeService) handleTerminalFailure(ctx context.Context, txn *transaction.Transaction, status transaction.TransactionStatus, raw map[string]interface{}) (*Result, error) {
	result, err := s.applyStatus(ctx, txn, status, raw)
	if err != nil {
		return nil, err
	}

	if result.Handled && s.notifier != nil {
		s.notifier.EmitPaymentRedirect(txn.SourceID, &wstypes.PaymentRedirectData{
			TransactionID: txn.ID,
			Reference:     txn.Reference(),
			Status:        string(txn.Status),
			RedirectURL:   s.baseURL + "/payment/receipt/" + txn.Reference(),
		})
	}
	return result, nil
}

// applyStatus advances the state machine when the transition is legal, and
// otherwise records the payload without touching the status. Out-of-order
// and replayed deliveries land here harmlessly.
func (s *StripeService) applyStatus(ctx context.Context, txn *transaction.Transaction, status transaction.TransactionStatus, raw map[string]interface{}) (*Result, error) {
	if txn.Status == status {
		txn.PaymentResponseInfo = raw
		if err := s.txns.Update(ctx, txn); err != nil {
			return nil, err
		}
		return &Result{Handled: false, Reason: "status unchanged"}, nil
	}

	if !transaction.CanTransition(txn.Status, status) {
		s.logger.Info("skipping illegal status transition",
			zap.String("transaction_id", txn.ID),
			zap.String("from", string(txn.Status)),
			zap.String("to", string(status)))
		txn.PaymentResponseInfo = raw
		if err := s.txns.Update(ctx, txn); err != nil {
			return nil, err
		}
		return &Result{Handled: false, Reason: "transition not allowed"}, nil
	}

	txn.Status = status
	txn.PaymentResponseInfo = raw
	if err := s.txns.Update(ctx, txn); err != nil {
		return nil, err
	}
	return &Result{Handled: true}, nil
}
