// internal/service/payment/commit.go
package payment

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	evtypes "fanpay-service/internal/domain/events"
	"fanpay-service/internal/domain/subscription"
	"fanpay-service/internal/domain/transaction"
	wstypes "fanpay-service/internal/domain/websocket"
	xerrors "fanpay-service/internal/pkg/errors"
	"fanpay-service/internal/pkg/id"

	"go.uber.org/zap"
)

// CommitSuccess moves a transaction to success, persists the gateway
// payload, materializes the subscription for subscription types, publishes
// the success event and optionally pushes the receipt redirect.
//
// A transaction already in a terminal state is left untouched; webhook
// replays must not double-publish.
func (s *Service) CommitSuccess(ctx context.Context, txn *transaction.Transaction, raw map[string]interface{}, notify bool) error {
	if txn.Status.IsTerminal() {
		s.logger.Info("transaction already settled, skipping",
			zap.String("transaction_id", txn.ID),
			zap.String("status", string(txn.Status)))
		return nil
	}
	if !transaction.CanTransition(txn.Status, transaction.StatusSuccess) {
		return fmt.Errorf("cannot move transaction %s from %s to success: %w",
			txn.ID, txn.Status, xerrors.ErrConflict)
	}

	txn.Status = transaction.StatusSuccess
	if raw != nil {
		txn.PaymentResponseInfo = raw
	}
	if err := s.txns.Update(ctx, txn); err != nil {
		return err
	}

	if txn.Type.IsSubscriptionType() {
		gatewaySubID := ""
		if txn.SubscriptionID.Valid {
			gatewaySubID = txn.SubscriptionID.String
		}
		if _, err := s.EnsureActiveSubscription(ctx, txn, gatewaySubID); err != nil {
			return err
		}
	}

	s.bus.Publish(ctx, evtypes.Event{
		Channel:   evtypes.ChannelTransactionSuccess,
		EventName: evtypes.EventCreated,
		Data:      *txn,
	})

	if notify && s.notifier != nil {
		s.notifier.EmitPaymentRedirect(txn.SourceID, &wstypes.PaymentRedirectData{
			TransactionID: txn.ID,
			Reference:     txn.Reference(),
			Status:        string(txn.Status),
			RedirectURL:   s.receiptURL(txn),
		})
	}

	s.logger.Info("transaction settled",
		zap.String("transaction_id", txn.ID),
		zap.String("reference", txn.Reference()),
		zap.String("type", string(txn.Type)))

	return nil
}

// EnsureActiveSubscription creates or refreshes the subscription row backing
// a subscription transaction. The same user/performer pair reuses one row
// across tiers and reactivations.
func (s *Service) EnsureActiveSubscription(ctx context.Context, txn *transaction.Transaction, gatewaySubID string) (*subscription.Subscription, error) {
	if !txn.PerformerID.Valid {
		return nil, fmt.Errorf("subscription transaction %s has no performer: %w", txn.ID, xerrors.ErrInternal)
	}
	performerID := txn.PerformerID.String
	subType := subscription.TypeFromTransaction(txn.Type)
	now := time.Now()

	existing, err := s.subs.FindByUserAndPerformer(ctx, txn.SourceID, performerID)
	if err != nil && !xerrors.Is(err, xerrors.ErrNotFound) {
		return nil, err
	}

	if existing == nil {
		sub := &subscription.Subscription{
			ID:                   id.New(),
			UserID:               txn.SourceID,
			PerformerID:          performerID,
			SubscriptionType:     subType,
			Status:               subscription.StatusActive,
			PaymentGateway:       txn.PaymentGateway,
			UsedFreeSubscription: subType == subscription.TypeFree,
		}
		if gatewaySubID != "" {
			sub.SubscriptionID = sql.NullString{String: gatewaySubID, Valid: true}
		}
		if next, ok := nextRecurringFor(subType, now); ok {
			sub.ExpiredAt = sql.NullTime{Time: next, Valid: true}
			sub.NextRecurringDate = sql.NullTime{Time: next, Valid: true}
		}
		if err := s.subs.Create(ctx, sub); err != nil {
			return nil, err
		}
		s.adjustSubscriptionStats(ctx, sub, 1)
		return sub, nil
	}

	wasDeactivated := existing.Status == subscription.StatusDeactivated

	existing.SubscriptionType = subType
	existing.Status = subscription.StatusActive
	existing.PaymentGateway = txn.PaymentGateway
	if subType == subscription.TypeFree {
		existing.UsedFreeSubscription = true
	}
	if gatewaySubID != "" {
		existing.SubscriptionID = sql.NullString{String: gatewaySubID, Valid: true}
	}
	if next, ok := nextRecurringFor(subType, now); ok {
		existing.ExpiredAt = sql.NullTime{Time: next, Valid: true}
		existing.NextRecurringDate = sql.NullTime{Time: next, Valid: true}
	} else {
		// The free tier stands until cancelled.
		existing.ExpiredAt = sql.NullTime{}
		existing.NextRecurringDate = sql.NullTime{}
	}

	if err := s.subs.Update(ctx, existing); err != nil {
		return nil, err
	}
	if wasDeactivated {
		s.adjustSubscriptionStats(ctx, existing, 1)
	}

	return existing, nil
}

// CreateRenewalTransaction records a recurring billing cycle as a fresh
// transaction row, already settled, and extends the subscription. The
// originating transaction is never mutated by renewals.
func (s *Service) CreateRenewalTransaction(ctx context.Context, original *transaction.Transaction, sub *subscription.Subscription, amount float64, raw map[string]interface{}) (*transaction.Transaction, error) {
	if amount <= 0 && original != nil {
		amount = original.TotalPrice
	}

	txnType := transactionTypeFor(sub.SubscriptionType)
	now := time.Now()

	txn := &transaction.Transaction{
		ID:             id.New(),
		Source:         sourceUser,
		SourceID:       sub.UserID,
		Target:         "performer",
		TargetID:       sub.PerformerID,
		PerformerID:    sql.NullString{String: sub.PerformerID, Valid: true},
		Type:           txnType,
		PaymentGateway: sub.PaymentGateway,
		OriginalPrice:  amount,
		TotalPrice:     amount,
		Status:         transaction.StatusSuccess,
		SubscriptionID: sub.SubscriptionID,
		Products: []transaction.Product{{
			Name:        fmt.Sprintf("%s subscription renewal", sub.SubscriptionType),
			Price:       amount,
			Quantity:    1,
			ProductType: "subscription",
			PerformerID: sub.PerformerID,
		}},
	}
	if raw != nil {
		txn.PaymentResponseInfo = raw
	}

	if err := s.txns.Create(ctx, txn); err != nil {
		return nil, err
	}

	wasDeactivated := sub.Status == subscription.StatusDeactivated
	sub.Status = subscription.StatusActive
	if next, ok := nextRecurringFor(sub.SubscriptionType, now); ok {
		sub.ExpiredAt = sql.NullTime{Time: next, Valid: true}
		sub.NextRecurringDate = sql.NullTime{Time: next, Valid: true}
	}
	if err := s.subs.Update(ctx, sub); err != nil {
		return nil, err
	}
	if wasDeactivated {
		s.adjustSubscriptionStats(ctx, sub, 1)
	}

	s.bus.Publish(ctx, evtypes.Event{
		Channel:   evtypes.ChannelTransactionSuccess,
		EventName: evtypes.EventCreated,
		Data:      *txn,
	})

	s.logger.Info("subscription renewed",
		zap.String("subscription_id", sub.ID),
		zap.String("transaction_id", txn.ID),
		zap.Float64("amount", amount))

	return txn, nil
}

func transactionTypeFor(t subscription.SubscriptionType) transaction.TransactionType {
	switch t {
	case subscription.TypeMonthly:
		return transaction.TypeMonthlySubscription
	case subscription.TypeYearly:
		return transaction.TypeYearlySubscription
	default:
		return transaction.TypeFreeSubscription
	}
}

// nextRecurringFor returns the next billing boundary; the free tier has none.
func nextRecurringFor(t subscription.SubscriptionType, now time.Time) (time.Time, bool) {
	switch t {
	case subscription.TypeMonthly:
		return now.AddDate(0, 0, 30), true
	case subscription.TypeYearly:
		return now.AddDate(0, 0, 365), true
	default:
		return time.Time{}, false
	}
}
