// internal/service/payment/payment_service.go
package payment

import (
	"context"
	"database/sql"
	"fmt"

	"fanpay-service/internal/config"
	evtypes "fanpay-service/internal/domain/events"
	"fanpay-service/internal/domain/subscription"
	"fanpay-service/internal/domain/transaction"
	"fanpay-service/internal/domain/user"
	wstypes "fanpay-service/internal/domain/websocket"
	stripegw "fanpay-service/internal/gateway/stripe"
	xerrors "fanpay-service/internal/pkg/errors"
	"fanpay-service/internal/pkg/id"

	"go.uber.org/zap"
)

// TransactionStore is the durable, append-only record of payment attempts.
type TransactionStore interface {
	Create(ctx context.Context, txn *transaction.Transaction) error
	FindByID(ctx context.Context, id string) (*transaction.Transaction, error)
	FindByInvoiceID(ctx context.Context, invoiceID string) (*transaction.Transaction, error)
	Update(ctx context.Context, txn *transaction.Transaction) error
	Search(ctx context.Context, filters *transaction.SearchFilters) (*transaction.SearchResult, error)
	FindByQuery(ctx context.Context, q *transaction.Query) ([]*transaction.Transaction, error)
}

// SubscriptionStore is the durable subscription lifecycle record.
type SubscriptionStore interface {
	Create(ctx context.Context, sub *subscription.Subscription) error
	FindByID(ctx context.Context, id string) (*subscription.Subscription, error)
	FindByGatewaySubscriptionID(ctx context.Context, gatewaySubID string) (*subscription.Subscription, error)
	FindByUserAndPerformer(ctx context.Context, userID, performerID string) (*subscription.Subscription, error)
	FindActiveByUserAndPerformer(ctx context.Context, userID, performerID string) (*subscription.Subscription, error)
	Update(ctx context.Context, sub *subscription.Subscription) error
}

// UserStore and PerformerStore are collaborator boundaries: lookups plus
// the narrow statistic updates this subsystem owns.
type UserStore interface {
	FindByID(ctx context.Context, id string) (*user.User, error)
	UpdateSubscriptionCount(ctx context.Context, id string, delta int) error
}

type PerformerStore interface {
	FindByID(ctx context.Context, id string) (*user.Performer, error)
	UpdateSubscriberCount(ctx context.Context, id string, delta int) error
}

// CouponEngine captures a discount into a transaction at creation time.
type CouponEngine interface {
	Redeem(ctx context.Context, code string, price float64) (*transaction.CouponSnapshot, float64, error)
}

// CardGateway is the card-processor capability set in its native vocabulary.
type CardGateway interface {
	ChargeOnce(ctx context.Context, req *stripegw.ChargeRequest) (*stripegw.ChargeResult, error)
	CreateRecurringPlan(ctx context.Context, req *stripegw.PlanRequest) (*stripegw.PlanResult, error)
	CancelRecurringPlan(ctx context.Context, gatewaySubscriptionID string) error
}

// RecurringGateway is the recurring-billing capability set. Redirect params
// are built locally; money moves only after the shopper completes the
// hosted form, reported back by webhook.
type RecurringGateway interface {
	SingleChargeParams(transactionID string, price float64) map[string]string
	RecurringParams(transactionID string, price float64, yearly bool) map[string]string
	CancelSubscription(ctx context.Context, gatewaySubscriptionID string) error
}

// Notifier pushes realtime payment events to a user's open sessions.
type Notifier interface {
	EmitPaymentRedirect(userID string, data *wstypes.PaymentRedirectData)
	EmitPaymentConfirm(userID string, data *wstypes.PaymentConfirmData)
}

// Publisher is the in-process event bus.
type Publisher interface {
	Publish(ctx context.Context, e evtypes.Event)
}

const sourceUser = "user"

// Service owns the transaction state machine: it creates transactions,
// picks the gateway flow, applies coupons and commits terminal states.
type Service struct {
	txns       TransactionStore
	subs       SubscriptionStore
	users      UserStore
	performers PerformerStore
	coupons    CouponEngine

	cardGateway      CardGateway
	recurringGateway RecurringGateway

	notifier Notifier
	bus      Publisher
	settings config.Settings
	baseURL  string
	logger   *zap.Logger
}

func NewService(
	txns TransactionStore,
	subs SubscriptionStore,
	users UserStore,
	performers PerformerStore,
	coupons CouponEngine,
	cardGateway CardGateway,
	recurringGateway RecurringGateway,
	notifier Notifier,
	bus Publisher,
	settings config.Settings,
	baseURL string,
	logger *zap.Logger,
) *Service {
	return &Service{
		txns:             txns,
		subs:             subs,
		users:            users,
		performers:       performers,
		coupons:          coupons,
		cardGateway:      cardGateway,
		recurringGateway: recurringGateway,
		notifier:         notifier,
		bus:              bus,
		settings:         settings,
		baseURL:          baseURL,
		logger:           logger,
	}
}

// PurchaseTokens creates a one-off token purchase and dispatches it to the
// selected gateway. The transaction stays `created` until a webhook settles it.
func (s *Service) PurchaseTokens(ctx context.Context, userID string, input *transaction.PurchaseTokensInput) (*transaction.PurchaseResult, error) {
	buyer, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	minPrice, maxPrice := s.settings.WalletBounds()
	if input.Amount < minPrice || input.Amount > maxPrice {
		return nil, fmt.Errorf("amount must be between %.2f and %.2f: %w", minPrice, maxPrice, xerrors.ErrInvalidInput)
	}

	gateway := input.Gateway
	if gateway == "" {
		gateway = transaction.PaymentGateway(s.settings.ActiveGateway())
	}

	originalPrice := input.Amount
	totalPrice := originalPrice
	var couponInfo *transaction.CouponSnapshot
	if input.CouponCode != "" {
		couponInfo, totalPrice, err = s.coupons.Redeem(ctx, input.CouponCode, originalPrice)
		if err != nil {
			return nil, err
		}
	}

	txn := &transaction.Transaction{
		ID:             id.New(),
		Source:         sourceUser,
		SourceID:       buyer.ID,
		Target:         "token_package",
		TargetID:       input.TargetID,
		Type:           transaction.TypeTokenPackage,
		PaymentGateway: gateway,
		OriginalPrice:  originalPrice,
		TotalPrice:     totalPrice,
		CouponInfo:     couponInfo,
		Status:         transaction.StatusCreated,
		Products: []transaction.Product{{
			Name:        fmt.Sprintf("%d tokens", input.Tokens),
			Description: "Wallet top-up",
			Price:       totalPrice,
			Quantity:    1,
			Tokens:      input.Tokens,
			ProductType: "token_package",
			ProductID:   input.TargetID,
		}},
	}

	if err := s.txns.Create(ctx, txn); err != nil {
		return nil, err
	}

	switch gateway {
	case transaction.GatewayCCBill:
		if s.recurringGateway == nil {
			return nil, xerrors.ErrGatewayNotConfigured
		}
		params := s.recurringGateway.SingleChargeParams(txn.ID, totalPrice)
		return &transaction.PurchaseResult{
			Transaction:    txn,
			RedirectParams: params,
			RedirectURL:    params["redirectUrl"],
		}, nil

	case transaction.GatewayStripe:
		if s.cardGateway == nil {
			return nil, xerrors.ErrGatewayNotConfigured
		}
		if input.CardID == "" {
			return nil, fmt.Errorf("card is required for card payments: %w", xerrors.ErrInvalidInput)
		}

		charge, err := s.cardGateway.ChargeOnce(ctx, &stripegw.ChargeRequest{
			TransactionID: txn.ID,
			Source:        txn.Source,
			SourceID:      txn.SourceID,
			Name:          buyer.Name,
			Email:         buyer.Email,
			CardID:        input.CardID,
			Description:   txn.Products[0].Name,
			Amount:        totalPrice,
		})
		if err != nil {
			return nil, err
		}

		txn.InvoiceID = sql.NullString{String: charge.IntentID, Valid: true}
		txn.StripeClientSecret = sql.NullString{String: charge.ClientSecret, Valid: true}
		if err := s.txns.Update(ctx, txn); err != nil {
			return nil, err
		}

		return &transaction.PurchaseResult{
			Transaction:  txn,
			ClientSecret: charge.ClientSecret,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported payment gateway %q: %w", gateway, xerrors.ErrInvalidInput)
	}
}

// SubscribePerformer creates a subscription transaction for a performer
// tier. The free tier settles synchronously; paid tiers settle by webhook.
func (s *Service) SubscribePerformer(ctx context.Context, userID string, input *transaction.SubscribeInput) (*transaction.PurchaseResult, error) {
	if !input.Type.IsSubscriptionType() {
		return nil, fmt.Errorf("type %q is not a subscription tier: %w", input.Type, xerrors.ErrInvalidInput)
	}

	buyer, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	performer, err := s.performers.FindByID(ctx, input.PerformerID)
	if err != nil {
		return nil, err
	}

	active, err := s.subs.FindActiveByUserAndPerformer(ctx, userID, performer.ID)
	if err != nil && !xerrors.Is(err, xerrors.ErrNotFound) {
		return nil, err
	}
	if active != nil && active.SubscriptionType == subscription.TypeFromTransaction(input.Type) {
		return nil, fmt.Errorf("subscription to this tier is already active: %w", xerrors.ErrConflict)
	}

	existing, err := s.subs.FindByUserAndPerformer(ctx, userID, performer.ID)
	if err != nil && !xerrors.Is(err, xerrors.ErrNotFound) {
		return nil, err
	}

	// A free subscription can be granted at most once per pair, ever.
	if input.Type == transaction.TypeFreeSubscription && existing != nil && existing.UsedFreeSubscription {
		return nil, fmt.Errorf("free subscription already used for this performer: %w", xerrors.ErrInvalidInput)
	}

	var price float64
	switch input.Type {
	case transaction.TypeMonthlySubscription:
		price = performer.MonthlyPrice
	case transaction.TypeYearlySubscription:
		price = performer.YearlyPrice
	}

	gateway := transaction.PaymentGateway(s.settings.ActiveGateway())

	txn := &transaction.Transaction{
		ID:             id.New(),
		Source:         sourceUser,
		SourceID:       buyer.ID,
		Target:         "performer",
		TargetID:       performer.ID,
		PerformerID:    sql.NullString{String: performer.ID, Valid: true},
		Type:           input.Type,
		PaymentGateway: gateway,
		OriginalPrice:  price,
		TotalPrice:     price,
		Status:         transaction.StatusCreated,
		Products: []transaction.Product{{
			Name:        fmt.Sprintf("%s subscription to %s", subscription.TypeFromTransaction(input.Type), performer.Name),
			Price:       price,
			Quantity:    1,
			ProductType: "subscription",
			PerformerID: performer.ID,
		}},
	}

	if err := s.txns.Create(ctx, txn); err != nil {
		return nil, err
	}

	// Free tier: no gateway round-trip. Persist success, publish, notify,
	// all in this operation.
	if input.Type == transaction.TypeFreeSubscription {
		if err := s.CommitSuccess(ctx, txn, nil, true); err != nil {
			return nil, err
		}
		return &transaction.PurchaseResult{
			Transaction: txn,
			RedirectURL: s.receiptURL(txn),
		}, nil
	}

	switch gateway {
	case transaction.GatewayCCBill:
		if s.recurringGateway == nil {
			return nil, xerrors.ErrGatewayNotConfigured
		}
		params := s.recurringGateway.RecurringParams(txn.ID, price, input.Type == transaction.TypeYearlySubscription)
		return &transaction.PurchaseResult{
			Transaction:    txn,
			RedirectParams: params,
			RedirectURL:    params["redirectUrl"],
		}, nil

	case transaction.GatewayStripe:
		if s.cardGateway == nil {
			return nil, xerrors.ErrGatewayNotConfigured
		}
		if input.CardID == "" {
			return nil, fmt.Errorf("card is required for card payments: %w", xerrors.ErrInvalidInput)
		}

		plan, err := s.cardGateway.CreateRecurringPlan(ctx, &stripegw.PlanRequest{
			TransactionID: txn.ID,
			Source:        txn.Source,
			SourceID:      txn.SourceID,
			Name:          buyer.Name,
			Email:         buyer.Email,
			CardID:        input.CardID,
			PerformerID:   performer.ID,
			PerformerName: performer.Name,
			Tier:          string(subscription.TypeFromTransaction(input.Type)),
			Price:         price,
			Yearly:        input.Type == transaction.TypeYearlySubscription,
		})
		if err != nil {
			return nil, err
		}

		txn.SubscriptionID = sql.NullString{String: plan.SubscriptionID, Valid: true}
		if plan.InvoiceID != "" {
			txn.InvoiceID = sql.NullString{String: plan.InvoiceID, Valid: true}
		}
		if plan.ClientSecret != "" {
			txn.StripeClientSecret = sql.NullString{String: plan.ClientSecret, Valid: true}
		}
		// Paid tiers stay `created` until the first invoice's payment
		// intent succeeds; only the webhook finalizes them.
		if err := s.txns.Update(ctx, txn); err != nil {
			return nil, err
		}

		// The subscription row must exist before the gateway's
		// subscription-lifecycle webhooks can correlate against it.
		if _, err := s.EnsureActiveSubscription(ctx, txn, plan.SubscriptionID); err != nil {
			return nil, err
		}

		return &transaction.PurchaseResult{
			Transaction:  txn,
			ClientSecret: plan.ClientSecret,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported payment gateway %q: %w", gateway, xerrors.ErrInvalidInput)
	}
}

// CancelSubscription cancels a standing subscription. Only the owner or an
// administrator may cancel. Local state changes only after the gateway
// confirms; a gateway failure leaves the subscription billable.
func (s *Service) CancelSubscription(ctx context.Context, actorID string, actorIsAdmin bool, subscriptionID string) (*subscription.Subscription, error) {
	sub, err := s.subs.FindByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	if !actorIsAdmin && sub.UserID != actorID {
		return nil, xerrors.ErrForbidden
	}

	// Never billed at a gateway (free tier or inconsistent state):
	// cancellation is purely local.
	if sub.SubscriptionID.Valid && sub.SubscriptionID.String != "" {
		switch sub.PaymentGateway {
		case transaction.GatewayCCBill:
			if s.recurringGateway == nil {
				return nil, xerrors.ErrGatewayNotConfigured
			}
			if err := s.recurringGateway.CancelSubscription(ctx, sub.SubscriptionID.String); err != nil {
				return nil, err
			}
		case transaction.GatewayStripe:
			if s.cardGateway == nil {
				return nil, xerrors.ErrGatewayNotConfigured
			}
			if err := s.cardGateway.CancelRecurringPlan(ctx, sub.SubscriptionID.String); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unsupported payment gateway %q: %w", sub.PaymentGateway, xerrors.ErrInvalidInput)
		}
	}

	if err := s.DeactivateSubscription(ctx, sub); err != nil {
		return nil, err
	}

	s.logger.Info("subscription cancelled",
		zap.String("subscription_id", sub.ID),
		zap.String("actor_id", actorID))

	return sub, nil
}

// DeactivateSubscription flips the row to deactivated, decrements the
// statistics and publishes the cancellation event.
func (s *Service) DeactivateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	if sub.Status == subscription.StatusDeactivated {
		return nil
	}

	sub.Status = subscription.StatusDeactivated
	if err := s.subs.Update(ctx, sub); err != nil {
		return err
	}

	s.adjustSubscriptionStats(ctx, sub, -1)

	s.bus.Publish(ctx, evtypes.Event{
		Channel:   evtypes.ChannelSubscriptionCancel,
		EventName: evtypes.EventUpdated,
		Data:      *sub,
	})

	return nil
}

// ReactivateSubscription flips the row back to active and restores the
// statistics. Driven by gateway reactivation callbacks.
func (s *Service) ReactivateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	if sub.Status == subscription.StatusActive {
		return nil
	}

	sub.Status = subscription.StatusActive
	if err := s.subs.Update(ctx, sub); err != nil {
		return err
	}

	s.adjustSubscriptionStats(ctx, sub, 1)
	return nil
}

func (s *Service) adjustSubscriptionStats(ctx context.Context, sub *subscription.Subscription, delta int) {
	if err := s.performers.UpdateSubscriberCount(ctx, sub.PerformerID, delta); err != nil {
		s.logger.Warn("failed to update performer subscriber count",
			zap.String("performer_id", sub.PerformerID), zap.Error(err))
	}
	if err := s.users.UpdateSubscriptionCount(ctx, sub.UserID, delta); err != nil {
		s.logger.Warn("failed to update user subscription count",
			zap.String("user_id", sub.UserID), zap.Error(err))
	}
}

func (s *Service) receiptURL(txn *transaction.Transaction) string {
	return fmt.Sprintf("%s/payment/receipt/%s", s.baseURL, txn.Reference())
}
