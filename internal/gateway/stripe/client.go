// internal/gateway/stripe/client.go
package stripe

import (
	"context"
	"fmt"

	"fanpay-service/internal/config"
	"fanpay-service/internal/domain/billing"
	"fanpay-service/internal/domain/transaction"
	xerrors "fanpay-service/internal/pkg/errors"
	"fanpay-service/internal/pkg/id"

	stripeapi "github.com/stripe/stripe-go/v79"
	stripeclient "github.com/stripe/stripe-go/v79/client"
	"go.uber.org/zap"
)

// MetadataTransactionID is the metadata key carrying our transaction id into
// the gateway; webhooks correlate back through it, falling back to the
// invoice id when absent.
const MetadataTransactionID = "transaction_id"

// BillingCache is the local lookup-before-create store for gateway-side
// customers, cards and catalog entries.
type BillingCache interface {
	FindCustomer(ctx context.Context, source, sourceID string, gateway transaction.PaymentGateway, environment string) (*billing.PaymentCustomer, error)
	CreateCustomer(ctx context.Context, c *billing.PaymentCustomer) error
	FindCard(ctx context.Context, customerID, last4, brand string, expMonth, expYear int) (*billing.PaymentCard, error)
	CreateCard(ctx context.Context, c *billing.PaymentCard) error
	FindProduct(ctx context.Context, gateway transaction.PaymentGateway, performerID, tier string, price float64) (*billing.PaymentProduct, error)
	CreateProduct(ctx context.Context, p *billing.PaymentProduct) error
}

// ChargeRequest is a one-off charge in the card processor's vocabulary.
type ChargeRequest struct {
	TransactionID string
	Source        string
	SourceID      string
	Name          string
	Email         string
	CardID        string
	Description   string
	Amount        float64
}

// ChargeResult carries the gateway correlation keys back to the orchestrator.
type ChargeResult struct {
	IntentID     string
	ClientSecret string
	Status       string
}

// PlanRequest creates a recurring billing plan for a performer tier.
type PlanRequest struct {
	TransactionID string
	Source        string
	SourceID      string
	Name          string
	Email         string
	CardID        string
	PerformerID   string
	PerformerName string
	Tier          string
	Price         float64
	Yearly        bool
}

// PlanResult carries the recurring plan correlation keys.
type PlanResult struct {
	SubscriptionID string
	InvoiceID      string
	ClientSecret   string
}

// Client wraps the card-processor API plus the local billing cache.
type Client struct {
	api         *stripeclient.API
	cache       BillingCache
	environment string
	logger      *zap.Logger
}

func NewClient(settings config.StripeSettings, cache BillingCache, environment string, logger *zap.Logger) *Client {
	api := &stripeclient.API{}
	api.Init(settings.SecretKey, nil)

	return &Client{
		api:         api,
		cache:       cache,
		environment: environment,
		logger:      logger,
	}
}

// ChargeOnce creates a confirmed payment intent with the transaction id in
// metadata. The transaction stays `created` until the succeeded webhook.
func (c *Client) ChargeOnce(ctx context.Context, req *ChargeRequest) (*ChargeResult, error) {
	customer, err := c.getOrCreateCustomer(ctx, req.Source, req.SourceID, req.Name, req.Email)
	if err != nil {
		return nil, err
	}

	cardID := req.CardID
	if cardID != "" {
		if _, err := c.authorizeCard(ctx, customer, cardID); err != nil {
			return nil, err
		}
	}

	params := &stripeapi.PaymentIntentParams{
		Amount:   stripeapi.Int64(toCents(req.Amount)),
		Currency: stripeapi.String(string(stripeapi.CurrencyUSD)),
		Customer: stripeapi.String(customer.CustomerID),
	}
	if cardID != "" {
		params.PaymentMethod = stripeapi.String(cardID)
		params.Confirm = stripeapi.Bool(true)
	}
	if req.Description != "" {
		params.Description = stripeapi.String(req.Description)
	}
	params.AddMetadata(MetadataTransactionID, req.TransactionID)

	intent, err := c.api.PaymentIntents.New(params)
	if err != nil {
		return nil, gatewayErr("create payment intent", err)
	}

	c.logger.Info("stripe payment intent created",
		zap.String("transaction_id", req.TransactionID),
		zap.String("intent_id", intent.ID))

	return &ChargeResult{
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		Status:       string(intent.Status),
	}, nil
}

// CreateRecurringPlan creates (or reuses) the catalog entry for the
// performer tier and opens a subscription carrying the transaction id in
// metadata for webhook correlation.
func (c *Client) CreateRecurringPlan(ctx context.Context, req *PlanRequest) (*PlanResult, error) {
	customer, err := c.getOrCreateCustomer(ctx, req.Source, req.SourceID, req.Name, req.Email)
	if err != nil {
		return nil, err
	}

	if req.CardID != "" {
		if _, err := c.authorizeCard(ctx, customer, req.CardID); err != nil {
			return nil, err
		}
	}

	product, err := c.getOrCreateProduct(ctx, req)
	if err != nil {
		return nil, err
	}

	params := &stripeapi.SubscriptionParams{
		Customer: stripeapi.String(customer.CustomerID),
		Items: []*stripeapi.SubscriptionItemsParams{
			{Price: stripeapi.String(product.PriceID)},
		},
	}
	if req.CardID != "" {
		params.DefaultPaymentMethod = stripeapi.String(req.CardID)
	}
	params.AddMetadata(MetadataTransactionID, req.TransactionID)
	params.AddExpand("latest_invoice.payment_intent")

	sub, err := c.api.Subscriptions.New(params)
	if err != nil {
		return nil, gatewayErr("create subscription", err)
	}

	result := &PlanResult{SubscriptionID: sub.ID}
	if sub.LatestInvoice != nil {
		result.InvoiceID = sub.LatestInvoice.ID
		if sub.LatestInvoice.PaymentIntent != nil {
			result.ClientSecret = sub.LatestInvoice.PaymentIntent.ClientSecret
		}
	}

	c.logger.Info("stripe recurring plan created",
		zap.String("transaction_id", req.TransactionID),
		zap.String("subscription_id", sub.ID))

	return result, nil
}

// CancelRecurringPlan cancels the gateway-side subscription. Local state
// must only change after this returns nil.
func (c *Client) CancelRecurringPlan(ctx context.Context, gatewaySubscriptionID string) error {
	if _, err := c.api.Subscriptions.Cancel(gatewaySubscriptionID, &stripeapi.SubscriptionCancelParams{}); err != nil {
		return gatewayErr("cancel subscription", err)
	}
	return nil
}

func (c *Client) getOrCreateCustomer(ctx context.Context, source, sourceID, name, email string) (*billing.PaymentCustomer, error) {
	existing, err := c.cache.FindCustomer(ctx, source, sourceID, transaction.GatewayStripe, c.environment)
	if err == nil {
		return existing, nil
	}
	if !xerrors.Is(err, xerrors.ErrNotFound) {
		return nil, err
	}

	params := &stripeapi.CustomerParams{}
	if name != "" {
		params.Name = stripeapi.String(name)
	}
	if email != "" {
		params.Email = stripeapi.String(email)
	}
	params.AddMetadata("source", source)
	params.AddMetadata("source_id", sourceID)

	created, err := c.api.Customers.New(params)
	if err != nil {
		return nil, gatewayErr("create customer", err)
	}

	customer := &billing.PaymentCustomer{
		ID:          id.New(),
		Source:      source,
		SourceID:    sourceID,
		Gateway:     transaction.GatewayStripe,
		Environment: c.environment,
		CustomerID:  created.ID,
		Name:        name,
		Email:       email,
	}
	if err := c.cache.CreateCustomer(ctx, customer); err != nil {
		return nil, err
	}

	return customer, nil
}

// authorizeCard attaches the payment method to the gateway customer and
// records it locally, deduplicated by last4/expiry/brand/customer.
func (c *Client) authorizeCard(ctx context.Context, customer *billing.PaymentCustomer, cardID string) (*billing.PaymentCard, error) {
	pm, err := c.api.PaymentMethods.Attach(cardID, &stripeapi.PaymentMethodAttachParams{
		Customer: stripeapi.String(customer.CustomerID),
	})
	if err != nil {
		return nil, gatewayErr("attach payment method", err)
	}

	if pm.Card == nil {
		return nil, xerrors.NewGatewayError("stripe", "", "payment method is not a card")
	}

	last4 := pm.Card.Last4
	brand := string(pm.Card.Brand)
	expMonth := int(pm.Card.ExpMonth)
	expYear := int(pm.Card.ExpYear)

	existing, err := c.cache.FindCard(ctx, customer.ID, last4, brand, expMonth, expYear)
	if err == nil {
		return existing, nil
	}
	if !xerrors.Is(err, xerrors.ErrNotFound) {
		return nil, err
	}

	card := &billing.PaymentCard{
		ID:         id.New(),
		CustomerID: customer.ID,
		CardID:     pm.ID,
		Last4:      last4,
		Brand:      brand,
		ExpMonth:   expMonth,
		ExpYear:    expYear,
	}
	if err := c.cache.CreateCard(ctx, card); err != nil {
		return nil, err
	}

	return card, nil
}

// getOrCreateProduct reuses the cached gateway catalog entry for
// (performer, tier, price); creating blindly would duplicate products on
// every subscription attempt.
func (c *Client) getOrCreateProduct(ctx context.Context, req *PlanRequest) (*billing.PaymentProduct, error) {
	existing, err := c.cache.FindProduct(ctx, transaction.GatewayStripe, req.PerformerID, req.Tier, req.Price)
	if err == nil {
		return existing, nil
	}
	if !xerrors.Is(err, xerrors.ErrNotFound) {
		return nil, err
	}

	name := fmt.Sprintf("%s %s subscription", req.PerformerName, req.Tier)
	created, err := c.api.Products.New(&stripeapi.ProductParams{
		Name: stripeapi.String(name),
	})
	if err != nil {
		return nil, gatewayErr("create product", err)
	}

	interval := "month"
	if req.Yearly {
		interval = "year"
	}

	price, err := c.api.Prices.New(&stripeapi.PriceParams{
		Product:    stripeapi.String(created.ID),
		UnitAmount: stripeapi.Int64(toCents(req.Price)),
		Currency:   stripeapi.String(string(stripeapi.CurrencyUSD)),
		Recurring: &stripeapi.PriceRecurringParams{
			Interval: stripeapi.String(interval),
		},
	})
	if err != nil {
		return nil, gatewayErr("create price", err)
	}

	product := &billing.PaymentProduct{
		ID:          id.New(),
		Gateway:     transaction.GatewayStripe,
		PerformerID: req.PerformerID,
		Tier:        req.Tier,
		Price:       req.Price,
		ProductID:   created.ID,
		PriceID:     price.ID,
	}
	if err := c.cache.CreateProduct(ctx, product); err != nil {
		return nil, err
	}

	return product, nil
}

func toCents(amount float64) int64 {
	return int64(amount*100 + 0.5)
}

// gatewayErr preserves the processor's own message verbatim for operators.
func gatewayErr(op string, err error) error {
	if stripeErr, ok := err.(*stripeapi.Error); ok {
		return xerrors.NewGatewayError("stripe", string(stripeErr.Code), stripeErr.Msg)
	}
	return xerrors.NewGatewayError("stripe", "", fmt.Sprintf("%s: %v", op, err))
}
