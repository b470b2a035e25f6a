// internal/repository/postgres/billing_repo.go
package postgres

import (
	"context"
	"fmt"

	"fanpay-service/internal/domain/billing"
	"fanpay-service/internal/domain/transaction"
	xerrors "fanpay-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BillingRepository caches gateway-side customer, card and product records
// so the adapters look up before creating anything on the gateway.
type BillingRepository struct {
	db *pgxpool.Pool
}

func NewBillingRepository(db *pgxpool.Pool) *BillingRepository {
	return &BillingRepository{db: db}
}

func (r *BillingRepository) FindCustomer(ctx context.Context, source, sourceID string, gateway transaction.PaymentGateway, environment string) (*billing.PaymentCustomer, error) {
	query := `
		SELECT id, source, source_id, gateway, environment, customer_id, name, email, created_at, updated_at
		FROM payment_customers
		WHERE source = $1 AND source_id = $2 AND gateway = $3 AND environment = $4
	`

	var c billing.PaymentCustomer
	err := r.db.QueryRow(ctx, query, source, sourceID, gateway, environment).Scan(
		&c.ID, &c.Source, &c.SourceID, &c.Gateway, &c.Environment,
		&c.CustomerID, &c.Name, &c.Email, &c.CreatedAt, &c.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find payment customer: %w", err)
	}

	return &c, nil
}

func (r *BillingRepository) CreateCustomer(ctx context.Context, c *billing.PaymentCustomer) error {
	query := `
		INSERT INTO payment_customers (id, source, source_id, gateway, environment, customer_id, name, email)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		c.ID, c.Source, c.SourceID, c.Gateway, c.Environment, c.CustomerID, c.Name, c.Email,
	).Scan(&c.CreatedAt, &c.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create payment customer: %w", err)
	}

	return nil
}

// FindCard deduplicates authorized cards by last4/expiry/brand/customer.
func (r *BillingRepository) FindCard(ctx context.Context, customerID, last4, brand string, expMonth, expYear int) (*billing.PaymentCard, error) {
	query := `
		SELECT id, customer_id, card_id, last4, brand, exp_month, exp_year, created_at
		FROM payment_cards
		WHERE customer_id = $1 AND last4 = $2 AND brand = $3 AND exp_month = $4 AND exp_year = $5
	`

	var c billing.PaymentCard
	err := r.db.QueryRow(ctx, query, customerID, last4, brand, expMonth, expYear).Scan(
		&c.ID, &c.CustomerID, &c.CardID, &c.Last4, &c.Brand, &c.ExpMonth, &c.ExpYear, &c.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find payment card: %w", err)
	}

	return &c, nil
}

func (r *BillingRepository) CreateCard(ctx context.Context, c *billing.PaymentCard) error {
	query := `
		INSERT INTO payment_cards (id, customer_id, card_id, last4, brand, exp_month, exp_year)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	err := r.db.QueryRow(
		ctx, query,
		c.ID, c.CustomerID, c.CardID, c.Last4, c.Brand, c.ExpMonth, c.ExpYear,
	).Scan(&c.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create payment card: %w", err)
	}

	return nil
}

// FindProduct looks up the cached gateway product/price for a performer tier
// and price. Must be checked before creating gateway-side products to avoid
// catalog duplication.
func (r *BillingRepository) FindProduct(ctx context.Context, gateway transaction.PaymentGateway, performerID, tier string, price float64) (*billing.PaymentProduct, error) {
	query := `
		SELECT id, gateway, performer_id, tier, price, product_id, price_id, created_at
		FROM payment_products
		WHERE gateway = $1 AND performer_id = $2 AND tier = $3 AND price = $4
	`

	var p billing.PaymentProduct
	err := r.db.QueryRow(ctx, query, gateway, performerID, tier, price).Scan(
		&p.ID, &p.Gateway, &p.PerformerID, &p.Tier, &p.Price, &p.ProductID, &p.PriceID, &p.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find payment product: %w", err)
	}

	return &p, nil
}

func (r *BillingRepository) CreateProduct(ctx context.Context, p *billing.PaymentProduct) error {
	query := `
		INSERT INTO payment_products (id, gateway, performer_id, tier, price, product_id, price_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	err := r.db.QueryRow(
		ctx, query,
		p.ID, p.Gateway, p.PerformerID, p.Tier, p.Price, p.ProductID, p.PriceID,
	).Scan(&p.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create payment product: %w", err)
	}

	return nil
}
