// internal/domain/billing/entity.go
package billing

import (
	"time"

	"fanpay-service/internal/domain/transaction"
)

// PaymentCustomer is the locally cached gateway-side customer record,
// created lazily on first card authorization. One row per
// (source, source_id, gateway, environment).
type PaymentCustomer struct {
	ID          string                     `json:"id" db:"id"`
	Source      string                     `json:"source" db:"source"`
	SourceID    string                     `json:"source_id" db:"source_id"`
	Gateway     transaction.PaymentGateway `json:"gateway" db:"gateway"`
	Environment string                     `json:"environment" db:"environment"`
	CustomerID  string                     `json:"customer_id" db:"customer_id"` // gateway-side id
	Name        string                     `json:"name,omitempty" db:"name"`
	Email       string                     `json:"email,omitempty" db:"email"`
	CreatedAt   time.Time                  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time                  `json:"updated_at" db:"updated_at"`
}

// PaymentCard is an authorized card, deduplicated by
// (last4, exp_month, exp_year, brand, customer).
type PaymentCard struct {
	ID         string    `json:"id" db:"id"`
	CustomerID string    `json:"customer_id" db:"customer_id"` // local PaymentCustomer id
	CardID     string    `json:"card_id" db:"card_id"`         // gateway-side payment method id
	Last4      string    `json:"last4" db:"last4"`
	Brand      string    `json:"brand" db:"brand"`
	ExpMonth   int       `json:"exp_month" db:"exp_month"`
	ExpYear    int       `json:"exp_year" db:"exp_year"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// PaymentProduct caches a gateway-side product/price pair so repeated
// subscription attempts reuse the same catalog entry. One row per
// (performer, tier, price). Look up before create.
type PaymentProduct struct {
	ID          string                     `json:"id" db:"id"`
	Gateway     transaction.PaymentGateway `json:"gateway" db:"gateway"`
	PerformerID string                     `json:"performer_id" db:"performer_id"`
	Tier        string                     `json:"tier" db:"tier"`
	Price       float64                    `json:"price" db:"price"`
	ProductID   string                     `json:"product_id" db:"product_id"` // gateway-side product id
	PriceID     string                     `json:"price_id" db:"price_id"`     // gateway-side recurring price id
	CreatedAt   time.Time                  `json:"created_at" db:"created_at"`
}
