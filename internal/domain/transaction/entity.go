// internal/domain/transaction/entity.go
package transaction

import (
	"database/sql"
	"strings"
	"time"
)

type PaymentGateway string

const (
	GatewayStripe PaymentGateway = "stripe"
	GatewayCCBill PaymentGateway = "ccbill"
)

type TransactionType string

const (
	TypeTokenPackage        TransactionType = "token_package"
	TypeFreeSubscription    TransactionType = "free_subscription"
	TypeMonthlySubscription TransactionType = "monthly_subscription"
	TypeYearlySubscription  TransactionType = "yearly_subscription"
)

type TransactionStatus string

const (
	StatusCreated               TransactionStatus = "created"
	StatusProcessing            TransactionStatus = "processing"
	StatusRequireAuthentication TransactionStatus = "require_authentication"
	StatusSuccess               TransactionStatus = "success"
	StatusFail                  TransactionStatus = "fail"
	StatusCanceled              TransactionStatus = "canceled"
	StatusRefunded              TransactionStatus = "refunded"
)

// IsTerminal reports whether a status can never be left again.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusFail, StatusCanceled, StatusRefunded:
		return true
	}
	return false
}

// validNext defines the forward edges of the transaction state machine.
// Webhooks can arrive out of order; anything not listed here is dropped
// instead of letting last-writer-wins clobber a terminal state.
var validNext = map[TransactionStatus][]TransactionStatus{
	StatusCreated:               {StatusProcessing, StatusRequireAuthentication, StatusSuccess, StatusFail, StatusCanceled},
	StatusProcessing:            {StatusRequireAuthentication, StatusSuccess, StatusFail, StatusCanceled},
	StatusRequireAuthentication: {StatusProcessing, StatusSuccess, StatusFail, StatusCanceled},
	StatusSuccess:               {StatusRefunded},
}

// CanTransition reports whether moving from one status to another is a
// valid forward transition.
func CanTransition(from, to TransactionStatus) bool {
	if from == to {
		return false
	}
	for _, next := range validNext[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Product is one line item of a transaction.
type Product struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	Tokens      int     `json:"tokens,omitempty"`
	ProductType string  `json:"product_type"`
	ProductID   string  `json:"product_id,omitempty"`
	PerformerID string  `json:"performer_id,omitempty"`
}

// CouponSnapshot is the coupon as it was at redemption time. Later coupon
// edits must not change an already committed transaction.
type CouponSnapshot struct {
	Code  string  `json:"code"`
	Name  string  `json:"name,omitempty"`
	Value float64 `json:"value"`
}

// Transaction is a single payment attempt. Rows are append-only: renewals
// get a new row, the original is never reused.
type Transaction struct {
	ID          string         `json:"id" db:"id"`
	Source      string         `json:"source" db:"source"`
	SourceID    string         `json:"source_id" db:"source_id"`
	Target      string         `json:"target" db:"target"`
	TargetID    string         `json:"target_id" db:"target_id"`
	PerformerID sql.NullString `json:"performer_id,omitempty" db:"performer_id"`

	Type           TransactionType `json:"type" db:"type"`
	PaymentGateway PaymentGateway  `json:"payment_gateway" db:"payment_gateway"`

	OriginalPrice float64         `json:"original_price" db:"original_price"`
	TotalPrice    float64         `json:"total_price" db:"total_price"`
	Products      []Product       `json:"products" db:"products"`
	CouponInfo    *CouponSnapshot `json:"coupon_info,omitempty" db:"coupon_info"`

	Status TransactionStatus `json:"status" db:"status"`

	// Raw last gateway payload, stored for audit only. Never parsed downstream.
	PaymentResponseInfo map[string]interface{} `json:"payment_response_info,omitempty" db:"payment_response_info"`

	InvoiceID          sql.NullString `json:"invoice_id,omitempty" db:"invoice_id"`
	StripeClientSecret sql.NullString `json:"stripe_client_secret,omitempty" db:"stripe_client_secret"`
	SubscriptionID     sql.NullString `json:"subscription_id,omitempty" db:"subscription_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Reference is the user-facing transaction reference: a stable uppercased
// slice of the id (characters 16-24). Redirect URLs, receipts and emails all
// rely on this exact derivation, so it must not change even though two
// transactions can theoretically share a displayed reference.
func (t *Transaction) Reference() string {
	return ReferenceFromID(t.ID)
}

// ReferenceFromID derives the user-facing reference from a raw transaction id.
func ReferenceFromID(id string) string {
	if len(id) < 24 {
		return strings.ToUpper(id)
	}
	return strings.ToUpper(id[16:24])
}

// IsSubscriptionType reports whether the transaction pays for a performer
// subscription tier rather than a one-off purchase.
func (t TransactionType) IsSubscriptionType() bool {
	switch t {
	case TypeFreeSubscription, TypeMonthlySubscription, TypeYearlySubscription:
		return true
	}
	return false
}
