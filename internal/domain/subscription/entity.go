// internal/domain/subscription/entity.go
package subscription

import (
	"database/sql"
	"time"

	"fanpay-service/internal/domain/transaction"
)

type SubscriptionType string

const (
	TypeFree    SubscriptionType = "free"
	TypeMonthly SubscriptionType = "monthly"
	TypeYearly  SubscriptionType = "yearly"
)

type SubscriptionStatus string

const (
	StatusActive      SubscriptionStatus = "active"
	StatusDeactivated SubscriptionStatus = "deactivated"
)

// Subscription is the standing relationship between a user and a performer's
// paid tier. At most one active row per (user, performer) pair; once the
// free tier has been used it can never be granted again for that pair.
type Subscription struct {
	ID               string             `json:"id" db:"id"`
	UserID           string             `json:"user_id" db:"user_id"`
	PerformerID      string             `json:"performer_id" db:"performer_id"`
	SubscriptionType SubscriptionType   `json:"subscription_type" db:"subscription_type"`
	Status           SubscriptionStatus `json:"status" db:"status"`

	// Gateway-side recurring plan id, null for the free tier.
	SubscriptionID sql.NullString             `json:"subscription_id,omitempty" db:"subscription_id"`
	PaymentGateway transaction.PaymentGateway `json:"payment_gateway" db:"payment_gateway"`

	UsedFreeSubscription bool `json:"used_free_subscription" db:"used_free_subscription"`

	ExpiredAt         sql.NullTime `json:"expired_at,omitempty" db:"expired_at"`
	NextRecurringDate sql.NullTime `json:"next_recurring_date,omitempty" db:"next_recurring_date"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TypeFromTransaction maps a transaction type to the subscription tier it pays for.
func TypeFromTransaction(t transaction.TransactionType) SubscriptionType {
	switch t {
	case transaction.TypeMonthlySubscription:
		return TypeMonthly
	case transaction.TypeYearlySubscription:
		return TypeYearly
	default:
		return TypeFree
	}
}
