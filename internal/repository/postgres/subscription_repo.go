// internal/repository/postgres/subscription_repo.go
package postgres

import (
	"context"
	"fmt"

	"fanpay-service/internal/domain/subscription"
	xerrors "fanpay-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SubscriptionRepository struct {
	db *pgxpool.Pool
}

func NewSubscriptionRepository(db *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

const subscriptionColumns = `
	id, user_id, performer_id, subscription_type, status,
	subscription_id, payment_gateway, used_free_subscription,
	expired_at, next_recurring_date, created_at, updated_at
`

func (r *SubscriptionRepository) Create(ctx context.Context, sub *subscription.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			id, user_id, performer_id, subscription_type, status,
			subscription_id, payment_gateway, used_free_subscription,
			expired_at, next_recurring_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		sub.ID, sub.UserID, sub.PerformerID, sub.SubscriptionType, sub.Status,
		sub.SubscriptionID, sub.PaymentGateway, sub.UsedFreeSubscription,
		sub.ExpiredAt, sub.NextRecurringDate,
	).Scan(&sub.CreatedAt, &sub.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}

	return nil
}

func (r *SubscriptionRepository) FindByID(ctx context.Context, id string) (*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

// FindByGatewaySubscriptionID locates a subscription by the gateway-side
// recurring plan id (the webhook correlation key).
func (r *SubscriptionRepository) FindByGatewaySubscriptionID(ctx context.Context, gatewaySubID string) (*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE subscription_id = $1 ORDER BY created_at DESC LIMIT 1`
	return r.scanOne(r.db.QueryRow(ctx, query, gatewaySubID))
}

// FindByUserAndPerformer returns the most recent subscription for the pair,
// active or not. The free-tier exclusivity check reads this row.
func (r *SubscriptionRepository) FindByUserAndPerformer(ctx context.Context, userID, performerID string) (*subscription.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = $1 AND performer_id = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.scanOne(r.db.QueryRow(ctx, query, userID, performerID))
}

// FindActiveByUserAndPerformer returns the active subscription for the pair, if any.
func (r *SubscriptionRepository) FindActiveByUserAndPerformer(ctx context.Context, userID, performerID string) (*subscription.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = $1 AND performer_id = $2 AND status = $3
		LIMIT 1
	`
	return r.scanOne(r.db.QueryRow(ctx, query, userID, performerID, subscription.StatusActive))
}

// Update persists the mutable lifecycle fields.
func (r *SubscriptionRepository) Update(ctx context.Context, sub *subscription.Subscription) error {
	query := `
		UPDATE subscriptions
		SET subscription_type = $2,
		    status = $3,
		    subscription_id = $4,
		    payment_gateway = $5,
		    used_free_subscription = $6,
		    expired_at = $7,
		    next_recurring_date = $8,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		sub.ID, sub.SubscriptionType, sub.Status,
		sub.SubscriptionID, sub.PaymentGateway, sub.UsedFreeSubscription,
		sub.ExpiredAt, sub.NextRecurringDate,
	).Scan(&sub.UpdatedAt)

	if err == pgx.ErrNoRows {
		return xerrors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}

	return nil
}

func (r *SubscriptionRepository) scanOne(row pgx.Row) (*subscription.Subscription, error) {
	var sub subscription.Subscription

	err := row.Scan(
		&sub.ID, &sub.UserID, &sub.PerformerID, &sub.SubscriptionType, &sub.Status,
		&sub.SubscriptionID, &sub.PaymentGateway, &sub.UsedFreeSubscription,
		&sub.ExpiredAt, &sub.NextRecurringDate, &sub.CreatedAt, &sub.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}

	return &sub, nil
}
