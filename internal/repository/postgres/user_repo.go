// internal/repository/postgres/user_repo.go
package postgres

import (
	"context"
	"fmt"

	"fanpay-service/internal/domain/user"
	xerrors "fanpay-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository is the collaborator boundary for user and performer rows.
// This service only reads them and makes narrow, scoped updates (balance,
// subscription statistics); profiles belong to the identity service.
type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*user.User, error) {
	query := `
		SELECT id, username, name, email, balance, subscription_count, is_admin, created_at, updated_at
		FROM users WHERE id = $1
	`

	var u user.User
	err := r.db.QueryRow(ctx, query, id).Scan(
		&u.ID, &u.Username, &u.Name, &u.Email, &u.Balance,
		&u.SubscriptionCount, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return &u, nil
}

// IncreaseBalance credits (or debits, with a negative amount) a user's token balance.
func (r *UserRepository) IncreaseBalance(ctx context.Context, id string, tokens float64) error {
	query := `UPDATE users SET balance = balance + $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, tokens)
	if err != nil {
		return fmt.Errorf("failed to update user balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// UpdateSubscriptionCount adjusts the user's subscription statistic by delta.
func (r *UserRepository) UpdateSubscriptionCount(ctx context.Context, id string, delta int) error {
	query := `
		UPDATE users
		SET subscription_count = GREATEST(subscription_count + $2, 0), updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, id, delta)
	if err != nil {
		return fmt.Errorf("failed to update user subscription count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

type PerformerRepository struct {
	db *pgxpool.Pool
}

func NewPerformerRepository(db *pgxpool.Pool) *PerformerRepository {
	return &PerformerRepository{db: db}
}

func (r *PerformerRepository) FindByID(ctx context.Context, id string) (*user.Performer, error) {
	query := `
		SELECT id, username, name, email, monthly_price, yearly_price,
		       subscriber_count, commission_percentage, created_at, updated_at
		FROM performers WHERE id = $1
	`

	var p user.Performer
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Username, &p.Name, &p.Email, &p.MonthlyPrice, &p.YearlyPrice,
		&p.SubscriberCount, &p.CommissionPercentage, &p.CreatedAt, &p.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find performer: %w", err)
	}

	return &p, nil
}

// UpdateSubscriberCount adjusts the performer's subscriber statistic by delta.
func (r *PerformerRepository) UpdateSubscriberCount(ctx context.Context, id string, delta int) error {
	query := `
		UPDATE performers
		SET subscriber_count = GREATEST(subscriber_count + $2, 0), updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, id, delta)
	if err != nil {
		return fmt.Errorf("failed to update performer subscriber count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}
