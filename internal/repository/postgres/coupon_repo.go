// internal/repository/postgres/coupon_repo.go
package postgres

import (
	"context"
	"fmt"

	"fanpay-service/internal/domain/coupon"
	xerrors "fanpay-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CouponRepository struct {
	db *pgxpool.Pool
}

func NewCouponRepository(db *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{db: db}
}

func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	query := `
		SELECT id, code, name, description, value, status,
		       expired_date, number_of_uses, used_count, created_at, updated_at
		FROM coupons
		WHERE code = $1
	`

	var c coupon.Coupon
	err := r.db.QueryRow(ctx, query, code).Scan(
		&c.ID, &c.Code, &c.Name, &c.Description, &c.Value, &c.Status,
		&c.ExpiredDate, &c.NumberOfUses, &c.UsedCount, &c.CreatedAt, &c.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find coupon: %w", err)
	}

	return &c, nil
}

// IncrementUsage bumps the usage counter after a successful transaction.
func (r *CouponRepository) IncrementUsage(ctx context.Context, code string) error {
	query := `UPDATE coupons SET used_count = used_count + 1, updated_at = NOW() WHERE code = $1`

	tag, err := r.db.Exec(ctx, query, code)
	if err != nil {
		return fmt.Errorf("failed to increment coupon usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}
