// internal/service/coupon/coupon_service.go
package coupon

import (
	"context"
	"fmt"
	"math"
	"time"

	"fanpay-service/internal/domain/coupon"
	"fanpay-service/internal/domain/transaction"
	xerrors "fanpay-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// Repository is the coupon store the service reads and counts against.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*coupon.Coupon, error)
	IncrementUsage(ctx context.Context, code string) error
}

type Service struct {
	repo   Repository
	logger *zap.Logger
}

func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Validate returns the coupon if it can currently be redeemed.
func (s *Service) Validate(ctx context.Context, code string) (*coupon.Coupon, error) {
	c, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if !c.Usable(time.Now()) {
		return nil, fmt.Errorf("coupon %s is expired or exhausted: %w", code, xerrors.ErrInvalidInput)
	}

	return c, nil
}

// Redeem validates the coupon and captures its effect on the given price.
// The returned snapshot is what gets persisted into the transaction; later
// coupon edits never touch it. The discounted total is computed exactly once
// here and never recomputed after persistence.
func (s *Service) Redeem(ctx context.Context, code string, price float64) (*transaction.CouponSnapshot, float64, error) {
	c, err := s.Validate(ctx, code)
	if err != nil {
		return nil, 0, err
	}

	total := ApplyDiscount(price, c.Value)

	return &transaction.CouponSnapshot{
		Code:  c.Code,
		Name:  c.Name,
		Value: c.Value,
	}, total, nil
}

// IncrementUsage counts one redemption. Called by the coupon-usage listener
// after a transaction reaches success, never inline with redemption.
func (s *Service) IncrementUsage(ctx context.Context, code string) error {
	if err := s.repo.IncrementUsage(ctx, code); err != nil {
		return err
	}
	s.logger.Info("coupon usage incremented", zap.String("code", code))
	return nil
}

// ApplyDiscount returns price minus the rounded discount for a fractional
// value in [0,1].
func ApplyDiscount(price, value float64) float64 {
	return price - Round2(price*value)
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
