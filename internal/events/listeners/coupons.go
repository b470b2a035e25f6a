// internal/events/listeners/coupons.go
package listeners

import (
	"context"

	evtypes "fanpay-service/internal/domain/events"
	"fanpay-service/internal/domain/transaction"

	"go.uber.org/zap"
)

// couponListener counts a redemption once the discounted transaction
// actually settles. Counting at redemption time would burn uses on
// abandoned checkouts.
type couponListener struct {
	coupons CouponCounter
	logger  *zap.Logger
}

func (l *couponListener) Handle(ctx context.Context, e evtypes.Event) error {
	txn, ok := e.Data.(transaction.Transaction)
	if !ok {
		return nil
	}
	if txn.CouponInfo == nil || txn.CouponInfo.Code == "" {
		return nil
	}

	if err := l.coupons.IncrementUsage(ctx, txn.CouponInfo.Code); err != nil {
		l.logger.Warn("failed to count coupon usage",
			zap.String("code", txn.CouponInfo.Code),
			zap.String("transaction_id", txn.ID),
			zap.Error(err))
		return err
	}
	return nil
}
