// internal/events/listeners/earnings.go
package listeners

import (
	"context"

	"fanpay-service/internal/config"
	"fanpay-service/internal/domain/earning"
	evtypes "fanpay-service/internal/domain/events"
	"fanpay-service/internal/domain/transaction"
	xerrors "fanpay-service/internal/pkg/errors"
	"fanpay-service/internal/pkg/id"
	"fanpay-service/internal/service/coupon"

	"go.uber.org/zap"
)

// earningListener splits a settled subscription payment between performer
// and platform. One earning row per transaction, ever; replayed events must
// not double-pay.
type earningListener struct {
	earnings   EarningStore
	performers PerformerStore
	settings   config.Settings
	logger     *zap.Logger
}

func (l *earningListener) Handle(ctx context.Context, e evtypes.Event) error {
	txn, ok := e.Data.(transaction.Transaction)
	if !ok {
		return nil
	}
	if !txn.Type.IsSubscriptionType() || !txn.PerformerID.Valid || txn.TotalPrice <= 0 {
		return nil
	}

	exists, err := l.earnings.ExistsForTransaction(ctx, txn.ID)
	if err != nil {
		return err
	}
	if exists {
		l.logger.Info("earning already allocated, skipping",
			zap.String("transaction_id", txn.ID))
		return nil
	}

	rate := l.settings.CommissionRate()
	performer, err := l.performers.FindByID(ctx, txn.PerformerID.String)
	if err != nil && !xerrors.Is(err, xerrors.ErrNotFound) {
		return err
	}
	if performer != nil && performer.CommissionPercentage > 0 {
		rate = performer.CommissionPercentage
	}

	commission := coupon.Round2(txn.TotalPrice * rate)

	row := &earning.Earning{
		ID:            id.New(),
		TransactionID: txn.ID,
		PerformerID:   txn.PerformerID.String,
		UserID:        txn.SourceID,
		GrossPrice:    txn.TotalPrice,
		Commission:    commission,
		NetPrice:      coupon.Round2(txn.TotalPrice - commission),
		Type:          string(txn.Type),
	}
	if err := l.earnings.Create(ctx, row); err != nil {
		return err
	}

	l.logger.Info("earning allocated",
		zap.String("transaction_id", txn.ID),
		zap.String("performer_id", row.PerformerID),
		zap.Float64("net", row.NetPrice))
	return nil
}
