// internal/events/listeners/balance.go
package listeners

import (
	"context"

	evtypes "fanpay-service/internal/domain/events"
	"fanpay-service/internal/domain/transaction"

	"go.uber.org/zap"
)

// balanceListener credits the payer's wallet when a token purchase settles.
type balanceListener struct {
	users  UserStore
	logger *zap.Logger
}

func (l *balanceListener) Handle(ctx context.Context, e evtypes.Event) error {
	txn, ok := e.Data.(transaction.Transaction)
	if !ok {
		return nil
	}
	if txn.Type != transaction.TypeTokenPackage || len(txn.Products) == 0 {
		return nil
	}

	tokens := float64(txn.Products[0].Tokens)
	if tokens <= 0 {
		return nil
	}

	if err := l.users.IncreaseBalance(ctx, txn.SourceID, tokens); err != nil {
		return err
	}

	l.logger.Info("wallet credited",
		zap.String("user_id", txn.SourceID),
		zap.Float64("tokens", tokens),
		zap.String("transaction_id", txn.ID))
	return nil
}
