// internal/events/listeners/listeners.go

// Package listeners holds the downstream reactions to settled payments:
// wallet credits, coupon counting, earnings allocation and notification
// mail. Each reaction is registered independently on the event bus so a
// failure in one never blocks the others.
package listeners

import (
	"context"

	"fanpay-service/internal/config"
	"fanpay-service/internal/domain/earning"
	evtypes "fanpay-service/internal/domain/events"
	"fanpay-service/internal/domain/user"
	"fanpay-service/internal/events"

	"go.uber.org/zap"
)

type UserStore interface {
	FindByID(ctx context.Context, id string) (*user.User, error)
	IncreaseBalance(ctx context.Context, id string, tokens float64) error
}

type PerformerStore interface {
	FindByID(ctx context.Context, id string) (*user.Performer, error)
}

type CouponCounter interface {
	IncrementUsage(ctx context.Context, code string) error
}

type EarningStore interface {
	Create(ctx context.Context, e *earning.Earning) error
	ExistsForTransaction(ctx context.Context, transactionID string) (bool, error)
}

// Mailer sends a single HTML mail. Delivery failures are logged, never
// propagated into payment processing.
type Mailer interface {
	Send(to, subject, bodyHTML string) error
}

type Deps struct {
	Users      UserStore
	Performers PerformerStore
	Coupons    CouponCounter
	Earnings   EarningStore
	Mailer     Mailer
	Settings   config.Settings
	Logger     *zap.Logger
}

// Register subscribes every downstream reaction to its channel.
func Register(bus *events.Bus, deps Deps) {
	balance := &balanceListener{users: deps.Users, logger: deps.Logger}
	bus.Subscribe(evtypes.ChannelTransactionSuccess, "balance-credit", balance.Handle)

	coupons := &couponListener{coupons: deps.Coupons, logger: deps.Logger}
	bus.Subscribe(evtypes.ChannelTransactionSuccess, "coupon-usage", coupons.Handle)

	earnings := &earningListener{
		earnings:   deps.Earnings,
		performers: deps.Performers,
		settings:   deps.Settings,
		logger:     deps.Logger,
	}
	bus.Subscribe(evtypes.ChannelTransactionSuccess, "earning-allocation", earnings.Handle)

	mailer := &mailListener{
		mailer:     deps.Mailer,
		users:      deps.Users,
		performers: deps.Performers,
		settings:   deps.Settings,
		logger:     deps.Logger,
	}
	bus.Subscribe(evtypes.ChannelTransactionSuccess, "transaction-mail", mailer.HandleSuccess)
	bus.Subscribe(evtypes.ChannelSubscriptionCancel, "cancellation-mail", mailer.HandleCancel)
}
