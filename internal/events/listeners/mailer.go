// internal/events/listeners/mailer.go
package listeners

import (
	"context"

	"fanpay-service/internal/config"
	evtypes "fanpay-service/internal/domain/events"
	"fanpay-service/internal/domain/subscription"
	"fanpay-service/internal/domain/transaction"
	"fanpay-service/internal/service/coupon"
	"fanpay-service/internal/service/email"

	"go.uber.org/zap"
)

// mailListener sends the notification mail around payment events. Every
// send is best effort; a mail failure never fails the event.
type mailListener struct {
	mailer     Mailer
	users      UserStore
	performers PerformerStore
	settings   config.Settings
	logger     *zap.Logger
}

func (l *mailListener) HandleSuccess(ctx context.Context, e evtypes.Event) error {
	txn, ok := e.Data.(transaction.Transaction)
	if !ok {
		return nil
	}

	productName := ""
	if len(txn.Products) > 0 {
		productName = txn.Products[0].Name
	}

	if payer, err := l.users.FindByID(ctx, txn.SourceID); err == nil && payer.Email != "" {
		body := email.PaymentReceiptBody(payer.Name, txn.Reference(), productName, txn.TotalPrice)
		l.send(payer.Email, "Payment receipt", body, txn.ID)
	}

	if txn.Type.IsSubscriptionType() && txn.PerformerID.Valid && txn.TotalPrice > 0 {
		if performer, err := l.performers.FindByID(ctx, txn.PerformerID.String); err == nil && performer.Email != "" {
			rate := l.settings.CommissionRate()
			if performer.CommissionPercentage > 0 {
				rate = performer.CommissionPercentage
			}
			net := coupon.Round2(txn.TotalPrice * (1 - rate))
			tier := string(subscription.TypeFromTransaction(txn.Type))
			l.send(performer.Email, "New subscriber", email.PerformerSaleBody(performer.Name, tier, net), txn.ID)
		}
	}

	if admin := l.settings.AdminEmail(); admin != "" {
		couponCode := ""
		if txn.CouponInfo != nil {
			couponCode = txn.CouponInfo.Code
		}
		body := email.AdminSaleBody(txn.Reference(), string(txn.Type), txn.TotalPrice, couponCode)
		l.send(admin, "Transaction settled", body, txn.ID)
	}

	return nil
}

func (l *mailListener) HandleCancel(ctx context.Context, e evtypes.Event) error {
	sub, ok := e.Data.(subscription.Subscription)
	if !ok {
		return nil
	}

	subscriber, err := l.users.FindByID(ctx, sub.UserID)
	if err != nil || subscriber.Email == "" {
		return nil
	}

	performerName := "the performer"
	if performer, err := l.performers.FindByID(ctx, sub.PerformerID); err == nil {
		performerName = performer.Name
	}

	l.send(subscriber.Email, "Subscription cancelled",
		email.SubscriptionCancelledBody(subscriber.Name, performerName), sub.ID)
	return nil
}

func (l *mailListener) send(to, subject, body, refID string) {
	if l.mailer == nil {
		return
	}
	if err := l.mailer.Send(to, subject, body); err != nil {
		l.logger.Warn("failed to send mail",
			zap.String("subject", subject),
			zap.String("ref", refID),
			zap.Error(err))
	}
}
