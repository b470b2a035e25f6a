// internal/handlers/webhook/webhook_handler.go
package webhook

import (
	"io"
	"net/http"

	"fanpay-service/internal/config"
	"fanpay-service/internal/gateway/ccbill"
	stripegw "fanpay-service/internal/gateway/stripe"
	xerrors "fanpay-service/internal/pkg/errors"
	"fanpay-service/internal/pkg/response"
	service "fanpay-service/internal/service/webhook"

	"github.com/gin-gonic/gin"
	stripeapi "github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"
)

type WebhookHandler struct {
	ccbillService *service.CCBillService
	stripeService *service.StripeService
	settings      config.Settings
	logger        *zap.Logger
}

func NewWebhookHandler(ccbillService *service.CCBillService, stripeService *service.StripeService, settings config.Settings, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		ccbillService: ccbillService,
		stripeService: stripeService,
		settings:      settings,
		logger:        logger,
	}
}

// CCBill receives the recurring-billing gateway's callbacks. The payload
// arrives as form or query parameters. Deliveries we ignore still get a 200
// so the gateway stops retrying.
func (h *WebhookHandler) CCBill(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", err)
		return
	}

	event := ccbill.ParseWebhook(c.Request.Form)
	h.logger.Info("ccbill webhook received",
		zap.String("event_type", event.Type),
		zap.String("transaction_id", event.TransactionID))

	result, err := h.ccbillService.Handle(c.Request.Context(), event)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "ok", result)
}

// StripeSubscription receives the customer.subscription.* stream.
func (h *WebhookHandler) StripeSubscription(c *gin.Context) {
	event, ok := h.readStripeEvent(c)
	if !ok {
		return
	}

	result, err := h.stripeService.HandleSubscriptionEvent(c.Request.Context(), event)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "ok", result)
}

// StripePayment receives the payment_intent.* stream.
func (h *WebhookHandler) StripePayment(c *gin.Context) {
	event, ok := h.readStripeEvent(c)
	if !ok {
		return
	}

	result, err := h.stripeService.HandlePaymentIntentEvent(c.Request.Context(), event)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "ok", result)
}

func (h *WebhookHandler) readStripeEvent(c *gin.Context) (event stripeapi.Event, ok bool) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "failed to read payload", err)
		return event, false
	}

	secret := ""
	if s, err := h.settings.Stripe(); err == nil {
		secret = s.WebhookSecret
	}

	event, err = stripegw.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), secret)
	if err != nil {
		h.logger.Warn("stripe webhook rejected", zap.Error(err))
		response.Error(c, http.StatusBadRequest, "invalid webhook payload", err)
		return event, false
	}
	return event, true
}

func (h *WebhookHandler) writeError(c *gin.Context, err error) {
	switch {
	case xerrors.Is(err, xerrors.ErrNotFound):
		response.NotFound(c, "not found")
	case xerrors.Is(err, xerrors.ErrBadRequest), xerrors.Is(err, xerrors.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, err.Error(), err)
	default:
		response.Error(c, http.StatusInternalServerError, "failed to process webhook", err)
	}
}
