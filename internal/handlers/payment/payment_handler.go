// internal/handlers/payment/payment_handler.go
package payment

import (
	"net/http"

	"fanpay-service/internal/domain/transaction"
	"fanpay-service/internal/middleware"
	xerrors "fanpay-service/internal/pkg/errors"
	"fanpay-service/internal/pkg/response"
	service "fanpay-service/internal/service/payment"

	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	paymentService *service.Service
}

func NewPaymentHandler(paymentService *service.Service) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// PurchaseTokens starts a one-off token purchase
func (h *PaymentHandler) PurchaseTokens(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	var req transaction.PurchaseTokensInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.paymentService.PurchaseTokens(c.Request.Context(), userID, &req)
	if err != nil {
		writeServiceError(c, err, "failed to start purchase")
		return
	}

	response.Success(c, http.StatusCreated, "purchase created", result)
}

// Subscribe starts a performer subscription
func (h *PaymentHandler) Subscribe(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	var req transaction.SubscribeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.paymentService.SubscribePerformer(c.Request.Context(), userID, &req)
	if err != nil {
		writeServiceError(c, err, "failed to start subscription")
		return
	}

	response.Success(c, http.StatusCreated, "subscription created", result)
}

// CancelSubscription cancels a standing subscription
func (h *PaymentHandler) CancelSubscription(c *gin.Context) {
	userID := middleware.MustGetUserID(c)
	subscriptionID := c.Param("id")

	sub, err := h.paymentService.CancelSubscription(c.Request.Context(), userID, middleware.IsAdmin(c), subscriptionID)
	if err != nil {
		writeServiceError(c, err, "failed to cancel subscription")
		return
	}

	response.Success(c, http.StatusOK, "subscription cancelled", sub)
}

// writeServiceError maps service errors onto HTTP responses. Gateway
// rejections surface with the processor's own message.
func writeServiceError(c *gin.Context, err error, fallback string) {
	if gwErr, ok := xerrors.AsGatewayError(err); ok {
		response.Error(c, http.StatusBadGateway, gwErr.Message, err)
		return
	}

	switch {
	case xerrors.Is(err, xerrors.ErrNotFound):
		response.NotFound(c, "not found")
	case xerrors.Is(err, xerrors.ErrForbidden):
		response.Forbidden(c, "forbidden")
	case xerrors.Is(err, xerrors.ErrUnauthorized):
		response.Unauthorized(c, "unauthorized")
	case xerrors.Is(err, xerrors.ErrInvalidInput), xerrors.Is(err, xerrors.ErrBadRequest):
		response.Error(c, http.StatusBadRequest, err.Error(), err)
	case xerrors.Is(err, xerrors.ErrConflict):
		response.Error(c, http.StatusConflict, err.Error(), err)
	case xerrors.Is(err, xerrors.ErrGatewayNotConfigured):
		response.Error(c, http.StatusServiceUnavailable, "payment gateway not configured", err)
	default:
		response.Error(c, http.StatusInternalServerError, fallback, err)
	}
}
