// internal/app/router.go
package app

import (
	paymentHandler "fanpay-service/internal/handlers/payment"
	transactionHandler "fanpay-service/internal/handlers/transaction"
	webhookHandler "fanpay-service/internal/handlers/webhook"
	wsHandler "fanpay-service/internal/handlers/websocket"
	"fanpay-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handlers struct {
	PaymentHandler     *paymentHandler.PaymentHandler
	TransactionHandler *transactionHandler.TransactionHandler
	WebhookHandler     *webhookHandler.WebhookHandler
	WSHandler          *wsHandler.WebSocketHandler
	AuthMiddleware     *middleware.AuthMiddleware
	CCBillAllowedIPs   []string
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== WebSocket ====================
	r.GET("/ws", h.WSHandler.HandleConnection)

	// ==================== Payments ====================
	payments := api.Group("/payment")
	payments.Use(h.AuthMiddleware.Auth())
	{
		payments.POST("/purchase-tokens", h.PaymentHandler.PurchaseTokens)
		payments.POST("/subscribe", h.PaymentHandler.Subscribe)
		payments.POST("/subscriptions/:id/cancel", h.PaymentHandler.CancelSubscription)
	}

	// ==================== Transactions ====================
	transactions := api.Group("/transactions")
	transactions.Use(h.AuthMiddleware.Auth())
	{
		transactions.GET("", h.TransactionHandler.ListMine)
		transactions.GET("/:id", h.TransactionHandler.Get)
	}

	// ==================== Admin ====================
	admin := api.Group("/admin")
	admin.Use(h.AuthMiddleware.Auth(), h.AuthMiddleware.RequireAdmin())
	{
		admin.GET("/transactions", h.TransactionHandler.AdminSearch)
	}

	// ==================== Webhooks ====================
	webhooks := api.Group("/webhooks")
	{
		webhooks.POST("/ccbill", middleware.WebhookIPAllowList(h.CCBillAllowedIPs, logger), h.WebhookHandler.CCBill)
		webhooks.GET("/ccbill", middleware.WebhookIPAllowList(h.CCBillAllowedIPs, logger), h.WebhookHandler.CCBill)
		webhooks.POST("/stripe/subscription", h.WebhookHandler.StripeSubscription)
		webhooks.POST("/stripe/payment", h.WebhookHandler.StripePayment)
	}
}
