// internal/app/server.go
package app

import (
	"context"
	"fmt"
	"log"

	"fanpay-service/internal/config"
	"fanpay-service/internal/db"
	"fanpay-service/internal/events"
	"fanpay-service/internal/events/listeners"
	ccbillGateway "fanpay-service/internal/gateway/ccbill"
	stripeGateway "fanpay-service/internal/gateway/stripe"
	paymentHandler "fanpay-service/internal/handlers/payment"
	transactionHandler "fanpay-service/internal/handlers/transaction"
	webhookHandler "fanpay-service/internal/handlers/webhook"
	wsHandler "fanpay-service/internal/handlers/websocket"
	"fanpay-service/internal/middleware"
	"fanpay-service/internal/pkg/jwt"
	"fanpay-service/internal/repository/postgres"
	couponService "fanpay-service/internal/service/coupon"
	"fanpay-service/internal/service/email"
	paymentService "fanpay-service/internal/service/payment"
	webhookService "fanpay-service/internal/service/webhook"
	"fanpay-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
}

func NewServer() *Server {
	cfg := config.Load()
	engine := gin.New()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	ctx := context.Background()

	// ----- Logger -----
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()
	s.logger = logger

	// ----- PostgreSQL -----
	pool, err := postgres.Connect(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	// ----- Redis -----
	redisCfg := db.RedisConfig{
		ClusterMode: false,
		Addresses:   []string{s.cfg.RedisAddr},
		Password:    s.cfg.RedisPass,
		DB:          0,
		PoolSize:    10,
	}
	redisClient, err := db.NewRedisClient(redisCfg)
	if err != nil {
		log.Fatalf("[REDIS] Failed to connect to Redis: %v", err)
	}

	// ----- Payment settings -----
	settings := config.LoadSettings()

	// ----- JWT Verifier -----
	verifier, err := jwt.LoadVerifier(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to load JWT verifier: %w", err)
	}

	// ----- Email -----
	emailSender := email.NewEmailSender(
		s.cfg.SMTPHost,
		s.cfg.SMTPPort,
		s.cfg.SMTPUser,
		s.cfg.SMTPPass,
		s.cfg.SMTPFromName,
		s.cfg.SMTPSecure,
	)

	// ----- Repositories -----
	txnRepo := postgres.NewTransactionRepository(pool)
	subRepo := postgres.NewSubscriptionRepository(pool)
	couponRepo := postgres.NewCouponRepository(pool)
	billingRepo := postgres.NewBillingRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	performerRepo := postgres.NewPerformerRepository(pool)
	earningRepo := postgres.NewEarningRepository(pool)

	// ----- WebSocket Hub -----
	hub := websocket.NewHub(verifier)
	go hub.Run(ctx)

	// ----- Event bus and listeners -----
	bus := events.NewBus(logger)

	// ----- Gateways -----
	var cardGateway paymentService.CardGateway
	if stripeSettings, err := settings.Stripe(); err == nil {
		cardGateway = stripeGateway.NewClient(stripeSettings, billingRepo, s.cfg.Environment, logger)
	} else {
		logger.Warn("card gateway not configured", zap.Error(err))
	}

	var recurringGateway paymentService.RecurringGateway
	var ccbillAllowedIPs []string
	if ccbillSettings, err := settings.CCBill(); err == nil {
		recurringGateway = ccbillGateway.NewClient(ccbillSettings, logger)
		ccbillAllowedIPs = ccbillSettings.WebhookAllowedIPs
	} else {
		logger.Warn("recurring gateway not configured", zap.Error(err))
	}

	// ----- Services -----
	couponSvc := couponService.NewService(couponRepo, logger)

	paymentSvc := paymentService.NewService(
		txnRepo,
		subRepo,
		userRepo,
		performerRepo,
		couponSvc,
		cardGateway,
		recurringGateway,
		hub,
		bus,
		settings,
		s.cfg.BaseURL,
		logger,
	)

	dedup := webhookService.NewRedisDeduper(redisClient, logger)
	ccbillWebhookSvc := webhookService.NewCCBillService(paymentSvc, txnRepo, subRepo, dedup, logger)
	stripeWebhookSvc := webhookService.NewStripeService(paymentSvc, txnRepo, subRepo, hub, dedup, s.cfg.BaseURL, logger)

	listeners.Register(bus, listeners.Deps{
		Users:      userRepo,
		Performers: performerRepo,
		Coupons:    couponSvc,
		Earnings:   earningRepo,
		Mailer:     emailSender,
		Settings:   settings,
		Logger:     logger,
	})

	// ----- Handlers -----
	handlers := &Handlers{
		PaymentHandler:     paymentHandler.NewPaymentHandler(paymentSvc),
		TransactionHandler: transactionHandler.NewTransactionHandler(paymentSvc),
		WebhookHandler:     webhookHandler.NewWebhookHandler(ccbillWebhookSvc, stripeWebhookSvc, settings, logger),
		WSHandler:          wsHandler.NewWebSocketHandler(hub, logger),
		AuthMiddleware:     middleware.NewAuthMiddleware(verifier),
		CCBillAllowedIPs:   ccbillAllowedIPs,
	}

	// ----- Middleware and routes -----
	s.engine.Use(middleware.RecoveryMiddleware(logger))
	s.engine.Use(middleware.LoggingMiddleware(logger))
	s.engine.Use(middleware.CORSMiddleware())

	SetupRouter(s.engine, logger, handlers)

	logger.Info("server starting", zap.String("addr", s.cfg.HTTPAddr))
	return s.engine.Run(s.cfg.HTTPAddr)
}
