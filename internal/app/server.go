// internal/app/server.go
package app

import (
	"fmt"
	"log"

	"ledgerly-service/internal/config"
	"ledgerly-service/internal/db"
	onboardingHandler "ledgerly-service/internal/handlers/onboarding"
	planHandler "ledgerly-service/internal/handlers/plans"
	quotaHandler "ledgerly-service/internal/handlers/quota"
	subscriptionHandler "ledgerly-service/internal/handlers/subscription"
	webhookHandler "ledgerly-service/internal/handlers/webhook"
	"ledgerly-service/internal/middleware"
	"ledgerly-service/internal/paypal"
	"ledgerly-service/internal/pkg/dedup"
	"ledgerly-service/internal/repository/postgres"
	onboardingUsecase "ledgerly-service/internal/service/onboarding"
	planUsecase "ledgerly-service/internal/service/plans"
	quotaUsecase "ledgerly-service/internal/service/quota"
	subscriptionUsecase "ledgerly-service/internal/service/subscription"
	webhookUsecase "ledgerly-service/internal/service/webhook"

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
	engine := gin.Default()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	// ----- PostgreSQL -----
	pool, err := db.ConnectDB(s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	log.Println("[POSTGRES] connected successfully")

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		DB:       0,
		PoolSize: 10,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Println("[REDIS] connected successfully")

	// ----- Logger -----
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	s.logger = logger

	if !s.cfg.PayPal.VerifyWebhooks {
		logger.Warn("PAYPAL_VERIFY_WEBHOOKS is disabled; inbound webhooks are NOT cryptographically verified")
	}

	// ----- Provider Gateway -----
	paypalClient := paypal.NewClient(paypal.Config{
		ClientID:       s.cfg.PayPal.ClientID,
		ClientSecret:   s.cfg.PayPal.ClientSecret,
		APIBase:        s.cfg.PayPal.APIBase,
		WebhookID:      s.cfg.PayPal.WebhookID,
		VerifyWebhooks: s.cfg.PayPal.VerifyWebhooks,
	}, logger)

	// ----- Repositories -----
	dbWrapper := postgres.NewDB(pool)
	planRepo := postgres.NewPlanRepository(pool)
	subscriptionRepo := postgres.NewSubscriptionRepository(pool)
	usageRepo := postgres.NewUsageRepository(pool)
	onboardingRepo := postgres.NewOnboardingRepository(pool)

	// ----- Services (Usecases) -----
	dedupStore := dedup.NewRedisStore(redisClient)
	planService := planUsecase.NewPlanService(planRepo, logger)
	subscriptionService := subscriptionUsecase.NewSubscriptionService(
		subscriptionRepo,
		planRepo,
		paypalClient,
		s.cfg.AppBaseURL,
		logger,
	)
	reconciler := webhookUsecase.NewReconciler(
		subscriptionRepo,
		planRepo,
		paypalClient,
		dedupStore,
		logger,
	)
	quotaGuard := quotaUsecase.NewGuard(subscriptionRepo, planRepo, usageRepo, logger)
	onboardingService := onboardingUsecase.NewOnboardingService(
		onboardingRepo,
		subscriptionRepo,
		planRepo,
		dbWrapper,
		logger,
	)

	// ----- Handlers -----
	planHandlerInst := planHandler.NewPlanHandler(planService)
	subscriptionHandlerInst := subscriptionHandler.NewSubscriptionHandler(subscriptionService)
	webhookHandlerInst := webhookHandler.NewWebhookHandler(reconciler, logger)
	quotaHandlerInst := quotaHandler.NewQuotaHandler(quotaGuard)
	onboardingHandlerInst := onboardingHandler.NewOnboardingHandler(onboardingService)

	// ----- Middlewares -----
	authMiddleware := middleware.NewAuthMiddleware(s.cfg.JWTSecret)

	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(),
	)

	// ----- Router -----
	handlers := &Handlers{
		PlanHandler:         planHandlerInst,
		SubscriptionHandler: subscriptionHandlerInst,
		WebhookHandler:      webhookHandlerInst,
		QuotaHandler:        quotaHandlerInst,
		OnboardingHandler:   onboardingHandlerInst,
		AuthMiddleware:      authMiddleware,
	}
	SetupRouter(s.engine, logger, handlers)

	// ----- Start HTTP -----
	log.Printf("server running on %s", s.cfg.HTTPAddr)
	return s.engine.Run(s.cfg.HTTPAddr)
}
