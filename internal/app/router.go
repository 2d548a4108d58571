// internal/app/router.go
package app

import (
	onboardingHandler "ledgerly-service/internal/handlers/onboarding"
	planHandler "ledgerly-service/internal/handlers/plans"
	quotaHandler "ledgerly-service/internal/handlers/quota"
	subscriptionHandler "ledgerly-service/internal/handlers/subscription"
	webhookHandler "ledgerly-service/internal/handlers/webhook"
	"ledgerly-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handlers struct {
	PlanHandler         *planHandler.PlanHandler
	SubscriptionHandler *subscriptionHandler.SubscriptionHandler
	WebhookHandler      *webhookHandler.WebhookHandler
	QuotaHandler        *quotaHandler.QuotaHandler
	OnboardingHandler   *onboardingHandler.OnboardingHandler
	AuthMiddleware      *middleware.AuthMiddleware
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== Provider Webhooks ====================
	// Authenticated by signature verification, not by bearer token.
	api.POST("/webhooks/paypal", h.WebhookHandler.HandlePayPal)

	// ==================== Plan Catalog ====================
	plans := api.Group("/plans")
	plans.Use(h.AuthMiddleware.Auth())
	{
		plans.GET("", h.PlanHandler.ListPlans)
		plans.GET("/:code", h.PlanHandler.GetPlan)
		plans.POST("", h.AuthMiddleware.RequireRole("admin", "super_admin"), h.PlanHandler.CreatePlan)
		plans.PUT("/:code", h.AuthMiddleware.RequireRole("admin", "super_admin"), h.PlanHandler.UpdatePlan)
	}

	// ==================== Subscription ====================
	sub := api.Group("/subscription")
	sub.Use(h.AuthMiddleware.Auth())
	{
		sub.GET("", h.SubscriptionHandler.GetSubscription)
		sub.POST("", h.SubscriptionHandler.Subscribe)
		sub.POST("/cancel", h.SubscriptionHandler.CancelSubscription)
		sub.POST("/switch-free", h.SubscriptionHandler.SwitchToFree)
		sub.POST("/change-plan", h.SubscriptionHandler.ChangePlan)
		sub.GET("/quota/:kind", h.QuotaHandler.CheckQuota)
	}

	// ==================== Onboarding ====================
	onboarding := api.Group("/onboarding")
	onboarding.Use(h.AuthMiddleware.Auth())
	{
		onboarding.POST("", h.OnboardingHandler.ProvisionDefaults)
	}
}
