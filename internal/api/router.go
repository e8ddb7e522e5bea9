package api

import (
	"github.com/flexprice/collections/internal/api/cron"
	v1 "github.com/flexprice/collections/internal/api/v1"
	"github.com/flexprice/collections/internal/config"
	"github.com/flexprice/collections/internal/logger"
	"github.com/flexprice/collections/internal/rest/middleware"
	"github.com/flexprice/collections/internal/sentry"
	"github.com/flexprice/collections/internal/types"
	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Health    *v1.HealthHandler
	Billing   *v1.BillingHandler
	Mandate   *v1.MandateHandler
	BankBatch *v1.BankBatchHandler
	Fiscal    *v1.FiscalHandler
	Fallback  *v1.FallbackHandler
	Webhook   *v1.WebhookHandler
	Workflow  *v1.WorkflowHandler
	Cron      *cron.CollectionsCronHandler
}

func NewRouter(handlers Handlers, cfg *config.Configuration, log *logger.Logger, sentryService *sentry.Service) *gin.Engine {
	if cfg.Deployment.Mode != types.ModeLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.SentryMiddleware(cfg),
		middleware.RequestContextMiddleware(),
		middleware.SentryRequestTagsMiddleware,
		middleware.LoggingMiddleware(log),
		middleware.ErrorHandler(log, sentryService, cfg.Deployment.Mode == types.ModeLocal),
	)

	router.GET("/health", handlers.Health.Health)

	v1Router := router.Group("/v1")
	{
		billing := v1Router.Group("/billing")
		billing.POST("/anchor-runs", handlers.Billing.RunAnchorCycles)

		mandates := v1Router.Group("/mandates")
		mandates.GET("/:id", handlers.Mandate.GetMandate)
		mandates.POST("/:id/transitions", handlers.Mandate.TransitionMandate)

		bankBatches := v1Router.Group("/bank-batches")
		bankBatches.POST("/outbound", handlers.BankBatch.BuildPresentment)
		bankBatches.POST("/inbound", handlers.BankBatch.ReconcileInbound)

		charges := v1Router.Group("/charges")
		charges.POST("/:id/fiscal-documents", handlers.Fiscal.IssueFiscalDocument)
		charges.POST("/:id/fallback-intents", handlers.Fallback.CreateIntent)

		intents := v1Router.Group("/fallback-intents")
		intents.GET("/:id", handlers.Fallback.GetIntent)
		intents.POST("/:id/refresh", handlers.Fallback.RefreshIntent)
		intents.POST("/:id/cancel", handlers.Fallback.CancelIntent)

		webhooks := v1Router.Group("/webhooks")
		webhooks.POST("/qrpay", handlers.Webhook.HandleQRPayWebhook)

		if handlers.Workflow != nil {
			v1Router.POST("/workflows/:workflow_type/runs", handlers.Workflow.StartWorkflow)
		}

		cronRoutes := v1Router.Group("/cron")
		cronRoutes.POST("/fallback/poll", handlers.Cron.PollFallbackIntents)
		cronRoutes.POST("/fiscal/autorun", handlers.Cron.AutorunFiscal)
	}

	return router
}
