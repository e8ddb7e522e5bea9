package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/flexprice/collections/internal/api"
	"github.com/flexprice/collections/internal/api/cron"
	v1 "github.com/flexprice/collections/internal/api/v1"
	"github.com/flexprice/collections/internal/bankfile"
	"github.com/flexprice/collections/internal/cache"
	"github.com/flexprice/collections/internal/config"
	"github.com/flexprice/collections/internal/fiscal"
	"github.com/flexprice/collections/internal/integration/qrpay"
	"github.com/flexprice/collections/internal/integration/qrpay/webhook"
	"github.com/flexprice/collections/internal/logger"
	"github.com/flexprice/collections/internal/postgres"
	"github.com/flexprice/collections/internal/publisher"
	pgrepo "github.com/flexprice/collections/internal/repository/pg"
	"github.com/flexprice/collections/internal/sentry"
	"github.com/flexprice/collections/internal/service"
	"github.com/flexprice/collections/internal/storage"
	"github.com/flexprice/collections/internal/temporal/activities"
	temporalclient "github.com/flexprice/collections/internal/temporal/client"
	temporalservice "github.com/flexprice/collections/internal/temporal/service"
	temporalworker "github.com/flexprice/collections/internal/temporal/worker"
	"github.com/flexprice/collections/internal/types"
	"github.com/gin-gonic/gin"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		fx.Provide(
			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Sentry
			provideSentry,

			// Postgres
			postgres.NewDB,
			postgres.NewClient,

			// Repositories
			pgrepo.NewSubscriptionRepository,
			pgrepo.NewPlanRepository,
			pgrepo.NewFXRateRepository,
			pgrepo.NewBillingCycleRepository,
			pgrepo.NewChargeRepository,
			pgrepo.NewAttemptRepository,
			pgrepo.NewMandateRepository,
			pgrepo.NewFiscalDocumentRepository,
			pgrepo.NewFallbackIntentRepository,
			pgrepo.NewBillingEventRepository,
			pgrepo.NewBankBatchRepository,

			// Collaborators
			publisher.NewEventPublisher,
			provideFileStore,
			provideFXCache,
			provideBankRegistry,
			fiscal.NewIssuer,
			qrpay.NewProvider,

			// Services
			service.NewServiceParams,
			service.NewAnchorCycleService,
			service.NewMandateService,
			service.NewBankBatchService,
			service.NewFiscalService,
			service.NewFallbackService,

			// Temporal
			temporalclient.NewTemporalClient,
			temporalservice.NewTemporalService,
			activities.NewCollectionsActivities,
			temporalworker.NewCollectionsWorker,

			// API
			provideHandlers,
			api.NewRouter,
		),
		fx.Invoke(startServer),
	)

	app.Run()
}

func provideFileStore(cfg *config.Configuration, log *logger.Logger) (storage.FileStore, error) {
	if !cfg.S3.Enabled {
		log.Warnw("s3 archive disabled, bank files are kept in memory")
		return storage.NewMemoryStore(), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	store, err := storage.NewS3Store(ctx, cfg.S3, log)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func provideSentry(lc fx.Lifecycle, cfg *config.Configuration, log *logger.Logger) *sentry.Service {
	svc := sentry.NewSentryService(cfg, log)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			svc.Flush(2 * time.Second)
			return nil
		},
	})
	return svc
}

func provideFXCache(cfg *config.Configuration) cache.Cache {
	return cache.NewInMemoryCache(cfg.Billing.FXCacheTTL)
}

func provideBankRegistry(cfg *config.Configuration) *bankfile.Registry {
	return bankfile.NewDefaultRegistry(bankfile.DefaultOfficialLayout(cfg.Bank.FilePrefix))
}

func provideHandlers(
	cfg *config.Configuration,
	log *logger.Logger,
	anchorCycleService service.AnchorCycleService,
	mandateService service.MandateService,
	bankBatchService service.BankBatchService,
	fiscalService service.FiscalService,
	fallbackService service.FallbackService,
	temporalService temporalservice.TemporalService,
) api.Handlers {
	return api.Handlers{
		Health:    v1.NewHealthHandler(cfg),
		Billing:   v1.NewBillingHandler(anchorCycleService, log),
		Mandate:   v1.NewMandateHandler(mandateService, log),
		BankBatch: v1.NewBankBatchHandler(bankBatchService, log),
		Fiscal:    v1.NewFiscalHandler(fiscalService, log),
		Fallback:  v1.NewFallbackHandler(fallbackService, log),
		Webhook:   v1.NewWebhookHandler(webhook.NewHandler(cfg.Fallback.WebhookSecret, fallbackService, log), log),
		Workflow:  v1.NewWorkflowHandler(temporalService, log),
		Cron:      cron.NewCollectionsCronHandler(fallbackService, fiscalService, log),
	}
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	log *logger.Logger,
	db *sql.DB,
	router *gin.Engine,
	temporalClient client.Client,
	temporalService temporalservice.TemporalService,
	collectionsWorker worker.Worker,
) {
	mode := cfg.Deployment.Mode
	switch mode {
	case types.ModeLocal:
		startAPIServer(lc, cfg, log, router)
		startTemporalWorker(lc, log, collectionsWorker, temporalService)
	case types.ModeAPI:
		startAPIServer(lc, cfg, log, router)
	case types.ModeWorker:
		startTemporalWorker(lc, log, collectionsWorker, temporalService)
	default:
		log.Fatalf("unknown deployment mode %q", mode)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Infow("closing temporal client")
			temporalClient.Close()
			return db.Close()
		},
	})
}

func startAPIServer(lc fx.Lifecycle, cfg *config.Configuration, log *logger.Logger, router *gin.Engine) {
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting API server", "address", cfg.Server.Address, "mode", cfg.Deployment.Mode)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatalf("failed to start API server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("shutting down API server")
			return srv.Shutdown(ctx)
		},
	})
}

func startTemporalWorker(lc fx.Lifecycle, log *logger.Logger, w worker.Worker, temporalService temporalservice.TemporalService) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := temporalService.EnsureSchedules(ctx); err != nil {
				return err
			}
			log.Infow("starting temporal worker")
			return w.Start()
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping temporal worker")
			w.Stop()
			return nil
		},
	})
}
