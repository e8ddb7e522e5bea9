package service

import (
	"github.com/flexprice/collections/internal/bankfile"
	"github.com/flexprice/collections/internal/cache"
	"github.com/flexprice/collections/internal/config"
	"github.com/flexprice/collections/internal/domain/attempt"
	"github.com/flexprice/collections/internal/domain/bankbatch"
	"github.com/flexprice/collections/internal/domain/billingcycle"
	"github.com/flexprice/collections/internal/domain/billingevent"
	"github.com/flexprice/collections/internal/domain/charge"
	"github.com/flexprice/collections/internal/domain/fallback"
	fiscaldoc "github.com/flexprice/collections/internal/domain/fiscal"
	"github.com/flexprice/collections/internal/domain/fxrate"
	"github.com/flexprice/collections/internal/domain/mandate"
	"github.com/flexprice/collections/internal/domain/plan"
	"github.com/flexprice/collections/internal/domain/subscription"
	"github.com/flexprice/collections/internal/fiscal"
	"github.com/flexprice/collections/internal/integration/qrpay"
	"github.com/flexprice/collections/internal/logger"
	"github.com/flexprice/collections/internal/postgres"
	"github.com/flexprice/collections/internal/publisher"
	"github.com/flexprice/collections/internal/sentry"
	"github.com/flexprice/collections/internal/storage"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient

	// Repositories
	SubRepo       subscription.Repository
	PlanRepo      plan.Repository
	FXRateRepo    fxrate.Repository
	CycleRepo     billingcycle.Repository
	ChargeRepo    charge.Repository
	AttemptRepo   attempt.Repository
	MandateRepo   mandate.Repository
	FiscalRepo    fiscaldoc.Repository
	FallbackRepo  fallback.Repository
	EventRepo     billingevent.Repository
	BankBatchRepo bankbatch.Repository

	// Collaborators
	EventPublisher   publisher.EventPublisher
	BankRegistry     *bankfile.Registry
	FileStore        storage.FileStore
	FiscalIssuer     fiscal.Issuer
	FallbackProvider qrpay.Provider
	FXCache          cache.Cache
	// Sentry receives failures that are logged and skipped instead of returned
	Sentry *sentry.Service
}

// NewServiceParams creates a new ServiceParams instance
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	subRepo subscription.Repository,
	planRepo plan.Repository,
	fxRateRepo fxrate.Repository,
	cycleRepo billingcycle.Repository,
	chargeRepo charge.Repository,
	attemptRepo attempt.Repository,
	mandateRepo mandate.Repository,
	fiscalRepo fiscaldoc.Repository,
	fallbackRepo fallback.Repository,
	eventRepo billingevent.Repository,
	bankBatchRepo bankbatch.Repository,
	eventPublisher publisher.EventPublisher,
	bankRegistry *bankfile.Registry,
	fileStore storage.FileStore,
	fiscalIssuer fiscal.Issuer,
	fallbackProvider qrpay.Provider,
	fxCache cache.Cache,
	sentryService *sentry.Service,
) ServiceParams {
	return ServiceParams{
		Logger:           logger,
		Config:           config,
		DB:               db,
		SubRepo:          subRepo,
		PlanRepo:         planRepo,
		FXRateRepo:       fxRateRepo,
		CycleRepo:        cycleRepo,
		ChargeRepo:       chargeRepo,
		AttemptRepo:      attemptRepo,
		MandateRepo:      mandateRepo,
		FiscalRepo:       fiscalRepo,
		FallbackRepo:     fallbackRepo,
		EventRepo:        eventRepo,
		BankBatchRepo:    bankBatchRepo,
		EventPublisher:   eventPublisher,
		BankRegistry:     bankRegistry,
		FileStore:        fileStore,
		FiscalIssuer:     fiscalIssuer,
		FallbackProvider: fallbackProvider,
		FXCache:          fxCache,
		Sentry:           sentryService,
	}
}
