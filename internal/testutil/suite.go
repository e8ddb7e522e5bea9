package testutil

import (
	"context"
	"time"

	"github.com/flexprice/collections/internal/bankfile"
	"github.com/flexprice/collections/internal/cache"
	"github.com/flexprice/collections/internal/config"
	"github.com/flexprice/collections/internal/fiscal"
	"github.com/flexprice/collections/internal/integration/qrpay"
	"github.com/flexprice/collections/internal/logger"
	"github.com/flexprice/collections/internal/storage"
	"github.com/flexprice/collections/internal/types"
	"github.com/stretchr/testify/suite"
)

// Stores holds all in-memory repositories used by service tests
type Stores struct {
	SubscriptionRepo *InMemorySubscriptionStore
	PlanRepo         *InMemoryPlanStore
	FXRateRepo       *InMemoryFXRateStore
	CycleRepo        *InMemoryBillingCycleStore
	ChargeRepo       *InMemoryChargeStore
	AttemptRepo      *InMemoryAttemptStore
	MandateRepo      *InMemoryMandateStore
	FiscalRepo       *InMemoryFiscalDocumentStore
	FallbackRepo     *InMemoryFallbackIntentStore
	EventRepo        *InMemoryBillingEventStore
	BankBatchRepo    *InMemoryBankBatchStore
}

// BaseServiceTestSuite wires in-memory stores and mock collaborators for service tests
type BaseServiceTestSuite struct {
	suite.Suite
	ctx       context.Context
	stores    Stores
	db        *MockPostgresClient
	logger    *logger.Logger
	config    *config.Configuration
	publisher *InMemoryEventPublisher
	registry  *bankfile.Registry
	fileStore *storage.MemoryStore
	issuer    *fiscal.MockIssuer
	provider  *qrpay.MockProvider
	fxCache   *cache.InMemoryCache
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	s.logger = logger.NewNopLogger()
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = SetupContext()
	s.config = config.GetDefaultConfig()
	s.db = NewMockPostgresClient()
	s.publisher = NewInMemoryEventPublisher()
	s.registry = bankfile.NewDefaultRegistry(bankfile.DefaultOfficialLayout(s.config.Bank.FilePrefix))
	s.fileStore = storage.NewMemoryStore()
	s.issuer = fiscal.NewMockIssuer()
	s.provider = qrpay.NewMockProvider()
	s.fxCache = cache.NewInMemoryCache(s.config.Billing.FXCacheTTL)
	s.setupStores()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
}

func (s *BaseServiceTestSuite) setupStores() {
	s.stores = Stores{
		SubscriptionRepo: NewInMemorySubscriptionStore(),
		PlanRepo:         NewInMemoryPlanStore(),
		FXRateRepo:       NewInMemoryFXRateStore(),
		CycleRepo:        NewInMemoryBillingCycleStore(),
		ChargeRepo:       NewInMemoryChargeStore(),
		AttemptRepo:      NewInMemoryAttemptStore(),
		MandateRepo:      NewInMemoryMandateStore(),
		FiscalRepo:       NewInMemoryFiscalDocumentStore(),
		FallbackRepo:     NewInMemoryFallbackIntentStore(),
		EventRepo:        NewInMemoryBillingEventStore(),
		BankBatchRepo:    NewInMemoryBankBatchStore(),
	}
	s.stores.ChargeRepo.SetFiscalIssued(s.stores.FiscalRepo.HasIssued)
}

func (s *BaseServiceTestSuite) clearStores() {
	s.publisher.Clear()
	s.fxCache.Flush(s.ctx)
}

// SetupContext returns the context service tests run with
func SetupContext() context.Context {
	ctx := context.Background()
	ctx = types.SetRequestID(ctx, types.GenerateUUID())
	ctx = types.SetUserID(ctx, "test_user")
	return ctx
}

func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

func (s *BaseServiceTestSuite) GetDB() *MockPostgresClient {
	return s.db
}

func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

func (s *BaseServiceTestSuite) GetPublisher() *InMemoryEventPublisher {
	return s.publisher
}

func (s *BaseServiceTestSuite) GetBankRegistry() *bankfile.Registry {
	return s.registry
}

func (s *BaseServiceTestSuite) GetFileStore() *storage.MemoryStore {
	return s.fileStore
}

func (s *BaseServiceTestSuite) GetFiscalIssuer() *fiscal.MockIssuer {
	return s.issuer
}

func (s *BaseServiceTestSuite) GetFallbackProvider() *qrpay.MockProvider {
	return s.provider
}

func (s *BaseServiceTestSuite) GetFXCache() *cache.InMemoryCache {
	return s.fxCache
}

// GetNow returns a fixed reference time for tests
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)
}
