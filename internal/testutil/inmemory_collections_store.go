package testutil

import (
	"context"

	"github.com/flexprice/collections/internal/domain/bankbatch"
	"github.com/flexprice/collections/internal/domain/billingevent"
	"github.com/flexprice/collections/internal/domain/fallback"
	"github.com/flexprice/collections/internal/domain/fiscal"
	"github.com/flexprice/collections/internal/domain/mandate"
	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/types"
	"github.com/samber/lo"
)

// InMemoryMandateStore implements mandate.Repository
type InMemoryMandateStore struct {
	*InMemoryStore[*mandate.Mandate]
}

func NewInMemoryMandateStore() *InMemoryMandateStore {
	return &InMemoryMandateStore{InMemoryStore: NewInMemoryStore[*mandate.Mandate]()}
}

func copyMandate(m *mandate.Mandate) *mandate.Mandate {
	out := *m
	return &out
}

func (s *InMemoryMandateStore) Create(ctx context.Context, m *mandate.Mandate) error {
	return s.InMemoryStore.Create(ctx, m.ID, copyMandate(m))
}

func (s *InMemoryMandateStore) Get(ctx context.Context, id string) (*mandate.Mandate, error) {
	m, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Mandate not found").
			WithReportableDetails(map[string]interface{}{"mandate_id": id}).
			Mark(ierr.ErrNotFound)
	}
	return copyMandate(m), nil
}

func (s *InMemoryMandateStore) GetForUpdate(ctx context.Context, id string) (*mandate.Mandate, error) {
	return s.Get(ctx, id)
}

func (s *InMemoryMandateStore) GetByPaymentMethod(ctx context.Context, paymentMethodID string) (*mandate.Mandate, error) {
	m, ok := s.Find(ctx, func(m *mandate.Mandate) bool { return m.PaymentMethodID == paymentMethodID }, nil)
	if !ok {
		return nil, ierr.NewError("mandate not found").Mark(ierr.ErrNotFound)
	}
	return copyMandate(m), nil
}

func (s *InMemoryMandateStore) Update(ctx context.Context, m *mandate.Mandate) error {
	return s.InMemoryStore.Update(ctx, m.ID, copyMandate(m))
}

// InMemoryFiscalDocumentStore implements fiscal.Repository
type InMemoryFiscalDocumentStore struct {
	*InMemoryStore[*fiscal.Document]
}

func NewInMemoryFiscalDocumentStore() *InMemoryFiscalDocumentStore {
	return &InMemoryFiscalDocumentStore{InMemoryStore: NewInMemoryStore[*fiscal.Document]()}
}

func copyFiscalDocument(d *fiscal.Document) *fiscal.Document {
	out := *d
	if d.Payload != nil {
		out.Payload = lo.Assign(map[string]interface{}{}, d.Payload)
	}
	return &out
}

func (s *InMemoryFiscalDocumentStore) CreateIfAbsent(ctx context.Context, d *fiscal.Document) (*fiscal.Document, bool, error) {
	stored, created := s.InMemoryStore.CreateIfAbsent(ctx, d.ID, copyFiscalDocument(d), func(existing *fiscal.Document) bool {
		return existing.ChargeID == d.ChargeID && existing.DocumentType == d.DocumentType
	})
	return copyFiscalDocument(stored), created, nil
}

func (s *InMemoryFiscalDocumentStore) GetByCharge(ctx context.Context, chargeID string, documentType types.FiscalDocumentType) (*fiscal.Document, error) {
	d, ok := s.Find(ctx, func(d *fiscal.Document) bool {
		return d.ChargeID == chargeID && d.DocumentType == documentType
	}, nil)
	if !ok {
		return nil, ierr.NewError("fiscal document not found").Mark(ierr.ErrNotFound)
	}
	return copyFiscalDocument(d), nil
}

func (s *InMemoryFiscalDocumentStore) GetByChargeForUpdate(ctx context.Context, chargeID string, documentType types.FiscalDocumentType) (*fiscal.Document, error) {
	return s.GetByCharge(ctx, chargeID, documentType)
}

func (s *InMemoryFiscalDocumentStore) Update(ctx context.Context, d *fiscal.Document) error {
	return s.InMemoryStore.Update(ctx, d.ID, copyFiscalDocument(d))
}

// HasIssued reports whether any document of the charge is ISSUED.
func (s *InMemoryFiscalDocumentStore) HasIssued(chargeID string) bool {
	_, ok := s.Find(context.Background(), func(d *fiscal.Document) bool {
		return d.ChargeID == chargeID && d.IsIssued()
	}, nil)
	return ok
}

// InMemoryFallbackIntentStore implements fallback.Repository
type InMemoryFallbackIntentStore struct {
	*InMemoryStore[*fallback.Intent]
}

func NewInMemoryFallbackIntentStore() *InMemoryFallbackIntentStore {
	return &InMemoryFallbackIntentStore{InMemoryStore: NewInMemoryStore[*fallback.Intent]()}
}

func copyIntent(i *fallback.Intent) *fallback.Intent {
	out := *i
	return &out
}

func (s *InMemoryFallbackIntentStore) CreateIfAbsent(ctx context.Context, i *fallback.Intent) (*fallback.Intent, bool, error) {
	stored, created := s.InMemoryStore.CreateIfAbsent(ctx, i.ID, copyIntent(i), func(existing *fallback.Intent) bool {
		return existing.IdempotencyKey == i.IdempotencyKey
	})
	return copyIntent(stored), created, nil
}

func (s *InMemoryFallbackIntentStore) Get(ctx context.Context, id string) (*fallback.Intent, error) {
	i, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Fallback intent not found").
			Mark(ierr.ErrNotFound)
	}
	return copyIntent(i), nil
}

func (s *InMemoryFallbackIntentStore) List(ctx context.Context, filter *fallback.IntentFilter) ([]*fallback.Intent, error) {
	if filter == nil {
		filter = &fallback.IntentFilter{}
	}
	items, err := s.InMemoryStore.List(ctx, func(i *fallback.Intent) bool {
		return len(filter.Statuses) == 0 || lo.Contains(filter.Statuses, i.Status)
	}, func(a, b *fallback.Intent) bool { return a.ID < b.ID })
	if err != nil {
		return nil, err
	}
	return lo.Map(page(items, filter.GetOffset(), filter.GetLimit()), func(i *fallback.Intent, _ int) *fallback.Intent {
		return copyIntent(i)
	}), nil
}

func (s *InMemoryFallbackIntentStore) Update(ctx context.Context, i *fallback.Intent) error {
	return s.InMemoryStore.Update(ctx, i.ID, copyIntent(i))
}

// InMemoryBillingEventStore implements billingevent.Repository
type InMemoryBillingEventStore struct {
	*InMemoryStore[*billingevent.Event]
}

func NewInMemoryBillingEventStore() *InMemoryBillingEventStore {
	return &InMemoryBillingEventStore{InMemoryStore: NewInMemoryStore[*billingevent.Event]()}
}

func (s *InMemoryBillingEventStore) Create(ctx context.Context, event *billingevent.Event) error {
	out := *event
	return s.InMemoryStore.Create(ctx, event.ID, &out)
}

func eventOrder(a, b *billingevent.Event) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func (s *InMemoryBillingEventStore) ListBySubscription(ctx context.Context, subscriptionID string) ([]*billingevent.Event, error) {
	return s.InMemoryStore.List(ctx, func(e *billingevent.Event) bool {
		return e.SubscriptionID == subscriptionID
	}, eventOrder)
}

// Types returns the recorded event types in order.
func (s *InMemoryBillingEventStore) Types(ctx context.Context) []types.BillingEventType {
	events, _ := s.InMemoryStore.List(ctx, nil, eventOrder)
	return lo.Map(events, func(e *billingevent.Event, _ int) types.BillingEventType { return e.EventType })
}

// CountOf returns how many events of the type were recorded.
func (s *InMemoryBillingEventStore) CountOf(ctx context.Context, eventType types.BillingEventType) int {
	return lo.Count(s.Types(ctx), eventType)
}

// InMemoryBankBatchStore implements bankbatch.Repository
type InMemoryBankBatchStore struct {
	*InMemoryStore[*bankbatch.Batch]
	rows *InMemoryStore[*bankbatch.ResponseRow]
}

func NewInMemoryBankBatchStore() *InMemoryBankBatchStore {
	return &InMemoryBankBatchStore{
		InMemoryStore: NewInMemoryStore[*bankbatch.Batch](),
		rows:          NewInMemoryStore[*bankbatch.ResponseRow](),
	}
}

func (s *InMemoryBankBatchStore) Create(ctx context.Context, b *bankbatch.Batch) error {
	out := *b
	return s.InMemoryStore.Create(ctx, b.ID, &out)
}

func (s *InMemoryBankBatchStore) Get(ctx context.Context, id string) (*bankbatch.Batch, error) {
	b, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	out := *b
	return &out, nil
}

func (s *InMemoryBankBatchStore) Update(ctx context.Context, b *bankbatch.Batch) error {
	out := *b
	return s.InMemoryStore.Update(ctx, b.ID, &out)
}

func (s *InMemoryBankBatchStore) CountByBusinessDate(ctx context.Context, direction types.BankBatchDirection, businessDate types.Date) (int, error) {
	items, err := s.InMemoryStore.List(ctx, func(b *bankbatch.Batch) bool {
		return b.Direction == direction && b.BusinessDate.Equal(businessDate)
	}, nil)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// Batches returns the recorded batches of a direction, oldest first.
func (s *InMemoryBankBatchStore) Batches(ctx context.Context, direction types.BankBatchDirection) []*bankbatch.Batch {
	items, _ := s.InMemoryStore.List(ctx, func(b *bankbatch.Batch) bool {
		return b.Direction == direction
	}, func(a, b *bankbatch.Batch) bool { return a.CreatedAt.Before(b.CreatedAt) })
	return items
}

func (s *InMemoryBankBatchStore) CreateResponseRowIfAbsent(ctx context.Context, row *bankbatch.ResponseRow) (bool, error) {
	out := *row
	_, created := s.rows.CreateIfAbsent(ctx, row.ID, &out, func(existing *bankbatch.ResponseRow) bool {
		return existing.AttemptID == row.AttemptID && existing.LineHash == row.LineHash
	})
	return created, nil
}

// ResponseRowCount returns the number of applied rows.
func (s *InMemoryBankBatchStore) ResponseRowCount() int {
	return s.rows.Count()
}
