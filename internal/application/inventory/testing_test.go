package inventory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/commerce/backend/internal/domain/inventory"
	"github.com/commerce/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// MockEventPublisher collects published domain events for assertions
type MockEventPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{
		events: make([]shared.DomainEvent, 0),
	}
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *MockEventPublisher) GetEventsByType(eventType string) []shared.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]shared.DomainEvent, 0)
	for _, e := range m.events {
		if e.EventType() == eventType {
			result = append(result, e)
		}
	}
	return result
}

// memStore backs the in-memory repositories. Records are stored as deep
// copies and SaveWithLock does a real compare-and-swap on the version column,
// so concurrent writers conflict the same way they would against the
// database.
type memStore struct {
	mu        sync.Mutex
	records   map[string]inventory.InventoryRecord // keyed by SKU
	lots      map[uuid.UUID]inventory.Lot
	movements []inventory.StockMovement
}

func newMemStore() *memStore {
	return &memStore{
		records: make(map[string]inventory.InventoryRecord),
		lots:    make(map[uuid.UUID]inventory.Lot),
	}
}

func (s *memStore) snapshot() *memStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := newMemStore()
	for k, v := range s.records {
		clone.records[k] = v
	}
	for k, v := range s.lots {
		clone.lots[k] = v
	}
	clone.movements = append([]inventory.StockMovement(nil), s.movements...)
	return clone
}

func (s *memStore) restore(from *memStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = from.records
	s.lots = from.lots
	s.movements = from.movements
}

type memRecordRepo struct{ store *memStore }

func (r *memRecordRepo) FindByID(ctx context.Context, id uuid.UUID) (*inventory.InventoryRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, rec := range r.store.records {
		if rec.ID == id {
			cp := rec
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memRecordRepo) FindBySKU(ctx context.Context, skuID string) (*inventory.InventoryRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	rec, ok := r.store.records[skuID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := rec
	return &cp, nil
}

func (r *memRecordRepo) FindBySKUs(ctx context.Context, skuIDs []string) ([]inventory.InventoryRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	result := make([]inventory.InventoryRecord, 0, len(skuIDs))
	for _, sku := range skuIDs {
		if rec, ok := r.store.records[sku]; ok {
			result = append(result, rec)
		}
	}
	return result, nil
}

func (r *memRecordRepo) FindAll(ctx context.Context, filter shared.Filter) (*shared.Paginated[inventory.InventoryRecord], error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	items := make([]inventory.InventoryRecord, 0, len(r.store.records))
	for _, rec := range r.store.records {
		items = append(items, rec)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].SKUID < items[j].SKUID })
	page := shared.NewPaginated(items, int64(len(items)), 1, len(items)+1)
	return &page, nil
}

func (r *memRecordRepo) FindBelowThreshold(ctx context.Context) ([]inventory.InventoryRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var result []inventory.InventoryRecord
	for _, rec := range r.store.records {
		if rec.IsBelowThreshold() {
			result = append(result, rec)
		}
	}
	return result, nil
}

func (r *memRecordRepo) GetOrCreate(ctx context.Context, skuID string) (*inventory.InventoryRecord, error) {
	r.store.mu.Lock()
	if rec, ok := r.store.records[skuID]; ok {
		r.store.mu.Unlock()
		cp := rec
		return &cp, nil
	}
	r.store.mu.Unlock()

	record, err := inventory.NewInventoryRecord(skuID)
	if err != nil {
		return nil, err
	}
	r.store.mu.Lock()
	r.store.records[skuID] = *record
	r.store.mu.Unlock()
	return record, nil
}

func (r *memRecordRepo) Save(ctx context.Context, record *inventory.InventoryRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.records[record.SKUID] = *record
	return nil
}

func (r *memRecordRepo) SaveWithLock(ctx context.Context, record *inventory.InventoryRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored, ok := r.store.records[record.SKUID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Version != record.Version-1 {
		return shared.ErrConcurrencyConflict
	}
	r.store.records[record.SKUID] = *record
	return nil
}

type memLotRepo struct{ store *memStore }

func (r *memLotRepo) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Lot, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	lot, ok := r.store.lots[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := lot
	return &cp, nil
}

func (r *memLotRepo) FindByLotNumber(ctx context.Context, skuID, lotNumber string) (*inventory.Lot, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, lot := range r.store.lots {
		if lot.SKUID == skuID && lot.LotNumber == lotNumber {
			cp := lot
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memLotRepo) FindAllocatable(ctx context.Context, skuID string) ([]inventory.Lot, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var result []inventory.Lot
	for _, lot := range r.store.lots {
		if lot.SKUID == skuID && lot.IsAllocatable() {
			result = append(result, lot)
		}
	}
	return result, nil
}

func (r *memLotRepo) FindBySKU(ctx context.Context, skuID string, filter shared.Filter) (*shared.Paginated[inventory.Lot], error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var items []inventory.Lot
	for _, lot := range r.store.lots {
		if lot.SKUID == skuID {
			items = append(items, lot)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].LotNumber < items[j].LotNumber })
	page := shared.NewPaginated(items, int64(len(items)), 1, len(items)+1)
	return &page, nil
}

func (r *memLotRepo) FindExpired(ctx context.Context, asOf time.Time) ([]inventory.Lot, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var result []inventory.Lot
	for _, lot := range r.store.lots {
		if lot.IsActive && lot.ExpiryDate != nil && !lot.ExpiryDate.After(asOf) {
			result = append(result, lot)
		}
	}
	return result, nil
}

func (r *memLotRepo) Save(ctx context.Context, lot *inventory.Lot) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.lots[lot.ID] = *lot
	return nil
}

func (r *memLotRepo) SaveAll(ctx context.Context, lots []*inventory.Lot) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, lot := range lots {
		r.store.lots[lot.ID] = *lot
	}
	return nil
}

type memMovementRepo struct{ store *memStore }

func (r *memMovementRepo) Create(ctx context.Context, movement *inventory.StockMovement) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.movements = append(r.store.movements, *movement)
	return nil
}

func (r *memMovementRepo) CreateAll(ctx context.Context, movements []*inventory.StockMovement) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, m := range movements {
		r.store.movements = append(r.store.movements, *m)
	}
	return nil
}

func (r *memMovementRepo) FindByID(ctx context.Context, id uuid.UUID) (*inventory.StockMovement, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, m := range r.store.movements {
		if m.ID == id {
			cp := m
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memMovementRepo) FindAll(ctx context.Context, filter inventory.MovementFilter) (*shared.Paginated[inventory.StockMovement], error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var items []inventory.StockMovement
	for _, m := range r.store.movements {
		if filter.SKUID != "" && m.SKUID != filter.SKUID {
			continue
		}
		if filter.MovementType != "" && m.MovementType != filter.MovementType {
			continue
		}
		if filter.ReferenceType != "" && m.ReferenceType != filter.ReferenceType {
			continue
		}
		if filter.ReferenceID != "" && m.ReferenceID != filter.ReferenceID {
			continue
		}
		items = append(items, m)
	}
	if strings.EqualFold(filter.OrderDir, "desc") {
		sort.Slice(items, func(i, j int) bool { return items[i].OccurredAt.After(items[j].OccurredAt) })
	} else {
		sort.Slice(items, func(i, j int) bool { return items[i].OccurredAt.Before(items[j].OccurredAt) })
	}
	page := shared.NewPaginated(items, int64(len(items)), 1, len(items)+1)
	return &page, nil
}

func (r *memMovementRepo) FindBySKUOrdered(ctx context.Context, skuID string, upto *time.Time) ([]inventory.StockMovement, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var result []inventory.StockMovement
	for _, m := range r.store.movements {
		if m.SKUID != skuID {
			continue
		}
		if upto != nil && m.OccurredAt.After(*upto) {
			continue
		}
		result = append(result, m)
	}
	return result, nil
}

func (r *memMovementRepo) FindByReference(ctx context.Context, referenceType inventory.ReferenceType, referenceID string) ([]inventory.StockMovement, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var result []inventory.StockMovement
	for _, m := range r.store.movements {
		if m.ReferenceType == referenceType && m.ReferenceID == referenceID {
			result = append(result, m)
		}
	}
	return result, nil
}

// rollbackTxScope mimics the transactional scope against the memory store:
// the function's writes are discarded when it fails. Not safe for concurrent
// use; concurrency tests use the NoOp scope, whose write ordering keeps
// failed operations from leaving partial state.
type rollbackTxScope struct {
	store *memStore
	repos TransactionalRepositories
}

func newRollbackTxScope(store *memStore) *rollbackTxScope {
	return &rollbackTxScope{
		store: store,
		repos: NewNoOpTransactionScope(&memRecordRepo{store}, &memLotRepo{store}, &memMovementRepo{store}),
	}
}

func (s *rollbackTxScope) Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error {
	before := s.store.snapshot()
	if err := fn(s.repos); err != nil {
		s.store.restore(before)
		return err
	}
	return nil
}

// fixture bundles the wired services over one memory store
type fixture struct {
	store     *memStore
	records   *memRecordRepo
	lots      *memLotRepo
	movements *memMovementRepo
	scope     TransactionScope
	publisher *MockEventPublisher
	ledger    *LedgerService
	lotSvc    *LotService
	audit     *AuditTrailService
}

func newFixture() *fixture {
	store := newMemStore()
	f := &fixture{
		store:     store,
		records:   &memRecordRepo{store},
		lots:      &memLotRepo{store},
		movements: &memMovementRepo{store},
		publisher: NewMockEventPublisher(),
	}
	f.scope = newRollbackTxScope(store)
	f.ledger = NewLedgerService(f.records, f.scope)
	f.ledger.SetEventPublisher(f.publisher)
	f.lotSvc = NewLotService(f.lots, f.scope, inventory.NewFIFOAllocationStrategy(), nil)
	f.lotSvc.SetEventPublisher(f.publisher)
	f.audit = NewAuditTrailService(f.movements, f.records, f.scope, nil)
	return f
}
