package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/commerce/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedMovement struct {
	MovementType  string
	ReferenceType string
}

type recordedAllocation struct {
	Strategy string
	Outcome  string
}

// spyInstrumentation captures every metrics call for assertion
type spyInstrumentation struct {
	mu          sync.Mutex
	movements   []recordedMovement
	allocations []recordedAllocation
	retries     []string
	durations   []string
}

func (s *spyInstrumentation) RecordMovement(_ context.Context, movementType, referenceType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.movements = append(s.movements, recordedMovement{movementType, referenceType})
}

func (s *spyInstrumentation) RecordAllocation(_ context.Context, strategy, outcome string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allocations = append(s.allocations, recordedAllocation{strategy, outcome})
}

func (s *spyInstrumentation) RecordConflictRetry(_ context.Context, operation string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retries = append(s.retries, operation)
}

func (s *spyInstrumentation) RecordOperationDuration(_ context.Context, operation string, _ time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.durations = append(s.durations, operation)
}

// conflictOnceScope fails the first transaction attempt with a concurrency
// conflict and delegates every later attempt
type conflictOnceScope struct {
	inner    TransactionScope
	tripped  bool
	tripLock sync.Mutex
}

func (s *conflictOnceScope) Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error {
	s.tripLock.Lock()
	first := !s.tripped
	s.tripped = true
	s.tripLock.Unlock()
	if first {
		return shared.ErrConcurrencyConflict
	}
	return s.inner.Execute(ctx, fn)
}

func TestServiceInstrumentation(t *testing.T) {
	ctx := context.Background()

	t.Run("ledger operations report movements and durations", func(t *testing.T) {
		f := newFixture()
		spy := &spyInstrumentation{}
		f.ledger.SetInstrumentation(spy)

		_, err := f.ledger.AdjustStock(ctx, AdjustStockRequest{SKUID: "SKU-001", Delta: 20, Reason: "initial stock"})
		require.NoError(t, err)
		_, err = f.ledger.ReserveStock(ctx, ReserveStockRequest{SKUID: "SKU-001", Quantity: 5, OrderID: "ORD-1"})
		require.NoError(t, err)
		_, err = f.ledger.ReleaseStock(ctx, ReleaseStockRequest{SKUID: "SKU-001", Quantity: 5, OrderID: "ORD-1"})
		require.NoError(t, err)

		assert.Equal(t, []recordedMovement{
			{"ADMIN_ADJUSTMENT", "MANUAL"},
			{"ORDER_FULFILLMENT", "ORDER"},
			{"ORDER_CANCEL", "ORDER"},
		}, spy.movements)
		assert.Equal(t, []string{"adjust", "reserve", "release"}, spy.durations)
		assert.Empty(t, spy.retries)
	})

	t.Run("failed ledger operations report no movement", func(t *testing.T) {
		f := newFixture()
		spy := &spyInstrumentation{}
		f.ledger.SetInstrumentation(spy)

		_, err := f.ledger.ReserveStock(ctx, ReserveStockRequest{SKUID: "SKU-404", Quantity: 5, OrderID: "ORD-1"})
		require.Error(t, err)

		assert.Empty(t, spy.movements)
		assert.Equal(t, []string{"reserve"}, spy.durations)
	})

	t.Run("lot fulfillment reports the allocation outcome", func(t *testing.T) {
		f := newFixture()
		spy := &spyInstrumentation{}
		f.lotSvc.SetInstrumentation(spy)

		receiveLot(t, f, "SKU-001", "LOT-1", 10, time.Now().AddDate(0, -1, 0), nil)
		_, err := f.ledger.ReserveStock(ctx, ReserveStockRequest{SKUID: "SKU-001", Quantity: 4, OrderID: "ORD-1"})
		require.NoError(t, err)

		_, err = f.lotSvc.FulfillReservedStock(ctx, FulfillStockRequest{SKUID: "SKU-001", Quantity: 4, OrderID: "ORD-1"})
		require.NoError(t, err)

		require.Len(t, spy.allocations, 1)
		assert.Equal(t, recordedAllocation{"fifo", "success"}, spy.allocations[0])
		assert.Equal(t, []recordedMovement{
			{"LOT_INWARD", "PURCHASE"},
			{"ORDER_FULFILLMENT", "ORDER"},
		}, spy.movements)
	})

	t.Run("insufficient lot coverage reports an insufficient outcome", func(t *testing.T) {
		f := newFixture()
		spy := &spyInstrumentation{}
		f.lotSvc.SetInstrumentation(spy)

		receiveLot(t, f, "SKU-001", "LOT-1", 3, time.Now().AddDate(0, -1, 0), nil)
		_, err := f.ledger.AdjustStock(ctx, AdjustStockRequest{SKUID: "SKU-001", Delta: 5, Reason: "phantom credit"})
		require.NoError(t, err)
		_, err = f.ledger.ReserveStock(ctx, ReserveStockRequest{SKUID: "SKU-001", Quantity: 5, OrderID: "ORD-1"})
		require.NoError(t, err)

		_, err = f.lotSvc.FulfillReservedStock(ctx, FulfillStockRequest{SKUID: "SKU-001", Quantity: 5, OrderID: "ORD-1"})
		require.Error(t, err)
		require.True(t, errors.Is(err, shared.ErrInsufficientLotStock))

		require.Len(t, spy.allocations, 1)
		assert.Equal(t, recordedAllocation{"fifo", "insufficient_stock"}, spy.allocations[0])
	})

	t.Run("fulfilling an unlotted SKU reports no allocation", func(t *testing.T) {
		f := newFixture()
		spy := &spyInstrumentation{}
		f.lotSvc.SetInstrumentation(spy)

		_, err := f.ledger.AdjustStock(ctx, AdjustStockRequest{SKUID: "SKU-001", Delta: 10, Reason: "initial stock"})
		require.NoError(t, err)
		_, err = f.ledger.ReserveStock(ctx, ReserveStockRequest{SKUID: "SKU-001", Quantity: 4, OrderID: "ORD-1"})
		require.NoError(t, err)

		_, err = f.lotSvc.FulfillReservedStock(ctx, FulfillStockRequest{SKUID: "SKU-001", Quantity: 4, OrderID: "ORD-1"})
		require.NoError(t, err)

		assert.Empty(t, spy.allocations)
		assert.Equal(t, []recordedMovement{{"ORDER_FULFILLMENT", "ORDER"}}, spy.movements)
	})

	t.Run("a concurrency conflict reports a retry for the operation", func(t *testing.T) {
		store := newMemStore()
		records := &memRecordRepo{store}
		scope := &conflictOnceScope{inner: newRollbackTxScope(store)}
		ledger := NewLedgerService(records, scope)
		spy := &spyInstrumentation{}
		ledger.SetInstrumentation(spy)

		_, err := ledger.AdjustStock(ctx, AdjustStockRequest{SKUID: "SKU-001", Delta: 10, Reason: "initial stock"})
		require.NoError(t, err)

		assert.Equal(t, []string{"adjust"}, spy.retries)
		assert.Equal(t, []string{"adjust"}, spy.durations)
		assert.Equal(t, []recordedMovement{{"ADMIN_ADJUSTMENT", "MANUAL"}}, spy.movements)
	})
}
