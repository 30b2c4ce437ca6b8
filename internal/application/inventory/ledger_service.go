package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/commerce/backend/internal/domain/inventory"
	"github.com/commerce/backend/internal/domain/shared"
	"github.com/google/uuid"
)

const (
	// DefaultMaxRetries bounds how many times a conflicting ledger write is
	// retried before CONCURRENCY_CONFLICT is surfaced to the caller
	DefaultMaxRetries = 5
)

// LedgerService handles the counter side of the stock ledger: adjustments,
// reservations, releases, and threshold management. Every successful mutation
// writes exactly one stock movement in the same transaction as the counter
// change.
type LedgerService struct {
	recordRepo     inventory.InventoryRecordRepository
	txScope        TransactionScope
	eventPublisher shared.EventPublisher
	instr          Instrumentation
	maxRetries     int
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(recordRepo inventory.InventoryRecordRepository, txScope TransactionScope) *LedgerService {
	return &LedgerService{
		recordRepo: recordRepo,
		txScope:    txScope,
		maxRetries: DefaultMaxRetries,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *LedgerService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetMaxRetries overrides the optimistic-retry bound
func (s *LedgerService) SetMaxRetries(n int) {
	if n > 0 {
		s.maxRetries = n
	}
}

// SetInstrumentation sets the metrics sink for ledger activity
func (s *LedgerService) SetInstrumentation(instr Instrumentation) {
	s.instr = instr
}

// GetBySKU retrieves the inventory record for a SKU
func (s *LedgerService) GetBySKU(ctx context.Context, skuID string) (*InventoryRecordResponse, error) {
	record, err := s.recordRepo.FindBySKU(ctx, skuID)
	if err != nil {
		return nil, err
	}
	response := ToInventoryRecordResponse(record)
	return &response, nil
}

// List retrieves inventory records with pagination
func (s *LedgerService) List(ctx context.Context, filter shared.Filter) (*shared.Paginated[InventoryRecordResponse], error) {
	page, err := s.recordRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	responses := make([]InventoryRecordResponse, len(page.Items))
	for i := range page.Items {
		responses[i] = ToInventoryRecordResponse(&page.Items[i])
	}
	result := shared.NewPaginated(responses, page.Total, page.Page, page.PageSize)
	return &result, nil
}

// AdjustStock applies a signed manual correction to a SKU's available stock.
// The record is created on first touch, so an adjustment is also how a SKU
// enters the ledger.
// AdjustStock applies a signed manual correction to available stock, booked
// as an ADMIN_ADJUSTMENT movement
func (s *LedgerService) AdjustStock(ctx context.Context, req AdjustStockRequest) (*InventoryRecordResponse, error) {
	return s.adjustStock(ctx, req, inventory.MovementTypeAdminAdjustment, inventory.ReferenceTypeManual)
}

// adjustStock is the counter adjustment shared by AdjustStock and the
// coordinator's order-attributed paths, which book the same delta under an
// order movement type instead of an admin one.
func (s *LedgerService) adjustStock(ctx context.Context, req AdjustStockRequest, movementType inventory.MovementType, referenceType inventory.ReferenceType) (*InventoryRecordResponse, error) {
	referenceID := req.ReferenceID
	if referenceID == "" {
		referenceID = fmt.Sprintf("ADJ-%s", uuid.New().String()[:8])
	}

	var record *inventory.InventoryRecord
	err := s.withRetry(ctx, "adjust", func(repos TransactionalRepositories) error {
		var err error
		record, err = repos.RecordRepo().GetOrCreate(ctx, req.SKUID)
		if err != nil {
			return err
		}

		prevQty, prevRes := record.TotalAvailableStock, record.TotalReservedStock
		if err := record.Adjust(req.Delta, req.Reason); err != nil {
			return err
		}
		if err := repos.RecordRepo().SaveWithLock(ctx, record); err != nil {
			return err
		}

		movement, err := inventory.NewStockMovement(record, movementType, prevQty, prevRes, referenceType, referenceID)
		if err != nil {
			return err
		}
		movement.WithReason(req.Reason).WithPerformedBy(req.PerformedBy)
		return repos.MovementRepo().Create(ctx, movement)
	})
	if err != nil {
		return nil, err
	}

	s.recordMovement(ctx, movementType, referenceType)
	s.publishDomainEvents(ctx, record)
	response := ToInventoryRecordResponse(record)
	return &response, nil
}

// ReserveStock earmarks available stock for a pending order. The quantity
// moves from available to reserved; physical stock and lots are untouched
// until fulfillment.
func (s *LedgerService) ReserveStock(ctx context.Context, req ReserveStockRequest) (*InventoryRecordResponse, error) {
	var record *inventory.InventoryRecord
	err := s.withRetry(ctx, "reserve", func(repos TransactionalRepositories) error {
		var err error
		record, err = repos.RecordRepo().FindBySKU(ctx, req.SKUID)
		if err != nil {
			return err
		}

		prevQty, prevRes := record.TotalAvailableStock, record.TotalReservedStock
		if err := record.Reserve(req.Quantity); err != nil {
			return err
		}
		if err := repos.RecordRepo().SaveWithLock(ctx, record); err != nil {
			return err
		}

		movement, err := inventory.NewStockMovement(record, inventory.MovementTypeOrderFulfillment, prevQty, prevRes, inventory.ReferenceTypeOrder, req.OrderID)
		if err != nil {
			return err
		}
		movement.WithReason("reservation")
		return repos.MovementRepo().Create(ctx, movement)
	})
	if err != nil {
		return nil, err
	}

	s.recordMovement(ctx, inventory.MovementTypeOrderFulfillment, inventory.ReferenceTypeOrder)
	s.publishDomainEvents(ctx, record)
	response := ToInventoryRecordResponse(record)
	return &response, nil
}

// ReleaseStock returns a reservation to available stock when an order is
// cancelled before shipment
func (s *LedgerService) ReleaseStock(ctx context.Context, req ReleaseStockRequest) (*InventoryRecordResponse, error) {
	var record *inventory.InventoryRecord
	err := s.withRetry(ctx, "release", func(repos TransactionalRepositories) error {
		var err error
		record, err = repos.RecordRepo().FindBySKU(ctx, req.SKUID)
		if err != nil {
			return err
		}

		prevQty, prevRes := record.TotalAvailableStock, record.TotalReservedStock
		if err := record.Release(req.Quantity); err != nil {
			return err
		}
		if err := repos.RecordRepo().SaveWithLock(ctx, record); err != nil {
			return err
		}

		movement, err := inventory.NewStockMovement(record, inventory.MovementTypeOrderCancel, prevQty, prevRes, inventory.ReferenceTypeOrder, req.OrderID)
		if err != nil {
			return err
		}
		movement.WithReason("reservation released")
		return repos.MovementRepo().Create(ctx, movement)
	})
	if err != nil {
		return nil, err
	}

	s.recordMovement(ctx, inventory.MovementTypeOrderCancel, inventory.ReferenceTypeOrder)
	s.publishDomainEvents(ctx, record)
	response := ToInventoryRecordResponse(record)
	return &response, nil
}

// UpdateThreshold sets the low-stock alerting and reorder metadata for a SKU.
// This is configuration, not a stock change, so no movement is written.
func (s *LedgerService) UpdateThreshold(ctx context.Context, req UpdateThresholdRequest) (*InventoryRecordResponse, error) {
	var record *inventory.InventoryRecord
	err := s.withRetry(ctx, "update_threshold", func(repos TransactionalRepositories) error {
		var err error
		record, err = repos.RecordRepo().GetOrCreate(ctx, req.SKUID)
		if err != nil {
			return err
		}
		if err := record.SetThresholds(req.LowStockThreshold, req.ReorderPoint, req.ReorderQuantity); err != nil {
			return err
		}
		return repos.RecordRepo().SaveWithLock(ctx, record)
	})
	if err != nil {
		return nil, err
	}

	response := ToInventoryRecordResponse(record)
	return &response, nil
}

// FindBelowThreshold lists SKUs whose available stock is under their
// low-stock threshold
func (s *LedgerService) FindBelowThreshold(ctx context.Context) ([]InventoryRecordResponse, error) {
	records, err := s.recordRepo.FindBelowThreshold(ctx)
	if err != nil {
		return nil, err
	}
	responses := make([]InventoryRecordResponse, len(records))
	for i := range records {
		responses[i] = ToInventoryRecordResponse(&records[i])
	}
	return responses, nil
}

// withRetry runs fn in a transaction, retrying on optimistic-lock conflicts
// up to the configured bound. Each attempt re-reads inside the transaction,
// so the closure must not carry state between attempts.
func (s *LedgerService) withRetry(ctx context.Context, op string, fn func(repos TransactionalRepositories) error) error {
	if s.instr != nil {
		start := time.Now()
		defer func() {
			s.instr.RecordOperationDuration(ctx, op, time.Since(start))
		}()
	}

	var err error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err = s.txScope.Execute(ctx, fn)
		if err == nil || !errors.Is(err, shared.ErrConcurrencyConflict) {
			return err
		}
		if s.instr != nil {
			s.instr.RecordConflictRetry(ctx, op)
		}
	}
	return err
}

// recordMovement reports a committed movement to the metrics sink
func (s *LedgerService) recordMovement(ctx context.Context, movementType inventory.MovementType, referenceType inventory.ReferenceType) {
	if s.instr != nil {
		s.instr.RecordMovement(ctx, string(movementType), string(referenceType))
	}
}

// publishDomainEvents publishes all domain events from the record
func (s *LedgerService) publishDomainEvents(ctx context.Context, record *inventory.InventoryRecord) {
	if s.eventPublisher == nil || record == nil {
		return
	}
	events := record.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	// Errors are logged by the event bus, not propagated
	_ = s.eventPublisher.Publish(ctx, events...)
	record.ClearDomainEvents()
}
