package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/commerce/backend/internal/domain/inventory"
	"github.com/commerce/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LotService handles the physical side of the stock ledger: lot receipts,
// lot-backed fulfillment, return restocks, and expiry write-offs. Counter
// changes, lot changes, and the movement row always commit in one
// transaction.
type LotService struct {
	lotRepo        inventory.LotRepository
	txScope        TransactionScope
	strategy       inventory.AllocationStrategy
	eventPublisher shared.EventPublisher
	instr          Instrumentation
	logger         *zap.Logger
	maxRetries     int
}

// NewLotService creates a new LotService using the given allocation strategy
func NewLotService(
	lotRepo inventory.LotRepository,
	txScope TransactionScope,
	strategy inventory.AllocationStrategy,
	logger *zap.Logger,
) *LotService {
	if strategy == nil {
		strategy = inventory.NewFIFOAllocationStrategy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LotService{
		lotRepo:    lotRepo,
		txScope:    txScope,
		strategy:   strategy,
		logger:     logger,
		maxRetries: DefaultMaxRetries,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *LotService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetMaxRetries overrides the optimistic-retry bound
func (s *LotService) SetMaxRetries(n int) {
	if n > 0 {
		s.maxRetries = n
	}
}

// SetInstrumentation sets the metrics sink for lot activity
func (s *LotService) SetInstrumentation(instr Instrumentation) {
	s.instr = instr
}

// GetLot retrieves a lot by ID
func (s *LotService) GetLot(ctx context.Context, lotID uuid.UUID) (*LotResponse, error) {
	lot, err := s.lotRepo.FindByID(ctx, lotID)
	if err != nil {
		return nil, err
	}
	response := ToLotResponse(lot)
	return &response, nil
}

// ListLots retrieves a SKU's lots with pagination
func (s *LotService) ListLots(ctx context.Context, skuID string, filter shared.Filter) (*shared.Paginated[LotResponse], error) {
	page, err := s.lotRepo.FindBySKU(ctx, skuID, filter)
	if err != nil {
		return nil, err
	}
	result := shared.NewPaginated(ToLotResponses(page.Items), page.Total, page.Page, page.PageSize)
	return &result, nil
}

// PreviewAllocation computes the allocation plan for a quantity without
// consuming anything
func (s *LotService) PreviewAllocation(ctx context.Context, skuID string, quantity int64) (*inventory.AllocationPlan, error) {
	lots, err := s.lotRepo.FindAllocatable(ctx, skuID)
	if err != nil {
		return nil, err
	}
	return s.strategy.SelectLots(skuID, quantity, lots)
}

// ReceiveInward books a new lot into the warehouse and credits the SKU's
// available stock. The lot, the counter change, and the LOT_INWARD movement
// commit atomically.
func (s *LotService) ReceiveInward(ctx context.Context, req ReceiveLotRequest) (*LotResponse, error) {
	sourceType := inventory.LotSourceType(req.SourceType)
	if req.SourceType == "" {
		sourceType = inventory.LotSourcePurchase
	}
	if !sourceType.IsValid() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Invalid lot source type")
	}

	var lot *inventory.Lot
	var record *inventory.InventoryRecord
	err := s.withRetry(ctx, "receive_inward", func(repos TransactionalRepositories) error {
		existing, err := repos.LotRepo().FindByLotNumber(ctx, req.SKUID, req.LotNumber)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		if existing != nil {
			return shared.ErrAlreadyExists
		}

		lot, err = inventory.NewLot(
			req.SKUID, req.LotNumber,
			req.Quantity, req.CostPerUnit,
			req.ManufacturingDate, req.ExpiryDate,
			req.SupplierID, sourceType,
		)
		if err != nil {
			return err
		}
		if err := repos.LotRepo().Save(ctx, lot); err != nil {
			return err
		}

		record, err = repos.RecordRepo().GetOrCreate(ctx, req.SKUID)
		if err != nil {
			return err
		}
		prevQty, prevRes := record.TotalAvailableStock, record.TotalReservedStock
		if err := record.Adjust(req.Quantity, "lot received"); err != nil {
			return err
		}
		if err := repos.RecordRepo().SaveWithLock(ctx, record); err != nil {
			return err
		}

		movement, err := inventory.NewStockMovement(record, inventory.MovementTypeLotInward, prevQty, prevRes, inventory.ReferenceTypePurchase, req.ReferenceID)
		if err != nil {
			return err
		}
		movement.WithLotID(lot.ID).WithPerformedBy(req.PerformedBy)
		return repos.MovementRepo().Create(ctx, movement)
	})
	if err != nil {
		return nil, err
	}

	s.recordMovement(ctx, inventory.MovementTypeLotInward, inventory.ReferenceTypePurchase)
	s.publishRecordEvents(ctx, record)
	s.publish(ctx, inventory.NewLotReceivedEvent(lot))

	response := ToLotResponse(lot)
	return &response, nil
}

// FulfillReservedStock ships a reservation: the reserved counter drops and,
// for a lot-tracked SKU, the quantity is consumed from lots, FIFO by default
// or from the named lot. A SKU with no lots at all fulfills on the counters
// alone. If the eligible lots cannot cover the quantity the whole operation
// fails and nothing is consumed.
func (s *LotService) FulfillReservedStock(ctx context.Context, req FulfillStockRequest) (*FulfillStockResponse, error) {
	var record *inventory.InventoryRecord
	var plan *inventory.AllocationPlan
	var drained []*inventory.Lot
	err := s.withRetry(ctx, "fulfill", func(repos TransactionalRepositories) error {
		plan = nil
		drained = nil

		var err error
		record, err = repos.RecordRepo().FindBySKU(ctx, req.SKUID)
		if err != nil {
			return err
		}
		prevQty, prevRes := record.TotalAvailableStock, record.TotalReservedStock
		if err := record.ConsumeReserved(req.Quantity); err != nil {
			return err
		}

		var touched []*inventory.Lot
		if req.LotID != nil {
			lot, err := repos.LotRepo().FindByID(ctx, *req.LotID)
			if err != nil {
				return err
			}
			plan, err = inventory.AllocateFromLot(req.SKUID, req.Quantity, lot)
			if err != nil {
				return err
			}
			touched = []*inventory.Lot{lot}
		} else {
			lots, err := repos.LotRepo().FindAllocatable(ctx, req.SKUID)
			if err != nil {
				return err
			}
			tracked := len(lots) > 0
			if !tracked {
				// A SKU whose lots are all drained or expired is still
				// lot-tracked and must fail coverage below; only a SKU that
				// never had a lot fulfills on the counters alone.
				tracked, err = s.skuHasLots(ctx, repos, req.SKUID)
				if err != nil {
					return err
				}
			}
			if tracked {
				plan, err = s.strategy.SelectLots(req.SKUID, req.Quantity, lots)
				if err != nil {
					return err
				}
				byID := make(map[uuid.UUID]*inventory.Lot, len(lots))
				for i := range lots {
					byID[lots[i].ID] = &lots[i]
				}
				for _, alloc := range plan.Allocations {
					touched = append(touched, byID[alloc.LotID])
				}
			}
		}

		if plan != nil {
			if err := inventory.ApplyAllocationPlan(touched, plan); err != nil {
				return err
			}
			if err := repos.LotRepo().SaveAll(ctx, touched); err != nil {
				return err
			}
			for _, lot := range touched {
				if !lot.IsActive {
					drained = append(drained, lot)
				}
			}
		}

		if err := repos.RecordRepo().SaveWithLock(ctx, record); err != nil {
			return err
		}

		movement, err := inventory.NewStockMovement(record, inventory.MovementTypeOrderFulfillment, prevQty, prevRes, inventory.ReferenceTypeOrder, req.OrderID)
		if err != nil {
			return err
		}
		movement.WithPerformedBy(req.PerformedBy)
		if plan != nil && len(plan.Allocations) == 1 {
			movement.WithLotID(plan.Allocations[0].LotID)
		}
		return repos.MovementRepo().Create(ctx, movement)
	})
	if err != nil {
		s.recordAllocation(ctx, err)
		return nil, err
	}
	if plan != nil {
		s.recordAllocation(ctx, nil)
	}

	s.recordMovement(ctx, inventory.MovementTypeOrderFulfillment, inventory.ReferenceTypeOrder)
	s.publishRecordEvents(ctx, record)
	for _, lot := range drained {
		s.publish(ctx, inventory.NewLotDeactivatedEvent(lot))
	}

	resp := &FulfillStockResponse{Record: ToInventoryRecordResponse(record)}
	if plan != nil {
		resp.Allocations = plan.Allocations
		resp.TotalCost = plan.TotalCost
	}
	return resp, nil
}

// skuHasLots reports whether any lot, active or not, was ever booked for the
// SKU
func (s *LotService) skuHasLots(ctx context.Context, repos TransactionalRepositories, skuID string) (bool, error) {
	page, err := repos.LotRepo().FindBySKU(ctx, skuID, shared.Filter{Page: 1, PageSize: 1})
	if err != nil {
		return false, err
	}
	return page.Total > 0, nil
}

// ReturnRestock credits a completed customer return back to available stock,
// into the original lot when one is named
func (s *LotService) ReturnRestock(ctx context.Context, req ReturnRestockRequest) (*InventoryRecordResponse, error) {
	reason := req.Reason
	if reason == "" {
		reason = "return restock"
	}

	var record *inventory.InventoryRecord
	err := s.withRetry(ctx, "return_restock", func(repos TransactionalRepositories) error {
		var err error
		record, err = repos.RecordRepo().GetOrCreate(ctx, req.SKUID)
		if err != nil {
			return err
		}
		prevQty, prevRes := record.TotalAvailableStock, record.TotalReservedStock
		if err := record.Adjust(req.Quantity, reason); err != nil {
			return err
		}

		if req.LotID != nil {
			lot, err := repos.LotRepo().FindByID(ctx, *req.LotID)
			if err != nil {
				return err
			}
			if lot.SKUID != req.SKUID {
				return shared.ErrNotFound
			}
			if err := lot.Restock(req.Quantity); err != nil {
				return err
			}
			if err := repos.LotRepo().Save(ctx, lot); err != nil {
				return err
			}
		}

		if err := repos.RecordRepo().SaveWithLock(ctx, record); err != nil {
			return err
		}

		movement, err := inventory.NewStockMovement(record, inventory.MovementTypeReturnRestock, prevQty, prevRes, inventory.ReferenceTypeReturn, req.ReturnID)
		if err != nil {
			return err
		}
		movement.WithReason(reason).WithPerformedBy(req.PerformedBy)
		if req.LotID != nil {
			movement.WithLotID(*req.LotID)
		}
		return repos.MovementRepo().Create(ctx, movement)
	})
	if err != nil {
		return nil, err
	}

	s.recordMovement(ctx, inventory.MovementTypeReturnRestock, inventory.ReferenceTypeReturn)
	s.publishRecordEvents(ctx, record)
	response := ToInventoryRecordResponse(record)
	return &response, nil
}

// DeactivateLot removes a lot from allocation. Remaining quantity is written
// off from available stock so the counters keep matching the physical lots.
func (s *LotService) DeactivateLot(ctx context.Context, lotID uuid.UUID, reason, performedBy string) (*LotResponse, error) {
	if reason == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Deactivation reason is required")
	}

	var lot *inventory.Lot
	var record *inventory.InventoryRecord
	err := s.withRetry(ctx, "deactivate_lot", func(repos TransactionalRepositories) error {
		record = nil

		var err error
		lot, err = repos.LotRepo().FindByID(ctx, lotID)
		if err != nil {
			return err
		}
		if !lot.IsActive {
			return shared.NewDomainError("INVALID_STATE", "Lot is already deactivated")
		}

		remaining := lot.CurrentQuantity
		if remaining > 0 {
			record, err = repos.RecordRepo().FindBySKU(ctx, lot.SKUID)
			if err != nil {
				return err
			}
			prevQty, prevRes := record.TotalAvailableStock, record.TotalReservedStock
			if err := record.Adjust(-remaining, reason); err != nil {
				return err
			}
			if err := repos.RecordRepo().SaveWithLock(ctx, record); err != nil {
				return err
			}

			movement, err := inventory.NewStockMovement(record, inventory.MovementTypeAdminAdjustment, prevQty, prevRes, inventory.ReferenceTypeManual, fmt.Sprintf("LOT-DEACT-%s", lot.LotNumber))
			if err != nil {
				return err
			}
			movement.WithLotID(lot.ID).WithReason(reason).WithPerformedBy(performedBy)
			if err := repos.MovementRepo().Create(ctx, movement); err != nil {
				return err
			}

			if err := lot.Deduct(remaining); err != nil {
				return err
			}
		} else {
			lot.Deactivate()
		}

		return repos.LotRepo().Save(ctx, lot)
	})
	if err != nil {
		return nil, err
	}

	if record != nil {
		s.recordMovement(ctx, inventory.MovementTypeAdminAdjustment, inventory.ReferenceTypeManual)
	}
	s.publishRecordEvents(ctx, record)
	s.publish(ctx, inventory.NewLotDeactivatedEvent(lot))

	response := ToLotResponse(lot)
	return &response, nil
}

// WriteOffExpiredLots sweeps active lots past their expiry date, writing off
// their remaining stock. Each lot is processed in its own transaction so one
// failure does not abort the sweep.
func (s *LotService) WriteOffExpiredLots(ctx context.Context, asOf time.Time) ([]WriteOffResult, error) {
	expired, err := s.lotRepo.FindExpired(ctx, asOf)
	if err != nil {
		s.logger.Error("Failed to find expired lots", zap.Error(err))
		return nil, err
	}
	if len(expired) == 0 {
		s.logger.Debug("No expired lots found")
		return nil, nil
	}

	s.logger.Info("Found expired lots", zap.Int("count", len(expired)))

	results := make([]WriteOffResult, 0, len(expired))
	for i := range expired {
		lot := &expired[i]
		remaining := lot.CurrentQuantity
		if err := s.writeOffLot(ctx, lot.ID); err != nil {
			s.logger.Error("Failed to write off expired lot",
				zap.String("lot_id", lot.ID.String()),
				zap.String("sku_id", lot.SKUID),
				zap.Error(err),
			)
			continue
		}
		results = append(results, WriteOffResult{
			LotID:      lot.ID,
			LotNumber:  lot.LotNumber,
			SKUID:      lot.SKUID,
			WrittenOff: remaining,
		})
	}

	s.logger.Info("Completed expired lot write-off",
		zap.Int("total", len(expired)),
		zap.Int("written_off", len(results)),
	)

	return results, nil
}

// writeOffLot drains one expired lot and deducts its remaining quantity from
// available stock with a system-attributed adjustment movement
func (s *LotService) writeOffLot(ctx context.Context, lotID uuid.UUID) error {
	var record *inventory.InventoryRecord
	var lot *inventory.Lot
	err := s.withRetry(ctx, "write_off_lot", func(repos TransactionalRepositories) error {
		record = nil

		var err error
		lot, err = repos.LotRepo().FindByID(ctx, lotID)
		if err != nil {
			return err
		}
		if !lot.IsActive {
			return nil
		}

		remaining := lot.CurrentQuantity
		if remaining > 0 {
			record, err = repos.RecordRepo().FindBySKU(ctx, lot.SKUID)
			if err != nil {
				return err
			}
			prevQty, prevRes := record.TotalAvailableStock, record.TotalReservedStock
			if err := record.Adjust(-remaining, "expired lot write-off"); err != nil {
				return err
			}
			if err := repos.RecordRepo().SaveWithLock(ctx, record); err != nil {
				return err
			}

			movement, err := inventory.NewStockMovement(record, inventory.MovementTypeAdminAdjustment, prevQty, prevRes, inventory.ReferenceTypeSystem, fmt.Sprintf("EXPIRY-%s", lot.LotNumber))
			if err != nil {
				return err
			}
			movement.WithLotID(lot.ID).WithReason("expired lot write-off")
			if err := repos.MovementRepo().Create(ctx, movement); err != nil {
				return err
			}

			if err := lot.Deduct(remaining); err != nil {
				return err
			}
		} else {
			lot.Deactivate()
		}

		return repos.LotRepo().Save(ctx, lot)
	})
	if err != nil {
		return err
	}

	if record != nil {
		s.recordMovement(ctx, inventory.MovementTypeAdminAdjustment, inventory.ReferenceTypeSystem)
	}
	s.publishRecordEvents(ctx, record)
	s.publish(ctx, inventory.NewLotDeactivatedEvent(lot))
	return nil
}

func (s *LotService) withRetry(ctx context.Context, op string, fn func(repos TransactionalRepositories) error) error {
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
func (s *LotService) recordMovement(ctx context.Context, movementType inventory.MovementType, referenceType inventory.ReferenceType) {
	if s.instr != nil {
		s.instr.RecordMovement(ctx, string(movementType), string(referenceType))
	}
}

// recordAllocation classifies a fulfillment result for the allocation
// counter. Errors outside the allocator's vocabulary are not reported.
func (s *LotService) recordAllocation(ctx context.Context, err error) {
	if s.instr == nil {
		return
	}
	outcome := allocationOutcomeSuccess
	switch {
	case errors.Is(err, shared.ErrInsufficientLotStock):
		outcome = allocationOutcomeInsufficient
	case errors.Is(err, shared.ErrConcurrencyConflict):
		outcome = allocationOutcomeConflict
	case err != nil:
		return
	}
	s.instr.RecordAllocation(ctx, s.strategy.Name(), outcome)
}

func (s *LotService) publishRecordEvents(ctx context.Context, record *inventory.InventoryRecord) {
	if s.eventPublisher == nil || record == nil {
		return
	}
	events := record.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	_ = s.eventPublisher.Publish(ctx, events...)
	record.ClearDomainEvents()
}

func (s *LotService) publish(ctx context.Context, event shared.DomainEvent) {
	if s.eventPublisher == nil {
		return
	}
	_ = s.eventPublisher.Publish(ctx, event)
}
