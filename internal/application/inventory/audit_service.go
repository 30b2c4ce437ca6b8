package inventory

import (
	"context"
	"time"

	"github.com/commerce/backend/internal/domain/inventory"
	"github.com/commerce/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// AuditTrailService reads the append-only movement log: querying it,
// replaying it into counter state, and verifying the live record against the
// replay. The movement log is the source of truth; when the two disagree the
// live record is the one corrected.
type AuditTrailService struct {
	movementRepo inventory.StockMovementRepository
	recordRepo   inventory.InventoryRecordRepository
	txScope      TransactionScope
	logger       *zap.Logger
}

// NewAuditTrailService creates a new AuditTrailService
func NewAuditTrailService(
	movementRepo inventory.StockMovementRepository,
	recordRepo inventory.InventoryRecordRepository,
	txScope TransactionScope,
	logger *zap.Logger,
) *AuditTrailService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditTrailService{
		movementRepo: movementRepo,
		recordRepo:   recordRepo,
		txScope:      txScope,
		logger:       logger,
	}
}

// ListMovements retrieves movements matching the filter, newest first by
// default
func (s *AuditTrailService) ListMovements(ctx context.Context, filter MovementListFilter) (*shared.Paginated[StockMovementResponse], error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.OrderDir == "" {
		filter.OrderDir = "desc"
	}

	domainFilter := inventory.MovementFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  "occurred_at",
			OrderDir: filter.OrderDir,
		},
		SKUID:         filter.SKUID,
		LotID:         filter.LotID,
		MovementType:  inventory.MovementType(filter.MovementType),
		ReferenceType: inventory.ReferenceType(filter.ReferenceType),
		ReferenceID:   filter.ReferenceID,
		OccurredAfter: filter.OccurredAfter,
		OccurredUntil: filter.OccurredUntil,
	}

	page, err := s.movementRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, err
	}
	result := shared.NewPaginated(ToStockMovementResponses(page.Items), page.Total, page.Page, page.PageSize)
	return &result, nil
}

// GetByReference retrieves every movement attributed to one source document
func (s *AuditTrailService) GetByReference(ctx context.Context, referenceType, referenceID string) ([]StockMovementResponse, error) {
	refType := inventory.ReferenceType(referenceType)
	if !refType.IsValid() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Invalid reference type")
	}
	movements, err := s.movementRepo.FindByReference(ctx, refType, referenceID)
	if err != nil {
		return nil, err
	}
	return ToStockMovementResponses(movements), nil
}

// Reconstruct replays a SKU's movement log from genesis and returns the
// counter state it produces. A non-nil upto stops the replay at that point
// in history.
func (s *AuditTrailService) Reconstruct(ctx context.Context, skuID string, upto *time.Time) (*ReconstructedStateResponse, error) {
	movements, err := s.movementRepo.FindBySKUOrdered(ctx, skuID, upto)
	if err != nil {
		return nil, err
	}
	state := replayMovements(skuID, movements)
	return &state, nil
}

// Verify compares a SKU's live counters against the state replayed from its
// movement log
func (s *AuditTrailService) Verify(ctx context.Context, skuID string) (*VerificationResultResponse, error) {
	record, err := s.recordRepo.FindBySKU(ctx, skuID)
	if err != nil {
		return nil, err
	}
	movements, err := s.movementRepo.FindBySKUOrdered(ctx, skuID, nil)
	if err != nil {
		return nil, err
	}

	replayed := replayMovements(skuID, movements)
	live := ReconstructedStateResponse{
		SKUID:               skuID,
		TotalAvailableStock: record.TotalAvailableStock,
		TotalReservedStock:  record.TotalReservedStock,
		MovementCount:       len(movements),
	}

	result := &VerificationResultResponse{
		SKUID:          skuID,
		Consistent:     live.TotalAvailableStock == replayed.TotalAvailableStock && live.TotalReservedStock == replayed.TotalReservedStock,
		Live:           live,
		Replayed:       replayed,
		AvailableDrift: live.TotalAvailableStock - replayed.TotalAvailableStock,
		ReservedDrift:  live.TotalReservedStock - replayed.TotalReservedStock,
		VerifiedAt:     time.Now(),
	}

	if !result.Consistent {
		s.logger.Warn("Ledger drift detected",
			zap.String("sku_id", skuID),
			zap.Int64("available_drift", result.AvailableDrift),
			zap.Int64("reserved_drift", result.ReservedDrift),
		)
	}

	return result, nil
}

// Reconcile overwrites a drifted record's counters with the state replayed
// from its movement log. The movement log is authoritative, so the correction
// itself writes no movement; running Reconcile twice in a row makes the
// second run a no-op.
func (s *AuditTrailService) Reconcile(ctx context.Context, skuID string) (*VerificationResultResponse, error) {
	result, err := s.Verify(ctx, skuID)
	if err != nil {
		return nil, err
	}
	if result.Consistent {
		return result, nil
	}

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		record, err := repos.RecordRepo().FindBySKU(ctx, skuID)
		if err != nil {
			return err
		}
		record.TotalAvailableStock = result.Replayed.TotalAvailableStock
		record.TotalReservedStock = result.Replayed.TotalReservedStock
		record.IncrementVersion()
		return repos.RecordRepo().SaveWithLock(ctx, record)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Reconciled ledger drift",
		zap.String("sku_id", skuID),
		zap.Int64("available_drift", result.AvailableDrift),
		zap.Int64("reserved_drift", result.ReservedDrift),
	)

	return result, nil
}

// replayMovements folds a SKU's movements in occurrence order into counter
// state. Deltas are self-contained, so the fold needs no record snapshot.
func replayMovements(skuID string, movements []inventory.StockMovement) ReconstructedStateResponse {
	state := ReconstructedStateResponse{
		SKUID:         skuID,
		MovementCount: len(movements),
	}
	for i := range movements {
		state.TotalAvailableStock += movements[i].QuantityDelta
		state.TotalReservedStock += movements[i].ReservedDelta
	}
	return state
}
