package inventory

import (
	"context"
	"time"

	"github.com/commerce/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// InventoryRecordRepository defines the interface for inventory record persistence
type InventoryRecordRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*InventoryRecord, error)
	FindBySKU(ctx context.Context, skuID string) (*InventoryRecord, error)
	FindBySKUs(ctx context.Context, skuIDs []string) ([]InventoryRecord, error)
	FindAll(ctx context.Context, filter shared.Filter) (*shared.Paginated[InventoryRecord], error)
	FindBelowThreshold(ctx context.Context) ([]InventoryRecord, error)
	// GetOrCreate returns the record for the SKU, creating a zero-stock one
	// if it does not exist yet
	GetOrCreate(ctx context.Context, skuID string) (*InventoryRecord, error)
	Save(ctx context.Context, record *InventoryRecord) error
	// SaveWithLock persists the record only if its stored version matches
	// record.Version-1, failing with CONCURRENCY_CONFLICT otherwise
	SaveWithLock(ctx context.Context, record *InventoryRecord) error
}

// LotRepository defines the interface for lot persistence
type LotRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Lot, error)
	FindByLotNumber(ctx context.Context, skuID, lotNumber string) (*Lot, error)
	// FindAllocatable returns the SKU's active, non-empty lots
	FindAllocatable(ctx context.Context, skuID string) ([]Lot, error)
	FindBySKU(ctx context.Context, skuID string, filter shared.Filter) (*shared.Paginated[Lot], error)
	// FindExpired returns active lots whose expiry date is on or before the
	// given time
	FindExpired(ctx context.Context, asOf time.Time) ([]Lot, error)
	Save(ctx context.Context, lot *Lot) error
	SaveAll(ctx context.Context, lots []*Lot) error
}

// MovementFilter narrows stock movement queries
type MovementFilter struct {
	shared.Filter
	SKUID         string        `json:"sku_id" form:"sku_id"`
	LotID         *uuid.UUID    `json:"lot_id" form:"lot_id"`
	MovementType  MovementType  `json:"movement_type" form:"movement_type"`
	ReferenceType ReferenceType `json:"reference_type" form:"reference_type"`
	ReferenceID   string        `json:"reference_id" form:"reference_id"`
	OccurredAfter *time.Time    `json:"occurred_after" form:"occurred_after"`
	OccurredUntil *time.Time    `json:"occurred_until" form:"occurred_until"`
}

// StockMovementRepository defines the interface for the append-only movement
// ledger. Movements are immutable once written; there is no update or delete.
type StockMovementRepository interface {
	Create(ctx context.Context, movement *StockMovement) error
	CreateAll(ctx context.Context, movements []*StockMovement) error
	FindByID(ctx context.Context, id uuid.UUID) (*StockMovement, error)
	FindAll(ctx context.Context, filter MovementFilter) (*shared.Paginated[StockMovement], error)
	// FindBySKUOrdered returns the SKU's movements in occurrence order, the
	// order replay consumes them in. A non-nil upto bounds the history to
	// movements that occurred at or before it.
	FindBySKUOrdered(ctx context.Context, skuID string, upto *time.Time) ([]StockMovement, error)
	FindByReference(ctx context.Context, referenceType ReferenceType, referenceID string) ([]StockMovement, error)
}
