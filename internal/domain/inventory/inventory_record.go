package inventory

import (
	"time"

	"github.com/commerce/backend/internal/domain/shared"
)

// InventoryRecord tracks the stock position of a single SKU.
// It is the aggregate root for all stock mutations: available and reserved
// counters are only changed through its methods, and every change is paired
// with a StockMovement written by the application layer in the same
// transaction.
type InventoryRecord struct {
	shared.BaseAggregateRoot
	SKUID               string     `gorm:"column:sku_id;type:varchar(64);not null;uniqueIndex:idx_inventory_record_sku"`
	TotalAvailableStock int64      `gorm:"not null;default:0"`
	TotalReservedStock  int64      `gorm:"not null;default:0"`
	LowStockThreshold   int64      `gorm:"not null;default:0"`
	ReorderPoint        int64      `gorm:"not null;default:0"`
	ReorderQuantity     int64      `gorm:"not null;default:0"`
	LastRestockedAt     *time.Time `gorm:"type:timestamptz"`
}

// TableName returns the table name for GORM
func (InventoryRecord) TableName() string {
	return "inventory_records"
}

// NewInventoryRecord creates a new inventory record for a SKU with zero stock.
// Records are created lazily on first reference to a SKU.
func NewInventoryRecord(skuID string) (*InventoryRecord, error) {
	if skuID == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "SKU ID cannot be empty")
	}

	return &InventoryRecord{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		SKUID:             skuID,
	}, nil
}

// PhysicalStock returns the total on-hand quantity (available + reserved)
func (r *InventoryRecord) PhysicalStock() int64 {
	return r.TotalAvailableStock + r.TotalReservedStock
}

// Adjust applies a signed delta to the available stock.
// A negative delta that would drive the counter below zero fails with
// INSUFFICIENT_STOCK and leaves the record untouched.
func (r *InventoryRecord) Adjust(delta int64, reason string) error {
	if delta == 0 {
		return shared.NewDomainError("VALIDATION_ERROR", "Adjustment delta cannot be zero")
	}
	if reason == "" {
		return shared.NewDomainError("VALIDATION_ERROR", "Adjustment reason is required")
	}
	if r.TotalAvailableStock+delta < 0 {
		return shared.ErrInsufficientStock
	}

	previous := r.TotalAvailableStock
	r.TotalAvailableStock += delta
	if delta > 0 {
		r.markRestocked()
	}
	r.touch()

	r.AddDomainEvent(NewStockAdjustedEvent(r, previous, r.TotalAvailableStock, reason))
	r.checkStockLevels()

	return nil
}

// Reserve moves quantity from available to reserved for an in-flight order
func (r *InventoryRecord) Reserve(quantity int64) error {
	if quantity <= 0 {
		return shared.NewDomainError("VALIDATION_ERROR", "Reserve quantity must be positive")
	}
	if r.TotalAvailableStock < quantity {
		return shared.ErrInsufficientStock
	}

	r.TotalAvailableStock -= quantity
	r.TotalReservedStock += quantity
	r.touch()

	r.AddDomainEvent(NewStockReservedEvent(r, quantity))
	r.checkStockLevels()

	return nil
}

// Release moves quantity from reserved back to available (order cancelled)
func (r *InventoryRecord) Release(quantity int64) error {
	if quantity <= 0 {
		return shared.NewDomainError("VALIDATION_ERROR", "Release quantity must be positive")
	}
	if quantity > r.TotalReservedStock {
		return shared.ErrInvalidReservation
	}

	r.TotalReservedStock -= quantity
	r.TotalAvailableStock += quantity
	r.touch()

	r.AddDomainEvent(NewStockReleasedEvent(r, quantity))

	return nil
}

// ConsumeReserved converts a reservation into a permanent physical decrement
// (order shipped). The reserved counter is reduced; available is untouched
// because the quantity left it at reservation time.
func (r *InventoryRecord) ConsumeReserved(quantity int64) error {
	if quantity <= 0 {
		return shared.NewDomainError("VALIDATION_ERROR", "Fulfillment quantity must be positive")
	}
	if quantity > r.TotalReservedStock {
		return shared.ErrInvalidReservation
	}

	r.TotalReservedStock -= quantity
	r.touch()

	r.AddDomainEvent(NewStockFulfilledEvent(r, quantity))

	return nil
}

// SetThresholds updates the low-stock alerting and reorder metadata.
// This is not a stock change and produces no StockMovement.
func (r *InventoryRecord) SetThresholds(lowStock, reorderPoint, reorderQuantity int64) error {
	if lowStock < 0 || reorderPoint < 0 || reorderQuantity < 0 {
		return shared.NewDomainError("VALIDATION_ERROR", "Thresholds cannot be negative")
	}

	r.LowStockThreshold = lowStock
	r.ReorderPoint = reorderPoint
	r.ReorderQuantity = reorderQuantity
	r.touch()

	return nil
}

// IsBelowThreshold returns true if available stock is below the low-stock threshold
func (r *InventoryRecord) IsBelowThreshold() bool {
	return r.LowStockThreshold > 0 && r.TotalAvailableStock < r.LowStockThreshold
}

// IsBelowReorderPoint returns true if available stock has fallen to the reorder point
func (r *InventoryRecord) IsBelowReorderPoint() bool {
	return r.ReorderPoint > 0 && r.TotalAvailableStock <= r.ReorderPoint
}

// CanFulfill returns true if the available quantity covers the requested quantity
func (r *InventoryRecord) CanFulfill(quantity int64) bool {
	return r.TotalAvailableStock >= quantity
}

func (r *InventoryRecord) markRestocked() {
	now := time.Now()
	r.LastRestockedAt = &now
}

func (r *InventoryRecord) touch() {
	r.UpdatedAt = time.Now()
	r.IncrementVersion()
}

func (r *InventoryRecord) checkStockLevels() {
	if r.IsBelowThreshold() {
		r.AddDomainEvent(NewStockBelowThresholdEvent(r))
	}
	if r.IsBelowReorderPoint() {
		r.AddDomainEvent(NewReorderPointReachedEvent(r))
	}
}
