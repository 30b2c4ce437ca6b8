package inventory

import (
	"github.com/commerce/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Aggregate type constants
const (
	AggregateTypeInventoryRecord = "InventoryRecord"
	AggregateTypeLot             = "Lot"
)

// Event type constants
const (
	EventTypeStockAdjusted       = "StockAdjusted"
	EventTypeStockReserved       = "StockReserved"
	EventTypeStockReleased       = "StockReleased"
	EventTypeStockFulfilled      = "StockFulfilled"
	EventTypeStockBelowThreshold = "StockBelowThreshold"
	EventTypeReorderPointReached = "ReorderPointReached"
	EventTypeLotReceived         = "LotReceived"
	EventTypeLotDeactivated      = "LotDeactivated"
)

// StockAdjustedEvent is raised when available stock changes by a signed delta
type StockAdjustedEvent struct {
	shared.BaseDomainEvent
	SKUID            string `json:"sku_id"`
	PreviousQuantity int64  `json:"previous_quantity"`
	NewQuantity      int64  `json:"new_quantity"`
	Reason           string `json:"reason"`
}

// NewStockAdjustedEvent creates a new StockAdjustedEvent
func NewStockAdjustedEvent(record *InventoryRecord, previous, current int64, reason string) *StockAdjustedEvent {
	return &StockAdjustedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeStockAdjusted, AggregateTypeInventoryRecord, record.ID),
		SKUID:            record.SKUID,
		PreviousQuantity: previous,
		NewQuantity:      current,
		Reason:           reason,
	}
}

// StockReservedEvent is raised when stock is reserved for an in-flight order
type StockReservedEvent struct {
	shared.BaseDomainEvent
	SKUID    string `json:"sku_id"`
	Quantity int64  `json:"quantity"`
	Reserved int64  `json:"reserved"`
}

// NewStockReservedEvent creates a new StockReservedEvent
func NewStockReservedEvent(record *InventoryRecord, quantity int64) *StockReservedEvent {
	return &StockReservedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockReserved, AggregateTypeInventoryRecord, record.ID),
		SKUID:           record.SKUID,
		Quantity:        quantity,
		Reserved:        record.TotalReservedStock,
	}
}

// StockReleasedEvent is raised when a reservation returns to available stock
type StockReleasedEvent struct {
	shared.BaseDomainEvent
	SKUID    string `json:"sku_id"`
	Quantity int64  `json:"quantity"`
}

// NewStockReleasedEvent creates a new StockReleasedEvent
func NewStockReleasedEvent(record *InventoryRecord, quantity int64) *StockReleasedEvent {
	return &StockReleasedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockReleased, AggregateTypeInventoryRecord, record.ID),
		SKUID:           record.SKUID,
		Quantity:        quantity,
	}
}

// StockFulfilledEvent is raised when a reservation is converted into a
// permanent physical decrement
type StockFulfilledEvent struct {
	shared.BaseDomainEvent
	SKUID    string `json:"sku_id"`
	Quantity int64  `json:"quantity"`
}

// NewStockFulfilledEvent creates a new StockFulfilledEvent
func NewStockFulfilledEvent(record *InventoryRecord, quantity int64) *StockFulfilledEvent {
	return &StockFulfilledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockFulfilled, AggregateTypeInventoryRecord, record.ID),
		SKUID:           record.SKUID,
		Quantity:        quantity,
	}
}

// StockBelowThresholdEvent is raised when available stock falls below the
// configured low-stock threshold
type StockBelowThresholdEvent struct {
	shared.BaseDomainEvent
	SKUID             string `json:"sku_id"`
	AvailableStock    int64  `json:"available_stock"`
	LowStockThreshold int64  `json:"low_stock_threshold"`
}

// NewStockBelowThresholdEvent creates a new StockBelowThresholdEvent
func NewStockBelowThresholdEvent(record *InventoryRecord) *StockBelowThresholdEvent {
	return &StockBelowThresholdEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeStockBelowThreshold, AggregateTypeInventoryRecord, record.ID),
		SKUID:             record.SKUID,
		AvailableStock:    record.TotalAvailableStock,
		LowStockThreshold: record.LowStockThreshold,
	}
}

// ReorderPointReachedEvent is raised when available stock falls to the
// reorder point; carries the configured reorder quantity as a suggestion
type ReorderPointReachedEvent struct {
	shared.BaseDomainEvent
	SKUID           string `json:"sku_id"`
	AvailableStock  int64  `json:"available_stock"`
	ReorderPoint    int64  `json:"reorder_point"`
	ReorderQuantity int64  `json:"reorder_quantity"`
}

// NewReorderPointReachedEvent creates a new ReorderPointReachedEvent
func NewReorderPointReachedEvent(record *InventoryRecord) *ReorderPointReachedEvent {
	return &ReorderPointReachedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReorderPointReached, AggregateTypeInventoryRecord, record.ID),
		SKUID:           record.SKUID,
		AvailableStock:  record.TotalAvailableStock,
		ReorderPoint:    record.ReorderPoint,
		ReorderQuantity: record.ReorderQuantity,
	}
}

// LotReceivedEvent is raised when a new lot enters the warehouse
type LotReceivedEvent struct {
	shared.BaseDomainEvent
	SKUID     string    `json:"sku_id"`
	LotID     uuid.UUID `json:"lot_id"`
	LotNumber string    `json:"lot_number"`
	Quantity  int64     `json:"quantity"`
}

// NewLotReceivedEvent creates a new LotReceivedEvent
func NewLotReceivedEvent(lot *Lot) *LotReceivedEvent {
	return &LotReceivedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLotReceived, AggregateTypeLot, lot.ID),
		SKUID:           lot.SKUID,
		LotID:           lot.ID,
		LotNumber:       lot.LotNumber,
		Quantity:        lot.InitialQuantity,
	}
}

// LotDeactivatedEvent is raised when a lot is excluded from future allocation
type LotDeactivatedEvent struct {
	shared.BaseDomainEvent
	SKUID             string    `json:"sku_id"`
	LotID             uuid.UUID `json:"lot_id"`
	RemainingQuantity int64     `json:"remaining_quantity"`
	Expired           bool      `json:"expired"`
}

// NewLotDeactivatedEvent creates a new LotDeactivatedEvent
func NewLotDeactivatedEvent(lot *Lot) *LotDeactivatedEvent {
	return &LotDeactivatedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeLotDeactivated, AggregateTypeLot, lot.ID),
		SKUID:             lot.SKUID,
		LotID:             lot.ID,
		RemainingQuantity: lot.CurrentQuantity,
		Expired:           lot.IsExpired(),
	}
}
