package inventory

import (
	"time"

	"github.com/commerce/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// MovementType classifies the business event behind a stock movement
type MovementType string

const (
	// MovementTypeOrderFulfillment covers reservation at checkout and the
	// physical decrement at shipment
	MovementTypeOrderFulfillment MovementType = "ORDER_FULFILLMENT"
	// MovementTypeOrderCancel covers reservation release and post-fulfillment restock
	MovementTypeOrderCancel MovementType = "ORDER_CANCEL"
	// MovementTypeLotInward is an inward receipt of a new lot
	MovementTypeLotInward MovementType = "LOT_INWARD"
	// MovementTypeAdminAdjustment is a manual correction with a mandatory reason
	MovementTypeAdminAdjustment MovementType = "ADMIN_ADJUSTMENT"
	// MovementTypeReturnRestock restocks a completed customer return
	MovementTypeReturnRestock MovementType = "RETURN_RESTOCK"
)

// String returns the string representation of MovementType
func (t MovementType) String() string {
	return string(t)
}

// IsValid returns true if the movement type is valid
func (t MovementType) IsValid() bool {
	switch t {
	case MovementTypeOrderFulfillment,
		MovementTypeOrderCancel,
		MovementTypeLotInward,
		MovementTypeAdminAdjustment,
		MovementTypeReturnRestock:
		return true
	}
	return false
}

// ReferenceType identifies the kind of source document behind a movement
type ReferenceType string

const (
	// ReferenceTypeOrder is a customer order
	ReferenceTypeOrder ReferenceType = "ORDER"
	// ReferenceTypeReturn is a customer return
	ReferenceTypeReturn ReferenceType = "RETURN"
	// ReferenceTypePurchase is a supplier purchase / inward receipt
	ReferenceTypePurchase ReferenceType = "PURCHASE"
	// ReferenceTypeManual is a manual admin operation
	ReferenceTypeManual ReferenceType = "MANUAL"
	// ReferenceTypeSystem is a system-initiated correction (e.g. expiry write-off)
	ReferenceTypeSystem ReferenceType = "SYSTEM"
)

// String returns the string representation of ReferenceType
func (t ReferenceType) String() string {
	return string(t)
}

// IsValid returns true if the reference type is valid
func (t ReferenceType) IsValid() bool {
	switch t {
	case ReferenceTypeOrder, ReferenceTypeReturn, ReferenceTypePurchase,
		ReferenceTypeManual, ReferenceTypeSystem:
		return true
	}
	return false
}

// StockMovement is the immutable ledger entry for one stock mutation.
// Movements are append-only: corrections are made with new movements, never
// by editing an existing one. Replaying all movements for a SKU from genesis
// reproduces its InventoryRecord counters exactly, which makes the movement
// log the reconciliation source of truth.
type StockMovement struct {
	shared.BaseEntity
	SKUID            string        `gorm:"column:sku_id;type:varchar(64);not null;index:idx_movement_sku_time,priority:1"`
	LotID            *uuid.UUID    `gorm:"type:uuid;index"`
	MovementType     MovementType  `gorm:"type:varchar(30);not null;index:idx_movement_type"`
	QuantityDelta    int64         `gorm:"not null"` // signed, applies to available stock
	ReservedDelta    int64         `gorm:"not null"` // signed, applies to reserved stock
	PreviousQuantity int64         `gorm:"not null"` // available before
	NewQuantity      int64         `gorm:"not null"` // available after
	PreviousReserved int64         `gorm:"not null"`
	NewReserved      int64         `gorm:"not null"`
	ReferenceType    ReferenceType `gorm:"type:varchar(30);not null;index:idx_movement_ref"`
	ReferenceID      string        `gorm:"type:varchar(64);not null;index:idx_movement_ref"`
	Reason           string        `gorm:"type:varchar(255)"`
	PerformedBy      string        `gorm:"type:varchar(64)"`
	OccurredAt       time.Time     `gorm:"type:timestamptz;not null;index:idx_movement_sku_time,priority:2"`
}

// TableName returns the table name for GORM
func (StockMovement) TableName() string {
	return "stock_movements"
}

// NewStockMovement creates a movement capturing the counter transition of one
// ledger operation on a record. The before values are taken from the caller,
// the after values from the record's current state, so the movement always
// reflects exactly what was committed.
func NewStockMovement(
	record *InventoryRecord,
	movementType MovementType,
	previousQuantity, previousReserved int64,
	referenceType ReferenceType,
	referenceID string,
) (*StockMovement, error) {
	if record == nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Inventory record is required")
	}
	if !movementType.IsValid() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Invalid movement type")
	}
	if !referenceType.IsValid() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Invalid reference type")
	}
	if referenceID == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Reference ID cannot be empty")
	}

	return &StockMovement{
		BaseEntity:       shared.NewBaseEntity(),
		SKUID:            record.SKUID,
		MovementType:     movementType,
		QuantityDelta:    record.TotalAvailableStock - previousQuantity,
		ReservedDelta:    record.TotalReservedStock - previousReserved,
		PreviousQuantity: previousQuantity,
		NewQuantity:      record.TotalAvailableStock,
		PreviousReserved: previousReserved,
		NewReserved:      record.TotalReservedStock,
		ReferenceType:    referenceType,
		ReferenceID:      referenceID,
		OccurredAt:       time.Now(),
	}, nil
}

// WithLotID attributes the movement to a specific lot
func (m *StockMovement) WithLotID(lotID uuid.UUID) *StockMovement {
	m.LotID = &lotID
	return m
}

// WithReason sets the human-readable reason
func (m *StockMovement) WithReason(reason string) *StockMovement {
	m.Reason = reason
	return m
}

// WithPerformedBy records who triggered the movement
func (m *StockMovement) WithPerformedBy(actor string) *StockMovement {
	m.PerformedBy = actor
	return m
}

// WithOccurredAt overrides the movement timestamp
func (m *StockMovement) WithOccurredAt(t time.Time) *StockMovement {
	m.OccurredAt = t
	return m
}

// IsInbound returns true if the movement increased physical stock
func (m *StockMovement) IsInbound() bool {
	return m.QuantityDelta+m.ReservedDelta > 0
}

// IsOutbound returns true if the movement decreased physical stock
func (m *StockMovement) IsOutbound() bool {
	return m.QuantityDelta+m.ReservedDelta < 0
}
