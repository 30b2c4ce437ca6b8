package inventory

import (
	"time"

	"github.com/commerce/backend/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InventoryRecordResponse represents an inventory record in API responses
type InventoryRecordResponse struct {
	ID                  uuid.UUID  `json:"id"`
	SKUID               string     `json:"sku_id"`
	TotalAvailableStock int64      `json:"total_available_stock"`
	TotalReservedStock  int64      `json:"total_reserved_stock"`
	PhysicalStock       int64      `json:"physical_stock"`
	LowStockThreshold   int64      `json:"low_stock_threshold"`
	ReorderPoint        int64      `json:"reorder_point"`
	ReorderQuantity     int64      `json:"reorder_quantity"`
	IsBelowThreshold    bool       `json:"is_below_threshold"`
	LastRestockedAt     *time.Time `json:"last_restocked_at,omitempty"`
	UpdatedAt           time.Time  `json:"updated_at"`
	Version             int        `json:"version"`
}

// ToInventoryRecordResponse converts a domain record to its response form
func ToInventoryRecordResponse(record *inventory.InventoryRecord) InventoryRecordResponse {
	return InventoryRecordResponse{
		ID:                  record.ID,
		SKUID:               record.SKUID,
		TotalAvailableStock: record.TotalAvailableStock,
		TotalReservedStock:  record.TotalReservedStock,
		PhysicalStock:       record.PhysicalStock(),
		LowStockThreshold:   record.LowStockThreshold,
		ReorderPoint:        record.ReorderPoint,
		ReorderQuantity:     record.ReorderQuantity,
		IsBelowThreshold:    record.IsBelowThreshold(),
		LastRestockedAt:     record.LastRestockedAt,
		UpdatedAt:           record.UpdatedAt,
		Version:             record.Version,
	}
}

// AdjustStockRequest represents a manual stock adjustment
type AdjustStockRequest struct {
	SKUID       string `json:"sku_id" binding:"required"`
	Delta       int64  `json:"delta" binding:"required"`
	Reason      string `json:"reason" binding:"required,min=1,max=255"`
	ReferenceID string `json:"reference_id"` // auto-generated if empty
	PerformedBy string `json:"performed_by"`
}

// ReserveStockRequest represents a checkout reservation
type ReserveStockRequest struct {
	SKUID    string `json:"sku_id" binding:"required"`
	Quantity int64  `json:"quantity" binding:"required,gt=0"`
	OrderID  string `json:"order_id" binding:"required"`
}

// ReleaseStockRequest represents a reservation release on order cancellation
type ReleaseStockRequest struct {
	SKUID    string `json:"sku_id" binding:"required"`
	Quantity int64  `json:"quantity" binding:"required,gt=0"`
	OrderID  string `json:"order_id" binding:"required"`
}

// FulfillStockRequest converts a reservation into a shipment. Lot consumption
// follows the configured strategy unless a specific lot is named.
type FulfillStockRequest struct {
	SKUID       string     `json:"sku_id" binding:"required"`
	Quantity    int64      `json:"quantity" binding:"required,gt=0"`
	OrderID     string     `json:"order_id" binding:"required"`
	LotID       *uuid.UUID `json:"lot_id"`
	PerformedBy string     `json:"performed_by"`
}

// UpdateThresholdRequest updates low-stock alerting and reorder metadata
type UpdateThresholdRequest struct {
	SKUID             string `json:"sku_id" binding:"required"`
	LowStockThreshold int64  `json:"low_stock_threshold" binding:"min=0"`
	ReorderPoint      int64  `json:"reorder_point" binding:"min=0"`
	ReorderQuantity   int64  `json:"reorder_quantity" binding:"min=0"`
}

// ReceiveLotRequest represents an inward receipt of a new lot
type ReceiveLotRequest struct {
	SKUID             string          `json:"sku_id" binding:"required"`
	LotNumber         string          `json:"lot_number" binding:"required"`
	Quantity          int64           `json:"quantity" binding:"required,gt=0"`
	CostPerUnit       decimal.Decimal `json:"cost_per_unit"`
	ManufacturingDate time.Time       `json:"manufacturing_date" binding:"required"`
	ExpiryDate        *time.Time      `json:"expiry_date"`
	SupplierID        string          `json:"supplier_id"`
	SourceType        string          `json:"source_type"` // defaults to PURCHASE
	ReferenceID       string          `json:"reference_id" binding:"required"`
	PerformedBy       string          `json:"performed_by"`
}

// ReturnRestockRequest restocks a completed customer return. When LotID is
// set the quantity goes back into that lot; otherwise it is restocked
// unlotted.
type ReturnRestockRequest struct {
	SKUID       string     `json:"sku_id" binding:"required"`
	Quantity    int64      `json:"quantity" binding:"required,gt=0"`
	ReturnID    string     `json:"return_id" binding:"required"`
	LotID       *uuid.UUID `json:"lot_id"`
	Reason      string     `json:"reason"`
	PerformedBy string     `json:"performed_by"`
}

// LotResponse represents a lot in API responses
type LotResponse struct {
	ID                uuid.UUID       `json:"id"`
	SKUID             string          `json:"sku_id"`
	LotNumber         string          `json:"lot_number"`
	InitialQuantity   int64           `json:"initial_quantity"`
	CurrentQuantity   int64           `json:"current_quantity"`
	CostPerUnit       decimal.Decimal `json:"cost_per_unit"`
	TotalValue        decimal.Decimal `json:"total_value"`
	ManufacturingDate time.Time       `json:"manufacturing_date"`
	ExpiryDate        *time.Time      `json:"expiry_date,omitempty"`
	SupplierID        string          `json:"supplier_id,omitempty"`
	SourceType        string          `json:"source_type"`
	IsActive          bool            `json:"is_active"`
	IsExpired         bool            `json:"is_expired"`
	DeactivatedAt     *time.Time      `json:"deactivated_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// ToLotResponse converts a domain lot to its response form
func ToLotResponse(lot *inventory.Lot) LotResponse {
	return LotResponse{
		ID:                lot.ID,
		SKUID:             lot.SKUID,
		LotNumber:         lot.LotNumber,
		InitialQuantity:   lot.InitialQuantity,
		CurrentQuantity:   lot.CurrentQuantity,
		CostPerUnit:       lot.CostPerUnit,
		TotalValue:        lot.TotalValue(),
		ManufacturingDate: lot.ManufacturingDate,
		ExpiryDate:        lot.ExpiryDate,
		SupplierID:        lot.SupplierID,
		SourceType:        lot.SourceType.String(),
		IsActive:          lot.IsActive,
		IsExpired:         lot.IsExpired(),
		DeactivatedAt:     lot.DeactivatedAt,
		CreatedAt:         lot.CreatedAt,
	}
}

// ToLotResponses converts a slice of domain lots
func ToLotResponses(lots []inventory.Lot) []LotResponse {
	responses := make([]LotResponse, len(lots))
	for i := range lots {
		responses[i] = ToLotResponse(&lots[i])
	}
	return responses
}

// FulfillStockResponse carries the updated record plus the lot allocation
// that backed the shipment
type FulfillStockResponse struct {
	Record      InventoryRecordResponse   `json:"record"`
	Allocations []inventory.LotAllocation `json:"allocations"`
	TotalCost   decimal.Decimal           `json:"total_cost"`
}

// StockMovementResponse represents one ledger entry in API responses
type StockMovementResponse struct {
	ID               uuid.UUID  `json:"id"`
	SKUID            string     `json:"sku_id"`
	LotID            *uuid.UUID `json:"lot_id,omitempty"`
	MovementType     string     `json:"movement_type"`
	QuantityDelta    int64      `json:"quantity_delta"`
	ReservedDelta    int64      `json:"reserved_delta"`
	PreviousQuantity int64      `json:"previous_quantity"`
	NewQuantity      int64      `json:"new_quantity"`
	PreviousReserved int64      `json:"previous_reserved"`
	NewReserved      int64      `json:"new_reserved"`
	ReferenceType    string     `json:"reference_type"`
	ReferenceID      string     `json:"reference_id"`
	Reason           string     `json:"reason,omitempty"`
	PerformedBy      string     `json:"performed_by,omitempty"`
	OccurredAt       time.Time  `json:"occurred_at"`
}

// ToStockMovementResponse converts a domain movement to its response form
func ToStockMovementResponse(movement *inventory.StockMovement) StockMovementResponse {
	return StockMovementResponse{
		ID:               movement.ID,
		SKUID:            movement.SKUID,
		LotID:            movement.LotID,
		MovementType:     movement.MovementType.String(),
		QuantityDelta:    movement.QuantityDelta,
		ReservedDelta:    movement.ReservedDelta,
		PreviousQuantity: movement.PreviousQuantity,
		NewQuantity:      movement.NewQuantity,
		PreviousReserved: movement.PreviousReserved,
		NewReserved:      movement.NewReserved,
		ReferenceType:    movement.ReferenceType.String(),
		ReferenceID:      movement.ReferenceID,
		Reason:           movement.Reason,
		PerformedBy:      movement.PerformedBy,
		OccurredAt:       movement.OccurredAt,
	}
}

// ToStockMovementResponses converts a slice of domain movements
func ToStockMovementResponses(movements []inventory.StockMovement) []StockMovementResponse {
	responses := make([]StockMovementResponse, len(movements))
	for i := range movements {
		responses[i] = ToStockMovementResponse(&movements[i])
	}
	return responses
}

// MovementListFilter represents filter options for movement queries
type MovementListFilter struct {
	SKUID         string     `form:"sku_id"`
	LotID         *uuid.UUID `form:"lot_id"`
	MovementType  string     `form:"movement_type"`
	ReferenceType string     `form:"reference_type"`
	ReferenceID   string     `form:"reference_id"`
	OccurredAfter *time.Time `form:"occurred_after" time_format:"2006-01-02T15:04:05Z07:00"`
	OccurredUntil *time.Time `form:"occurred_until" time_format:"2006-01-02T15:04:05Z07:00"`
	Page          int        `form:"page" binding:"omitempty,min=1"`
	PageSize      int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderDir      string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// ReconstructedStateResponse is the counter state replayed from the movement log
type ReconstructedStateResponse struct {
	SKUID               string `json:"sku_id"`
	TotalAvailableStock int64  `json:"total_available_stock"`
	TotalReservedStock  int64  `json:"total_reserved_stock"`
	MovementCount       int    `json:"movement_count"`
}

// VerificationResultResponse compares the live record against the replayed state
type VerificationResultResponse struct {
	SKUID          string                     `json:"sku_id"`
	Consistent     bool                       `json:"consistent"`
	Live           ReconstructedStateResponse `json:"live"`
	Replayed       ReconstructedStateResponse `json:"replayed"`
	AvailableDrift int64                      `json:"available_drift"`
	ReservedDrift  int64                      `json:"reserved_drift"`
	VerifiedAt     time.Time                  `json:"verified_at"`
}

// WriteOffResult reports one lot written off by the expiry sweep
type WriteOffResult struct {
	LotID      uuid.UUID `json:"lot_id"`
	LotNumber  string    `json:"lot_number"`
	SKUID      string    `json:"sku_id"`
	WrittenOff int64     `json:"written_off"`
}
