package inventory

import (
	"time"

	"github.com/commerce/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// LotSourceType records how a lot entered the warehouse
type LotSourceType string

const (
	// LotSourcePurchase is a lot received from a supplier purchase
	LotSourcePurchase LotSourceType = "PURCHASE"
	// LotSourceReturn is a lot re-created from a customer return
	LotSourceReturn LotSourceType = "RETURN"
	// LotSourceTransfer is a lot transferred in from another warehouse
	LotSourceTransfer LotSourceType = "TRANSFER"
)

// String returns the string representation of LotSourceType
func (t LotSourceType) String() string {
	return string(t)
}

// IsValid returns true if the lot source type is valid
func (t LotSourceType) IsValid() bool {
	switch t {
	case LotSourcePurchase, LotSourceReturn, LotSourceTransfer:
		return true
	}
	return false
}

// Lot is a batch of physically received stock sharing manufacturing date,
// expiry, supplier, and unit cost. Lots are consumed FIFO and deactivated,
// never deleted, so the audit trail can always resolve a LotID.
type Lot struct {
	shared.BaseEntity
	SKUID             string          `gorm:"column:sku_id;type:varchar(64);not null;index:idx_lot_sku;uniqueIndex:idx_lot_sku_number,priority:1"`
	LotNumber         string          `gorm:"type:varchar(64);not null;uniqueIndex:idx_lot_sku_number,priority:2"`
	InitialQuantity   int64           `gorm:"not null"`
	CurrentQuantity   int64           `gorm:"not null"`
	CostPerUnit       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ManufacturingDate time.Time       `gorm:"type:timestamptz;not null;index"`
	ExpiryDate        *time.Time      `gorm:"type:timestamptz"`
	SupplierID        string          `gorm:"type:varchar(64)"`
	SourceType        LotSourceType   `gorm:"type:varchar(30);not null"`
	IsActive          bool            `gorm:"not null;default:true;index"`
	DeactivatedAt     *time.Time      `gorm:"type:timestamptz"`
}

// TableName returns the table name for GORM
func (Lot) TableName() string {
	return "lots"
}

// NewLot creates a new lot from an inward receipt. The full initial quantity
// is immediately current.
func NewLot(
	skuID, lotNumber string,
	initialQuantity int64,
	costPerUnit decimal.Decimal,
	manufacturingDate time.Time,
	expiryDate *time.Time,
	supplierID string,
	sourceType LotSourceType,
) (*Lot, error) {
	if skuID == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "SKU ID cannot be empty")
	}
	if lotNumber == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Lot number cannot be empty")
	}
	if initialQuantity <= 0 {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Initial quantity must be positive")
	}
	if costPerUnit.IsNegative() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Cost per unit cannot be negative")
	}
	if !sourceType.IsValid() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Invalid lot source type")
	}
	if expiryDate != nil && !expiryDate.After(manufacturingDate) {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Expiry date must be after manufacturing date")
	}

	return &Lot{
		BaseEntity:        shared.NewBaseEntity(),
		SKUID:             skuID,
		LotNumber:         lotNumber,
		InitialQuantity:   initialQuantity,
		CurrentQuantity:   initialQuantity,
		CostPerUnit:       costPerUnit,
		ManufacturingDate: manufacturingDate,
		ExpiryDate:        expiryDate,
		SupplierID:        supplierID,
		SourceType:        sourceType,
		IsActive:          true,
	}, nil
}

// IsExpired returns true if the lot's expiry date has passed
func (l *Lot) IsExpired() bool {
	if l.ExpiryDate == nil {
		return false
	}
	return l.ExpiryDate.Before(time.Now())
}

// IsAllocatable returns true if the lot can supply an allocation
// (active, has stock, not expired)
func (l *Lot) IsAllocatable() bool {
	return l.IsActive && l.CurrentQuantity > 0 && !l.IsExpired()
}

// Deduct removes quantity from the lot. Deducting below zero is a
// programming-invariant violation guarded with INVALID_STATE, never clamped.
// The lot deactivates itself when it reaches zero.
func (l *Lot) Deduct(quantity int64) error {
	if quantity <= 0 {
		return shared.NewDomainError("VALIDATION_ERROR", "Deduct quantity must be positive")
	}
	if quantity > l.CurrentQuantity {
		return shared.NewDomainError("INVALID_STATE", "Lot quantity cannot go below zero")
	}

	l.CurrentQuantity -= quantity
	l.UpdatedAt = time.Now()
	if l.CurrentQuantity == 0 {
		l.Deactivate()
	}

	return nil
}

// Restock adds quantity back to the lot (return restock into the original
// lot). An expired lot is rejected outright: its quantity could never be
// allocated again, which would leave the counters crediting stock no active
// lot backs. Exceeding the initial quantity is guarded, never clamped.
func (l *Lot) Restock(quantity int64) error {
	if quantity <= 0 {
		return shared.NewDomainError("VALIDATION_ERROR", "Restock quantity must be positive")
	}
	if l.IsExpired() {
		return shared.NewDomainError("INVALID_STATE", "Cannot restock an expired lot")
	}
	if l.CurrentQuantity+quantity > l.InitialQuantity {
		return shared.NewDomainError("INVALID_STATE", "Lot quantity cannot exceed initial quantity")
	}

	l.CurrentQuantity += quantity
	l.UpdatedAt = time.Now()
	if !l.IsActive && l.CurrentQuantity > 0 {
		l.IsActive = true
		l.DeactivatedAt = nil
	}

	return nil
}

// Deactivate excludes the lot from future allocation. The lot stays readable
// for audit.
func (l *Lot) Deactivate() {
	if !l.IsActive {
		return
	}
	now := time.Now()
	l.IsActive = false
	l.DeactivatedAt = &now
	l.UpdatedAt = now
}

// TotalValue returns the value of the remaining quantity at lot cost
func (l *Lot) TotalValue() decimal.Decimal {
	return decimal.NewFromInt(l.CurrentQuantity).Mul(l.CostPerUnit)
}
