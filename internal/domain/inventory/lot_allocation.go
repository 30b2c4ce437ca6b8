package inventory

import (
	"sort"

	"github.com/commerce/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationStrategyType selects how lots are chosen for consumption
type AllocationStrategyType string

const (
	// AllocationStrategyFIFO consumes the oldest lots first (manufacturing date ascending)
	AllocationStrategyFIFO AllocationStrategyType = "FIFO"
	// AllocationStrategyFEFO consumes lots closest to expiry first
	AllocationStrategyFEFO AllocationStrategyType = "FEFO"
)

// IsValid returns true if the strategy type is valid
func (t AllocationStrategyType) IsValid() bool {
	switch t {
	case AllocationStrategyFIFO, AllocationStrategyFEFO:
		return true
	}
	return false
}

// String returns the string representation
func (t AllocationStrategyType) String() string {
	return string(t)
}

// LotAllocation is one line of an allocation plan: take QuantityTaken units
// from the named lot
type LotAllocation struct {
	LotID         uuid.UUID       `json:"lot_id"`
	LotNumber     string          `json:"lot_number"`
	QuantityTaken int64           `json:"quantity_taken"`
	CostPerUnit   decimal.Decimal `json:"cost_per_unit"`
}

// AllocationPlan is the complete result of selecting lots for a requested
// quantity. A plan is only produced when the full quantity is covered;
// computing a plan never mutates any lot.
type AllocationPlan struct {
	SKUID          string          `json:"sku_id"`
	Allocations    []LotAllocation `json:"allocations"`
	TotalAllocated int64           `json:"total_allocated"`
	TotalCost      decimal.Decimal `json:"total_cost"`
	LotsConsumed   []uuid.UUID     `json:"lots_consumed"` // lots the plan fully drains
}

// AllocationStrategy computes an allocation plan over a SKU's lots
type AllocationStrategy interface {
	// Name returns the strategy name for logging and movement metadata
	Name() string
	// SelectLots orders the eligible lots and allocates the requested
	// quantity across them. Fails with INSUFFICIENT_LOT_STOCK if the
	// eligible lots cannot cover the quantity; no lot is mutated either way.
	SelectLots(skuID string, quantity int64, lots []Lot) (*AllocationPlan, error)
}

// FIFOAllocationStrategy consumes the oldest eligible lots first, ordered by
// manufacturing date ascending with creation time as the tie-breaker.
type FIFOAllocationStrategy struct{}

// NewFIFOAllocationStrategy creates a new FIFO allocation strategy
func NewFIFOAllocationStrategy() *FIFOAllocationStrategy {
	return &FIFOAllocationStrategy{}
}

// Name returns the strategy name
func (s *FIFOAllocationStrategy) Name() string {
	return "fifo"
}

// SelectLots allocates in FIFO order
func (s *FIFOAllocationStrategy) SelectLots(skuID string, quantity int64, lots []Lot) (*AllocationPlan, error) {
	eligible, err := eligibleLots(quantity, lots)
	if err != nil {
		return nil, err
	}

	sort.Slice(eligible, func(i, j int) bool {
		if !eligible[i].ManufacturingDate.Equal(eligible[j].ManufacturingDate) {
			return eligible[i].ManufacturingDate.Before(eligible[j].ManufacturingDate)
		}
		return eligible[i].CreatedAt.Before(eligible[j].CreatedAt)
	})

	return buildPlan(skuID, quantity, eligible)
}

// FEFOAllocationStrategy consumes lots closest to expiry first. Lots without
// an expiry date come last, ordered FIFO among themselves.
type FEFOAllocationStrategy struct{}

// NewFEFOAllocationStrategy creates a new FEFO allocation strategy
func NewFEFOAllocationStrategy() *FEFOAllocationStrategy {
	return &FEFOAllocationStrategy{}
}

// Name returns the strategy name
func (s *FEFOAllocationStrategy) Name() string {
	return "fefo"
}

// SelectLots allocates in FEFO order
func (s *FEFOAllocationStrategy) SelectLots(skuID string, quantity int64, lots []Lot) (*AllocationPlan, error) {
	eligible, err := eligibleLots(quantity, lots)
	if err != nil {
		return nil, err
	}

	sort.Slice(eligible, func(i, j int) bool {
		li, lj := eligible[i], eligible[j]
		switch {
		case li.ExpiryDate != nil && lj.ExpiryDate != nil:
			if !li.ExpiryDate.Equal(*lj.ExpiryDate) {
				return li.ExpiryDate.Before(*lj.ExpiryDate)
			}
		case li.ExpiryDate != nil:
			return true
		case lj.ExpiryDate != nil:
			return false
		}
		if !li.ManufacturingDate.Equal(lj.ManufacturingDate) {
			return li.ManufacturingDate.Before(lj.ManufacturingDate)
		}
		return li.CreatedAt.Before(lj.CreatedAt)
	})

	return buildPlan(skuID, quantity, eligible)
}

// NewAllocationStrategy returns the strategy for the given type, defaulting
// to FIFO for unknown values
func NewAllocationStrategy(strategyType AllocationStrategyType) AllocationStrategy {
	if strategyType == AllocationStrategyFEFO {
		return NewFEFOAllocationStrategy()
	}
	return NewFIFOAllocationStrategy()
}

// AllocateFromLot builds a single-lot plan for a caller-specified lot,
// bypassing strategy ordering (e.g. a targeted return restock reversal or a
// lot-specific fulfillment).
func AllocateFromLot(skuID string, quantity int64, lot *Lot) (*AllocationPlan, error) {
	if quantity <= 0 {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Allocation quantity must be positive")
	}
	if lot == nil || lot.SKUID != skuID {
		return nil, shared.ErrNotFound
	}
	if !lot.IsAllocatable() || lot.CurrentQuantity < quantity {
		return nil, shared.ErrInsufficientLotStock
	}

	plan := &AllocationPlan{
		SKUID: skuID,
		Allocations: []LotAllocation{{
			LotID:         lot.ID,
			LotNumber:     lot.LotNumber,
			QuantityTaken: quantity,
			CostPerUnit:   lot.CostPerUnit,
		}},
		TotalAllocated: quantity,
		TotalCost:      decimal.NewFromInt(quantity).Mul(lot.CostPerUnit),
	}
	if lot.CurrentQuantity == quantity {
		plan.LotsConsumed = []uuid.UUID{lot.ID}
	}
	return plan, nil
}

// ApplyAllocationPlan deducts each plan line from the matching lot. Plans are
// computed against the same lot set inside one transaction, so a mismatch
// here is a programming-invariant violation.
func ApplyAllocationPlan(lots []*Lot, plan *AllocationPlan) error {
	if plan == nil {
		return shared.NewDomainError("VALIDATION_ERROR", "Allocation plan is required")
	}

	byID := make(map[uuid.UUID]*Lot, len(lots))
	for _, lot := range lots {
		byID[lot.ID] = lot
	}

	for _, alloc := range plan.Allocations {
		lot, ok := byID[alloc.LotID]
		if !ok {
			return shared.NewDomainError("INVALID_STATE", "Allocation references unknown lot "+alloc.LotID.String())
		}
		if err := lot.Deduct(alloc.QuantityTaken); err != nil {
			return err
		}
	}

	return nil
}

// eligibleLots filters to allocatable lots and verifies the requested
// quantity can be covered before any ordering is done
func eligibleLots(quantity int64, lots []Lot) ([]Lot, error) {
	if quantity <= 0 {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Allocation quantity must be positive")
	}

	eligible := make([]Lot, 0, len(lots))
	var total int64
	for _, lot := range lots {
		if lot.IsAllocatable() {
			eligible = append(eligible, lot)
			total += lot.CurrentQuantity
		}
	}

	if total < quantity {
		return nil, shared.ErrInsufficientLotStock
	}
	return eligible, nil
}

// buildPlan walks the ordered lots taking as much as each can give until the
// requested quantity is satisfied
func buildPlan(skuID string, quantity int64, ordered []Lot) (*AllocationPlan, error) {
	plan := &AllocationPlan{
		SKUID:       skuID,
		Allocations: make([]LotAllocation, 0, len(ordered)),
		TotalCost:   decimal.Zero,
	}

	remaining := quantity
	for _, lot := range ordered {
		if remaining == 0 {
			break
		}
		take := lot.CurrentQuantity
		if take > remaining {
			take = remaining
		}

		plan.Allocations = append(plan.Allocations, LotAllocation{
			LotID:         lot.ID,
			LotNumber:     lot.LotNumber,
			QuantityTaken: take,
			CostPerUnit:   lot.CostPerUnit,
		})
		plan.TotalAllocated += take
		plan.TotalCost = plan.TotalCost.Add(decimal.NewFromInt(take).Mul(lot.CostPerUnit))
		if take == lot.CurrentQuantity {
			plan.LotsConsumed = append(plan.LotsConsumed, lot.ID)
		}
		remaining -= take
	}

	// eligibleLots already verified coverage
	if remaining != 0 {
		return nil, shared.ErrInsufficientLotStock
	}
	return plan, nil
}
