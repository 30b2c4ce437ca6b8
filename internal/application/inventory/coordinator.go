package inventory

import (
	"context"
	"fmt"

	"github.com/commerce/backend/internal/domain/inventory"
	"github.com/commerce/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// BusinessEventType is an order-lifecycle or warehouse event that the
// coordinator translates into ledger operations
type BusinessEventType string

const (
	// BusinessEventOrderPlaced reserves stock at checkout
	BusinessEventOrderPlaced BusinessEventType = "ORDER_PLACED"
	// BusinessEventOrderCancelled releases a reservation
	BusinessEventOrderCancelled BusinessEventType = "ORDER_CANCELLED"
	// BusinessEventOrderShipped converts a reservation into a lot-backed shipment
	BusinessEventOrderShipped BusinessEventType = "ORDER_SHIPPED"
	// BusinessEventLotReceived books an inward lot receipt
	BusinessEventLotReceived BusinessEventType = "LOT_RECEIVED"
	// BusinessEventReturnCompleted restocks a completed customer return
	BusinessEventReturnCompleted BusinessEventType = "RETURN_COMPLETED"
	// BusinessEventAdminAdjustment applies a signed manual correction
	BusinessEventAdminAdjustment BusinessEventType = "ADMIN_ADJUSTMENT"
)

// IsValid returns true if the business event type is valid
func (t BusinessEventType) IsValid() bool {
	switch t {
	case BusinessEventOrderPlaced, BusinessEventOrderCancelled,
		BusinessEventOrderShipped, BusinessEventLotReceived,
		BusinessEventReturnCompleted, BusinessEventAdminAdjustment:
		return true
	}
	return false
}

// String returns the string representation
func (t BusinessEventType) String() string {
	return string(t)
}

// StockEventRequest is one business event for the coordinator to apply.
// Exactly one payload matching the event type must be set.
type StockEventRequest struct {
	EventType string `json:"event_type" binding:"required"`
	// EventID keys idempotency. Optional; defaults to the event type plus
	// the payload's business reference.
	EventID    string                `json:"event_id"`
	Reserve    *ReserveStockRequest  `json:"reserve,omitempty"`
	Release    *ReleaseStockRequest  `json:"release,omitempty"`
	Fulfill    *FulfillStockRequest  `json:"fulfill,omitempty"`
	LotReceipt *ReceiveLotRequest    `json:"lot_receipt,omitempty"`
	Return     *ReturnRestockRequest `json:"return,omitempty"`
	// Adjust carries ADMIN_ADJUSTMENT corrections. It also serves as the
	// alternate payload for ORDER_SHIPPED when the caller decrements without
	// a prior reservation, and for ORDER_CANCELLED when the order was already
	// fulfilled and the quantity must be restocked.
	Adjust *AdjustStockRequest `json:"adjust,omitempty"`
}

// StockEventResult reports what applying a business event produced
type StockEventResult struct {
	EventID     string                   `json:"event_id"`
	EventType   string                   `json:"event_type"`
	Duplicate   bool                     `json:"duplicate"`
	Record      *InventoryRecordResponse `json:"record,omitempty"`
	Lot         *LotResponse             `json:"lot,omitempty"`
	Fulfillment *FulfillStockResponse    `json:"fulfillment,omitempty"`
}

// TransactionCoordinator is the single entry point for order-lifecycle and
// warehouse events. It maps each business event to the ledger operation that
// implements it; the operation itself commits counters, lots, and the
// movement row in one transaction. Replayed deliveries of the same event ID
// are absorbed by the idempotency store.
type TransactionCoordinator struct {
	ledger      *LedgerService
	lots        *LotService
	idempotency shared.IdempotencyStore
	idemConfig  shared.IdempotencyConfig
	logger      *zap.Logger
}

// NewTransactionCoordinator creates a new TransactionCoordinator
func NewTransactionCoordinator(
	ledger *LedgerService,
	lots *LotService,
	idempotency shared.IdempotencyStore,
	logger *zap.Logger,
) *TransactionCoordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransactionCoordinator{
		ledger:      ledger,
		lots:        lots,
		idempotency: idempotency,
		idemConfig:  shared.DefaultIdempotencyConfig(),
		logger:      logger,
	}
}

// SetIdempotencyConfig overrides the idempotency TTL and enablement
func (c *TransactionCoordinator) SetIdempotencyConfig(config shared.IdempotencyConfig) {
	c.idemConfig = config
}

// Apply executes one business event against the ledger. A duplicate event ID
// returns a Duplicate result with no state change; a failed event leaves no
// partial writes behind.
func (c *TransactionCoordinator) Apply(ctx context.Context, req StockEventRequest) (*StockEventResult, error) {
	eventType := BusinessEventType(req.EventType)
	if !eventType.IsValid() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Invalid business event type")
	}

	eventID := req.EventID
	if eventID == "" {
		eventID = c.defaultEventID(eventType, req)
	}
	if eventID == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "An event_id or a payload with a business reference is required")
	}

	result := &StockEventResult{
		EventID:   eventID,
		EventType: eventType.String(),
	}

	if c.idempotency != nil && c.idemConfig.Enabled {
		processed, err := c.idempotency.IsProcessed(ctx, eventID)
		if err != nil {
			c.logger.Warn("failed to check idempotency, processing anyway",
				zap.String("event_id", eventID),
				zap.String("event_type", req.EventType),
				zap.Error(err),
			)
		} else if processed {
			c.logger.Debug("duplicate stock event, skipping",
				zap.String("event_id", eventID),
				zap.String("event_type", req.EventType),
			)
			result.Duplicate = true
			return result, nil
		}
	}

	if err := c.dispatch(ctx, eventType, req, result); err != nil {
		c.logger.Error("stock event failed",
			zap.String("event_id", eventID),
			zap.String("event_type", req.EventType),
			zap.Error(err),
		)
		return nil, err
	}

	// Marked only after commit so a failed event stays retryable
	if c.idempotency != nil && c.idemConfig.Enabled {
		if _, err := c.idempotency.MarkProcessed(ctx, eventID, c.idemConfig.TTL); err != nil {
			c.logger.Warn("failed to mark stock event processed",
				zap.String("event_id", eventID),
				zap.Error(err),
			)
		}
	}

	c.logger.Info("stock event applied",
		zap.String("event_id", eventID),
		zap.String("event_type", req.EventType),
	)

	return result, nil
}

func (c *TransactionCoordinator) dispatch(ctx context.Context, eventType BusinessEventType, req StockEventRequest, result *StockEventResult) error {
	switch eventType {
	case BusinessEventOrderPlaced:
		if req.Reserve == nil {
			return shared.NewDomainError("VALIDATION_ERROR", "ORDER_PLACED requires a reserve payload")
		}
		record, err := c.ledger.ReserveStock(ctx, *req.Reserve)
		if err != nil {
			return err
		}
		result.Record = record

	case BusinessEventOrderCancelled:
		switch {
		case req.Release != nil:
			record, err := c.ledger.ReleaseStock(ctx, *req.Release)
			if err != nil {
				return err
			}
			result.Record = record
		case req.Adjust != nil:
			// The order was fulfilled before the cancellation arrived; the
			// quantity goes back as a restock adjustment booked under the
			// cancellation, not as a manual correction.
			if req.Adjust.Delta <= 0 {
				return shared.NewDomainError("VALIDATION_ERROR", "ORDER_CANCELLED restock requires a positive delta")
			}
			record, err := c.ledger.adjustStock(ctx, *req.Adjust, inventory.MovementTypeOrderCancel, inventory.ReferenceTypeOrder)
			if err != nil {
				return err
			}
			result.Record = record
		default:
			return shared.NewDomainError("VALIDATION_ERROR", "ORDER_CANCELLED requires a release or adjust payload")
		}

	case BusinessEventOrderShipped:
		switch {
		case req.Fulfill != nil:
			fulfillment, err := c.lots.FulfillReservedStock(ctx, *req.Fulfill)
			if err != nil {
				return err
			}
			result.Fulfillment = fulfillment
			result.Record = &fulfillment.Record
		case req.Adjust != nil:
			// Shipment without a prior reservation decrements directly,
			// booked as a fulfillment so order reporting stays accurate.
			if req.Adjust.Delta >= 0 {
				return shared.NewDomainError("VALIDATION_ERROR", "ORDER_SHIPPED direct decrement requires a negative delta")
			}
			record, err := c.ledger.adjustStock(ctx, *req.Adjust, inventory.MovementTypeOrderFulfillment, inventory.ReferenceTypeOrder)
			if err != nil {
				return err
			}
			result.Record = record
		default:
			return shared.NewDomainError("VALIDATION_ERROR", "ORDER_SHIPPED requires a fulfill or adjust payload")
		}

	case BusinessEventLotReceived:
		if req.LotReceipt == nil {
			return shared.NewDomainError("VALIDATION_ERROR", "LOT_RECEIVED requires a lot receipt payload")
		}
		lot, err := c.lots.ReceiveInward(ctx, *req.LotReceipt)
		if err != nil {
			return err
		}
		result.Lot = lot

	case BusinessEventReturnCompleted:
		if req.Return == nil {
			return shared.NewDomainError("VALIDATION_ERROR", "RETURN_COMPLETED requires a return payload")
		}
		record, err := c.lots.ReturnRestock(ctx, *req.Return)
		if err != nil {
			return err
		}
		result.Record = record

	case BusinessEventAdminAdjustment:
		if req.Adjust == nil {
			return shared.NewDomainError("VALIDATION_ERROR", "ADMIN_ADJUSTMENT requires an adjust payload")
		}
		record, err := c.ledger.AdjustStock(ctx, *req.Adjust)
		if err != nil {
			return err
		}
		result.Record = record
	}

	return nil
}

// defaultEventID derives an idempotency key from the event type and the
// payload's business reference
func (c *TransactionCoordinator) defaultEventID(eventType BusinessEventType, req StockEventRequest) string {
	switch eventType {
	case BusinessEventOrderPlaced:
		if req.Reserve != nil {
			return fmt.Sprintf("%s:%s:%s", eventType, req.Reserve.SKUID, req.Reserve.OrderID)
		}
	case BusinessEventOrderCancelled:
		if req.Release != nil {
			return fmt.Sprintf("%s:%s:%s", eventType, req.Release.SKUID, req.Release.OrderID)
		}
		if req.Adjust != nil && req.Adjust.ReferenceID != "" {
			return fmt.Sprintf("%s:%s:%s", eventType, req.Adjust.SKUID, req.Adjust.ReferenceID)
		}
	case BusinessEventOrderShipped:
		if req.Fulfill != nil {
			return fmt.Sprintf("%s:%s:%s", eventType, req.Fulfill.SKUID, req.Fulfill.OrderID)
		}
		if req.Adjust != nil && req.Adjust.ReferenceID != "" {
			return fmt.Sprintf("%s:%s:%s", eventType, req.Adjust.SKUID, req.Adjust.ReferenceID)
		}
	case BusinessEventLotReceived:
		if req.LotReceipt != nil {
			return fmt.Sprintf("%s:%s:%s", eventType, req.LotReceipt.SKUID, req.LotReceipt.LotNumber)
		}
	case BusinessEventReturnCompleted:
		if req.Return != nil {
			return fmt.Sprintf("%s:%s:%s", eventType, req.Return.SKUID, req.Return.ReturnID)
		}
	case BusinessEventAdminAdjustment:
		if req.Adjust != nil && req.Adjust.ReferenceID != "" {
			return fmt.Sprintf("%s:%s:%s", eventType, req.Adjust.SKUID, req.Adjust.ReferenceID)
		}
	}
	return ""
}
