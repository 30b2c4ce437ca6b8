package inventory

import (
	"context"
	"fmt"

	"github.com/commerce/backend/internal/domain/inventory"
	"github.com/commerce/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// StockAlertNotifier is the interface for sending stock alerts.
// Implementations can support different channels (in-app, email, SMS, etc.)
type StockAlertNotifier interface {
	// SendAlert sends a stock alert notification
	SendAlert(ctx context.Context, alert StockAlert) error
}

// StockAlert represents a stock level alert
type StockAlert struct {
	SKUID             string   `json:"sku_id"`
	AvailableStock    int64    `json:"available_stock"`
	LowStockThreshold int64    `json:"low_stock_threshold"`
	ReorderPoint      int64    `json:"reorder_point,omitempty"`
	ReorderQuantity   int64    `json:"reorder_quantity,omitempty"`
	AlertType         string   `json:"alert_type"` // "low_stock", "out_of_stock", "reorder"
	Channels          []string `json:"channels"`   // "in_app", "email", "sms"
}

// LowStockHandler reacts to StockBelowThreshold and ReorderPointReached
// events by raising alerts
type LowStockHandler struct {
	logger   *zap.Logger
	notifier StockAlertNotifier
}

// NewLowStockHandler creates a new handler for low-stock events
func NewLowStockHandler(logger *zap.Logger) *LowStockHandler {
	return &LowStockHandler{
		logger: logger,
	}
}

// WithNotifier sets the notifier for sending alerts
func (h *LowStockHandler) WithNotifier(notifier StockAlertNotifier) *LowStockHandler {
	h.notifier = notifier
	return h
}

// EventTypes returns the event types this handler is interested in
func (h *LowStockHandler) EventTypes() []string {
	return []string{
		inventory.EventTypeStockBelowThreshold,
		inventory.EventTypeReorderPointReached,
	}
}

// Handle processes a low-stock event
func (h *LowStockHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	var alert StockAlert
	switch e := event.(type) {
	case *inventory.StockBelowThresholdEvent:
		alert = StockAlert{
			SKUID:             e.SKUID,
			AvailableStock:    e.AvailableStock,
			LowStockThreshold: e.LowStockThreshold,
			AlertType:         "low_stock",
			Channels:          []string{"in_app"},
		}
		if e.AvailableStock == 0 {
			alert.AlertType = "out_of_stock"
		}
	case *inventory.ReorderPointReachedEvent:
		alert = StockAlert{
			SKUID:           e.SKUID,
			AvailableStock:  e.AvailableStock,
			ReorderPoint:    e.ReorderPoint,
			ReorderQuantity: e.ReorderQuantity,
			AlertType:       "reorder",
			Channels:        []string{"in_app"},
		}
	default:
		h.logger.Error("unexpected event type",
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: %s", event.EventType())
	}

	h.logger.Warn("stock alert raised",
		zap.String("sku_id", alert.SKUID),
		zap.String("alert_type", alert.AlertType),
		zap.Int64("available_stock", alert.AvailableStock),
	)

	if h.notifier != nil {
		if err := h.notifier.SendAlert(ctx, alert); err != nil {
			h.logger.Error("failed to send stock alert notification",
				zap.String("sku_id", alert.SKUID),
				zap.Error(err),
			)
			// Notification failure does not fail the event handling
		}
	}

	return nil
}

// Ensure LowStockHandler implements shared.EventHandler
var _ shared.EventHandler = (*LowStockHandler)(nil)

// LoggingStockAlertNotifier is a simple notifier that logs alerts.
// This is useful for development and testing.
type LoggingStockAlertNotifier struct {
	logger *zap.Logger
}

// NewLoggingStockAlertNotifier creates a new logging notifier
func NewLoggingStockAlertNotifier(logger *zap.Logger) *LoggingStockAlertNotifier {
	return &LoggingStockAlertNotifier{
		logger: logger,
	}
}

// SendAlert logs the stock alert
func (n *LoggingStockAlertNotifier) SendAlert(ctx context.Context, alert StockAlert) error {
	n.logger.Warn("STOCK ALERT",
		zap.String("type", alert.AlertType),
		zap.String("sku_id", alert.SKUID),
		zap.Int64("available_stock", alert.AvailableStock),
		zap.Int64("low_stock_threshold", alert.LowStockThreshold),
		zap.Strings("channels", alert.Channels),
	)
	return nil
}

// Ensure LoggingStockAlertNotifier implements StockAlertNotifier
var _ StockAlertNotifier = (*LoggingStockAlertNotifier)(nil)
