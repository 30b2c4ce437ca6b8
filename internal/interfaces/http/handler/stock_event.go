package handler

import (
	inventoryapp "github.com/commerce/backend/internal/application/inventory"
	"github.com/gin-gonic/gin"
)

// StockEventHandler is the business-event facade: order lifecycle and
// warehouse events enter here and the coordinator maps them to ledger
// operations. Deliveries repeated under the same event ID are absorbed.
type StockEventHandler struct {
	BaseHandler
	coordinator *inventoryapp.TransactionCoordinator
}

// NewStockEventHandler creates a new StockEventHandler
func NewStockEventHandler(coordinator *inventoryapp.TransactionCoordinator) *StockEventHandler {
	return &StockEventHandler{coordinator: coordinator}
}

// Apply executes one business event against the stock ledger
func (h *StockEventHandler) Apply(c *gin.Context) {
	var req inventoryapp.StockEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	result, err := h.coordinator.Apply(c.Request.Context(), req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}
