package handler

import (
	inventoryapp "github.com/commerce/backend/internal/application/inventory"
	"github.com/commerce/backend/internal/domain/shared"
	"github.com/commerce/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// StockLedgerHandler handles per-SKU counter endpoints: queries, manual
// adjustments, reservations, releases, and threshold management.
type StockLedgerHandler struct {
	BaseHandler
	ledger *inventoryapp.LedgerService
}

// NewStockLedgerHandler creates a new StockLedgerHandler
func NewStockLedgerHandler(ledger *inventoryapp.LedgerService) *StockLedgerHandler {
	return &StockLedgerHandler{ledger: ledger}
}

// GetBySKU retrieves the inventory record for a SKU
func (h *StockLedgerHandler) GetBySKU(c *gin.Context) {
	skuID := c.Param("sku_id")
	if skuID == "" {
		h.BadRequest(c, "sku_id is required")
		return
	}

	record, err := h.ledger.GetBySKU(c.Request.Context(), skuID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, record)
}

// List retrieves a paginated list of inventory records
func (h *StockLedgerHandler) List(c *gin.Context) {
	req := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 20
	}

	page, err := h.ledger.List(c.Request.Context(), shared.Filter{
		Page:     req.Page,
		PageSize: req.PageSize,
		OrderBy:  req.OrderBy,
		OrderDir: req.OrderDir,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// ListBelowThreshold retrieves all SKUs currently below their low stock threshold
func (h *StockLedgerHandler) ListBelowThreshold(c *gin.Context) {
	records, err := h.ledger.FindBelowThreshold(c.Request.Context())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, records)
}

// Adjust applies a signed manual adjustment to a SKU's available stock
func (h *StockLedgerHandler) Adjust(c *gin.Context) {
	var req inventoryapp.AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	record, err := h.ledger.AdjustStock(c.Request.Context(), req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, record)
}

// Reserve moves available stock into the reserved bucket for an order
func (h *StockLedgerHandler) Reserve(c *gin.Context) {
	var req inventoryapp.ReserveStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	record, err := h.ledger.ReserveStock(c.Request.Context(), req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, record)
}

// Release returns reserved stock to available on order cancellation
func (h *StockLedgerHandler) Release(c *gin.Context) {
	var req inventoryapp.ReleaseStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	record, err := h.ledger.ReleaseStock(c.Request.Context(), req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, record)
}

// UpdateThreshold sets a SKU's low stock threshold and reorder metadata
func (h *StockLedgerHandler) UpdateThreshold(c *gin.Context) {
	var req inventoryapp.UpdateThresholdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	record, err := h.ledger.UpdateThreshold(c.Request.Context(), req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, record)
}
