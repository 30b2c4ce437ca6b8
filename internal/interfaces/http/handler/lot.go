package handler

import (
	"strconv"
	"time"

	inventoryapp "github.com/commerce/backend/internal/application/inventory"
	"github.com/commerce/backend/internal/domain/shared"
	"github.com/commerce/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LotHandler handles lot lifecycle endpoints: inward receipts, lot-backed
// fulfillment, return restocks, deactivation, and expiry write-offs.
type LotHandler struct {
	BaseHandler
	lots *inventoryapp.LotService
}

// NewLotHandler creates a new LotHandler
func NewLotHandler(lots *inventoryapp.LotService) *LotHandler {
	return &LotHandler{lots: lots}
}

// DeactivateLotRequest is the body for lot deactivation
type DeactivateLotRequest struct {
	Reason      string `json:"reason" binding:"required,min=1,max=255"`
	PerformedBy string `json:"performed_by"`
}

// WriteOffExpiredRequest optionally overrides the expiry cutoff
type WriteOffExpiredRequest struct {
	AsOf *time.Time `json:"as_of"`
}

// GetByID retrieves a lot by its ID
func (h *LotHandler) GetByID(c *gin.Context) {
	lotID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid lot ID format")
		return
	}

	lot, err := h.lots.GetLot(c.Request.Context(), lotID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, lot)
}

// List retrieves a SKU's lots with pagination
func (h *LotHandler) List(c *gin.Context) {
	skuID := c.Query("sku_id")
	if skuID == "" {
		h.BadRequest(c, "sku_id is required")
		return
	}

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

	page, err := h.lots.ListLots(c.Request.Context(), skuID, shared.Filter{
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

// PreviewAllocation computes the lot allocation plan for a quantity without
// consuming anything
func (h *LotHandler) PreviewAllocation(c *gin.Context) {
	skuID := c.Query("sku_id")
	if skuID == "" {
		h.BadRequest(c, "sku_id is required")
		return
	}

	quantity, err := strconv.ParseInt(c.Query("quantity"), 10, 64)
	if err != nil || quantity <= 0 {
		h.BadRequest(c, "quantity must be a positive integer")
		return
	}

	plan, err := h.lots.PreviewAllocation(c.Request.Context(), skuID, quantity)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, plan)
}

// Receive books an inward lot receipt
func (h *LotHandler) Receive(c *gin.Context) {
	var req inventoryapp.ReceiveLotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	lot, err := h.lots.ReceiveInward(c.Request.Context(), req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, lot)
}

// Fulfill converts a reservation into a lot-backed shipment
func (h *LotHandler) Fulfill(c *gin.Context) {
	var req inventoryapp.FulfillStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	result, err := h.lots.FulfillReservedStock(c.Request.Context(), req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}

// Return restocks a completed customer return
func (h *LotHandler) Return(c *gin.Context) {
	var req inventoryapp.ReturnRestockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	record, err := h.lots.ReturnRestock(c.Request.Context(), req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, record)
}

// Deactivate removes a lot from allocation and debits its remaining quantity
func (h *LotHandler) Deactivate(c *gin.Context) {
	lotID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid lot ID format")
		return
	}

	var req DeactivateLotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	lot, err := h.lots.DeactivateLot(c.Request.Context(), lotID, req.Reason, req.PerformedBy)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, lot)
}

// WriteOffExpired writes off every expired lot that still carries quantity
func (h *LotHandler) WriteOffExpired(c *gin.Context) {
	var req WriteOffExpiredRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindingError(c, err)
			return
		}
	}

	asOf := time.Now()
	if req.AsOf != nil {
		asOf = *req.AsOf
	}

	results, err := h.lots.WriteOffExpiredLots(c.Request.Context(), asOf)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, results)
}
