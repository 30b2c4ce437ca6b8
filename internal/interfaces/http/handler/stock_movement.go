package handler

import (
	"time"

	inventoryapp "github.com/commerce/backend/internal/application/inventory"
	"github.com/gin-gonic/gin"
)

// StockMovementHandler exposes the append-only movement log: paginated
// queries, reference lookups, replay, verification, and reconciliation.
type StockMovementHandler struct {
	BaseHandler
	audit *inventoryapp.AuditTrailService
}

// NewStockMovementHandler creates a new StockMovementHandler
func NewStockMovementHandler(audit *inventoryapp.AuditTrailService) *StockMovementHandler {
	return &StockMovementHandler{audit: audit}
}

// List retrieves a filtered, paginated slice of the movement log
func (h *StockMovementHandler) List(c *gin.Context) {
	var filter inventoryapp.MovementListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindingError(c, err)
		return
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	page, err := h.audit.ListMovements(c.Request.Context(), filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// GetByReference retrieves every movement booked under a business reference,
// e.g. all rows written for one order
func (h *StockMovementHandler) GetByReference(c *gin.Context) {
	referenceType := c.Param("reference_type")
	referenceID := c.Param("reference_id")
	if referenceType == "" || referenceID == "" {
		h.BadRequest(c, "reference_type and reference_id are required")
		return
	}

	movements, err := h.audit.GetByReference(c.Request.Context(), referenceType, referenceID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, movements)
}

// Replay reconstructs a SKU's counters from its movement history. An
// optional upto query parameter (RFC 3339) replays only up to that point.
func (h *StockMovementHandler) Replay(c *gin.Context) {
	skuID := c.Param("sku_id")
	if skuID == "" {
		h.BadRequest(c, "sku_id is required")
		return
	}

	var upto *time.Time
	if raw := c.Query("upto"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.BadRequest(c, "upto must be an RFC 3339 timestamp")
			return
		}
		upto = &parsed
	}

	state, err := h.audit.Reconstruct(c.Request.Context(), skuID, upto)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, state)
}

// Verify compares a SKU's live counters against the replayed movement history
func (h *StockMovementHandler) Verify(c *gin.Context) {
	skuID := c.Param("sku_id")
	if skuID == "" {
		h.BadRequest(c, "sku_id is required")
		return
	}

	result, err := h.audit.Verify(c.Request.Context(), skuID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}

// Reconcile repairs a drifted SKU by resetting its counters to the replayed
// state
func (h *StockMovementHandler) Reconcile(c *gin.Context) {
	skuID := c.Param("sku_id")
	if skuID == "" {
		h.BadRequest(c, "sku_id is required")
		return
	}

	result, err := h.audit.Reconcile(c.Request.Context(), skuID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}
