package handler

import (
	"net/http"
	"testing"
	"time"

	appinv "github.com/commerce/backend/internal/application/inventory"
	"github.com/commerce/backend/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockEventApply(t *testing.T) {
	f := newAPIFixture(t)

	receipt := appinv.StockEventRequest{
		EventType: "LOT_RECEIVED",
		EventID:   "evt-receipt-1",
		LotReceipt: &appinv.ReceiveLotRequest{
			SKUID:             "SKU-EVT-1",
			LotNumber:         "LOT-E1",
			Quantity:          30,
			CostPerUnit:       decimal.NewFromInt(4),
			ManufacturingDate: time.Now().Add(-24 * time.Hour),
			ReferenceID:       "PO-EVT-1",
		},
	}

	t.Run("LOT_RECEIVED books the lot", func(t *testing.T) {
		w := f.do(t, "POST", "/api/v1/stock-events", receipt)

		require.Equal(t, http.StatusOK, w.Code)
		resp := decodeAs[appinv.StockEventResult](t, w)
		assert.Equal(t, "evt-receipt-1", resp.Data.EventID)
		assert.False(t, resp.Data.Duplicate)
		require.NotNil(t, resp.Data.Lot)
		assert.Equal(t, int64(30), resp.Data.Lot.CurrentQuantity)
	})

	t.Run("redelivery of the same event ID is absorbed", func(t *testing.T) {
		w := f.do(t, "POST", "/api/v1/stock-events", receipt)

		require.Equal(t, http.StatusOK, w.Code)
		resp := decodeAs[appinv.StockEventResult](t, w)
		assert.True(t, resp.Data.Duplicate)
		assert.Nil(t, resp.Data.Lot)

		rw := f.do(t, "GET", "/api/v1/stock/SKU-EVT-1", nil)
		record := decodeAs[appinv.InventoryRecordResponse](t, rw)
		assert.Equal(t, int64(30), record.Data.TotalAvailableStock)
	})

	t.Run("order lifecycle drives the ledger", func(t *testing.T) {
		w := f.do(t, "POST", "/api/v1/stock-events", appinv.StockEventRequest{
			EventType: "ORDER_PLACED",
			Reserve: &appinv.ReserveStockRequest{
				SKUID:    "SKU-EVT-1",
				Quantity: 8,
				OrderID:  "ORD-EVT-1",
			},
		})
		require.Equal(t, http.StatusOK, w.Code)
		placed := decodeAs[appinv.StockEventResult](t, w)
		require.NotNil(t, placed.Data.Record)
		assert.Equal(t, int64(8), placed.Data.Record.TotalReservedStock)

		w = f.do(t, "POST", "/api/v1/stock-events", appinv.StockEventRequest{
			EventType: "ORDER_SHIPPED",
			Fulfill: &appinv.FulfillStockRequest{
				SKUID:    "SKU-EVT-1",
				Quantity: 8,
				OrderID:  "ORD-EVT-1",
			},
		})
		require.Equal(t, http.StatusOK, w.Code)
		shipped := decodeAs[appinv.StockEventResult](t, w)
		require.NotNil(t, shipped.Data.Fulfillment)
		assert.Equal(t, int64(0), shipped.Data.Record.TotalReservedStock)
		assert.Equal(t, int64(22), shipped.Data.Record.PhysicalStock)
	})

	t.Run("failed events do not consume the event ID", func(t *testing.T) {
		overdraw := appinv.StockEventRequest{
			EventType: "ORDER_PLACED",
			EventID:   "evt-overdraw-1",
			Reserve: &appinv.ReserveStockRequest{
				SKUID:    "SKU-EVT-1",
				Quantity: 9999,
				OrderID:  "ORD-EVT-2",
			},
		}

		w := f.do(t, "POST", "/api/v1/stock-events", overdraw)
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)

		// a retry with a feasible quantity succeeds under the same ID
		overdraw.Reserve.Quantity = 1
		w = f.do(t, "POST", "/api/v1/stock-events", overdraw)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decodeAs[appinv.StockEventResult](t, w)
		assert.False(t, resp.Data.Duplicate)
	})

	t.Run("unknown event type returns 400", func(t *testing.T) {
		w := f.do(t, "POST", "/api/v1/stock-events", appinv.StockEventRequest{
			EventType: "ORDER_EXPLODED",
		})

		require.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeAs[any](t, w)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	})

	t.Run("missing payload returns 400", func(t *testing.T) {
		w := f.do(t, "POST", "/api/v1/stock-events", appinv.StockEventRequest{
			EventType: "ORDER_CANCELLED",
			EventID:   "evt-cancel-1",
		})

		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}
