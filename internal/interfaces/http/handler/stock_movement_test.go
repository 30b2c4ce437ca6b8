package handler

import (
	"context"
	"net/http"
	"testing"

	appinv "github.com/commerce/backend/internal/application/inventory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockMovementList(t *testing.T) {
	f := newAPIFixture(t)
	f.seedStock(t, "SKU-MV-1", 40)
	f.seedStock(t, "SKU-MV-2", 10)

	_, err := f.ledger.ReserveStock(context.Background(), appinv.ReserveStockRequest{
		SKUID:    "SKU-MV-1",
		Quantity: 5,
		OrderID:  "ORD-300",
	})
	require.NoError(t, err)

	t.Run("filters by SKU", func(t *testing.T) {
		w := f.do(t, "GET", "/api/v1/stock-movements?sku_id=SKU-MV-1", nil)

		require.Equal(t, http.StatusOK, w.Code)
		resp := decodeAs[[]appinv.StockMovementResponse](t, w)
		assert.Len(t, resp.Data, 2)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, int64(2), resp.Meta.Total)
	})

	t.Run("filters by movement type", func(t *testing.T) {
		w := f.do(t, "GET", "/api/v1/stock-movements?sku_id=SKU-MV-1&movement_type=ORDER_FULFILLMENT", nil)

		require.Equal(t, http.StatusOK, w.Code)
		resp := decodeAs[[]appinv.StockMovementResponse](t, w)
		require.Len(t, resp.Data, 1)
		assert.Equal(t, int64(-5), resp.Data[0].QuantityDelta)
		assert.Equal(t, int64(5), resp.Data[0].ReservedDelta)
	})

	t.Run("unfiltered list spans SKUs", func(t *testing.T) {
		w := f.do(t, "GET", "/api/v1/stock-movements", nil)

		require.Equal(t, http.StatusOK, w.Code)
		resp := decodeAs[[]appinv.StockMovementResponse](t, w)
		assert.Len(t, resp.Data, 3)
	})
}

func TestStockMovementGetByReference(t *testing.T) {
	f := newAPIFixture(t)
	f.seedStock(t, "SKU-REF-1", 20)

	_, err := f.ledger.ReserveStock(context.Background(), appinv.ReserveStockRequest{
		SKUID:    "SKU-REF-1",
		Quantity: 3,
		OrderID:  "ORD-400",
	})
	require.NoError(t, err)
	_, err = f.ledger.ReleaseStock(context.Background(), appinv.ReleaseStockRequest{
		SKUID:    "SKU-REF-1",
		Quantity: 3,
		OrderID:  "ORD-400",
	})
	require.NoError(t, err)

	t.Run("returns every movement for an order", func(t *testing.T) {
		w := f.do(t, "GET", "/api/v1/stock-movements/reference/ORDER/ORD-400", nil)

		require.Equal(t, http.StatusOK, w.Code)
		resp := decodeAs[[]appinv.StockMovementResponse](t, w)
		require.Len(t, resp.Data, 2)
		for _, m := range resp.Data {
			assert.Equal(t, "ORD-400", m.ReferenceID)
		}
	})

	t.Run("invalid reference type returns 400", func(t *testing.T) {
		w := f.do(t, "GET", "/api/v1/stock-movements/reference/INVOICE/ORD-400", nil)

		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestStockMovementReplay(t *testing.T) {
	f := newAPIFixture(t)
	f.seedStock(t, "SKU-RP-1", 30)

	_, err := f.ledger.ReserveStock(context.Background(), appinv.ReserveStockRequest{
		SKUID:    "SKU-RP-1",
		Quantity: 10,
		OrderID:  "ORD-500",
	})
	require.NoError(t, err)

	w := f.do(t, "GET", "/api/v1/stock-movements/replay/SKU-RP-1", nil)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeAs[appinv.ReconstructedStateResponse](t, w)
	assert.Equal(t, "SKU-RP-1", resp.Data.SKUID)
	assert.Equal(t, int64(20), resp.Data.TotalAvailableStock)
	assert.Equal(t, int64(10), resp.Data.TotalReservedStock)
	assert.Equal(t, 2, resp.Data.MovementCount)
}

func TestStockMovementVerifyAndReconcile(t *testing.T) {
	f := newAPIFixture(t)
	f.seedStock(t, "SKU-VER-1", 15)

	t.Run("clean ledger verifies consistent", func(t *testing.T) {
		w := f.do(t, "GET", "/api/v1/stock-movements/verify/SKU-VER-1", nil)

		require.Equal(t, http.StatusOK, w.Code)
		resp := decodeAs[appinv.VerificationResultResponse](t, w)
		assert.True(t, resp.Data.Consistent)
		assert.Equal(t, int64(0), resp.Data.AvailableDrift)
	})

	t.Run("tampered counters are detected and repaired", func(t *testing.T) {
		// drift the live record behind the movement log's back
		err := f.db.Exec(
			"UPDATE inventory_records SET total_available_stock = 99 WHERE sku_id = ?",
			"SKU-VER-1").Error
		require.NoError(t, err)

		w := f.do(t, "GET", "/api/v1/stock-movements/verify/SKU-VER-1", nil)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decodeAs[appinv.VerificationResultResponse](t, w)
		assert.False(t, resp.Data.Consistent)
		assert.Equal(t, int64(84), resp.Data.AvailableDrift)

		w = f.do(t, "POST", "/api/v1/stock-movements/reconcile/SKU-VER-1", nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = f.do(t, "GET", "/api/v1/stock/SKU-VER-1", nil)
		record := decodeAs[appinv.InventoryRecordResponse](t, w)
		assert.Equal(t, int64(15), record.Data.TotalAvailableStock)

		w = f.do(t, "GET", "/api/v1/stock-movements/verify/SKU-VER-1", nil)
		verified := decodeAs[appinv.VerificationResultResponse](t, w)
		assert.True(t, verified.Data.Consistent)
	})

	t.Run("unknown SKU returns 404", func(t *testing.T) {
		w := f.do(t, "GET", "/api/v1/stock-movements/verify/SKU-GHOST", nil)

		require.Equal(t, http.StatusNotFound, w.Code)
	})
}
