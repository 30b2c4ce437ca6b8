package inventory

import (
	"testing"
	"time"

	"github.com/commerce/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestLot(t *testing.T, quantity int64) *Lot {
	t.Helper()
	lot, err := NewLot(
		"SKU-001", "LOT-2026-001",
		quantity,
		decimal.NewFromFloat(12.50),
		time.Now().AddDate(0, -1, 0),
		nil,
		"SUP-01",
		LotSourcePurchase,
	)
	require.NoError(t, err)
	return lot
}

func TestNewLot(t *testing.T) {
	manufactured := time.Now().AddDate(0, -1, 0)

	t.Run("creates lot with full quantity current", func(t *testing.T) {
		expiry := manufactured.AddDate(1, 0, 0)
		lot, err := NewLot("SKU-001", "LOT-A", 500, decimal.NewFromInt(3), manufactured, &expiry, "SUP-01", LotSourcePurchase)

		require.NoError(t, err)
		assert.Equal(t, int64(500), lot.InitialQuantity)
		assert.Equal(t, int64(500), lot.CurrentQuantity)
		assert.True(t, lot.IsActive)
		assert.True(t, lot.IsAllocatable())
	})

	t.Run("fails with non-positive quantity", func(t *testing.T) {
		lot, err := NewLot("SKU-001", "LOT-A", 0, decimal.NewFromInt(3), manufactured, nil, "SUP-01", LotSourcePurchase)

		require.Error(t, err)
		assert.Nil(t, lot)
		assert.Equal(t, "VALIDATION_ERROR", shared.ErrorCode(err))
	})

	t.Run("fails when expiry is not after manufacturing", func(t *testing.T) {
		expiry := manufactured.AddDate(0, 0, -1)
		lot, err := NewLot("SKU-001", "LOT-A", 10, decimal.NewFromInt(3), manufactured, &expiry, "SUP-01", LotSourcePurchase)

		require.Error(t, err)
		assert.Nil(t, lot)
	})

	t.Run("fails with negative cost", func(t *testing.T) {
		lot, err := NewLot("SKU-001", "LOT-A", 10, decimal.NewFromInt(-1), manufactured, nil, "SUP-01", LotSourcePurchase)

		require.Error(t, err)
		assert.Nil(t, lot)
	})
}

func TestLot_Deduct(t *testing.T) {
	t.Run("reduces current quantity", func(t *testing.T) {
		lot := createTestLot(t, 100)

		err := lot.Deduct(30)

		require.NoError(t, err)
		assert.Equal(t, int64(70), lot.CurrentQuantity)
		assert.True(t, lot.IsActive)
	})

	t.Run("deactivates lot when drained to zero", func(t *testing.T) {
		lot := createTestLot(t, 100)

		err := lot.Deduct(100)

		require.NoError(t, err)
		assert.Zero(t, lot.CurrentQuantity)
		assert.False(t, lot.IsActive)
		assert.NotNil(t, lot.DeactivatedAt)
	})

	t.Run("never drives quantity below zero", func(t *testing.T) {
		lot := createTestLot(t, 10)

		err := lot.Deduct(11)

		require.Error(t, err)
		assert.Equal(t, "INVALID_STATE", shared.ErrorCode(err))
		assert.Equal(t, int64(10), lot.CurrentQuantity)
	})
}

func TestLot_Restock(t *testing.T) {
	t.Run("restores previously deducted quantity", func(t *testing.T) {
		lot := createTestLot(t, 100)
		require.NoError(t, lot.Deduct(40))

		err := lot.Restock(15)

		require.NoError(t, err)
		assert.Equal(t, int64(75), lot.CurrentQuantity)
	})

	t.Run("reactivates a drained lot", func(t *testing.T) {
		lot := createTestLot(t, 50)
		require.NoError(t, lot.Deduct(50))
		require.False(t, lot.IsActive)

		err := lot.Restock(10)

		require.NoError(t, err)
		assert.True(t, lot.IsActive)
		assert.Equal(t, int64(10), lot.CurrentQuantity)
	})

	t.Run("cannot exceed initial quantity", func(t *testing.T) {
		lot := createTestLot(t, 100)

		err := lot.Restock(1)

		require.Error(t, err)
		assert.Equal(t, "INVALID_STATE", shared.ErrorCode(err))
	})

	t.Run("rejects an expired lot", func(t *testing.T) {
		lot := createTestLot(t, 100)
		require.NoError(t, lot.Deduct(40))
		past := time.Now().Add(-time.Minute)
		lot.ExpiryDate = &past

		err := lot.Restock(10)

		require.Error(t, err)
		assert.Equal(t, "INVALID_STATE", shared.ErrorCode(err))
		assert.Equal(t, int64(60), lot.CurrentQuantity)
	})
}

func TestLot_Expiry(t *testing.T) {
	t.Run("lot with past expiry is not allocatable", func(t *testing.T) {
		manufactured := time.Now().AddDate(-1, 0, 0)
		expiry := time.Now().AddDate(0, 0, -1)
		lot, err := NewLot("SKU-001", "LOT-EXP", 10, decimal.NewFromInt(2), manufactured, &expiry, "SUP-01", LotSourcePurchase)
		require.NoError(t, err)

		assert.True(t, lot.IsExpired())
		assert.False(t, lot.IsAllocatable())
	})

	t.Run("lot without expiry never expires", func(t *testing.T) {
		lot := createTestLot(t, 10)

		assert.False(t, lot.IsExpired())
	})
}

func TestLot_TotalValue(t *testing.T) {
	lot := createTestLot(t, 100)
	require.NoError(t, lot.Deduct(60))

	assert.True(t, decimal.NewFromFloat(500).Equal(lot.TotalValue()))
}

func TestLot_Deactivate(t *testing.T) {
	lot := createTestLot(t, 100)

	lot.Deactivate()

	assert.False(t, lot.IsActive)
	assert.NotNil(t, lot.DeactivatedAt)
	assert.False(t, lot.IsAllocatable())
}
