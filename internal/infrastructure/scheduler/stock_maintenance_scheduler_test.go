package scheduler

import (
	"context"
	"testing"
	"time"

	appinv "github.com/commerce/backend/internal/application/inventory"
	"github.com/commerce/backend/internal/infrastructure/persistence"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type schedulerFixture struct {
	db        *gorm.DB
	scheduler *StockMaintenanceScheduler
	lots      *appinv.LotService
	ledger    *appinv.LedgerService
	records   *persistence.GormInventoryRecordRepository
	lotRepo   *persistence.GormLotRepository
}

func setupSchedulerDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	ddl := []string{
		`CREATE TABLE inventory_records (
			id TEXT PRIMARY KEY,
			created_at DATETIME,
			updated_at DATETIME,
			version INTEGER NOT NULL DEFAULT 1,
			sku_id TEXT NOT NULL UNIQUE,
			total_available_stock INTEGER NOT NULL DEFAULT 0,
			total_reserved_stock INTEGER NOT NULL DEFAULT 0,
			low_stock_threshold INTEGER NOT NULL DEFAULT 0,
			reorder_point INTEGER NOT NULL DEFAULT 0,
			reorder_quantity INTEGER NOT NULL DEFAULT 0,
			last_restocked_at DATETIME
		)`,
		`CREATE TABLE lots (
			id TEXT PRIMARY KEY,
			created_at DATETIME,
			updated_at DATETIME,
			version INTEGER NOT NULL DEFAULT 1,
			sku_id TEXT NOT NULL,
			lot_number TEXT NOT NULL,
			initial_quantity INTEGER NOT NULL,
			current_quantity INTEGER NOT NULL,
			cost_per_unit TEXT NOT NULL DEFAULT '0',
			manufacturing_date DATETIME NOT NULL,
			expiry_date DATETIME,
			supplier_id TEXT,
			source_type TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			deactivated_at DATETIME,
			UNIQUE(sku_id, lot_number)
		)`,
		`CREATE TABLE stock_movements (
			id TEXT PRIMARY KEY,
			created_at DATETIME,
			updated_at DATETIME,
			sku_id TEXT NOT NULL,
			lot_id TEXT,
			movement_type TEXT NOT NULL,
			quantity_delta INTEGER NOT NULL,
			reserved_delta INTEGER NOT NULL,
			previous_quantity INTEGER NOT NULL,
			new_quantity INTEGER NOT NULL,
			previous_reserved INTEGER NOT NULL,
			new_reserved INTEGER NOT NULL,
			reference_type TEXT NOT NULL,
			reference_id TEXT NOT NULL,
			reason TEXT,
			performed_by TEXT,
			occurred_at DATETIME NOT NULL
		)`,
	}
	for _, stmt := range ddl {
		require.NoError(t, db.Exec(stmt).Error)
	}

	return db
}

func newSchedulerFixture(t *testing.T, cfg Config) *schedulerFixture {
	t.Helper()

	db := setupSchedulerDB(t)
	records := persistence.NewGormInventoryRecordRepository(db)
	lotRepo := persistence.NewGormLotRepository(db)
	movements := persistence.NewGormStockMovementRepository(db)
	txScope := persistence.NewGormTransactionScope(db)
	logger := zaptest.NewLogger(t)

	lots := appinv.NewLotService(lotRepo, txScope, nil, logger)
	ledger := appinv.NewLedgerService(records, txScope)
	audit := appinv.NewAuditTrailService(movements, records, txScope, logger)

	return &schedulerFixture{
		db:        db,
		scheduler: NewStockMaintenanceScheduler(lots, audit, ledger, logger, cfg),
		lots:      lots,
		ledger:    ledger,
		records:   records,
		lotRepo:   lotRepo,
	}
}

// receiveLot seeds a lot through the service so the record and movement log
// stay consistent with the counters.
func (f *schedulerFixture) receiveLot(t *testing.T, skuID, lotNumber string, qty int64, expiry *time.Time) {
	t.Helper()
	_, err := f.lots.ReceiveInward(context.Background(), appinv.ReceiveLotRequest{
		SKUID:             skuID,
		LotNumber:         lotNumber,
		Quantity:          qty,
		CostPerUnit:       decimal.NewFromFloat(1.25),
		ManufacturingDate: time.Now().Add(-72 * time.Hour),
		ExpiryDate:        expiry,
		SupplierID:        "SUP-1",
		ReferenceID:       "PO-" + lotNumber,
	})
	require.NoError(t, err)
}

func TestStockMaintenanceScheduler_StartStop(t *testing.T) {
	f := newSchedulerFixture(t, DefaultConfig())
	ctx := context.Background()

	require.NoError(t, f.scheduler.Start(ctx))
	assert.True(t, f.scheduler.IsRunning())

	// Second start is a no-op
	require.NoError(t, f.scheduler.Start(ctx))

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, f.scheduler.Stop(stopCtx))
	assert.False(t, f.scheduler.IsRunning())
}

func TestStockMaintenanceScheduler_Disabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	f := newSchedulerFixture(t, cfg)

	require.NoError(t, f.scheduler.Start(context.Background()))
	assert.False(t, f.scheduler.IsRunning())

	err := f.scheduler.TriggerExpirySweep(context.Background())
	assert.ErrorIs(t, err, ErrSchedulerNotRunning)
}

func TestStockMaintenanceScheduler_ExpirySweep(t *testing.T) {
	cfg := DefaultConfig()
	// Long intervals keep the background loops quiet; the sweep runs once on
	// start and then via the manual trigger.
	cfg.ExpirySweepInterval = time.Hour
	cfg.ReconciliationEnabled = false
	f := newSchedulerFixture(t, cfg)
	ctx := context.Background()

	expired := time.Now().Add(-24 * time.Hour)
	fresh := time.Now().Add(30 * 24 * time.Hour)
	f.receiveLot(t, "SKU-1001", "LOT-A", 40, &expired)
	f.receiveLot(t, "SKU-1001", "LOT-B", 60, &fresh)

	require.NoError(t, f.scheduler.Start(ctx))
	defer func() { _ = f.scheduler.Stop(ctx) }()

	require.NoError(t, f.scheduler.TriggerExpirySweep(ctx))

	// The expired lot is drained and deactivated, the fresh one untouched
	allocatable, err := f.lotRepo.FindAllocatable(ctx, "SKU-1001")
	require.NoError(t, err)
	require.Len(t, allocatable, 1)
	assert.Equal(t, "LOT-B", allocatable[0].LotNumber)

	record, err := f.records.FindBySKU(ctx, "SKU-1001")
	require.NoError(t, err)
	assert.Equal(t, int64(60), record.TotalAvailableStock)
}

func TestStockMaintenanceScheduler_Reconciliation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExpirySweepInterval = time.Hour
	cfg.ReconciliationInterval = time.Hour
	f := newSchedulerFixture(t, cfg)
	ctx := context.Background()

	f.receiveLot(t, "SKU-2001", "LOT-C", 100, nil)

	// Corrupt the counter behind the ledger's back
	require.NoError(t, f.db.Exec(
		`UPDATE inventory_records SET total_available_stock = 85 WHERE sku_id = ?`, "SKU-2001",
	).Error)

	require.NoError(t, f.scheduler.Start(ctx))
	defer func() { _ = f.scheduler.Stop(ctx) }()

	require.NoError(t, f.scheduler.TriggerReconciliation(ctx))

	// The counter is repaired to match the movement log
	record, err := f.records.FindBySKU(ctx, "SKU-2001")
	require.NoError(t, err)
	assert.Equal(t, int64(100), record.TotalAvailableStock)
}
