package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	appinv "github.com/commerce/backend/internal/application/inventory"
	"github.com/commerce/backend/internal/infrastructure/cache"
	"github.com/commerce/backend/internal/infrastructure/persistence"
	"github.com/commerce/backend/internal/interfaces/http/dto"
	"github.com/commerce/backend/internal/interfaces/http/middleware"
	"github.com/commerce/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// apiFixture runs the full HTTP stack against an in-memory database: real
// handlers, real services, real repositories.
type apiFixture struct {
	db     *gorm.DB
	engine *gin.Engine
	ledger *appinv.LedgerService
	lots   *appinv.LotService
}

func setupHandlerDB(t *testing.T) *gorm.DB {
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

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	db := setupHandlerDB(t)
	records := persistence.NewGormInventoryRecordRepository(db)
	lotRepo := persistence.NewGormLotRepository(db)
	movements := persistence.NewGormStockMovementRepository(db)
	txScope := persistence.NewGormTransactionScope(db)
	logger := zaptest.NewLogger(t)

	ledger := appinv.NewLedgerService(records, txScope)
	lots := appinv.NewLotService(lotRepo, txScope, nil, logger)
	audit := appinv.NewAuditTrailService(movements, records, txScope, logger)
	coordinator := appinv.NewTransactionCoordinator(
		ledger, lots, cache.NewInMemoryIdempotencyStore(), logger)

	ledgerHandler := NewStockLedgerHandler(ledger)
	lotHandler := NewLotHandler(lots)
	movementHandler := NewStockMovementHandler(audit)
	eventHandler := NewStockEventHandler(coordinator)

	engine := gin.New()
	engine.Use(middleware.RequestID())

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(router.NewDomainGroup("stock", "/stock").
		GET("", ledgerHandler.List).
		GET("/:sku_id", ledgerHandler.GetBySKU).
		GET("/alerts/low-stock", ledgerHandler.ListBelowThreshold).
		POST("/adjust", ledgerHandler.Adjust).
		POST("/reserve", ledgerHandler.Reserve).
		POST("/release", ledgerHandler.Release).
		POST("/fulfill", lotHandler.Fulfill).
		PUT("/thresholds", ledgerHandler.UpdateThreshold))
	r.Register(router.NewDomainGroup("lots", "/lots").
		GET("", lotHandler.List).
		GET("/:id", lotHandler.GetByID).
		GET("/allocation/preview", lotHandler.PreviewAllocation).
		POST("/receive", lotHandler.Receive).
		POST("/return", lotHandler.Return).
		POST("/:id/deactivate", lotHandler.Deactivate).
		POST("/write-off-expired", lotHandler.WriteOffExpired))
	r.Register(router.NewDomainGroup("stock-movements", "/stock-movements").
		GET("", movementHandler.List).
		GET("/reference/:reference_type/:reference_id", movementHandler.GetByReference).
		GET("/replay/:sku_id", movementHandler.Replay).
		GET("/verify/:sku_id", movementHandler.Verify).
		POST("/reconcile/:sku_id", movementHandler.Reconcile))
	r.Register(router.NewDomainGroup("stock-events", "/stock-events").
		POST("", eventHandler.Apply))
	r.Setup()

	return &apiFixture{
		db:     db,
		engine: engine,
		ledger: ledger,
		lots:   lots,
	}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

// envelope mirrors dto.Response with a typed data payload
type envelope[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data"`
	Error   *dto.ErrorInfo `json:"error"`
	Meta    *dto.Meta      `json:"meta"`
}

func decodeAs[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()

	var resp envelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func (f *apiFixture) seedStock(t *testing.T, skuID string, quantity int64) {
	t.Helper()

	_, err := f.ledger.AdjustStock(context.Background(), appinv.AdjustStockRequest{
		SKUID:  skuID,
		Delta:  quantity,
		Reason: "initial stock",
	})
	require.NoError(t, err)
}

func (f *apiFixture) receiveLot(t *testing.T, skuID, lotNumber string, quantity int64, expiry *time.Time) appinv.LotResponse {
	t.Helper()

	lot, err := f.lots.ReceiveInward(context.Background(), appinv.ReceiveLotRequest{
		SKUID:             skuID,
		LotNumber:         lotNumber,
		Quantity:          quantity,
		CostPerUnit:       decimal.NewFromInt(10),
		ManufacturingDate: time.Now().Add(-48 * time.Hour),
		ExpiryDate:        expiry,
		ReferenceID:       "PO-" + lotNumber,
	})
	require.NoError(t, err)
	return *lot
}
