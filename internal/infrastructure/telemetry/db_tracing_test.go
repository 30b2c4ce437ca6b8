package telemetry_test

import (
	"testing"
	"time"

	"github.com/commerce/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTracingDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.Exec(`CREATE TABLE inventory_records (
		id TEXT PRIMARY KEY,
		sku_id TEXT NOT NULL UNIQUE,
		total_available_stock INTEGER NOT NULL DEFAULT 0,
		total_reserved_stock INTEGER NOT NULL DEFAULT 0,
		low_stock_threshold INTEGER NOT NULL DEFAULT 0
	)`).Error
	require.NoError(t, err)

	return db
}

func TestDefaultDBTracingConfig(t *testing.T) {
	cfg := telemetry.DefaultDBTracingConfig()

	assert.False(t, cfg.Enabled)
	assert.False(t, cfg.LogFullSQL)
	assert.Equal(t, 200*time.Millisecond, cfg.SlowQueryThresh)
	assert.Equal(t, "postgresql", cfg.DBSystem)
}

func TestDBTracingPlugin_Register_Disabled(t *testing.T) {
	db := setupTracingDB(t)

	plugin := telemetry.NewDBTracingPlugin(telemetry.DefaultDBTracingConfig(), zaptest.NewLogger(t))
	require.NoError(t, plugin.Register(db))

	// Queries run untouched when tracing is off
	var count int64
	require.NoError(t, db.Table("inventory_records").Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestDBTracingPlugin_Register_Enabled(t *testing.T) {
	db := setupTracingDB(t)

	cfg := telemetry.DBTracingConfig{
		Enabled:         true,
		SlowQueryThresh: 200 * time.Millisecond,
		DBSystem:        "sqlite",
	}
	plugin := telemetry.NewDBTracingPlugin(cfg, zaptest.NewLogger(t))
	require.NoError(t, plugin.Register(db))

	// Queries still work with the otelgorm plugin and timing callbacks installed
	require.NoError(t, db.Exec(
		`INSERT INTO inventory_records (id, sku_id, total_available_stock) VALUES ('r1', 'SKU-1001', 50)`,
	).Error)

	var count int64
	require.NoError(t, db.Table("inventory_records").Where("sku_id = ?", "SKU-1001").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
