package telemetry

import (
	"context"

	"gorm.io/gorm"
)

// GormStockMetricsProvider implements StockMetricsProvider using GORM.
// It queries the inventory tables directly for aggregated metrics.
type GormStockMetricsProvider struct {
	db *gorm.DB
}

// NewGormStockMetricsProvider creates a new GormStockMetricsProvider.
func NewGormStockMetricsProvider(db *gorm.DB) *GormStockMetricsProvider {
	return &GormStockMetricsProvider{db: db}
}

// GetLowStockCount returns the number of SKUs below their low-stock threshold.
func (p *GormStockMetricsProvider) GetLowStockCount(ctx context.Context) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("inventory_records").
		Where("low_stock_threshold > 0 AND total_available_stock < low_stock_threshold").
		Count(&count).Error
	return count, err
}

// GetTotalReservedUnits returns the sum of reserved stock across all SKUs.
func (p *GormStockMetricsProvider) GetTotalReservedUnits(ctx context.Context) (int64, error) {
	var total int64
	err := p.db.WithContext(ctx).
		Table("inventory_records").
		Select("COALESCE(SUM(total_reserved_stock), 0)").
		Scan(&total).Error
	return total, err
}

// GetAllocatableLotCount returns the number of active lots with remaining quantity.
func (p *GormStockMetricsProvider) GetAllocatableLotCount(ctx context.Context) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("lots").
		Where("is_active = ? AND current_quantity > 0", true).
		Count(&count).Error
	return count, err
}

var _ StockMetricsProvider = (*GormStockMetricsProvider)(nil)
