package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/commerce/backend/internal/domain/inventory"
	"github.com/commerce/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormInventoryRecordRepository implements InventoryRecordRepository using GORM
type GormInventoryRecordRepository struct {
	db *gorm.DB
}

// NewGormInventoryRecordRepository creates a new GormInventoryRecordRepository
func NewGormInventoryRecordRepository(db *gorm.DB) *GormInventoryRecordRepository {
	return &GormInventoryRecordRepository{db: db}
}

// FindByID finds an inventory record by its ID
func (r *GormInventoryRecordRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.InventoryRecord, error) {
	var record inventory.InventoryRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// FindBySKU finds the inventory record for a SKU
func (r *GormInventoryRecordRepository) FindBySKU(ctx context.Context, skuID string) (*inventory.InventoryRecord, error) {
	var record inventory.InventoryRecord
	if err := r.db.WithContext(ctx).First(&record, "sku_id = ?", skuID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// FindBySKUs finds inventory records for multiple SKUs
func (r *GormInventoryRecordRepository) FindBySKUs(ctx context.Context, skuIDs []string) ([]inventory.InventoryRecord, error) {
	if len(skuIDs) == 0 {
		return []inventory.InventoryRecord{}, nil
	}

	var records []inventory.InventoryRecord
	if err := r.db.WithContext(ctx).
		Where("sku_id IN ?", skuIDs).
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// FindAll returns a page of inventory records
func (r *GormInventoryRecordRepository) FindAll(ctx context.Context, filter shared.Filter) (*shared.Paginated[inventory.InventoryRecord], error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&inventory.InventoryRecord{}).Count(&total).Error; err != nil {
		return nil, err
	}

	var records []inventory.InventoryRecord
	query := applyFilter(r.db.WithContext(ctx).Model(&inventory.InventoryRecord{}), filter)
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}

	result := shared.NewPaginated(records, total, filter.Page, filter.PageSize)
	return &result, nil
}

// FindBelowThreshold finds records whose available stock is under their low-stock threshold
func (r *GormInventoryRecordRepository) FindBelowThreshold(ctx context.Context) ([]inventory.InventoryRecord, error) {
	var records []inventory.InventoryRecord
	if err := r.db.WithContext(ctx).
		Where("low_stock_threshold > 0 AND total_available_stock < low_stock_threshold").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// GetOrCreate gets the existing record for a SKU or creates a zero-stock one
func (r *GormInventoryRecordRepository) GetOrCreate(ctx context.Context, skuID string) (*inventory.InventoryRecord, error) {
	record, err := r.FindBySKU(ctx, skuID)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	return r.createOrFetch(ctx, skuID)
}

// createOrFetch inserts a zero-stock record for the SKU, falling back to the
// stored row when a concurrent create won the insert
func (r *GormInventoryRecordRepository) createOrFetch(ctx context.Context, skuID string) (*inventory.InventoryRecord, error) {
	record, err := inventory.NewInventoryRecord(skuID)
	if err != nil {
		return nil, err
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sku_id"}},
			DoNothing: true,
		}).
		Create(record)
	if result.Error != nil {
		return nil, result.Error
	}

	// No row inserted means another writer created the record first; the
	// in-memory one never reached the database, so read theirs back.
	if result.RowsAffected == 0 {
		return r.FindBySKU(ctx, skuID)
	}

	return record, nil
}

// Save creates or updates an inventory record without a version check
func (r *GormInventoryRecordRepository) Save(ctx context.Context, record *inventory.InventoryRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}

// SaveWithLock saves with optimistic locking. The update only applies if the
// stored version is the one the caller read; otherwise the record was changed
// concurrently and the caller must re-read and retry.
func (r *GormInventoryRecordRepository) SaveWithLock(ctx context.Context, record *inventory.InventoryRecord) error {
	result := r.db.WithContext(ctx).
		Model(record).
		Where("id = ? AND version = ?", record.ID, record.Version-1).
		Updates(map[string]interface{}{
			"total_available_stock": record.TotalAvailableStock,
			"total_reserved_stock":  record.TotalReservedStock,
			"low_stock_threshold":   record.LowStockThreshold,
			"reorder_point":         record.ReorderPoint,
			"reorder_quantity":      record.ReorderQuantity,
			"last_restocked_at":     record.LastRestockedAt,
			"version":               record.Version,
			"updated_at":            record.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// applyFilter applies pagination and ordering to a query
func applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	if filter.OrderBy != "" {
		orderDir := "ASC"
		if strings.ToLower(filter.OrderDir) == "desc" {
			orderDir = "DESC"
		}
		query = query.Order(filter.OrderBy + " " + orderDir)
	} else {
		query = query.Order("created_at DESC")
	}

	return query
}

// Ensure GormInventoryRecordRepository implements InventoryRecordRepository
var _ inventory.InventoryRecordRepository = (*GormInventoryRecordRepository)(nil)
