package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/commerce/backend/internal/domain/inventory"
	"github.com/commerce/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormLotRepository implements LotRepository using GORM
type GormLotRepository struct {
	db *gorm.DB
}

// NewGormLotRepository creates a new GormLotRepository
func NewGormLotRepository(db *gorm.DB) *GormLotRepository {
	return &GormLotRepository{db: db}
}

// FindByID finds a lot by its ID
func (r *GormLotRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Lot, error) {
	var lot inventory.Lot
	if err := r.db.WithContext(ctx).First(&lot, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &lot, nil
}

// FindByLotNumber finds a lot by its SKU and lot number
func (r *GormLotRepository) FindByLotNumber(ctx context.Context, skuID, lotNumber string) (*inventory.Lot, error) {
	var lot inventory.Lot
	if err := r.db.WithContext(ctx).
		Where("sku_id = ? AND lot_number = ?", skuID, lotNumber).
		First(&lot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &lot, nil
}

// FindAllocatable returns the SKU's active, non-empty lots ordered oldest
// first, the order the FIFO strategy consumes them in
func (r *GormLotRepository) FindAllocatable(ctx context.Context, skuID string) ([]inventory.Lot, error) {
	var lots []inventory.Lot
	if err := r.db.WithContext(ctx).
		Where("sku_id = ? AND is_active = ? AND current_quantity > 0", skuID, true).
		Order("manufacturing_date ASC, created_at ASC").
		Find(&lots).Error; err != nil {
		return nil, err
	}
	return lots, nil
}

// FindBySKU returns a page of the SKU's lots, active and inactive
func (r *GormLotRepository) FindBySKU(ctx context.Context, skuID string, filter shared.Filter) (*shared.Paginated[inventory.Lot], error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&inventory.Lot{}).
		Where("sku_id = ?", skuID).
		Count(&total).Error; err != nil {
		return nil, err
	}

	var lots []inventory.Lot
	query := applyFilter(
		r.db.WithContext(ctx).Model(&inventory.Lot{}).Where("sku_id = ?", skuID),
		filter,
	)
	if err := query.Find(&lots).Error; err != nil {
		return nil, err
	}

	result := shared.NewPaginated(lots, total, filter.Page, filter.PageSize)
	return &result, nil
}

// FindExpired returns active lots with remaining stock whose expiry date is on
// or before the given time
func (r *GormLotRepository) FindExpired(ctx context.Context, asOf time.Time) ([]inventory.Lot, error) {
	var lots []inventory.Lot
	if err := r.db.WithContext(ctx).
		Where("is_active = ? AND expiry_date IS NOT NULL AND expiry_date <= ?", true, asOf).
		Order("expiry_date ASC").
		Find(&lots).Error; err != nil {
		return nil, err
	}
	return lots, nil
}

// Save creates or updates a lot
func (r *GormLotRepository) Save(ctx context.Context, lot *inventory.Lot) error {
	return r.db.WithContext(ctx).Save(lot).Error
}

// SaveAll persists multiple lots, typically the lots touched by one allocation plan
func (r *GormLotRepository) SaveAll(ctx context.Context, lots []*inventory.Lot) error {
	for _, lot := range lots {
		if err := r.db.WithContext(ctx).Save(lot).Error; err != nil {
			return err
		}
	}
	return nil
}

// Ensure GormLotRepository implements LotRepository
var _ inventory.LotRepository = (*GormLotRepository)(nil)
