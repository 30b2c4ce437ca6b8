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

// GormStockMovementRepository implements StockMovementRepository using GORM.
// The movement ledger is append-only: rows are only ever inserted.
type GormStockMovementRepository struct {
	db *gorm.DB
}

// NewGormStockMovementRepository creates a new GormStockMovementRepository
func NewGormStockMovementRepository(db *gorm.DB) *GormStockMovementRepository {
	return &GormStockMovementRepository{db: db}
}

// Create appends a movement to the ledger
func (r *GormStockMovementRepository) Create(ctx context.Context, movement *inventory.StockMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

// CreateAll appends multiple movements in one insert
func (r *GormStockMovementRepository) CreateAll(ctx context.Context, movements []*inventory.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(movements).Error
}

// FindByID finds a movement by its ID
func (r *GormStockMovementRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.StockMovement, error) {
	var movement inventory.StockMovement
	if err := r.db.WithContext(ctx).First(&movement, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &movement, nil
}

// FindAll returns a page of movements matching the filter
func (r *GormStockMovementRepository) FindAll(ctx context.Context, filter inventory.MovementFilter) (*shared.Paginated[inventory.StockMovement], error) {
	base := r.applyMovementFilter(r.db.WithContext(ctx).Model(&inventory.StockMovement{}), filter)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, err
	}

	var movements []inventory.StockMovement
	query := applyFilter(
		r.applyMovementFilter(r.db.WithContext(ctx).Model(&inventory.StockMovement{}), filter),
		filter.Filter,
	)
	if err := query.Find(&movements).Error; err != nil {
		return nil, err
	}

	result := shared.NewPaginated(movements, total, filter.Page, filter.PageSize)
	return &result, nil
}

// FindBySKUOrdered returns the SKU's movements in occurrence order, the
// order replay consumes them in. A non-nil upto bounds the history.
func (r *GormStockMovementRepository) FindBySKUOrdered(ctx context.Context, skuID string, upto *time.Time) ([]inventory.StockMovement, error) {
	query := r.db.WithContext(ctx).Where("sku_id = ?", skuID)
	if upto != nil {
		query = query.Where("occurred_at <= ?", *upto)
	}

	var movements []inventory.StockMovement
	if err := query.
		Order("occurred_at ASC, created_at ASC").
		Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

// FindByReference returns all movements tied to a business document
func (r *GormStockMovementRepository) FindByReference(ctx context.Context, referenceType inventory.ReferenceType, referenceID string) ([]inventory.StockMovement, error) {
	var movements []inventory.StockMovement
	if err := r.db.WithContext(ctx).
		Where("reference_type = ? AND reference_id = ?", referenceType, referenceID).
		Order("occurred_at ASC").
		Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

// applyMovementFilter applies movement-specific conditions to a query
func (r *GormStockMovementRepository) applyMovementFilter(query *gorm.DB, filter inventory.MovementFilter) *gorm.DB {
	if filter.SKUID != "" {
		query = query.Where("sku_id = ?", filter.SKUID)
	}
	if filter.LotID != nil {
		query = query.Where("lot_id = ?", *filter.LotID)
	}
	if filter.MovementType != "" {
		query = query.Where("movement_type = ?", filter.MovementType)
	}
	if filter.ReferenceType != "" {
		query = query.Where("reference_type = ?", filter.ReferenceType)
	}
	if filter.ReferenceID != "" {
		query = query.Where("reference_id = ?", filter.ReferenceID)
	}
	if filter.OccurredAfter != nil {
		query = query.Where("occurred_at >= ?", *filter.OccurredAfter)
	}
	if filter.OccurredUntil != nil {
		query = query.Where("occurred_at <= ?", *filter.OccurredUntil)
	}
	return query
}

// Ensure GormStockMovementRepository implements StockMovementRepository
var _ inventory.StockMovementRepository = (*GormStockMovementRepository)(nil)
