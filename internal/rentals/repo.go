package rentals

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/microcopias/copirent-backend/pkg/db/models"
	"github.com/microcopias/copirent-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a rentals repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, rental *models.Rental) (*models.Rental, error) {
	if err := r.db.WithContext(ctx).Create(rental).Error; err != nil {
		return nil, err
	}
	return rental, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Rental, error) {
	var rental models.Rental
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_item_index ASC")
		}).
		Where("id = ?", id).
		First(&rental).Error
	if err != nil {
		return nil, err
	}
	return &rental, nil
}

func (r *repository) FindOrderForSpawn(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) List(ctx context.Context, params pagination.Params, filters ListFilters) ([]models.Rental, error) {
	query := r.db.WithContext(ctx).Model(&models.Rental{}).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_item_index ASC")
		})
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if cursor, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, err
	} else if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rentals []models.Rental
	err := query.
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rentals).Error
	if err != nil {
		return nil, err
	}
	return rentals, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Rental{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) ReplaceItems(ctx context.Context, rentalID uuid.UUID, items []models.RentalItem) error {
	if err := r.db.WithContext(ctx).
		Where("rental_id = ?", rentalID).
		Delete(&models.RentalItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}
