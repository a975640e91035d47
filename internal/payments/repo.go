package payments

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

// NewRepository builds a payments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.RentalPayment) (*models.RentalPayment, error) {
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		return nil, err
	}
	return payment, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.RentalPayment, error) {
	var payment models.RentalPayment
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) ListByRental(ctx context.Context, rentalID uuid.UUID, params pagination.Params) ([]models.RentalPayment, error) {
	query := r.db.WithContext(ctx).Model(&models.RentalPayment{}).
		Where("rental_id = ?", rentalID)
	if cursor, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, err
	} else if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var payments []models.RentalPayment
	err := query.
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.RentalPayment{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.RentalPayment{}).Error
}

func (r *repository) FindRental(ctx context.Context, rentalID uuid.UUID) (*models.Rental, error) {
	var rental models.Rental
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_item_index ASC")
		}).
		Where("id = ?", rentalID).
		First(&rental).Error
	if err != nil {
		return nil, err
	}
	return &rental, nil
}

func (r *repository) UpdateRental(ctx context.Context, rentalID uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Rental{}).
		Where("id = ?", rentalID).
		Updates(updates).Error
}
