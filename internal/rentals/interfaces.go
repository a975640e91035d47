package rentals

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/microcopias/copirent-backend/pkg/db/models"
	"github.com/microcopias/copirent-backend/pkg/pagination"
)

// Repository defines persistence operations for rentals and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, rental *models.Rental) (*models.Rental, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Rental, error)
	FindOrderForSpawn(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, params pagination.Params, filters ListFilters) ([]models.Rental, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ReplaceItems(ctx context.Context, rentalID uuid.UUID, items []models.RentalItem) error
}
