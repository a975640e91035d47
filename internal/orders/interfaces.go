package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/microcopias/copirent-backend/pkg/db/models"
	"github.com/microcopias/copirent-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, params pagination.Params, filters ListFilters) ([]models.Order, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ReplaceItems(ctx context.Context, orderID uuid.UUID, items []models.OrderItem) error
	UpdateItemUnitAmount(ctx context.Context, orderID uuid.UUID, position, unitAmountCents int) error
	HasRental(ctx context.Context, orderID uuid.UUID) (bool, error)
}
