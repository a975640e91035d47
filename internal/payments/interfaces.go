package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/microcopias/copirent-backend/pkg/db/models"
	"github.com/microcopias/copirent-backend/pkg/pagination"
)

// Repository defines persistence operations for the payment ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.RentalPayment) (*models.RentalPayment, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.RentalPayment, error)
	ListByRental(ctx context.Context, rentalID uuid.UUID, params pagination.Params) ([]models.RentalPayment, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindRental(ctx context.Context, rentalID uuid.UUID) (*models.Rental, error)
	UpdateRental(ctx context.Context, rentalID uuid.UUID, updates map[string]any) error
}
