package rentals

import (
	"time"

	"github.com/google/uuid"

	"github.com/microcopias/copirent-backend/pkg/db/models"
	"github.com/microcopias/copirent-backend/pkg/enums"
	"github.com/microcopias/copirent-backend/pkg/pagination"
	"github.com/microcopias/copirent-backend/pkg/types"
)

// ItemInput is one rented line when a rental is created or its items
// replaced directly by an admin.
type ItemInput struct {
	OrderItemIndex    int        `json:"order_item_index" validate:"min=0"`
	ProductID         *uuid.UUID `json:"product_id"`
	Name              string     `json:"name" validate:"required"`
	Model             string     `json:"model"`
	Qty               int        `json:"qty" validate:"required,min=1"`
	MonthlyPriceCents int        `json:"monthly_price_cents" validate:"min=0"`
	RatePerPrintCents int        `json:"rate_per_print_cents" validate:"min=0"`
	RatePerScanCents  int        `json:"rate_per_scan_cents" validate:"min=0"`
}

// CustomerInput is the rental's own contact block, independent of the
// originating order.
type CustomerInput struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone"`
}

// CreateInput is the direct admin creation payload.
type CreateInput struct {
	OrderID         uuid.UUID      `json:"order_id" validate:"required"`
	Customer        CustomerInput  `json:"customer" validate:"required"`
	ShippingAddress *types.Address `json:"shipping_address"`
	Notes           *string        `json:"notes"`
	Items           []ItemInput    `json:"items" validate:"required,min=1,dive"`
	StartDate       *time.Time     `json:"start_date"`
	DueDate         *time.Time     `json:"due_date"`
}

// UpdateInput is the administrative partial update. A nil field is left
// untouched. Status is deliberately absent: ending and reopening are their
// own explicit operations.
type UpdateInput struct {
	RentalID uuid.UUID `json:"-"`

	Customer        *CustomerInput `json:"customer"`
	ShippingAddress *types.Address `json:"shipping_address"`
	Notes           *string        `json:"notes"`
	DueDate         *time.Time     `json:"due_date"`
	Items           []ItemInput    `json:"items" validate:"omitempty,min=1,dive"`
}

// EndInput closes a rental, optionally recording the final settlement.
type EndInput struct {
	RentalID         uuid.UUID `json:"-"`
	FinalAmountCents *int      `json:"final_amount_cents" validate:"omitempty,min=0"`
}

// ListFilters narrow the admin rental list.
type ListFilters struct {
	Status *enums.RentalStatus
}

// ListInput combines pagination and filters.
type ListInput struct {
	Pagination pagination.Params
	Filters    ListFilters
}

// RentalList wraps the paginated rentals plus the next page cursor.
type RentalList struct {
	Rentals    []models.Rental `json:"rentals"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// RevealInput identifies the actor asking to see the rental's decrypted
// identity number.
type RevealInput struct {
	RentalID   uuid.UUID
	ActorID    uuid.UUID
	ActorEmail string
	IP         string
	UserAgent  string
}

// RevealResult returns the decrypted identity number. Empty means the
// ciphertext could not be recovered.
type RevealResult struct {
	IDNumber      string `json:"id_number"`
	IDNumberLast4 string `json:"id_number_last4"`
}
