package payments

import (
	"time"

	"github.com/google/uuid"

	"github.com/microcopias/copirent-backend/pkg/db/models"
	"github.com/microcopias/copirent-backend/pkg/pagination"
)

// UsageInput is the metered counter pair for one rental line, addressed by
// the line's order_item_index.
type UsageInput struct {
	ItemIndex int `json:"item_index" validate:"min=0"`
	Copies    int `json:"copies" validate:"min=0"`
	Scans     int `json:"scans" validate:"min=0"`
}

// CreateInput records one billing cycle against a rental.
type CreateInput struct {
	RentalID      uuid.UUID    `json:"-"`
	Usage         []UsageInput `json:"usage" validate:"omitempty,dive"`
	DiscountCents int          `json:"discount_cents" validate:"min=0"`
	Notes         *string      `json:"notes"`
	PaidAt        *time.Time   `json:"paid_at"`
}

// UpdateInput corrects an existing ledger entry. The amount is recomputed
// from the snapshotted lines; the rental's due date is left untouched.
type UpdateInput struct {
	PaymentID     uuid.UUID    `json:"-"`
	Usage         []UsageInput `json:"usage" validate:"omitempty,dive"`
	DiscountCents *int         `json:"discount_cents" validate:"omitempty,min=0"`
	Notes         *string      `json:"notes"`
	PaidAt        *time.Time   `json:"paid_at"`
}

// ListInput pages through a rental's ledger.
type ListInput struct {
	RentalID   uuid.UUID
	Pagination pagination.Params
}

// PaymentList wraps the paginated entries plus the next page cursor.
type PaymentList struct {
	Payments   []models.RentalPayment `json:"payments"`
	NextCursor string                 `json:"next_cursor,omitempty"`
}
