package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/microcopias/copirent-backend/pkg/db/models"
	"github.com/microcopias/copirent-backend/pkg/enums"
	"github.com/microcopias/copirent-backend/pkg/pagination"
	"github.com/microcopias/copirent-backend/pkg/types"
)

// CustomerInput is the identity/contact block supplied at checkout or on
// admin update. The identity number arrives in plaintext exactly once; after
// the first save only the masked form circulates.
type CustomerInput struct {
	Name     string       `json:"name" validate:"required"`
	Email    string       `json:"email" validate:"required,email"`
	Phone    string       `json:"phone"`
	IDType   enums.IDType `json:"id_type"`
	IDNumber string       `json:"id_number"`
}

// ItemInput is one full line item as supplied by the caller.
type ItemInput struct {
	ProductID       *uuid.UUID `json:"product_id"`
	Name            string     `json:"name" validate:"required"`
	Model           string     `json:"model"`
	Qty             int        `json:"qty" validate:"required,min=1"`
	UnitAmountCents int        `json:"unit_amount_cents" validate:"min=0"`
	IsRented        bool       `json:"is_rented"`
	IsCustom        bool       `json:"is_custom"`

	RatePerPrintCents int `json:"rate_per_print_cents" validate:"min=0"`
	RatePerScanCents  int `json:"rate_per_scan_cents" validate:"min=0"`
}

// ConsentInput captures the acceptance snapshot at checkout.
type ConsentInput struct {
	PolicyVersion string `json:"policy_version" validate:"required"`
}

// CreateOrderInput is the storefront checkout payload.
type CreateOrderInput struct {
	Customer        CustomerInput  `json:"customer" validate:"required"`
	ShippingAddress *types.Address `json:"shipping_address"`
	Notes           *string        `json:"notes"`
	Items           []ItemInput    `json:"items" validate:"required,min=1,dive"`
	ShippingCents   int            `json:"shipping_cents" validate:"min=0"`
	DiscountCents   int            `json:"discount_cents" validate:"min=0"`
	TaxCents        *int           `json:"tax_cents"`
	Consent         ConsentInput   `json:"consent" validate:"required"`

	// Request metadata, set by the controller rather than the client.
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// CreateOrderResult pairs the created order with the account flag the
// notification layer uses.
type CreateOrderResult struct {
	Order         *models.Order `json:"order"`
	AccountExists bool          `json:"account_exists"`
}

// UnitAmountPatch adjusts one existing rented line's unit amount, addressed
// by its position within the order.
type UnitAmountPatch struct {
	Position        int `json:"position" validate:"min=0"`
	UnitAmountCents int `json:"unit_amount_cents" validate:"min=0"`
}

// ItemsUpdate is the explicit tagged choice between replacing the whole item
// list and patching rented unit amounts. Exactly one side may be set.
type ItemsUpdate struct {
	Replace           []ItemInput       `json:"replace,omitempty" validate:"omitempty,min=1,dive"`
	PatchRentedAmount []UnitAmountPatch `json:"patch_rented_amounts,omitempty" validate:"omitempty,min=1,dive"`
}

// UpdateOrderInput is the administrative partial update. Nil fields are left
// untouched; the customer block, when present, overwrites contact fields
// wholesale.
type UpdateOrderInput struct {
	OrderID uuid.UUID `json:"-"`

	Status          *enums.OrderStatus `json:"status"`
	Customer        *CustomerInput     `json:"customer"`
	ShippingAddress *types.Address     `json:"shipping_address"`
	Notes           *string            `json:"notes"`
	Items           *ItemsUpdate       `json:"items"`
	ShippingCents   *int               `json:"shipping_cents"`
	DiscountCents   *int               `json:"discount_cents"`
	TaxCents        *int               `json:"tax_cents"`

	CreateRentals   bool `json:"create_rentals"`
	SendUpdateEmail bool `json:"send_update_email"`
}

// ListFilters narrow the admin order list.
type ListFilters struct {
	Status   *enums.OrderStatus
	DateFrom *time.Time
	DateTo   *time.Time
}

// ListInput combines pagination and filters for the admin list.
type ListInput struct {
	Pagination pagination.Params
	Filters    ListFilters
}

// OrderList wraps the paginated orders plus the next page cursor.
type OrderList struct {
	Orders     []models.Order `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// RevealInput identifies the actor asking to see a decrypted identity number.
type RevealInput struct {
	OrderID    uuid.UUID
	ActorID    uuid.UUID
	ActorEmail string
	IP         string
	UserAgent  string
}

// RevealResult returns the decrypted identity number. Empty means the
// ciphertext could not be recovered.
type RevealResult struct {
	IDNumber      string       `json:"id_number"`
	IDType        enums.IDType `json:"id_type"`
	IDNumberLast4 string       `json:"id_number_last4"`
}
