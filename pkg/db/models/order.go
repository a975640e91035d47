package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/microcopias/copirent-backend/pkg/enums"
	"github.com/microcopias/copirent-backend/pkg/types"
)

// Order represents a storefront purchase/rental request with its line items
// and server-computed money totals. The customer identity number is stored
// masked; the ciphertext lives in IDNumberEncrypted and never leaves the API
// outside the audited reveal path.
type Order struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerName      string            `gorm:"column:customer_name;not null"`
	CustomerEmail     string            `gorm:"column:customer_email;not null"`
	CustomerPhone     string            `gorm:"column:customer_phone"`
	IDType            enums.IDType      `gorm:"column:id_type;type:text;not null;default:'cedula'"`
	IDNumber          string            `gorm:"column:id_number"`
	IDNumberEncrypted string            `gorm:"column:id_number_encrypted" json:"-"`
	IDNumberLast4     string            `gorm:"column:id_number_last4"`
	ShippingAddress   *types.Address    `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	Notes             *string           `gorm:"column:notes"`
	Status            enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	SubtotalCents     int               `gorm:"column:subtotal_cents;not null"`
	TaxCents          int               `gorm:"column:tax_cents;not null;default:0"`
	ShippingCents     int               `gorm:"column:shipping_cents;not null;default:0"`
	DiscountCents     int               `gorm:"column:discount_cents;not null;default:0"`
	TotalCents        int               `gorm:"column:total_cents;not null"`
	Consent           *types.Consent    `gorm:"column:consent;type:jsonb;serializer:json"`
	CompletedAt       *time.Time        `gorm:"column:completed_at"`
	Items             []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Rental            *Rental           `gorm:"foreignKey:OrderID"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
