package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/microcopias/copirent-backend/pkg/enums"
	"github.com/microcopias/copirent-backend/pkg/types"
)

// Rental is the recurring billing object spawned from an order's rented
// lines. The unique index on OrderID is the guard that makes the spawn
// at-most-once even under concurrent status updates.
type Rental struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID          `gorm:"column:order_id;type:uuid;not null;uniqueIndex:idx_rentals_order_id"`
	CustomerName      string             `gorm:"column:customer_name;not null"`
	CustomerEmail     string             `gorm:"column:customer_email"`
	CustomerPhone     string             `gorm:"column:customer_phone"`
	ShippingAddress   *types.Address     `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	Notes             *string            `gorm:"column:notes"`
	Status            enums.RentalStatus `gorm:"column:status;type:text;not null;default:'active'"`
	StartDate         time.Time          `gorm:"column:start_date;not null"`
	DueDate           time.Time          `gorm:"column:due_date;not null"`
	EndedAt           *time.Time         `gorm:"column:ended_at"`
	FinalAmountCents  int                `gorm:"column:final_amount_cents;not null;default:0"`
	IDNumberEncrypted string             `gorm:"column:id_number_encrypted" json:"-"`
	IDNumberLast4     string             `gorm:"column:id_number_last4"`
	Items             []RentalItem       `gorm:"foreignKey:RentalID;constraint:OnDelete:CASCADE"`
	Payments          []RentalPayment    `gorm:"foreignKey:RentalID"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
