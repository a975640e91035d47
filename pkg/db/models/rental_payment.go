package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/microcopias/copirent-backend/pkg/types"
)

// RentalPayment is one ledger entry for a billing cycle: the monthly base
// plus metered copy/scan usage minus any discount. Rates and names are
// snapshotted at payment time.
type RentalPayment struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RentalID         uuid.UUID           `gorm:"column:rental_id;type:uuid;not null;index"`
	AmountCents      int                 `gorm:"column:amount_cents;not null"`
	MonthlyBaseCents int                 `gorm:"column:monthly_base_cents;not null"`
	DiscountCents    int                 `gorm:"column:discount_cents;not null;default:0"`
	Items            []types.PaymentItem `gorm:"column:items;type:jsonb;serializer:json"`
	Notes            *string             `gorm:"column:notes"`
	PaidAt           time.Time           `gorm:"column:paid_at;not null"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
