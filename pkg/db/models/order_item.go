package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem captures the snapshot of each line within an order. Position
// preserves the caller-supplied ordering so rental lines can point back at
// the order line they came from.
type OrderItem struct {
	ID                uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	Position          int        `gorm:"column:position;not null"`
	ProductID         *uuid.UUID `gorm:"column:product_id;type:uuid"`
	Name              string     `gorm:"column:name;not null"`
	Model             string     `gorm:"column:model"`
	Qty               int        `gorm:"column:qty;not null"`
	UnitAmountCents   int        `gorm:"column:unit_amount_cents;not null"`
	IsRented          bool       `gorm:"column:is_rented;not null;default:false"`
	IsCustom          bool       `gorm:"column:is_custom;not null;default:false"`
	RatePerPrintCents int        `gorm:"column:rate_per_print_cents;not null;default:0"`
	RatePerScanCents  int        `gorm:"column:rate_per_scan_cents;not null;default:0"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
