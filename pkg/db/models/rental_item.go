package models

import (
	"time"

	"github.com/google/uuid"
)

// RentalItem snapshots one rented order line. OrderItemIndex points back at
// the position of the originating order line.
type RentalItem struct {
	ID                uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RentalID          uuid.UUID  `gorm:"column:rental_id;type:uuid;not null;index"`
	OrderItemIndex    int        `gorm:"column:order_item_index;not null"`
	ProductID         *uuid.UUID `gorm:"column:product_id;type:uuid"`
	Name              string     `gorm:"column:name;not null"`
	Model             string     `gorm:"column:model"`
	Qty               int        `gorm:"column:qty;not null"`
	MonthlyPriceCents int        `gorm:"column:monthly_price_cents;not null"`
	RatePerPrintCents int        `gorm:"column:rate_per_print_cents;not null;default:0"`
	RatePerScanCents  int        `gorm:"column:rate_per_scan_cents;not null;default:0"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
