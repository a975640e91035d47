package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is the catalog entry order and rental lines snapshot from. The
// storefront catalog itself (search, media, i18n) lives outside this core.
type Product struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name              string    `gorm:"column:name;not null"`
	Model             string    `gorm:"column:model"`
	Category          string    `gorm:"column:category;not null;default:'copiers'"`
	PriceCents        int       `gorm:"column:price_cents;not null;default:0"`
	MonthlyPriceCents int       `gorm:"column:monthly_price_cents;not null;default:0"`
	RatePerPrintCents int       `gorm:"column:rate_per_print_cents;not null;default:0"`
	RatePerScanCents  int       `gorm:"column:rate_per_scan_cents;not null;default:0"`
	Active            bool      `gorm:"column:active;not null;default:true"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
