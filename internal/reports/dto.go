package reports

import (
	"time"

	"github.com/google/uuid"
)

// Range is the inclusive reporting window. The zero value means the trailing
// 30 days.
type Range struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CategorySales attributes line revenue to a catalog category.
type CategorySales struct {
	Category    string `json:"category"`
	AmountCents int    `json:"amount_cents"`
	Qty         int    `json:"qty"`
}

// ProductSales attributes line revenue to a single product.
type ProductSales struct {
	ProductID   *uuid.UUID `json:"product_id,omitempty"`
	Name        string     `json:"name"`
	AmountCents int        `json:"amount_cents"`
	Qty         int        `json:"qty"`
}

// MonthBucket is one calendar-month point in the merged series. Months with
// activity on only one side still appear, zero-filled on the other.
type MonthBucket struct {
	Year         int `json:"year"`
	Month        int `json:"month"`
	SalesCents   int `json:"sales_cents"`
	RentalsCents int `json:"rentals_cents"`
}

// Overview is the full reporting payload for a date range.
type Overview struct {
	Range Range `json:"range"`

	TotalSalesCents     int `json:"total_sales_cents"`
	OrderSalesCents     int `json:"order_sales_cents"`
	RentalPaymentsCents int `json:"rental_payments_cents"`
	EndedRentalsCents   int `json:"ended_rentals_cents"`

	OrdersCount        int `json:"orders_count"`
	ActiveRentalsCount int `json:"active_rentals_count"`

	Categories []CategorySales `json:"categories"`
	Products   []ProductSales  `json:"products"`
	Monthly    []MonthBucket   `json:"monthly"`
}

// Dashboard is the condensed landing payload for the back office.
type Dashboard struct {
	Overview       Overview `json:"overview"`
	PendingOrders  int      `json:"pending_orders"`
	RentalsDueSoon int      `json:"rentals_due_soon"`
	OverdueRentals int      `json:"overdue_rentals"`
}
