package reports

import (
	"context"
	"time"
)

// MonthRow is one month's raw sum as returned by the store.
type MonthRow struct {
	Year        int
	Month       int
	AmountCents int
}

// Repository defines the read-side aggregation queries.
type Repository interface {
	OrderSalesTotal(ctx context.Context, from, to time.Time) (int, int, error)
	RentalPaymentsTotal(ctx context.Context, from, to time.Time) (int, error)
	EndedRentalsTotal(ctx context.Context, from, to time.Time) (int, error)
	ActiveRentalsCount(ctx context.Context) (int, error)
	PendingOrdersCount(ctx context.Context) (int, error)
	RentalsDueBetween(ctx context.Context, from, to time.Time) (int, error)
	OverdueRentalsCount(ctx context.Context, now time.Time) (int, error)
	CategoryBreakdown(ctx context.Context, from, to time.Time) ([]CategorySales, error)
	ProductBreakdown(ctx context.Context, from, to time.Time, limit int) ([]ProductSales, error)
	MonthlyOrderSales(ctx context.Context, from, to time.Time) ([]MonthRow, error)
	MonthlyRentalPayments(ctx context.Context, from, to time.Time) ([]MonthRow, error)
}
