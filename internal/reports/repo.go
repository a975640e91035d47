package reports

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a reports repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// qualifying orders are the revenue source: shipped or completed, stamped in
// range.
const qualifyingOrders = `
	SELECT id, total_cents, completed_at
	FROM orders
	WHERE status IN ('shipped', 'completed')
	  AND completed_at IS NOT NULL
	  AND completed_at >= ? AND completed_at <= ?
`

func (r *repository) OrderSalesTotal(ctx context.Context, from, to time.Time) (int, int, error) {
	var row struct {
		Total int
		Count int
	}
	err := r.db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(total_cents), 0) AS total, COUNT(*) AS count
		FROM orders
		WHERE status IN ('shipped', 'completed')
		  AND completed_at IS NOT NULL
		  AND completed_at >= ? AND completed_at <= ?
	`, from, to).Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	return row.Total, row.Count, nil
}

func (r *repository) RentalPaymentsTotal(ctx context.Context, from, to time.Time) (int, error) {
	var total int
	err := r.db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(amount_cents), 0)
		FROM rental_payments
		WHERE paid_at >= ? AND paid_at <= ?
	`, from, to).Scan(&total).Error
	return total, err
}

func (r *repository) EndedRentalsTotal(ctx context.Context, from, to time.Time) (int, error) {
	var total int
	err := r.db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(final_amount_cents), 0)
		FROM rentals
		WHERE status = 'ended'
		  AND ended_at IS NOT NULL
		  AND ended_at >= ? AND ended_at <= ?
	`, from, to).Scan(&total).Error
	return total, err
}

func (r *repository) ActiveRentalsCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.WithContext(ctx).Raw(`
		SELECT COUNT(*) FROM rentals WHERE status = 'active'
	`).Scan(&count).Error
	return count, err
}

func (r *repository) PendingOrdersCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.WithContext(ctx).Raw(`
		SELECT COUNT(*) FROM orders WHERE status = 'pending'
	`).Scan(&count).Error
	return count, err
}

func (r *repository) RentalsDueBetween(ctx context.Context, from, to time.Time) (int, error) {
	var count int
	err := r.db.WithContext(ctx).Raw(`
		SELECT COUNT(*) FROM rentals
		WHERE status = 'active' AND due_date >= ? AND due_date <= ?
	`, from, to).Scan(&count).Error
	return count, err
}

func (r *repository) OverdueRentalsCount(ctx context.Context, now time.Time) (int, error) {
	var count int
	err := r.db.WithContext(ctx).Raw(`
		SELECT COUNT(*) FROM rentals
		WHERE status = 'active' AND due_date < ?
	`, now).Scan(&count).Error
	return count, err
}

func (r *repository) CategoryBreakdown(ctx context.Context, from, to time.Time) ([]CategorySales, error) {
	var rows []CategorySales
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			CASE
				WHEN oi.product_id IS NULL THEN 'services'
				WHEN p.id IS NULL THEN 'unknown'
				ELSE p.category
			END AS category,
			COALESCE(SUM(oi.unit_amount_cents * oi.qty), 0) AS amount_cents,
			COALESCE(SUM(oi.qty), 0) AS qty
		FROM order_items oi
		JOIN (`+qualifyingOrders+`) o ON o.id = oi.order_id
		LEFT JOIN products p ON p.id = oi.product_id
		GROUP BY 1
		ORDER BY amount_cents DESC
	`, from, to).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ProductBreakdown(ctx context.Context, from, to time.Time, limit int) ([]ProductSales, error) {
	var rows []ProductSales
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			oi.product_id,
			MAX(oi.name) AS name,
			COALESCE(SUM(oi.unit_amount_cents * oi.qty), 0) AS amount_cents,
			COALESCE(SUM(oi.qty), 0) AS qty
		FROM order_items oi
		JOIN (`+qualifyingOrders+`) o ON o.id = oi.order_id
		GROUP BY oi.product_id
		ORDER BY amount_cents DESC
		LIMIT ?
	`, from, to, limit).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) MonthlyOrderSales(ctx context.Context, from, to time.Time) ([]MonthRow, error) {
	var rows []MonthRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			EXTRACT(YEAR FROM completed_at)::int AS year,
			EXTRACT(MONTH FROM completed_at)::int AS month,
			COALESCE(SUM(total_cents), 0) AS amount_cents
		FROM (`+qualifyingOrders+`) o
		GROUP BY 1, 2
		ORDER BY 1, 2
	`, from, to).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) MonthlyRentalPayments(ctx context.Context, from, to time.Time) ([]MonthRow, error) {
	var rows []MonthRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			EXTRACT(YEAR FROM paid_at)::int AS year,
			EXTRACT(MONTH FROM paid_at)::int AS month,
			COALESCE(SUM(amount_cents), 0) AS amount_cents
		FROM rental_payments
		WHERE paid_at >= ? AND paid_at <= ?
		GROUP BY 1, 2
		ORDER BY 1, 2
	`, from, to).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
