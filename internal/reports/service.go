package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pkgerrors "github.com/microcopias/copirent-backend/pkg/errors"
	"github.com/microcopias/copirent-backend/pkg/logger"
)

const (
	defaultRangeDays = 30
	topProductsLimit = 10
	dueSoonDays      = 7
)

// Cache is the small read-side cache surface the service needs. A nil cache
// disables caching entirely.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CacheKey(parts ...string) string
}

// Service exposes the read-only reporting surface.
type Service interface {
	Overview(ctx context.Context, rng Range) (*Overview, error)
	Dashboard(ctx context.Context, rng Range) (*Dashboard, error)
}

type service struct {
	repo     Repository
	cache    Cache
	cacheTTL time.Duration
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the reporting service.
func NewService(repo Repository, cache Cache, cacheTTL time.Duration, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reports repository required")
	}
	return &service{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
		logg:     logg,
		now:      time.Now,
	}, nil
}

func (s *service) Overview(ctx context.Context, rng Range) (*Overview, error) {
	normalized, err := s.normalizeRange(rng)
	if err != nil {
		return nil, err
	}

	if cached := s.fromCache(ctx, normalized); cached != nil {
		return cached, nil
	}

	overview, err := s.buildOverview(ctx, normalized)
	if err != nil {
		return nil, err
	}

	s.toCache(ctx, normalized, overview)
	return overview, nil
}

func (s *service) Dashboard(ctx context.Context, rng Range) (*Dashboard, error) {
	overview, err := s.Overview(ctx, rng)
	if err != nil {
		return nil, err
	}

	now := s.now()
	pending, err := s.repo.PendingOrdersCount(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count pending orders")
	}
	dueSoon, err := s.repo.RentalsDueBetween(ctx, now, now.AddDate(0, 0, dueSoonDays))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count due rentals")
	}
	overdue, err := s.repo.OverdueRentalsCount(ctx, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count overdue rentals")
	}

	return &Dashboard{
		Overview:       *overview,
		PendingOrders:  pending,
		RentalsDueSoon: dueSoon,
		OverdueRentals: overdue,
	}, nil
}

func (s *service) buildOverview(ctx context.Context, rng Range) (*Overview, error) {
	orderSales, ordersCount, err := s.repo.OrderSalesTotal(ctx, rng.From, rng.To)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum order sales")
	}
	rentalPayments, err := s.repo.RentalPaymentsTotal(ctx, rng.From, rng.To)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum rental payments")
	}
	endedRentals, err := s.repo.EndedRentalsTotal(ctx, rng.From, rng.To)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum ended rentals")
	}
	activeRentals, err := s.repo.ActiveRentalsCount(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count active rentals")
	}
	categories, err := s.repo.CategoryBreakdown(ctx, rng.From, rng.To)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "category breakdown")
	}
	products, err := s.repo.ProductBreakdown(ctx, rng.From, rng.To, topProductsLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "product breakdown")
	}
	orderMonths, err := s.repo.MonthlyOrderSales(ctx, rng.From, rng.To)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "monthly order sales")
	}
	rentalMonths, err := s.repo.MonthlyRentalPayments(ctx, rng.From, rng.To)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "monthly rental payments")
	}

	return &Overview{
		Range:               rng,
		TotalSalesCents:     orderSales + rentalPayments + endedRentals,
		OrderSalesCents:     orderSales,
		RentalPaymentsCents: rentalPayments,
		EndedRentalsCents:   endedRentals,
		OrdersCount:         ordersCount,
		ActiveRentalsCount:  activeRentals,
		Categories:          categories,
		Products:            products,
		Monthly:             MergeMonthlySeries(rng, orderMonths, rentalMonths),
	}, nil
}

func (s *service) normalizeRange(rng Range) (Range, error) {
	now := s.now()
	if rng.From.IsZero() && rng.To.IsZero() {
		return Range{From: now.AddDate(0, 0, -defaultRangeDays), To: now}, nil
	}
	if rng.From.IsZero() || rng.To.IsZero() {
		return Range{}, pkgerrors.New(pkgerrors.CodeValidation, "both from and to are required when either is set")
	}
	if rng.To.Before(rng.From) {
		return Range{}, pkgerrors.New(pkgerrors.CodeValidation, "date range end precedes start").
			WithDetails(map[string]any{"from": rng.From, "to": rng.To})
	}
	return rng, nil
}

func (s *service) fromCache(ctx context.Context, rng Range) *Overview {
	if s.cache == nil || s.cacheTTL <= 0 {
		return nil
	}
	raw, err := s.cache.Get(ctx, s.cacheKey(rng))
	if err != nil || raw == "" {
		return nil
	}
	var overview Overview
	if err := json.Unmarshal([]byte(raw), &overview); err != nil {
		return nil
	}
	return &overview
}

func (s *service) toCache(ctx context.Context, rng Range, overview *Overview) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	payload, err := json.Marshal(overview)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cacheKey(rng), string(payload), s.cacheTTL); err != nil && s.logg != nil {
		s.logg.Warn(ctx, "reports cache write failed")
	}
}

func (s *service) cacheKey(rng Range) string {
	return s.cache.CacheKey(
		"reports", "overview",
		rng.From.UTC().Format("20060102"),
		rng.To.UTC().Format("20060102"),
	)
}

// MergeMonthlySeries zero-fills every calendar month in the range and merges
// the two sources by (year, month). A month with rentals but no orders still
// appears with zero sales.
func MergeMonthlySeries(rng Range, orders, rentals []MonthRow) []MonthBucket {
	type key struct{ year, month int }
	sales := make(map[key]int, len(orders))
	for _, row := range orders {
		sales[key{row.Year, row.Month}] = row.AmountCents
	}
	rents := make(map[key]int, len(rentals))
	for _, row := range rentals {
		rents[key{row.Year, row.Month}] = row.AmountCents
	}

	start := time.Date(rng.From.Year(), rng.From.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(rng.To.Year(), rng.To.Month(), 1, 0, 0, 0, 0, time.UTC)

	var buckets []MonthBucket
	for cursor := start; !cursor.After(end); cursor = cursor.AddDate(0, 1, 0) {
		k := key{cursor.Year(), int(cursor.Month())}
		buckets = append(buckets, MonthBucket{
			Year:         k.year,
			Month:        k.month,
			SalesCents:   sales[k],
			RentalsCents: rents[k],
		})
	}
	return buckets
}
