package reports

import (
	"context"
	"testing"
	"time"

	pkgerrors "github.com/microcopias/copirent-backend/pkg/errors"
)

type stubReportsRepo struct {
	orderSales     int
	ordersCount    int
	rentalPayments int
	endedRentals   int
	activeRentals  int
	pendingOrders  int
	dueSoon        int
	overdue        int
	categories     []CategorySales
	products       []ProductSales
	orderMonths    []MonthRow
	rentalMonths   []MonthRow

	salesCalls int
}

func (s *stubReportsRepo) OrderSalesTotal(_ context.Context, _, _ time.Time) (int, int, error) {
	s.salesCalls++
	return s.orderSales, s.ordersCount, nil
}

func (s *stubReportsRepo) RentalPaymentsTotal(_ context.Context, _, _ time.Time) (int, error) {
	return s.rentalPayments, nil
}

func (s *stubReportsRepo) EndedRentalsTotal(_ context.Context, _, _ time.Time) (int, error) {
	return s.endedRentals, nil
}

func (s *stubReportsRepo) ActiveRentalsCount(_ context.Context) (int, error) {
	return s.activeRentals, nil
}

func (s *stubReportsRepo) PendingOrdersCount(_ context.Context) (int, error) {
	return s.pendingOrders, nil
}

func (s *stubReportsRepo) RentalsDueBetween(_ context.Context, _, _ time.Time) (int, error) {
	return s.dueSoon, nil
}

func (s *stubReportsRepo) OverdueRentalsCount(_ context.Context, _ time.Time) (int, error) {
	return s.overdue, nil
}

func (s *stubReportsRepo) CategoryBreakdown(_ context.Context, _, _ time.Time) ([]CategorySales, error) {
	return s.categories, nil
}

func (s *stubReportsRepo) ProductBreakdown(_ context.Context, _, _ time.Time, _ int) ([]ProductSales, error) {
	return s.products, nil
}

func (s *stubReportsRepo) MonthlyOrderSales(_ context.Context, _, _ time.Time) ([]MonthRow, error) {
	return s.orderMonths, nil
}

func (s *stubReportsRepo) MonthlyRentalPayments(_ context.Context, _, _ time.Time) ([]MonthRow, error) {
	return s.rentalMonths, nil
}

type stubCache struct {
	store map[string]string
	sets  int
}

func (s *stubCache) Get(_ context.Context, key string) (string, error) {
	return s.store[key], nil
}

func (s *stubCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	if s.store == nil {
		s.store = map[string]string{}
	}
	s.store[key] = value.(string)
	s.sets++
	return nil
}

func (s *stubCache) CacheKey(parts ...string) string {
	key := "copirent"
	for _, part := range parts {
		key += ":" + part
	}
	return key
}

func newReportsFixture(t *testing.T, repo *stubReportsRepo, cache Cache, ttl time.Duration) Service {
	t.Helper()

	svc, err := NewService(repo, cache, ttl, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	impl := svc.(*service)
	impl.now = func() time.Time {
		return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	}
	return svc
}

func TestOverviewSumsThreeMoneySources(t *testing.T) {
	repo := &stubReportsRepo{
		orderSales:     120000,
		ordersCount:    4,
		rentalPayments: 45000,
		endedRentals:   30000,
		activeRentals:  7,
	}
	svc := newReportsFixture(t, repo, nil, 0)

	overview, err := svc.Overview(context.Background(), Range{})
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if overview.TotalSalesCents != 195000 {
		t.Fatalf("total = %d, want 195000", overview.TotalSalesCents)
	}
	if overview.OrdersCount != 4 || overview.ActiveRentalsCount != 7 {
		t.Fatalf("counts = %d/%d", overview.OrdersCount, overview.ActiveRentalsCount)
	}
}

func TestOverviewDefaultsToTrailingThirtyDays(t *testing.T) {
	svc := newReportsFixture(t, &stubReportsRepo{}, nil, 0)

	overview, err := svc.Overview(context.Background(), Range{})
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	wantTo := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	if !overview.Range.To.Equal(wantTo) {
		t.Fatalf("to = %v, want %v", overview.Range.To, wantTo)
	}
	if !overview.Range.From.Equal(wantTo.AddDate(0, 0, -30)) {
		t.Fatalf("from = %v", overview.Range.From)
	}
}

func TestOverviewRejectsOneSidedRange(t *testing.T) {
	svc := newReportsFixture(t, &stubReportsRepo{}, nil, 0)

	_, err := svc.Overview(context.Background(), Range{From: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("error = %v, want validation", err)
	}
}

func TestOverviewRejectsInvertedRange(t *testing.T) {
	svc := newReportsFixture(t, &stubReportsRepo{}, nil, 0)

	_, err := svc.Overview(context.Background(), Range{
		From: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("error = %v, want validation", err)
	}
}

func TestOverviewWritesAndServesCache(t *testing.T) {
	repo := &stubReportsRepo{orderSales: 50000}
	cache := &stubCache{}
	svc := newReportsFixture(t, repo, cache, time.Minute)
	rng := Range{
		From: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}

	first, err := svc.Overview(context.Background(), rng)
	if err != nil {
		t.Fatalf("first Overview: %v", err)
	}
	if cache.sets != 1 {
		t.Fatalf("cache sets = %d, want 1", cache.sets)
	}

	repo.orderSales = 999999
	second, err := svc.Overview(context.Background(), rng)
	if err != nil {
		t.Fatalf("second Overview: %v", err)
	}
	if second.OrderSalesCents != first.OrderSalesCents {
		t.Fatalf("cached order sales = %d, want %d", second.OrderSalesCents, first.OrderSalesCents)
	}
	if repo.salesCalls != 1 {
		t.Fatalf("repo hit %d times, want 1", repo.salesCalls)
	}
}

func TestOverviewSkipsCacheWithoutTTL(t *testing.T) {
	repo := &stubReportsRepo{}
	cache := &stubCache{}
	svc := newReportsFixture(t, repo, cache, 0)

	if _, err := svc.Overview(context.Background(), Range{}); err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if cache.sets != 0 {
		t.Fatalf("cache sets = %d, want 0", cache.sets)
	}
}

func TestDashboardAddsOperationalCounters(t *testing.T) {
	repo := &stubReportsRepo{
		orderSales:    10000,
		pendingOrders: 3,
		dueSoon:       5,
		overdue:       2,
	}
	svc := newReportsFixture(t, repo, nil, 0)

	dash, err := svc.Dashboard(context.Background(), Range{})
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if dash.PendingOrders != 3 || dash.RentalsDueSoon != 5 || dash.OverdueRentals != 2 {
		t.Fatalf("counters = %d/%d/%d", dash.PendingOrders, dash.RentalsDueSoon, dash.OverdueRentals)
	}
	if dash.Overview.OrderSalesCents != 10000 {
		t.Fatalf("overview sales = %d", dash.Overview.OrderSalesCents)
	}
}

func TestMergeMonthlySeriesZeroFillsGaps(t *testing.T) {
	rng := Range{
		From: time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC),
	}
	orders := []MonthRow{{Year: 2026, Month: 1, AmountCents: 10000}}
	rentals := []MonthRow{{Year: 2026, Month: 3, AmountCents: 4000}}

	buckets := MergeMonthlySeries(rng, orders, rentals)
	if len(buckets) != 4 {
		t.Fatalf("buckets = %d, want 4", len(buckets))
	}
	if buckets[0].SalesCents != 10000 || buckets[0].RentalsCents != 0 {
		t.Fatalf("january = %+v", buckets[0])
	}
	if buckets[1].SalesCents != 0 || buckets[1].RentalsCents != 0 {
		t.Fatalf("february = %+v", buckets[1])
	}
	if buckets[2].RentalsCents != 4000 {
		t.Fatalf("march = %+v", buckets[2])
	}
	if buckets[3].Year != 2026 || buckets[3].Month != 4 {
		t.Fatalf("april = %+v", buckets[3])
	}
}

func TestMergeMonthlySeriesCrossesYearBoundary(t *testing.T) {
	rng := Range{
		From: time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}

	buckets := MergeMonthlySeries(rng, nil, nil)
	if len(buckets) != 4 {
		t.Fatalf("buckets = %d, want 4", len(buckets))
	}
	if buckets[0].Year != 2025 || buckets[0].Month != 11 {
		t.Fatalf("first = %+v", buckets[0])
	}
	if buckets[3].Year != 2026 || buckets[3].Month != 2 {
		t.Fatalf("last = %+v", buckets[3])
	}
}
