package rentals

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/microcopias/copirent-backend/internal/audit"
	"github.com/microcopias/copirent-backend/pkg/db/models"
	"github.com/microcopias/copirent-backend/pkg/enums"
	pkgerrors "github.com/microcopias/copirent-backend/pkg/errors"
	"github.com/microcopias/copirent-backend/pkg/pagination"
	"github.com/microcopias/copirent-backend/pkg/security"
)

type stubRentalsRepo struct {
	order     *models.Order
	rental    *models.Rental
	created   *models.Rental
	updates   map[string]any
	replaced  []models.RentalItem
	createErr error
}

func (s *stubRentalsRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRentalsRepo) Create(ctx context.Context, rental *models.Rental) (*models.Rental, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	if rental.ID == uuid.Nil {
		rental.ID = uuid.New()
	}
	s.created = rental
	return rental, nil
}

func (s *stubRentalsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Rental, error) {
	if s.rental == nil || s.rental.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.rental, nil
}

func (s *stubRentalsRepo) FindOrderForSpawn(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

func (s *stubRentalsRepo) List(ctx context.Context, params pagination.Params, filters ListFilters) ([]models.Rental, error) {
	return nil, nil
}

func (s *stubRentalsRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	s.updates = updates
	return nil
}

func (s *stubRentalsRepo) ReplaceItems(ctx context.Context, rentalID uuid.UUID, items []models.RentalItem) error {
	s.replaced = items
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubAuditService struct {
	records []audit.RecordInput
	err     error
}

func (s *stubAuditService) Record(ctx context.Context, input audit.RecordInput) (*models.AccessLog, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.records = append(s.records, input)
	return &models.AccessLog{ID: uuid.New()}, nil
}

func (s *stubAuditService) List(ctx context.Context, input audit.ListInput) (*audit.EntryList, error) {
	return &audit.EntryList{}, nil
}

type rentalFixture struct {
	repo   *stubRentalsRepo
	audits *stubAuditService
	cipher *security.PIICipher
	svc    *service
	now    time.Time
}

func newRentalFixture(t *testing.T) *rentalFixture {
	t.Helper()

	cipher, err := security.NewPIICipher("rentals-test-secret")
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}
	repo := &stubRentalsRepo{}
	audits := &stubAuditService{}

	svc, err := NewService(repo, stubTxRunner{}, cipher, audits, nil, nil)
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}
	impl := svc.(*service)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	impl.now = func() time.Time { return now }

	return &rentalFixture{repo: repo, audits: audits, cipher: cipher, svc: impl, now: now}
}

func spawnableOrder() *models.Order {
	productID := uuid.New()
	return &models.Order{
		ID:                uuid.New(),
		CustomerName:      "Marta Gomez",
		CustomerEmail:     "marta@example.com",
		Status:            enums.OrderStatusShipped,
		IDNumberEncrypted: "blob",
		IDNumberLast4:     "0133",
		Items: []models.OrderItem{
			{Position: 0, ProductID: &productID, Name: "Copier X200", Qty: 1, UnitAmountCents: 100000, IsRented: true, RatePerPrintCents: 50, RatePerScanCents: 30},
			{Position: 1, Name: "Toner", Qty: 3, UnitAmountCents: 20000, IsCustom: true},
		},
	}
}

func TestSpawnFromOrderBuildsRental(t *testing.T) {
	f := newRentalFixture(t)
	f.repo.order = spawnableOrder()

	if err := f.svc.SpawnFromOrder(context.Background(), f.repo.order.ID); err != nil {
		t.Fatalf("expected success got %v", err)
	}

	rental := f.repo.created
	if rental == nil {
		t.Fatal("expected rental to be created")
	}
	if rental.OrderID != f.repo.order.ID {
		t.Fatal("rental must reference the source order")
	}
	if len(rental.Items) != 1 {
		t.Fatalf("expected only the rented line, got %d items", len(rental.Items))
	}
	if rental.Items[0].MonthlyPriceCents != 100000 {
		t.Fatalf("expected monthly price carried from unit amount, got %d", rental.Items[0].MonthlyPriceCents)
	}
	if !rental.DueDate.Equal(f.now.AddDate(0, 1, 0)) {
		t.Fatalf("expected due date one month out, got %v", rental.DueDate)
	}
	if rental.IDNumberEncrypted != "blob" || rental.IDNumberLast4 != "0133" {
		t.Fatal("identity snapshot must be copied from the order")
	}
}

func TestSpawnFromOrderIsNoOpOnDuplicate(t *testing.T) {
	f := newRentalFixture(t)
	f.repo.order = spawnableOrder()
	f.repo.createErr = &pgconn.PgError{Code: "23505", ConstraintName: "idx_rentals_order_id"}

	if err := f.svc.SpawnFromOrder(context.Background(), f.repo.order.ID); err != nil {
		t.Fatalf("duplicate spawn must succeed silently, got %v", err)
	}
}

func TestSpawnFromOrderRejectsUnfulfilledOrder(t *testing.T) {
	f := newRentalFixture(t)
	f.repo.order = spawnableOrder()
	f.repo.order.Status = enums.OrderStatusPaid

	err := f.svc.SpawnFromOrder(context.Background(), f.repo.order.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict got %v", err)
	}
}

func TestSpawnFromOrderRequiresRentedItems(t *testing.T) {
	f := newRentalFixture(t)
	f.repo.order = spawnableOrder()
	f.repo.order.Items[0].IsRented = false

	err := f.svc.SpawnFromOrder(context.Background(), f.repo.order.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict got %v", err)
	}
}

func TestCreateConflictsWhenOrderHasRental(t *testing.T) {
	f := newRentalFixture(t)
	f.repo.createErr = &pgconn.PgError{Code: "23505", ConstraintName: "idx_rentals_order_id"}

	_, err := f.svc.Create(context.Background(), CreateInput{
		OrderID:  uuid.New(),
		Customer: CustomerInput{Name: "Marta Gomez"},
		Items:    []ItemInput{{Name: "Copier X200", Qty: 1, MonthlyPriceCents: 100000}},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict got %v", err)
	}
}

func activeRental(now time.Time) *models.Rental {
	return &models.Rental{
		ID:           uuid.New(),
		OrderID:      uuid.New(),
		CustomerName: "Marta Gomez",
		Status:       enums.RentalStatusActive,
		StartDate:    now,
		DueDate:      now.AddDate(0, 1, 0),
	}
}

func TestEndStampsOnce(t *testing.T) {
	f := newRentalFixture(t)
	f.repo.rental = activeRental(f.now)

	ended, err := f.svc.End(context.Background(), EndInput{RentalID: f.repo.rental.ID})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if ended.Status != enums.RentalStatusEnded || ended.EndedAt == nil {
		t.Fatalf("expected ended rental got %+v", ended)
	}
	stamp := *ended.EndedAt

	// a second end keeps the first stamp but may record a settlement
	final := 42000
	ended, err = f.svc.End(context.Background(), EndInput{RentalID: f.repo.rental.ID, FinalAmountCents: &final})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if !ended.EndedAt.Equal(stamp) {
		t.Fatalf("expected stamp %v kept got %v", stamp, ended.EndedAt)
	}
	if ended.FinalAmountCents != 42000 {
		t.Fatalf("expected settlement recorded got %d", ended.FinalAmountCents)
	}
	if _, ok := f.repo.updates["status"]; ok {
		t.Fatal("second end must not rewrite the status")
	}
}

func TestReopenClearsEndedAt(t *testing.T) {
	f := newRentalFixture(t)
	rental := activeRental(f.now)
	endedAt := f.now.Add(-time.Hour)
	rental.Status = enums.RentalStatusEnded
	rental.EndedAt = &endedAt
	f.repo.rental = rental

	reopened, err := f.svc.Reopen(context.Background(), rental.ID)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if reopened.Status != enums.RentalStatusActive || reopened.EndedAt != nil {
		t.Fatalf("expected active rental got %+v", reopened)
	}

	// reopening an active rental is a no-op
	f.repo.updates = nil
	if _, err := f.svc.Reopen(context.Background(), rental.ID); err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if f.repo.updates != nil {
		t.Fatal("reopen of an active rental must not write")
	}
}

func TestUpdateReplacesItemsAndMergesCustomer(t *testing.T) {
	f := newRentalFixture(t)
	f.repo.rental = activeRental(f.now)
	f.repo.rental.CustomerPhone = "+57 300 000 0000"

	updated, err := f.svc.Update(context.Background(), UpdateInput{
		RentalID: f.repo.rental.ID,
		Customer: &CustomerInput{Name: "Jorge Prieto", Email: "JORGE@example.com"},
		Items:    []ItemInput{{Name: "Copier X300", Qty: 2, MonthlyPriceCents: 120000}},
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if updated.CustomerName != "Jorge Prieto" || updated.CustomerEmail != "jorge@example.com" {
		t.Fatalf("expected merged customer got %q / %q", updated.CustomerName, updated.CustomerEmail)
	}
	// contact block is overwritten wholesale, so the omitted phone clears
	if updated.CustomerPhone != "" {
		t.Fatalf("expected phone cleared got %q", updated.CustomerPhone)
	}
	if len(f.repo.replaced) != 1 || f.repo.replaced[0].MonthlyPriceCents != 120000 {
		t.Fatalf("expected items replaced got %+v", f.repo.replaced)
	}
}

func TestRevealIdentityFailsClosedWhenAuditFails(t *testing.T) {
	f := newRentalFixture(t)
	rental := activeRental(f.now)
	blob, err := f.cipher.Encrypt("1094820133")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	rental.IDNumberEncrypted = blob
	f.repo.rental = rental
	f.audits.err = pkgerrors.New(pkgerrors.CodeDependency, "audit store down")

	result, err := f.svc.RevealIdentity(context.Background(), RevealInput{
		RentalID: rental.ID,
		ActorID:  uuid.New(),
	})
	if err == nil || result != nil {
		t.Fatal("reveal must fail closed when the audit write fails")
	}
}

func TestRevealIdentityAuditsRentalEntity(t *testing.T) {
	f := newRentalFixture(t)
	rental := activeRental(f.now)
	blob, err := f.cipher.Encrypt("1094820133")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	rental.IDNumberEncrypted = blob
	rental.IDNumberLast4 = "0133"
	f.repo.rental = rental

	result, err := f.svc.RevealIdentity(context.Background(), RevealInput{
		RentalID: rental.ID,
		ActorID:  uuid.New(),
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if result.IDNumber != "1094820133" {
		t.Fatalf("expected plaintext got %q", result.IDNumber)
	}
	if len(f.audits.records) != 1 || f.audits.records[0].EntityType != enums.AuditEntityRental {
		t.Fatalf("expected one rental audit entry got %+v", f.audits.records)
	}
}
