package rentals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/microcopias/copirent-backend/internal/audit"
	"github.com/microcopias/copirent-backend/pkg/db"
	"github.com/microcopias/copirent-backend/pkg/db/models"
	"github.com/microcopias/copirent-backend/pkg/enums"
	pkgerrors "github.com/microcopias/copirent-backend/pkg/errors"
	"github.com/microcopias/copirent-backend/pkg/logger"
	"github.com/microcopias/copirent-backend/pkg/metrics"
	"github.com/microcopias/copirent-backend/pkg/pagination"
	"github.com/microcopias/copirent-backend/pkg/security"
)

const rentalsOrderIDConstraint = "idx_rentals_order_id"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines the rental lifecycle operations.
type Service interface {
	SpawnFromOrder(ctx context.Context, orderID uuid.UUID) error
	Create(ctx context.Context, input CreateInput) (*models.Rental, error)
	Update(ctx context.Context, input UpdateInput) (*models.Rental, error)
	End(ctx context.Context, input EndInput) (*models.Rental, error)
	Reopen(ctx context.Context, rentalID uuid.UUID) (*models.Rental, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Rental, error)
	List(ctx context.Context, input ListInput) (*RentalList, error)
	RevealIdentity(ctx context.Context, input RevealInput) (*RevealResult, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	cipher *security.PIICipher
	audits audit.Service
	core   *metrics.CoreMetrics
	logg   *logger.Logger
	now    func() time.Time
}

// NewService builds the rental service.
func NewService(repo Repository, tx txRunner, cipher *security.PIICipher, audits audit.Service, core *metrics.CoreMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("rentals repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if cipher == nil {
		return nil, fmt.Errorf("pii cipher required")
	}
	if audits == nil {
		return nil, fmt.Errorf("audit service required")
	}
	return &service{repo: repo, tx: tx, cipher: cipher, audits: audits, core: core, logg: logg, now: time.Now}, nil
}

// SpawnFromOrder derives a rental from a fulfilled order's rented lines. The
// unique index on order_id is the at-most-once guard: a conflict means some
// other caller already spawned it, which is success here.
func (s *service) SpawnFromOrder(ctx context.Context, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.repo.FindOrderForSpawn(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !order.Status.IsFulfilled() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not in a qualifying status")
	}

	items := make([]models.RentalItem, 0, len(order.Items))
	for _, line := range order.Items {
		if !line.IsRented {
			continue
		}
		items = append(items, models.RentalItem{
			OrderItemIndex:    line.Position,
			ProductID:         line.ProductID,
			Name:              line.Name,
			Model:             line.Model,
			Qty:               line.Qty,
			MonthlyPriceCents: line.UnitAmountCents,
			RatePerPrintCents: line.RatePerPrintCents,
			RatePerScanCents:  line.RatePerScanCents,
		})
	}
	if len(items) == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order has no rented items")
	}

	now := s.now()
	rental := &models.Rental{
		OrderID:           order.ID,
		CustomerName:      order.CustomerName,
		CustomerEmail:     order.CustomerEmail,
		CustomerPhone:     order.CustomerPhone,
		ShippingAddress:   order.ShippingAddress,
		Notes:             order.Notes,
		Status:            enums.RentalStatusActive,
		StartDate:         now,
		DueDate:           now.AddDate(0, 1, 0),
		IDNumberEncrypted: order.IDNumberEncrypted,
		IDNumberLast4:     order.IDNumberLast4,
		Items:             items,
	}

	if _, err := s.repo.Create(ctx, rental); err != nil {
		if db.IsUniqueViolation(err, rentalsOrderIDConstraint) {
			if s.logg != nil {
				s.logg.Info(ctx, "rental already exists for order, spawn is a no-op")
			}
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create rental")
	}
	return nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Rental, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if err := validateItems(input.Items); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Customer.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer name required").
			WithDetails(map[string]any{"field": "customer.name"})
	}

	now := s.now()
	start := now
	if input.StartDate != nil {
		start = *input.StartDate
	}
	due := start.AddDate(0, 1, 0)
	if input.DueDate != nil {
		due = *input.DueDate
	}
	if due.Before(start) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "due date must not precede start date").
			WithDetails(map[string]any{"field": "due_date"})
	}

	rental := &models.Rental{
		OrderID:         input.OrderID,
		CustomerName:    strings.TrimSpace(input.Customer.Name),
		CustomerEmail:   strings.ToLower(strings.TrimSpace(input.Customer.Email)),
		CustomerPhone:   strings.TrimSpace(input.Customer.Phone),
		ShippingAddress: input.ShippingAddress,
		Notes:           input.Notes,
		Status:          enums.RentalStatusActive,
		StartDate:       start,
		DueDate:         due,
		Items:           buildItems(input.Items),
	}

	created, err := s.repo.Create(ctx, rental)
	if err != nil {
		if db.IsUniqueViolation(err, rentalsOrderIDConstraint) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "order already has a rental")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create rental")
	}
	return created, nil
}

func (s *service) Update(ctx context.Context, input UpdateInput) (*models.Rental, error) {
	if input.RentalID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rental id required")
	}
	if input.Items != nil {
		if err := validateItems(input.Items); err != nil {
			return nil, err
		}
	}
	if input.Customer != nil && strings.TrimSpace(input.Customer.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer name required").
			WithDetails(map[string]any{"field": "customer.name"})
	}

	var updated *models.Rental
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		rental, err := repo.FindByID(ctx, input.RentalID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "rental not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load rental")
		}

		updates := map[string]any{}
		if input.Customer != nil {
			mergeCustomer(rental, *input.Customer, updates)
		}
		if input.ShippingAddress != nil {
			rental.ShippingAddress = input.ShippingAddress
			updates["shipping_address"] = input.ShippingAddress
		}
		if input.Notes != nil {
			rental.Notes = input.Notes
			updates["notes"] = input.Notes
		}
		if input.DueDate != nil {
			rental.DueDate = *input.DueDate
			updates["due_date"] = *input.DueDate
		}
		if input.Items != nil {
			items := buildItems(input.Items)
			for i := range items {
				items[i].RentalID = rental.ID
			}
			if err := repo.ReplaceItems(ctx, rental.ID, items); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace rental items")
			}
			rental.Items = items
		}

		if err := repo.Update(ctx, rental.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update rental")
		}
		updated = rental
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// End closes the rental. Ending an already-ended rental is a no-op, though a
// newly supplied settlement amount still overwrites the stored one.
func (s *service) End(ctx context.Context, input EndInput) (*models.Rental, error) {
	if input.RentalID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rental id required")
	}
	if input.FinalAmountCents != nil && *input.FinalAmountCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "final amount must be non-negative").
			WithDetails(map[string]any{"field": "final_amount_cents"})
	}

	var updated *models.Rental
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		rental, err := repo.FindByID(ctx, input.RentalID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "rental not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load rental")
		}

		updates := map[string]any{}
		if rental.Status != enums.RentalStatusEnded {
			now := s.now()
			rental.Status = enums.RentalStatusEnded
			rental.EndedAt = &now
			updates["status"] = enums.RentalStatusEnded
			updates["ended_at"] = rental.EndedAt
		}
		if input.FinalAmountCents != nil {
			rental.FinalAmountCents = *input.FinalAmountCents
			updates["final_amount_cents"] = *input.FinalAmountCents
		}

		if err := repo.Update(ctx, rental.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "end rental")
		}
		updated = rental
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Reopen reactivates an ended rental. Reopening an active rental is a no-op.
func (s *service) Reopen(ctx context.Context, rentalID uuid.UUID) (*models.Rental, error) {
	if rentalID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rental id required")
	}

	var updated *models.Rental
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		rental, err := repo.FindByID(ctx, rentalID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "rental not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load rental")
		}

		if rental.Status != enums.RentalStatusActive {
			rental.Status = enums.RentalStatusActive
			rental.EndedAt = nil
			if err := repo.Update(ctx, rental.ID, map[string]any{
				"status":   enums.RentalStatusActive,
				"ended_at": nil,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reopen rental")
			}
		}
		updated = rental
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Rental, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rental id required")
	}
	rental, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "rental not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load rental")
	}
	return rental, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*RentalList, error) {
	if input.Filters.Status != nil && !input.Filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid rental status").
			WithDetails(map[string]any{"field": "status"})
	}
	limit := pagination.NormalizeLimit(input.Pagination.Limit)
	rows, err := s.repo.List(ctx, input.Pagination, input.Filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list rentals")
	}

	list := &RentalList{Rentals: rows}
	if len(rows) > limit {
		list.Rentals = rows[:limit]
		last := list.Rentals[limit-1]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return list, nil
}

// RevealIdentity decrypts the identity number snapshotted on the rental. The
// audit entry is written before the plaintext is released; if that write
// fails the reveal fails with it.
func (s *service) RevealIdentity(ctx context.Context, input RevealInput) (*RevealResult, error) {
	if input.RentalID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rental id required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}

	rental, err := s.repo.FindByID(ctx, input.RentalID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "rental not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load rental")
	}

	plaintext := s.cipher.Decrypt(rental.IDNumberEncrypted)

	if _, err := s.audits.Record(ctx, audit.RecordInput{
		ActorID:    input.ActorID,
		ActorEmail: input.ActorEmail,
		Action:     enums.AuditActionRevealID,
		EntityType: enums.AuditEntityRental,
		EntityID:   rental.ID,
		IP:         input.IP,
		UserAgent:  input.UserAgent,
	}); err != nil {
		s.core.IncPIIReveal("audit_failed")
		return nil, err
	}

	s.core.IncPIIReveal("success")
	return &RevealResult{IDNumber: plaintext, IDNumberLast4: rental.IDNumberLast4}, nil
}

func validateItems(items []ItemInput) error {
	if len(items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one item required").
			WithDetails(map[string]any{"field": "items"})
	}
	for i, item := range items {
		switch {
		case strings.TrimSpace(item.Name) == "":
			return itemError(i, "name", "is required")
		case item.Qty < 1:
			return itemError(i, "qty", "must be at least 1")
		case item.MonthlyPriceCents < 0:
			return itemError(i, "monthly_price_cents", "must be non-negative")
		case item.RatePerPrintCents < 0:
			return itemError(i, "rate_per_print_cents", "must be non-negative")
		case item.RatePerScanCents < 0:
			return itemError(i, "rate_per_scan_cents", "must be non-negative")
		case item.OrderItemIndex < 0:
			return itemError(i, "order_item_index", "must be non-negative")
		}
	}
	return nil
}

func itemError(index int, field, message string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid rental item").
		WithDetails(map[string]any{"index": index, "field": field, "message": message})
}

func buildItems(inputs []ItemInput) []models.RentalItem {
	items := make([]models.RentalItem, 0, len(inputs))
	for _, in := range inputs {
		items = append(items, models.RentalItem{
			OrderItemIndex:    in.OrderItemIndex,
			ProductID:         in.ProductID,
			Name:              strings.TrimSpace(in.Name),
			Model:             strings.TrimSpace(in.Model),
			Qty:               in.Qty,
			MonthlyPriceCents: in.MonthlyPriceCents,
			RatePerPrintCents: in.RatePerPrintCents,
			RatePerScanCents:  in.RatePerScanCents,
		})
	}
	return items
}

// mergeCustomer overwrites the rental's contact fields wholesale.
func mergeCustomer(rental *models.Rental, in CustomerInput, updates map[string]any) {
	rental.CustomerName = strings.TrimSpace(in.Name)
	rental.CustomerEmail = strings.ToLower(strings.TrimSpace(in.Email))
	rental.CustomerPhone = strings.TrimSpace(in.Phone)
	updates["customer_name"] = rental.CustomerName
	updates["customer_email"] = rental.CustomerEmail
	updates["customer_phone"] = rental.CustomerPhone
}
