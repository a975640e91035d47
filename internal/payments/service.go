package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/microcopias/copirent-backend/internal/notifications"
	"github.com/microcopias/copirent-backend/pkg/db/models"
	pkgerrors "github.com/microcopias/copirent-backend/pkg/errors"
	"github.com/microcopias/copirent-backend/pkg/logger"
	"github.com/microcopias/copirent-backend/pkg/metrics"
	"github.com/microcopias/copirent-backend/pkg/pagination"
	"github.com/microcopias/copirent-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines the payment ledger operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.RentalPayment, error)
	List(ctx context.Context, input ListInput) (*PaymentList, error)
	Update(ctx context.Context, input UpdateInput) (*models.RentalPayment, error)
	Delete(ctx context.Context, paymentID uuid.UUID) error
}

type service struct {
	repo   Repository
	tx     txRunner
	sender notifications.Sender
	core   *metrics.CoreMetrics
	logg   *logger.Logger

	now   func() time.Time
	async func(fn func())
}

// NewService builds the payments service.
func NewService(repo Repository, tx txRunner, sender notifications.Sender, core *metrics.CoreMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		sender: sender,
		core:   core,
		logg:   logg,
		now:    time.Now,
		async:  func(fn func()) { go fn() },
	}, nil
}

// Create appends a ledger entry and advances the rental's due date by one
// calendar month from whichever is later, the current due date or now. Late
// payments therefore advance one cycle from today, never from the stale date.
func (s *service) Create(ctx context.Context, input CreateInput) (*models.RentalPayment, error) {
	if input.RentalID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rental id required")
	}
	if input.DiscountCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount must be non-negative").
			WithDetails(map[string]any{"field": "discount_cents"})
	}
	if err := validateUsage(input.Usage); err != nil {
		return nil, err
	}

	var created *models.RentalPayment
	var rental *models.Rental
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := repo.FindRental(ctx, input.RentalID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "rental not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load rental")
		}
		rental = loaded

		usageByIndex := make(map[int]UsageInput, len(input.Usage))
		for _, u := range input.Usage {
			usageByIndex[u.ItemIndex] = u
		}
		for _, u := range input.Usage {
			if _, ok := itemByIndex(rental.Items, u.ItemIndex); !ok {
				return pkgerrors.New(pkgerrors.CodeValidation, "usage references unknown rental item").
					WithDetails(map[string]any{"item_index": u.ItemIndex})
			}
		}

		now := s.now()
		monthlyBase, usageCharge, snapshot := computeCharges(rental.Items, usageByIndex)
		amount := paymentAmount(monthlyBase, usageCharge, input.DiscountCents)

		paidAt := now
		if input.PaidAt != nil {
			paidAt = *input.PaidAt
		}

		payment := &models.RentalPayment{
			RentalID:         rental.ID,
			AmountCents:      amount,
			MonthlyBaseCents: monthlyBase,
			DiscountCents:    input.DiscountCents,
			Items:            snapshot,
			Notes:            input.Notes,
			PaidAt:           paidAt,
		}
		created, err = repo.Create(ctx, payment)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}

		nextDue := advanceDueDate(rental.DueDate, now)
		rental.DueDate = nextDue
		if err := repo.UpdateRental(ctx, rental.ID, map[string]any{"due_date": nextDue}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance due date")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.core.ObservePayment(created.AmountCents)

	if rental.CustomerEmail != "" {
		msg := notifications.ComposePaymentReceipt(rental, created)
		sendCtx := context.WithoutCancel(ctx)
		s.async(func() {
			notifications.Dispatch(sendCtx, s.sender, s.logg, s.core, msg)
		})
	}

	return created, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*PaymentList, error) {
	if input.RentalID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rental id required")
	}
	limit := pagination.NormalizeLimit(input.Pagination.Limit)
	rows, err := s.repo.ListByRental(ctx, input.RentalID, input.Pagination)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}

	list := &PaymentList{Payments: rows}
	if len(rows) > limit {
		list.Payments = rows[:limit]
		last := list.Payments[limit-1]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return list, nil
}

// Update is an administrative correction. The amount is recomputed from the
// entry's own snapshotted rates; the owning rental's due date is not touched
// again.
func (s *service) Update(ctx context.Context, input UpdateInput) (*models.RentalPayment, error) {
	if input.PaymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	if input.DiscountCents != nil && *input.DiscountCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount must be non-negative").
			WithDetails(map[string]any{"field": "discount_cents"})
	}
	if err := validateUsage(input.Usage); err != nil {
		return nil, err
	}

	var updated *models.RentalPayment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payment, err := repo.FindByID(ctx, input.PaymentID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}

		updates := map[string]any{}
		if input.Notes != nil {
			payment.Notes = input.Notes
			updates["notes"] = input.Notes
		}
		if input.PaidAt != nil {
			payment.PaidAt = *input.PaidAt
			updates["paid_at"] = *input.PaidAt
		}
		if input.DiscountCents != nil {
			payment.DiscountCents = *input.DiscountCents
			updates["discount_cents"] = *input.DiscountCents
		}
		if input.Usage != nil {
			for _, u := range input.Usage {
				found := false
				for i := range payment.Items {
					if payment.Items[i].RentalItemIndex == u.ItemIndex {
						payment.Items[i].Copies = u.Copies
						payment.Items[i].Scans = u.Scans
						found = true
						break
					}
				}
				if !found {
					return pkgerrors.New(pkgerrors.CodeValidation, "usage references unknown payment line").
						WithDetails(map[string]any{"item_index": u.ItemIndex})
				}
			}
			updates["items"] = payment.Items
		}

		if input.Usage != nil || input.DiscountCents != nil {
			usageCharge := 0
			for _, line := range payment.Items {
				usageCharge += line.Copies*line.RatePerPrintCents + line.Scans*line.RatePerScanCents
			}
			payment.AmountCents = paymentAmount(payment.MonthlyBaseCents, usageCharge, payment.DiscountCents)
			updates["amount_cents"] = payment.AmountCents
		}

		if err := repo.Update(ctx, payment.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
		}
		updated = payment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a ledger entry. The rental's due date is not rolled back,
// since later cycles may already have been billed against it.
func (s *service) Delete(ctx context.Context, paymentID uuid.UUID) error {
	if paymentID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindByID(ctx, paymentID); err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		if err := repo.Delete(ctx, paymentID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete payment")
		}
		return nil
	})
}

func validateUsage(usage []UsageInput) error {
	for i, u := range usage {
		switch {
		case u.ItemIndex < 0:
			return usageError(i, "item_index", "must be non-negative")
		case u.Copies < 0:
			return usageError(i, "copies", "must be non-negative")
		case u.Scans < 0:
			return usageError(i, "scans", "must be non-negative")
		}
	}
	return nil
}

func usageError(index int, field, message string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid usage entry").
		WithDetails(map[string]any{"index": index, "field": field, "message": message})
}

func itemByIndex(items []models.RentalItem, index int) (*models.RentalItem, bool) {
	for i := range items {
		if items[i].OrderItemIndex == index {
			return &items[i], true
		}
	}
	return nil, false
}

// computeCharges walks the rental's current lines once: the monthly base is
// independent of usage, and every line is snapshotted onto the entry with
// the rates that applied at payment time.
func computeCharges(items []models.RentalItem, usage map[int]UsageInput) (monthlyBase, usageCharge int, snapshot []types.PaymentItem) {
	snapshot = make([]types.PaymentItem, 0, len(items))
	for _, item := range items {
		monthlyBase += item.MonthlyPriceCents * item.Qty

		line := types.PaymentItem{
			RentalItemIndex:   item.OrderItemIndex,
			Name:              item.Name,
			Model:             item.Model,
			Qty:               item.Qty,
			MonthlyPriceCents: item.MonthlyPriceCents,
			RatePerPrintCents: item.RatePerPrintCents,
			RatePerScanCents:  item.RatePerScanCents,
		}
		if u, ok := usage[item.OrderItemIndex]; ok {
			line.Copies = u.Copies
			line.Scans = u.Scans
			usageCharge += u.Copies*item.RatePerPrintCents + u.Scans*item.RatePerScanCents
		}
		snapshot = append(snapshot, line)
	}
	return monthlyBase, usageCharge, snapshot
}

func paymentAmount(monthlyBase, usageCharge, discount int) int {
	amount := monthlyBase + usageCharge - discount
	if amount < 0 {
		return 0
	}
	return amount
}

// advanceDueDate moves the next bill date one calendar month past the later
// of the current due date and now.
func advanceDueDate(dueDate, now time.Time) time.Time {
	anchor := dueDate
	if now.After(anchor) {
		anchor = now
	}
	return anchor.AddDate(0, 1, 0)
}
