package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/microcopias/copirent-backend/internal/audit"
	"github.com/microcopias/copirent-backend/internal/notifications"
	"github.com/microcopias/copirent-backend/internal/products"
	"github.com/microcopias/copirent-backend/pkg/config"
	"github.com/microcopias/copirent-backend/pkg/db/models"
	"github.com/microcopias/copirent-backend/pkg/enums"
	pkgerrors "github.com/microcopias/copirent-backend/pkg/errors"
	"github.com/microcopias/copirent-backend/pkg/logger"
	"github.com/microcopias/copirent-backend/pkg/metrics"
	"github.com/microcopias/copirent-backend/pkg/pagination"
	"github.com/microcopias/copirent-backend/pkg/security"
	"github.com/microcopias/copirent-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// AccountChecker reports whether a customer email matches an existing account.
type AccountChecker interface {
	AccountExists(ctx context.Context, email string) (bool, error)
}

// RentalSpawner creates the rental derived from a fulfilled order. The
// implementation treats an already-spawned rental as success.
type RentalSpawner interface {
	SpawnFromOrder(ctx context.Context, orderID uuid.UUID) error
}

// Service defines the order lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error)
	Update(ctx context.Context, input UpdateOrderInput) (*models.Order, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, input ListInput) (*OrderList, error)
	RevealIdentity(ctx context.Context, input RevealInput) (*RevealResult, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	cipher   *security.PIICipher
	accounts AccountChecker
	catalog  products.Lookup
	spawner  RentalSpawner
	audits   audit.Service
	sender   notifications.Sender
	core     *metrics.CoreMetrics
	logg     *logger.Logger
	billing  config.BillingConfig
	adminTo  string

	now   func() time.Time
	async func(fn func())
}

// NewService builds the order service with the required collaborators.
func NewService(
	repo Repository,
	tx txRunner,
	cipher *security.PIICipher,
	accounts AccountChecker,
	catalog products.Lookup,
	spawner RentalSpawner,
	audits audit.Service,
	sender notifications.Sender,
	core *metrics.CoreMetrics,
	logg *logger.Logger,
	billing config.BillingConfig,
	adminTo string,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if cipher == nil {
		return nil, fmt.Errorf("pii cipher required")
	}
	if spawner == nil {
		return nil, fmt.Errorf("rental spawner required")
	}
	if audits == nil {
		return nil, fmt.Errorf("audit service required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		cipher:   cipher,
		accounts: accounts,
		catalog:  catalog,
		spawner:  spawner,
		audits:   audits,
		sender:   sender,
		core:     core,
		logg:     logg,
		billing:  billing,
		adminTo:  adminTo,
		now:      time.Now,
		async:    func(fn func()) { go fn() },
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error) {
	if err := validateItems(input.Items); err != nil {
		return nil, err
	}
	if input.ShippingCents < 0 || input.DiscountCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "money fields must be non-negative").
			WithDetails(map[string]any{"fields": []string{"shipping_cents", "discount_cents"}})
	}
	if input.TaxCents != nil && *input.TaxCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tax must be non-negative").
			WithDetails(map[string]any{"field": "tax_cents"})
	}
	idType := input.Customer.IDType
	if idType == "" {
		idType = enums.IDTypeCedula
	}
	if !idType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid id type").
			WithDetails(map[string]any{"field": "customer.id_type"})
	}

	items, err := s.resolveItems(ctx, input.Items)
	if err != nil {
		return nil, err
	}

	now := s.now()
	subtotal := subtotalOfModels(items)
	tax := s.taxFor(subtotal, input.TaxCents)
	total := totalOf(subtotal, tax, input.ShippingCents, input.DiscountCents)

	order := &models.Order{
		CustomerName:    strings.TrimSpace(input.Customer.Name),
		CustomerEmail:   strings.ToLower(strings.TrimSpace(input.Customer.Email)),
		CustomerPhone:   strings.TrimSpace(input.Customer.Phone),
		IDType:          idType,
		ShippingAddress: input.ShippingAddress,
		Notes:           input.Notes,
		Status:          enums.OrderStatusPending,
		SubtotalCents:   subtotal,
		TaxCents:        tax,
		ShippingCents:   input.ShippingCents,
		DiscountCents:   input.DiscountCents,
		TotalCents:      total,
		Consent: &types.Consent{
			AcceptedAt:    now,
			PolicyVersion: input.Consent.PolicyVersion,
			IP:            input.IP,
			UserAgent:     input.UserAgent,
		},
		Items: items,
	}

	if err := s.applyIdentity(order, input.Customer.IDNumber); err != nil {
		return nil, err
	}

	accountExists := s.checkAccount(ctx, order.CustomerEmail)

	var created *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		created, txErr = s.repo.WithTx(tx).Create(ctx, order)
		if txErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "create order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.core.IncOrderCreated(string(created.Status))
	s.notifyCreated(ctx, created, accountExists)

	return &CreateOrderResult{Order: created, AccountExists: accountExists}, nil
}

func (s *service) Update(ctx context.Context, input UpdateOrderInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.Status != nil && !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status").
			WithDetails(map[string]any{"field": "status", "value": string(*input.Status)})
	}
	if err := validateMoneyPointers(input.ShippingCents, input.DiscountCents, input.TaxCents); err != nil {
		return nil, err
	}
	if input.Items != nil {
		if err := validateItemsUpdate(*input.Items); err != nil {
			return nil, err
		}
	}

	var updated *models.Order
	statusChanged := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		items := order.Items
		if input.Items != nil {
			items, err = s.applyItemsUpdate(ctx, repo, order, *input.Items)
			if err != nil {
				return err
			}
		}

		updates := map[string]any{}

		if input.Customer != nil {
			mergeCustomer(order, *input.Customer, updates)
			if err := s.applyIdentityUpdate(order, input.Customer.IDNumber, updates); err != nil {
				return err
			}
		} else if err := s.applyIdentityUpdate(order, order.IDNumber, updates); err != nil {
			return err
		}

		if input.ShippingAddress != nil {
			order.ShippingAddress = input.ShippingAddress
			updates["shipping_address"] = input.ShippingAddress
		}
		if input.Notes != nil {
			order.Notes = input.Notes
			updates["notes"] = input.Notes
		}
		if input.ShippingCents != nil {
			order.ShippingCents = *input.ShippingCents
			updates["shipping_cents"] = *input.ShippingCents
		}
		if input.DiscountCents != nil {
			order.DiscountCents = *input.DiscountCents
			updates["discount_cents"] = *input.DiscountCents
		}
		if input.TaxCents != nil {
			order.TaxCents = *input.TaxCents
			updates["tax_cents"] = *input.TaxCents
		}

		if input.Status != nil && *input.Status != order.Status {
			statusChanged = true
			order.Status = *input.Status
			updates["status"] = *input.Status
			completedAt := nextCompletedAt(order.CompletedAt, *input.Status, s.now())
			order.CompletedAt = completedAt
			updates["completed_at"] = completedAt
		}

		// Totals are never trusted from the caller.
		subtotal := subtotalOfModels(items)
		total := totalOf(subtotal, order.TaxCents, order.ShippingCents, order.DiscountCents)
		order.SubtotalCents = subtotal
		order.TotalCents = total
		updates["subtotal_cents"] = subtotal
		updates["total_cents"] = total

		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}
		order.Items = items
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if statusChanged {
		s.core.IncStatusChange(string(updated.Status))
	}

	// Spawn runs detached from the request: the committed update survives a
	// spawn failure, and the unique index keeps concurrent attempts single.
	if input.CreateRentals && updated.Status.IsFulfilled() && hasRentedItem(updated.Items) {
		orderID := updated.ID
		spawnCtx := context.WithoutCancel(ctx)
		s.async(func() {
			if err := s.spawner.SpawnFromOrder(spawnCtx, orderID); err != nil {
				if s.logg != nil {
					s.logg.Error(spawnCtx, "rental spawn failed", err)
				}
				return
			}
			s.core.IncRentalSpawned()
		})
	}

	if input.SendUpdateEmail && updated.CustomerEmail != "" {
		msg := notifications.ComposeOrderStatusUpdate(updated)
		sendCtx := context.WithoutCancel(ctx)
		s.async(func() {
			notifications.Dispatch(sendCtx, s.sender, s.logg, s.core, msg)
		})
	}

	return updated, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*OrderList, error) {
	if input.Filters.Status != nil && !input.Filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status").
			WithDetails(map[string]any{"field": "status"})
	}
	limit := pagination.NormalizeLimit(input.Pagination.Limit)
	rows, err := s.repo.List(ctx, input.Pagination, input.Filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	list := &OrderList{Orders: rows}
	if len(rows) > limit {
		list.Orders = rows[:limit]
		last := list.Orders[limit-1]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return list, nil
}

// RevealIdentity decrypts the stored identity number for an admin. The audit
// entry is written before the plaintext is released; if that write fails the
// reveal fails with it.
func (s *service) RevealIdentity(ctx context.Context, input RevealInput) (*RevealResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}

	order, err := s.repo.FindByID(ctx, input.OrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	plaintext := s.cipher.Decrypt(order.IDNumberEncrypted)

	if _, err := s.audits.Record(ctx, audit.RecordInput{
		ActorID:    input.ActorID,
		ActorEmail: input.ActorEmail,
		Action:     enums.AuditActionRevealID,
		EntityType: enums.AuditEntityOrder,
		EntityID:   order.ID,
		IP:         input.IP,
		UserAgent:  input.UserAgent,
		Meta:       map[string]any{"id_type": string(order.IDType)},
	}); err != nil {
		s.core.IncPIIReveal("audit_failed")
		return nil, err
	}

	s.core.IncPIIReveal("success")
	return &RevealResult{
		IDNumber:      plaintext,
		IDType:        order.IDType,
		IDNumberLast4: order.IDNumberLast4,
	}, nil
}

// applyIdentity encrypts and masks a plaintext identity number on a new
// order. Masked input is stored as-is: the transform already happened.
func (s *service) applyIdentity(order *models.Order, idNumber string) error {
	idNumber = strings.TrimSpace(idNumber)
	if idNumber == "" {
		return nil
	}
	if security.IsMasked(idNumber) {
		order.IDNumber = idNumber
		return nil
	}

	encrypted, err := s.cipher.Encrypt(idNumber)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "encrypt identity number")
	}
	order.IDNumberEncrypted = encrypted
	order.IDNumberLast4 = security.LastFour(idNumber)
	order.IDNumber = security.MaskIDNumber(idNumber)
	return nil
}

// applyIdentityUpdate is the idempotent save-time transform: a fresh
// plaintext value is encrypted once; an already-masked value is left alone.
func (s *service) applyIdentityUpdate(order *models.Order, idNumber string, updates map[string]any) error {
	idNumber = strings.TrimSpace(idNumber)
	if idNumber == "" || security.IsMasked(idNumber) {
		return nil
	}
	if order.IDNumberEncrypted != "" && idNumber == order.IDNumber {
		return nil
	}

	encrypted, err := s.cipher.Encrypt(idNumber)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "encrypt identity number")
	}
	order.IDNumberEncrypted = encrypted
	order.IDNumberLast4 = security.LastFour(idNumber)
	order.IDNumber = security.MaskIDNumber(idNumber)
	updates["id_number_encrypted"] = order.IDNumberEncrypted
	updates["id_number_last4"] = order.IDNumberLast4
	updates["id_number"] = order.IDNumber
	return nil
}

func (s *service) applyItemsUpdate(ctx context.Context, repo Repository, order *models.Order, update ItemsUpdate) ([]models.OrderItem, error) {
	if len(update.Replace) > 0 {
		items, err := s.resolveItems(ctx, update.Replace)
		if err != nil {
			return nil, err
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := repo.ReplaceItems(ctx, order.ID, items); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace order items")
		}
		return items, nil
	}

	byPosition := make(map[int]*models.OrderItem, len(order.Items))
	for i := range order.Items {
		byPosition[order.Items[i].Position] = &order.Items[i]
	}
	for _, patch := range update.PatchRentedAmount {
		item, ok := byPosition[patch.Position]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "patched item does not exist").
				WithDetails(map[string]any{"position": patch.Position})
		}
		if !item.IsRented {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "only rented items may be patched").
				WithDetails(map[string]any{"position": patch.Position})
		}
		if err := repo.UpdateItemUnitAmount(ctx, order.ID, patch.Position, patch.UnitAmountCents); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "patch item amount")
		}
		item.UnitAmountCents = patch.UnitAmountCents
	}
	return order.Items, nil
}

func (s *service) checkAccount(ctx context.Context, email string) bool {
	if s.accounts == nil {
		return false
	}
	exists, err := s.accounts.AccountExists(ctx, email)
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(ctx, "account existence check failed")
		}
		return false
	}
	return exists
}

func (s *service) notifyCreated(ctx context.Context, order *models.Order, accountExists bool) {
	sendCtx := context.WithoutCancel(ctx)
	msgs := make([]notifications.Message, 0, 2)
	if s.adminTo != "" {
		msgs = append(msgs, notifications.ComposeOrderCreated(s.adminTo, order, accountExists))
	}
	if order.CustomerEmail != "" {
		msgs = append(msgs, notifications.ComposeOrderConfirmation(order))
	}
	for _, msg := range msgs {
		m := msg
		s.async(func() {
			notifications.Dispatch(sendCtx, s.sender, s.logg, s.core, m)
		})
	}
}

func (s *service) taxFor(subtotal int, explicit *int) int {
	if explicit != nil {
		return *explicit
	}
	if s.billing.TaxRatePercent <= 0 || subtotal <= 0 {
		return 0
	}
	tax := decimal.NewFromInt(int64(subtotal)).
		Mul(decimal.NewFromFloat(s.billing.TaxRatePercent)).
		Div(decimal.NewFromInt(100)).
		Round(0)
	return int(tax.IntPart())
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
		case item.UnitAmountCents < 0:
			return itemError(i, "unit_amount_cents", "must be non-negative")
		case item.RatePerPrintCents < 0:
			return itemError(i, "rate_per_print_cents", "must be non-negative")
		case item.RatePerScanCents < 0:
			return itemError(i, "rate_per_scan_cents", "must be non-negative")
		case item.ProductID == nil && !item.IsCustom:
			return itemError(i, "product_id", "required unless the item is custom")
		}
	}
	return nil
}

func validateItemsUpdate(update ItemsUpdate) error {
	hasReplace := len(update.Replace) > 0
	hasPatch := len(update.PatchRentedAmount) > 0
	if hasReplace == hasPatch {
		return pkgerrors.New(pkgerrors.CodeValidation, "items update must set exactly one of replace or patch_rented_amounts")
	}
	if hasReplace {
		return validateItems(update.Replace)
	}
	for i, patch := range update.PatchRentedAmount {
		if patch.Position < 0 {
			return itemError(i, "position", "must be non-negative")
		}
		if patch.UnitAmountCents < 0 {
			return itemError(i, "unit_amount_cents", "must be non-negative")
		}
	}
	return nil
}

func validateMoneyPointers(shipping, discount, tax *int) error {
	fields := []string{}
	if shipping != nil && *shipping < 0 {
		fields = append(fields, "shipping_cents")
	}
	if discount != nil && *discount < 0 {
		fields = append(fields, "discount_cents")
	}
	if tax != nil && *tax < 0 {
		fields = append(fields, "tax_cents")
	}
	if len(fields) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "money fields must be non-negative").
			WithDetails(map[string]any{"fields": fields})
	}
	return nil
}

func itemError(index int, field, message string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid line item").
		WithDetails(map[string]any{"index": index, "field": field, "message": message})
}

// resolveItems turns line inputs into item rows. When a catalog is attached,
// every product reference must resolve, and catalog prices and meter rates
// back-fill fields the caller left at zero.
func (s *service) resolveItems(ctx context.Context, inputs []ItemInput) ([]models.OrderItem, error) {
	items := buildItems(inputs)
	if s.catalog == nil {
		return items, nil
	}

	ids := make([]uuid.UUID, 0, len(items))
	for i := range items {
		if items[i].ProductID != nil {
			ids = append(ids, *items[i].ProductID)
		}
	}
	if len(ids) == 0 {
		return items, nil
	}

	snapshots, err := s.catalog.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ProductID == nil {
			continue
		}
		snap, ok := snapshots[*items[i].ProductID]
		if !ok {
			return nil, itemError(i, "product_id", "does not match a catalog product")
		}
		if items[i].Model == "" {
			items[i].Model = snap.Model
		}
		if items[i].UnitAmountCents == 0 {
			if items[i].IsRented {
				items[i].UnitAmountCents = snap.MonthlyPriceCents
			} else {
				items[i].UnitAmountCents = snap.PriceCents
			}
		}
		if items[i].IsRented {
			if items[i].RatePerPrintCents == 0 {
				items[i].RatePerPrintCents = snap.RatePerPrintCents
			}
			if items[i].RatePerScanCents == 0 {
				items[i].RatePerScanCents = snap.RatePerScanCents
			}
		}
	}
	return items, nil
}

func buildItems(inputs []ItemInput) []models.OrderItem {
	items := make([]models.OrderItem, 0, len(inputs))
	for i, in := range inputs {
		items = append(items, models.OrderItem{
			Position:          i,
			ProductID:         in.ProductID,
			Name:              strings.TrimSpace(in.Name),
			Model:             strings.TrimSpace(in.Model),
			Qty:               in.Qty,
			UnitAmountCents:   in.UnitAmountCents,
			IsRented:          in.IsRented,
			IsCustom:          in.IsCustom,
			RatePerPrintCents: in.RatePerPrintCents,
			RatePerScanCents:  in.RatePerScanCents,
		})
	}
	return items
}

// mergeCustomer overwrites contact fields wholesale: a supplied customer
// block wins in full, never field by field.
func mergeCustomer(order *models.Order, in CustomerInput, updates map[string]any) {
	order.CustomerName = strings.TrimSpace(in.Name)
	order.CustomerEmail = strings.ToLower(strings.TrimSpace(in.Email))
	order.CustomerPhone = strings.TrimSpace(in.Phone)
	updates["customer_name"] = order.CustomerName
	updates["customer_email"] = order.CustomerEmail
	updates["customer_phone"] = order.CustomerPhone
	if in.IDType != "" && in.IDType.IsValid() {
		order.IDType = in.IDType
		updates["id_type"] = in.IDType
	}
}

// nextCompletedAt stamps the fulfillment timestamp exactly when the status
// enters shipped/completed and clears it when it leaves.
func nextCompletedAt(current *time.Time, status enums.OrderStatus, now time.Time) *time.Time {
	if !status.IsFulfilled() {
		return nil
	}
	if current != nil {
		return current
	}
	return &now
}

func subtotalOfModels(items []models.OrderItem) int {
	sum := 0
	for _, item := range items {
		sum += item.UnitAmountCents * item.Qty
	}
	return sum
}

func totalOf(subtotal, tax, shipping, discount int) int {
	total := subtotal + tax + shipping - discount
	if total < 0 {
		return 0
	}
	return total
}

func hasRentedItem(items []models.OrderItem) bool {
	for _, item := range items {
		if item.IsRented {
			return true
		}
	}
	return false
}
