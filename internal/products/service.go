package products

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/microcopias/copirent-backend/pkg/db/models"
	pkgerrors "github.com/microcopias/copirent-backend/pkg/errors"
)

// CategoryServices is the fallback bucket for custom lines without a catalog
// product behind them.
const CategoryServices = "services"

// CategoryUnknown is used when a product reference no longer resolves.
const CategoryUnknown = "unknown"

// Snapshot carries the catalog fields the order/rental paths copy onto their
// own lines.
type Snapshot struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	Model             string    `json:"model"`
	Category          string    `json:"category"`
	PriceCents        int       `json:"price_cents"`
	MonthlyPriceCents int       `json:"monthly_price_cents"`
	RatePerPrintCents int       `json:"rate_per_print_cents"`
	RatePerScanCents  int       `json:"rate_per_scan_cents"`
}

// Lookup resolves product references for snapshotting and report attribution.
type Lookup interface {
	Get(ctx context.Context, id uuid.UUID) (*Snapshot, error)
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Snapshot, error)
}

type service struct {
	repo Repository
}

// NewLookup builds the catalog lookup collaborator.
func NewLookup(repo Repository) (Lookup, error) {
	if repo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Snapshot, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	snap := toSnapshot(product)
	return &snap, nil
}

func (s *service) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Snapshot, error) {
	unique := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return map[uuid.UUID]Snapshot{}, nil
	}

	rows, err := s.repo.FindByIDs(ctx, unique)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	out := make(map[uuid.UUID]Snapshot, len(rows))
	for i := range rows {
		out[rows[i].ID] = toSnapshot(&rows[i])
	}
	return out, nil
}

func toSnapshot(p *models.Product) Snapshot {
	return Snapshot{
		ID:                p.ID,
		Name:              p.Name,
		Model:             p.Model,
		Category:          p.Category,
		PriceCents:        p.PriceCents,
		MonthlyPriceCents: p.MonthlyPriceCents,
		RatePerPrintCents: p.RatePerPrintCents,
		RatePerScanCents:  p.RatePerScanCents,
	}
}
