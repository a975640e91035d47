package audit

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/microcopias/copirent-backend/pkg/db/models"
	"github.com/microcopias/copirent-backend/pkg/pagination"
)

// Repository defines persistence for the append-only access log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.AccessLog) (*models.AccessLog, error)
	List(ctx context.Context, params pagination.Params, entityID *uuid.UUID) ([]models.AccessLog, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an access-log repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.AccessLog) (*models.AccessLog, error) {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *repository) List(ctx context.Context, params pagination.Params, entityID *uuid.UUID) ([]models.AccessLog, error) {
	query := r.db.WithContext(ctx).Model(&models.AccessLog{})
	if entityID != nil && *entityID != uuid.Nil {
		query = query.Where("entity_id = ?", *entityID)
	}
	if cursor, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, err
	} else if cursor != nil {
		query = query.Where(
			"(created_at, id) < (?, ?)",
			cursor.CreatedAt, cursor.ID,
		)
	}

	var entries []models.AccessLog
	err := query.
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
