package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/microcopias/copirent-backend/pkg/db/models"
	"github.com/microcopias/copirent-backend/pkg/enums"
	pkgerrors "github.com/microcopias/copirent-backend/pkg/errors"
	"github.com/microcopias/copirent-backend/pkg/pagination"
)

// RecordInput captures one sensitive-field view for the audit trail.
type RecordInput struct {
	ActorID    uuid.UUID
	ActorEmail string
	Action     enums.AuditAction
	EntityType enums.AuditEntityType
	EntityID   uuid.UUID
	IP         string
	UserAgent  string
	Meta       map[string]any
}

// ListInput filters the access-log review endpoint.
type ListInput struct {
	Pagination pagination.Params
	EntityID   *uuid.UUID
}

// EntryList wraps the paginated entries plus the next page cursor.
type EntryList struct {
	Entries    []models.AccessLog `json:"entries"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

// Service writes and reads the append-only access log. Entries are never
// updated or deleted here.
type Service interface {
	Record(ctx context.Context, input RecordInput) (*models.AccessLog, error)
	List(ctx context.Context, input ListInput) (*EntryList, error)
}

type service struct {
	repo Repository
}

// NewService builds the audit service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Record(ctx context.Context, input RecordInput) (*models.AccessLog, error) {
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if !input.Action.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid audit action")
	}
	if !input.EntityType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid audit entity type")
	}
	if input.EntityID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "entity id required")
	}

	entry := &models.AccessLog{
		ActorID:    input.ActorID,
		ActorEmail: input.ActorEmail,
		Action:     input.Action,
		EntityType: input.EntityType,
		EntityID:   input.EntityID,
		IP:         input.IP,
		UserAgent:  input.UserAgent,
	}
	if len(input.Meta) > 0 {
		raw, err := json.Marshal(input.Meta)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "encode audit meta")
		}
		entry.Meta = raw
	}

	created, err := s.repo.Create(ctx, entry)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write access log")
	}
	return created, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*EntryList, error) {
	limit := pagination.NormalizeLimit(input.Pagination.Limit)
	entries, err := s.repo.List(ctx, input.Pagination, input.EntityID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list access logs")
	}

	list := &EntryList{Entries: entries}
	if len(entries) > limit {
		list.Entries = entries[:limit]
		last := list.Entries[limit-1]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return list, nil
}
