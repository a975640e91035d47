package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/microcopias/copirent-backend/pkg/db/models"
	"github.com/microcopias/copirent-backend/pkg/enums"
	pkgerrors "github.com/microcopias/copirent-backend/pkg/errors"
	"github.com/microcopias/copirent-backend/pkg/pagination"
)

type stubAuditRepo struct {
	created   []*models.AccessLog
	listRows  []models.AccessLog
	createErr error
	listedID  *uuid.UUID
}

func (s *stubAuditRepo) WithTx(_ *gorm.DB) Repository { return s }

func (s *stubAuditRepo) Create(_ context.Context, entry *models.AccessLog) (*models.AccessLog, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	entry.ID = uuid.New()
	entry.CreatedAt = time.Now()
	s.created = append(s.created, entry)
	return entry, nil
}

func (s *stubAuditRepo) List(_ context.Context, _ pagination.Params, entityID *uuid.UUID) ([]models.AccessLog, error) {
	s.listedID = entityID
	return s.listRows, nil
}

func validRecordInput() RecordInput {
	return RecordInput{
		ActorID:    uuid.New(),
		ActorEmail: "admin@copirent.test",
		Action:     enums.AuditActionRevealID,
		EntityType: enums.AuditEntityOrder,
		EntityID:   uuid.New(),
		IP:         "203.0.113.9",
		UserAgent:  "copirent-admin/1.0",
	}
}

func TestRecordPersistsEntry(t *testing.T) {
	repo := &stubAuditRepo{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	input := validRecordInput()
	input.Meta = map[string]any{"last_four": "0133"}
	entry, err := svc.Record(context.Background(), input)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if len(repo.created) != 1 {
		t.Fatalf("created %d entries, want 1", len(repo.created))
	}
	if entry.ActorEmail != input.ActorEmail || entry.EntityID != input.EntityID {
		t.Fatalf("entry = %+v", entry)
	}

	var meta map[string]any
	if err := json.Unmarshal(entry.Meta, &meta); err != nil {
		t.Fatalf("meta not valid JSON: %v", err)
	}
	if meta["last_four"] != "0133" {
		t.Fatalf("meta = %v", meta)
	}
}

func TestRecordRequiresActor(t *testing.T) {
	svc, _ := NewService(&stubAuditRepo{})

	input := validRecordInput()
	input.ActorID = uuid.Nil
	_, err := svc.Record(context.Background(), input)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("error = %v, want unauthorized", err)
	}
}

func TestRecordRejectsUnknownAction(t *testing.T) {
	svc, _ := NewService(&stubAuditRepo{})

	input := validRecordInput()
	input.Action = enums.AuditAction("export_everything")
	_, err := svc.Record(context.Background(), input)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("error = %v, want validation", err)
	}
}

func TestRecordRejectsMissingEntity(t *testing.T) {
	svc, _ := NewService(&stubAuditRepo{})

	input := validRecordInput()
	input.EntityID = uuid.Nil
	_, err := svc.Record(context.Background(), input)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("error = %v, want validation", err)
	}
}

func TestRecordSurfacesWriteFailure(t *testing.T) {
	repo := &stubAuditRepo{createErr: errors.New("disk full")}
	svc, _ := NewService(repo)

	_, err := svc.Record(context.Background(), validRecordInput())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("error = %v, want dependency", err)
	}
}

func TestListCutsBufferRowAndEncodesCursor(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]models.AccessLog, pagination.DefaultLimit+1)
	for i := range rows {
		rows[i] = models.AccessLog{
			ID:        uuid.New(),
			CreatedAt: base.Add(-time.Duration(i) * time.Minute),
		}
	}
	repo := &stubAuditRepo{listRows: rows}
	svc, _ := NewService(repo)

	list, err := svc.List(context.Background(), ListInput{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list.Entries) != pagination.DefaultLimit {
		t.Fatalf("entries = %d, want %d", len(list.Entries), pagination.DefaultLimit)
	}
	if list.NextCursor == "" {
		t.Fatal("expected next cursor")
	}
	cursor, err := pagination.ParseCursor(list.NextCursor)
	if err != nil {
		t.Fatalf("ParseCursor: %v", err)
	}
	last := list.Entries[len(list.Entries)-1]
	if cursor.ID != last.ID || !cursor.CreatedAt.Equal(last.CreatedAt) {
		t.Fatalf("cursor = %+v, want last entry %s", cursor, last.ID)
	}
}

func TestListPassesEntityFilter(t *testing.T) {
	repo := &stubAuditRepo{}
	svc, _ := NewService(repo)

	entityID := uuid.New()
	if _, err := svc.List(context.Background(), ListInput{EntityID: &entityID}); err != nil {
		t.Fatalf("List: %v", err)
	}
	if repo.listedID == nil || *repo.listedID != entityID {
		t.Fatalf("filter = %v, want %s", repo.listedID, entityID)
	}
}
