package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/microcopias/copirent-backend/pkg/enums"
)

// AccessLog records one view of a decrypted identity number. Rows are
// append-only: nothing in the core updates or deletes them.
type AccessLog struct {
	ID         uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ActorID    uuid.UUID             `gorm:"column:actor_id;type:uuid;not null"`
	ActorEmail string                `gorm:"column:actor_email;not null"`
	Action     enums.AuditAction     `gorm:"column:action;type:text;not null"`
	EntityType enums.AuditEntityType `gorm:"column:entity_type;type:text;not null"`
	EntityID   uuid.UUID             `gorm:"column:entity_id;type:uuid;not null;index"`
	IP         string                `gorm:"column:ip"`
	UserAgent  string                `gorm:"column:user_agent"`
	Meta       json.RawMessage       `gorm:"column:meta;type:jsonb"`
	CreatedAt  time.Time             `gorm:"column:created_at;autoCreateTime"`
}
