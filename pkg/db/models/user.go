package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/microcopias/copirent-backend/pkg/enums"
)

// User holds back-office accounts and the customer accounts checkout matches
// against for the accountExists flag.
type User struct {
	ID           uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string         `gorm:"column:email;not null;uniqueIndex:idx_users_email"`
	Name         string         `gorm:"column:name"`
	PasswordHash string         `gorm:"column:password_hash;not null" json:"-"`
	Role         enums.UserRole `gorm:"column:role;type:text;not null;default:'customer'"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
