package model

import (
	"time"

	"github.com/google/uuid"
)

// RefreshTokenModel mirrors the 'refresh_tokens' table. The token column
// holds a salted bcrypt hash, never the plaintext, so it carries no unique
// index: equal plaintexts hash differently per record.
type RefreshTokenModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index"`
	TokenHash  string    `gorm:"type:varchar(255);not null"`
	Device     string    `gorm:"type:varchar(255)"`
	ExpiresAt  time.Time `gorm:"not null"`
	CreatedAt  time.Time
	LastUsedAt *time.Time
}

// TableName explicitly sets the table name for GORM.
func (RefreshTokenModel) TableName() string {
	return "refresh_tokens"
}
