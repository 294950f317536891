package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Profile struct {
	ID                   uuid.UUID `gorm:"type:uuid;primaryKey"`
	SessionWalletAddress string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	ClusterID            *string   `gorm:"type:varchar(255)"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
	DeletedAt            gorm.DeletedAt `gorm:"index"`

	LinkedAccounts []LinkedAccount `gorm:"foreignKey:ProfileID"`
}

type LinkedAccount struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProfileID uuid.UUID `gorm:"type:uuid;not null;index"`
	Address   string    `gorm:"type:varchar(255);not null"`
	ChainID   uint64    `gorm:"not null"`
	IsActive  bool      `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

type VirtualSession struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProfileID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_sessions_profile_chain"`
	ChainID   uint64    `gorm:"not null;uniqueIndex:idx_sessions_profile_chain"`
	Address   string    `gorm:"type:varchar(255);not null"`
	RPCURL    string    `gorm:"type:varchar(512);not null"`
	IsActive  bool      `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
