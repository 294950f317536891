package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Operation struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProfileID       uuid.UUID `gorm:"type:uuid;not null;index"`
	OperationSetID  string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	Type            string    `gorm:"type:varchar(50);not null"`
	Status          string    `gorm:"type:varchar(50);not null;index"`
	UnsignedPayload string    `gorm:"type:jsonb;default:'{}'"`
	SignedPayload   *string   `gorm:"type:text"`
	Intent          string    `gorm:"type:jsonb;default:'{}'"`
	Metadata        string    `gorm:"type:jsonb;default:'{}'"`
	ErrorMessage    *string   `gorm:"type:text"`
	CompletedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       gorm.DeletedAt `gorm:"index"`

	Transactions []Transaction `gorm:"foreignKey:OperationID"`
}

type Transaction struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	OperationID uuid.UUID `gorm:"type:uuid;not null;index"`
	ChainID     uint64    `gorm:"not null"`
	TxHash      string    `gorm:"type:varchar(255);not null;index"`
	Status      string    `gorm:"type:varchar(50);not null"`
	GasUsed     string    `gorm:"type:varchar(100)"`
	CreatedAt   time.Time
}

type Batch struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProfileID       uuid.UUID `gorm:"type:uuid;not null;index"`
	Entries         string    `gorm:"type:jsonb;not null;default:'[]'"`
	AtomicExecution bool      `gorm:"not null;default:false"`
	Status          string    `gorm:"type:varchar(50);not null;index"`
	CompletedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       gorm.DeletedAt `gorm:"index"`
}
