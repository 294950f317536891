package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"chainhub.backend/internal/domain/entities"
	"chainhub.backend/internal/infrastructure/models"
)

// TransactionRepository implements per-chain transaction persistence
type TransactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// CreateAll persists a set of transactions under their parent operations
func (r *TransactionRepository) CreateAll(ctx context.Context, txs []*entities.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	ms := make([]models.Transaction, 0, len(txs))
	for _, t := range txs {
		id := t.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		ms = append(ms, models.Transaction{
			ID:          id,
			OperationID: t.OperationID,
			ChainID:     t.ChainID,
			TxHash:      t.TxHash,
			Status:      t.Status,
			GasUsed:     t.GasUsed,
		})
	}
	db := GetDB(ctx, r.db)
	return db.WithContext(ctx).Create(&ms).Error
}

// GetByOperationID lists transactions belonging to an operation
func (r *TransactionRepository) GetByOperationID(ctx context.Context, operationID uuid.UUID) ([]*entities.Transaction, error) {
	var ms []models.Transaction
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).
		Where("operation_id = ?", operationID).
		Order("created_at ASC").
		Find(&ms).Error; err != nil {
		return nil, err
	}

	var txs []*entities.Transaction
	for _, m := range ms {
		txs = append(txs, &entities.Transaction{
			ID:          m.ID,
			OperationID: m.OperationID,
			ChainID:     m.ChainID,
			TxHash:      m.TxHash,
			Status:      m.Status,
			GasUsed:     m.GasUsed,
			CreatedAt:   m.CreatedAt,
		})
	}
	return txs, nil
}
