package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/campus-coin-api/internal/models"
)

// TransactionLogFilter narrows audit history queries.
type TransactionLogFilter struct {
	UserID          *uint
	TransactionType string
	Page            int
	PageSize        int
}

// TransactionLogRepository reads the append-only audit trail. Writes happen
// exclusively through WalletRepository.CreditReward so the audit row and the
// balance move together.
type TransactionLogRepository interface {
	List(ctx context.Context, filter TransactionLogFilter) ([]models.TransactionLog, int64, error)
}

type transactionLogRepository struct {
	db *gorm.DB
}

// NewTransactionLogRepository constructs the audit trail repository.
func NewTransactionLogRepository(db *gorm.DB) TransactionLogRepository {
	return &transactionLogRepository{db: db}
}

func (r *transactionLogRepository) List(ctx context.Context, filter TransactionLogFilter) ([]models.TransactionLog, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.TransactionLog{})

	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.TransactionType != "" {
		query = query.Where("transaction_type = ?", filter.TransactionType)
	}

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var entries []models.TransactionLog
	if err := query.Order("created_at DESC").Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
