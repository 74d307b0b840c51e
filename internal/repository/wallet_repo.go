package repository

import (
	"context"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/campus-coin-api/internal/models"
)

// RewardCredit is the local half of a settlement: one audit row appended and
// the cached balance bumped, applied in a single database transaction.
type RewardCredit struct {
	UserID          uint
	RegistrationID  uint
	Amount          float64
	TransactionType string
	Description     string
	TxHash          string
	Metadata        map[string]interface{}
}

// WalletRepository persists wallets and applies settlement credits.
type WalletRepository interface {
	Create(ctx context.Context, wallet *models.Wallet) error
	GetByUserID(ctx context.Context, userID uint) (models.Wallet, error)
	GetByAddress(ctx context.Context, address string) (models.Wallet, error)
	ListAll(ctx context.Context) ([]models.Wallet, error)

	// CreditReward appends the audit row, adds the amount to the cached
	// balance, and records the reward hash on the registration, all in one
	// transaction. Returns the resulting cached balance.
	CreditReward(ctx context.Context, credit RewardCredit) (float64, error)

	// OverwriteBalance replaces the cached balance with the authoritative
	// on-chain value. Drift is corrected, never accumulated.
	OverwriteBalance(ctx context.Context, address string, balance float64) error
}

type walletRepository struct {
	db *gorm.DB
}

// NewWalletRepository constructs a wallet repository.
func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &walletRepository{db: db}
}

func (r *walletRepository) Create(ctx context.Context, wallet *models.Wallet) error {
	return r.db.WithContext(ctx).Create(wallet).Error
}

func (r *walletRepository) GetByUserID(ctx context.Context, userID uint) (models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		return models.Wallet{}, err
	}
	return wallet, nil
}

func (r *walletRepository) GetByAddress(ctx context.Context, address string) (models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).Where("address = ?", address).First(&wallet).Error; err != nil {
		return models.Wallet{}, err
	}
	return wallet, nil
}

func (r *walletRepository) ListAll(ctx context.Context) ([]models.Wallet, error) {
	var wallets []models.Wallet
	err := r.db.WithContext(ctx).Find(&wallets).Error
	return wallets, err
}

func (r *walletRepository) CreditReward(ctx context.Context, credit RewardCredit) (float64, error) {
	var newBalance float64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx
		if tx.Dialector.Name() != "sqlite" {
			query = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var wallet models.Wallet
		if err := query.Where("user_id = ?", credit.UserID).
			First(&wallet).Error; err != nil {
			return err
		}

		wallet.Balance += credit.Amount
		if err := tx.Model(&models.Wallet{}).
			Where("id = ?", wallet.ID).
			Update("balance", wallet.Balance).Error; err != nil {
			return err
		}

		entry := models.TransactionLog{
			UserID:          credit.UserID,
			Amount:          credit.Amount,
			TransactionType: credit.TransactionType,
			Description:     credit.Description,
			TxHash:          credit.TxHash,
			Metadata:        datatypes.JSONMap(credit.Metadata),
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		if credit.RegistrationID != 0 {
			if err := tx.Model(&models.ActivityRegistration{}).
				Where("id = ?", credit.RegistrationID).
				Update("reward_tx_hash", credit.TxHash).Error; err != nil {
				return err
			}
		}

		newBalance = wallet.Balance
		return nil
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (r *walletRepository) OverwriteBalance(ctx context.Context, address string, balance float64) error {
	return r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("address = ?", address).
		Update("balance", balance).Error
}
