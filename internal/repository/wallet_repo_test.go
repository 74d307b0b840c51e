package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/campus-coin-api/internal/models"
)

func seedWallet(t *testing.T, db *gorm.DB, userID uint, address string, balance float64) models.Wallet {
	t.Helper()
	wallet := models.Wallet{UserID: userID, Address: address, PrivateKey: "ab", Balance: balance}
	require.NoError(t, db.Create(&wallet).Error)
	return wallet
}

func TestCreateRejectsSecondWalletForUser(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWalletRepository(db)
	student := seedStudent(t, db, "SV001")
	ctx := context.Background()

	first := models.Wallet{UserID: student.ID, Address: "0x" + "11", PrivateKey: "aa"}
	require.NoError(t, repo.Create(ctx, &first))

	second := models.Wallet{UserID: student.ID, Address: "0x" + "22", PrivateKey: "bb"}
	err := repo.Create(ctx, &second)
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestCreditRewardAppliesAtomically(t *testing.T) {
	db := setupTestDB(t)
	walletRepo := NewWalletRepository(db)
	regRepo := NewRegistrationRepository(db)
	txLogRepo := NewTransactionLogRepository(db)
	ctx := context.Background()

	activity := seedActivity(t, db, 10)
	student := seedStudent(t, db, "SV001")
	seedWallet(t, db, student.ID, "0xabc1", 2.5)

	reg := models.ActivityRegistration{StudentID: student.ID, ActivityID: activity.ID, RegisteredAt: time.Now()}
	require.NoError(t, regRepo.CreateWithSlotCheck(ctx, &reg, activity.MaxParticipants))

	newBalance, err := walletRepo.CreditReward(ctx, RewardCredit{
		UserID:          student.ID,
		RegistrationID:  reg.ID,
		Amount:          10,
		TransactionType: models.TxTypeActivityReward,
		Description:     "Reward for " + activity.Name,
		TxHash:          "0xdeadbeef",
		Metadata:        map[string]interface{}{"activity_id": activity.ID},
	})
	require.NoError(t, err)
	require.InDelta(t, 12.5, newBalance, 1e-9)

	wallet, err := walletRepo.GetByUserID(ctx, student.ID)
	require.NoError(t, err)
	require.InDelta(t, 12.5, wallet.Balance, 1e-9)

	updated, err := regRepo.GetByStudentAndActivity(ctx, student.ID, activity.ID)
	require.NoError(t, err)
	require.Equal(t, "0xdeadbeef", updated.RewardTxHash)

	logs, total, err := txLogRepo.List(ctx, TransactionLogFilter{UserID: &student.ID})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, models.TxTypeActivityReward, logs[0].TransactionType)
	require.Equal(t, "0xdeadbeef", logs[0].TxHash)
}

func TestCreditRewardFailsWithoutWallet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWalletRepository(db)
	ctx := context.Background()

	_, err := repo.CreditReward(ctx, RewardCredit{UserID: 42, Amount: 5})
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// The failed transaction must leave no audit row behind.
	var count int64
	require.NoError(t, db.Model(&models.TransactionLog{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestOverwriteBalanceCorrectsDrift(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWalletRepository(db)
	student := seedStudent(t, db, "SV001")
	wallet := seedWallet(t, db, student.ID, "0xabc2", 100)
	ctx := context.Background()

	require.NoError(t, repo.OverwriteBalance(ctx, wallet.Address, 42))

	synced, err := repo.GetByAddress(ctx, wallet.Address)
	require.NoError(t, err)
	require.InDelta(t, 42.0, synced.Balance, 1e-9)
}
