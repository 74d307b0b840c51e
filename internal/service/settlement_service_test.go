package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/campus-coin-api/internal/chain"
	"github.com/noah-isme/campus-coin-api/internal/models"
	"github.com/noah-isme/campus-coin-api/internal/repository"
)

func setupSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every new connection to :memory: is a fresh empty database, so the
	// test database must live on a single shared connection.
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Activity{},
		&models.ActivityRegistration{},
		&models.Wallet{},
		&models.TransactionLog{},
	))
	return db
}

func seedSvcStudent(t *testing.T, db *gorm.DB, code string) models.User {
	t.Helper()
	student := models.User{
		FullName:    "Student " + code,
		Email:       code + "@example.com",
		StudentCode: &code,
		Class:       "CNTT1",
		Role:        models.RoleStudent,
	}
	require.NoError(t, db.Create(&student).Error)
	return student
}

func seedSvcWallet(t *testing.T, db *gorm.DB, userID uint) models.Wallet {
	t.Helper()
	keypair, err := chain.GenerateKeypair()
	require.NoError(t, err)
	wallet := models.Wallet{UserID: userID, Address: keypair.Address, PrivateKey: keypair.PrivateKey}
	require.NoError(t, db.Create(&wallet).Error)
	return wallet
}

// flakyGateway wraps the in-process gateway and fails mints on demand.
type flakyGateway struct {
	*chain.MemoryGateway
	failMint bool
}

func (g *flakyGateway) MintTokens(ctx context.Context, address string, amount *big.Int) (string, error) {
	if g.failMint {
		return "", fmt.Errorf("%w: node timeout", chain.ErrUnavailable)
	}
	return g.MemoryGateway.MintTokens(ctx, address, amount)
}

// divergingWallets fails the local credit after the chain write succeeded.
type divergingWallets struct {
	repository.WalletRepository
}

func (d *divergingWallets) CreditReward(ctx context.Context, credit repository.RewardCredit) (float64, error) {
	return 0, errors.New("connection reset")
}

type capturingPublisher struct {
	settlements []SettlementEvent
	alerts      []ReconciliationAlert
}

func (p *capturingPublisher) PublishSettlement(_ context.Context, event SettlementEvent) {
	p.settlements = append(p.settlements, event)
}

func (p *capturingPublisher) PublishReconciliationAlert(_ context.Context, alert ReconciliationAlert) {
	p.alerts = append(p.alerts, alert)
}

func TestSettleRewardCreditsBothLedgers(t *testing.T) {
	db := setupSvcDB(t)
	gateway := chain.NewMemoryGateway("0xAuthority")
	wallets := repository.NewWalletRepository(db)
	publisher := &capturingPublisher{}
	svc := NewSettlementService(wallets, gateway, publisher, zerolog.Nop())

	student := seedSvcStudent(t, db, "SV001")
	wallet := seedSvcWallet(t, db, student.ID)
	ctx := context.Background()

	result, err := svc.SettleReward(ctx, SettlementRequest{
		StudentID:    student.ID,
		ActivityID:   7,
		Amount:       10,
		ActivityName: "Beach Cleanup",
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.NotEmpty(t, result.TxHash)
	require.InDelta(t, 10.0, result.NewBalance, 1e-9)

	// Chain ledger holds the base-unit amount.
	expected, err := chain.ToBaseUnits(10)
	require.NoError(t, err)
	onChain, err := gateway.BalanceOf(ctx, wallet.Address)
	require.NoError(t, err)
	require.Zero(t, onChain.Cmp(expected))

	// Exactly one audit row.
	var logs []models.TransactionLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	require.Equal(t, models.TxTypeActivityReward, logs[0].TransactionType)
	require.Equal(t, result.TxHash, logs[0].TxHash)

	require.Len(t, publisher.settlements, 1)
	require.Equal(t, result.TxHash, publisher.settlements[0].TxHash)
}

func TestSettleRewardGrantsStudentRole(t *testing.T) {
	db := setupSvcDB(t)
	gateway := chain.NewMemoryGateway("0xAuthority")
	svc := NewSettlementService(repository.NewWalletRepository(db), gateway, nil, zerolog.Nop())

	student := seedSvcStudent(t, db, "SV001")
	wallet := seedSvcWallet(t, db, student.ID)
	ctx := context.Background()

	_, err := svc.SettleReward(ctx, SettlementRequest{StudentID: student.ID, Amount: 1, ActivityName: "x"})
	require.NoError(t, err)

	enrolled, err := gateway.IsStudent(ctx, wallet.Address)
	require.NoError(t, err)
	require.True(t, enrolled)
}

func TestSettleRewardRequiresWallet(t *testing.T) {
	db := setupSvcDB(t)
	svc := NewSettlementService(repository.NewWalletRepository(db), chain.NewMemoryGateway("0xAuthority"), nil, zerolog.Nop())

	_, err := svc.SettleReward(context.Background(), SettlementRequest{StudentID: 99, Amount: 5, ActivityName: "x"})
	require.ErrorIs(t, err, ErrNoWallet)
}

func TestSettleRewardRejectsNonPositiveAmount(t *testing.T) {
	db := setupSvcDB(t)
	svc := NewSettlementService(repository.NewWalletRepository(db), chain.NewMemoryGateway("0xAuthority"), nil, zerolog.Nop())

	_, err := svc.SettleReward(context.Background(), SettlementRequest{StudentID: 1, Amount: 0, ActivityName: "x"})
	require.Error(t, err)
}

func TestSettleRewardMintFailureWritesNothingLocally(t *testing.T) {
	db := setupSvcDB(t)
	gateway := &flakyGateway{MemoryGateway: chain.NewMemoryGateway("0xAuthority"), failMint: true}
	svc := NewSettlementService(repository.NewWalletRepository(db), gateway, nil, zerolog.Nop())

	student := seedSvcStudent(t, db, "SV001")
	seedSvcWallet(t, db, student.ID)

	result, err := svc.SettleReward(context.Background(), SettlementRequest{
		StudentID:    student.ID,
		Amount:       10,
		ActivityName: "Beach Cleanup",
	})
	require.ErrorIs(t, err, chain.ErrUnavailable)
	require.False(t, result.Success)

	var logCount int64
	require.NoError(t, db.Model(&models.TransactionLog{}).Count(&logCount).Error)
	require.Zero(t, logCount, "a failed mint must leave no audit row")

	wallet, err := repository.NewWalletRepository(db).GetByUserID(context.Background(), student.ID)
	require.NoError(t, err)
	require.Zero(t, wallet.Balance)
}

func TestSettleRewardReportsDivergence(t *testing.T) {
	db := setupSvcDB(t)
	gateway := chain.NewMemoryGateway("0xAuthority")
	wallets := &divergingWallets{WalletRepository: repository.NewWalletRepository(db)}
	svc := NewSettlementService(wallets, gateway, nil, zerolog.Nop())

	student := seedSvcStudent(t, db, "SV001")
	wallet := seedSvcWallet(t, db, student.ID)
	ctx := context.Background()

	_, err := svc.SettleReward(ctx, SettlementRequest{
		StudentID:    student.ID,
		Amount:       10,
		ActivityName: "Beach Cleanup",
	})
	require.ErrorIs(t, err, ErrSettlementDiverged)

	// The tokens exist on chain even though the local write failed.
	onChain, err := gateway.BalanceOf(ctx, wallet.Address)
	require.NoError(t, err)
	require.Positive(t, onChain.Sign())
}

func TestSettleRewardRegistryPreventsDuplicate(t *testing.T) {
	db := setupSvcDB(t)
	gateway := chain.NewMemoryGateway("0xAuthority")
	svc := NewSettlementService(repository.NewWalletRepository(db), gateway, nil, zerolog.Nop())

	student := seedSvcStudent(t, db, "SV001")
	wallet := seedSvcWallet(t, db, student.ID)
	ctx := context.Background()

	reward, err := chain.ToBaseUnits(10)
	require.NoError(t, err)
	onChainID, err := gateway.CreateActivity(ctx, "Cleanup", "", reward)
	require.NoError(t, err)

	req := SettlementRequest{
		StudentID:         student.ID,
		Amount:            10,
		ActivityName:      "Cleanup",
		OnChainActivityID: &onChainID,
	}

	first, err := svc.SettleReward(ctx, req)
	require.NoError(t, err)
	require.True(t, first.Success)

	// A replay carries the recorded mint hash; the registry completion
	// plus the recorded reward marks it as a true duplicate.
	req.RewardTxHash = first.TxHash
	_, err = svc.SettleReward(ctx, req)
	require.ErrorIs(t, err, ErrAlreadySettled)

	// Only the first settlement minted.
	expected, err := chain.ToBaseUnits(10)
	require.NoError(t, err)
	balance, err := gateway.BalanceOf(ctx, wallet.Address)
	require.NoError(t, err)
	require.Zero(t, balance.Cmp(expected))

	var logCount int64
	require.NoError(t, db.Model(&models.TransactionLog{}).Count(&logCount).Error)
	require.Equal(t, int64(1), logCount)
}

func TestSettleRewardResumesAfterRegistryLandedButMintFailed(t *testing.T) {
	db := setupSvcDB(t)
	gateway := &flakyGateway{MemoryGateway: chain.NewMemoryGateway("0xAuthority")}
	svc := NewSettlementService(repository.NewWalletRepository(db), gateway, nil, zerolog.Nop())

	student := seedSvcStudent(t, db, "SV001")
	wallet := seedSvcWallet(t, db, student.ID)
	ctx := context.Background()

	reward, err := chain.ToBaseUnits(10)
	require.NoError(t, err)
	onChainID, err := gateway.CreateActivity(ctx, "Cleanup", "", reward)
	require.NoError(t, err)

	req := SettlementRequest{
		StudentID:         student.ID,
		Amount:            10,
		ActivityName:      "Cleanup",
		OnChainActivityID: &onChainID,
	}

	// First attempt: the registry completion lands, then the node dies
	// before the mint.
	gateway.failMint = true
	_, err = svc.SettleReward(ctx, req)
	require.ErrorIs(t, err, chain.ErrUnavailable)

	completed, err := gateway.HasCompleted(ctx, wallet.Address, onChainID)
	require.NoError(t, err)
	require.True(t, completed)

	// No mint happened, so the retry must not be treated as a duplicate.
	gateway.failMint = false
	result, err := svc.SettleReward(ctx, req)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.NotEmpty(t, result.TxHash)

	expected, err := chain.ToBaseUnits(10)
	require.NoError(t, err)
	balance, err := gateway.BalanceOf(ctx, wallet.Address)
	require.NoError(t, err)
	require.Zero(t, balance.Cmp(expected), "the retry mints the reward exactly once")

	var logCount int64
	require.NoError(t, db.Model(&models.TransactionLog{}).Count(&logCount).Error)
	require.Equal(t, int64(1), logCount)
}
