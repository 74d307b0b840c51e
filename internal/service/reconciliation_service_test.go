package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/campus-coin-api/internal/chain"
	"github.com/noah-isme/campus-coin-api/internal/models"
	"github.com/noah-isme/campus-coin-api/internal/repository"
)

func newReconciliationFixture(t *testing.T, gateway chain.Gateway, publisher EventPublisher) (*gorm.DB, ReconciliationService) {
	t.Helper()
	db := setupSvcDB(t)
	walletRepo := repository.NewWalletRepository(db)
	walletSvc := NewWalletService(walletRepo, repository.NewUserRepository(db), repository.NewTransactionLogRepository(db), gateway, nil, 0, zerolog.Nop())
	svc := NewReconciliationService(
		walletRepo,
		repository.NewRegistrationRepository(db),
		walletSvc,
		publisher,
		10*time.Minute,
		zerolog.Nop(),
	)
	return db, svc
}

func confirmRegistrationAt(t *testing.T, db *gorm.DB, studentID, activityID uint, confirmedAt time.Time, txHash string) {
	t.Helper()
	registration := models.ActivityRegistration{
		StudentID:                studentID,
		ActivityID:               activityID,
		RegisteredAt:             confirmedAt.Add(-time.Hour),
		IsApproved:               true,
		ApprovedAt:               &confirmedAt,
		IsParticipationConfirmed: true,
		ParticipationConfirmedAt: &confirmedAt,
		RewardTxHash:             txHash,
	}
	require.NoError(t, db.Create(&registration).Error)
}

func TestReconciliationDetectsAndRepairsDrift(t *testing.T) {
	gateway := chain.NewMemoryGateway("0xAuthority")
	publisher := &capturingPublisher{}
	db, svc := newReconciliationFixture(t, gateway, publisher)

	student := seedSvcStudent(t, db, "SV001")
	wallet := seedSvcWallet(t, db, student.ID)
	ctx := context.Background()

	// Chain holds 10 tokens; the cached column still says zero.
	amount, err := chain.ToBaseUnits(10)
	require.NoError(t, err)
	_, err = gateway.MintTokens(ctx, wallet.Address, amount)
	require.NoError(t, err)

	report, err := svc.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.WalletsChecked)
	require.Equal(t, 1, report.DriftsFound)
	require.Zero(t, report.SyncFailures)

	require.Len(t, publisher.alerts, 1)
	alert := publisher.alerts[0]
	require.Equal(t, "balance_drift", alert.Kind)
	require.Equal(t, wallet.Address, alert.Address)
	require.InDelta(t, 0.0, alert.CachedBalance, 1e-9)
	require.InDelta(t, 10.0, alert.ChainBalance, 1e-9)

	// The sweep repaired the cached column in passing.
	var stored models.Wallet
	require.NoError(t, db.First(&stored, wallet.ID).Error)
	require.InDelta(t, 10.0, stored.Balance, 1e-9)

	// A second sweep finds nothing to report.
	report, err = svc.Run(ctx)
	require.NoError(t, err)
	require.Zero(t, report.DriftsFound)
	require.Len(t, publisher.alerts, 1)
}

func TestReconciliationDoesNotFlagConversions(t *testing.T) {
	gateway := chain.NewMemoryGateway("0xAuthority")
	publisher := &capturingPublisher{}
	db, svc := newReconciliationFixture(t, gateway, publisher)
	walletSvc := NewWalletService(
		repository.NewWalletRepository(db),
		repository.NewUserRepository(db),
		repository.NewTransactionLogRepository(db),
		gateway, nil, 0, zerolog.Nop(),
	)

	student := seedSvcStudent(t, db, "SV001")
	wallet := seedSvcWallet(t, db, student.ID)
	ctx := context.Background()

	amount, err := chain.ToBaseUnits(30)
	require.NoError(t, err)
	_, err = gateway.MintTokens(ctx, wallet.Address, amount)
	require.NoError(t, err)
	_, err = walletSvc.SyncBalance(ctx, wallet.Address, true)
	require.NoError(t, err)

	// A conversion burns on chain and debits the cache in step; the sweep
	// must not see it as drift and must not undo the debit.
	_, err = walletSvc.ConvertCoinToPoints(ctx, student.ID, 30)
	require.NoError(t, err)

	report, err := svc.Run(ctx)
	require.NoError(t, err)
	require.Zero(t, report.DriftsFound)
	require.Empty(t, publisher.alerts)

	var stored models.Wallet
	require.NoError(t, db.First(&stored, wallet.ID).Error)
	require.Zero(t, stored.Balance)
}

func TestReconciliationFlagsMissingSettlements(t *testing.T) {
	gateway := chain.NewMemoryGateway("0xAuthority")
	publisher := &capturingPublisher{}
	db, svc := newReconciliationFixture(t, gateway, publisher)

	stale := time.Now().Add(-time.Hour)
	fresh := time.Now()
	confirmRegistrationAt(t, db, 1, 1, stale, "")          // stuck, must be flagged
	confirmRegistrationAt(t, db, 2, 1, stale, "0xsettled") // settled, fine
	confirmRegistrationAt(t, db, 3, 1, fresh, "")          // inside the grace window

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.MissingSettlements)

	require.Len(t, publisher.alerts, 1)
	alert := publisher.alerts[0]
	require.Equal(t, "missing_settlement", alert.Kind)
	require.Equal(t, uint(1), alert.StudentID)
	require.Equal(t, uint(1), alert.ActivityID)
	require.NotZero(t, alert.RegistrationID)
}

func TestReconciliationCountsSyncFailures(t *testing.T) {
	gateway := &brokenChain{MemoryGateway: chain.NewMemoryGateway("0xAuthority")}
	publisher := &capturingPublisher{}
	db, svc := newReconciliationFixture(t, gateway, publisher)

	student := seedSvcStudent(t, db, "SV001")
	seedSvcWallet(t, db, student.ID)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.WalletsChecked)
	require.Equal(t, 1, report.SyncFailures)
	require.Zero(t, report.DriftsFound)
	require.Empty(t, publisher.alerts)
}
