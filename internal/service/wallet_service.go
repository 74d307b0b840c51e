package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/campus-coin-api/internal/chain"
	"github.com/noah-isme/campus-coin-api/internal/models"
	"github.com/noah-isme/campus-coin-api/internal/repository"
)

// WalletService provisions wallets and keeps the advisory balance cache in
// step with the chain.
type WalletService interface {
	// ProvisionWallet returns the user's wallet, creating one on first use.
	// Idempotent: concurrent calls race on the unique user constraint and
	// the loser returns the winner's row.
	ProvisionWallet(ctx context.Context, userID uint) (models.Wallet, error)

	// SyncBalance overwrites the cached balance with the on-chain value.
	// In strict mode a chain failure is propagated; otherwise the last
	// known cached value is returned so best-effort readers keep working.
	SyncBalance(ctx context.Context, address string, strict bool) (float64, error)

	// GetBalance serves dashboard reads: redis cache first, then a
	// best-effort sync.
	GetBalance(ctx context.Context, userID uint) (models.Wallet, error)

	// ConvertCoinToPoints exchanges tokens for training points. Requires a
	// guaranteed-current balance, so a failed sync aborts the conversion.
	ConvertCoinToPoints(ctx context.Context, userID uint, amount int) (float64, error)

	History(ctx context.Context, userID uint, page, pageSize int) ([]models.TransactionLog, int64, error)
}

type walletService struct {
	wallets  repository.WalletRepository
	users    repository.UserRepository
	txLogs   repository.TransactionLogRepository
	gateway  chain.Gateway
	redis    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
}

// NewWalletService constructs the wallet service. The redis client may be
// nil; balance reads then always hit the chain.
func NewWalletService(
	wallets repository.WalletRepository,
	users repository.UserRepository,
	txLogs repository.TransactionLogRepository,
	gateway chain.Gateway,
	redisClient *redis.Client,
	cacheTTL time.Duration,
	logger zerolog.Logger,
) WalletService {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &walletService{
		wallets:  wallets,
		users:    users,
		txLogs:   txLogs,
		gateway:  gateway,
		redis:    redisClient,
		cacheTTL: cacheTTL,
		logger:   logger.With().Str("component", "wallet_service").Logger(),
	}
}

func (s *walletService) ProvisionWallet(ctx context.Context, userID uint) (models.Wallet, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return models.Wallet{}, fmt.Errorf("%w: user %d", ErrStudentNotFound, userID)
	}

	if wallet, err := s.wallets.GetByUserID(ctx, userID); err == nil {
		return wallet, nil
	}

	keypair, err := chain.GenerateKeypair()
	if err != nil {
		return models.Wallet{}, fmt.Errorf("generate wallet keypair: %w", err)
	}

	wallet := models.Wallet{
		UserID:     userID,
		Address:    keypair.Address,
		PrivateKey: keypair.PrivateKey,
		Balance:    0,
	}
	if err := s.wallets.Create(ctx, &wallet); err != nil {
		// A concurrent provision won the unique-userID race; return its row.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return s.wallets.GetByUserID(ctx, userID)
		}
		return models.Wallet{}, fmt.Errorf("persist wallet: %w", err)
	}

	s.logger.Info().Uint("user_id", userID).Str("address", wallet.Address).Msg("wallet provisioned")
	return wallet, nil
}

func (s *walletService) SyncBalance(ctx context.Context, address string, strict bool) (float64, error) {
	onChain, err := s.gateway.BalanceOf(ctx, address)
	if err != nil {
		if strict {
			return 0, fmt.Errorf("sync balance for %s: %w", address, err)
		}
		// Best-effort callers get the last known value instead of an error.
		wallet, lookupErr := s.wallets.GetByAddress(ctx, address)
		if lookupErr != nil {
			return 0, lookupErr
		}
		s.logger.Warn().Err(err).Str("address", address).Msg("chain unreachable, serving cached balance")
		return wallet.Balance, nil
	}

	balance := chain.FromBaseUnits(onChain)
	if err := s.wallets.OverwriteBalance(ctx, address, balance); err != nil {
		return 0, fmt.Errorf("overwrite cached balance: %w", err)
	}
	s.cacheSet(ctx, address, balance)
	return balance, nil
}

func (s *walletService) GetBalance(ctx context.Context, userID uint) (models.Wallet, error) {
	wallet, err := s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return models.Wallet{}, ErrNoWallet
	}

	if cached, ok := s.cacheGet(ctx, wallet.Address); ok {
		wallet.Balance = cached
		return wallet, nil
	}

	balance, err := s.SyncBalance(ctx, wallet.Address, false)
	if err != nil {
		return models.Wallet{}, err
	}
	wallet.Balance = balance
	return wallet, nil
}

func (s *walletService) ConvertCoinToPoints(ctx context.Context, userID uint, amount int) (float64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("conversion amount must be positive, got %d", amount)
	}
	wallet, err := s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return 0, ErrNoWallet
	}

	// Conversions spend real balance, so the cache is not good enough here.
	balance, err := s.SyncBalance(ctx, wallet.Address, true)
	if err != nil {
		return 0, err
	}
	if balance < float64(amount) {
		return 0, fmt.Errorf("%w: have %.2f want %d", ErrInsufficientBalance, balance, amount)
	}

	baseUnits, err := chain.ToBaseUnits(amount)
	if err != nil {
		return 0, err
	}

	// The burn is what spends the coins: until it lands on chain nothing
	// local changes, and once it has landed the balance check above can
	// never pass for the same coins again.
	txHash, err := s.gateway.BurnTokens(ctx, wallet.Address, baseUnits)
	if err != nil {
		return 0, fmt.Errorf("burn converted coins: %w", err)
	}

	newBalance, err := s.wallets.CreditReward(ctx, repository.RewardCredit{
		UserID:          userID,
		Amount:          -float64(amount),
		TransactionType: models.TxTypeCoinConversion,
		Description:     fmt.Sprintf("Converted %d coins to training points", amount),
		TxHash:          txHash,
	})
	if err != nil {
		// The coins are gone on chain but no local record exists.
		// Reconciliation resyncs the cached balance; the audit row stays
		// missing until the operator replays it from the burn hash.
		s.logger.Error().Err(err).
			Uint("user_id", userID).
			Str("tx_hash", txHash).
			Msg("burn landed on chain but local conversion write failed")
		return 0, fmt.Errorf("record conversion: %w", err)
	}
	if err := s.users.AddTrainingPoints(ctx, userID, amount); err != nil {
		return 0, fmt.Errorf("credit training points: %w", err)
	}

	s.cacheSet(ctx, wallet.Address, newBalance)
	s.logger.Info().Uint("user_id", userID).Int("amount", amount).Msg("coins converted to training points")
	return newBalance, nil
}

func (s *walletService) History(ctx context.Context, userID uint, page, pageSize int) ([]models.TransactionLog, int64, error) {
	return s.txLogs.List(ctx, repository.TransactionLogFilter{
		UserID:   &userID,
		Page:     page,
		PageSize: pageSize,
	})
}

func (s *walletService) cacheKey(address string) string {
	return "campuscoin:balance:" + address
}

func (s *walletService) cacheGet(ctx context.Context, address string) (float64, bool) {
	if s.redis == nil {
		return 0, false
	}
	raw, err := s.redis.Get(ctx, s.cacheKey(address)).Result()
	if err != nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func (s *walletService) cacheSet(ctx context.Context, address string, balance float64) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Set(ctx, s.cacheKey(address), strconv.FormatFloat(balance, 'f', -1, 64), s.cacheTTL).Err(); err != nil {
		s.logger.Debug().Err(err).Str("address", address).Msg("balance cache write failed")
	}
}
