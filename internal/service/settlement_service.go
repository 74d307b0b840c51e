package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/campus-coin-api/internal/chain"
	"github.com/noah-isme/campus-coin-api/internal/models"
	"github.com/noah-isme/campus-coin-api/internal/observability"
	"github.com/noah-isme/campus-coin-api/internal/repository"
)

// SettlementRequest describes one confirmed participation to reward.
type SettlementRequest struct {
	StudentID      uint
	RegistrationID uint
	ActivityID     uint
	Amount         int // whole tokens
	ActivityName   string
	// OnChainActivityID routes settlement through the completion registry
	// when set; the registry is the hard duplicate-prevention boundary.
	OnChainActivityID *uint64
	// RewardTxHash is the mint hash already recorded for this registration,
	// empty when no reward has landed. A registry completion with no
	// recorded mint is a half-finished earlier attempt, not a duplicate.
	RewardTxHash string
}

// SettlementResult is handed back to the HTTP layer. Message is safe to show
// to end users; the underlying cause stays in the server log.
type SettlementResult struct {
	Success    bool    `json:"success"`
	Message    string  `json:"message"`
	NewBalance float64 `json:"new_balance"`
	TxHash     string  `json:"tx_hash,omitempty"`
}

// SettlementService turns a confirmed participation into a consistent credit
// on both ledgers: chain first, local second, reconciliation as compensation.
type SettlementService interface {
	SettleReward(ctx context.Context, req SettlementRequest) (SettlementResult, error)
}

type settlementService struct {
	wallets   repository.WalletRepository
	gateway   chain.Gateway
	publisher EventPublisher
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewSettlementService constructs the settlement orchestrator.
func NewSettlementService(wallets repository.WalletRepository, gateway chain.Gateway, publisher EventPublisher, logger zerolog.Logger) SettlementService {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &settlementService{
		wallets:   wallets,
		gateway:   gateway,
		publisher: publisher,
		logger:    logger.With().Str("component", "settlement_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/campus-coin-api/internal/service/settlement"),
		now:       time.Now,
	}
}

func (s *settlementService) SettleReward(ctx context.Context, req SettlementRequest) (SettlementResult, error) {
	ctx, span := s.tracer.Start(ctx, "settlement.settle_reward",
		trace.WithAttributes(
			attribute.Int("student_id", int(req.StudentID)),
			attribute.Int("activity_id", int(req.ActivityID)),
			attribute.Int("amount", req.Amount),
		))
	defer span.End()

	if req.Amount <= 0 {
		return s.fail("invalid reward amount"), fmt.Errorf("reward amount must be positive, got %d", req.Amount)
	}

	wallet, err := s.wallets.GetByUserID(ctx, req.StudentID)
	if err != nil {
		observability.Settlements().WithLabelValues("no_wallet").Inc()
		return s.fail("wallet not found"), fmt.Errorf("%w: student %d", ErrNoWallet, req.StudentID)
	}

	// Self-heal the allow-list: a student missing the role is granted it
	// before minting. A failed role probe is logged, not fatal; the mint is
	// admin-gated and the registry path reverts on its own if the role is
	// genuinely absent.
	s.ensureStudentRole(ctx, wallet.Address)

	if req.OnChainActivityID != nil {
		if err := s.completeOnRegistry(ctx, wallet.Address, *req.OnChainActivityID, req.RewardTxHash); err != nil {
			if errors.Is(err, ErrAlreadySettled) {
				observability.Settlements().WithLabelValues("duplicate").Inc()
				return s.fail("reward already issued"), err
			}
			observability.Settlements().WithLabelValues("registry_failed").Inc()
			s.logger.Error().Err(err).
				Uint("student_id", req.StudentID).
				Uint64("on_chain_activity_id", *req.OnChainActivityID).
				Msg("completion registry rejected settlement")
			return s.fail("could not issue reward"), err
		}
	}

	amount, err := chain.ToBaseUnits(req.Amount)
	if err != nil {
		return s.fail("invalid reward amount"), err
	}

	// The mint is the single point of truth for "did the reward happen".
	// Nothing local has been written yet, so any failure here leaves the
	// system consistent and the settlement retryable from scratch.
	mintStart := s.now()
	txHash, err := s.gateway.MintTokens(ctx, wallet.Address, amount)
	observability.MintLatency().Observe(s.now().Sub(mintStart).Seconds())
	if err != nil {
		outcome := "mint_unavailable"
		if errors.Is(err, chain.ErrReverted) {
			outcome = "mint_reverted"
		}
		observability.Settlements().WithLabelValues(outcome).Inc()
		s.logger.Error().Err(err).
			Uint("student_id", req.StudentID).
			Str("address", wallet.Address).
			Msg("mint failed, no local state written")
		return s.fail("could not issue reward"), err
	}

	newBalance, err := s.wallets.CreditReward(ctx, repository.RewardCredit{
		UserID:          req.StudentID,
		RegistrationID:  req.RegistrationID,
		Amount:          float64(req.Amount),
		TransactionType: models.TxTypeActivityReward,
		Description:     fmt.Sprintf("Reward for activity %q", req.ActivityName),
		TxHash:          txHash,
		Metadata: map[string]interface{}{
			"activity_id": req.ActivityID,
		},
	})
	if err != nil {
		// Divergence: the token exists on chain but the audit row and the
		// cached balance do not reflect it. Reconciliation picks this up
		// via the confirmed-but-unsettled sweep; the error level here is
		// what pages the operator.
		observability.Settlements().WithLabelValues("diverged").Inc()
		observability.SettlementDivergence().Inc()
		s.logger.Error().Err(err).
			Uint("student_id", req.StudentID).
			Uint("registration_id", req.RegistrationID).
			Str("tx_hash", txHash).
			Msg("mint landed on chain but local ledger write failed")
		return s.fail("could not issue reward"), fmt.Errorf("%w: tx %s: %v", ErrSettlementDiverged, txHash, err)
	}

	observability.Settlements().WithLabelValues("success").Inc()
	s.publisher.PublishSettlement(ctx, SettlementEvent{
		StudentID:    req.StudentID,
		ActivityID:   req.ActivityID,
		Amount:       float64(req.Amount),
		TxHash:       txHash,
		NewBalance:   newBalance,
		ActivityName: req.ActivityName,
		SettledAt:    s.now().UTC(),
	})
	s.logger.Info().
		Uint("student_id", req.StudentID).
		Uint("activity_id", req.ActivityID).
		Str("tx_hash", txHash).
		Float64("new_balance", newBalance).
		Msg("reward settled")

	return SettlementResult{
		Success:    true,
		Message:    "reward issued",
		NewBalance: newBalance,
		TxHash:     txHash,
	}, nil
}

func (s *settlementService) ensureStudentRole(ctx context.Context, address string) {
	isStudent, err := s.gateway.IsStudent(ctx, address)
	if err != nil {
		observability.ChainCalls().WithLabelValues("isStudent", "error").Inc()
		s.logger.Warn().Err(err).Str("address", address).Msg("student role probe failed")
		return
	}
	if isStudent {
		return
	}
	if _, err := s.gateway.AddStudent(ctx, address); err != nil {
		observability.ChainCalls().WithLabelValues("addStudent", "error").Inc()
		s.logger.Warn().Err(err).Str("address", address).Msg("student role grant failed")
		return
	}
	s.logger.Info().Str("address", address).Msg("granted student role")
}

func (s *settlementService) completeOnRegistry(ctx context.Context, address string, activityID uint64, rewardTxHash string) error {
	done, err := s.gateway.HasCompleted(ctx, address, activityID)
	if err == nil && done {
		if rewardTxHash != "" {
			return fmt.Errorf("%w: registry holds completion for %s", ErrAlreadySettled, address)
		}
		// The completion landed in an earlier attempt whose mint never did.
		// The registry half is done; resume the settlement at the mint.
		s.logger.Warn().
			Str("address", address).
			Uint64("on_chain_activity_id", activityID).
			Msg("registry completion already present with no recorded reward, resuming at mint")
		return nil
	}
	if _, err := s.gateway.CompleteActivity(ctx, address, activityID); err != nil {
		return fmt.Errorf("complete activity on registry: %w", err)
	}
	return nil
}

func (s *settlementService) fail(message string) SettlementResult {
	return SettlementResult{Success: false, Message: message}
}
