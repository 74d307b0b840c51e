package service

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/campus-coin-api/internal/models"
	"github.com/noah-isme/campus-coin-api/internal/observability"
	"github.com/noah-isme/campus-coin-api/internal/repository"
)

// driftTolerance absorbs float rounding in the cached balance column.
const driftTolerance = 1e-6

// ReconciliationReport summarizes a single sweep.
type ReconciliationReport struct {
	WalletsChecked     int `json:"wallets_checked"`
	DriftsFound        int `json:"drifts_found"`
	MissingSettlements int `json:"missing_settlements"`
	SyncFailures       int `json:"sync_failures"`
}

// ReconciliationService periodically re-reads on-chain balances and flags
// registrations whose reward never landed.
type ReconciliationService interface {
	Run(ctx context.Context) (ReconciliationReport, error)
}

type reconciliationService struct {
	wallets       repository.WalletRepository
	registrations repository.RegistrationRepository
	walletSvc     WalletService
	publisher     EventPublisher
	logger        zerolog.Logger
	settleGrace   time.Duration
	now           func() time.Time
}

// NewReconciliationService constructs the sweep. settleGrace is how long a
// confirmed registration may stay unsettled before it is reported.
func NewReconciliationService(
	wallets repository.WalletRepository,
	registrations repository.RegistrationRepository,
	walletSvc WalletService,
	publisher EventPublisher,
	settleGrace time.Duration,
	logger zerolog.Logger,
) ReconciliationService {
	if settleGrace <= 0 {
		settleGrace = 10 * time.Minute
	}
	return &reconciliationService{
		wallets:       wallets,
		registrations: registrations,
		walletSvc:     walletSvc,
		publisher:     publisher,
		logger:        logger.With().Str("component", "reconciliation").Logger(),
		settleGrace:   settleGrace,
		now:           time.Now,
	}
}

func (s *reconciliationService) Run(ctx context.Context) (ReconciliationReport, error) {
	var report ReconciliationReport

	wallets, err := s.wallets.ListAll(ctx)
	if err != nil {
		return report, err
	}
	for _, w := range wallets {
		report.WalletsChecked++
		if err := s.checkWallet(ctx, w, &report); err != nil {
			report.SyncFailures++
			s.logger.Warn().Err(err).Str("address", w.Address).Msg("balance sync failed during sweep")
		}
	}

	cutoff := s.now().Add(-s.settleGrace)
	pending, err := s.registrations.ListConfirmedUnsettled(ctx, cutoff)
	if err != nil {
		return report, err
	}
	for _, reg := range pending {
		report.MissingSettlements++
		observability.ReconciliationAlerts().WithLabelValues("missing_settlement").Inc()
		s.logger.Error().
			Uint("registration_id", reg.ID).
			Uint("student_id", reg.StudentID).
			Uint("activity_id", reg.ActivityID).
			Time("confirmed_at", derefTime(reg.ParticipationConfirmedAt)).
			Msg("confirmed registration has no settled reward")
		s.publisher.PublishReconciliationAlert(ctx, ReconciliationAlert{
			Kind:           "missing_settlement",
			StudentID:      reg.StudentID,
			ActivityID:     reg.ActivityID,
			RegistrationID: reg.ID,
			DetectedAt:     s.now(),
		})
	}

	s.logger.Info().
		Int("wallets_checked", report.WalletsChecked).
		Int("drifts_found", report.DriftsFound).
		Int("missing_settlements", report.MissingSettlements).
		Int("sync_failures", report.SyncFailures).
		Msg("reconciliation sweep complete")
	return report, nil
}

func (s *reconciliationService) checkWallet(ctx context.Context, w models.Wallet, report *ReconciliationReport) error {
	cached := w.Balance
	fresh, err := s.walletSvc.SyncBalance(ctx, w.Address, true)
	if err != nil {
		return err
	}
	drift := math.Abs(fresh - cached)
	if drift <= driftTolerance {
		return nil
	}

	report.DriftsFound++
	observability.ReconciliationDrift().Observe(drift)
	observability.ReconciliationAlerts().WithLabelValues("balance_drift").Inc()
	s.logger.Warn().
		Str("address", w.Address).
		Uint("user_id", w.UserID).
		Float64("cached", cached).
		Float64("on_chain", fresh).
		Msg("cached balance drifted from chain")
	s.publisher.PublishReconciliationAlert(ctx, ReconciliationAlert{
		Kind:          "balance_drift",
		Address:       w.Address,
		StudentID:     w.UserID,
		CachedBalance: cached,
		ChainBalance:  fresh,
		DetectedAt:    s.now(),
	})
	return nil
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
