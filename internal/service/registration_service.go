package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/campus-coin-api/internal/models"
	"github.com/noah-isme/campus-coin-api/internal/repository"
)

// RegistrationService drives the participation lifecycle:
// Registered -> Approved -> ParticipationConfirmed, with the confirmed
// transition acting as the sole settlement trigger. Every transition is
// write-once; concurrent duplicates lose the version race and surface as the
// corresponding "already ..." validation error.
type RegistrationService interface {
	Register(ctx context.Context, studentID, activityID uint) (models.ActivityRegistration, error)
	Approve(ctx context.Context, activityID uint, studentCode string) (models.ActivityRegistration, error)
	ConfirmParticipation(ctx context.Context, activityID uint, studentCode, evidenceURL string) (SettlementResult, error)

	// Resettle retries settlement for a registration that is confirmed but
	// carries no reward transaction. Operator-facing repair path.
	Resettle(ctx context.Context, activityID uint, studentCode string) (SettlementResult, error)

	ListByActivity(ctx context.Context, activityID uint) ([]models.ActivityRegistration, error)
	ListByStudent(ctx context.Context, studentID uint) ([]models.ActivityRegistration, error)
}

type registrationService struct {
	registrations repository.RegistrationRepository
	activities    repository.ActivityRepository
	users         repository.UserRepository
	wallets       WalletService
	settlement    SettlementService
	logger        zerolog.Logger
	now           func() time.Time
}

// NewRegistrationService constructs the registration state machine.
func NewRegistrationService(
	registrations repository.RegistrationRepository,
	activities repository.ActivityRepository,
	users repository.UserRepository,
	wallets WalletService,
	settlement SettlementService,
	logger zerolog.Logger,
) RegistrationService {
	return &registrationService{
		registrations: registrations,
		activities:    activities,
		users:         users,
		wallets:       wallets,
		settlement:    settlement,
		logger:        logger.With().Str("component", "registration_service").Logger(),
		now:           time.Now,
	}
}

func (s *registrationService) Register(ctx context.Context, studentID, activityID uint) (models.ActivityRegistration, error) {
	student, err := s.users.GetByID(ctx, studentID)
	if err != nil {
		return models.ActivityRegistration{}, ErrStudentNotFound
	}
	if !student.IsStudent() {
		return models.ActivityRegistration{}, ErrNotAStudent
	}

	activity, err := s.activities.GetByID(ctx, activityID)
	if err != nil {
		return models.ActivityRegistration{}, ErrActivityNotFound
	}
	if !activity.IsActive {
		return models.ActivityRegistration{}, ErrActivityInactive
	}
	now := s.now()
	if now.After(activity.EndDate) {
		return models.ActivityRegistration{}, ErrActivityClosed
	}
	if !activity.ClassAllowed(student.Class) {
		return models.ActivityRegistration{}, ErrClassNotAllowed
	}

	registration := models.ActivityRegistration{
		StudentID:    studentID,
		ActivityID:   activityID,
		RegisteredAt: now,
	}
	if activity.AutoApprove {
		registration.IsApproved = true
		registration.ApprovedAt = &registration.RegisteredAt
	}

	if err := s.registrations.CreateWithSlotCheck(ctx, &registration, activity.MaxParticipants); err != nil {
		switch {
		case errors.Is(err, gorm.ErrDuplicatedKey):
			return models.ActivityRegistration{}, ErrAlreadyRegistered
		case errors.Is(err, repository.ErrSlotFull):
			return models.ActivityRegistration{}, ErrSlotFull
		default:
			return models.ActivityRegistration{}, err
		}
	}

	s.logger.Info().
		Uint("student_id", studentID).
		Uint("activity_id", activityID).
		Bool("auto_approved", activity.AutoApprove).
		Msg("student registered for activity")
	return registration, nil
}

func (s *registrationService) Approve(ctx context.Context, activityID uint, studentCode string) (models.ActivityRegistration, error) {
	registration, _, _, err := s.resolve(ctx, activityID, studentCode)
	if err != nil {
		return models.ActivityRegistration{}, err
	}
	if registration.IsApproved {
		return models.ActivityRegistration{}, ErrAlreadyApproved
	}

	if err := s.registrations.MarkApproved(ctx, &registration, s.now()); err != nil {
		if errors.Is(err, repository.ErrStaleRegistration) {
			return models.ActivityRegistration{}, ErrAlreadyApproved
		}
		return models.ActivityRegistration{}, err
	}

	s.logger.Info().
		Uint("registration_id", registration.ID).
		Str("student_code", studentCode).
		Msg("registration approved")
	return registration, nil
}

func (s *registrationService) ConfirmParticipation(ctx context.Context, activityID uint, studentCode, evidenceURL string) (SettlementResult, error) {
	registration, student, activity, err := s.resolve(ctx, activityID, studentCode)
	if err != nil {
		return SettlementResult{}, err
	}
	if !activity.ClassAllowed(student.Class) {
		return SettlementResult{}, ErrClassNotAllowed
	}
	if !registration.IsApproved {
		return SettlementResult{}, ErrNotApproved
	}
	if registration.IsParticipationConfirmed {
		return SettlementResult{}, ErrAlreadyConfirmed
	}

	// The write-once confirm flip is the settlement de-duplication key: of
	// two concurrent confirmations exactly one wins the version race, and
	// only the winner proceeds to settle.
	if err := s.registrations.MarkConfirmed(ctx, &registration, s.now(), evidenceURL); err != nil {
		if errors.Is(err, repository.ErrStaleRegistration) {
			return SettlementResult{}, ErrAlreadyConfirmed
		}
		return SettlementResult{}, err
	}

	// Provision lazily so settlement never fails on a missing wallet for a
	// legitimate student.
	if _, err := s.wallets.ProvisionWallet(ctx, student.ID); err != nil {
		s.logger.Error().Err(err).Uint("student_id", student.ID).Msg("wallet provisioning failed before settlement")
	}

	return s.settle(ctx, registration, student, activity)
}

func (s *registrationService) Resettle(ctx context.Context, activityID uint, studentCode string) (SettlementResult, error) {
	registration, student, activity, err := s.resolve(ctx, activityID, studentCode)
	if err != nil {
		return SettlementResult{}, err
	}
	if !registration.IsParticipationConfirmed {
		return SettlementResult{}, ErrNotApproved
	}
	if registration.RewardTxHash != "" {
		return SettlementResult{}, ErrAlreadySettled
	}
	return s.settle(ctx, registration, student, activity)
}

func (s *registrationService) settle(ctx context.Context, registration models.ActivityRegistration, student models.User, activity models.Activity) (SettlementResult, error) {
	result, err := s.settlement.SettleReward(ctx, SettlementRequest{
		StudentID:         student.ID,
		RegistrationID:    registration.ID,
		ActivityID:        activity.ID,
		Amount:            activity.RewardCoin,
		ActivityName:      activity.Name,
		OnChainActivityID: activity.OnChainActivityID,
		RewardTxHash:      registration.RewardTxHash,
	})
	if err != nil {
		// The registration stays confirmed with no reward; reconciliation
		// reports it and Resettle retries it.
		s.logger.Error().Err(err).
			Uint("registration_id", registration.ID).
			Msg("settlement failed for confirmed participation")
		return result, err
	}
	return result, nil
}

func (s *registrationService) ListByActivity(ctx context.Context, activityID uint) ([]models.ActivityRegistration, error) {
	if _, err := s.activities.GetByID(ctx, activityID); err != nil {
		return nil, ErrActivityNotFound
	}
	return s.registrations.ListByActivity(ctx, activityID)
}

func (s *registrationService) ListByStudent(ctx context.Context, studentID uint) ([]models.ActivityRegistration, error) {
	return s.registrations.ListByStudent(ctx, studentID)
}

func (s *registrationService) resolve(ctx context.Context, activityID uint, studentCode string) (models.ActivityRegistration, models.User, models.Activity, error) {
	student, err := s.users.GetByStudentCode(ctx, studentCode)
	if err != nil {
		return models.ActivityRegistration{}, models.User{}, models.Activity{}, ErrStudentNotFound
	}
	activity, err := s.activities.GetByID(ctx, activityID)
	if err != nil {
		return models.ActivityRegistration{}, models.User{}, models.Activity{}, ErrActivityNotFound
	}
	registration, err := s.registrations.GetByStudentAndActivity(ctx, student.ID, activityID)
	if err != nil {
		return models.ActivityRegistration{}, models.User{}, models.Activity{}, ErrRegistrationNotFound
	}
	return registration, student, activity, nil
}
