package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/campus-coin-api/internal/models"
)

// RegistrationRepository persists activity registrations and their
// write-once state transitions.
type RegistrationRepository interface {
	// CreateWithSlotCheck inserts the registration only while the activity
	// still has a free slot. The count and insert run in one transaction
	// with the activity row locked, so concurrent bursts cannot
	// oversubscribe. Returns gorm.ErrDuplicatedKey when the student already
	// registered, and ErrSlotFull when the activity is at capacity.
	CreateWithSlotCheck(ctx context.Context, registration *models.ActivityRegistration, maxParticipants int) error

	GetByStudentAndActivity(ctx context.Context, studentID, activityID uint) (models.ActivityRegistration, error)
	ListByActivity(ctx context.Context, activityID uint) ([]models.ActivityRegistration, error)
	ListByStudent(ctx context.Context, studentID uint) ([]models.ActivityRegistration, error)
	CountByActivity(ctx context.Context, activityID uint) (int64, error)

	// MarkApproved and MarkConfirmed flip their write-once flag using an
	// optimistic version check; a lost race returns ErrStaleRegistration.
	MarkApproved(ctx context.Context, registration *models.ActivityRegistration, at time.Time) error
	MarkConfirmed(ctx context.Context, registration *models.ActivityRegistration, at time.Time, evidenceURL string) error

	SetRewardTxHash(ctx context.Context, id uint, txHash string) error

	// ListConfirmedUnsettled returns registrations whose participation was
	// confirmed before the cutoff but that carry no reward transaction.
	// These are the divergence candidates reconciliation alerts on.
	ListConfirmedUnsettled(ctx context.Context, before time.Time) ([]models.ActivityRegistration, error)
}

// ErrSlotFull is returned when an activity has no remaining capacity.
var ErrSlotFull = errors.New("activity slots are full")

// ErrStaleRegistration marks a lost optimistic-version race on a transition.
var ErrStaleRegistration = errors.New("registration was modified concurrently")

type registrationRepository struct {
	db *gorm.DB
}

// NewRegistrationRepository constructs a registration repository.
func NewRegistrationRepository(db *gorm.DB) RegistrationRepository {
	return &registrationRepository{db: db}
}

func (r *registrationRepository) CreateWithSlotCheck(ctx context.Context, registration *models.ActivityRegistration, maxParticipants int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock the activity row so two concurrent registrations cannot both
		// observe a free slot. SQLite serializes writers itself and rejects
		// the FOR UPDATE syntax.
		query := tx
		if tx.Dialector.Name() != "sqlite" {
			query = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var activity models.Activity
		if err := query.First(&activity, registration.ActivityID).Error; err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&models.ActivityRegistration{}).
			Where("activity_id = ?", registration.ActivityID).
			Count(&count).Error; err != nil {
			return err
		}
		if count >= int64(maxParticipants) {
			return ErrSlotFull
		}

		return tx.Create(registration).Error
	})
}

func (r *registrationRepository) GetByStudentAndActivity(ctx context.Context, studentID, activityID uint) (models.ActivityRegistration, error) {
	var registration models.ActivityRegistration
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND activity_id = ?", studentID, activityID).
		First(&registration).Error
	if err != nil {
		return models.ActivityRegistration{}, err
	}
	return registration, nil
}

func (r *registrationRepository) ListByActivity(ctx context.Context, activityID uint) ([]models.ActivityRegistration, error) {
	var registrations []models.ActivityRegistration
	err := r.db.WithContext(ctx).
		Preload("Student").
		Where("activity_id = ?", activityID).
		Order("registered_at ASC").
		Find(&registrations).Error
	return registrations, err
}

func (r *registrationRepository) ListByStudent(ctx context.Context, studentID uint) ([]models.ActivityRegistration, error) {
	var registrations []models.ActivityRegistration
	err := r.db.WithContext(ctx).
		Preload("Activity").
		Where("student_id = ?", studentID).
		Order("registered_at DESC").
		Find(&registrations).Error
	return registrations, err
}

func (r *registrationRepository) CountByActivity(ctx context.Context, activityID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ActivityRegistration{}).
		Where("activity_id = ?", activityID).
		Count(&count).Error
	return count, err
}

func (r *registrationRepository) MarkApproved(ctx context.Context, registration *models.ActivityRegistration, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.ActivityRegistration{}).
		Where("id = ? AND version = ? AND is_approved = ?", registration.ID, registration.Version, false).
		Updates(map[string]interface{}{
			"is_approved": true,
			"approved_at": at,
			"version":     registration.Version + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleRegistration
	}
	registration.IsApproved = true
	registration.ApprovedAt = &at
	registration.Version++
	return nil
}

func (r *registrationRepository) MarkConfirmed(ctx context.Context, registration *models.ActivityRegistration, at time.Time, evidenceURL string) error {
	updates := map[string]interface{}{
		"is_participation_confirmed": true,
		"participation_confirmed_at": at,
		"version":                    registration.Version + 1,
	}
	if evidenceURL != "" {
		updates["evidence_image_url"] = evidenceURL
	}
	result := r.db.WithContext(ctx).
		Model(&models.ActivityRegistration{}).
		Where("id = ? AND version = ? AND is_participation_confirmed = ?", registration.ID, registration.Version, false).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleRegistration
	}
	registration.IsParticipationConfirmed = true
	registration.ParticipationConfirmedAt = &at
	if evidenceURL != "" {
		registration.EvidenceImageURL = evidenceURL
	}
	registration.Version++
	return nil
}

func (r *registrationRepository) SetRewardTxHash(ctx context.Context, id uint, txHash string) error {
	return r.db.WithContext(ctx).
		Model(&models.ActivityRegistration{}).
		Where("id = ?", id).
		Update("reward_tx_hash", txHash).Error
}

func (r *registrationRepository) ListConfirmedUnsettled(ctx context.Context, before time.Time) ([]models.ActivityRegistration, error) {
	var registrations []models.ActivityRegistration
	err := r.db.WithContext(ctx).
		Preload("Activity").
		Where("is_participation_confirmed = ? AND reward_tx_hash = '' AND participation_confirmed_at < ?", true, before).
		Find(&registrations).Error
	return registrations, err
}
