package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/campus-coin-api/internal/models"
)

// ActivityRepository persists rewardable activities.
type ActivityRepository interface {
	Create(ctx context.Context, activity *models.Activity) error
	GetByID(ctx context.Context, id uint) (models.Activity, error)
	Update(ctx context.Context, activity *models.Activity) error
	ListActive(ctx context.Context) ([]models.Activity, error)
	ListOpenForRegistration(ctx context.Context, now time.Time) ([]models.Activity, error)
	Deactivate(ctx context.Context, id uint) error
	AssignClasses(ctx context.Context, id uint, classes string) error
	SetOnChainID(ctx context.Context, id uint, onChainID uint64) error
}

type activityRepository struct {
	db *gorm.DB
}

// NewActivityRepository constructs an activity repository.
func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) Create(ctx context.Context, activity *models.Activity) error {
	return r.db.WithContext(ctx).Create(activity).Error
}

func (r *activityRepository) GetByID(ctx context.Context, id uint) (models.Activity, error) {
	var activity models.Activity
	if err := r.db.WithContext(ctx).First(&activity, id).Error; err != nil {
		return models.Activity{}, err
	}
	return activity, nil
}

func (r *activityRepository) Update(ctx context.Context, activity *models.Activity) error {
	return r.db.WithContext(ctx).Save(activity).Error
}

func (r *activityRepository) ListActive(ctx context.Context) ([]models.Activity, error) {
	var activities []models.Activity
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("start_date ASC").
		Find(&activities).Error
	return activities, err
}

func (r *activityRepository) ListOpenForRegistration(ctx context.Context, now time.Time) ([]models.Activity, error) {
	var activities []models.Activity
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND end_date > ?", true, now).
		Order("start_date ASC").
		Find(&activities).Error
	return activities, err
}

// Deactivate soft-deletes the activity; registrations keep their reference.
func (r *activityRepository) Deactivate(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).
		Model(&models.Activity{}).
		Where("id = ?", id).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *activityRepository) AssignClasses(ctx context.Context, id uint, classes string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Activity{}).
		Where("id = ?", id).
		Update("allowed_classes", classes)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *activityRepository) SetOnChainID(ctx context.Context, id uint, onChainID uint64) error {
	result := r.db.WithContext(ctx).
		Model(&models.Activity{}).
		Where("id = ?", id).
		Update("on_chain_activity_id", onChainID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
