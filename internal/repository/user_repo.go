package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/campus-coin-api/internal/models"
)

// UserRepository provides read access to user accounts. Accounts are managed
// by the identity service; this subsystem only reads them and accrues
// training points.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (models.User, error)
	GetByStudentCode(ctx context.Context, studentCode string) (models.User, error)
	AddTrainingPoints(ctx context.Context, id uint, points int) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a user repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) GetByStudentCode(ctx context.Context, studentCode string) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("student_code = ?", studentCode).First(&user).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) AddTrainingPoints(ctx context.Context, id uint, points int) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("training_points", gorm.Expr("training_points + ?", points)).Error
}
