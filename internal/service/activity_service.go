package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/campus-coin-api/internal/chain"
	"github.com/noah-isme/campus-coin-api/internal/dto"
	"github.com/noah-isme/campus-coin-api/internal/models"
	"github.com/noah-isme/campus-coin-api/internal/repository"
)

// ErrInvalidActivityWindow rejects activities whose end precedes their start.
var ErrInvalidActivityWindow = errors.New("end date must be after start date")

// ActivityService exposes administrator operations on activities.
type ActivityService interface {
	Create(ctx context.Context, req dto.CreateActivityRequest) (models.Activity, error)
	Update(ctx context.Context, id uint, req dto.UpdateActivityRequest) (models.Activity, error)
	Get(ctx context.Context, id uint) (models.Activity, error)
	ListActive(ctx context.Context) ([]models.Activity, error)

	// ListOpen returns active activities whose registration window is still
	// running. This is the student-facing listing.
	ListOpen(ctx context.Context) ([]models.Activity, error)
	Deactivate(ctx context.Context, id uint) error
	AssignClasses(ctx context.Context, id uint, classes string) (models.Activity, error)
}

type activityService struct {
	activities repository.ActivityRepository
	gateway    chain.Gateway
	validator  *validator.Validate
	sanitizer  *bluemonday.Policy
	logger     zerolog.Logger
}

// NewActivityService constructs the activity administration service.
func NewActivityService(activities repository.ActivityRepository, gateway chain.Gateway, validate *validator.Validate, logger zerolog.Logger) ActivityService {
	return &activityService{
		activities: activities,
		gateway:    gateway,
		validator:  validate,
		sanitizer:  bluemonday.StrictPolicy(),
		logger:     logger.With().Str("component", "activity_service").Logger(),
	}
}

func (s *activityService) Create(ctx context.Context, req dto.CreateActivityRequest) (models.Activity, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.Activity{}, err
	}
	if !req.EndDate.After(req.StartDate) {
		return models.Activity{}, ErrInvalidActivityWindow
	}

	activity := models.Activity{
		Name:            s.sanitizer.Sanitize(req.Name),
		Description:     s.sanitizer.Sanitize(req.Description),
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		RewardCoin:      req.RewardCoin,
		MaxParticipants: req.MaxParticipants,
		AllowedClasses:  req.AllowedClasses,
		AutoApprove:     req.AutoApprove,
		IsActive:        true,
	}
	if err := s.activities.Create(ctx, &activity); err != nil {
		return models.Activity{}, err
	}

	// Optionally anchor the activity in the on-chain completion registry so
	// settlement can use the registry's hard duplicate guard. The registry
	// keeps its own id space; the mapping lives on the activity row.
	if req.RegisterOnChain {
		reward, err := chain.ToBaseUnits(req.RewardCoin)
		if err != nil {
			return models.Activity{}, err
		}
		onChainID, err := s.gateway.CreateActivity(ctx, activity.Name, activity.Description, reward)
		if err != nil {
			s.logger.Error().Err(err).Uint("activity_id", activity.ID).Msg("on-chain activity registration failed")
			return models.Activity{}, fmt.Errorf("register activity on chain: %w", err)
		}
		if err := s.activities.SetOnChainID(ctx, activity.ID, onChainID); err != nil {
			return models.Activity{}, err
		}
		activity.OnChainActivityID = &onChainID
	}

	s.logger.Info().Uint("activity_id", activity.ID).Str("name", activity.Name).Msg("activity created")
	return activity, nil
}

func (s *activityService) Update(ctx context.Context, id uint, req dto.UpdateActivityRequest) (models.Activity, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.Activity{}, err
	}
	activity, err := s.activities.GetByID(ctx, id)
	if err != nil {
		return models.Activity{}, ErrActivityNotFound
	}

	if req.Name != nil {
		activity.Name = s.sanitizer.Sanitize(*req.Name)
	}
	if req.Description != nil {
		activity.Description = s.sanitizer.Sanitize(*req.Description)
	}
	if req.StartDate != nil {
		activity.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		activity.EndDate = *req.EndDate
	}
	if req.RewardCoin != nil {
		activity.RewardCoin = *req.RewardCoin
	}
	if req.MaxParticipants != nil {
		activity.MaxParticipants = *req.MaxParticipants
	}
	if !activity.EndDate.After(activity.StartDate) {
		return models.Activity{}, ErrInvalidActivityWindow
	}

	if err := s.activities.Update(ctx, &activity); err != nil {
		return models.Activity{}, err
	}
	return activity, nil
}

func (s *activityService) Get(ctx context.Context, id uint) (models.Activity, error) {
	activity, err := s.activities.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Activity{}, ErrActivityNotFound
		}
		return models.Activity{}, err
	}
	return activity, nil
}

func (s *activityService) ListActive(ctx context.Context) ([]models.Activity, error) {
	return s.activities.ListActive(ctx)
}

func (s *activityService) ListOpen(ctx context.Context) ([]models.Activity, error) {
	return s.activities.ListOpenForRegistration(ctx, time.Now())
}

func (s *activityService) Deactivate(ctx context.Context, id uint) error {
	if err := s.activities.Deactivate(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrActivityNotFound
		}
		return err
	}
	s.logger.Info().Uint("activity_id", id).Msg("activity deactivated")
	return nil
}

func (s *activityService) AssignClasses(ctx context.Context, id uint, classes string) (models.Activity, error) {
	if err := s.activities.AssignClasses(ctx, id, classes); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Activity{}, ErrActivityNotFound
		}
		return models.Activity{}, err
	}
	return s.activities.GetByID(ctx, id)
}
