package dto

import (
	"time"

	"github.com/noah-isme/campus-coin-api/internal/models"
)

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// CreateActivityRequest describes the payload for creating an activity.
type CreateActivityRequest struct {
	Name            string    `json:"name" validate:"required,min=3,max=200"`
	Description     string    `json:"description" validate:"max=2000"`
	StartDate       time.Time `json:"start_date" validate:"required"`
	EndDate         time.Time `json:"end_date" validate:"required"`
	RewardCoin      int       `json:"reward_coin" validate:"required,gt=0"`
	MaxParticipants int       `json:"max_participants" validate:"required,gt=0"`
	AllowedClasses  string    `json:"allowed_classes"`
	AutoApprove     bool      `json:"auto_approve"`
	RegisterOnChain bool      `json:"register_on_chain"`
}

// UpdateActivityRequest captures partial update payloads for activities.
type UpdateActivityRequest struct {
	Name            *string    `json:"name" validate:"omitempty,min=3,max=200"`
	Description     *string    `json:"description" validate:"omitempty,max=2000"`
	StartDate       *time.Time `json:"start_date"`
	EndDate         *time.Time `json:"end_date"`
	RewardCoin      *int       `json:"reward_coin" validate:"omitempty,gt=0"`
	MaxParticipants *int       `json:"max_participants" validate:"omitempty,gt=0"`
}

// AssignClassesRequest restricts an activity to the listed classes.
type AssignClassesRequest struct {
	AllowedClasses string `json:"allowed_classes" validate:"required"`
}

// ActivityResponse is the serialized representation returned to API clients.
type ActivityResponse struct {
	ID                uint      `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	StartDate         time.Time `json:"start_date"`
	EndDate           time.Time `json:"end_date"`
	RewardCoin        int       `json:"reward_coin"`
	MaxParticipants   int       `json:"max_participants"`
	AllowedClasses    string    `json:"allowed_classes"`
	AutoApprove       bool      `json:"auto_approve"`
	IsActive          bool      `json:"is_active"`
	OnChainActivityID *uint64   `json:"on_chain_activity_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// NewActivityResponse converts a model into a DTO.
func NewActivityResponse(activity models.Activity) ActivityResponse {
	return ActivityResponse{
		ID:                activity.ID,
		Name:              activity.Name,
		Description:       activity.Description,
		StartDate:         activity.StartDate,
		EndDate:           activity.EndDate,
		RewardCoin:        activity.RewardCoin,
		MaxParticipants:   activity.MaxParticipants,
		AllowedClasses:    activity.AllowedClasses,
		AutoApprove:       activity.AutoApprove,
		IsActive:          activity.IsActive,
		OnChainActivityID: activity.OnChainActivityID,
		CreatedAt:         activity.CreatedAt,
		UpdatedAt:         activity.UpdatedAt,
	}
}

// NewActivityListResponse converts a slice of models into DTOs.
func NewActivityListResponse(activities []models.Activity) []ActivityResponse {
	items := make([]ActivityResponse, 0, len(activities))
	for _, a := range activities {
		items = append(items, NewActivityResponse(a))
	}
	return items
}
