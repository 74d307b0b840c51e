package dto

import (
	"time"

	"github.com/noah-isme/campus-coin-api/internal/models"
)

// RegisterActivityRequest is submitted by a student joining an activity.
type RegisterActivityRequest struct {
	ActivityID uint `json:"activity_id" validate:"required,gt=0"`
}

// ApproveRegistrationRequest identifies the registration an admin approves.
type ApproveRegistrationRequest struct {
	ActivityID  uint   `json:"activity_id" validate:"required,gt=0"`
	StudentCode string `json:"student_code" validate:"required"`
}

// ConfirmParticipationRequest marks attendance and triggers settlement.
type ConfirmParticipationRequest struct {
	ActivityID  uint   `json:"activity_id" validate:"required,gt=0"`
	StudentCode string `json:"student_code" validate:"required"`
	EvidenceURL string `json:"evidence_url" validate:"omitempty,url"`
}

// RegistrationResponse serializes one registration row.
type RegistrationResponse struct {
	ID                       uint       `json:"id"`
	StudentID                uint       `json:"student_id"`
	StudentCode              string     `json:"student_code,omitempty"`
	StudentName              string     `json:"student_name,omitempty"`
	ActivityID               uint       `json:"activity_id"`
	ActivityName             string     `json:"activity_name,omitempty"`
	RegisteredAt             time.Time  `json:"registered_at"`
	IsApproved               bool       `json:"is_approved"`
	ApprovedAt               *time.Time `json:"approved_at,omitempty"`
	IsParticipationConfirmed bool       `json:"is_participation_confirmed"`
	ConfirmedAt              *time.Time `json:"confirmed_at,omitempty"`
	EvidenceImageURL         string     `json:"evidence_image_url,omitempty"`
	RewardTxHash             string     `json:"reward_tx_hash,omitempty"`
	RewardIssued             bool       `json:"reward_issued"`
}

// NewRegistrationResponse converts a model into a DTO. Preloaded Student and
// Activity associations are surfaced when present.
func NewRegistrationResponse(reg models.ActivityRegistration) RegistrationResponse {
	resp := RegistrationResponse{
		ID:                       reg.ID,
		StudentID:                reg.StudentID,
		ActivityID:               reg.ActivityID,
		RegisteredAt:             reg.RegisteredAt,
		IsApproved:               reg.IsApproved,
		ApprovedAt:               reg.ApprovedAt,
		IsParticipationConfirmed: reg.IsParticipationConfirmed,
		ConfirmedAt:              reg.ParticipationConfirmedAt,
		EvidenceImageURL:         reg.EvidenceImageURL,
		RewardTxHash:             reg.RewardTxHash,
		RewardIssued:             reg.RewardIssued(),
	}
	if reg.Student != nil {
		resp.StudentName = reg.Student.FullName
		if reg.Student.StudentCode != nil {
			resp.StudentCode = *reg.Student.StudentCode
		}
	}
	if reg.Activity != nil {
		resp.ActivityName = reg.Activity.Name
	}
	return resp
}

// NewRegistrationListResponse converts a slice of models into DTOs.
func NewRegistrationListResponse(regs []models.ActivityRegistration) []RegistrationResponse {
	items := make([]RegistrationResponse, 0, len(regs))
	for _, r := range regs {
		items = append(items, NewRegistrationResponse(r))
	}
	return items
}
