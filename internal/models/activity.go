package models

import (
	"strings"
	"time"
)

// Activity is a rewardable campus event created by an administrator.
// Identity is immutable; reward and window fields may be edited until the
// activity is deactivated. Activities are soft-deleted via IsActive so that
// existing registrations keep their reference.
type Activity struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Name            string    `gorm:"size:100;not null" json:"name"`
	Description     string    `gorm:"not null" json:"description"`
	StartDate       time.Time `gorm:"not null" json:"start_date"`
	EndDate         time.Time `gorm:"not null" json:"end_date"`
	RewardCoin      int       `gorm:"not null" json:"reward_coin"`
	MaxParticipants int       `gorm:"not null" json:"max_participants"`
	IsActive        bool      `gorm:"not null;default:true" json:"is_active"`
	// AllowedClasses restricts who may register, stored as a comma separated
	// list ("CNTT1,CNTT2"). Empty means unrestricted.
	AllowedClasses string `gorm:"size:255" json:"allowed_classes,omitempty"`
	AutoApprove    bool   `gorm:"not null;default:false" json:"auto_approve"`
	// OnChainActivityID maps this row to the reward registry contract's own
	// activity index. The two id spaces are independent; a nil value means
	// settlement uses the direct mint path only.
	OnChainActivityID *uint64   `json:"on_chain_activity_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	Registrations []ActivityRegistration `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// ClassAllowed reports whether a student of the given class may register.
func (a Activity) ClassAllowed(class string) bool {
	if strings.TrimSpace(a.AllowedClasses) == "" {
		return true
	}
	for _, allowed := range strings.Split(a.AllowedClasses, ",") {
		if strings.TrimSpace(allowed) == class {
			return true
		}
	}
	return false
}

// ActivityRegistration tracks one student's participation lifecycle in one
// activity. The (StudentID, ActivityID) pair is unique and every boolean flag
// is write-once: once approved or confirmed a registration never moves back.
type ActivityRegistration struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	StudentID  uint `gorm:"not null;uniqueIndex:idx_registration_student_activity" json:"student_id"`
	ActivityID uint `gorm:"not null;uniqueIndex:idx_registration_student_activity" json:"activity_id"`

	RegisteredAt             time.Time  `gorm:"not null" json:"registered_at"`
	IsApproved               bool       `gorm:"not null;default:false" json:"is_approved"`
	ApprovedAt               *time.Time `json:"approved_at,omitempty"`
	IsParticipationConfirmed bool       `gorm:"not null;default:false" json:"is_participation_confirmed"`
	ParticipationConfirmedAt *time.Time `json:"participation_confirmed_at,omitempty"`
	EvidenceImageURL         string     `gorm:"size:512" json:"evidence_image_url,omitempty"`
	// RewardTxHash is set once settlement succeeds; a confirmed registration
	// without it is the divergence signal the reconciliation sweep looks for.
	RewardTxHash string `gorm:"size:66" json:"reward_tx_hash,omitempty"`
	// Version guards the check-then-act transitions against concurrent writers.
	Version uint `gorm:"not null;default:0" json:"-"`

	Student  *User     `json:"student,omitempty"`
	Activity *Activity `json:"activity,omitempty"`
}

// RewardIssued is the derived terminal state: participation confirmed and the
// reward settled on chain.
func (r ActivityRegistration) RewardIssued() bool {
	return r.IsParticipationConfirmed && r.RewardTxHash != ""
}
