package models

import (
	"time"

	"gorm.io/datatypes"
)

// Transaction types recorded in the audit log.
const (
	TxTypeActivityReward = "activity_reward"
	TxTypeCoinConversion = "coin_conversion"
)

// Wallet holds a user's on-chain account. The Balance column is an advisory
// cache of the authoritative on-chain balance, expressed in whole tokens; it
// is refreshed by reconciliation and may lag behind the chain.
//
// The signing key is stored alongside the address, matching the deployed
// system. Production deployments should move it behind a key custody service.
type Wallet struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	Address    string    `gorm:"size:42;not null;uniqueIndex" json:"address"`
	PrivateKey string    `gorm:"size:64;not null" json:"-"`
	Balance    float64   `gorm:"type:decimal(18,8);not null;default:0" json:"balance"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	User *User `json:"-"`
}

// TransactionLog is an append-only audit row. Rows are never mutated after
// insert; together with the mint call they form the unit that must happen at
// most once per (student, activity) pair.
type TransactionLog struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	UserID          uint              `gorm:"not null;index" json:"user_id"`
	Amount          float64           `gorm:"type:decimal(18,8);not null" json:"amount"`
	TransactionType string            `gorm:"size:50;not null" json:"transaction_type"`
	Description     string            `gorm:"size:255" json:"description"`
	TxHash          string            `gorm:"size:66" json:"tx_hash,omitempty"`
	Metadata        datatypes.JSONMap `gorm:"type:json" json:"metadata,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`

	User *User `json:"-"`
}
