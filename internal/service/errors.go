package service

import "errors"

// Validation failures reported to the caller with a specific reason. None of
// these ever reach the chain.
var (
	ErrAlreadyRegistered = errors.New("student already registered for this activity")
	ErrSlotFull          = errors.New("activity has reached its participant limit")
	ErrClassNotAllowed   = errors.New("student's class is not allowed for this activity")
	ErrActivityInactive  = errors.New("activity is not active")
	ErrActivityClosed    = errors.New("activity registration window has closed")
	ErrNotApproved       = errors.New("registration has not been approved")
	ErrAlreadyApproved   = errors.New("registration is already approved")
	ErrAlreadyConfirmed  = errors.New("participation is already confirmed")
	ErrNotAStudent       = errors.New("user is not a student")
)

// Lookup failures. Terminal, not retried.
var (
	ErrStudentNotFound      = errors.New("student not found")
	ErrActivityNotFound     = errors.New("activity not found")
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrNoWallet             = errors.New("student has no wallet")
)

// Settlement failures.
var (
	// ErrAlreadySettled means the on-chain completion registry already holds
	// the (account, activity) pair; no second reward is issued.
	ErrAlreadySettled = errors.New("reward already settled for this registration")

	// ErrSettlementDiverged is the central failure mode: the mint landed on
	// chain but the local ledger write failed. The cached balance is stale
	// and the audit row missing until reconciliation repairs it.
	ErrSettlementDiverged = errors.New("mint succeeded but local ledger update failed")

	// ErrInsufficientBalance rejects a conversion larger than the
	// authoritative balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
)
