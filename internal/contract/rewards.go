package contract

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
)

// Registry-level failures.
var (
	ErrActivityNotFound  = errors.New("activity does not exist")
	ErrActivityInactive  = errors.New("activity is not active")
	ErrAlreadyCompleted  = errors.New("activity already completed for account")
	ErrEmptyActivityName = errors.New("activity name must not be empty")
)

// RegistryActivity is the on-chain activity record. Its index in the registry
// is independent of the relational Activity id; the off-chain side keeps an
// explicit mapping.
type RegistryActivity struct {
	Name         string
	Description  string
	RewardAmount *big.Int
	IsActive     bool
}

// RewardRegistry records which accounts completed which activities. A
// (account, activity) pair may be completed at most once, enforced here so
// that no off-chain caller, buggy or compromised, can double-reward.
type RewardRegistry struct {
	mu sync.Mutex

	coin       *Coin
	admins     map[string]bool
	activities []RegistryActivity
	completed  map[completionKey]bool
}

type completionKey struct {
	account    string
	activityID uint64
}

// NewRewardRegistry deploys a registry bound to the coin ledger. The deployer
// receives the admin role.
func NewRewardRegistry(coin *Coin, deployer string) *RewardRegistry {
	return &RewardRegistry{
		coin:      coin,
		admins:    map[string]bool{normalize(deployer): true},
		completed: make(map[completionKey]bool),
	}
}

// CreateActivity appends a new activity and returns its registry id.
// Admin only.
func (r *RewardRegistry) CreateActivity(caller, name, description string, rewardAmount *big.Int) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.admins[normalize(caller)] {
		return 0, ErrNotAdmin
	}
	if name == "" {
		return 0, ErrEmptyActivityName
	}
	if rewardAmount == nil || rewardAmount.Sign() < 0 {
		return 0, ErrNegativeAmount
	}
	r.activities = append(r.activities, RegistryActivity{
		Name:         name,
		Description:  description,
		RewardAmount: new(big.Int).Set(rewardAmount),
		IsActive:     true,
	})
	return uint64(len(r.activities) - 1), nil
}

// UpdateActivity rewrites an existing activity in place. Admin only.
func (r *RewardRegistry) UpdateActivity(caller string, id uint64, name, description string, rewardAmount *big.Int, isActive bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.admins[normalize(caller)] {
		return ErrNotAdmin
	}
	if id >= uint64(len(r.activities)) {
		return ErrActivityNotFound
	}
	if name == "" {
		return ErrEmptyActivityName
	}
	if rewardAmount == nil || rewardAmount.Sign() < 0 {
		return ErrNegativeAmount
	}
	r.activities[id] = RegistryActivity{
		Name:         name,
		Description:  description,
		RewardAmount: new(big.Int).Set(rewardAmount),
		IsActive:     isActive,
	}
	return nil
}

// GetActivity returns the activity stored at the given registry id.
func (r *RewardRegistry) GetActivity(id uint64) (RegistryActivity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id >= uint64(len(r.activities)) {
		return RegistryActivity{}, ErrActivityNotFound
	}
	a := r.activities[id]
	return RegistryActivity{
		Name:         a.Name,
		Description:  a.Description,
		RewardAmount: new(big.Int).Set(a.RewardAmount),
		IsActive:     a.IsActive,
	}, nil
}

// CompleteActivity marks the pair complete. Reverts when the account is not
// an allow-listed student or when the pair was already completed.
func (r *RewardRegistry) CompleteActivity(caller, account string, activityID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.complete(caller, account, activityID)
}

// BatchCompleteActivity completes the activity for several accounts in one
// call. All-or-nothing: any rejected account leaves the registry untouched.
func (r *RewardRegistry) BatchCompleteActivity(caller string, accounts []string, activityID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, account := range accounts {
		if err := r.checkCompletable(account, activityID); err != nil {
			return fmt.Errorf("account %s: %w", account, err)
		}
	}
	if !r.admins[normalize(caller)] {
		return ErrNotAdmin
	}
	seen := make(map[string]bool, len(accounts))
	for _, account := range accounts {
		key := normalize(account)
		if seen[key] {
			return fmt.Errorf("account %s: %w", account, ErrAlreadyCompleted)
		}
		seen[key] = true
	}
	for _, account := range accounts {
		r.completed[completionKey{normalize(account), activityID}] = true
	}
	return nil
}

// HasCompleted reports whether the pair has been marked complete.
func (r *RewardRegistry) HasCompleted(account string, activityID uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completed[completionKey{normalize(account), activityID}]
}

func (r *RewardRegistry) complete(caller, account string, activityID uint64) error {
	if !r.admins[normalize(caller)] {
		return ErrNotAdmin
	}
	if err := r.checkCompletable(account, activityID); err != nil {
		return err
	}
	r.completed[completionKey{normalize(account), activityID}] = true
	return nil
}

func (r *RewardRegistry) checkCompletable(account string, activityID uint64) error {
	if activityID >= uint64(len(r.activities)) {
		return ErrActivityNotFound
	}
	if !r.activities[activityID].IsActive {
		return ErrActivityInactive
	}
	if r.coin != nil && !r.coin.IsStudent(account) {
		return ErrNotStudent
	}
	if r.completed[completionKey{normalize(account), activityID}] {
		return ErrAlreadyCompleted
	}
	return nil
}
