// Package chain is the gateway between the settlement services and the
// blockchain node. It owns the authority key, serializes every privileged
// submission through a single bound submitter, and converts token amounts at
// the chain boundary. Nothing above this package deals with nonces, gas, or
// base-unit scaling.
package chain

import (
	"context"
	"math/big"
)

// Gateway is the full surface the settlement subsystem consumes from the
// deployed coin and reward registry contracts. All token amounts are in base
// units; conversions happen via ToBaseUnits / FromBaseUnits.
type Gateway interface {
	// MintTokens credits amount base units to the address via the coin
	// contract and returns the transaction hash.
	MintTokens(ctx context.Context, address string, amount *big.Int) (string, error)

	// BurnTokens retires amount base units from the address's balance and
	// returns the transaction hash. The debit side of an off-chain
	// redemption; spend decisions settle on chain, never locally.
	BurnTokens(ctx context.Context, address string, amount *big.Int) (string, error)

	// AddStudent places the address on the coin contract's allow-list.
	AddStudent(ctx context.Context, address string) (string, error)

	// IsStudent reports whether the address is allow-listed.
	IsStudent(ctx context.Context, address string) (bool, error)

	// BalanceOf reads the authoritative token balance in base units.
	BalanceOf(ctx context.Context, address string) (*big.Int, error)

	// TokenName reads the coin contract's name. Used as a liveness probe.
	TokenName(ctx context.Context) (string, error)

	// CreateActivity registers an activity on the reward registry and
	// returns its on-chain id.
	CreateActivity(ctx context.Context, name, description string, rewardAmount *big.Int) (uint64, error)

	// CompleteActivity marks the (address, activity) pair complete. The
	// registry rejects duplicates and non-students on its own.
	CompleteActivity(ctx context.Context, address string, activityID uint64) (string, error)

	// BatchCompleteActivity completes one activity for several addresses in
	// a single transaction.
	BatchCompleteActivity(ctx context.Context, addresses []string, activityID uint64) (string, error)

	// HasCompleted reports whether the pair has already been completed.
	HasCompleted(ctx context.Context, address string, activityID uint64) (bool, error)
}
