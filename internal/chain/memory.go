package chain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"

	"github.com/noah-isme/campus-coin-api/internal/contract"
)

// MemoryGateway executes contract calls against the in-process ledger and
// registry. It backs tests and local development where no node is running,
// and enforces exactly the semantics the deployed contracts enforce.
type MemoryGateway struct {
	coin      *contract.Coin
	registry  *contract.RewardRegistry
	authority string
	txSeq     atomic.Uint64
}

// NewMemoryGateway deploys fresh in-process contracts owned by the authority.
func NewMemoryGateway(authority string) *MemoryGateway {
	coin := contract.NewCoin(authority, new(big.Int))
	return &MemoryGateway{
		coin:      coin,
		registry:  contract.NewRewardRegistry(coin, authority),
		authority: authority,
	}
}

// Registry exposes the underlying completion registry for test assertions.
func (m *MemoryGateway) Registry() *contract.RewardRegistry { return m.registry }

func (m *MemoryGateway) MintTokens(ctx context.Context, address string, amount *big.Int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := m.coin.Mint(m.authority, address, amount); err != nil {
		return "", wrapContractErr(err)
	}
	return m.nextTxHash("mint", address), nil
}

func (m *MemoryGateway) BurnTokens(ctx context.Context, address string, amount *big.Int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := m.coin.BurnFrom(m.authority, address, amount); err != nil {
		return "", wrapContractErr(err)
	}
	return m.nextTxHash("burnFrom", address), nil
}

func (m *MemoryGateway) AddStudent(ctx context.Context, address string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := m.coin.AddStudent(m.authority, address); err != nil {
		return "", wrapContractErr(err)
	}
	return m.nextTxHash("addStudent", address), nil
}

func (m *MemoryGateway) IsStudent(ctx context.Context, address string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return m.coin.IsStudent(address), nil
}

func (m *MemoryGateway) BalanceOf(ctx context.Context, address string) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.coin.BalanceOf(address), nil
}

func (m *MemoryGateway) TokenName(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return m.coin.Name(), nil
}

func (m *MemoryGateway) CreateActivity(ctx context.Context, name, description string, rewardAmount *big.Int) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	id, err := m.registry.CreateActivity(m.authority, name, description, rewardAmount)
	if err != nil {
		return 0, wrapContractErr(err)
	}
	return id, nil
}

func (m *MemoryGateway) CompleteActivity(ctx context.Context, address string, activityID uint64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := m.registry.CompleteActivity(m.authority, address, activityID); err != nil {
		return "", wrapContractErr(err)
	}
	return m.nextTxHash("completeActivity", address), nil
}

func (m *MemoryGateway) BatchCompleteActivity(ctx context.Context, addresses []string, activityID uint64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := m.registry.BatchCompleteActivity(m.authority, addresses, activityID); err != nil {
		return "", wrapContractErr(err)
	}
	return m.nextTxHash("batchCompleteActivity", fmt.Sprint(activityID)), nil
}

func (m *MemoryGateway) HasCompleted(ctx context.Context, address string, activityID uint64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return m.registry.HasCompleted(address, activityID), nil
}

func (m *MemoryGateway) nextTxHash(method, salt string) string {
	seq := m.txSeq.Add(1)
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", method, salt, seq)))
	return "0x" + hex.EncodeToString(sum[:])
}

// wrapContractErr maps a contract rejection onto the gateway's revert class
// while keeping the underlying reason visible.
func wrapContractErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrReverted) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrReverted, err)
}
